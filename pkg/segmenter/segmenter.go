package segmenter

import (
	"errors"
	"unicode/utf16"
)

const (
	// Max lengths per segment. Multipart segments lose capacity to the UDH.
	maxGSM7Single    = 160
	maxGSM7Multipart = 153
	maxUCS2Single    = 70
	maxUCS2Multipart = 67
)

// Segmenter splits a message body into protocol-level segments and reports
// the parts count used for pricing.
type Segmenter interface {
	// GetSegments splits a body, indicating whether UCS2 encoding is needed.
	GetSegments(body string) (segments []string, requiresUCS2 bool, err error)

	// CountParts returns the number of segments the body splits into.
	CountParts(body string) (parts int, requiresUCS2 bool)
}

// gsm7Base holds the GSM 03.38 default alphabet (one septet each).
var gsm7Base = map[rune]struct{}{}

// gsm7Extended holds extension-table characters (escape + char, two septets).
var gsm7Extended = map[rune]struct{}{}

func init() {
	base := "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
		"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"
	for _, r := range base {
		gsm7Base[r] = struct{}{}
	}
	for _, r := range "^{}\\[~]|€" {
		gsm7Extended[r] = struct{}{}
	}
}

// DefaultSegmenter implements GSM-7/UCS-2 aware segmentation.
type DefaultSegmenter struct{}

func NewDefaultSegmenter() *DefaultSegmenter {
	return &DefaultSegmenter{}
}

// septetLength returns the GSM-7 septet count of s, or ok=false when s
// contains characters outside the GSM-7 alphabet.
func septetLength(s string) (n int, ok bool) {
	for _, r := range s {
		if _, isBase := gsm7Base[r]; isBase {
			n++
			continue
		}
		if _, isExt := gsm7Extended[r]; isExt {
			n += 2
			continue
		}
		return 0, false
	}
	return n, true
}

// CountParts implements Segmenter.
func (s *DefaultSegmenter) CountParts(body string) (int, bool) {
	if body == "" {
		return 1, false
	}
	if septets, ok := septetLength(body); ok {
		if septets <= maxGSM7Single {
			return 1, false
		}
		return (septets + maxGSM7Multipart - 1) / maxGSM7Multipart, false
	}
	units := len(utf16.Encode([]rune(body)))
	if units <= maxUCS2Single {
		return 1, true
	}
	return (units + maxUCS2Multipart - 1) / maxUCS2Multipart, true
}

// GetSegments implements Segmenter.
func (s *DefaultSegmenter) GetSegments(body string) ([]string, bool, error) {
	if body == "" {
		return []string{""}, false, nil
	}

	if _, ok := septetLength(body); ok {
		return splitGSM7(body), false, nil
	}

	segments, err := splitUCS2(body)
	return segments, true, err
}

// splitGSM7 splits on septet boundaries, never inside an extension pair.
func splitGSM7(body string) []string {
	single, _ := septetLength(body)
	if single <= maxGSM7Single {
		return []string{body}
	}

	var segments []string
	var current []rune
	septets := 0
	for _, r := range body {
		width := 1
		if _, isExt := gsm7Extended[r]; isExt {
			width = 2
		}
		if septets+width > maxGSM7Multipart {
			segments = append(segments, string(current))
			current = current[:0]
			septets = 0
		}
		current = append(current, r)
		septets += width
	}
	if len(current) > 0 {
		segments = append(segments, string(current))
	}
	return segments
}

// splitUCS2 splits on UTF-16 code-unit boundaries, keeping surrogate pairs
// together.
func splitUCS2(body string) ([]string, error) {
	units := utf16.Encode([]rune(body))
	total := len(units)

	if total <= maxUCS2Single {
		return []string{body}, nil
	}

	var segments []string
	pos := 0
	for pos < total {
		end := pos + maxUCS2Multipart
		if end > total {
			end = total
		}
		// Do not split a surrogate pair across segments.
		if end < total && isHighSurrogate(units[end-1]) {
			end--
		}
		if end <= pos {
			return nil, errors.New("ucs2 segmentation made no progress")
		}
		segments = append(segments, string(utf16.Decode(units[pos:end])))
		pos = end
	}
	return segments, nil
}

func isHighSurrogate(u uint16) bool {
	return u >= 0xD800 && u <= 0xDBFF
}
