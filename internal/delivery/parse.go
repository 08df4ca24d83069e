package delivery

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/apperrors"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/codes"
)

// Report is the structured form of a delivery push. Payloads may carry only
// the correlation id (partial) or the id plus a final status (full);
// unpopulated fields stay zero.
type Report struct {
	ID             string     `json:"id"`
	SubmittedCount int        `json:"submitted_count"`
	DeliveredCount int        `json:"delivered_count"`
	SubmitDate     *time.Time `json:"submit_date,omitempty"`
	DoneDate       *time.Time `json:"done_date,omitempty"`
	FinalStatus    string     `json:"final_status,omitempty"`
	ErrorCode      string     `json:"error_code,omitempty"`
	TextSnippet    string     `json:"text_snippet,omitempty"`
}

// IsFinal reports whether the push carries a terminal status. A report
// holding only a correlation id is never terminal.
func (r Report) IsFinal() bool {
	return codes.IsFinalReportStatus(r.FinalStatus)
}

var (
	idRe         = regexp.MustCompile(`(?i)\bid:(\S+)`)
	subRe        = regexp.MustCompile(`(?i)\bsub:(\d+)`)
	dlvrdRe      = regexp.MustCompile(`(?i)\bdlvrd:(\d+)`)
	submitDateRe = regexp.MustCompile(`(?i)\bsubmit date:(\d{10,12})`)
	doneDateRe   = regexp.MustCompile(`(?i)\bdone date:(\d{10,12})`)
	statRe       = regexp.MustCompile(`(?i)\bstat:([A-Za-z]+)`)
	errRe        = regexp.MustCompile(`(?i)\berr:(\w+)`)
	textRe       = regexp.MustCompile(`(?i)\btext:(.*)$`)
)

const maxTextSnippet = 20

// ParseReport turns a loosely structured push payload into a partial Report.
// Only the correlation id is mandatory; everything else is best effort.
// Pure function, no side effects.
func ParseReport(raw string) (Report, error) {
	var r Report

	m := idRe.FindStringSubmatch(raw)
	if m == nil {
		return r, apperrors.Parsef("delivery push carries no extractable id: %q", snippet(raw))
	}
	r.ID = m[1]

	if m := subRe.FindStringSubmatch(raw); m != nil {
		r.SubmittedCount, _ = strconv.Atoi(m[1])
	}
	if m := dlvrdRe.FindStringSubmatch(raw); m != nil {
		r.DeliveredCount, _ = strconv.Atoi(m[1])
	}
	if m := submitDateRe.FindStringSubmatch(raw); m != nil {
		if t, ok := parseReportDate(m[1]); ok {
			r.SubmitDate = &t
		}
	}
	if m := doneDateRe.FindStringSubmatch(raw); m != nil {
		if t, ok := parseReportDate(m[1]); ok {
			r.DoneDate = &t
		}
	}
	if m := statRe.FindStringSubmatch(raw); m != nil {
		r.FinalStatus = strings.ToUpper(m[1])
	}
	if m := errRe.FindStringSubmatch(raw); m != nil {
		r.ErrorCode = m[1]
	}
	if m := textRe.FindStringSubmatch(raw); m != nil {
		r.TextSnippet = snippet(strings.TrimSpace(m[1]))
	}

	return r, nil
}

// parseReportDate accepts YYMMDDhhmm with optional seconds.
func parseReportDate(s string) (time.Time, bool) {
	layouts := []string{"0601021504", "060102150405"}
	for _, layout := range layouts {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func snippet(s string) string {
	runes := []rune(s)
	if len(runes) > maxTextSnippet {
		return string(runes[:maxTextSnippet])
	}
	return s
}
