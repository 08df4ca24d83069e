package delivery

import (
	"testing"
	"time"

	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/apperrors"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/codes"
)

func TestParseReportFull(t *testing.T) {
	t.Parallel()

	raw := "id:ABC123 sub:001 dlvrd:001 submit date:2602021800 done date:2602021801 stat:DELIVRD err:000 text:Hello from the gateway"

	r, err := ParseReport(raw)
	if err != nil {
		t.Fatalf("ParseReport() error: %v", err)
	}
	if r.ID != "ABC123" {
		t.Errorf("ID = %q, want ABC123", r.ID)
	}
	if r.SubmittedCount != 1 || r.DeliveredCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", r.SubmittedCount, r.DeliveredCount)
	}
	wantSubmit := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)
	if r.SubmitDate == nil || !r.SubmitDate.Equal(wantSubmit) {
		t.Errorf("SubmitDate = %v, want %v", r.SubmitDate, wantSubmit)
	}
	wantDone := time.Date(2026, 2, 2, 18, 1, 0, 0, time.UTC)
	if r.DoneDate == nil || !r.DoneDate.Equal(wantDone) {
		t.Errorf("DoneDate = %v, want %v", r.DoneDate, wantDone)
	}
	if r.FinalStatus != codes.ReportStatusDelivered {
		t.Errorf("FinalStatus = %q, want DELIVRD", r.FinalStatus)
	}
	if r.ErrorCode != "000" {
		t.Errorf("ErrorCode = %q, want 000", r.ErrorCode)
	}
	if r.TextSnippet != "Hello from the gatew" {
		t.Errorf("TextSnippet = %q, want 20-rune prefix", r.TextSnippet)
	}
	if !r.IsFinal() {
		t.Error("expected a DELIVRD report to be final")
	}
}

func TestParseReportPartial(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		id   string
	}{
		{name: "bare id", raw: "id:XYZ789", id: "XYZ789"},
		{name: "id with submit date only", raw: "id:XYZ789 submit date:2602021800", id: "XYZ789"},
		{name: "case insensitive key", raw: "ID:XYZ789 SUB:002", id: "XYZ789"},
		{name: "non-final accepted status", raw: "id:XYZ789 stat:ACCEPTD", id: "XYZ789"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r, err := ParseReport(tc.raw)
			if err != nil {
				t.Fatalf("ParseReport(%q) error: %v", tc.raw, err)
			}
			if r.ID != tc.id {
				t.Errorf("ID = %q, want %q", r.ID, tc.id)
			}
			if r.IsFinal() {
				t.Errorf("ParseReport(%q) reported final, want partial", tc.raw)
			}
		})
	}
}

func TestParseReportFinalStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stat      string
		wantFinal bool
	}{
		{stat: "DELIVRD", wantFinal: true},
		{stat: "delivrd", wantFinal: true}, // normalized to upper case
		{stat: "EXPIRED", wantFinal: true},
		{stat: "DELETED", wantFinal: true},
		{stat: "UNDELIV", wantFinal: true},
		{stat: "REJECTD", wantFinal: true},
		{stat: "ACCEPTD", wantFinal: false},
		{stat: "UNKNOWN", wantFinal: false},
	}

	for _, tc := range tests {
		t.Run(tc.stat, func(t *testing.T) {
			t.Parallel()
			r, err := ParseReport("id:A1 stat:" + tc.stat)
			if err != nil {
				t.Fatalf("ParseReport() error: %v", err)
			}
			if r.IsFinal() != tc.wantFinal {
				t.Errorf("IsFinal() = %v for stat %q, want %v", r.IsFinal(), tc.stat, tc.wantFinal)
			}
		})
	}
}

func TestParseReportNoID(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"stat:DELIVRD sub:001",
		"completely free-form operator text",
	}

	for _, raw := range tests {
		if _, err := ParseReport(raw); !apperrors.IsKind(err, apperrors.KindParse) {
			t.Errorf("ParseReport(%q) error = %v, want parse error", raw, err)
		}
	}
}

func TestParseReportMalformedFieldsTolerated(t *testing.T) {
	t.Parallel()

	// Garbage in optional fields must not lose the correlation id.
	r, err := ParseReport("id:OK1 sub:xx submit date:99 stat:123 done date:notadate")
	if err != nil {
		t.Fatalf("ParseReport() error: %v", err)
	}
	if r.ID != "OK1" {
		t.Errorf("ID = %q, want OK1", r.ID)
	}
	if r.SubmitDate != nil || r.DoneDate != nil {
		t.Error("expected malformed dates to be dropped")
	}
	if r.FinalStatus != "" {
		t.Errorf("FinalStatus = %q, want empty for non-alpha stat", r.FinalStatus)
	}
}
