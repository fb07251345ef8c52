package service

import (
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
)

func TestRenderReport(t *testing.T) {
	rec := &model.RFP{
		ID:      "r1",
		Name:    "Bridge Repair",
		Company: "Acme",
		Status:  status.NotEligible,
		Date:    time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC),
		Eligibility: model.Eligibility{
			Matches:    []model.Requirement{{Requirement: "Years in Business", Details: "Company: 5 | RFP: >= 3"}},
			Mismatches: []model.Requirement{{Requirement: "ISO 9001"}},
		},
		Checklist: []model.ChecklistItem{{Item: "Bid bond", Status: "pending"}},
		Risks: []model.Risk{
			{Clause: "Penalties", Risk: "High", Suggestion: "Cap liability"},
			{Clause: "Payment terms", Risk: "Low", Suggestion: "Accept"},
		},
	}

	got := RenderReport(rec)
	want := []string{
		"RFP ANALYSIS REPORT",
		"RFP Name: Bridge Repair",
		"Company: Acme",
		"Status: Not Eligible",
		"Date: 2026-03-05",
		"Matched Requirements:\n- Years in Business (Company: 5 | RFP: >= 3)\n",
		"Unmatched Requirements:\n- ISO 9001\n",
		"- Bid bond: PENDING",
		"- Penalties (High Risk)\n  Suggestion: Cap liability\n\n- Payment terms (Low Risk)",
	}
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("в отчёте нет %q:\n%s", w, got)
		}
	}
	if strings.Contains(got, "Error:") {
		t.Error("строка Error не должна выводиться без ошибки")
	}
}

func TestReportFileName(t *testing.T) {
	tests := []struct {
		name, id, want string
	}{
		{"Bridge Repair 2026", "r1", "bridge-repair-2026-report.txt"},
		{"  City/Hall: Phase #2 ", "r2", "cityhall-phase-2-report.txt"},
		{"!!!", "r3", "r3-report.txt"},
	}
	for _, tt := range tests {
		if got := ReportFileName(&model.RFP{ID: tt.id, Name: tt.name}); got != tt.want {
			t.Errorf("ReportFileName(%q): ожидалось %q, получено %q", tt.name, tt.want, got)
		}
	}
}
