// report.go — текстовый отчёт по записи для выгрузки.
package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
)

const reportDateLayout = "2006-01-02"

var (
	slugStrip = regexp.MustCompile(`[^\w\s-]`)
	slugSpace = regexp.MustCompile(`\s+`)
)

// RenderReport формирует текстовый отчёт: заголовок, соответствие
// требованиям, чек-лист подачи и риски.
func RenderReport(rec *model.RFP) string {
	var b strings.Builder

	b.WriteString("RFP ANALYSIS REPORT\n")
	b.WriteString("===================\n\n")
	fmt.Fprintf(&b, "RFP Name: %s\n", rec.Name)
	fmt.Fprintf(&b, "Company: %s\n", rec.Company)
	fmt.Fprintf(&b, "Status: %s\n", rec.Status)
	fmt.Fprintf(&b, "Date: %s\n", rec.Date.Format(reportDateLayout))
	if rec.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", rec.Error)
	}

	b.WriteString("\nELIGIBILITY ASSESSMENT\n")
	b.WriteString("---------------------\n")
	b.WriteString("Matched Requirements:\n")
	writeRequirements(&b, rec.Eligibility.Matches)
	b.WriteString("\nUnmatched Requirements:\n")
	writeRequirements(&b, rec.Eligibility.Mismatches)

	b.WriteString("\nSUBMISSION CHECKLIST\n")
	b.WriteString("-------------------\n")
	for _, item := range rec.Checklist {
		fmt.Fprintf(&b, "- %s: %s\n", item.Item, strings.ToUpper(item.Status))
	}

	b.WriteString("\nRISK ANALYSIS\n")
	b.WriteString("------------\n")
	risks := make([]string, 0, len(rec.Risks))
	for _, r := range rec.Risks {
		risks = append(risks, fmt.Sprintf("- %s (%s Risk)\n  Suggestion: %s", r.Clause, r.Risk, r.Suggestion))
	}
	b.WriteString(strings.Join(risks, "\n\n"))
	if len(risks) > 0 {
		b.WriteString("\n")
	}

	return b.String()
}

func writeRequirements(b *strings.Builder, reqs []model.Requirement) {
	for _, r := range reqs {
		if r.Details != "" {
			fmt.Fprintf(b, "- %s (%s)\n", r.Requirement, r.Details)
			continue
		}
		fmt.Fprintf(b, "- %s\n", r.Requirement)
	}
}

// ReportFileName — имя файла отчёта: slug имени записи + "-report.txt".
// Пустой slug заменяется id записи.
func ReportFileName(rec *model.RFP) string {
	slug := slugStrip.ReplaceAllString(rec.Name, "")
	slug = slugSpace.ReplaceAllString(strings.TrimSpace(slug), "-")
	slug = strings.ToLower(slug)
	if slug == "" {
		slug = rec.ID
	}
	return slug + "-report.txt"
}
