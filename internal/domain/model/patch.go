package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/bigkaa/rfpdesk/internal/domain/status"
)

// Patch — частичное обновление записи. Поле со значением nil
// считается отсутствующим и не меняет запись.
type Patch struct {
	ID              string            `json:"id"`
	Name            *string           `json:"name,omitempty"`
	Company         *string           `json:"company,omitempty"`
	Status          *status.Status    `json:"status,omitempty"`
	Date            *time.Time        `json:"date,omitempty"`
	PDFFileName     *string           `json:"pdfFileName,omitempty"`
	CompanyFileName *string           `json:"companyFileName,omitempty"`
	Eligibility     *EligibilityPatch `json:"eligibility,omitempty"`
	Checklist       *[]ChecklistItem  `json:"checklist,omitempty"`
	Risks           *[]Risk           `json:"risks,omitempty"`
	Error           *string           `json:"error,omitempty"`

	// Analysis — устаревший вложенный формат результатов анализа.
	// Используется только если соответствующие поля верхнего уровня не заданы.
	Analysis *LegacyAnalysis `json:"analysis,omitempty"`
}

// EligibilityPatch — частичное обновление eligibility.
// matches и mismatches заменяются целиком, если заданы.
type EligibilityPatch struct {
	Matches    *[]Requirement `json:"matches,omitempty"`
	Mismatches *[]Requirement `json:"mismatches,omitempty"`
}

// LegacyAnalysis — результаты анализа во вложенном объекте analysis.
type LegacyAnalysis struct {
	Matches    *[]Requirement   `json:"matches,omitempty"`
	Mismatches *[]Requirement   `json:"mismatches,omitempty"`
	Checklist  *[]ChecklistItem `json:"checklist,omitempty"`
	Risks      *[]Risk          `json:"risks,omitempty"`
}

// resolveLegacy переносит поля из analysis в поля верхнего уровня,
// если последние не заданы.
func (p *Patch) resolveLegacy() {
	a := p.Analysis
	if a == nil {
		return
	}
	if a.Matches != nil || a.Mismatches != nil {
		if p.Eligibility == nil {
			p.Eligibility = &EligibilityPatch{}
		}
		if p.Eligibility.Matches == nil {
			p.Eligibility.Matches = a.Matches
		}
		if p.Eligibility.Mismatches == nil {
			p.Eligibility.Mismatches = a.Mismatches
		}
	}
	if p.Checklist == nil {
		p.Checklist = a.Checklist
	}
	if p.Risks == nil {
		p.Risks = a.Risks
	}
	p.Analysis = nil
}

// NewRecord создаёт запись из патча. Обязательны id, name и company.
// Отсутствующие коллекции становятся пустыми массивами, date — текущим
// временем, status — Pending.
func NewRecord(p Patch, now time.Time) (*RFP, error) {
	if err := ValidateID(p.ID); err != nil {
		return nil, err
	}

	var missing []string
	if p.Name == nil || strings.TrimSpace(*p.Name) == "" {
		missing = append(missing, "name")
	}
	if p.Company == nil || strings.TrimSpace(*p.Company) == "" {
		missing = append(missing, "company")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: не заданы обязательные поля: %s", ErrValidation, strings.Join(missing, ", "))
	}

	rec := &RFP{
		ID:     p.ID,
		Status: status.Pending,
		Date:   now,
	}
	if p.Date != nil && !p.Date.IsZero() {
		rec.Date = *p.Date
	}
	p.Date = nil

	p.Apply(rec, now)
	return rec, nil
}

// Apply применяет патч к существующей записи: каждое заданное поле
// верхнего уровня перезаписывается, eligibility объединяется поверхностно.
// id и date записи не меняются.
func (p *Patch) Apply(rec *RFP, now time.Time) {
	p.resolveLegacy()

	if p.Name != nil {
		rec.Name = *p.Name
	}
	if p.Company != nil {
		rec.Company = *p.Company
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.PDFFileName != nil {
		rec.PDFFileName = *p.PDFFileName
	}
	if p.CompanyFileName != nil {
		rec.CompanyFileName = *p.CompanyFileName
	}
	if p.Eligibility != nil {
		if p.Eligibility.Matches != nil {
			rec.Eligibility.Matches = *p.Eligibility.Matches
		}
		if p.Eligibility.Mismatches != nil {
			rec.Eligibility.Mismatches = *p.Eligibility.Mismatches
		}
	}
	if p.Checklist != nil {
		rec.Checklist = *p.Checklist
	}
	if p.Risks != nil {
		rec.Risks = *p.Risks
	}
	if p.Error != nil {
		rec.Error = *p.Error
	}

	rec.UpdatedAt = now
	rec.Normalize()
}

// Ptr возвращает указатель на значение. Упрощает сборку патчей.
func Ptr[T any](v T) *T {
	return &v
}
