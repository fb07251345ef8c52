package model

import (
	"encoding/json"
	"time"

	"github.com/bigkaa/rfpdesk/internal/domain/status"
)

// AnalysisResult — нормализованный результат сервиса анализа.
type AnalysisResult struct {
	Status      status.Status   `json:"status"`
	Eligibility Eligibility     `json:"eligibility"`
	Checklist   []ChecklistItem `json:"checklist"`
	Risks       []Risk          `json:"risks"`
	// Report — исходный текстовый отчёт, если сервис вернул текст
	Report string `json:"report,omitempty"`
}

// Patch формирует патч записи из результата анализа.
// Ошибка предыдущего анализа сбрасывается.
func (a *AnalysisResult) Patch(id string) Patch {
	matches := nonNil(a.Eligibility.Matches)
	mismatches := nonNil(a.Eligibility.Mismatches)
	checklist := a.Checklist
	if checklist == nil {
		checklist = []ChecklistItem{}
	}
	risks := a.Risks
	if risks == nil {
		risks = []Risk{}
	}
	st := a.Status
	return Patch{
		ID:     id,
		Status: &st,
		Eligibility: &EligibilityPatch{
			Matches:    &matches,
			Mismatches: &mismatches,
		},
		Checklist: &checklist,
		Risks:     &risks,
		Error:     Ptr(""),
	}
}

// FailurePatch — патч записи при ошибке анализа. Меняет только статус
// и причину ошибки, результаты предыдущего анализа сохраняются.
func FailurePatch(id string, cause error) Patch {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return Patch{
		ID:     id,
		Status: Ptr(status.AnalysisFailed),
		Error:  &msg,
	}
}

// Snapshot — снимок результатов анализа (analysis_{rfpId}_{ms}.json).
type Snapshot struct {
	RFPID       string          `json:"rfpId"`
	Analysis    any             `json:"analysis"`
	Timestamp   string          `json:"timestamp"`
	Checklist   []ChecklistItem `json:"checklist"`
	Eligibility Eligibility     `json:"eligibility"`
	// SavedAt — время записи снимка на сервере
	SavedAt time.Time `json:"savedAt"`
}

// FillFromAnalysis переносит checklist и eligibility из вложенного
// объекта analysis, если на верхнем уровне они не заданы.
func (s *Snapshot) FillFromAnalysis() {
	needChecklist := s.Checklist == nil
	needEligibility := s.Eligibility.Matches == nil && s.Eligibility.Mismatches == nil
	if s.Analysis == nil || (!needChecklist && !needEligibility) {
		return
	}

	data, err := json.Marshal(s.Analysis)
	if err != nil {
		return
	}
	var view struct {
		Checklist   []ChecklistItem `json:"checklist"`
		Eligibility *Eligibility    `json:"eligibility"`
	}
	// analysis — произвольный JSON; чужая форма просто не даёт полей
	if json.Unmarshal(data, &view) != nil {
		return
	}
	if needChecklist {
		s.Checklist = view.Checklist
	}
	if needEligibility && view.Eligibility != nil {
		s.Eligibility = *view.Eligibility
	}
}

func nonNil(r []Requirement) []Requirement {
	if r == nil {
		return []Requirement{}
	}
	return r
}
