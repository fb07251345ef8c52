package analysis

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
)

// matchMarker — отметка выполненного требования в текстовом отчёте.
const matchMarker = "✅"

// mismatchMarker — отметка невыполненного требования.
const mismatchMarker = "❌"

// wireResponse — объединение обоих форматов ответа сервиса анализа:
// структурированного JSON и текстового отчёта {"report": "..."}.
type wireResponse struct {
	Status      string                `json:"status"`
	Eligibility *model.Eligibility    `json:"eligibility"`
	Matches     []model.Requirement   `json:"matches"`
	Mismatches  []model.Requirement   `json:"mismatches"`
	Checklist   []model.ChecklistItem `json:"checklist"`
	Risks       []model.Risk          `json:"risks"`
	Report      *string               `json:"report"`
	Error       string                `json:"error"`
}

func (w *wireResponse) structured() bool {
	return w.Eligibility != nil || w.Matches != nil || w.Mismatches != nil ||
		w.Checklist != nil || w.Risks != nil
}

// Parse нормализует тело ответа сервиса анализа.
//
// Поддерживаемые форматы:
//   - JSON с полями eligibility/matches/mismatches/checklist/risks — структурированный результат;
//   - JSON {"report": "..."} или text/plain — построчный отчёт
//     "Требование | ... | ✅ Match".
//
// Ошибка оборачивает model.ErrAnalysisFailed.
func Parse(contentType string, body []byte) (*model.AnalysisResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: пустой ответ сервиса анализа", model.ErrAnalysisFailed)
	}

	if trimmed[0] != '{' {
		if strings.Contains(contentType, "json") {
			return nil, fmt.Errorf("%w: ожидался JSON-объект в ответе сервиса анализа", model.ErrAnalysisFailed)
		}
		return ParseReport(string(trimmed))
	}

	var w wireResponse
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, fmt.Errorf("%w: некорректный JSON ответа: %v", model.ErrAnalysisFailed, err)
	}

	switch {
	case w.structured():
		return fromStructured(&w), nil
	case w.Report != nil:
		return ParseReport(*w.Report)
	case w.Error != "":
		return nil, fmt.Errorf("%w: %s", model.ErrAnalysisFailed, w.Error)
	default:
		return nil, fmt.Errorf("%w: ответ не содержит результатов анализа", model.ErrAnalysisFailed)
	}
}

func fromStructured(w *wireResponse) *model.AnalysisResult {
	result := &model.AnalysisResult{
		Checklist: w.Checklist,
		Risks:     w.Risks,
	}
	if w.Eligibility != nil {
		result.Eligibility = *w.Eligibility
	}
	if w.Matches != nil {
		result.Eligibility.Matches = w.Matches
	}
	if w.Mismatches != nil {
		result.Eligibility.Mismatches = w.Mismatches
	}
	if result.Checklist == nil {
		result.Checklist = []model.ChecklistItem{}
	}
	if result.Risks == nil {
		result.Risks = []model.Risk{}
	}
	if result.Eligibility.Matches == nil {
		result.Eligibility.Matches = []model.Requirement{}
	}
	if result.Eligibility.Mismatches == nil {
		result.Eligibility.Mismatches = []model.Requirement{}
	}

	result.Status = deriveStatus(result.Eligibility, status.Complete)
	if st, err := status.Parse(w.Status); err == nil && st.IsTerminal() && st != status.AnalysisFailed {
		result.Status = st
	}
	return result
}

// ParseReport разбирает текстовый отчёт о соответствии. Строка вида
//
//	Years in Business | Company: 5 | RFP: >= 3 | ✅ Match
//
// даёт требование "Years in Business" с деталями "Company: 5 | RFP: >= 3".
// Строка из двух колонок "requirement | details" без колонки вердикта
// оценивается по отметке ✅ в деталях.
// Пустые строки и заголовки ("--- ... ---") пропускаются.
func ParseReport(text string) (*model.AnalysisResult, error) {
	result := &model.AnalysisResult{
		Eligibility: model.Eligibility{
			Matches:    []model.Requirement{},
			Mismatches: []model.Requirement{},
		},
		Checklist: []model.ChecklistItem{},
		Risks:     []model.Risk{},
		Report:    text,
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), maxResponseSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "---") {
			continue
		}

		req, matched := parseLine(line)
		if matched {
			result.Eligibility.Matches = append(result.Eligibility.Matches, req)
		} else {
			result.Eligibility.Mismatches = append(result.Eligibility.Mismatches, req)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: чтение отчёта: %v", model.ErrAnalysisFailed, err)
	}

	if len(result.Eligibility.Matches) == 0 && len(result.Eligibility.Mismatches) == 0 {
		return nil, fmt.Errorf("%w: отчёт не содержит требований", model.ErrAnalysisFailed)
	}

	result.Status = deriveStatus(result.Eligibility, status.Complete)
	return result, nil
}

func parseLine(line string) (model.Requirement, bool) {
	segments := strings.Split(line, "|")
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}

	req := model.Requirement{Requirement: segments[0]}
	matched := strings.Contains(line, matchMarker)
	if len(segments) == 1 {
		req.Status = verdictWord(matched)
		return req, matched
	}

	rest := segments[1:]
	if word, ok := statusColumn(rest[len(rest)-1]); ok {
		rest = rest[:len(rest)-1]
		if word != "" {
			req.Status = word
			matched = matched || strings.EqualFold(word, "match")
		}
	}
	if len(rest) > 0 {
		details := strings.Join(rest, " | ")
		details = strings.NewReplacer(matchMarker, "", mismatchMarker, "").Replace(details)
		req.Details = strings.TrimSpace(details)
	}
	if req.Status == "" {
		req.Status = verdictWord(matched)
	}
	return req, matched
}

// statusColumn распознаёт отдельную колонку вердикта: "✅ Match", "❌",
// "Mismatch". Возвращает слово вердикта без отметки (может быть пустым).
func statusColumn(col string) (string, bool) {
	word := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(col, matchMarker), mismatchMarker))
	switch {
	case word == "":
		return "", col != ""
	case strings.EqualFold(word, "match"), strings.EqualFold(word, "mismatch"):
		return word, true
	}
	return "", false
}

func verdictWord(matched bool) string {
	if matched {
		return "Match"
	}
	return "Mismatch"
}

// deriveStatus — вердикт по результатам проверки: любое несоответствие
// даёт Not Eligible, только совпадения — Eligible, пустой результат — fallback.
func deriveStatus(e model.Eligibility, fallback status.Status) status.Status {
	switch {
	case len(e.Mismatches) > 0:
		return status.NotEligible
	case len(e.Matches) > 0:
		return status.Eligible
	default:
		return fallback
	}
}

func jsonErrorField(data []byte) string {
	var v struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(data, &v); err != nil || v.Error == nil {
		return ""
	}
	switch e := v.Error.(type) {
	case string:
		return e
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	return ""
}
