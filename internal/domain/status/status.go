// Пакет status — замкнутый набор статусов RFP и матрица допустимых переходов.
//
// Жизненный цикл записи:
//   - Pending → Analyzing → {Eligible, Not Eligible, Complete, Analysis Failed}
//   - из любого итогового статуса возможен повторный анализ (→ Analyzing)
//   - Analysis Failed → Pending — сброс после ошибки
//
// Переход в тот же статус допустим всегда (повторное сохранение записи).
package status

import (
	"fmt"
	"strings"
)

// Status — статус RFP-записи.
type Status string

const (
	// Pending — запись создана, анализ ещё не запускался
	Pending Status = "Pending"
	// Analyzing — документы отправлены в сервис анализа
	Analyzing Status = "Analyzing"
	// Eligible — все требования выполнены
	Eligible Status = "Eligible"
	// NotEligible — есть хотя бы одно несоответствие
	NotEligible Status = "Not Eligible"
	// Complete — анализ завершён без вердикта о соответствии
	Complete Status = "Complete"
	// AnalysisFailed — анализ завершился ошибкой
	AnalysisFailed Status = "Analysis Failed"
)

// Коды ошибок перехода.
const (
	CodeUnknownStatus     = "UNKNOWN_STATUS"
	CodeInvalidTransition = "INVALID_TRANSITION"
)

// ordered — порядок статусов для вывода (статистика, сообщения об ошибках).
var ordered = []Status{Pending, Analyzing, Eligible, NotEligible, Complete, AnalysisFailed}

// validTransitions — матрица допустимых переходов.
// Ключ — текущий статус, значение — набор допустимых целевых статусов.
var validTransitions = map[Status]map[Status]bool{
	Pending:        {Analyzing: true, AnalysisFailed: true},
	Analyzing:      {Eligible: true, NotEligible: true, Complete: true, AnalysisFailed: true},
	Eligible:       {Analyzing: true, Complete: true, NotEligible: true},
	NotEligible:    {Analyzing: true, Complete: true, Eligible: true},
	Complete:       {Analyzing: true, Eligible: true, NotEligible: true},
	AnalysisFailed: {Analyzing: true, Pending: true},
}

// terminal — статусы, на которых опрос прекращается.
var terminal = map[Status]bool{
	Eligible:       true,
	NotEligible:    true,
	Complete:       true,
	AnalysisFailed: true,
}

// All возвращает все статусы в каноническом порядке.
func All() []Status {
	result := make([]Status, len(ordered))
	copy(result, ordered)
	return result
}

// Valid проверяет принадлежность статуса замкнутому набору.
func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal — true для итоговых статусов (дальнейший опрос не нужен).
func (s Status) IsTerminal() bool {
	return terminal[s]
}

// String реализует fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// Parse преобразует строку в Status.
// Возвращает *TransitionError с кодом UNKNOWN_STATUS для значений вне набора.
func Parse(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", &TransitionError{
			Code:    CodeUnknownStatus,
			Message: fmt.Sprintf("недопустимый статус %q, допустимые: %s", s, joined()),
		}
	}
	return st, nil
}

// CanTransition проверяет допустимость перехода from → to.
func CanTransition(from, to Status) bool {
	if from == to {
		return from.Valid()
	}
	transitions, ok := validTransitions[from]
	if !ok {
		return false
	}
	return transitions[to]
}

// CheckTransition возвращает ошибку, если переход from → to недопустим.
//
// Ошибки:
//   - UNKNOWN_STATUS — целевой статус вне набора
//   - INVALID_TRANSITION — переход запрещён матрицей
//
// Исходный статус вне набора (запись из старой версии) не блокирует переход
// в допустимый целевой статус.
func CheckTransition(from, to Status) error {
	if !to.Valid() {
		return &TransitionError{
			Code:    CodeUnknownStatus,
			Message: fmt.Sprintf("недопустимый статус %q, допустимые: %s", to, joined()),
		}
	}
	if !from.Valid() {
		return nil
	}
	if !CanTransition(from, to) {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("переход %s → %s недопустим, допустимые из %s: %s", from, to, from, joinStatuses(Allowed(from))),
		}
	}
	return nil
}

// Allowed возвращает целевые статусы, допустимые из from (без самого from).
func Allowed(from Status) []Status {
	transitions := validTransitions[from]
	result := make([]Status, 0, len(transitions))
	for _, s := range ordered {
		if transitions[s] {
			result = append(result, s)
		}
	}
	return result
}

// TransitionError — ошибка смены статуса.
type TransitionError struct {
	Code    string // Машиночитаемый код (UNKNOWN_STATUS, INVALID_TRANSITION)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func joined() string {
	return joinStatuses(ordered)
}

func joinStatuses(list []Status) string {
	names := make([]string, len(list))
	for i, s := range list {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
