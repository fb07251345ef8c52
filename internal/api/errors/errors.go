// Пакет errors — ответы с ошибками в едином формате RFP Desk:
// {"error": {"code": "...", "message": "..."}}.
package errors //nolint:revive // имя пакета совпадает со stdlib, импортируется как apierrors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
)

// Коды ошибок API.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeAnalysisFailed      = "ANALYSIS_FAILED"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeReconcileInProgress = "RECONCILE_IN_PROGRESS"
	CodeInternalError       = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{Code: code, Message: message},
	})
}

// WriteServiceError сопоставляет доменную ошибку HTTP-статусу:
//
//	ErrValidation        → 400 VALIDATION_ERROR
//	ErrNotFound          → 404 NOT_FOUND
//	ErrInvalidTransition → 409 INVALID_TRANSITION
//	ErrAnalysisFailed    → 500 ANALYSIS_FAILED
//	остальное            → 500 INTERNAL_ERROR
//
// Текст внутренних ошибок клиенту не отдаётся.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, model.ErrValidation):
		ValidationError(w, err.Error())
	case stderrors.Is(err, model.ErrNotFound):
		NotFound(w, err.Error())
	case stderrors.Is(err, model.ErrInvalidTransition):
		WriteError(w, http.StatusConflict, CodeInvalidTransition, err.Error())
	case stderrors.Is(err, model.ErrAnalysisFailed):
		WriteError(w, http.StatusInternalServerError, CodeAnalysisFailed, err.Error())
	default:
		InternalError(w, "Внутренняя ошибка сервера")
	}
}

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// FileTooLarge — 413 тело запроса превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// ReconcileInProgress — 409 сверка уже выполняется.
func ReconcileInProgress(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeReconcileInProgress, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
