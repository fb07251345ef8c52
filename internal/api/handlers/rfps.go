// rfps.go — обработчики записей: список, чтение, создание/слияние,
// статистика и текстовый отчёт.
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/rfpdesk/internal/api/errors"
	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/service"
)

// RFPHandler — обработчик endpoints записей.
type RFPHandler struct {
	records *service.RecordService
	logger  *slog.Logger
}

// NewRFPHandler создаёт обработчик записей.
func NewRFPHandler(records *service.RecordService, logger *slog.Logger) *RFPHandler {
	return &RFPHandler{
		records: records,
		logger:  logger.With(slog.String("component", "rfp_handler")),
	}
}

// ListRfps обрабатывает GET /rfps. Повреждённые записи пропускаются.
func (h *RFPHandler) ListRfps(w http.ResponseWriter, r *http.Request) {
	recs, err := h.records.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка записей", slog.String("error", err.Error()))
		apierrors.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// GetRfp обрабатывает GET /rfps/{id}.
func (h *RFPHandler) GetRfp(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.records.Get(r.Context(), id)
	if err != nil {
		apierrors.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateOrMerge обрабатывает POST /rfps и POST /save-rfp.
// 201 — запись создана, 200 — слита с существующей.
func (h *RFPHandler) CreateOrMerge(w http.ResponseWriter, r *http.Request) {
	var patch model.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}

	rec, created, err := h.records.CreateOrMerge(r.Context(), patch)
	if err != nil {
		apierrors.WriteServiceError(w, err)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, rec)
}

// GetStats обрабатывает GET /stats.
func (h *RFPHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.records.Stats(r.Context())
	if err != nil {
		apierrors.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetRfpReport обрабатывает GET /rfps/{id}/report: текстовый отчёт вложением.
func (h *RFPHandler) GetRfpReport(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.records.Get(r.Context(), id)
	if err != nil {
		apierrors.WriteServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.ReportFileName(rec)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(service.RenderReport(rec)))
}
