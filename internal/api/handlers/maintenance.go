// maintenance.go — обработчик POST /maintenance/reconcile.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/rfpdesk/internal/api/errors"
	"github.com/bigkaa/rfpdesk/internal/service"
)

// ReconcileRunner запускает сверку.
type ReconcileRunner interface {
	// RunOnce выполняет сверку. Второе значение — сверка уже выполняется.
	RunOnce(ctx context.Context) (*service.ReconcileReport, bool, error)
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	reconciler ReconcileRunner
	logger     *slog.Logger
}

// NewMaintenanceHandler создаёт обработчик обслуживания.
func NewMaintenanceHandler(reconciler ReconcileRunner, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		reconciler: reconciler,
		logger:     logger.With(slog.String("component", "maintenance_handler")),
	}
}

// Reconcile выполняет сверку синхронно и возвращает отчёт.
// Если сверка уже идёт — 409 RECONCILE_IN_PROGRESS.
func (h *MaintenanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, inProgress, err := h.reconciler.RunOnce(r.Context())
	if inProgress {
		apierrors.ReconcileInProgress(w, "Сверка уже выполняется")
		return
	}
	if err != nil {
		h.logger.Error("Ошибка сверки", slog.String("error", err.Error()))
		apierrors.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
