// analysis.go — постановка анализа, синхронная проверка соответствия
// и снимки результатов.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/rfpdesk/internal/api/errors"
	"github.com/bigkaa/rfpdesk/internal/api/generated"
	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/storage/jobs"
)

// AnalysisScheduler ставит повторный анализ записи.
type AnalysisScheduler interface {
	Analyze(ctx context.Context, rfpID string) (*jobs.Job, error)
}

// ComplianceChecker выполняет синхронную проверку соответствия.
type ComplianceChecker interface {
	Check(ctx context.Context, rfpID string) (*model.AnalysisResult, error)
}

// SnapshotStore сохраняет и читает снимки результатов анализа.
type SnapshotStore interface {
	Save(ctx context.Context, snap *model.Snapshot) (string, error)
	List(ctx context.Context, rfpID string) ([]string, error)
	Read(ctx context.Context, name string) (*model.Snapshot, error)
}

// snapshotEntry — снимок вместе с именем его файла.
type snapshotEntry struct {
	Filename string `json:"filename"`
	*model.Snapshot
}

// AnalysisHandler — обработчик endpoints анализа.
type AnalysisHandler struct {
	scheduler  AnalysisScheduler
	compliance ComplianceChecker
	snapshots  SnapshotStore
	logger     *slog.Logger
}

// NewAnalysisHandler создаёт обработчик анализа.
func NewAnalysisHandler(
	scheduler AnalysisScheduler,
	compliance ComplianceChecker,
	snapshots SnapshotStore,
	logger *slog.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{
		scheduler:  scheduler,
		compliance: compliance,
		snapshots:  snapshots,
		logger:     logger.With(slog.String("component", "analysis_handler")),
	}
}

// AnalyzeRfp обрабатывает POST /rfps/{id}/analyze. Ответ 202 с id задачи.
func (h *AnalysisHandler) AnalyzeRfp(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.scheduler.Analyze(r.Context(), id)
	if err != nil {
		apierrors.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, generated.AnalyzeResponse{
		JobId:  job.JobID,
		RfpId:  job.RFPID,
		Status: string(job.Status),
	})
}

// ComplianceCheck обрабатывает POST /compliance-check.
func (h *AnalysisHandler) ComplianceCheck(w http.ResponseWriter, r *http.Request) {
	var req generated.ComplianceCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.compliance.Check(r.Context(), req.RfpId)
	if err != nil {
		apierrors.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SaveAnalysis обрабатывает POST /save-analysis.
func (h *AnalysisHandler) SaveAnalysis(w http.ResponseWriter, r *http.Request) {
	var snap model.Snapshot
	if !decodeJSON(w, r, &snap) {
		return
	}
	if snap.RFPID == "" {
		apierrors.ValidationError(w, "rfpId обязателен")
		return
	}

	name, err := h.snapshots.Save(r.Context(), &snap)
	if err != nil {
		h.logger.Error("Ошибка сохранения снимка",
			slog.String("rfp_id", snap.RFPID),
			slog.String("error", err.Error()),
		)
		apierrors.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generated.SaveAnalysisResponse{Success: true, Filename: name})
}

// ListRfpAnalyses обрабатывает GET /rfps/{id}/analyses.
func (h *AnalysisHandler) ListRfpAnalyses(w http.ResponseWriter, r *http.Request, id string) {
	if err := model.ValidateID(id); err != nil {
		apierrors.WriteServiceError(w, err)
		return
	}
	names, err := h.snapshots.List(r.Context(), id)
	if err != nil {
		apierrors.WriteServiceError(w, err)
		return
	}

	entries := make([]snapshotEntry, 0, len(names))
	for _, name := range names {
		snap, err := h.snapshots.Read(r.Context(), name)
		if err != nil {
			h.logger.Warn("Снимок пропущен",
				slog.String("file_name", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		entries = append(entries, snapshotEntry{Filename: name, Snapshot: snap})
	}
	writeJSON(w, http.StatusOK, entries)
}
