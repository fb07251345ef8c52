// system.go — GET /info и GET /openapi.json.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/rfpdesk/internal/api/errors"
	"github.com/bigkaa/rfpdesk/internal/api/generated"
	"github.com/bigkaa/rfpdesk/internal/config"
)

// DiskUsageFunc возвращает использование диска для директории.
type DiskUsageFunc func(path string) (*generated.DiskInfo, error)

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	cfg       *config.Config
	diskUsage DiskUsageFunc
	logger    *slog.Logger
}

// NewSystemHandler создаёт обработчик системных endpoints.
// diskUsage может быть nil — тогда disk в ответе отсутствует.
func NewSystemHandler(cfg *config.Config, diskUsage DiskUsageFunc, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{
		cfg:       cfg,
		diskUsage: diskUsage,
		logger:    logger.With(slog.String("component", "system_handler")),
	}
}

// GetSystemInfo обрабатывает GET /info.
func (h *SystemHandler) GetSystemInfo(w http.ResponseWriter, _ *http.Request) {
	resp := generated.SystemInfo{
		ServiceId:       h.cfg.ServiceID,
		Version:         config.Version,
		RecordBackend:   h.cfg.RecordBackend,
		AssetBackend:    h.cfg.AssetBackend,
		JobBackend:      h.cfg.JobBackend,
		AnalysisUrl:     h.cfg.AnalysisURL,
		AnalysisWorkers: h.cfg.AnalysisWorkers,
	}

	if h.diskUsage != nil {
		disk, err := h.diskUsage(h.cfg.DataDir)
		if err != nil {
			h.logger.Warn("Не удалось получить использование диска", slog.String("error", err.Error()))
		} else {
			resp.Disk = disk
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOpenAPI обрабатывает GET /openapi.json.
func (h *SystemHandler) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	doc, err := generated.GetSwagger()
	if err != nil {
		h.logger.Error("OpenAPI документ недоступен", slog.String("error", err.Error()))
		apierrors.InternalError(w, "OpenAPI документ недоступен")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
