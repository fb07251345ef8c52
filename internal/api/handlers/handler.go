// handler.go — APIHandler реализует generated.ServerInterface,
// делегируя вызовы в отдельные handler'ы по доменам.
package handlers

import (
	"net/http"

	"github.com/bigkaa/rfpdesk/internal/api/generated"
)

// APIHandler — единая реализация ServerInterface.
type APIHandler struct {
	rfps        *RFPHandler
	files       *FilesHandler
	analysis    *AnalysisHandler
	maintenance *MaintenanceHandler
	system      *SystemHandler
	health      *HealthHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	rfps *RFPHandler,
	files *FilesHandler,
	analysis *AnalysisHandler,
	maintenance *MaintenanceHandler,
	system *SystemHandler,
	health *HealthHandler,
) *APIHandler {
	return &APIHandler{
		rfps:        rfps,
		files:       files,
		analysis:    analysis,
		maintenance: maintenance,
		system:      system,
		health:      health,
	}
}

// --- Records ---

func (h *APIHandler) ListRfps(w http.ResponseWriter, r *http.Request) {
	h.rfps.ListRfps(w, r)
}

func (h *APIHandler) CreateOrMergeRfp(w http.ResponseWriter, r *http.Request) {
	h.rfps.CreateOrMerge(w, r)
}

func (h *APIHandler) SaveRfp(w http.ResponseWriter, r *http.Request) {
	h.rfps.CreateOrMerge(w, r)
}

func (h *APIHandler) GetRfp(w http.ResponseWriter, r *http.Request, id generated.RfpId) {
	h.rfps.GetRfp(w, r, id)
}

func (h *APIHandler) GetRfpReport(w http.ResponseWriter, r *http.Request, id generated.RfpId) {
	h.rfps.GetRfpReport(w, r, id)
}

func (h *APIHandler) ListRfpAnalyses(w http.ResponseWriter, r *http.Request, id generated.RfpId) {
	h.analysis.ListRfpAnalyses(w, r, id)
}

func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.rfps.GetStats(w, r)
}

// --- Documents ---

func (h *APIHandler) GetPdf(w http.ResponseWriter, r *http.Request, filename generated.Filename) {
	h.files.GetPdf(w, r, filename)
}

func (h *APIHandler) UploadPdf(w http.ResponseWriter, r *http.Request) {
	h.files.UploadPdf(w, r)
}

// --- Analysis ---

func (h *APIHandler) AnalyzeRfp(w http.ResponseWriter, r *http.Request, id generated.RfpId) {
	h.analysis.AnalyzeRfp(w, r, id)
}

func (h *APIHandler) ComplianceCheck(w http.ResponseWriter, r *http.Request) {
	h.analysis.ComplianceCheck(w, r)
}

func (h *APIHandler) SaveAnalysis(w http.ResponseWriter, r *http.Request) {
	h.analysis.SaveAnalysis(w, r)
}

// --- Maintenance ---

func (h *APIHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.maintenance.Reconcile(w, r)
}

// --- System ---

func (h *APIHandler) GetSystemInfo(w http.ResponseWriter, r *http.Request) {
	h.system.GetSystemInfo(w, r)
}

func (h *APIHandler) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	h.system.GetOpenAPI(w, r)
}

// --- Health ---

func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ generated.ServerInterface = (*APIHandler)(nil)
