package generated

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// RfpId — идентификатор записи в пути.
type RfpId = string

// Filename — имя документа в пути.
type Filename = string

// ComplianceCheckRequest — тело POST /compliance-check.
type ComplianceCheckRequest struct {
	RfpId string `json:"rfpId"`
}

// SaveAnalysisResponse — ответ POST /save-analysis.
type SaveAnalysisResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
}

// AnalyzeResponse — ответ POST /rfps/{id}/analyze.
type AnalyzeResponse struct {
	JobId  string `json:"jobId"`
	RfpId  string `json:"rfpId"`
	Status string `json:"status"`
}

// DiskInfo — использование диска директорией данных.
type DiskInfo struct {
	TotalBytes     int64 `json:"totalBytes"`
	UsedBytes      int64 `json:"usedBytes"`
	AvailableBytes int64 `json:"availableBytes"`
}

// SystemInfo — ответ GET /info.
type SystemInfo struct {
	ServiceId       string    `json:"serviceId"`
	Version         string    `json:"version"`
	RecordBackend   string    `json:"recordBackend"`
	AssetBackend    string    `json:"assetBackend"`
	JobBackend      string    `json:"jobBackend"`
	AnalysisUrl     string    `json:"analysisUrl"`
	AnalysisWorkers int       `json:"analysisWorkers"`
	Disk            *DiskInfo `json:"disk,omitempty"`
}

// ServerInterface — обработчики всех операций API.
type ServerInterface interface {
	// (GET /rfps)
	ListRfps(w http.ResponseWriter, r *http.Request)
	// (POST /rfps)
	CreateOrMergeRfp(w http.ResponseWriter, r *http.Request)
	// (POST /save-rfp)
	SaveRfp(w http.ResponseWriter, r *http.Request)
	// (GET /rfps/{id})
	GetRfp(w http.ResponseWriter, r *http.Request, id RfpId)
	// (POST /rfps/{id}/analyze)
	AnalyzeRfp(w http.ResponseWriter, r *http.Request, id RfpId)
	// (GET /rfps/{id}/report)
	GetRfpReport(w http.ResponseWriter, r *http.Request, id RfpId)
	// (GET /rfps/{id}/analyses)
	ListRfpAnalyses(w http.ResponseWriter, r *http.Request, id RfpId)
	// (GET /pdf/{filename})
	GetPdf(w http.ResponseWriter, r *http.Request, filename Filename)
	// (POST /upload-pdf)
	UploadPdf(w http.ResponseWriter, r *http.Request)
	// (POST /compliance-check)
	ComplianceCheck(w http.ResponseWriter, r *http.Request)
	// (POST /save-analysis)
	SaveAnalysis(w http.ResponseWriter, r *http.Request)
	// (GET /stats)
	GetStats(w http.ResponseWriter, r *http.Request)
	// (POST /maintenance/reconcile)
	Reconcile(w http.ResponseWriter, r *http.Request)
	// (GET /info)
	GetSystemInfo(w http.ResponseWriter, r *http.Request)
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
	// (GET /openapi.json)
	GetOpenAPI(w http.ResponseWriter, r *http.Request)
}

// MiddlewareFunc — middleware отдельной операции.
type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper разбирает параметры запроса и вызывает ServerInterface.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError — параметр пути не удалось разобрать.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	handler := http.Handler(fn)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// bindPathParam разбирает обязательный параметр пути в стиле simple.
func (siw *ServerInterfaceWrapper) bindPathParam(w http.ResponseWriter, r *http.Request, name string, dest *string) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

func (siw *ServerInterfaceWrapper) ListRfps(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.ListRfps)
}

func (siw *ServerInterfaceWrapper) CreateOrMergeRfp(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreateOrMergeRfp)
}

func (siw *ServerInterfaceWrapper) SaveRfp(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.SaveRfp)
}

func (siw *ServerInterfaceWrapper) GetRfp(w http.ResponseWriter, r *http.Request) {
	var id RfpId
	if !siw.bindPathParam(w, r, "id", &id) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetRfp(w, r, id)
	})
}

func (siw *ServerInterfaceWrapper) AnalyzeRfp(w http.ResponseWriter, r *http.Request) {
	var id RfpId
	if !siw.bindPathParam(w, r, "id", &id) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.AnalyzeRfp(w, r, id)
	})
}

func (siw *ServerInterfaceWrapper) GetRfpReport(w http.ResponseWriter, r *http.Request) {
	var id RfpId
	if !siw.bindPathParam(w, r, "id", &id) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetRfpReport(w, r, id)
	})
}

func (siw *ServerInterfaceWrapper) ListRfpAnalyses(w http.ResponseWriter, r *http.Request) {
	var id RfpId
	if !siw.bindPathParam(w, r, "id", &id) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListRfpAnalyses(w, r, id)
	})
}

func (siw *ServerInterfaceWrapper) GetPdf(w http.ResponseWriter, r *http.Request) {
	var filename Filename
	if !siw.bindPathParam(w, r, "filename", &filename) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetPdf(w, r, filename)
	})
}

func (siw *ServerInterfaceWrapper) UploadPdf(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.UploadPdf)
}

func (siw *ServerInterfaceWrapper) ComplianceCheck(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.ComplianceCheck)
}

func (siw *ServerInterfaceWrapper) SaveAnalysis(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.SaveAnalysis)
}

func (siw *ServerInterfaceWrapper) GetStats(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetStats)
}

func (siw *ServerInterfaceWrapper) Reconcile(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.Reconcile)
}

func (siw *ServerInterfaceWrapper) GetSystemInfo(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetSystemInfo)
}

func (siw *ServerInterfaceWrapper) HealthLive(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthLive)
}

func (siw *ServerInterfaceWrapper) HealthReady(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthReady)
}

func (siw *ServerInterfaceWrapper) GetMetrics(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetMetrics)
}

func (siw *ServerInterfaceWrapper) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetOpenAPI)
}

// ChiServerOptions — параметры HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler создаёт http.Handler с маршрутами для si.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerFromMux регистрирует маршруты si в переданном роутере.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions регистрирует маршруты с дополнительными параметрами.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}
	base := options.BaseURL

	r.Group(func(r chi.Router) {
		r.Get(base+"/rfps", wrapper.ListRfps)
		r.Post(base+"/rfps", wrapper.CreateOrMergeRfp)
		r.Post(base+"/save-rfp", wrapper.SaveRfp)
		r.Get(base+"/rfps/{id}", wrapper.GetRfp)
		r.Post(base+"/rfps/{id}/analyze", wrapper.AnalyzeRfp)
		r.Get(base+"/rfps/{id}/report", wrapper.GetRfpReport)
		r.Get(base+"/rfps/{id}/analyses", wrapper.ListRfpAnalyses)
		r.Get(base+"/pdf/{filename}", wrapper.GetPdf)
		r.Post(base+"/upload-pdf", wrapper.UploadPdf)
		r.Post(base+"/compliance-check", wrapper.ComplianceCheck)
		r.Post(base+"/save-analysis", wrapper.SaveAnalysis)
		r.Get(base+"/stats", wrapper.GetStats)
		r.Post(base+"/maintenance/reconcile", wrapper.Reconcile)
		r.Get(base+"/info", wrapper.GetSystemInfo)
		r.Get(base+"/health/live", wrapper.HealthLive)
		r.Get(base+"/health/ready", wrapper.HealthReady)
		r.Get(base+"/metrics", wrapper.GetMetrics)
		r.Get(base+"/openapi.json", wrapper.GetOpenAPI)
	})
	return r
}
