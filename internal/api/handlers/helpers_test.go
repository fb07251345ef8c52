package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/rfpdesk/internal/analysis"
	"github.com/bigkaa/rfpdesk/internal/api/generated"
	"github.com/bigkaa/rfpdesk/internal/api/middleware"
	"github.com/bigkaa/rfpdesk/internal/config"
	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/server"
	"github.com/bigkaa/rfpdesk/internal/service"
	"github.com/bigkaa/rfpdesk/internal/storage/filestore"
	"github.com/bigkaa/rfpdesk/internal/storage/jobs"
	"github.com/bigkaa/rfpdesk/internal/storage/recordstore"
	"github.com/bigkaa/rfpdesk/internal/storage/snapshot"
)

// testMaxUpload — предел загрузки в тестовом окружении.
const testMaxUpload = 1 << 20

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockAnalysisBody — структурированный ответ сервиса анализа.
const mockAnalysisBody = `{
	"matches": [{"requirement": "ISO 9001", "status": "Match"}],
	"mismatches": [],
	"checklist": [{"item": "Форма заявки", "status": "Ready"}],
	"risks": [{"clause": "5.1", "risk": "High", "suggestion": "Ограничить ответственность"}]
}`

// apiEnv — полный HTTP-стек на файловых хранилищах и mock сервисе анализа.
type apiEnv struct {
	dir     string
	srv     *httptest.Server
	records *service.RecordService

	// analysisCode — HTTP-статус ответа mock сервиса анализа
	analysisCode  atomic.Int32
	analysisCalls atomic.Int32
	// done получает rfp_id каждой завершённой задачи анализа
	done chan string
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	env := &apiEnv{dir: t.TempDir(), done: make(chan string, 8)}
	env.analysisCode.Store(http.StatusOK)
	logger := testLogger()

	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		env.analysisCalls.Add(1)
		code := int(env.analysisCode.Load())
		if code != http.StatusOK {
			http.Error(w, "model unavailable", code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, mockAnalysisBody)
	}))
	t.Cleanup(mock.Close)

	store, err := recordstore.NewFileStore(filepath.Join(env.dir, "rfps"), logger)
	if err != nil {
		t.Fatalf("recordstore: %v", err)
	}
	assets, err := filestore.New(filepath.Join(env.dir, "pdfs"))
	if err != nil {
		t.Fatalf("filestore: %v", err)
	}
	journal, err := jobs.NewFileJournal(filepath.Join(env.dir, "jobs"), logger)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	snaps, err := snapshot.New(filepath.Join(env.dir, "analysis"))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	env.records = service.NewRecordService(store, logger)
	analyzer := analysis.New(mock.URL, 5*time.Second, logger)

	runner := service.NewAnalysisRunner(service.RunnerConfig{
		Workers:     1,
		MaxAttempts: 1,
		RetryDelay:  time.Millisecond,
	}, env.records, assets, analyzer, journal, snaps, logger)
	runner.OnTerminal = func(job *jobs.Job, _ *model.RFP, _ error) {
		env.done <- job.RFPID
	}
	if err := runner.Start(t.Context()); err != nil {
		t.Fatalf("runner.Start: %v", err)
	}
	t.Cleanup(runner.Stop)

	cfg := &config.Config{
		ServiceID:       "rfpdesk-test",
		DataDir:         env.dir,
		RecordBackend:   config.BackendFile,
		AssetBackend:    config.BackendFile,
		JobBackend:      config.BackendFile,
		AnalysisURL:     mock.URL,
		AnalysisWorkers: 1,
	}
	disk := func(string) (*generated.DiskInfo, error) {
		return &generated.DiskInfo{TotalBytes: 100, UsedBytes: 40, AvailableBytes: 60}, nil
	}

	api := NewAPIHandler(
		NewRFPHandler(env.records, logger),
		NewFilesHandler(assets, service.NewUploadService(assets, env.records, runner, logger), testMaxUpload, logger),
		NewAnalysisHandler(runner,
			service.NewComplianceService(env.records, assets, analyzer, 2, 10*time.Millisecond, logger),
			snaps, logger),
		NewMaintenanceHandler(service.NewReconcileService(env.records, assets, runner, time.Hour, logger), logger),
		NewSystemHandler(cfg, disk, logger),
		NewHealthHandler([]string{env.dir}, nil, nil),
	)

	doc, err := generated.GetSwagger()
	if err != nil {
		t.Fatalf("GetSwagger: %v", err)
	}
	validator, err := middleware.RequestValidator(doc, logger)
	if err != nil {
		t.Fatalf("RequestValidator: %v", err)
	}

	env.srv = httptest.NewServer(server.NewRouter(api,
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
		validator,
	))
	t.Cleanup(env.srv.Close)
	return env
}

// waitAnalysis ждёт завершения задачи анализа записи id.
func (e *apiEnv) waitAnalysis(t *testing.T, id string) {
	t.Helper()
	select {
	case got := <-e.done:
		if got != id {
			t.Fatalf("завершена задача другой записи: %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("анализ записи %s не завершился", id)
	}
}

func (e *apiEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *apiEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// uploadForm — поля и файлы multipart-загрузки.
type uploadForm struct {
	fields map[string]string
	files  map[string][]byte
}

func (e *apiEnv) upload(t *testing.T, form uploadForm) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range form.fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	for field, data := range form.files {
		part, err := w.CreateFormFile(field, field+".pdf")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("part.Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart Close: %v", err)
	}

	resp, err := http.Post(e.srv.URL+"/upload-pdf", w.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /upload-pdf: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	return v
}

// errorResponse — тело ответа с ошибкой.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func expectError(t *testing.T, resp *http.Response, wantStatus int, wantCode string) {
	t.Helper()
	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("статус: ожидалось %d, получено %d (%s)", wantStatus, resp.StatusCode, body)
	}
	got := decodeBody[errorResponse](t, resp)
	if got.Error.Code != wantCode {
		t.Errorf("код ошибки: ожидалось %q, получено %q (%s)", wantCode, got.Error.Code, got.Error.Message)
	}
}
