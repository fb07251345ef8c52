// health.go — health endpoints для Kubernetes probes и /metrics.
// /health/live — процесс жив
// /health/ready — директории данных доступны на запись, бэкенды отвечают
package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/rfpdesk/internal/config"
)

// serviceName — имя сервиса в ответах health.
const serviceName = "rfpdesk"

// Статусы проверок.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker — проверка готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// DependencyHealth — состояние внешних зависимостей (topologymetrics).
type DependencyHealth interface {
	Health() map[string]bool
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	// dataDirs — директории, которые должны быть доступны на запись
	dataDirs []string
	checkers map[string]ReadinessChecker
	deps     DependencyHealth

	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// checkers — проверки бэкендов по имени (postgresql, redis, minio), может быть nil.
// deps может быть nil, если мониторинг зависимостей отключён.
func NewHealthHandler(dataDirs []string, checkers map[string]ReadinessChecker, deps DependencyHealth) *HealthHandler {
	return &HealthHandler{
		dataDirs:    dataDirs,
		checkers:    checkers,
		deps:        deps,
		promHandler: promhttp.Handler(),
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks,omitempty"`
}

// HealthLive обрабатывает GET /health/live. Зависимости не проверяются.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady обрабатывает GET /health/ready.
// 200 — ok или degraded, 503 — хотя бы одна обязательная проверка fail.
// Недоступный сервис анализа даёт degraded: записи и документы обслуживаются.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	checks := make(map[string]healthCheckResult)

	for _, dir := range h.dataDirs {
		checks["filesystem:"+filepath.Base(dir)] = checkWritable(dir)
	}
	for name, c := range h.checkers {
		st, msg := c.CheckReady()
		checks[name] = healthCheckResult{Status: st, Message: msg}
	}

	overall := overallStatus(checks)

	if h.deps != nil {
		keys := make([]string, 0)
		health := h.deps.Health()
		for k := range health {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			res := healthCheckResult{Status: statusOK}
			if !health[k] {
				res = healthCheckResult{Status: statusDegraded, Message: "Зависимость недоступна"}
				if overall == statusOK {
					overall = statusDegraded
				}
			}
			checks["dependency:"+k] = res
		}
	}

	code := http.StatusOK
	if overall == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
		Checks:    checks,
	})
}

// GetMetrics обрабатывает GET /metrics.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// overallStatus — fail, если есть fail; degraded, если есть degraded; иначе ok.
func overallStatus(checks map[string]healthCheckResult) string {
	result := statusOK
	for _, c := range checks {
		switch c.Status {
		case statusFail:
			return statusFail
		case statusDegraded:
			result = statusDegraded
		}
	}
	return result
}

// checkWritable проверяет, что в директорию можно писать.
func checkWritable(dir string) healthCheckResult {
	testFile := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return healthCheckResult{
			Status:  statusFail,
			Message: "Директория недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)
	return healthCheckResult{Status: statusOK}
}
