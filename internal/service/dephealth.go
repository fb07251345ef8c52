// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// RFP Desk мониторит:
//   - сервис анализа — HTTP checker к health endpoint (critical)
//   - PostgreSQL — SQL checker через существующий pgxpool (только при RFP_RECORD_BACKEND=postgres)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthParams — параметры мониторинга зависимостей.
type DephealthParams struct {
	// ServiceID — имя вершины графа текущего приложения (RFP_SERVICE_ID)
	ServiceID string
	// Group — имя группы в метриках (RFP_DEPHEALTH_GROUP)
	Group string
	// AnalysisURL — URL сервиса анализа (RFP_ANALYSIS_URL)
	AnalysisURL string
	// AnalysisHealthPath — путь health endpoint сервиса анализа
	AnalysisHealthPath string
	// DB — *sql.DB поверх pgxpool (nil — PostgreSQL не мониторится)
	DB *sql.DB
	// PostgresURL — URL PostgreSQL для меток (не для подключения)
	PostgresURL string
	// CheckInterval — интервал проверки (RFP_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(params DephealthParams, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(params, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	params DephealthParams,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(params, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(params DephealthParams, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	analysisOpts := []dephealth.DependencyOption{
		dephealth.FromURL(params.AnalysisURL),
		dephealth.WithHTTPHealthPath(healthPath(params.AnalysisURL, params.AnalysisHealthPath)),
		dephealth.CheckInterval(params.CheckInterval),
		dephealth.Critical(true),
	}
	if parsed, err := url.Parse(params.AnalysisURL); err == nil && parsed.Scheme == "https" {
		analysisOpts = append(analysisOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.HTTP("analysis-service", analysisOpts...),
	)
	if params.DB != nil {
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(params.DB)),
			dephealth.FromURL(params.PostgresURL),
			dephealth.CheckInterval(params.CheckInterval),
			dephealth.Critical(true),
		))
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(params.ServiceID, params.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — "имя:хост:порт", значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

// healthPath — путь проверки: явный path или путь из URL сервиса.
func healthPath(rawURL, path string) string {
	if path != "" {
		return path
	}
	if parsed, err := url.Parse(rawURL); err == nil && strings.Trim(parsed.Path, "/") != "" {
		return parsed.Path
	}
	return "/"
}
