// Точка входа RFP Desk — сервиса учёта RFP и анализа соответствия.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bigkaa/rfpdesk/internal/analysis"
	"github.com/bigkaa/rfpdesk/internal/api/generated"
	"github.com/bigkaa/rfpdesk/internal/api/handlers"
	"github.com/bigkaa/rfpdesk/internal/api/middleware"
	"github.com/bigkaa/rfpdesk/internal/config"
	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/server"
	"github.com/bigkaa/rfpdesk/internal/service"
	"github.com/bigkaa/rfpdesk/internal/storage/jobs"
	"github.com/bigkaa/rfpdesk/internal/storage/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("RFP Desk запускается",
		slog.String("service_id", cfg.ServiceID),
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("record_backend", cfg.RecordBackend),
		slog.String("asset_backend", cfg.AssetBackend),
		slog.String("job_backend", cfg.JobBackend),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("RFP Desk завершился с ошибкой", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("RFP Desk остановлен")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Хранилища ---

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	analysisDir := filepath.Join(cfg.DataDir, "analysis")
	snapshots, err := snapshot.New(analysisDir)
	if err != nil {
		return err
	}
	b.dataDirs = append(b.dataDirs, analysisDir)

	records := service.NewRecordService(b.records, logger)

	// --- Анализ ---

	analyzer := analysis.New(cfg.AnalysisURL, cfg.AnalysisTimeout, logger)

	runner := service.NewAnalysisRunner(service.RunnerConfig{
		Workers:     cfg.AnalysisWorkers,
		MaxAttempts: cfg.AnalysisMaxAttempts,
		RetryDelay:  cfg.AnalysisRetryDelay,
	}, records, b.assets, analyzer, b.journal, snapshots, logger)
	runner.OnTerminal = func(job *jobs.Job, rec *model.RFP, err error) {
		attrs := []any{
			slog.String("job_id", job.JobID),
			slog.String("rfp_id", job.RFPID),
		}
		if rec != nil {
			attrs = append(attrs, slog.String("status", rec.Status.String()))
		}
		if err != nil {
			logger.Warn("Анализ завершился ошибкой", append(attrs, slog.String("error", err.Error()))...)
			return
		}
		logger.Info("Анализ завершён", attrs...)
	}
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("запуск пула анализа: %w", err)
	}
	defer runner.Stop()

	sweeper := service.NewSweeper(records, runner, b.journal,
		cfg.StaleAfter, cfg.JobRetention, cfg.SweepSchedule, logger)
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("запуск sweeper: %w", err)
	}
	defer sweeper.Stop()

	reconcileSvc := service.NewReconcileService(records, b.assets, runner, cfg.StaleAfter, logger)
	complianceSvc := service.NewComplianceService(records, b.assets, analyzer,
		cfg.AssetRetryAttempts, cfg.AssetRetryDelay, logger)
	uploadSvc := service.NewUploadService(b.assets, records, runner, logger)

	// --- topologymetrics ---

	var deps handlers.DependencyHealth
	if cfg.DephealthEnabled {
		dephealthSvc, err := service.NewDephealthService(service.DephealthParams{
			ServiceID:          cfg.ServiceID,
			Group:              cfg.DephealthGroup,
			AnalysisURL:        cfg.AnalysisURL,
			AnalysisHealthPath: cfg.AnalysisHealthPath,
			DB:                 b.sqlDB,
			PostgresURL:        cfg.PostgresURL(),
			CheckInterval:      cfg.DephealthCheckInterval,
		}, logger)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		} else {
			defer dephealthSvc.Stop()
			deps = dephealthSvc
		}
	}

	// --- HTTP ---

	doc, err := generated.GetSwagger()
	if err != nil {
		return err
	}
	validator, err := middleware.RequestValidator(doc, logger)
	if err != nil {
		return err
	}

	apiHandler := handlers.NewAPIHandler(
		handlers.NewRFPHandler(records, logger),
		handlers.NewFilesHandler(b.assets, uploadSvc, cfg.MaxUploadSize, logger),
		handlers.NewAnalysisHandler(runner, complianceSvc, snapshots, logger),
		handlers.NewMaintenanceHandler(reconcileSvc, logger),
		handlers.NewSystemHandler(cfg, getDiskUsage, logger),
		handlers.NewHealthHandler(b.dataDirs, b.checkers, deps),
	)

	srv := server.New(cfg, logger, apiHandler,
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
		validator,
	)

	// Фоновые процессы останавливаются defer'ами после остановки HTTP-сервера
	return srv.Run(ctx)
}
