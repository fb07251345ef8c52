// reconcile.go — сверка записей с хранилищем документов.
//
// Обнаруживает проблемы:
//   - missing_asset: запись ссылается на документ, которого нет в хранилище
//   - stuck_analysis: запись в Analyzing без задачи в пуле дольше staleAfter
//
// Запускается вручную через POST /maintenance/reconcile; параллельный
// запуск отклоняется.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/rfpdesk/internal/storage/filestore"
)

// Prometheus метрики сверки
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rfpdesk_reconcile_runs_total",
		Help: "Общее количество запусков сверки.",
	})

	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rfpdesk_reconcile_issues_total",
		Help: "Общее количество проблем, обнаруженных сверкой.",
	}, []string{"type"})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rfpdesk_reconcile_duration_seconds",
		Help:    "Длительность сверки в секундах.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// Типы проблем сверки.
const (
	IssueMissingAsset  = "missing_asset"
	IssueStuckAnalysis = "stuck_analysis"
)

// ReconcileIssue — обнаруженная проблема.
type ReconcileIssue struct {
	Type        string `json:"type"`
	RFPID       string `json:"rfpId"`
	FileName    string `json:"fileName,omitempty"`
	Description string `json:"description"`
}

// ReconcileSummary — сводка по типам проблем.
type ReconcileSummary struct {
	Ok            int `json:"ok"`
	MissingAssets int `json:"missingAssets"`
	StuckAnalyses int `json:"stuckAnalyses"`
}

// ReconcileReport — результат сверки.
type ReconcileReport struct {
	StartedAt      time.Time        `json:"startedAt"`
	CompletedAt    time.Time        `json:"completedAt"`
	RecordsChecked int              `json:"recordsChecked"`
	Issues         []ReconcileIssue `json:"issues"`
	Summary        ReconcileSummary `json:"summary"`
}

// ReconcileService — сверка записей и документов.
type ReconcileService struct {
	records    *RecordService
	assets     filestore.AssetStore
	pending    PendingChecker
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.Mutex
	inProcess bool
}

// NewReconcileService создаёт сервис сверки. pending может быть nil.
func NewReconcileService(
	records *RecordService,
	assets filestore.AssetStore,
	pending PendingChecker,
	staleAfter time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		records:    records,
		assets:     assets,
		pending:    pending,
		staleAfter: staleAfter,
		logger:     logger.With(slog.String("component", "reconcile")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce выполняет сверку.
// Если сверка уже выполняется, возвращает nil, true.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileReport, bool, error) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, true, nil
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	startedAt := rs.now()
	rs.logger.Info("Сверка начата")

	recs, err := rs.records.List(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("чтение списка записей: %w", err)
	}

	issues := []ReconcileIssue{}
	cutoff := startedAt.Add(-rs.staleAfter)
	withIssues := make(map[string]bool)

	for _, rec := range recs {
		for _, name := range []string{rec.PDFFileName, rec.CompanyFileName} {
			if name == "" || rs.assets.Exists(ctx, name) {
				continue
			}
			issues = append(issues, ReconcileIssue{
				Type:        IssueMissingAsset,
				RFPID:       rec.ID,
				FileName:    name,
				Description: "Запись ссылается на отсутствующий документ",
			})
			withIssues[rec.ID] = true
		}

		if rs.staleAfter > 0 && isStale(rec, cutoff) && (rs.pending == nil || !rs.pending.HasPending(rec.ID)) {
			issues = append(issues, ReconcileIssue{
				Type:        IssueStuckAnalysis,
				RFPID:       rec.ID,
				Description: fmt.Sprintf("Запись в статусе Analyzing без активной задачи дольше %s", rs.staleAfter),
			})
			withIssues[rec.ID] = true
		}
	}

	summary := ReconcileSummary{Ok: len(recs) - len(withIssues)}
	for _, issue := range issues {
		switch issue.Type {
		case IssueMissingAsset:
			summary.MissingAssets++
		case IssueStuckAnalysis:
			summary.StuckAnalyses++
		}
		reconcileIssuesTotal.WithLabelValues(issue.Type).Inc()
	}

	completedAt := rs.now()
	duration := completedAt.Sub(startedAt)
	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())

	rs.logger.Info("Сверка завершена",
		slog.Int("records_checked", len(recs)),
		slog.Int("issues", len(issues)),
		slog.Int("ok", summary.Ok),
		slog.Duration("duration", duration),
	)

	return &ReconcileReport{
		StartedAt:      startedAt,
		CompletedAt:    completedAt,
		RecordsChecked: len(recs),
		Issues:         issues,
		Summary:        summary,
	}, false, nil
}
