// sweeper.go — периодическая очистка зависших анализов.
//
// Sweeper выполняет две задачи:
//  1. Переводит записи, зависшие в Analyzing дольше staleAfter и не имеющие
//     задачи в пуле анализа, в Analysis Failed
//  2. Удаляет из журнала завершённые задачи старше retention
//
// Расписание задаётся cron-выражением (RFP_SWEEP_SCHEDULE, "@every 5m").
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
	"github.com/bigkaa/rfpdesk/internal/storage/jobs"
)

// Prometheus метрики sweeper
var (
	sweeperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rfpdesk_sweeper_runs_total",
		Help: "Общее количество запусков очистки зависших анализов.",
	})

	sweeperTimedOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rfpdesk_sweeper_timed_out_total",
		Help: "Общее количество записей, переведённых в Analysis Failed по таймауту.",
	})
)

// StaleAnalysisError — причина ошибки, записываемая в зависшую запись.
const StaleAnalysisError = "analysis timed out"

// PendingChecker сообщает, есть ли у записи задача в пуле анализа.
type PendingChecker interface {
	HasPending(rfpID string) bool
}

// SweepResult — результат одного запуска.
type SweepResult struct {
	// TimedOut — записи, переведённые в Analysis Failed
	TimedOut []string
	// JobsCleaned — удалённые завершённые задачи журнала
	JobsCleaned int
	// Errors — количество ошибок обработки
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// Sweeper — очистка зависших анализов по расписанию.
type Sweeper struct {
	records    *RecordService
	pending    PendingChecker
	journal    jobs.Journal
	staleAfter time.Duration
	retention  time.Duration
	schedule   string
	cron       *cron.Cron
	logger     *slog.Logger
	now        func() time.Time

	mu sync.Mutex // защита от параллельного запуска RunOnce
}

// NewSweeper создаёт sweeper. pending и journal могут быть nil.
// retention — срок хранения завершённых задач в журнале.
func NewSweeper(
	records *RecordService,
	pending PendingChecker,
	journal jobs.Journal,
	staleAfter time.Duration,
	retention time.Duration,
	schedule string,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		records:    records,
		pending:    pending,
		journal:    journal,
		staleAfter: staleAfter,
		retention:  retention,
		schedule:   schedule,
		cron:       cron.New(),
		logger:     logger.With(slog.String("component", "sweeper")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start регистрирует задачу по расписанию и запускает планировщик.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("некорректное расписание %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("Sweeper запущен",
		slog.String("schedule", s.schedule),
		slog.String("stale_after", s.staleAfter.String()),
	)
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущего запуска.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Sweeper остановлен")
}

// RunOnce выполняет один цикл очистки.
// Потокобезопасен: параллельные вызовы выполняются последовательно.
func (s *Sweeper) RunOnce(ctx context.Context) *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}

	s.sweepStale(ctx, result)

	if s.journal != nil && s.retention > 0 {
		cleaned, err := s.journal.Clean(ctx, s.retention)
		if err != nil {
			s.logger.Error("Ошибка очистки журнала задач", slog.String("error", err.Error()))
			result.Errors++
		}
		result.JobsCleaned = cleaned
	}

	result.Duration = time.Since(start)
	sweeperRunsTotal.Inc()
	sweeperTimedOutTotal.Add(float64(len(result.TimedOut)))

	s.logger.Info("Sweeper завершён",
		slog.Int("timed_out", len(result.TimedOut)),
		slog.Int("jobs_cleaned", result.JobsCleaned),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)
	return result
}

func (s *Sweeper) sweepStale(ctx context.Context, result *SweepResult) {
	recs, err := s.records.List(ctx)
	if err != nil {
		s.logger.Error("Ошибка чтения списка записей", slog.String("error", err.Error()))
		result.Errors++
		return
	}

	cutoff := s.now().Add(-s.staleAfter)
	stale := func(rec *model.RFP) bool {
		if !isStale(rec, cutoff) {
			return false
		}
		return s.pending == nil || !s.pending.HasPending(rec.ID)
	}

	for _, rec := range recs {
		if !stale(rec) {
			continue
		}

		// Запись могла обновиться после List: условие проверяется повторно под блокировкой id
		cur, applied, err := s.records.MergeIf(ctx, model.Patch{
			ID:     rec.ID,
			Status: model.Ptr(status.AnalysisFailed),
			Error:  model.Ptr(StaleAnalysisError),
		}, stale)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error("Не удалось перевести зависшую запись в Analysis Failed",
				slog.String("rfp_id", rec.ID),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}
		if !applied {
			s.logger.Debug("Запись обновилась, таймаут отменён",
				slog.String("rfp_id", rec.ID),
				slog.String("status", cur.Status.String()),
			)
			continue
		}

		s.logger.Warn("Анализ записи завис, статус Analysis Failed",
			slog.String("rfp_id", rec.ID),
			slog.Time("updated_at", rec.UpdatedAt),
		)
		result.TimedOut = append(result.TimedOut, rec.ID)
	}
}

// isStale — запись в Analyzing без обновлений с момента cutoff.
// Для записей без updatedAt используется date.
func isStale(rec *model.RFP, cutoff time.Time) bool {
	if rec.Status != status.Analyzing {
		return false
	}
	last := rec.UpdatedAt
	if last.IsZero() {
		last = rec.Date
	}
	return last.Before(cutoff)
}
