// runner.go — фоновое выполнение анализа документов.
//
// Задача записывается в журнал (pending) до отправки документов, затем
// передаётся в ограниченный пул воркеров через буферизованный канал.
// Воркер вызывает сервис анализа с политикой повторов и по итогу вызывает
// завершающий обработчик: результат или статус Analysis Failed сливается
// в запись, задача переводится в done/failed.
//
// При рестарте pending задачи восстанавливаются из журнала (Start).
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/rfpdesk/internal/analysis"
	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
	"github.com/bigkaa/rfpdesk/internal/poller"
	"github.com/bigkaa/rfpdesk/internal/storage/filestore"
	"github.com/bigkaa/rfpdesk/internal/storage/jobs"
	"github.com/bigkaa/rfpdesk/internal/storage/snapshot"
)

// Prometheus метрики анализа
var (
	analysisJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rfpdesk_analysis_jobs_total",
		Help: "Общее количество завершённых задач анализа по результату.",
	}, []string{"result"})

	analysisDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rfpdesk_analysis_duration_seconds",
		Help:    "Длительность задачи анализа (все попытки) в секундах.",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	})
)

// Результаты задачи для метрик.
const (
	resultSuccess = "success"
	resultFailed  = "failed"
)

// defaultQueueSize — ёмкость очереди задач.
const defaultQueueSize = 64

// errNoAssets — у записи нет пары документов для анализа.
var errNoAssets = errors.New("у записи нет пары документов")

// RunnerConfig — параметры пула анализа.
type RunnerConfig struct {
	// Workers — количество воркеров (RFP_ANALYSIS_WORKERS)
	Workers int
	// QueueSize — ёмкость очереди
	QueueSize int
	// MaxAttempts — попыток вызова сервиса анализа (RFP_ANALYSIS_MAX_ATTEMPTS)
	MaxAttempts int
	// RetryDelay — пауза между попытками (RFP_ANALYSIS_RETRY_DELAY)
	RetryDelay time.Duration
}

// TerminalFunc — обработчик завершения задачи. rec — итоговая запись
// (nil, если запись недоступна), err — причина ошибки анализа.
type TerminalFunc func(job *jobs.Job, rec *model.RFP, err error)

// AnalysisRunner — пул воркеров анализа.
type AnalysisRunner struct {
	records   *RecordService
	assets    filestore.AssetStore
	analyzer  analysis.Analyzer
	journal   jobs.Journal
	snapshots *snapshot.Store
	retry     poller.RetryPolicy
	workers   int
	queue     chan *jobs.Job
	logger    *slog.Logger

	// OnTerminal вызывается после завершающего обработчика (может быть nil)
	OnTerminal TerminalFunc

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	pending map[string]int // rfp_id → количество поставленных и выполняемых задач
	wg      sync.WaitGroup
}

// NewAnalysisRunner создаёт пул анализа. snapshots может быть nil.
func NewAnalysisRunner(
	cfg RunnerConfig,
	records *RecordService,
	assets filestore.AssetStore,
	analyzer analysis.Analyzer,
	journal jobs.Journal,
	snapshots *snapshot.Store,
	logger *slog.Logger,
) *AnalysisRunner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = defaultQueueSize
	}

	return &AnalysisRunner{
		records:   records,
		assets:    assets,
		analyzer:  analyzer,
		journal:   journal,
		snapshots: snapshots,
		retry: poller.RetryPolicy{
			Attempts:  cfg.MaxAttempts,
			Delay:     cfg.RetryDelay,
			Retryable: analysis.Retryable,
		},
		workers: cfg.Workers,
		queue:   make(chan *jobs.Job, cfg.QueueSize),
		pending: make(map[string]int),
		logger:  logger.With(slog.String("component", "analysis_runner")),
	}
}

// Start запускает воркеры и повторно ставит в очередь pending задачи журнала.
func (r *AnalysisRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.ctx != nil {
		r.mu.Unlock()
		return errors.New("пул анализа уже запущен")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	runCtx := r.ctx
	r.mu.Unlock()

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(runCtx)
	}

	recovered, err := r.journal.RecoverPending(runCtx)
	if err != nil {
		return fmt.Errorf("восстановление задач анализа: %w", err)
	}
	if len(recovered) > 0 {
		r.logger.Warn("Обнаружены незавершённые задачи анализа, повторный запуск",
			slog.Int("count", len(recovered)),
		)
	}
	for _, job := range recovered {
		r.dispatch(job)
	}

	r.logger.Info("Пул анализа запущен", slog.Int("workers", r.workers))
	return nil
}

// Stop останавливает воркеры и ждёт их завершения. Прерванные задачи
// остаются pending в журнале и будут выполнены после рестарта.
func (r *AnalysisRunner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
	r.logger.Info("Пул анализа остановлен")
}

// Enqueue записывает задачу в журнал и ставит её в очередь.
func (r *AnalysisRunner) Enqueue(ctx context.Context, rfpID string) (*jobs.Job, error) {
	job, err := r.journal.Start(ctx, rfpID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrIO, err)
	}
	r.dispatch(job)
	return job, nil
}

// Analyze запускает повторный анализ существующей записи: статус
// переводится в Analyzing, задача ставится в очередь.
func (r *AnalysisRunner) Analyze(ctx context.Context, rfpID string) (*jobs.Job, error) {
	rec, err := r.records.Get(ctx, rfpID)
	if err != nil {
		return nil, err
	}
	if !rec.HasAssets() {
		return nil, fmt.Errorf("%w: %v: %s", model.ErrValidation, errNoAssets, rfpID)
	}

	if _, _, err := r.records.CreateOrMerge(ctx, model.Patch{
		ID:     rfpID,
		Status: model.Ptr(status.Analyzing),
		Error:  model.Ptr(""),
	}); err != nil {
		return nil, err
	}
	return r.Enqueue(ctx, rfpID)
}

// HasPending — true, если для записи есть поставленная или выполняемая задача.
func (r *AnalysisRunner) HasPending(rfpID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending[rfpID] > 0
}

// dispatch передаёт задачу воркерам. Если пул не запущен, задача остаётся
// pending в журнале и будет подхвачена при Start.
func (r *AnalysisRunner) dispatch(job *jobs.Job) {
	r.mu.Lock()
	runCtx := r.ctx
	if runCtx == nil {
		r.mu.Unlock()
		return
	}
	r.pending[job.RFPID]++
	r.mu.Unlock()

	select {
	case r.queue <- job:
	default:
		// Очередь заполнена: ждём места, не блокируя HTTP-запрос
		go func() {
			select {
			case r.queue <- job:
			case <-runCtx.Done():
				r.release(job.RFPID)
			}
		}()
	}
}

func (r *AnalysisRunner) release(rfpID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[rfpID]--
	if r.pending[rfpID] <= 0 {
		delete(r.pending, rfpID)
	}
}

func (r *AnalysisRunner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.queue:
			r.process(ctx, job)
			r.release(job.RFPID)
		}
	}
}

// process выполняет одну задачу анализа.
func (r *AnalysisRunner) process(ctx context.Context, job *jobs.Job) {
	start := time.Now()
	logger := r.logger.With(
		slog.String("job_id", job.JobID),
		slog.String("rfp_id", job.RFPID),
	)
	logger.Info("Анализ начат")

	result, attempts, err := r.run(ctx, job.RFPID)
	if ctx.Err() != nil {
		// Остановка пула: задача остаётся pending
		logger.Info("Анализ прерван остановкой пула")
		return
	}

	duration := time.Since(start)
	analysisDurationSeconds.Observe(duration.Seconds())

	rec, termErr := r.terminal(context.WithoutCancel(ctx), job, result, attempts, err)
	if termErr != nil {
		logger.Error("Ошибка записи результата анализа", slog.String("error", termErr.Error()))
	}

	if err != nil {
		analysisJobsTotal.WithLabelValues(resultFailed).Inc()
		logger.Warn("Анализ завершился ошибкой",
			slog.Int("attempts", attempts),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
	} else {
		analysisJobsTotal.WithLabelValues(resultSuccess).Inc()
		logger.Info("Анализ завершён",
			slog.String("status", result.Status.String()),
			slog.Int("attempts", attempts),
			slog.Duration("duration", duration),
		)
	}

	if r.OnTerminal != nil {
		r.OnTerminal(job, rec, err)
	}
}

// run загружает документы записи и вызывает сервис анализа с повторами.
func (r *AnalysisRunner) run(ctx context.Context, rfpID string) (*model.AnalysisResult, int, error) {
	rec, err := r.records.Get(ctx, rfpID)
	if err != nil {
		return nil, 0, err
	}
	if !rec.HasAssets() {
		return nil, 0, fmt.Errorf("%w: %v", model.ErrValidation, errNoAssets)
	}

	// Восстановленная после рестарта задача могла застать запись
	// в итоговом статусе: возвращаем её в Analyzing
	if rec.Status != status.Analyzing {
		if _, _, err := r.records.CreateOrMerge(ctx, model.Patch{
			ID:     rfpID,
			Status: model.Ptr(status.Analyzing),
		}); err != nil {
			return nil, 0, err
		}
	}

	rfpPDF, err := readAsset(ctx, r.assets, rec.PDFFileName)
	if err != nil {
		return nil, 0, err
	}
	companyPDF, err := readAsset(ctx, r.assets, rec.CompanyFileName)
	if err != nil {
		return nil, 0, err
	}

	var result *model.AnalysisResult
	attempts, err := r.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		res, submitErr := r.analyzer.Submit(ctx, rfpPDF, companyPDF)
		if submitErr != nil {
			if attempt < r.retry.Attempts && analysis.Retryable(submitErr) {
				r.logger.Warn("Ошибка сервиса анализа, повтор",
					slog.String("rfp_id", rfpID),
					slog.Int("attempt", attempt),
					slog.String("error", submitErr.Error()),
				)
			}
			return submitErr
		}
		result = res
		return nil
	})
	return result, attempts, err
}

// terminal — завершающий обработчик: сливает результат или ошибку
// в запись и закрывает задачу в журнале.
func (r *AnalysisRunner) terminal(
	ctx context.Context,
	job *jobs.Job,
	result *model.AnalysisResult,
	attempts int,
	cause error,
) (*model.RFP, error) {
	if cause != nil {
		var rec *model.RFP
		var mergeErr error
		if !errors.Is(cause, model.ErrNotFound) || !isRecordMissing(ctx, r.records, job.RFPID) {
			rec, _, mergeErr = r.records.CreateOrMerge(ctx, model.FailurePatch(job.RFPID, cause))
		}
		if err := r.journal.Fail(ctx, job.JobID, attempts, cause.Error()); err != nil {
			return rec, errors.Join(mergeErr, err)
		}
		return rec, mergeErr
	}

	rec, _, err := r.records.CreateOrMerge(ctx, result.Patch(job.RFPID))
	if err != nil {
		_ = r.journal.Fail(ctx, job.JobID, attempts, err.Error())
		return nil, err
	}

	if r.snapshots != nil {
		now := time.Now().UTC()
		if _, snapErr := r.snapshots.Save(ctx, &model.Snapshot{
			RFPID:       job.RFPID,
			Analysis:    result,
			Timestamp:   now.Format(time.RFC3339),
			Checklist:   result.Checklist,
			Eligibility: result.Eligibility,
		}); snapErr != nil {
			r.logger.Warn("Не удалось сохранить снимок анализа",
				slog.String("rfp_id", job.RFPID),
				slog.String("error", snapErr.Error()),
			)
		}
	}

	if err := r.journal.Complete(ctx, job.JobID, attempts); err != nil {
		return rec, err
	}
	return rec, nil
}

func isRecordMissing(ctx context.Context, records *RecordService, id string) bool {
	_, err := records.Get(ctx, id)
	return errors.Is(err, model.ErrNotFound)
}

// readAsset читает документ целиком. Сервису анализа нужен весь файл.
func readAsset(ctx context.Context, assets filestore.AssetStore, name string) ([]byte, error) {
	rc, _, err := assets.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: чтение документа %s: %v", model.ErrIO, name, err)
	}
	return data, nil
}
