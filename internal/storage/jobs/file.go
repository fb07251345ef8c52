package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/rfpdesk/internal/storage/atomicfile"
)

const jobSuffix = ".job.json"

// FileJournal — файловый журнал задач: {dir}/{job_id}.job.json.
// Запись задачи атомарна: temp файл → fsync → rename.
type FileJournal struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

var _ Journal = (*FileJournal)(nil)

// NewFileJournal создаёт файловый журнал. Создаёт директорию, если она
// не существует, и проверяет доступность на запись.
func NewFileJournal(dir string, logger *slog.Logger) (*FileJournal, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию журнала %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".journal_write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o640); err != nil {
		return nil, fmt.Errorf("директория журнала %s недоступна для записи: %w", dir, err)
	}
	os.Remove(testFile)

	return &FileJournal{
		dir:    dir,
		logger: logger.With(slog.String("component", "job_journal")),
		now:    time.Now,
	}, nil
}

// Start создаёт pending задачу.
func (j *FileJournal) Start(_ context.Context, rfpID string) (*Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	job := &Job{
		JobID:     uuid.New().String(),
		RFPID:     rfpID,
		Status:    StatusPending,
		StartedAt: j.now().UTC(),
	}

	if err := j.write(job); err != nil {
		return nil, fmt.Errorf("не удалось создать задачу: %w", err)
	}

	j.logger.Debug("Задача анализа поставлена",
		slog.String("job_id", job.JobID),
		slog.String("rfp_id", rfpID),
	)
	return job, nil
}

// Complete переводит задачу в done.
func (j *FileJournal) Complete(_ context.Context, jobID string, attempts int) error {
	return j.finish(jobID, StatusDone, attempts, "")
}

// Fail переводит задачу в failed.
func (j *FileJournal) Fail(_ context.Context, jobID string, attempts int, cause string) error {
	return j.finish(jobID, StatusFailed, attempts, cause)
}

func (j *FileJournal) finish(jobID string, st Status, attempts int, cause string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	job, err := j.read(jobID)
	if err != nil {
		return err
	}
	if job.Status != StatusPending {
		return fmt.Errorf("%w: задача %s имеет статус %s", ErrNotPending, jobID, job.Status)
	}

	now := j.now().UTC()
	job.Status = st
	job.Attempts = attempts
	job.Error = cause
	job.CompletedAt = &now

	if err := j.write(job); err != nil {
		return fmt.Errorf("не удалось обновить задачу %s: %w", jobID, err)
	}

	j.logger.Debug("Задача анализа завершена",
		slog.String("job_id", jobID),
		slog.String("rfp_id", job.RFPID),
		slog.String("status", string(st)),
		slog.Duration("duration", now.Sub(job.StartedAt)),
	)
	return nil
}

// Get читает задачу.
func (j *FileJournal) Get(_ context.Context, jobID string) (*Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.read(jobID)
}

// RecoverPending находит все pending задачи, старые первыми.
// Нечитаемые записи журнала пропускаются с предупреждением.
func (j *FileJournal) RecoverPending(_ context.Context) ([]*Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	all, err := j.scan()
	if err != nil {
		return nil, err
	}

	var pending []*Job
	for _, job := range all {
		if job.Status == StatusPending {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(a, b int) bool { return pending[a].StartedAt.Before(pending[b].StartedAt) })
	return pending, nil
}

// Clean удаляет завершённые задачи, завершившиеся раньше чем olderThan назад.
func (j *FileJournal) Clean(_ context.Context, olderThan time.Duration) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	all, err := j.scan()
	if err != nil {
		return 0, err
	}

	cutoff := j.now().UTC().Add(-olderThan)
	cleaned := 0
	for _, job := range all {
		if job.Status == StatusPending || job.CompletedAt == nil || job.CompletedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(j.path(job.JobID)); err != nil {
			j.logger.Warn("Не удалось удалить завершённую задачу",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
			continue
		}
		cleaned++
	}

	if cleaned > 0 {
		j.logger.Info("Очистка журнала задач завершена", slog.Int("cleaned", cleaned))
	}
	return cleaned, nil
}

func (j *FileJournal) scan() ([]*Job, error) {
	paths, err := filepath.Glob(filepath.Join(j.dir, "*"+jobSuffix))
	if err != nil {
		return nil, fmt.Errorf("не удалось сканировать директорию журнала: %w", err)
	}

	result := make([]*Job, 0, len(paths))
	for _, path := range paths {
		jobID := strings.TrimSuffix(filepath.Base(path), jobSuffix)
		job, err := j.read(jobID)
		if err != nil {
			j.logger.Warn("Не удалось прочитать задачу журнала",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		result = append(result, job)
	}
	return result, nil
}

func (j *FileJournal) path(jobID string) string {
	return filepath.Join(j.dir, jobID+jobSuffix)
}

func (j *FileJournal) write(job *Job) error {
	return atomicfile.WriteJSON(j.path(job.JobID), job)
}

func (j *FileJournal) read(jobID string) (*Job, error) {
	if jobID == "" || filepath.Base(jobID) != jobID {
		return nil, fmt.Errorf("%w: %q", ErrJobNotFound, jobID)
	}

	data, err := os.ReadFile(j.path(jobID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("ошибка чтения задачи %s: %w", jobID, err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("ошибка десериализации задачи %s: %w", jobID, err)
	}
	return &job, nil
}
