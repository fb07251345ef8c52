// Пакет jobs — журнал задач анализа.
// Задача записывается в журнал со статусом pending до отправки документов
// в сервис анализа и переводится в done или failed после завершения.
// При рестарте pending задачи восстанавливаются и выполняются повторно.
//
// Реализации Journal: FileJournal (файл {job_id}.job.json на задачу)
// и RedisJournal (hash на задачу + set pending-задач).
package jobs

import (
	"context"
	"errors"
	"time"
)

// Status — статус задачи.
type Status string

const (
	// StatusPending — задача поставлена, анализ не завершён
	StatusPending Status = "pending"
	// StatusDone — анализ завершён, результат записан
	StatusDone Status = "done"
	// StatusFailed — анализ завершился ошибкой после всех попыток
	StatusFailed Status = "failed"
)

// ErrJobNotFound — задача отсутствует в журнале.
var ErrJobNotFound = errors.New("задача не найдена")

// ErrNotPending — задача уже завершена.
var ErrNotPending = errors.New("задача уже завершена")

// Job — задача анализа.
type Job struct {
	// JobID — уникальный идентификатор задачи (UUID v4)
	JobID string `json:"job_id"`

	// RFPID — запись, для которой выполняется анализ
	RFPID string `json:"rfp_id"`

	Status Status `json:"status"`

	// Attempts — количество выполненных попыток
	Attempts int `json:"attempts"`

	// Error — причина ошибки (для failed)
	Error string `json:"error,omitempty"`

	// StartedAt — время постановки задачи (UTC)
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения. nil для pending задач.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Journal — журнал задач анализа.
type Journal interface {
	// Start создаёт pending задачу для записи.
	Start(ctx context.Context, rfpID string) (*Job, error)
	// Complete переводит задачу в done.
	Complete(ctx context.Context, jobID string, attempts int) error
	// Fail переводит задачу в failed с причиной.
	Fail(ctx context.Context, jobID string, attempts int, cause string) error
	// Get возвращает задачу. Ошибка ErrJobNotFound, если задачи нет.
	Get(ctx context.Context, jobID string) (*Job, error)
	// RecoverPending возвращает все незавершённые задачи.
	RecoverPending(ctx context.Context) ([]*Job, error)
	// Clean удаляет завершённые задачи старше olderThan.
	Clean(ctx context.Context, olderThan time.Duration) (int, error)
}
