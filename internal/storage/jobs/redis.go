package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisJournal — журнал задач в Redis.
// Задача хранится строкой JSON по ключу {prefix}job:{id},
// идентификаторы pending задач — в множестве {prefix}pending,
// завершённых — в множестве {prefix}finished.
type RedisJournal struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

var _ Journal = (*RedisJournal)(nil)

// NewRedisClient создаёт клиент Redis и проверяет подключение.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisJournal создаёт журнал поверх клиента Redis.
// prefix отделяет ключи журнала от других данных (например, "rfpdesk:").
func NewRedisJournal(rdb *redis.Client, prefix string, logger *slog.Logger) *RedisJournal {
	return &RedisJournal{
		rdb:    rdb,
		prefix: prefix,
		logger: logger.With(slog.String("component", "job_journal")),
		now:    time.Now,
	}
}

func (j *RedisJournal) jobKey(id string) string { return j.prefix + "job:" + id }
func (j *RedisJournal) pendingKey() string { return j.prefix + "pending" }
func (j *RedisJournal) finishedKey() string { return j.prefix + "finished" }

// Start создаёт pending задачу (ключ задачи и членство в множестве — в одной транзакции).
func (j *RedisJournal) Start(ctx context.Context, rfpID string) (*Job, error) {
	job := &Job{
		JobID:     uuid.New().String(),
		RFPID:     rfpID,
		Status:    StatusPending,
		StartedAt: j.now().UTC(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации задачи: %w", err)
	}

	_, err = j.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, j.jobKey(job.JobID), data, 0)
		pipe.SAdd(ctx, j.pendingKey(), job.JobID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("не удалось создать задачу: %w", err)
	}

	j.logger.Debug("Задача анализа поставлена",
		slog.String("job_id", job.JobID),
		slog.String("rfp_id", rfpID),
	)
	return job, nil
}

// Complete переводит задачу в done.
func (j *RedisJournal) Complete(ctx context.Context, jobID string, attempts int) error {
	return j.finish(ctx, jobID, StatusDone, attempts, "")
}

// Fail переводит задачу в failed.
func (j *RedisJournal) Fail(ctx context.Context, jobID string, attempts int, cause string) error {
	return j.finish(ctx, jobID, StatusFailed, attempts, cause)
}

func (j *RedisJournal) finish(ctx context.Context, jobID string, st Status, attempts int, cause string) error {
	job, err := j.Get(ctx, jobID)
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

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("ошибка сериализации задачи: %w", err)
	}

	_, err = j.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, j.jobKey(jobID), data, 0)
		pipe.SRem(ctx, j.pendingKey(), jobID)
		pipe.SAdd(ctx, j.finishedKey(), jobID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("не удалось обновить задачу %s: %w", jobID, err)
	}
	return nil
}

// Get читает задачу.
func (j *RedisJournal) Get(ctx context.Context, jobID string) (*Job, error) {
	data, err := j.rdb.Get(ctx, j.jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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

// RecoverPending возвращает pending задачи, старые первыми.
func (j *RedisJournal) RecoverPending(ctx context.Context) ([]*Job, error) {
	ids, err := j.rdb.SMembers(ctx, j.pendingKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения множества pending: %w", err)
	}

	result := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := j.Get(ctx, id)
		if err != nil {
			j.logger.Warn("Не удалось прочитать задачу журнала",
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		result = append(result, job)
	}
	sort.Slice(result, func(a, b int) bool { return result[a].StartedAt.Before(result[b].StartedAt) })
	return result, nil
}

// Clean удаляет завершённые задачи старше olderThan.
func (j *RedisJournal) Clean(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := j.rdb.SMembers(ctx, j.finishedKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения множества finished: %w", err)
	}

	cutoff := j.now().UTC().Add(-olderThan)
	cleaned := 0
	for _, id := range ids {
		job, err := j.Get(ctx, id)
		if err != nil && !errors.Is(err, ErrJobNotFound) {
			continue
		}
		if job != nil && (job.CompletedAt == nil || job.CompletedAt.After(cutoff)) {
			continue
		}
		_, err = j.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, j.jobKey(id))
			pipe.SRem(ctx, j.finishedKey(), id)
			return nil
		})
		if err != nil {
			j.logger.Warn("Не удалось удалить завершённую задачу",
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		cleaned++
	}
	return cleaned, nil
}

// CheckReady проверяет подключение к Redis.
func (j *RedisJournal) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := j.rdb.Ping(ctx).Err(); err != nil {
		return "fail", fmt.Sprintf("Redis недоступен: %v", err)
	}
	return "ok", "подключение активно"
}
