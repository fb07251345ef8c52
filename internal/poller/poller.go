// Пакет poller — ожидание итогового статуса записи и ограниченные повторы.
//
// WaitTerminal опрашивает статус с фиксированным интервалом до итогового
// статуса, отмены контекста или исчерпания попыток. Pending означает, что
// анализ не запущен, и завершает опрос сразу. RetryPolicy повторяет
// операцию с фиксированной задержкой, пока ошибка считается повторяемой.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
)

const (
	// DefaultInterval — интервал опроса статуса.
	DefaultInterval = 5 * time.Second
	// DefaultMaxAttempts — предел числа опросов (10 минут при интервале 5s).
	DefaultMaxAttempts = 120
)

var (
	// ErrPollExhausted — статус не стал итоговым за отведённое число опросов.
	ErrPollExhausted = errors.New("превышено число попыток опроса статуса")
	// ErrNotStarted — запись в Pending: анализ не запущен, ждать нечего.
	ErrNotStarted = errors.New("анализ не запущен")
)

// FetchFunc возвращает текущий статус записи.
type FetchFunc func(ctx context.Context) (status.Status, error)

// Poller — ожидание итогового статуса.
type Poller struct {
	// Interval — пауза между опросами
	Interval time.Duration
	// MaxAttempts — максимальное число опросов (включая первый)
	MaxAttempts int
	// OnPoll вызывается после каждого успешного опроса (может быть nil)
	OnPoll func(attempt int, st status.Status)

	logger *slog.Logger
}

// New создаёт Poller. Нулевые значения заменяются значениями по умолчанию.
func New(interval time.Duration, maxAttempts int, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{
		Interval:    interval,
		MaxAttempts: maxAttempts,
		logger:      logger.With(slog.String("component", "poller")),
	}
}

// WaitTerminal опрашивает fetch, пока статус не станет итоговым.
//
// Завершение:
//   - итоговый статус — (status, nil);
//   - статус Pending — (Pending, ErrNotStarted) сразу, без повторных опросов;
//   - отмена контекста — (последний статус, ctx.Err());
//   - fetch вернул model.ErrNotFound — опрос прерывается с этой ошибкой;
//   - исчерпаны попытки — (последний статус, ErrPollExhausted).
//
// Прочие ошибки fetch расходуют попытку и опрос продолжается.
func (p *Poller) WaitTerminal(ctx context.Context, fetch FetchFunc) (status.Status, error) {
	var last status.Status
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		st, err := fetch(ctx)
		switch {
		case err == nil:
			last = st
			lastErr = nil
			if p.OnPoll != nil {
				p.OnPoll(attempt, st)
			}
			if st.IsTerminal() {
				return st, nil
			}
			if st == status.Pending {
				return st, fmt.Errorf("%w: статус %q", ErrNotStarted, st)
			}
		case errors.Is(err, model.ErrNotFound):
			return last, err
		case ctx.Err() != nil:
			return last, ctx.Err()
		default:
			lastErr = err
			p.logger.Warn("Ошибка опроса статуса",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}

		if attempt == p.MaxAttempts {
			break
		}
		if err := Sleep(ctx, p.Interval); err != nil {
			return last, err
		}
	}

	if lastErr != nil {
		return last, fmt.Errorf("%w (%d): последняя ошибка: %v", ErrPollExhausted, p.MaxAttempts, lastErr)
	}
	return last, fmt.Errorf("%w (%d): последний статус %q", ErrPollExhausted, p.MaxAttempts, last)
}

// RetryPolicy — повтор операции с фиксированной задержкой.
type RetryPolicy struct {
	// Attempts — максимальное число попыток (минимум 1)
	Attempts int
	// Delay — пауза между попытками
	Delay time.Duration
	// Retryable решает, повторять ли ошибку. nil — повторять любую.
	Retryable func(error) bool
}

// Do выполняет fn до успеха, неповторяемой ошибки, исчерпания попыток
// или отмены контекста. Возвращает число выполненных попыток.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt - 1, lastErr
			}
			return attempt - 1, err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return attempt, lastErr
		}
		if attempt == attempts {
			return attempt, lastErr
		}
		if err := Sleep(ctx, p.Delay); err != nil {
			return attempt, lastErr
		}
	}
	return attempts, lastErr
}

// Sleep ждёт d или отмены контекста.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
