package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// sequence возвращает статусы по порядку, затем повторяет последний.
func sequence(statuses ...status.Status) (FetchFunc, *int) {
	calls := 0
	return func(context.Context) (status.Status, error) {
		i := calls
		calls++
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		return statuses[i], nil
	}, &calls
}

// TestWaitTerminal проверяет остановку на итоговом статусе.
func TestWaitTerminal(t *testing.T) {
	p := New(time.Millisecond, 10, testLogger())
	fetch, calls := sequence(status.Analyzing, status.Analyzing, status.Eligible)

	var seen []status.Status
	p.OnPoll = func(_ int, st status.Status) { seen = append(seen, st) }

	st, err := p.WaitTerminal(context.Background(), fetch)
	if err != nil {
		t.Fatalf("WaitTerminal: %v", err)
	}
	if st != status.Eligible {
		t.Errorf("ожидалось %q, получено %q", status.Eligible, st)
	}
	if *calls != 3 {
		t.Errorf("ожидалось 3 опроса, выполнено %d", *calls)
	}
	if len(seen) != 3 {
		t.Errorf("OnPoll: ожидалось 3 вызова, получено %d", len(seen))
	}
}

// TestWaitTerminal_Pending — Pending завершает опрос сразу.
func TestWaitTerminal_Pending(t *testing.T) {
	p := New(time.Millisecond, 10, testLogger())
	fetch, calls := sequence(status.Pending, status.Eligible)

	st, err := p.WaitTerminal(context.Background(), fetch)
	if !errors.Is(err, ErrNotStarted) {
		t.Fatalf("ожидалась ErrNotStarted, получено %v", err)
	}
	if st != status.Pending {
		t.Errorf("ожидалось %q, получено %q", status.Pending, st)
	}
	if *calls != 1 {
		t.Errorf("ожидался 1 опрос, выполнено %d", *calls)
	}
}

// TestWaitTerminal_AnalysisFailed — Analysis Failed является итоговым статусом.
func TestWaitTerminal_AnalysisFailed(t *testing.T) {
	p := New(time.Millisecond, 10, testLogger())
	fetch, _ := sequence(status.Analyzing, status.AnalysisFailed)

	st, err := p.WaitTerminal(context.Background(), fetch)
	if err != nil {
		t.Fatalf("WaitTerminal: %v", err)
	}
	if st != status.AnalysisFailed {
		t.Errorf("ожидалось %q, получено %q", status.AnalysisFailed, st)
	}
}

// TestWaitTerminal_Exhausted — опрос ограничен числом попыток.
func TestWaitTerminal_Exhausted(t *testing.T) {
	p := New(time.Millisecond, 4, testLogger())
	fetch, calls := sequence(status.Analyzing)

	st, err := p.WaitTerminal(context.Background(), fetch)
	if !errors.Is(err, ErrPollExhausted) {
		t.Fatalf("ожидалась ErrPollExhausted, получено %v", err)
	}
	if st != status.Analyzing {
		t.Errorf("ожидался последний статус %q, получено %q", status.Analyzing, st)
	}
	if *calls != 4 {
		t.Errorf("ожидалось 4 опроса, выполнено %d", *calls)
	}
}

// TestWaitTerminal_Canceled — отмена контекста прерывает ожидание.
func TestWaitTerminal_Canceled(t *testing.T) {
	p := New(time.Hour, 10, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	fetch := func(context.Context) (status.Status, error) {
		cancel()
		return status.Analyzing, nil
	}

	_, err := p.WaitTerminal(ctx, fetch)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ожидалась context.Canceled, получено %v", err)
	}
}

// TestWaitTerminal_NotFound — отсутствующая запись прерывает опрос.
func TestWaitTerminal_NotFound(t *testing.T) {
	p := New(time.Millisecond, 10, testLogger())
	calls := 0
	fetch := func(context.Context) (status.Status, error) {
		calls++
		return "", fmt.Errorf("%w: запись x", model.ErrNotFound)
	}

	_, err := p.WaitTerminal(context.Background(), fetch)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
	if calls != 1 {
		t.Errorf("ожидался 1 опрос, выполнено %d", calls)
	}
}

// TestWaitTerminal_TransientErrors — временные ошибки не прерывают опрос.
func TestWaitTerminal_TransientErrors(t *testing.T) {
	p := New(time.Millisecond, 10, testLogger())
	calls := 0
	fetch := func(context.Context) (status.Status, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection refused")
		}
		return status.Complete, nil
	}

	st, err := p.WaitTerminal(context.Background(), fetch)
	if err != nil {
		t.Fatalf("WaitTerminal: %v", err)
	}
	if st != status.Complete {
		t.Errorf("ожидалось %q, получено %q", status.Complete, st)
	}
}

// TestNew_Defaults проверяет значения по умолчанию.
func TestNew_Defaults(t *testing.T) {
	p := New(0, 0, testLogger())
	if p.Interval != DefaultInterval {
		t.Errorf("Interval: ожидалось %v, получено %v", DefaultInterval, p.Interval)
	}
	if p.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts: ожидалось %d, получено %d", DefaultMaxAttempts, p.MaxAttempts)
	}
}

// TestRetryPolicy проверяет повтор до успеха.
func TestRetryPolicy(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, Delay: time.Millisecond}

	attempts, err := policy.Do(context.Background(), func(_ context.Context, attempt int) error {
		if attempt < 2 {
			return errors.New("временная ошибка")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 2 {
		t.Errorf("ожидалось 2 попытки, выполнено %d", attempts)
	}
}

// TestRetryPolicy_Exhausted — возвращается последняя ошибка.
func TestRetryPolicy_Exhausted(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, Delay: time.Millisecond}

	attempts, err := policy.Do(context.Background(), func(_ context.Context, attempt int) error {
		return fmt.Errorf("попытка %d", attempt)
	})
	if err == nil || err.Error() != "попытка 3" {
		t.Errorf("ожидалась ошибка последней попытки, получено %v", err)
	}
	if attempts != 3 {
		t.Errorf("ожидалось 3 попытки, выполнено %d", attempts)
	}
}

// TestRetryPolicy_NotRetryable — неповторяемая ошибка прерывает цикл.
func TestRetryPolicy_NotRetryable(t *testing.T) {
	permanent := errors.New("постоянная ошибка")
	policy := RetryPolicy{
		Attempts:  5,
		Delay:     time.Millisecond,
		Retryable: func(err error) bool { return !errors.Is(err, permanent) },
	}

	attempts, err := policy.Do(context.Background(), func(context.Context, int) error {
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("ожидалась постоянная ошибка, получено %v", err)
	}
	if attempts != 1 {
		t.Errorf("ожидалась 1 попытка, выполнено %d", attempts)
	}
}

// TestRetryPolicy_Canceled — отмена во время паузы возвращает последнюю ошибку.
func TestRetryPolicy_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{Attempts: 5, Delay: time.Hour}
	cause := errors.New("временная ошибка")

	attempts, err := policy.Do(ctx, func(context.Context, int) error {
		cancel()
		return cause
	})
	if !errors.Is(err, cause) {
		t.Errorf("ожидалась последняя ошибка, получено %v", err)
	}
	if attempts != 1 {
		t.Errorf("ожидалась 1 попытка, выполнено %d", attempts)
	}
}
