// rfpwatch — ожидание итогового статуса RFP-записи.
//
//	rfpwatch -url http://localhost:8080 -id abc123 [-interval 5s] [-max 120] [-analyze]
//
// Коды выхода: 0 — Eligible, Not Eligible или Complete; 1 — Analysis Failed;
// 2 — ошибка, таймаут или запись в Pending (анализ не запущен).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bigkaa/rfpdesk/internal/client"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
	"github.com/bigkaa/rfpdesk/internal/poller"
)

// Коды выхода.
const (
	exitOK     = 0
	exitFailed = 1
	exitError  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rfpwatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("url", "http://localhost:8080", "адрес RFP Desk")
	id := fs.String("id", "", "идентификатор записи (обязательно)")
	interval := fs.Duration("interval", poller.DefaultInterval, "интервал опроса")
	maxAttempts := fs.Int("max", poller.DefaultMaxAttempts, "максимальное число опросов")
	timeout := fs.Duration("timeout", 10*time.Second, "таймаут одного HTTP-запроса")
	analyze := fs.Bool("analyze", false, "поставить повторный анализ перед опросом")
	verbose := fs.Bool("v", false, "печатать каждый опрошенный статус")
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if *id == "" {
		fmt.Fprintln(stderr, "rfpwatch: флаг -id обязателен")
		fs.Usage()
		return exitError
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	c, err := client.New(*baseURL, *timeout, logger)
	if err != nil {
		fmt.Fprintf(stderr, "rfpwatch: %v\n", err)
		return exitError
	}

	if *analyze {
		job, err := c.Analyze(ctx, *id)
		if err != nil {
			fmt.Fprintf(stderr, "rfpwatch: постановка анализа: %v\n", err)
			return exitError
		}
		fmt.Fprintf(stdout, "Анализ поставлен: задача %s\n", job.JobId)
	}

	p := poller.New(*interval, *maxAttempts, logger)
	if *verbose {
		p.OnPoll = func(attempt int, st status.Status) {
			fmt.Fprintf(stdout, "[%d] %s\n", attempt, st)
		}
	}

	final, err := p.WaitTerminal(ctx, func(ctx context.Context) (status.Status, error) {
		return c.Status(ctx, *id)
	})
	if err != nil {
		switch {
		case errors.Is(err, poller.ErrNotStarted):
			fmt.Fprintf(stdout, "%s: %s\n", *id, final)
			fmt.Fprintf(stderr, "rfpwatch: %s: анализ не запущен, используйте -analyze\n", *id)
		case errors.Is(err, poller.ErrPollExhausted):
			fmt.Fprintf(stderr, "rfpwatch: %s: статус не стал итоговым: %v\n", *id, err)
		case errors.Is(err, context.Canceled):
			fmt.Fprintln(stderr, "rfpwatch: прервано")
		default:
			fmt.Fprintf(stderr, "rfpwatch: %s: %v\n", *id, err)
		}
		return exitError
	}

	fmt.Fprintf(stdout, "%s: %s\n", *id, final)
	if final == status.AnalysisFailed {
		return exitFailed
	}
	return exitOK
}
