package jobs

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis запускает Redis контейнер и возвращает журнал.
func setupRedis(t *testing.T) *RedisJournal {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Не удалось запустить Redis контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Не удалось получить адрес контейнера: %v", err)
	}

	rdb, err := NewRedisClient(ctx, endpoint, "", 0)
	if err != nil {
		t.Fatalf("Ошибка подключения к Redis: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })

	return NewRedisJournal(rdb, "rfpdesk-test:", testLogger())
}

func TestRedisJournal_Lifecycle(t *testing.T) {
	j := setupRedis(t)
	ctx := context.Background()

	a, err := j.Start(ctx, "a")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	b, _ := j.Start(ctx, "b")

	if err := j.Complete(ctx, a.JobID, 1); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := j.Complete(ctx, a.JobID, 1); !errors.Is(err, ErrNotPending) {
		t.Errorf("ожидалась ErrNotPending, получено %v", err)
	}

	pending, err := j.RecoverPending(ctx)
	if err != nil {
		t.Fatalf("RecoverPending: %v", err)
	}
	if len(pending) != 1 || pending[0].JobID != b.JobID {
		t.Errorf("ожидалась одна pending задача %s, получено %+v", b.JobID, pending)
	}

	cleaned, err := j.Clean(ctx, 0)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if cleaned != 1 {
		t.Errorf("ожидалась 1 удалённая задача, получено %d", cleaned)
	}
	if _, err := j.Get(ctx, a.JobID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("ожидалась ErrJobNotFound, получено %v", err)
	}

	if st, _ := j.CheckReady(); st != "ok" {
		t.Errorf("CheckReady: ожидалось ok, получено %q", st)
	}
}
