package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
)

func TestReconcileRunOnce_NoIssues(t *testing.T) {
	env := newTestEnv(t)
	env.createRecord(t, "good-1", status.Pending)
	if _, _, err := env.records.CreateOrMerge(context.Background(), model.Patch{
		ID: "no-assets", Name: model.Ptr("n"), Company: model.Ptr("c"),
	}); err != nil {
		t.Fatalf("CreateOrMerge: %v", err)
	}

	rs := NewReconcileService(env.records, env.assets, nil, time.Hour, testLogger())
	report, skipped, err := rs.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if skipped {
		t.Fatal("сверка не должна пропускаться")
	}
	if report.RecordsChecked != 2 {
		t.Errorf("проверено записей: ожидалось 2, получено %d", report.RecordsChecked)
	}
	if len(report.Issues) != 0 {
		t.Errorf("ожидалось 0 проблем, получено %v", report.Issues)
	}
	if report.Summary.Ok != 2 {
		t.Errorf("ok: ожидалось 2, получено %d", report.Summary.Ok)
	}
}

func TestReconcileRunOnce_MissingAsset(t *testing.T) {
	env := newTestEnv(t)
	rec := env.createRecord(t, "r1", status.Pending)

	if err := os.Remove(filepath.Join(env.dir, "pdfs", rec.CompanyFileName)); err != nil {
		t.Fatalf("Ошибка удаления документа: %v", err)
	}

	rs := NewReconcileService(env.records, env.assets, nil, time.Hour, testLogger())
	report, _, err := rs.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(report.Issues) != 1 {
		t.Fatalf("ожидалась 1 проблема, получено %d", len(report.Issues))
	}
	issue := report.Issues[0]
	if issue.Type != IssueMissingAsset || issue.RFPID != "r1" || issue.FileName != rec.CompanyFileName {
		t.Errorf("неверная проблема: %+v", issue)
	}
	if report.Summary.MissingAssets != 1 || report.Summary.Ok != 0 {
		t.Errorf("неверная сводка: %+v", report.Summary)
	}

	// Сверка только сообщает о проблеме, запись не меняется
	after, _ := env.records.Get(context.Background(), "r1")
	if after.CompanyFileName != rec.CompanyFileName || after.Status != status.Pending {
		t.Errorf("запись изменена сверкой: %+v", after)
	}
}

func TestReconcileRunOnce_StuckAnalysis(t *testing.T) {
	env := newTestEnv(t)
	env.createRecord(t, "stuck", status.Analyzing)
	env.createRecord(t, "running", status.Analyzing)

	rs := NewReconcileService(env.records, env.assets, pendingSet{"running": true}, time.Minute, testLogger())
	rs.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }

	report, _, err := rs.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Summary.StuckAnalyses != 1 || report.Summary.Ok != 1 {
		t.Fatalf("неверная сводка: %+v", report.Summary)
	}
	if report.Issues[0].RFPID != "stuck" || report.Issues[0].Type != IssueStuckAnalysis {
		t.Errorf("неверная проблема: %+v", report.Issues[0])
	}
}

func TestReconcileRunOnce_ConcurrentSkipped(t *testing.T) {
	env := newTestEnv(t)
	rs := NewReconcileService(env.records, env.assets, nil, time.Hour, testLogger())

	// Эмулируем выполняющуюся сверку
	rs.mu.Lock()
	rs.inProcess = true
	rs.mu.Unlock()

	report, skipped, err := rs.RunOnce(context.Background())
	if err != nil || report != nil || !skipped {
		t.Errorf("ожидался пропуск: report=%v skipped=%v err=%v", report, skipped, err)
	}

	rs.mu.Lock()
	rs.inProcess = false
	rs.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := rs.RunOnce(context.Background()); err != nil {
				t.Errorf("RunOnce: %v", err)
			}
		}()
	}
	wg.Wait()
	rs.mu.Lock()
	inProcess := rs.inProcess
	rs.mu.Unlock()
	if inProcess {
		t.Error("флаг выполнения не сброшен")
	}
}
