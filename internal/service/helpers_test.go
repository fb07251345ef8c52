package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
	"github.com/bigkaa/rfpdesk/internal/storage/filestore"
	"github.com/bigkaa/rfpdesk/internal/storage/jobs"
	"github.com/bigkaa/rfpdesk/internal/storage/recordstore"
	"github.com/bigkaa/rfpdesk/internal/storage/snapshot"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv — файловое окружение сервисов в t.TempDir().
type testEnv struct {
	dir       string
	store     *recordstore.FileStore
	records   *RecordService
	assets    *filestore.FileStore
	journal   *jobs.FileJournal
	snapshots *snapshot.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := recordstore.NewFileStore(filepath.Join(dir, "rfps"), testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	assets, err := filestore.New(filepath.Join(dir, "pdfs"))
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	journal, err := jobs.NewFileJournal(filepath.Join(dir, "jobs"), testLogger())
	if err != nil {
		t.Fatalf("NewFileJournal: %v", err)
	}
	snapshots, err := snapshot.New(filepath.Join(dir, "analysis"))
	if err != nil {
		t.Fatalf("snapshot.New: %v", err)
	}

	return &testEnv{
		dir:       dir,
		store:     store,
		records:   NewRecordService(store, testLogger()),
		assets:    assets,
		journal:   journal,
		snapshots: snapshots,
	}
}

// createRecord создаёт запись с парой документов.
func (e *testEnv) createRecord(t *testing.T, id string, st status.Status) *model.RFP {
	t.Helper()
	ctx := context.Background()

	rfp, err := e.assets.Put(ctx, id, model.RoleRFP, strings.NewReader("%PDF rfp "+id))
	if err != nil {
		t.Fatalf("Put rfp: %v", err)
	}
	company, err := e.assets.Put(ctx, id, model.RoleCompany, strings.NewReader("%PDF company "+id))
	if err != nil {
		t.Fatalf("Put company: %v", err)
	}

	rec, _, err := e.records.CreateOrMerge(ctx, model.Patch{
		ID:              id,
		Name:            model.Ptr("Мост " + id),
		Company:         model.Ptr("Acme"),
		Status:          model.Ptr(st),
		PDFFileName:     model.Ptr(rfp.FileName),
		CompanyFileName: model.Ptr(company.FileName),
	})
	if err != nil {
		t.Fatalf("CreateOrMerge: %v", err)
	}
	return rec
}

// fakeAnalyzer — подменяемый сервис анализа.
type fakeAnalyzer struct {
	mu     sync.Mutex
	calls  int
	submit func(ctx context.Context, call int) (*model.AnalysisResult, error)

	// rfpPDF, companyPDF — документы последнего вызова
	rfpPDF, companyPDF []byte
}

func (f *fakeAnalyzer) Submit(ctx context.Context, rfpPDF, companyPDF []byte) (*model.AnalysisResult, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.rfpPDF, f.companyPDF = rfpPDF, companyPDF
	f.mu.Unlock()
	return f.submit(ctx, call)
}

func (f *fakeAnalyzer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// eligibleResult — результат анализа без несоответствий.
func eligibleResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		Status: status.Eligible,
		Eligibility: model.Eligibility{
			Matches:    []model.Requirement{{Requirement: "Years in Business", Details: "Company: 5 | RFP: >= 3"}},
			Mismatches: []model.Requirement{},
		},
		Checklist: []model.ChecklistItem{{Item: "Форма заявки", Status: "done"}},
		Risks:     []model.Risk{{Clause: "Штрафы", Risk: "High", Suggestion: "Ограничить сумму"}},
	}
}

// newRFP — запись в памяти с заданным статусом и временем.
func newRFP(st status.Status, date, updatedAt time.Time) *model.RFP {
	rec := &model.RFP{ID: "r", Name: "n", Company: "c", Status: st, Date: date, UpdatedAt: updatedAt}
	rec.Normalize()
	return rec
}
