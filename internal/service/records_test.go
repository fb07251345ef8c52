package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
)

// TestCreateOrMerge_Create проверяет создание записи с умолчаниями.
func TestCreateOrMerge_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, created, err := env.records.CreateOrMerge(ctx, model.Patch{
		ID:      "abc123",
		Name:    model.Ptr("Мост через реку"),
		Company: model.Ptr("Acme"),
		Status:  model.Ptr(status.Analyzing),
	})
	if err != nil {
		t.Fatalf("CreateOrMerge: %v", err)
	}
	if !created {
		t.Error("ожидалось создание записи")
	}
	if rec.Status != status.Analyzing {
		t.Errorf("статус: ожидалось %q, получено %q", status.Analyzing, rec.Status)
	}
	if rec.Checklist == nil || rec.Risks == nil || rec.Eligibility.Matches == nil {
		t.Error("коллекции должны быть пустыми массивами")
	}

	got, err := env.records.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Мост через реку" || !got.Date.Equal(rec.Date) {
		t.Errorf("прочитана другая запись: %+v", got)
	}
}

// TestCreateOrMerge_MergePreservesFields — незаданные поля сохраняются.
func TestCreateOrMerge_MergePreservesFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, _, err := env.records.CreateOrMerge(ctx, model.Patch{
		ID:      "abc123",
		Name:    model.Ptr("X"),
		Company: model.Ptr("Acme"),
		Status:  model.Ptr(status.Analyzing),
	})
	if err != nil {
		t.Fatalf("создание: %v", err)
	}

	matches := []model.Requirement{{Requirement: "Years in Business"}}
	merged, created, err := env.records.CreateOrMerge(ctx, model.Patch{
		ID:          "abc123",
		Status:      model.Ptr(status.Eligible),
		Eligibility: &model.EligibilityPatch{Matches: &matches},
	})
	if err != nil {
		t.Fatalf("слияние: %v", err)
	}
	if created {
		t.Error("запись не должна создаваться повторно")
	}
	if merged.Name != "X" || merged.Company != "Acme" {
		t.Errorf("name/company изменены: %q / %q", merged.Name, merged.Company)
	}
	if merged.Status != status.Eligible {
		t.Errorf("статус: ожидалось %q, получено %q", status.Eligible, merged.Status)
	}
	if len(merged.Eligibility.Matches) != 1 || len(merged.Eligibility.Mismatches) != 0 {
		t.Errorf("eligibility: %+v", merged.Eligibility)
	}
	if !merged.Date.Equal(first.Date) {
		t.Errorf("date изменена: %v → %v", first.Date, merged.Date)
	}
}

// TestCreateOrMerge_MissingRequired — создание без name/company.
func TestCreateOrMerge_MissingRequired(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.records.CreateOrMerge(context.Background(), model.Patch{ID: "x1", Name: model.Ptr("Только имя")})
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("ожидалась ErrValidation, получено %v", err)
	}
	if _, err := env.records.Get(context.Background(), "x1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("запись не должна быть создана: %v", err)
	}
}

// TestCreateOrMerge_StatusValidation проверяет набор статусов и матрицу переходов.
func TestCreateOrMerge_StatusValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.records.CreateOrMerge(ctx, model.Patch{
		ID:      "s1",
		Name:    model.Ptr("n"),
		Company: model.Ptr("c"),
		Status:  model.Ptr(status.Status("Done")),
	})
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("неизвестный статус при создании: ожидалась ErrValidation, получено %v", err)
	}

	env.createRecord(t, "s2", status.Pending)

	tests := []struct {
		to      status.Status
		wantErr error
	}{
		{status.Eligible, model.ErrInvalidTransition},
		{status.Status("Unknown"), model.ErrValidation},
		{status.Pending, nil},
		{status.Analyzing, nil},
		{status.Complete, nil},
		{status.Pending, model.ErrInvalidTransition},
	}
	for _, tt := range tests {
		_, _, err := env.records.CreateOrMerge(ctx, model.Patch{ID: "s2", Status: model.Ptr(tt.to)})
		if tt.wantErr == nil {
			if err != nil {
				t.Errorf("→ %q: неожиданная ошибка %v", tt.to, err)
			}
			continue
		}
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("→ %q: ожидалась %v, получено %v", tt.to, tt.wantErr, err)
		}
	}

	rec, _ := env.records.Get(ctx, "s2")
	if rec.Status != status.Complete {
		t.Errorf("итоговый статус: ожидалось %q, получено %q", status.Complete, rec.Status)
	}
}

// TestCreateOrMerge_InvalidID — id проверяется до обращения к хранилищу.
func TestCreateOrMerge_InvalidID(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{"", "../etc", ".hidden", "a/b"} {
		_, _, err := env.records.CreateOrMerge(context.Background(), model.Patch{
			ID: id, Name: model.Ptr("n"), Company: model.Ptr("c"),
		})
		if !errors.Is(err, model.ErrValidation) {
			t.Errorf("id %q: ожидалась ErrValidation, получено %v", id, err)
		}
	}
}

// TestCreateOrMerge_Concurrent — параллельные слияния одного id не теряют обновлений.
func TestCreateOrMerge_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createRecord(t, "c1", status.Pending)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			risks := []model.Risk{{Clause: fmt.Sprintf("r%d", i)}}
			if _, _, err := env.records.CreateOrMerge(ctx, model.Patch{ID: "c1", Risks: &risks}); err != nil {
				t.Errorf("CreateOrMerge: %v", err)
			}
		}(i)
	}
	wg.Wait()

	rec, err := env.records.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(rec.Risks) != 1 || rec.Name != "Мост c1" {
		t.Errorf("запись повреждена: %+v", rec)
	}
	if env.records.locks.size() != 0 {
		t.Errorf("мьютексы не освобождены: %d", env.records.locks.size())
	}
}

// TestList_NewestFirst проверяет порядок списка.
func TestList_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		date := base.Add(time.Duration(i) * time.Hour)
		if _, _, err := env.records.CreateOrMerge(ctx, model.Patch{
			ID: id, Name: model.Ptr(id), Company: model.Ptr("c"), Date: &date,
		}); err != nil {
			t.Fatalf("CreateOrMerge: %v", err)
		}
	}

	list, err := env.records.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 || list[0].ID != "c" || list[2].ID != "a" {
		t.Errorf("неверный порядок: %v", ids(list))
	}
}

func ids(recs []*model.RFP) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestMergeIf(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createRecord(t, "r1", status.Analyzing)

	patch := model.Patch{ID: "r1", Status: model.Ptr(status.AnalysisFailed), Error: model.Ptr("timeout")}

	rec, applied, err := env.records.MergeIf(ctx, patch, func(cur *model.RFP) bool {
		return cur.Status == status.Pending
	})
	if err != nil {
		t.Fatalf("MergeIf: %v", err)
	}
	if applied {
		t.Error("патч не должен применяться при ложном условии")
	}
	if rec.Status != status.Analyzing {
		t.Errorf("статус: ожидалось %q, получено %q", status.Analyzing, rec.Status)
	}
	stored, _ := env.records.Get(ctx, "r1")
	if stored.Status != status.Analyzing || stored.Error != "" {
		t.Errorf("запись изменена: %q, %q", stored.Status, stored.Error)
	}

	rec, applied, err = env.records.MergeIf(ctx, patch, func(cur *model.RFP) bool {
		return cur.Status == status.Analyzing
	})
	if err != nil {
		t.Fatalf("MergeIf: %v", err)
	}
	if !applied {
		t.Fatal("патч должен примениться")
	}
	if rec.Status != status.AnalysisFailed || rec.Error != "timeout" {
		t.Errorf("ожидалось Analysis Failed/timeout, получено %q/%q", rec.Status, rec.Error)
	}
}

func TestMergeIf_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.records.MergeIf(context.Background(), model.Patch{ID: "none"},
		func(*model.RFP) bool { return true })
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}
