// Пакет service — бизнес-логика RFP Desk.
// records.go — сервис записей: создание или слияние, чтение, список.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
	"github.com/bigkaa/rfpdesk/internal/storage/recordstore"
)

// recordsTotal — количество записей по статусам (обновляется при List).
var recordsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "rfpdesk_records_total",
	Help: "Количество RFP-записей по статусам.",
}, []string{"status"})

// RecordService — операции над RFP-записями.
//
// Запись одного id сериализуется внутри процесса; конкурирующие процессы
// над общим хранилищем остаются last-write-wins.
type RecordService struct {
	store  recordstore.Store
	locks  *keyedMutex
	logger *slog.Logger
	now    func() time.Time
}

// NewRecordService создаёт сервис записей.
func NewRecordService(store recordstore.Store, logger *slog.Logger) *RecordService {
	return &RecordService{
		store:  store,
		locks:  newKeyedMutex(),
		logger: logger.With(slog.String("component", "record_service")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get возвращает запись по id.
func (s *RecordService) Get(ctx context.Context, id string) (*model.RFP, error) {
	return s.store.Get(ctx, id)
}

// List возвращает все записи, новые первыми, и обновляет метрику по статусам.
func (s *RecordService) List(ctx context.Context) ([]*model.RFP, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	updateRecordMetrics(recs)
	return recs, nil
}

// CreateOrMerge создаёт запись из патча или сливает патч с существующей.
// Возвращает итоговую запись и true, если запись была создана.
//
// Ошибки:
//   - model.ErrValidation — некорректный id, нет name/company при создании, неизвестный статус
//   - model.ErrInvalidTransition — переход статуса запрещён
//   - model.ErrIO — ошибка хранилища
func (s *RecordService) CreateOrMerge(ctx context.Context, p model.Patch) (*model.RFP, bool, error) {
	if err := model.ValidateID(p.ID); err != nil {
		return nil, false, err
	}

	unlock := s.locks.Lock(p.ID)
	defer unlock()

	now := s.now()
	existing, err := s.store.Get(ctx, p.ID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		if p.Status != nil {
			if _, err := status.Parse(string(*p.Status)); err != nil {
				return nil, false, transitionErr(err)
			}
		}
		rec, err := model.NewRecord(p, now)
		if err != nil {
			return nil, false, err
		}
		if err := s.store.Put(ctx, rec); err != nil {
			return nil, false, err
		}
		s.logger.Info("Запись создана",
			slog.String("rfp_id", rec.ID),
			slog.String("status", rec.Status.String()),
		)
		return rec, true, nil

	case err != nil:
		return nil, false, err
	}

	if err := s.merge(ctx, existing, p, now); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// MergeIf сливает патч с существующей записью, только если cond истинно
// для её текущего состояния. Чтение, проверка и запись идут под
// блокировкой id. Второе значение — был ли патч применён.
func (s *RecordService) MergeIf(ctx context.Context, p model.Patch, cond func(*model.RFP) bool) (*model.RFP, bool, error) {
	if err := model.ValidateID(p.ID); err != nil {
		return nil, false, err
	}

	unlock := s.locks.Lock(p.ID)
	defer unlock()

	existing, err := s.store.Get(ctx, p.ID)
	if err != nil {
		return nil, false, err
	}
	if !cond(existing) {
		return existing, false, nil
	}
	if err := s.merge(ctx, existing, p, s.now()); err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

// merge вызывается под блокировкой id.
func (s *RecordService) merge(ctx context.Context, existing *model.RFP, p model.Patch, now time.Time) error {
	if p.Status != nil {
		if err := status.CheckTransition(existing.Status, *p.Status); err != nil {
			return transitionErr(err)
		}
	}

	prev := existing.Status
	p.Apply(existing, now)
	if err := s.store.Put(ctx, existing); err != nil {
		return err
	}

	if prev != existing.Status {
		s.logger.Info("Статус записи изменён",
			slog.String("rfp_id", existing.ID),
			slog.String("from", prev.String()),
			slog.String("to", existing.Status.String()),
		)
	} else {
		s.logger.Debug("Запись обновлена", slog.String("rfp_id", existing.ID))
	}
	return nil
}

// transitionErr сопоставляет ошибку смены статуса доменной ошибке.
func transitionErr(err error) error {
	var te *status.TransitionError
	if !errors.As(err, &te) {
		return err
	}
	if te.Code == status.CodeInvalidTransition {
		return fmt.Errorf("%w: %s", model.ErrInvalidTransition, te.Message)
	}
	return fmt.Errorf("%w: %s", model.ErrValidation, te.Message)
}

func updateRecordMetrics(recs []*model.RFP) {
	counts := make(map[status.Status]int, len(status.All()))
	for _, r := range recs {
		counts[r.Status]++
	}
	for _, st := range status.All() {
		recordsTotal.WithLabelValues(st.String()).Set(float64(counts[st]))
	}
}

// keyedMutex — набор мьютексов по ключу. Запись удаляется, когда
// её больше никто не держит.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock захватывает мьютекс ключа и возвращает функцию освобождения.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
