// Пакет recordcache — LRU-кэш записей с TTL поверх любого recordstore.Store.
// Обёртка над hashicorp/golang-lru/v2/expirable.
//
// Get обслуживается из кэша, Put пишет в хранилище и обновляет кэш,
// List всегда читает хранилище (список должен видеть записи, созданные
// другими процессами) и обновляет кэш прочитанными записями.
package recordcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/storage/recordstore"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rfpdesk_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rfpdesk_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей.",
	})
)

// Store — кэширующий декоратор хранилища записей.
type Store struct {
	next  recordstore.Store
	cache *expirable.LRU[string, *model.RFP]
}

// New создаёт кэш с указанным максимальным размером и TTL.
// Записи в кэше хранятся как копии: вызывающий код может менять
// полученную запись, не затрагивая кэш.
func New(next recordstore.Store, maxSize int, ttl time.Duration) *Store {
	return &Store{
		next:  next,
		cache: expirable.NewLRU[string, *model.RFP](maxSize, nil, ttl),
	}
}

// Get возвращает запись из кэша или из хранилища при промахе.
func (s *Store) Get(ctx context.Context, id string) (*model.RFP, error) {
	if rec, ok := s.cache.Get(id); ok {
		cacheHitsTotal.Inc()
		return rec.Clone(), nil
	}
	cacheMissesTotal.Inc()

	rec, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, rec.Clone())
	return rec, nil
}

// Put записывает запись в хранилище и обновляет кэш.
// При ошибке записи запись удаляется из кэша.
func (s *Store) Put(ctx context.Context, rec *model.RFP) error {
	if err := s.next.Put(ctx, rec); err != nil {
		s.cache.Remove(rec.ID)
		return err
	}
	s.cache.Add(rec.ID, rec.Clone())
	return nil
}

// List читает хранилище и обновляет кэш.
func (s *Store) List(ctx context.Context) ([]*model.RFP, error) {
	recs, err := s.next.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		s.cache.Add(rec.ID, rec.Clone())
	}
	return recs, nil
}

