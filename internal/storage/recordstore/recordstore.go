// Пакет recordstore — хранилище RFP-записей.
// Store — интерфейс хранилища, FileStore — реализация «один JSON-файл на запись»:
// {dir}/{id}.json. Все операции записи выполняются атомарно: temp → fsync → rename.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/storage/atomicfile"
)

// Store — хранилище записей. Реализации: FileStore, pgstore.Store,
// recordcache.Store (декоратор).
type Store interface {
	// Get возвращает запись по id. Ошибка оборачивает model.ErrNotFound, если записи нет.
	Get(ctx context.Context, id string) (*model.RFP, error)
	// Put полностью заменяет сохранённую запись.
	Put(ctx context.Context, rec *model.RFP) error
	// List возвращает все записи, новые (по date) первыми.
	List(ctx context.Context) ([]*model.RFP, error)
}

// RecordSuffix — суффикс файла записи.
const RecordSuffix = ".json"

// recordsCorruptTotal — количество повреждённых файлов, пропущенных при List.
var recordsCorruptTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rfpdesk_records_corrupt_total",
	Help: "Количество повреждённых файлов записей, пропущенных при чтении списка",
})

// FileStore — файловое хранилище записей.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore создаёт файловое хранилище. Создаёт директорию,
// если она не существует (существующая директория — не ошибка).
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: не удалось создать директорию записей %s: %v", model.ErrIO, dir, err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With(slog.String("component", "record_store")),
	}, nil
}

// RecordPath возвращает путь к файлу записи.
func (s *FileStore) RecordPath(id string) string {
	return filepath.Join(s.dir, id+RecordSuffix)
}

// Get читает запись из {id}.json.
func (s *FileStore) Get(_ context.Context, id string) (*model.RFP, error) {
	if err := model.ValidateID(id); err != nil {
		return nil, err
	}

	rec, err := readRecord(s.RecordPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: запись %s", model.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", model.ErrIO, err)
	}
	return rec, nil
}

// Put атомарно записывает запись в {id}.json.
// Ошибки записи не повторяются и возвращаются вызывающему коду.
func (s *FileStore) Put(_ context.Context, rec *model.RFP) error {
	if err := model.ValidateID(rec.ID); err != nil {
		return err
	}

	rec.Normalize()
	if err := atomicfile.WriteJSON(s.RecordPath(rec.ID), rec); err != nil {
		return fmt.Errorf("%w: запись %s: %v", model.ErrIO, rec.ID, err)
	}

	s.logger.Debug("Запись сохранена",
		slog.String("rfp_id", rec.ID),
		slog.String("status", string(rec.Status)),
	)
	return nil
}

// List читает все записи директории. Повреждённые файлы пропускаются
// с предупреждением в логе, остальные записи возвращаются.
func (s *FileStore) List(_ context.Context) ([]*model.RFP, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*model.RFP{}, nil
		}
		return nil, fmt.Errorf("%w: ошибка сканирования директории %s: %v", model.ErrIO, s.dir, err)
	}

	result := make([]*model.RFP, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, RecordSuffix) || strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(s.dir, name)
		rec, err := readRecord(path)
		if err != nil {
			recordsCorruptTotal.Inc()
			s.logger.Warn("Повреждённый файл записи пропущен",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		result = append(result, rec)
	}

	SortNewestFirst(result)
	return result, nil
}

// SortNewestFirst сортирует записи по date по убыванию, при равенстве — по id.
func SortNewestFirst(recs []*model.RFP) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date) {
			return recs[i].Date.After(recs[j].Date)
		}
		return recs[i].ID < recs[j].ID
	})
}

// readRecord читает и десериализует запись из файла.
func readRecord(path string) (*model.RFP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}

	var rec model.RFP
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("ошибка десериализации %s: %w", path, err)
	}
	if rec.ID == "" {
		rec.ID = strings.TrimSuffix(filepath.Base(path), RecordSuffix)
	}

	rec.Normalize()
	return &rec, nil
}
