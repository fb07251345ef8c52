// Пакет snapshot — снимки результатов анализа.
// Каждый снимок — отдельный файл analysis_{rfpId}_{unixMillis}.json,
// снимки только добавляются и никогда не перезаписываются.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/storage/atomicfile"
)

const filePrefix = "analysis_"

// Store — директория снимков.
type Store struct {
	dir string
	now func() time.Time
}

// New создаёт хранилище снимков. Создаёт директорию, если она не существует.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: не удалось создать директорию снимков %s: %v", model.ErrIO, dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Save записывает снимок и возвращает имя файла.
// Checklist и eligibility берутся из analysis, если не заданы на верхнем
// уровне; отсутствующие сохраняются пустыми.
func (s *Store) Save(_ context.Context, snap *model.Snapshot) (string, error) {
	if err := model.ValidateID(snap.RFPID); err != nil {
		return "", err
	}

	snap.FillFromAnalysis()

	if snap.Checklist == nil {
		snap.Checklist = []model.ChecklistItem{}
	}
	if snap.Eligibility.Matches == nil {
		snap.Eligibility.Matches = []model.Requirement{}
	}
	if snap.Eligibility.Mismatches == nil {
		snap.Eligibility.Mismatches = []model.Requirement{}
	}

	now := s.now().UTC()
	snap.SavedAt = now

	name := FileName(snap.RFPID, now)
	path := filepath.Join(s.dir, name)
	// Два снимка в одну миллисекунду не должны затирать друг друга
	for fileExists(path) {
		now = now.Add(time.Millisecond)
		name = FileName(snap.RFPID, now)
		path = filepath.Join(s.dir, name)
	}

	if err := atomicfile.WriteJSON(path, snap); err != nil {
		return "", fmt.Errorf("%w: снимок %s: %v", model.ErrIO, name, err)
	}
	return name, nil
}

// List возвращает имена снимков записи, от старых к новым.
func (s *Store) List(_ context.Context, rfpID string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+rfpID+"_*.json"))
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка сканирования директории снимков: %v", model.ErrIO, err)
	}

	type entry struct {
		name string
		ms   int64
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		name := filepath.Base(m)
		ms, ok := parseMillis(name, rfpID)
		if !ok {
			continue
		}
		entries = append(entries, entry{name: name, ms: ms})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ms < entries[j].ms })

	result := make([]string, len(entries))
	for i, e := range entries {
		result[i] = e.name
	}
	return result, nil
}

// Read читает снимок по имени файла.
func (s *Store) Read(_ context.Context, name string) (*model.Snapshot, error) {
	if filepath.Base(name) != name || !strings.HasPrefix(name, filePrefix) {
		return nil, fmt.Errorf("%w: снимок %s", model.ErrNotFound, name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: снимок %s", model.ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", model.ErrIO, err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: ошибка десериализации снимка %s: %v", model.ErrIO, name, err)
	}
	return &snap, nil
}

// FileName возвращает имя файла снимка.
func FileName(rfpID string, t time.Time) string {
	return fmt.Sprintf("%s%s_%d.json", filePrefix, rfpID, t.UnixMilli())
}

func parseMillis(name, rfpID string) (int64, bool) {
	s := strings.TrimPrefix(name, filePrefix+rfpID+"_")
	s = strings.TrimSuffix(s, ".json")
	ms, err := strconv.ParseInt(s, 10, 64)
	return ms, err == nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
