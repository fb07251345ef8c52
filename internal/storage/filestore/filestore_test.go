package filestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "pdfs"))
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	return s
}

// TestNew_CreatesDirectory проверяет создание директории документов.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data", "pdfs")

	s, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	if s.dataDir != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, s.dataDir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestPut проверяет сохранение документа с подсчётом SHA-256.
func TestPut(t *testing.T) {
	s := newTestStore(t)
	content := []byte("%PDF-1.4 тестовый документ")

	result, err := s.Put(context.Background(), "xyz", model.RoleRFP, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if result.FileName != "rfp_xyz.pdf" {
		t.Errorf("имя: ожидалось %q, получено %q", "rfp_xyz.pdf", result.FileName)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), result.Size)
	}

	expected := sha256.Sum256(content)
	if result.Checksum != hex.EncodeToString(expected[:]) {
		t.Errorf("checksum: ожидалось %x, получено %s", expected, result.Checksum)
	}

	if tmp := tmpFiles(t, s.dataDir); len(tmp) != 0 {
		t.Errorf("временные файлы не удалены: %v", tmp)
	}
}

// TestPut_Overwrites — повторная загрузка молча перезаписывает документ.
func TestPut_Overwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _ = s.Put(ctx, "xyz", model.RoleCompany, strings.NewReader("v1"))
	if _, err := s.Put(ctx, "xyz", model.RoleCompany, strings.NewReader("version 2")); err != nil {
		t.Fatalf("повторная загрузка: %v", err)
	}

	rc, info, err := s.Open(ctx, "company_xyz.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "version 2" {
		t.Errorf("содержимое: ожидалось %q, получено %q", "version 2", string(data))
	}
	if info.Size != int64(len("version 2")) {
		t.Errorf("размер: ожидалось %d, получено %d", len("version 2"), info.Size)
	}
}

// TestPut_InvalidInput проверяет валидацию id и роли.
func TestPut_InvalidInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "../x", model.RoleRFP, strings.NewReader("x")); !errors.Is(err, model.ErrValidation) {
		t.Errorf("id: ожидалась ErrValidation, получено %v", err)
	}
	if _, err := s.Put(ctx, "x", model.Role("contract"), strings.NewReader("x")); !errors.Is(err, model.ErrValidation) {
		t.Errorf("роль: ожидалась ErrValidation, получено %v", err)
	}
}

// TestPut_ReaderError — ошибка чтения не оставляет temp файл и прежний документ.
func TestPut_ReaderError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _ = s.Put(ctx, "xyz", model.RoleRFP, strings.NewReader("старая версия"))

	_, err := s.Put(ctx, "xyz", model.RoleRFP, io.MultiReader(strings.NewReader("частично"), errReader{}))
	if !errors.Is(err, model.ErrIO) {
		t.Fatalf("ожидалась ErrIO, получено %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(s.dataDir, "rfp_xyz.pdf"))
	if string(data) != "старая версия" {
		t.Errorf("прежний документ повреждён: %q", string(data))
	}
	if tmp := tmpFiles(t, s.dataDir); len(tmp) != 0 {
		t.Errorf("временные файлы не удалены: %v", tmp)
	}
}

// TestPut_Concurrent — параллельные загрузки одного документа не смешивают
// содержимое: на диске остаётся ровно одна из версий целиком.
func TestPut_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	versions := make(map[string]bool, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		content := strings.Repeat(string(rune('a'+i)), 256*1024)
		versions[content] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Put(ctx, "xyz", model.RoleRFP, strings.NewReader(content)); err != nil {
				t.Errorf("Put: %v", err)
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(s.dataDir, "rfp_xyz.pdf"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !versions[string(data)] {
		t.Errorf("содержимое документа смешано из нескольких загрузок (%d байт)", len(data))
	}
	if tmp := tmpFiles(t, s.dataDir); len(tmp) != 0 {
		t.Errorf("временные файлы не удалены: %v", tmp)
	}
}

func tmpFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	return matches
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("обрыв соединения") }

// TestOpen_NotFound — отсутствующий документ.
func TestOpen_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.Open(context.Background(), "rfp_missing.pdf")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

// TestOpen_PathTraversal — имя с обходом каталогов ищется внутри директории документов.
func TestOpen_PathTraversal(t *testing.T) {
	root := t.TempDir()
	s, _ := New(filepath.Join(root, "pdfs"))

	// Файл вне директории документов
	_ = os.WriteFile(filepath.Join(root, "passwd"), []byte("secret"), 0o640)

	for _, name := range []string{"../../etc/passwd", "../passwd", "/etc/passwd", "..", ".", "", "..\\passwd"} {
		_, _, err := s.Open(context.Background(), name)
		if !errors.Is(err, model.ErrNotFound) {
			t.Errorf("Open(%q): ожидалась ErrNotFound, получено %v", name, err)
		}
	}
}

// TestOpen_StripsDirectories — путь сводится к базовому имени.
func TestOpen_StripsDirectories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _ = s.Put(ctx, "xyz", model.RoleRFP, strings.NewReader("pdf"))

	rc, info, err := s.Open(ctx, "some/dir/rfp_xyz.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rc.Close()
	if info.FileName != "rfp_xyz.pdf" {
		t.Errorf("ожидалось %q, получено %q", "rfp_xyz.pdf", info.FileName)
	}
}

// TestExists проверяет наличие документа.
func TestExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if s.Exists(ctx, "rfp_xyz.pdf") {
		t.Error("документ ещё не сохранён")
	}
	_, _ = s.Put(ctx, "xyz", model.RoleRFP, strings.NewReader("pdf"))
	if !s.Exists(ctx, "rfp_xyz.pdf") {
		t.Error("документ должен существовать")
	}
	if s.Exists(ctx, "../rfp_xyz.pdf.tmp") {
		t.Error("временные файлы не считаются документами")
	}
}

// TestSanitizeName проверяет нормализацию имён.
func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"rfp_xyz.pdf", "rfp_xyz.pdf", false},
		{"../../etc/passwd", "passwd", false},
		{"a/b/company_1.pdf", "company_1.pdf", false},
		{"..", "", true},
		{"", "", true},
		{".hidden", "", true},
		{"rfp_x.pdf.tmp", "", true},
		{"a\\b.pdf", "", true},
	}

	for _, tt := range tests {
		got, err := SanitizeName(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SanitizeName(%q): ожидалась ошибка, получено %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("SanitizeName(%q): неожиданная ошибка: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SanitizeName(%q): ожидалось %q, получено %q", tt.input, tt.want, got)
		}
	}
}
