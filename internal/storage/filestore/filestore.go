// Пакет filestore — хранилище PDF-документов записей.
// AssetStore — интерфейс хранилища, FileStore — реализация на локальном диске.
// Имя документа детерминировано: {role}_{id}.pdf, повторная загрузка
// перезаписывает документ. Запись streaming с подсчётом SHA-256 на лету.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
)

// AssetStore — хранилище документов. Реализации: FileStore, objstore.Store.
type AssetStore interface {
	// Put сохраняет документ роли role для записи id, перезаписывая прежний.
	Put(ctx context.Context, id string, role model.Role, r io.Reader) (*SaveResult, error)
	// Open открывает документ по имени файла. Вызывающий код обязан закрыть ReadCloser.
	// Ошибка оборачивает model.ErrNotFound для отсутствующих и недопустимых имён.
	Open(ctx context.Context, filename string) (io.ReadCloser, *AssetInfo, error)
	// Exists проверяет наличие документа.
	Exists(ctx context.Context, filename string) bool
}

// SaveResult — результат сохранения документа.
type SaveResult struct {
	// FileName — имя документа ({role}_{id}.pdf)
	FileName string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого
	Checksum string
}

// AssetInfo — сведения о сохранённом документе.
type AssetInfo struct {
	FileName string
	Size     int64
	ModTime  time.Time
}

// FileStore — документы на локальном диске.
type FileStore struct {
	// dataDir — директория документов ({RFP_DATA_DIR}/pdfs)
	dataDir string
}

var _ AssetStore = (*FileStore)(nil)

// New создаёт FileStore. Создаёт директорию, если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: не удалось создать директорию документов %s: %v", model.ErrIO, dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// Put записывает документ из reader на диск под именем {role}_{id}.pdf.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется, прежняя версия документа сохраняется.
func (s *FileStore) Put(_ context.Context, id string, role model.Role, reader io.Reader) (*SaveResult, error) {
	if err := model.ValidateID(id); err != nil {
		return nil, err
	}
	if _, err := model.ParseRole(string(role)); err != nil {
		return nil, err
	}

	name := model.AssetFileName(id, role)
	fullPath := filepath.Join(s.dataDir, name)

	// Свой temp файл на каждую загрузку; при параллельных Put побеждает последний rename
	f, err := os.CreateTemp(s.dataDir, name+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка создания временного файла: %v", model.ErrIO, err)
	}
	tmpPath := f.Name()

	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: ошибка записи данных: %v", model.ErrIO, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: ошибка fsync: %v", model.ErrIO, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: ошибка закрытия файла: %v", model.ErrIO, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: ошибка атомарного переименования: %v", model.ErrIO, err)
	}

	return &SaveResult{
		FileName: name,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает документ для чтения. Имя сводится к базовому имени файла,
// поэтому запрос вида ../../etc/passwd ищет passwd внутри директории документов.
func (s *FileStore) Open(_ context.Context, filename string) (io.ReadCloser, *AssetInfo, error) {
	name, err := SanitizeName(filename)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.dataDir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: документ %s", model.ErrNotFound, name)
		}
		return nil, nil, fmt.Errorf("%w: ошибка открытия документа %s: %v", model.ErrIO, name, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%w: ошибка получения информации о документе %s: %v", model.ErrIO, name, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: документ %s", model.ErrNotFound, name)
	}

	return f, &AssetInfo{FileName: name, Size: st.Size(), ModTime: st.ModTime()}, nil
}

// Exists проверяет существование документа.
func (s *FileStore) Exists(_ context.Context, filename string) bool {
	name, err := SanitizeName(filename)
	if err != nil {
		return false
	}
	st, err := os.Stat(filepath.Join(s.dataDir, name))
	return err == nil && !st.IsDir()
}

// SanitizeName сводит имя к базовому имени файла и отклоняет имена,
// которые не могут быть документом: пустые, ".", "..", скрытые,
// временные (*.tmp), с обратной косой чертой или нулевым байтом.
func SanitizeName(filename string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	switch {
	case name == "" || name == "." || name == ".." || name == "/":
		return "", fmt.Errorf("%w: недопустимое имя документа %q", model.ErrNotFound, filename)
	case strings.HasPrefix(name, "."),
		strings.HasSuffix(name, ".tmp"),
		strings.ContainsAny(name, "\\\x00"):
		return "", fmt.Errorf("%w: недопустимое имя документа %q", model.ErrNotFound, filename)
	}
	return name, nil
}
