// Пакет objstore — хранилище PDF-документов в S3-совместимом хранилище (MinIO).
// Реализует filestore.AssetStore: объект {role}_{id}.pdf в одном бакете.
package objstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/storage/filestore"
)

// Config — параметры подключения к MinIO.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Store — документы в бакете MinIO.
type Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

var _ filestore.AssetStore = (*Store)(nil)

// New создаёт клиент MinIO. Бакет создаётся через EnsureBucket.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента MinIO: %w", err)
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With(slog.String("component", "object_store")),
	}, nil
}

// EnsureBucket создаёт бакет, если он не существует.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("ошибка проверки бакета %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("ошибка создания бакета %s: %w", s.bucket, err)
	}
	s.logger.Info("Бакет создан", slog.String("bucket", s.bucket))
	return nil
}

// Put загружает документ в бакет, перезаписывая существующий объект.
// Размер заранее неизвестен, поэтому используется multipart upload (size = -1).
func (s *Store) Put(ctx context.Context, id string, role model.Role, r io.Reader) (*filestore.SaveResult, error) {
	if err := model.ValidateID(id); err != nil {
		return nil, err
	}
	if _, err := model.ParseRole(string(role)); err != nil {
		return nil, err
	}

	name := model.AssetFileName(id, role)
	hasher := sha256.New()

	info, err := s.client.PutObject(ctx, s.bucket, name, io.TeeReader(r, hasher), -1, minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка загрузки %s: %v", model.ErrIO, name, err)
	}

	return &filestore.SaveResult{
		FileName: name,
		Size:     info.Size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает объект для чтения.
func (s *Store) Open(ctx context.Context, filename string) (io.ReadCloser, *filestore.AssetInfo, error) {
	name, err := filestore.SanitizeName(filename)
	if err != nil {
		return nil, nil, err
	}

	stat, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, fmt.Errorf("%w: документ %s", model.ErrNotFound, name)
		}
		return nil, nil, fmt.Errorf("%w: ошибка получения информации о %s: %v", model.ErrIO, name, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: ошибка чтения %s: %v", model.ErrIO, name, err)
	}

	return obj, &filestore.AssetInfo{FileName: name, Size: stat.Size, ModTime: stat.LastModified}, nil
}

// Exists проверяет наличие объекта.
func (s *Store) Exists(ctx context.Context, filename string) bool {
	name, err := filestore.SanitizeName(filename)
	if err != nil {
		return false
	}
	_, err = s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	return err == nil
}

// CheckReady проверяет доступность бакета.
func (s *Store) CheckReady() (status string, message string) {
	ok, err := s.client.BucketExists(context.Background(), s.bucket)
	if err != nil {
		return "fail", fmt.Sprintf("MinIO недоступен: %v", err)
	}
	if !ok {
		return "fail", fmt.Sprintf("бакет %s не найден", s.bucket)
	}
	return "ok", "бакет доступен"
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
