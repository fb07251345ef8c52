// backends.go — выбор и подключение хранилищ по конфигурации.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/rfpdesk/internal/api/handlers"
	"github.com/bigkaa/rfpdesk/internal/config"
	"github.com/bigkaa/rfpdesk/internal/storage/filestore"
	"github.com/bigkaa/rfpdesk/internal/storage/jobs"
	"github.com/bigkaa/rfpdesk/internal/storage/objstore"
	"github.com/bigkaa/rfpdesk/internal/storage/pgstore"
	"github.com/bigkaa/rfpdesk/internal/storage/recordcache"
	"github.com/bigkaa/rfpdesk/internal/storage/recordstore"
)

// redisKeyPrefix — префикс ключей журнала задач в Redis.
const redisKeyPrefix = "rfpdesk:"

// backends — подключённые хранилища и их проверки готовности.
type backends struct {
	records recordstore.Store
	assets  filestore.AssetStore
	journal jobs.Journal

	// sqlDB — *sql.DB поверх pgxpool для topologymetrics (nil без PostgreSQL)
	sqlDB *sql.DB
	// checkers — проверки готовности сетевых бэкендов
	checkers map[string]handlers.ReadinessChecker
	// dataDirs — локальные директории, проверяемые в /health/ready
	dataDirs []string

	closers []func()
}

// Close освобождает подключения в обратном порядке.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends подключает хранилища записей, документов и журнала задач.
// При ошибке уже открытые подключения закрываются.
func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *backends, err error) {
	b := &backends{checkers: make(map[string]handlers.ReadinessChecker)}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if err := b.openRecords(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if err := b.openAssets(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if err := b.openJournal(ctx, cfg, logger); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *backends) openRecords(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var store recordstore.Store

	switch cfg.RecordBackend {
	case config.BackendPostgres:
		if err := pgstore.Migrate(cfg.MigrateURL(), logger); err != nil {
			return err
		}
		pool, err := pgstore.Connect(ctx, cfg.DatabaseDSN(), logger)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, pool.Close)

		b.sqlDB = stdlib.OpenDBFromPool(pool)
		b.closers = append(b.closers, func() { _ = b.sqlDB.Close() })

		pg := pgstore.New(pool, logger)
		b.checkers["postgresql"] = pg
		store = pg

	default:
		dir := filepath.Join(cfg.DataDir, "rfps")
		fs, err := recordstore.NewFileStore(dir, logger)
		if err != nil {
			return err
		}
		b.dataDirs = append(b.dataDirs, dir)
		store = fs
	}

	if cfg.CacheSize > 0 {
		store = recordcache.New(store, cfg.CacheSize, cfg.CacheTTL)
		logger.Info("Кэш записей включён",
			slog.Int("size", cfg.CacheSize),
			slog.Duration("ttl", cfg.CacheTTL),
		)
	}
	b.records = store
	return nil
}

func (b *backends) openAssets(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	switch cfg.AssetBackend {
	case config.BackendMinio:
		obj, err := objstore.New(objstore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, logger)
		if err != nil {
			return err
		}
		if err := obj.EnsureBucket(ctx); err != nil {
			return err
		}
		b.checkers["minio"] = obj
		b.assets = obj

	default:
		dir := filepath.Join(cfg.DataDir, "pdfs")
		fs, err := filestore.New(dir)
		if err != nil {
			return err
		}
		b.dataDirs = append(b.dataDirs, dir)
		b.assets = fs
	}
	return nil
}

func (b *backends) openJournal(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	switch cfg.JobBackend {
	case config.BackendRedis:
		rdb, err := jobs.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("подключение к Redis: %w", err)
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })

		rj := jobs.NewRedisJournal(rdb, redisKeyPrefix, logger)
		b.checkers["redis"] = rj
		b.journal = rj

	default:
		dir := filepath.Join(cfg.DataDir, "jobs")
		fj, err := jobs.NewFileJournal(dir, logger)
		if err != nil {
			return err
		}
		b.dataDirs = append(b.dataDirs, dir)
		b.journal = fj
	}
	return nil
}
