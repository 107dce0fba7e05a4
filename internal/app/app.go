// Package app assembles the allocation services from configuration. The HTTP server and the
// operator CLI share it so both run against identically wired services.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	"github.com/noah-isme/hostel-allocation-api/internal/repository/memory"
	"github.com/noah-isme/hostel-allocation-api/internal/service"
	"github.com/noah-isme/hostel-allocation-api/pkg/cache"
	"github.com/noah-isme/hostel-allocation-api/pkg/config"
	"github.com/noah-isme/hostel-allocation-api/pkg/database"
	"github.com/noah-isme/hostel-allocation-api/pkg/jobs"
	"github.com/noah-isme/hostel-allocation-api/pkg/storage"
)

// Store is the allocation backend the services run on.
type Store interface {
	repository.TxRunner
	Ping(ctx context.Context) error
}

type auditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Options selects optional infrastructure.
type Options struct {
	// Cache connects Redis when caching is enabled in the configuration.
	Cache bool
	// Exports builds export storage and the download signer.
	Exports bool
	// Warmup runs the summary warm queue; it needs Cache and a later Start.
	Warmup bool
}

// App holds the wired services.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sqlx.DB
	Redis   *redis.Client
	Store   Store
	Audit   auditStore
	Metrics *service.MetricsService

	Auth        *service.AuthService
	Cache       *service.CacheService
	Allocations *service.AllocationService
	Bulk        *service.BulkAllocationService
	Lifecycle   *service.RoomLifecycleService
	Catalog     *service.RoomCatalogService
	Occupancy   *service.OccupancyService
	Exports     *service.ExportService
	Consistency *service.ConsistencyService

	WarmQueue *jobs.Queue

	closers []func() error
}

// New connects the configured store and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: service.NewMetricsService()}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	if opts.Cache {
		client, err := cache.NewRedis(ctx, cfg.Redis, cfg.Cache)
		if err != nil {
			logger.Warn("redis unavailable, projections served uncached", zap.Error(err))
		} else if client != nil {
			a.Redis = client
			a.closers = append(a.closers, client.Close)
		}
	}
	var cacheRepo service.CacheRepository
	if a.Redis != nil {
		cacheRepo = repository.NewCacheRepository(a.Redis, "hostel", logger)
	}
	a.Cache = service.NewCacheService(cacheRepo, a.Metrics, cfg.Cache.SummaryTTL, logger, cacheRepo != nil)

	validate := validator.New()
	allocCfg := service.AllocationConfig{MaxTxRetries: cfg.Allocation.MaxTxRetries}

	a.Auth = service.NewAuthService(service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	a.Occupancy = service.NewOccupancyService(a.Store, a.Cache, service.OccupancyConfig{
		SummaryTTL: cfg.Cache.SummaryTTL,
		SheetTTL:   cfg.Cache.SheetTTL,
	}, logger.Named("occupancy"))
	a.Allocations = service.NewAllocationService(a.Store, a.Audit, a.Occupancy, a.Metrics, validate, allocCfg, logger.Named("allocation"))
	a.Bulk = service.NewBulkAllocationService(a.Store, a.Audit, a.Occupancy, a.Metrics, validate, service.BulkConfig{
		MaxRows:            cfg.Allocation.BulkMaxRows,
		ChunkSize:          cfg.Allocation.BulkChunkSize,
		ResolveConcurrency: cfg.Allocation.ResolveConcurrency,
		BcryptCost:         cfg.Allocation.BcryptCost,
	}, logger.Named("bulk"))
	a.Lifecycle = service.NewRoomLifecycleService(a.Store, a.Audit, a.Occupancy, a.Metrics, allocCfg, logger.Named("lifecycle"))
	a.Catalog = service.NewRoomCatalogService(a.Store, a.Audit, a.Occupancy, validate, logger.Named("catalog"))
	a.Consistency = service.NewConsistencyService(a.Store, logger.Named("consistency"))

	if opts.Warmup && a.Cache.Enabled() {
		a.WarmQueue = jobs.NewQueue("summary-warmup", a.Occupancy.WarmSummary, jobs.QueueConfig{
			Workers:    cfg.Jobs.Workers,
			MaxRetries: cfg.Jobs.MaxRetries,
			RetryDelay: cfg.Jobs.RetryDelay,
			Logger:     logger.Named("jobs"),
		})
		a.Occupancy.UseWarmQueue(a.WarmQueue)
	}

	var (
		exportStore storage.Store
		signer      *storage.SignedURLSigner
	)
	if opts.Exports {
		var err error
		if exportStore, err = openExportStorage(ctx, cfg.Exports); err != nil {
			_ = a.Close()
			return nil, err
		}
		signer = storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	}
	a.Exports = service.NewExportService(a.Occupancy, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logger.Named("exports"))

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.Store.Driver {
	case config.StoreDriverMemory:
		store := memory.New()
		a.Store = store
		a.Audit = store
		a.Logger.Warn("using in-memory allocation store; data is lost on exit")
		return nil
	case config.StoreDriverPostgres, "":
		db, err := database.NewPostgres(ctx, a.Config.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.DB = db
		a.Store = repository.NewPostgresStore(db, a.Metrics)
		a.Audit = repository.NewAuditRepository(db)
		a.closers = append(a.closers, db.Close)
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", a.Config.Store.Driver)
	}
}

func openExportStorage(ctx context.Context, cfg config.ExportsConfig) (storage.Store, error) {
	switch cfg.StorageDriver {
	case config.ExportStorageS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Prefix:          "exports",
			UsePathStyle:    cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	case config.ExportStorageLocal, "":
		return storage.NewLocalStorage(cfg.StorageDir)
	default:
		return nil, fmt.Errorf("unknown export storage driver %q", cfg.StorageDriver)
	}
}

// Start launches the background workers: the summary warm queue and the export cleanup loop.
func (a *App) Start(ctx context.Context) {
	if a.WarmQueue != nil {
		a.WarmQueue.Start(ctx)
		a.closers = append(a.closers, func() error {
			a.WarmQueue.Stop()
			return nil
		})
	}
	go a.Exports.RunCleanup(ctx, a.Config.Exports.CleanupInterval)
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
