package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobmarket-crawler/internal/config"
	"github.com/JakeFAU/jobmarket-crawler/internal/publisher"
	pubsubpublisher "github.com/JakeFAU/jobmarket-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/jobmarket-crawler/internal/storage"
	"github.com/JakeFAU/jobmarket-crawler/internal/storage/gcs"
	"github.com/JakeFAU/jobmarket-crawler/internal/storage/local"
	"github.com/JakeFAU/jobmarket-crawler/internal/storage/memory"
	"github.com/JakeFAU/jobmarket-crawler/internal/storage/postgres"
	"github.com/JakeFAU/jobmarket-crawler/internal/storage/sqlite"
)

// closer releases a sink on shutdown.
type closer func() error

func newBlobStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.BlobStore, closer, error) {
	switch cfg.Backend {
	case config.StorageMemory:
		logger.Info("using in-memory artifact storage")
		return memory.NewBlobStore(), nil, nil
	case config.StorageLocal:
		store, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, nil, fmt.Errorf("local storage: %w", err)
		}
		logger.Info("using local artifact storage", zap.String("dir", cfg.LocalDir))
		return store, nil, nil
	case config.StorageGCS:
		store, err := gcs.Connect(ctx, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, nil, fmt.Errorf("gcs storage: %w", err)
		}
		logger.Info("using gcs artifact storage", zap.String("bucket", cfg.GCSBucket))
		return store, store.Close, nil
	default:
		return nil, nil, nil
	}
}

func newListingStore(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (storage.ListingStore, error) {
	if cfg.DSN == "" {
		return nil, nil
	}
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.NewListingStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("persisting listings to sqlite", zap.String("path", cfg.DSN))
		return store, nil
	default:
		store, err := postgres.NewListingStore(ctx, postgres.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Info("persisting listings to postgres")
		return store, nil
	}
}

func newPublisher(ctx context.Context, cfg config.PubSubConfig, logger *zap.Logger) (publisher.Publisher, closer, error) {
	if cfg.ProjectID == "" {
		return nil, nil, nil
	}
	pub, closeFn, err := pubsubpublisher.Connect(ctx, cfg.ProjectID, cfg.TopicName)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("publishing run notifications", zap.String("topic", cfg.TopicName))
	return pub, closeFn, nil
}
