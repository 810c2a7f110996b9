// wire.go - Builds the identification pipeline from configuration

package app

import (
	"context"
	"fmt"

	"github.com/bosocmputer/product_identify/configs"
	"github.com/bosocmputer/product_identify/internal/ai"
	"github.com/bosocmputer/product_identify/internal/enrich"
	"github.com/bosocmputer/product_identify/internal/pipeline"
	"github.com/bosocmputer/product_identify/internal/processor"
	"github.com/bosocmputer/product_identify/internal/storage"
	"github.com/bosocmputer/product_identify/internal/vision"
	"github.com/sirupsen/logrus"
)

// closer releases a backend on shutdown.
type closer func() error

// Build connects every configured collaborator. Optional collaborators that
// are not configured, or fail to start, are left out with a warning; only the
// primary provider and the chosen cache backend are fatal.
// The returned cleanup func closes everything that was opened.
func Build(ctx context.Context, cfg *configs.Config) (*pipeline.Controller, func(), error) {
	var closers []closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logrus.WithError(err).Warn("⚠️  error during shutdown")
			}
		}
	}

	orch, closeAI, err := ai.CreateOrchestrator(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closeAI)

	cache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	// Interfaces stay nil unless a collaborator is actually configured
	var (
		text    processor.TextDetector
		logo    processor.LogoDetector
		catalog enrich.CatalogLookup
		search  enrich.WebSearcher
		images  storage.ImageStore
	)

	if cfg.VisionAPIKey != "" {
		v, err := vision.New(ctx, cfg.VisionAPIKey)
		if err != nil {
			logrus.WithError(err).Warn("⚠️  Vision client unavailable, OCR and logo scoring disabled")
		} else {
			text, logo = v, v
			logrus.Info("✅ Vision OCR + logo detection enabled")
		}
	}

	if cfg.CatalogBaseURL != "" {
		c, err := enrich.NewCatalogClient(cfg.CatalogBaseURL)
		if err != nil {
			logrus.WithError(err).Warn("⚠️  Catalog lookup disabled")
		} else {
			catalog = c
			logrus.Infof("✅ Catalog lookup enabled (%s)", cfg.CatalogBaseURL)
		}
	}

	if cfg.SearchAPIKey != "" && cfg.SearchEngineID != "" {
		s, err := enrich.NewSearchClient(ctx, cfg.SearchAPIKey, cfg.SearchEngineID, cfg.SearchAllowedDomains)
		if err != nil {
			logrus.WithError(err).Warn("⚠️  Web hints disabled")
		} else {
			search = s
			logrus.Infof("✅ Web hints enabled (%d allowed domains)", len(cfg.SearchAllowedDomains))
		}
	}

	if cfg.MinioEndpoint != "" {
		store, err := storage.NewMinioImageStore(storage.ObjectStoreConfig{
			Endpoint:        cfg.MinioEndpoint,
			Bucket:          cfg.MinioBucket,
			AccessKeyID:     cfg.MinioAccessKey,
			SecretAccessKey: cfg.MinioSecretKey,
			UseSSL:          cfg.MinioUseSSL,
		})
		if err == nil {
			err = store.EnsureBucket(ctx)
		}
		if err != nil {
			logrus.WithError(err).Warn("⚠️  Image persistence disabled")
		} else {
			images = store
			logrus.Infof("✅ Image persistence enabled (bucket: %s)", cfg.MinioBucket)
		}
	}

	controller, err := pipeline.NewController(pipeline.Deps{
		Orchestrator:  orch,
		Cache:         cache,
		Images:        images,
		Selector:      processor.NewFrameSelector(text, logo),
		Enricher:      enrich.NewEnricher(text, catalog, search),
		MaxImageBytes: cfg.MaxImageBytes,
		RunTimeout:    cfg.RequestTimeout,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return controller, cleanup, nil
}

func openCache(ctx context.Context, cfg *configs.Config) (storage.CacheStore, closer, error) {
	switch cfg.CacheBackend {
	case "mongo", "mongodb":
		s, err := storage.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo cache: %w", err)
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			logrus.WithError(err).Warn("⚠️  could not create cache indexes")
		}
		logrus.Infof("✅ Cache backend: MongoDB (%s)", cfg.MongoDBName)
		return s, s.Close, nil

	case "redis":
		s, err := storage.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		logrus.Infof("✅ Cache backend: Redis (%s)", cfg.RedisAddr)
		return s, s.Close, nil

	case "memory", "":
		logrus.Info("✅ Cache backend: in-memory")
		return storage.NewMemoryStore(cfg.CacheTTL), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown CACHE_BACKEND %q (want mongo, redis or memory)", cfg.CacheBackend)
	}
}
