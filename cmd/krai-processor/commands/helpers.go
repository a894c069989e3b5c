package commands

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/krai-ai/krai-engine/internal/cache"
	"github.com/krai-ai/krai-engine/internal/config"
	"github.com/krai-ai/krai-engine/internal/modelclient"
	"github.com/krai-ai/krai-engine/internal/objectstore"
	"github.com/krai-ai/krai-engine/internal/observability"
	"github.com/krai-ai/krai-engine/internal/patterns"
	"github.com/krai-ai/krai-engine/internal/pipeline"
	"github.com/krai-ai/krai-engine/internal/storage"
)

const timeRound = 10 * time.Millisecond

// environment bundles the wired-up processing stack.
type environment struct {
	Config   *config.Config
	Logger   *observability.Logger
	Pipeline *pipeline.Pipeline
	Model    *modelclient.Client
	Storage  *objectstore.Client

	db    *sql.DB
	cache cache.Client
}

// Close releases held connections.
func (e *environment) Close() {
	if e.db != nil {
		e.db.Close()
	}
	if e.cache != nil {
		e.cache.Close()
	}
}

// buildEnvironment loads config and wires the full pipeline: database,
// object storage, model client, cache, and pattern store.
func buildEnvironment(ctx context.Context, modeOverride string) (*environment, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if modeOverride != "" {
		cfg.Processing.Mode = config.ExecutionMode(modeOverride)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if verbose {
		cfg.Observability.Verbose = true
		cfg.Observability.LogLevel = "debug"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "krai-processor",
	})

	patternStore, err := patterns.NewStore(cfg.Patterns.Dir)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(ctx, storage.OpenConfig{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	uploader, err := objectstore.NewClient(objectstore.Config{
		BaseURL:        cfg.Storage.BaseURL,
		ServiceRoleKey: cfg.Storage.ServiceRoleKey,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	for _, bucket := range []string{cfg.Storage.ImagesBucket, cfg.Storage.AssetsBucket, cfg.Storage.PartsBucket} {
		if err := uploader.EnsureBucket(ctx, bucket, false, nil); err != nil {
			logger.Warn().Err(err).Str("bucket", bucket).Msg("Bucket provisioning failed")
		}
	}

	model, err := modelclient.NewClient(modelclient.Config{
		BaseURL:             cfg.Ollama.BaseURL,
		TextModel:           cfg.Ollama.TextModel,
		VisionModel:         cfg.Ollama.VisionModel,
		EmbeddingModel:      cfg.Ollama.EmbeddingModel,
		Dimension:           cfg.Ollama.EmbeddingDimension,
		Timeout:             cfg.Ollama.RequestTimeout,
		MaxRetries:          cfg.Ollama.MaxRetries,
		RetryBackoff:        cfg.Ollama.RetryBackoff,
		MaxConcurrentText:   cfg.Ollama.MaxConcurrentText,
		MaxConcurrentVision: cfg.Ollama.MaxConcurrentVision,
		MaxConcurrentEmbed:  cfg.Ollama.MaxConcurrentEmbed,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	// Preflight: a missing model is a warning, an unreachable server only
	// blocks modes that need it.
	if missing, err := model.Health(ctx); err != nil {
		if cfg.Processing.Mode == config.ModeDemo {
			logger.Warn().Err(err).Msg("Model server unreachable, continuing in demo mode")
		} else {
			db.Close()
			return nil, fmt.Errorf("model server preflight: %w", err)
		}
	} else if len(missing) > 0 {
		logger.Warn().Strs("models", missing).Msg("Configured models not present on server")
	}

	var cacheClient cache.Client
	if cfg.Cache.Driver == "redis" {
		cacheClient, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, falling back to memory cache")
			cacheClient = cache.NewMemoryClient(cfg.Cache.MaxEntries)
		}
	} else {
		cacheClient = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	}

	pipe, err := pipeline.New(pipeline.Deps{
		Logger:   logger,
		Config:   cfg,
		Patterns: patternStore,
		Store:    storage.NewSQLStore(db),
		Uploader: uploader,
		Embedder: model,
		Runner:   model,
		Cache:    cacheClient,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &environment{
		Config:   cfg,
		Logger:   logger,
		Pipeline: pipe,
		Model:    model,
		Storage:  uploader,
		db:       db,
		cache:    cacheClient,
	}, nil
}
