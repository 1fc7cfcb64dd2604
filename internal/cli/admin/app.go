package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/etvincen/boredapi/internal/config"
	"github.com/etvincen/boredapi/internal/database"
	"github.com/etvincen/boredapi/internal/domain"
	"github.com/etvincen/boredapi/internal/embedding"
	"github.com/etvincen/boredapi/internal/repository"
	"github.com/etvincen/boredapi/internal/service"
	"github.com/etvincen/boredapi/internal/storage"
	"github.com/etvincen/boredapi/internal/suggest"
	"github.com/jackc/pgx/v5/pgxpool"
)

// app holds the components shared by the daemon commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	pool      *pgxpool.Pool
	embedder  *embedding.Embedder
	suggester suggest.Suggester
	index     *service.IndexManager
	closers   []func() error
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	pool, err := database.NewPool(ctx, database.Config{
		URL:              cfg.DatabaseURL,
		MaxConns:         cfg.DatabaseMaxConns,
		StatementTimeout: cfg.DatabaseStatementTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.pool = pool
	logger.Info("connected to database")

	if err := a.initEmbedder(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initSuggester(ctx); err != nil {
		a.Close()
		return nil, err
	}
	store, err := a.snapshotStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.index = service.NewIndexManager(
		repository.NewDocumentRepository(pool),
		repository.NewChunkRepository(pool),
		repository.NewSnapshotRepository(pool),
		repository.NewTxRunner(pool),
		service.WithSuggester(a.suggester),
		service.WithSnapshotStore(store),
		service.WithReembedder(a.embedder),
		service.WithIndexLogger(logger),
	)
	return a, nil
}

func (a *app) initEmbedder(ctx context.Context) error {
	factory, err := embedding.FactoryFor(embedding.Settings{
		Provider:   a.cfg.EmbeddingProvider,
		Model:      a.cfg.EmbeddingModel,
		BaseURL:    a.cfg.EmbeddingBaseURL,
		APIKey:     a.cfg.OpenAIAPIKey,
		Dimensions: domain.EmbeddingDimensions,
	})
	if err != nil {
		return err
	}

	a.embedder = embedding.New(factory,
		embedding.WithTimeout(a.cfg.EmbeddingTimeout),
		embedding.WithRateLimit(a.cfg.EmbeddingRateLimit),
		embedding.WithCacheSize(a.cfg.EmbeddingCacheSize),
		embedding.WithDimensions(domain.EmbeddingDimensions),
		embedding.WithLogger(a.logger),
	)
	a.closers = append(a.closers, a.embedder.Close)

	// Documents ingested while the model is down are stored lexical-only.
	if err := a.embedder.Init(ctx); err != nil {
		a.logger.Warn("embedding model unavailable, continuing in keyword-only mode",
			"provider", a.cfg.EmbeddingProvider, "error", err)
	}
	return nil
}

func (a *app) initSuggester(ctx context.Context) error {
	if !a.cfg.HasRedis() {
		a.suggester = suggest.NewTrie()
		return nil
	}
	redisSuggester, err := suggest.NewRedisSuggester(ctx, suggest.RedisConfig{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	a.suggester = redisSuggester
	a.closers = append(a.closers, redisSuggester.Close)
	a.logger.Info("using redis suggestions", "addr", a.cfg.RedisAddr)
	return nil
}

func (a *app) snapshotStore(ctx context.Context) (service.SnapshotStore, error) {
	if !a.cfg.HasS3() {
		store, err := storage.NewFileStore(a.cfg.SnapshotDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		a.logger.Info("storing snapshots on disk", "dir", a.cfg.SnapshotDir)
		return store, nil
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        a.cfg.S3Endpoint,
		Region:          a.cfg.S3Region,
		AccessKeyID:     a.cfg.S3AccessKey,
		SecretAccessKey: a.cfg.S3SecretKey,
		Bucket:          a.cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	a.logger.Info("S3 snapshot bucket ready", "bucket", a.cfg.S3Bucket)
	return client, nil
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
