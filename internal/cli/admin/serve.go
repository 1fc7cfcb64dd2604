package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etvincen/boredapi/internal/api/handlers"
	"github.com/etvincen/boredapi/internal/config"
	"github.com/etvincen/boredapi/internal/database"
	"github.com/etvincen/boredapi/internal/jobs"
	"github.com/etvincen/boredapi/internal/repository"
	"github.com/etvincen/boredapi/internal/server"
	"github.com/etvincen/boredapi/internal/service"
	"github.com/etvincen/boredapi/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the search API server and the background re-embedding worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsURL, "Migrations source URL")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.Debug)

	if cfg.SentryDSN != "" {
		// 10% sampling in production, everything elsewhere
		sampleRate := 1.0
		if cfg.Environment == "production" {
			sampleRate = 0.1
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			logger.Warn("telemetry init failed, continuing without tracing", "error", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	if portFlag, _ := cmd.Flags().GetString("port"); cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		source, _ := cmd.Flags().GetString("migrations")
		if err := database.Migrate(cfg.DatabaseURL, source, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.index.RebuildSuggestions(ctx); err != nil {
		return err
	}

	ingestor, err := service.NewIngestor(a.index,
		service.NewChunker(service.ChunkConfig{MaxTokens: cfg.ChunkMaxTokens, MaxChunks: cfg.ChunkMaxChunks}),
		a.embedder,
		service.WithIngestWorkers(cfg.IngestWorkers),
		service.WithIngestLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create ingestion pool: %w", err)
	}
	defer ingestor.Release()

	searchSvc := service.NewSearchService(
		repository.NewSearchRepository(a.pool),
		a.embedder,
		a.suggester,
		service.SearchConfig{
			SearchTimeout: cfg.SearchTimeout,
			VectorTimeout: cfg.VectorTimeout,
			Weights:       service.Weights{Lexical: cfg.LexicalWeight, Vector: cfg.VectorWeight},
		},
		service.WithSearchLogger(logger),
	)

	reembedWorker := jobs.NewWorker(jobs.NewReembedWorker(a.index, 0, logger), cfg.ReembedInterval, logger)
	go reembedWorker.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		SearchHandler:   handlers.NewSearchHandler(searchSvc),
		DocumentHandler: handlers.NewDocumentHandler(a.index, ingestor),
		BackupHandler:   handlers.NewBackupHandler(a.index),
		HealthHandler:   handlers.NewHealthHandler(a.pool),
		MaxBodyBytes:    cfg.IngestMaxBodyBytes,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	reembedWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

// exitOnSignal is used by one-shot commands to stop cleanly on Ctrl-C.
func exitOnSignal() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
