package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lgoty/benefitsearch/internal/config"
	logpkg "github.com/lgoty/benefitsearch/internal/logger"
	"github.com/lgoty/benefitsearch/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "benefitsearch",
		Usage:   "Natural-language search over benefits and partner offers",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name, selects config/<env>.yaml",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a config file, overrides --env lookup",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and seed the region dictionary",
				Action: migrateCommand,
			},
			{
				Name:   "rebuild-index",
				Usage:  "Rebuild the vector index from stored entries without re-embedding",
				Action: rebuildIndexCommand,
			},
			{
				Name:   "resync",
				Usage:  "Re-embed every catalog record and rebuild the index",
				Action: resyncCommand,
			},
		},
	}
}

// setup loads configuration and the logger for a command.
func setup(c *cli.Context) (config.Config, *zap.Logger, error) {
	env := c.String("env")

	var (
		cfg config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if l := c.String("log-level"); l != "" {
		level = l
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	logpkg.SetFallback(logger)
	return cfg, logger, nil
}

func serveCommand(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting benefitsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", c.String("env")),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Bool("semantic_parser", cfg.Parser.Enabled),
	)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Postgres.AutoMigrate {
		if err := a.migrate(ctx); err != nil {
			return err
		}
	}

	// Load or rebuild the index off the request path; searches before it
	// finishes wait on the same initialization.
	go a.vectors.EnsureInitialized(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      a.router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func migrateCommand(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := buildApp(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.migrate(c.Context)
}

func rebuildIndexCommand(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := buildApp(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.vectors.Rebuild(c.Context)
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	logger.Info("Vector index rebuilt", zap.Int("vectors", n), zap.String("dir", cfg.Index.DataDir))
	return nil
}

func resyncCommand(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := buildApp(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.catalog.Resync(c.Context)
	if err != nil {
		return fmt.Errorf("resync catalog: %w", err)
	}
	// Resync appends to the index; a rebuild drops vectors of records deleted meanwhile.
	n, err := a.vectors.Rebuild(c.Context)
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	logger.Info("Catalog resynced", zap.Int("records", records), zap.Int("vectors", n))
	return nil
}
