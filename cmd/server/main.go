package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/Suhaibinator/SBlog/internal/config"
	"github.com/Suhaibinator/SBlog/internal/credential"
	"github.com/Suhaibinator/SBlog/internal/logger"
	"github.com/Suhaibinator/SBlog/internal/posts"
	"github.com/Suhaibinator/SBlog/internal/server"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sblog: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	creds, err := credential.NewService(cfg.Credential, log)
	if err != nil {
		return fmt.Errorf("load service account: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, db, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	srv, err := server.New(cfg, log, creds, store)
	if err != nil {
		return err
	}
	if db != nil {
		if err := srv.RegisterCollector(collectors.NewDBStatsCollector(db, "posts")); err != nil {
			return err
		}
	}
	return srv.Run(ctx)
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (posts.Store, *sql.DB, error) {
	if cfg.Driver != config.DriverPostgres {
		log.Info("Using in-memory post store")
		return posts.NewMemoryStore(), nil, nil
	}

	db, err := posts.OpenDB(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MigrateOnStart() {
		if err := posts.Migrate(db, log); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	return posts.NewPostgresStore(db), db, nil
}
