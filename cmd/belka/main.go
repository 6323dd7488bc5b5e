package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/belkahq/belka/internal/blob"
	"github.com/belkahq/belka/internal/config"
	"github.com/belkahq/belka/internal/httpapi"
	"github.com/belkahq/belka/internal/media"
	"github.com/belkahq/belka/internal/store"
	"github.com/belkahq/belka/migrations"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		_ = level.UnmarshalText([]byte(cfg.LogLevel))
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With("version", version)

	apiKeys, err := httpapi.LoadAPIKeys(cfg.APIKeysFile)
	if err != nil {
		logger.Error("failed to load api keys", "error", err)
		os.Exit(1)
	}

	db, err := sqlx.Open("mysql", cfg.DBDSN)
	if err != nil {
		logger.Error("failed to open db", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := migrations.Up(cfg.DBDSN); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	objects, err := blob.New(blob.Options{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Error("failed to init object storage", "error", err)
		os.Exit(1)
	}
	if cfg.RedisAddr != "" {
		objects = objects.WithURLCache(blob.NewURLCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB))
		logger.Info("signed-url cache enabled", "addr", cfg.RedisAddr)
	}

	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := objects.EnsureBucket(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to ensure bucket", "bucket", cfg.MinioBucket, "error", err)
			os.Exit(1)
		}
	}

	storeSvc := store.New(db)
	thumbs := media.NewPipeline(objects, logger)
	router := httpapi.NewRouter(cfg, storeSvc, objects, thumbs, apiKeys, logger)

	srv := &http.Server{Addr: cfg.Bind, Handler: router}
	go func() {
		logger.Info("server starting", "addr", cfg.Bind)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}
}
