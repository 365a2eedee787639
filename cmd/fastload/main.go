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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fastload/internal/codec"
	"github.com/kailas-cloud/fastload/internal/config"
	"github.com/kailas-cloud/fastload/internal/db"
	dbMemory "github.com/kailas-cloud/fastload/internal/db/memory"
	dbRedis "github.com/kailas-cloud/fastload/internal/db/redis"
	"github.com/kailas-cloud/fastload/internal/domain/access"
	logpkg "github.com/kailas-cloud/fastload/internal/logger"
	"github.com/kailas-cloud/fastload/internal/metrics"
	"github.com/kailas-cloud/fastload/internal/repository/hashes"
	"github.com/kailas-cloud/fastload/internal/repository/indexcache"
	chiTransport "github.com/kailas-cloud/fastload/internal/transport/chi"
	controlunituc "github.com/kailas-cloud/fastload/internal/usecase/controlunit"
	galleryuc "github.com/kailas-cloud/fastload/internal/usecase/gallery"
	healthuc "github.com/kailas-cloud/fastload/internal/usecase/health"
	"github.com/kailas-cloud/fastload/internal/version"
	"github.com/kailas-cloud/fastload/internal/watch"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting fastload server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Int("access_level", cfg.Access.Level),
		zap.Int("presets", len(cfg.Gallery.Presets)),
	)

	store, err := newStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	metrics.RegisterGalleryMetrics()

	// Index cache: LRU when bounded.
	policy := indexcache.NewUnbounded()
	if cfg.Gallery.CacheSize > 0 {
		if policy, err = indexcache.NewLRU(cfg.Gallery.CacheSize); err != nil {
			logger.Fatal("Failed to create index cache", zap.Error(err))
		}
	}
	cache := indexcache.New(policy, metrics.IndexCacheTotal)

	hashRepo := hashes.New(store,
		time.Duration(cfg.Gallery.HashTTLSec)*time.Second, metrics.HashLookupsTotal, logger)

	// Pass a nil interface, not a typed nil pointer, when watching is off.
	var watcher galleryuc.Watcher
	if cfg.Gallery.Watch {
		w, err := watch.New(cache, time.Duration(cfg.Gallery.WatchDebounce)*time.Millisecond, logger)
		if err != nil {
			logger.Fatal("Failed to create directory watcher", zap.Error(err))
		}
		defer func() { _ = w.Close() }()
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("Directory watcher stopped", zap.Error(err))
			}
		}()
		watcher = w
	}

	gallerySvc := galleryuc.New(cache, hashRepo, galleryuc.Options{
		PageSize:      cfg.Gallery.PageSize,
		Presets:       cfg.Gallery.Presets,
		FileURLPrefix: cfg.Gallery.FileURLPrefix,
		Watcher:       watcher,
	}, logger)
	unitSvc := controlunituc.New(gallerySvc, logger)
	healthSvc := healthuc.New(store, nil, cfg.Gallery.Presets)

	saveMode, err := codec.ParseSaveMode(cfg.Gallery.SaveMode)
	if err != nil {
		logger.Fatal("Invalid save mode", zap.Error(err))
	}
	server := chiTransport.NewServer(gallerySvc, unitSvc, healthSvc, chiTransport.Options{
		SaveMode:     saveMode,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.AccessMiddleware(access.Level(cfg.Access.Level), cfg.Access.Tokens))
	r.Use(chiTransport.RequestLogger(logger))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// newStore opens the hash lookup store for the configured driver.
func newStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return dbMemory.NewStore(), nil
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
