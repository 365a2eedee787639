package fastload

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fastload/internal/db"
	dbMemory "github.com/kailas-cloud/fastload/internal/db/memory"
	dbRedis "github.com/kailas-cloud/fastload/internal/db/redis"
	"github.com/kailas-cloud/fastload/internal/domain/access"
	"github.com/kailas-cloud/fastload/internal/domain/record"
	galidx "github.com/kailas-cloud/fastload/internal/gallery"
	"github.com/kailas-cloud/fastload/internal/repository/hashes"
	"github.com/kailas-cloud/fastload/internal/repository/indexcache"
	controlunituc "github.com/kailas-cloud/fastload/internal/usecase/controlunit"
	galleryuc "github.com/kailas-cloud/fastload/internal/usecase/gallery"
	healthuc "github.com/kailas-cloud/fastload/internal/usecase/health"
	"github.com/kailas-cloud/fastload/internal/watch"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, swapped out in tests.
type galleryUseCase interface {
	Load(ctx context.Context, q galleryuc.Query) (galleryuc.View, error)
	Select(ctx context.Context, file string, filters []string) (galleryuc.Selection, error)
	Keys(ctx context.Context, preset, path string) ([]string, error)
	Values(ctx context.Context, preset, path, key string) ([]string, error)
	AddFilters(current, added []string) ([]string, error)
	Presets() map[string]string
}

type controlUnitUseCase interface {
	View(data []byte) (controlunituc.ViewResult, error)
	Load(ctx context.Context, path string) ([]record.Record, error)
	Save(ctx context.Context, path string, records []record.Record, mode SaveMode) ([]string, error)
	Embed(b64 string, records []record.Record) (string, error)
	Apply(ctx context.Context, current []record.Record, path string, priority Priority) (controlunituc.Resolution, error)
}

// Client is the fastload SDK entry point.
type Client struct {
	store     db.Store
	watcher   *watch.Watcher
	stopWatch context.CancelFunc
	level     access.Level
	galSvc    galleryUseCase
	unitSvc   controlUnitUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client. Without WithRedis, file hashes are kept in memory.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{driver: "memory", level: access.Manual}
	for _, o := range opts {
		o.apply(cfg)
	}
	if !cfg.level.Valid() {
		return nil, fmt.Errorf("fastload: invalid access level %d", cfg.level)
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("fastload: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	c, err := wireClient(store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "memory":
		return dbMemory.NewStore(), nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("fastload: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("fastload: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	// Internal services log through zap; SDK callers see slog via the observer.
	logger := zap.NewNop()

	policy := indexcache.NewUnbounded()
	if cfg.cacheSize > 0 {
		var err error
		if policy, err = indexcache.NewLRU(cfg.cacheSize); err != nil {
			return nil, fmt.Errorf("fastload: index cache: %w", err)
		}
	}
	cache := indexcache.New(policy, nil)

	c := &Client{store: store, level: cfg.level, obs: obs}

	var watcher galleryuc.Watcher
	if cfg.watch {
		w, err := watch.New(cache, cfg.watchDebounce, logger)
		if err != nil {
			return nil, fmt.Errorf("fastload: watcher: %w", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		go func() { _ = w.Run(ctx) }()
		c.watcher, c.stopWatch, watcher = w, cancel, w
	}

	galSvc := galleryuc.New(cache, hashes.New(store, cfg.hashTTL, nil, logger), galleryuc.Options{
		PageSize:      cfg.pageSize,
		Presets:       cfg.presets,
		FileURLPrefix: cfg.fileURLPrefix,
		Watcher:       watcher,
		Scan:          galidx.Scan,
	}, logger)

	c.galSvc = galSvc
	c.unitSvc = controlunituc.New(galSvc, logger)
	c.healthSvc = healthuc.New(store, nil, cfg.presets)
	return c, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.stopWatch != nil {
		c.stopWatch()
	}
	if c.watcher != nil {
		_ = c.watcher.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks hash store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Gallery returns the gallery browsing service.
func (c *Client) Gallery() *GalleryService {
	return &GalleryService{svc: c.galSvc, level: c.level, obs: c.obs}
}

// ControlUnits returns the control list service.
func (c *Client) ControlUnits() *ControlUnitService {
	return &ControlUnitService{svc: c.unitSvc, level: c.level, obs: c.obs}
}
