package fastload

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "memory" or "redis"
	addrs    []string
	password string

	presets       map[string]string
	level         AccessLevel
	pageSize      int
	cacheSize     int
	fileURLPrefix string
	hashTTL       time.Duration
	watch         bool
	watchDebounce time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis stores displayed-file hashes in Redis instead of memory.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithPresets sets the named gallery directories.
func WithPresets(presets map[string]string) Option {
	return optionFunc(func(c *clientConfig) {
		c.presets = presets
	})
}

// WithAccessLevel sets the level every call runs with. Default: AccessManual.
func WithAccessLevel(l AccessLevel) Option {
	return optionFunc(func(c *clientConfig) {
		c.level = l
	})
}

// WithPageSize sets the number of files per gallery page. Default: 36.
func WithPageSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.pageSize = n
	})
}

// WithIndexCacheSize bounds the number of cached directory indexes (LRU).
// Zero keeps every index (default).
func WithIndexCacheSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheSize = n
	})
}

// WithFileURLPrefix is prepended to control list paths in selections.
func WithFileURLPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.fileURLPrefix = prefix
	})
}

// WithHashTTL expires recorded file hashes after ttl. Zero keeps them.
func WithHashTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.hashTTL = ttl
	})
}

// WithWatch rescans a directory after files in it change.
// debounce <= 0 uses the watcher default.
func WithWatch(debounce time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.watch = true
		c.watchDebounce = debounce
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithConsoleLogger logs SDK operations to w in colorized, human-readable form.
func WithConsoleLogger(w io.Writer, level slog.Level) Option {
	return WithLogger(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	})))
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
