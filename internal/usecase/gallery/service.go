package gallery

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fastload/internal/codec"
	"github.com/kailas-cloud/fastload/internal/domain"
	"github.com/kailas-cloud/fastload/internal/domain/access"
	"github.com/kailas-cloud/fastload/internal/domain/filter"
	"github.com/kailas-cloud/fastload/internal/domain/page"
	"github.com/kailas-cloud/fastload/internal/domain/params"
	galidx "github.com/kailas-cloud/fastload/internal/gallery"
	"github.com/kailas-cloud/fastload/internal/metrics"
)

// Options configures a Service.
type Options struct {
	// PageSize defaults to page.Size.
	PageSize int
	// Presets maps preset names (e.g. "txt2img") to directories.
	Presets map[string]string
	// FileURLPrefix is prepended to control list paths in selections.
	FileURLPrefix string
	// Watcher may be nil.
	Watcher Watcher
	// Scan defaults to the recursive directory scanner.
	Scan ScanFunc
}

// Query is one gallery load request.
type Query struct {
	// Preset selects a configured directory. When empty, Path is used.
	Preset string
	Path   string
	// LastPath is the directory shown before this request. A different
	// directory triggers a fresh scan that ignores Filters.
	LastPath string
	Filters  []string
	Page     *int
	Action   page.Action
}

// View is one page of a gallery.
type View struct {
	Path     string
	Files    []string
	Page     int
	LastPage int
	// Total counts the files matching the filters.
	Total   int
	Keys    []string
	Filters []string
	Fresh   bool
}

// Selection describes one image picked from the gallery.
type Selection struct {
	Original    string
	Highlights  []galidx.Highlight
	Parameters  string
	ControlList string
}

// Service serves paged, filtered views over scanned directories.
type Service struct {
	mu       sync.Mutex
	cache    IndexCache
	hashes   HashLookup
	pageSize int
	presets  map[string]string
	urlPfx   string
	watcher  Watcher
	scan     ScanFunc
	logger   *zap.Logger
}

// New creates a gallery service.
func New(cache IndexCache, hashes HashLookup, opts Options, logger *zap.Logger) *Service {
	s := &Service{
		cache:    cache,
		hashes:   hashes,
		pageSize: opts.PageSize,
		presets:  make(map[string]string, len(opts.Presets)),
		urlPfx:   opts.FileURLPrefix,
		watcher:  opts.Watcher,
		scan:     opts.Scan,
		logger:   logger,
	}
	if s.pageSize <= 0 {
		s.pageSize = page.Size
	}
	if s.scan == nil {
		s.scan = galidx.Scan
	}
	for name, dir := range opts.Presets {
		s.presets[name] = filepath.Clean(dir)
	}
	return s
}

// Presets returns the configured preset directories.
func (s *Service) Presets() map[string]string {
	out := make(map[string]string, len(s.presets))
	for k, v := range s.presets {
		out[k] = v
	}
	return out
}

// ListPresets returns the preset directories to callers allowed to browse
// them.
func (s *Service) ListPresets(ctx context.Context) (map[string]string, error) {
	if access.FromContext(ctx) < access.Presets {
		return nil, domain.ErrNoPermission
	}
	return s.Presets(), nil
}

// Load returns a page of the requested directory.
func (s *Service) Load(ctx context.Context, q Query) (View, error) {
	dir, err := s.resolveDir(ctx, q.Preset, q.Path)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		ix    *galidx.Index
		files []string
		fresh = dir != filepath.Clean(q.LastPath) || q.LastPath == ""
	)
	if fresh {
		if ix, err = s.rescan(ctx, dir); err != nil {
			return View{}, err
		}
		files = ix.Files
	} else {
		if ix, err = s.index(ctx, dir); err != nil {
			return View{}, err
		}
		if files, err = ix.FilterTokens(q.Filters); err != nil {
			return View{}, fmt.Errorf("filter: %w", err)
		}
	}

	res := page.PaginateSize(files, q.Page, q.Action, s.pageSize)
	if err := s.hashes.Record(ctx, res.Files); err != nil {
		s.logger.Warn("Failed to record displayed files", zap.String("dir", dir), zap.Error(err))
	}

	v := View{
		Path:     dir,
		Files:    res.Files,
		Page:     res.Page,
		LastPage: res.LastPage,
		Total:    len(files),
		Keys:     ix.Keys(),
		Filters:  []string{},
		Fresh:    fresh,
	}
	if !fresh {
		v.Filters = q.Filters
	}
	return v, nil
}

// Select resolves file (a displayed copy or an original) and describes it
// against the active filters. Both file and the original it resolves to
// must be readable by the caller; file is checked before it is opened.
func (s *Service) Select(ctx context.Context, file string, filters []string) (Selection, error) {
	if err := s.AuthorizeFile(ctx, file); err != nil {
		return Selection{}, err
	}
	set, err := filter.NewSet(filters...)
	if err != nil {
		return Selection{}, fmt.Errorf("filter: %w", err)
	}

	s.mu.Lock()
	original, found, err := s.hashes.ResolveFile(ctx, file)
	s.mu.Unlock()
	if err != nil {
		return Selection{}, fmt.Errorf("resolve selection: %w", err)
	}
	if !found {
		original = file
	}
	if err := s.AuthorizeFile(ctx, original); err != nil {
		return Selection{}, err
	}

	text, _, err := galidx.ReadParameters(original)
	if err != nil {
		return Selection{}, fmt.Errorf("read parameters: %w", err)
	}
	units, err := params.Parse(text)
	if err != nil {
		s.logger.Debug("Partial parameters", zap.String("file", original), zap.Error(err))
	}

	sel := Selection{
		Original:   original,
		Highlights: galidx.Diff(units, set),
		Parameters: text,
	}
	if loc := codec.Locate(original); loc != "" {
		sel.ControlList = s.urlPfx + loc
	}
	return sel, nil
}

// Keys returns the filter attribute names of dir.
func (s *Service) Keys(ctx context.Context, preset, path string) ([]string, error) {
	dir, err := s.resolveDir(ctx, preset, path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ix, err := s.index(ctx, dir)
	if err != nil {
		return nil, err
	}
	return ix.Keys(), nil
}

// Values returns the filter tokens available for key in dir.
func (s *Service) Values(ctx context.Context, preset, path, key string) ([]string, error) {
	dir, err := s.resolveDir(ctx, preset, path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ix, err := s.index(ctx, dir)
	if err != nil {
		return nil, err
	}
	values := ix.Values(key)
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = filter.Format(key, v)
	}
	return out, nil
}

// AddFilters returns the union of current and added tokens.
func (s *Service) AddFilters(current, added []string) ([]string, error) {
	cur, err := filter.NewSet(current...)
	if err != nil {
		return nil, fmt.Errorf("current filters: %w", err)
	}
	add, err := filter.NewSet(added...)
	if err != nil {
		return nil, fmt.Errorf("added filters: %w", err)
	}
	return cur.Union(add).Strings(), nil
}

// index returns the cached index of dir, scanning on a miss. Callers hold s.mu.
func (s *Service) index(ctx context.Context, dir string) (*galidx.Index, error) {
	if ix, ok := s.cache.Get(dir); ok {
		return ix, nil
	}
	return s.rescan(ctx, dir)
}

// rescan builds a fresh index of dir and caches it. Callers hold s.mu.
func (s *Service) rescan(ctx context.Context, dir string) (*galidx.Index, error) {
	start := time.Now()
	ix, err := s.scan(ctx, dir)
	if err != nil {
		metrics.ScanErrorsTotal.Inc()
		return nil, fmt.Errorf("scan: %w", err)
	}
	elapsed := time.Since(start)
	metrics.ScanDuration.Observe(elapsed.Seconds())
	metrics.ScannedFilesTotal.Add(float64(ix.Len()))

	s.cache.Put(dir, ix)
	if s.watcher != nil {
		if err := s.watcher.Watch(dir); err != nil {
			s.logger.Warn("Failed to watch directory", zap.String("dir", dir), zap.Error(err))
		}
	}
	s.logger.Info("Directory indexed",
		zap.String("dir", dir),
		zap.Int("files", ix.Len()),
		zap.Duration("duration", elapsed),
	)
	return ix, nil
}

// resolveDir applies the access policy and returns the directory to show.
func (s *Service) resolveDir(ctx context.Context, preset, path string) (string, error) {
	level := access.FromContext(ctx)
	if level <= access.None {
		return "", domain.ErrNoPermission
	}

	if preset != "" {
		dir, ok := s.presets[preset]
		if !ok {
			return "", fmt.Errorf("%w: unknown preset %q", domain.ErrDirNotFound, preset)
		}
		return dir, nil
	}
	if path == "" {
		return "", fmt.Errorf("%w: no directory given", domain.ErrDirNotFound)
	}

	dir := filepath.Clean(path)
	if level >= access.Manual || s.isPreset(dir) {
		return dir, nil
	}
	return "", fmt.Errorf("%w: manual paths need a higher access level", domain.ErrNoPermission)
}

// AuthorizeFile allows file for callers with manual access, and for preset
// callers when file lies inside a preset directory.
func (s *Service) AuthorizeFile(ctx context.Context, file string) error {
	level := access.FromContext(ctx)
	if level <= access.None {
		return domain.ErrNoPermission
	}
	if level >= access.Manual {
		return nil
	}
	file = filepath.Clean(file)
	for _, dir := range s.presets {
		if within(dir, file) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is outside the preset directories", domain.ErrNoPermission, file)
}

func (s *Service) isPreset(dir string) bool {
	for _, p := range s.presets {
		if p == dir {
			return true
		}
	}
	return false
}

func within(dir, file string) bool {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
