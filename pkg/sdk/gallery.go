package fastload

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/fastload/internal/domain/access"
	galidx "github.com/kailas-cloud/fastload/internal/gallery"
	galleryuc "github.com/kailas-cloud/fastload/internal/usecase/gallery"
)

// GalleryService browses and filters image directories.
type GalleryService struct {
	svc   galleryUseCase
	level access.Level
	obs   *observer
}

// Presets returns the configured preset directories by name.
func (s *GalleryService) Presets() map[string]string {
	return s.svc.Presets()
}

// Load returns one page of a directory. Reloading the directory of
// q.LastPath applies q.Filters to the cached index.
func (s *GalleryService) Load(ctx context.Context, q Query) (_ Page, err error) {
	start := time.Now()
	defer func() { s.obs.observe("gallery.load", start, err, "preset", q.Preset, "path", q.Path) }()

	in := galleryuc.Query{
		Preset:   q.Preset,
		Path:     q.Path,
		LastPath: q.LastPath,
		Filters:  q.Filters,
		Action:   q.Action,
	}
	if q.Page > 0 {
		p := q.Page
		in.Page = &p
	}

	v, err := s.svc.Load(s.ctx(ctx), in)
	if err != nil {
		return Page{}, fmt.Errorf("load gallery: %w", err)
	}
	return Page{
		Path:     v.Path,
		Files:    v.Files,
		Page:     v.Page,
		LastPage: v.LastPage,
		Total:    v.Total,
		Keys:     v.Keys,
		Filters:  v.Filters,
		Fresh:    v.Fresh,
	}, nil
}

// Select describes an image shown on a gallery page against filters.
func (s *GalleryService) Select(ctx context.Context, file string, filters []string) (_ Selection, err error) {
	start := time.Now()
	defer func() { s.obs.observe("gallery.select", start, err, "file", file) }()

	sel, err := s.svc.Select(s.ctx(ctx), file, filters)
	if err != nil {
		return Selection{}, fmt.Errorf("select image: %w", err)
	}
	return Selection{
		Original:    sel.Original,
		Highlights:  fromInternalHighlights(sel.Highlights),
		Parameters:  sel.Parameters,
		ControlList: sel.ControlList,
	}, nil
}

// Keys lists the filterable attribute names of a directory.
func (s *GalleryService) Keys(ctx context.Context, preset, path string) (_ []string, err error) {
	start := time.Now()
	defer func() { s.obs.observe("gallery.keys", start, err) }()

	keys, err := s.svc.Keys(s.ctx(ctx), preset, path)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Values lists the "key - value" filter tokens available for key.
func (s *GalleryService) Values(ctx context.Context, preset, path, key string) (_ []string, err error) {
	start := time.Now()
	defer func() { s.obs.observe("gallery.values", start, err, "key", key) }()

	values, err := s.svc.Values(s.ctx(ctx), preset, path, key)
	if err != nil {
		return nil, fmt.Errorf("list values: %w", err)
	}
	return values, nil
}

// AddFilters returns the union of two filter token lists.
func (s *GalleryService) AddFilters(current, added []string) ([]string, error) {
	out, err := s.svc.AddFilters(current, added)
	if err != nil {
		return nil, fmt.Errorf("add filters: %w", err)
	}
	return out, nil
}

func (s *GalleryService) ctx(ctx context.Context) context.Context {
	return access.WithLevel(ctx, s.level)
}

func fromInternalHighlights(in []galidx.Highlight) []Highlight {
	out := make([]Highlight, len(in))
	for i, h := range in {
		out[i] = Highlight{Label: h.Label, Included: h.Tag == galidx.TagInclude}
	}
	return out
}
