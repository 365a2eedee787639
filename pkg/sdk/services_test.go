package fastload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kailas-cloud/fastload/internal/domain"
	"github.com/kailas-cloud/fastload/internal/domain/access"
	"github.com/kailas-cloud/fastload/internal/domain/record"
	"github.com/kailas-cloud/fastload/internal/pnginfo"
	controlunituc "github.com/kailas-cloud/fastload/internal/usecase/controlunit"
	galleryuc "github.com/kailas-cloud/fastload/internal/usecase/gallery"
)

func writePNG(t *testing.T, path, parameters string) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	if parameters != "" {
		var err error
		if data, err = pnginfo.AddText(data, domain.ParametersKey, parameters); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func newGalleryClient(t *testing.T, opts ...Option) (*Client, string) {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), `ControlNet 0: "preprocessor: canny, model: m1"`)
	writePNG(t, filepath.Join(dir, "b.png"), `ControlNet 0: "preprocessor: depth, model: m2"`)
	writePNG(t, filepath.Join(dir, "c.png"), "")

	opts = append([]Option{WithPresets(map[string]string{"outputs": dir}), WithPageSize(2)}, opts...)
	c, err := New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c, dir
}

// --- GalleryService ---

func TestGallery_LoadPagesAndFilters(t *testing.T) {
	c, dir := newGalleryClient(t)
	ctx := context.Background()

	first, err := c.Gallery().Load(ctx, Query{Preset: "outputs"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(first.Files) != 2 || first.LastPage != 2 || first.Total != 3 || !first.Fresh {
		t.Errorf("first page = %+v", first)
	}

	next, err := c.Gallery().Load(ctx, Query{Preset: "outputs", LastPath: first.Path, Page: 1, Action: PageNext})
	if err != nil {
		t.Fatalf("Load next: %v", err)
	}
	if next.Page != 2 || len(next.Files) != 1 {
		t.Errorf("next page = %+v", next)
	}

	filtered, err := c.Gallery().Load(ctx, Query{
		Preset:   "outputs",
		LastPath: first.Path,
		Filters:  []string{"model - m2"},
	})
	if err != nil {
		t.Fatalf("Load filtered: %v", err)
	}
	if diff := cmp.Diff([]string{filepath.Join(dir, "b.png")}, filtered.Files); diff != "" {
		t.Errorf("filtered files (-want +got):\n%s", diff)
	}
}

func TestGallery_SelectKeysValues(t *testing.T) {
	c, dir := newGalleryClient(t)
	ctx := context.Background()

	sel, err := c.Gallery().Select(ctx, filepath.Join(dir, "a.png"), []string{"model - m1"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := []Highlight{
		{Label: "[ControlNet 0] preprocessor - canny"},
		{Label: "[ControlNet 0] model - m1", Included: true},
	}
	if diff := cmp.Diff(want, sel.Highlights); diff != "" {
		t.Errorf("highlights (-want +got):\n%s", diff)
	}

	values, err := c.Gallery().Values(ctx, "outputs", "", "preprocessor")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if diff := cmp.Diff([]string{"preprocessor - canny", "preprocessor - depth"}, values); diff != "" {
		t.Errorf("values (-want +got):\n%s", diff)
	}

	keys, err := c.Gallery().Keys(ctx, "outputs", "")
	if err != nil || len(keys) == 0 {
		t.Fatalf("Keys: %v %v", keys, err)
	}

	filters, err := c.Gallery().AddFilters([]string{"model - m1"}, []string{"model - m1", "preprocessor - canny"})
	if err != nil || len(filters) != 2 {
		t.Errorf("AddFilters: %v %v", filters, err)
	}
	if c.Gallery().Presets()["outputs"] != dir {
		t.Error("preset missing")
	}
}

func TestGallery_AccessLevel(t *testing.T) {
	c, dir := newGalleryClient(t, WithAccessLevel(AccessPresets))
	ctx := context.Background()

	if _, err := c.Gallery().Load(ctx, Query{Path: dir}); err != nil {
		t.Errorf("preset directory by path must be allowed: %v", err)
	}
	if _, err := c.Gallery().Load(ctx, Query{Path: t.TempDir()}); !errors.Is(err, ErrNoPermission) {
		t.Errorf("manual path: got %v, want ErrNoPermission", err)
	}
}

func TestGallery_PassesLevelAndPage(t *testing.T) {
	var got galleryuc.Query
	var level access.Level
	mock := &mockGalleryUC{loadFn: func(ctx context.Context, q galleryuc.Query) (galleryuc.View, error) {
		got, level = q, access.FromContext(ctx)
		return galleryuc.View{Page: 3}, nil
	}}
	svc := &GalleryService{svc: mock, level: AccessPresets}

	p, err := svc.Load(context.Background(), Query{Preset: "x", Page: 3, Action: PageEnd})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if level != access.Presets {
		t.Errorf("level = %v, want presets", level)
	}
	if got.Page == nil || *got.Page != 3 || got.Action != PageEnd {
		t.Errorf("query = %+v", got)
	}
	if p.Page != 3 {
		t.Errorf("page = %d", p.Page)
	}

	if _, err := svc.Load(context.Background(), Query{}); err != nil {
		t.Fatal(err)
	}
	if got.Page != nil {
		t.Error("zero page must be passed as nil")
	}
}

func TestGallery_WrapsErrors(t *testing.T) {
	mock := &mockGalleryUC{selectFn: func(context.Context, string, []string) (galleryuc.Selection, error) {
		return galleryuc.Selection{}, domain.ErrFileNotFound
	}}
	svc := &GalleryService{svc: mock, level: AccessManual}
	if _, err := svc.Select(context.Background(), "x.png", nil); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("got %v, want ErrFileNotFound", err)
	}
}

// --- ControlUnitService ---

func TestControlUnits_SaveLoadViewApply(t *testing.T) {
	c, dir := newGalleryClient(t)
	ctx := context.Background()
	path := filepath.Join(dir, "c.png")

	units := []Unit{
		NewUnit(Pair{Key: "enabled", Value: "True"}, Pair{Key: "model", Value: "m1"}),
		NewUnit(Pair{Key: "enabled", Value: "False"}, Pair{Key: "model", Value: "m2"}),
	}
	files, err := c.ControlUnits().Save(ctx, path, units, SaveBoth)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v", files)
	}

	loaded, err := c.ControlUnits().Load(ctx, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 || !loaded[0].Equal(units[0]) {
		t.Errorf("loaded = %v", loaded)
	}

	data, err := os.ReadFile(files[1])
	if err != nil {
		t.Fatal(err)
	}
	v, err := c.ControlUnits().View(data)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(v.Units) != 2 {
		t.Errorf("view units = %d", len(v.Units))
	}

	res, err := c.ControlUnits().Apply(ctx, nil, path, PluginFirst)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.FromFile || len(res.Units) != 2 {
		t.Errorf("empty plugin state must take the file: %+v", res)
	}

	sel, err := c.Gallery().Select(ctx, path, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.ControlList != path {
		t.Errorf("control list = %q, want the embedded image", sel.ControlList)
	}
}

func TestControlUnits_Errors(t *testing.T) {
	c, dir := newGalleryClient(t)
	ctx := context.Background()

	if _, err := c.ControlUnits().View(nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("View(nil): %v", err)
	}
	if _, err := c.ControlUnits().Load(ctx, filepath.Join(dir, "a.png")); !errors.Is(err, ErrDecode) {
		t.Errorf("Load without data: %v", err)
	}
	if _, err := c.ControlUnits().Embed("", nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Embed(empty): %v", err)
	}
}

func TestControlUnits_PassesLevel(t *testing.T) {
	var level access.Level
	mock := &mockControlUnitUC{
		loadFn: func(ctx context.Context, _ string) ([]record.Record, error) {
			level = access.FromContext(ctx)
			return nil, domain.ErrNoPermission
		},
		applyFn: func(context.Context, []record.Record, string, Priority) (controlunituc.Resolution, error) {
			return controlunituc.Resolution{Source: controlunituc.SourcePlugin, Warnings: []string{"w"}}, nil
		},
	}
	svc := &ControlUnitService{svc: mock, level: AccessNone}

	if _, err := svc.Load(context.Background(), "x.png"); !errors.Is(err, ErrNoPermission) {
		t.Errorf("got %v", err)
	}
	if level != access.None {
		t.Errorf("level = %v, want none", level)
	}

	res, err := svc.Apply(context.Background(), nil, "x.png", PluginFirst)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromFile || len(res.Warnings) != 1 {
		t.Errorf("resolution = %+v", res)
	}
}

func TestHealth(t *testing.T) {
	c, _ := newGalleryClient(t)
	h := c.Health(context.Background())
	if !h.OK() || h.Database != "ok" || h.Presets["outputs"] != "ok" {
		t.Errorf("health = %+v", h)
	}

	missing, err := New(context.Background(), WithPresets(map[string]string{"gone": filepath.Join(t.TempDir(), "gone")}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer missing.Close()
	h = missing.Health(context.Background())
	if h.OK() || h.Status != "degraded" || h.Presets["gone"] != "error" {
		t.Errorf("missing preset health = %+v", h)
	}
}
