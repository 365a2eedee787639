package gallery

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fastload/internal/domain"
	"github.com/kailas-cloud/fastload/internal/domain/access"
	galidx "github.com/kailas-cloud/fastload/internal/gallery"
	"github.com/kailas-cloud/fastload/internal/pnginfo"
)

// --- Mocks ---

type mockCache struct {
	data map[string]*galidx.Index
	puts int
}

func (m *mockCache) Get(dir string) (*galidx.Index, bool) {
	ix, ok := m.data[dir]
	return ix, ok
}

func (m *mockCache) Put(dir string, ix *galidx.Index) {
	m.puts++
	m.data[dir] = ix
}

type mockHashes struct {
	recorded []string
	resolved []string
	resolve  map[string]string
	err      error
}

func (m *mockHashes) Record(_ context.Context, paths []string) error {
	m.recorded = append(m.recorded, paths...)
	return m.err
}

func (m *mockHashes) ResolveFile(_ context.Context, path string) (string, bool, error) {
	m.resolved = append(m.resolved, path)
	orig, ok := m.resolve[path]
	return orig, ok, nil
}

type mockWatcher struct {
	dirs []string
}

func (m *mockWatcher) Watch(dir string) error {
	m.dirs = append(m.dirs, dir)
	return nil
}

// --- Helpers ---

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
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

type fixture struct {
	svc     *Service
	cache   *mockCache
	hashes  *mockHashes
	watcher *mockWatcher
	scans   int
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		cache:   &mockCache{data: map[string]*galidx.Index{}},
		hashes:  &mockHashes{resolve: map[string]string{}},
		watcher: &mockWatcher{},
	}
	opts.Watcher = f.watcher
	opts.Scan = func(ctx context.Context, dir string) (*galidx.Index, error) {
		f.scans++
		return galidx.Scan(ctx, dir)
	}
	f.svc = New(f.cache, f.hashes, opts, zap.NewNop())
	return f
}

func manual() context.Context {
	return access.WithLevel(context.Background(), access.Manual)
}

func intPtr(i int) *int { return &i }
