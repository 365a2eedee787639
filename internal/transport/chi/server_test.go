package chi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fastload/internal/db/memory"
	"github.com/kailas-cloud/fastload/internal/domain"
	"github.com/kailas-cloud/fastload/internal/domain/access"
	galidx "github.com/kailas-cloud/fastload/internal/gallery"
	"github.com/kailas-cloud/fastload/internal/pnginfo"
	"github.com/kailas-cloud/fastload/internal/repository/hashes"
	"github.com/kailas-cloud/fastload/internal/repository/indexcache"
	controlunituc "github.com/kailas-cloud/fastload/internal/usecase/controlunit"
	galleryuc "github.com/kailas-cloud/fastload/internal/usecase/gallery"
	healthuc "github.com/kailas-cloud/fastload/internal/usecase/health"
	"github.com/kailas-cloud/fastload/internal/version"
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

type testEnv struct {
	dir     string
	handler http.Handler
	server  *Server
}

// newTestEnv serves a gallery with one preset "outputs" holding a.png and b.png.
func newTestEnv(t *testing.T, level access.Level, presets map[string]string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), `ControlNet 0: "preprocessor: canny, model: m1"`)
	writePNG(t, filepath.Join(dir, "b.png"), `ControlNet 0: "preprocessor: depth, model: m2"`)
	if presets == nil {
		presets = map[string]string{"outputs": dir}
	}

	logger := zap.NewNop()
	store := memory.NewStore()
	cache := indexcache.New(indexcache.NewUnbounded(), nil)
	gallery := galleryuc.New(cache, hashes.New(store, 0, nil, logger), galleryuc.Options{Presets: presets}, logger)
	units := controlunituc.New(gallery, logger)
	health := healthuc.New(store, nil, presets)

	srv := NewServer(gallery, units, health, Options{}, logger)
	return &testEnv{
		dir:     dir,
		handler: AccessMiddleware(level, []string{"secret"})(srv.Handler()),
		server:  srv,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case []byte:
		rdr = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rdr)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code ErrorCode) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rr.Code, status, rr.Body.String())
	}
	if got := decode[ErrorResponse](t, rr); got.Code != code {
		t.Errorf("code = %q, want %q", got.Code, code)
	}
}

// --- health & metrics ---

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, access.None, nil)
	rr := env.do(t, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Status != "ok" || resp.Checks["preset:outputs"] != "ok" {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestHealthCheck_MissingPreset(t *testing.T) {
	env := newTestEnv(t, access.None, map[string]string{"gone": "/nonexistent/fastload"})
	rr := env.do(t, "GET", "/health", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, access.None, nil)
	rr := env.do(t, "GET", "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestVersionEndpoint(t *testing.T) {
	env := newTestEnv(t, access.None, nil)
	rr := env.do(t, "GET", "/version", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decode[version.Info](t, rr); got.Version == "" {
		t.Error("version must not be empty")
	}
}

// --- gallery ---

func TestLoadGallery(t *testing.T) {
	env := newTestEnv(t, access.Presets, nil)
	rr := env.do(t, "GET", "/gallery?preset=outputs", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[GalleryResponse](t, rr)
	if len(resp.Files) != 2 || resp.Page != 1 || resp.LastPage != 1 || !resp.Fresh {
		t.Errorf("unexpected view: %+v", resp)
	}
	if resp.Filters == nil {
		t.Error("filters must encode as an empty list")
	}
}

func TestLoadGallery_Filtered(t *testing.T) {
	env := newTestEnv(t, access.Presets, nil)
	q := url.Values{
		"preset":    {"outputs"},
		"last_path": {env.dir},
		"filter":    {"model - m2"},
		"page":      {"1"},
		"action":    {"Next Page"},
	}
	rr := env.do(t, "GET", "/gallery?"+q.Encode(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[GalleryResponse](t, rr)
	if diff := cmp.Diff([]string{filepath.Join(env.dir, "b.png")}, resp.Files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
	if resp.Total != 1 || resp.Page != 1 {
		t.Errorf("total=%d page=%d", resp.Total, resp.Page)
	}
}

func TestLoadGallery_Errors(t *testing.T) {
	tests := []struct {
		name   string
		level  access.Level
		target string
		status int
		code   ErrorCode
	}{
		{"no permission", access.None, "/gallery?preset=outputs", http.StatusForbidden, ErrorCodeNoPermission},
		{"manual path at presets level", access.Presets, "/gallery?path=/tmp", http.StatusForbidden, ErrorCodeNoPermission},
		{"unknown preset", access.Presets, "/gallery?preset=nope", http.StatusNotFound, ErrorCodeDirNotFound},
		{"missing dir", access.Manual, "/gallery?path=/nonexistent/fastload", http.StatusNotFound, ErrorCodeDirNotFound},
		{"bad page", access.Manual, "/gallery?preset=outputs&page=abc", http.StatusBadRequest, ErrorCodeBadRequest},
		{"bad action", access.Manual, "/gallery?preset=outputs&action=jump", http.StatusBadRequest, ErrorCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.level, nil)
			expectError(t, env.do(t, "GET", tt.target, nil), tt.status, tt.code)
		})
	}
}

func TestLoadGallery_InvalidFilter(t *testing.T) {
	env := newTestEnv(t, access.Manual, nil)
	q := url.Values{"path": {env.dir}, "last_path": {env.dir}, "filter": {"no separator"}}
	expectError(t, env.do(t, "GET", "/gallery?"+q.Encode(), nil), http.StatusBadRequest, ErrorCodeInvalidFilter)
}

func TestLoadGallery_BearerTokenElevates(t *testing.T) {
	env := newTestEnv(t, access.None, nil)
	req := httptest.NewRequest("GET", "/gallery?"+url.Values{"path": {env.dir}}.Encode(), http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestListPresets(t *testing.T) {
	env := newTestEnv(t, access.Presets, nil)
	rr := env.do(t, "GET", "/gallery/presets", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[map[string]string](t, rr)
	if got["outputs"] != env.dir {
		t.Errorf("presets = %v", got)
	}
}

func TestListPresets_NoAccess(t *testing.T) {
	env := newTestEnv(t, access.None, nil)
	rr := env.do(t, "GET", "/gallery/presets", nil)
	expectError(t, rr, http.StatusForbidden, ErrorCodeNoPermission)
}

func TestListKeysAndValues(t *testing.T) {
	env := newTestEnv(t, access.Presets, nil)

	rr := env.do(t, "GET", "/gallery/keys?preset=outputs", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("keys status = %d", rr.Code)
	}
	keys := decode[ListResponse](t, rr)
	if !strings.Contains(strings.Join(keys.Items, ","), "preprocessor") {
		t.Errorf("keys = %v", keys.Items)
	}

	rr = env.do(t, "GET", "/gallery/values?preset=outputs&key=model", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("values status = %d", rr.Code)
	}
	values := decode[ListResponse](t, rr)
	if diff := cmp.Diff([]string{"model - m1", "model - m2"}, values.Items); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	expectError(t, env.do(t, "GET", "/gallery/values?preset=outputs", nil), http.StatusBadRequest, ErrorCodeBadRequest)
}

func TestAddFilters(t *testing.T) {
	env := newTestEnv(t, access.None, nil)
	rr := env.do(t, "POST", "/gallery/filters", AddFiltersRequest{
		Current: []string{"model - m1"},
		Added:   []string{"preprocessor - canny", "model - m1"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decode[ListResponse](t, rr); len(got.Items) != 2 {
		t.Errorf("filters = %v", got.Items)
	}

	expectError(t, env.do(t, "POST", "/gallery/filters", AddFiltersRequest{Added: []string{"bad"}}),
		http.StatusBadRequest, ErrorCodeInvalidFilter)
	expectError(t, env.do(t, "POST", "/gallery/filters", []byte("{")), http.StatusBadRequest, ErrorCodeBadRequest)
}

func TestSelectImage(t *testing.T) {
	env := newTestEnv(t, access.Presets, nil)
	file := filepath.Join(env.dir, "a.png")
	q := url.Values{"file": {file}, "filter": {"model - m1"}}

	rr := env.do(t, "GET", "/gallery/select?"+q.Encode(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[SelectionResponse](t, rr)
	want := []galidx.Highlight{
		{Label: "[ControlNet 0] preprocessor - canny"},
		{Label: "[ControlNet 0] model - m1", Tag: galidx.TagInclude},
	}
	if diff := cmp.Diff(want, resp.Highlights); diff != "" {
		t.Errorf("highlights mismatch (-want +got):\n%s", diff)
	}
	if resp.Original != file || resp.ControlList != "" {
		t.Errorf("unexpected selection: %+v", resp)
	}

	expectError(t, env.do(t, "GET", "/gallery/select", nil), http.StatusBadRequest, ErrorCodeBadRequest)
}

func TestSelectImage_OutsidePresets(t *testing.T) {
	env := newTestEnv(t, access.Presets, nil)
	other := filepath.Join(t.TempDir(), "x.png")
	writePNG(t, other, "")
	expectError(t, env.do(t, "GET", "/gallery/select?"+url.Values{"file": {other}}.Encode(), nil),
		http.StatusForbidden, ErrorCodeNoPermission)
}

// --- control units ---

const unitsJSON = `[{"attributes":{"enabled":"True","model":"m1"}},{"attributes":{"enabled":"False","model":"m2"}}]`

func TestControlUnits_SaveLoadView(t *testing.T) {
	env := newTestEnv(t, access.Manual, nil)
	path := filepath.Join(env.dir, "a.png")

	body := []byte(`{"path":` + jsonString(path) + `,"units":` + unitsJSON + `}`)
	rr := env.do(t, "POST", "/controlunits", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("save status = %d: %s", rr.Code, rr.Body.String())
	}
	if got := decode[SaveResponse](t, rr); len(got.Files) != 1 || got.Files[0] != path {
		t.Errorf("written = %v", got.Files)
	}

	rr = env.do(t, "GET", "/controlunits?"+url.Values{"path": {path}}.Encode(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("load status = %d: %s", rr.Code, rr.Body.String())
	}
	loaded := decode[UnitsResponse](t, rr)
	if len(loaded.Units) != 2 {
		t.Fatalf("units = %d", len(loaded.Units))
	}
	if v, _ := loaded.Units[1].Get("model"); v != "m2" {
		t.Errorf("second unit model = %q", v)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rr = env.do(t, "POST", "/controlunits/view", data)
	if rr.Code != http.StatusOK {
		t.Fatalf("view status = %d: %s", rr.Code, rr.Body.String())
	}
	view := decode[ViewResponse](t, rr)
	if len(view.Units) != 2 || len(view.Previews) != 0 {
		t.Errorf("view = %d units, %d previews", len(view.Units), len(view.Previews))
	}
}

func TestControlUnits_SaveSidecar(t *testing.T) {
	env := newTestEnv(t, access.Manual, nil)
	path := filepath.Join(env.dir, "b.png")
	body := []byte(`{"path":` + jsonString(path) + `,"units":` + unitsJSON + `,"mode":"sidecar"}`)

	rr := env.do(t, "POST", "/controlunits", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	got := decode[SaveResponse](t, rr)
	if len(got.Files) != 1 || filepath.Ext(got.Files[0]) != domain.SidecarExt {
		t.Errorf("written = %v", got.Files)
	}

	rr = env.do(t, "GET", "/gallery/select?"+url.Values{"file": {path}}.Encode(), nil)
	if sel := decode[SelectionResponse](t, rr); sel.ControlList != got.Files[0] {
		t.Errorf("control list = %q, want %q", sel.ControlList, got.Files[0])
	}

	expectError(t, env.do(t, "POST", "/controlunits", []byte(`{"path":"x.png","mode":"cloud"}`)),
		http.StatusBadRequest, ErrorCodeBadRequest)
}

func TestControlUnits_Errors(t *testing.T) {
	env := newTestEnv(t, access.Manual, nil)

	expectError(t, env.do(t, "POST", "/controlunits/view", nil), http.StatusBadRequest, ErrorCodeEmptyInput)
	expectError(t, env.do(t, "POST", "/controlunits/view", []byte("plain bytes")),
		http.StatusUnprocessableEntity, ErrorCodeDecodeFailed)
	expectError(t, env.do(t, "GET", "/controlunits?"+url.Values{"path": {filepath.Join(env.dir, "a.png")}}.Encode(), nil),
		http.StatusUnprocessableEntity, ErrorCodeDecodeFailed)
	expectError(t, env.do(t, "GET", "/controlunits?"+url.Values{"path": {filepath.Join(env.dir, "zz.png")}}.Encode(), nil),
		http.StatusNotFound, ErrorCodeFileNotFound)
	expectError(t, env.do(t, "GET", "/controlunits", nil), http.StatusBadRequest, ErrorCodeBadRequest)
}

func TestControlUnits_NoPermission(t *testing.T) {
	env := newTestEnv(t, access.None, nil)
	q := url.Values{"path": {filepath.Join(env.dir, "a.png")}}
	expectError(t, env.do(t, "GET", "/controlunits?"+q.Encode(), nil), http.StatusForbidden, ErrorCodeNoPermission)
}

func TestEmbedUnits(t *testing.T) {
	env := newTestEnv(t, access.None, nil)
	img := base64.StdEncoding.EncodeToString([]byte("carrier"))

	rr := env.do(t, "POST", "/controlunits/embed", []byte(`{"image":"`+img+`","units":`+unitsJSON+`}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	out := decode[EmbedResponse](t, rr)
	raw, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		t.Fatalf("response is not base64: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("carrier")) {
		t.Error("carrier bytes must be preserved")
	}

	expectError(t, env.do(t, "POST", "/controlunits/embed", EmbedRequest{}), http.StatusBadRequest, ErrorCodeEmptyInput)
}

func TestApplyUnits(t *testing.T) {
	env := newTestEnv(t, access.Manual, nil)
	path := filepath.Join(env.dir, "a.png")
	if rr := env.do(t, "POST", "/controlunits", []byte(`{"path":`+jsonString(path)+`,"units":`+unitsJSON+`}`)); rr.Code != http.StatusCreated {
		t.Fatalf("save status = %d", rr.Code)
	}

	current := `[{"attributes":{"enabled":"True","model":"mine"}}]`
	tests := []struct {
		name       string
		priority   string
		wantSource string
		wantModel  string
	}{
		{"file first", "", "file", "m1"},
		{"plugin first", "ControlNet Plugin First", "plugin", "mine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(`{"path":` + jsonString(path) + `,"current":` + current + `,"priority":"` + tt.priority + `"}`)
			rr := env.do(t, "POST", "/controlunits/apply", body)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
			}
			resp := decode[ApplyResponse](t, rr)
			if resp.Source != tt.wantSource {
				t.Errorf("source = %q, want %q", resp.Source, tt.wantSource)
			}
			if v, _ := resp.Units[0].Get("model"); v != tt.wantModel {
				t.Errorf("first model = %q, want %q", v, tt.wantModel)
			}
			if len(resp.Warnings) == 0 {
				t.Error("expected warnings")
			}
		})
	}

	expectError(t, env.do(t, "POST", "/controlunits/apply", ApplyRequest{Path: path, Priority: "random"}),
		http.StatusBadRequest, ErrorCodeBadRequest)
}

func TestHandleDomainError_Internal(t *testing.T) {
	env := newTestEnv(t, access.None, nil)
	rr := httptest.NewRecorder()
	env.server.handleDomainError(rr, errors.New("redis: connection reset by 10.0.0.3"))
	if strings.Contains(rr.Body.String(), "10.0.0.3") {
		t.Error("internal details must not leak")
	}
	expectError(t, rr, http.StatusInternalServerError, ErrorCodeInternalError)
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
