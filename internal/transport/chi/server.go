package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fastload/internal/codec"
	"github.com/kailas-cloud/fastload/internal/domain"
	"github.com/kailas-cloud/fastload/internal/domain/page"
	controlunituc "github.com/kailas-cloud/fastload/internal/usecase/controlunit"
	galleryuc "github.com/kailas-cloud/fastload/internal/usecase/gallery"
	healthuc "github.com/kailas-cloud/fastload/internal/usecase/health"
	"github.com/kailas-cloud/fastload/internal/version"
)

// DefaultMaxBodyBytes bounds request bodies when Options.MaxBodyBytes is unset.
const DefaultMaxBodyBytes = 32 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Options configures a Server.
type Options struct {
	// SaveMode is used when a save request names no mode.
	SaveMode     codec.SaveMode
	MaxBodyBytes int64
}

// Server serves the gallery and control unit HTTP API.
type Server struct {
	gallery       *galleryuc.Service
	controlunits  *controlunituc.Service
	health        *healthuc.Service
	saveMode      codec.SaveMode
	maxBody       int64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	gallery *galleryuc.Service,
	controlunits *controlunituc.Service,
	health *healthuc.Service,
	opts Options,
	logger *zap.Logger,
) *Server {
	s := &Server{
		gallery:      gallery,
		controlunits: controlunits,
		health:       health,
		saveMode:     opts.SaveMode,
		maxBody:      opts.MaxBodyBytes,
		logger:       logger,
	}
	if s.saveMode == "" {
		s.saveMode = codec.ModeEmbed
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNoPermission, http.StatusForbidden, ErrorCodeNoPermission),
		sentinelHandler(domain.ErrPermissionDenied, http.StatusForbidden, ErrorCodePermissionDenied),
		sentinelHandler(domain.ErrFileNotFound, http.StatusNotFound, ErrorCodeFileNotFound),
		sentinelHandler(domain.ErrDirNotFound, http.StatusNotFound, ErrorCodeDirNotFound),
		sentinelHandler(domain.ErrNotDirectory, http.StatusBadRequest, ErrorCodeNotDirectory),
		sentinelHandler(domain.ErrDecode, http.StatusUnprocessableEntity, ErrorCodeDecodeFailed),
		sentinelHandler(domain.ErrEmptyInput, http.StatusBadRequest, ErrorCodeEmptyInput),
		sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, ErrorCodeInvalidFilter),
	}
	return s
}

// Register mounts every route on r.
func (s *Server) Register(r chirouter.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/version", s.Version)

	r.Route("/gallery", func(r chirouter.Router) {
		r.Get("/", s.LoadGallery)
		r.Get("/presets", s.ListPresets)
		r.Get("/keys", s.ListKeys)
		r.Get("/values", s.ListValues)
		r.Post("/filters", s.AddFilters)
		r.Get("/select", s.SelectImage)
	})

	r.Route("/controlunits", func(r chirouter.Router) {
		r.Get("/", s.LoadUnits)
		r.Post("/", s.SaveUnits)
		r.Post("/view", s.ViewUnits)
		r.Post("/embed", s.EmbedUnits)
		r.Post("/apply", s.ApplyUnits)
	})
}

// Handler returns a router serving the API.
func (s *Server) Handler() http.Handler {
	r := chirouter.NewRouter()
	s.Register(r)
	return r
}

// galleryParams are the query parameters shared by gallery routes.
type galleryParams struct {
	Preset   *string
	Path     *string
	LastPath *string
	Filters  []string
	Page     *int
	Action   *string
}

func bindGalleryParams(r *http.Request) (galleryParams, error) {
	q := r.URL.Query()
	var p galleryParams
	binds := []struct {
		name string
		dest any
	}{
		{"preset", &p.Preset},
		{"path", &p.Path},
		{"last_path", &p.LastPath},
		{"filter", &p.Filters},
		{"page", &p.Page},
		{"action", &p.Action},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return galleryParams{}, fmt.Errorf("invalid format for parameter %s: %w", b.name, err)
		}
	}
	return p, nil
}

// LoadGallery handles GET /gallery.
func (s *Server) LoadGallery(w http.ResponseWriter, r *http.Request) {
	p, err := bindGalleryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}
	action, err := page.ParseAction(deref(p.Action))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	view, err := s.gallery.Load(r.Context(), galleryuc.Query{
		Preset:   deref(p.Preset),
		Path:     deref(p.Path),
		LastPath: deref(p.LastPath),
		Filters:  p.Filters,
		Page:     p.Page,
		Action:   action,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, GalleryResponse{
		Path:     view.Path,
		Files:    nonNil(view.Files),
		Page:     view.Page,
		LastPage: view.LastPage,
		Total:    view.Total,
		Keys:     nonNil(view.Keys),
		Filters:  nonNil(view.Filters),
		Fresh:    view.Fresh,
	})
}

// ListPresets handles GET /gallery/presets.
func (s *Server) ListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.gallery.ListPresets(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presets)
}

// ListKeys handles GET /gallery/keys.
func (s *Server) ListKeys(w http.ResponseWriter, r *http.Request) {
	p, err := bindGalleryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}
	keys, err := s.gallery.Keys(r.Context(), deref(p.Preset), deref(p.Path))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Items: nonNil(keys)})
}

// ListValues handles GET /gallery/values.
func (s *Server) ListValues(w http.ResponseWriter, r *http.Request) {
	p, err := bindGalleryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}
	var key string
	if err := runtime.BindQueryParameter("form", true, true, "key", r.URL.Query(), &key); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Query parameter key is required")
		return
	}
	values, err := s.gallery.Values(r.Context(), deref(p.Preset), deref(p.Path), key)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Items: nonNil(values)})
}

// AddFilters handles POST /gallery/filters.
func (s *Server) AddFilters(w http.ResponseWriter, r *http.Request) {
	var req AddFiltersRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	filters, err := s.gallery.AddFilters(req.Current, req.Added)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Items: nonNil(filters)})
}

// SelectImage handles GET /gallery/select.
func (s *Server) SelectImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		file    string
		filters []string
	)
	if err := runtime.BindQueryParameter("form", true, true, "file", q, &file); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Query parameter file is required")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "filter", q, &filters); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter filter")
		return
	}

	sel, err := s.gallery.Select(r.Context(), file, filters)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SelectionResponse{
		Original:    sel.Original,
		Highlights:  nonNil(sel.Highlights),
		Parameters:  sel.Parameters,
		ControlList: sel.ControlList,
	})
}

// ViewUnits handles POST /controlunits/view. The body is the raw carrier file.
func (s *Server) ViewUnits(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, ErrorCodeBadRequest, "Request body too large")
		return
	}
	res, err := s.controlunits.View(data)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := ViewResponse{
		Previews: make([]PreviewItem, len(res.Previews)),
		Units:    nonNil(res.Units),
	}
	for i, p := range res.Previews {
		resp.Previews[i] = PreviewItem{Label: p.Label, PNG: p.PNG}
	}
	writeJSON(w, http.StatusOK, resp)
}

// LoadUnits handles GET /controlunits.
func (s *Server) LoadUnits(w http.ResponseWriter, r *http.Request) {
	var path string
	if err := runtime.BindQueryParameter("form", true, true, "path", r.URL.Query(), &path); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Query parameter path is required")
		return
	}
	units, err := s.controlunits.Load(r.Context(), path)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UnitsResponse{Units: nonNil(units)})
}

// SaveUnits handles POST /controlunits.
func (s *Server) SaveUnits(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	mode := s.saveMode
	if req.Mode != "" {
		m, err := codec.ParseSaveMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
			return
		}
		mode = m
	}

	files, err := s.controlunits.Save(r.Context(), req.Path, req.Units, mode)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SaveResponse{Files: nonNil(files)})
}

// EmbedUnits handles POST /controlunits/embed.
func (s *Server) EmbedUnits(w http.ResponseWriter, r *http.Request) {
	var req EmbedRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	out, err := s.controlunits.Embed(req.Image, req.Units)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EmbedResponse{Image: out})
}

// ApplyUnits handles POST /controlunits/apply.
func (s *Server) ApplyUnits(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	priority, err := controlunituc.ParsePriority(req.Priority)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	res, err := s.controlunits.Apply(r.Context(), req.Current, req.Path, priority)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ApplyResponse{
		Units:    nonNil(res.Records),
		Source:   string(res.Source),
		Warnings: res.Warnings,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Version handles GET /version.
func (s *Server) Version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNoPermission,
		domain.ErrPermissionDenied,
		domain.ErrFileNotFound,
		domain.ErrDirNotFound,
		domain.ErrNotDirectory,
		domain.ErrDecode,
		domain.ErrEmptyInput,
		domain.ErrInvalidFilter,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
