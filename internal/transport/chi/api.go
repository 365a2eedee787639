package chi

import (
	"github.com/kailas-cloud/fastload/internal/domain/record"
	galidx "github.com/kailas-cloud/fastload/internal/gallery"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeNoPermission     ErrorCode = "no_permission"
	ErrorCodePermissionDenied ErrorCode = "permission_denied"
	ErrorCodeFileNotFound     ErrorCode = "file_not_found"
	ErrorCodeDirNotFound      ErrorCode = "directory_not_found"
	ErrorCodeNotDirectory     ErrorCode = "not_a_directory"
	ErrorCodeDecodeFailed     ErrorCode = "decode_failed"
	ErrorCodeEmptyInput       ErrorCode = "empty_input"
	ErrorCodeInvalidFilter    ErrorCode = "invalid_filter"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// GalleryResponse is one page of a gallery.
type GalleryResponse struct {
	Path     string   `json:"path"`
	Files    []string `json:"files"`
	Page     int      `json:"page"`
	LastPage int      `json:"last_page"`
	Total    int      `json:"total"`
	Keys     []string `json:"keys"`
	Filters  []string `json:"filters"`
	Fresh    bool     `json:"fresh"`
}

// ListResponse wraps a list of strings (keys, values, filters).
type ListResponse struct {
	Items []string `json:"items"`
}

// AddFiltersRequest is the body of POST /gallery/filters.
type AddFiltersRequest struct {
	Current []string `json:"current"`
	Added   []string `json:"added"`
}

// SelectionResponse describes a selected gallery image.
type SelectionResponse struct {
	Original    string             `json:"original"`
	Highlights  []galidx.Highlight `json:"highlights"`
	Parameters  string             `json:"parameters"`
	ControlList string             `json:"control_list,omitempty"`
}

// PreviewItem is one unit image; PNG is base64 in JSON.
type PreviewItem struct {
	Label string `json:"label"`
	PNG   []byte `json:"png"`
}

// ViewResponse is the body of POST /controlunits/view.
type ViewResponse struct {
	Previews []PreviewItem  `json:"previews"`
	Units    []record.Record `json:"units"`
}

// UnitsResponse is the body of GET /controlunits.
type UnitsResponse struct {
	Units []record.Record `json:"units"`
}

// SaveRequest is the body of POST /controlunits.
type SaveRequest struct {
	Path  string          `json:"path"`
	Units []record.Record `json:"units"`
	// Mode is embed, sidecar or both; empty uses the server default.
	Mode string `json:"mode,omitempty"`
}

// SaveResponse lists the files written.
type SaveResponse struct {
	Files []string `json:"files"`
}

// EmbedRequest is the body of POST /controlunits/embed.
type EmbedRequest struct {
	Image string          `json:"image"`
	Units []record.Record `json:"units"`
}

// EmbedResponse carries the base64 image with the control list appended.
type EmbedResponse struct {
	Image string `json:"image"`
}

// ApplyRequest is the body of POST /controlunits/apply.
type ApplyRequest struct {
	Path     string          `json:"path"`
	Current  []record.Record `json:"current"`
	Priority string          `json:"priority,omitempty"`
}

// ApplyResponse is the resolved unit list.
type ApplyResponse struct {
	Units    []record.Record `json:"units"`
	Source   string          `json:"source"`
	Warnings []string        `json:"warnings,omitempty"`
}
