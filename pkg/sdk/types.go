package fastload

import (
	"github.com/kailas-cloud/fastload/internal/codec"
	"github.com/kailas-cloud/fastload/internal/domain/access"
	"github.com/kailas-cloud/fastload/internal/domain/page"
	"github.com/kailas-cloud/fastload/internal/domain/record"
	controlunituc "github.com/kailas-cloud/fastload/internal/usecase/controlunit"
)

// AccessLevel gates gallery directories and control list files.
type AccessLevel = access.Level

// Access levels.
const (
	AccessNone    = access.None
	AccessPresets = access.Presets
	AccessManual  = access.Manual
)

// Unit is one ControlNet unit: ordered attributes plus an optional image payload.
type Unit = record.Record

// Pair is one unit attribute.
type Pair = record.Pair

// NewUnit creates a unit from attributes in order.
func NewUnit(pairs ...Pair) Unit { return record.New(pairs...) }

// SaveMode selects where Save writes the control list.
type SaveMode = codec.SaveMode

// Save modes.
const (
	SaveEmbed   = codec.ModeEmbed
	SaveSidecar = codec.ModeSidecar
	SaveBoth    = codec.ModeBoth
)

// PageAction navigates gallery pages.
type PageAction = page.Action

// Page actions.
const (
	PageNone  = page.None
	PageFirst = page.First
	PagePrev  = page.Prev
	PageNext  = page.Next
	PageEnd   = page.End
)

// Priority decides between the caller's current units and a loaded file.
type Priority = controlunituc.Priority

// Priorities.
const (
	PluginFirst = controlunituc.PluginFirst
	FileFirst   = controlunituc.FileFirst
)

// Query selects a gallery page. See Gallery().Load.
type Query struct {
	// Preset names a configured directory; Path is used when empty.
	Preset string
	Path   string
	// LastPath is the directory of the previous page. A different directory
	// rescans it and ignores Filters.
	LastPath string
	Filters  []string
	// Page is 1-based; zero means the first page.
	Page   int
	Action PageAction
}

// Page is one page of a gallery.
type Page struct {
	Path     string
	Files    []string
	Page     int
	LastPage int
	Total    int
	Keys     []string
	Filters  []string
	Fresh    bool
}

// Highlight is one labelled attribute of a selected image.
type Highlight struct {
	Label    string
	Included bool
}

// Selection describes an image picked from a gallery page.
type Selection struct {
	Original    string
	Highlights  []Highlight
	Parameters  string
	ControlList string
}

// Preview is one PNG image carried by a control list.
type Preview struct {
	Label string
	PNG   []byte
}

// View is a decoded control list split for display.
type View struct {
	Previews []Preview
	Units    []Unit
}

// Resolution is the outcome of Apply.
type Resolution struct {
	Units    []Unit
	FromFile bool
	Warnings []string
}
