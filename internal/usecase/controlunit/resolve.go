package controlunit

import (
	"fmt"

	"github.com/kailas-cloud/fastload/internal/domain/record"
)

// Priority decides which side wins when both the plugin and the file hold units.
type Priority string

// Load priorities.
const (
	PluginFirst Priority = "plugin_first"
	FileFirst   Priority = "file_first"
)

// ParsePriority accepts the machine names and the settings label.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "plugin_first", "ControlNet Plugin First":
		return PluginFirst, nil
	case "", "file_first":
		return FileFirst, nil
	default:
		return "", fmt.Errorf("unknown load priority %q", s)
	}
}

// Source names where resolved units came from.
type Source string

// Resolution sources.
const (
	SourcePlugin Source = "plugin"
	SourceFile   Source = "file"
)

// Resolution is the outcome of merging plugin state with a loaded file.
type Resolution struct {
	Records  []record.Record
	Source   Source
	Warnings []string
}

// Warning texts.
const (
	WarnPluginPriority = "the plugin is not empty and has priority; loaded units were ignored"
	WarnOverwrite      = "the plugin is not empty; loaded units overwrite its current units"
	WarnExceedsCount   = "the file holds more units than currently configured; this might cause an error"
)

// Resolve picks between the plugin's current units and the loaded ones.
// A plugin with no enabled unit always takes the file. Otherwise
// PluginFirst keeps current and any other priority takes the file.
func Resolve(current, loaded []record.Record, priority Priority) Resolution {
	res := Resolution{Records: loaded, Source: SourceFile}
	switch {
	case !anyEnabled(current):
	case priority == PluginFirst:
		res = Resolution{Records: current, Source: SourcePlugin, Warnings: []string{WarnPluginPriority}}
	default:
		res.Warnings = append(res.Warnings, WarnOverwrite)
	}

	if len(res.Records) > len(current) {
		res.Warnings = append(res.Warnings, WarnExceedsCount)
	}
	return res
}

func anyEnabled(records []record.Record) bool {
	for _, r := range records {
		if r.Enabled() {
			return true
		}
	}
	return false
}
