package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/fastload/internal/domain"
	"github.com/kailas-cloud/fastload/internal/domain/record"
)

// SaveMode selects where a control list is written after generation.
type SaveMode string

// Save modes.
const (
	ModeEmbed   SaveMode = "embed"
	ModeSidecar SaveMode = "sidecar"
	ModeBoth    SaveMode = "both"
)

// ParseSaveMode accepts machine names and the settings labels.
func ParseSaveMode(s string) (SaveMode, error) {
	switch s {
	case "embed", "Embed photo":
		return ModeEmbed, nil
	case "sidecar", "Extra .cni file":
		return ModeSidecar, nil
	case "both", "Both":
		return ModeBoth, nil
	default:
		return "", fmt.Errorf("unknown save mode %q", s)
	}
}

// SidecarPath returns path with its extension replaced by ".cni".
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + domain.SidecarExt
}

// EncodeFile appends the record list to the file at path, rewriting it in place.
func EncodeFile(path string, records []record.Record) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	carrier, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	out, err := Encode(records, carrier)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// EncodeBase64 treats b64 as a base64 carrier and returns the base64 result.
func EncodeBase64(b64 string, records []record.Record) (string, error) {
	carrier, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decode base64 carrier: %w", err)
	}
	out, err := Encode(records, carrier)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecodeFile reads the record list embedded in the file at path.
func DecodeFile(path string) ([]record.Record, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	records, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Locate returns the file holding a non-empty control list for the image at
// basePath: the image itself, else its sidecar, else "". Neither file is
// modified and no error is reported.
func Locate(basePath string) string {
	if records, err := DecodeFile(basePath); err == nil && len(records) > 0 {
		return basePath
	}
	sidecar := SidecarPath(basePath)
	if records, err := DecodeFile(sidecar); err == nil && len(records) > 0 {
		return sidecar
	}
	return ""
}

// Save writes records next to or into the image at path according to mode
// and returns the files written.
func Save(path string, records []record.Record, mode SaveMode) ([]string, error) {
	var written []string
	if mode == ModeEmbed || mode == ModeBoth {
		if err := EncodeFile(path, records); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if mode == ModeSidecar || mode == ModeBoth {
		sidecar := SidecarPath(path)
		out, err := Encode(records, nil)
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(sidecar, out, 0o644); err != nil { //nolint:gosec // sidecar is a shared output file
			return written, fmt.Errorf("write %s: %w", sidecar, err)
		}
		written = append(written, sidecar)
	}
	if len(written) == 0 {
		return nil, fmt.Errorf("unknown save mode %q", mode)
	}
	return written, nil
}
