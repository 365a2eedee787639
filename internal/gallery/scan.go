package gallery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fastload/internal/domain"
	"github.com/kailas-cloud/fastload/internal/domain/params"
	"github.com/kailas-cloud/fastload/internal/logger"
	"github.com/kailas-cloud/fastload/internal/pnginfo"
)

const mimePNG = "image/png"

// Scan walks dir recursively and indexes every image in it. Files that are
// not images or cannot be opened are skipped. Errors on dir itself are
// returned as domain.ErrDirNotFound, domain.ErrNotDirectory or
// domain.ErrPermissionDenied.
func Scan(ctx context.Context, dir string) (*Index, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, rootError(dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotDirectory, dir)
	}

	log := logger.FromContext(ctx).With(zap.String("dir", dir))
	ix := NewIndex()
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == dir {
				return rootError(dir, walkErr)
			}
			log.Debug("skip unreadable entry", zap.String("path", path), zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !regularFile(path, d) {
			return nil
		}

		units, ok := readUnits(path, log)
		if ok {
			ix.Add(path, units)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug("directory scanned", zap.Int("files", ix.Len()))
	return ix, nil
}

// regularFile reports whether d is a regular file or a symlink to one.
// Symlinked directories are not followed.
func regularFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// readUnits reports whether path is an image and returns its control units.
// Metadata failures keep the image but drop (part of) its units.
func readUnits(path string, log *zap.Logger) ([]params.Unit, bool) {
	mt, err := mimetype.DetectFile(path)
	if err != nil || !strings.HasPrefix(mt.String(), "image/") {
		return nil, false
	}
	if !mt.Is(mimePNG) {
		return nil, true
	}

	text, found, err := pnginfo.ReadFileText(path, domain.ParametersKey)
	if err != nil {
		log.Debug("read png text", zap.String("path", path), zap.Error(err))
		return nil, true
	}
	if !found {
		return nil, true
	}
	units, err := params.Parse(text)
	if err != nil {
		log.Debug("parse parameters", zap.String("path", path), zap.Error(err))
	}
	return units, true
}

// ReadParameters returns the generation parameters text of the image at path.
// Non-PNG images report found=false.
func ReadParameters(path string) (string, bool, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return "", false, fmt.Errorf("detect %s: %w", path, err)
	}
	if !mt.Is(mimePNG) {
		return "", false, nil
	}
	return pnginfo.ReadFileText(path, domain.ParametersKey)
}

func rootError(dir string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", domain.ErrDirNotFound, dir)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, dir)
	default:
		return fmt.Errorf("scan %s: %w", dir, err)
	}
}
