package controlunit

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fastload/internal/codec"
	"github.com/kailas-cloud/fastload/internal/domain"
	"github.com/kailas-cloud/fastload/internal/domain/record"
	"github.com/kailas-cloud/fastload/internal/metrics"
)

// Preview is one PNG-encoded image carried by a unit.
type Preview struct {
	Label string
	PNG   []byte
}

// ViewResult splits a decoded control list for display.
type ViewResult struct {
	Previews []Preview
	// Units holds the attributes of every unit, images removed.
	Units []record.Record
}

// Service loads, saves and inspects control lists.
type Service struct {
	guard  FileGuard
	logger *zap.Logger
}

// New creates a control unit service. guard may be nil to allow every path.
func New(guard FileGuard, logger *zap.Logger) *Service {
	return &Service{guard: guard, logger: logger}
}

// View decodes data and separates unit images, labelled "Controlnet - i",
// from their attributes.
func (s *Service) View(data []byte) (ViewResult, error) {
	if len(data) == 0 {
		return ViewResult{}, domain.ErrEmptyInput
	}
	records, err := s.decode(data)
	if err != nil {
		return ViewResult{}, err
	}

	res := ViewResult{Units: make([]record.Record, 0, len(records))}
	for i, r := range records {
		payload, attrs := r.Split()
		for _, im := range payload.Images() {
			encoded, err := encodePNG(im)
			if err != nil {
				return ViewResult{}, fmt.Errorf("preview of unit %d: %w", i, err)
			}
			res.Previews = append(res.Previews, Preview{Label: fmt.Sprintf("Controlnet - %d", i), PNG: encoded})
		}
		res.Units = append(res.Units, attrs)
	}
	return res, nil
}

// Load reads the control list stored in the file at path.
func (s *Service) Load(ctx context.Context, path string) ([]record.Record, error) {
	if err := s.authorize(ctx, path); err != nil {
		return nil, err
	}
	records, err := codec.DecodeFile(path)
	metrics.CodecOperationsTotal.WithLabelValues("decode", metrics.CodecStatus(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("load control list: %w", err)
	}
	return records, nil
}

// Apply loads path and resolves it against the plugin's current units.
func (s *Service) Apply(ctx context.Context, current []record.Record, path string, priority Priority) (Resolution, error) {
	loaded, err := s.Load(ctx, path)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolve(current, loaded, priority)
	for _, w := range res.Warnings {
		s.logger.Warn(w, zap.String("path", path))
	}
	return res, nil
}

// Save writes records into or next to the image at path and returns the
// files written.
func (s *Service) Save(ctx context.Context, path string, records []record.Record, mode codec.SaveMode) ([]string, error) {
	if err := s.authorize(ctx, path); err != nil {
		return nil, err
	}
	written, err := codec.Save(path, records, mode)
	metrics.CodecOperationsTotal.WithLabelValues("encode", metrics.CodecStatus(err)).Inc()
	if err != nil {
		return written, fmt.Errorf("save control list: %w", err)
	}
	s.logger.Info("ControlNet data saved", zap.Strings("files", written), zap.Int("units", len(records)))
	return written, nil
}

// Embed appends records to a base64 carrier and returns the base64 result.
func (s *Service) Embed(b64 string, records []record.Record) (string, error) {
	if b64 == "" {
		return "", domain.ErrEmptyInput
	}
	out, err := codec.EncodeBase64(b64, records)
	metrics.CodecOperationsTotal.WithLabelValues("encode", metrics.CodecStatus(err)).Inc()
	if err != nil {
		return "", fmt.Errorf("embed control list: %w", err)
	}
	return out, nil
}

func (s *Service) decode(data []byte) ([]record.Record, error) {
	records, err := codec.Decode(data)
	metrics.CodecOperationsTotal.WithLabelValues("decode", metrics.CodecStatus(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("view control list: %w", err)
	}
	return records, nil
}

func (s *Service) authorize(ctx context.Context, path string) error {
	if path == "" {
		return domain.ErrEmptyInput
	}
	if s.guard == nil {
		return nil
	}
	return s.guard.AuthorizeFile(ctx, path)
}

func encodePNG(im record.Image) ([]byte, error) {
	img, err := im.ToImage()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
