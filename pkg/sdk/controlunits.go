package fastload

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/fastload/internal/domain/access"
	controlunituc "github.com/kailas-cloud/fastload/internal/usecase/controlunit"
)

// ControlUnitService reads and writes ControlNet control lists.
type ControlUnitService struct {
	svc   controlUnitUseCase
	level access.Level
	obs   *observer
}

// View decodes a control list from file bytes and splits out its images.
func (s *ControlUnitService) View(data []byte) (_ View, err error) {
	start := time.Now()
	defer func() { s.obs.observe("controlunits.view", start, err, "bytes", len(data)) }()

	res, err := s.svc.View(data)
	if err != nil {
		return View{}, fmt.Errorf("view control list: %w", err)
	}
	v := View{Previews: make([]Preview, len(res.Previews)), Units: res.Units}
	for i, p := range res.Previews {
		v.Previews[i] = Preview{Label: p.Label, PNG: p.PNG}
	}
	return v, nil
}

// Load reads the control list stored in path.
func (s *ControlUnitService) Load(ctx context.Context, path string) (_ []Unit, err error) {
	start := time.Now()
	defer func() { s.obs.observe("controlunits.load", start, err, "path", path) }()

	units, err := s.svc.Load(s.ctx(ctx), path)
	if err != nil {
		return nil, fmt.Errorf("load control list: %w", err)
	}
	return units, nil
}

// Save writes units into or next to the image at path and returns the files written.
func (s *ControlUnitService) Save(ctx context.Context, path string, units []Unit, mode SaveMode) (_ []string, err error) {
	start := time.Now()
	defer func() { s.obs.observe("controlunits.save", start, err, "path", path, "mode", string(mode)) }()

	files, err := s.svc.Save(s.ctx(ctx), path, units, mode)
	if err != nil {
		return files, fmt.Errorf("save control list: %w", err)
	}
	return files, nil
}

// Embed appends units to a base64-encoded image and returns the new base64 image.
func (s *ControlUnitService) Embed(b64 string, units []Unit) (_ string, err error) {
	start := time.Now()
	defer func() { s.obs.observe("controlunits.embed", start, err) }()

	out, err := s.svc.Embed(b64, units)
	if err != nil {
		return "", fmt.Errorf("embed control list: %w", err)
	}
	return out, nil
}

// Apply loads path and resolves it against the caller's current units.
func (s *ControlUnitService) Apply(
	ctx context.Context, current []Unit, path string, priority Priority,
) (_ Resolution, err error) {
	start := time.Now()
	defer func() { s.obs.observe("controlunits.apply", start, err, "path", path) }()

	res, err := s.svc.Apply(s.ctx(ctx), current, path, priority)
	if err != nil {
		return Resolution{}, fmt.Errorf("apply control list: %w", err)
	}
	return Resolution{
		Units:    res.Records,
		FromFile: res.Source == controlunituc.SourceFile,
		Warnings: res.Warnings,
	}, nil
}

func (s *ControlUnitService) ctx(ctx context.Context) context.Context {
	return access.WithLevel(ctx, s.level)
}
