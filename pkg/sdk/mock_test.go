package fastload

import (
	"context"

	"github.com/kailas-cloud/fastload/internal/domain/record"
	controlunituc "github.com/kailas-cloud/fastload/internal/usecase/controlunit"
	galleryuc "github.com/kailas-cloud/fastload/internal/usecase/gallery"
)

// --- galleryUseCase mock ---

type mockGalleryUC struct {
	loadFn   func(ctx context.Context, q galleryuc.Query) (galleryuc.View, error)
	selectFn func(ctx context.Context, file string, filters []string) (galleryuc.Selection, error)
}

func (m *mockGalleryUC) Load(ctx context.Context, q galleryuc.Query) (galleryuc.View, error) {
	return m.loadFn(ctx, q)
}

func (m *mockGalleryUC) Select(ctx context.Context, file string, filters []string) (galleryuc.Selection, error) {
	return m.selectFn(ctx, file, filters)
}

func (m *mockGalleryUC) Keys(context.Context, string, string) ([]string, error) { return nil, nil }

func (m *mockGalleryUC) Values(context.Context, string, string, string) ([]string, error) {
	return nil, nil
}

func (m *mockGalleryUC) AddFilters(current, added []string) ([]string, error) {
	return append(current, added...), nil
}

func (m *mockGalleryUC) Presets() map[string]string { return nil }

// --- controlUnitUseCase mock ---

type mockControlUnitUC struct {
	loadFn  func(ctx context.Context, path string) ([]record.Record, error)
	applyFn func(ctx context.Context, current []record.Record, path string, p Priority) (controlunituc.Resolution, error)
}

func (m *mockControlUnitUC) View([]byte) (controlunituc.ViewResult, error) {
	return controlunituc.ViewResult{}, nil
}

func (m *mockControlUnitUC) Load(ctx context.Context, path string) ([]record.Record, error) {
	return m.loadFn(ctx, path)
}

func (m *mockControlUnitUC) Save(context.Context, string, []record.Record, SaveMode) ([]string, error) {
	return nil, nil
}

func (m *mockControlUnitUC) Embed(string, []record.Record) (string, error) { return "", nil }

func (m *mockControlUnitUC) Apply(
	ctx context.Context, current []record.Record, path string, p Priority,
) (controlunituc.Resolution, error) {
	return m.applyFn(ctx, current, path, p)
}
