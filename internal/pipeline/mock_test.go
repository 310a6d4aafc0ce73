package pipeline

import (
	"context"
	"os"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/scourt-cli/internal/model"
)

// --- Board Mock ---

type mockBoard struct {
	mock.Mock
}

func (m *mockBoard) Listing(ctx context.Context, page int) ([]model.CaseRow, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CaseRow), args.Error(1)
}

func (m *mockBoard) ResolvePDF(ctx context.Context, detailURL string) (string, error) {
	args := m.Called(ctx, detailURL)
	return args.String(0), args.Error(1)
}

// --- Cache Mock ---

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Acquire(ctx context.Context, pdfURL, incident string) (model.CacheStatus, error) {
	args := m.Called(ctx, pdfURL, incident)
	return args.Get(0).(model.CacheStatus), args.Error(1)
}

func (m *mockCache) Path(incident string) string {
	return "/cache/" + incident + ".pdf"
}

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	args := m.Called(ctx, pdfPath)
	return args.String(0), args.Error(1)
}

// fileText treats the cached file body as its text layer.
type fileText struct{}

func (fileText) ExtractText(_ context.Context, pdfPath string) (string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
