package ocr

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/scourt-cli/internal/config"
)

// Extractor extracts text content from PDF files. Pages are concatenated in
// order with no separator.
type Extractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	var ext Extractor
	switch cfg.Provider {
	case "native", "":
		ext = NewNative()
	case "local":
		ext = NewPdfToText(cfg.PdfToTextPath)
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		ext = NewMistralOCR(cfg.MistralKey, cfg.MistralModel)
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
	return Normalized{Extractor: ext}, nil
}

// Normalized composes extracted text to NFC. Some PDF text layers emit Hangul
// as conjoining jamo, which never matches precomposed section markers.
type Normalized struct {
	Extractor
}

// ExtractText delegates to the wrapped extractor and normalizes the result.
func (n Normalized) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	text, err := n.Extractor.ExtractText(ctx, pdfPath)
	if err != nil {
		return "", err
	}
	return norm.NFC.String(text), nil
}

// joinPages concatenates page texts exactly as extracted.
func joinPages(pages []string) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p)
	}
	return sb.String()
}
