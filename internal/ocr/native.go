package ocr

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// Native extracts the text layer in-process with ledongthuc/pdf.
type Native struct{}

// NewNative creates a Native extractor.
func NewNative() *Native {
	return &Native{}
}

// ExtractText reads every page's plain text in page order.
func (n *Native) ExtractText(ctx context.Context, pdfPath string) (text string, err error) {
	// The parser panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = eris.Errorf("ocr: malformed PDF %s: %v", pdfPath, r)
		}
	}()

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: open PDF %s", pdfPath)
	}
	defer f.Close() //nolint:errcheck

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", eris.Wrap(err, "ocr: context cancelled")
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", eris.Wrap(err, fmt.Sprintf("ocr: page %d of %s", i, pdfPath))
		}
		pages = append(pages, pageText)
	}

	return joinPages(pages), nil
}
