package pdfcache

import (
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"
)

var disableConfigDir sync.Once

// pdfcpu otherwise creates a config directory under the user's home on first use.
func initPDFCPU() {
	disableConfigDir.Do(api.DisableConfigDir)
}

// ValidatePDF checks the structure of a PDF file with pdfcpu in relaxed mode,
// which tolerates minor format deviations but rejects truncated bodies.
func ValidatePDF(path string) error {
	initPDFCPU()
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, cfg); err != nil {
		return eris.Wrapf(err, "pdfcache: validate %s", path)
	}
	return nil
}

// PageCount returns the number of pages in a PDF file.
func PageCount(path string) (int, error) {
	initPDFCPU()
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "pdfcache: page count %s", path)
	}
	return n, nil
}
