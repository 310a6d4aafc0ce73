package ocr

import (
	"bytes"
	"cmp"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/scourt-cli/internal/fetcher"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
	mistralTimeout      = 2 * time.Minute
	errorSnippetLimit   = 512
)

// MistralOCR reads scanned judgments that carry no text layer through the
// Mistral OCR API. Pages come back as markdown; section headers keep their
// spacing, so the extraction markers still match.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewMistralOCR creates a MistralOCR extractor. An empty model selects
// mistral-ocr-latest.
func NewMistralOCR(apiKey, model string) *MistralOCR {
	return &MistralOCR{
		apiKey:   apiKey,
		model:    cmp.Or(model, defaultMistralModel),
		endpoint: mistralOCREndpoint,
		client:   &http.Client{Timeout: mistralTimeout},
	}
}

type ocrRequest struct {
	Model              string      `json:"model"`
	Document           ocrDocument `json:"document"`
	IncludeImageBase64 bool        `json:"include_image_base64"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ExtractText uploads the judgment inline as a data URL and joins the
// returned pages by index.
func (m *MistralOCR) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: read PDF %s", pdfPath)
	}

	var body bytes.Buffer
	err = json.NewEncoder(&body).Encode(ocrRequest{
		Model: m.model,
		Document: ocrDocument{
			Type:        "document_url",
			DocumentURL: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "ocr: encode mistral request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, &body)
	if err != nil {
		return "", eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "ocr: mistral API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippetLimit))
		status := &fetcher.StatusError{URL: m.endpoint, StatusCode: resp.StatusCode, Header: resp.Header}
		return "", eris.Wrapf(status, "ocr: mistral API returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out struct {
		Pages []ocrPage `json:"pages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", eris.Wrap(err, "ocr: decode mistral response")
	}

	slices.SortStableFunc(out.Pages, func(a, b ocrPage) int { return cmp.Compare(a.Index, b.Index) })
	pages := make([]string, len(out.Pages))
	for i, p := range out.Pages {
		pages[i] = p.Markdown
	}
	return joinPages(pages), nil
}
