// Package board scrapes the court judgment notice board: the paginated
// listing table and the per-case announcement pages it links to.
package board

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/scourt-cli/internal/fetcher"
	"github.com/sells-group/scourt-cli/internal/model"
)

// pdfMarker is matched case-insensitively against anchor hrefs.
const pdfMarker = ".pdf"

// Options configures where listing cells live and how pages are addressed.
type Options struct {
	ListingURL     string
	PageParam      string // query parameter carrying the page index
	DateColumn     int    // td index of the final decision date
	IncidentColumn int    // td index of the incident number
}

// Board reads the notice board through a Fetcher.
type Board struct {
	fetcher fetcher.Fetcher
	opts    Options
}

// New creates a Board. Zero-valued options fall back to the Supreme Court layout.
func New(f fetcher.Fetcher, opts Options) *Board {
	if opts.PageParam == "" {
		opts.PageParam = "pageIndex"
	}
	if opts.DateColumn == 0 && opts.IncidentColumn == 0 {
		opts.DateColumn = 1
		opts.IncidentColumn = 3
	}
	return &Board{fetcher: f, opts: opts}
}

// PageURL returns the listing URL for a 1-based page index, keeping any
// query parameters already present on the base URL.
func (b *Board) PageURL(page int) (string, error) {
	u, err := url.Parse(b.opts.ListingURL)
	if err != nil {
		return "", eris.Wrap(err, "board: parse listing url")
	}
	q := u.Query()
	q.Set(b.opts.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Listing fetches one listing page and returns its rows in document order.
func (b *Board) Listing(ctx context.Context, page int) ([]model.CaseRow, error) {
	if page < 1 {
		return nil, model.NewError(model.KindConfig, "listing", eris.Errorf("board: page index %d must be >= 1", page))
	}

	pageURL, err := b.PageURL(page)
	if err != nil {
		return nil, model.NewError(model.KindConfig, "listing", err)
	}

	doc, err := b.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, model.FetchError("listing page "+strconv.Itoa(page), err)
	}

	rows, err := ParseListing(doc, b.opts)
	if err != nil {
		return nil, model.ParseError("listing page "+strconv.Itoa(page), err)
	}

	base, _ := url.Parse(pageURL)
	for i := range rows {
		rows[i].DetailURL = resolveHref(base, rows[i].DetailURL)
	}

	zap.L().Debug("listing page parsed",
		zap.Int("page", page),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

// ParseListing extracts case rows from the first tbody of a listing document.
// Rows without td cells are skipped; rows too short to hold the configured
// columns are a parse error.
func ParseListing(doc *goquery.Document, opts Options) ([]model.CaseRow, error) {
	tbody := doc.Find("tbody").First()
	if tbody.Length() == 0 {
		return nil, eris.New("board: results table body not found")
	}

	need := max(opts.DateColumn, opts.IncidentColumn) + 1

	rows := make([]model.CaseRow, 0)
	var parseErr error
	tbody.Find("tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return true
		}
		if cells.Length() < need {
			parseErr = eris.Errorf("board: malformed row %d: %d cells, need %d", i, cells.Length(), need)
			return false
		}

		row := model.CaseRow{
			FinalDecisionDate: strings.TrimSpace(cells.Eq(opts.DateColumn).Text()),
			IncidentNumber:    strings.TrimSpace(cells.Eq(opts.IncidentColumn).Text()),
		}
		if href, ok := cells.Last().Find("a").First().Attr("href"); ok {
			row.DetailURL = strings.TrimSpace(href)
		}
		rows = append(rows, row)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return rows, nil
}

// ResolvePDF fetches a detail page and returns the first PDF attachment link,
// or "" when the page has none.
func (b *Board) ResolvePDF(ctx context.Context, detailURL string) (string, error) {
	doc, err := b.fetchDocument(ctx, detailURL)
	if err != nil {
		return "", model.FetchError("detail page", err)
	}

	href := FirstPDFLink(doc)
	if href == "" {
		return "", nil
	}

	base, _ := url.Parse(detailURL)
	return resolveHref(base, href), nil
}

// FirstPDFLink returns the href of the first anchor, in document order, whose
// target contains ".pdf" in any letter case.
func FirstPDFLink(doc *goquery.Document) string {
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(strings.ToLower(href), pdfMarker) {
			found = strings.TrimSpace(href)
			return false
		}
		return true
	})
	return found
}

func (b *Board) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := b.fetcher.Get(ctx, pageURL)
	if err != nil {
		var se *fetcher.StatusError
		if errors.As(err, &se) {
			refused := &http.Response{StatusCode: se.StatusCode, Header: se.Header}
			if blocked, kind := DetectBlock(refused, nil); blocked {
				return nil, eris.Wrapf(err, "board: %s served a %s page instead of content", pageURL, kind)
			}
		}
		return nil, eris.Wrapf(err, "board: fetch %s", pageURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "board: read %s", pageURL)
	}
	if blocked, kind := DetectBlock(resp, data); blocked {
		return nil, eris.Errorf("board: %s served a %s page instead of content", pageURL, kind)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "board: parse document")
	}
	return doc, nil
}

// decodeBody converts the response body to UTF-8 using the charset declared in
// Content-Type. Pages without a charset are read as-is.
func decodeBody(resp *http.Response) (io.Reader, error) {
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return resp.Body, nil
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return resp.Body, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "board: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(resp.Body), nil
}

// resolveHref makes href absolute against base. javascript: links and
// fragments carry no target and resolve to "".
func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
