package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/scourt-cli/internal/board"
	"github.com/sells-group/scourt-cli/internal/extract"
	"github.com/sells-group/scourt-cli/internal/fetcher"
	"github.com/sells-group/scourt-cli/internal/model"
	"github.com/sells-group/scourt-cli/internal/pdfcache"
	"github.com/sells-group/scourt-cli/internal/report"
)

const judgmentText = "대 법 원\n" +
	extract.MarkerOriginalJudgment + " 서울고등법원 2023. 6. 15. 선고 2022나2034567 판결\n" +
	extract.MarkerSentencing + " 2024. 5. 30.\n" +
	extract.MarkerOrder + "\n상고를 기각한다.\n- 1 -\n" +
	extract.MarkerReason + "\n상고이유를 판단한다."

func newTestPipeline(b Board, c Cache, x *mockExtractor, opts Options) *Pipeline {
	p := New(b, c, x, extract.Judgment(), opts)
	p.report = func(string, model.OutputTable) error { return nil }
	return p
}

func TestEnrich_NoDetailLink(t *testing.T) {
	b := &mockBoard{}
	p := newTestPipeline(b, &mockCache{}, &mockExtractor{}, Options{})

	c, err := p.Enrich(context.Background(), model.CaseRow{IncidentNumber: "2024도678"})
	require.NoError(t, err)
	assert.Equal(t, model.RowStatusNoDetail, c.Status)
	assert.Empty(t, c.PDFURL)
	assert.Empty(t, c.PreviousDecisionDate)
	assert.Empty(t, c.DecisionText)
	b.AssertNotCalled(t, "ResolvePDF", mock.Anything, mock.Anything)
}

func TestEnrich_NoPDF(t *testing.T) {
	b := &mockBoard{}
	b.On("ResolvePDF", mock.Anything, "https://x/detail").Return("", nil)
	cache := &mockCache{}
	p := newTestPipeline(b, cache, &mockExtractor{}, Options{})

	c, err := p.Enrich(context.Background(), model.CaseRow{IncidentNumber: "1", DetailURL: "https://x/detail"})
	require.NoError(t, err)
	assert.Equal(t, model.RowStatusNoPDF, c.Status)
	cache.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnrich_OK(t *testing.T) {
	b := &mockBoard{}
	b.On("ResolvePDF", mock.Anything, "https://x/detail").Return("https://x/a.pdf", nil)
	cache := &mockCache{}
	cache.On("Acquire", mock.Anything, "https://x/a.pdf", "2023다12345").Return(model.CacheStatusDownloaded, nil)
	x := &mockExtractor{}
	x.On("ExtractText", mock.Anything, "/cache/2023다12345.pdf").Return(judgmentText, nil)

	p := newTestPipeline(b, cache, x, Options{})
	c, err := p.Enrich(context.Background(), model.CaseRow{IncidentNumber: "2023다12345", DetailURL: "https://x/detail"})
	require.NoError(t, err)

	assert.Equal(t, model.RowStatusOK, c.Status)
	assert.Equal(t, "https://x/a.pdf", c.PDFURL)
	assert.Equal(t, "서울고등법원 2023. 6. 15. 선고 2022나2034567 판결", c.PreviousDecisionDate)
	assert.Equal(t, "상고를 기각한다.", c.DecisionText)
	assert.Empty(t, c.Err)
	b.AssertExpectations(t)
	cache.AssertExpectations(t)
	x.AssertExpectations(t)
}

func TestEnrich_MarkersAbsent(t *testing.T) {
	b := &mockBoard{}
	b.On("ResolvePDF", mock.Anything, mock.Anything).Return("https://x/a.pdf", nil)
	cache := &mockCache{}
	cache.On("Acquire", mock.Anything, mock.Anything, mock.Anything).Return(model.CacheStatusCached, nil)
	x := &mockExtractor{}
	x.On("ExtractText", mock.Anything, mock.Anything).Return("scanned image, no text layer", nil)

	p := newTestPipeline(b, cache, x, Options{})
	c, err := p.Enrich(context.Background(), model.CaseRow{IncidentNumber: "1", DetailURL: "https://x/d"})
	require.NoError(t, err)
	assert.Equal(t, model.RowStatusOK, c.Status)
	assert.Empty(t, c.PreviousDecisionDate)
	assert.Empty(t, c.DecisionText)
}

func TestEnrich_DetailFetchFails(t *testing.T) {
	b := &mockBoard{}
	b.On("ResolvePDF", mock.Anything, mock.Anything).Return("", model.FetchError("detail page", errors.New("boom")))
	p := newTestPipeline(b, &mockCache{}, &mockExtractor{}, Options{})

	c, err := p.Enrich(context.Background(), model.CaseRow{IncidentNumber: "1", DetailURL: "https://x/d"})
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindFetch))
	assert.Equal(t, model.RowStatusFailed, c.Status)
	assert.Contains(t, c.Err, "boom")
}

func TestEnrich_DownloadFails(t *testing.T) {
	b := &mockBoard{}
	b.On("ResolvePDF", mock.Anything, mock.Anything).Return("https://x/a.pdf", nil)
	cache := &mockCache{}
	cache.On("Acquire", mock.Anything, mock.Anything, mock.Anything).
		Return(model.CacheStatus(""), model.FetchError("download pdf", errors.New("reset")))
	p := newTestPipeline(b, cache, &mockExtractor{}, Options{})

	c, err := p.Enrich(context.Background(), model.CaseRow{IncidentNumber: "1", DetailURL: "https://x/d"})
	require.Error(t, err)
	assert.Equal(t, model.RowStatusPartial, c.Status)
	assert.Equal(t, "https://x/a.pdf", c.PDFURL)
}

func TestEnrich_ExtractionFailsKeepsPDFLink(t *testing.T) {
	b := &mockBoard{}
	b.On("ResolvePDF", mock.Anything, mock.Anything).Return("https://x/a.pdf", nil)
	cache := &mockCache{}
	cache.On("Acquire", mock.Anything, mock.Anything, mock.Anything).Return(model.CacheStatusCached, nil)
	x := &mockExtractor{}
	x.On("ExtractText", mock.Anything, mock.Anything).Return("", errors.New("malformed xref"))
	p := newTestPipeline(b, cache, x, Options{})

	c, err := p.Enrich(context.Background(), model.CaseRow{IncidentNumber: "1", DetailURL: "https://x/d"})
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindExtraction))
	assert.Equal(t, model.RowStatusPartial, c.Status)
	assert.Equal(t, "https://x/a.pdf", c.PDFURL)
	assert.Empty(t, c.PreviousDecisionDate)
	assert.Empty(t, c.DecisionText)
}

func TestRun_PagesInclusiveAndOrdered(t *testing.T) {
	b := &mockBoard{}
	for page := 2; page <= 4; page++ {
		b.On("Listing", mock.Anything, page).Return([]model.CaseRow{
			{IncidentNumber: fmt.Sprintf("p%d-a", page)},
			{IncidentNumber: fmt.Sprintf("p%d-b", page)},
		}, nil).Once()
	}

	var written model.OutputTable
	p := New(b, &mockCache{}, &mockExtractor{}, extract.Judgment(), Options{StartPage: 2, EndPage: 4, OutputPath: "out.xlsx"})
	p.report = func(path string, table model.OutputTable) error {
		assert.Equal(t, "out.xlsx", path)
		written = table
		return nil
	}

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Table, 6)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "out.xlsx", res.Output)
	assert.Equal(t, 6, res.Counts[model.RowStatusNoDetail])
	assert.Equal(t, res.Table, written)

	var got []string
	for _, c := range res.Table {
		got = append(got, c.IncidentNumber)
	}
	assert.Equal(t, []string{"p2-a", "p2-b", "p3-a", "p3-b", "p4-a", "p4-b"}, got)
	assert.Equal(t, 3, res.Table[2].Page)
	assert.Equal(t, 0, res.Table[2].Index)
	b.AssertExpectations(t)
}

func TestRun_ListingErrorAborts(t *testing.T) {
	b := &mockBoard{}
	b.On("Listing", mock.Anything, 1).Return(nil, model.ParseError("listing", errors.New("results table body not found")))

	reported := false
	p := New(b, &mockCache{}, &mockExtractor{}, extract.Judgment(), Options{StartPage: 1, EndPage: 3, OutputPath: "x"})
	p.report = func(string, model.OutputTable) error { reported = true; return nil }

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindParse))
	assert.False(t, reported)
	b.AssertNumberOfCalls(t, "Listing", 1)
}

func TestRun_LenientRecordsRowFailures(t *testing.T) {
	b := &mockBoard{}
	b.On("Listing", mock.Anything, 1).Return([]model.CaseRow{
		{IncidentNumber: "bad", DetailURL: "https://x/bad"},
		{IncidentNumber: "good", DetailURL: "https://x/good"},
	}, nil)
	b.On("ResolvePDF", mock.Anything, "https://x/bad").Return("", model.FetchError("detail page", errors.New("503")))
	b.On("ResolvePDF", mock.Anything, "https://x/good").Return("https://x/good.pdf", nil)
	cache := &mockCache{}
	cache.On("Acquire", mock.Anything, "https://x/good.pdf", "good").Return(model.CacheStatusDownloaded, nil)
	x := &mockExtractor{}
	x.On("ExtractText", mock.Anything, "/cache/good.pdf").Return(judgmentText, nil)

	p := newTestPipeline(b, cache, x, Options{StartPage: 1, EndPage: 1})
	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Table, 2)
	assert.Equal(t, model.RowStatusFailed, res.Table[0].Status)
	assert.Contains(t, res.Table[0].Err, "503")
	assert.Equal(t, model.RowStatusOK, res.Table[1].Status)
	assert.Equal(t, 1, res.Counts[model.RowStatusFailed])
	assert.Equal(t, 1, res.Counts[model.RowStatusOK])
}

func TestRun_StrictAbortsOnRowError(t *testing.T) {
	b := &mockBoard{}
	b.On("Listing", mock.Anything, 1).Return([]model.CaseRow{
		{IncidentNumber: "bad", DetailURL: "https://x/bad"},
	}, nil)
	b.On("ResolvePDF", mock.Anything, "https://x/bad").Return("", model.FetchError("detail page", errors.New("503")))

	reported := false
	p := New(b, &mockCache{}, &mockExtractor{}, extract.Judgment(), Options{StartPage: 1, EndPage: 2, Strict: true, OutputPath: "x"})
	p.report = func(string, model.OutputTable) error { reported = true; return nil }

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindFetch))
	assert.Contains(t, err.Error(), "bad")
	assert.False(t, reported)
	b.AssertNotCalled(t, "Listing", mock.Anything, 2)
}

func TestRun_InvalidRange(t *testing.T) {
	p := newTestPipeline(&mockBoard{}, &mockCache{}, &mockExtractor{}, Options{StartPage: 3, EndPage: 2})
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindConfig))
}

func TestRun_ReportErrorReturned(t *testing.T) {
	b := &mockBoard{}
	b.On("Listing", mock.Anything, 1).Return([]model.CaseRow{{IncidentNumber: "1"}}, nil)

	p := New(b, &mockCache{}, &mockExtractor{}, extract.Judgment(), Options{StartPage: 1, EndPage: 1, OutputPath: "x"})
	p.report = func(string, model.OutputTable) error {
		return model.FilesystemError("write workbook", errors.New("disk full"))
	}

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindFilesystem))
}

// slowBoard resolves PDFs with a delay that shrinks with the row number, so
// later rows finish first.
type slowBoard struct {
	rows     []model.CaseRow
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
}

func (s *slowBoard) Listing(context.Context, int) ([]model.CaseRow, error) {
	return s.rows, nil
}

func (s *slowBoard) ResolvePDF(_ context.Context, detailURL string) (string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	s.mu.Lock()
	if n > s.maxSeen.Load() {
		s.maxSeen.Store(n)
	}
	s.mu.Unlock()

	var idx int
	_, _ = fmt.Sscanf(filepath.Base(detailURL), "%d", &idx)
	time.Sleep(time.Duration(len(s.rows)-idx) * 5 * time.Millisecond)
	return "", nil
}

func TestRun_WorkersKeepOrder(t *testing.T) {
	sb := &slowBoard{}
	for i := 0; i < 8; i++ {
		sb.rows = append(sb.rows, model.CaseRow{IncidentNumber: fmt.Sprintf("%d", i), DetailURL: fmt.Sprintf("https://x/%d", i)})
	}

	p := New(sb, &mockCache{}, &mockExtractor{}, extract.Judgment(), Options{StartPage: 1, EndPage: 1, Workers: 3})
	p.report = func(string, model.OutputTable) error { return nil }

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Table, 8)
	for i, c := range res.Table {
		assert.Equal(t, fmt.Sprintf("%d", i), c.IncidentNumber)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, model.RowStatusNoPDF, c.Status)
	}
	assert.LessOrEqual(t, sb.maxSeen.Load(), int32(3))
}

func TestRun_CancelledContext(t *testing.T) {
	b := &mockBoard{}
	b.On("Listing", mock.Anything, 1).Return([]model.CaseRow{{IncidentNumber: "1", DetailURL: "https://x/1"}}, nil)
	b.On("ResolvePDF", mock.Anything, mock.Anything).Return("", context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(b, &mockCache{}, &mockExtractor{}, Options{StartPage: 1, EndPage: 1})
	_, err := p.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// End to end: one listing page with two rows against a fake court site. The
// first row links to a detail page with a PDF; the second has no link.
func TestRun_EndToEnd(t *testing.T) {
	var pdfHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("pageIndex"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><table><tbody>
<tr><td>1</td><td>2024. 5. 30.</td><td>대법원</td><td>2023다12345</td><td><a href="/detail?id=1">보기</a></td></tr>
<tr><td>2</td><td>2024. 5. 16.</td><td>대법원</td><td>2024도678</td><td></td></tr>
</tbody></table></body></html>`)
	})
	mux.HandleFunc("/detail", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><a href="/files/judgment.hwp">hwp</a><a href="/files/judgment.pdf">pdf</a></body></html>`)
	})
	mux.HandleFunc("/files/judgment.pdf", func(w http.ResponseWriter, _ *http.Request) {
		pdfHits.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, judgmentText)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{UserAgent: "test-agent", Timeout: 5 * time.Second, RatePerSec: 100})
	bd := board.New(f, board.Options{ListingURL: srv.URL + "/list"})
	dir := t.TempDir()
	cache := pdfcache.New(filepath.Join(dir, "pdf_files"), f, pdfcache.Options{})
	out := filepath.Join(dir, "parsed_data.xlsx")

	p := New(bd, cache, fileText{}, extract.Judgment(), Options{StartPage: 1, EndPage: 1, OutputPath: out})

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Table, 2)
	assert.Equal(t, int32(1), pdfHits.Load())

	table, err := report.Read(out)
	require.NoError(t, err)
	require.Len(t, table, 2)

	first := table[0]
	assert.Equal(t, "2024. 5. 30.", first.FinalDecisionDate)
	assert.Equal(t, "2023다12345", first.IncidentNumber)
	assert.Equal(t, srv.URL+"/files/judgment.pdf", first.PDFURL)
	assert.Equal(t, "서울고등법원 2023. 6. 15. 선고 2022나2034567 판결", first.PreviousDecisionDate)
	assert.Equal(t, "상고를 기각한다.", first.DecisionText)
	assert.Equal(t, model.RowStatusOK, first.Status)

	second := table[1]
	assert.Equal(t, "2024도678", second.IncidentNumber)
	assert.Empty(t, second.PDFURL)
	assert.Empty(t, second.PreviousDecisionDate)
	assert.Empty(t, second.DecisionText)
	assert.Equal(t, model.RowStatusNoDetail, second.Status)

	rows, err := fetcher.ReadXLSX(out, fetcher.XLSXOptions{SheetName: report.DataSheet, SkipRows: 1, Formulas: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, `=`+report.Hyperlink(srv.URL+"/files/judgment.pdf"), rows[0][2])
	if len(rows[1]) > 2 {
		assert.Equal(t, "", rows[1][2])
	}

	// A second run is served from the cache.
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), pdfHits.Load())
}
