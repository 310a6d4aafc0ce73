package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/scourt-cli/internal/extract"
	"github.com/sells-group/scourt-cli/internal/model"
	"github.com/sells-group/scourt-cli/internal/ocr"
	"github.com/sells-group/scourt-cli/internal/report"
)

// Board lists case rows and resolves their judgment PDFs.
type Board interface {
	Listing(ctx context.Context, page int) ([]model.CaseRow, error)
	ResolvePDF(ctx context.Context, detailURL string) (string, error)
}

// Cache makes judgment PDFs available on local disk.
type Cache interface {
	Acquire(ctx context.Context, pdfURL, incident string) (model.CacheStatus, error)
	Path(incident string) string
}

// Options controls a scrape run.
type Options struct {
	StartPage int
	EndPage   int
	// Strict aborts the run on the first row error. Otherwise row errors are
	// recorded on the row and the run continues.
	Strict bool
	// Workers bounds concurrent row enrichment within a page.
	Workers int
	// OutputPath is where the report is written. Empty skips the report.
	OutputPath string
}

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Table    model.OutputTable
	Counts   map[model.RowStatus]int
	Output   string
	Duration time.Duration
}

// Pipeline scrapes listing pages, enriches each case from its judgment PDF
// and writes the report.
type Pipeline struct {
	board  Board
	cache  Cache
	text   ocr.Extractor
	rules  extract.Ruleset
	opts   Options
	report func(path string, table model.OutputTable) error
}

// New creates a Pipeline.
func New(b Board, c Cache, text ocr.Extractor, rules extract.Ruleset, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{
		board:  b,
		cache:  c,
		text:   text,
		rules:  rules,
		opts:   opts,
		report: report.Write,
	}
}

// Run scrapes pages StartPage through EndPage inclusive. Listing failures
// always abort the run since no rows exist to record them on.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if p.opts.StartPage < 1 || p.opts.EndPage < p.opts.StartPage {
		return nil, model.NewError(model.KindConfig, "run", eris.Errorf("pipeline: invalid page range %d..%d", p.opts.StartPage, p.opts.EndPage))
	}

	start := time.Now()
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline: starting run",
		zap.Int("start_page", p.opts.StartPage),
		zap.Int("end_page", p.opts.EndPage),
		zap.Bool("strict", p.opts.Strict),
		zap.Int("workers", p.opts.Workers),
	)

	var table model.OutputTable
	for page := p.opts.StartPage; page <= p.opts.EndPage; page++ {
		rows, err := p.board.Listing(ctx, page)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: listing page %d", page)
		}
		log.Info("pipeline: listing fetched", zap.Int("page", page), zap.Int("rows", len(rows)))
		if len(rows) == 0 {
			log.Warn("pipeline: page has no rows", zap.Int("page", page))
			continue
		}

		cases, err := p.enrichPage(ctx, log, page, rows)
		if err != nil {
			return nil, err
		}
		table = append(table, cases...)
	}
	model.SortTable(table)

	result := &Result{
		RunID:  runID,
		Table:  table,
		Counts: table.Counts(),
	}

	if p.opts.OutputPath != "" {
		if err := p.report(p.opts.OutputPath, table); err != nil {
			return nil, eris.Wrap(err, "pipeline: write report")
		}
		result.Output = p.opts.OutputPath
	}

	result.Duration = time.Since(start)
	log.Info("pipeline: run complete",
		zap.Int("rows", len(table)),
		zap.Int("ok", result.Counts[model.RowStatusOK]),
		zap.Int("no_detail", result.Counts[model.RowStatusNoDetail]),
		zap.Int("no_pdf", result.Counts[model.RowStatusNoPDF]),
		zap.Int("partial", result.Counts[model.RowStatusPartial]),
		zap.Int("failed", result.Counts[model.RowStatusFailed]),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// enrichPage enriches the rows of one listing page with at most Workers in
// flight. Results keep listing order.
func (p *Pipeline) enrichPage(ctx context.Context, log *zap.Logger, page int, rows []model.CaseRow) ([]model.EnrichedCase, error) {
	cases := make([]model.EnrichedCase, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for i, row := range rows {
		g.Go(func() error {
			rlog := log.With(zap.Int("page", page), zap.String("incident", row.IncidentNumber))

			c, err := p.Enrich(gctx, row)
			c.Page = page
			c.Index = i
			cases[i] = c

			if err != nil {
				if p.opts.Strict || gctx.Err() != nil {
					return eris.Wrapf(err, "pipeline: page %d row %d (%s)", page, i, row.IncidentNumber)
				}
				rlog.Warn("pipeline: row failed",
					zap.String("status", string(c.Status)),
					zap.String("kind", string(model.KindOf(err))),
					zap.Error(err),
				)
				return nil
			}
			rlog.Debug("pipeline: row enriched", zap.String("status", string(c.Status)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: run cancelled")
	}
	return cases, nil
}

// Enrich follows a listing row to its judgment PDF and extracts the derived
// fields. The returned case carries the row status even when err is non-nil.
func (p *Pipeline) Enrich(ctx context.Context, row model.CaseRow) (model.EnrichedCase, error) {
	c := model.EnrichedCase{CaseRow: row}

	if !row.HasDetail() {
		c.Status = model.RowStatusNoDetail
		return c, nil
	}

	pdfURL, err := p.board.ResolvePDF(ctx, row.DetailURL)
	if err != nil {
		return fail(c, model.RowStatusFailed, err)
	}
	if pdfURL == "" {
		c.Status = model.RowStatusNoPDF
		return c, nil
	}
	c.PDFURL = pdfURL

	if _, err := p.cache.Acquire(ctx, pdfURL, row.IncidentNumber); err != nil {
		return fail(c, model.RowStatusPartial, err)
	}

	text, err := p.text.ExtractText(ctx, p.cache.Path(row.IncidentNumber))
	if err != nil {
		if model.KindOf(err) == "" {
			err = model.ExtractionError("extract text", err)
		}
		return fail(c, model.RowStatusPartial, err)
	}

	fields := p.rules.Apply(text)
	c.PreviousDecisionDate = fields[extract.FieldPreviousDecisionDate]
	c.DecisionText = fields[extract.FieldDecision]
	c.Status = model.RowStatusOK
	return c, nil
}

func fail(c model.EnrichedCase, status model.RowStatus, err error) (model.EnrichedCase, error) {
	c.Status = status
	c.Err = err.Error()
	return c, err
}
