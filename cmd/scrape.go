package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/scourt-cli/internal/board"
	"github.com/sells-group/scourt-cli/internal/config"
	"github.com/sells-group/scourt-cli/internal/extract"
	"github.com/sells-group/scourt-cli/internal/fetcher"
	"github.com/sells-group/scourt-cli/internal/model"
	"github.com/sells-group/scourt-cli/internal/ocr"
	"github.com/sells-group/scourt-cli/internal/pdfcache"
	"github.com/sells-group/scourt-cli/internal/pipeline"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape listing pages, download judgment PDFs, and write the report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyScrapeFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return model.NewError(model.KindConfig, "validate config", err)
		}

		f := newFetcher(cfg.HTTP)
		cache := newCache(cfg.Cache, f)
		if err := cache.Ensure(); err != nil {
			return err
		}

		text, err := ocr.NewExtractor(cfg.OCR)
		if err != nil {
			return model.NewError(model.KindConfig, "ocr provider", err)
		}
		rules, err := loadRules(cfg.Extract)
		if err != nil {
			return err
		}

		p := pipeline.New(newBoard(cfg.Court, f), cache, text, rules, pipeline.Options{
			StartPage:  cfg.Run.StartPage,
			EndPage:    cfg.Run.EndPage,
			Strict:     cfg.Run.Strict,
			Workers:    cfg.Run.Workers,
			OutputPath: cfg.Output.Path,
		})

		res, err := p.Run(ctx)
		if err != nil {
			zap.L().Error("scrape failed", zap.String("kind", string(model.KindOf(err))), zap.Error(err))
			return err
		}

		fmt.Fprintf(os.Stdout, "Data successfully saved to '%s' and PDFs downloaded to '%s'\n", res.Output, cache.Dir())
		return nil
	},
}

func init() {
	f := scrapeCmd.Flags()
	f.Int("start-page", 0, "first listing page to scrape (overrides run.start_page)")
	f.Int("end-page", 0, "last listing page to scrape, inclusive (overrides run.end_page)")
	f.Bool("strict", false, "abort the run on the first row error")
	f.Int("workers", 0, "concurrent row workers per page (overrides run.workers)")
	f.String("output", "", "report path (overrides output.path)")
	f.String("cache-dir", "", "PDF cache directory (overrides cache.dir)")
	rootCmd.AddCommand(scrapeCmd)
}

// applyScrapeFlags copies explicitly set flags over config values.
func applyScrapeFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("start-page") {
		c.Run.StartPage, _ = flags.GetInt("start-page")
	}
	if flags.Changed("end-page") {
		c.Run.EndPage, _ = flags.GetInt("end-page")
	}
	if flags.Changed("strict") {
		c.Run.Strict, _ = flags.GetBool("strict")
	}
	if flags.Changed("workers") {
		c.Run.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("output") {
		c.Output.Path, _ = flags.GetString("output")
	}
	if flags.Changed("cache-dir") {
		c.Cache.Dir, _ = flags.GetString("cache-dir")
	}
}

func newFetcher(c config.HTTPConfig) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.UserAgent,
		Timeout:    time.Duration(c.TimeoutSecs) * time.Second,
		MaxRetries: c.MaxRetries,
		RatePerSec: c.RatePerSec,
	})
}

func newBoard(c config.CourtConfig, f fetcher.Fetcher) *board.Board {
	return board.New(f, board.Options{
		ListingURL:     c.ListingURL,
		PageParam:      c.PageParam,
		DateColumn:     c.DateColumn,
		IncidentColumn: c.IncidentColumn,
	})
}

func newCache(c config.CacheConfig, f fetcher.Fetcher) *pdfcache.Cache {
	opts := pdfcache.Options{Revalidate: c.Revalidate}
	if c.Validate {
		opts.Validate = pdfcache.ValidatePDF
	}
	if c.Progress {
		opts.Progress = pdfcache.BarProgress(os.Stderr)
	}
	return pdfcache.New(c.Dir, f, opts)
}

func loadRules(c config.ExtractConfig) (extract.Ruleset, error) {
	if c.RulesFile == "" {
		return extract.Judgment(), nil
	}
	rules, err := extract.LoadRuleset(c.RulesFile)
	if err != nil {
		return extract.Ruleset{}, model.NewError(model.KindConfig, "load ruleset", eris.Wrap(err, "scrape"))
	}
	return rules, nil
}
