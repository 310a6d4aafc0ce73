package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sells-group/scourt-cli/internal/pdfcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "List cached judgment PDFs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("cache-dir") {
			cfg.Cache.Dir, _ = cmd.Flags().GetString("cache-dir")
		}
		validate, _ := cmd.Flags().GetBool("validate")

		entries, err := pdfcache.New(cfg.Cache.Dir, nil, pdfcache.Options{}).List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintf(os.Stderr, "No PDFs cached in '%s'.\n", cfg.Cache.Dir)
			return nil
		}

		formatCacheList(os.Stdout, entries, validate)
		return nil
	},
}

func init() {
	cacheCmd.Flags().String("cache-dir", "", "PDF cache directory (overrides cache.dir)")
	cacheCmd.Flags().Bool("validate", false, "check each PDF's structure")
	rootCmd.AddCommand(cacheCmd)
}

func formatCacheList(w io.Writer, entries []pdfcache.Entry, validate bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "INCIDENT\tSIZE\tPAGES\tMODIFIED"
	if validate {
		header += "\tVALID"
	}
	fmt.Fprintln(tw, header)

	var total int64
	for _, e := range entries {
		total += e.Size
		pages := "-"
		if n, err := pdfcache.PageCount(e.Path); err == nil {
			pages = fmt.Sprintf("%d", n)
		}
		line := fmt.Sprintf("%s\t%s\t%s\t%s", e.Incident, humanize.IBytes(uint64(e.Size)), pages, e.ModTime.Format("2006-01-02 15:04"))
		if validate {
			valid := "yes"
			if err := pdfcache.ValidatePDF(e.Path); err != nil {
				valid = "no"
			}
			line += "\t" + valid
		}
		fmt.Fprintln(tw, line)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d file(s), %s\n", len(entries), humanize.IBytes(uint64(total)))
}
