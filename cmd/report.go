package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/scourt-cli/internal/model"
	"github.com/sells-group/scourt-cli/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report <file.xlsx>",
	Short: "Print the rows of a written report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := report.Read(args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(table)
		}

		if len(table) == 0 {
			fmt.Fprintln(os.Stderr, "Report has no rows.")
			return nil
		}
		formatReport(os.Stdout, table)
		return nil
	},
}

func init() {
	reportCmd.Flags().Bool("json", false, "print rows as JSON")
	rootCmd.AddCommand(reportCmd)
}

func formatReport(w io.Writer, table model.OutputTable) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tINCIDENT\tSTATUS\tPDF\tPREVIOUS DECISION\tDECISION")
	for _, c := range table {
		pdf := "-"
		if c.HasPDF() {
			pdf = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.FinalDecisionDate,
			c.IncidentNumber,
			orDash(string(c.Status)),
			pdf,
			truncate(c.PreviousDecisionDate, 40),
			truncate(c.DecisionText, 40),
		)
	}
	_ = tw.Flush()

	counts := table.Counts()
	fmt.Fprintf(w, "\n%d row(s): %d ok, %d no_detail, %d no_pdf, %d partial, %d failed\n",
		len(table),
		counts[model.RowStatusOK],
		counts[model.RowStatusNoDetail],
		counts[model.RowStatusNoPDF],
		counts[model.RowStatusPartial],
		counts[model.RowStatusFailed],
	)
}

// truncate shortens s to at most n runes and flattens newlines.
func truncate(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) <= n {
		return orDash(string(r))
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
