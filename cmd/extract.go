package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/scourt-cli/internal/extract"
	"github.com/sells-group/scourt-cli/internal/model"
	"github.com/sells-group/scourt-cli/internal/ocr"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf|url>",
	Short: "Extract the judgment fields from a single PDF",
	Long:  "Extracts the judgment fields from a local PDF, or from a PDF URL which is downloaded to a temporary file first.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		text, err := ocr.NewExtractor(cfg.OCR)
		if err != nil {
			return model.NewError(model.KindConfig, "ocr provider", err)
		}
		rules, err := loadRules(cfg.Extract)
		if err != nil {
			return err
		}

		path := args[0]
		if isURL(path) {
			tmp, err := downloadTemp(ctx, path)
			if err != nil {
				return err
			}
			defer os.Remove(tmp) //nolint:errcheck
			path = tmp
		}

		body, err := text.ExtractText(ctx, path)
		if err != nil {
			return model.ExtractionError("extract text", err)
		}

		if raw, _ := cmd.Flags().GetBool("text"); raw {
			_, err := io.WriteString(os.Stdout, body)
			return err
		}
		printFields(os.Stdout, rules, rules.Apply(body))
		return nil
	},
}

func init() {
	extractCmd.Flags().Bool("text", false, "print the extracted text instead of the fields")
	rootCmd.AddCommand(extractCmd)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// downloadTemp fetches a PDF into a temporary file and returns its path.
func downloadTemp(ctx context.Context, pdfURL string) (string, error) {
	tmp, err := os.CreateTemp("", "scourt-*.pdf")
	if err != nil {
		return "", model.FilesystemError("create temp file", err)
	}
	path := tmp.Name()
	_ = tmp.Close()

	n, err := newFetcher(cfg.HTTP).DownloadToFile(ctx, pdfURL, path)
	if err != nil {
		_ = os.Remove(path)
		return "", model.FetchError("download pdf", err)
	}
	zap.L().Debug("downloaded pdf for extraction", zap.String("url", pdfURL), zap.Int64("bytes", n))
	return path, nil
}

// printFields writes one "field: value" line per rule, in rule order.
func printFields(w io.Writer, rules extract.Ruleset, fields extract.Fields) {
	for _, r := range rules.Rules {
		fmt.Fprintf(w, "%s: %s\n", r.Field, fields[r.Field])
	}
}
