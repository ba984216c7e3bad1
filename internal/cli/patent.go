package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kgex/internal/pipeline"
	"github.com/ppiankov/kgex/internal/worker"
)

// patentCmd represents the patent command
var patentCmd = &cobra.Command{
	Use:   "patent <id>",
	Short: "Scan a US patent and extract its design knowledge",
	Long: `Patent fetches a patent page, keeps the description sections on the allowlist
plus the claims and the abstract, and extracts a knowledge record for every
sentence within the token window.

Example:
  kgex patent US7654321B2
  kgex patent 7,654,321 --json report.json --md report.md
  kgex patent 10123456 --entity-backend onnx --relation-backend onnx --save`,
	Args: cobra.ExactArgs(1),
	RunE: runPatent,
}

func init() {
	rootCmd.AddCommand(patentCmd)

	patentCmd.Flags().String("json", "", "output JSON path ('-' for stdout)")
	patentCmd.Flags().String("md", "", "output Markdown path ('-' for stdout)")
	patentCmd.Flags().Bool("no-footer", false, "disable footer in Markdown reports")
	addHTTPFlags(patentCmd)
	addTaggerFlags(patentCmd)
	addStoreFlags(patentCmd)
}

func runPatent(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]

	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger()

	if verbose {
		fmt.Fprintf(os.Stderr, "Scanning: %s\n", id)
		fmt.Fprintf(os.Stderr, "Taggers: entity=%s relation=%s\n", cfg.Tagger.EntityBackend, cfg.Tagger.RelationBackend)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	p, err := newPipeline(ctx, cfg, logger, pipeline.WithLimiter(worker.NewLimiterFromConfig(cfg.RateLimiting)))
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	report, err := p.ScanPatent(ctx, id)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Kept %d sections\n", len(report.Sections))
		fmt.Fprintf(os.Stderr, "✓ Processed %d sentences\n", report.Summary.Sentences)
		fmt.Fprintf(os.Stderr, "✓ Accepted %d facts\n", report.Summary.Facts)
		fmt.Fprintln(os.Stderr)
	}

	if cfg.Store.Enabled {
		if err := saveRecords(cmd, cfg, report.PatentID, report.Records); err != nil {
			return err
		}
	}

	jsonPath, _ := cmd.Flags().GetString("json")
	mdPath, _ := cmd.Flags().GetString("md")

	p.Renderer().SetOutput(cmd.OutOrStdout())
	if err := p.RenderReport(report, jsonPath, mdPath, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return nil
}
