package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v2"
	"github.com/spf13/cobra"

	"github.com/ppiankov/kgex/internal/model"
	"github.com/ppiankov/kgex/internal/pipeline"
	"github.com/ppiankov/kgex/internal/worker"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Scan multiple patents from a file in parallel",
	Long: `Batch scans many patents concurrently:
- Read patent ids from the input file (one per line, # comments allowed)
- Fetch pages in parallel, rate limited per host
- Extract sentences one at a time through the shared taggers
- Write a JSON and Markdown report per patent

Example:
  kgex batch patents.txt
  kgex batch patents.txt --workers 8 --output-dir ./reports --save`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	d := model.DefaultConfig()
	batchCmd.Flags().Int("workers", d.Concurrency.Workers, "number of concurrent patent scans")
	batchCmd.Flags().Float64("rps", d.RateLimiting.RequestsPerSecond, "requests per second per host (0 = unlimited)")
	batchCmd.Flags().String("output-dir", "./kgex-reports", "output directory for reports")
	batchCmd.Flags().Duration("batch-timeout", 0, "total timeout for the batch (0 = none)")
	batchCmd.Flags().Bool("no-footer", false, "disable footer in Markdown reports")
	batchCmd.Flags().Bool("no-progress", false, "hide the progress bar")
	addHTTPFlags(batchCmd)
	addTaggerFlags(batchCmd)
	addStoreFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx := cmd.Context()
	if timeout, _ := cmd.Flags().GetDuration("batch-timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger()
	outputDir, _ := cmd.Flags().GetString("output-dir")

	ids, err := worker.ReadIDsFromFile(file)
	if err != nil {
		return fmt.Errorf("read patent ids: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  kgex Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d patents)\n", file, len(ids))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Rate limit:   %.2f req/s per host\n", cfg.RateLimiting.RequestsPerSecond)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	limiter := worker.NewLimiterFromConfig(cfg.RateLimiting)
	p, err := newPipeline(ctx, cfg, logger, pipeline.WithLimiter(limiter))
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers, logger)
	if hide, _ := cmd.Flags().GetBool("no-progress"); !hide && len(ids) > 0 && isTerminal(os.Stderr) {
		bar := progressbar.NewOptions(len(ids),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("scanning"),
			progressbar.OptionShowCount(),
		)
		processor.SetProgress(func(done, _ int) { _ = bar.Set(done) })
	}

	results := processor.ProcessIDs(ctx, ids)
	fmt.Fprintf(os.Stderr, "\n\n")

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer func() { _ = st.Close() }()
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	successCount, failureCount, factCount := 0, 0, 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.PatentID, result.Error)
			continue
		}

		report := result.Report
		slug := sanitizeFilename("US" + report.PatentID)
		if err := renderer.RenderJSON(report, filepath.Join(outputDir, slug+".json")); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.PatentID, err)
			continue
		}
		if err := renderer.RenderMarkdown(report, filepath.Join(outputDir, slug+".md")); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.PatentID, err)
			continue
		}
		if st != nil {
			if _, err := st.SaveRun(ctx, report.PatentID, report.Records); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: failed to save: %v\n", result.PatentID, err)
			}
		}

		successCount++
		factCount += report.Summary.Facts
		fmt.Fprintf(os.Stderr, "✓ US%s (%d sentences, %d facts, %s)\n",
			report.PatentID, report.Summary.Sentences, report.Summary.Facts, result.Duration.Round(time.Millisecond))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d patents\n", len(ids))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Facts:     %d\n", factCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if ctx.Err() != nil {
		return fmt.Errorf("batch interrupted after %d of %d patents: %w", len(results), len(ids), ctx.Err())
	}
	return nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	s = filenameReplacer.Replace(strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		s = "report"
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
