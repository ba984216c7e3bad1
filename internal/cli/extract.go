package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v2"
	"github.com/spf13/cobra"

	"github.com/ppiankov/kgex/internal/extract"
	"github.com/ppiankov/kgex/internal/model"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [sentence...]",
	Short: "Extract entities and facts from sentences or a text file",
	Long: `Extract produces one knowledge record per sentence: the entities found in it
and the (head, relation, tail) facts that pass the acceptance filter.

Every sentence is normalized before tagging, so the stored sentence may differ
from the input. Each argument yields one record. Text read with --file is split
into sentences first, unless --lines is set.

Example:
  kgex extract "The motor drives the shaft via a coupling."
  kgex extract --file description.txt --json records.json --progress
  cat claims.txt | kgex extract --file - --lines --save`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("file", "f", "", "read text from file ('-' for stdin)")
	extractCmd.Flags().Bool("lines", false, "treat every non-empty line of --file as one sentence")
	extractCmd.Flags().String("json", "", "write records as JSON to path ('-' for stdout)")
	extractCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	extractCmd.Flags().String("source", "", "label stored with the run (default: file name or 'cli')")
	addTaggerFlags(extractCmd)
	addStoreFlags(extractCmd)
	extractCmd.Flags().Bool("no-cache", false, "disable the tagger cache")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger()

	file, _ := cmd.Flags().GetString("file")
	if len(args) == 0 && file == "" {
		return errors.New("no input: pass sentences as arguments or use --file")
	}

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	sentences := append([]string(nil), args...)
	if file != "" {
		text, err := readInput(file, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if lines, _ := cmd.Flags().GetBool("lines"); lines {
			sentences = append(sentences, splitLines(text)...)
		} else {
			sentences = append(sentences, p.Sentences(text)...)
		}
	}
	logger.Debug("extracting", "sentences", len(sentences))

	var opts []extract.ExtractOption
	if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress && len(sentences) > 0 {
		bar := progressbar.NewOptions(len(sentences),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("extracting"),
			progressbar.OptionShowCount(),
		)
		opts = append(opts, extract.WithProgress(func(done, _ int) { _ = bar.Set(done) }))
		defer fmt.Fprintln(os.Stderr)
	}

	records, err := p.Extract(ctx, sentences, opts...)
	if err != nil {
		if ctx.Err() == nil || len(records) == 0 {
			return fmt.Errorf("extract failed: %w", err)
		}
		logger.Warn("extraction interrupted", "records", len(records), "sentences", len(sentences))
	}

	if cfg.Store.Enabled {
		source, _ := cmd.Flags().GetString("source")
		if source == "" {
			source = file
		}
		if source == "" || source == "-" {
			source = "cli"
		}
		if err := saveRecords(cmd, cfg, source, records); err != nil {
			return err
		}
	}

	renderer := p.Renderer()
	renderer.SetOutput(cmd.OutOrStdout())
	if jsonPath, _ := cmd.Flags().GetString("json"); jsonPath != "" {
		return renderer.RenderJSON(records, jsonPath)
	}
	renderer.RenderRecords(records)
	return nil
}

// saveRecords stores one run and reports its id on stderr
func saveRecords(cmd *cobra.Command, cfg *model.Config, source string, records []model.KnowledgeRecord) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	run, err := st.SaveRun(cmd.Context(), source, records)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Saved run %s (%d records, %d facts) to %s\n", run.ID, run.Records, run.Facts, st.Path())
	return nil
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		if f, ok := stdin.(*os.File); ok && isTerminal(f) {
			return "", errors.New("no input: stdin is a terminal, pipe text or pass a file")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
