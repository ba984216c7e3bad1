package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kgex/internal/pipeline"
	"github.com/ppiankov/kgex/internal/store"
)

// factsCmd represents the facts command
var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Query facts saved with --save",
	Long: `Facts lists stored facts in extraction order.

Example:
  kgex facts --entity gear
  kgex facts --relation "is connected to" --limit 20
  kgex facts --run 3f0c... --json -
  kgex facts stats`,
	Args: cobra.NoArgs,
	RunE: runFacts,
}

var factsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show fact store totals",
	Args:  cobra.NoArgs,
	RunE:  runFactsStats,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List saved runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(factsCmd)
	factsCmd.AddCommand(factsStatsCmd)
	factsCmd.AddCommand(runsCmd)

	factsCmd.PersistentFlags().String("db", "", "fact store path (default from config)")
	factsCmd.PersistentFlags().String("json", "", "write JSON to path ('-' for stdout)")
	factsCmd.Flags().String("entity", "", "case-insensitive substring of head or tail")
	factsCmd.Flags().String("relation", "", "exact relation phrase, ignoring case")
	factsCmd.Flags().String("run", "", "only facts from this run")
	factsCmd.Flags().String("source", "", "only facts from runs with this source")
	factsCmd.Flags().Int("limit", store.DefaultListLimit, "maximum number of facts")
	factsCmd.Flags().Int("offset", 0, "number of facts to skip")
	runsCmd.Flags().Int("limit", 20, "maximum number of runs")
}

// openFactStore opens the store regardless of store.enabled
func openFactStore(cmd *cobra.Command) (*store.SQLiteStore, error) {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return nil, err
	}
	cfg.Store.Enabled = true
	return openStore(cfg)
}

func runFacts(cmd *cobra.Command, args []string) error {
	st, err := openFactStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	flags := cmd.Flags()
	opts := store.ListOpts{}
	opts.Entity, _ = flags.GetString("entity")
	opts.Relation, _ = flags.GetString("relation")
	opts.RunID, _ = flags.GetString("run")
	opts.Source, _ = flags.GetString("source")
	opts.Limit, _ = flags.GetInt("limit")
	opts.Offset, _ = flags.GetInt("offset")

	facts, err := st.ListFacts(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if jsonPath, _ := flags.GetString("json"); jsonPath != "" {
		if facts == nil {
			facts = []*store.StoredFact{}
		}
		return jsonRenderer(cmd).RenderJSON(facts, jsonPath)
	}

	out := cmd.OutOrStdout()
	if len(facts) == 0 {
		fmt.Fprintln(out, "No facts found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HEAD\tRELATION\tTAIL\tSOURCE")
	for _, f := range facts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Head, f.Relation, f.Tail, f.Source)
	}
	return w.Flush()
}

func runFactsStats(cmd *cobra.Command, args []string) error {
	st, err := openFactStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(cmd.Context())
	if err != nil {
		return err
	}

	if jsonPath, _ := cmd.Flags().GetString("json"); jsonPath != "" {
		return jsonRenderer(cmd).RenderJSON(stats, jsonPath)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Store:     %s\n", st.Path())
	fmt.Fprintf(out, "Runs:      %d\n", stats.Runs)
	fmt.Fprintf(out, "Records:   %d\n", stats.Records)
	fmt.Fprintf(out, "Entities:  %d\n", stats.Entities)
	fmt.Fprintf(out, "Facts:     %d\n", stats.Facts)
	for _, rc := range stats.TopRelations {
		fmt.Fprintf(out, "  %-24s %d\n", rc.Relation, rc.Count)
	}
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	st, err := openFactStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := st.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if jsonPath, _ := cmd.Flags().GetString("json"); jsonPath != "" {
		if runs == nil {
			runs = []*store.Run{}
		}
		return jsonRenderer(cmd).RenderJSON(runs, jsonPath)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tCREATED\tRECORDS\tFACTS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", r.ID, r.Source, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Records, r.Facts)
	}
	return w.Flush()
}

func jsonRenderer(cmd *cobra.Command) *pipeline.Renderer {
	r := pipeline.NewRenderer(false)
	r.SetOutput(cmd.OutOrStdout())
	return r
}
