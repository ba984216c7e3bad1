package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kgex/internal/assets"
)

// modelsCmd represents the models command
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage ONNX tagger models",
	Long: `Models are looked up under models.dir (default ~/.kgex/models). Models listed
under models.sources are downloaded on first use; others must be placed by hand.`,
}

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch [name...]",
	Short: "Download models ahead of use (default: the configured tagger models)",
	RunE:  runModelsFetch,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured models and where they live",
	Args:  cobra.NoArgs,
	RunE:  runModelsList,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsFetchCmd)
	modelsCmd.AddCommand(modelsListCmd)
}

func runModelsFetch(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	manager := assets.NewManager(cfg.Models, cfg.HTTP, newLogger())

	names := args
	if len(names) == 0 {
		names = []string{cfg.Tagger.EntityModel, cfg.Tagger.RelationModel}
	}
	for _, name := range names {
		dir, err := manager.Ensure(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %s\n", name, dir)
	}
	return nil
}

func runModelsList(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	manager := assets.NewManager(cfg.Models, cfg.HTTP, nil)

	names := make([]string, 0, len(cfg.Models.Sources))
	for name := range cfg.Models.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(out, "No model sources configured (models.sources).")
	}
	for _, name := range names {
		src := cfg.Models.Sources[name]
		fmt.Fprintf(out, "%s\n  dir:   %s\n  from:  %s\n  files: %v\n", name, manager.Dir(name), src.BaseURL, src.Files)
	}
	return nil
}
