package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/kgex/internal/model"
	"github.com/ppiankov/kgex/internal/pipeline"
	"github.com/ppiankov/kgex/internal/store"
)

// flagKeys maps command-line flags to config keys. Only flags present on the
// running command are bound.
var flagKeys = map[string]string{
	"timeout":          "http.timeout",
	"ua":               "http.user_agent",
	"max-bytes":        "http.max_body_bytes",
	"insecure":         "http.insecure_tls",
	"http-proxy":       "http.http_proxy",
	"https-proxy":      "http.https_proxy",
	"entity-backend":   "tagger.entity_backend",
	"relation-backend": "tagger.relation_backend",
	"device":           "tagger.device",
	"llm-provider":     "llm.provider",
	"llm-model":        "llm.model",
	"min-tokens":       "text.min_tokens",
	"max-tokens":       "text.max_tokens",
	"workers":          "concurrency.workers",
	"rps":              "rate_limiting.requests_per_second",
	"metrics-addr":     "metrics.addr",
	"db":               "store.path",
}

var optionalKeys = []string{
	"llm.api_key",
	"llm.base_url",
	"http.http_proxy",
	"http.https_proxy",
	"http.no_proxy",
	"tagger.onnx_library",
	"metrics.addr",
}

// loadConfig merges built-in defaults, the config file, KGEX_* environment
// variables and bound flags into a Config
func loadConfig(v *viper.Viper) (*model.Config, error) {
	if err := registerDefaults(v, model.DefaultConfig()); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("KGEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// keys omitted from the marshalled defaults
	for _, key := range optionalKeys {
		_ = v.BindEnv(key)
	}

	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyProviderEnv(cfg)
	return cfg, nil
}

// registerDefaults makes every config key known to viper so that environment
// variables can override keys absent from the config file
func registerDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if sub, ok := value.(map[string]any); ok && len(sub) > 0 {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, value)
	}
}

// applyProviderEnv falls back to the provider's conventional environment variables
func applyProviderEnv(cfg *model.Config) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}

// commandConfig binds the running command's flags and loads the effective config
func commandConfig(cmd *cobra.Command) (*model.Config, error) {
	v := viper.GetViper()
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}

	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	if noFooter, _ := cmd.Flags().GetBool("no-footer"); noFooter {
		cfg.Output.IncludeFooter = false
	}
	if save, _ := cmd.Flags().GetBool("save"); save {
		cfg.Store.Enabled = true
	}
	return cfg, nil
}

func addHTTPFlags(cmd *cobra.Command) {
	d := model.DefaultConfig().HTTP
	cmd.Flags().Duration("timeout", d.Timeout, "HTTP timeout per request")
	cmd.Flags().String("ua", d.UserAgent, "HTTP User-Agent")
	cmd.Flags().Int64("max-bytes", d.MaxBodyBytes, "max response bytes to read")
	cmd.Flags().Bool("insecure", false, "skip TLS certificate verification")
	cmd.Flags().String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	cmd.Flags().Bool("no-cache", false, "disable cache (force fresh fetch and tagging)")
}

func addTaggerFlags(cmd *cobra.Command) {
	d := model.DefaultConfig()
	cmd.Flags().String("entity-backend", d.Tagger.EntityBackend, "entity tagger (rule, onnx, llm)")
	cmd.Flags().String("relation-backend", d.Tagger.RelationBackend, "relation tagger (rule, onnx, llm)")
	cmd.Flags().String("device", d.Tagger.Device, "ONNX device (auto, cpu, gpu)")
	cmd.Flags().String("llm-provider", "", "LLM provider for llm backends (openai, anthropic, ollama)")
	cmd.Flags().String("llm-model", "", "LLM model name")
	cmd.Flags().Int("min-tokens", d.Text.MinTokens, "shortest sentence kept, in tokens")
	cmd.Flags().Int("max-tokens", d.Text.MaxTokens, "longest sentence kept, in tokens")
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("save", false, "save the records in the fact store")
	cmd.Flags().String("db", model.DefaultConfig().Store.Path, "fact store path")
}

// newPipeline builds a pipeline logging through logger
func newPipeline(ctx context.Context, cfg *model.Config, logger *slog.Logger, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	opts = append([]pipeline.Option{pipeline.WithLogger(logger)}, opts...)
	p, err := pipeline.New(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	return p, nil
}

// openStore opens the fact store, or returns nil when it is disabled
func openStore(cfg *model.Config) (*store.SQLiteStore, error) {
	if !cfg.Store.Enabled {
		return nil, nil
	}
	s, err := store.OpenFromConfig(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open fact store: %w", err)
	}
	return s, nil
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage kgex configuration",
	Long: `Manage kgex configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (KGEX_*, e.g. KGEX_HTTP_TIMEOUT=10s)
3. Config file (~/.kgex/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(yamlData)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.kgex/config.yaml (or --config) with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("error finding home directory: %w", err)
			}
			configPath = filepath.Join(home, ".kgex", "config.yaml")
		}

		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(out, "\nTo view the configuration:\n")
		fmt.Fprintf(out, "  kgex config show\n")
		return nil
	},
}

const configHeader = `# kgex configuration file
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (KGEX_*)
#   3. This config file
#   4. Built-in defaults

`

const configFooter = `
# API keys are never written here; use environment variables:
#   export KGEX_LLM_API_KEY=...       (any provider)
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export OLLAMA_BASE_URL=http://localhost:11434
`

// writeDefaultConfig writes the documented defaults, refusing to overwrite
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'kgex config show' to view it, or delete it first to recreate", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	content := configHeader + string(yamlData) + configFooter
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
