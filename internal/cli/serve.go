package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kgex/internal/mcp"
	"github.com/ppiankov/kgex/internal/metrics"
	"github.com/ppiankov/kgex/internal/pipeline"
	"github.com/ppiankov/kgex/internal/store"
	"github.com/ppiankov/kgex/internal/worker"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Serve exposes extraction as Model Context Protocol tools over stdin/stdout:
  kgex_extract   extract records from sentences or free text
  kgex_patent    scan a US patent
  kgex_facts     query stored facts
  kgex_stats     fact store totals

The fact store is opened unless --no-store is set. With --metrics-addr, Prometheus
metrics are served on /metrics and a health check on /healthz.

Example:
  kgex serve
  kgex serve --metrics-addr :9464 --entity-backend onnx --relation-backend onnx`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	serveCmd.Flags().Bool("no-store", false, "run without the fact store")
	serveCmd.Flags().String("db", "", "fact store path (default from config)")
	addHTTPFlags(serveCmd)
	addTaggerFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol; everything else goes to stderr
	logger := newLogger()

	var recorder metrics.Recorder = metrics.Noop{}
	if cfg.Metrics.Addr != "" {
		prom := metrics.NewPrometheus()
		recorder = prom
		go func() {
			if err := prom.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Warn("metrics server stopped", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
	}

	p, err := newPipeline(ctx, cfg, logger,
		pipeline.WithRecorder(recorder),
		pipeline.WithLimiter(worker.NewLimiterFromConfig(cfg.RateLimiting)),
	)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	var st store.Store
	if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
		cfg.Store.Enabled = true
		sqlStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = sqlStore.Close() }()
		st = sqlStore
		logger.Info("fact store open", "path", sqlStore.Path())
	}

	srv := mcp.NewServer(mcp.ServerConfig{
		Extractor: p,
		Store:     st,
		Version:   version,
		Recorder:  recorder,
		Logger:    logger,
	})

	logger.Info("MCP server listening on stdio")
	if err := mcp.ServeStdio(ctx, srv, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
