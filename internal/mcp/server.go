// Package mcp exposes knowledge extraction as Model Context Protocol tools.
//
// Tools: kgex_extract (sentences or free text), kgex_patent (scan one patent),
// kgex_facts and kgex_stats (query the fact store, when one is configured).
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ppiankov/kgex/internal/extract"
	"github.com/ppiankov/kgex/internal/metrics"
	"github.com/ppiankov/kgex/internal/model"
	"github.com/ppiankov/kgex/internal/store"
)

const (
	defaultFactLimit = 50
	maxFactLimit     = 500
)

// Extractor is the part of the pipeline the tools drive
type Extractor interface {
	Extract(ctx context.Context, input any, opts ...extract.ExtractOption) ([]model.KnowledgeRecord, error)
	Sentences(text string) []string
	ScanPatent(ctx context.Context, id string, opts ...extract.ExtractOption) (*model.PatentReport, error)
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Extractor Extractor
	Store     store.Store // optional
	Version   string
	Recorder  metrics.Recorder
	Logger    *slog.Logger
}

// extractResult is the payload of kgex_extract
type extractResult struct {
	RunID   string                  `json:"run_id,omitempty"`
	Records []model.KnowledgeRecord `json:"records"`
}

// patentResult is the payload of kgex_patent
type patentResult struct {
	RunID string `json:"run_id,omitempty"`
	*model.PatentReport
}

// handlers carries the dependencies shared by all tools
type handlers struct {
	extractor Extractor
	store     store.Store
	recorder  metrics.Recorder
	logger    *slog.Logger

	// mcp-go dispatches calls concurrently; store writes and reads are ordered here
	dbMu sync.Mutex
}

// NewServer creates a configured MCP server with all kgex tools
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := server.NewMCPServer(
		"kgex",
		ver,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	h := &handlers{
		extractor: cfg.Extractor,
		store:     cfg.Store,
		recorder:  metrics.OrNoop(cfg.Recorder),
		logger:    logger,
	}

	s.AddTool(extractTool(), h.timed("kgex_extract", h.extract))
	s.AddTool(patentTool(), h.timed("kgex_patent", h.patent))
	s.AddTool(factsTool(), h.timed("kgex_facts", h.facts))
	s.AddTool(statsTool(), h.timed("kgex_stats", h.stats))

	return s
}

// ServeStdio serves the MCP protocol over the given streams until ctx is done
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s)
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// --- Tools ---

func extractTool() mcp.Tool {
	return mcp.NewTool("kgex_extract",
		mcp.WithDescription("Extract entities and (head, relation, tail) facts from technical sentences. Pass either a list of sentences or free text, which is normalized and split into sentences first."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithArray("sentences",
			mcp.Description("Sentences to process, one knowledge record each"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("text",
			mcp.Description("Free text to normalize and segment (ignored when sentences are given)"),
		),
		mcp.WithBoolean("save",
			mcp.Description("Persist the records in the fact store (default: false)"),
		),
		mcp.WithString("source",
			mcp.Description("Label stored with the run when saving (default: mcp)"),
		),
	)
}

func patentTool() mcp.Tool {
	return mcp.NewTool("kgex_patent",
		mcp.WithDescription("Fetch a US patent page, keep the allowed sections and extract a knowledge record for every sentence. Returns the full report with a summary."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
		mcp.WithString("patent_id",
			mcp.Required(),
			mcp.Description("Patent number, e.g. 'US7654321B2' or '7,654,321'"),
		),
		mcp.WithBoolean("save",
			mcp.Description("Persist the records in the fact store (default: false)"),
		),
	)
}

func factsTool() mcp.Tool {
	return mcp.NewTool("kgex_facts",
		mcp.WithDescription("Query stored facts. Facts come back in extraction order with the sentence they were found in."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("entity",
			mcp.Description("Case-insensitive substring of the head or tail"),
		),
		mcp.WithString("relation",
			mcp.Description("Exact relation phrase, ignoring case"),
		),
		mcp.WithString("run_id",
			mcp.Description("Only facts from this run"),
		),
		mcp.WithString("source",
			mcp.Description("Only facts from runs with this source label"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of facts (default: 50, max: 500)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Number of facts to skip"),
		),
	)
}

func statsTool() mcp.Tool {
	return mcp.NewTool("kgex_stats",
		mcp.WithDescription("Totals of the fact store: runs, records, unique entities, facts and the most used relation phrases."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
}

// --- Handlers ---

func (h *handlers) timed(name string, fn server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		done := metrics.TimeTool(h.recorder, name)
		res, err := fn(ctx, req)
		done(err == nil && res != nil && !res.IsError)
		return res, err
	}
}

func (h *handlers) extract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	var input any
	if raw, ok := args["sentences"]; ok && raw != nil {
		input = raw
	} else if text := req.GetString("text", ""); text != "" {
		input = h.extractor.Sentences(text)
	} else {
		return mcp.NewToolResultError("either sentences or text is required"), nil
	}

	records, err := h.extractor.Extract(ctx, input)
	if err != nil {
		var typeErr *extract.InputTypeError
		if errors.As(err, &typeErr) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid sentences: %v", err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("extract error: %v", err)), nil
	}

	result := extractResult{Records: records}
	if req.GetBool("save", false) {
		runID, err := h.save(ctx, req.GetString("source", "mcp"), records)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result.RunID = runID
	}
	return jsonResult(result)
}

func (h *handlers) patent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("patent_id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("patent_id is required"), nil
	}

	report, err := h.extractor.ScanPatent(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("patent error: %v", err)), nil
	}

	result := patentResult{PatentReport: report}
	if req.GetBool("save", false) {
		runID, err := h.save(ctx, report.PatentID, report.Records)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result.RunID = runID
	}
	return jsonResult(result)
}

func (h *handlers) facts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.store == nil {
		return mcp.NewToolResultError("fact store is disabled"), nil
	}

	limit := int(req.GetFloat("limit", defaultFactLimit))
	if limit <= 0 {
		limit = defaultFactLimit
	}
	limit = min(limit, maxFactLimit)

	opts := store.ListOpts{
		Entity:   req.GetString("entity", ""),
		Relation: req.GetString("relation", ""),
		RunID:    req.GetString("run_id", ""),
		Source:   req.GetString("source", ""),
		Limit:    limit,
		Offset:   int(req.GetFloat("offset", 0)),
	}

	h.dbMu.Lock()
	defer h.dbMu.Unlock()

	facts, err := h.store.ListFacts(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("facts error: %v", err)), nil
	}
	if facts == nil {
		facts = []*store.StoredFact{}
	}
	return jsonResult(facts)
}

func (h *handlers) stats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.store == nil {
		return mcp.NewToolResultError("fact store is disabled"), nil
	}

	h.dbMu.Lock()
	defer h.dbMu.Unlock()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
	}
	return jsonResult(stats)
}

func (h *handlers) save(ctx context.Context, source string, records []model.KnowledgeRecord) (string, error) {
	if h.store == nil {
		return "", errors.New("cannot save: fact store is disabled")
	}

	h.dbMu.Lock()
	defer h.dbMu.Unlock()

	run, err := h.store.SaveRun(ctx, source, records)
	if err != nil {
		return "", fmt.Errorf("save error: %w", err)
	}
	h.logger.Info("run saved", "run", run.ID, "source", source, "records", run.Records, "facts", run.Facts)
	return run.ID, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
