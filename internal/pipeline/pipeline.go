// Package pipeline wires fetching, page parsing, normalization and extraction into
// single-call operations over sentences and patents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ppiankov/kgex/internal/assets"
	"github.com/ppiankov/kgex/internal/cache"
	"github.com/ppiankov/kgex/internal/extract"
	"github.com/ppiankov/kgex/internal/llm"
	"github.com/ppiankov/kgex/internal/metrics"
	"github.com/ppiankov/kgex/internal/model"
	"github.com/ppiankov/kgex/internal/nlp"
	"github.com/ppiankov/kgex/internal/patent"
	"github.com/ppiankov/kgex/internal/stats"
	"github.com/ppiankov/kgex/internal/tagger"
)

// Pipeline orchestrates sentence extraction and patent scans
type Pipeline struct {
	config     *model.Config
	fetcher    *Fetcher
	normalizer *extract.Normalizer
	segmenter  *extract.Segmenter
	extractor  *extract.Extractor
	renderer   *Renderer
	logger     *slog.Logger
	closers    []func() error
}

type options struct {
	logger     *slog.Logger
	recorder   metrics.Recorder
	limiter    Waiter
	parser     nlp.Parser
	entities   tagger.Tagger
	relations  tagger.Tagger
	fetcher    *Fetcher
	cache      cache.Cache
	assets     *assets.Manager
	noDownload bool
}

// Option customizes pipeline construction
type Option func(*options)

// WithLogger sets the logger shared by all stages
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithRecorder sets the metrics recorder shared by all stages
func WithRecorder(r metrics.Recorder) Option { return func(o *options) { o.recorder = r } }

// WithLimiter throttles page fetches
func WithLimiter(w Waiter) Option { return func(o *options) { o.limiter = w } }

// WithParser replaces the default prose parser
func WithParser(p nlp.Parser) Option { return func(o *options) { o.parser = p } }

// WithTaggers injects ready-made taggers instead of building them from configuration
func WithTaggers(entities, relations tagger.Tagger) Option {
	return func(o *options) { o.entities, o.relations = entities, relations }
}

// WithFetcher replaces the configured page fetcher
func WithFetcher(f *Fetcher) Option { return func(o *options) { o.fetcher = f } }

// WithCache replaces the configured page and tagger cache
func WithCache(c cache.Cache) Option { return func(o *options) { o.cache = c } }

// WithAssets replaces the model asset manager
func WithAssets(m *assets.Manager) Option { return func(o *options) { o.assets = m } }

// WithoutDownloads requires ONNX models to be present on disk already
func WithoutDownloads() Option { return func(o *options) { o.noDownload = true } }

// New builds a pipeline from configuration. Model resources acquired here are
// released by Close.
func New(ctx context.Context, cfg *model.Config, opts ...Option) (*Pipeline, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	o.recorder = metrics.OrNoop(o.recorder)
	if o.parser == nil {
		o.parser = nlp.NewProseParser()
	}
	if o.cache == nil {
		o.cache = cache.New(cfg.Cache)
	}
	if o.assets == nil {
		o.assets = assets.NewManager(cfg.Models, cfg.HTTP, o.logger)
	}

	p := &Pipeline{
		config:     cfg,
		normalizer: extract.NewNormalizer(o.parser, cfg.Text, o.logger),
		segmenter:  extract.NewSegmenter(o.parser, cfg.Text, o.logger),
		renderer:   NewRenderer(cfg.Output.IncludeFooter),
		logger:     o.logger,
	}

	if o.entities == nil || o.relations == nil {
		if err := p.buildTaggers(ctx, o); err != nil {
			_ = p.Close()
			return nil, err
		}
	}

	p.extractor = extract.NewExtractor(o.parser, o.entities, o.relations,
		extract.WithLogger(o.logger),
		extract.WithRecorder(o.recorder),
		extract.WithNormalizer(p.normalizer),
	)

	p.fetcher = o.fetcher
	if p.fetcher == nil {
		p.fetcher = NewFetcherFromConfig(cfg.HTTP)
		p.fetcher.SetCache(o.cache, cfg.Cache.DiskTTL)
	}
	p.fetcher.SetLimiter(o.limiter)
	p.fetcher.SetRecorder(o.recorder)
	p.fetcher.SetLogger(o.logger)

	return p, nil
}

func (p *Pipeline) buildTaggers(ctx context.Context, o *options) error {
	cfg := p.config

	var provider llm.Provider
	if cfg.Tagger.EntityBackend == tagger.BackendLLM || cfg.Tagger.RelationBackend == tagger.BackendLLM {
		pr, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
		if err != nil {
			return fmt.Errorf("llm provider: %w", err)
		}
		provider = pr
	}

	var tagCache cache.Cache
	if cfg.Tagger.CacheResults {
		tagCache = o.cache
	}

	build := func(kind tagger.Kind, backend, modelName string) (tagger.Tagger, error) {
		topts := tagger.Options{
			Backend:  backend,
			Parser:   o.parser,
			Provider: provider,
			Cache:    tagCache,
			CacheTTL: cfg.Cache.DiskTTL,
			Recorder: o.recorder,
		}
		if backend == tagger.BackendONNX {
			dir, err := p.modelDir(ctx, o, modelName)
			if err != nil {
				return nil, fmt.Errorf("%s model: %w", kind, err)
			}
			topts.ONNX = tagger.ONNXConfig{
				ModelDir:    dir,
				LibraryPath: cfg.Tagger.ONNXLibrary,
				Device:      cfg.Tagger.Device,
				MaxLength:   cfg.Tagger.MaxLength,
			}
		}

		t, closeFn, err := tagger.New(kind, topts)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, closeFn)
		p.logger.Debug("tagger ready", "kind", kind, "backend", backend)
		return t, nil
	}

	var err error
	if o.entities == nil {
		if o.entities, err = build(tagger.KindEntity, cfg.Tagger.EntityBackend, cfg.Tagger.EntityModel); err != nil {
			return err
		}
	}
	if o.relations == nil {
		if o.relations, err = build(tagger.KindRelation, cfg.Tagger.RelationBackend, cfg.Tagger.RelationModel); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) modelDir(ctx context.Context, o *options, name string) (string, error) {
	if o.noDownload {
		return o.assets.Dir(name), nil
	}
	return o.assets.Ensure(ctx, name)
}

// Close releases tagger resources
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Extractor exposes the underlying sentence extractor
func (p *Pipeline) Extractor() *extract.Extractor {
	return p.extractor
}

// Extract normalizes and processes a string or a list of strings
func (p *Pipeline) Extract(ctx context.Context, input any, opts ...extract.ExtractOption) ([]model.KnowledgeRecord, error) {
	return p.extractor.Extract(ctx, input, opts...)
}

// Sentences normalizes free text and splits it into sentences within the token window
func (p *Pipeline) Sentences(text string) []string {
	return p.segmenter.Segment(p.normalizer.Normalize(text))
}

// ScanPatent fetches a patent page, keeps the allowed sections and extracts a
// knowledge record for every sentence.
func (p *Pipeline) ScanPatent(ctx context.Context, id string, opts ...extract.ExtractOption) (*model.PatentReport, error) {
	normalized, err := patent.NormalizeID(id)
	if err != nil {
		return nil, err
	}
	url, err := patent.URL(p.config.Patents.URLTemplate, normalized)
	if err != nil {
		return nil, err
	}

	fetched, err := p.fetcher.FetchWithRetry(ctx, url)
	if err != nil {
		var status *StatusError
		if errors.As(err, &status) && status.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s: %w", patent.ErrNotFound, normalized, err)
		}
		return nil, fmt.Errorf("fetch patent %s: %w", normalized, err)
	}

	doc, err := patent.ParsePage(fetched.HTML)
	if err != nil {
		return nil, fmt.Errorf("patent %s: %w", normalized, err)
	}

	sentences := extract.SentencesFromSections(doc.Sections, p.config.Text.Headings, p.normalizer, p.segmenter)
	p.logger.Info("patent parsed", "patent", normalized, "sections", len(doc.Sections), "sentences", len(sentences))

	records, err := p.extractor.ExtractSentences(ctx, sentences, opts...)
	if err != nil {
		return nil, fmt.Errorf("extract patent %s: %w", normalized, err)
	}

	return &model.PatentReport{
		PatentID:  normalized,
		Title:     doc.Title,
		SourceURL: fetched.FinalURL,
		FetchedAt: time.Now().UTC(),
		FetchMeta: fetched.Meta,
		Sections:  doc.Headings(),
		Sentences: sentences,
		Records:   records,
		Summary:   stats.Summarize(len(sentences), records),
	}, nil
}

// Renderer returns the report renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// RenderReport writes the report as JSON and/or Markdown and prints the terminal summary
func (p *Pipeline) RenderReport(report *model.PatentReport, jsonPath string, mdPath string, verbose bool) error {
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose && jsonPath != "-" {
			p.renderer.Printf("✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose && mdPath != "-" {
			p.renderer.Printf("✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	if jsonPath != "-" && mdPath != "-" {
		p.renderer.RenderSummary(report)
	}
	return nil
}
