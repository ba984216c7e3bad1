package tagger

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/kgex/internal/cache"
	"github.com/ppiankov/kgex/internal/llm"
	"github.com/ppiankov/kgex/internal/metrics"
	"github.com/ppiankov/kgex/internal/nlp"
)

// Backends
const (
	BackendRule = "rule"
	BackendONNX = "onnx"
	BackendLLM  = "llm"
)

// Options selects and decorates a tagger backend
type Options struct {
	Backend  string
	Parser   nlp.Parser   // rule backend
	Provider llm.Provider // llm backend
	ONNX     ONNXConfig   // onnx backend
	Cache    cache.Cache  // nil disables memoization
	CacheTTL time.Duration
	Recorder metrics.Recorder
}

// New builds a tagger of the given kind. The returned close function releases model
// resources and must be called once the tagger is no longer used.
func New(kind Kind, opts Options) (Tagger, func() error, error) {
	var (
		base      Tagger
		closeFn   = func() error { return nil }
		namespace string
	)

	backend := strings.ToLower(opts.Backend)
	switch backend {
	case "", BackendRule:
		if opts.Parser == nil {
			return nil, nil, fmt.Errorf("%s tagger: rule backend needs a parser", kind)
		}
		base = NewRuleTagger(kind, opts.Parser)
		namespace = BackendRule + ":" + string(kind)
	case BackendONNX:
		t, err := NewONNXTagger(opts.ONNX)
		if err != nil {
			return nil, nil, fmt.Errorf("%s tagger: %w", kind, err)
		}
		base, closeFn = t, t.Close
		namespace = BackendONNX + ":" + string(kind) + ":" + opts.ONNX.ModelDir
	case BackendLLM:
		if opts.Provider == nil {
			return nil, nil, fmt.Errorf("%s tagger: llm backend needs a configured llm provider", kind)
		}
		base = NewLLMTagger(kind, opts.Provider)
		namespace = BackendLLM + ":" + string(kind) + ":" + opts.Provider.Name()
	default:
		return nil, nil, fmt.Errorf("unknown tagger backend: %s (supported: rule, onnx, llm)", opts.Backend)
	}

	t := base
	// rule tagging is cheaper than a cache lookup
	if opts.Cache != nil && backend != "" && backend != BackendRule {
		t = NewCachedTagger(t, opts.Cache, namespace, opts.CacheTTL)
	}
	if opts.Recorder != nil {
		t = NewInstrumentedTagger(t, kind, opts.Recorder)
	}
	return t, closeFn, nil
}
