package tagger

import (
	"context"

	"github.com/ppiankov/kgex/internal/metrics"
)

// InstrumentedTagger records call counts and latency of another tagger
type InstrumentedTagger struct {
	next     Tagger
	kind     Kind
	recorder metrics.Recorder
}

// NewInstrumentedTagger wraps next
func NewInstrumentedTagger(next Tagger, kind Kind, recorder metrics.Recorder) *InstrumentedTagger {
	return &InstrumentedTagger{next: next, kind: kind, recorder: metrics.OrNoop(recorder)}
}

// Tag implements Tagger
func (t *InstrumentedTagger) Tag(ctx context.Context, text string) ([]Token, error) {
	done := metrics.TimeTagger(t.recorder, string(t.kind))
	tokens, err := t.next.Tag(ctx, text)
	done(err == nil)
	return tokens, err
}
