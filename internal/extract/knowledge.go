package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ppiankov/kgex/internal/marker"
	"github.com/ppiankov/kgex/internal/metrics"
	"github.com/ppiankov/kgex/internal/model"
	"github.com/ppiankov/kgex/internal/nlp"
	"github.com/ppiankov/kgex/internal/tagger"
)

// InputTypeError reports input that is neither a string nor a list of strings
type InputTypeError struct {
	Got string
}

func (e *InputTypeError) Error() string {
	return fmt.Sprintf("unsupported input type %s: a string or a list of strings is required", e.Got)
}

// Extractor turns sentences into knowledge records. Calls are serialized: one
// sentence is processed at a time, in input order.
type Extractor struct {
	mu         sync.Mutex
	parser     nlp.Parser
	entities   tagger.Tagger
	relations  tagger.Tagger
	normalizer *Normalizer
	logger     *slog.Logger
	recorder   metrics.Recorder
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger for skipped sentences and pairs
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Extractor) {
		e.recorder = metrics.OrNoop(r)
	}
}

// WithNormalizer normalizes every input sentence before processing
func WithNormalizer(n *Normalizer) Option {
	return func(e *Extractor) {
		e.normalizer = n
	}
}

// NewExtractor creates an extractor over the given parser and taggers
func NewExtractor(parser nlp.Parser, entities, relations tagger.Tagger, opts ...Option) *Extractor {
	e := &Extractor{
		parser:    parser,
		entities:  entities,
		relations: relations,
		logger:    slog.New(slog.DiscardHandler),
		recorder:  metrics.Noop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type extractConfig struct {
	progress func(done, total int)
}

// ExtractOption configures a single Extract call
type ExtractOption func(*extractConfig)

// WithProgress calls fn after every input sentence
func WithProgress(fn func(done, total int)) ExtractOption {
	return func(c *extractConfig) {
		c.progress = fn
	}
}

// Extract processes a string or an ordered list of strings. Any other input yields an
// *InputTypeError. Sentences that fail are logged and skipped; a cancelled context
// stops the batch between sentences and returns the records produced so far.
func (e *Extractor) Extract(ctx context.Context, input any, opts ...ExtractOption) ([]model.KnowledgeRecord, error) {
	sentences, err := sentencesOf(input)
	if err != nil {
		return nil, err
	}
	return e.ExtractSentences(ctx, sentences, opts...)
}

// ExtractSentences is Extract for an already typed batch
func (e *Extractor) ExtractSentences(ctx context.Context, sentences []string, opts ...ExtractOption) ([]model.KnowledgeRecord, error) {
	var cfg extractConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	records := make([]model.KnowledgeRecord, 0, len(sentences))
	for i, raw := range sentences {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		sentence := raw
		if e.normalizer != nil {
			sentence = e.normalizer.Normalize(raw)
		}

		if sentence == "" {
			e.logger.Debug("sentence empty after normalization", "index", i)
		} else if rec, err := e.processSentence(ctx, sentence); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return records, ctxErr
			}
			e.recorder.IncSentences(metrics.SentenceFailed)
			e.logger.Warn("skipping sentence", "index", i, "error", err)
		} else {
			records = append(records, rec)
		}

		if cfg.progress != nil {
			cfg.progress(i+1, len(sentences))
		}
	}
	return records, nil
}

// ProcessSentence extracts the record of a single, already normalized sentence
func (e *Extractor) ProcessSentence(ctx context.Context, sentence string) (model.KnowledgeRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.processSentence(ctx, sentence)
	if err != nil {
		e.recorder.IncSentences(metrics.SentenceFailed)
	}
	return rec, err
}

func (e *Extractor) processSentence(ctx context.Context, sentence string) (model.KnowledgeRecord, error) {
	doc, err := e.parser.Parse(sentence)
	if err != nil {
		return model.KnowledgeRecord{}, fmt.Errorf("parse sentence: %w", err)
	}

	tagged, err := e.entities.Tag(ctx, sentence)
	if err != nil {
		return model.KnowledgeRecord{}, fmt.Errorf("entity tagger: %w", err)
	}

	entities := ExtractEntities(doc, AlignLabels(doc, tagged))

	facts := []model.Fact{}
	for _, head := range entities {
		for _, tail := range entities {
			if head.Root >= tail.Root || head.Text == tail.Text {
				continue
			}

			fact, ok, err := e.extractFact(ctx, sentence, head, tail)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return model.KnowledgeRecord{}, err
				}
				e.logger.Debug("skipping pair", "head", head.Text, "tail", tail.Text, "error", err)
				continue
			}
			if ok {
				facts = append(facts, fact)
			}
		}
	}

	e.recorder.IncSentences(metrics.SentenceProcessed)
	e.recorder.AddFacts(len(facts))

	return model.KnowledgeRecord{
		Sentence: sentence,
		Entities: uniqueLower(entities),
		Facts:    facts,
	}, nil
}

func (e *Extractor) extractFact(ctx context.Context, sentence string, head, tail EntitySpan) (model.Fact, bool, error) {
	marked, err := marker.MarkChecked(sentence, head.Span(), tail.Span())
	if err != nil {
		return model.Fact{}, false, err
	}

	tokens, err := e.relations.Tag(ctx, marked)
	if err != nil {
		return model.Fact{}, false, fmt.Errorf("relation tagger: %w", err)
	}

	fact, ok := AcceptFact(head, tail, RelationTokens(tokens))
	return fact, ok, nil
}

func sentencesOf(input any) ([]string, error) {
	switch v := input.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &InputTypeError{Got: fmt.Sprintf("%T containing %T", input, item)}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &InputTypeError{Got: fmt.Sprintf("%T", input)}
	}
}
