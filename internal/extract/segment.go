package extract

import (
	"log/slog"
	"strings"

	"github.com/ppiankov/kgex/internal/model"
	"github.com/ppiankov/kgex/internal/nlp"
)

// Segmenter splits normalized text into sentences of acceptable length
type Segmenter struct {
	parser    nlp.Parser
	minTokens int
	maxTokens int
	logger    *slog.Logger
}

// NewSegmenter creates a segmenter keeping sentences of [cfg.MinTokens, cfg.MaxTokens) tokens
func NewSegmenter(parser nlp.Parser, cfg model.TextConfig, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Segmenter{
		parser:    parser,
		minTokens: cfg.MinTokens,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}
}

// Segment splits text on line boundaries, each line into sentences, and keeps
// sentences whose re-tokenized length lies in the window. Order is preserved.
func (s *Segmenter) Segment(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		doc, err := s.parser.Parse(line)
		if err != nil {
			s.logger.Warn("segment line", "error", err)
			continue
		}

		for _, sent := range doc.SentenceTexts() {
			if s.accept(sent) {
				out = append(out, sent)
			}
		}
	}
	return out
}

func (s *Segmenter) accept(sentence string) bool {
	doc, err := s.parser.Parse(sentence)
	if err != nil {
		s.logger.Warn("tokenize sentence", "error", err)
		return false
	}
	n := len(doc.Tokens)
	return n >= s.minTokens && n < s.maxTokens
}
