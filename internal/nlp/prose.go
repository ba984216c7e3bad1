package nlp

import (
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

// ProseParser tokenizes, segments and POS-tags English text with prose
type ProseParser struct{}

// NewProseParser creates a prose-backed parser
func NewProseParser() *ProseParser {
	return &ProseParser{}
}

// Parse implements Parser
func (p *ProseParser) Parse(text string) (*Doc, error) {
	if strings.TrimSpace(text) == "" {
		return NewDoc(text, nil, nil, []string{}), nil
	}

	pd, err := prose.NewDocument(text, prose.WithExtraction(false))
	if err != nil {
		return nil, fmt.Errorf("prose parse: %w", err)
	}

	toks := pd.Tokens()
	words := make([]string, len(toks))
	tags := make([]string, len(toks))
	for i, tok := range toks {
		words[i] = tok.Text
		tags[i] = tok.Tag
	}

	sents := pd.Sentences()
	texts := make([]string, 0, len(sents))
	for _, s := range sents {
		texts = append(texts, s.Text)
	}

	return NewDoc(text, words, tags, texts), nil
}
