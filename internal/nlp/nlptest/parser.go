// Package nlptest provides a deterministic lexicon-driven nlp.Parser for tests.
package nlptest

import (
	"regexp"
	"strings"

	"github.com/ppiankov/kgex/internal/nlp"
)

var wordPattern = regexp.MustCompile(`[A-Za-z]+|[0-9]+(?:\.[0-9]+)?|[^\sA-Za-z0-9]`)

// Lexicon maps lowercase words to Penn Treebank tags
var Lexicon = map[string]string{
	"the": "DT", "a": "DT", "an": "DT", "this": "DT", "these": "DT", "those": "DT",
	"each": "DT", "every": "DT", "said": "DT", "any": "DT", "all": "DT", "both": "DT",

	"of": "IN", "via": "IN", "in": "IN", "on": "IN", "with": "IN", "by": "IN",
	"for": "IN", "from": "IN", "at": "IN", "into": "IN", "through": "IN",
	"between": "IN", "onto": "IN", "within": "IN", "under": "IN", "over": "IN",
	"to": "TO",

	"and": "CC", "or": "CC", "but": "CC",
	"it": "PRP", "they": "PRP", "its": "PRP$", "their": "PRP$",
	"which": "WDT", "that": "WDT", "wherein": "WRB", "where": "WRB",
	"not": "RB", "further": "RB",

	"is": "VBZ", "are": "VBP", "was": "VBD", "be": "VB", "has": "VBZ", "have": "VBP",
	"drives": "VBZ", "drive": "VBP", "rotates": "VBZ", "rotate": "VBP",
	"connects": "VBZ", "connect": "VB", "supports": "VBZ", "engages": "VBZ",
	"transmits": "VBZ", "comprises": "VBZ", "includes": "VBZ", "moves": "VBZ",
	"mounted": "VBN", "coupled": "VBN", "connected": "VBN", "attached": "VBN",
	"comprising": "VBG", "including": "VBG", "rotating": "VBG",

	"first": "JJ", "second": "JJ", "third": "JJ", "main": "JJ", "electric": "JJ",
	"small": "JJ", "large": "JJ", "upper": "JJ", "lower": "JJ", "rigid": "JJ",
}

// Parser tags words from Lexicon plus per-test overrides; numbers are CD and
// anything unknown is NN. Sentences end at terminal punctuation.
type Parser struct {
	Tags map[string]string
	Err  error // returned from every Parse when set
}

// New creates a Parser with optional tag overrides
func New(overrides map[string]string) *Parser {
	tags := make(map[string]string, len(Lexicon)+len(overrides))
	for w, t := range Lexicon {
		tags[w] = t
	}
	for w, t := range overrides {
		tags[strings.ToLower(w)] = t
	}
	return &Parser{Tags: tags}
}

// Parse implements nlp.Parser
func (p *Parser) Parse(text string) (*nlp.Doc, error) {
	if p.Err != nil {
		return nil, p.Err
	}

	words := wordPattern.FindAllString(text, -1)
	tags := make([]string, len(words))
	for i, w := range words {
		tags[i] = p.tag(w)
	}
	return nlp.NewDoc(text, words, tags, nil), nil
}

func (p *Parser) tag(w string) string {
	if t, ok := p.Tags[strings.ToLower(w)]; ok {
		return t
	}
	switch {
	case w[0] >= '0' && w[0] <= '9':
		return "CD"
	case w == "." || w == "!" || w == "?":
		return "."
	case w == ",":
		return ","
	case w == ":" || w == ";":
		return ":"
	case len(w) == 1 && !isLetter(w[0]):
		return "SYM"
	}
	return "NN"
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
