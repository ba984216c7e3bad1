// Package tagger provides the token-level predictors the extraction core consumes:
// an entity tagger over plain sentences and a relation tagger over marked sentences.
package tagger

import (
	"context"
	"strings"
)

// Token is one labeled token of the tagged text
type Token struct {
	Text   string `json:"text"`
	Offset int    `json:"offset"` // byte offset in the tagged text
	Label  string `json:"label"`
}

// End returns the byte offset just past the token
func (t Token) End() int {
	return t.Offset + len(t.Text)
}

// Tagger labels the tokens of a text
type Tagger interface {
	Tag(ctx context.Context, text string) ([]Token, error)
}

// Func adapts a plain function to the Tagger interface
type Func func(ctx context.Context, text string) ([]Token, error)

// Tag implements Tagger
func (f Func) Tag(ctx context.Context, text string) ([]Token, error) {
	return f(ctx, text)
}

// Kind distinguishes the two predictor roles
type Kind string

const (
	KindEntity   Kind = "entity"
	KindRelation Kind = "relation"
)

// Canonical labels
const (
	LabelEntity   = "ENT"
	LabelRelation = "REL"
	LabelOther    = "O"
)

// IsEntity reports whether label marks an entity token (ENT, ENTITY, B-ENT, I-ENTITY, ...)
func IsEntity(label string) bool {
	switch baseLabel(label) {
	case "ENT", "ENTITY":
		return true
	}
	return false
}

// IsRelation reports whether label marks a relation token (REL, RELATION, B-REL, ...)
func IsRelation(label string) bool {
	switch baseLabel(label) {
	case "REL", "RELATION":
		return true
	}
	return false
}

func baseLabel(label string) string {
	label = strings.ToUpper(strings.TrimSpace(label))
	if len(label) > 2 && label[1] == '-' {
		switch label[0] {
		case 'B', 'I', 'E', 'S', 'L', 'U':
			return label[2:]
		}
	}
	return label
}

// LabelAt returns the label of the token starting at offset, if any
func LabelAt(tokens []Token, offset int) (string, bool) {
	for _, tok := range tokens {
		if tok.Offset == offset {
			return tok.Label, true
		}
	}
	return "", false
}

// Covering returns the label of the token whose range contains offset
func Covering(tokens []Token, offset int) (string, bool) {
	for _, tok := range tokens {
		if tok.Offset <= offset && offset < tok.End() {
			return tok.Label, true
		}
	}
	return "", false
}
