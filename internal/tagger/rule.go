package tagger

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/kgex/internal/marker"
	"github.com/ppiankov/kgex/internal/nlp"
)

// RuleTagger labels tokens from their part of speech.
// As an entity tagger every noun is ENT. As a relation tagger verbs, particles and
// prepositions lying between the two marker regions are REL.
type RuleTagger struct {
	kind   Kind
	parser nlp.Parser
}

// NewRuleTagger creates a rule tagger of the given kind
func NewRuleTagger(kind Kind, parser nlp.Parser) *RuleTagger {
	return &RuleTagger{kind: kind, parser: parser}
}

// Tag implements Tagger
func (r *RuleTagger) Tag(ctx context.Context, text string) ([]Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.kind == KindRelation {
		return r.tagRelation(text)
	}
	return r.tagEntity(text)
}

func (r *RuleTagger) tagEntity(text string) ([]Token, error) {
	doc, err := r.parser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("rule tagger: %w", err)
	}

	tokens := make([]Token, 0, len(doc.Tokens))
	for _, t := range doc.Tokens {
		label := LabelOther
		if strings.HasPrefix(t.Tag, "NN") {
			label = LabelEntity
		}
		tokens = append(tokens, Token{Text: t.Text, Offset: t.Offset, Label: label})
	}
	return tokens, nil
}

// Markers are removed before parsing so they cannot disturb POS tagging; offsets are
// mapped back onto the marked text afterwards.
func (r *RuleTagger) tagRelation(marked string) ([]Token, error) {
	head, tail, ok := marker.Regions(marked)
	if !ok {
		return nil, fmt.Errorf("rule tagger: text carries no head/tail markers")
	}
	first, second := head, tail
	if tail.Outer.Start < head.Outer.Start {
		first, second = tail, head
	}

	openLen := first.Inner.Start - first.Outer.Start
	closeLen := first.Outer.End - first.Inner.End
	secondOpen := second.Inner.Start - second.Outer.Start

	plain := marker.Strip(marked)
	// entity boundaries in plain coordinates
	firstStart := first.Outer.Start
	firstEnd := firstStart + (first.Inner.End - first.Inner.Start)
	secondStart := second.Outer.Start - openLen - closeLen
	secondEnd := secondStart + (second.Inner.End - second.Inner.Start)

	toMarked := func(off int) int {
		switch {
		case off < firstStart:
			return off
		case off < firstEnd:
			return off + openLen
		case off < secondStart:
			return off + openLen + closeLen
		case off < secondEnd:
			return off + openLen + closeLen + secondOpen
		default:
			return off + openLen + closeLen + secondOpen + closeLen
		}
	}

	doc, err := r.parser.Parse(plain)
	if err != nil {
		return nil, fmt.Errorf("rule tagger: %w", err)
	}

	tokens := make([]Token, 0, len(doc.Tokens))
	for _, t := range doc.Tokens {
		label := LabelOther
		if t.Offset >= firstEnd && t.End() <= secondStart && isRelationTag(t.Tag) {
			label = LabelRelation
		}
		tokens = append(tokens, Token{Text: t.Text, Offset: toMarked(t.Offset), Label: label})
	}
	return tokens, nil
}

func isRelationTag(tag string) bool {
	if strings.HasPrefix(tag, "VB") {
		return true
	}
	switch tag {
	case "IN", "TO", "RP":
		return true
	}
	return false
}
