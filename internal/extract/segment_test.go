package extract

import (
	"strings"
	"testing"

	"github.com/ppiankov/kgex/internal/model"
	"github.com/ppiankov/kgex/internal/nlp/nlptest"
)

// sentenceOf builds a sentence of exactly n tokens: n-1 words and a period
func sentenceOf(n int) string {
	return strings.TrimSpace(strings.Repeat("gear ", n-1)) + "."
}

func TestSegment_TokenWindow(t *testing.T) {
	seg := NewSegmenter(nlptest.New(nil), model.DefaultConfig().Text, nil)

	text := strings.Join([]string{sentenceOf(14), sentenceOf(15), sentenceOf(99), sentenceOf(100)}, " ")
	got := seg.Segment(text)

	if len(got) != 2 {
		t.Fatalf("Expected 2 sentences, got %d", len(got))
	}
	if got[0] != sentenceOf(15) || got[1] != sentenceOf(99) {
		t.Errorf("Expected the 15 and 99 token sentences, got lengths %d and %d words",
			len(strings.Fields(got[0])), len(strings.Fields(got[1])))
	}
}

func TestSegment_LinesInOrder(t *testing.T) {
	cfg := model.DefaultConfig().Text
	cfg.MinTokens = 2
	seg := NewSegmenter(nlptest.New(nil), cfg, nil)

	got := seg.Segment("The gear turns. The shaft turns.\n\n\nThe coupling holds.")
	want := []string{"The gear turns.", "The shaft turns.", "The coupling holds."}

	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSentencesFromSections(t *testing.T) {
	cfg := model.DefaultConfig().Text
	cfg.MinTokens = 3
	parser := nlptest.New(nil)
	norm := NewNormalizer(parser, cfg, nil)
	seg := NewSegmenter(parser, cfg, nil)

	sections := []model.Section{
		{Heading: "NIL", Blocks: []string{"Ignored preamble text here."}},
		{Heading: "Background of the  Invention", Blocks: []string{"1. The gear (G) drives the shaft."}},
		{Heading: "CLAIM", Blocks: []string{"DEP*****2. The gear of claim 1, wherein the gear is rigid."}},
		{Heading: "ABSTRACT"},
	}

	got := SentencesFromSections(sections, cfg.Headings, norm, seg)
	want := []string{"The gear drives the shaft.", "The gear wherein the gear is rigid."}

	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSentencesFromSections_Empty(t *testing.T) {
	cfg := model.DefaultConfig().Text
	parser := nlptest.New(nil)

	got := SentencesFromSections(nil, cfg.Headings, NewNormalizer(parser, cfg, nil), NewSegmenter(parser, cfg, nil))
	if len(got) != 0 {
		t.Errorf("Expected no sentences, got %v", got)
	}
}
