package nlp

import (
	"reflect"
	"testing"
)

func TestNewDoc_Offsets(t *testing.T) {
	text := "The gear drives  the shaft."
	doc := NewDoc(text,
		[]string{"The", "gear", "drives", "the", "shaft", "."},
		[]string{"DT", "NN", "VBZ", "DT", "NN", "."},
		nil)

	wantOffsets := []int{0, 4, 9, 17, 21, 26}
	if len(doc.Tokens) != len(wantOffsets) {
		t.Fatalf("Expected %d tokens, got %d", len(wantOffsets), len(doc.Tokens))
	}
	for i, tok := range doc.Tokens {
		if tok.Offset != wantOffsets[i] {
			t.Errorf("token %q: expected offset %d, got %d", tok.Text, wantOffsets[i], tok.Offset)
		}
		if tok.Index != i {
			t.Errorf("token %q: expected index %d, got %d", tok.Text, i, tok.Index)
		}
		if text[tok.Offset:tok.End()] != tok.Text {
			t.Errorf("token %q does not match text at its offset", tok.Text)
		}
	}
}

func TestNewDoc_DropsUnalignedWords(t *testing.T) {
	doc := NewDoc("a shaft", []string{"a", "``", "shaft"}, []string{"DT", "``", "NN"}, nil)

	if len(doc.Tokens) != 2 {
		t.Fatalf("Expected 2 tokens, got %d", len(doc.Tokens))
	}
	if doc.Tokens[1].Text != "shaft" || doc.Tokens[1].Tag != "NN" || doc.Tokens[1].Index != 1 {
		t.Errorf("Unexpected second token: %+v", doc.Tokens[1])
	}
}

func TestNewDoc_SentencesFromTerminals(t *testing.T) {
	doc := NewDoc("A gear. A shaft",
		[]string{"A", "gear", ".", "A", "shaft"},
		[]string{"DT", "NN", ".", "DT", "NN"},
		nil)

	got := doc.SentenceTexts()
	want := []string{"A gear.", "A shaft"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestNewDoc_SentencesAligned(t *testing.T) {
	text := "A gear turns. A shaft turns."
	doc := NewDoc(text,
		[]string{"A", "gear", "turns", ".", "A", "shaft", "turns", "."},
		[]string{"DT", "NN", "VBZ", ".", "DT", "NN", "VBZ", "."},
		[]string{"A gear turns.", " A shaft turns. "})

	if len(doc.Sentences) != 2 {
		t.Fatalf("Expected 2 sentences, got %d", len(doc.Sentences))
	}
	if doc.Sentences[1].Start != 4 || doc.Sentences[1].End != 8 {
		t.Errorf("Unexpected second sentence span %+v", doc.Sentences[1])
	}
}

func TestNewDoc_EmptySentences(t *testing.T) {
	doc := NewDoc("", nil, nil, []string{})
	if len(doc.Tokens) != 0 || len(doc.Sentences) != 0 || len(doc.Chunks) != 0 {
		t.Errorf("Expected empty doc, got %+v", doc)
	}
}

func TestDoc_tokenAt(t *testing.T) {
	doc := NewDoc("the shaft", []string{"the", "shaft"}, []string{"DT", "NN"}, nil)

	if got := doc.tokenAt(4); got != 1 {
		t.Errorf("tokenAt(4) = %d, want 1", got)
	}
	if got := doc.tokenAt(5); got != -1 {
		t.Errorf("tokenAt(5) = %d, want -1", got)
	}
}
