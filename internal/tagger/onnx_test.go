package tagger

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"id2label": {"1": "ENT", "0": "O", "2": "REL"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	labels, err := loadLabels(path)
	if err != nil {
		t.Fatalf("loadLabels failed: %v", err)
	}
	if !reflect.DeepEqual(labels, []string{"O", "ENT", "REL"}) {
		t.Errorf("Unexpected labels %v", labels)
	}
}

func TestLoadLabels_Gap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"id2label": {"0": "O", "2": "ENT"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadLabels(path); err == nil {
		t.Error("Expected error for non-contiguous ids")
	}
}

func TestArgmaxRows(t *testing.T) {
	got := argmaxRows([]float32{0.1, 0.9, 0.5, 0.2, 3, -1}, 2)
	if !reflect.DeepEqual(got, []int{1, 0, 0}) {
		t.Errorf("Unexpected %v", got)
	}
}

func TestAggregateWords(t *testing.T) {
	text := "a gearbox"
	// [CLS] a gear ##box [SEP]
	words := []int{-1, 0, 1, 1, -1}
	offsets := [][]int{{0, 0}, {0, 1}, {2, 6}, {6, 9}, {0, 0}}
	predicted := []int{0, 0, 1, 0, 0}

	tokens := aggregateWords(text, words, offsets, predicted, []string{"O", "ENT"})

	want := []Token{
		{Text: "a", Offset: 0, Label: "O"},
		{Text: "gearbox", Offset: 2, Label: "ENT"},
	}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("Expected %+v, got %+v", want, tokens)
	}
}

func TestAggregateWords_RuneOffsets(t *testing.T) {
	text := "µm gear"
	tokens := aggregateWords(text, []int{0, 1}, [][]int{{0, 2}, {3, 7}}, []int{0, 1}, []string{"O", "ENT"})

	if len(tokens) != 2 || tokens[1].Text != "gear" || tokens[1].Offset != 4 {
		t.Errorf("Unexpected tokens %+v", tokens)
	}
}

func TestNewONNXTagger_MissingFiles(t *testing.T) {
	if _, err := NewONNXTagger(ONNXConfig{ModelDir: t.TempDir()}); err == nil {
		t.Error("Expected error for empty model dir")
	}
}
