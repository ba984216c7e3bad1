package nlp

import "testing"

func tagged(pairs ...string) []Token {
	var tokens []Token
	offset := 0
	for i := 0; i+1 < len(pairs); i += 2 {
		tokens = append(tokens, Token{Index: len(tokens), Text: pairs[i], Offset: offset, Tag: pairs[i+1]})
		offset += len(pairs[i]) + 1
	}
	return tokens
}

func chunkTexts(tokens []Token, spans []Span) []string {
	var out []string
	for _, s := range spans {
		text := ""
		for i := s.Start; i < s.End; i++ {
			if i > s.Start {
				text += " "
			}
			text += tokens[i].Text
		}
		out = append(out, text+"/"+tokens[s.Root].Text)
	}
	return out
}

func TestNounChunks(t *testing.T) {
	tests := []struct {
		name   string
		tokens []Token
		want   []string
	}{
		{
			name:   "determiner adjective noun",
			tokens: tagged("the", "DT", "electric", "JJ", "motor", "NN", "drives", "VBZ", "a", "DT", "shaft", "NN"),
			want:   []string{"the electric motor/motor", "a shaft/shaft"},
		},
		{
			name:   "compound noun root is last noun",
			tokens: tagged("the", "DT", "gear", "NN", "box", "NN", "housing", "NN"),
			want:   []string{"the gear box housing/housing"},
		},
		{
			name:   "claim number breaks the chunk",
			tokens: tagged("the", "DT", "device", "NN", "of", "IN", "claim", "NN", "1", "CD", ",", ","),
			want:   []string{"the device/device", "claim/claim"},
		},
		{
			name:   "pronoun chunk",
			tokens: tagged("it", "PRP", "rotates", "VBZ", "the", "DT", "wheel", "NN"),
			want:   []string{"it/it", "the wheel/wheel"},
		},
		{
			name:   "participle inside chunk only",
			tokens: tagged("rotating", "VBG", "the", "DT", "rotating", "VBG", "shaft", "NN"),
			want:   []string{"the rotating shaft/shaft"},
		},
		{
			name:   "modifiers without noun",
			tokens: tagged("the", "DT", "first", "JJ", "is", "VBZ", "large", "JJ"),
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunkTexts(tt.tokens, NounChunks(tt.tokens))
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}
