package extract

import (
	"strings"

	"github.com/ppiankov/kgex/internal/marker"
	"github.com/ppiankov/kgex/internal/nlp"
	"github.com/ppiankov/kgex/internal/tagger"
)

// EntitySpan is a noun chunk selected as a candidate entity
type EntitySpan struct {
	Text       string `json:"text"`
	Start      int    `json:"start"` // byte offsets, end exclusive
	End        int    `json:"end"`
	StartToken int    `json:"start_token"` // token indices, end exclusive
	EndToken   int    `json:"end_token"`
	Root       int    `json:"root"`
}

// Span returns the byte range used for marking
func (e EntitySpan) Span() marker.Span {
	return marker.Span{Start: e.Start, End: e.End}
}

// ExtractEntities keeps the noun chunks whose root token is labeled as an entity and
// whose text does not mention "claim". labels is parallel to doc.Tokens.
func ExtractEntities(doc *nlp.Doc, labels []string) []EntitySpan {
	var out []EntitySpan
	for _, chunk := range doc.Chunks {
		if chunk.Root >= len(labels) || !tagger.IsEntity(labels[chunk.Root]) {
			continue
		}
		text := doc.SpanText(chunk)
		if strings.Contains(text, "claim") {
			continue
		}
		out = append(out, EntitySpan{
			Text:       text,
			Start:      doc.StartChar(chunk),
			End:        doc.EndChar(chunk),
			StartToken: chunk.Start,
			EndToken:   chunk.End,
			Root:       chunk.Root,
		})
	}
	return out
}

// AlignLabels projects tagger output onto the parser's tokens by byte offset.
// A parser token takes the label of the tagged token starting at the same offset,
// else of the tagged token covering its first byte, else "O".
func AlignLabels(doc *nlp.Doc, tokens []tagger.Token) []string {
	labels := make([]string, len(doc.Tokens))
	for i, tok := range doc.Tokens {
		if l, ok := tagger.LabelAt(tokens, tok.Offset); ok {
			labels[i] = l
		} else if l, ok := tagger.Covering(tokens, tok.Offset); ok {
			labels[i] = l
		} else {
			labels[i] = tagger.LabelOther
		}
	}
	return labels
}

// uniqueLower returns lowercase entity texts, deduplicated in first-occurrence order
func uniqueLower(entities []EntitySpan) []string {
	seen := make(map[string]bool, len(entities))
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		key := strings.ToLower(e.Text)
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}
