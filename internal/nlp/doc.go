// Package nlp holds the syntactic view of a sentence that the extraction core consumes:
// tokens with byte offsets and POS tags, sentence spans, and noun chunks.
package nlp

import "strings"

// Token is a single word of a parsed text
type Token struct {
	Index  int    `json:"index"` // position of the token in Doc.Tokens
	Text   string `json:"text"`
	Offset int    `json:"idx"` // byte offset of the token in Doc.Text
	Tag    string `json:"tag"` // Penn Treebank POS tag
}

// End returns the byte offset just past the token
func (t Token) End() int {
	return t.Offset + len(t.Text)
}

// Span is a contiguous run of tokens [Start, End) with a syntactic head at Root
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Root  int `json:"root"`
}

// Len returns the number of tokens in the span
func (s Span) Len() int {
	return s.End - s.Start
}

// Doc is a parsed text
type Doc struct {
	Text      string  `json:"text"`
	Tokens    []Token `json:"tokens"`
	Sentences []Span  `json:"sentences"`
	Chunks    []Span  `json:"chunks"` // noun chunks, left to right
}

// Parser turns raw text into a Doc
type Parser interface {
	Parse(text string) (*Doc, error)
}

// StartChar returns the byte offset where the span begins
func (d *Doc) StartChar(s Span) int {
	return d.Tokens[s.Start].Offset
}

// EndChar returns the byte offset just past the span
func (d *Doc) EndChar(s Span) int {
	return d.Tokens[s.End-1].End()
}

// SpanText returns the original text covered by the span
func (d *Doc) SpanText(s Span) string {
	if s.Len() <= 0 {
		return ""
	}
	return d.Text[d.StartChar(s):d.EndChar(s)]
}

// SentenceTexts returns the text of every sentence span
func (d *Doc) SentenceTexts() []string {
	out := make([]string, 0, len(d.Sentences))
	for _, s := range d.Sentences {
		if t := d.SpanText(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// tokenAt returns the index of the token starting at the byte offset, or -1
func (d *Doc) tokenAt(offset int) int {
	for _, tok := range d.Tokens {
		if tok.Offset == offset {
			return tok.Index
		}
		if tok.Offset > offset {
			break
		}
	}
	return -1
}

// NewDoc aligns tokenizer output back onto text and derives sentence and chunk spans.
// Words that cannot be found in order are dropped, since they have no offset.
// When sentences is nil, sentences end at terminal punctuation tokens.
func NewDoc(text string, words, tags []string, sentences []string) *Doc {
	doc := &Doc{Text: text}

	cursor := 0
	for i, w := range words {
		if w == "" {
			continue
		}
		idx := strings.Index(text[cursor:], w)
		if idx < 0 {
			continue
		}
		tag := ""
		if i < len(tags) {
			tag = tags[i]
		}
		offset := cursor + idx
		doc.Tokens = append(doc.Tokens, Token{
			Index:  len(doc.Tokens),
			Text:   w,
			Offset: offset,
			Tag:    tag,
		})
		cursor = offset + len(w)
	}

	if sentences == nil {
		doc.Sentences = splitOnTerminals(doc.Tokens)
	} else {
		doc.Sentences = alignSentences(text, doc.Tokens, sentences)
	}
	doc.Chunks = NounChunks(doc.Tokens)

	return doc
}

func splitOnTerminals(tokens []Token) []Span {
	var spans []Span
	start := 0
	for i, tok := range tokens {
		switch tok.Text {
		case ".", "!", "?":
			spans = append(spans, Span{Start: start, End: i + 1, Root: start})
			start = i + 1
		}
	}
	if start < len(tokens) {
		spans = append(spans, Span{Start: start, End: len(tokens), Root: start})
	}
	return spans
}

func alignSentences(text string, tokens []Token, sentences []string) []Span {
	var spans []Span
	cursor := 0
	next := 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		idx := strings.Index(text[cursor:], s)
		if idx < 0 {
			continue
		}
		begin := cursor + idx
		end := begin + len(s)
		cursor = end

		for next < len(tokens) && tokens[next].Offset < begin {
			next++
		}
		first := next
		for next < len(tokens) && tokens[next].End() <= end {
			next++
		}
		if next > first {
			spans = append(spans, Span{Start: first, End: next, Root: first})
		}
	}
	return spans
}
