package extract

import (
	"strings"

	"github.com/ppiankov/kgex/internal/model"
)

// SentencesFromSections keeps the sections whose heading is allowed, normalizes each
// text block and segments it into sentences. Missing or empty sections contribute
// nothing.
func SentencesFromSections(sections []model.Section, headings []string, norm *Normalizer, seg *Segmenter) []string {
	allowed := make(map[string]bool, len(headings))
	for _, h := range headings {
		allowed[headingKey(h)] = true
	}

	var out []string
	for _, sec := range sections {
		if !allowed[headingKey(sec.Heading)] {
			continue
		}
		for _, block := range sec.Blocks {
			out = append(out, seg.Segment(norm.Normalize(block))...)
		}
	}
	return out
}

func headingKey(h string) string {
	return strings.ToUpper(strings.Join(strings.Fields(h), " "))
}
