// Package stats aggregates knowledge records into report summaries.
package stats

import (
	"math"
	"sort"

	"github.com/ppiankov/kgex/internal/model"
)

// DefaultTopRelations is the number of relation phrases kept in a summary
const DefaultTopRelations = 10

// Summarize counts sentences, facts and unique entities over records.
// sentences is the number of sentences submitted, which may exceed len(records)
// when some were skipped.
func Summarize(sentences int, records []model.KnowledgeRecord) model.Summary {
	return SummarizeTop(sentences, records, DefaultTopRelations)
}

// SummarizeTop is Summarize keeping at most top relation phrases
func SummarizeTop(sentences int, records []model.KnowledgeRecord, top int) model.Summary {
	summary := model.Summary{Sentences: sentences}

	entities := make(map[string]bool)
	relations := make(map[string]int)
	for _, rec := range records {
		for _, e := range rec.Entities {
			entities[e] = true
		}
		if len(rec.Facts) > 0 {
			summary.RecordsWithFact++
		}
		for _, f := range rec.Facts {
			summary.Facts++
			relations[f.Relation]++
		}
	}
	summary.Entities = len(entities)

	if len(records) > 0 {
		summary.FactsPerRecord = round2(float64(summary.Facts) / float64(len(records)))
	}
	summary.TopRelations = topRelations(relations, top)

	return summary
}

// topRelations orders by count descending, then phrase ascending
func topRelations(counts map[string]int, top int) []model.RelationCount {
	if len(counts) == 0 || top <= 0 {
		return nil
	}

	out := make([]model.RelationCount, 0, len(counts))
	for rel, n := range counts {
		out = append(out, model.RelationCount{Relation: rel, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Relation < out[j].Relation
	})

	if len(out) > top {
		out = out[:top]
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
