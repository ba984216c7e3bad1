package extract

import (
	"strings"

	"github.com/ppiankov/kgex/internal/model"
	"github.com/ppiankov/kgex/internal/tagger"
)

// RelationTokens returns the texts of relation-labeled tokens, in order
func RelationTokens(tokens []tagger.Token) []string {
	var out []string
	for _, tok := range tokens {
		if tagger.IsRelation(tok.Label) {
			out = append(out, tok.Text)
		}
	}
	return out
}

// AcceptFact decides whether a head/tail pair with the given relation tokens forms a fact.
// A bare "of" or "via" is only trusted when it is the single token between head and
// tail, and then keeps the original casing; everything else is lowercased.
func AcceptFact(head, tail EntitySpan, relations []string) (model.Fact, bool) {
	if len(relations) == 0 {
		return model.Fact{}, false
	}

	if len(relations) == 1 && (relations[0] == "of" || relations[0] == "via") {
		if head.EndToken+1 != tail.StartToken {
			return model.Fact{}, false
		}
		return model.Fact{Head: head.Text, Relation: relations[0], Tail: tail.Text}, true
	}

	return model.Fact{
		Head:     strings.ToLower(head.Text),
		Relation: strings.ToLower(strings.Join(relations, " ")),
		Tail:     strings.ToLower(tail.Text),
	}, true
}
