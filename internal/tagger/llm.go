package tagger

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/kgex/internal/llm"
)

var llmTokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+|[^\s\p{L}\p{N}]`)

const entitySystemPrompt = `You label tokens of sentences taken from engineering patents.
Label a token "ENT" when it is part of a noun phrase naming a physical or conceptual design entity
(component, material, assembly, function, property). Label every other token "O".`

const relationSystemPrompt = `You label tokens of sentences taken from engineering patents.
The sentence marks one entity as {HEAD ~ ...} and another as {TAIL ~ ...}.
Label a token "REL" when it belongs to the phrase that expresses how the HEAD entity relates
to the TAIL entity (usually a verb, preposition or verb phrase). Label every other token "O",
including the marker tokens themselves.`

// LLMTagger asks a language model to label pre-split tokens
type LLMTagger struct {
	kind     Kind
	provider llm.Provider
}

// NewLLMTagger creates a tagger of the given kind backed by provider
func NewLLMTagger(kind Kind, provider llm.Provider) *LLMTagger {
	return &LLMTagger{kind: kind, provider: provider}
}

type llmLabels struct {
	Labels []string `json:"labels"`
}

// Tag implements Tagger
func (t *LLMTagger) Tag(ctx context.Context, text string) ([]Token, error) {
	tokens := splitTokens(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	system := entitySystemPrompt
	if t.kind == KindRelation {
		system = relationSystemPrompt
	}

	resp, err := t.provider.Complete(ctx, llm.CompletionRequest{
		System: system,
		Prompt: buildLabelPrompt(tokens),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("llm tagger: %w", err)
	}

	var parsed llmLabels
	if err := json.Unmarshal([]byte(llm.CleanJSON(resp.Text)), &parsed); err != nil {
		return nil, fmt.Errorf("llm tagger: parse labels: %w (response: %s)", err, resp.Text)
	}
	if len(parsed.Labels) != len(tokens) {
		return nil, fmt.Errorf("llm tagger: got %d labels for %d tokens", len(parsed.Labels), len(tokens))
	}

	for i := range tokens {
		tokens[i].Label = strings.ToUpper(strings.TrimSpace(parsed.Labels[i]))
	}
	return tokens, nil
}

func splitTokens(text string) []Token {
	locs := llmTokenPattern.FindAllStringIndex(text, -1)
	tokens := make([]Token, 0, len(locs))
	for _, loc := range locs {
		tokens = append(tokens, Token{Text: text[loc[0]:loc[1]], Offset: loc[0], Label: LabelOther})
	}
	return tokens
}

func buildLabelPrompt(tokens []Token) string {
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = tok.Text
	}
	encoded, _ := json.Marshal(words)

	return fmt.Sprintf(`Tokens (%d):
%s

Reply with ONLY a JSON object of the form {"labels": [...]} holding exactly one label per token, in order.`,
		len(tokens), encoded)
}
