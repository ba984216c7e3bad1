package nlp

// NounChunks groups tagged tokens into base noun phrases.
//
// A chunk is an optional run of determiners, possessives, numbers and adjectives
// followed by one or more nouns; the last noun is the root. Once a noun has been
// seen only further nouns extend the chunk, so "claim 1" yields the chunk "claim".
// Personal pronouns form single-token chunks.
func NounChunks(tokens []Token) []Span {
	var chunks []Span

	i := 0
	for i < len(tokens) {
		tag := tokens[i].Tag

		if tag == "PRP" {
			chunks = append(chunks, Span{Start: i, End: i + 1, Root: i})
			i++
			continue
		}

		if !startsChunk(tag) {
			i++
			continue
		}

		start := i
		lastNoun := -1
		j := i
		for j < len(tokens) {
			t := tokens[j].Tag
			if isNoun(t) {
				lastNoun = j
			} else if lastNoun >= 0 || !isModifier(t) {
				break
			}
			j++
		}

		if lastNoun < 0 {
			i = j
			if i == start {
				i++
			}
			continue
		}

		chunks = append(chunks, Span{Start: start, End: lastNoun + 1, Root: lastNoun})
		i = lastNoun + 1
	}

	return chunks
}

func isNoun(tag string) bool {
	switch tag {
	case "NN", "NNS", "NNP", "NNPS":
		return true
	}
	return false
}

func isModifier(tag string) bool {
	switch tag {
	case "DT", "PDT", "PRP$", "CD", "JJ", "JJR", "JJS", "VBN", "VBG":
		return true
	}
	return false
}

// participles only modify inside a chunk that something else opened
func startsChunk(tag string) bool {
	if tag == "VBN" || tag == "VBG" {
		return false
	}
	return isNoun(tag) || isModifier(tag)
}
