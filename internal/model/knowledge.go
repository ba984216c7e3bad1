package model

// Fact is an accepted (head, relation, tail) triple
type Fact struct {
	Head     string `json:"head"`
	Relation string `json:"relation"`
	Tail     string `json:"tail"`
}

// Triple returns the fact as a three-element slice, the shape downstream graph tools expect
func (f Fact) Triple() []string {
	return []string{f.Head, f.Relation, f.Tail}
}

// KnowledgeRecord is the extraction output for a single sentence.
// Records are independent: nothing is shared between sentences.
type KnowledgeRecord struct {
	Sentence string   `json:"sentence"`
	Entities []string `json:"entities"` // lowercase, deduplicated, first-occurrence order
	Facts    []Fact   `json:"facts"`
}

// Section is a heading-keyed group of raw text blocks scraped from a patent page
type Section struct {
	Heading string   `json:"heading"`
	Blocks  []string `json:"blocks"`
}
