package model

import "time"

// PatentReport is the complete output of scanning one patent
type PatentReport struct {
	PatentID  string    `json:"patent_id"`
	Title     string    `json:"title,omitempty"`
	SourceURL string    `json:"source_url"`
	FetchedAt time.Time `json:"fetched_at"`
	FetchMeta FetchMeta `json:"fetch_meta"`

	Sections  []string          `json:"sections"`  // section headings found on the page, in page order
	Sentences []string          `json:"sentences"` // normalized sentences kept by the length filter
	Records   []KnowledgeRecord `json:"records"`

	Summary Summary `json:"summary"`
}

// FetchMeta contains HTTP metadata from fetching the source
type FetchMeta struct {
	StatusCode   int               `json:"status_code"`
	ContentType  string            `json:"content_type,omitempty"`
	LastModified string            `json:"last_modified,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	FromCache    bool              `json:"from_cache"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// Summary aggregates counts over a set of knowledge records
type Summary struct {
	Sentences       int             `json:"sentences"`
	RecordsWithFact int             `json:"records_with_facts"`
	Entities        int             `json:"unique_entities"`
	Facts           int             `json:"facts"`
	FactsPerRecord  float64         `json:"facts_per_record"`
	TopRelations    []RelationCount `json:"top_relations,omitempty"`
}

// RelationCount is a relation phrase and how many facts used it
type RelationCount struct {
	Relation string `json:"relation"`
	Count    int    `json:"count"`
}
