// Package metrics is the instrumentation surface of kgex: a Recorder interface with a
// no-op default and a Prometheus implementation served on /metrics.
package metrics

import "time"

// Recorder defines the metrics surface used across the codebase
type Recorder interface {
	ObserveTagger(kind string, success bool, seconds float64)
	IncSentences(outcome string)
	AddFacts(n int)
	IncFetch(source string, success bool)
	ObserveTool(tool string, success bool, seconds float64)
}

// Sentence outcomes
const (
	SentenceProcessed = "processed"
	SentenceFailed    = "failed"
)

// Fetch sources
const (
	FetchNetwork = "network"
	FetchCache   = "cache"
)

// Noop implements Recorder with no-ops
type Noop struct{}

func (Noop) ObserveTagger(string, bool, float64) {}
func (Noop) IncSentences(string)                 {}
func (Noop) AddFacts(int)                        {}
func (Noop) IncFetch(string, bool)               {}
func (Noop) ObserveTool(string, bool, float64)   {}

// OrNoop returns r, or a no-op recorder when r is nil
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return Noop{}
	}
	return r
}

// TimeTagger starts timing a tagger call; call the result with the outcome
func TimeTagger(r Recorder, kind string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		r.ObserveTagger(kind, success, time.Since(start).Seconds())
	}
}

// TimeTool starts timing an MCP tool handler
func TimeTool(r Recorder, tool string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		r.ObserveTool(tool, success, time.Since(start).Seconds())
	}
}
