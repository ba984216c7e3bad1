package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheus_Counters(t *testing.T) {
	p := NewPrometheus()

	p.ObserveTagger("entity", true, 0.01)
	p.ObserveTagger("entity", true, 0.02)
	p.ObserveTagger("relation", false, 0.5)
	p.IncSentences(SentenceProcessed)
	p.AddFacts(3)
	p.IncFetch(FetchCache, true)

	if got := testutil.ToFloat64(p.taggerTotal.WithLabelValues("entity", "true")); got != 2 {
		t.Errorf("Expected 2 entity calls, got %v", got)
	}
	if got := testutil.ToFloat64(p.taggerTotal.WithLabelValues("relation", "false")); got != 1 {
		t.Errorf("Expected 1 failed relation call, got %v", got)
	}
	if got := testutil.ToFloat64(p.factsTotal); got != 3 {
		t.Errorf("Expected 3 facts, got %v", got)
	}
}

func TestPrometheus_Handler(t *testing.T) {
	p := NewPrometheus()
	p.IncSentences(SentenceFailed)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if !strings.Contains(string(body), `kgex_sentences_total{outcome="failed"} 1`) {
		t.Errorf("Expected sentence counter in output, got:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /healthz, got %d", resp.StatusCode)
	}
}

func TestTimeTagger(t *testing.T) {
	p := NewPrometheus()
	done := TimeTagger(p, "entity")
	done(true)

	if got := testutil.ToFloat64(p.taggerTotal.WithLabelValues("entity", "true")); got != 1 {
		t.Errorf("Expected 1 call, got %v", got)
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(Noop); !ok {
		t.Error("Expected Noop for nil recorder")
	}
}
