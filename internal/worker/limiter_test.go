package worker

import (
	"context"
	"testing"
	"time"

	"github.com/ppiankov/kgex/internal/model"
)

func TestLimiter_New(t *testing.T) {
	if l := NewLimiter(10, 5); l.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", l.defaultBurst)
	}
	if l := NewLimiter(10, -1); l.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l.defaultBurst)
	}
	l := NewLimiterFromConfig(model.RateLimitingConfig{RequestsPerSecond: 0, BurstSize: 1})
	for i := 0; i < 10; i++ {
		if !l.Allow("https://patents.google.com/patent/US1") {
			t.Fatal("expected unlimited rate for 0 requests per second")
		}
	}
}

func TestLimiter_PerHost(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if err := limiter.Wait(context.Background(), "https://patents.google.com/a"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}
	if limiter.Allow("https://patents.google.com/b") {
		t.Error("expected the host's only token to be consumed")
	}
	if !limiter.Allow("https://other.example/a") {
		t.Error("expected another host to have its own limiter")
	}
}

func TestLimiter_InvalidURL(t *testing.T) {
	limiter := NewLimiter(1, 1)
	if limiter.Allow("/relative/path") {
		t.Error("expected URL without host to be refused")
	}
	if err := limiter.Wait(context.Background(), "::invalid"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestLimiter_SetHostRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetHostRate("slow.example", 0.1, 1)

	if !limiter.Allow("http://slow.example") {
		t.Error("first request should pass")
	}
	if limiter.Allow("http://slow.example") {
		t.Error("second request should fail")
	}
	if !limiter.Allow("http://fast.example") {
		t.Error("other host should pass")
	}
}

func TestLimiter_SetCrawlDelay(t *testing.T) {
	limiter := NewLimiter(100, 5)
	limiter.SetCrawlDelay("patents.google.com", time.Minute)

	if !limiter.Allow("https://patents.google.com/a") {
		t.Error("first request should pass")
	}
	if limiter.Allow("https://patents.google.com/b") {
		t.Error("crawl delay should allow a single request per minute")
	}

	// a shorter delay never speeds a host up
	limiter.SetCrawlDelay("patents.google.com", time.Millisecond)
	if limiter.Allow("https://patents.google.com/c") {
		t.Error("shorter crawl delay should not replace the slower limit")
	}

	// hosts already slower than the delay keep their rate
	slow := NewLimiter(0.001, 1)
	slow.SetCrawlDelay("x.example", time.Second)
	if _, ok := slow.hosts["x.example"]; ok {
		t.Error("expected no override for a host slower than the delay")
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(0.001, 1)
	url := "https://patents.google.com/x"
	_ = limiter.Wait(context.Background(), url)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, url); err == nil {
		t.Error("expected wait to fail once the context expires")
	}
}
