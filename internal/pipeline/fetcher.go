package pipeline

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/ppiankov/kgex/internal/cache"
	"github.com/ppiankov/kgex/internal/metrics"
	"github.com/ppiankov/kgex/internal/model"
	"github.com/ppiankov/kgex/internal/util"
)

const maxFetchAttempts = 3

// fetchSleepFunc is replaced in tests
var fetchSleepFunc = time.Sleep

// Waiter blocks until a request to rawURL may be sent
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

type crawlDelayer interface {
	SetCrawlDelay(host string, delay time.Duration)
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Fetcher fetches patent pages, consulting the page cache before the network
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64

	cache    cache.Cache
	cacheTTL time.Duration
	robots   *util.RobotsChecker
	limiter  Waiter
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, insecureTLS bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
	}
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via http.insecure_tls
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
		cache:     cache.Noop{},
		recorder:  metrics.Noop{},
		logger:    slog.New(slog.DiscardHandler),
	}
}

// NewFetcherFromConfig builds a fetcher from the http section of the configuration
func NewFetcherFromConfig(cfg model.HTTPConfig) *Fetcher {
	f := NewFetcher(cfg.Timeout, cfg.UserAgent, cfg.MaxBodyBytes, cfg.InsecureTLS, cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(cfg.UserAgent, cfg.Timeout, time.Hour)
	}
	return f
}

// SetCache stores fetched bodies in c for ttl
func (f *Fetcher) SetCache(c cache.Cache, ttl time.Duration) {
	if c == nil {
		c = cache.Noop{}
	}
	f.cache, f.cacheTTL = c, ttl
}

// SetLimiter throttles network requests
func (f *Fetcher) SetLimiter(w Waiter) { f.limiter = w }

// SetRobots gates network requests on robots.txt; nil disables the check
func (f *Fetcher) SetRobots(r *util.RobotsChecker) { f.robots = r }

// SetRecorder records fetch outcomes
func (f *Fetcher) SetRecorder(r metrics.Recorder) { f.recorder = metrics.OrNoop(r) }

// SetLogger sets the logger for retries and cache writes
func (f *Fetcher) SetLogger(l *slog.Logger) {
	if l != nil {
		f.logger = l
	}
}

// FetchResult contains the fetched HTML and metadata
type FetchResult struct {
	HTML     string
	Meta     model.FetchMeta
	FinalURL string
}

// Fetch returns the page at rawURL from the cache, or retrieves it with a single request
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if body, ok := f.cache.Get(cache.PageKey(rawURL)); ok {
		f.recorder.IncFetch(metrics.FetchCache, true)
		return &FetchResult{
			HTML:     string(body),
			Meta:     model.FetchMeta{StatusCode: http.StatusOK, FromCache: true},
			FinalURL: rawURL,
		}, nil
	}

	result, err := f.fetchNetwork(ctx, rawURL)
	f.recorder.IncFetch(metrics.FetchNetwork, err == nil)
	if err != nil {
		return nil, err
	}

	if err := f.cache.Set(cache.PageKey(rawURL), []byte(result.HTML), f.cacheTTL); err != nil {
		f.logger.Warn("cache page", "url", rawURL, "error", err)
	}
	return result, nil
}

// FetchWithRetry is Fetch with up to three attempts on transient failures
// (5xx, 429, connection errors), backing off 1s then 2s.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) || attempt == maxFetchAttempts || ctx.Err() != nil {
			break
		}
		backoff := time.Duration(1<<(attempt-1)) * time.Second
		f.logger.Debug("retrying fetch", "url", rawURL, "attempt", attempt, "backoff", backoff, "error", err)
		fetchSleepFunc(backoff)
	}
	return nil, lastErr
}

func (f *Fetcher) fetchNetwork(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", util.ErrDisallowed, rawURL)
		}
		if cd, ok := f.limiter.(crawlDelayer); ok && delay > 0 {
			if u, err := url.Parse(rawURL); err == nil {
				cd.SetCrawlDelay(u.Host, delay)
			}
		}
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	meta := model.FetchMeta{
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         resp.Header.Get("ETag"),
		Headers:      make(map[string]string),
	}
	for _, key := range []string{"Content-Length", "Server", "Cache-Control"} {
		if val := resp.Header.Get(key); val != "" {
			meta.Headers[key] = val
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		HTML:     string(body),
		Meta:     meta,
		FinalURL: resp.Request.URL.String(),
	}, nil
}

func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var status *StatusError
	if errors.As(err, &status) {
		return status.Code == http.StatusTooManyRequests || status.Code >= 500
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
