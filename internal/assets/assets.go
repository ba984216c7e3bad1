// Package assets downloads and locates the model files used by the ONNX taggers.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/ppiankov/kgex/internal/cache"
	"github.com/ppiankov/kgex/internal/model"
	"github.com/ppiankov/kgex/internal/util"
)

// ErrUnknownModel is returned when a model has no configured source and is not on disk
var ErrUnknownModel = errors.New("unknown model")

const lockRetry = 250 * time.Millisecond

// Manager resolves model names to directories under its root, downloading missing files
type Manager struct {
	root       string
	sources    map[string]model.ModelSource
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewManager creates a manager over cfg.Dir using the http settings for downloads
func NewManager(cfg model.ModelsConfig, httpCfg model.HTTPConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		root:    cache.ExpandHome(cfg.Dir),
		sources: cfg.Sources,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
			},
		},
		userAgent: httpCfg.UserAgent,
		logger:    logger,
	}
}

// Dir returns the directory of a model, whether or not it exists
func (m *Manager) Dir(name string) string {
	return filepath.Join(m.root, name)
}

// Ensure returns the directory of the named model, downloading its files first when
// any is missing. Concurrent callers, including other processes, wait on a file lock.
func (m *Manager) Ensure(ctx context.Context, name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	dir := m.Dir(name)
	src, known := m.sources[name]

	if !known {
		if present(dir, nil) {
			return dir, nil
		}
		return "", fmt.Errorf("%w: %s (no source configured and %s is missing)", ErrUnknownModel, name, dir)
	}
	if present(dir, src.Files) {
		return dir, nil
	}

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return "", fmt.Errorf("create models dir: %w", err)
	}

	lock := flock.New(filepath.Join(m.root, "."+name+".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return "", fmt.Errorf("acquiring model lock: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("acquiring model lock: %s is busy", name)
	}
	defer func() { _ = lock.Unlock() }()

	// another process may have finished while we waited
	if present(dir, src.Files) {
		return dir, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}
	for _, file := range src.Files {
		target := filepath.Join(dir, file)
		if _, err := os.Stat(target); err == nil {
			continue
		}
		if err := m.download(ctx, src.BaseURL, file, target); err != nil {
			return "", fmt.Errorf("download %s/%s: %w", name, file, err)
		}
		m.logger.Info("downloaded model file", "model", name, "file", file)
	}
	return dir, nil
}

func (m *Manager) download(ctx context.Context, baseURL, file, target string) error {
	u, err := url.JoinPath(baseURL, file)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if m.userAgent != "" {
		req.Header.Set("User-Agent", m.userAgent)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return os.Rename(tmpName, target)
}

// present reports whether dir holds every file; with no files listed, any
// non-empty directory counts
func present(dir string, files []string) bool {
	if len(files) == 0 {
		entries, err := os.ReadDir(dir)
		return err == nil && len(entries) > 0
	}
	for _, f := range files {
		if info, err := os.Stat(filepath.Join(dir, f)); err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid model name %q", name)
	}
	return nil
}
