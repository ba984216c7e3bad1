package worker

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/kgex/internal/extract"
	"github.com/ppiankov/kgex/internal/model"
	"github.com/ppiankov/kgex/internal/patent"
)

// Scanner scans a single patent
type Scanner interface {
	ScanPatent(ctx context.Context, id string, opts ...extract.ExtractOption) (*model.PatentReport, error)
}

// ScanJob scans one patent id
type ScanJob struct {
	PatentID string
	Scanner  Scanner
	onDone   func()
}

// Execute executes the scan job
func (j *ScanJob) Execute(ctx context.Context) Result {
	start := time.Now()
	report, err := j.Scanner.ScanPatent(ctx, j.PatentID)
	if j.onDone != nil {
		j.onDone()
	}
	return &ScanResult{
		PatentID: j.PatentID,
		Report:   report,
		Error:    err,
		Duration: time.Since(start),
	}
}

// ScanResult is the outcome of one patent scan
type ScanResult struct {
	PatentID string
	Report   *model.PatentReport
	Error    error
	Duration time.Duration
}

// GetError returns the error from the scan result
func (r *ScanResult) GetError() error {
	return r.Error
}

// BatchProcessor scans many patents concurrently. Page fetches overlap; extraction
// itself is serialized by the scanner.
type BatchProcessor struct {
	scanner     Scanner
	concurrency int
	logger      *slog.Logger
	progress    func(done, total int)
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(scanner Scanner, concurrency int, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BatchProcessor{
		scanner:     scanner,
		concurrency: concurrency,
		logger:      logger,
	}
}

// SetProgress registers a callback invoked after every finished scan
func (b *BatchProcessor) SetProgress(fn func(done, total int)) {
	b.progress = fn
}

// ProcessIDs scans every id and returns the results in input order
func (b *BatchProcessor) ProcessIDs(ctx context.Context, ids []string) []*ScanResult {
	if len(ids) == 0 {
		return []*ScanResult{}
	}

	var (
		mu   sync.Mutex
		done int
	)
	onDone := func() {
		if b.progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		b.progress(done, len(ids))
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, id := range ids {
		if !pool.Submit(&ScanJob{PatentID: id, Scanner: b.scanner, onDone: onDone}) {
			break
		}
	}

	results := pool.Wait()

	scanResults := make([]*ScanResult, len(results))
	for i, result := range results {
		sr := result.(*ScanResult)
		if sr.Error != nil {
			b.logger.Warn("patent scan failed", "patent", sr.PatentID, "error", sr.Error)
		}
		scanResults[i] = sr
	}
	return scanResults
}

// ProcessFile reads patent ids from a file and scans them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ScanResult, error) {
	ids, err := ReadIDsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read patent ids: %w", err)
	}
	return b.ProcessIDs(ctx, ids), nil
}

// ReadIDsFromFile reads patent ids, one per line. Blank lines and # comments are
// skipped, and ids that normalize to the same number are kept once.
func ReadIDsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key := line
		if normalized, err := patent.NormalizeID(line); err == nil {
			key = normalized
		}
		if !seen[key] {
			seen[key] = true
			ids = append(ids, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return ids, nil
}
