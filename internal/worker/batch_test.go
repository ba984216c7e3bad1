package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/kgex/internal/extract"
	"github.com/ppiankov/kgex/internal/model"
)

type mockScanner struct {
	fail map[string]bool
}

func (m *mockScanner) ScanPatent(ctx context.Context, id string, _ ...extract.ExtractOption) (*model.PatentReport, error) {
	// later ids finish first
	time.Sleep(time.Duration(10-len(id)%10) * time.Millisecond)
	if m.fail[id] {
		return nil, errors.New("scan error")
	}
	return &model.PatentReport{PatentID: id}, nil
}

func writeIDs(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ids.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessIDs(t *testing.T) {
	processor := NewBatchProcessor(&mockScanner{fail: map[string]bool{"2222222": true}}, 3, nil)

	var mu sync.Mutex
	var progress []int
	processor.SetProgress(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, done)
		if total != 4 {
			t.Errorf("expected total 4, got %d", total)
		}
	})

	ids := []string{"1111111", "2222222", "33333333", "444444444"}
	results := processor.ProcessIDs(context.Background(), ids)

	if len(results) != len(ids) {
		t.Fatalf("expected %d results, got %d", len(ids), len(results))
	}
	for i, res := range results {
		if res.PatentID != ids[i] {
			t.Errorf("result %d: expected %s, got %s", i, ids[i], res.PatentID)
		}
	}
	if results[1].Error == nil || results[1].Report != nil {
		t.Errorf("expected failure for 2222222, got %+v", results[1])
	}
	if results[0].Error != nil || results[0].Report == nil {
		t.Errorf("expected success for 1111111, got %+v", results[0])
	}

	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(progress, []int{1, 2, 3, 4}) {
		t.Errorf("unexpected progress %v", progress)
	}
}

func TestBatchProcessor_ProcessIDs_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockScanner{}, 2, nil)
	if results := processor.ProcessIDs(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadIDsFromFile(t *testing.T) {
	path := writeIDs(t, "# patents to scan\n7654321\n\n  US 7,654,321  \n10123456B2\nnot-an-id\n")

	ids, err := ReadIDsFromFile(path)
	if err != nil {
		t.Fatalf("ReadIDsFromFile failed: %v", err)
	}
	want := []string{"7654321", "10123456B2", "not-an-id"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}
}

func TestReadIDsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadIDsFromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeIDs(t, "1111111\n2222222\n# comment\n")
	processor := NewBatchProcessor(&mockScanner{}, 2, nil)

	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}

	if _, err := processor.ProcessFile(context.Background(), "no_such_file.txt"); err == nil || !strings.Contains(err.Error(), "read patent ids") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestScanResult_GetError(t *testing.T) {
	expected := errors.New("scan failed")
	if (&ScanResult{}).GetError() != nil {
		t.Error("expected nil error")
	}
	if (&ScanResult{Error: expected}).GetError() != expected {
		t.Error("expected wrapped error to be returned")
	}
}
