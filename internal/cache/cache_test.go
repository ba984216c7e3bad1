package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/kgex/internal/model"
)

func TestKey(t *testing.T) {
	a := Key("tag", "entity", "the gear")
	b := Key("tag", "entity", "the gear")
	c := Key("tag", "relation", "the gear")

	if a != b {
		t.Error("Expected identical parts to produce identical keys")
	}
	if a == c {
		t.Error("Expected different parts to produce different keys")
	}
	if !strings.HasPrefix(a, "kgex:v1:tag:") {
		t.Errorf("Unexpected key prefix: %s", a)
	}
	if Key("x", "ab", "c") == Key("x", "a", "bc") {
		t.Error("Expected part boundaries to matter")
	}
}

func TestDiskCache_SetGet(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	key := PageKey("https://patents.google.com/patent/US1")

	if _, ok := c.Get(key); ok {
		t.Fatal("Expected miss on empty cache")
	}
	if err := c.Set(key, []byte("<html/>"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok := c.Get(key)
	if !ok || string(got) != "<html/>" {
		t.Errorf("Expected hit with stored value, got %q ok=%v", got, ok)
	}
	if err := c.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := c.Delete(key); err != nil {
		t.Errorf("Deleting a missing key should not fail: %v", err)
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Error("Expected expired entry to miss")
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	mem := NewMemoryCache(time.Minute, time.Minute)
	disk := NewDiskCache(t.TempDir(), time.Hour)
	c := NewLayered(mem, disk)

	if err := disk.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if mem.Len() != 0 {
		t.Fatal("Expected empty memory layer")
	}

	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("Expected disk hit, got %q ok=%v", got, ok)
	}
	if mem.Len() != 1 {
		t.Error("Expected disk hit to be promoted to memory")
	}
}

func TestNew_Disabled(t *testing.T) {
	c := New(model.CacheConfig{Enabled: false})
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Disabled cache should never hit")
	}
}
