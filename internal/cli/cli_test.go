package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/kgex/internal/model"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New())
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	want := model.DefaultConfig()
	if cfg.HTTP.Timeout != want.HTTP.Timeout {
		t.Errorf("Expected timeout %v, got %v", want.HTTP.Timeout, cfg.HTTP.Timeout)
	}
	if cfg.Text.MinTokens != 15 || cfg.Text.MaxTokens != 100 {
		t.Errorf("Unexpected token window %d..%d", cfg.Text.MinTokens, cfg.Text.MaxTokens)
	}
	if !reflect.DeepEqual(cfg.Text.Headings, want.Text.Headings) {
		t.Errorf("Expected headings %v, got %v", want.Text.Headings, cfg.Text.Headings)
	}
	if !reflect.DeepEqual(cfg.Text.Replacements, want.Text.Replacements) {
		t.Errorf("Expected replacements %v, got %v", want.Text.Replacements, cfg.Text.Replacements)
	}
	if cfg.RateLimiting.RequestsPerSecond != want.RateLimiting.RequestsPerSecond {
		t.Errorf("Unexpected rate %v", cfg.RateLimiting.RequestsPerSecond)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("KGEX_HTTP_TIMEOUT", "10s")
	t.Setenv("KGEX_TEXT_MIN_TOKENS", "5")
	t.Setenv("KGEX_TAGGER_ENTITY_BACKEND", "onnx")
	t.Setenv("KGEX_LLM_API_KEY", "secret")
	t.Setenv("KGEX_METRICS_ADDR", ":9464")

	cfg, err := loadConfig(viper.New())
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.HTTP.Timeout != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %v", cfg.HTTP.Timeout)
	}
	if cfg.Text.MinTokens != 5 {
		t.Errorf("Expected min tokens 5, got %d", cfg.Text.MinTokens)
	}
	if cfg.Tagger.EntityBackend != "onnx" {
		t.Errorf("Expected onnx entity backend, got %q", cfg.Tagger.EntityBackend)
	}
	if cfg.LLM.APIKey != "secret" {
		t.Errorf("Expected API key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Metrics.Addr != ":9464" {
		t.Errorf("Expected metrics addr from env, got %q", cfg.Metrics.Addr)
	}
}

func TestLoadConfig_ProviderEnv(t *testing.T) {
	t.Setenv("KGEX_LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := loadConfig(viper.New())
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("Expected OPENAI_API_KEY fallback, got %q", cfg.LLM.APIKey)
	}
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kgex", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}
	if err := writeDefaultConfig(path); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected refusal to overwrite, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.Replace(string(data), "min_tokens: 15", "min_tokens: 7", 1)
	if edited == string(data) {
		t.Fatal("Expected min_tokens in the written config")
	}
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig failed: %v", err)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Text.MinTokens != 7 {
		t.Errorf("Expected min tokens 7 from file, got %d", cfg.Text.MinTokens)
	}
	if cfg.Cache.DiskTTL != model.DefaultConfig().Cache.DiskTTL {
		t.Errorf("Unexpected disk TTL %v", cfg.Cache.DiskTTL)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"US7654321B2", "US7654321B2"},
		{"a/b:c", "a_b_c"},
		{" spaced name ", "spaced-name"},
		{"..", "report"},
		{"", "report"},
		{strings.Repeat("x", 120), strings.Repeat("x", 100)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitLines(t *testing.T) {
	got := splitLines("A gear.\n\n  A shaft.  \r\n")
	want := []string{"A gear.", "A shaft."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func extractJSON(t *testing.T, sentences ...string) []model.KnowledgeRecord {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := writeDefaultConfig(configPath); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{
		"--config", configPath,
		"extract", "--no-cache", "--json", "-",
	}, sentences...))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	var records []model.KnowledgeRecord
	if err := json.Unmarshal(out.Bytes(), &records); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	return records
}

func TestExtractCommand_JSON(t *testing.T) {
	records := extractJSON(t, "The motor drives the shaft.")
	if len(records) != 1 || records[0].Sentence != "The motor drives the shaft." {
		t.Errorf("Unexpected records %+v", records)
	}
}

func TestExtractCommand_NormalizesArguments(t *testing.T) {
	records := extractJSON(t, "3. The motor (M1) drives the shaft.")
	if len(records) != 1 || records[0].Sentence != "The motor drives the shaft." {
		t.Errorf("Unexpected records %+v", records)
	}
}
