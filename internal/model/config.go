package model

import "time"

// Config is the complete kgex configuration.
// Field tags serve both yaml.v3 (config show/init) and viper's mapstructure decoding.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Text         TextConfig         `yaml:"text" mapstructure:"text"`
	Patents      PatentsConfig      `yaml:"patents" mapstructure:"patents"`
	Tagger       TaggerConfig       `yaml:"tagger" mapstructure:"tagger"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Models       ModelsConfig       `yaml:"models" mapstructure:"models"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Metrics      MetricsConfig      `yaml:"metrics" mapstructure:"metrics"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// HTTPConfig controls page fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CacheConfig controls the layered page/tagger cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitingConfig controls per-host request rates
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig controls batch parallelism (fetching only; extraction is sequential)
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// Replacement is a literal substring substitution applied during normalization
type Replacement struct {
	From string `yaml:"from" mapstructure:"from"`
	To   string `yaml:"to" mapstructure:"to"`
}

// TextConfig controls normalization and sentence filtering
type TextConfig struct {
	MinTokens       int           `yaml:"min_tokens" mapstructure:"min_tokens"`
	MaxTokens       int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	DependentMarker string        `yaml:"dependent_marker" mapstructure:"dependent_marker"`
	ClaimDelimiter  string        `yaml:"claim_delimiter" mapstructure:"claim_delimiter"`
	RomanNumerals   []string      `yaml:"roman_numerals" mapstructure:"roman_numerals"`
	Replacements    []Replacement `yaml:"replacements" mapstructure:"replacements"`
	Headings        []string      `yaml:"headings" mapstructure:"headings"`
}

// PatentsConfig controls where patent pages are scraped from
type PatentsConfig struct {
	URLTemplate string `yaml:"url_template" mapstructure:"url_template"`
}

// TaggerConfig selects the entity and relation predictors
type TaggerConfig struct {
	EntityBackend   string `yaml:"entity_backend" mapstructure:"entity_backend"`     // rule, onnx, llm
	RelationBackend string `yaml:"relation_backend" mapstructure:"relation_backend"` // rule, onnx, llm
	Device          string `yaml:"device" mapstructure:"device"`                     // auto, cpu, gpu
	ONNXLibrary     string `yaml:"onnx_library,omitempty" mapstructure:"onnx_library"`
	EntityModel     string `yaml:"entity_model" mapstructure:"entity_model"`
	RelationModel   string `yaml:"relation_model" mapstructure:"relation_model"`
	MaxLength       int    `yaml:"max_length" mapstructure:"max_length"`
	CacheResults    bool   `yaml:"cache_results" mapstructure:"cache_results"`
}

// LLMConfig configures the optional LLM-backed tagger
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"` // never written to disk
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ModelSource describes where the files of a model asset are downloaded from
type ModelSource struct {
	BaseURL string   `yaml:"base_url" mapstructure:"base_url"`
	Files   []string `yaml:"files" mapstructure:"files"`
}

// ModelsConfig locates model assets on disk and remotely
type ModelsConfig struct {
	Dir     string                 `yaml:"dir" mapstructure:"dir"`
	Sources map[string]ModelSource `yaml:"sources" mapstructure:"sources"`
}

// StoreConfig controls SQLite persistence of knowledge records
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty" mapstructure:"addr"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "kgex/0.3 (+https://github.com/ppiankov/kgex)",
			MaxBodyBytes:  8_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "~/.kgex/cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 1,
			BurstSize:         2,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Text: TextConfig{
			MinTokens:       15,
			MaxTokens:       100,
			DependentMarker: "DEP",
			ClaimDelimiter:  "*****",
			RomanNumerals:   DefaultRomanNumerals(),
			Replacements:    DefaultReplacements(),
			Headings:        DefaultHeadings(),
		},
		Patents: PatentsConfig{
			URLTemplate: "https://patents.google.com/patent/US%s",
		},
		Tagger: TaggerConfig{
			EntityBackend:   "rule",
			RelationBackend: "rule",
			Device:          "auto",
			EntityModel:     "entity_relation_tagger",
			RelationModel:   "relation_identifier",
			MaxLength:       512,
			CacheResults:    true,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 1000,
		},
		Models: ModelsConfig{
			Dir:     "~/.kgex/models",
			Sources: map[string]ModelSource{},
		},
		Store: StoreConfig{
			Path: "~/.kgex/kgex.db",
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}

// DefaultRomanNumerals returns i..xxx in lower and upper case
func DefaultRomanNumerals() []string {
	ones := []string{"", "i", "ii", "iii", "iv", "v", "vi", "vii", "viii", "ix"}
	tens := []string{"", "x", "xx", "xxx"}

	var out []string
	for _, t := range tens {
		for _, o := range ones {
			n := t + o
			if n == "" {
				continue
			}
			out = append(out, n)
		}
	}
	upper := make([]string, 0, len(out))
	for _, n := range out {
		upper = append(upper, toUpperASCII(n))
	}
	return append(out, upper...)
}

// DefaultReplacements returns the abbreviation and glyph normalization table
func DefaultReplacements() []Replacement {
	return []Replacement{
		{From: "\u00a0", To: " "},
		{From: "\u2009", To: " "},
		{From: "FIGS.", To: "Figures"},
		{From: "FIG.", To: "Figure"},
		{From: "Figs.", To: "Figures"},
		{From: "Fig.", To: "Figure"},
		{From: "e.g.,", To: "for example,"},
		{From: "e.g.", To: "for example"},
		{From: "i.e.,", To: "that is,"},
		{From: "i.e.", To: "that is"},
		{From: "etc.)", To: "etc)"},
		{From: "approx.", To: "approximately"},
		{From: " No.", To: " number"},
		{From: "°C", To: " degrees Celsius"},
		{From: "°", To: " degrees"},
		{From: "µm", To: " micrometers"},
		{From: "μm", To: " micrometers"},
		{From: "&", To: "and"},
		{From: "≥", To: "greater than or equal to"},
		{From: "≤", To: "less than or equal to"},
		{From: " ,", To: ","},
		{From: " .", To: "."},
	}
}

// DefaultHeadings returns the patent sections kept for sentence extraction
func DefaultHeadings() []string {
	return []string{
		"CLAIM",
		"ABSTRACT",
		"TECHNICAL FIELD",
		"FIELD",
		"FIELD OF THE INVENTION",
		"BACKGROUND",
		"BACKGROUND OF THE INVENTION",
		"SUMMARY",
		"SUMMARY OF THE INVENTION",
		"BRIEF SUMMARY",
		"DETAILED DESCRIPTION",
		"DETAILED DESCRIPTION OF THE INVENTION",
		"DETAILED DESCRIPTION OF THE EMBODIMENTS",
		"DESCRIPTION OF EMBODIMENTS",
		"DESCRIPTION OF THE PREFERRED EMBODIMENTS",
		"DETAILED DESCRIPTION OF THE PREFERRED EMBODIMENTS",
	}
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
