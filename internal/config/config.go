package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverValkey   = "valkey"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Language model drivers.
const (
	LLMDriverOpenAI = "openai"
	LLMDriverOllama = "ollama"
)

// Config holds the revdex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"` // host:port of an OTLP/HTTP collector, empty = disabled
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
	ServiceName string  `yaml:"service_name"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, postgres, memory (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DSN              string   `yaml:"dsn"`
	Table            string   `yaml:"table"`
	MaxConns         int      `yaml:"max_conns"`
	Path             string   `yaml:"path"` // JSONL corpus for the memory driver
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	QueryTimeoutSec  int      `yaml:"query_timeout_sec"`
}

// Vector index algorithms of the Valkey/Redis FT index.
const (
	IndexAlgorithmHNSW = "hnsw"
	IndexAlgorithmFlat = "flat"
)

// IndexConfig holds FT vector index settings. flat is exact KNN, fine for small corpora.
type IndexConfig struct {
	Algorithm       string `yaml:"algorithm"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix  string `yaml:"key_prefix"`
	Collection string `yaml:"collection"`
	// CacheSize bounds the in-process embedding cache used when the store has no KV.
	CacheSize   int `yaml:"cache_size"`
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers   map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers map[string]VectorizerConfig `yaml:"vectorizers"`
	// Vectorizer selects an entry of Vectorizers; empty picks the only one.
	Vectorizer string `yaml:"vectorizer"`
	TimeoutSec int    `yaml:"timeout_sec"`
	BatchSize  int    `yaml:"batch_size"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit      int64   `yaml:"daily_token_limit"`       // 0 = unlimited
	MonthlyTokenLimit    int64   `yaml:"monthly_token_limit"`     // 0 = unlimited
	CostPerMillionTokens float64 `yaml:"cost_per_million_tokens"` // для дашборда
	Action               string  `yaml:"action"`                  // "reject" | "warn" (default)
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey  string       `yaml:"api_key"`
	BaseURL string       `yaml:"base_url"`
	Budget  BudgetConfig `yaml:"budget"`
}

// VectorizerConfig holds vectorizer settings.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// LLMConfig holds language model settings for the summarizer.
type LLMConfig struct {
	Driver            string   `yaml:"driver"` // openai, ollama; empty disables summaries
	Model             string   `yaml:"model"`
	BaseURL           string   `yaml:"base_url"`
	APIKey            string   `yaml:"api_key"`
	MaxTokens         int      `yaml:"max_tokens"`
	Temperature       *float64 `yaml:"temperature"`
	RequestsPerSecond float64  `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int      `yaml:"burst"`
	CallTimeoutSec    int      `yaml:"call_timeout_sec"`
}

// RetrievalConfig holds pipeline defaults.
type RetrievalConfig struct {
	DenseBudget    int      `yaml:"dense_budget"`
	LexicalBudget  int      `yaml:"lexical_budget"`
	HybridBudget   int      `yaml:"hybrid_budget"`
	Alpha          *float64 `yaml:"alpha"`
	ChunkSize      int      `yaml:"chunk_size"`
	EnableSummary  bool     `yaml:"enable_summary"`
	MaxDocsPerCall int      `yaml:"max_docs_per_call"`
	MaxTextChars   int      `yaml:"max_text_chars"`
	ChunkAttempts  int      `yaml:"chunk_attempts"`
	MapConcurrency int      `yaml:"map_concurrency"`
	BM25K1         float64  `yaml:"bm25_k1"`
	BM25B          float64  `yaml:"bm25_b"`
}

// TokenizerConfig holds tokenizer registry settings.
type TokenizerConfig struct {
	Default string `yaml:"default"`
	// Channels maps a channel or locale to a tokenizer name.
	Channels       map[string]string `yaml:"channels"`
	ExtraStopwords []string          `yaml:"extra_stopwords"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env variables, unmarshals, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	c.applyDatabaseDefaults()
	c.applyEmbeddingDefaults()
	c.applyLLMDefaults()
	c.applyRetrievalDefaults()
	if c.Tokenizer.Default == "" {
		c.Tokenizer.Default = "unicode"
	}
	if c.Index.Algorithm == "" {
		c.Index.Algorithm = IndexAlgorithmHNSW
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "revdex:"
	}
	if c.Storage.Collection == "" {
		c.Storage.Collection = "reviews"
	}
	if c.Storage.CacheSize <= 0 {
		c.Storage.CacheSize = 10000
	}
	if c.Storage.CacheTTLSec <= 0 {
		c.Storage.CacheTTLSec = 24 * 3600
	}
	if c.Tracing.SampleRatio <= 0 {
		c.Tracing.SampleRatio = 1
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "revdex"
	}
}

func (c *Config) applyDatabaseDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.QueryTimeoutSec <= 0 {
		c.Database.QueryTimeoutSec = 5
	}
}

func (c *Config) applyEmbeddingDefaults() {
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}
}

func (c *Config) applyLLMDefaults() {
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 512
	}
	if c.LLM.Temperature == nil {
		c.LLM.Temperature = ptr(0.2)
	}
	if c.LLM.Burst <= 0 {
		c.LLM.Burst = 1
	}
	if c.LLM.CallTimeoutSec <= 0 {
		c.LLM.CallTimeoutSec = 30
	}
}

func (c *Config) applyRetrievalDefaults() {
	r := &c.Retrieval
	if r.DenseBudget <= 0 {
		r.DenseBudget = 100
	}
	if r.LexicalBudget <= 0 {
		r.LexicalBudget = 50
	}
	if r.HybridBudget <= 0 {
		r.HybridBudget = 20
	}
	if r.Alpha == nil {
		r.Alpha = ptr(0.5)
	}
	if r.ChunkSize <= 0 {
		r.ChunkSize = 10
	}
	if r.MaxDocsPerCall <= 0 {
		r.MaxDocsPerCall = 50
	}
	if r.MaxTextChars <= 0 {
		r.MaxTextChars = 500
	}
	if r.ChunkAttempts <= 0 {
		r.ChunkAttempts = 1
	}
	if r.MapConcurrency <= 0 {
		r.MapConcurrency = 4
	}
	if r.BM25K1 <= 0 {
		r.BM25K1 = 1.2
	}
	if r.BM25B <= 0 {
		r.BM25B = 0.75
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	switch c.Index.Algorithm {
	case IndexAlgorithmHNSW, IndexAlgorithmFlat:
	default:
		return fmt.Errorf("index.algorithm must be %q or %q, got %q", IndexAlgorithmHNSW, IndexAlgorithmFlat, c.Index.Algorithm)
	}
	for name, p := range c.Embedding.Providers {
		switch p.Budget.Action {
		case "", "warn", "reject":
			// ok
		default:
			return fmt.Errorf(
				"embedding.providers.%s.budget.action must be \"warn\" or \"reject\", got %q",
				name, p.Budget.Action,
			)
		}
	}
	if _, _, err := c.Embedding.Active(); err != nil && len(c.Embedding.Vectorizers) > 0 {
		return err
	}
	switch c.LLM.Driver {
	case "", LLMDriverOpenAI, LLMDriverOllama:
	default:
		return fmt.Errorf("llm.driver must be %q or %q, got %q", LLMDriverOpenAI, LLMDriverOllama, c.LLM.Driver)
	}
	if c.LLM.Driver != "" && c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required when llm.driver is set")
	}
	return c.validateRetrieval()
}

func ptr[T any](v T) *T { return &v }

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverValkey, DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateRetrieval() error {
	r := c.Retrieval
	if r.LexicalBudget > r.DenseBudget || r.HybridBudget > r.LexicalBudget {
		return fmt.Errorf("retrieval budgets must not increase: %d, %d, %d",
			r.DenseBudget, r.LexicalBudget, r.HybridBudget)
	}
	if r.Alpha != nil && (*r.Alpha < 0 || *r.Alpha > 1) {
		return fmt.Errorf("retrieval.alpha must be within [0, 1], got %v", *r.Alpha)
	}
	return nil
}

// Active returns the selected vectorizer and its provider.
func (e EmbeddingConfig) Active() (VectorizerConfig, ProviderConfig, error) {
	name := e.Vectorizer
	if name == "" {
		if len(e.Vectorizers) != 1 {
			return VectorizerConfig{}, ProviderConfig{},
				fmt.Errorf("embedding.vectorizer is required when %d vectorizers are configured", len(e.Vectorizers))
		}
		for n := range e.Vectorizers {
			name = n
		}
	}
	vc, ok := e.Vectorizers[name]
	if !ok {
		return VectorizerConfig{}, ProviderConfig{}, fmt.Errorf("embedding.vectorizers.%s not found", name)
	}
	pc, ok := e.Providers[vc.Provider]
	if !ok {
		return VectorizerConfig{}, ProviderConfig{},
			fmt.Errorf("embedding.vectorizers.%s: provider %q not found", name, vc.Provider)
	}
	return vc, pc, nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
