package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Providers = map[string]ProviderConfig{
		"nebius": {
			APIKey:  "test-key",
			BaseURL: "https://api.example.com/v1/",
			Budget: BudgetConfig{
				DailyTokenLimit: 1000000,
				Action:          "invalid_action",
			},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `embedding.providers.nebius.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Embedding.Providers = map[string]ProviderConfig{
				"nebius": {APIKey: "test-key", Budget: BudgetConfig{Action: action}},
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	alpha := 1.5
	tests := []struct {
		name string
		mod  func(c *Config)
		want string
	}{
		{"port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"valkey addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"postgres dsn", func(c *Config) { c.Database.Driver = DriverPostgres }, "database.dsn"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, "database.driver"},
		{"llm driver", func(c *Config) { c.LLM.Driver = "bard" }, "llm.driver"},
		{"llm model", func(c *Config) { c.LLM.Driver = LLMDriverOllama }, "llm.model"},
		{"budgets", func(c *Config) { c.Retrieval.HybridBudget = 500 }, "budgets"},
		{"alpha", func(c *Config) { c.Retrieval.Alpha = &alpha }, "retrieval.alpha"},
		{"index algorithm", func(c *Config) { c.Index.Algorithm = "ivf" }, "index.algorithm"},
		{"vectorizer provider", func(c *Config) {
			c.Embedding.Vectorizers = map[string]VectorizerConfig{"v": {Provider: "missing"}}
		}, "provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mod(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_MemoryDriverNeedsNoAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database = DatabaseConfig{Driver: DriverMemory}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Database.Driver != DriverValkey {
		t.Errorf("expected driver valkey, got %q", cfg.Database.Driver)
	}
	r := cfg.Retrieval
	if r.DenseBudget != 100 || r.LexicalBudget != 50 || r.HybridBudget != 20 {
		t.Errorf("unexpected budgets %d/%d/%d", r.DenseBudget, r.LexicalBudget, r.HybridBudget)
	}
	if r.Alpha == nil || *r.Alpha != 0.5 {
		t.Errorf("expected alpha 0.5, got %v", r.Alpha)
	}
	if r.ChunkSize != 10 || r.MaxDocsPerCall != 50 || r.MaxTextChars != 500 || r.MapConcurrency != 4 {
		t.Errorf("unexpected summarizer defaults %+v", r)
	}
	if cfg.LLM.Temperature == nil || *cfg.LLM.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", cfg.LLM.Temperature)
	}
	if cfg.Tokenizer.Default != "unicode" {
		t.Errorf("expected default tokenizer unicode, got %q", cfg.Tokenizer.Default)
	}
	if cfg.Storage.KeyPrefix != "revdex:" || cfg.Storage.Collection != "reviews" {
		t.Errorf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Index.Algorithm != IndexAlgorithmHNSW || cfg.Index.HNSWM != 16 || cfg.Index.HNSWEFConstruct != 200 {
		t.Errorf("unexpected index %+v", cfg.Index)
	}
}

func TestApplyDefaults_ExplicitZeroes(t *testing.T) {
	cfg, err := Parse([]byte(`
http:
  port: 9000
database:
  driver: memory
retrieval:
  alpha: 0
llm:
  temperature: 0
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *cfg.Retrieval.Alpha != 0 {
		t.Errorf("explicit alpha 0 overwritten: %v", *cfg.Retrieval.Alpha)
	}
	if *cfg.LLM.Temperature != 0 {
		t.Errorf("explicit temperature 0 overwritten: %v", *cfg.LLM.Temperature)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("REVDEX_TEST_PORT", "7070")
	cfg, err := Parse([]byte(`
http:
  port: ${REVDEX_TEST_PORT}
database:
  driver: ${REVDEX_TEST_DRIVER:-memory}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 7070 {
		t.Errorf("expected port 7070, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("expected memory driver from default, got %q", cfg.Database.Driver)
	}
}

func TestEmbeddingActive(t *testing.T) {
	e := EmbeddingConfig{
		Providers: map[string]ProviderConfig{"openai": {APIKey: "k"}},
		Vectorizers: map[string]VectorizerConfig{
			"small": {Provider: "openai", Model: "text-embedding-3-small"},
		},
	}
	vc, pc, err := e.Active()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vc.Model != "text-embedding-3-small" || pc.APIKey != "k" {
		t.Errorf("unexpected active vectorizer %+v / %+v", vc, pc)
	}

	e.Vectorizers["large"] = VectorizerConfig{Provider: "openai"}
	if _, _, err := e.Active(); err == nil {
		t.Error("expected error when several vectorizers and none selected")
	}
	e.Vectorizer = "large"
	if _, _, err := e.Active(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_LocalFile(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("local config: %v", err)
	}
	if cfg.Tokenizer.Channels["naver"] != "cjk_bigram" {
		t.Errorf("expected naver -> cjk_bigram, got %q", cfg.Tokenizer.Channels["naver"])
	}
}
