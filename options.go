package revdex

import (
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	configFile string

	driver     string // valkey, redis, postgres or memory
	addrs      []string
	password   string
	dsn        string
	corpusPath string

	embedder   Embedder
	openAI     *openAIConfig
	model      LanguageModel
	llmDriver  string
	llmModel   string
	llmBaseURL string
	llmAPIKey  string

	budgets       *[3]int
	alpha         *float64
	enableSummary *bool
	chunkSize     int

	defaultTokenizer string
	channels         map[string]string

	logger *zap.Logger
}

type openAIConfig struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
}

// WithConfigFile loads a YAML config (same format as the server). Other
// options override its values.
func WithConfigFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.configFile = path
	})
}

// WithValkey stores reviews in a valkey-search instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores reviews in a Redis 8+ instance with the query engine.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithPostgres stores reviews in a pgvector table.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "postgres"
		c.dsn = dsn
	})
}

// WithMemory keeps reviews in process. This is the default.
// A non-empty corpusPath is ingested on New.
func WithMemory(corpusPath string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
		c.corpusPath = corpusPath
	})
}

// WithEmbedder sets a custom embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithOpenAIEmbeddings uses an OpenAI-compatible embeddings endpoint.
// An empty baseURL means api.openai.com.
func WithOpenAIEmbeddings(apiKey, baseURL, model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAI = &openAIConfig{apiKey: apiKey, baseURL: baseURL, model: model, dimensions: dimensions}
	})
}

// WithLanguageModel sets a custom summarizer model.
func WithLanguageModel(m LanguageModel) Option {
	return optionFunc(func(c *clientConfig) {
		c.model = m
	})
}

// WithOpenAIChat summarizes with an OpenAI-compatible chat completions endpoint.
func WithOpenAIChat(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.llmDriver = "openai"
		c.llmAPIKey = apiKey
		c.llmBaseURL = baseURL
		c.llmModel = model
	})
}

// WithOllama summarizes with a local Ollama model.
func WithOllama(serverURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.llmDriver = "ollama"
		c.llmBaseURL = serverURL
		c.llmModel = model
	})
}

// WithStageBudgets sets the default dense, lexical and hybrid output sizes.
func WithStageBudgets(dense, lexical, hybrid int) Option {
	return optionFunc(func(c *clientConfig) {
		c.budgets = &[3]int{dense, lexical, hybrid}
	})
}

// WithAlpha sets the default hybrid fusion weight of the dense score.
func WithAlpha(alpha float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.alpha = &alpha
	})
}

// WithSummary enables or disables summaries by default.
func WithSummary(enabled bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.enableSummary = &enabled
	})
}

// WithChunkSize sets the default number of reviews per summarizer call.
func WithChunkSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = n
	})
}

// WithDefaultTokenizer sets the fallback tokenizer: "unicode", "whitespace" or "cjk_bigram".
func WithDefaultTokenizer(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultTokenizer = name
	})
}

// WithChannelTokenizer routes a channel or locale to a tokenizer.
func WithChannelTokenizer(channel, tokenizer string) Option {
	return optionFunc(func(c *clientConfig) {
		if c.channels == nil {
			c.channels = make(map[string]string)
		}
		c.channels[channel] = tokenizer
	})
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
