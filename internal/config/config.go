package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/RLabs-Inc/claude-mcp/internal/embedder"
	"github.com/RLabs-Inc/claude-mcp/internal/indexer"
	"github.com/RLabs-Inc/claude-mcp/internal/searcher"
	"github.com/RLabs-Inc/claude-mcp/internal/vectorindex"
)

// EnvPrefix prefixes every environment override, e.g. DOCSEARCH_SEARCH_DEFAULT_ALPHA.
const EnvPrefix = "DOCSEARCH"

// Config holds all application configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Index     IndexConfig     `mapstructure:"index"`
	Search    SearchConfig    `mapstructure:"search"`
	Log       LogConfig       `mapstructure:"log"`
}

type EmbeddingConfig struct {
	Provider      string `mapstructure:"provider"`
	Model         string `mapstructure:"model"`
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"`
	CacheSize     int    `mapstructure:"cache_size"`
	MaxInputChars int    `mapstructure:"max_input_chars"`
}

type IndexConfig struct {
	Dimension         int  `mapstructure:"dimension"`
	MaxElements       int  `mapstructure:"max_elements"`
	M                 int  `mapstructure:"m"`
	EfConstruction    int  `mapstructure:"ef_construction"`
	EfSearch          int  `mapstructure:"ef_search"`
	IncludeEmbeddings bool `mapstructure:"include_embeddings"`
	Workers           int  `mapstructure:"workers"`
}

type SearchConfig struct {
	DefaultLimit    int           `mapstructure:"default_limit"`
	DefaultAlpha    float64       `mapstructure:"default_alpha"`
	OverfetchFactor int           `mapstructure:"overfetch_factor"`
	CacheSize       int           `mapstructure:"cache_size"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ConfigFileName is looked up in the data directory when no path is given.
const ConfigFileName = "config"

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "~/.docsearch")

	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.cache_size", 10000)
	v.SetDefault("embedding.max_input_chars", embedder.DefaultMaxInputChars)

	v.SetDefault("index.dimension", 0)
	v.SetDefault("index.max_elements", vectorindex.DefaultMaxElements)
	v.SetDefault("index.m", vectorindex.DefaultM)
	v.SetDefault("index.ef_construction", vectorindex.DefaultEfConstruction)
	v.SetDefault("index.ef_search", vectorindex.DefaultEfSearch)
	v.SetDefault("index.include_embeddings", true)
	v.SetDefault("index.workers", 0)

	search := searcher.DefaultConfig()
	v.SetDefault("search.default_limit", search.DefaultLimit)
	v.SetDefault("search.default_alpha", search.DefaultAlpha)
	v.SetDefault("search.overfetch_factor", search.OverfetchFactor)
	v.SetDefault("search.cache_size", search.CacheSize)
	v.SetDefault("search.cache_ttl", search.CacheTTL)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from defaults, an optional file and the
// environment, in increasing priority. With an empty path, config.{yaml,toml,json}
// in the default data directory is used if present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(expandHome(v.GetString("data_dir")))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.DataDir = expandHome(cfg.DataDir)

	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Check returns an error for values the program cannot run with.
func (c *Config) Check() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is empty"))
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case "", embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderGemini, embedder.ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q is not one of jina, openai, gemini, local", c.Embedding.Provider))
	}
	if c.Index.Dimension < 0 {
		errs = append(errs, fmt.Errorf("index.dimension %d is negative", c.Index.Dimension))
	}
	if c.Index.MaxElements < 1 {
		errs = append(errs, fmt.Errorf("index.max_elements %d must be positive", c.Index.MaxElements))
	}
	if c.Index.M < 2 {
		errs = append(errs, fmt.Errorf("index.m %d must be at least 2", c.Index.M))
	}
	if c.Index.EfConstruction < 1 || c.Index.EfSearch < 1 {
		errs = append(errs, errors.New("index.ef_construction and index.ef_search must be positive"))
	}
	if c.Search.DefaultAlpha < 0 || c.Search.DefaultAlpha > 1 {
		errs = append(errs, fmt.Errorf("search.default_alpha %v is outside [0,1]", c.Search.DefaultAlpha))
	}
	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > searcher.MaxLimit {
		errs = append(errs, fmt.Errorf("search.default_limit %d is outside [1,%d]", c.Search.DefaultLimit, searcher.MaxLimit))
	}
	if c.Search.OverfetchFactor < 1 {
		errs = append(errs, fmt.Errorf("search.overfetch_factor %d must be positive", c.Search.OverfetchFactor))
	}
	if c.Search.CacheSize < 0 || c.Embedding.CacheSize < 0 {
		errs = append(errs, errors.New("cache sizes cannot be negative"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	keyEnv := map[string]string{
		embedder.ProviderJina:   embedder.EnvJinaAPIKey,
		embedder.ProviderOpenAI: embedder.EnvOpenAIAPIKey,
		embedder.ProviderGemini: embedder.EnvGeminiAPIKey,
	}
	provider := strings.ToLower(c.Embedding.Provider)
	if env, ok := keyEnv[provider]; ok && c.Embedding.APIKey == "" && os.Getenv(env) == "" {
		warnings = append(warnings, fmt.Sprintf("embedding provider '%s' is configured but neither api_key nor %s is set", provider, env))
	}
	if provider == embedder.ProviderLocal && c.Embedding.Model != "" {
		warnings = append(warnings, "embedding.model is ignored by the local provider")
	}

	if !c.Index.IncludeEmbeddings {
		warnings = append(warnings, "index.include_embeddings is false: every rebuild will call the embedding provider for all documents")
	}
	if c.Search.CacheTTL <= 0 && c.Search.CacheSize > 0 {
		warnings = append(warnings, fmt.Sprintf("search.cache_ttl %s is not positive; the default will be used", c.Search.CacheTTL))
	}
	if c.Search.OverfetchFactor == 1 {
		warnings = append(warnings, "search.overfetch_factor 1 leaves no room for framework/version post-filtering")
	}

	return warnings
}

// IndexDir holds documents.json and the vector index files.
func (c *Config) IndexDir() string {
	return filepath.Join(c.DataDir, "index")
}

// RegistryPath is the SQLite framework registry.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.DataDir, "registry.db")
}

// EmbedderConfig maps the embedding section onto embedder.Config.
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:      c.Embedding.Provider,
		Model:         c.Embedding.Model,
		APIKey:        c.Embedding.APIKey,
		BaseURL:       c.Embedding.BaseURL,
		Dimension:     c.Index.Dimension,
		CacheSize:     c.Embedding.CacheSize,
		MaxInputChars: c.Embedding.MaxInputChars,
	}
}

// IndexerConfig maps the index section onto indexer.Config.
func (c *Config) IndexerConfig() indexer.Config {
	return indexer.Config{
		Dir: c.IndexDir(),
		Vector: vectorindex.Config{
			Dimension:      c.Index.Dimension,
			MaxElements:    c.Index.MaxElements,
			M:              c.Index.M,
			EfConstruction: c.Index.EfConstruction,
			EfSearch:       c.Index.EfSearch,
		},
		IncludeEmbeddings: c.Index.IncludeEmbeddings,
		Workers:           c.Index.Workers,
	}
}

// SearcherConfig maps the search section onto searcher.Config.
func (c *Config) SearcherConfig() searcher.Config {
	return searcher.Config{
		DefaultLimit:    c.Search.DefaultLimit,
		DefaultAlpha:    c.Search.DefaultAlpha,
		OverfetchFactor: c.Search.OverfetchFactor,
		CacheSize:       c.Search.CacheSize,
		CacheTTL:        c.Search.CacheTTL,
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
