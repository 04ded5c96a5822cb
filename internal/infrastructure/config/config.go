package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SUPPORT_SERVER_PORT.
const EnvPrefix = "SUPPORT"

// Config is the application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Prompt    PromptConfig    `mapstructure:"prompt"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Events    EventsConfig    `mapstructure:"events"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Type            string        `mapstructure:"type"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SeedDemoData    bool          `mapstructure:"seed_demo_data"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json, console
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig drives the chat loop and the provider router.
type LLMConfig struct {
	DefaultModel       string              `mapstructure:"default_model"`
	MaxTokens          int                 `mapstructure:"max_tokens"`
	Temperature        float64             `mapstructure:"temperature"`
	MaxToolRoundTrips  int                 `mapstructure:"max_tool_round_trips"`
	ToolTimeout        time.Duration       `mapstructure:"tool_timeout"`
	CallTimeout        time.Duration       `mapstructure:"call_timeout"`
	MaxRetries         int                 `mapstructure:"max_retries"`
	RetryBaseWait      time.Duration       `mapstructure:"retry_base_wait"`
	MaxHistory         int                 `mapstructure:"max_history"`
	ToolOutputMaxChars int                 `mapstructure:"tool_output_max_chars"`
	Providers          []LLMProviderConfig `mapstructure:"providers"`
}

// LLMProviderConfig configures one OpenAI-compatible endpoint. Providers
// are tried in the order listed.
type LLMProviderConfig struct {
	Name         string        `mapstructure:"name"`
	Type         string        `mapstructure:"type"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Organization string        `mapstructure:"organization"`
	Models       []string      `mapstructure:"models"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type EmbeddingConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KnowledgeConfig struct {
	File  string `mapstructure:"file"` // empty = built-in articles
	Watch bool   `mapstructure:"watch"`
}

type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
	Store       string        `mapstructure:"store"` // memory, redis
	SweepSpec   string        `mapstructure:"sweep_spec"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PromptConfig struct {
	BaseFile string `mapstructure:"base_file"` // empty = built-in policy
}

type ToolsConfig struct {
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// Load reads the configuration. Precedence, low to high: defaults, the
// global file in HomeDir, ./config/config.yaml or ./config.yaml, then
// SUPPORT_* environment variables. A .env file in the working directory
// is loaded into the environment first when present.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file instead of the search
// path. An empty path searches as Load does.
func LoadFrom(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(HomeDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read global config: %w", err)
			}
		}

		for _, localDir := range []string{"./config", "."} {
			localPath := filepath.Join(localDir, "config.yaml")
			if _, err := os.Stat(localPath); err != nil {
				continue
			}
			local := viper.New()
			local.SetConfigFile(localPath)
			if err := local.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", localPath, err)
			}
			if err := v.MergeConfigMap(local.AllSettings()); err != nil {
				return nil, fmt.Errorf("failed to merge %s: %w", localPath, err)
			}
			break
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyProviderFallbacks(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyProviderFallbacks honors the conventional OPENAI_API_KEY when no
// provider or embedding key is configured.
func applyProviderFallbacks(cfg *Config) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return
	}
	if len(cfg.LLM.Providers) == 0 {
		cfg.LLM.Providers = []LLMProviderConfig{{
			Name:    "openai",
			Type:    "openai",
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			APIKey:  key,
		}}
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = key
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	switch c.RateLimit.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported rate limit store: %s", c.RateLimit.Store)
	}
	if c.RateLimit.Store == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("rate_limit.store is redis but redis.addr is empty")
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.max_requests and rate_limit.window must be positive")
	}
	for i, p := range c.LLM.Providers {
		if p.Name == "" {
			return fmt.Errorf("llm.providers[%d]: name is required", i)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "support.db")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.seed_demo_data", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("llm.default_model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tool_round_trips", 5)
	v.SetDefault("llm.tool_timeout", "30s")
	v.SetDefault("llm.call_timeout", "2m")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_base_wait", "1s")
	v.SetDefault("llm.max_history", 50)
	v.SetDefault("llm.tool_output_max_chars", 8000)

	v.SetDefault("embedding.enabled", true)
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.timeout", "30s")

	v.SetDefault("knowledge.file", "")
	v.SetDefault("knowledge.watch", false)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.max_requests", 10)
	v.SetDefault("rate_limit.window", "60s")
	v.SetDefault("rate_limit.store", "memory")
	v.SetDefault("rate_limit.sweep_spec", "@every 60s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("prompt.base_file", "")

	v.SetDefault("tools.cache_ttl", "30s")
	v.SetDefault("tools.cache_size", 100)

	v.SetDefault("events.buffer_size", 256)
}
