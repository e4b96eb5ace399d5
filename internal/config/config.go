package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "500ms"
// or "15s" rather than raw nanosecond counts.
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or an integer nanosecond
// count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, parseErr := time.ParseDuration(raw)
		if parseErr != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, parseErr)
		}
		*d = Duration(parsed)
		return nil
	}

	var ns int64
	if err := value.Decode(&ns); err != nil {
		return fmt.Errorf("invalid duration node: %w", err)
	}
	*d = Duration(ns)
	return nil
}

// Std returns the wrapped standard library value.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

const (
	configPathEnv     = "FACT_DEN_CONFIG"
	ledgerURLEnv      = "LEDGER_URL"
	ledgerAPIKeyEnv   = "LEDGER_API_KEY"
	aiAPIKeyEnv       = "AI_API_KEY"
	aiEndpointEnv     = "AI_ENDPOINT"
	identityURLEnv    = "IDENTITY_PROVIDER_URL"
	identitySecretEnv = "IDENTITY_JWT_SECRET"
	redisAddrEnv      = "REDIS_ADDR"
	postgresDSNEnv    = "POSTGRES_DSN"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	AI       AIConfig       `yaml:"ai"`
	Identity IdentityConfig `yaml:"identity"`
	Prefetch PrefetchConfig `yaml:"prefetch"`
	Cache    CacheConfig    `yaml:"cache"`
	Feed     FeedConfig     `yaml:"feed"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig describes the HTTP gateway surface.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	CORSOrigin string `yaml:"corsOrigin"`
}

// LedgerConfig describes the remote post service endpoint.
type LedgerConfig struct {
	BaseURL string   `yaml:"baseUrl"`
	APIKey  string   `yaml:"apiKey"`
	Timeout Duration `yaml:"timeout"`
}

// AIConfig defines how to contact the verdict model endpoint. Models are
// tried in order; the first non-error reply wins.
type AIConfig struct {
	Endpoint string   `yaml:"endpoint"`
	APIKey   string   `yaml:"apiKey"`
	Models   []string `yaml:"models"`
}

// IdentityConfig wires the remote identity provider.
type IdentityConfig struct {
	ProviderURL string   `yaml:"providerUrl"`
	JWTSecret   string   `yaml:"jwtSecret"`
	SessionTTL  Duration `yaml:"sessionTtl"`
}

// PrefetchConfig bounds background verdict fetching. The defaults are a
// conservative stand-in for a real backpressure signal, not a tuned value.
type PrefetchConfig struct {
	BatchSize  int      `yaml:"batchSize"`
	BatchDelay Duration `yaml:"batchDelay"`
}

// CacheConfig selects the durable snapshot backend for the verdict cache.
type CacheConfig struct {
	Backend     string `yaml:"backend"` // file, redis or postgres
	Dir         string `yaml:"dir"`
	RedisAddr   string `yaml:"redisAddr"`
	PostgresDSN string `yaml:"postgresDsn"`
}

// FeedConfig tunes feed behavior outside the sync core.
type FeedConfig struct {
	RefreshInterval Duration `yaml:"refreshInterval"`
	SampleFallback  bool     `yaml:"sampleFallback"`
}

// Load reads .env, then YAML configuration (if present), then applies
// environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file, using process environment")
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(ledgerURLEnv); v != "" {
		c.Ledger.BaseURL = v
	}
	if v := os.Getenv(ledgerAPIKeyEnv); v != "" {
		c.Ledger.APIKey = v
	}
	if v := os.Getenv(aiEndpointEnv); v != "" {
		c.AI.Endpoint = v
	}
	if v := os.Getenv(aiAPIKeyEnv); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv(identityURLEnv); v != "" {
		c.Identity.ProviderURL = v
	}
	if v := os.Getenv(identitySecretEnv); v != "" {
		c.Identity.JWTSecret = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv(postgresDSNEnv); v != "" {
		c.Cache.PostgresDSN = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.CORSOrigin != "" {
		base.Server.CORSOrigin = override.Server.CORSOrigin
	}

	if override.Ledger.BaseURL != "" {
		base.Ledger.BaseURL = override.Ledger.BaseURL
	}
	if override.Ledger.APIKey != "" {
		base.Ledger.APIKey = override.Ledger.APIKey
	}
	if override.Ledger.Timeout > 0 {
		base.Ledger.Timeout = override.Ledger.Timeout
	}

	if override.AI.Endpoint != "" {
		base.AI.Endpoint = override.AI.Endpoint
	}
	if override.AI.APIKey != "" {
		base.AI.APIKey = override.AI.APIKey
	}
	if len(override.AI.Models) > 0 {
		base.AI.Models = override.AI.Models
	}

	if override.Identity.ProviderURL != "" {
		base.Identity.ProviderURL = override.Identity.ProviderURL
	}
	if override.Identity.JWTSecret != "" {
		base.Identity.JWTSecret = override.Identity.JWTSecret
	}
	if override.Identity.SessionTTL > 0 {
		base.Identity.SessionTTL = override.Identity.SessionTTL
	}

	if override.Prefetch.BatchSize > 0 {
		base.Prefetch.BatchSize = override.Prefetch.BatchSize
	}
	if override.Prefetch.BatchDelay > 0 {
		base.Prefetch.BatchDelay = override.Prefetch.BatchDelay
	}

	if override.Cache.Backend != "" {
		base.Cache.Backend = override.Cache.Backend
	}
	if override.Cache.Dir != "" {
		base.Cache.Dir = override.Cache.Dir
	}
	if override.Cache.RedisAddr != "" {
		base.Cache.RedisAddr = override.Cache.RedisAddr
	}
	if override.Cache.PostgresDSN != "" {
		base.Cache.PostgresDSN = override.Cache.PostgresDSN
	}

	if override.Feed.RefreshInterval > 0 {
		base.Feed.RefreshInterval = override.Feed.RefreshInterval
	}
	if override.Feed.SampleFallback {
		base.Feed.SampleFallback = true
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Server: ServerConfig{
			Addr:       ":8080",
			CORSOrigin: "*",
		},
		Ledger: LedgerConfig{
			BaseURL: "http://localhost:4943",
			Timeout: Duration(15 * time.Second),
		},
		AI: AIConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Models:   []string{"gpt-4o-mini", "gpt-4o", "gpt-3.5-turbo"},
		},
		Identity: IdentityConfig{
			ProviderURL: "http://localhost:4943/identity",
			SessionTTL:  Duration(30 * time.Minute),
		},
		Prefetch: PrefetchConfig{
			BatchSize:  3,
			BatchDelay: Duration(500 * time.Millisecond),
		},
		Cache: CacheConfig{
			Backend: "file",
			Dir:     defaultCacheDir(),
		},
		Feed: FeedConfig{
			RefreshInterval: 0, // periodic re-sync disabled unless configured
			SampleFallback:  false,
		},
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/fact-den"
	}
	return ".fact-den-cache"
}
