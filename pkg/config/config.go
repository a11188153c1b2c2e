package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// ConfigFile is the YAML file Load reads from the working directory when present.
const ConfigFile = "config.yaml"

// Config holds all configuration for ideaforge.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	LLM        LLMConfig        `yaml:"llm"`
	Generation GenerationConfig `yaml:"generation"`
	MCP        MCPConfig        `yaml:"mcp"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	// JWTSecret enables HS256 validation with a shared secret.
	JWTSecret string `yaml:"-" env:"JWT_SECRET"` // Secret - not in YAML

	CookieName string `yaml:"cookie_name" env:"AUTH_COOKIE_NAME" env-default:"ideaforge_token"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	// Type selects the store: "postgres" or "memory".
	Type           string `yaml:"type" env:"PGTYPE" env-default:"postgres"`
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ideaforge"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ideaforge"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds the artifact cache connection. An empty Host disables the cache.
type RedisConfig struct {
	Host             string        `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port             int           `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	DB               int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Password         string        `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	ArtifactCacheTTL time.Duration `yaml:"artifact_cache_ttl" env:"REDIS_ARTIFACT_CACHE_TTL" env-default:"24h"`
}

// Enabled reports whether a Redis host is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL     string  `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Model       string  `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	APIKey      string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.8"`
	MaxTokens   int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"8192"`
}

// GenerationConfig tunes the ideation and code generation pipeline.
type GenerationConfig struct {
	IdeasPerBatch    int           `yaml:"ideas_per_batch" env:"IDEAS_PER_BATCH" env-default:"6"`
	MaxConcurrent    int           `yaml:"max_concurrent" env:"GENERATION_MAX_CONCURRENT" env-default:"4"`
	CallTimeout      time.Duration `yaml:"call_timeout" env:"GENERATION_CALL_TIMEOUT" env-default:"90s"`
	MaxRetries       int           `yaml:"max_retries" env:"GENERATION_MAX_RETRIES" env-default:"0"`
	DefaultMaxIdeas  int           `yaml:"default_max_ideas" env:"DEFAULT_MAX_IDEAS" env-default:"6"`
	BreakerThreshold int           `yaml:"breaker_threshold" env:"LLM_BREAKER_THRESHOLD" env-default:"5"`
	BreakerReset     time.Duration `yaml:"breaker_reset" env:"LLM_BREAKER_RESET" env-default:"30s"`
}

// MCPConfig toggles the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// A .env file in the working directory is loaded first if present. When config.yaml
// does not exist, configuration comes from the environment alone.
func Load(version string) (*Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(ConfigFile); err == nil {
		if err := cleanenv.ReadConfig(ConfigFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	cfg.Database.Host = resolveHostForDocker(cfg.Database.Host, isRunningInDocker)
	cfg.Redis.Host = resolveHostForDocker(cfg.Redis.Host, isRunningInDocker)

	return cfg, nil
}

// Validate checks values that cleanenv cannot express as defaults.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Type {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.type must be postgres or memory, got %q", c.Database.Type))
	}

	switch c.LLM.Provider {
	case "openai", "anthropic", "gemini":
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be openai, anthropic or gemini, got %q", c.LLM.Provider))
	}

	if c.Generation.IdeasPerBatch <= 0 {
		errs = append(errs, errors.New("generation.ideas_per_batch must be positive"))
	}
	if c.Generation.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("generation.max_concurrent must be positive"))
	}
	if c.Generation.CallTimeout <= 0 {
		errs = append(errs, errors.New("generation.call_timeout must be positive"))
	}
	if c.Generation.MaxRetries < 0 {
		errs = append(errs, errors.New("generation.max_retries must not be negative"))
	}
	if c.Generation.DefaultMaxIdeas < 0 {
		errs = append(errs, errors.New("generation.default_max_ideas must not be negative"))
	}

	if c.Auth.EnableVerification && c.Auth.JWTSecret == "" && c.Auth.JWKSEndpointsStr == "" {
		errs = append(errs, errors.New("auth verification requires JWT_SECRET or auth.jwks_endpoints"))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the server runs in a local or dev environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "local" || c.Env == "dev"
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	for _, pair := range strings.Split(value, ",") {
		issuer, jwksURL, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		endpoints[strings.TrimSpace(issuer)] = strings.TrimSpace(jwksURL)
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the database as a postgres:// URL for golang-migrate.
func (c *DatabaseConfig) URL() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Addr returns host:port for the Redis client.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func isRunningInDocker() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

// resolveHostForDocker maps loopback hosts to host.docker.internal inside a
// container so that services on the host machine stay reachable.
func resolveHostForDocker(host string, inDocker func() bool) string {
	if host != "localhost" && host != "127.0.0.1" {
		return host
	}
	if !inDocker() {
		return host
	}
	return "host.docker.internal"
}
