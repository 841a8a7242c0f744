// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.finsight/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: language model, temperature, response-length ceiling
//   - Embedding: embedder model, vector dimension, batching, retries
//   - Storage: PostgreSQL connection (companies/filings metadata and
//     per-ticker vector collections)
//   - Ingestion: chunk size/overlap, embedding concurrency
//   - EDGAR: user agent and timeouts for the filing source
//   - Observability: optional OTLP trace endpoint
//
// Sensitive values (the PostgreSQL password) are masked in String() and
// MarshalJSON. Validation is fail-fast with sentinel errors usable via
// errors.Is.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidModelName indicates the language model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates a non-positive vector dimension.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidChunking indicates chunk size/overlap that cannot produce chunks.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidTopK indicates a retrieval depth outside [1, 50].
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrMissingEdgarUserAgent indicates the EDGAR user agent is not set.
	// SEC requires requests to identify the caller.
	ErrMissingEdgarUserAgent = errors.New("missing EDGAR user agent")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension matches the vector(N) column type of the
	// per-ticker collections. Changing it requires re-ingesting all tenants.
	DefaultEmbedderDimension = 1536

	// DefaultTopK is the retrieval depth used by Ask.
	DefaultTopK = 5
)

// Config stores application configuration.
// The PostgreSQL password is masked in MarshalJSON; update that method when
// adding new sensitive fields.
type Config struct {
	// Language model configuration
	Provider        string  `mapstructure:"provider" json:"provider"`
	ModelName       string  `mapstructure:"model_name" json:"model_name"`
	Temperature     float32 `mapstructure:"temperature" json:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens" json:"max_output_tokens"`

	// Embedding configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`
	EmbedBatchSize    int    `mapstructure:"embed_batch_size" json:"embed_batch_size"`
	EmbedMaxRetries   int    `mapstructure:"embed_max_retries" json:"embed_max_retries"`
	EmbedConcurrency  int    `mapstructure:"embed_concurrency" json:"embed_concurrency"`

	// Ingestion configuration
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval configuration
	TopK int `mapstructure:"top_k" json:"top_k"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// EDGAR document source configuration
	EdgarUserAgent string `mapstructure:"edgar_user_agent" json:"edgar_user_agent"`
	EdgarTimeoutMs int    `mapstructure:"edgar_timeout_ms" json:"edgar_timeout_ms"`

	// Observability: traces are exported only when an endpoint is set.
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".finsight")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL wins over individual postgres_* settings when set.
	if err := cfg.parseDatabaseURL(os.Getenv("DATABASE_URL")); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "googleai")
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("temperature", 0.1)
	v.SetDefault("max_output_tokens", 2048)

	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embedder_dimension", DefaultEmbedderDimension)
	v.SetDefault("embed_batch_size", 100)
	v.SetDefault("embed_max_retries", 3)
	v.SetDefault("embed_concurrency", 4)

	v.SetDefault("chunk_size", 1024)
	v.SetDefault("chunk_overlap", 128)
	v.SetDefault("top_k", DefaultTopK)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "finsight")
	v.SetDefault("postgres_password", "finsight_dev_password")
	v.SetDefault("postgres_db_name", "finsight")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("edgar_user_agent", "")
	v.SetDefault("edgar_timeout_ms", 30000)

	v.SetDefault("otlp_endpoint", "")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via viper.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "FINSIGHT_PROVIDER")
	mustBind("model_name", "FINSIGHT_MODEL_NAME")
	mustBind("embedder_model", "FINSIGHT_EMBEDDER_MODEL")
	mustBind("edgar_user_agent", "FINSIGHT_EDGAR_USER_AGENT")
	mustBind("otlp_endpoint", "FINSIGHT_OTLP_ENDPOINT")
	mustBind("postgres_password", "FINSIGHT_POSTGRES_PASSWORD")
}

// parseDatabaseURL overrides the postgres_* fields from a postgres:// URL.
// Empty input is a no-op.
func (c *Config) parseDatabaseURL(raw string) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid database URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported database URL scheme: %s", u.Scheme)
	}

	c.PostgresHost = u.Hostname()
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid database URL port: %w", err)
		}
		c.PostgresPort = port
	}
	if u.User != nil {
		c.PostgresUser = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.PostgresPassword = pw
		}
	}
	if db := filepath.Base(u.Path); db != "." && db != "/" {
		c.PostgresDBName = db
	}
	if m := u.Query().Get("sslmode"); m != "" {
		c.PostgresSSLMode = m
	}
	return nil
}

// PostgresURL returns the postgres:// URL form of the connection settings,
// suitable for golang-migrate.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser), url.QueryEscape(c.PostgresPassword),
		c.PostgresHost, c.PostgresPort, c.PostgresDBName, c.PostgresSSLMode)
}

// FullModelName returns the provider-qualified model name for Genkit,
// e.g. "googleai/gemini-2.5-flash".
func (c *Config) FullModelName() string {
	return c.Provider + "/" + c.ModelName
}

const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive-field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
