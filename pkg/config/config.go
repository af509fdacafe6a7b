package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Gmail    GmailConfig    `mapstructure:"gmail"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type GmailConfig struct {
	SearchQuery    string        `mapstructure:"search_query"`
	PageToken      string        `mapstructure:"page_token"`
	BatchSize      int           `mapstructure:"batch_size"`
	RateLimitDelay time.Duration `mapstructure:"rate_limit_delay"`
	Exclusions     []string      `mapstructure:"exclusions"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	RedirectURI    string        `mapstructure:"redirect_uri"`
	Tokens         string        `mapstructure:"tokens"`
	TokenFile      string        `mapstructure:"token_file"`
}

type AnalysisConfig struct {
	SnippetMaxLength int `mapstructure:"snippet_max_length"`
}

type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Temperature       float64       `mapstructure:"temperature"`
	MaxBodyLength     int           `mapstructure:"max_body_length"`
	HomeRegion        string        `mapstructure:"home_region"`
	RejectionKeywords []string      `mapstructure:"rejection_keywords"`
	Breaker           BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DefaultRejectionKeywords are phrases that mark an email as a rejection
// when the model is unavailable.
var DefaultRejectionKeywords = []string{
	"not moving forward", "unfortunately", "we regret", "not a fit",
	"other candidates", "decided to pursue", "will not be progressing",
	"thank you for your interest", "not selected", "position has been filled",
	"we have decided to", "chosen to move forward with", "not the right fit",
	"will not be moving forward", "after careful consideration",
}

// DefaultExclusions keep known noise senders out of the search.
var DefaultExclusions = []string{
	"-from:*github*",
	`-subject:"GitHub"`,
	"-label:github",
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Driver:   DriverPostgres,
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("gmail.search_query", "after:2025/01/01")
	v.SetDefault("gmail.batch_size", 100)
	v.SetDefault("gmail.rate_limit_delay", time.Second)
	v.SetDefault("gmail.exclusions", DefaultExclusions)
	v.SetDefault("gmail.token_file", "token.json")
	v.SetDefault("gmail.page_token", "")
	v.SetDefault("gmail.client_id", "")
	v.SetDefault("gmail.client_secret", "")
	v.SetDefault("gmail.redirect_uri", "")
	v.SetDefault("gmail.tokens", "")

	v.SetDefault("analysis.snippet_max_length", 500)

	v.SetDefault("llm.provider", ProviderOllama)
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "llama3.1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_body_length", 1000)
	v.SetDefault("llm.home_region", "Nepal")
	v.SetDefault("llm.rejection_keywords", DefaultRejectionKeywords)
	v.SetDefault("llm.breaker.failure_threshold", 5)
	v.SetDefault("llm.breaker.cooldown", time.Minute)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "email_analysis.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.dbname", "")
	v.SetDefault("database.password", "")

	v.SetDefault("metrics.job", "jobmail")
	v.SetDefault("metrics.pushgateway_url", "")

	v.SetDefault("notify.telegram.token", "")
	v.SetDefault("notify.telegram.chat_id", 0)
}

// Flags returns the command line flags understood by LoadConfig.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("jobmail", pflag.ContinueOnError)
	fs.String("config", "config.yaml", "path to the YAML config file")
	fs.String("query", "", "Gmail search query (overrides gmail.search_query)")
	fs.String("page-token", "", "resume from this Gmail page token")
	return fs
}

// LoadConfig reads the optional config file at path, then the environment and
// any parsed flags. A missing file is not an error.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JOBMAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	if flags != nil {
		if f := flags.Lookup("query"); f != nil && f.Changed {
			v.Set("gmail.search_query", f.Value.String())
		}
		if f := flags.Lookup("page-token"); f != nil && f.Changed {
			v.Set("gmail.page_token", f.Value.String())
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := applyLegacyEnv(v, &config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// legacyEnv maps config keys to the unprefixed variable names used by
// existing .env files. The prefixed JOBMAIL_ name is still checked first.
var legacyEnv = map[string]string{
	"llm.base_url":          "OLLAMA_URL",
	"llm.model":             "OLLAMA_MODEL",
	"llm.temperature":       "OLLAMA_TEMPERATURE",
	"llm.max_body_length":   "LLM_MAX_SNIPPET_LENGTH",
	"llm.api_key":           "OPENAI_API_KEY",
	"gmail.client_id":       "GOOGLE_CLIENT_ID",
	"gmail.client_secret":   "GOOGLE_CLIENT_SECRET",
	"gmail.redirect_uri":    "GOOGLE_REDIRECT_URI",
	"gmail.tokens":          "GOOGLE_TOKENS",
	"notify.telegram.token": "TELEGRAM_TOKEN",
	"legacy.database_url":   "DATABASE_URL",
	"legacy.ollama_timeout": "OLLAMA_TIMEOUT",
}

func bindLegacyEnv(v *viper.Viper) error {
	for key, name := range legacyEnv {
		prefixed := "JOBMAIL_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}
	return nil
}

// applyLegacyEnv handles the variables that need conversion before use.
func applyLegacyEnv(v *viper.Viper, config *Config) error {
	if dbURL := v.GetString("legacy.database_url"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		dbConfig.Path = config.Database.Path
		config.Database = dbConfig
	}

	// OLLAMA_TIMEOUT is given in milliseconds.
	if ms := v.GetInt("legacy.ollama_timeout"); ms > 0 {
		config.LLM.Timeout = time.Duration(ms) * time.Millisecond
	}
	return nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Gmail.BatchSize < 1 || c.Gmail.BatchSize > 500 {
		return fmt.Errorf("gmail.batch_size must be between 1 and 500")
	}
	if c.Gmail.RateLimitDelay < 0 {
		return fmt.Errorf("gmail.rate_limit_delay must not be negative")
	}

	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q", ProviderOllama, ProviderOpenAI, c.LLM.Provider)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if c.LLM.MaxBodyLength < 1 {
		return fmt.Errorf("llm.max_body_length must be positive")
	}
	if c.Analysis.SnippetMaxLength < 1 {
		return fmt.Errorf("analysis.snippet_max_length must be positive")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("database.host and database.dbname are required for postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	if c.Notify.Telegram.Token != "" && c.Notify.Telegram.ChatID == 0 {
		return fmt.Errorf("notify.telegram.chat_id is required when a telegram token is set")
	}
	return nil
}
