package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the assistant.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address            string        `mapstructure:"address"`
	JWTSecret          string        `mapstructure:"jwt_secret"` // empty disables auth
	AllowOrigins       []string      `mapstructure:"allow_origins"`
	JanitorSchedule    string        `mapstructure:"janitor_schedule"` // cron expression
	SuspendedRetention time.Duration `mapstructure:"suspended_retention"`
}

func (s ServerConfig) Validate() error {
	if s.SuspendedRetention < 0 {
		return errors.New("server.suspended_retention must not be negative")
	}
	return nil
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type    string              `mapstructure:"type"` // openai
	APIKey  string              `mapstructure:"api_key"`
	BaseURL string              `mapstructure:"base_url"`
	Timeout time.Duration       `mapstructure:"timeout"`
	Models  map[string]LLMModel `mapstructure:"models"`
}

// LLMModel describes a routable model.
type LLMModel struct {
	Name        string  `mapstructure:"name"`
	APIName     string  `mapstructure:"api_name"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// LLMRoutingConfig maps workflow concerns to model names.
type LLMRoutingConfig struct {
	Classification string `mapstructure:"classification"`
	Planning       string `mapstructure:"planning"`
	Synthesis      string `mapstructure:"synthesis"`
	Chatting       string `mapstructure:"chatting"`
	Memory         string `mapstructure:"memory"`
	Fallback       string `mapstructure:"fallback"`
}

// SearchConfig contains web search settings
type SearchConfig struct {
	Provider       string        `mapstructure:"provider"` // tavily, brave, serper
	TavilyAPIKey   string        `mapstructure:"tavily_api_key"`
	BraveAPIKey    string        `mapstructure:"brave_api_key"`
	SerperAPIKey   string        `mapstructure:"serper_api_key"`
	MaxResults     int           `mapstructure:"max_results"`
	Timeout        time.Duration `mapstructure:"timeout"`
	FetchContent   bool          `mapstructure:"fetch_content"`   // enrich results with article text
	RenderFallback bool          `mapstructure:"render_fallback"` // headless browser when static fetch is empty
	FetchMaxChars  int           `mapstructure:"fetch_max_chars"`
}

func (s SearchConfig) APIKey() string {
	switch s.Provider {
	case "brave":
		return s.BraveAPIKey
	case "serper":
		return s.SerperAPIKey
	default:
		return s.TavilyAPIKey
	}
}

func (s SearchConfig) Validate() error {
	switch s.Provider {
	case "", "tavily", "brave", "serper":
	default:
		return fmt.Errorf("search.provider %q is not supported", s.Provider)
	}
	if s.MaxResults < 0 {
		return errors.New("search.max_results must not be negative")
	}
	return nil
}

// StorageConfig contains snapshot/episode persistence settings
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"` // postgres, redis, memory
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

func (s StorageConfig) Validate() error {
	switch s.Driver {
	case "", "memory", "postgres", "redis":
	default:
		return fmt.Errorf("storage.driver %q is not supported", s.Driver)
	}
	if s.Driver == "postgres" {
		return s.Postgres.Validate()
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"ssl_mode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if p.Host == "" || p.Port == "" {
		return errors.New("storage.postgres host and port are required")
	}
	return nil
}

// DSN renders the lib/pq connection string.
func (p PostgresConfig) DSN() string {
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// MemoryConfig controls episodic memory behaviour.
type MemoryConfig struct {
	Episodic EpisodicMemoryConfig `mapstructure:"episodic"`
}

// EpisodicMemoryConfig gates the past-decision advisor.
type EpisodicMemoryConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	MinEpisodes         int     `mapstructure:"min_episodes"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	SearchTopK          int     `mapstructure:"search_top_k"`
}

func (e EpisodicMemoryConfig) Normalize() EpisodicMemoryConfig {
	if e.MinEpisodes <= 0 {
		e.MinEpisodes = 3
	}
	if e.ConfidenceThreshold <= 0 {
		e.ConfidenceThreshold = 0.8
	}
	if e.SearchTopK <= 0 {
		e.SearchTopK = 5
	}
	return e
}

func (e EpisodicMemoryConfig) Validate() error {
	if e.ConfidenceThreshold > 1 {
		return errors.New("memory.episodic.confidence_threshold must be <= 1")
	}
	return nil
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file, falling back to defaults plus QUESTER_*
// environment overrides when no file is found.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "120s")
	viper.SetDefault("server.address", ":8000")
	viper.SetDefault("server.janitor_schedule", "0 * * * *")
	viper.SetDefault("server.suspended_retention", "720h")
	viper.SetDefault("search.provider", "tavily")
	viper.SetDefault("search.max_results", 3)
	viper.SetDefault("search.timeout", "20s")
	viper.SetDefault("search.fetch_max_chars", 4000)
	viper.SetDefault("storage.driver", "memory")
	viper.SetDefault("memory.episodic.enabled", true)
	viper.SetDefault("memory.episodic.min_episodes", 3)
	viper.SetDefault("memory.episodic.confidence_threshold", 0.8)
	viper.SetDefault("memory.episodic.search_top_k", 5)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("QUESTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Memory.Episodic = config.Memory.Episodic.Normalize()

	if err := config.Server.Validate(); err != nil {
		panic(err)
	}
	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Validate(); err != nil {
		panic(err)
	}
	if err := config.Memory.Episodic.Validate(); err != nil {
		panic(err)
	}
	return &config
}
