package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server          ServerConfig          `mapstructure:"server" json:"server"`
	Log             LogConfig             `mapstructure:"log" json:"log"`
	Storage         StorageConfig         `mapstructure:"storage" json:"storage"`
	LLM             LLMConfig             `mapstructure:"llm" json:"llm"`
	Timeline        TimelineConfig        `mapstructure:"timeline" json:"timeline"`
	Recommendations RecommendationsConfig `mapstructure:"recommendations" json:"recommendations"`
	Monitor         MonitorConfig         `mapstructure:"monitor" json:"monitor"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host" json:"host"`
	Port        int    `mapstructure:"port" json:"port"`
	CORSOrigins string `mapstructure:"cors_origins" json:"cors_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"` // text or json
}

// StorageConfig selects the persistence backend. Driver is one of memory,
// postgres, pgx or sqlite.
type StorageConfig struct {
	Driver   string `mapstructure:"driver" json:"driver"`
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	Database string `mapstructure:"database" json:"database"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
	Path     string `mapstructure:"path" json:"path"` // sqlite file
}

// LLMConfig configures the OpenAI-compatible text generation endpoint. An
// empty APIKey leaves the capability unconfigured.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key" json:"api_key,omitempty"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url,omitempty"`
	Model       string        `mapstructure:"model" json:"model"`
	Temperature float32       `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" json:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
}

// Configured reports whether an API key is present
func (c LLMConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type TimelineConfig struct {
	Gap        time.Duration `mapstructure:"gap" json:"gap"`
	FlowWindow int           `mapstructure:"flow_window" json:"flow_window"`
	FlowLimit  int           `mapstructure:"flow_limit" json:"flow_limit"`
}

type RecommendationsConfig struct {
	CacheTTL        time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
	RecentWindow    int           `mapstructure:"recent_window" json:"recent_window"`
	RateLimit       int           `mapstructure:"rate_limit" json:"rate_limit"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window" json:"rate_limit_window"`
}

// MonitorConfig drives the client-side polling loop and its background sync
type MonitorConfig struct {
	APIURL        string        `mapstructure:"api_url" json:"api_url"`
	PollInterval  time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
	MinConfidence float64       `mapstructure:"min_confidence" json:"min_confidence"`
	SyncDebounce  time.Duration `mapstructure:"sync_debounce" json:"sync_debounce"`
	SyncBatch     int           `mapstructure:"sync_batch" json:"sync_batch"`
	ContextWindow int           `mapstructure:"context_window" json:"context_window"`
}

// Load reads config.{json,yaml,toml} from the usual places, applies defaults
// and MOODLENS_* environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".moodlens"))
	}

	return load(v)
}

// LoadFile reads an explicit config file
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("moodlens")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", "http://localhost:5000,http://localhost:5173")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.host", "localhost")
	v.SetDefault("storage.port", 5432)
	v.SetDefault("storage.user", "moodlens")
	v.SetDefault("storage.password", "")
	v.SetDefault("storage.database", "moodlens")
	v.SetDefault("storage.sslmode", "disable")
	v.SetDefault("storage.path", "moodlens.db")

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("llm.model", "gemini-1.5-flash")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.timeout", 20*time.Second)

	v.SetDefault("timeline.gap", 5*time.Second)
	v.SetDefault("timeline.flow_window", 50)
	v.SetDefault("timeline.flow_limit", 5)

	v.SetDefault("recommendations.cache_ttl", 30*time.Second)
	v.SetDefault("recommendations.recent_window", 5)
	v.SetDefault("recommendations.rate_limit", 30)
	v.SetDefault("recommendations.rate_limit_window", time.Minute)

	v.SetDefault("monitor.api_url", "http://localhost:5000")
	v.SetDefault("monitor.poll_interval", 500*time.Millisecond)
	v.SetDefault("monitor.min_confidence", 0.3)
	v.SetDefault("monitor.sync_debounce", 5*time.Second)
	v.SetDefault("monitor.sync_batch", 5)
	v.SetDefault("monitor.context_window", 20)
}

func loadEnvOverrides(cfg *Config) {
	// Provider keys are honoured when no explicit key was configured
	if cfg.LLM.APIKey == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
}
