package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port   int
	DBPath string
	// Narrator
	OllamaBaseURL       string
	NarratorModel       string
	NarratorTemperature float64
	NarratorTimeout     time.Duration
	// PromptsFile replaces the embedded prompt templates when set.
	PromptsFile string
	// Export
	ExportDir string
	// HTTP
	APIKey      string
	CORSOrigins []string
	GameIdleTTL time.Duration
	LogLevel    string
	// ConfigFile is the timeline.yaml that was read, empty when none was found.
	ConfigFile string
}

// env names the environment variable bound to each config key.
var env = map[string]string{
	"port":                 "PORT",
	"db_path":              "TIMELINE_DB_PATH",
	"ollama_base_url":      "OLLAMA_BASE_URL",
	"narrator_model":       "NARRATOR_MODEL",
	"narrator_temperature": "NARRATOR_TEMPERATURE",
	"narrator_timeout":     "NARRATOR_TIMEOUT",
	"narrator_prompts":     "NARRATOR_PROMPTS",
	"export_dir":           "EXPORT_DIR",
	"api_key":              "API_KEY",
	"cors_origins":         "CORS_ORIGINS",
	"game_idle_ttl":        "GAME_IDLE_TTL",
	"log_level":            "LOG_LEVEL",
}

// Load reads defaults, then an optional timeline.yaml from any of paths,
// then environment overrides.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetDefault("port", 8742)
	v.SetDefault("db_path", "timeline.db")
	v.SetDefault("ollama_base_url", "http://localhost:11434")
	v.SetDefault("narrator_model", "llama3.1")
	v.SetDefault("narrator_temperature", 0.8)
	v.SetDefault("narrator_timeout", "120s")
	v.SetDefault("narrator_prompts", "")
	v.SetDefault("export_dir", ".")
	v.SetDefault("api_key", "")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("game_idle_ttl", "2h")
	v.SetDefault("log_level", "info")

	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	v.SetConfigName("timeline")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if len(paths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Port:                v.GetInt("port"),
		DBPath:              v.GetString("db_path"),
		OllamaBaseURL:       strings.TrimRight(v.GetString("ollama_base_url"), "/"),
		NarratorModel:       strings.TrimSpace(v.GetString("narrator_model")),
		NarratorTemperature: v.GetFloat64("narrator_temperature"),
		NarratorTimeout:     v.GetDuration("narrator_timeout"),
		PromptsFile:         v.GetString("narrator_prompts"),
		ExportDir:           v.GetString("export_dir"),
		APIKey:              v.GetString("api_key"),
		CORSOrigins:         splitList(v.GetString("cors_origins")),
		GameIdleTTL:         v.GetDuration("game_idle_ttl"),
		LogLevel:            strings.ToLower(v.GetString("log_level")),
		ConfigFile:          v.ConfigFileUsed(),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("TIMELINE_DB_PATH must not be empty")
	}
	if c.OllamaBaseURL == "" {
		return fmt.Errorf("OLLAMA_BASE_URL must not be empty")
	}
	if c.NarratorModel == "" {
		return fmt.Errorf("NARRATOR_MODEL must not be empty")
	}
	if c.NarratorTemperature < 0 || c.NarratorTemperature > 2 {
		return fmt.Errorf("NARRATOR_TEMPERATURE must be between 0 and 2, got %g", c.NarratorTemperature)
	}
	if c.NarratorTimeout <= 0 {
		return fmt.Errorf("NARRATOR_TIMEOUT must be positive, got %s", c.NarratorTimeout)
	}
	if c.GameIdleTTL <= 0 {
		return fmt.Errorf("GAME_IDLE_TTL must be positive, got %s", c.GameIdleTTL)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// NewLogger builds the JSON logger used by every binary.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", s)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
