// Package config handles loading and persisting user configuration
// for the xx chat client. Configuration is stored in ~/.xx-cli/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/enoch-sit/project-1-xx/internal/stream"
)

const (
	dirName  = ".xx-cli"
	fileName = "config.json"

	defaultModel          = "gpt-4o-mini"
	defaultAPIURL         = "http://localhost:8000/chat/completions"
	defaultStreamMode     = ModeInstant
	defaultTypewriterMs   = 30
	defaultTemperature    = 0.7
	defaultMaxTokens      = 1000
	envKeyModel           = "XX_MODEL"
	envKeyAPIURL          = "XX_API_URL"
	envKeyAPIKey          = "XX_API_KEY"
	envKeyStreamMode      = "XX_STREAM_MODE"
	envKeyTypewriterSpeed = "XX_TYPEWRITER_SPEED"
)

// Streaming presentation modes, as stored in the config file.
const (
	ModeInstant    = string(stream.ModeInstant)
	ModeTypewriter = string(stream.ModeTypewriter)
)

// Config holds the user's configuration.
type Config struct {
	APIKey          string  `json:"api_key,omitempty"`
	APIURL          string  `json:"api_url"`
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	MaxTokens       int     `json:"max_tokens"`
	StreamMode      string  `json:"stream_mode"`
	TypewriterSpeed int     `json:"typewriter_speed_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:          defaultAPIURL,
		Model:           defaultModel,
		Temperature:     defaultTemperature,
		MaxTokens:       defaultMaxTokens,
		StreamMode:      defaultStreamMode,
		TypewriterSpeed: defaultTypewriterMs,
	}
}

// Cadence returns the typewriter interval per character.
func (c *Config) Cadence() time.Duration {
	return time.Duration(c.TypewriterSpeed) * time.Millisecond
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

func configPath() string {
	return filepath.Join(Dir(), fileName)
}

// Load reads the configuration from disk and environment variables.
// Saved values are merged onto the defaults and invalid ones replaced.
func Load() (*Config, error) {
	cfg := readFile()

	if model := os.Getenv(envKeyModel); model != "" {
		cfg.Model = model
	}
	if url := os.Getenv(envKeyAPIURL); url != "" {
		cfg.APIURL = url
	}
	if key := os.Getenv(envKeyAPIKey); key != "" {
		cfg.APIKey = key
	}
	if mode := os.Getenv(envKeyStreamMode); mode != "" {
		cfg.StreamMode = mode
	}
	if speed := os.Getenv(envKeyTypewriterSpeed); speed != "" {
		if ms, err := strconv.Atoi(speed); err == nil {
			cfg.TypewriterSpeed = ms
		}
	}

	normalize(cfg)
	return cfg, nil
}

func readFile() *Config {
	cfg := Default()
	data, err := os.ReadFile(configPath())
	if err == nil {
		_ = json.Unmarshal(data, cfg)
	}
	return cfg
}

func normalize(cfg *Config) {
	def := Default()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.APIURL == "" {
		cfg.APIURL = def.APIURL
	}
	if !ValidMode(cfg.StreamMode) {
		cfg.StreamMode = def.StreamMode
	}
	if cfg.TypewriterSpeed <= 0 {
		cfg.TypewriterSpeed = def.TypewriterSpeed
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = def.Temperature
	}
}

// ValidMode reports whether mode is a known streaming mode.
func ValidMode(mode string) bool {
	_, ok := stream.ParseMode(mode)
	return ok
}

// save persists the config to disk.
func save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath(), data, 0o600)
}

// update applies fn to the saved configuration and writes it back.
// Environment overrides are deliberately not persisted.
func update(fn func(*Config)) error {
	cfg := readFile()
	fn(cfg)
	normalize(cfg)
	return save(cfg)
}

// SetAPIKey saves the API key to the config file.
func SetAPIKey(key string) error {
	return update(func(c *Config) { c.APIKey = key })
}

// SetModel saves the model preference to the config file.
func SetModel(model string) error {
	return update(func(c *Config) { c.Model = model })
}

// SetAPIURL saves the chat completions endpoint.
func SetAPIURL(url string) error {
	return update(func(c *Config) { c.APIURL = url })
}

// SetStreamMode saves the streaming presentation mode.
func SetStreamMode(mode string) error {
	if !ValidMode(mode) {
		return &InvalidValueError{Field: "stream mode", Value: mode, Hint: "instant or typewriter"}
	}
	return update(func(c *Config) { c.StreamMode = mode })
}

// SetTypewriterSpeed saves the typewriter interval in milliseconds.
func SetTypewriterSpeed(ms int) error {
	if ms <= 0 {
		return &InvalidValueError{Field: "typewriter speed", Value: strconv.Itoa(ms), Hint: "a positive number of milliseconds"}
	}
	return update(func(c *Config) { c.TypewriterSpeed = ms })
}

// InvalidValueError is returned when a setting is rejected.
type InvalidValueError struct {
	Field string
	Value string
	Hint  string
}

func (e *InvalidValueError) Error() string {
	return "invalid " + e.Field + " " + strconv.Quote(e.Value) + ": expected " + e.Hint
}
