package server

import (
	"net"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultUpstreamURL = "https://aai02.eduhk.hk/openai/deployments/gpt-4o-mini/chat/completions"
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000

	EnvUpstreamURL = "EDUHK_API_URL"
	EnvAPIKey      = "EDUHK_API_KEY"
	EnvHost        = "APP_HOST"
	EnvPort        = "APP_PORT"
	EnvDebug       = "APP_DEBUG"
)

// Config holds the proxy settings.
type Config struct {
	UpstreamURL string
	APIKey      string
	Host        string
	Port        int
	Debug       bool
}

// ConfigFromEnv reads the proxy settings from the environment. Unset or
// unparsable values fall back to defaults.
func ConfigFromEnv() Config {
	cfg := Config{
		UpstreamURL: DefaultUpstreamURL,
		Host:        DefaultHost,
		Port:        DefaultPort,
	}
	if v := strings.TrimSpace(os.Getenv(EnvUpstreamURL)); v != "" {
		cfg.UpstreamURL = v
	}
	cfg.APIKey = strings.TrimSpace(os.Getenv(EnvAPIKey))
	if v := strings.TrimSpace(os.Getenv(EnvHost)); v != "" {
		cfg.Host = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(EnvPort))); err == nil && v > 0 {
		cfg.Port = v
	}
	cfg.Debug = strings.EqualFold(strings.TrimSpace(os.Getenv(EnvDebug)), "true")
	return cfg
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
