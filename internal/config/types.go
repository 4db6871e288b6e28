package config

import (
	"time"

	"github.com/mattjoyce/hookgate/internal/webhook"
)

// Config represents the complete hookgate configuration.
type Config struct {
	Service  ServiceConfig   `yaml:"service"`
	Server   ServerConfig    `yaml:"server"`
	Secret   string          `yaml:"secret"`
	Handlers []HandlerConfig `yaml:"handlers"`
}

// ServiceConfig defines process-wide settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// PIDFile, when set, is locked for the life of the serve command.
	PIDFile string `yaml:"pid_file,omitempty"`
}

// ServerConfig defines the HTTP listener that hosts the webhook endpoint.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	Path            string        `yaml:"path"`
	MaxBodySize     ByteSize      `yaml:"max_body_size"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MetricsPath     string        `yaml:"metrics_path"`
	EventsPath      string        `yaml:"events_path"`
	EventsBuffer    int           `yaml:"events_buffer"`

	// Tokens guard the metrics and events paths. Empty leaves them open.
	Tokens []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig is a bearer token for the operator endpoints.
type TokenConfig struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// Handler types.
const (
	HandlerLog     = "log"
	HandlerForward = "forward"
	HandlerExec    = "exec"
)

// HandlerConfig declares one handler registration. Handlers for the same
// event run in the order they appear in the file.
type HandlerConfig struct {
	Name string `yaml:"name"`
	// Event is the X-GitHub-Event name, or "unknown" for unlisted events.
	Event string `yaml:"event"`
	Type  string `yaml:"type"`

	// Timeout bounds a forward request or exec run. Zero means the default.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Actions limits the handler to payloads whose "action" field matches.
	// Empty means every action.
	Actions []string `yaml:"actions,omitempty"`

	// forward
	URL     string            `yaml:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	// Secret re-signs forwarded bodies for the downstream receiver.
	Secret string `yaml:"secret,omitempty"`

	// exec
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

// Kind resolves Event. Validation guarantees it is a known name.
func (h HandlerConfig) Kind() webhook.EventKind {
	return webhook.ParseEventKind(h.Event)
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "hookgate",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Server: ServerConfig{
			Listen:          "127.0.0.1:8081",
			Path:            "/webhook",
			MaxBodySize:     ByteSize(webhook.DefaultMaxBodySize),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MetricsPath:     "/metrics",
			EventsPath:      "/events",
			EventsBuffer:    100,
		},
	}
}

// DefaultHandlerTimeout applies to forward and exec handlers without an
// explicit timeout.
const DefaultHandlerTimeout = 30 * time.Second
