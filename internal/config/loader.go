package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/hookgate/internal/auth"
	"github.com/mattjoyce/hookgate/internal/webhook"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, verifies and validates the configuration file at configPath.
//
// If a .checksums manifest sits next to the file, the file's BLAKE3 hash must
// match its entry.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Defaults, expands ${VAR} references and
// validates the result. Unknown keys are rejected.
//
// Expansion runs on decoded string values, so a variable's contents are never
// read as YAML.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	expandEnv(cfg)
	applyHandlerDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// verifyConfigHash checks path against a sibling .checksums manifest, if any.
func verifyConfigHash(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(filepath.Join(dir, checksumsFile)); os.IsNotExist(err) {
		return nil
	}

	manifest, err := LoadChecksums(dir)
	if err != nil {
		return err
	}
	return VerifyScopeFiles(dir, manifest, []string{filepath.Base(path)})
}

func applyHandlerDefaults(cfg *Config) {
	for i := range cfg.Handlers {
		h := &cfg.Handlers[i]
		if h.Name == "" {
			h.Name = fmt.Sprintf("%s-%s-%d", h.Event, h.Type, i)
		}
		if h.Timeout == 0 && (h.Type == HandlerForward || h.Type == HandlerExec) {
			h.Timeout = DefaultHandlerTimeout
		}
	}
}

// expandEnv interpolates the fields that may carry ${VAR} references.
func expandEnv(cfg *Config) {
	cfg.Secret = interpolateEnv(cfg.Secret)
	cfg.Service.PIDFile = interpolateEnv(cfg.Service.PIDFile)
	cfg.Server.Listen = interpolateEnv(cfg.Server.Listen)
	for i := range cfg.Server.Tokens {
		cfg.Server.Tokens[i].Token = interpolateEnv(cfg.Server.Tokens[i].Token)
	}
	for i := range cfg.Handlers {
		h := &cfg.Handlers[i]
		h.URL = interpolateEnv(h.URL)
		h.Secret = interpolateEnv(h.Secret)
		for k, v := range h.Headers {
			h.Headers[k] = interpolateEnv(v)
		}
		h.Command = interpolateEnv(h.Command)
		for j, arg := range h.Args {
			h.Args[j] = interpolateEnv(arg)
		}
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

func unresolved(field, value string) error {
	if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if f := strings.ToLower(cfg.Service.LogFormat); f != "json" && f != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if err := unresolved("secret", cfg.Secret); err != nil {
		return err
	}
	if cfg.Secret == "" {
		return fmt.Errorf("secret is required")
	}

	if err := validateServer(&cfg.Server); err != nil {
		return err
	}

	names := make(map[string]bool, len(cfg.Handlers))
	for i, h := range cfg.Handlers {
		field := fmt.Sprintf("handlers[%d]", i)
		if names[h.Name] {
			return fmt.Errorf("%s: duplicate handler name %q", field, h.Name)
		}
		names[h.Name] = true

		if err := validateHandler(field, h); err != nil {
			return err
		}
	}

	return nil
}

func validateServer(s *ServerConfig) error {
	if s.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("server.path must start with / (got %q)", s.Path)
	}
	for field, p := range map[string]string{"server.metrics_path": s.MetricsPath, "server.events_path": s.EventsPath} {
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with / (got %q)", field, p)
		}
		if p == s.Path {
			return fmt.Errorf("%s must differ from server.path", field)
		}
	}
	if s.MaxBodySize <= 0 {
		return fmt.Errorf("server.max_body_size must be positive")
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 || s.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if s.EventsBuffer < 0 {
		return fmt.Errorf("server.events_buffer must not be negative")
	}
	for i, t := range s.Tokens {
		field := fmt.Sprintf("server.tokens[%d]", i)
		if err := unresolved(field+".token", t.Token); err != nil {
			return err
		}
		if t.Token == "" {
			return fmt.Errorf("%s.token is required", field)
		}
		if len(t.Scopes) == 0 {
			return fmt.Errorf("%s.scopes is required", field)
		}
		for _, scope := range t.Scopes {
			if !auth.KnownScope(scope) {
				return fmt.Errorf("%s.scopes: unknown scope %q (want metrics, events or *)", field, scope)
			}
		}
	}
	return nil
}

func validateHandler(field string, h HandlerConfig) error {
	if h.Event == "" {
		return fmt.Errorf("%s.event is required", field)
	}
	var kind webhook.EventKind
	if err := kind.UnmarshalText([]byte(h.Event)); err != nil {
		return fmt.Errorf("%s.event: %w", field, err)
	}
	if h.Timeout < 0 {
		return fmt.Errorf("%s.timeout must not be negative", field)
	}

	switch h.Type {
	case HandlerLog:
	case HandlerForward:
		if err := unresolved(field+".url", h.URL); err != nil {
			return err
		}
		u, err := url.Parse(h.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s.url must be an absolute http(s) URL (got %q)", field, h.URL)
		}
		if err := unresolved(field+".secret", h.Secret); err != nil {
			return err
		}
		for k, v := range h.Headers {
			if err := unresolved(fmt.Sprintf("%s.headers.%s", field, k), v); err != nil {
				return err
			}
		}
	case HandlerExec:
		if h.Command == "" {
			return fmt.Errorf("%s.command is required for exec handlers", field)
		}
	case "":
		return fmt.Errorf("%s.type is required", field)
	default:
		return fmt.Errorf("%s.type must be one of: log, forward, exec (got %q)", field, h.Type)
	}
	return nil
}
