package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookgate/internal/webhook"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "minimal valid config",
			yaml: `secret: s3cr3t`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "s3cr3t", cfg.Secret)
				assert.Equal(t, "/webhook", cfg.Server.Path)
				assert.Equal(t, "127.0.0.1:8081", cfg.Server.Listen)
				assert.Equal(t, ByteSize(webhook.DefaultMaxBodySize), cfg.Server.MaxBodySize)
				assert.Equal(t, "info", cfg.Service.LogLevel)
				assert.Empty(t, cfg.Handlers)
			},
		},
		{
			name: "full config",
			yaml: `
service:
  name: gate
  log_level: debug
  log_format: text
server:
  listen: 0.0.0.0:9000
  path: /hooks/github
  max_body_size: 2MB
  read_timeout: 5s
  metrics_path: ""
  tokens:
    - token: ${HOOKGATE_TEST_TOKEN}
      scopes: [events]
secret: ${HOOKGATE_TEST_SECRET}
handlers:
  - event: issue_comment
    type: log
  - name: ci
    event: push
    type: forward
    url: https://ci.internal/hooks
    timeout: 3s
    headers:
      Authorization: Bearer ${HOOKGATE_TEST_TOKEN}
  - name: triage
    event: issue_comment
    type: exec
    command: ./triage.sh
    args: [--dry-run]
    actions: [created]
`,
			env: map[string]string{"HOOKGATE_TEST_SECRET": "from-env", "HOOKGATE_TEST_TOKEN": "tok"},
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "from-env", cfg.Secret)
				assert.Equal(t, "text", cfg.Service.LogFormat)
				assert.Equal(t, "/hooks/github", cfg.Server.Path)
				assert.Equal(t, ByteSize(2*1024*1024), cfg.Server.MaxBodySize)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "", cfg.Server.MetricsPath)
				assert.Equal(t, "/events", cfg.Server.EventsPath, "unset keys keep defaults")
				assert.Equal(t, []TokenConfig{{Token: "tok", Scopes: []string{"events"}}}, cfg.Server.Tokens)

				require.Len(t, cfg.Handlers, 3)
				assert.Equal(t, "issue_comment-log-0", cfg.Handlers[0].Name)
				assert.Equal(t, webhook.IssueComment, cfg.Handlers[0].Kind())
				assert.Zero(t, cfg.Handlers[0].Timeout)

				assert.Equal(t, webhook.Push, cfg.Handlers[1].Kind())
				assert.Equal(t, 3*time.Second, cfg.Handlers[1].Timeout)
				assert.Equal(t, "Bearer tok", cfg.Handlers[1].Headers["Authorization"])

				assert.Equal(t, DefaultHandlerTimeout, cfg.Handlers[2].Timeout)
				assert.Equal(t, []string{"--dry-run"}, cfg.Handlers[2].Args)
				assert.Equal(t, []string{"created"}, cfg.Handlers[2].Actions)
			},
		},
		{
			name: "unknown event catch-all",
			yaml: `
secret: s
handlers:
  - event: unknown
    type: log
`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, webhook.Unknown, cfg.Handlers[0].Kind())
			},
		},
		{
			name: "variable values are not parsed as YAML",
			yaml: `
secret: ${HOOKGATE_TEST_SECRET}
handlers:
  - event: push
    type: forward
    url: https://ci.internal/hooks
    secret: "${HOOKGATE_TEST_SECRET}"
    headers:
      X-Token: ${HOOKGATE_TEST_TOKEN}
`,
			env: map[string]string{"HOOKGATE_TEST_SECRET": "abc #def: *x", "HOOKGATE_TEST_TOKEN": "&anchor !tag"},
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "abc #def: *x", cfg.Secret)
				assert.Equal(t, "abc #def: *x", cfg.Handlers[0].Secret)
				assert.Equal(t, "&anchor !tag", cfg.Handlers[0].Headers["X-Token"])
			},
		},
		{
			name: "expansion is limited to value fields",
			yaml: "secret: s\nservice:\n  name: ${HOOKGATE_TEST_SECRET}",
			env:  map[string]string{"HOOKGATE_TEST_SECRET": "from-env"},
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "${HOOKGATE_TEST_SECRET}", cfg.Service.Name)
			},
		},
		{name: "missing secret", yaml: `service: {name: x}`, wantErr: "secret is required"},
		{name: "unset secret variable", yaml: `secret: ${HOOKGATE_TEST_UNSET}`, wantErr: "${HOOKGATE_TEST_UNSET} is not set"},
		{name: "unknown key", yaml: "secret: s\nsecrets: t", wantErr: "field secrets not found"},
		{name: "bad log level", yaml: "secret: s\nservice: {log_level: loud}", wantErr: "service.log_level"},
		{name: "bad path", yaml: "secret: s\nserver: {path: webhook}", wantErr: "server.path must start with /"},
		{name: "metrics on webhook path", yaml: "secret: s\nserver: {path: /m, metrics_path: /m}", wantErr: "server.metrics_path must differ"},
		{
			name:    "token without scopes",
			yaml:    "secret: s\nserver:\n  tokens:\n    - {token: abc}",
			wantErr: "server.tokens[0].scopes is required",
		},
		{
			name:    "token with unknown scope",
			yaml:    "secret: s\nserver:\n  tokens:\n    - {token: abc, scopes: [admin]}",
			wantErr: `server.tokens[0].scopes: unknown scope "admin"`,
		},
		{name: "bad size", yaml: "secret: s\nserver: {max_body_size: lots}", wantErr: "invalid size value"},
		{
			name:    "unknown event",
			yaml:    "secret: s\nhandlers:\n  - {event: issue_coment, type: log}",
			wantErr: `handlers[0].event: unknown event "issue_coment"`,
		},
		{
			name:    "missing event",
			yaml:    "secret: s\nhandlers:\n  - {type: log}",
			wantErr: "handlers[0].event is required",
		},
		{
			name:    "bad type",
			yaml:    "secret: s\nhandlers:\n  - {event: push, type: email}",
			wantErr: "handlers[0].type must be one of",
		},
		{
			name:    "forward without url",
			yaml:    "secret: s\nhandlers:\n  - {event: push, type: forward}",
			wantErr: "handlers[0].url must be an absolute http(s) URL",
		},
		{
			name:    "exec without command",
			yaml:    "secret: s\nhandlers:\n  - {event: push, type: exec}",
			wantErr: "handlers[0].command is required",
		},
		{
			name:    "duplicate names",
			yaml:    "secret: s\nhandlers:\n  - {name: a, event: push, type: log}\n  - {name: a, event: ping, type: log}",
			wantErr: `handlers[1]: duplicate handler name "a"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Parse([]byte(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("secret: s3cr3t\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Secret)

	// A directory resolves to its config.yaml.
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Secret)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "config file not found")
}

func TestLoad_VerifiesChecksums(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("secret: s3cr3t\n"), 0600))

	_, err := GenerateChecksumsWithReport(dir, []string{"config.yaml"}, false)
	require.NoError(t, err)

	_, err = Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("secret: tampered\n"), 0600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "hash mismatch")
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1048576", 1048576, false},
		{"512KB", 512 * 1024, false},
		{"1mb", 1024 * 1024, false},
		{"2GB", 2 * 1024 * 1024 * 1024, false},
		{" 25MB ", 25 * 1024 * 1024, false},
		{"0", 0, true},
		{"-1MB", 0, true},
		{"MB", 0, true},
		{"9223372036854775807GB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByteSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
