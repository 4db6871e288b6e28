package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/hookgate/internal/config"
	"github.com/mattjoyce/hookgate/internal/webhook"
)

const (
	// maxStderrBytes caps the amount of stderr kept from a command.
	maxStderrBytes = 64 * 1024

	terminationGracePeriod = 5 * time.Second
)

// Environment variables set for exec handlers.
const (
	EnvEvent    = "HOOKGATE_EVENT"
	EnvDelivery = "HOOKGATE_DELIVERY"
	EnvAction   = "HOOKGATE_ACTION"
)

// Exec runs a command with the raw body on stdin.
type Exec struct {
	command string
	args    []string
	timeout time.Duration
	grace   time.Duration
	logger  *slog.Logger
}

func NewExec(cfg config.HandlerConfig, logger *slog.Logger) *Exec {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultHandlerTimeout
	}
	return &Exec{
		command: cfg.Command,
		args:    append([]string(nil), cfg.Args...),
		timeout: timeout,
		grace:   terminationGracePeriod,
		logger:  logger,
	}
}

func (e *Exec) Handle(ctx context.Context, p *webhook.Payload) error {
	// Don't use CommandContext; termination is SIGTERM first, then SIGKILL.
	cmd := exec.Command(e.command, e.args...)
	cmd.Stdin = bytes.NewReader(p.Body())
	cmd.Env = append(os.Environ(),
		EnvEvent+"="+p.Event,
		EnvDelivery+"="+p.DeliveryID,
		EnvAction+"="+p.Action(),
	)

	stderr := &cappedBuffer{limit: maxStderrBytes}
	cmd.Stdout = &logWriter{logger: e.logger}
	cmd.Stderr = stderr
	cmd.WaitDelay = e.grace

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", e.command, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	var stopped error
	select {
	case err := <-waitErr:
		return exitError(e.command, err, stderr.String())
	case <-timer.C:
		stopped = context.DeadlineExceeded
	case <-ctx.Done():
		stopped = ctx.Err()
	}

	e.logger.Warn("command did not finish, sending SIGTERM", "command", e.command, "reason", stopped)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		e.logger.Error("failed to send SIGTERM", "error", err)
	}

	grace := time.NewTimer(e.grace)
	defer grace.Stop()

	select {
	case <-waitErr:
	case <-grace.C:
		e.logger.Warn("command did not exit after SIGTERM, sending SIGKILL", "command", e.command)
		if err := cmd.Process.Kill(); err != nil {
			e.logger.Error("failed to send SIGKILL", "error", err)
		}
		<-waitErr
	}

	return fmt.Errorf("%s: %w", e.command, stopped)
}

func exitError(command string, err error, stderr string) error {
	if err == nil {
		return nil
	}
	stderr = strings.TrimSpace(stderr)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if stderr == "" {
			return fmt.Errorf("%s exited with status %d", command, exitErr.ExitCode())
		}
		return fmt.Errorf("%s exited with status %d: %s", command, exitErr.ExitCode(), stderr)
	}
	return fmt.Errorf("wait for %s: %w", command, err)
}

// cappedBuffer keeps the first limit bytes written and discards the rest.
// Writes never fail so the command is not stopped by a full pipe.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (c *cappedBuffer) Write(b []byte) (int, error) {
	if room := c.limit - c.buf.Len(); room > 0 {
		if len(b) > room {
			c.buf.Write(b[:room])
		} else {
			c.buf.Write(b)
		}
	}
	return len(b), nil
}

func (c *cappedBuffer) String() string { return c.buf.String() }

// logWriter sends command stdout to the debug log line by line.
type logWriter struct {
	logger *slog.Logger
	buf    []byte
}

func (w *logWriter) Write(b []byte) (int, error) {
	w.buf = append(w.buf, b...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logger.Debug("command output", "line", string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxStderrBytes {
		w.logger.Debug("command output", "line", string(w.buf))
		w.buf = w.buf[:0]
	}
	return len(b), nil
}
