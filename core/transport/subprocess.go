package transport

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/moler-go/moler/core/molererr"
)

// Subprocess is a Transport over a child process's stdin/stdout, for
// local command/response endpoints (e.g. a simulator or a CLI tool
// driven like a modem).
type Subprocess struct {
	name   string
	args   []string
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	inbound func([]byte)
	closed  bool
}

// SubprocessOption configures a Subprocess transport at construction.
type SubprocessOption func(*Subprocess)

// WithSubprocessLogger overrides the transport's logger.
func WithSubprocessLogger(l *slog.Logger) SubprocessOption {
	return func(s *Subprocess) { s.logger = l }
}

// NewSubprocess builds a Subprocess transport running name with args on
// Open.
func NewSubprocess(name string, args []string, opts ...SubprocessOption) *Subprocess {
	s := &Subprocess{name: name, args: args, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetInbound implements Transport.
func (s *Subprocess) SetInbound(fn func(chunk []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbound = fn
}

// Open starts the child process, wiring its stdout into the inbound
// callback.
func (s *Subprocess) Open(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.name, s.args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return molererr.Transport(err, "subprocess: stdin pipe failed")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return molererr.Transport(err, "subprocess: stdout pipe failed")
	}

	if err := cmd.Start(); err != nil {
		return molererr.Transport(err, "subprocess: start failed")
	}

	s.mu.Lock()
	s.cmd = cmd
	s.stdin = stdin
	inbound := s.inbound
	s.mu.Unlock()

	go readLoop(stdout.Read, inbound)
	return nil
}

// Send writes p to the child process's stdin.
func (s *Subprocess) Send(p []byte) error {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()

	if stdin == nil {
		return molererr.Core("subprocess: send before open", nil)
	}
	if _, err := stdin.Write(p); err != nil {
		return molererr.Transport(err, "subprocess: write failed")
	}
	return nil
}

// Close closes the child's stdin and waits for it to exit. Idempotent.
func (s *Subprocess) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	if err := s.cmd.Wait(); err != nil {
		s.logger.Debug("subprocess: exited", "name", s.name, "error", err)
	}
	return nil
}
