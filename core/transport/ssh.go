package transport

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/moler-go/moler/core/molererr"
)

// SSH is a Transport over an interactive shell session's stdin/stdout,
// for endpoints reached over SSH.
type SSH struct {
	addr   string
	config *ssh.ClientConfig
	logger *slog.Logger

	mu      sync.Mutex
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	inbound func([]byte)
	closed  bool
}

// SSHOption configures an SSH transport at construction.
type SSHOption func(*SSH)

// WithSSHLogger overrides the transport's logger.
func WithSSHLogger(l *slog.Logger) SSHOption {
	return func(s *SSH) { s.logger = l }
}

// NewSSH builds an SSH transport dialing addr and opening an interactive
// shell session on Open.
func NewSSH(addr string, config *ssh.ClientConfig, opts ...SSHOption) *SSH {
	s := &SSH{addr: addr, config: config, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetInbound implements Transport.
func (s *SSH) SetInbound(fn func(chunk []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbound = fn
}

// Open dials addr, opens a session and requests a PTY-less shell, wiring
// its stdout into the inbound callback. The session's stderr is not read.
func (s *SSH) Open(ctx context.Context) error {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return molererr.Transport(err, "ssh: dial failed")
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, s.addr, s.config)
	if err != nil {
		return molererr.Transport(err, "ssh: handshake failed")
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		return molererr.Transport(err, "ssh: session open failed")
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		_ = session.Close()
		_ = client.Close()
		return molererr.Transport(err, "ssh: stdin pipe failed")
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		_ = client.Close()
		return molererr.Transport(err, "ssh: stdout pipe failed")
	}

	if err := session.Shell(); err != nil {
		_ = session.Close()
		_ = client.Close()
		return molererr.Transport(err, "ssh: shell request failed")
	}

	s.mu.Lock()
	s.client = client
	s.session = session
	s.stdin = stdin
	inbound := s.inbound
	s.mu.Unlock()

	go readLoop(stdout.Read, inbound)
	return nil
}

// Send writes p to the session's stdin.
func (s *SSH) Send(p []byte) error {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()

	if stdin == nil {
		return molererr.Core("ssh: send before open", nil)
	}
	if _, err := stdin.Write(p); err != nil {
		return molererr.Transport(err, "ssh: write failed")
	}
	return nil
}

// Close releases the session and client. Idempotent.
func (s *SSH) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if s.session != nil {
		if err := s.session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
