// Package cli implements the SSH transport for RouterOS devices. Commands
// are single text lines and responses are raw terminal text; callers parse
// success or failure out of the content. The CLI exists because the binary
// protocol has documented gaps, most importantly full configuration export.
package cli

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/nettriq/rosfleet/internal/routeros"
)

const (
	// DefaultPort is the RouterOS SSH port.
	DefaultPort = 22

	defaultDialTimeout    = 10 * time.Second
	defaultCommandTimeout = 60 * time.Second
)

// ExportMode selects how much of the configuration /export emits.
type ExportMode string

const (
	// ExportVerbose includes default values; used for primary backups.
	ExportVerbose ExportMode = "verbose"
	// ExportCompact is the device default; used for safety backups.
	ExportCompact ExportMode = "compact"
)

// Client is an SSH session against one device. Like the API client it is
// created per logical operation and closed on every exit path.
type Client struct {
	host     string
	port     int
	username string
	password string

	dialTimeout    time.Duration
	commandTimeout time.Duration
	logger         *zap.Logger

	conn *ssh.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialTimeout overrides the connect timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithCommandTimeout overrides the per-command timeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.commandTimeout = d
		}
	}
}

// New creates a disconnected client.
func New(host string, port int, username, password string, opts ...Option) *Client {
	if port <= 0 {
		port = DefaultPort
	}
	c := &Client{
		host:           strings.TrimSpace(host),
		port:           port,
		username:       username,
		password:       password,
		dialTimeout:    defaultDialTimeout,
		commandTimeout: defaultCommandTimeout,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials and authenticates the SSH session.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	address := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	config := &ssh.ClientConfig{
		User:            c.username,
		Auth:            []ssh.AuthMethod{ssh.Password(c.password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // devices are addressed by operator-managed inventory
		Timeout:         c.dialTimeout,
	}

	type result struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		client, err := ssh.Dial("tcp", address, config)
		ch <- result{client: client, err: err}
	}()

	timer := time.NewTimer(c.dialTimeout + time.Second)
	defer timer.Stop()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C:
		err = fmt.Errorf("ssh dial timeout after %s", c.dialTimeout)
	case out := <-ch:
		if out.err == nil {
			c.conn = out.client
			return nil
		}
		err = out.err
	}

	if strings.Contains(strings.ToLower(err.Error()), "unable to authenticate") {
		return &routeros.AuthenticationError{Host: c.host, User: c.username, Err: err}
	}
	return &routeros.ConnectionError{Host: c.host, Port: c.port, Op: "ssh connect", Err: err}
}

// Connected reports whether the session holds a live connection handle.
func (c *Client) Connected() bool {
	return c.conn != nil
}

// Close tears down the session; idempotent and best-effort.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	if err := conn.Close(); err != nil {
		c.logger.Debug("ssh close", zap.Error(err))
	}
	return nil
}

// Run sends one CLI line and returns the raw text response. There is no
// structured success signal on this transport; the caller's parser decides.
func (c *Client) Run(ctx context.Context, line string) (string, error) {
	if c.conn == nil {
		return "", &routeros.ConnectionError{
			Host: c.host, Port: c.port, Op: "run",
			Err: fmt.Errorf("not connected"),
		}
	}

	type result struct {
		out string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		session, err := c.conn.NewSession()
		if err != nil {
			ch <- result{err: err}
			return
		}
		defer session.Close()
		output, err := session.CombinedOutput(line)
		ch <- result{out: string(output), err: err}
	}()

	timer := time.NewTimer(c.commandTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", fmt.Errorf("command %q timed out after %s", line, c.commandTimeout)
	case out := <-ch:
		if out.err != nil {
			return "", fmt.Errorf("run %q: %w", line, out.err)
		}
		return out.out, nil
	}
}

// Export pulls the full configuration as text. The binary protocol cannot
// do this, which is why backups always open a CLI session.
func (c *Client) Export(ctx context.Context, mode ExportMode) (string, error) {
	command := "/export"
	if mode == ExportVerbose {
		command = "/export verbose"
	}
	out, err := c.Run(ctx, command)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("export returned empty configuration")
	}
	return out, nil
}

// Version probes the firmware version over the CLI; the fallback path when
// no API session is available.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.Run(ctx, "/system resource print")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "version" {
			return strings.TrimSpace(value), nil
		}
	}
	return "", fmt.Errorf("no version in resource output")
}
