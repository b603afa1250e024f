// Package api implements the RouterOS binary-protocol transport. It wraps
// the go-routeros wire client with the session discipline the rest of the
// service relies on: one connection per logical operation, failures reported
// as CommandResults instead of raised errors, idempotent teardown.
package api

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	ros "github.com/go-routeros/routeros/v3"
	"go.uber.org/zap"

	"github.com/nettriq/rosfleet/internal/routeros"
)

const (
	// DefaultPort is the RouterOS API port.
	DefaultPort = 8728

	defaultDialTimeout    = 10 * time.Second
	defaultCommandTimeout = 30 * time.Second
)

// Client is a binary-protocol session against one device. It is not safe
// for concurrent use; each logical operation owns its own Client.
type Client struct {
	host     string
	port     int
	username string
	password string

	dialTimeout    time.Duration
	commandTimeout time.Duration
	logger         *zap.Logger

	conn *ros.Client
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

// New creates a disconnected client. Call Connect before Execute.
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

// Connect dials and logs in. Rejected credentials come back as an
// AuthenticationError, everything else as a ConnectionError.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	address := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))

	type result struct {
		conn *ros.Client
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := ros.DialTimeout(address, c.username, c.password, c.dialTimeout)
		ch <- result{conn: conn, err: err}
	}()

	timer := time.NewTimer(c.dialTimeout + time.Second)
	defer timer.Stop()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C:
		err = fmt.Errorf("dial timeout after %s", c.dialTimeout)
	case out := <-ch:
		if out.err == nil {
			c.conn = out.conn
			return nil
		}
		err = out.err
	}

	if isAuthFailure(err) {
		return &routeros.AuthenticationError{Host: c.host, User: c.username, Err: err}
	}
	return &routeros.ConnectionError{Host: c.host, Port: c.port, Op: "connect", Err: err}
}

// Connected reports whether the session holds a live connection handle.
func (c *Client) Connected() bool {
	return c.conn != nil
}

// Close tears down the session. It is idempotent and best-effort: secondary
// errors are logged, never propagated.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	conn := c.conn
	c.conn = nil
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("close panicked on dead connection", zap.Any("reason", r))
		}
	}()
	conn.Close()
}

// Execute runs one command. It never returns a Go error: transport and
// protocol failures are reported inside the CommandResult.
func (c *Client) Execute(ctx context.Context, command string, args map[string]string) *routeros.CommandResult {
	if c.conn == nil {
		return routeros.Failure(&routeros.ConnectionError{
			Host: c.host, Port: c.port, Op: "execute",
			Err: fmt.Errorf("not connected"),
		})
	}

	words := append([]string{command}, EncodeArgs(args)...)

	type result struct {
		reply *ros.Reply
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		reply, err := c.conn.RunArgs(words)
		ch <- result{reply: reply, err: err}
	}()

	timer := time.NewTimer(c.commandTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		c.Close()
		return routeros.Failure(ctx.Err())
	case <-timer.C:
		// The sentence may still land on a connection we no longer trust.
		c.Close()
		return routeros.Failure(fmt.Errorf("command %s timed out after %s", command, c.commandTimeout))
	case out := <-ch:
		if out.err != nil {
			c.logger.Debug("command failed",
				zap.String("command", command),
				zap.Error(out.err))
			return routeros.Failure(fmt.Errorf("%s: %w", command, out.err))
		}
		return &routeros.CommandResult{Success: true, Records: recordsFromReply(out.reply)}
	}
}

// ExecuteMany runs commands in order and stops at the first failure,
// returning the partial results gathered so far. Fail-fast is deliberate:
// later commands often depend on earlier ones.
func (c *Client) ExecuteMany(ctx context.Context, commands []routeros.Command) []*routeros.CommandResult {
	results := make([]*routeros.CommandResult, 0, len(commands))
	for _, cmd := range commands {
		res := c.Execute(ctx, cmd.Command, cmd.Args)
		results = append(results, res)
		if !res.Success {
			break
		}
	}
	return results
}

// EncodeArgs turns an argument map into protocol words. A key carrying the
// query marker prefix becomes a filter term; every other key (the item
// identifier included) becomes an assignment term. Keys are sorted so a
// command encodes identically on every run.
func EncodeArgs(args map[string]string) []string {
	if len(args) == 0 {
		return nil
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	words := make([]string, 0, len(keys))
	for _, k := range keys {
		v := args[k]
		if strings.HasPrefix(k, "?") {
			words = append(words, "?"+strings.TrimPrefix(k, "?")+"="+v)
			continue
		}
		words = append(words, "="+k+"="+v)
	}
	return words
}

func recordsFromReply(reply *ros.Reply) []routeros.Record {
	if reply == nil || len(reply.Re) == 0 {
		return nil
	}
	records := make([]routeros.Record, 0, len(reply.Re))
	for _, sentence := range reply.Re {
		if sentence == nil || len(sentence.Map) == 0 {
			continue
		}
		rec := make(routeros.Record, len(sentence.Map))
		for k, v := range sentence.Map {
			rec[k] = v
		}
		records = append(records, rec)
	}
	return records
}

func isAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid user name or password") ||
		strings.Contains(msg, "login failure") ||
		strings.Contains(msg, "not logged in")
}
