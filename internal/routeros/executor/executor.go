// Package executor wraps a binary transport with retry, backoff, and
// reconnection. It is the one place retry policy lives; transports stay
// single-shot and callers stay declarative.
package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nettriq/rosfleet/internal/routeros"
)

// Transport is the slice of the binary client the executor needs.
type Transport interface {
	Connect(ctx context.Context) error
	Connected() bool
	Execute(ctx context.Context, command string, args map[string]string) *routeros.CommandResult
	Close()
}

// RetryPolicy configures exponential backoff. MaxAttempts includes the
// first attempt; there is no jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultPolicy matches the behavior devices in the field tolerate well:
// three attempts, one second base, doubling per attempt.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// delayFor returns the wait after failedAttempt (1-based) has completed.
func (p RetryPolicy) delayFor(failedAttempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < failedAttempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
	}
	return delay
}

// Executor retries commands against a transport. OnRetry, when set, is
// invoked once per re-attempt (metrics hook).
type Executor struct {
	Policy  RetryPolicy
	Logger  *zap.Logger
	OnRetry func(command string)
}

// New creates an executor with the given policy.
func New(policy RetryPolicy, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{Policy: policy, Logger: logger}
}

// ExecuteWithRetry runs a command, re-establishing the connection when it
// was dropped and backing off exponentially between attempts. Exhausted
// retries return the last failure as a CommandResult, never a raised error.
// Authentication failures short-circuit: retrying them cannot succeed.
func (e *Executor) ExecuteWithRetry(ctx context.Context, t Transport, command string, args map[string]string) *routeros.CommandResult {
	policy := e.Policy.normalized()
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var last *routeros.CommandResult
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if e.OnRetry != nil {
				e.OnRetry(command)
			}
			delay := policy.delayFor(attempt - 1)
			logger.Debug("retrying command",
				zap.String("command", command),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return routeros.Failure(ctx.Err())
			case <-time.After(delay):
			}
		}

		if !t.Connected() {
			if err := t.Connect(ctx); err != nil {
				last = routeros.Failure(err)
				if routeros.IsAuthenticationError(err) {
					return last
				}
				continue
			}
		}

		last = t.Execute(ctx, command, args)
		if last.Success {
			return last
		}
		// A failed command may have poisoned the session; drop it so the
		// next attempt dials fresh.
		t.Close()
	}
	return last
}

// ExecuteMany runs commands in order through the retry path and stops at
// the first command whose retries are exhausted, returning partial results.
func (e *Executor) ExecuteMany(ctx context.Context, t Transport, commands []routeros.Command) []*routeros.CommandResult {
	results := make([]*routeros.CommandResult, 0, len(commands))
	for _, cmd := range commands {
		res := e.ExecuteWithRetry(ctx, t, cmd.Command, cmd.Args)
		results = append(results, res)
		if !res.Success {
			break
		}
	}
	return results
}
