// Package troubleshoot runs operator diagnostics (ping, traceroute,
// continuous ping, reachability sweeps) against managed devices over the
// CLI transport.
package troubleshoot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nettriq/rosfleet/internal/controlplane/credentials"
	"github.com/nettriq/rosfleet/internal/routeros/parse"
)

// Session is one live CLI session.
type Session interface {
	Run(ctx context.Context, line string) (string, error)
	Close() error
}

// Dialer opens a connected CLI session for the given device parameters.
type Dialer func(ctx context.Context, params credentials.ConnectionParams) (Session, error)

// Resolver loads decrypted connection parameters for a device.
type Resolver interface {
	Resolve(ctx context.Context, deviceID string) (credentials.ConnectionParams, error)
}

// Observer counts tool runs, typically for metrics.
type Observer interface {
	TroubleshootRun(tool string)
}

const (
	// batchWidth bounds how many devices a sweep probes at once.
	batchWidth = 5
	// pingPause is the fixed gap between continuous-ping iterations.
	pingPause = time.Second
)

// Engine composes credential resolution, CLI sessions, and parsers.
type Engine struct {
	resolver Resolver
	dial     Dialer
	observer Observer
	logger   *zap.Logger
}

// NewEngine wires an engine. observer may be nil.
func NewEngine(resolver Resolver, dial Dialer, observer Observer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{resolver: resolver, dial: dial, observer: observer, logger: logger}
}

// PingParams configures a ping run. Every optional field is appended to
// the command only when supplied.
type PingParams struct {
	Address       string `json:"address"`
	Count         int    `json:"count,omitempty"`
	Size          int    `json:"size,omitempty"`
	TTL           int    `json:"ttl,omitempty"`
	SrcAddress    string `json:"src_address,omitempty"`
	Interface     string `json:"interface,omitempty"`
	DoNotFragment bool   `json:"do_not_fragment,omitempty"`
	DSCP          int    `json:"dscp,omitempty"`
}

func (p PingParams) commandLine() string {
	var b strings.Builder
	b.WriteString("/ping ")
	b.WriteString(p.Address)
	if p.Count > 0 {
		fmt.Fprintf(&b, " count=%d", p.Count)
	}
	if p.Size > 0 {
		fmt.Fprintf(&b, " size=%d", p.Size)
	}
	if p.TTL > 0 {
		fmt.Fprintf(&b, " ttl=%d", p.TTL)
	}
	if p.SrcAddress != "" {
		fmt.Fprintf(&b, " src-address=%s", p.SrcAddress)
	}
	if p.Interface != "" {
		fmt.Fprintf(&b, " interface=%s", p.Interface)
	}
	if p.DoNotFragment {
		b.WriteString(" do-not-fragment")
	}
	if p.DSCP > 0 {
		fmt.Fprintf(&b, " dscp=%d", p.DSCP)
	}
	return b.String()
}

// Ping runs one ping against a device and parses the result table.
func (e *Engine) Ping(ctx context.Context, deviceID string, params PingParams) (*parse.PingResult, error) {
	if strings.TrimSpace(params.Address) == "" {
		return nil, fmt.Errorf("ping requires a target address")
	}
	if e.observer != nil {
		e.observer.TroubleshootRun("ping")
	}

	output, err := e.runLine(ctx, deviceID, params.commandLine())
	if err != nil {
		return nil, err
	}
	return parse.PingOutput(output)
}

// TracerouteParams configures a traceroute run.
type TracerouteParams struct {
	Address string `json:"address"`
	Count   int    `json:"count,omitempty"`
}

// Traceroute runs a traceroute and parses the final report block.
func (e *Engine) Traceroute(ctx context.Context, deviceID string, params TracerouteParams) (*parse.TracerouteResult, error) {
	if strings.TrimSpace(params.Address) == "" {
		return nil, fmt.Errorf("traceroute requires a target address")
	}
	if e.observer != nil {
		e.observer.TroubleshootRun("traceroute")
	}

	count := params.Count
	if count <= 0 {
		count = 3
	}
	line := fmt.Sprintf("/tool traceroute %s count=%d", params.Address, count)
	output, err := e.runLine(ctx, deviceID, line)
	if err != nil {
		return nil, err
	}
	result, err := parse.TracerouteOutput(output)
	if err != nil {
		return nil, err
	}
	result.Target = params.Address
	return result, nil
}

// ContinuousPing runs Ping sequentially `iterations` times with a fixed
// one-second pause between rounds. Each round opens a fresh session; the
// sequence is finite and not restartable.
func (e *Engine) ContinuousPing(ctx context.Context, deviceID string, params PingParams, iterations int) ([]*parse.PingResult, error) {
	if iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive")
	}

	results := make([]*parse.PingResult, 0, iterations)
	for i := 0; i < iterations; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(pingPause):
			}
		}
		result, err := e.Ping(ctx, deviceID, params)
		if err != nil {
			return results, fmt.Errorf("iteration %d: %w", i+1, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// ReachabilityResult reports one device's sweep outcome.
type ReachabilityResult struct {
	DeviceID  string `json:"device_id"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// TestAll probes a set of devices, at most batchWidth in flight at a time.
// Each probe opens its own session and runs a cheap resource print.
func (e *Engine) TestAll(ctx context.Context, deviceIDs []string) []ReachabilityResult {
	if e.observer != nil {
		e.observer.TroubleshootRun("reachability")
	}

	results := make([]ReachabilityResult, len(deviceIDs))
	for start := 0; start < len(deviceIDs); start += batchWidth {
		end := start + batchWidth
		if end > len(deviceIDs) {
			end = len(deviceIDs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = e.testOne(ctx, deviceIDs[i])
			}(i)
		}
		wg.Wait()
	}
	return results
}

func (e *Engine) testOne(ctx context.Context, deviceID string) ReachabilityResult {
	result := ReachabilityResult{DeviceID: deviceID}
	if _, err := e.runLine(ctx, deviceID, "/system resource print"); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Reachable = true
	return result
}

// runLine resolves the device, opens a session, runs one line, and closes
// the session on every exit path.
func (e *Engine) runLine(ctx context.Context, deviceID, line string) (string, error) {
	params, err := e.resolver.Resolve(ctx, deviceID)
	if err != nil {
		return "", err
	}
	session, err := e.dial(ctx, params)
	if err != nil {
		return "", err
	}
	defer session.Close()

	output, err := session.Run(ctx, line)
	if err != nil {
		return "", err
	}
	return output, nil
}
