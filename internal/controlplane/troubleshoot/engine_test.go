package troubleshoot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nettriq/rosfleet/internal/controlplane/credentials"
)

const pingOutput = `  SEQ HOST                                     SIZE TTL TIME       STATUS
    0 10.0.0.1                                   56  64 1ms500us
    1 10.0.0.1                                   56  64 2ms
    sent=2 received=2 packet-loss=0% min-rtt=1ms500us avg-rtt=1ms750us max-rtt=2ms
`

const tracerouteOutput = ` # ADDRESS                          LOSS SENT    LAST     AVG    BEST   WORST
 1 10.0.0.254                         0%    3   1.2ms     1.2     1.1     1.4
 2 172.16.0.1                         0%    3   4.8ms     4.9     4.7     5.2
`

type fakeSession struct {
	output string
	runErr error
	lines  []string
	closed int
	mu     sync.Mutex
}

func (f *fakeSession) Run(_ context.Context, line string) (string, error) {
	f.mu.Lock()
	f.lines = append(f.lines, line)
	f.mu.Unlock()
	if f.runErr != nil {
		return "", f.runErr
	}
	return f.output, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

type fakeDialer struct {
	session *fakeSession
	dialErr map[string]error
	dials   int
	mu      sync.Mutex
}

func (f *fakeDialer) dial(_ context.Context, params credentials.ConnectionParams) (Session, error) {
	f.mu.Lock()
	f.dials++
	f.mu.Unlock()
	if err, ok := f.dialErr[params.DeviceID]; ok {
		return nil, err
	}
	return f.session, nil
}

type staticResolver struct{}

func (staticResolver) Resolve(_ context.Context, deviceID string) (credentials.ConnectionParams, error) {
	return credentials.ConnectionParams{DeviceID: deviceID, Host: "10.0.0.1"}, nil
}

func newTestEngine(dialer *fakeDialer) *Engine {
	return NewEngine(staticResolver{}, dialer.dial, nil, nil)
}

func TestPingCommandLine(t *testing.T) {
	tests := []struct {
		name   string
		params PingParams
		want   string
	}{
		{
			name:   "address only",
			params: PingParams{Address: "8.8.8.8"},
			want:   "/ping 8.8.8.8",
		},
		{
			name:   "count and size",
			params: PingParams{Address: "8.8.8.8", Count: 4, Size: 100},
			want:   "/ping 8.8.8.8 count=4 size=100",
		},
		{
			name: "all options",
			params: PingParams{
				Address: "8.8.8.8", Count: 4, Size: 100, TTL: 32,
				SrcAddress: "10.0.0.2", Interface: "ether1",
				DoNotFragment: true, DSCP: 46,
			},
			want: "/ping 8.8.8.8 count=4 size=100 ttl=32 src-address=10.0.0.2 interface=ether1 do-not-fragment dscp=46",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.commandLine(); got != tt.want {
				t.Errorf("commandLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPingRequiresAddress(t *testing.T) {
	engine := newTestEngine(&fakeDialer{session: &fakeSession{output: pingOutput}})
	if _, err := engine.Ping(context.Background(), "dev1", PingParams{Address: "  "}); err == nil {
		t.Fatal("ping without an address should be refused")
	}
}

func TestPingParsesAndClosesSession(t *testing.T) {
	session := &fakeSession{output: pingOutput}
	engine := newTestEngine(&fakeDialer{session: session})

	result, err := engine.Ping(context.Background(), "dev1", PingParams{Address: "10.0.0.1", Count: 2})
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if result.Sent != 2 || result.Received != 2 || result.LossPct != 0 {
		t.Errorf("result = %+v, want 2 sent, 2 received, 0%% loss", result)
	}
	if len(session.lines) != 1 || session.lines[0] != "/ping 10.0.0.1 count=2" {
		t.Errorf("ran %v, want the single ping line", session.lines)
	}
	if session.closed != 1 {
		t.Errorf("session closed %d times, want 1", session.closed)
	}
}

func TestPingSessionClosedOnRunError(t *testing.T) {
	session := &fakeSession{runErr: errors.New("connection reset")}
	engine := newTestEngine(&fakeDialer{session: session})

	if _, err := engine.Ping(context.Background(), "dev1", PingParams{Address: "10.0.0.1"}); err == nil {
		t.Fatal("expected the run error to surface")
	}
	if session.closed != 1 {
		t.Errorf("session closed %d times, want 1", session.closed)
	}
}

func TestTracerouteDefaultsAndTarget(t *testing.T) {
	session := &fakeSession{output: tracerouteOutput}
	engine := newTestEngine(&fakeDialer{session: session})

	result, err := engine.Traceroute(context.Background(), "dev1", TracerouteParams{Address: "172.16.0.1"})
	if err != nil {
		t.Fatalf("Traceroute: %v", err)
	}
	if session.lines[0] != "/tool traceroute 172.16.0.1 count=3" {
		t.Errorf("ran %q, want default count=3", session.lines[0])
	}
	if result.Target != "172.16.0.1" {
		t.Errorf("Target = %q, want the requested address", result.Target)
	}
	if len(result.Hops) != 2 {
		t.Fatalf("len(Hops) = %d, want 2", len(result.Hops))
	}
}

func TestContinuousPingStopsAtFirstError(t *testing.T) {
	session := &fakeSession{runErr: errors.New("unreachable")}
	engine := newTestEngine(&fakeDialer{session: session})

	results, err := engine.ContinuousPing(context.Background(), "dev1", PingParams{Address: "10.0.0.1"}, 5)
	if err == nil {
		t.Fatal("expected the iteration error to surface")
	}
	if !strings.Contains(err.Error(), "iteration 1:") {
		t.Errorf("err = %v, want the failing iteration named", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0 before the failure", len(results))
	}
}

func TestContinuousPingRejectsNonPositiveIterations(t *testing.T) {
	engine := newTestEngine(&fakeDialer{session: &fakeSession{output: pingOutput}})
	if _, err := engine.ContinuousPing(context.Background(), "dev1", PingParams{Address: "10.0.0.1"}, 0); err == nil {
		t.Fatal("zero iterations should be refused")
	}
}

func TestTestAllMixedReachability(t *testing.T) {
	dialer := &fakeDialer{
		session: &fakeSession{output: "uptime: 1w"},
		dialErr: map[string]error{"dev3": errors.New("no route to host")},
	}
	engine := newTestEngine(dialer)

	ids := []string{"dev1", "dev2", "dev3", "dev4", "dev5", "dev6", "dev7"}
	results := engine.TestAll(context.Background(), ids)
	if len(results) != len(ids) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(ids))
	}
	for i, result := range results {
		if result.DeviceID != ids[i] {
			t.Errorf("results[%d].DeviceID = %q, want %q (order preserved)", i, result.DeviceID, ids[i])
		}
		switch result.DeviceID {
		case "dev3":
			if result.Reachable || !strings.Contains(result.Error, "no route") {
				t.Errorf("dev3 = %+v, want unreachable with the dial error", result)
			}
		default:
			if !result.Reachable || result.Error != "" {
				t.Errorf("%s = %+v, want reachable", result.DeviceID, result)
			}
		}
	}
	if dialer.dials != len(ids) {
		t.Errorf("dials = %d, want one per device", dialer.dials)
	}
}
