package executor

import (
	"context"
	"testing"
	"time"

	"github.com/nettriq/rosfleet/internal/routeros"
)

type fakeTransport struct {
	connected    bool
	connectErr   error
	connectCalls int
	executeCalls int
	closeCalls   int
	results      []*routeros.CommandResult
}

func (f *fakeTransport) Connect(context.Context) error {
	f.connectCalls++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Connected() bool { return f.connected }

func (f *fakeTransport) Execute(context.Context, string, map[string]string) *routeros.CommandResult {
	f.executeCalls++
	if len(f.results) == 0 {
		return &routeros.CommandResult{Success: true}
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res
}

func (f *fakeTransport) Close() {
	f.closeCalls++
	f.connected = false
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}
}

func failure(msg string) *routeros.CommandResult {
	return &routeros.CommandResult{Err: msg}
}

func TestExecuteWithRetryExhaustsAttempts(t *testing.T) {
	transport := &fakeTransport{results: []*routeros.CommandResult{
		failure("one"), failure("two"), failure("three"),
	}}
	exec := New(fastPolicy(), nil)

	var retries int
	exec.OnRetry = func(string) { retries++ }

	res := exec.ExecuteWithRetry(context.Background(), transport, "/system/resource/print", nil)
	if res.Success {
		t.Fatal("result.Success = true, want exhausted failure")
	}
	if res.Err != "three" {
		t.Errorf("result.Err = %q, want the last attempt's error", res.Err)
	}
	if transport.executeCalls != 3 {
		t.Errorf("executeCalls = %d, want exactly 3", transport.executeCalls)
	}
	if retries != 2 {
		t.Errorf("retries = %d, want 2", retries)
	}
	// Each failed execute drops the session for a fresh dial.
	if transport.closeCalls != 3 {
		t.Errorf("closeCalls = %d, want 3", transport.closeCalls)
	}
}

func TestExecuteWithRetrySucceedsAfterReconnect(t *testing.T) {
	transport := &fakeTransport{results: []*routeros.CommandResult{
		failure("transient"),
		{Success: true, Records: []routeros.Record{{"uptime": "1d"}}},
	}}
	exec := New(fastPolicy(), nil)

	res := exec.ExecuteWithRetry(context.Background(), transport, "/user/print", nil)
	if !res.Success {
		t.Fatalf("result failed: %s", res.Err)
	}
	if transport.executeCalls != 2 {
		t.Errorf("executeCalls = %d, want 2", transport.executeCalls)
	}
	if transport.connectCalls != 2 {
		t.Errorf("connectCalls = %d, want reconnect after dropped session", transport.connectCalls)
	}
}

func TestExecuteWithRetryAuthShortCircuit(t *testing.T) {
	transport := &fakeTransport{
		connectErr: &routeros.AuthenticationError{Host: "r1", User: "admin"},
	}
	exec := New(fastPolicy(), nil)

	res := exec.ExecuteWithRetry(context.Background(), transport, "/user/print", nil)
	if res.Success {
		t.Fatal("result.Success = true, want auth failure")
	}
	if transport.connectCalls != 1 {
		t.Errorf("connectCalls = %d, want 1 (auth errors are not retried)", transport.connectCalls)
	}
	if transport.executeCalls != 0 {
		t.Errorf("executeCalls = %d, want 0", transport.executeCalls)
	}
}

func TestExecuteWithRetryContextCancelled(t *testing.T) {
	transport := &fakeTransport{results: []*routeros.CommandResult{failure("boom")}}
	exec := New(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Minute, Multiplier: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := exec.ExecuteWithRetry(ctx, transport, "/ping", nil)
	if res.Success {
		t.Fatal("result.Success = true, want cancellation failure")
	}
	if transport.executeCalls != 1 {
		t.Errorf("executeCalls = %d, want 1 before the backoff noticed cancellation", transport.executeCalls)
	}
}

func TestExecuteManyFailFast(t *testing.T) {
	transport := &fakeTransport{results: []*routeros.CommandResult{
		{Success: true},
		failure("a"), failure("b"), failure("c"),
	}}
	exec := New(fastPolicy(), nil)

	results := exec.ExecuteMany(context.Background(), transport, []routeros.Command{
		{Command: "/interface/print"},
		{Command: "/ip/address/print"},
		{Command: "/ip/route/print"},
	})
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 (stops after first exhausted command)", len(results))
	}
	if !results[0].Success || results[1].Success {
		t.Errorf("unexpected result shape: %+v", results)
	}
}

func TestRetryPolicyDelayFor(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Second, Multiplier: 2}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
	}
	for _, tc := range cases {
		if got := policy.delayFor(tc.attempt); got != tc.want {
			t.Errorf("delayFor(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
