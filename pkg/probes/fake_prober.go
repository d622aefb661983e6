package probes

import (
	"sync"
	"time"
)

// FakeProber is a Prober for tests. Results are looked up by instance ID,
// then host; unknown targets get Default.
type FakeProber struct {
	mu      sync.Mutex
	results map[string]bool
	Default bool
	calls   []string
}

// NewFakeProber creates a fake prober answering def for unknown targets.
func NewFakeProber(def bool) *FakeProber {
	return &FakeProber{results: make(map[string]bool), Default: def}
}

// Set fixes the result for an instance ID or host.
func (f *FakeProber) Set(target string, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[target] = success
}

// Execute implements Prober.
func (f *FakeProber) Execute(ctx *ProbeContext) ProbeResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := ctx.host()
	if ctx.Instance != nil && ctx.Instance.ID != "" {
		target = ctx.Instance.ID
	}
	f.calls = append(f.calls, target)

	success, ok := f.results[target]
	if !ok {
		success, ok = f.results[ctx.host()]
	}
	if !ok {
		success = f.Default
	}
	msg := "fake probe failed"
	if success {
		msg = "fake probe succeeded"
	}
	return ProbeResult{Success: success, Message: msg, Duration: time.Millisecond}
}

// Calls returns the probed targets in call order.
func (f *FakeProber) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
