package metrics

import (
	"sync"
	"time"
)

// Package metrics provides a minimal instrumentation interface with a no-op
// default and optional Prometheus-backed implementation.

// Recorder defines the metrics surface used across the codebase.
type Recorder interface {
	IncCacheLookup(hit bool)
	IncRemoteFetch(outcome string)
	ObserveGenerateSeconds(source string, seconds float64)
	IncFeedback(persisted bool)
	IncDBOpTotal(op string, success bool)
	ObserveDBOpSeconds(op string, success bool, seconds float64)
	IncToolTotal(tool string, success bool)
	ObserveToolSeconds(tool string, success bool, seconds float64)
}

// Remote fetch outcomes.
const (
	RemoteOK        = "ok"
	RemoteError     = "error"
	RemoteTimeout   = "timeout"
	RemoteMalformed = "malformed"
	RemoteEmpty     = "empty"
	RemoteOpen      = "open"
)

// noopRecorder implements Recorder with no-ops.
type noopRecorder struct{}

func (n *noopRecorder) IncCacheLookup(bool)                      {}
func (n *noopRecorder) IncRemoteFetch(string)                    {}
func (n *noopRecorder) ObserveGenerateSeconds(string, float64)   {}
func (n *noopRecorder) IncFeedback(bool)                         {}
func (n *noopRecorder) IncDBOpTotal(string, bool)                {}
func (n *noopRecorder) ObserveDBOpSeconds(string, bool, float64) {}
func (n *noopRecorder) IncToolTotal(string, bool)                {}
func (n *noopRecorder) ObserveToolSeconds(string, bool, float64) {}

var (
	recMu    sync.RWMutex
	recorder Recorder = &noopRecorder{}
)

// Default returns the current recorder.
func Default() Recorder {
	recMu.RLock()
	defer recMu.RUnlock()
	return recorder
}

// SetRecorder swaps the global recorder implementation.
func SetRecorder(r Recorder) {
	recMu.Lock()
	defer recMu.Unlock()
	recorder = r
}

// TimeOp is a helper to time DB operations.
func TimeOp(op string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncDBOpTotal(op, success)
		Default().ObserveDBOpSeconds(op, success, dur)
	}
}

// TimeTool is a helper to time tool and route handlers.
func TimeTool(tool string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncToolTotal(tool, success)
		Default().ObserveToolSeconds(tool, success, dur)
	}
}

// TimeGenerate times one suggestion request; the source is reported on completion.
func TimeGenerate() func(source string) {
	start := time.Now()
	return func(source string) {
		Default().ObserveGenerateSeconds(source, time.Since(start).Seconds())
	}
}

// Init enables the Prometheus exporter when enabled is true. It also starts a
// small HTTP server on addr (default :9090) with endpoints /metrics and /healthz.
func Init(enabled bool, addr string) error {
	if !enabled {
		return nil
	}
	if addr == "" {
		addr = ":9090"
	}
	return enablePrometheus(addr)
}

// enablePrometheus is provided by build-tagged files.
