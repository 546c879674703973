package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// TraceEntry is one NDJSON line describing a provider round trip.
type TraceEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Driver      string          `json:"driver"`
	Endpoint    string          `json:"endpoint"`
	Method      string          `json:"method"`
	Model       string          `json:"model,omitempty"`
	RequestBody json.RawMessage `json:"request_body,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

// Tracer appends trace entries to a writer, one JSON object per line.
type Tracer struct {
	w  io.WriteCloser
	mu sync.Mutex
	// secrets are scrubbed from every entry before it is written.
	secrets []string
}

var (
	globalTracer *Tracer
	tracerMu     sync.Mutex
)

// NewTracer wraps w. Any non-empty secret is replaced with "[REDACTED]" in written entries.
func NewTracer(w io.WriteCloser, secrets ...string) *Tracer {
	kept := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if strings.TrimSpace(s) != "" {
			kept = append(kept, s)
		}
	}
	return &Tracer{w: w, secrets: kept}
}

// EnableTracing starts tracing to path and returns a cleanup func that closes it.
func EnableTracing(path string, secrets ...string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	SetTracer(NewTracer(f, secrets...))
	return DisableTracing, nil
}

// SetTracer installs t as the process tracer, closing any previous one.
func SetTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	if globalTracer != nil {
		_ = globalTracer.Close()
	}
	globalTracer = t
}

// DisableTracing stops tracing and closes the trace file.
func DisableTracing() {
	SetTracer(nil)
}

// IsTracingEnabled returns true if tracing is active.
func IsTracingEnabled() bool {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	return globalTracer != nil
}

// Trace records a trace entry if tracing is enabled.
func Trace(entry TraceEntry) {
	tracerMu.Lock()
	t := globalTracer
	tracerMu.Unlock()

	if t == nil {
		return
	}
	t.Write(entry)
}

// Write records a trace entry.
func (t *Tracer) Write(entry TraceEntry) {
	if t == nil || t.w == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	line := string(data)
	for _, secret := range t.secrets {
		line = strings.ReplaceAll(line, secret, "[REDACTED]")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.w, line+"\n")
}

// Close closes the underlying writer.
func (t *Tracer) Close() error {
	if t == nil || t.w == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.Close()
}
