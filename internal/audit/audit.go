// Package audit emits an immutable record at every stage transition of a
// decision cycle, one logical event per line. It replaces any runtime
// interception of component internals: components publish, never rewrite
// each other's behavior.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Stage names every event type the engine emits.
const (
	StageCycleStarted     = "cycle_started"
	StageSignalsCollected = "signals_collected"
	StageDecisionMade     = "decision_made"
	StageRiskEvaluated    = "risk_evaluated"
	StageOrderSubmitted   = "order_submitted"
	StageOrderSkipped     = "order_skipped"
	StageTradeClosed      = "trade_closed"
	StageCycleFinished    = "cycle_finished"
)

// Event is one audit record. Payload carries the stage-specific object
// (decision, verdict, order, trade) as emitted by that stage.
type Event struct {
	Timestamp time.Time   `json:"ts"`
	CycleID   string      `json:"cycle_id"`
	Stage     string      `json:"stage"`
	Symbol    string      `json:"symbol,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Recorder appends events to an audit trail.
type Recorder interface {
	Emit(event Event) error
	Close() error
}

// FileRecorder appends JSON lines to a single file.
type FileRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileRecorder opens (or creates) the audit file in append mode.
func NewFileRecorder(path string) (*FileRecorder, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating audit dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening audit file: %w", err)
	}
	return &FileRecorder{file: file, enc: json.NewEncoder(file)}, nil
}

// Emit appends one event as a JSON line.
func (r *FileRecorder) Emit(event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return r.enc.Encode(event)
}

// Close closes the underlying file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// MemoryRecorder collects events in memory, for tests and dry inspection.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryRecorder creates an in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Emit appends the event.
func (r *MemoryRecorder) Emit(event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *MemoryRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Stages returns the recorded stage names in order.
func (r *MemoryRecorder) Stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Stage
	}
	return out
}

// Close is a no-op.
func (r *MemoryRecorder) Close() error {
	return nil
}
