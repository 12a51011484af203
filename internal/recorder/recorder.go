// Package recorder keeps the append-only log of every device-control
// invocation the harness receives, independent of whether the invocation
// caused a state transition.
//
// The recorder is deliberately verb-agnostic: unknown actions and params
// are recorded verbatim, with no schema validation. Validation, if any,
// happens at the transport boundary before Record is called.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/mockdroid/mockdroid/internal/store"
)

// Record is one logged device-control invocation. Immutable once
// appended: callers must not mutate Params after recording.
type Record struct {
	// Seq is a monotonic logical sequence number. It orders records even
	// when wall-clock timestamps collide.
	Seq int64 `json:"seq"`

	Action   string         `json:"action"`
	DeviceID string         `json:"device_id"`
	Params   map[string]any `json:"params"`

	// Timestamp is captured at record time.
	Timestamp time.Time `json:"timestamp"`
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces the wall-clock time source, for deterministic
// timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithArchive enables write-through of every record to a SQLite archive.
// Archive failures are logged and never surface to Record's caller: the
// in-memory log is the source of truth and Record never fails.
func WithArchive(st *store.Store) Option {
	return func(r *Recorder) { r.archive = st }
}

// WithLogger sets the logger used for archive failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// Recorder is an append-only, ordered command log.
//
// Thread-safety: Record, List, Reset and the filter reads are mutually
// exclusive via an internal mutex, so records appear in the log in
// exactly the order Record calls complete, even under concurrent
// callers.
type Recorder struct {
	mu  sync.Mutex
	seq int64
	log []Record

	now     func() time.Time
	archive *store.Store
	logger  *slog.Logger
}

// New creates an empty recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends an entry with a capture-time timestamp. It never fails.
//
// Params are defensively copied, and string values are normalized to
// Unicode NFC so later comparisons are independent of how the caller
// composed its input. Only primitive values (string, number, bool) are
// expected; anything else is stored as-is.
func (r *Recorder) Record(action, deviceID string, params map[string]any) Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	rec := Record{
		Seq:       r.seq,
		Action:    action,
		DeviceID:  deviceID,
		Params:    normalizeParams(params),
		Timestamp: r.now(),
	}
	r.log = append(r.log, rec)

	if r.archive != nil {
		err := r.archive.WriteCommand(context.Background(), store.Command{
			Seq:       rec.Seq,
			Action:    rec.Action,
			DeviceID:  rec.DeviceID,
			Params:    rec.Params,
			Timestamp: rec.Timestamp,
		})
		if err != nil {
			r.logger.Warn("command archive write failed",
				"seq", rec.Seq,
				"action", rec.Action,
				"error", err,
			)
		}
	}

	return rec
}

// Reset clears the log. The archive, if any, is left untouched.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
}

// List returns a snapshot of all records in insertion order.
func (r *Recorder) List() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.log))
	copy(out, r.log)
	return out
}

// FilterByAction returns records whose action equals name, in order.
func (r *Recorder) FilterByAction(name string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.log {
		if rec.Action == name {
			out = append(out, rec)
		}
	}
	return out
}

// FilterByDevice returns records for the given device id, in order.
func (r *Recorder) FilterByDevice(deviceID string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.log {
		if rec.DeviceID == deviceID {
			out = append(out, rec)
		}
	}
	return out
}

// Actions returns just the ordered action names, for expectation
// comparison.
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.log))
	for i, rec := range r.log {
		out[i] = rec.Action
	}
	return out
}

// Len returns the number of records in the log.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log)
}

// normalizeParams copies params, normalizing string values to NFC.
func normalizeParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			out[k] = norm.NFC.String(s)
			continue
		}
		out[k] = v
	}
	return out
}
