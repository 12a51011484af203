// Package harness exposes the mock device agent over HTTP.
//
// The harness is a facade in front of two collaborators: every
// device-control verb is first written to the command recorder,
// unconditionally, and motion verbs (tap, double_tap, long_press, swipe)
// are additionally dispatched into the simulation engine when a scenario
// is loaded. A second endpoint family under /test gives tests access to
// the recorded log, the engine state, and an expectation check.
//
// One harness process holds one engine and one recorder, shared across
// all device ids. Records carry their device id, so per-device filtering
// remains possible downstream.
package harness

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mockdroid/mockdroid/internal/engine"
	"github.com/mockdroid/mockdroid/internal/recorder"
	"github.com/mockdroid/mockdroid/internal/scenario"
)

// Placeholder values returned before any scenario is loaded.
const (
	placeholderWidth  = 1080
	placeholderHeight = 2400
	placeholderApp    = "com.mock.app"
)

// Device descriptor constants for the fixed simulated device.
const (
	DeviceID         = "mock_device_001"
	deviceModel      = "MockPhone"
	devicePlatform   = "android"
	deviceConnection = "mock"
)

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// WithRecorder injects a pre-built recorder (for example one with an
// archive sink attached).
func WithRecorder(rec *recorder.Recorder) Option {
	return func(h *Harness) { h.rec = rec }
}

// WithLoader replaces the scenario loader, for tests.
func WithLoader(load func(path string) (*scenario.Graph, error)) Option {
	return func(h *Harness) { h.load = load }
}

// Harness holds the process-wide simulation session.
type Harness struct {
	logger  *slog.Logger
	rec     *recorder.Recorder
	load    func(path string) (*scenario.Graph, error)
	metrics *metrics

	mu           sync.RWMutex
	eng          *engine.Engine
	scenarioPath string
	session      string
}

// New creates a harness with no scenario loaded.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger:  slog.Default(),
		load:    scenario.Load,
		metrics: newMetrics(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.rec == nil {
		h.rec = recorder.New(recorder.WithLogger(h.logger))
	}
	return h
}

// Recorder returns the harness's command recorder.
func (h *Harness) Recorder() *recorder.Recorder {
	return h.rec
}

// LoadScenario loads the scenario at path and replaces the active
// engine. On failure the previous engine stays in place and the error is
// returned (a *scenario.ScenarioError for malformed sources).
//
// The returned session token identifies this load; it changes on every
// successful replacement.
func (h *Harness) LoadScenario(path string) (stateIDs []string, session string, err error) {
	graph, err := h.load(path)
	if err != nil {
		h.logger.Warn("scenario load failed", "path", path, "error", err)
		return nil, "", err
	}

	h.mu.Lock()
	h.eng = engine.New(graph)
	h.scenarioPath = path
	h.session = uuid.NewString()
	session = h.session
	h.mu.Unlock()

	h.logger.Info("scenario loaded",
		"path", path,
		"states", len(graph.States),
		"initial_state", graph.InitialStateID,
		"session", session,
	)
	return graph.StateIDs(), session, nil
}

// engineRef returns the active engine, or nil when no scenario is
// loaded. The engine serializes its own state internally.
func (h *Harness) engineRef() *engine.Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.eng
}

// record writes one command to the log and bumps the per-action counter.
func (h *Harness) record(action, deviceID string, params map[string]any) {
	rec := h.rec.Record(action, deviceID, params)
	h.metrics.commands.WithLabelValues(action).Inc()
	h.logger.Debug("command recorded",
		"seq", rec.Seq,
		"action", action,
		"device_id", deviceID,
	)
}

// dispatchOutcome tracks a motion-event outcome in metrics and logs.
func (h *Harness) dispatchOutcome(action string, out engine.Outcome) {
	result := "no_match"
	if out.Fired {
		result = "fired"
	}
	h.metrics.transitions.WithLabelValues(result).Inc()
	h.logger.Debug("motion event dispatched",
		"action", action,
		"fired", out.Fired,
		"target", out.Target,
	)
}
