// Package engine implements the runtime simulation over a scenario state
// graph: the current screen, the append-only visit history, and the
// dispatch of geometric tap/swipe events into semantic state transitions.
//
// Dispatch is deterministic: a state's transitions are evaluated in
// declaration order and the first matching transition of the right kind
// wins. Overlapping regions are therefore resolved first-declared-wins,
// and later-declared overlaps are unreachable; scenario authors are
// responsible for disjoint or correctly ordered regions.
package engine

import (
	"sync"

	"github.com/mockdroid/mockdroid/internal/scenario"
)

// Outcome reports whether an event fired a transition and, if so, the
// target state id.
type Outcome struct {
	Fired  bool
	Target string
}

// Engine is the mutable simulation runtime over an immutable graph.
//
// One engine is owned by one test session. All methods are safe for
// concurrent use: mutation (HandleTap/HandleSwipe/Reset) is serialized
// against reads so callers never observe a half-applied transition.
type Engine struct {
	graph *scenario.Graph

	mu      sync.RWMutex
	current string
	history []string
}

// New creates an engine positioned at the graph's initial state with
// history [initial].
func New(graph *scenario.Graph) *Engine {
	return &Engine{
		graph:   graph,
		current: graph.InitialStateID,
		history: []string{graph.InitialStateID},
	}
}

// CurrentScreenshot returns the screenshot of the current state.
// Pure read, no side effects.
func (e *Engine) CurrentScreenshot() scenario.Screenshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph.States[e.current].Screenshot
}

// CurrentApp returns the foreground app of the current state.
func (e *Engine) CurrentApp() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph.States[e.current].CurrentApp
}

// State returns the current state id and a copy of the visit history.
func (e *Engine) State() (current string, history []string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	history = make([]string, len(e.history))
	copy(history, e.history)
	return e.current, history
}

// HandleTap dispatches a tap at (x, y).
//
// The current state's transitions are evaluated in declaration order; the
// first tap transition whose region contains the point (inclusive bounds)
// is applied. Without a match the state and history are unchanged.
func (e *Engine) HandleTap(x, y int) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, tr := range e.graph.States[e.current].Transitions {
		if tr.Kind != scenario.KindTap {
			continue
		}
		if tr.Region.Contains(x, y) {
			e.apply(tr.Target)
			return Outcome{Fired: true, Target: tr.Target}
		}
	}
	return Outcome{}
}

// HandleSwipe dispatches a swipe gesture.
//
// Matching mirrors HandleTap but considers only swipe transitions: the
// region constrains the start point, and when a transition declares an
// end region the end point must match it as well. A transition without
// an end region accepts any end point.
func (e *Engine) HandleSwipe(startX, startY, endX, endY int) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, tr := range e.graph.States[e.current].Transitions {
		if tr.Kind != scenario.KindSwipe {
			continue
		}
		if !tr.Region.Contains(startX, startY) {
			continue
		}
		if tr.EndRegion != nil && !tr.EndRegion.Contains(endX, endY) {
			continue
		}
		e.apply(tr.Target)
		return Outcome{Fired: true, Target: tr.Target}
	}
	return Outcome{}
}

// Reset restores the initial state and clears the history to [initial].
// The graph itself is not reloaded.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = e.graph.InitialStateID
	e.history = []string{e.graph.InitialStateID}
}

// apply moves to target and appends it to the history.
// Self-loops are legal and simply re-append the same id.
// Callers must hold the write lock.
func (e *Engine) apply(target string) {
	e.current = target
	e.history = append(e.history, target)
}
