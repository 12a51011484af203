package scenario

import "sort"

// Kind identifies the gesture that triggers a transition.
type Kind string

const (
	// KindTap matches single taps (and double taps / long presses, which
	// the harness folds into tap events).
	KindTap Kind = "tap"

	// KindSwipe matches swipe gestures by their start point, and
	// optionally their end point when an end region is declared.
	KindSwipe Kind = "swipe"
)

// Rect is an axis-aligned screen region with inclusive bounds.
// Invariant (enforced at load time): X1 <= X2 and Y1 <= Y2.
type Rect struct {
	X1, Y1, X2, Y2 int
}

// Contains reports whether the point (x, y) lies inside the region.
// Bounds are inclusive on all four edges.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

// Transition is a directed edge out of a state, triggered by a gesture
// whose coordinates fall inside Region.
type Transition struct {
	// Kind selects which gesture events this transition responds to.
	Kind Kind

	// Region constrains the tap point, or the swipe start point.
	Region Rect

	// EndRegion optionally constrains the swipe end point.
	// Nil means any end point matches. Only valid on swipe transitions.
	EndRegion *Rect

	// Target is the id of the destination state. Always resolvable
	// within the owning graph (enforced at load time).
	Target string
}

// Screenshot holds the decoded screenshot payload of a state.
// Bytes are the raw PNG file bytes as declared in the scenario, so
// callers observe byte-identical data after a transition.
type Screenshot struct {
	Bytes  []byte
	Width  int
	Height int
}

// State is one screen in the UI graph.
type State struct {
	ID         string
	Screenshot Screenshot
	CurrentApp string

	// Transitions is an ordered sequence, never a set: dispatch is
	// first-declared-wins for overlapping regions, so order is part of
	// the scenario's semantics.
	Transitions []Transition
}

// Graph is a static, validated UI state graph. Once built by the loader
// it is immutable and safe to share across goroutines.
type Graph struct {
	States         map[string]*State
	InitialStateID string
}

// Initial returns the graph's initial state.
func (g *Graph) Initial() *State {
	return g.States[g.InitialStateID]
}

// StateIDs returns all state ids in sorted order.
func (g *Graph) StateIDs() []string {
	ids := make([]string, 0, len(g.States))
	for id := range g.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
