// Package scenario loads declarative UI scenarios into validated state
// graphs.
//
// A scenario file describes screens ("states"), the screenshot and
// foreground app of each, and the tap/swipe regions that move between
// them. Loading is strict and all-or-nothing: the raw YAML is checked
// against an embedded CUE schema, decoded with unknown-field rejection,
// and then cross-validated (target resolution, region ordering, eager
// screenshot decoding) before any graph is returned.
package scenario

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"os"

	"gopkg.in/yaml.v3"
)

// document mirrors the on-disk scenario layout.
type document struct {
	InitialState string              `yaml:"initial_state"`
	States       map[string]stateDoc `yaml:"states"`
}

type stateDoc struct {
	Screenshot  screenshotDoc   `yaml:"screenshot"`
	CurrentApp  string          `yaml:"current_app"`
	Transitions []transitionDoc `yaml:"transitions"`
}

type screenshotDoc struct {
	Base64 string `yaml:"base64"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type transitionDoc struct {
	Kind      string `yaml:"kind"`
	Region    []int  `yaml:"region"`
	EndRegion []int  `yaml:"end_region"`
	Target    string `yaml:"target"`
}

// Load reads and parses a scenario file into a validated Graph.
// Any failure is reported as a *ScenarioError; no partial graph is
// returned.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ScenarioError{Path: path, Err: fmt.Errorf("read scenario file: %w", err)}
	}
	return parse(path, data)
}

// Parse builds a Graph from in-memory scenario source.
func Parse(data []byte) (*Graph, error) {
	return parse("", data)
}

func parse(path string, data []byte) (*Graph, error) {
	if err := validateSchema(path, data); err != nil {
		return nil, &ScenarioError{Path: path, Err: err}
	}

	// Strict decode: unknown fields (typos like "transtions:") are load
	// errors, not silently dropped sections.
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &ScenarioError{Path: path, Err: fmt.Errorf("parse YAML: %w", err)}
	}

	graph, err := buildGraph(path, &doc)
	if err != nil {
		return nil, err
	}
	return graph, nil
}

// buildGraph converts a decoded document into a Graph, enforcing the
// graph invariants the CUE schema cannot express.
func buildGraph(path string, doc *document) (*Graph, error) {
	if doc.InitialState == "" {
		return nil, scenarioErrorf(path, "initial_state is required")
	}
	if len(doc.States) == 0 {
		return nil, scenarioErrorf(path, "states is required and must be non-empty")
	}

	states := make(map[string]*State, len(doc.States))
	for id, sd := range doc.States {
		if id == "" {
			return nil, scenarioErrorf(path, "state id must be non-empty")
		}

		shot, err := decodeScreenshot(sd.Screenshot)
		if err != nil {
			return nil, scenarioErrorf(path, "state %q: %w", id, err)
		}

		if sd.CurrentApp == "" {
			return nil, scenarioErrorf(path, "state %q: current_app is required", id)
		}

		transitions := make([]Transition, 0, len(sd.Transitions))
		for i, td := range sd.Transitions {
			tr, err := buildTransition(td)
			if err != nil {
				return nil, scenarioErrorf(path, "state %q: transition %d: %w", id, i, err)
			}
			transitions = append(transitions, tr)
		}

		states[id] = &State{
			ID:          id,
			Screenshot:  shot,
			CurrentApp:  sd.CurrentApp,
			Transitions: transitions,
		}
	}

	// Cross-reference checks after all states exist.
	if _, ok := states[doc.InitialState]; !ok {
		return nil, scenarioErrorf(path, "initial_state %q does not match any declared state", doc.InitialState)
	}
	for id, st := range states {
		for i, tr := range st.Transitions {
			if _, ok := states[tr.Target]; !ok {
				return nil, scenarioErrorf(path, "state %q: transition %d: target %q does not match any declared state", id, i, tr.Target)
			}
		}
	}

	return &Graph{States: states, InitialStateID: doc.InitialState}, nil
}

func buildTransition(td transitionDoc) (Transition, error) {
	kind := Kind(td.Kind)
	switch kind {
	case KindTap, KindSwipe:
	default:
		return Transition{}, fmt.Errorf("unknown kind %q", td.Kind)
	}

	region, err := buildRect(td.Region)
	if err != nil {
		return Transition{}, fmt.Errorf("region: %w", err)
	}

	var endRegion *Rect
	if td.EndRegion != nil {
		if kind != KindSwipe {
			return Transition{}, fmt.Errorf("end_region is only valid on swipe transitions")
		}
		r, err := buildRect(td.EndRegion)
		if err != nil {
			return Transition{}, fmt.Errorf("end_region: %w", err)
		}
		endRegion = &r
	}

	if td.Target == "" {
		return Transition{}, fmt.Errorf("target is required")
	}

	return Transition{
		Kind:      kind,
		Region:    region,
		EndRegion: endRegion,
		Target:    td.Target,
	}, nil
}

func buildRect(coords []int) (Rect, error) {
	if len(coords) != 4 {
		return Rect{}, fmt.Errorf("expected [x1, y1, x2, y2], got %d values", len(coords))
	}
	r := Rect{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}
	if r.X1 > r.X2 || r.Y1 > r.Y2 {
		return Rect{}, fmt.Errorf("inverted bounds [%d, %d, %d, %d]", r.X1, r.Y1, r.X2, r.Y2)
	}
	return r, nil
}

// decodeScreenshot eagerly decodes and verifies the screenshot payload so
// malformed images fail at load time rather than mid-test.
func decodeScreenshot(sd screenshotDoc) (Screenshot, error) {
	if sd.Width <= 0 || sd.Height <= 0 {
		return Screenshot{}, fmt.Errorf("screenshot dimensions must be positive, got %dx%d", sd.Width, sd.Height)
	}
	if sd.Base64 == "" {
		return Screenshot{}, fmt.Errorf("screenshot base64 payload is required")
	}

	raw, err := base64.StdEncoding.DecodeString(sd.Base64)
	if err != nil {
		return Screenshot{}, fmt.Errorf("screenshot is not valid base64: %w", err)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Screenshot{}, fmt.Errorf("screenshot is not a valid PNG: %w", err)
	}
	if cfg.Width != sd.Width || cfg.Height != sd.Height {
		return Screenshot{}, fmt.Errorf("screenshot declares %dx%d but decodes to %dx%d",
			sd.Width, sd.Height, cfg.Width, cfg.Height)
	}

	return Screenshot{Bytes: raw, Width: sd.Width, Height: sd.Height}, nil
}
