package client

import (
	"context"
	"fmt"
	"strings"
)

// AssertionError reports a failed expectation about the device's
// behavior. It is distinct from transport errors: a returned
// *AssertionError means the harness answered fine but the answer was
// not what the test expected.
type AssertionError struct {
	Check    string // which assertion failed
	Expected string // human-readable expectation
	Actual   string // human-readable observation
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Check)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s", e.Actual)
	return buf.String()
}

// AssertActions checks that the recorded action sequence equals
// expected, returning an *AssertionError on mismatch.
func (c *Client) AssertActions(ctx context.Context, expected []string) error {
	result, err := c.Expect(ctx, expected)
	if err != nil {
		return err
	}
	if !result.Match {
		return &AssertionError{
			Check:    "action sequence",
			Expected: fmt.Sprintf("%v", result.Expected),
			Actual:   fmt.Sprintf("%v (%s)", result.Actual, result.Message),
		}
	}
	return nil
}

// AssertTapInRegion checks that the index-th recorded tap (0-based,
// counting only "tap" commands) lies inside the inclusive rectangle
// (x1, y1)-(x2, y2). It fails when fewer than index+1 taps were
// recorded or when the tap's coordinates fall outside the rectangle.
func (c *Client) AssertTapInRegion(ctx context.Context, x1, y1, x2, y2, index int) error {
	actions, err := c.Actions(ctx)
	if err != nil {
		return err
	}

	var taps []map[string]any
	for _, a := range actions {
		if a["action"] == "tap" {
			taps = append(taps, a)
		}
	}

	if len(taps) <= index {
		return &AssertionError{
			Check:    fmt.Sprintf("tap %d in region [%d, %d, %d, %d]", index, x1, y1, x2, y2),
			Expected: fmt.Sprintf("at least %d tap(s)", index+1),
			Actual:   fmt.Sprintf("%d tap(s) recorded", len(taps)),
		}
	}

	tap := taps[index]
	x, xok := numField(tap, "x")
	y, yok := numField(tap, "y")
	if !xok || !yok {
		return &AssertionError{
			Check:    fmt.Sprintf("tap %d in region [%d, %d, %d, %d]", index, x1, y1, x2, y2),
			Expected: "tap with numeric x and y params",
			Actual:   fmt.Sprintf("%v", tap),
		}
	}

	if x < x1 || x > x2 || y < y1 || y > y2 {
		return &AssertionError{
			Check:    fmt.Sprintf("tap %d in region [%d, %d, %d, %d]", index, x1, y1, x2, y2),
			Expected: fmt.Sprintf("coordinates within [%d, %d] x [%d, %d]", x1, x2, y1, y2),
			Actual:   fmt.Sprintf("(%d, %d)", x, y),
		}
	}
	return nil
}

// AssertState checks that the engine's current state id equals expected.
func (c *Client) AssertState(ctx context.Context, expected string) error {
	state, err := c.State(ctx)
	if err != nil {
		return err
	}

	actual := "<no scenario loaded>"
	if state.CurrentState != nil {
		actual = *state.CurrentState
	}
	if state.CurrentState == nil || *state.CurrentState != expected {
		return &AssertionError{
			Check:    "current state",
			Expected: expected,
			Actual:   actual,
		}
	}
	return nil
}

// numField extracts an integer param from a decoded JSON object
// (numbers arrive as float64).
func numField(m map[string]any, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}
