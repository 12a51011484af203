package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockdroid/mockdroid/internal/harness"
	"github.com/mockdroid/mockdroid/internal/testutil"
)

// startHarness runs a harness test server and returns a client bound to
// it.
func startHarness(t *testing.T) (*Client, *httptest.Server) {
	t.Helper()
	h := harness.New(harness.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL), srv
}

func writeScenario(t *testing.T) string {
	t.Helper()
	content := fmt.Sprintf(`
initial_state: home
states:
  home:
    screenshot: {base64: %s, width: 4, height: 8}
    current_app: com.sankuai.meituan
    transitions:
      - kind: tap
        region: [487, 2516, 721, 2667]
        target: message
  message:
    screenshot: {base64: %s, width: 4, height: 8}
    current_app: com.sankuai.meituan
`, testutil.PNGBase64(4, 8), testutil.PNGBase64(4, 8))

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// tap issues a raw device-control tap, standing in for the agent under
// test.
func tap(t *testing.T, srv *httptest.Server, x, y int) {
	t.Helper()
	body := fmt.Sprintf(`{"x": %d, "y": %d}`, x, y)
	resp, err := http.Post(srv.URL+"/device/mock_device_001/tap", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoadScenarioAndState(t *testing.T) {
	c, _ := startHarness(t)
	ctx := context.Background()

	result, err := c.LoadScenario(ctx, writeScenario(t))
	require.NoError(t, err)
	assert.Equal(t, "loaded", result.Status)
	assert.Equal(t, []string{"home", "message"}, result.States)
	assert.NotEmpty(t, result.Session)

	state, err := c.State(ctx)
	require.NoError(t, err)
	require.NotNil(t, state.CurrentState)
	assert.Equal(t, "home", *state.CurrentState)
	assert.Equal(t, []string{"home"}, state.History)
}

func TestLoadScenario_Failure(t *testing.T) {
	c, _ := startHarness(t)

	_, err := c.LoadScenario(context.Background(), "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load scenario")

	// A load failure is a transport-level error, not an assertion
	// mismatch.
	var aerr *AssertionError
	assert.False(t, errors.As(err, &aerr))
}

func TestCommandsAndReset(t *testing.T) {
	c, srv := startHarness(t)
	ctx := context.Background()

	tap(t, srv, 10, 20)
	tap(t, srv, 30, 40)

	commands, err := c.Commands(ctx)
	require.NoError(t, err)
	require.Len(t, commands, 2)
	assert.Equal(t, "tap", commands[0].Action)
	assert.Equal(t, "mock_device_001", commands[0].DeviceID)
	assert.Equal(t, int64(1), commands[0].Seq)
	assert.Equal(t, float64(10), commands[0].Params["x"])

	require.NoError(t, c.Reset(ctx))

	commands, err = c.Commands(ctx)
	require.NoError(t, err)
	assert.Empty(t, commands)
}

func TestAssertActions(t *testing.T) {
	c, srv := startHarness(t)
	ctx := context.Background()

	tap(t, srv, 1, 2)

	require.NoError(t, c.AssertActions(ctx, []string{"tap"}))

	err := c.AssertActions(ctx, []string{"tap", "swipe"})
	require.Error(t, err)

	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "action sequence", aerr.Check)
	assert.Contains(t, aerr.Actual, "mismatch")
}

func TestAssertTapInRegion(t *testing.T) {
	c, srv := startHarness(t)
	ctx := context.Background()

	tap(t, srv, 600, 2590)
	tap(t, srv, 5, 5)

	// First tap inside the message-button region.
	require.NoError(t, c.AssertTapInRegion(ctx, 487, 2516, 721, 2667, 0))

	// Second tap is far outside it.
	err := c.AssertTapInRegion(ctx, 487, 2516, 721, 2667, 1)
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Actual, "(5, 5)")

	// Asking for a third tap fails on count, not coordinates.
	err = c.AssertTapInRegion(ctx, 0, 0, 10000, 10000, 2)
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Expected, "at least 3 tap(s)")
}

func TestAssertState(t *testing.T) {
	c, srv := startHarness(t)
	ctx := context.Background()

	// Before a scenario loads, any state assertion fails cleanly.
	err := c.AssertState(ctx, "home")
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "<no scenario loaded>", aerr.Actual)

	_, err = c.LoadScenario(ctx, writeScenario(t))
	require.NoError(t, err)
	require.NoError(t, c.AssertState(ctx, "home"))

	tap(t, srv, 600, 2590)
	require.NoError(t, c.AssertState(ctx, "message"))

	err = c.AssertState(ctx, "home")
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "message", aerr.Actual)
}

func TestExpectEmptyLog(t *testing.T) {
	c, _ := startHarness(t)

	result, err := c.Expect(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.Match)
	assert.Empty(t, result.Actual)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	c := New(srv.URL)
	_, err := c.State(context.Background())
	require.Error(t, err)

	var aerr *AssertionError
	assert.False(t, errors.As(err, &aerr), "transport failures are not assertion errors")
}
