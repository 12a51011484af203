package harness

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/mockdroid/mockdroid/internal/recorder"
	"github.com/mockdroid/mockdroid/internal/testutil"
)

// TestCommandDumpGolden locks the simplified command dump format against
// a golden file. The dump is what assertion tooling consumes, so shape
// drift should be a deliberate decision.
//
// Regenerate with: go test ./internal/harness -update
func TestCommandDumpGolden(t *testing.T) {
	clock := testutil.NewTickClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), time.Millisecond)
	rec := recorder.New(recorder.WithClock(clock.Now))
	h := New(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRecorder(rec),
	)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	calls := []struct {
		path string
		body string
	}{
		{"/device/mock_device_001/tap", `{"x": 600, "y": 2590}`},
		{"/device/mock_device_001/swipe", `{"start_x": 540, "start_y": 1500, "end_x": 540, "end_y": 300, "duration_ms": 200}`},
		{"/device/mock_device_001/type_text", `{"text": "hello"}`},
		{"/device/mock_device_001/back", ``},
		{"/device/mock_device_001/launch_app", `{"app_name": "com.sankuai.meituan"}`},
	}
	for _, call := range calls {
		status := doJSON(t, http.MethodPost, srv.URL+call.path, call.body, nil)
		require.Equal(t, http.StatusOK, status, "call %s", call.path)
	}

	var actions []map[string]any
	doJSON(t, http.MethodGet, srv.URL+"/test/commands/actions", "", &actions)

	dump, err := json.MarshalIndent(actions, "", "  ")
	require.NoError(t, err)
	dump = append(dump, '\n')

	g := goldie.New(t)
	g.Assert(t, "command_actions", dump)
}
