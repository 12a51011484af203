package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockdroid/mockdroid/internal/testutil"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate_ValidScenario(t *testing.T) {
	content := fmt.Sprintf(`
initial_state: home
states:
  home:
    screenshot: {base64: %s, width: 4, height: 8}
    current_app: com.example.app
    transitions:
      - kind: tap
        region: [0, 0, 10, 10]
        target: home
`, testutil.PNGBase64(4, 8))
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	out, err := runCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "scenario OK: 1 states, 1 transitions")
}

func TestValidate_BrokenScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte("initial_state: ghost\nstates: {}\n"), 0644))

	_, err := runCommand(t, "validate", path)
	require.Error(t, err)
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	_, err := runCommand(t, "--log-level", "loud", "validate", "whatever.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
