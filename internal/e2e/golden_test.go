//go:build e2e

package e2e

import (
	"flag"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/procure/internal/generator"
)

var update = flag.Bool("update", false, "update golden files")

// goldenDir returns the path to the testdata/golden directory.
func goldenDir() string {
	return filepath.Join("..", "..", "testdata", "golden")
}

// goldenIntents maps intents to the golden diagram of their run. The mock
// generator is deterministic, so the supply chain is stable.
var goldenIntents = []struct {
	intent string
	golden string
}{
	{"Build 100 electric bikes", "electric_bikes.mmd"},
	{"Build 20 delivery drones", "delivery_drones.mmd"},
}

// diagramFor runs intent through a fresh server and fetches its diagram.
func diagramFor(t *testing.T, intent string) string {
	t.Helper()

	base := startServer(t, generator.NewMock())
	plan := checkStream(t, runIntent(t, base, intent))

	resp, err := http.Get(base + "/api/runs/" + plan.ProjectID + "/diagram")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

// TestGolden compares run diagrams against golden files. If golden files
// do not exist, the test is skipped with a message to run with -update.
func TestGolden(t *testing.T) {
	for _, g := range goldenIntents {
		t.Run(g.golden, func(t *testing.T) {
			golden, err := os.ReadFile(filepath.Join(goldenDir(), g.golden))
			if os.IsNotExist(err) {
				t.Skipf("golden file %s not found; run with -update to generate", g.golden)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, string(golden), diagramFor(t, g.intent),
				"diagram for %q does not match golden file", g.intent)
		})
	}
}

// TestUpdateGolden regenerates golden files from the current pipeline output.
// Run with: go test -tags e2e -run TestUpdateGolden ./internal/e2e/ -update
func TestUpdateGolden(t *testing.T) {
	if !*update {
		t.Skip("skipping golden file update; run with -update flag")
	}

	require.NoError(t, os.MkdirAll(goldenDir(), 0o755))
	for _, g := range goldenIntents {
		data := diagramFor(t, g.intent)
		require.NoError(t, os.WriteFile(filepath.Join(goldenDir(), g.golden), []byte(data), 0o644))
		t.Logf("updated %s", g.golden)
	}
}
