//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/procure/internal/archive"
	"github.com/dusk-indust/procure/internal/events"
	"github.com/dusk-indust/procure/internal/generator"
	"github.com/dusk-indust/procure/internal/orchestrator"
	"github.com/dusk-indust/procure/internal/policy"
	"github.com/dusk-indust/procure/internal/server"
	"github.com/dusk-indust/procure/internal/status"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startServer serves a pipeline backed by gen with the default policy and a
// temp archive, and returns its base URL.
func startServer(t *testing.T, gen generator.Generator, opts ...server.Option) string {
	t.Helper()

	verifier, err := policy.Load(context.Background(), "")
	require.NoError(t, err)

	cfg := orchestrator.DefaultConfig()
	cfg.Pacing = orchestrator.Pacing{}
	p := orchestrator.NewPipeline(gen,
		orchestrator.WithConfig(cfg),
		orchestrator.WithVerifier(verifier),
		orchestrator.WithLogger(quietLogger()))

	arch, err := archive.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { arch.Close() })

	opts = append([]server.Option{server.WithLogger(quietLogger()), server.WithArchive(arch)}, opts...)
	ts := httptest.NewServer(server.New(p, opts...))
	t.Cleanup(ts.Close)
	return ts.URL
}

// runIntent posts intent and collects the whole event stream.
func runIntent(t *testing.T, base, intent string) []events.Event {
	t.Helper()

	body, err := json.Marshal(server.RunRequest{Intent: intent})
	require.NoError(t, err)
	resp, err := http.Post(base+"/api/run", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var out []events.Event
	for r := range events.ReadEvents(ctx, resp.Body) {
		require.NoError(t, r.Err)
		out = append(out, r.Event)
	}
	return out
}

// checkStream asserts the closing order and returns the decoded plan.
func checkStream(t *testing.T, evs []events.Event) orchestrator.ExecutionPlan {
	t.Helper()
	require.GreaterOrEqual(t, len(evs), 4)

	n := len(evs)
	assert.Equal(t, "project_created", evs[0].Event)
	assert.Equal(t, events.TypeReport, evs[n-3].Type)
	assert.Equal(t, events.TypePlan, evs[n-2].Type)
	assert.Equal(t, events.TypeComplete, evs[n-1].Type)
	for i := 1; i < n; i++ {
		assert.False(t, evs[i].Timestamp.Before(evs[i-1].Timestamp), "event %d goes back in time", i)
	}

	var plan orchestrator.ExecutionPlan
	require.NoError(t, evs[n-2].Decode(&plan))
	return plan
}

func TestE2E_MockRunThroughAPI(t *testing.T) {
	base := startServer(t, generator.NewMock())

	evs := runIntent(t, base, "Build 100 electric bikes")
	plan := checkStream(t, evs)

	assert.Equal(t, "completed", plan.Status)
	assert.NotEmpty(t, plan.Product)
	assert.Positive(t, plan.CostSummary.TotalCostUSD)
	assert.InDelta(t,
		plan.CostSummary.PartsCostUSD+plan.CostSummary.ShippingCostUSD,
		plan.CostSummary.TotalCostUSD, 0.01)
	assert.Equal(t,
		plan.Timeline.PartsProcurementDays+plan.Timeline.AssemblyDays+plan.Timeline.ShippingDays+plan.Timeline.DeliveryDays,
		plan.Timeline.TotalDays)

	resp, err := http.Get(base + "/api/runs/" + plan.ProjectID + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var rs status.RunStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rs))
	assert.True(t, rs.Complete)
	assert.Empty(t, rs.NextPhase)
	for _, pi := range rs.Phases {
		assert.Equal(t, events.StatusDone, pi.State, "phase %s", pi.Phase)
	}
}

func TestE2E_ConcurrentRunsStayIsolated(t *testing.T) {
	base := startServer(t, generator.NewMock())

	intents := []string{"Build 10 drones", "Build 50 e-scooters", "Build 5 solar chargers"}
	var (
		mu  sync.Mutex
		ids []string
	)
	t.Run("runs", func(t *testing.T) {
		for _, intent := range intents {
			t.Run(intent, func(t *testing.T) {
				t.Parallel()
				p := checkStream(t, runIntent(t, base, intent))
				mu.Lock()
				ids = append(ids, p.ProjectID)
				mu.Unlock()
			})
		}
	})

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "project id %s reused", id)
		seen[id] = true
	}
	assert.Len(t, seen, len(intents))

	resp, err := http.Get(base + "/api/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list struct {
		Runs []archive.Run `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list.Runs, len(intents))
}

// TestE2E_A2AGenerator runs one server's pipeline against the agent
// endpoints of another.
func TestE2E_A2AGenerator(t *testing.T) {
	agents := startServer(t, generator.NewMock(), server.WithAgentGenerator(generator.NewMock()))

	gen, mode, err := generator.Detect(context.Background(), generator.Settings{
		Mode:         generator.ModeAuto,
		A2AEndpoint:  agents + "/agents/procurement",
		Timeout:      time.Minute,
		ProbeTimeout: 5 * time.Second,
		Logger:       quietLogger(),
	})
	require.NoError(t, err)
	require.Equal(t, generator.ModeA2A, mode)

	base := startServer(t, gen)
	plan := checkStream(t, runIntent(t, base, "Build 100 electric bikes"))
	assert.Equal(t, "completed", plan.Status)
	assert.Positive(t, plan.CostSummary.TotalCostUSD)
}
