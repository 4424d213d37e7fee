package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/procure/internal/a2a"
	"github.com/dusk-indust/procure/internal/archive"
	"github.com/dusk-indust/procure/internal/events"
	"github.com/dusk-indust/procure/internal/generator"
	"github.com/dusk-indust/procure/internal/orchestrator"
	"github.com/dusk-indust/procure/internal/status"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *Server) {
	t.Helper()
	cfg := orchestrator.DefaultConfig()
	cfg.Pacing = orchestrator.Pacing{}
	p := orchestrator.NewPipeline(generator.NewMock(),
		orchestrator.WithConfig(cfg),
		orchestrator.WithLogger(quietLogger()))
	s := New(p, append([]Option{WithLogger(quietLogger())}, opts...)...)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return ts, s
}

func getJSON(t *testing.T, url string, dst any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if dst != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	}
	return resp.StatusCode
}

func postRun(t *testing.T, base, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(base+"/api/run", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func readStream(t *testing.T, resp *http.Response) []events.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var out []events.Event
	for r := range events.ReadEvents(ctx, resp.Body) {
		require.NoError(t, r.Err)
		out = append(out, r.Event)
	}
	return out
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	var body map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/health", &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 5, body["agents"])
}

func TestRegistry(t *testing.T) {
	ts, _ := newTestServer(t)

	var all struct {
		Agents []map[string]any `json:"agents"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/registry", &all))
	assert.Len(t, all.Agents, 5)

	var filtered struct {
		Agents []map[string]any `json:"agents"`
	}
	getJSON(t, ts.URL+"/api/registry?role=logistics&capability=air_freight,warehousing", &filtered)
	require.Len(t, filtered.Agents, 1)
	assert.Equal(t, "logistics_global", filtered.Agents[0]["agent_id"])

	var one map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/registry/supplier_alpha", &one))
	assert.Equal(t, "Supplier Agent", one["name"])

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/registry/nobody", nil))
}

func TestAgentCard(t *testing.T) {
	ts, _ := newTestServer(t, WithBaseURL("https://procure.example"))

	var card a2a.AgentCard
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/.well-known/agent-card.json", &card))
	assert.Equal(t, "Procurement Agent", card.Name)
	require.Len(t, card.Interfaces, 1)
	assert.Equal(t, "https://procure.example/agents/procurement", card.Interfaces[0].URL)
}

func TestPartners(t *testing.T) {
	ts, _ := newTestServer(t)

	var list struct {
		Partners []map[string]any `json:"partners"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/partners/suppliers", &list))
	assert.Len(t, list.Partners, 30)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/partners/brokers", nil))

	resp, err := http.Post(ts.URL+"/api/partners/logistics/select", "application/json",
		strings.NewReader(`{"mode":"air","top_n":2,"pickup":{"x":52.52,"y":13.405}}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sel struct {
		Selected []map[string]any `json:"selected"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sel))
	assert.Len(t, sel.Selected, 2)
	assert.Contains(t, sel.Selected[0], "distance_to_pickup_km")
}

func TestRun_EmptyIntentIsRejectedWithoutStream(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, body := range []string{`{"intent":""}`, `{"intent":"   "}`, `{}`} {
		resp := postRun(t, ts.URL, body)
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.NotContains(t, resp.Header.Get("Content-Type"), "text/event-stream")
		assert.JSONEq(t, `{"error":"Intent is required"}`, string(data))
	}
}

func TestRun_StreamsEventsInOrder(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postRun(t, ts.URL, `{"intent":"Build 100 electric bikes"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	evs := readStream(t, resp)
	require.NotEmpty(t, evs)
	assert.Equal(t, "project_created", evs[0].Event)
	n := len(evs)
	assert.Equal(t, events.TypeReport, evs[n-3].Type)
	assert.Equal(t, events.TypePlan, evs[n-2].Type)
	assert.Equal(t, events.TypeComplete, evs[n-1].Type)

	var plan orchestrator.ExecutionPlan
	require.NoError(t, evs[n-2].Decode(&plan))
	assert.Equal(t, "completed", plan.Status)
	assert.Positive(t, plan.CostSummary.TotalCostUSD)
}

func TestRunsRequireArchive(t *testing.T) {
	ts, _ := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/runs", &body))
	assert.Equal(t, "Run archive is disabled", body["error"])
}

func TestRun_ArchivedAndQueryable(t *testing.T) {
	arch, err := archive.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { arch.Close() })
	ts, _ := newTestServer(t, WithArchive(arch))

	resp := postRun(t, ts.URL, `{"intent":"Build an electric bike"}`)
	streamed := readStream(t, resp)

	var list struct {
		Runs []archive.Run `json:"runs"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/runs", &list))
	require.Len(t, list.Runs, 1)
	run := list.Runs[0]
	assert.Equal(t, "streamed", run.State)
	assert.NotEmpty(t, run.ProjectID)

	var got archive.Run
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/runs/"+run.ProjectID, &got))
	assert.NotEmpty(t, got.Plan)

	var stored struct {
		Events []events.Event `json:"events"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/runs/"+run.ID+"/events", &stored))
	assert.Len(t, stored.Events, len(streamed))

	var rs status.RunStatus
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/runs/"+run.ID+"/status", &rs))
	assert.True(t, rs.Complete)
	assert.Equal(t, run.ProjectID, rs.ProjectID)

	diagram, err := http.Get(ts.URL + "/api/runs/" + run.ID + "/diagram")
	require.NoError(t, err)
	data, _ := io.ReadAll(diagram.Body)
	diagram.Body.Close()
	assert.True(t, strings.HasPrefix(string(data), "graph LR"))

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/runs/"+run.ID+"/events", nil)
	req.Header.Set("Accept", "text/event-stream")
	replay, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Len(t, readStream(t, replay), len(streamed))

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/runs/missing", nil))
}

func TestRun_ClientDisconnectStillArchivesCompleteRun(t *testing.T) {
	arch, err := archive.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { arch.Close() })

	mock := generator.NewMock()
	slow := generator.Func(func(ctx context.Context, req generator.Request) ([]byte, error) {
		time.Sleep(20 * time.Millisecond)
		return mock.Generate(ctx, req)
	})
	cfg := orchestrator.DefaultConfig()
	cfg.Pacing = orchestrator.Pacing{}
	p := orchestrator.NewPipeline(slow, orchestrator.WithConfig(cfg), orchestrator.WithLogger(quietLogger()))
	ts := httptest.NewServer(New(p, WithLogger(quietLogger()), WithArchive(arch)))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/api/run", strings.NewReader(`{"intent":"Build an electric bike"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	first := <-events.ReadEvents(ctx, resp.Body)
	require.NoError(t, first.Err)
	cancel()
	resp.Body.Close()

	var run *archive.Run
	require.Eventually(t, func() bool {
		runs, err := arch.ListRuns(context.Background(), 1)
		if err != nil || len(runs) == 0 || runs[0].State != "streamed" {
			return false
		}
		run = runs[0]
		return true
	}, 10*time.Second, 20*time.Millisecond)

	stored, err := arch.Events(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored)
	assert.Equal(t, events.TypeComplete, stored[len(stored)-1].Type)
}

func TestAgentEndpointsServeA2A(t *testing.T) {
	ts, _ := newTestServer(t, WithAgentGenerator(generator.NewMock()))

	client := a2a.NewHTTPClient()
	card, err := client.DiscoverAgent(context.Background(), ts.URL+"/agents/manufacturer")
	require.NoError(t, err)
	assert.Equal(t, "Manufacturer Agent", card.Name)

	gen := generator.NewA2AGenerator(client, ts.URL+"/agents/procurement", 10*time.Millisecond)
	req, err := generator.AnalysisRequest("proj_0badf00d", generator.AnalysisInput{Intent: "Build a drone"})
	require.NoError(t, err)
	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, string(out), "components")
}
