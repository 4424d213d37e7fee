package mcptools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/procure/internal/agent"
	"github.com/dusk-indust/procure/internal/generator"
	"github.com/dusk-indust/procure/internal/orchestrator"
)

// setupServerClient wires an MCP server and client together using in-memory
// transports.
func setupServerClient(t *testing.T) *mcp.ClientSession {
	t.Helper()

	cfg := orchestrator.DefaultConfig()
	cfg.Pacing = orchestrator.Pacing{}
	p := orchestrator.NewPipeline(generator.NewMock(),
		orchestrator.WithConfig(cfg),
		orchestrator.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	server := NewProcureMCPServer(NewProcureService(p, agent.Default()))

	st, ct := mcp.NewInMemoryTransports()
	ctx := context.Background()

	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

// callTool calls name and decodes its structured content into out.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args, out any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	if out != nil && !result.IsError {
		require.NotNil(t, result.StructuredContent)
		raw, err := json.Marshal(result.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return result
}

func TestMCPListTools(t *testing.T) {
	session := setupServerClient(t)

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)
	assert.Equal(t, []string{"list_agents", "list_partners", "run_procurement", "search_agents", "select_partners"}, names)
}

func TestMCPListPartners(t *testing.T) {
	session := setupServerClient(t)

	var out ListPartnersOutput
	result := callTool(t, session, "list_partners", ListPartnersInput{Kind: "manufacturers"}, &out)
	require.False(t, result.IsError)
	assert.Equal(t, "manufacturers", out.Kind)
	assert.Equal(t, 30, out.Count)

	result = callTool(t, session, "list_partners", ListPartnersInput{Kind: "brokers"}, nil)
	assert.True(t, result.IsError)
}

func TestMCPSelectPartners(t *testing.T) {
	session := setupServerClient(t)

	lat, lon := 52.52, 13.405
	var out struct {
		Selected []map[string]any `json:"selected"`
	}
	result := callTool(t, session, "select_partners", SelectPartnersInput{
		Kind: "suppliers", Keywords: []string{"battery"}, Latitude: &lat, Longitude: &lon, TopN: 3,
	}, &out)
	require.False(t, result.IsError)
	require.NotEmpty(t, out.Selected)
	assert.LessOrEqual(t, len(out.Selected), 3)
	assert.Contains(t, out.Selected[0], "selection_score")

	result = callTool(t, session, "select_partners", SelectPartnersInput{Kind: "suppliers", Latitude: &lat}, nil)
	assert.True(t, result.IsError, "latitude without longitude")
}

func TestMCPAgents(t *testing.T) {
	session := setupServerClient(t)

	var all AgentsOutput
	callTool(t, session, "list_agents", ListAgentsInput{}, &all)
	assert.Len(t, all.Agents, 5)

	var eu AgentsOutput
	callTool(t, session, "search_agents", SearchAgentsInput{Role: "manufacturer", Jurisdiction: "EU"}, &eu)
	require.Len(t, eu.Agents, 1)
	assert.Equal(t, "manufacturer_prime", eu.Agents[0].ID)
}

func TestMCPRunProcurement(t *testing.T) {
	session := setupServerClient(t)

	var out RunProcurementOutput
	result := callTool(t, session, "run_procurement", RunProcurementInput{Intent: "Build 100 electric bikes"}, &out)
	require.False(t, result.IsError)

	assert.Regexp(t, `^proj_[0-9a-f]{8}$`, out.ProjectID)
	assert.Equal(t, "streamed", out.State)
	assert.Positive(t, out.EventCount)
	assert.NotNil(t, out.Plan)
	assert.NotNil(t, out.Report)

	result = callTool(t, session, "run_procurement", RunProcurementInput{Intent: "  "}, nil)
	assert.True(t, result.IsError)
}
