// Package mcptools exposes partner and agent lookups and full procurement
// runs as MCP tools.
package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/procure/internal/agent"
	"github.com/dusk-indust/procure/internal/events"
	"github.com/dusk-indust/procure/internal/geo"
	"github.com/dusk-indust/procure/internal/orchestrator"
	"github.com/dusk-indust/procure/internal/partner"
	"github.com/dusk-indust/procure/internal/ranking"
)

// ListPartnersInput is the input for the list_partners MCP tool.
type ListPartnersInput struct {
	Kind string `json:"kind" jsonschema:"registry to list: suppliers, manufacturers, or logistics"`
}

// ListPartnersOutput is the result of the list_partners MCP tool.
type ListPartnersOutput struct {
	Kind     string `json:"kind"`
	Count    int    `json:"count"`
	Partners any    `json:"partners"`
}

// SelectPartnersInput is the input for the select_partners MCP tool.
type SelectPartnersInput struct {
	Kind      string   `json:"kind" jsonschema:"registry to rank: suppliers, manufacturers, or logistics"`
	Keywords  []string `json:"keywords,omitempty" jsonschema:"capability keywords, e.g. battery or electronics"`
	Latitude  *float64 `json:"latitude,omitempty" jsonschema:"reference (or pickup) latitude in degrees; default Paris"`
	Longitude *float64 `json:"longitude,omitempty" jsonschema:"reference (or pickup) longitude in degrees; default Paris"`
	Mode      string   `json:"mode,omitempty" jsonschema:"logistics transport mode: road, rail, air, or sea"`
	TopN      int      `json:"topN,omitempty" jsonschema:"shortlist length (default: 5)"`
}

// SelectPartnersOutput is the result of the select_partners MCP tool.
type SelectPartnersOutput struct {
	Kind     string `json:"kind"`
	Selected any    `json:"selected"`
}

// ListAgentsInput is the input for the list_agents MCP tool.
type ListAgentsInput struct{}

// AgentsOutput is the result of the list_agents and search_agents tools.
type AgentsOutput struct {
	Agents []agent.Facts `json:"agents"`
}

// SearchAgentsInput is the input for the search_agents MCP tool.
type SearchAgentsInput struct {
	Role         string   `json:"role,omitempty" jsonschema:"agent role, case-insensitive: Procurement, Supplier, Manufacturer, Logistics, Retailer"`
	Capability   []string `json:"capability,omitempty" jsonschema:"match agents listing any of these capabilities"`
	Jurisdiction string   `json:"jurisdiction,omitempty" jsonschema:"jurisdiction such as EU; global agents always match"`
}

// RunProcurementInput is the input for the run_procurement MCP tool.
type RunProcurementInput struct {
	Intent string `json:"intent" jsonschema:"what to build, e.g. Build 100 electric bikes"`
}

// RunProcurementOutput is the result of the run_procurement MCP tool.
type RunProcurementOutput struct {
	ProjectID   string `json:"projectId"`
	State       string `json:"state"`
	EventCount  int    `json:"eventCount"`
	StageErrors int    `json:"stageErrors"`
	Corrections int    `json:"corrections"`
	Plan        any    `json:"plan"`
	Report      any    `json:"report,omitempty"`
}

// ProcureService holds what the MCP tool handlers need.
type ProcureService struct {
	pipeline *orchestrator.Pipeline
	agents   *agent.Registry
}

// NewProcureService creates a ProcureService.
func NewProcureService(p *orchestrator.Pipeline, agents *agent.Registry) *ProcureService {
	return &ProcureService{pipeline: p, agents: agents}
}

// ListPartners returns every record of one registry.
func (s *ProcureService) ListPartners(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ListPartnersInput,
) (*mcp.CallToolResult, ListPartnersOutput, error) {
	kind, err := partner.ParseKind(input.Kind)
	if err != nil {
		return nil, ListPartnersOutput{}, err
	}
	reg := s.pipeline.Registry()
	out := ListPartnersOutput{Kind: string(kind)}
	switch kind {
	case partner.KindSuppliers:
		out.Partners, out.Count = reg.Suppliers(), len(reg.Suppliers())
	case partner.KindManufacturers:
		out.Partners, out.Count = reg.Manufacturers(), len(reg.Manufacturers())
	default:
		out.Partners, out.Count = reg.Logistics(), len(reg.Logistics())
	}
	return nil, out, nil
}

// SelectPartners ranks one registry and returns the shortlist.
func (s *ProcureService) SelectPartners(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SelectPartnersInput,
) (*mcp.CallToolResult, SelectPartnersOutput, error) {
	kind, err := partner.ParseKind(input.Kind)
	if err != nil {
		return nil, SelectPartnersOutput{}, err
	}
	q := ranking.Query{Keywords: input.Keywords, Mode: input.Mode, TopN: input.TopN}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		return nil, SelectPartnersOutput{}, errors.New("latitude and longitude must be given together")
	}
	if input.Latitude != nil {
		q.Reference = &geo.Point{Lat: *input.Latitude, Lon: *input.Longitude}
	}
	return nil, SelectPartnersOutput{
		Kind:     string(kind),
		Selected: ranking.Select(s.pipeline.Registry(), kind, q),
	}, nil
}

// ListAgents returns every registered agent.
func (s *ProcureService) ListAgents(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListAgentsInput,
) (*mcp.CallToolResult, AgentsOutput, error) {
	return nil, AgentsOutput{Agents: s.agents.List()}, nil
}

// SearchAgents filters agents by role, capability, and jurisdiction.
func (s *ProcureService) SearchAgents(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SearchAgentsInput,
) (*mcp.CallToolResult, AgentsOutput, error) {
	return nil, AgentsOutput{Agents: s.agents.Search(agent.Query{
		Role:         input.Role,
		Capability:   input.Capability,
		Jurisdiction: input.Jurisdiction,
	})}, nil
}

// RunProcurement executes a full run and returns its plan and report.
func (s *ProcureService) RunProcurement(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunProcurementInput,
) (*mcp.CallToolResult, RunProcurementOutput, error) {
	rec := &events.Recorder{}
	run, err := s.pipeline.Run(ctx, input.Intent, rec)
	if err != nil {
		return nil, RunProcurementOutput{}, fmt.Errorf("run procurement: %w", err)
	}

	out := RunProcurementOutput{
		ProjectID:   run.ID,
		State:       run.State.String(),
		EventCount:  rec.Len(),
		StageErrors: run.StageErrors(),
		Corrections: len(run.Corrections),
	}
	if run.Plan != nil {
		out.Plan = run.Plan.Reduced()
		if run.Plan.CoordinationReport != nil {
			out.Report = run.Plan.CoordinationReport
		}
	}
	return nil, out, nil
}
