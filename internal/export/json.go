// Package export renders finished execution plans for use outside the
// service: a flattened JSON bill of materials and a Mermaid diagram.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dusk-indust/procure/internal/orchestrator"
	"github.com/dusk-indust/procure/internal/status"
)

// PlanExport is the top-level JSON export structure.
type PlanExport struct {
	ProjectID   string                   `json:"projectId"`
	Product     string                   `json:"product"`
	Intent      string                   `json:"intent"`
	ExportedAt  string                   `json:"exportedAt"`
	Stages      []StageExport            `json:"stages"`
	Lines       []LineExport             `json:"lines"`
	Timeline    orchestrator.Timeline    `json:"timeline"`
	CostSummary orchestrator.CostSummary `json:"costSummary"`
	Progress    *status.RunStatus        `json:"progress,omitempty"`
}

// StageExport describes one coordinated partner.
type StageExport struct {
	Stage   string `json:"stage"`
	Partner string `json:"partner"`
	Status  string `json:"status"`
}

// LineExport is one bill-of-materials line.
type LineExport struct {
	Component   string  `json:"component"`
	Supplier    string  `json:"supplier"`
	Location    string  `json:"location,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitCostUSD float64 `json:"unitCostUsd"`
	LineCostUSD float64 `json:"lineCostUsd"`
	LeadDays    float64 `json:"leadDays"`
}

// Option configures an export.
type Option func(*PlanExport)

// WithProgress attaches the run's phase table derived from its events.
func WithProgress(rs status.RunStatus) Option {
	return func(e *PlanExport) { e.Progress = &rs }
}

// ExportPlan builds a PlanExport from plan.
func ExportPlan(plan orchestrator.ExecutionPlan, at time.Time, opts ...Option) *PlanExport {
	e := &PlanExport{
		ProjectID:   plan.ProjectID,
		Product:     plan.Product,
		Intent:      plan.Intent,
		ExportedAt:  at.UTC().Format(time.RFC3339),
		Timeline:    plan.Timeline,
		CostSummary: plan.CostSummary,
		Stages: []StageExport{
			{Stage: "supplier", Partner: strings.Join(plan.Suppliers.Selected, ", "), Status: string(plan.Suppliers.Status)},
			{Stage: "manufacturer", Partner: plan.Manufacturer.Selected, Status: string(plan.Manufacturer.Status)},
			{Stage: "logistics", Partner: plan.Logistics.Selected, Status: string(plan.Logistics.Status)},
			{Stage: "retailer", Partner: plan.Retailer.Selected, Status: string(plan.Retailer.Status)},
		},
	}

	for _, q := range plan.Suppliers.Quotes {
		e.Lines = append(e.Lines, LineExport{
			Component:   q.ComponentName.String(),
			Supplier:    q.AssignedSupplier.String(),
			Location:    q.SupplierLocation.String(),
			Quantity:    orchestrator.Quantity(q),
			UnitCostUSD: q.UnitCostUSD.Value(),
			LineCostUSD: orchestrator.LineCost(q),
			LeadDays:    q.LeadTimeDays.Value(),
		})
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	return nil
}
