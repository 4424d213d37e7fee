package orchestrator

import (
	"math"
	"strconv"
	"strings"

	"github.com/dusk-indust/procure/internal/payload"
	"github.com/dusk-indust/procure/internal/ranking"
)

// RetailerID is the retail partner every plan ships through.
const RetailerID = "retailer_direct"

// ExecutionPlan is the caller-facing result of a run.
type ExecutionPlan struct {
	ProjectID          string              `json:"project_id"`
	Product            string              `json:"product"`
	Intent             string              `json:"intent"`
	Status             string              `json:"status"`
	Components         []payload.Component `json:"components"`
	Suppliers          SupplierSection     `json:"suppliers"`
	Manufacturer       ManufacturerSection `json:"manufacturer"`
	Logistics          LogisticsSection    `json:"logistics"`
	Retailer           RetailerSection     `json:"retailer"`
	Timeline           Timeline            `json:"timeline"`
	CostSummary        CostSummary         `json:"cost_summary"`
	CoordinationReport *CoordinationReport `json:"coordination_report,omitempty"`
}

// SupplierSection summarizes sourcing.
type SupplierSection struct {
	Status            Status                    `json:"status"`
	Selected          []string                  `json:"selected"`
	SelectedDetails   []ranking.SupplierSummary `json:"selected_details"`
	ComponentCount    int                       `json:"component_count"`
	QuoteCount        int                       `json:"quote_count"`
	TotalPartsCostUSD float64                   `json:"total_parts_cost_usd"`
	Quotes            []payload.Quote           `json:"quotes"`
}

// ManufacturerSection summarizes assembly.
type ManufacturerSection struct {
	Status             Status                       `json:"status"`
	Selected           string                       `json:"selected"`
	SelectedDetails    *ranking.ManufacturerSummary `json:"selected_details"`
	AssemblyPlan       payload.AssemblyPlan         `json:"assembly_plan"`
	CanAssemble        bool                         `json:"can_assemble"`
	SelectionRationale string                       `json:"selection_rationale"`
}

// LogisticsSection summarizes shipping.
type LogisticsSection struct {
	Status             Status                    `json:"status"`
	Selected           string                    `json:"selected"`
	SelectedDetails    *ranking.LogisticsSummary `json:"selected_details"`
	Route              payload.Route             `json:"route"`
	Recommended        string                    `json:"recommended"`
	ShippingCostUSD    float64                   `json:"shipping_cost_usd"`
	SelectionRationale string                    `json:"selection_rationale"`
}

// RetailerSection summarizes last-mile delivery.
type RetailerSection struct {
	Status             Status                     `json:"status"`
	Selected           string                     `json:"selected"`
	DeliveryPlan       payload.DeliveryPlan       `json:"delivery_plan"`
	CustomerExperience payload.CustomerExperience `json:"customer_experience"`
	RetailPriceUSD     float64                    `json:"retail_price_usd"`
}

// Timeline is the critical path in days.
type Timeline struct {
	PartsProcurementDays int `json:"parts_procurement_days"`
	AssemblyDays         int `json:"assembly_days"`
	ShippingDays         int `json:"shipping_days"`
	DeliveryDays         int `json:"delivery_days"`
	TotalDays            int `json:"total_days"`
}

// CostSummary holds the reconciled money figures.
type CostSummary struct {
	PartsCostUSD     float64 `json:"parts_cost_usd"`
	ShippingCostUSD  float64 `json:"shipping_cost_usd"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
	RetailPriceUSD   float64 `json:"retail_price_usd"`
	MarginPercentage float64 `json:"margin_percentage"`
}

// Reduced returns a copy of p without the coordination report.
func (p ExecutionPlan) Reduced() ExecutionPlan {
	p.CoordinationReport = nil
	return p
}

// timelineOf derives the critical path of run.
func timelineOf(run *ProjectRun) Timeline {
	var lead float64
	for _, q := range run.Quotes.Quotes {
		lead = max(lead, q.LeadTimeDays.Value())
	}
	t := Timeline{
		PartsProcurementDays: int(lead),
		AssemblyDays:         run.Manufacturing.AssemblyPlan.TotalAssemblyTimeDays.Int(),
		ShippingDays:         run.Logistics.FirstRoute().TotalDurationDays.Int(),
		DeliveryDays:         run.Retail.DeliveryPlan.EstimatedDeliveryDateOffsetDays.Int(),
	}
	t.TotalDays = t.PartsProcurementDays + t.AssemblyDays + t.ShippingDays + t.DeliveryDays
	return t
}

// money formats v as "$1,234.56".
func money(v float64) string {
	neg := v < 0
	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// orNA returns s, or "N/A" when s is blank.
func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
