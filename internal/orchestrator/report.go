package orchestrator

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/procure/internal/partner"
	"github.com/dusk-indust/procure/internal/policy"
)

// AgentsInvolved is the number of agent roles taking part in every run.
const AgentsInvolved = 5

// CoordinationReport is the audit narrative of a run.
type CoordinationReport struct {
	AgentsInvolved         int               `json:"agents_involved"`
	TotalPartnersEvaluated partner.Counts    `json:"total_partners_evaluated"`
	PartnersShortlisted    partner.Counts    `json:"partners_shortlisted"`
	DiscoveryPaths         []DiscoveryPath   `json:"discovery_paths"`
	TrustVerification      []TrustCheck      `json:"trust_verification"`
	PolicyEnforcement      []PolicyCheck     `json:"policy_enforcement"`
	MessageExchanges       []MessageExchange `json:"message_exchanges"`
	ExecutionSummary       ExecutionSummary  `json:"execution_summary"`
	SelectionCriteria      []string          `json:"selection_criteria"`
	Corrections            []Correction      `json:"corrections"`
}

// DiscoveryPath is one step of partner discovery.
type DiscoveryPath struct {
	Step      int    `json:"step"`
	Action    string `json:"action"`
	Result    string `json:"result"`
	Reasoning string `json:"reasoning"`
}

// TrustCheck is a trust verification outcome.
type TrustCheck struct {
	Check   string `json:"check"`
	Status  string `json:"status"`
	Details string `json:"details"`
}

// PolicyCheck is a policy enforcement outcome.
type PolicyCheck struct {
	Policy  string `json:"policy"`
	Status  string `json:"status"`
	Details string `json:"details"`
}

// MessageExchange is one message between participants.
type MessageExchange struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Message  string `json:"message"`
	Protocol string `json:"protocol"`
}

// ExecutionSummary narrates the order of work, timing, and costs.
type ExecutionSummary struct {
	OrderSequence []string      `json:"order_sequence"`
	Timing        Timing        `json:"timing"`
	Routing       string        `json:"routing"`
	CostBreakdown CostBreakdown `json:"cost_breakdown"`
}

// Timing describes each leg of the timeline.
type Timing struct {
	PartsProcurement      string `json:"parts_procurement,omitempty"`
	ManufacturingAssembly string `json:"manufacturing_assembly,omitempty"`
	ShippingTransit       string `json:"shipping_transit,omitempty"`
	FinalDelivery         string `json:"final_delivery,omitempty"`
	Total                 string `json:"total"`
}

// CostBreakdown is the display form of the cost summary.
type CostBreakdown struct {
	PartsAndMaterials    string `json:"parts_and_materials,omitempty"`
	ShippingAndLogistics string `json:"shipping_and_logistics,omitempty"`
	TotalProcurementCost string `json:"total_procurement_cost"`
	RetailMargin         string `json:"retail_margin,omitempty"`
	EstimatedRetailPrice string `json:"estimated_retail_price,omitempty"`
}

// SelectionCriteria lists how partners are ranked.
var SelectionCriteria = []string{
	"Capability/specialization match with required components",
	"Reliability score (historical performance rating)",
	"Cost efficiency (cost multiplier vs. baseline)",
	"Geographic proximity (haversine distance from reference location)",
	"Lead time optimization (shortest critical path)",
	"Certification compliance (ISO 9001, IATF 16949, AS9100)",
}

// reportInput is everything the report narrates. It is built from values
// already computed by the pipeline.
type reportInput struct {
	run          *ProjectRun
	registry     partner.Counts
	timeline     Timeline
	decisions    []policy.Decision
	manufacturer string
	logistics    string
}

func buildReport(in reportInput) CoordinationReport {
	run := in.run
	short := run.Shortlist.Counts()
	nComponents := len(run.Analysis.Components)
	nQuotes := len(run.Quotes.Quotes)
	nUsed := len(run.Quotes.SuppliersUsed)
	product := run.Product()
	t := in.timeline
	c := run.Costs

	supplierNames := make([]string, 0, short.Suppliers)
	for _, s := range run.Shortlist.Suppliers {
		supplierNames = append(supplierNames, s.Record.Name)
	}

	r := CoordinationReport{
		AgentsInvolved:         AgentsInvolved,
		TotalPartnersEvaluated: in.registry,
		PartnersShortlisted:    short,
		SelectionCriteria:      SelectionCriteria,
		Corrections:            run.Corrections,
	}
	if r.Corrections == nil {
		r.Corrections = []Correction{}
	}

	r.DiscoveryPaths = []DiscoveryPath{
		{
			Step:      1,
			Action:    "Agent Registry Lookup",
			Result:    fmt.Sprintf("Identified %d registered agent roles: Procurement, Supplier, Manufacturer, Logistics, Retailer", AgentsInvolved),
			Reasoning: "Queried the agent registry for endpoints, roles, and capabilities before starting coordination.",
		},
		{
			Step:      2,
			Action:    "Supplier Database Scan",
			Result:    fmt.Sprintf("Scored all %d suppliers, shortlisted top %d based on composite score", in.registry.Suppliers, short.Suppliers),
			Reasoning: "Weighted scoring: capability match with required components (40%), reliability (20%), cost multiplier (20%), haversine distance from the reference location (20%).",
		},
		{
			Step:      3,
			Action:    "Manufacturer Database Scan",
			Result:    fmt.Sprintf("Scored all %d manufacturers, shortlisted top %d facilities", in.registry.Manufacturers, short.Manufacturers),
			Reasoning: "Evaluated facilities by assembly capabilities, proximity to the supplier cluster, reliability, and cost per hour.",
		},
		{
			Step:      4,
			Action:    "Logistics Provider Discovery",
			Result:    fmt.Sprintf("Scored all %d logistics providers, shortlisted top %d carriers", in.registry.LogisticsProviders, short.LogisticsProviders),
			Reasoning: "Ranked providers by hub proximity to pickup, transport mode coverage, reliability, cost per km, and customs, hazmat, and tracking capabilities.",
		},
		{
			Step:      5,
			Action:    "Intent Decomposition",
			Result:    fmt.Sprintf("Decomposed intent into %d component groups for product: %s", nComponents, product),
			Reasoning: "The Procurement Agent analyzed the request and identified required parts, categories, specifications, and estimated costs.",
		},
	}

	for _, d := range in.decisions {
		switch d.Kind {
		case policy.KindTrust:
			r.TrustVerification = append(r.TrustVerification, TrustCheck{Check: d.Check, Status: d.Status, Details: d.Details})
		case policy.KindPolicy:
			r.PolicyEnforcement = append(r.PolicyEnforcement, PolicyCheck{Policy: d.Check, Status: d.Status, Details: d.Details})
		}
	}

	r.MessageExchanges = []MessageExchange{
		{"User", "Procurement Agent", "Submitted procurement request: " + clip(run.Intent, 80), "HTTP/JSON"},
		{"Procurement Agent", "Agent Registry", "Queried registry for all available agent endpoints, roles, and capabilities", "Internal"},
		{"Procurement Agent", "Partner Database", fmt.Sprintf("Scored %d partners (%d suppliers + %d manufacturers + %d logistics)", in.registry.Total(), in.registry.Suppliers, in.registry.Manufacturers, in.registry.LogisticsProviders), "Internal"},
		{"Procurement Agent", "Supplier Agent", fmt.Sprintf("A2A Request: Check availability for %d components. Pre-selected %d suppliers: %s", nComponents, short.Suppliers, orNA(strings.Join(supplierNames, ", "))), "A2A/HTTP"},
		{"Supplier Agent", "Procurement Agent", fmt.Sprintf("A2A Response: Generated %d component quotes across %d suppliers. Total parts cost: %s", nQuotes, nUsed, money(c.PartsUSD)), "A2A/HTTP"},
		{"Procurement Agent", "Supplier Agent", fmt.Sprintf("Trust verification: Requested certification proof for %d selected suppliers", nUsed), "A2A/HTTP"},
		{"Supplier Agent", "Procurement Agent", "Certifications returned for policy evaluation.", "A2A/HTTP"},
		{"Procurement Agent", "Manufacturer Agent", fmt.Sprintf("A2A Request: Evaluate assembly capacity for %s. Pre-selected %d facilities. Forwarding %d confirmed parts.", product, short.Manufacturers, nQuotes), "A2A/HTTP"},
		{"Manufacturer Agent", "Procurement Agent", fmt.Sprintf("A2A Response: Selected %s. Assembly plan created.", in.manufacturer), "A2A/HTTP"},
		{"Procurement Agent", "Logistics Agent", fmt.Sprintf("A2A Request: Plan routing from supplier locations through %s to customer. Pre-selected %d carriers.", in.manufacturer, short.LogisticsProviders), "A2A/HTTP"},
		{"Logistics Agent", "Procurement Agent", fmt.Sprintf("A2A Response: Selected %s. Shipping cost: %s. Duration: %d days.", in.logistics, money(c.ShippingUSD), t.ShippingDays), "A2A/HTTP"},
		{"Procurement Agent", "Retailer Agent", fmt.Sprintf("A2A Request: Create delivery plan for %s. Assembly at %s, shipping via %s.", product, in.manufacturer, in.logistics), "A2A/HTTP"},
		{"Retailer Agent", "Procurement Agent", fmt.Sprintf("A2A Response: Delivery plan ready. Estimated delivery offset: %d days.", t.DeliveryDays), "A2A/HTTP"},
		{"Procurement Agent", "User", fmt.Sprintf("Final execution plan compiled. Total cost: %s. Timeline: %d days. %d suppliers, 1 manufacturer, 1 logistics provider, 1 retailer engaged.", money(c.TotalUSD), t.TotalDays, nUsed), "HTTP/SSE"},
	}

	retailMargin, retailPrice := "TBD", "TBD by retailer"
	if c.RetailPriceUSD > 0 {
		retailMargin = fmt.Sprintf("%.0f%%", c.MarginPercentage)
		retailPrice = money(c.RetailPriceUSD)
	}

	r.ExecutionSummary = ExecutionSummary{
		OrderSequence: []string{
			"Procurement Agent receives and decomposes the intent",
			fmt.Sprintf("Identified %d required component groups for %s", nComponents, product),
			fmt.Sprintf("Scored and shortlisted %d suppliers, %d manufacturers, %d logistics providers from the %d-partner database", short.Suppliers, short.Manufacturers, short.LogisticsProviders, in.registry.Total()),
			fmt.Sprintf("Supplier Agent evaluated components against %d pre-selected suppliers and generated %d quotes", short.Suppliers, nQuotes),
			fmt.Sprintf("Manufacturer Agent selected %s and created the assembly plan", in.manufacturer),
			fmt.Sprintf("Logistics Agent selected %s and planned the shipping route", in.logistics),
			"Retailer Agent finalized delivery plan, packaging, warranty, and customer experience",
			"Procurement Agent compiled and delivered the final execution plan",
		},
		Timing: Timing{
			PartsProcurement:      fmt.Sprintf("%d days - sourcing, verification, and supplier coordination", t.PartsProcurementDays),
			ManufacturingAssembly: fmt.Sprintf("%d days - assembly, quality testing, and inspection", t.AssemblyDays),
			ShippingTransit:       fmt.Sprintf("%d days - transportation from manufacturer to delivery hub", t.ShippingDays),
			FinalDelivery:         fmt.Sprintf("%d days - last-mile delivery and customer handoff", t.DeliveryDays),
			Total:                 fmt.Sprintf("%d days end-to-end", t.TotalDays),
		},
		Routing: fmt.Sprintf("Parts sourced from %d suppliers. Consolidated and assembled at %s. Shipped via %s to the delivery hub. Last-mile delivery to customer.", nUsed, in.manufacturer, in.logistics),
		CostBreakdown: CostBreakdown{
			PartsAndMaterials:    money(c.PartsUSD),
			ShippingAndLogistics: money(c.ShippingUSD),
			TotalProcurementCost: money(c.TotalUSD),
			RetailMargin:         retailMargin,
			EstimatedRetailPrice: retailPrice,
		},
	}
	return r
}

// fallbackReport is sent when the full report cannot be encoded.
func fallbackReport(in reportInput, err error) CoordinationReport {
	msg := err.Error()
	return CoordinationReport{
		AgentsInvolved:         AgentsInvolved,
		TotalPartnersEvaluated: in.registry,
		PartnersShortlisted:    in.run.Shortlist.Counts(),
		DiscoveryPaths:         []DiscoveryPath{{Step: 1, Action: "Error building detailed report", Result: msg, Reasoning: "Fallback report used"}},
		TrustVerification:      []TrustCheck{{Check: "Report generation", Status: "error", Details: msg}},
		PolicyEnforcement:      []PolicyCheck{{Policy: "Report generation", Status: "error", Details: msg}},
		MessageExchanges:       []MessageExchange{{From: "System", To: "User", Message: "Report generation encountered an error: " + msg, Protocol: "Internal"}},
		ExecutionSummary: ExecutionSummary{
			OrderSequence: []string{"Error generating detailed summary"},
			Timing:        Timing{Total: fmt.Sprintf("%d days", in.timeline.TotalDays)},
			Routing:       "N/A",
			CostBreakdown: CostBreakdown{TotalProcurementCost: money(in.run.Costs.TotalUSD)},
		},
		SelectionCriteria: []string{},
		Corrections:       []Correction{},
	}
}

// clip shortens s to n runes, adding "..." when cut, and swaps double quotes
// for single ones.
func clip(s string, n int) string {
	s = strings.ReplaceAll(s, `"`, "'")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
