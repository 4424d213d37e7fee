package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dusk-indust/procure/internal/partner"
	"github.com/dusk-indust/procure/internal/payload"
)

// ---------------------------------------------------------------------------
// Stage inputs
// ---------------------------------------------------------------------------

// AnalysisInput is the context of the intent analysis call.
type AnalysisInput struct {
	Intent string `json:"intent"`
}

// SupplierInput is the context of one supplier quoting call. Components is
// a single batch, not necessarily the full list.
type SupplierInput struct {
	Product    string              `json:"product"`
	Components []payload.Component `json:"components"`
	Suppliers  []partner.Supplier  `json:"suppliers"`
}

// ManufacturerInput is the context of the assembly planning call.
type ManufacturerInput struct {
	Product       string                  `json:"product"`
	Components    []payload.Component     `json:"components"`
	SupplierData  *payload.SupplierQuotes `json:"supplier_data,omitempty"`
	Manufacturers []partner.Manufacturer  `json:"manufacturers"`
}

// PickupInfo describes where goods are collected.
type PickupInfo struct {
	Suppliers            []string `json:"suppliers"`
	Manufacturer         string   `json:"manufacturer"`
	ManufacturerLocation string   `json:"manufacturer_location"`
}

// DeliveryInfo describes where goods are delivered.
type DeliveryInfo struct {
	Destination string `json:"destination"`
	ProductType string `json:"product_type"`
}

// LogisticsInput is the context of the route planning call.
type LogisticsInput struct {
	Product   string                      `json:"product"`
	Pickup    PickupInfo                  `json:"pickup"`
	Delivery  DeliveryInfo                `json:"delivery"`
	Providers []partner.LogisticsProvider `json:"providers"`
}

// CostData carries the reconciled procurement costs to the retailer.
type CostData struct {
	PartsCostUSD            float64 `json:"parts_cost_usd"`
	ShippingCostUSD         float64 `json:"shipping_cost_usd"`
	TotalProcurementCostUSD float64 `json:"total_procurement_cost_usd"`
}

// RetailerInput is the context of the delivery planning call.
type RetailerInput struct {
	Product       string                    `json:"product"`
	Manufacturing *payload.ManufacturerPlan `json:"manufacturing,omitempty"`
	Logistics     *payload.LogisticsPlan    `json:"logistics,omitempty"`
	Costs         CostData                  `json:"costs"`
}

// ---------------------------------------------------------------------------
// Request builders
// ---------------------------------------------------------------------------

// AnalysisRequest builds the intent analysis call.
func AnalysisRequest(projectID string, in AnalysisInput) (Request, error) {
	system := `You are a supply chain procurement specialist with deep experience across
automotive, electronics, aerospace, consumer goods, and industrial manufacturing.
Identify every component, sub-assembly, and raw material needed to build what the
customer asks for. For complex products such as vehicles list 15-25 component groups,
with realistic unit cost estimates.

Respond with a single JSON object:
{
  "product": "name of the product being assembled",
  "product_category": "automotive, electronics, ...",
  "components": [
    {
      "name": "component name",
      "category": "engine, body, electronics, interior, ...",
      "specifications": "technical specifications",
      "estimated_quantity": 1,
      "priority": "critical or standard",
      "estimated_unit_cost_usd": 0
    }
  ],
  "total_estimated_components": 0,
  "assembly_complexity": "low, medium, high or very_high",
  "notes": "procurement notes"
}`
	user := fmt.Sprintf("Project ID: %s\nRequest: %q\n\nIdentify all required components.", projectID, in.Intent)
	return build(RoleAnalysis, projectID, system, user, in)
}

type supplierInfo struct {
	Name           string   `json:"name"`
	Location       string   `json:"location"`
	Specialization []string `json:"specialization"`
	LeadTimeDays   int      `json:"lead_time_days"`
	CostMultiplier float64  `json:"cost_multiplier"`
	Reliability    string   `json:"reliability"`
	Certifications []string `json:"certifications"`
	MinOrderUSD    float64  `json:"min_order_usd"`
}

// SupplierRequest builds one supplier quoting call.
func SupplierRequest(projectID string, in SupplierInput) (Request, error) {
	infos := make([]supplierInfo, len(in.Suppliers))
	for i, s := range in.Suppliers {
		infos[i] = supplierInfo{
			Name:           s.Name,
			Location:       s.Place(),
			Specialization: s.Specialization,
			LeadTimeDays:   s.LeadTimeDays,
			CostMultiplier: s.CostMultiplier,
			Reliability:    percent(s.Reliability),
			Certifications: s.Certifications,
			MinOrderUSD:    s.MinOrderUSD,
		}
	}

	system := fmt.Sprintf(`You are the Supplier Agent of a supply chain network.
These suppliers are available in your database:

%s

For every component you are given:
1. assign it to the best matching supplier from the list
2. describe the part and its specifications
3. price it from the supplier's cost_multiplier (1.0 is the market baseline)
4. use the supplier's own lead_time_days
5. note constraints and why the supplier was chosen

Respond with a single JSON object:
{
  "status": "quotes_generated",
  "quotes": [
    {
      "component_name": "...",
      "assigned_supplier": "supplier name from the list",
      "supplier_location": "city, country",
      "available": true,
      "description": "...",
      "specifications": "...",
      "unit_cost_usd": 0.00,
      "quantity": 0,
      "quantity_available": 0,
      "total_line_cost": 0.00,
      "lead_time_days": 0,
      "constraints": ["..."],
      "supplier_notes": "..."
    }
  ],
  "suppliers_used": ["..."],
  "total_estimated_cost": 0.00,
  "reasoning": "..."
}`, indent(infos))

	user := fmt.Sprintf("Project ID: %s\nProduct: %s\nRequired components: %s\n\nAssign each component to a supplier and quote it.",
		projectID, in.Product, indent(in.Components))
	return build(RoleSupplier, projectID, system, user, in)
}

type manufacturerInfo struct {
	Name                 string   `json:"name"`
	Location             string   `json:"location"`
	Specialization       string   `json:"specialization"`
	Capabilities         []string `json:"capabilities"`
	LeadTimeDays         int      `json:"lead_time_days"`
	CostPerHour          string   `json:"cost_per_hour"`
	Reliability          string   `json:"reliability"`
	CapacityUnitsMonthly int      `json:"capacity_units_monthly"`
	FacilitySizeSqm      int      `json:"facility_size_sqm"`
	Certifications       []string `json:"certifications"`
}

// ManufacturerRequest builds the assembly planning call.
func ManufacturerRequest(projectID string, in ManufacturerInput) (Request, error) {
	infos := make([]manufacturerInfo, len(in.Manufacturers))
	for i, m := range in.Manufacturers {
		infos[i] = manufacturerInfo{
			Name:                 m.Name,
			Location:             m.Place(),
			Specialization:       m.Specialization,
			Capabilities:         m.Capabilities,
			LeadTimeDays:         m.LeadTimeDays,
			CostPerHour:          fmt.Sprintf("$%g", m.CostPerUnitHour),
			Reliability:          percent(m.Reliability),
			CapacityUnitsMonthly: m.CapacityUnitsMonthly,
			FacilitySizeSqm:      m.FacilitySizeSqm,
			Certifications:       m.Certifications,
		}
	}

	system := fmt.Sprintf(`You are the Manufacturer Agent of a supply chain network.
These manufacturing facilities are available:

%s

Choose the best facility and plan the assembly.

Respond with a single JSON object:
{
  "status": "assembly_plan_created",
  "selected_manufacturer": "manufacturer name",
  "manufacturer_location": "city, country",
  "can_assemble": true,
  "assembly_plan": {
    "steps": [{"step": 1, "description": "...", "duration_hours": 0, "dependencies": ["..."]}],
    "total_assembly_time_days": 0,
    "facility": "facility name and location",
    "quality_checks": ["..."]
  },
  "capacity_status": "available",
  "estimated_completion_date_offset_days": 0,
  "selection_rationale": "...",
  "constraints": ["..."],
  "reasoning": "..."
}`, indent(infos))

	supplierData := "Pending"
	if in.SupplierData != nil {
		supplierData = indent(in.SupplierData)
	}
	user := fmt.Sprintf("Project ID: %s\nProduct: %s\nComponents: %s\nSupplier data: %s\n\nChoose a manufacturer and plan the assembly.",
		projectID, in.Product, indent(in.Components), supplierData)
	return build(RoleManufacturer, projectID, system, user, in)
}

type logisticsInfo struct {
	Name            string   `json:"name"`
	Hub             string   `json:"hub"`
	Modes           []string `json:"modes"`
	Coverage        []string `json:"coverage"`
	CostPerKm       string   `json:"cost_per_km"`
	BaseFee         string   `json:"base_fee"`
	AvgSpeedKmh     float64  `json:"avg_speed_kmh"`
	Reliability     string   `json:"reliability"`
	MaxWeightTons   float64  `json:"max_weight_tons"`
	CustomsCapable  bool     `json:"customs_capable"`
	HazmatCertified bool     `json:"hazmat_certified"`
	Tracking        string   `json:"tracking"`
}

// LogisticsRequest builds the route planning call.
func LogisticsRequest(projectID string, in LogisticsInput) (Request, error) {
	infos := make([]logisticsInfo, len(in.Providers))
	for i, l := range in.Providers {
		infos[i] = logisticsInfo{
			Name:            l.Name,
			Hub:             l.Place(),
			Modes:           l.Modes,
			Coverage:        l.CoverageRegions,
			CostPerKm:       fmt.Sprintf("$%g", l.CostPerKmUSD),
			BaseFee:         fmt.Sprintf("$%g", l.BaseFeeUSD),
			AvgSpeedKmh:     l.AvgSpeedKmh,
			Reliability:     percent(l.Reliability),
			MaxWeightTons:   l.MaxWeightTons,
			CustomsCapable:  l.CustomsCapable,
			HazmatCertified: l.HazmatCertified,
			Tracking:        l.Tracking,
		}
	}

	system := fmt.Sprintf(`You are the Logistics Provider Agent of a supply chain network.
These logistics providers are available:

%s

Choose the best provider and plan the routes.

Respond with a single JSON object:
{
  "status": "route_planned",
  "selected_provider": "provider name",
  "provider_hub": "city, country",
  "routes": [
    {
      "route_id": "...",
      "provider": "provider name",
      "mode": "ground, air or sea",
      "segments": [{"from": "...", "to": "...", "carrier": "...", "duration_days": 0}],
      "total_duration_days": 0,
      "cost_usd": 0.00,
      "risk_level": "low, medium or high",
      "risk_flags": ["..."],
      "insurance_cost_usd": 0.00,
      "tracking_type": "..."
    }
  ],
  "recommended_route": "route_id",
  "selection_rationale": "...",
  "customs_requirements": ["..."],
  "reasoning": "..."
}`, indent(infos))

	user := fmt.Sprintf("Project ID: %s\nProduct: %s\nPickup: %s\nDelivery: %s\n\nChoose a provider and plan the best route.",
		projectID, in.Product, indent(in.Pickup), indent(in.Delivery))
	return build(RoleLogistics, projectID, system, user, in)
}

// RetailerRequest builds the delivery planning call.
func RetailerRequest(projectID string, in RetailerInput) (Request, error) {
	system := `You are the Retailer Agent of a supply chain network. You own final delivery
to the customer and the post-sale experience. Price the product above the total
procurement cost you are given.

Respond with a single JSON object:
{
  "status": "delivery_planned",
  "delivery_plan": {
    "packaging": "...",
    "delivery_method": "...",
    "estimated_delivery_date_offset_days": 0,
    "tracking_number": "...",
    "notifications": ["order confirmed", "shipped", "out for delivery", "delivered"]
  },
  "customer_experience": {
    "warranty": "...",
    "return_policy": "...",
    "support_channel": "...",
    "documentation_included": ["..."]
  },
  "final_retail_price_usd": 0.00,
  "margin_percentage": 0,
  "reasoning": "..."
}`

	manufacturing, logistics := "Pending", "Pending"
	if in.Manufacturing != nil {
		manufacturing = indent(in.Manufacturing)
	}
	if in.Logistics != nil {
		logistics = indent(in.Logistics)
	}
	user := fmt.Sprintf("Project ID: %s\nProduct: %s\nManufacturing: %s\nLogistics: %s\nCosts: %s\n\nPlan retail delivery and the customer experience.",
		projectID, in.Product, manufacturing, logistics, indent(in.Costs))
	return build(RoleRetailer, projectID, system, user, in)
}

func build(role Role, projectID, system, user string, in any) (Request, error) {
	input, err := json.Marshal(in)
	if err != nil {
		return Request{}, fmt.Errorf("generator: encode %s input: %w", role, err)
	}
	return Request{
		Role:      role,
		ProjectID: projectID,
		System:    strings.TrimSpace(system),
		User:      user,
		Input:     input,
	}, nil
}

// indent renders v as indented JSON, or with %v if it cannot be encoded.
func indent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func percent(f float64) string {
	return fmt.Sprintf("%.0f%%", f*100)
}
