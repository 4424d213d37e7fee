package payload

import (
	"errors"

	"github.com/dusk-indust/procure/internal/num"
)

// Priority marks how critical a component is to the build.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityStandard Priority = "standard"
)

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

// Component is one required part identified by intent analysis.
type Component struct {
	Name                 string    `json:"name"`
	Category             string    `json:"category"`
	Specifications       Text      `json:"specifications"`
	EstimatedQuantity    num.Float `json:"estimated_quantity"`
	Priority             Priority  `json:"priority"`
	EstimatedUnitCostUSD num.Float `json:"estimated_unit_cost_usd"`
}

// Quantity returns the estimated quantity, at least 1.
func (c Component) Quantity() int {
	q := c.EstimatedQuantity.Int()
	if q < 1 {
		return 1
	}
	return q
}

// Analysis is the intent-analysis stage output.
type Analysis struct {
	Product                  Text        `json:"product"`
	ProductCategory          Text        `json:"product_category"`
	Components               []Component `json:"components"`
	TotalEstimatedComponents num.Float   `json:"total_estimated_components"`
	AssemblyComplexity       Text        `json:"assembly_complexity"`
	Notes                    Text        `json:"notes,omitempty"`
}

func (Analysis) RequiredKeys() []string { return []string{"product", "components"} }

func (a Analysis) Validate() error {
	if len(a.Components) == 0 {
		return errors.New("payload: analysis has no components")
	}
	for _, c := range a.Components {
		if c.Name == "" {
			return errors.New("payload: analysis component without a name")
		}
	}
	return nil
}

// FallbackAnalysis is used when intent analysis fails: the whole request
// becomes a single critical component.
func FallbackAnalysis(intent string) Analysis {
	return Analysis{
		Product:         Text(intent),
		ProductCategory: "general",
		Components: []Component{{
			Name:              "Primary component",
			Category:          "general",
			Specifications:    "As requested",
			EstimatedQuantity: 1,
			Priority:          PriorityCritical,
		}},
		TotalEstimatedComponents: 1,
		AssemblyComplexity:       "medium",
	}
}

// ---------------------------------------------------------------------------
// Supplier
// ---------------------------------------------------------------------------

// Quote is one supplier quote for one component.
type Quote struct {
	ComponentName     Text         `json:"component_name"`
	AssignedSupplier  Text         `json:"assigned_supplier"`
	SupplierLocation  Text         `json:"supplier_location"`
	Available         Flag         `json:"available"`
	Description       Text         `json:"description"`
	Specifications    Text         `json:"specifications"`
	UnitCostUSD       num.Float    `json:"unit_cost_usd"`
	Quantity          num.Optional `json:"quantity,omitzero"`
	QuantityAvailable num.Float    `json:"quantity_available,omitempty"`
	TotalLineCost     num.Float    `json:"total_line_cost,omitempty"`
	LeadTimeDays      num.Float    `json:"lead_time_days"`
	Constraints       TextList     `json:"constraints"`
	SupplierNotes     Text         `json:"supplier_notes"`
}

// SupplierQuotes is the supplier stage output. One call may cover a batch of
// components; the orchestrator merges batches into a single value.
type SupplierQuotes struct {
	Status             string    `json:"status,omitempty"`
	Quotes             []Quote   `json:"quotes"`
	SuppliersUsed      TextList  `json:"suppliers_used"`
	TotalEstimatedCost num.Float `json:"total_estimated_cost"`
	Reasoning          Text      `json:"reasoning,omitempty"`
}

func (SupplierQuotes) RequiredKeys() []string { return []string{"quotes"} }

func (SupplierQuotes) Validate() error { return nil }

// ---------------------------------------------------------------------------
// Manufacturer
// ---------------------------------------------------------------------------

// AssemblyStep is one step of an assembly plan.
type AssemblyStep struct {
	Step          num.Float `json:"step"`
	Description   Text      `json:"description"`
	DurationHours num.Float `json:"duration_hours"`
	Dependencies  TextList  `json:"dependencies"`
}

// AssemblyPlan describes how the manufacturer builds the product.
type AssemblyPlan struct {
	Steps                 []AssemblyStep `json:"steps"`
	TotalAssemblyTimeDays num.Float      `json:"total_assembly_time_days"`
	Facility              Text           `json:"facility"`
	QualityChecks         TextList       `json:"quality_checks"`
}

// ManufacturerPlan is the manufacturer stage output.
type ManufacturerPlan struct {
	SelectedManufacturer              Text         `json:"selected_manufacturer"`
	ManufacturerLocation              Text         `json:"manufacturer_location"`
	CanAssemble                       Flag         `json:"can_assemble"`
	AssemblyPlan                      AssemblyPlan `json:"assembly_plan"`
	CapacityStatus                    Text         `json:"capacity_status"`
	EstimatedCompletionDateOffsetDays num.Float    `json:"estimated_completion_date_offset_days"`
	SelectionRationale                Text         `json:"selection_rationale"`
	Constraints                       TextList     `json:"constraints"`
	Reasoning                         Text         `json:"reasoning,omitempty"`
}

func (ManufacturerPlan) RequiredKeys() []string {
	return []string{"selected_manufacturer", "assembly_plan"}
}

func (m ManufacturerPlan) Validate() error {
	if m.SelectedManufacturer == "" {
		return errors.New("payload: manufacturer plan names no manufacturer")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Logistics
// ---------------------------------------------------------------------------

// Segment is one leg of a route.
type Segment struct {
	From         Text      `json:"from"`
	To           Text      `json:"to"`
	Carrier      Text      `json:"carrier"`
	DurationDays num.Float `json:"duration_days"`
}

// Route is one candidate shipping route.
type Route struct {
	RouteID           Text      `json:"route_id"`
	Provider          Text      `json:"provider"`
	Mode              Text      `json:"mode"`
	Segments          []Segment `json:"segments"`
	TotalDurationDays num.Float `json:"total_duration_days"`
	CostUSD           num.Float `json:"cost_usd"`
	RiskLevel         Text      `json:"risk_level"`
	RiskFlags         TextList  `json:"risk_flags"`
	InsuranceCostUSD  num.Float `json:"insurance_cost_usd"`
	TrackingType      Text      `json:"tracking_type"`
}

// LogisticsPlan is the logistics stage output.
type LogisticsPlan struct {
	SelectedProvider    Text     `json:"selected_provider"`
	ProviderHub         Text     `json:"provider_hub"`
	Routes              []Route  `json:"routes"`
	RecommendedRoute    Text     `json:"recommended_route"`
	SelectionRationale  Text     `json:"selection_rationale"`
	CustomsRequirements TextList `json:"customs_requirements"`
	Reasoning           Text     `json:"reasoning,omitempty"`
}

func (LogisticsPlan) RequiredKeys() []string { return []string{"selected_provider", "routes"} }

func (l LogisticsPlan) Validate() error {
	if l.SelectedProvider == "" {
		return errors.New("payload: logistics plan names no provider")
	}
	return nil
}

// FirstRoute returns the first planned route, or the zero Route.
func (l LogisticsPlan) FirstRoute() Route {
	if len(l.Routes) == 0 {
		return Route{}
	}
	return l.Routes[0]
}

// ---------------------------------------------------------------------------
// Retailer
// ---------------------------------------------------------------------------

// DeliveryPlan covers last-mile delivery to the customer.
type DeliveryPlan struct {
	Packaging                       Text      `json:"packaging"`
	DeliveryMethod                  Text      `json:"delivery_method"`
	EstimatedDeliveryDateOffsetDays num.Float `json:"estimated_delivery_date_offset_days"`
	TrackingNumber                  Text      `json:"tracking_number"`
	Notifications                   TextList  `json:"notifications"`
}

// CustomerExperience covers post-sale terms.
type CustomerExperience struct {
	Warranty              Text     `json:"warranty"`
	ReturnPolicy          Text     `json:"return_policy"`
	SupportChannel        Text     `json:"support_channel"`
	DocumentationIncluded TextList `json:"documentation_included"`
}

// RetailerPlan is the retailer stage output.
type RetailerPlan struct {
	DeliveryPlan        DeliveryPlan       `json:"delivery_plan"`
	CustomerExperience  CustomerExperience `json:"customer_experience"`
	FinalRetailPriceUSD num.Float          `json:"final_retail_price_usd"`
	MarginPercentage    num.Float          `json:"margin_percentage"`
	Reasoning           Text               `json:"reasoning,omitempty"`
}

func (RetailerPlan) RequiredKeys() []string { return []string{"delivery_plan"} }

func (RetailerPlan) Validate() error { return nil }
