package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/dusk-indust/procure/internal/num"
	"github.com/dusk-indust/procure/internal/payload"
)

var _ Generator = (*Mock)(nil)

// Mock is an offline Generator. It answers every role with a deterministic
// payload derived from the request's structured Input, so whole pipeline
// runs work without network access.
type Mock struct {
	// Latency is slept before each answer to mimic a remote call.
	Latency time.Duration
}

// NewMock creates a Mock with no latency.
func NewMock() *Mock { return &Mock{} }

// Generate implements Generator.
func (m *Mock) Generate(ctx context.Context, req Request) ([]byte, error) {
	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}

	var (
		out any
		err error
	)
	switch req.Role {
	case RoleAnalysis:
		var in AnalysisInput
		if err = decodeInput(req, &in); err == nil {
			out = mockAnalysis(in)
		}
	case RoleSupplier:
		var in SupplierInput
		if err = decodeInput(req, &in); err == nil {
			out = mockQuotes(in)
		}
	case RoleManufacturer:
		var in ManufacturerInput
		if err = decodeInput(req, &in); err == nil {
			out = mockAssembly(in)
		}
	case RoleLogistics:
		var in LogisticsInput
		if err = decodeInput(req, &in); err == nil {
			out = mockRoute(in)
		}
	case RoleRetailer:
		var in RetailerInput
		if err = decodeInput(req, &in); err == nil {
			out = mockDelivery(in)
		}
	default:
		return nil, NewFatalError(fmt.Errorf("generator: mock: unknown role %q", req.Role))
	}
	if err != nil {
		return nil, NewFatalError(err)
	}
	return json.Marshal(out)
}

func decodeInput(req Request, dst any) error {
	if len(req.Input) == 0 {
		return fmt.Errorf("generator: mock: %s request has no input", req.Role)
	}
	if err := json.Unmarshal(req.Input, dst); err != nil {
		return fmt.Errorf("generator: mock: decode %s input: %w", req.Role, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

type catalogEntry struct {
	triggers   []string
	product    string
	category   string
	complexity string
	components []payload.Component
}

func part(name, category, spec string, qty, cost float64, p payload.Priority) payload.Component {
	return payload.Component{
		Name:                 name,
		Category:             category,
		Specifications:       payload.Text(spec),
		EstimatedQuantity:    num.Float(qty),
		Priority:             p,
		EstimatedUnitCostUSD: num.Float(cost),
	}
}

var catalog = []catalogEntry{
	{
		triggers:   []string{"bike", "bikes", "bicycle", "bicycles", "ebike", "ebikes", "scooter", "scooters"},
		product:    "Electric bicycle",
		category:   "mobility",
		complexity: "medium",
		components: []payload.Component{
			part("Lithium battery pack", "battery", "36V 14Ah, BMS integrated", 1, 420, payload.PriorityCritical),
			part("Hub motor", "motors", "250W rear hub, 45Nm", 1, 260, payload.PriorityCritical),
			part("Aluminum frame", "frame", "6061-T6, size M", 1, 180, payload.PriorityCritical),
			part("Motor controller", "electronics", "36V sine-wave controller", 1, 95, payload.PriorityStandard),
			part("Hydraulic disc brakes", "brakes", "2-piston, 180mm rotors", 2, 60, payload.PriorityStandard),
		},
	},
	{
		triggers:   []string{"car", "cars", "vehicle", "vehicles", "ev", "evs", "truck", "trucks", "sedan", "suv"},
		product:    "Electric vehicle",
		category:   "automotive",
		complexity: "very_high",
		components: []payload.Component{
			part("Battery module", "battery", "NMC, 75kWh pack of 4 modules", 4, 5200, payload.PriorityCritical),
			part("Electric drivetrain", "drivetrain", "150kW permanent magnet motor with reduction gear", 1, 3800, payload.PriorityCritical),
			part("Steel chassis", "chassis", "high strength steel, welded", 1, 2400, payload.PriorityCritical),
			part("Body panels", "body", "aluminum outer panels, e-coated", 1, 1800, payload.PriorityCritical),
			part("Tires", "tires", "235/45 R18, low rolling resistance", 4, 120, payload.PriorityStandard),
			part("Brake system", "brakes", "regenerative plus 4-piston calipers", 1, 450, payload.PriorityCritical),
			part("Front seats", "seats", "power adjustable, heated", 2, 300, payload.PriorityStandard),
			part("Wiring harness", "wiring", "high and low voltage harness set", 1, 380, payload.PriorityCritical),
			part("Vehicle control unit", "electronics", "ASIL-D rated domain controller", 1, 520, payload.PriorityCritical),
			part("LED headlamps", "lighting", "matrix LED, pair", 2, 210, payload.PriorityStandard),
		},
	},
	{
		triggers:   []string{"laptop", "laptops", "phone", "phones", "smartphone", "tablet", "tablets", "computer", "drone", "drones", "device", "devices"},
		product:    "Consumer electronics device",
		category:   "electronics",
		complexity: "high",
		components: []payload.Component{
			part("Display panel", "display", "OLED touch panel", 1, 180, payload.PriorityCritical),
			part("Main PCB", "pcb", "8-layer HDI board", 1, 140, payload.PriorityCritical),
			part("Microcontroller", "semiconductors", "ARM Cortex-M7", 2, 25, payload.PriorityCritical),
			part("Battery cell pack", "battery", "Li-ion 5000mAh", 1, 60, payload.PriorityCritical),
			part("Enclosure", "plastics", "PC/ABS injection molded", 1, 35, payload.PriorityStandard),
			part("Sensor array", "sensors", "IMU, ambient light, proximity", 4, 12, payload.PriorityStandard),
		},
	},
}

var genericComponents = []payload.Component{
	part("Structural frame", "metal", "welded steel frame", 1, 250, payload.PriorityCritical),
	part("Control electronics", "electronics", "embedded controller board", 1, 120, payload.PriorityCritical),
	part("Fastener kit", "fasteners", "stainless M4-M10 assortment", 1, 30, payload.PriorityStandard),
	part("Protective coating", "coatings", "powder coat finish", 1, 45, payload.PriorityStandard),
}

func mockAnalysis(in AnalysisInput) payload.Analysis {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(in.Intent), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}

	for _, entry := range catalog {
		for _, t := range entry.triggers {
			if words[t] {
				return payload.Analysis{
					Product:                  payload.Text(entry.product),
					ProductCategory:          payload.Text(entry.category),
					Components:               entry.components,
					TotalEstimatedComponents: num.Float(len(entry.components)),
					AssemblyComplexity:       payload.Text(entry.complexity),
					Notes:                    "Offline analysis from the built-in catalog",
				}
			}
		}
	}

	product := strings.TrimSpace(in.Intent)
	if product == "" {
		product = "Custom product"
	}
	return payload.Analysis{
		Product:                  payload.Text(product),
		ProductCategory:          "general",
		Components:               genericComponents,
		TotalEstimatedComponents: num.Float(len(genericComponents)),
		AssemblyComplexity:       "medium",
		Notes:                    "Offline analysis from the built-in catalog",
	}
}

// ---------------------------------------------------------------------------
// Supplier
// ---------------------------------------------------------------------------

func mockQuotes(in SupplierInput) payload.SupplierQuotes {
	out := payload.SupplierQuotes{Status: "quotes_generated", Quotes: []payload.Quote{}}
	if len(in.Suppliers) == 0 {
		return out
	}

	used := map[string]bool{}
	var total float64
	for i, c := range in.Components {
		s := in.Suppliers[i%len(in.Suppliers)]
		for _, cand := range in.Suppliers {
			if suppliesComponent(cand.Specialization, c) {
				s = cand
				break
			}
		}

		base := c.EstimatedUnitCostUSD.Value()
		if base <= 0 {
			base = 100
		}
		unit := num.Round(base*s.CostMultiplier, 2)
		qty := c.Quantity()
		line := num.Round(unit*float64(qty), 2)
		total += line

		out.Quotes = append(out.Quotes, payload.Quote{
			ComponentName:     payload.Text(c.Name),
			AssignedSupplier:  payload.Text(s.Name),
			SupplierLocation:  payload.Text(s.Place()),
			Available:         true,
			Description:       payload.Text(fmt.Sprintf("%s supplied by %s", c.Name, s.Name)),
			Specifications:    c.Specifications,
			UnitCostUSD:       num.Float(unit),
			Quantity:          num.Some(float64(qty)),
			QuantityAvailable: num.Float(qty * 10),
			TotalLineCost:     num.Float(line),
			LeadTimeDays:      num.Float(s.LeadTimeDays),
			Constraints:       payload.TextList{fmt.Sprintf("minimum order $%g", s.MinOrderUSD)},
			SupplierNotes:     payload.Text(fmt.Sprintf("Specializes in %s", strings.Join(s.Specialization, ", "))),
		})
		if !used[s.Name] {
			used[s.Name] = true
			out.SuppliersUsed = append(out.SuppliersUsed, s.Name)
		}
	}
	out.TotalEstimatedCost = num.Float(num.Round(total, 2))
	out.Reasoning = "Components matched to the supplier whose specialization covers them"
	return out
}

func suppliesComponent(tags []string, c payload.Component) bool {
	name := strings.ToLower(c.Name)
	cat := strings.ToLower(c.Category)
	for _, t := range tags {
		t = strings.ToLower(t)
		if (cat != "" && (strings.Contains(t, cat) || strings.Contains(cat, t))) || strings.Contains(name, t) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Manufacturer
// ---------------------------------------------------------------------------

func mockAssembly(in ManufacturerInput) payload.ManufacturerPlan {
	if len(in.Manufacturers) == 0 {
		return payload.ManufacturerPlan{SelectedManufacturer: "Unassigned", CanAssemble: false}
	}
	m := in.Manufacturers[0]

	var steps []payload.AssemblyStep
	seen := map[string]bool{}
	for _, c := range in.Components {
		cat := c.Category
		if cat == "" {
			cat = c.Name
		}
		if seen[cat] {
			continue
		}
		seen[cat] = true
		steps = append(steps, payload.AssemblyStep{
			Step:          num.Float(len(steps) + 1),
			Description:   payload.Text("Integrate " + cat + " components"),
			DurationHours: 8,
		})
	}
	steps = append(steps, payload.AssemblyStep{
		Step:          num.Float(len(steps) + 1),
		Description:   "Final inspection and functional testing",
		DurationHours: 4,
		Dependencies:  payload.TextList{"all prior steps"},
	})

	days := max(3, len(steps)*2)
	return payload.ManufacturerPlan{
		SelectedManufacturer: payload.Text(m.Name),
		ManufacturerLocation: payload.Text(m.Place()),
		CanAssemble:          true,
		AssemblyPlan: payload.AssemblyPlan{
			Steps:                 steps,
			TotalAssemblyTimeDays: num.Float(days),
			Facility:              payload.Text(m.Name + ", " + m.Place()),
			QualityChecks:         payload.TextList{"incoming inspection", "in-line testing", "end-of-line audit"},
		},
		CapacityStatus:                    "available",
		EstimatedCompletionDateOffsetDays: num.Float(m.LeadTimeDays + days),
		SelectionRationale:                payload.Text(fmt.Sprintf("Highest ranked facility; capabilities: %s", strings.Join(m.Capabilities, ", "))),
	}
}

// ---------------------------------------------------------------------------
// Logistics
// ---------------------------------------------------------------------------

// mockRouteKm is the nominal pickup-to-customer distance.
const mockRouteKm = 1200.0

func mockRoute(in LogisticsInput) payload.LogisticsPlan {
	if len(in.Providers) == 0 {
		return payload.LogisticsPlan{SelectedProvider: "Unassigned", Routes: []payload.Route{}}
	}
	p := in.Providers[0]
	mode := "ground"
	if len(p.Modes) > 0 {
		mode = p.Modes[0]
	}
	speed := p.AvgSpeedKmh
	if speed <= 0 {
		speed = 60
	}
	transit := math.Ceil(mockRouteKm / (speed * 10))
	cost := num.Round(p.BaseFeeUSD+p.CostPerKmUSD*mockRouteKm, 2)

	from := in.Pickup.ManufacturerLocation
	if from == "" {
		from = p.Place()
	}
	route := payload.Route{
		RouteID:  "R1",
		Provider: payload.Text(p.Name),
		Mode:     payload.Text(mode),
		Segments: []payload.Segment{
			{From: payload.Text(from), To: payload.Text(p.Place()), Carrier: payload.Text(p.Name), DurationDays: 1},
			{From: payload.Text(p.Place()), To: payload.Text(in.Delivery.Destination), Carrier: payload.Text(p.Name), DurationDays: num.Float(transit)},
		},
		TotalDurationDays: num.Float(transit + 1),
		CostUSD:           num.Float(cost),
		RiskLevel:         "low",
		InsuranceCostUSD:  num.Float(num.Round(cost*0.02, 2)),
		TrackingType:      payload.Text(p.Tracking),
	}
	plan := payload.LogisticsPlan{
		SelectedProvider:   payload.Text(p.Name),
		ProviderHub:        payload.Text(p.Place()),
		Routes:             []payload.Route{route},
		RecommendedRoute:   "R1",
		SelectionRationale: payload.Text(fmt.Sprintf("Best ranked provider near pickup, %s transport", mode)),
	}
	if p.CustomsCapable {
		plan.CustomsRequirements = payload.TextList{"commercial invoice", "EORI number"}
	}
	return plan
}

// ---------------------------------------------------------------------------
// Retailer
// ---------------------------------------------------------------------------

// mockMargin is the retail margin the mock applies, in percent.
const mockMargin = 30.0

func mockDelivery(in RetailerInput) payload.RetailerPlan {
	days := 3.0
	return payload.RetailerPlan{
		DeliveryPlan: payload.DeliveryPlan{
			Packaging:                       "Recyclable protective packaging",
			DeliveryMethod:                  "White-glove home delivery",
			EstimatedDeliveryDateOffsetDays: num.Float(days),
			TrackingNumber:                  "TRK-MOCK-0001",
			Notifications:                   payload.TextList{"order confirmed", "shipped", "out for delivery", "delivered"},
		},
		CustomerExperience: payload.CustomerExperience{
			Warranty:              "2-year limited warranty",
			ReturnPolicy:          "30-day returns",
			SupportChannel:        "email and phone",
			DocumentationIncluded: payload.TextList{"user manual", "warranty card"},
		},
		FinalRetailPriceUSD: num.Float(num.Round(in.Costs.TotalProcurementCostUSD*(1+mockMargin/100), 2)),
		MarginPercentage:    mockMargin,
		Reasoning:           "Standard retail margin over reconciled procurement cost",
	}
}
