// Package partner holds the read-only partner registries: suppliers,
// manufacturers, and logistics providers. The datasets are embedded in the
// binary and decoded once into an immutable snapshot shared by every run.
package partner

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dusk-indust/procure/internal/geo"
)

//go:embed data/*.json
var dataFS embed.FS

// Kind names one of the three registries.
type Kind string

const (
	KindSuppliers     Kind = "suppliers"
	KindManufacturers Kind = "manufacturers"
	KindLogistics     Kind = "logistics"
)

// ParseKind accepts the plural kind names plus a few common aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "suppliers", "supplier":
		return KindSuppliers, nil
	case "manufacturers", "manufacturer":
		return KindManufacturers, nil
	case "logistics", "logistics_providers", "carriers":
		return KindLogistics, nil
	}
	return "", fmt.Errorf("partner: unknown kind %q (want suppliers, manufacturers, or logistics)", s)
}

// Identity is the part of a record shared by every partner type.
type Identity struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	City    string  `json:"city"`
	Country string  `json:"country"`
	X       float64 `json:"x"` // latitude
	Y       float64 `json:"y"` // longitude
}

// Location returns the partner's coordinates.
func (i Identity) Location() geo.Point { return geo.Point{Lat: i.X, Lon: i.Y} }

// Place formats "city, country".
func (i Identity) Place() string { return i.City + ", " + i.Country }

// Supplier provides components and raw materials.
type Supplier struct {
	Identity
	Specialization []string `json:"specialization"`
	LeadTimeDays   int      `json:"lead_time_days"`
	CostMultiplier float64  `json:"cost_multiplier"`
	Reliability    float64  `json:"reliability"`
	Certifications []string `json:"certifications"`
	MinOrderUSD    float64  `json:"min_order_usd"`
}

// Manufacturer assembles the final product.
type Manufacturer struct {
	Identity
	Specialization       string   `json:"specialization"`
	Capabilities         []string `json:"capabilities"`
	LeadTimeDays         int      `json:"lead_time_days"`
	CostPerUnitHour      float64  `json:"cost_per_unit_hour"`
	Reliability          float64  `json:"reliability"`
	CapacityUnitsMonthly int      `json:"capacity_units_monthly"`
	FacilitySizeSqm      int      `json:"facility_size_sqm"`
	Certifications       []string `json:"certifications"`
}

// LogisticsProvider moves goods between partners and to the customer.
type LogisticsProvider struct {
	Identity
	Modes           []string `json:"modes"`
	CoverageRegions []string `json:"coverage_regions"`
	CostPerKmUSD    float64  `json:"cost_per_km_usd"`
	BaseFeeUSD      float64  `json:"base_fee_usd"`
	AvgSpeedKmh     float64  `json:"avg_speed_kmh"`
	Reliability     float64  `json:"reliability"`
	MaxWeightTons   float64  `json:"max_weight_tons"`
	CustomsCapable  bool     `json:"customs_capable"`
	HazmatCertified bool     `json:"hazmat_certified"`
	Tracking        string   `json:"tracking"`
}

// Counts reports the size of each registry.
type Counts struct {
	Suppliers          int `json:"suppliers"`
	Manufacturers      int `json:"manufacturers"`
	LogisticsProviders int `json:"logistics_providers"`
}

// Registry is an immutable snapshot of all three partner datasets.
// Slices returned by its accessors are shared; callers must not modify them.
type Registry struct {
	suppliers     []Supplier
	manufacturers []Manufacturer
	logistics     []LogisticsProvider
}

// New builds a Registry from explicit records. Used by tests and by callers
// that bring their own datasets.
func New(suppliers []Supplier, manufacturers []Manufacturer, logistics []LogisticsProvider) *Registry {
	return &Registry{
		suppliers:     suppliers,
		manufacturers: manufacturers,
		logistics:     logistics,
	}
}

// Load decodes the embedded datasets.
func Load() (*Registry, error) {
	var r Registry
	if err := decode("data/suppliers.json", &r.suppliers); err != nil {
		return nil, err
	}
	if err := decode("data/manufacturers.json", &r.manufacturers); err != nil {
		return nil, err
	}
	if err := decode("data/logistics.json", &r.logistics); err != nil {
		return nil, err
	}
	return &r, nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, loading it on first use.
// The embedded data is validated by tests, so a decode failure here is a
// build defect and panics.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Load()
		if err != nil {
			panic(err)
		}
		defaultReg = reg
	})
	return defaultReg
}

// Suppliers returns every supplier in registry order.
func (r *Registry) Suppliers() []Supplier { return r.suppliers }

// Manufacturers returns every manufacturer in registry order.
func (r *Registry) Manufacturers() []Manufacturer { return r.manufacturers }

// Logistics returns every logistics provider in registry order.
func (r *Registry) Logistics() []LogisticsProvider { return r.logistics }

// Counts returns the number of records per registry.
func (r *Registry) Counts() Counts {
	return Counts{
		Suppliers:          len(r.suppliers),
		Manufacturers:      len(r.manufacturers),
		LogisticsProviders: len(r.logistics),
	}
}

// Total is the number of partners across all registries.
func (c Counts) Total() int {
	return c.Suppliers + c.Manufacturers + c.LogisticsProviders
}

func decode(name string, dst any) error {
	data, err := dataFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("partner: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("partner: decode %s: %w", name, err)
	}
	return nil
}
