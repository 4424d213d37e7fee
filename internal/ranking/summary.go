package ranking

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dusk-indust/procure/internal/geo"
	"github.com/dusk-indust/procure/internal/partner"
)

// ---------------------------------------------------------------------------
// Caller-facing partner views
// ---------------------------------------------------------------------------

// SupplierSummary is the presentation form of a shortlisted supplier.
type SupplierSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Location       string    `json:"location"`
	Coordinates    geo.Point `json:"coordinates"`
	Specialization []string  `json:"specialization"`
	LeadTimeDays   int       `json:"lead_time_days"`
	CostMultiplier float64   `json:"cost_multiplier"`
	Reliability    string    `json:"reliability"`
	Certifications []string  `json:"certifications"`
	SelectionScore float64   `json:"selection_score"`
	DistanceKm     *float64  `json:"distance_km"`
}

// ManufacturerSummary is the presentation form of a shortlisted manufacturer.
type ManufacturerSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Location       string    `json:"location"`
	Coordinates    geo.Point `json:"coordinates"`
	Specialization string    `json:"specialization"`
	Capabilities   []string  `json:"capabilities"`
	LeadTimeDays   int       `json:"lead_time_days"`
	CostPerHour    string    `json:"cost_per_hour"`
	Reliability    string    `json:"reliability"`
	FacilitySize   string    `json:"facility_size"`
	Certifications []string  `json:"certifications"`
	SelectionScore float64   `json:"selection_score"`
	DistanceKm     *float64  `json:"distance_km"`
}

// LogisticsSummary is the presentation form of a shortlisted provider.
type LogisticsSummary struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Hub                string    `json:"hub"`
	Coordinates        geo.Point `json:"coordinates"`
	Modes              []string  `json:"modes"`
	Coverage           []string  `json:"coverage"`
	CostPerKm          string    `json:"cost_per_km"`
	BaseFee            string    `json:"base_fee"`
	AvgSpeed           string    `json:"avg_speed"`
	Reliability        string    `json:"reliability"`
	Customs            bool      `json:"customs"`
	Hazmat             bool      `json:"hazmat"`
	Tracking           string    `json:"tracking"`
	SelectionScore     float64   `json:"selection_score"`
	DistanceToPickupKm *float64  `json:"distance_to_pickup_km"`
}

// Named is implemented by every summary type.
type Named interface {
	DisplayName() string
}

func (s SupplierSummary) DisplayName() string     { return s.Name }
func (s ManufacturerSummary) DisplayName() string { return s.Name }
func (s LogisticsSummary) DisplayName() string    { return s.Name }

// SummarizeSupplier builds the view of a scored supplier.
func SummarizeSupplier(c Scored[partner.Supplier]) SupplierSummary {
	s := c.Record
	return SupplierSummary{
		ID:             s.ID,
		Name:           s.Name,
		Location:       s.Place(),
		Coordinates:    s.Location(),
		Specialization: s.Specialization,
		LeadTimeDays:   s.LeadTimeDays,
		CostMultiplier: s.CostMultiplier,
		Reliability:    percent(s.Reliability),
		Certifications: s.Certifications,
		SelectionScore: c.Score,
		DistanceKm:     c.DistanceKm,
	}
}

// SummarizeManufacturer builds the view of a scored manufacturer.
func SummarizeManufacturer(c Scored[partner.Manufacturer]) ManufacturerSummary {
	m := c.Record
	return ManufacturerSummary{
		ID:             m.ID,
		Name:           m.Name,
		Location:       m.Place(),
		Coordinates:    m.Location(),
		Specialization: m.Specialization,
		Capabilities:   m.Capabilities,
		LeadTimeDays:   m.LeadTimeDays,
		CostPerHour:    "$" + trimFloat(m.CostPerUnitHour),
		Reliability:    percent(m.Reliability),
		FacilitySize:   thousands(m.FacilitySizeSqm) + " sqm",
		Certifications: m.Certifications,
		SelectionScore: c.Score,
		DistanceKm:     c.DistanceKm,
	}
}

// SummarizeLogistics builds the view of a scored logistics provider.
func SummarizeLogistics(c Scored[partner.LogisticsProvider]) LogisticsSummary {
	l := c.Record
	return LogisticsSummary{
		ID:                 l.ID,
		Name:               l.Name,
		Hub:                l.Place(),
		Coordinates:        l.Location(),
		Modes:              l.Modes,
		Coverage:           l.CoverageRegions,
		CostPerKm:          "$" + trimFloat(l.CostPerKmUSD),
		BaseFee:            "$" + trimFloat(l.BaseFeeUSD),
		AvgSpeed:           trimFloat(l.AvgSpeedKmh) + " km/h",
		Reliability:        percent(l.Reliability),
		Customs:            l.CustomsCapable,
		Hazmat:             l.HazmatCertified,
		Tracking:           l.Tracking,
		SelectionScore:     c.Score,
		DistanceToPickupKm: c.DistanceKm,
	}
}

// Summarize maps fn over a shortlist.
func Summarize[T, S any](in []Scored[T], fn func(Scored[T]) S) []S {
	out := make([]S, len(in))
	for i, c := range in {
		out[i] = fn(c)
	}
	return out
}

// MatchSummary finds the summary whose name matches name case-insensitively
// in either direction. It falls back to the first entry, and reports false
// only when summaries is empty.
func MatchSummary[S Named](summaries []S, name string) (S, bool) {
	var zero S
	if len(summaries) == 0 {
		return zero, false
	}
	want := strings.ToLower(strings.TrimSpace(name))
	if want != "" {
		for _, s := range summaries {
			got := strings.ToLower(s.DisplayName())
			if strings.Contains(got, want) || strings.Contains(want, got) {
				return s, true
			}
		}
	}
	return summaries[0], true
}

func percent(f float64) string {
	return fmt.Sprintf("%.0f%%", f*100)
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func thousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
