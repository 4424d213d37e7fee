// Package ranking scores partner records against requirement keywords and a
// reference location, and returns ordered shortlists.
//
// Scores are weighted sums on a 0-100 scale. A candidate with no capability
// match at all scores 0 and is never returned: capability is a filter, not a
// penalty.
package ranking

import (
	"cmp"
	"slices"
	"strings"

	"github.com/dusk-indust/procure/internal/geo"
	"github.com/dusk-indust/procure/internal/num"
	"github.com/dusk-indust/procure/internal/partner"
)

// Scoring constants.
const (
	// DecayKm is the distance at which the proximity sub-score reaches zero.
	DecayKm = 10000.0

	capabilityPoints = 40.0
	reliabilityPts   = 20.0
	costPoints       = 20.0
	proximityPoints  = 20.0

	supplierCostCeiling     = 2.0   // cost multiplier
	manufacturerCostCeiling = 150.0 // USD per unit hour

	logisticsModePoints    = 25.0
	logisticsAnyModePoints = 15.0
	logisticsProximityPts  = 25.0
	logisticsCostPoints    = 15.0
	logisticsCostCeiling   = 5.0 // USD per km
	logisticsBonus         = 5.0

	// TrackingRealTime earns the logistics tracking bonus.
	TrackingRealTime = "real_time_GPS"
)

// Scored is a partner record with its derived score. DistanceKm is nil when
// no reference point was supplied.
type Scored[T any] struct {
	Record     T        `json:"record"`
	Score      float64  `json:"score"`
	DistanceKm *float64 `json:"distance_km"`
}

// SelectSuppliers returns up to topN suppliers, best first.
func SelectSuppliers(reg *partner.Registry, keywords []string, ref *geo.Point, topN int) []Scored[partner.Supplier] {
	out := make([]Scored[partner.Supplier], 0)
	for _, s := range reg.Suppliers() {
		score := ScoreSupplier(s, keywords, ref)
		if score <= 0 {
			continue
		}
		out = append(out, Scored[partner.Supplier]{
			Record:     s,
			Score:      score,
			DistanceKm: distanceFrom(ref, s.Location()),
		})
	}
	return top(out, topN)
}

// SelectManufacturers returns up to topN manufacturers, best first.
func SelectManufacturers(reg *partner.Registry, keywords []string, ref *geo.Point, topN int) []Scored[partner.Manufacturer] {
	out := make([]Scored[partner.Manufacturer], 0)
	for _, m := range reg.Manufacturers() {
		score := ScoreManufacturer(m, keywords, ref)
		if score <= 0 {
			continue
		}
		out = append(out, Scored[partner.Manufacturer]{
			Record:     m,
			Score:      score,
			DistanceKm: distanceFrom(ref, m.Location()),
		})
	}
	return top(out, topN)
}

// SelectLogistics returns up to topN logistics providers for a pickup point,
// best first. An empty mode accepts any transport mode.
func SelectLogistics(reg *partner.Registry, pickup geo.Point, mode string, topN int) []Scored[partner.LogisticsProvider] {
	out := make([]Scored[partner.LogisticsProvider], 0)
	for _, l := range reg.Logistics() {
		score := ScoreLogistics(l, pickup, mode)
		if score <= 0 {
			continue
		}
		out = append(out, Scored[partner.LogisticsProvider]{
			Record:     l,
			Score:      score,
			DistanceKm: distanceFrom(&pickup, l.Location()),
		})
	}
	return top(out, topN)
}

// ScoreSupplier scores one supplier: capability 40, reliability 20, cost 20,
// proximity 20.
func ScoreSupplier(s partner.Supplier, keywords []string, ref *geo.Point) float64 {
	frac := matchFraction(keywords, s.Specialization)
	if frac == 0 {
		return 0
	}
	score := frac * capabilityPoints
	score += s.Reliability * reliabilityPts
	score += linearDecay(s.CostMultiplier, supplierCostCeiling) * costPoints
	score += proximity(ref, s.Location(), proximityPoints)
	return num.Round(score, 2)
}

// ScoreManufacturer scores one manufacturer. When no keyword matches its
// capability list, a keyword contained in its specialization text counts as
// a single match.
func ScoreManufacturer(m partner.Manufacturer, keywords []string, ref *geo.Point) float64 {
	frac := matchFraction(keywords, m.Capabilities)
	if frac == 0 && len(keywords) > 0 {
		spec := strings.ToLower(m.Specialization)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(spec, strings.ToLower(kw)) {
				frac = 1 / float64(len(keywords))
				break
			}
		}
	}
	if frac == 0 {
		return 0
	}
	score := frac * capabilityPoints
	score += m.Reliability * reliabilityPts
	score += linearDecay(m.CostPerUnitHour, manufacturerCostCeiling) * costPoints
	score += proximity(ref, m.Location(), proximityPoints)
	return num.Round(score, 2)
}

// ScoreLogistics scores one logistics provider: mode 25 (gated) or 15,
// proximity to pickup 25, reliability 20, cost 15, plus 5-point bonuses for
// customs, hazmat, and real-time tracking.
func ScoreLogistics(l partner.LogisticsProvider, pickup geo.Point, mode string) float64 {
	var score float64
	if mode != "" {
		if !hasFold(l.Modes, mode) {
			return 0
		}
		score += logisticsModePoints
	} else {
		score += logisticsAnyModePoints
	}

	score += proximity(&pickup, l.Location(), logisticsProximityPts)
	score += l.Reliability * reliabilityPts
	score += linearDecay(l.CostPerKmUSD, logisticsCostCeiling) * logisticsCostPoints

	if l.CustomsCapable {
		score += logisticsBonus
	}
	if l.HazmatCertified {
		score += logisticsBonus
	}
	if l.Tracking == TrackingRealTime {
		score += logisticsBonus
	}
	return num.Round(score, 2)
}

// matchFraction is the share of keywords that case-insensitively
// substring-match any tag, in either direction. No keywords means 1.
func matchFraction(keywords, tags []string) float64 {
	if len(keywords) == 0 {
		return 1
	}
	matched := 0
	for _, kw := range keywords {
		k := strings.ToLower(kw)
		for _, tag := range tags {
			t := strings.ToLower(tag)
			if strings.Contains(t, k) || strings.Contains(k, t) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(keywords))
}

// linearDecay maps 0 to 1 and values at or above ceiling to 0.
func linearDecay(v, ceiling float64) float64 {
	return max(0, (ceiling-v)/ceiling)
}

// proximity scores distance from ref; no reference yields half the budget.
func proximity(ref *geo.Point, p geo.Point, points float64) float64 {
	if ref == nil {
		return points / 2
	}
	return linearDecay(geo.Distance(*ref, p), DecayKm) * points
}

func distanceFrom(ref *geo.Point, p geo.Point) *float64 {
	if ref == nil {
		return nil
	}
	d := num.Round(geo.Distance(*ref, p), 1)
	return &d
}

func hasFold(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// top stable-sorts by score descending and truncates to n.
func top[T any](in []Scored[T], n int) []Scored[T] {
	slices.SortStableFunc(in, func(a, b Scored[T]) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if n >= 0 && len(in) > n {
		in = in[:n]
	}
	return in
}
