package orchestrator

import (
	"github.com/dusk-indust/procure/internal/num"
	"github.com/dusk-indust/procure/internal/partner"
	"github.com/dusk-indust/procure/internal/payload"
	"github.com/dusk-indust/procure/internal/ranking"
)

// Fallback constants.
const (
	FallbackUnitCostUSD = 50.0
	FallbackLeadDays    = 14
	FallbackNote        = "Fallback quote: supplier agent did not return data for this component"
	FallbackStatus      = "fallback_quotes_generated"
)

// SynthesizeQuotes builds one quote per component from local data. The
// component at index i is assigned to shortlist[i % len(shortlist)]. An
// empty shortlist yields no quotes.
func SynthesizeQuotes(components []payload.Component, shortlist []partner.Supplier) payload.SupplierQuotes {
	out := payload.SupplierQuotes{Status: FallbackStatus, Quotes: []payload.Quote{}}
	if len(shortlist) == 0 {
		return out
	}

	for i, c := range components {
		s := shortlist[i%len(shortlist)]

		unit := c.EstimatedUnitCostUSD.Value()
		if unit <= 0 {
			unit = FallbackUnitCostUSD
		}
		qty := c.Quantity()
		lead := s.LeadTimeDays
		if lead <= 0 {
			lead = FallbackLeadDays
		}

		desc := c.Specifications
		if desc == "" {
			desc = payload.Text(c.Name + " (" + c.Category + ")")
		}

		q := payload.Quote{
			ComponentName:    payload.Text(c.Name),
			AssignedSupplier: payload.Text(s.Name),
			SupplierLocation: payload.Text(s.Place()),
			Available:        true,
			Description:      desc,
			Specifications:   payload.Text(c.Category),
			UnitCostUSD:      num.Float(unit),
			Quantity:         num.Some(float64(qty)),
			TotalLineCost:    num.Float(unit * float64(qty)),
			LeadTimeDays:     num.Float(lead),
			Constraints:      payload.TextList{},
			SupplierNotes:    FallbackNote,
		}
		out.Quotes = append(out.Quotes, q)
		out.TotalEstimatedCost += q.TotalLineCost
		if !containsFold(out.SuppliersUsed, s.Name) {
			out.SuppliersUsed = append(out.SuppliersUsed, s.Name)
		}
	}
	return out
}

// suppliersOf unwraps a scored shortlist.
func suppliersOf(in []ranking.Scored[partner.Supplier]) []partner.Supplier {
	out := make([]partner.Supplier, len(in))
	for i, c := range in {
		out[i] = c.Record
	}
	return out
}
