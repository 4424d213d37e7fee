package orchestrator

import (
	"fmt"
	"math"

	"github.com/dusk-indust/procure/internal/num"
	"github.com/dusk-indust/procure/internal/payload"
)

// Reconciliation constants.
const (
	CostFloorUSD     = 50.0 // reported totals below this are treated as placeholders
	CostMarginFactor = 1.5  // computed totals this much larger supersede the report
	MinMarkup        = 1.05 // retail price must clear total cost by this factor
	MinMarginPct     = 10.0
	DefaultMarginPct = 25.0

	// centUSD is the smallest difference worth reporting as a correction.
	centUSD = 0.01
)

// Correction records a generator figure the reconciler replaced.
type Correction struct {
	Field     string  `json:"field"`
	Reported  float64 `json:"reported"`
	Corrected float64 `json:"corrected"`
	Reason    string  `json:"reason"`
}

// LineItemTotal sums quote line costs. A quote without a line cost counts
// as unit cost times Quantity. Lines whose cost is not a finite number, or
// would push the sum past one, are left out.
func LineItemTotal(quotes []payload.Quote) float64 {
	total, _ := lineItems(quotes)
	return total
}

// lineItems returns the line-item total and the indexes of the quotes it
// excluded.
func lineItems(quotes []payload.Quote) (total float64, skipped []int) {
	for i, q := range quotes {
		line := lineCost(q)
		if !num.Finite(line) || !num.Finite(total+line) {
			skipped = append(skipped, i)
			continue
		}
		total += line
	}
	return total, skipped
}

// LineCost is the quoted line cost of q, or unit cost times Quantity when
// the line cost is missing. A product too large to represent yields 0.
func LineCost(q payload.Quote) float64 {
	line := lineCost(q)
	if !num.Finite(line) {
		return 0
	}
	return line
}

func lineCost(q payload.Quote) float64 {
	if line := q.TotalLineCost.Value(); line > 0 {
		return line
	}
	return q.UnitCostUSD.Value() * Quantity(q)
}

// Quantity is the quoted quantity of q, at least 1. The available quantity
// stands in only when the quote has no quantity field at all.
func Quantity(q payload.Quote) float64 {
	qty := q.QuantityAvailable.Value()
	if q.Quantity.Set {
		qty = q.Quantity.Value()
	}
	return max(qty, 1)
}

// ReconcileCost returns the cost aggregate to trust given the generator's
// reported total and its own line items. The result is never below the
// line-item total.
func ReconcileCost(reported float64, quotes []payload.Quote) float64 {
	computed := LineItemTotal(quotes)
	switch {
	case reported < CostFloorUSD && computed > CostFloorUSD:
		return computed
	case computed > reported*CostMarginFactor:
		return computed
	default:
		return max(reported, computed)
	}
}

// ReconcilePrice checks a retail price against the total cost. A price
// below totalCost*MinMarkup is recomputed from the reported margin when it
// is at least MinMarginPct, else from DefaultMarginPct. When no markup can
// be represented the price is set to the total cost with a zero margin.
func ReconcilePrice(reported, margin, totalCost float64) (price, newMargin float64, corrected bool) {
	floor := totalCost * MinMarkup
	if !num.Finite(floor) {
		floor = totalCost
	}
	if reported >= floor {
		return reported, margin, false
	}
	if margin < MinMarginPct {
		margin = DefaultMarginPct
	}
	price = num.Round(totalCost*(1+margin/100), 2)
	if !num.Finite(price) && margin != DefaultMarginPct {
		margin = DefaultMarginPct
		price = num.Round(totalCost*(1+margin/100), 2)
	}
	if !num.Finite(price) {
		return totalCost, 0, true
	}
	return price, margin, true
}

// reconcileCosts settles the parts, shipping, and total cost of run and
// writes the trusted parts figure back into the quotes.
func reconcileCosts(run *ProjectRun) []Correction {
	var out []Correction

	quotes := run.Quotes.Quotes
	_, skipped := lineItems(quotes)
	for _, i := range skipped {
		line := lineCost(quotes[i])
		if !num.Finite(line) {
			line = math.MaxFloat64
		}
		out = append(out, Correction{
			Field:     "line_cost_usd",
			Reported:  line,
			Corrected: 0,
			Reason:    fmt.Sprintf("line %d (%s) cost is out of range; left out of the parts cost", i+1, quotes[i].ComponentName),
		})
		quotes[i].UnitCostUSD = 0
		quotes[i].TotalLineCost = 0
	}

	reported := run.Quotes.TotalEstimatedCost.Value()
	parts := ReconcileCost(reported, quotes)
	if parts != reported {
		// Sub-cent differences are applied without being reported.
		if parts-reported >= centUSD {
			out = append(out, Correction{
				Field:     "parts_cost_usd",
				Reported:  reported,
				Corrected: parts,
				Reason:    fmt.Sprintf("reported total disagrees with %d line items", len(quotes)),
			})
		}
		run.Quotes.TotalEstimatedCost = num.Float(parts)
	}

	shipping := run.Logistics.FirstRoute().CostUSD.Value()
	if !num.Finite(parts + shipping) {
		out = append(out, Correction{
			Field:     "shipping_cost_usd",
			Reported:  shipping,
			Corrected: 0,
			Reason:    "shipping cost cannot be added to the parts cost",
		})
		shipping = 0
		run.Logistics.Routes[0].CostUSD = 0
	}

	run.Costs.PartsUSD = parts
	run.Costs.ShippingUSD = shipping
	run.Costs.TotalUSD = parts + shipping
	return out
}

// reconcilePrice settles the retail price against the reconciled total
// cost and writes it back into the retail plan.
func reconcilePrice(run *ProjectRun) []Correction {
	var out []Correction

	reported := run.Retail.FinalRetailPriceUSD.Value()
	margin := run.Retail.MarginPercentage.Value()
	price, margin, corrected := ReconcilePrice(reported, margin, run.Costs.TotalUSD)
	if corrected {
		out = append(out, Correction{
			Field:     "retail_price_usd",
			Reported:  reported,
			Corrected: price,
			Reason: fmt.Sprintf("below %.0f%% over total cost %s; applied %.0f%% margin",
				(MinMarkup-1)*100, money(run.Costs.TotalUSD), margin),
		})
		run.Retail.FinalRetailPriceUSD = num.Float(price)
		run.Retail.MarginPercentage = num.Float(margin)
	}

	run.Costs.RetailPriceUSD = run.Retail.FinalRetailPriceUSD.Value()
	run.Costs.MarginPercentage = run.Retail.MarginPercentage.Value()
	return out
}

// Reconcile applies the cost and price rules to run and returns the
// corrections made. A second call on the same run corrects nothing.
func Reconcile(run *ProjectRun) []Correction {
	return append(reconcileCosts(run), reconcilePrice(run)...)
}
