package orchestrator

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/procure/internal/num"
	"github.com/dusk-indust/procure/internal/payload"
)

func lineQuotes(costs ...float64) []payload.Quote {
	out := make([]payload.Quote, len(costs))
	for i, c := range costs {
		out[i] = payload.Quote{TotalLineCost: num.Float(c)}
	}
	return out
}

func TestLineItemTotal(t *testing.T) {
	quotes := []payload.Quote{
		{TotalLineCost: 100},
		{UnitCostUSD: 20, Quantity: num.Some(3)},
		{UnitCostUSD: 5, QuantityAvailable: 4},
		{UnitCostUSD: 7},
	}
	assert.InDelta(t, 100+60+20+7, LineItemTotal(quotes), 1e-9)
	assert.Zero(t, LineItemTotal(nil))
}

func TestQuantity(t *testing.T) {
	tests := []struct {
		name string
		q    payload.Quote
		want float64
	}{
		{"quoted quantity", payload.Quote{Quantity: num.Some(3), QuantityAvailable: 40}, 3},
		{"explicit zero is one", payload.Quote{Quantity: num.Some(0), QuantityAvailable: 5}, 1},
		{"absent falls back to available", payload.Quote{QuantityAvailable: 5}, 5},
		{"nothing quoted is one", payload.Quote{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quantity(tt.q), 1e-9)
		})
	}
}

func TestQuantity_DecodedQuotes(t *testing.T) {
	var quotes []payload.Quote
	require.NoError(t, json.Unmarshal([]byte(`[
		{"unit_cost_usd":10,"quantity":0,"quantity_available":5},
		{"unit_cost_usd":10,"quantity_available":5}]`), &quotes))

	assert.InDelta(t, 10, LineCost(quotes[0]), 1e-9)
	assert.InDelta(t, 50, LineCost(quotes[1]), 1e-9)
}

func TestLineItemTotal_NonFiniteLinesLeftOut(t *testing.T) {
	huge := payload.Quote{UnitCostUSD: 1e300, Quantity: num.Some(1e300)}
	assert.Zero(t, LineCost(huge))
	assert.InDelta(t, 100, LineItemTotal(append(lineQuotes(100), huge)), 1e-9)

	total := LineItemTotal(lineQuotes(math.MaxFloat64, math.MaxFloat64))
	assert.Equal(t, math.MaxFloat64, total, "the line that would overflow the sum is dropped")
}

func TestReconcileCost(t *testing.T) {
	tests := []struct {
		name     string
		reported float64
		lines    []float64
		want     float64
	}{
		{"placeholder total replaced", 5, []float64{2500, 2500}, 5000},
		{"total far below line items", 1000, []float64{1000, 1000}, 2000},
		{"total within margin keeps report", 1900, []float64{1000, 1000}, 2000},
		{"total above line items kept", 2500, []float64{1000, 1000}, 2500},
		{"no line items keeps report", 300, nil, 300},
		{"small order under floor", 20, []float64{10, 10}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReconcileCost(tt.reported, lineQuotes(tt.lines...))
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, LineItemTotal(lineQuotes(tt.lines...)), "never below the line items")
		})
	}
}

func TestReconcilePrice(t *testing.T) {
	price, margin, corrected := ReconcilePrice(100, 30, 10000)
	assert.True(t, corrected)
	assert.InDelta(t, 13000, price, 1e-9)
	assert.InDelta(t, 30, margin, 1e-9)

	price, margin, corrected = ReconcilePrice(100, 2, 10000)
	assert.True(t, corrected)
	assert.InDelta(t, 12500, price, 1e-9, "thin margins fall back to the default")
	assert.InDelta(t, DefaultMarginPct, margin, 1e-9)

	price, _, corrected = ReconcilePrice(10500, 5, 10000)
	assert.False(t, corrected, "exactly the minimum markup is accepted")
	assert.InDelta(t, 10500, price, 1e-9)
}

func TestReconcile_PlaceholderCost(t *testing.T) {
	run := NewProjectRun("build a drone")
	run.Quotes = payload.SupplierQuotes{Quotes: lineQuotes(2000, 3000), TotalEstimatedCost: 5}
	run.Logistics = payload.LogisticsPlan{Routes: []payload.Route{{CostUSD: 400}}}
	run.Retail = payload.RetailerPlan{FinalRetailPriceUSD: 7000, MarginPercentage: 25}

	cs := Reconcile(run)

	require.Len(t, cs, 1)
	assert.Equal(t, "parts_cost_usd", cs[0].Field)
	assert.InDelta(t, 5, cs[0].Reported, 1e-9)
	assert.InDelta(t, 5000, cs[0].Corrected, 1e-9)
	assert.InDelta(t, 5000, run.Quotes.TotalEstimatedCost.Value(), 1e-9)
	assert.InDelta(t, 5000, run.Costs.PartsUSD, 1e-9)
	assert.InDelta(t, 400, run.Costs.ShippingUSD, 1e-9)
	assert.InDelta(t, 5400, run.Costs.TotalUSD, 1e-9)
	assert.InDelta(t, 7000, run.Costs.RetailPriceUSD, 1e-9)
}

func TestReconcile_RetailBelowCost(t *testing.T) {
	run := NewProjectRun("build a drone")
	run.Quotes = payload.SupplierQuotes{Quotes: lineQuotes(10000), TotalEstimatedCost: 10000}
	run.Retail = payload.RetailerPlan{FinalRetailPriceUSD: 100, MarginPercentage: 0}

	cs := Reconcile(run)

	require.Len(t, cs, 1)
	assert.Equal(t, "retail_price_usd", cs[0].Field)
	assert.GreaterOrEqual(t, run.Costs.RetailPriceUSD, 10500.0)
	assert.InDelta(t, 12500, run.Costs.RetailPriceUSD, 1e-9)
	assert.InDelta(t, 12500, run.Retail.FinalRetailPriceUSD.Value(), 1e-9)
	assert.InDelta(t, DefaultMarginPct, run.Costs.MarginPercentage, 1e-9)
}

func TestReconcile_Idempotent(t *testing.T) {
	run := NewProjectRun("build a drone")
	run.Quotes = payload.SupplierQuotes{Quotes: lineQuotes(2000, 3000), TotalEstimatedCost: 5}
	run.Logistics = payload.LogisticsPlan{Routes: []payload.Route{{CostUSD: 400}}}
	run.Retail = payload.RetailerPlan{FinalRetailPriceUSD: 10}

	first := Reconcile(run)
	costs := run.Costs

	assert.Len(t, first, 2)
	assert.Empty(t, Reconcile(run))
	assert.Equal(t, costs, run.Costs)
}

func TestReconcile_SubCentDifferenceNeverBelowLineItems(t *testing.T) {
	run := NewProjectRun("build a drone")
	run.Quotes = payload.SupplierQuotes{Quotes: lineQuotes(1000, 1000), TotalEstimatedCost: 1999.995}
	run.Retail = payload.RetailerPlan{FinalRetailPriceUSD: 5000, MarginPercentage: 25}

	cs := Reconcile(run)

	assert.Empty(t, cs)
	assert.InDelta(t, 2000, run.Costs.PartsUSD, 1e-9)
	assert.GreaterOrEqual(t, run.Costs.PartsUSD, LineItemTotal(run.Quotes.Quotes))
	assert.InDelta(t, 2000, run.Quotes.TotalEstimatedCost.Value(), 1e-9)
}

func TestReconcile_OverflowStaysFinite(t *testing.T) {
	run := NewProjectRun("build a drone")
	run.Quotes = payload.SupplierQuotes{
		Quotes: append(lineQuotes(250),
			payload.Quote{ComponentName: "Battery pack", UnitCostUSD: 1e300, Quantity: num.Some(1e300)}),
		TotalEstimatedCost: 5,
	}
	run.Logistics = payload.LogisticsPlan{Routes: []payload.Route{{CostUSD: 400}}}
	run.Retail = payload.RetailerPlan{FinalRetailPriceUSD: 1000, MarginPercentage: 25}

	cs := Reconcile(run)

	require.NotEmpty(t, cs)
	assert.Equal(t, "line_cost_usd", cs[0].Field)
	assert.Equal(t, math.MaxFloat64, cs[0].Reported)
	assert.Zero(t, cs[0].Corrected)
	assert.InDelta(t, 250, run.Costs.PartsUSD, 1e-9)
	assert.InDelta(t, 650, run.Costs.TotalUSD, 1e-9)
	assert.Empty(t, Reconcile(run), "a second pass corrects nothing")
}

func TestReconcile_ShippingOverflow(t *testing.T) {
	run := NewProjectRun("build a drone")
	run.Quotes = payload.SupplierQuotes{Quotes: lineQuotes(math.MaxFloat64), TotalEstimatedCost: math.MaxFloat64}
	run.Logistics = payload.LogisticsPlan{Routes: []payload.Route{{CostUSD: math.MaxFloat64}}}

	cs := Reconcile(run)

	require.NotEmpty(t, cs)
	assert.Equal(t, "shipping_cost_usd", cs[0].Field)
	assert.Zero(t, run.Costs.ShippingUSD)
	assert.Equal(t, math.MaxFloat64, run.Costs.TotalUSD)
	assert.False(t, math.IsInf(run.Costs.RetailPriceUSD, 0))
}

func TestReconcilePrice_NoRepresentableMarkup(t *testing.T) {
	price, margin, corrected := ReconcilePrice(0, 30, math.MaxFloat64)
	assert.True(t, corrected)
	assert.Equal(t, math.MaxFloat64, price)
	assert.Zero(t, margin)

	_, _, corrected = ReconcilePrice(price, margin, math.MaxFloat64)
	assert.False(t, corrected)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$0.00", money(0))
	assert.Equal(t, "$999.50", money(999.5))
	assert.Equal(t, "$1,234.56", money(1234.56))
	assert.Equal(t, "$12,500.00", money(12500))
	assert.Equal(t, "$1,000,000.00", money(1e6))
	assert.Equal(t, "-$42.10", money(-42.1))
}
