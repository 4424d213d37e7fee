package generator

import (
	"context"
	"testing"

	"github.com/dusk-indust/procure/internal/partner"
	"github.com/dusk-indust/procure/internal/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_AnalysisCatalog(t *testing.T) {
	tests := []struct {
		intent  string
		product string
	}{
		{"I need 10 electric bikes delivered to Paris", "Electric bicycle"},
		{"Build an EV for the European market", "Electric vehicle"},
		{"Source parts for a rugged tablet", "Consumer electronics device"},
		{"Industrial greenhouse controller", "Industrial greenhouse controller"},
	}
	m := NewMock()
	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			req, err := AnalysisRequest("proj_1", AnalysisInput{Intent: tt.intent})
			require.NoError(t, err)

			out, err := m.Generate(context.Background(), req)
			require.NoError(t, err)

			a, err := payload.Decode[payload.Analysis](out)
			require.NoError(t, err)
			assert.Equal(t, tt.product, a.Product.String())
			assert.NotEmpty(t, a.Components)
		})
	}
}

func TestMock_QuotesOnePerComponent(t *testing.T) {
	comps := []payload.Component{
		{Name: "Battery module", Category: "battery", EstimatedQuantity: 2, EstimatedUnitCostUSD: 1000},
		{Name: "Seat", Category: "seats"},
	}
	suppliers := partner.Default().Suppliers()
	req, err := SupplierRequest("proj_1", SupplierInput{Product: "EV", Components: comps, Suppliers: suppliers})
	require.NoError(t, err)

	out, err := NewMock().Generate(context.Background(), req)
	require.NoError(t, err)
	q, err := payload.Decode[payload.SupplierQuotes](out)
	require.NoError(t, err)

	require.Len(t, q.Quotes, 2)
	assert.Equal(t, "Northvolt Cells", q.Quotes[0].AssignedSupplier.String(), "first supplier carrying a battery tag")
	assert.Equal(t, 2.0, q.Quotes[0].Quantity.Value())
	assert.InDelta(t, q.Quotes[0].UnitCostUSD.Value()*2, q.Quotes[0].TotalLineCost.Value(), 0.01)
	assert.Equal(t, 1.0, q.Quotes[1].Quantity.Value())
	assert.Greater(t, q.TotalEstimatedCost.Value(), 0.0)
}

func TestMock_NoSuppliersYieldsNoQuotes(t *testing.T) {
	req, err := SupplierRequest("proj_1", SupplierInput{Components: []payload.Component{{Name: "x"}}})
	require.NoError(t, err)

	out, err := NewMock().Generate(context.Background(), req)
	require.NoError(t, err)
	q, err := payload.Decode[payload.SupplierQuotes](out)
	require.NoError(t, err)
	assert.Empty(t, q.Quotes)
}

func TestMock_DownstreamStages(t *testing.T) {
	reg := partner.Default()
	m := NewMock()
	ctx := context.Background()

	mreq, err := ManufacturerRequest("proj_1", ManufacturerInput{
		Product:       "EV",
		Components:    []payload.Component{{Name: "Frame", Category: "metal"}},
		Manufacturers: reg.Manufacturers()[:2],
	})
	require.NoError(t, err)
	out, err := m.Generate(ctx, mreq)
	require.NoError(t, err)
	mp, err := payload.Decode[payload.ManufacturerPlan](out)
	require.NoError(t, err)
	assert.Equal(t, reg.Manufacturers()[0].Name, mp.SelectedManufacturer.String())
	assert.Len(t, mp.AssemblyPlan.Steps, 2)

	lreq, err := LogisticsRequest("proj_1", LogisticsInput{
		Product:   "EV",
		Pickup:    PickupInfo{Manufacturer: mp.SelectedManufacturer.String()},
		Delivery:  DeliveryInfo{Destination: "Customer location"},
		Providers: reg.Logistics()[:1],
	})
	require.NoError(t, err)
	out, err = m.Generate(ctx, lreq)
	require.NoError(t, err)
	lp, err := payload.Decode[payload.LogisticsPlan](out)
	require.NoError(t, err)
	assert.Greater(t, lp.FirstRoute().CostUSD.Value(), 0.0)

	rreq, err := RetailerRequest("proj_1", RetailerInput{Product: "EV", Costs: CostData{TotalProcurementCostUSD: 1000}})
	require.NoError(t, err)
	out, err = m.Generate(ctx, rreq)
	require.NoError(t, err)
	rp, err := payload.Decode[payload.RetailerPlan](out)
	require.NoError(t, err)
	assert.InDelta(t, 1300.0, rp.FinalRetailPriceUSD.Value(), 0.001)
}

func TestMock_RejectsBadRequests(t *testing.T) {
	_, err := NewMock().Generate(context.Background(), Request{Role: "pricing"})
	assert.True(t, IsFatal(err))

	_, err = NewMock().Generate(context.Background(), Request{Role: RoleSupplier})
	assert.True(t, IsFatal(err))
}
