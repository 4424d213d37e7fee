package generator

import (
	"encoding/json"
	"testing"

	"github.com/dusk-indust/procure/internal/partner"
	"github.com/dusk-indust/procure/internal/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupplierRequest_RendersShortlistAndInput(t *testing.T) {
	suppliers := partner.Default().Suppliers()[:2]
	in := SupplierInput{
		Product:    "Electric bicycle",
		Components: []payload.Component{{Name: "Hub motor", Category: "motors"}},
		Suppliers:  suppliers,
	}
	req, err := SupplierRequest("proj_abc", in)
	require.NoError(t, err)

	assert.Equal(t, RoleSupplier, req.Role)
	assert.Equal(t, "proj_abc", req.ProjectID)
	for _, s := range suppliers {
		assert.Contains(t, req.System, s.Name)
	}
	assert.Contains(t, req.System, `"unit_cost_usd"`)
	assert.Contains(t, req.User, "Project ID: proj_abc")
	assert.Contains(t, req.User, "Hub motor")

	var back SupplierInput
	require.NoError(t, json.Unmarshal(req.Input, &back))
	assert.Equal(t, in.Product, back.Product)
	assert.Equal(t, suppliers[0].ID, back.Suppliers[0].ID)
}

func TestManufacturerRequest_PendingSupplierData(t *testing.T) {
	req, err := ManufacturerRequest("p", ManufacturerInput{Product: "X"})
	require.NoError(t, err)
	assert.Contains(t, req.User, "Supplier data: Pending")

	req, err = ManufacturerRequest("p", ManufacturerInput{Product: "X", SupplierData: &payload.SupplierQuotes{TotalEstimatedCost: 99}})
	require.NoError(t, err)
	assert.Contains(t, req.User, `"total_estimated_cost": 99`)
}

func TestRetailerRequest_CarriesCosts(t *testing.T) {
	req, err := RetailerRequest("p", RetailerInput{Product: "X", Costs: CostData{PartsCostUSD: 10, ShippingCostUSD: 5, TotalProcurementCostUSD: 15}})
	require.NoError(t, err)
	assert.Equal(t, RoleRetailer, req.Role)
	assert.Contains(t, req.User, `"total_procurement_cost_usd": 15`)
	assert.Contains(t, req.User, "Manufacturing: Pending")
}
