package ranking

import (
	"testing"

	"github.com/dusk-indust/procure/internal/geo"
	"github.com/dusk-indust/procure/internal/partner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_Suppliers(t *testing.T) {
	got := Select(fixtureRegistry(), partner.KindSuppliers, Query{Keywords: []string{"battery"}, Reference: ref(), TopN: 2})

	summaries, ok := got.([]SupplierSummary)
	require.True(t, ok)
	require.Len(t, summaries, 2)
	assert.Equal(t, "S1", summaries[0].ID)
	require.NotNil(t, summaries[0].DistanceKm)
}

func TestSelect_Manufacturers(t *testing.T) {
	got := Select(fixtureRegistry(), partner.KindManufacturers, Query{Keywords: []string{"garments"}})

	summaries, ok := got.([]ManufacturerSummary)
	require.True(t, ok)
	require.Len(t, summaries, 1)
	assert.Equal(t, "M2", summaries[0].ID)
	assert.Nil(t, summaries[0].DistanceKm, "no reference point")
}

func TestSelect_LogisticsPickupFallsBackToReference(t *testing.T) {
	far := geo.Point{Lat: 35.68, Lon: 139.69}
	got := Select(fixtureRegistry(), partner.KindLogistics, Query{Reference: &far, Mode: "road"})

	summaries, ok := got.([]LogisticsSummary)
	require.True(t, ok)
	require.NotEmpty(t, summaries)
	assert.Equal(t, "L2", summaries[0].ID)
	require.NotNil(t, summaries[0].DistanceToPickupKm)
	assert.InDelta(t, geo.Distance(far, geo.Paris), *summaries[0].DistanceToPickupKm, 1)
}
