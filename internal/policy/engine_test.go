package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goodInput() Input {
	return Input{
		Suppliers: []Partner{
			{Name: "Bosch Components", Country: "Germany", Reliability: 0.95, Certifications: []string{"ISO 9001", "IATF 16949"}},
			{Name: "Valeo Parts", Country: "France", Reliability: 0.91, Certifications: []string{"ISO 9001", "ISO 14001"}},
		},
		Manufacturer: &Partner{Name: "Lyon Assembly", Country: "France", Reliability: 0.93, Certifications: []string{"ISO 9001"}},
		Logistics:    &Partner{Name: "Rhine Freight", Country: "Germany", Reliability: 0.9, CustomsCapable: true},
		Costs: Costs{
			PartsUSD: 5000, ShippingUSD: 800, TotalUSD: 5800,
			Formatted: Money{Parts: "$5,000.00", Shipping: "$800.00", Total: "$5,800.00", Budget: "$0.00"},
		},
		Timeline:    Timeline{PartsProcurementDays: 14, AssemblyDays: 5, ShippingDays: 3, DeliveryDays: 2, TotalDays: 24},
		Shortlisted: Shortlisted{Suppliers: 4, Manufacturers: 2, LogisticsProviders: 2},
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(context.Background(), "")
	require.NoError(t, err)
	return e
}

func statusOf(t *testing.T, ds []Decision, check string) string {
	t.Helper()
	d, ok := Find(ds, check)
	require.True(t, ok, "missing decision %q", check)
	return d.Status
}

func TestEvaluate_DefaultPolicyOrder(t *testing.T) {
	ds, err := newEngine(t).Evaluate(context.Background(), goodInput())
	require.NoError(t, err)
	require.Len(t, ds, 12)

	trust := Filter(ds, KindTrust)
	policy := Filter(ds, KindPolicy)
	require.Len(t, trust, 6)
	require.Len(t, policy, 6)

	assert.Equal(t, "ISO 9001 Quality Management", trust[0].Check)
	assert.Equal(t, "Data Integrity and Agent Authentication", trust[5].Check)
	assert.Equal(t, "Budget Constraint Validation", policy[0].Check)
	assert.Equal(t, "Supply Chain Redundancy", policy[5].Check)
}

func TestEvaluate_AllPassing(t *testing.T) {
	ds, err := newEngine(t).Evaluate(context.Background(), goodInput())
	require.NoError(t, err)

	assert.Equal(t, "passed", statusOf(t, ds, "ISO 9001 Quality Management"))
	assert.Equal(t, "verified", statusOf(t, ds, "IATF 16949 Automotive Standard"))
	assert.Equal(t, "passed", statusOf(t, ds, "Manufacturer Facility Verification"))
	assert.Equal(t, "passed", statusOf(t, ds, "Logistics Provider Licensing"))
	assert.Equal(t, "passed", statusOf(t, ds, "Reliability Score Threshold"))
	assert.Equal(t, "passed", statusOf(t, ds, "Data Integrity and Agent Authentication"))
	assert.Equal(t, "compliant", statusOf(t, ds, "Budget Constraint Validation"))
	assert.Equal(t, "compliant", statusOf(t, ds, "Jurisdiction Compliance"))
	assert.Equal(t, "enforced", statusOf(t, ds, "Quality Standards Enforcement"))
	assert.Equal(t, "compliant", statusOf(t, ds, "Environmental and Regulatory Compliance"))
	assert.Equal(t, "optimized", statusOf(t, ds, "Lead Time Optimization"))
	assert.Equal(t, "noted", statusOf(t, ds, "Supply Chain Redundancy"))

	budget, _ := Find(ds, "Budget Constraint Validation")
	assert.Contains(t, budget.Details, "$5,800.00")
	lead, _ := Find(ds, "Lead Time Optimization")
	assert.Contains(t, lead.Details, "24 days")
}

func TestEvaluate_LowReliability(t *testing.T) {
	in := goodInput()
	in.Suppliers[1].Reliability = 0.82

	ds, err := newEngine(t).Evaluate(context.Background(), in)
	require.NoError(t, err)

	d, ok := Find(ds, "Reliability Score Threshold")
	require.True(t, ok)
	assert.Equal(t, "failed", d.Status)
	assert.Contains(t, d.Details, "Valeo Parts")
	assert.Contains(t, d.Details, "0.85")
}

func TestEvaluate_CustomThreshold(t *testing.T) {
	in := goodInput()
	in.ReliabilityThreshold = 0.92

	ds, err := newEngine(t).Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "failed", statusOf(t, ds, "Reliability Score Threshold"))
}

func TestEvaluate_Violations(t *testing.T) {
	in := goodInput()
	in.Suppliers[0].Certifications = nil
	in.Costs.BudgetUSD = 1000
	in.Costs.Formatted.Budget = "$1,000.00"
	in.AllowedCountries = []string{"France"}
	in.MaxLeadDays = 10
	in.StageErrors = 2
	in.Manufacturer = nil
	in.Logistics = nil
	in.Shortlisted.Manufacturers = 1

	ds, err := newEngine(t).Evaluate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "warning", statusOf(t, ds, "ISO 9001 Quality Management"))
	assert.Equal(t, "unverified", statusOf(t, ds, "Manufacturer Facility Verification"))
	assert.Equal(t, "unverified", statusOf(t, ds, "Logistics Provider Licensing"))
	assert.Equal(t, "degraded", statusOf(t, ds, "Data Integrity and Agent Authentication"))
	assert.Equal(t, "exceeded", statusOf(t, ds, "Budget Constraint Validation"))
	assert.Equal(t, "violation", statusOf(t, ds, "Jurisdiction Compliance"))
	assert.Equal(t, "partial", statusOf(t, ds, "Quality Standards Enforcement"))
	assert.Equal(t, "exceeded", statusOf(t, ds, "Lead Time Optimization"))
	assert.Equal(t, "at_risk", statusOf(t, ds, "Supply Chain Redundancy"))

	j, _ := Find(ds, "Jurisdiction Compliance")
	assert.Contains(t, j.Details, "Bosch Components (Germany)")
	assert.NotContains(t, j.Details, "Valeo")
}

func TestEvaluate_EmptyInput(t *testing.T) {
	ds, err := newEngine(t).Evaluate(context.Background(), Input{})
	require.NoError(t, err)
	require.Len(t, ds, 12)
	assert.Equal(t, "passed", statusOf(t, ds, "Reliability Score Threshold"))
	assert.Equal(t, "not_applicable", statusOf(t, ds, "IATF 16949 Automotive Standard"))
}

func TestLoad_OverrideModule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.rego")
	module := `package procurement

import rego.v1

decisions := [{"check": "Custom", "kind": "policy", "status": "compliant", "details": input.costs.formatted.total}]
`
	require.NoError(t, os.WriteFile(path, []byte(module), 0o644))

	e, err := Load(context.Background(), path)
	require.NoError(t, err)

	ds, err := e.Evaluate(context.Background(), goodInput())
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, Decision{Check: "Custom", Kind: KindPolicy, Status: "compliant", Details: "$5,800.00"}, ds[0])
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)

	_, err = New(context.Background(), "package procurement\n\ndecisions := [")
	assert.Error(t, err)
}

func TestEvaluate_UndefinedQuery(t *testing.T) {
	e, err := New(context.Background(), "package procurement\n\nimport rego.v1\n\ndecisions := [1] if input.never\n")
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), goodInput())
	assert.Error(t, err)
}

func TestErrorDecisions(t *testing.T) {
	ds := ErrorDecisions(assert.AnError)
	require.Len(t, ds, 2)
	assert.Len(t, Filter(ds, KindTrust), 1)
	assert.Len(t, Filter(ds, KindPolicy), 1)
	assert.Equal(t, "error", ds[0].Status)
}
