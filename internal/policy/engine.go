// Package policy evaluates trust and compliance checks over the partners a
// procurement run selected. Checks are written in Rego and evaluated with OPA.
package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Query is the rule every policy module must define.
const Query = "data.procurement.decisions"

// DefaultPolicy is the built-in policy module.
//
//go:embed procurement.rego
var DefaultPolicy string

// Checks reported by DefaultPolicy about the selected suppliers.
const (
	CheckISO9001     = "ISO 9001 Quality Management"
	CheckIATF16949   = "IATF 16949 Automotive Standard"
	CheckReliability = "Reliability Score Threshold"
)

// Kind separates trust verification from policy enforcement.
type Kind string

const (
	KindTrust  Kind = "trust"
	KindPolicy Kind = "policy"
)

// Decision is the outcome of one check.
type Decision struct {
	Check   string `json:"check"`
	Kind    Kind   `json:"kind"`
	Status  string `json:"status"`
	Details string `json:"details"`
}

// Partner is a selected partner as seen by the policy.
type Partner struct {
	Name            string   `json:"name"`
	Country         string   `json:"country"`
	Reliability     float64  `json:"reliability"`
	Certifications  []string `json:"certifications,omitempty"`
	CustomsCapable  bool     `json:"customs_capable,omitempty"`
	HazmatCertified bool     `json:"hazmat_certified,omitempty"`
}

// Money holds display strings for the budget checks.
type Money struct {
	Parts    string `json:"parts"`
	Shipping string `json:"shipping"`
	Total    string `json:"total"`
	Budget   string `json:"budget"`
}

// Costs are the reconciled run costs.
type Costs struct {
	PartsUSD    float64 `json:"parts_usd"`
	ShippingUSD float64 `json:"shipping_usd"`
	TotalUSD    float64 `json:"total_usd"`
	BudgetUSD   float64 `json:"budget_usd"`
	Formatted   Money   `json:"formatted"`
}

// Timeline is the critical path in days.
type Timeline struct {
	PartsProcurementDays int `json:"parts_procurement_days"`
	AssemblyDays         int `json:"assembly_days"`
	ShippingDays         int `json:"shipping_days"`
	DeliveryDays         int `json:"delivery_days"`
	TotalDays            int `json:"total_days"`
}

// Shortlisted counts the candidates kept per registry.
type Shortlisted struct {
	Suppliers          int `json:"suppliers"`
	Manufacturers      int `json:"manufacturers"`
	LogisticsProviders int `json:"logistics_providers"`
}

// Input is the document a policy evaluates.
type Input struct {
	Suppliers            []Partner   `json:"suppliers,omitempty"`
	Manufacturer         *Partner    `json:"manufacturer,omitempty"`
	Logistics            *Partner    `json:"logistics,omitempty"`
	Costs                Costs       `json:"costs"`
	Timeline             Timeline    `json:"timeline"`
	Shortlisted          Shortlisted `json:"shortlisted"`
	StageErrors          int         `json:"stage_errors"`
	ReliabilityThreshold float64     `json:"reliability_threshold,omitempty"`
	AllowedCountries     []string    `json:"allowed_countries,omitempty"`
	MaxLeadDays          int         `json:"max_lead_days,omitempty"`
}

// Engine holds a prepared policy query. It is safe for concurrent use.
type Engine struct {
	query rego.PreparedEvalQuery
}

// New prepares module, or DefaultPolicy when module is empty.
func New(ctx context.Context, module string) (*Engine, error) {
	if module == "" {
		module = DefaultPolicy
	}
	r := rego.New(
		rego.Query(Query),
		rego.Module("procurement.rego", module),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// Load prepares the policy module at path, or DefaultPolicy when path is
// empty.
func Load(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return New(ctx, "")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return New(ctx, string(data))
}

// Evaluate runs every check against in, in the order the policy lists them.
func (e *Engine) Evaluate(ctx context.Context, in Input) ([]Decision, error) {
	// Round-trip through JSON so the policy sees the documented field names.
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("policy: encode input: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("policy: encode input: %w", err)
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return nil, fmt.Errorf("policy: evaluate: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, fmt.Errorf("policy: %s is undefined", Query)
	}

	out, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return nil, fmt.Errorf("policy: decode decisions: %w", err)
	}
	var decisions []Decision
	if err := json.Unmarshal(out, &decisions); err != nil {
		return nil, fmt.Errorf("policy: decode decisions: %w", err)
	}
	return decisions, nil
}

// ErrorDecisions stands in for a failed evaluation: one trust and one
// policy entry carrying err.
func ErrorDecisions(err error) []Decision {
	return []Decision{
		{Check: "Report generation", Kind: KindTrust, Status: "error", Details: err.Error()},
		{Check: "Report generation", Kind: KindPolicy, Status: "error", Details: err.Error()},
	}
}

// Filter returns the decisions of kind k.
func Filter(ds []Decision, k Kind) []Decision {
	out := make([]Decision, 0, len(ds))
	for _, d := range ds {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}

// Find returns the decision for check, if present.
func Find(ds []Decision, check string) (Decision, bool) {
	for _, d := range ds {
		if d.Check == check {
			return d, true
		}
	}
	return Decision{}, false
}
