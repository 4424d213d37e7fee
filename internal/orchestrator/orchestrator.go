// Package orchestrator runs the procurement pipeline: intent analysis,
// partner discovery, supplier quoting, assembly, routing, and retail
// planning, followed by reconciliation and compilation of the final plan.
package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dusk-indust/procure/internal/partner"
	"github.com/dusk-indust/procure/internal/payload"
	"github.com/dusk-indust/procure/internal/policy"
	"github.com/dusk-indust/procure/internal/ranking"
)

// ErrEmptyIntent is returned by Run before any event is emitted.
var ErrEmptyIntent = errors.New("orchestrator: intent is required")

// ---------------------------------------------------------------------------
// Run states
// ---------------------------------------------------------------------------

// State is the position of a run in the pipeline. Runs only move forward.
type State int

const (
	StateCreated State = iota
	StateAnalyzed
	StateDiscovered
	StateSupplierDone
	StateManufacturerDone
	StateLogisticsDone
	StateRetailerDone
	StateReconciled
	StateCompiled
	StateStreamed
)

func (s State) String() string {
	names := [...]string{
		"created",
		"analyzed",
		"discovered",
		"supplier-done",
		"manufacturer-done",
		"logistics-done",
		"retailer-done",
		"reconciled",
		"compiled",
		"streamed",
	}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// transitions maps each state to the state a run must be in to enter it.
var transitions = map[State]State{
	StateAnalyzed:         StateCreated,
	StateDiscovered:       StateAnalyzed,
	StateSupplierDone:     StateDiscovered,
	StateManufacturerDone: StateSupplierDone,
	StateLogisticsDone:    StateManufacturerDone,
	StateRetailerDone:     StateLogisticsDone,
	StateReconciled:       StateRetailerDone,
	StateCompiled:         StateReconciled,
	StateStreamed:         StateCompiled,
}

// ---------------------------------------------------------------------------
// Stage results
// ---------------------------------------------------------------------------

// Stage names a generator-backed pipeline stage.
type Stage string

const (
	StageAnalysis     Stage = "analysis"
	StageSupplier     Stage = "supplier"
	StageManufacturer Stage = "manufacturer"
	StageLogistics    Stage = "logistics"
	StageRetailer     Stage = "retailer"
)

// stageOrder is the order in which stage results are appended.
var stageOrder = []Stage{StageAnalysis, StageSupplier, StageManufacturer, StageLogistics, StageRetailer}

// Status is the outcome of a stage.
type Status string

const (
	StatusOK       Status = "ok"
	StatusFallback Status = "fallback"
	StatusError    Status = "error"
)

// StageResult is the outcome of one stage. Payload holds the stage's typed
// output (payload.Analysis, payload.SupplierQuotes, ...), or nil when the
// stage failed without a fallback.
type StageResult struct {
	Stage   Stage    `json:"stage"`
	Status  Status   `json:"status"`
	Errors  []string `json:"errors,omitempty"`
	Payload any      `json:"payload,omitempty"`
}

// Shortlist holds the ranked partners chosen during discovery.
type Shortlist struct {
	Suppliers     []ranking.Scored[partner.Supplier]          `json:"suppliers"`
	Manufacturers []ranking.Scored[partner.Manufacturer]      `json:"manufacturers"`
	Logistics     []ranking.Scored[partner.LogisticsProvider] `json:"logistics"`
}

// Counts returns the shortlist lengths.
func (s Shortlist) Counts() partner.Counts {
	return partner.Counts{
		Suppliers:          len(s.Suppliers),
		Manufacturers:      len(s.Manufacturers),
		LogisticsProviders: len(s.Logistics),
	}
}

// Costs are the reconciled money figures of a run.
type Costs struct {
	PartsUSD         float64 `json:"parts_usd"`
	ShippingUSD      float64 `json:"shipping_usd"`
	TotalUSD         float64 `json:"total_usd"`
	RetailPriceUSD   float64 `json:"retail_price_usd"`
	MarginPercentage float64 `json:"margin_percentage"`
}

// ---------------------------------------------------------------------------
// ProjectRun
// ---------------------------------------------------------------------------

// ProjectRun is the state of one pipeline invocation. It is owned by the
// goroutine running the pipeline and must not be shared until Run returns.
type ProjectRun struct {
	ID      string        `json:"id"`
	Intent  string        `json:"intent"`
	State   State         `json:"-"`
	Results []StageResult `json:"results"`

	Analysis      payload.Analysis         `json:"analysis"`
	Shortlist     Shortlist                `json:"shortlist"`
	Quotes        payload.SupplierQuotes   `json:"quotes"`
	Manufacturing payload.ManufacturerPlan `json:"manufacturing"`
	Logistics     payload.LogisticsPlan    `json:"logistics"`
	Retail        payload.RetailerPlan     `json:"retail"`
	Costs         Costs                    `json:"costs"`
	Corrections   []Correction             `json:"corrections,omitempty"`
	Decisions     []policy.Decision        `json:"decisions,omitempty"`

	Plan   *ExecutionPlan      `json:"plan,omitempty"`
	Report *CoordinationReport `json:"report,omitempty"`
}

// NewProjectRun creates a run in StateCreated with a fresh project id.
func NewProjectRun(intent string) *ProjectRun {
	return &ProjectRun{
		ID:     NewProjectID(),
		Intent: intent,
		State:  StateCreated,
	}
}

// NewProjectID returns "proj_" followed by eight hex characters.
func NewProjectID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "proj_" + hex[:8]
}

// advance moves the run to next, enforcing the transition table.
func (r *ProjectRun) advance(next State) error {
	want, ok := transitions[next]
	if !ok {
		return fmt.Errorf("orchestrator: no transition into %s", next)
	}
	if r.State != want {
		return fmt.Errorf("orchestrator: cannot enter %s from %s (requires %s)", next, r.State, want)
	}
	r.State = next
	return nil
}

// record appends res, enforcing stage order.
func (r *ProjectRun) record(res StageResult) error {
	i := len(r.Results)
	if i >= len(stageOrder) || stageOrder[i] != res.Stage {
		return fmt.Errorf("orchestrator: stage %s recorded out of order after %d results", res.Stage, i)
	}
	r.Results = append(r.Results, res)
	return nil
}

// Result returns the recorded result of stage.
func (r *ProjectRun) Result(stage Stage) (StageResult, bool) {
	for _, res := range r.Results {
		if res.Stage == stage {
			return res, true
		}
	}
	return StageResult{}, false
}

// StageErrors counts recorded stages that did not finish ok.
func (r *ProjectRun) StageErrors() int {
	n := 0
	for _, res := range r.Results {
		if res.Status != StatusOK {
			n++
		}
	}
	return n
}

// Product is the analysed product name, or the intent when analysis named none.
func (r *ProjectRun) Product() string {
	if p := strings.TrimSpace(r.Analysis.Product.String()); p != "" {
		return p
	}
	return r.Intent
}
