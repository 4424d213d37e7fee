package orchestrator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dusk-indust/procure/internal/events"
	"github.com/dusk-indust/procure/internal/payload"
	"github.com/dusk-indust/procure/internal/policy"
)

// Phases, in pipeline order.
const (
	PhaseInitialization = "initialization"
	PhaseAnalysis       = "analysis"
	PhaseDiscovery      = "discovery"
	PhaseSupplier       = "supplier_coordination"
	PhaseVerification   = "verification"
	PhaseManufacturer   = "manufacturer_coordination"
	PhaseLogistics      = "logistics_coordination"
	PhaseRetailer       = "retailer_coordination"
	PhaseReconciliation = "reconciliation"
	PhaseDecision       = "decision"
)

// Phases lists every phase a complete run reports, in order.
// PhaseReconciliation only appears when a figure was corrected.
var Phases = []string{
	PhaseInitialization,
	PhaseAnalysis,
	PhaseDiscovery,
	PhaseSupplier,
	PhaseVerification,
	PhaseManufacturer,
	PhaseLogistics,
	PhaseRetailer,
	PhaseDecision,
}

// Agents events are attributed to.
var (
	AgentSystem       = events.Agent{ID: "system", Name: "System"}
	AgentProcurement  = events.Agent{ID: "procurement_main", Name: "Procurement Agent"}
	AgentSupplier     = events.Agent{ID: "supplier_alpha", Name: "Supplier Agent"}
	AgentManufacturer = events.Agent{ID: "manufacturer_prime", Name: "Manufacturer Agent"}
	AgentLogistics    = events.Agent{ID: "logistics_global", Name: "Logistics Provider Agent"}
	AgentRetailer     = events.Agent{ID: "retailer_direct", Name: "Retailer Agent"}
)

// emitter stamps and delivers one run's events. Sends are serialized so
// concurrent batch reports keep a single total order.
type emitter struct {
	mu     sync.Mutex
	sink   events.Sink
	clock  func() time.Time
	logger *slog.Logger
	runID  string
	sent   int
	lost   bool
}

func (e *emitter) send(ev events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev.Timestamp = e.clock().UTC()
	if err := e.sink.Send(ev); err != nil {
		// Delivery is best effort once the consumer is gone.
		if !e.lost {
			e.logger.Warn("event delivery failed; discarding remaining events",
				"project", e.runID, "event", ev.Event, "error", err)
			e.lost = true
		}
		return
	}
	e.sent++
}

func (e *emitter) log(agent events.Agent, phase, name, details string, data any) {
	ev := events.Log(agent, name, details, phase)
	if data != nil {
		ev = ev.WithData(data)
	}
	e.send(ev)
}

// ---------------------------------------------------------------------------
// Event payloads
// ---------------------------------------------------------------------------

const (
	messageRequest  = "A2A_REQUEST"
	messageResponse = "A2A_RESPONSE"
)

type a2aMessage struct {
	MessageType string `json:"message_type"`
	To          string `json:"to,omitempty"`
	Status      Status `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
	Response    any    `json:"response,omitempty"`
}

type componentsData struct {
	Product        string              `json:"product"`
	ComponentCount int                 `json:"component_count"`
	Components     []payload.Component `json:"components"`
}

type partnerRef struct {
	Name     string  `json:"name"`
	Location string  `json:"location,omitempty"`
	Hub      string  `json:"hub,omitempty"`
	Score    float64 `json:"score"`
}

type partnersData struct {
	SelectedSuppliers     []partnerRef `json:"selected_suppliers"`
	SelectedManufacturers []partnerRef `json:"selected_manufacturers"`
	SelectedLogistics     []partnerRef `json:"selected_logistics"`
}

type batchData struct {
	Batch      int    `json:"batch"`
	Batches    int    `json:"batches"`
	Components int    `json:"components"`
	Attempts   int    `json:"attempts"`
	Quotes     int    `json:"quotes"`
	Error      string `json:"error,omitempty"`
}

type verificationData struct {
	TrustCheck        string            `json:"trust_check"`
	VerifiedSuppliers []string          `json:"verified_suppliers"`
	Checks            []policy.Decision `json:"checks,omitempty"`
}
