// Package status summarizes a run's progress from its event stream.
package status

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/procure/internal/events"
	"github.com/dusk-indust/procure/internal/orchestrator"
)

// PhaseInfo describes the progress of a single phase.
type PhaseInfo struct {
	Phase    string        `json:"phase"`
	Name     string        `json:"name"`
	State    events.Status `json:"-"`
	Label    string        `json:"state"`
	Events   int           `json:"events"`
	Degraded bool          `json:"degraded,omitempty"` // at least one event failed
	Last     string        `json:"last,omitempty"`
}

// RunStatus is the progress of one run.
type RunStatus struct {
	ProjectID   string      `json:"project_id,omitempty"`
	Phases      []PhaseInfo `json:"phases"`
	NextPhase   string      `json:"next_phase,omitempty"` // empty once complete
	Corrections int         `json:"corrections"`
	HasReport   bool        `json:"has_report"`
	HasPlan     bool        `json:"has_plan"`
	Complete    bool        `json:"complete"`
}

var phaseLabels = map[string]string{
	orchestrator.PhaseInitialization: "Initialization",
	orchestrator.PhaseAnalysis:       "Intent Analysis",
	orchestrator.PhaseDiscovery:      "Partner Discovery",
	orchestrator.PhaseSupplier:       "Supplier Coordination",
	orchestrator.PhaseVerification:   "Trust Verification",
	orchestrator.PhaseManufacturer:   "Manufacturer Coordination",
	orchestrator.PhaseLogistics:      "Logistics Coordination",
	orchestrator.PhaseRetailer:       "Retailer Coordination",
	orchestrator.PhaseDecision:       "Plan Compilation",
}

// Label returns the display name of phase.
func Label(phase string) string {
	if l, ok := phaseLabels[phase]; ok {
		return l
	}
	return phase
}

// StateLabel names an events.Status.
func StateLabel(s events.Status) string {
	switch s {
	case events.StatusWorking:
		return "working"
	case events.StatusDone:
		return "done"
	case events.StatusFailed:
		return "failed"
	}
	return "pending"
}

// FromEvents folds evs into a RunStatus. A phase takes the status of its
// latest event, so a stage that recovered through a fallback reads as done
// but degraded.
func FromEvents(evs []events.Event) RunStatus {
	byPhase := make(map[string]*PhaseInfo, len(orchestrator.Phases))
	rs := RunStatus{Phases: make([]PhaseInfo, len(orchestrator.Phases))}
	for i, p := range orchestrator.Phases {
		rs.Phases[i] = PhaseInfo{Phase: p, Name: Label(p), State: events.StatusPending}
		byPhase[p] = &rs.Phases[i]
	}

	for _, e := range evs {
		switch e.Type {
		case events.TypeReport:
			rs.HasReport = true
			continue
		case events.TypePlan:
			rs.HasPlan = true
			continue
		case events.TypeComplete:
			rs.Complete = true
			continue
		}

		if e.Event == "project_created" {
			var id string
			if _, err := fmt.Sscanf(e.Details, "Project %s initialized", &id); err == nil {
				rs.ProjectID = id
			}
		}
		if e.Phase == orchestrator.PhaseReconciliation {
			rs.Corrections++
			continue
		}
		p, ok := byPhase[e.Phase]
		if !ok {
			continue
		}
		p.Events++
		p.State = events.StatusOf(e)
		p.Last = e.Details
		if p.State == events.StatusFailed {
			p.Degraded = true
		}
	}

	// A phase left pending or working is over once a later phase has begun.
	reached := rs.Complete
	for i := len(rs.Phases) - 1; i >= 0; i-- {
		p := &rs.Phases[i]
		if p.Events == 0 {
			continue
		}
		if reached && p.State != events.StatusFailed {
			p.State = events.StatusDone
		}
		reached = true
	}

	for i := range rs.Phases {
		p := &rs.Phases[i]
		p.Label = StateLabel(p.State)
		if rs.NextPhase == "" && !rs.Complete && p.State != events.StatusDone {
			rs.NextPhase = p.Phase
		}
	}
	return rs
}

// Summary renders rs as a one-line description.
func Summary(rs RunStatus) string {
	done := 0
	var degraded []string
	for _, p := range rs.Phases {
		if p.State == events.StatusDone {
			done++
		}
		if p.Degraded {
			degraded = append(degraded, p.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d phases done", done, len(rs.Phases))
	if rs.Complete {
		b.WriteString(", complete")
	} else if rs.NextPhase != "" {
		fmt.Fprintf(&b, ", next: %s", Label(rs.NextPhase))
	}
	if len(degraded) > 0 {
		fmt.Fprintf(&b, ", degraded: %s", strings.Join(degraded, ", "))
	}
	if rs.Corrections > 0 {
		fmt.Fprintf(&b, ", %d correction(s)", rs.Corrections)
	}
	return b.String()
}
