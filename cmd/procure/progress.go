package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/dusk-indust/procure/internal/events"
	"github.com/dusk-indust/procure/internal/orchestrator"
	"github.com/dusk-indust/procure/internal/status"
)

// progressPrinter writes one colored line per event and remembers the
// phase so a header is printed whenever it changes.
type progressPrinter struct {
	w     io.Writer
	phase string
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

// Send implements events.Sink.
func (p *progressPrinter) Send(e events.Event) error {
	if e.Type == events.TypeLog && e.Phase != p.phase {
		p.phase = e.Phase
		fmt.Fprintln(p.w, color.CyanString(status.Label(e.Phase)))
	}
	line := events.FormatProgress(e)
	switch events.StatusOf(e) {
	case events.StatusFailed:
		line = color.RedString(line)
	case events.StatusWorking:
		line = color.YellowString(line)
	case events.StatusDone:
		if e.Type != events.TypeLog {
			line = color.GreenString(line)
		}
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}

var _ events.Sink = (*progressPrinter)(nil)

// printPlanSummary writes the headline figures of plan.
func printPlanSummary(w io.Writer, plan *orchestrator.ExecutionPlan) {
	if plan == nil {
		fmt.Fprintln(w, color.RedString("No execution plan was produced."))
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Project %s: %s\n", plan.ProjectID, plan.Product)
	fmt.Fprintf(w, "  parts     $%.2f\n", plan.CostSummary.PartsCostUSD)
	fmt.Fprintf(w, "  shipping  $%.2f\n", plan.CostSummary.ShippingCostUSD)
	fmt.Fprintf(w, "  total     $%.2f\n", plan.CostSummary.TotalCostUSD)
	fmt.Fprintf(w, "  retail    $%.2f (%.1f%% margin)\n", plan.CostSummary.RetailPriceUSD, plan.CostSummary.MarginPercentage)
	fmt.Fprintf(w, "  delivery  %d days\n", plan.Timeline.TotalDays)
}

// printRunStatus writes one line per phase of rs.
func printRunStatus(w io.Writer, rs status.RunStatus) {
	for _, pi := range rs.Phases {
		marker := "  "
		if pi.Phase == rs.NextPhase {
			marker = "->"
		}
		label := pi.Label
		switch pi.State {
		case events.StatusDone:
			label = color.GreenString(label)
		case events.StatusFailed:
			label = color.RedString(label)
		case events.StatusWorking:
			label = color.YellowString(label)
		}
		degraded := ""
		if pi.Degraded {
			degraded = color.RedString(" (degraded)")
		}
		fmt.Fprintf(w, "  %s %-26s [%s]%s\n", marker, pi.Name, label, degraded)
	}
	if rs.Complete {
		fmt.Fprintln(w, "  All phases complete.")
	}
	fmt.Fprintf(w, "\n%s\n", status.Summary(rs))
}
