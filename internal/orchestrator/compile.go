package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dusk-indust/procure/internal/events"
	"github.com/dusk-indust/procure/internal/partner"
	"github.com/dusk-indust/procure/internal/policy"
	"github.com/dusk-indust/procure/internal/ranking"
)

// ---------------------------------------------------------------------------
// Policy
// ---------------------------------------------------------------------------

// policyEngine returns the configured Verifier, preparing the built-in
// policy on first use.
func (p *Pipeline) policyEngine(ctx context.Context) (Verifier, error) {
	p.verifierOnce.Do(func() {
		if p.verifier != nil {
			return
		}
		eng, err := policy.New(context.WithoutCancel(ctx), "")
		if err != nil {
			p.verifierErr = err
			return
		}
		p.verifier = eng
	})
	return p.verifier, p.verifierErr
}

// evaluate runs the policy over in. A failed evaluation yields
// policy.ErrorDecisions so the report still carries a verdict.
func (p *Pipeline) evaluate(ctx context.Context, run *ProjectRun, in policy.Input) []policy.Decision {
	v, err := p.policyEngine(ctx)
	var ds []policy.Decision
	if err == nil {
		ds, err = v.Evaluate(ctx, in)
	}
	if err != nil {
		p.logger.Warn("policy evaluation failed", "project", run.ID, "error", err)
		return policy.ErrorDecisions(err)
	}
	return ds
}

// policyInput describes run to the policy. The manufacturer and logistics
// provider are nil until those stages have selected one.
func (p *Pipeline) policyInput(run *ProjectRun, m *partner.Manufacturer, l *partner.LogisticsProvider, t Timeline) policy.Input {
	c := p.cfg.Constraints
	in := policy.Input{
		Costs: policy.Costs{
			PartsUSD:    run.Costs.PartsUSD,
			ShippingUSD: run.Costs.ShippingUSD,
			TotalUSD:    run.Costs.TotalUSD,
			BudgetUSD:   c.BudgetUSD,
			Formatted: policy.Money{
				Parts:    money(run.Costs.PartsUSD),
				Shipping: money(run.Costs.ShippingUSD),
				Total:    money(run.Costs.TotalUSD),
				Budget:   money(c.BudgetUSD),
			},
		},
		Timeline:             policy.Timeline(t),
		Shortlisted:          policy.Shortlisted(run.Shortlist.Counts()),
		StageErrors:          run.StageErrors(),
		ReliabilityThreshold: c.ReliabilityThreshold,
		AllowedCountries:     c.AllowedCountries,
		MaxLeadDays:          c.MaxLeadDays,
	}
	for _, s := range selectedSuppliers(run) {
		in.Suppliers = append(in.Suppliers, policy.Partner{
			Name:           s.Name,
			Country:        s.Country,
			Reliability:    s.Reliability,
			Certifications: s.Certifications,
		})
	}
	if m != nil {
		in.Manufacturer = &policy.Partner{
			Name:           m.Name,
			Country:        m.Country,
			Reliability:    m.Reliability,
			Certifications: m.Certifications,
		}
	}
	if l != nil {
		in.Logistics = &policy.Partner{
			Name:            l.Name,
			Country:         l.Country,
			Reliability:     l.Reliability,
			CustomsCapable:  l.CustomsCapable,
			HazmatCertified: l.HazmatCertified,
		}
	}
	return in
}

// selectedSuppliers returns the shortlisted suppliers that quoted, or the
// whole shortlist when none of the quoted names match it.
func selectedSuppliers(run *ProjectRun) []partner.Supplier {
	all := suppliersOf(run.Shortlist.Suppliers)
	var out []partner.Supplier
	for _, s := range all {
		if containsFold(run.Quotes.SuppliersUsed, s.Name) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

// ---------------------------------------------------------------------------
// Compile
// ---------------------------------------------------------------------------

func (p *Pipeline) compile(ctx context.Context, run *ProjectRun, em *emitter) error {
	em.log(AgentProcurement, PhaseDecision, "compiling_plan",
		"All agents responded. Compiling final execution plan...", nil)
	p.pause(ctx, p.cfg.Pacing.Settle)

	timeline := timelineOf(run)

	var (
		mSum *ranking.ManufacturerSummary
		mRec *partner.Manufacturer
		lSum *ranking.LogisticsSummary
		lRec *partner.LogisticsProvider
	)
	if r, ok := run.Result(StageManufacturer); ok && r.Status == StatusOK {
		if s, ok := ranking.MatchSummary(ranking.Summarize(run.Shortlist.Manufacturers, ranking.SummarizeManufacturer),
			run.Manufacturing.SelectedManufacturer.String()); ok {
			mSum = &s
			for _, c := range run.Shortlist.Manufacturers {
				if c.Record.ID == s.ID {
					rec := c.Record
					mRec = &rec
					break
				}
			}
		}
	}
	if r, ok := run.Result(StageLogistics); ok && r.Status == StatusOK {
		if s, ok := ranking.MatchSummary(ranking.Summarize(run.Shortlist.Logistics, ranking.SummarizeLogistics),
			run.Logistics.SelectedProvider.String()); ok {
			lSum = &s
			for _, c := range run.Shortlist.Logistics {
				if c.Record.ID == s.ID {
					rec := c.Record
					lRec = &rec
					break
				}
			}
		}
	}

	run.Decisions = p.evaluate(ctx, run, p.policyInput(run, mRec, lRec, timeline))

	report := buildReport(p.reportInput(run, timeline))
	plan := buildPlan(run, timeline, mSum, lSum)
	plan.CoordinationReport = &report
	run.Plan = &plan
	run.Report = &report
	return run.advance(StateCompiled)
}

func (p *Pipeline) reportInput(run *ProjectRun, t Timeline) reportInput {
	return reportInput{
		run:          run,
		registry:     p.registry.Counts(),
		timeline:     t,
		decisions:    run.Decisions,
		manufacturer: orNA(run.Manufacturing.SelectedManufacturer.String()),
		logistics:    orNA(run.Logistics.SelectedProvider.String()),
	}
}

// buildPlan assembles the execution plan from the reconciled run.
func buildPlan(run *ProjectRun, t Timeline, mSum *ranking.ManufacturerSummary, lSum *ranking.LogisticsSummary) ExecutionPlan {
	status := func(s Stage) Status {
		if r, ok := run.Result(s); ok {
			return r.Status
		}
		return StatusError
	}

	selected := []string(run.Quotes.SuppliersUsed)
	if selected == nil {
		selected = []string{}
	}
	var details []ranking.SupplierSummary
	for _, c := range run.Shortlist.Suppliers {
		if containsFold(run.Quotes.SuppliersUsed, c.Record.Name) {
			details = append(details, ranking.SummarizeSupplier(c))
		}
	}
	if details == nil {
		details = []ranking.SupplierSummary{}
	}
	return ExecutionPlan{
		ProjectID:  run.ID,
		Product:    run.Product(),
		Intent:     run.Intent,
		Status:     "completed",
		Components: run.Analysis.Components,
		Suppliers: SupplierSection{
			Status:            status(StageSupplier),
			Selected:          selected,
			SelectedDetails:   details,
			ComponentCount:    len(run.Analysis.Components),
			QuoteCount:        len(run.Quotes.Quotes),
			TotalPartsCostUSD: run.Costs.PartsUSD,
			Quotes:            run.Quotes.Quotes,
		},
		Manufacturer: ManufacturerSection{
			Status:             status(StageManufacturer),
			Selected:           orNA(run.Manufacturing.SelectedManufacturer.String()),
			SelectedDetails:    mSum,
			AssemblyPlan:       run.Manufacturing.AssemblyPlan,
			CanAssemble:        bool(run.Manufacturing.CanAssemble),
			SelectionRationale: run.Manufacturing.SelectionRationale.String(),
		},
		Logistics: LogisticsSection{
			Status:             status(StageLogistics),
			Selected:           orNA(run.Logistics.SelectedProvider.String()),
			SelectedDetails:    lSum,
			Route:              run.Logistics.FirstRoute(),
			Recommended:        run.Logistics.RecommendedRoute.String(),
			ShippingCostUSD:    run.Costs.ShippingUSD,
			SelectionRationale: run.Logistics.SelectionRationale.String(),
		},
		Retailer: RetailerSection{
			Status:             status(StageRetailer),
			Selected:           RetailerID,
			DeliveryPlan:       run.Retail.DeliveryPlan,
			CustomerExperience: run.Retail.CustomerExperience,
			RetailPriceUSD:     run.Costs.RetailPriceUSD,
		},
		Timeline: t,
		CostSummary: CostSummary{
			PartsCostUSD:     run.Costs.PartsUSD,
			ShippingCostUSD:  run.Costs.ShippingUSD,
			TotalCostUSD:     run.Costs.TotalUSD,
			RetailPriceUSD:   run.Costs.RetailPriceUSD,
			MarginPercentage: run.Costs.MarginPercentage,
		},
	}
}

// ---------------------------------------------------------------------------
// Stream
// ---------------------------------------------------------------------------

// stream emits the closing events: plan_complete, report, plan, complete.
// Exactly one report and one plan event are sent, and complete always
// follows, even when encoding fails.
func (p *Pipeline) stream(ctx context.Context, run *ProjectRun, em *emitter) error {
	plan := run.Plan
	em.log(AgentProcurement, PhaseDecision, "plan_complete",
		fmt.Sprintf("Execution plan complete. Total cost: %s. Timeline: %d days.",
			money(plan.CostSummary.TotalCostUSD), plan.Timeline.TotalDays), nil)
	p.pause(ctx, p.cfg.Pacing.Step)

	reportEv, err := events.Report(run.Report)
	if err != nil {
		p.logger.Error("coordination report encode failed, sending fallback", "project", run.ID, "error", err)
		fb := fallbackReport(p.reportInput(run, plan.Timeline), err)
		run.Report = &fb
		run.Plan.CoordinationReport = &fb
		if reportEv, err = events.Report(fb); err != nil {
			p.logger.Error("fallback report encode failed", "project", run.ID, "error", err)
			em.log(AgentSystem, PhaseDecision, "report_encode_failed",
				"Coordination report could not be encoded", nil)
			reportEv = events.Event{Type: events.TypeReport, Data: json.RawMessage("{}")}
		}
	}

	planEv, reduced, err := planEvent(*run.Plan)
	switch {
	case err != nil:
		p.logger.Error("execution plan encode failed, sending minimal plan", "project", run.ID, "error", err)
		em.log(AgentSystem, PhaseDecision, "plan_encode_failed",
			"Execution plan could not be encoded; sending a minimal plan", nil)
		planEv = minimalPlanEvent(*run.Plan)
	case reduced:
		p.logger.Error("execution plan encode failed, sending reduced plan", "project", run.ID)
	}

	em.send(reportEv)
	em.send(planEv)
	em.send(events.Complete())
	return run.advance(StateStreamed)
}

// planEvent encodes plan, dropping the coordination report when the full
// plan cannot be encoded.
func planEvent(plan ExecutionPlan) (ev events.Event, reduced bool, err error) {
	ev, err = events.Plan(plan)
	if err == nil {
		return ev, false, nil
	}
	ev, rerr := events.Plan(plan.Reduced())
	if rerr != nil {
		return events.Event{}, true, fmt.Errorf("orchestrator: encode plan: %w", err)
	}
	return ev, true, nil
}

// minimalPlanEvent carries only the identifying fields of plan. A map of
// strings always encodes.
func minimalPlanEvent(plan ExecutionPlan) events.Event {
	data, _ := json.Marshal(map[string]string{
		"project_id": plan.ProjectID,
		"product":    plan.Product,
		"intent":     plan.Intent,
		"status":     "degraded",
	})
	return events.Event{Type: events.TypePlan, Data: data}
}
