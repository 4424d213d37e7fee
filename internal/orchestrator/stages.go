package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dusk-indust/procure/internal/generator"
	"github.com/dusk-indust/procure/internal/num"
	"github.com/dusk-indust/procure/internal/partner"
	"github.com/dusk-indust/procure/internal/payload"
	"github.com/dusk-indust/procure/internal/policy"
	"github.com/dusk-indust/procure/internal/ranking"
)

// DefaultManufacturerLocation is the pickup region used when the
// manufacturer stage names no location.
const DefaultManufacturerLocation = "EU"

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

func (p *Pipeline) analyze(ctx context.Context, run *ProjectRun, em *emitter) error {
	em.log(AgentProcurement, PhaseAnalysis, "analyzing_intent",
		"Analyzing request and identifying all required components...", nil)
	p.pause(ctx, p.cfg.Pacing.Brief)

	res := StageResult{Stage: StageAnalysis, Status: StatusOK}
	req, err := generator.AnalysisRequest(run.ID, generator.AnalysisInput{Intent: run.Intent})
	a, err := generate[payload.Analysis](ctx, p, req, err)
	if err != nil {
		p.logger.Warn("intent analysis failed, using fallback", "project", run.ID, "error", err)
		p.instruments.Fallback(ctx, string(StageAnalysis))
		em.log(AgentProcurement, PhaseAnalysis, "analysis_error",
			fmt.Sprintf("Intent analysis failed: %s. Using fallback.", clip(err.Error(), 100)), nil)
		a = payload.FallbackAnalysis(run.Intent)
		res.Status = StatusFallback
		res.Errors = []string{err.Error()}
	}
	run.Analysis = a
	res.Payload = a

	if err := run.record(res); err != nil {
		return err
	}
	if err := run.advance(StateAnalyzed); err != nil {
		return err
	}

	em.log(AgentProcurement, PhaseAnalysis, "components_identified",
		fmt.Sprintf("Identified %d component groups for: %s", len(a.Components), run.Product()),
		componentsData{Product: run.Product(), ComponentCount: len(a.Components), Components: a.Components})
	p.pause(ctx, p.cfg.Pacing.Settle)
	return nil
}

// ---------------------------------------------------------------------------
// Discovery
// ---------------------------------------------------------------------------

func (p *Pipeline) discover(ctx context.Context, run *ProjectRun, em *emitter) error {
	counts := p.registry.Counts()
	em.log(AgentProcurement, PhaseDiscovery, "querying_registry",
		fmt.Sprintf("Querying agent registry and partner databases (%d suppliers, %d manufacturers, %d logistics providers)...",
			counts.Suppliers, counts.Manufacturers, counts.LogisticsProviders), nil)
	p.pause(ctx, p.cfg.Pacing.Step)

	comps := run.Analysis.Components
	sizes := ranking.ShortlistSizes(len(comps))
	ref := p.cfg.Reference
	run.Shortlist = Shortlist{
		Suppliers:     ranking.SelectSuppliers(p.registry, ranking.SupplierKeywords(comps), &ref, sizes.Suppliers),
		Manufacturers: ranking.SelectManufacturers(p.registry, ranking.ManufacturerKeywords(comps), &ref, sizes.Manufacturers),
		Logistics:     ranking.SelectLogistics(p.registry, ref, "", sizes.Logistics),
	}
	if err := run.advance(StateDiscovered); err != nil {
		return err
	}

	var data partnersData
	for _, s := range run.Shortlist.Suppliers {
		data.SelectedSuppliers = append(data.SelectedSuppliers,
			partnerRef{Name: s.Record.Name, Location: s.Record.Place(), Score: s.Score})
	}
	for _, m := range run.Shortlist.Manufacturers {
		data.SelectedManufacturers = append(data.SelectedManufacturers,
			partnerRef{Name: m.Record.Name, Location: m.Record.Place(), Score: m.Score})
	}
	for _, l := range run.Shortlist.Logistics {
		data.SelectedLogistics = append(data.SelectedLogistics,
			partnerRef{Name: l.Record.Name, Hub: l.Record.Place(), Score: l.Score})
	}
	short := run.Shortlist.Counts()
	em.log(AgentProcurement, PhaseDiscovery, "partners_selected",
		fmt.Sprintf("Selected top %d suppliers, %d manufacturers, %d logistics providers based on capability, distance, cost, and reliability scoring",
			short.Suppliers, short.Manufacturers, short.LogisticsProviders), data)
	p.pause(ctx, p.cfg.Pacing.Step)
	return nil
}

// ---------------------------------------------------------------------------
// Supplier quoting
// ---------------------------------------------------------------------------

func (p *Pipeline) quote(ctx context.Context, run *ProjectRun, em *emitter) error {
	comps := run.Analysis.Components
	suppliers := suppliersOf(run.Shortlist.Suppliers)
	names := make([]string, len(suppliers))
	for i, s := range suppliers {
		names[i] = s.Name
	}

	em.log(AgentProcurement, PhaseSupplier, "contacting_supplier",
		fmt.Sprintf("Sending A2A availability request to Supplier Agent with %d pre-selected suppliers...", len(suppliers)),
		a2aMessage{MessageType: messageRequest, To: AgentSupplier.ID})
	p.pause(ctx, p.cfg.Pacing.Brief)
	em.log(AgentSupplier, PhaseSupplier, "processing_request",
		fmt.Sprintf("Evaluating %d components against %d suppliers: %s", len(comps), len(suppliers), orNA(strings.Join(names, ", "))), nil)

	exec := Executor{
		BatchSize:   p.cfg.BatchSize,
		MaxParallel: p.cfg.MaxParallel,
		Retries:     p.cfg.Retries,
		RetryDelay:  p.cfg.RetryDelay,
		OnBatch: func(b BatchReport) {
			data := batchData{Batch: b.Index, Batches: b.Batches, Components: b.Size, Attempts: b.Attempts, Quotes: b.Quotes}
			if b.Err != nil {
				data.Error = b.Err.Error()
				p.instruments.BatchFailure(ctx)
				p.logger.Warn("supplier batch failed",
					"project", run.ID, "batch", b.Index, "attempts", b.Attempts, "error", b.Err)
				em.log(AgentSupplier, PhaseSupplier, "batch_failed",
					fmt.Sprintf("Batch %d/%d failed after %d attempt(s): %s", b.Index, b.Batches, b.Attempts, clip(b.Err.Error(), 120)), data)
				return
			}
			em.log(AgentSupplier, PhaseSupplier, "batch_quoted",
				fmt.Sprintf("Batch %d/%d: %d quotes for %d components", b.Index, b.Batches, b.Quotes, b.Size), data)
		},
	}
	product := run.Product()
	outcome := exec.Run(ctx, comps, func(ctx context.Context, batch []payload.Component) (payload.SupplierQuotes, error) {
		req, err := generator.SupplierRequest(run.ID, generator.SupplierInput{
			Product:    product,
			Components: batch,
			Suppliers:  suppliers,
		})
		return generate[payload.SupplierQuotes](ctx, p, req, err)
	})

	res := StageResult{Stage: StageSupplier, Status: outcome.Status, Errors: outcome.Errors}
	quotes := outcome.Quotes
	if len(quotes.Quotes) == 0 && len(comps) > 0 {
		fb := SynthesizeQuotes(comps, suppliers)
		if len(fb.Quotes) > 0 {
			quotes = fb
			res.Status = StatusFallback
			p.instruments.Fallback(ctx, string(StageSupplier))
			p.logger.Warn("no supplier quotes, using fallback quotes",
				"project", run.ID, "components", len(comps), "batch_errors", len(outcome.Errors))
			em.log(AgentSupplier, PhaseSupplier, "fallback_quotes",
				fmt.Sprintf("No quotes returned for %d components. Built %d fallback quotes across %d suppliers. Total: %s",
					len(comps), len(fb.Quotes), len(fb.SuppliersUsed), money(fb.TotalEstimatedCost.Value())), nil)
		} else {
			res.Status = StatusError
			res.Errors = append(res.Errors, "no quotes returned and no suppliers shortlisted")
			p.stageFailed(ctx, run, em, AgentSupplier, PhaseSupplier, StageSupplier,
				fmt.Errorf("no quotes for %d components and no shortlisted suppliers", len(comps)))
		}
	}
	run.Quotes = quotes
	res.Payload = quotes

	if err := run.record(res); err != nil {
		return err
	}
	if err := run.advance(StateSupplierDone); err != nil {
		return err
	}

	em.log(AgentSupplier, PhaseSupplier, "quotes_generated",
		fmt.Sprintf("Generated %d component quotes across %d suppliers. Total: %s",
			len(quotes.Quotes), len(quotes.SuppliersUsed), money(quotes.TotalEstimatedCost.Value())),
		a2aMessage{MessageType: messageResponse, Status: res.Status, Response: quotes})
	p.pause(ctx, p.cfg.Pacing.Step)
	return nil
}

// ---------------------------------------------------------------------------
// Verification
// ---------------------------------------------------------------------------

// supplierChecks are the decisions reported at verification time.
var supplierChecks = []string{policy.CheckISO9001, policy.CheckIATF16949, policy.CheckReliability}

func (p *Pipeline) verify(ctx context.Context, run *ProjectRun, em *emitter) error {
	decisions := p.evaluate(ctx, run, p.policyInput(run, nil, nil, Timeline{}))

	trust := "passed"
	var checks []policy.Decision
	for _, name := range supplierChecks {
		d, ok := policy.Find(decisions, name)
		if !ok {
			continue
		}
		checks = append(checks, d)
		switch d.Status {
		case "failed", "warning", "error":
			trust = "flagged"
		}
	}
	if _, failed := policy.Find(decisions, "Report generation"); failed {
		trust = "error"
		checks = policy.Filter(decisions, policy.KindTrust)
	}

	used := []string(run.Quotes.SuppliersUsed)
	if used == nil {
		used = []string{}
	}
	em.log(AgentProcurement, PhaseVerification, "verifying_supplier",
		fmt.Sprintf("Verifying supplier certifications and policy compliance for %d selected partners...", len(used)),
		verificationData{TrustCheck: trust, VerifiedSuppliers: used, Checks: checks})
	p.pause(ctx, p.cfg.Pacing.Step)
	return nil
}

// ---------------------------------------------------------------------------
// Manufacturer
// ---------------------------------------------------------------------------

func (p *Pipeline) assemble(ctx context.Context, run *ProjectRun, em *emitter) error {
	mfrs := make([]partner.Manufacturer, len(run.Shortlist.Manufacturers))
	names := make([]string, len(mfrs))
	for i, m := range run.Shortlist.Manufacturers {
		mfrs[i] = m.Record
		names[i] = m.Record.Name
	}

	em.log(AgentProcurement, PhaseManufacturer, "contacting_manufacturer",
		fmt.Sprintf("Sending A2A assembly request to Manufacturer Agent with %d pre-selected facilities...", len(mfrs)),
		a2aMessage{MessageType: messageRequest, To: AgentManufacturer.ID})
	p.pause(ctx, p.cfg.Pacing.Brief)
	em.log(AgentManufacturer, PhaseManufacturer, "evaluating_capacity",
		fmt.Sprintf("Evaluating %d facilities: %s", len(mfrs), orNA(strings.Join(names, ", "))), nil)

	quotes := run.Quotes
	req, err := generator.ManufacturerRequest(run.ID, generator.ManufacturerInput{
		Product:       run.Product(),
		Components:    run.Analysis.Components,
		SupplierData:  &quotes,
		Manufacturers: mfrs,
	})
	plan, err := generate[payload.ManufacturerPlan](ctx, p, req, err)

	res := StageResult{Stage: StageManufacturer, Status: StatusOK}
	msg := a2aMessage{MessageType: messageResponse, Status: StatusOK}
	if err != nil {
		p.stageFailed(ctx, run, em, AgentManufacturer, PhaseManufacturer, StageManufacturer, err)
		res.Status, res.Errors = StatusError, []string{err.Error()}
		msg.Status, msg.Error = StatusError, err.Error()
	} else {
		run.Manufacturing = plan
		res.Payload = plan
		msg.Response = plan
	}
	if err := run.record(res); err != nil {
		return err
	}
	if err := run.advance(StateManufacturerDone); err != nil {
		return err
	}

	em.log(AgentManufacturer, PhaseManufacturer, "assembly_plan_ready",
		fmt.Sprintf("Selected: %s. Assembly time: %s days",
			orNA(run.Manufacturing.SelectedManufacturer.String()), days(run.Manufacturing.AssemblyPlan.TotalAssemblyTimeDays)), msg)
	p.pause(ctx, p.cfg.Pacing.Step)
	return nil
}

// ---------------------------------------------------------------------------
// Logistics
// ---------------------------------------------------------------------------

func (p *Pipeline) route(ctx context.Context, run *ProjectRun, em *emitter) error {
	providers := make([]partner.LogisticsProvider, len(run.Shortlist.Logistics))
	names := make([]string, len(providers))
	for i, l := range run.Shortlist.Logistics {
		providers[i] = l.Record
		names[i] = l.Record.Name
	}

	em.log(AgentProcurement, PhaseLogistics, "contacting_logistics",
		fmt.Sprintf("Sending A2A routing request to Logistics Agent with %d pre-selected carriers...", len(providers)),
		a2aMessage{MessageType: messageRequest, To: AgentLogistics.ID})
	p.pause(ctx, p.cfg.Pacing.Brief)
	em.log(AgentLogistics, PhaseLogistics, "planning_route",
		fmt.Sprintf("Evaluating %d carriers: %s", len(providers), orNA(strings.Join(names, ", "))), nil)

	location := run.Manufacturing.ManufacturerLocation.String()
	if strings.TrimSpace(location) == "" {
		location = DefaultManufacturerLocation
	}
	suppliers := []string(run.Quotes.SuppliersUsed)
	if suppliers == nil {
		suppliers = []string{}
	}
	req, err := generator.LogisticsRequest(run.ID, generator.LogisticsInput{
		Product: run.Product(),
		Pickup: generator.PickupInfo{
			Suppliers:            suppliers,
			Manufacturer:         orNA(run.Manufacturing.SelectedManufacturer.String()),
			ManufacturerLocation: location,
		},
		Delivery: generator.DeliveryInfo{
			Destination: "Customer location",
			ProductType: run.Product(),
		},
		Providers: providers,
	})
	plan, err := generate[payload.LogisticsPlan](ctx, p, req, err)

	res := StageResult{Stage: StageLogistics, Status: StatusOK}
	msg := a2aMessage{MessageType: messageResponse, Status: StatusOK}
	if err != nil {
		p.stageFailed(ctx, run, em, AgentLogistics, PhaseLogistics, StageLogistics, err)
		res.Status, res.Errors = StatusError, []string{err.Error()}
		msg.Status, msg.Error = StatusError, err.Error()
	} else {
		run.Logistics = plan
		res.Payload = plan
		msg.Response = plan
	}
	if err := run.record(res); err != nil {
		return err
	}
	if err := run.advance(StateLogisticsDone); err != nil {
		return err
	}

	em.log(AgentLogistics, PhaseLogistics, "route_planned",
		fmt.Sprintf("Selected: %s. Recommended route ready.", orNA(run.Logistics.SelectedProvider.String())), msg)
	p.pause(ctx, p.cfg.Pacing.Step)
	return nil
}

// ---------------------------------------------------------------------------
// Retailer
// ---------------------------------------------------------------------------

func (p *Pipeline) retail(ctx context.Context, run *ProjectRun, em *emitter) error {
	// Parts and shipping are settled before the retailer prices the product.
	p.applyCorrections(ctx, run, em, reconcileCosts(run))

	em.log(AgentProcurement, PhaseRetailer, "contacting_retailer",
		"Sending A2A delivery request to Retailer Agent...",
		a2aMessage{MessageType: messageRequest, To: AgentRetailer.ID})
	p.pause(ctx, p.cfg.Pacing.Brief)
	em.log(AgentRetailer, PhaseRetailer, "planning_delivery",
		"Creating customer delivery plan, packaging, and support...", nil)

	in := generator.RetailerInput{
		Product: run.Product(),
		Costs: generator.CostData{
			PartsCostUSD:            run.Costs.PartsUSD,
			ShippingCostUSD:         run.Costs.ShippingUSD,
			TotalProcurementCostUSD: run.Costs.TotalUSD,
		},
	}
	if r, ok := run.Result(StageManufacturer); ok && r.Status == StatusOK {
		m := run.Manufacturing
		in.Manufacturing = &m
	}
	if r, ok := run.Result(StageLogistics); ok && r.Status == StatusOK {
		l := run.Logistics
		in.Logistics = &l
	}
	req, err := generator.RetailerRequest(run.ID, in)
	plan, err := generate[payload.RetailerPlan](ctx, p, req, err)

	res := StageResult{Stage: StageRetailer, Status: StatusOK}
	msg := a2aMessage{MessageType: messageResponse, Status: StatusOK}
	if err != nil {
		p.stageFailed(ctx, run, em, AgentRetailer, PhaseRetailer, StageRetailer, err)
		res.Status, res.Errors = StatusError, []string{err.Error()}
		msg.Status, msg.Error = StatusError, err.Error()
	} else {
		run.Retail = plan
	}

	p.applyCorrections(ctx, run, em, reconcilePrice(run))
	if err == nil {
		res.Payload = run.Retail
		msg.Response = run.Retail
	}
	if err := run.record(res); err != nil {
		return err
	}
	if err := run.advance(StateRetailerDone); err != nil {
		return err
	}

	em.log(AgentRetailer, PhaseRetailer, "delivery_planned",
		fmt.Sprintf("Delivery plan ready. Estimated delivery: %s days. Retail price: %s",
			days(run.Retail.DeliveryPlan.EstimatedDeliveryDateOffsetDays), money(run.Costs.RetailPriceUSD)), msg)
	p.pause(ctx, p.cfg.Pacing.Step)
	return nil
}

// reconcile makes the final pass over every money figure before compiling.
func (p *Pipeline) reconcile(ctx context.Context, run *ProjectRun, em *emitter) error {
	p.applyCorrections(ctx, run, em, Reconcile(run))
	return run.advance(StateReconciled)
}

// days formats a day count, or "N/A" when it is missing.
func days(f num.Float) string {
	if f.Value() <= 0 {
		return "N/A"
	}
	return strconv.FormatFloat(f.Value(), 'f', -1, 64)
}
