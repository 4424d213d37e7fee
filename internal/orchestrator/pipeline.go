package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dusk-indust/procure/internal/events"
	"github.com/dusk-indust/procure/internal/generator"
	"github.com/dusk-indust/procure/internal/partner"
	"github.com/dusk-indust/procure/internal/payload"
	"github.com/dusk-indust/procure/internal/policy"
	"github.com/dusk-indust/procure/internal/telemetry"
)

// Verifier evaluates trust and policy checks for a run.
type Verifier interface {
	Evaluate(ctx context.Context, in policy.Input) ([]policy.Decision, error)
}

var _ Verifier = (*policy.Engine)(nil)

// Pipeline drives project runs through every stage. A Pipeline is safe for
// concurrent use; each Run owns its own ProjectRun.
type Pipeline struct {
	gen         generator.Generator
	registry    *partner.Registry
	cfg         Config
	logger      *slog.Logger
	instruments *telemetry.Instruments
	tracer      trace.Tracer
	clock       func() time.Time

	verifier     Verifier
	verifierOnce sync.Once
	verifierErr  error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig sets the pipeline configuration.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.cfg = cfg.withDefaults() }
}

// WithRegistry sets the partner registry. The default is partner.Default().
func WithRegistry(r *partner.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithVerifier sets the policy evaluator. The default is the built-in
// policy, prepared on first use.
func WithVerifier(v Verifier) Option {
	return func(p *Pipeline) { p.verifier = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithInstruments records pipeline metrics.
func WithInstruments(in *telemetry.Instruments) Option {
	return func(p *Pipeline) { p.instruments = in }
}

// WithTracer sets the tracer used for run and stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithClock sets the event timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// NewPipeline creates a Pipeline backed by gen.
func NewPipeline(gen generator.Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		gen:    gen,
		cfg:    DefaultConfig(),
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = partner.Default()
	}
	if p.tracer == nil {
		p.tracer = telemetry.Tracer()
	}
	return p
}

// Registry returns the partner registry runs are planned against.
func (p *Pipeline) Registry() *partner.Registry { return p.registry }

// stageFunc is one step of a run.
type stageFunc func(ctx context.Context, run *ProjectRun, em *emitter) error

// Run executes the full pipeline for intent, sending every event to sink.
// The returned error is ErrEmptyIntent or an internal ordering fault; stage
// failures are reported through events and the run's results instead.
//
// Cancelling ctx stops further generator calls and retries. Stages that
// have not run yet fail fast and the remaining events are still emitted.
func (p *Pipeline) Run(ctx context.Context, intent string, sink events.Sink) (*ProjectRun, error) {
	intent = strings.TrimSpace(intent)
	if intent == "" {
		return nil, ErrEmptyIntent
	}
	if sink == nil {
		sink = events.Discard
	}

	run := NewProjectRun(intent)
	em := &emitter{
		sink:   sink,
		clock:  p.clock,
		logger: p.logger,
		runID:  run.ID,
	}

	ctx, span := p.tracer.Start(ctx, "procure.run",
		trace.WithAttributes(attribute.String("procure.project_id", run.ID)))
	defer span.End()

	p.logger.Info("run started", "project", run.ID, "intent", clip(intent, 80))
	start := p.clock()

	em.log(AgentSystem, PhaseInitialization, "project_created",
		fmt.Sprintf("Project %s initialized", run.ID), nil)
	p.pause(ctx, p.cfg.Pacing.Step)

	steps := []struct {
		name string
		fn   stageFunc
	}{
		{"analysis", p.analyze},
		{"discovery", p.discover},
		{"supplier", p.quote},
		{"verification", p.verify},
		{"manufacturer", p.assemble},
		{"logistics", p.route},
		{"retailer", p.retail},
		{"reconciliation", p.reconcile},
		{"compile", p.compile},
		{"stream", p.stream},
	}
	for _, s := range steps {
		if err := p.stage(ctx, s.name, run, em, s.fn); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.logger.Error("run aborted", "project", run.ID, "stage", s.name, "error", err)
			return run, err
		}
	}

	p.logger.Info("run finished",
		"project", run.ID,
		"state", run.State.String(),
		"stage_errors", run.StageErrors(),
		"corrections", len(run.Corrections),
		"events", em.sent,
		"elapsed", p.clock().Sub(start).Round(time.Millisecond),
	)
	return run, nil
}

// stage runs fn inside its own span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, run *ProjectRun, em *emitter, fn stageFunc) error {
	ctx, span := p.tracer.Start(ctx, "procure.stage."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx, run, em)
	p.instruments.StageDuration(ctx, name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// pause waits d unless ctx is done first.
func (p *Pipeline) pause(ctx context.Context, d time.Duration) {
	sleep(ctx, d)
}

// generate performs one generator call and decodes its answer into T.
func generate[T payload.Payload](ctx context.Context, p *Pipeline, req generator.Request, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, fmt.Errorf("orchestrator: build %s request: %w", req.Role, err)
	}
	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("orchestrator: %s: %w", req.Role, err)
	}

	raw, err := p.gen.Generate(ctx, req)
	if err == nil {
		raw, err = generator.Object(raw)
	}
	var v T
	if err == nil {
		v, err = payload.Decode[T](raw)
	}
	p.instruments.GeneratorCall(ctx, string(req.Role), err == nil)
	if err != nil {
		return zero, fmt.Errorf("orchestrator: %s: %w", req.Role, err)
	}
	return v, nil
}

// stageFailed reports a generator stage that produced nothing usable.
func (p *Pipeline) stageFailed(ctx context.Context, run *ProjectRun, em *emitter, agent events.Agent, phase string, stage Stage, err error) {
	p.logger.Warn("stage failed", "project", run.ID, "stage", stage, "error", err)
	trace.SpanFromContext(ctx).RecordError(err)
	em.log(agent, phase, string(stage)+"_error",
		fmt.Sprintf("%s stage failed: %s", strings.ToUpper(string(stage[:1]))+string(stage[1:]), clip(err.Error(), 160)), nil)
}

// applyCorrections records and reports reconciled figures.
func (p *Pipeline) applyCorrections(ctx context.Context, run *ProjectRun, em *emitter, cs []Correction) {
	for _, c := range cs {
		run.Corrections = append(run.Corrections, c)
		p.instruments.Correction(ctx, c.Field)
		p.logger.Warn("generator figure corrected",
			"project", run.ID,
			"field", c.Field,
			"reported", c.Reported,
			"corrected", c.Corrected,
		)
		name := "cost_corrected"
		if c.Field == "retail_price_usd" {
			name = "price_corrected"
		}
		em.log(AgentProcurement, PhaseReconciliation, name,
			fmt.Sprintf("Corrected %s: reported %s, using %s (%s)", c.Field, money(c.Reported), money(c.Corrected), c.Reason), c)
	}
}
