package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dusk-indust/procure/internal/archive"
	"github.com/dusk-indust/procure/internal/generator"
	"github.com/dusk-indust/procure/internal/orchestrator"
	"github.com/dusk-indust/procure/internal/policy"
	"github.com/dusk-indust/procure/internal/telemetry"
)

// services is a fully wired pipeline plus the resources it holds open.
type services struct {
	pipeline *orchestrator.Pipeline
	gen      generator.Generator
	mode     generator.Mode
	archive  *archive.Archive
	shutdown telemetry.Shutdown
}

// close releases the archive and flushes telemetry.
func (r *services) close(ctx context.Context) error {
	var errs []error
	if r.archive != nil {
		errs = append(errs, r.archive.Close())
	}
	if r.shutdown != nil {
		errs = append(errs, r.shutdown(ctx))
	}
	return errors.Join(errs...)
}

// wire builds the pipeline described by the loaded config. The archive is
// only opened when withArchive is set and a path is configured.
func (a *app) wire(ctx context.Context, withArchive bool) (*services, error) {
	rt := &services{}

	shutdown, err := telemetry.Init(ctx, a.cfg.Telemetry.Endpoint, a.cfg.Telemetry.ServiceName, version, a.cfg.Telemetry.Insecure)
	if err != nil {
		return nil, err
	}
	rt.shutdown = shutdown

	instruments, err := telemetry.NewInstruments(telemetry.Meter())
	if err != nil {
		_ = rt.close(ctx)
		return nil, err
	}

	rt.gen, rt.mode, err = generator.Detect(ctx, a.cfg.GeneratorSettings(a.logger))
	if err != nil {
		_ = rt.close(ctx)
		return nil, err
	}
	a.logger.Info("generator selected", "mode", rt.mode)

	verifier, err := policy.Load(ctx, a.cfg.Policy.Path)
	if err != nil {
		_ = rt.close(ctx)
		return nil, err
	}

	if withArchive && a.cfg.Archive.Path != "" {
		rt.archive, err = archive.Open(a.cfg.Archive.Path)
		if err != nil {
			_ = rt.close(ctx)
			return nil, err
		}
	}

	rt.pipeline = orchestrator.NewPipeline(rt.gen,
		orchestrator.WithConfig(a.cfg.Orchestrator()),
		orchestrator.WithVerifier(verifier),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithInstruments(instruments),
		orchestrator.WithTracer(telemetry.Tracer()),
	)
	return rt, nil
}

// openArchive opens the configured archive for read-only commands.
func (a *app) openArchive() (*archive.Archive, error) {
	if a.cfg.Archive.Path == "" {
		return nil, errors.New("no run archive configured (set archive.path or PROCURE_ARCHIVE)")
	}
	arch, err := archive.Open(a.cfg.Archive.Path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return arch, nil
}
