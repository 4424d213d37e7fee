package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/procure/internal/agent"
	"github.com/dusk-indust/procure/internal/mcptools"
	"github.com/dusk-indust/procure/internal/server"
)

// shutdownGrace bounds how long open streams may keep the process alive.
const shutdownGrace = 30 * time.Second

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, event streams, and agent endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx := cmd.Context()
			rt, err := a.wire(ctx, true)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.close(context.Background()); err != nil {
					a.logger.Warn("shutdown", "error", err)
				}
			}()

			opts := []server.Option{
				server.WithLogger(a.logger),
				server.WithBaseURL(a.cfg.Server.BaseURL),
				server.WithAgentGenerator(rt.gen),
				server.WithCancelOnDisconnect(a.cfg.Pipeline.CancelOnDisconnect),
			}
			if rt.archive != nil {
				opts = append(opts, server.WithArchive(rt.archive))
				a.logger.Info("archiving runs", "path", rt.archive.Path())
			}
			srv := server.New(rt.pipeline, opts...)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Start(a.cfg.Server.Addr) })
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("shutting down")
				sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				return srv.Shutdown(sctx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func mcpCmd(a *app) *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve procurement tools over the Model Context Protocol",
		Long: `Serve the list_partners, select_partners, list_agents, search_agents, and
run_procurement tools on stdio, or over streamable HTTP with --http.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := a.wire(ctx, false)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.close(context.Background()); err != nil {
					a.logger.Warn("shutdown", "error", err)
				}
			}()

			srv := mcptools.NewProcureMCPServer(mcptools.NewProcureService(rt.pipeline, agent.Default()))
			if httpAddr != "" {
				a.logger.Info("mcp listening", "addr", httpAddr)
				return mcptools.RunHTTP(ctx, srv, httpAddr)
			}
			return mcptools.RunStdio(ctx, srv)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}
