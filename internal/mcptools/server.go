package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewProcureMCPServer creates an MCP server with the five procurement tools
// registered.
func NewProcureMCPServer(svc *ProcureService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "procure",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_partners",
		Description: "List every record of one partner registry: suppliers, manufacturers, or logistics providers.",
	}, svc.ListPartners)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "select_partners",
		Description: "Rank one partner registry against capability keywords and a reference location and return the best candidates with their scores.",
	}, svc.SelectPartners)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_agents",
		Description: "List the agents taking part in procurement runs with their roles, capabilities, and policies.",
	}, svc.ListAgents)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_agents",
		Description: "Find agents by role, capability, or jurisdiction.",
	}, svc.SearchAgents)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_procurement",
		Description: "Plan sourcing, assembly, shipping, and delivery for a product request. Returns the execution plan, the coordination report, and the number of progress events.",
	}, svc.RunProcurement)

	return server
}

// RunStdio runs server on stdio, blocking until stdin is closed or ctx is
// cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves server over streamable HTTP on addr until ctx is cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
