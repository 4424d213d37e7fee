// Command procure plans the sourcing, assembly, shipping, and delivery of a
// product from a plain-language request.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/procure/internal/agent"
	"github.com/dusk-indust/procure/internal/config"
)

// version is set by goreleaser at build time.
var version = "dev"

// app holds what every subcommand shares once the config is loaded.
type app struct {
	configDir string
	cfg       *config.Config
	logger    *slog.Logger
}

func main() {
	agent.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "procure",
		Short: "Multi-agent procurement planner",
		Long: `procure turns a request such as "Build 100 electric bikes" into an
execution plan: components, ranked partners, costs, and a delivery timeline.

Settings come from procure.yml, a .env file, and the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configDir)
			if err != nil {
				return err
			}
			a.cfg = cfg
			// Logs go to stderr so command output stays pipeable.
			a.logger = cfg.NewLogger(os.Stderr)
			slog.SetDefault(a.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configDir, "config-dir", ".", "directory holding procure.yml and .env")

	root.AddGroup(
		&cobra.Group{ID: "runs", Title: "Runs:"},
		&cobra.Group{ID: "registry", Title: "Registries:"},
		&cobra.Group{ID: "serve", Title: "Serving:"},
	)

	for _, c := range []*cobra.Command{runCmd(a), submitCmd(a), runsCmd(a), statusCmd(a), diagramCmd(a), exportCmd(a)} {
		c.GroupID = "runs"
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{partnersCmd(a), agentsCmd(a)} {
		c.GroupID = "registry"
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{serveCmd(a), mcpCmd(a)} {
		c.GroupID = "serve"
		root.AddCommand(c)
	}
	root.AddCommand(initCmd(), versionCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
