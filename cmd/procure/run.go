package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/procure/internal/archive"
	"github.com/dusk-indust/procure/internal/events"
	"github.com/dusk-indust/procure/internal/export"
	"github.com/dusk-indust/procure/internal/orchestrator"
	"github.com/dusk-indust/procure/internal/server"
)

func runCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "run <intent...>",
		Short: "Plan a product request in-process",
		Long: `Run the full pipeline locally and print progress as it happens.
With --json the execution plan is written to stdout and progress to stderr.`,
		Example: `  procure run Build 100 electric bikes
  procure run --json "Build a drone" > plan.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			out := cmd.OutOrStdout()
			progress := out
			if asJSON {
				progress = cmd.ErrOrStderr()
			}

			intent := strings.Join(args, " ")
			var sink events.Sink = newProgressPrinter(progress)
			var sess *archive.Session
			if rt.archive != nil {
				if sess, err = rt.archive.Begin(ctx, intent); err != nil {
					a.logger.Warn("run will not be archived", "error", err)
				} else {
					sink = events.Multi(sink, sess)
				}
			}

			run, err := rt.pipeline.Run(ctx, intent, sink)
			if sess != nil {
				if ferr := sess.Finish(run, err); ferr != nil {
					a.logger.Warn("archive run failed", "run", sess.ID(), "error", ferr)
				}
			}
			if err != nil {
				return err
			}

			if asJSON {
				return export.WriteJSON(out, run.Plan)
			}
			printPlanSummary(out, run.Plan)
			if sess != nil {
				fmt.Fprintf(out, "\nArchived as %s\n", sess.ID())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "write the execution plan as JSON")
	return cmd
}

func submitCmd(a *app) *cobra.Command {
	var (
		serverURL string
		asJSON    bool
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "submit <intent...>",
		Short: "Send a product request to a running procure server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			out := cmd.OutOrStdout()
			progress := out
			if asJSON {
				progress = cmd.ErrOrStderr()
			}

			plan, err := submit(ctx, serverURL, strings.Join(args, " "), newProgressPrinter(progress))
			if err != nil {
				return err
			}
			if asJSON {
				return export.WriteJSON(out, plan)
			}
			printPlanSummary(out, plan)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8000", "procure server base URL")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write the execution plan as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "give up after this long")
	return cmd
}

// submit posts intent to the server at base and relays the event stream to
// sink, returning the execution plan carried by the plan event.
func submit(ctx context.Context, base, intent string, sink events.Sink) (*orchestrator.ExecutionPlan, error) {
	body, err := json.Marshal(server.RunRequest{Intent: intent})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/api/run", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("submit: %s: %s", resp.Status, e.Error)
		}
		return nil, fmt.Errorf("submit: %s", resp.Status)
	}

	var (
		plan     *orchestrator.ExecutionPlan
		complete bool
	)
	for r := range events.ReadEvents(ctx, resp.Body) {
		if r.Err != nil {
			return nil, fmt.Errorf("submit: read stream: %w", r.Err)
		}
		if err := sink.Send(r.Event); err != nil {
			return nil, err
		}
		switch r.Event.Type {
		case events.TypePlan:
			var p orchestrator.ExecutionPlan
			if err := r.Event.Decode(&p); err != nil {
				return nil, fmt.Errorf("submit: decode plan: %w", err)
			}
			plan = &p
		case events.TypeComplete:
			complete = true
		}
	}
	if !complete {
		if err := ctx.Err(); err != nil {
			return plan, err
		}
		return plan, errors.New("submit: stream ended before the run completed")
	}
	return plan, nil
}
