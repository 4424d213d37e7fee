package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dusk-indust/procure/internal/agent"
	"github.com/dusk-indust/procure/internal/archive"
	"github.com/dusk-indust/procure/internal/events"
	"github.com/dusk-indust/procure/internal/export"
	"github.com/dusk-indust/procure/internal/orchestrator"
	"github.com/dusk-indust/procure/internal/partner"
	"github.com/dusk-indust/procure/internal/ranking"
	"github.com/dusk-indust/procure/internal/status"
)

// RunRequest is the body of POST /api/run.
type RunRequest struct {
	Intent string `json:"intent"`
}

// health handles GET /api/health.
func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"agents": len(s.agents.List()),
	})
}

// listAgents handles GET /api/registry. The role, capability, and
// jurisdiction query parameters narrow the list; capability may repeat or
// hold a comma-separated list.
func (s *Server) listAgents(c echo.Context) error {
	q := agent.Query{
		Role:         c.QueryParam("role"),
		Jurisdiction: c.QueryParam("jurisdiction"),
	}
	for _, v := range c.QueryParams()["capability"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				q.Capability = append(q.Capability, name)
			}
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"agents": s.agents.Search(q)})
}

// getAgent handles GET /api/registry/:id.
func (s *Server) getAgent(c echo.Context) error {
	f, ok := s.agents.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Agent not found"))
	}
	return c.JSON(http.StatusOK, f)
}

// agentCard handles GET /.well-known/agent-card.json with the card of the
// procurement agent.
func (s *Server) agentCard(c echo.Context) error {
	f, ok := s.agents.Get(orchestrator.AgentProcurement.ID)
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Agent not found"))
	}
	return c.JSON(http.StatusOK, f.Card(s.publicURL(c)))
}

func (s *Server) publicURL(c echo.Context) string {
	if s.baseURL != "" {
		return s.baseURL
	}
	return c.Scheme() + "://" + c.Request().Host
}

// listPartners handles GET /api/partners/:kind.
func (s *Server) listPartners(c echo.Context) error {
	kind, err := partner.ParseKind(c.Param("kind"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody(err.Error()))
	}
	reg := s.pipeline.Registry()
	var list any
	switch kind {
	case partner.KindSuppliers:
		list = reg.Suppliers()
	case partner.KindManufacturers:
		list = reg.Manufacturers()
	default:
		list = reg.Logistics()
	}
	return c.JSON(http.StatusOK, map[string]any{"kind": kind, "partners": list})
}

// selectPartners handles POST /api/partners/:kind/select with a
// ranking.Query body.
func (s *Server) selectPartners(c echo.Context) error {
	kind, err := partner.ParseKind(c.Param("kind"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody(err.Error()))
	}
	var q ranking.Query
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body"))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"kind":     kind,
		"selected": ranking.Select(s.pipeline.Registry(), kind, q),
	})
}

// run handles POST /api/run. The response is an event stream that ends
// with a complete event; an empty intent is rejected before the stream
// opens. Events reach the client through an events.Stream, so the run
// never waits on the client.
func (s *Server) run(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body"))
	}
	intent := strings.TrimSpace(req.Intent)
	if intent == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Intent is required"))
	}

	ctx := c.Request().Context()
	if !s.cancelOnDisconnect {
		ctx = context.WithoutCancel(ctx)
	}

	res := c.Response()
	events.SetHeaders(res.Header())
	res.WriteHeader(http.StatusOK)
	res.Flush()

	stream := events.NewStream()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.forward(c.Request().Context(), stream.Subscribe(), events.NewSSEWriter(res))
	}()

	var sink events.Sink = stream
	var sess *archive.Session
	if s.archive != nil {
		var err error
		sess, err = s.archive.Begin(ctx, intent)
		if err != nil {
			s.logger.Warn("run will not be archived", "error", err)
		} else {
			sink = events.Multi(sink, sess)
		}
	}

	run, err := s.pipeline.Run(ctx, intent, sink)
	stream.Close()
	if sess != nil {
		if ferr := sess.Finish(run, err); ferr != nil {
			s.logger.Warn("archive run failed", "run", sess.ID(), "error", ferr)
		}
	}
	if err != nil {
		s.logger.Error("run failed", "error", err)
	}
	<-done
	return nil
}

// forward writes events from in to w until in closes. Once the client is
// gone the rest of in is drained unwritten.
func (s *Server) forward(ctx context.Context, in <-chan events.Event, w events.Sink) {
	live := true
	for e := range in {
		if !live {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = w.Send(e)
		}
		if err != nil {
			live = false
			s.logger.Debug("client gone, draining run events", "error", err)
		}
	}
}

// listRuns handles GET /api/runs?limit=N.
func (s *Server) listRuns(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := s.archive.ListRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to list runs"))
	}
	if runs == nil {
		runs = []*archive.Run{}
	}
	return c.JSON(http.StatusOK, map[string]any{"runs": runs})
}

// getRun handles GET /api/runs/:id; id is the archive id or project id.
func (s *Server) getRun(c echo.Context) error {
	r, err := s.archive.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.archiveError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// runEvents handles GET /api/runs/:id/events. With Accept:
// text/event-stream the stored events are replayed as a stream.
func (s *Server) runEvents(c echo.Context) error {
	ctx := c.Request().Context()
	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), "text/event-stream") {
		if _, err := s.archive.GetRun(ctx, c.Param("id")); err != nil {
			return s.archiveError(c, err)
		}
		res := c.Response()
		events.SetHeaders(res.Header())
		res.WriteHeader(http.StatusOK)
		if err := s.archive.Replay(ctx, c.Param("id"), events.NewSSEWriter(res)); err != nil {
			s.logger.Warn("replay interrupted", "run", c.Param("id"), "error", err)
		}
		return nil
	}

	evs, err := s.archive.Events(ctx, c.Param("id"))
	if err != nil {
		return s.archiveError(c, err)
	}
	if evs == nil {
		evs = []events.Event{}
	}
	return c.JSON(http.StatusOK, map[string]any{"events": evs})
}

// runStatus handles GET /api/runs/:id/status.
func (s *Server) runStatus(c echo.Context) error {
	evs, err := s.archive.Events(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.archiveError(c, err)
	}
	return c.JSON(http.StatusOK, status.FromEvents(evs))
}

// runDiagram handles GET /api/runs/:id/diagram.
func (s *Server) runDiagram(c echo.Context) error {
	r, err := s.archive.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.archiveError(c, err)
	}
	if len(r.Plan) == 0 {
		return c.JSON(http.StatusNotFound, errorBody("Run has no plan"))
	}
	plan, err := r.DecodePlan()
	if err != nil {
		s.logger.Error("decode stored plan", "run", r.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("Stored plan is unreadable"))
	}
	return c.String(http.StatusOK, export.Mermaid(*plan))
}

func (s *Server) archiveError(c echo.Context, err error) error {
	if errors.Is(err, archive.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorBody("Run not found"))
	}
	s.logger.Error("archive lookup", "id", c.Param("id"), "error", err)
	return c.JSON(http.StatusInternalServerError, errorBody("Archive lookup failed"))
}
