// Package archive persists procurement runs and their event streams in
// SQLite so finished plans can be listed, inspected, and replayed.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/dusk-indust/procure/internal/events"
	"github.com/dusk-indust/procure/internal/orchestrator"
)

// ErrNotFound is returned when no run matches an id.
var ErrNotFound = errors.New("archive: run not found")

// Run states stored alongside the pipeline states.
const (
	StateRunning = "running"
	StateFailed  = "failed"
)

// Run is the stored summary of one pipeline invocation.
type Run struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"project_id,omitempty"`
	Intent         string          `json:"intent"`
	Product        string          `json:"product,omitempty"`
	State          string          `json:"state"`
	StageErrors    int             `json:"stage_errors"`
	Corrections    int             `json:"corrections"`
	TotalCostUSD   float64         `json:"total_cost_usd"`
	RetailPriceUSD float64         `json:"retail_price_usd"`
	TotalDays      int             `json:"total_days"`
	Error          string          `json:"error,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	Plan           json.RawMessage `json:"plan,omitempty"`
}

// DecodePlan decodes the stored execution plan.
func (r *Run) DecodePlan() (*orchestrator.ExecutionPlan, error) {
	if len(r.Plan) == 0 {
		return nil, fmt.Errorf("archive: run %s has no plan", r.ID)
	}
	var p orchestrator.ExecutionPlan
	if err := json.Unmarshal(r.Plan, &p); err != nil {
		return nil, fmt.Errorf("archive: decode plan of %s: %w", r.ID, err)
	}
	return &p, nil
}

// Archive is a SQLite-backed run store. It is safe for concurrent use.
type Archive struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("archive: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("archive: open database: %w", err)
	}

	a := &Archive{db: db, path: path}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return a, nil
}

func (a *Archive) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			project_id TEXT,
			intent TEXT NOT NULL,
			product TEXT,
			state TEXT NOT NULL,
			stage_errors INTEGER NOT NULL DEFAULT 0,
			corrections INTEGER NOT NULL DEFAULT 0,
			total_cost_usd REAL NOT NULL DEFAULT 0,
			retail_price_usd REAL NOT NULL DEFAULT 0,
			total_days INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			plan_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC)`,
		`CREATE TABLE IF NOT EXISTS events (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			ts INTEGER NOT NULL,
			agent_id TEXT,
			agent_name TEXT,
			event TEXT,
			phase TEXT,
			details TEXT,
			data TEXT,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
	}
	for _, m := range migrations {
		if _, err := a.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Path returns the database file path.
func (a *Archive) Path() string { return a.path }

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

var _ events.Sink = (*Session)(nil)

// Session records one run as it executes. It is an events.Sink; each event
// is stored with a per-run sequence number.
type Session struct {
	a   *Archive
	ctx context.Context
	id  string

	mu  sync.Mutex
	seq int
}

// Begin stores a new run in the running state.
func (a *Archive) Begin(ctx context.Context, intent string) (*Session, error) {
	id := ulid.Make().String()
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO runs (id, intent, state, started_at) VALUES (?, ?, ?, ?)`,
		id, intent, StateRunning, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("archive: begin run: %w", err)
	}
	// Events keep being stored after the requesting client goes away.
	return &Session{a: a, ctx: context.WithoutCancel(ctx), id: id}, nil
}

// ID returns the archive id of the run.
func (s *Session) ID() string { return s.id }

// Send stores e.
func (s *Session) Send(e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	var ts int64
	if !e.Timestamp.IsZero() {
		ts = e.Timestamp.UnixNano()
	}
	var data sql.NullString
	if len(e.Data) > 0 {
		data = sql.NullString{String: string(e.Data), Valid: true}
	}
	_, err := s.a.db.ExecContext(s.ctx,
		`INSERT INTO events (run_id, seq, type, ts, agent_id, agent_name, event, phase, details, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.id, s.seq, string(e.Type), ts, e.AgentID, e.AgentName, e.Event, e.Phase, e.Details, data)
	if err != nil {
		return fmt.Errorf("archive: store event %d: %w", s.seq, err)
	}
	return nil
}

// Finish stores the outcome of run. runErr, when set, marks the run failed.
// run may be nil when the pipeline rejected the request.
func (s *Session) Finish(run *orchestrator.ProjectRun, runErr error) error {
	now := time.Now().UTC()
	if run == nil {
		msg := "run did not start"
		if runErr != nil {
			msg = runErr.Error()
		}
		_, err := s.a.db.ExecContext(s.ctx,
			`UPDATE runs SET state = ?, error = ?, finished_at = ? WHERE id = ?`,
			StateFailed, msg, now, s.id)
		if err != nil {
			return fmt.Errorf("archive: finish run: %w", err)
		}
		return nil
	}

	state := run.State.String()
	var errText sql.NullString
	if runErr != nil {
		state = StateFailed
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	var (
		plan      sql.NullString
		totalDays int
	)
	if run.Plan != nil {
		raw, err := json.Marshal(run.Plan)
		if err != nil {
			raw, err = json.Marshal(run.Plan.Reduced())
		}
		if err == nil {
			plan = sql.NullString{String: string(raw), Valid: true}
		}
		totalDays = run.Plan.Timeline.TotalDays
	}
	_, err := s.a.db.ExecContext(s.ctx,
		`UPDATE runs SET project_id = ?, product = ?, state = ?, stage_errors = ?, corrections = ?,
			total_cost_usd = ?, retail_price_usd = ?, total_days = ?, error = ?, finished_at = ?, plan_json = ?
		 WHERE id = ?`,
		run.ID, run.Product(), state, run.StageErrors(), len(run.Corrections),
		run.Costs.TotalUSD, run.Costs.RetailPriceUSD, totalDays, errText, now, plan, s.id)
	if err != nil {
		return fmt.Errorf("archive: finish run: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

const runColumns = `id, project_id, intent, product, state, stage_errors, corrections,
	total_cost_usd, retail_price_usd, total_days, error, started_at, finished_at, plan_json`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, withPlan bool) (*Run, error) {
	var (
		r          Run
		projectID  sql.NullString
		product    sql.NullString
		errText    sql.NullString
		finishedAt sql.NullTime
		plan       sql.NullString
	)
	err := row.Scan(&r.ID, &projectID, &r.Intent, &product, &r.State, &r.StageErrors, &r.Corrections,
		&r.TotalCostUSD, &r.RetailPriceUSD, &r.TotalDays, &errText, &r.StartedAt, &finishedAt, &plan)
	if err != nil {
		return nil, err
	}
	r.ProjectID = projectID.String
	r.Product = product.String
	r.Error = errText.String
	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	if withPlan && plan.Valid {
		r.Plan = json.RawMessage(plan.String)
	}
	return &r, nil
}

// GetRun returns the run with the given archive id or project id,
// including its plan.
func (a *Archive) GetRun(ctx context.Context, id string) (*Run, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR project_id = ? ORDER BY started_at DESC LIMIT 1`, id, id)
	r, err := scanRun(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first, without their plans.
func (a *Archive) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows, false)
		if err != nil {
			return nil, fmt.Errorf("archive: list runs: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Events returns the stored events of a run in emission order.
func (a *Archive) Events(ctx context.Context, id string) ([]events.Event, error) {
	r, err := a.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT type, ts, agent_id, agent_name, event, phase, details, data
		 FROM events WHERE run_id = ? ORDER BY seq`, r.ID)
	if err != nil {
		return nil, fmt.Errorf("archive: events %s: %w", id, err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			e       events.Event
			typ     string
			ts      int64
			agentID sql.NullString
			agent   sql.NullString
			name    sql.NullString
			phase   sql.NullString
			details sql.NullString
			data    sql.NullString
		)
		if err := rows.Scan(&typ, &ts, &agentID, &agent, &name, &phase, &details, &data); err != nil {
			return nil, fmt.Errorf("archive: events %s: %w", id, err)
		}
		e.Type = events.Type(typ)
		if ts != 0 {
			e.Timestamp = time.Unix(0, ts).UTC()
		}
		e.AgentID = agentID.String
		e.AgentName = agent.String
		e.Event = name.String
		e.Phase = phase.String
		e.Details = details.String
		if data.Valid {
			e.Data = json.RawMessage(data.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Replay sends the stored events of a run to sink.
func (a *Archive) Replay(ctx context.Context, id string, sink events.Sink) error {
	evs, err := a.Events(ctx, id)
	if err != nil {
		return err
	}
	for _, e := range evs {
		if err := sink.Send(e); err != nil {
			return fmt.Errorf("archive: replay %s: %w", id, err)
		}
	}
	return nil
}
