package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/procure/internal/events"
	"github.com/dusk-indust/procure/internal/generator"
	"github.com/dusk-indust/procure/internal/orchestrator"
)

func openTemp(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "runs", "procure.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func quietPipeline() *orchestrator.Pipeline {
	cfg := orchestrator.DefaultConfig()
	cfg.Pacing = orchestrator.Pacing{}
	return orchestrator.NewPipeline(generator.NewMock(), orchestrator.WithConfig(cfg))
}

func TestArchive_RecordsRunAndEvents(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)

	sess, err := a.Begin(ctx, "Build an electric bike")
	require.NoError(t, err)
	assert.Len(t, sess.ID(), 26, "ulid")

	rec := &events.Recorder{}
	run, runErr := quietPipeline().Run(ctx, "Build an electric bike", events.Multi(rec, sess))
	require.NoError(t, runErr)
	require.NoError(t, sess.Finish(run, runErr))

	got, err := a.GetRun(ctx, sess.ID())
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ProjectID)
	assert.Equal(t, "streamed", got.State)
	assert.Equal(t, "Electric bicycle", got.Product)
	assert.InDelta(t, run.Costs.TotalUSD, got.TotalCostUSD, 1e-6)
	assert.NotNil(t, got.FinishedAt)
	assert.NotEmpty(t, got.Plan)

	byProject, err := a.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID(), byProject.ID, "runs are also found by project id")

	stored, err := a.Events(ctx, run.ID)
	require.NoError(t, err)
	want := rec.Events()
	require.Len(t, stored, len(want))
	for i := range want {
		assert.Equal(t, want[i].Type, stored[i].Type)
		assert.Equal(t, want[i].Event, stored[i].Event)
		assert.Equal(t, want[i].Phase, stored[i].Phase)
		assert.True(t, want[i].Timestamp.Equal(stored[i].Timestamp))
	}
	assert.Equal(t, events.TypeComplete, stored[len(stored)-1].Type)
}

func TestArchive_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)

	var ids []string
	for _, intent := range []string{"first", "second", "third"} {
		s, err := a.Begin(ctx, intent)
		require.NoError(t, err)
		ids = append(ids, s.ID())
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := a.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
	assert.Equal(t, StateRunning, runs[0].State)
	assert.Nil(t, runs[0].Plan, "listings omit plans")
}

func TestArchive_FinishRejectedRun(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)

	s, err := a.Begin(ctx, "")
	require.NoError(t, err)
	require.NoError(t, s.Finish(nil, orchestrator.ErrEmptyIntent))

	got, err := a.GetRun(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, got.State)
	assert.Contains(t, got.Error, "intent is required")
}

func TestArchive_NotFound(t *testing.T) {
	a := openTemp(t)

	_, err := a.GetRun(context.Background(), "proj_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = a.Events(context.Background(), "proj_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchive_Replay(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)

	s, err := a.Begin(ctx, "replay me")
	require.NoError(t, err)
	require.NoError(t, s.Send(events.Log(orchestrator.AgentSystem, "project_created", "Project x initialized", orchestrator.PhaseInitialization)))
	require.NoError(t, s.Send(events.Complete()))

	rec := &events.Recorder{}
	require.NoError(t, a.Replay(ctx, s.ID(), rec))
	require.Equal(t, 2, rec.Len())
	assert.Equal(t, "project_created", rec.Events()[0].Event)

	boom := events.SinkFunc(func(events.Event) error { return errors.New("closed") })
	assert.Error(t, a.Replay(ctx, s.ID(), boom))
}

func TestArchive_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procure.db")
	a, err := Open(path)
	require.NoError(t, err)
	s, err := a.Begin(context.Background(), "persist")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := Open(path)
	require.NoError(t, err)
	defer b.Close()
	got, err := b.GetRun(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Equal(t, "persist", got.Intent)
}
