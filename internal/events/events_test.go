package events

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var supplier = Agent{ID: "supplier_alpha", Name: "Supplier Agent"}

func TestStream_PreservesOrderUnderBurst(t *testing.T) {
	s := NewStream()
	const n = 10000

	go func() {
		for i := 0; i < n; i++ {
			assert.NoError(t, s.Send(Event{Type: TypeLog, Phase: strconv.Itoa(i)}))
		}
		s.Close()
	}()

	i := 0
	for e := range s.Subscribe() {
		assert.Equal(t, strconv.Itoa(i), e.Phase)
		i++
	}
	assert.Equal(t, n, i, "every event delivered")
}

func TestStream_SendNeverBlocksWithoutReader(t *testing.T) {
	s := NewStream()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			_ = s.Send(Event{Type: TypeLog})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked with no reader")
	}

	s.Close()
	count := 0
	for range s.Subscribe() {
		count++
	}
	assert.Equal(t, 1000, count, "queued events flushed after Close")
}

func TestStream_SendAfterClose(t *testing.T) {
	s := NewStream()
	s.Close()
	s.Close()
	assert.ErrorIs(t, s.Send(Complete()), ErrClosed)

	_, open := <-s.Subscribe()
	assert.False(t, open)
}

func TestRecorderAndMulti(t *testing.T) {
	var a, b Recorder
	boom := errors.New("boom")
	failing := SinkFunc(func(Event) error { return boom })

	sink := Multi(&a, failing, &b)
	err := sink.Send(Log(supplier, "quotes_generated", "done", "supplier_coordination"))
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len(), "later sinks still receive the event")
	assert.Equal(t, "quotes_generated", b.Events()[0].Event)
}

func TestEventConstructors(t *testing.T) {
	e := Log(supplier, "quotes_generated", "3 quotes", "supplier_coordination").
		WithData(map[string]any{"quotes": 3})
	assert.Equal(t, TypeLog, e.Type)
	assert.Equal(t, "supplier_alpha", e.AgentID)
	assert.JSONEq(t, `{"quotes":3}`, string(e.Data))

	bad := Log(supplier, "x", "details", "").WithData(make(chan int))
	assert.Nil(t, bad.Data)
	assert.Contains(t, bad.Details, "data unavailable")

	_, err := Plan(map[string]any{"f": func() {}})
	assert.Error(t, err)

	p, err := Plan(map[string]string{"project_id": "proj_1"})
	require.NoError(t, err)
	var back map[string]string
	require.NoError(t, p.Decode(&back))
	assert.Equal(t, "proj_1", back["project_id"])

	assert.Error(t, Complete().Decode(&back))
}

func TestSSE_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewSSEWriter(&buf)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := Log(supplier, "contacting_supplier", "Sending A2A request", "supplier_coordination")
	first.Timestamp = ts
	plan, err := Plan(map[string]int{"total": 5})
	require.NoError(t, err)

	require.NoError(t, w.Send(first))
	require.NoError(t, w.Send(plan))
	require.NoError(t, w.Send(Complete()))
	assert.True(t, strings.HasPrefix(buf.String(), "data: {"))

	var got []Event
	for r := range ReadEvents(context.Background(), io.NopCloser(&buf)) {
		require.NoError(t, r.Err)
		got = append(got, r.Event)
	}
	require.Len(t, got, 3)
	assert.Equal(t, first, got[0])
	assert.JSONEq(t, `{"total":5}`, string(got[1].Data))
	assert.Equal(t, TypeComplete, got[2].Type)
}

func TestReadEvents_CommentsMultilineAndGarbage(t *testing.T) {
	raw := ": keep-alive\n" +
		"data: {\"type\":\n" +
		"data: \"log\",\"event\":\"a\"}\n\n" +
		"event: ignored\n" +
		"data: not-json\n\n" +
		"data:{\"type\":\"complete\"}"

	var got []Received
	for r := range ReadEvents(context.Background(), io.NopCloser(strings.NewReader(raw))) {
		got = append(got, r)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Event.Event)
	assert.Error(t, got[1].Err)
	assert.Equal(t, TypeComplete, got[2].Event.Type, "trailing frame without blank line")
}

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		event string
		want  string
	}{
		{"project_created", "○"},
		{"contacting_supplier", "●"},
		{"quotes_generated", "✓"},
		{"analysis_error", "✗"},
	}
	for _, tt := range tests {
		line := FormatProgress(Log(supplier, tt.event, "details here", ""))
		assert.True(t, strings.HasPrefix(line, "  "+tt.want+" "), "%s: %q", tt.event, line)
		assert.Contains(t, line, "[Supplier Agent]")
		assert.Contains(t, line, "details here")
	}
	assert.Equal(t, "  ✓ complete", FormatProgress(Complete()))
}
