package a2a

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoAgent(ctx context.Context, msg Message) ([]Artifact, error) {
	if len(msg.Parts) == 0 {
		return nil, errors.New("empty message")
	}
	return []Artifact{{ArtifactID: "a1", Name: "echo", Parts: msg.Parts}}, nil
}

func TestHandler_RoundTrip(t *testing.T) {
	h := NewHandler(AgentCard{Name: "Echo", Version: "1.0.0"}, echoAgent, 0)
	ts := httptest.NewServer(h)
	defer ts.Close()

	client := NewHTTPClient()
	ctx := context.Background()

	card, err := client.DiscoverAgent(ctx, ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "Echo", card.Name)

	task, err := client.SendMessage(ctx, ts.URL, SendMessageRequest{
		Message: Message{MessageID: "m1", ContextID: "proj_1", Role: RoleUser, Parts: []Part{TextPart("ping")}},
	})
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, task.Status.State)
	assert.Equal(t, "proj_1", task.ContextID)
	payload, ok := task.Payload()
	require.True(t, ok)
	assert.Equal(t, "ping", string(payload))

	again, err := client.GetTask(ctx, ts.URL, GetTaskRequest{ID: task.ID})
	require.NoError(t, err)
	assert.Equal(t, task.ID, again.ID)
}

func TestHandler_FailureBecomesFailedTask(t *testing.T) {
	ts := httptest.NewServer(NewHandler(AgentCard{}, echoAgent, 0))
	defer ts.Close()

	task, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, SendMessageRequest{
		Message: Message{MessageID: "m1", Role: RoleUser},
	})
	require.NoError(t, err)
	assert.Equal(t, TaskStateFailed, task.Status.State)
	require.NotNil(t, task.Status.Message)
	assert.Equal(t, "empty message", task.Status.Message.Parts[0].Text)
	assert.NotEmpty(t, task.ContextID)
}

func TestHandler_EvictsOldTasks(t *testing.T) {
	h := NewHandler(AgentCard{}, echoAgent, 2)
	ts := httptest.NewServer(h)
	defer ts.Close()

	client := NewHTTPClient()
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		task, err := client.SendMessage(ctx, ts.URL, SendMessageRequest{
			Message: Message{MessageID: "m", Role: RoleUser, Parts: []Part{TextPart("x")}},
		})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	_, err := client.GetTask(ctx, ts.URL, GetTaskRequest{ID: ids[0]})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeTaskNotFound, rpcErr.Code)

	_, err = client.GetTask(ctx, ts.URL, GetTaskRequest{ID: ids[2]})
	assert.NoError(t, err)
}

func TestHandler_UnknownMethod(t *testing.T) {
	ts := httptest.NewServer(NewHandler(AgentCard{}, echoAgent, 0))
	defer ts.Close()

	c := NewHTTPClient()
	err := c.call(context.Background(), ts.URL, "tasks/cancel", GetTaskRequest{ID: "x"}, nil)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeMethodNotFound, rpcErr.Code)
}
