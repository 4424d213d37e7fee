package generator

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/dusk-indust/procure/internal/a2a"
	"github.com/dusk-indust/procure/internal/partner"
	"github.com/dusk-indust/procure/internal/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestA2AGenerator_AgainstHandler(t *testing.T) {
	ts := httptest.NewServer(NewA2AHandler(NewMock(), a2a.AgentCard{Name: "Supplier Agent"}))
	defer ts.Close()

	req, err := SupplierRequest("proj_a2a", SupplierInput{
		Product:    "Electric bicycle",
		Components: []payload.Component{{Name: "Hub motor", Category: "motors", EstimatedQuantity: 1, EstimatedUnitCostUSD: 200}},
		Suppliers:  partner.Default().Suppliers()[:3],
	})
	require.NoError(t, err)

	g := NewA2AGenerator(a2a.NewHTTPClient(), ts.URL, 0)
	out, err := g.Generate(context.Background(), req)
	require.NoError(t, err)

	quotes, err := payload.Decode[payload.SupplierQuotes](out)
	require.NoError(t, err)
	require.Len(t, quotes.Quotes, 1)
	assert.Equal(t, "Hub motor", quotes.Quotes[0].ComponentName.String())
}

func TestA2AGenerator_RemoteFailureIsTransient(t *testing.T) {
	failing := Func(func(ctx context.Context, req Request) ([]byte, error) {
		return nil, errors.New("upstream overloaded")
	})
	ts := httptest.NewServer(NewA2AHandler(failing, a2a.AgentCard{}))
	defer ts.Close()

	_, err := NewA2AGenerator(a2a.NewHTTPClient(), ts.URL, 0).Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "upstream overloaded")
}

func TestA2AHandler_RejectsMessageWithoutRequest(t *testing.T) {
	ts := httptest.NewServer(NewA2AHandler(NewMock(), a2a.AgentCard{}))
	defer ts.Close()

	task, err := a2a.NewHTTPClient().SendMessage(context.Background(), ts.URL, a2a.SendMessageRequest{
		Message: a2a.Message{MessageID: "m1", Role: a2a.RoleUser, Parts: []a2a.Part{a2a.TextPart("hello")}},
	})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
}
