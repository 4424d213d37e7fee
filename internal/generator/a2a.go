package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dusk-indust/procure/internal/a2a"
	"github.com/google/uuid"
)

var _ Generator = (*A2AGenerator)(nil)

// A2AGenerator delegates generation to a remote agent over A2A. The
// request travels as a JSON data part plus the user prompt as text.
type A2AGenerator struct {
	client   a2a.Client
	endpoint string
	poll     time.Duration
}

// NewA2AGenerator creates a generator that sends message/send requests to
// endpoint. Tasks that come back unfinished are polled every poll
// interval; zero means 250ms.
func NewA2AGenerator(client a2a.Client, endpoint string, poll time.Duration) *A2AGenerator {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	return &A2AGenerator{client: client, endpoint: endpoint, poll: poll}
}

// Generate implements Generator.
func (g *A2AGenerator) Generate(ctx context.Context, req Request) ([]byte, error) {
	data, err := a2a.DataPart(req)
	if err != nil {
		return nil, fmt.Errorf("generator: encode a2a request: %w", err)
	}

	task, err := g.client.SendMessage(ctx, g.endpoint, a2a.SendMessageRequest{
		Message: a2a.Message{
			MessageID: uuid.NewString(),
			ContextID: req.ProjectID,
			Role:      a2a.RoleUser,
			Parts:     []a2a.Part{data, a2a.TextPart(req.User)},
		},
		Configuration: &a2a.SendMessageConfig{
			AcceptedOutputModes: []string{"application/json"},
			Blocking:            true,
		},
	})
	if err != nil {
		return nil, classifyA2A(req.Role, err)
	}

	task, err = a2a.Await(ctx, g.client, g.endpoint, task, g.poll)
	if err != nil {
		return nil, classifyA2A(req.Role, err)
	}

	if task.Status.State != a2a.TaskStateCompleted {
		reason := string(task.Status.State)
		if m := task.Status.Message; m != nil && len(m.Parts) > 0 && m.Parts[0].Text != "" {
			reason = m.Parts[0].Text
		}
		return nil, NewTransientError(fmt.Errorf("generator: %s: remote task %s: %s", req.Role, task.ID, reason))
	}

	payload, ok := task.Payload()
	if !ok {
		return nil, fmt.Errorf("generator: %s: %w", req.Role, ErrNoJSON)
	}
	out, err := Object(payload)
	if err != nil {
		return nil, fmt.Errorf("generator: %s: %w", req.Role, err)
	}
	return out, nil
}

func classifyA2A(role Role, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("generator: %s: %w", role, err)
	}
	var se *a2a.StatusError
	if errors.As(err, &se) && !se.Retryable() {
		return NewFatalError(fmt.Errorf("generator: %s: %w", role, err))
	}
	var re *a2a.RPCError
	if errors.As(err, &re) {
		return NewFatalError(fmt.Errorf("generator: %s: %w", role, err))
	}
	return NewTransientError(fmt.Errorf("generator: %s: %w", role, err))
}

// NewA2AHandler serves g as an A2A agent. Each message must carry a
// Request as its first data part; the generated object is returned as a
// single data artifact.
func NewA2AHandler(g Generator, card a2a.AgentCard) *a2a.Handler {
	return a2a.NewHandler(card, func(ctx context.Context, msg a2a.Message) ([]a2a.Artifact, error) {
		req, err := requestFromMessage(msg)
		if err != nil {
			return nil, err
		}
		out, err := g.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		part, err := a2a.DataPart(json.RawMessage(out))
		if err != nil {
			return nil, fmt.Errorf("generator: encode artifact: %w", err)
		}
		return []a2a.Artifact{{
			ArtifactID: uuid.NewString(),
			Name:       string(req.Role) + "-output",
			Parts:      []a2a.Part{part},
		}}, nil
	}, 0)
}

func requestFromMessage(msg a2a.Message) (Request, error) {
	for _, p := range msg.Parts {
		if len(p.Data) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(p.Data, &req); err != nil {
			return Request{}, fmt.Errorf("generator: decode a2a request: %w", err)
		}
		if req.Role == "" {
			return Request{}, errors.New("generator: a2a request has no role")
		}
		return req, nil
	}
	return Request{}, errors.New("generator: message carries no generation request")
}
