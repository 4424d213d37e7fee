package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageFunc runs one incoming message to completion and returns the
// artifacts it produced.
type MessageFunc func(ctx context.Context, msg Message) ([]Artifact, error)

// Handler exposes a MessageFunc as an A2A agent. It serves the agent card
// on GET requests to WellKnownCardPath and JSON-RPC on POST.
//
// Messages are processed synchronously, so every task returned from
// message/send is already terminal. The last keep tasks stay available
// to tasks/get.
type Handler struct {
	card AgentCard
	fn   MessageFunc
	keep int

	mu    sync.Mutex
	tasks map[string]*Task
	order []string
}

var _ http.Handler = (*Handler)(nil)

// NewHandler creates a Handler. keep <= 0 defaults to 256.
func NewHandler(card AgentCard, fn MessageFunc, keep int) *Handler {
	if keep <= 0 {
		keep = 256
	}
	return &Handler{
		card:  card,
		fn:    fn,
		keep:  keep,
		tasks: make(map[string]*Task),
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, WellKnownCardPath):
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(h.card); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	case r.Method == http.MethodPost:
		h.serveRPC(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) serveRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, ErrCodeParse, "Parse error: "+err.Error())
		return
	}

	switch req.Method {
	case MethodSendMessage:
		var params SendMessageRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
			return
		}
		writeResult(w, req.ID, h.send(r.Context(), params.Message))

	case MethodGetTask:
		var params GetTaskRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
			return
		}
		task, ok := h.lookup(params.ID)
		if !ok {
			writeError(w, req.ID, ErrCodeTaskNotFound, "Task not found: "+params.ID)
			return
		}
		writeResult(w, req.ID, task)

	default:
		writeError(w, req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// send runs the message and records the resulting task. Failures are
// reported as a failed task rather than a JSON-RPC error.
func (h *Handler) send(ctx context.Context, msg Message) *Task {
	task := &Task{
		ID:        uuid.NewString(),
		ContextID: msg.ContextID,
	}
	if task.ContextID == "" {
		task.ContextID = uuid.NewString()
	}

	artifacts, err := h.fn(ctx, msg)
	if err != nil {
		task.Status = TaskStatus{
			State: TaskStateFailed,
			Message: &Message{
				MessageID: uuid.NewString(),
				Role:      RoleAgent,
				Parts:     []Part{TextPart(err.Error())},
			},
			Timestamp: time.Now().UTC(),
		}
	} else {
		task.Artifacts = artifacts
		task.Status = TaskStatus{State: TaskStateCompleted, Timestamp: time.Now().UTC()}
	}

	h.mu.Lock()
	h.tasks[task.ID] = task
	h.order = append(h.order, task.ID)
	if len(h.order) > h.keep {
		delete(h.tasks, h.order[0])
		h.order = h.order[1:]
	}
	h.mu.Unlock()
	return task
}

func (h *Handler) lookup(id string) (*Task, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tasks[id]
	return t, ok
}

func writeResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeError(w, id, ErrCodeInternal, "Failed to marshal result: "+err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Result: data})
}

func writeError(w http.ResponseWriter, id any, code int, message string) {
	_ = json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	})
}
