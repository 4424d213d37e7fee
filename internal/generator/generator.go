// Package generator is the content-generation collaborator behind every
// pipeline stage. A Generator receives a role-specific instruction and must
// answer with a single JSON object. Its output is untrusted: callers decode
// it into typed payloads and treat anything malformed as a failed call.
package generator

import (
	"context"
	"encoding/json"
)

// Role selects which stage a request belongs to.
type Role string

const (
	RoleAnalysis     Role = "analysis"
	RoleSupplier     Role = "supplier"
	RoleManufacturer Role = "manufacturer"
	RoleLogistics    Role = "logistics"
	RoleRetailer     Role = "retailer"
)

// Request is one generation call. System and User are the rendered
// instructions; Input carries the same context as structured JSON for
// generators that do not read prose.
type Request struct {
	Role      Role            `json:"role"`
	ProjectID string          `json:"project_id"`
	System    string          `json:"system"`
	User      string          `json:"user"`
	Input     json.RawMessage `json:"input,omitempty"`
}

// Generator produces one JSON object per request.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// Func adapts an ordinary function to Generator.
type Func func(ctx context.Context, req Request) ([]byte, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

// Mode names a Generator implementation.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeOpenAI Mode = "openai"
	ModeA2A    Mode = "a2a"
	ModeMock   Mode = "mock"
)
