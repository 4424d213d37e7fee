// Package events carries pipeline progress to callers: the event model,
// an ordered lossless stream, and Server-Sent Events framing.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the kind of an event on the wire.
type Type string

const (
	TypeLog      Type = "log"
	TypeReport   Type = "report"
	TypePlan     Type = "plan"
	TypeComplete Type = "complete"
)

// Agent identifies who an event is attributed to.
type Agent struct {
	ID   string
	Name string
}

// Event is one progress observation. Log events carry the agent, event
// name, details, and phase; report and plan events carry only Data.
type Event struct {
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	AgentID   string          `json:"agent_id,omitempty"`
	AgentName string          `json:"agent_name,omitempty"`
	Event     string          `json:"event,omitempty"`
	Details   string          `json:"details,omitempty"`
	Phase     string          `json:"phase,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Log creates a log event. The timestamp is left for the emitter to set.
func Log(agent Agent, name, details, phase string) Event {
	return Event{
		Type:      TypeLog,
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Event:     name,
		Details:   details,
		Phase:     phase,
	}
}

// WithData attaches v as the event's structured payload. A value that
// cannot be encoded is dropped and noted in Details.
func (e Event) WithData(v any) Event {
	data, err := json.Marshal(v)
	if err != nil {
		e.Details = fmt.Sprintf("%s (data unavailable: %v)", e.Details, err)
		return e
	}
	e.Data = data
	return e
}

// Report creates the coordination report event.
func Report(v any) (Event, error) {
	return payloadEvent(TypeReport, v)
}

// Plan creates the execution plan event.
func Plan(v any) (Event, error) {
	return payloadEvent(TypePlan, v)
}

// Complete creates the terminal event of a stream.
func Complete() Event {
	return Event{Type: TypeComplete}
}

func payloadEvent(t Type, v any) (Event, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode %s: %w", t, err)
	}
	return Event{Type: t, Data: data}, nil
}

// Decode unmarshals the event's Data into dst.
func (e Event) Decode(dst any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("events: %s event has no data", e.Type)
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("events: decode %s data: %w", e.Type, err)
	}
	return nil
}
