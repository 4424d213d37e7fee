package events

import (
	"fmt"
	"strings"
)

// Status is a coarse reading of what a log event says about its stage.
type Status int

const (
	StatusPending Status = iota
	StatusWorking
	StatusDone
	StatusFailed
)

var workingPrefixes = []string{
	"analyzing_", "querying_", "contacting_", "processing_",
	"evaluating_", "planning_", "compiling_", "verifying_", "reconciling_",
}

// StatusOf classifies an event by its name.
func StatusOf(e Event) Status {
	if e.Type != TypeLog {
		return StatusDone
	}
	switch {
	case e.Event == "project_created":
		return StatusPending
	case strings.HasSuffix(e.Event, "_error"), strings.HasSuffix(e.Event, "_failed"):
		return StatusFailed
	}
	for _, p := range workingPrefixes {
		if strings.HasPrefix(e.Event, p) {
			return StatusWorking
		}
	}
	return StatusDone
}

// FormatProgress renders e as one human-readable status line.
func FormatProgress(e Event) string {
	switch e.Type {
	case TypeReport:
		return "  ✓ coordination report ready"
	case TypePlan:
		return "  ✓ execution plan ready"
	case TypeComplete:
		return "  ✓ complete"
	}

	var glyph string
	switch StatusOf(e) {
	case StatusPending:
		glyph = "○"
	case StatusWorking:
		glyph = "●"
	case StatusDone:
		glyph = "✓"
	case StatusFailed:
		glyph = "✗"
	}
	return fmt.Sprintf("  %s %-26s %s", glyph, "["+e.AgentName+"]", e.Details)
}
