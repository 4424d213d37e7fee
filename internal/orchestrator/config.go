package orchestrator

import (
	"time"

	"github.com/dusk-indust/procure/internal/geo"
)

// Config tunes a Pipeline. The zero value of any field falls back to the
// matching DefaultConfig value, except Retries and Pacing where zero is
// meaningful.
type Config struct {
	// BatchSize is the number of components per supplier call.
	BatchSize int

	// MaxParallel caps concurrent supplier calls.
	MaxParallel int

	// Retries is the number of extra attempts per supplier batch.
	Retries int

	// RetryDelay is multiplied by the attempt number between attempts.
	RetryDelay time.Duration

	// Reference is the point suppliers and manufacturers are ranked against;
	// it is also the logistics pickup.
	Reference geo.Point

	// Pacing spaces out events so a live stream reads naturally.
	Pacing Pacing

	// Constraints are passed to the policy checks.
	Constraints Constraints
}

// Pacing holds the inter-event delays.
type Pacing struct {
	Brief  time.Duration // between a request and its processing
	Step   time.Duration // after a stage finishes
	Settle time.Duration // after analysis and before compiling
}

// DefaultPacing matches a comfortable live-stream cadence.
var DefaultPacing = Pacing{
	Brief:  200 * time.Millisecond,
	Step:   300 * time.Millisecond,
	Settle: 500 * time.Millisecond,
}

// Constraints are caller limits checked by the policy engine. Zero values
// disable the matching check.
type Constraints struct {
	BudgetUSD            float64
	AllowedCountries     []string
	ReliabilityThreshold float64
	MaxLeadDays          int
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:   4,
		MaxParallel: 4,
		Retries:     1,
		RetryDelay:  500 * time.Millisecond,
		Reference:   geo.Paris,
		Pacing:      DefaultPacing,
		Constraints: Constraints{ReliabilityThreshold: 0.85},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = d.MaxParallel
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.Reference == (geo.Point{}) {
		c.Reference = d.Reference
	}
	return c
}
