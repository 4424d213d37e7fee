package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dusk-indust/procure/internal/a2a"
)

// Settings selects and configures a Generator.
type Settings struct {
	Mode         Mode
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	A2AEndpoint  string
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

// Detect builds the Generator named by s.Mode. In ModeAuto (or an empty
// mode) it prefers OpenAI when an API key is set, then an A2A endpoint
// that answers agent-card discovery, then the offline Mock.
func Detect(ctx context.Context, s Settings) (Generator, Mode, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch s.Mode {
	case ModeOpenAI:
		if s.APIKey == "" {
			return nil, "", errors.New("generator: openai mode requires an API key")
		}
		return newOpenAI(s, logger), ModeOpenAI, nil

	case ModeA2A:
		if s.A2AEndpoint == "" {
			return nil, "", errors.New("generator: a2a mode requires an endpoint")
		}
		return newA2A(s), ModeA2A, nil

	case ModeMock:
		return NewMock(), ModeMock, nil

	case ModeAuto, "":
		if s.APIKey != "" {
			return newOpenAI(s, logger), ModeOpenAI, nil
		}
		if s.A2AEndpoint != "" {
			if probe(ctx, s, logger) {
				return newA2A(s), ModeA2A, nil
			}
			logger.Warn("a2a endpoint did not answer discovery, using mock generator", "endpoint", s.A2AEndpoint)
		}
		return NewMock(), ModeMock, nil
	}
	return nil, "", fmt.Errorf("generator: unknown mode %q", s.Mode)
}

func newOpenAI(s Settings, logger *slog.Logger) *OpenAIClient {
	return NewOpenAIClient(s.APIKey,
		WithBaseURL(s.BaseURL),
		WithModel(s.Model),
		WithTemperature(temperature(s.Temperature)),
		WithTimeout(s.Timeout),
		WithLogger(logger),
	)
}

func newA2A(s Settings) *A2AGenerator {
	var opts []a2a.ClientOption
	if s.Timeout > 0 {
		opts = append(opts, a2a.WithTimeout(s.Timeout))
	}
	return NewA2AGenerator(a2a.NewHTTPClient(opts...), s.A2AEndpoint, 0)
}

func probe(ctx context.Context, s Settings, logger *slog.Logger) bool {
	timeout := s.ProbeTimeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	card, err := a2a.NewHTTPClient().DiscoverAgent(probeCtx, s.A2AEndpoint)
	if err != nil {
		logger.Debug("a2a probe failed", "endpoint", s.A2AEndpoint, "error", err)
		return false
	}
	logger.Info("a2a agent discovered", "endpoint", s.A2AEndpoint, "agent", card.Name)
	return true
}

func temperature(t float64) float64 {
	if t <= 0 {
		return DefaultTemperature
	}
	return t
}
