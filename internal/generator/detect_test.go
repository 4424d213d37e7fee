package generator

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dusk-indust/procure/internal/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	agent := httptest.NewServer(NewA2AHandler(NewMock(), a2a.AgentCard{Name: "Remote"}))
	defer agent.Close()

	tests := []struct {
		name     string
		settings Settings
		want     Mode
		wantErr  bool
	}{
		{"auto with key", Settings{APIKey: "sk"}, ModeOpenAI, false},
		{"auto with live agent", Settings{A2AEndpoint: agent.URL}, ModeA2A, false},
		{"auto with dead agent", Settings{A2AEndpoint: "http://127.0.0.1:1", ProbeTimeout: 50 * time.Millisecond}, ModeMock, false},
		{"auto with nothing", Settings{}, ModeMock, false},
		{"forced mock ignores key", Settings{Mode: ModeMock, APIKey: "sk"}, ModeMock, false},
		{"forced openai without key", Settings{Mode: ModeOpenAI}, "", true},
		{"forced a2a without endpoint", Settings{Mode: ModeA2A}, "", true},
		{"unknown mode", Settings{Mode: "carrier-pigeon"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, mode, err := Detect(context.Background(), tt.settings)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, g)
			assert.Equal(t, tt.want, mode)
		})
	}
}
