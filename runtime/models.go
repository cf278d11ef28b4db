package runtime

import (
	"encoding/json"

	"github.com/lambda-feedback/tether/internal/execution/supervisor"
)

// CommandRequest asks the worker to run a command.
type CommandRequest struct {
	// Command is passed to the worker verbatim.
	Command string `json:"command"`
}

// CommandResponse carries the result reported by the worker.
type CommandResponse struct {
	Command string          `json:"command"`
	Result  json.RawMessage `json:"result"`
}

// Status describes the worker session.
type Status struct {
	State        supervisor.State `json:"-"`
	StateName    string           `json:"state"`
	SessionID    string           `json:"sessionId,omitempty"`
	ArtifactPath string           `json:"artifactPath,omitempty"`
}

// Healthy reports whether the worker accepts commands.
func (s Status) Healthy() bool {
	return s.State == supervisor.Ready
}
