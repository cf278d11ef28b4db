package supervisor

import (
	"fmt"
	"strings"

	"github.com/lambda-feedback/tether/internal/execution/worker"
)

// ExitStatus describes how a worker session ended.
type ExitStatus struct {
	// Code is the exit code, nil if the worker was killed by a signal
	// or its exit could not be observed.
	Code *int `json:"code,omitempty"`

	// Signal is the signal that killed the worker, if any.
	Signal *int `json:"signal,omitempty"`

	// ArtifactPath is the last artifact path announced by the worker.
	ArtifactPath string `json:"artifactPath,omitempty"`
}

func newExitStatus(exit *worker.ExitEvent, artifactPath string) ExitStatus {
	status := ExitStatus{ArtifactPath: artifactPath}

	if exit != nil {
		status.Code = exit.Code
		status.Signal = exit.Signal
	}

	return status
}

func (s ExitStatus) String() string {
	var parts []string

	if s.Code != nil {
		parts = append(parts, fmt.Sprintf("exit code %d", *s.Code))
	}

	if s.Signal != nil {
		parts = append(parts, fmt.Sprintf("signal %d", *s.Signal))
	}

	if len(parts) == 0 {
		parts = append(parts, "unknown exit")
	}

	return strings.Join(parts, ", ")
}
