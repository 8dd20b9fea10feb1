package sandbox

import (
	"context"

	"github.com/isdmx/dataagent/canvas"
	"github.com/isdmx/dataagent/dataset"
)

// State is the terminal state of one execution
type State int

const (
	// StateRejected means the guard refused the code and nothing ran
	StateRejected State = iota
	// StateSucceeded means the code ran to completion
	StateSucceeded
	// StateFaulted means evaluation raised an error
	StateFaulted
)

// String returns the state name used in logs and metrics
func (s State) String() string {
	switch s {
	case StateRejected:
		return "rejected"
	case StateSucceeded:
		return "succeeded"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

const (
	// RejectionMessage is the fixed text returned for policy rejections
	RejectionMessage = "🚫 Forbidden command detected."
	// ErrorPrefix marks the text of a faulted execution
	ErrorPrefix = "❌ Error: "
)

// ExecuteRequest is one snippet to run against one dataset
type ExecuteRequest struct {
	Code    string
	Dataset *dataset.Table
}

// ExecuteResult is the outcome of an execution. Output holds the captured
// text on success and the rejection or error message otherwise. Figure and
// Image are set only when a successful run drew on the canvas.
type ExecuteResult struct {
	State  State
	Output string
	Figure *canvas.Figure
	Image  []byte
}

// HasImage reports whether the result carries a rendered canvas
func (r ExecuteResult) HasImage() bool {
	return len(r.Image) > 0
}

// Executor runs analysis snippets. A returned error means the backend itself
// failed; rejected and faulted snippets are reported through the result.
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

func rejected() ExecuteResult {
	return ExecuteResult{State: StateRejected, Output: RejectionMessage}
}

func faulted(msg string) ExecuteResult {
	return ExecuteResult{State: StateFaulted, Output: ErrorPrefix + msg}
}
