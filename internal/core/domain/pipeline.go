package domain

import "fmt"

type PipelineState string

const (
	StateIdle       PipelineState = "idle"
	StateValidating PipelineState = "validating"
	StateParsing    PipelineState = "parsing"
	StateSubmitting PipelineState = "submitting"
	StateForwarding PipelineState = "forwarding"
	StateFinalizing PipelineState = "finalizing"
	StateDone       PipelineState = "done"
	StateFailed     PipelineState = "failed"
)

// Progress is one entry of an upload progress stream.
type Progress struct {
	Percent int           `json:"percent"`
	Phase   PipelineState `json:"phase"`
	Label   string        `json:"label"`
	Warning string        `json:"warning,omitempty"`
}

// PipelineError carries the state a pipeline run failed in.
type PipelineError struct {
	State PipelineState
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("upload pipeline failed while %s: %v", e.State, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// ForwardResult is the outcome of relaying a parsed file to the automation
// endpoint. Forwarding never fails the pipeline; problems land in Warning.
type ForwardResult struct {
	Skipped    bool
	StatusCode int
	Response   []byte
	Warning    string
}

func (r ForwardResult) Delivered() bool {
	return !r.Skipped && r.Warning == ""
}
