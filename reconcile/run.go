package reconcile

import "fmt"

// RunState tracks one import run through its lifecycle. CreatingMasters is
// entered only when unresolved names remain after confirmation and the
// auto-create policy is on; otherwise the run fails fast with the list of
// still-unresolved names instead of guessing.
type RunState string

const (
	RunStateIdle            RunState = "Idle"
	RunStateValidating      RunState = "Validating"
	RunStateCreatingMasters RunState = "CreatingMasters"
	RunStateApplying        RunState = "Applying"
	RunStateDone            RunState = "Done"
	RunStateFailed          RunState = "Failed"
)

var runTransitions = map[RunState][]RunState{
	RunStateIdle:            {RunStateValidating},
	RunStateValidating:      {RunStateCreatingMasters, RunStateApplying, RunStateFailed},
	RunStateCreatingMasters: {RunStateApplying, RunStateFailed},
	RunStateApplying:        {RunStateDone, RunStateFailed},
}

// Failure records one item that could not be written, without aborting
// the run it belongs to.
type Failure struct {
	NaturalKey string `json:"natural_key"`
	Error      string `json:"error"`
}

// Run is the transient aggregate for one import invocation. It is consumed
// by the caller for reporting and not persisted beyond the run's lifetime
// (the importer keeps its own durable header row).
type Run struct {
	ID    string   `json:"id"`
	State RunState `json:"state"`

	NewCount       int `json:"new_count"`
	UpdatedCount   int `json:"updated_count"`
	DuplicateCount int `json:"duplicate_count"`
	InvalidCount   int `json:"invalid_count"`
	FailedCount    int `json:"failed_count"`

	Failures   []Failure    `json:"failures,omitempty"`
	Unresolved []Resolution `json:"unresolved,omitempty"`
	FailReason string       `json:"fail_reason,omitempty"`
}

func NewRun(id string) *Run {
	return &Run{ID: id, State: RunStateIdle}
}

// To advances the run state, rejecting transitions the lifecycle does not
// allow. Done and Failed are terminal.
func (r *Run) To(next RunState) error {
	for _, allowed := range runTransitions[r.State] {
		if allowed == next {
			r.State = next
			return nil
		}
	}
	return fmt.Errorf("illegal run transition %s -> %s", r.State, next)
}

// Fail moves the run to Failed with an actionable reason. A run never ends
// as a silent partial success: it is either Done with counts or Failed
// with a reason. Done and Failed are terminal here too: failing a finished
// run is a no-op and the first failure reason sticks.
func (r *Run) Fail(reason string) {
	if r.State == RunStateDone || r.State == RunStateFailed {
		return
	}
	r.State = RunStateFailed
	r.FailReason = reason
}
