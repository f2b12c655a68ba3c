package model

import (
	"fmt"
	"time"
)

// State is the position of a record in the issuance state machine.
type State string

const (
	StateReceived   State = "received"
	StateNormalized State = "normalized"
	StateRendered   State = "rendered"
	StatePersisted  State = "persisted"
	StateNotified   State = "notified"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Stage is the pipeline step that moves a record from one state to the next.
type Stage string

const (
	StageNone      Stage = ""
	StageNormalize Stage = "normalize"
	StageRender    Stage = "render"
	StagePersist   Stage = "persist"
	StageDeliver   Stage = "deliver"
)

// Stages lists the pipeline steps in execution order.
var Stages = []Stage{StageNormalize, StageRender, StagePersist, StageDeliver}

// StageFrom returns the stage that runs when a record is in state s.
func StageFrom(s State) Stage {
	switch s {
	case StateReceived:
		return StageNormalize
	case StateNormalized:
		return StageRender
	case StateRendered:
		return StagePersist
	case StatePersisted:
		return StageDeliver
	default:
		return StageNone
	}
}

// Advance validates and returns the state after a successful step from s.
func Advance(s State) (State, error) {
	switch s {
	case StateReceived:
		return StateNormalized, nil
	case StateNormalized:
		return StateRendered, nil
	case StateRendered:
		return StatePersisted, nil
	case StatePersisted:
		return StateNotified, nil
	case StateNotified:
		return StateDone, nil
	default:
		return s, fmt.Errorf("no transition from %s", s)
	}
}

// Outcome is the terminal state of one input row.
type Outcome struct {
	Index         int       `json:"index"`
	Row           int       `json:"row,omitempty"`
	Identity      string    `json:"identity"`
	State         State     `json:"state"`
	FailedStage   Stage     `json:"failed_stage,omitempty"`
	ErrorKind     ErrorKind `json:"error_kind,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Retryable     bool      `json:"retryable,omitempty"`
	DocumentID    string    `json:"document_id,omitempty"`
	StoredID      StoredID  `json:"stored_id,omitempty"`
	AlreadyIssued bool      `json:"already_issued,omitempty"`
	MessageID     string    `json:"message_id,omitempty"`
}

// Failed reports whether the record ended in the failure branch.
func (o Outcome) Failed() bool {
	return o.State == StateFailed
}

// Summary counts outcomes of a run.
type Summary struct {
	Total    int           `json:"total"`
	Done     int           `json:"done"`
	Failed   int           `json:"failed"`
	ByStage  map[Stage]int `json:"failed_by_stage,omitempty"`
	Issued   int           `json:"issued"`
	Notified int           `json:"notified"`
}

// RunReport is the result of one batch run, ordered by input position.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
	// Truncated is set when the run stopped dispatching before the end of the input.
	Truncated   bool   `json:"truncated"`
	Aborted     bool   `json:"aborted"`
	AbortReason string `json:"abort_reason,omitempty"`
	// Pending is the number of input rows that were never dispatched.
	Pending int     `json:"pending"`
	Summary Summary `json:"summary"`
}

// Summarize counts outcomes by terminal state.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes), ByStage: map[Stage]int{}}
	for _, o := range outcomes {
		if o.StoredID != 0 {
			s.Issued++
		}

		if o.Failed() {
			s.Failed++
			s.ByStage[o.FailedStage]++

			continue
		}

		s.Done++
		s.Notified++
	}

	return s
}
