// Package workflow drives a question through the pipeline: intent
// extraction, schema narrowing, SQL generation, formatting, validation, a
// mandatory human approval gate, and execution. Execution is unreachable
// without an explicit approval; silence never advances a request.
package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/sqlcheck"
)

// Stage identifies a workflow position
type Stage string

const (
	StageReceived            Stage = "RECEIVED"
	StageIntentExtracted     Stage = "INTENT_EXTRACTED"
	StageContextNarrowed     Stage = "CONTEXT_NARROWED"
	StageSQLGenerated        Stage = "SQL_GENERATED"
	StageSQLFormatted        Stage = "SQL_FORMATTED"
	StageValidated           Stage = "VALIDATED"
	StageAwaitingApproval    Stage = "AWAITING_APPROVAL"
	StageApproved            Stage = "APPROVED"
	StageExecuted            Stage = "EXECUTED"
	StageRejectedByValidator Stage = "REJECTED_BY_VALIDATOR"
	StageApprovalDenied      Stage = "APPROVAL_DENIED"
	StageFailed              Stage = "FAILED"
	StageCompleted           Stage = "COMPLETED"
)

// FailureReason classifies a FAILED transition
type FailureReason string

const (
	IntentExtractionFailed FailureReason = "IntentExtractionFailed"
	GenerationFailed       FailureReason = "GenerationFailed"
	ExecutionFailed        FailureReason = "ExecutionFailed"
)

// Transition is one recorded stage change
type Transition struct {
	From Stage     `json:"from,omitempty"`
	To   Stage     `json:"to"`
	At   time.Time `json:"at"`
	Err  string    `json:"err,omitempty"`
}

// State carries everything known about one request. States are owned by the
// engine; callers treat them as read-only.
type State struct {
	ID       string
	Question string

	Intent       *llm.Intent
	Context      *schema.Snapshot
	RawSQL       string
	FormattedSQL string
	Verdict      *sqlcheck.Verdict

	Approved bool
	Result   *database.Result
	Summary  string

	Stage         Stage
	FailureReason FailureReason
	History       []Transition
}

func newState(question string, now time.Time) *State {
	s := &State{
		ID:       uuid.New().String(),
		Question: question,
	}
	s.History = append(s.History, Transition{To: StageReceived, At: now})
	s.Stage = StageReceived

	return s
}

// advance records a stage change with an optional error annotation
func (s *State) advance(to Stage, at time.Time, err error) {
	t := Transition{From: s.Stage, To: to, At: at}
	if err != nil {
		t.Err = err.Error()
	}

	s.History = append(s.History, t)
	s.Stage = to
}

// Terminal reports whether the request can no longer change stage
func (s *State) Terminal() bool {
	return s.Stage == StageCompleted
}

// Visited reports whether the history contains the given stage
func (s *State) Visited(stage Stage) bool {
	for _, t := range s.History {
		if t.To == stage {
			return true
		}
	}

	return false
}

// LastError returns the most recent transition error annotation
func (s *State) LastError() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Err != "" {
			return s.History[i].Err
		}
	}

	return ""
}
