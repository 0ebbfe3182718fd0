package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/askdb/askdb/internal/database"
	askerrors "github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/logging"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/sqlcheck"
)

// Engine owns request states and moves them through the pipeline. The
// mutex guards the pending map only; it is never held across model or
// database calls, so a suspended approval blocks nothing.
type Engine struct {
	model    llm.Service
	schemas  *schema.Manager
	executor database.Executor
	provider schema.MetadataProvider

	rowLimit  int
	summarize bool
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]*State
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the engine clock, used by tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIntrospection enables opportunistic refresh from a live provider when
// the active snapshot is stale
func WithIntrospection(p schema.MetadataProvider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithSummaries toggles the post-execution natural-language recap
func WithSummaries(enabled bool) Option {
	return func(e *Engine) { e.summarize = enabled }
}

// NewEngine wires the pipeline collaborators
func NewEngine(model llm.Service, schemas *schema.Manager, executor database.Executor, rowLimit int, opts ...Option) *Engine {
	e := &Engine{
		model:     model,
		schemas:   schemas,
		executor:  executor,
		rowLimit:  rowLimit,
		summarize: true,
		now:       time.Now,
		pending:   map[string]*State{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Submit runs the pipeline for a question up to the approval gate or a
// terminal state. The returned state is always usable; inspect its Stage
// and FailureReason rather than relying on the error alone.
func (e *Engine) Submit(ctx context.Context, question string) (*State, error) {
	log := logging.GetLogger()
	state := newState(question, e.now())

	intent, err := e.model.ExtractIntent(ctx, question)
	if err != nil {
		e.fail(state, IntentExtractionFailed, err)
		return state, err
	}

	state.Intent = intent
	state.advance(StageIntentExtracted, e.now(), nil)

	// Staleness is advisory: try a live refresh when possible, but a
	// failed refresh never blocks the question.
	if e.provider != nil && e.schemas.IsStale() {
		if err := e.schemas.Refresh(ctx, schema.SourceIntrospection, e.provider); err != nil {
			log.WithError(err).Warn("stale schema refresh failed, continuing with cached snapshot")
		}
	}

	state.Context = schema.Narrow(e.schemas.ActiveSnapshot(), intent.Tokens())
	state.advance(StageContextNarrowed, e.now(), nil)

	rawSQL, err := e.model.GenerateSQL(ctx, question, intent, state.Context.PromptContext())
	if err != nil {
		e.fail(state, GenerationFailed, err)
		return state, err
	}

	state.RawSQL = rawSQL
	state.advance(StageSQLGenerated, e.now(), nil)

	state.FormattedSQL = sqlcheck.Normalize(rawSQL)
	state.advance(StageSQLFormatted, e.now(), nil)

	// Table references are judged against the full schema, not the narrowed
	// context. Narrowing only guides generation; a real table outside the
	// narrowed subset must not be rejected as unknown.
	verdict := sqlcheck.Validate(state.FormattedSQL, e.schemas.ActiveSnapshot(), e.rowLimit)
	state.Verdict = &verdict
	state.advance(StageValidated, e.now(), nil)

	if verdict.Outcome == sqlcheck.OutcomeRejected {
		state.advance(StageRejectedByValidator, e.now(), nil)
		state.advance(StageCompleted, e.now(), nil)

		return state, nil
	}

	state.advance(StageAwaitingApproval, e.now(), nil)

	e.mu.Lock()
	e.pending[state.ID] = state
	e.mu.Unlock()

	return state, nil
}

// Approve resolves the gate positively and executes the validated statement
func (e *Engine) Approve(ctx context.Context, id string) (*State, error) {
	state, err := e.take(id)
	if err != nil {
		return nil, err
	}

	state.Approved = true
	state.advance(StageApproved, e.now(), nil)

	result, err := e.executor.Run(ctx, state.Verdict.SQL)
	if err != nil {
		e.fail(state, ExecutionFailed, err)
		return state, err
	}

	state.Result = result
	state.advance(StageExecuted, e.now(), nil)

	e.attachSummary(ctx, state)
	state.advance(StageCompleted, e.now(), nil)

	return state, nil
}

// Deny resolves the gate negatively; the statement is never executed
func (e *Engine) Deny(id string) (*State, error) {
	state, err := e.take(id)
	if err != nil {
		return nil, err
	}

	state.advance(StageApprovalDenied, e.now(), nil)
	state.advance(StageCompleted, e.now(), nil)

	return state, nil
}

// Cancel discards a suspended request entirely. Nothing outside the engine
// is touched; in particular the schema cache is left alone.
func (e *Engine) Cancel(id string) error {
	_, err := e.take(id)
	return err
}

// Get returns a suspended request without resolving it
func (e *Engine) Get(id string) (*State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.pending[id]

	return state, ok
}

// take removes a suspended request from the gate, failing on unknown ids
func (e *Engine) take(id string) (*State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.pending[id]
	if !ok {
		return nil, askerrors.Newf(askerrors.ErrTypeApproval, "no request awaiting approval with id %s", id)
	}

	delete(e.pending, id)

	return state, nil
}

func (e *Engine) fail(state *State, reason FailureReason, err error) {
	state.FailureReason = reason
	state.advance(StageFailed, e.now(), err)
	state.advance(StageCompleted, e.now(), nil)
}

// attachSummary asks the model for a prose recap of the results. A failed
// or disabled summary degrades to a plain row count.
func (e *Engine) attachSummary(ctx context.Context, state *State) {
	if e.summarize {
		summary, err := e.model.SummarizeResults(ctx, state.Question, state.Verdict.SQL,
			state.Result.Columns, state.Result.Rows)
		if err == nil && summary != "" {
			state.Summary = summary
			return
		}

		if err != nil {
			logging.GetLogger().WithError(err).Debug("result summarization unavailable")
		}
	}

	state.Summary = fmt.Sprintf("Query returned %d row(s).", state.Result.RowCount())
}
