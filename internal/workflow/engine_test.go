package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/internal/database"
	askerrors "github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/schema"
)

// fakeModel scripts the language model collaborator
type fakeModel struct {
	intent     *llm.Intent
	intentErr  error
	sql        string
	sqlErr     error
	summary    string
	summaryErr error

	generateCalls  int
	summarizeCalls int
}

func (f *fakeModel) ExtractIntent(_ context.Context, _ string) (*llm.Intent, error) {
	if f.intentErr != nil {
		return nil, f.intentErr
	}

	return f.intent, nil
}

func (f *fakeModel) GenerateSQL(_ context.Context, _ string, _ *llm.Intent, _ string) (string, error) {
	f.generateCalls++

	if f.sqlErr != nil {
		return "", f.sqlErr
	}

	return f.sql, nil
}

func (f *fakeModel) SummarizeResults(_ context.Context, _, _ string, _ []string, _ [][]string) (string, error) {
	f.summarizeCalls++

	if f.summaryErr != nil {
		return "", f.summaryErr
	}

	return f.summary, nil
}

func (f *fakeModel) Configure(llm.Config) error { return nil }

// fakeExecutor records executed statements
type fakeExecutor struct {
	result *database.Result
	err    error
	ran    []string
}

func (f *fakeExecutor) Run(_ context.Context, query string) (*database.Result, error) {
	f.ran = append(f.ran, query)

	if f.err != nil {
		return nil, f.err
	}

	return f.result, nil
}

// fakeProvider serves live metadata for refresh paths
type fakeProvider struct {
	tables []schema.Table
	err    error
	calls  int
}

func (f *fakeProvider) ListTables(context.Context) ([]schema.Table, error) {
	f.calls++

	if f.err != nil {
		return nil, f.err
	}

	return f.tables, nil
}

func clientTables() []schema.Table {
	return []schema.Table{
		{Name: "client", Columns: []schema.Column{
			{Name: "id", Type: "int"},
			{Name: "name", Type: "varchar(255)"},
			{Name: "state", Type: "varchar(50)", Nullable: true},
		}},
		{Name: "project", Columns: []schema.Column{
			{Name: "id", Type: "int"},
			{Name: "client_id", Type: "int"},
		}},
	}
}

func freshManager(t *testing.T) *schema.Manager {
	t.Helper()

	m := schema.NewManager(time.Hour)
	require.NoError(t, m.Refresh(context.Background(), schema.SourceManual, clientTables()))

	return m
}

func texasModel() *fakeModel {
	return &fakeModel{
		intent: &llm.Intent{
			Goal:     "list clients in Texas",
			Entities: []string{"clients"},
			Filters:  []string{"state is Texas"},
		},
		sql:     "SELECT * FROM client WHERE state='TX'",
		summary: "There are 2 clients in Texas.",
	}
}

func newTestEngine(t *testing.T, model *fakeModel, exec *fakeExecutor, opts ...Option) *Engine {
	t.Helper()

	return NewEngine(model, freshManager(t), exec, 100, opts...)
}

func stages(s *State) []Stage {
	out := make([]Stage, len(s.History))
	for i, tr := range s.History {
		out[i] = tr.To
	}

	return out
}

func TestSubmit_RunsPipelineToApprovalGate(t *testing.T) {
	model := texasModel()
	exec := &fakeExecutor{}
	engine := newTestEngine(t, model, exec)

	state, err := engine.Submit(context.Background(), "show me all clients in Texas")
	require.NoError(t, err)

	assert.Equal(t, StageAwaitingApproval, state.Stage)
	assert.Equal(t, []Stage{
		StageReceived, StageIntentExtracted, StageContextNarrowed,
		StageSQLGenerated, StageSQLFormatted, StageValidated, StageAwaitingApproval,
	}, stages(state))

	// Row cap injected during validation, waiting on the human
	assert.Equal(t, "SELECT TOP 100 * FROM client WHERE state = 'TX'", state.Verdict.SQL)
	assert.True(t, state.Context.HasTable("client"))
	assert.False(t, state.Context.HasTable("project"))
	assert.Empty(t, exec.ran)
}

func TestApprove_ExecutesExactValidatedSQL(t *testing.T) {
	model := texasModel()
	exec := &fakeExecutor{result: &database.Result{
		Columns: []string{"id", "name"},
		Rows:    [][]string{{"1", "Acme"}, {"2", "Initech"}},
	}}
	engine := newTestEngine(t, model, exec)

	state, err := engine.Submit(context.Background(), "clients in Texas")
	require.NoError(t, err)

	done, err := engine.Approve(context.Background(), state.ID)
	require.NoError(t, err)

	assert.Equal(t, StageCompleted, done.Stage)
	assert.True(t, done.Approved)
	require.Len(t, exec.ran, 1)
	assert.Equal(t, done.Verdict.SQL, exec.ran[0])
	assert.Equal(t, 2, done.Result.RowCount())
	assert.Equal(t, "There are 2 clients in Texas.", done.Summary)
}

func TestApprove_ExecutedAlwaysPrecededByApproved(t *testing.T) {
	engine := newTestEngine(t, texasModel(), &fakeExecutor{result: &database.Result{}})

	state, err := engine.Submit(context.Background(), "clients in Texas")
	require.NoError(t, err)

	done, err := engine.Approve(context.Background(), state.ID)
	require.NoError(t, err)

	history := stages(done)

	approvedAt, executedAt := -1, -1
	for i, st := range history {
		switch st {
		case StageApproved:
			approvedAt = i
		case StageExecuted:
			executedAt = i
		}
	}

	require.NotEqual(t, -1, executedAt)
	require.NotEqual(t, -1, approvedAt)
	assert.Equal(t, approvedAt+1, executedAt)
}

func TestDeny_NeverExecutes(t *testing.T) {
	exec := &fakeExecutor{}
	engine := newTestEngine(t, texasModel(), exec)

	state, err := engine.Submit(context.Background(), "clients in Texas")
	require.NoError(t, err)

	done, err := engine.Deny(state.ID)
	require.NoError(t, err)

	assert.Equal(t, StageCompleted, done.Stage)
	assert.True(t, done.Visited(StageApprovalDenied))
	assert.False(t, done.Visited(StageExecuted))
	assert.Empty(t, exec.ran)

	// Resolved requests cannot be approved afterwards
	_, err = engine.Approve(context.Background(), state.ID)
	require.Error(t, err)
	assert.True(t, askerrors.IsType(err, askerrors.ErrTypeApproval))
}

func TestSilenceKeepsRequestSuspended(t *testing.T) {
	engine := newTestEngine(t, texasModel(), &fakeExecutor{})

	state, err := engine.Submit(context.Background(), "clients in Texas")
	require.NoError(t, err)

	// No approval arrives; the request just sits at the gate
	suspended, ok := engine.Get(state.ID)
	require.True(t, ok)
	assert.Equal(t, StageAwaitingApproval, suspended.Stage)
}

func TestCancel_DiscardsWithoutSideEffects(t *testing.T) {
	exec := &fakeExecutor{}
	model := texasModel()
	manager := freshManager(t)
	before := manager.ActiveSnapshot()
	engine := NewEngine(model, manager, exec, 100)

	state, err := engine.Submit(context.Background(), "clients in Texas")
	require.NoError(t, err)

	require.NoError(t, engine.Cancel(state.ID))

	_, ok := engine.Get(state.ID)
	assert.False(t, ok)
	assert.Empty(t, exec.ran)
	assert.Same(t, before, manager.ActiveSnapshot())

	assert.Error(t, engine.Cancel(state.ID))
}

func TestSubmit_ValidationUsesFullSchema(t *testing.T) {
	model := texasModel()
	model.sql = "SELECT p.id FROM client c JOIN project p ON p.client_id = c.id"
	engine := newTestEngine(t, model, &fakeExecutor{})

	state, err := engine.Submit(context.Background(), "clients in Texas")
	require.NoError(t, err)

	// The narrowed context excludes project, but the table exists in the
	// schema and the statement must still reach the gate.
	require.True(t, state.Context.HasTable("client"))
	require.False(t, state.Context.HasTable("project"))
	assert.Equal(t, StageAwaitingApproval, state.Stage)
}

func TestSubmit_ValidatorRejectionIsTerminal(t *testing.T) {
	model := texasModel()
	model.sql = "DROP TABLE client"
	exec := &fakeExecutor{}
	engine := newTestEngine(t, model, exec)

	state, err := engine.Submit(context.Background(), "remove all clients")
	require.NoError(t, err)

	assert.Equal(t, StageCompleted, state.Stage)
	assert.True(t, state.Visited(StageRejectedByValidator))
	assert.False(t, state.Visited(StageAwaitingApproval))
	assert.Empty(t, exec.ran)

	_, ok := engine.Get(state.ID)
	assert.False(t, ok)
}

func TestSubmit_IntentExtractionFailure(t *testing.T) {
	model := texasModel()
	model.intentErr = errors.New("model unreachable")
	engine := newTestEngine(t, model, &fakeExecutor{})

	state, err := engine.Submit(context.Background(), "anything")
	require.Error(t, err)

	assert.Equal(t, StageCompleted, state.Stage)
	assert.Equal(t, IntentExtractionFailed, state.FailureReason)
	assert.True(t, state.Visited(StageFailed))
	assert.Contains(t, state.LastError(), "model unreachable")
	assert.Equal(t, 0, model.generateCalls)
}

func TestSubmit_GenerationFailure(t *testing.T) {
	model := texasModel()
	model.sqlErr = errors.New("no usable SQL")
	engine := newTestEngine(t, model, &fakeExecutor{})

	state, err := engine.Submit(context.Background(), "clients in Texas")
	require.Error(t, err)

	assert.Equal(t, GenerationFailed, state.FailureReason)
	assert.True(t, state.Visited(StageContextNarrowed))
	assert.False(t, state.Visited(StageSQLGenerated))
}

func TestApprove_ExecutionFailure(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("connection reset")}
	engine := newTestEngine(t, texasModel(), exec)

	state, err := engine.Submit(context.Background(), "clients in Texas")
	require.NoError(t, err)

	done, err := engine.Approve(context.Background(), state.ID)
	require.Error(t, err)

	assert.Equal(t, StageCompleted, done.Stage)
	assert.Equal(t, ExecutionFailed, done.FailureReason)
	assert.True(t, done.Visited(StageApproved))
	assert.False(t, done.Visited(StageExecuted))
}

func TestSubmit_StaleRefreshFailureDoesNotHalt(t *testing.T) {
	clock := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	manager := schema.NewManager(time.Minute, schema.WithClock(func() time.Time { return clock }))
	require.NoError(t, manager.Refresh(context.Background(), schema.SourceManual, clientTables()))

	// Push the clock past the TTL so the snapshot reads as stale
	clock = clock.Add(time.Hour)
	require.True(t, manager.IsStale())

	provider := &fakeProvider{err: errors.New("db down")}
	before := manager.ActiveSnapshot()
	engine := NewEngine(texasModel(), manager, &fakeExecutor{}, 100,
		WithIntrospection(provider))

	state, err := engine.Submit(context.Background(), "clients in Texas")
	require.NoError(t, err)

	assert.Equal(t, StageAwaitingApproval, state.Stage)
	assert.Equal(t, 1, provider.calls)
	assert.Same(t, before, manager.ActiveSnapshot())
}

func TestSubmit_StaleRefreshSwapsSnapshot(t *testing.T) {
	clock := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	manager := schema.NewManager(time.Minute, schema.WithClock(func() time.Time { return clock }))
	require.NoError(t, manager.Refresh(context.Background(), schema.SourceManual, clientTables()))

	clock = clock.Add(time.Hour)

	provider := &fakeProvider{tables: clientTables()}
	before := manager.ActiveSnapshot()
	engine := NewEngine(texasModel(), manager, &fakeExecutor{}, 100,
		WithIntrospection(provider))

	_, err := engine.Submit(context.Background(), "clients in Texas")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	assert.NotSame(t, before, manager.ActiveSnapshot())
	assert.Equal(t, schema.SourceIntrospection, manager.ActiveSnapshot().Source)
}

func TestApprove_SummaryDegradesToRowCount(t *testing.T) {
	model := texasModel()
	model.summaryErr = errors.New("model overloaded")
	exec := &fakeExecutor{result: &database.Result{
		Columns: []string{"id"},
		Rows:    [][]string{{"1"}, {"2"}, {"3"}},
	}}
	engine := newTestEngine(t, model, exec)

	state, err := engine.Submit(context.Background(), "clients in Texas")
	require.NoError(t, err)

	done, err := engine.Approve(context.Background(), state.ID)
	require.NoError(t, err)

	assert.Equal(t, StageCompleted, done.Stage)
	assert.Equal(t, "Query returned 3 row(s).", done.Summary)
}

func TestApprove_SummariesDisabled(t *testing.T) {
	model := texasModel()
	exec := &fakeExecutor{result: &database.Result{Rows: [][]string{{"1"}}}}
	engine := newTestEngine(t, model, exec, WithSummaries(false))

	state, err := engine.Submit(context.Background(), "clients in Texas")
	require.NoError(t, err)

	done, err := engine.Approve(context.Background(), state.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, model.summarizeCalls)
	assert.Equal(t, "Query returned 1 row(s).", done.Summary)
}

func TestApprove_UnknownID(t *testing.T) {
	engine := newTestEngine(t, texasModel(), &fakeExecutor{})

	_, err := engine.Approve(context.Background(), "nope")

	require.Error(t, err)
	assert.True(t, askerrors.IsType(err, askerrors.ErrTypeApproval))
}
