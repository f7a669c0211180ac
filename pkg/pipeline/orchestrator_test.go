package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/adapters/datasource"
	"github.com/queryline-io/queryline-engine/pkg/apperrors"
	"github.com/queryline-io/queryline-engine/pkg/models"
	"github.com/queryline-io/queryline-engine/pkg/schema"
	"github.com/queryline-io/queryline-engine/pkg/translator"
)

type stubAdapter struct {
	result   *models.ResultSet
	executed []models.ExecutionRequest
}

func (s *stubAdapter) Connect(context.Context) error { return nil }

func (s *stubAdapter) Execute(_ context.Context, req *models.ExecutionRequest) (*models.ResultSet, error) {
	s.executed = append(s.executed, *req)
	return s.result, nil
}

func (s *stubAdapter) IntrospectSchema(context.Context) (*models.SchemaDescriptor, error) {
	return &models.SchemaDescriptor{
		Tables: []models.TableDescriptor{
			{Name: "inventory", Columns: []models.ColumnDescriptor{
				{Name: "quantity", DataType: "integer"},
			}},
		},
	}, nil
}

func (s *stubAdapter) Ping(context.Context) error { return nil }
func (s *stubAdapter) Close() error               { return nil }

type stubStrategy struct {
	result   *models.TranslationResult
	err      error
	requests []*models.TranslationRequest
}

func (s *stubStrategy) Translate(_ context.Context, req *models.TranslationRequest) (*models.TranslationResult, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubStrategy) Name() string { return "model" }

func testOrchestrator(t *testing.T, adapter *stubAdapter, model translator.Strategy) *Orchestrator {
	t.Helper()

	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{Kind: models.EnginePostgres, DisplayName: "stub"},
		Factory: func(_ *models.ConnectionProfile, _ *zap.Logger) (datasource.Adapter, error) {
			return adapter, nil
		},
	})

	manager := datasource.NewConnectionManager(2, time.Second, zap.NewNop())
	profile := &models.ConnectionProfile{
		EngineKind: models.EnginePostgres,
		Host:       "localhost",
		Port:       5432,
		Database:   "trialsupply",
		Username:   "app",
	}

	return New(Options{
		Schemas: schema.NewProvider(manager, time.Minute, zap.NewNop()),
		Pattern: translator.NewPatternStrategy(zap.NewNop()),
		Model:   model,
		Manager: manager,
		Profile: profile,
		Logger:  zap.NewNop(),
	})
}

func barResult() *models.ResultSet {
	return &models.ResultSet{
		Columns: []models.ResultColumn{
			{Name: "site_name", InferredType: "string"},
			{Name: "quantity", InferredType: "number"},
		},
		Rows: []map[string]any{
			{"site_name": "Boston", "quantity": int64(120)},
			{"site_name": "Leeds", "quantity": int64(45)},
		},
		RowCount: 2,
	}
}

func TestInterpret_PatternAccepted(t *testing.T) {
	o := testOrchestrator(t, &stubAdapter{}, nil)

	result, err := o.Interpret(context.Background(), "show low stock", "")
	require.NoError(t, err)

	assert.Equal(t, StateAwaitingApproval, result.State)
	assert.True(t, result.Accepted)
	assert.Contains(t, result.Query, "reorder_level")
	assert.Equal(t, models.ChartBar, result.ChartType)
	assert.Equal(t, "pattern", result.Strategy)
	assert.NotEmpty(t, result.ConversationID)
}

func TestInterpret_Clarify(t *testing.T) {
	o := testOrchestrator(t, &stubAdapter{}, nil)

	result, err := o.Interpret(context.Background(), "what is the meaning of life", "")
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, result.State)
	assert.True(t, result.NeedsClarification)
	assert.False(t, result.Accepted)

	// Nothing is parked for approval.
	_, err = o.ExecuteApproved(context.Background(), result.ConversationID, "SELECT 1", 0, false)
	assert.ErrorIs(t, err, ErrNoValidatedQuery)
}

func TestInterpret_RejectsMutation(t *testing.T) {
	model := &stubStrategy{result: &models.TranslationResult{
		Query:       "SELECT * FROM inventory; DROP TABLE inventory;",
		Dialect:     models.DialectSQL,
		Explanation: "inventory dump",
		Confidence:  0.85,
	}}
	o := testOrchestrator(t, &stubAdapter{}, model)

	result, err := o.Interpret(context.Background(), "dump inventory", "")
	require.NoError(t, err)

	assert.Equal(t, StateRejected, result.State)
	assert.False(t, result.Accepted)
	assert.Equal(t, string(models.ReasonForbiddenKeyword), result.RejectionCode)
	assert.NotEmpty(t, result.RejectionReason)
}

func TestInterpret_ModelFallbackToPattern(t *testing.T) {
	model := &stubStrategy{err: apperrors.New(apperrors.KindModelUnavailable, "translator", "endpoint down")}
	o := testOrchestrator(t, &stubAdapter{}, model)

	result, err := o.Interpret(context.Background(), "show delayed shipments", "")
	require.NoError(t, err)

	assert.Equal(t, "pattern", result.Strategy)
	assert.True(t, result.Accepted)
	assert.Len(t, model.requests, 1)
}

func TestInterpret_ModelHardFailureSurfaces(t *testing.T) {
	model := &stubStrategy{err: apperrors.New(apperrors.KindExecutionError, "translator", "boom")}
	o := testOrchestrator(t, &stubAdapter{}, model)

	_, err := o.Interpret(context.Background(), "anything", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindTranslationFailed, apperrors.KindOf(err))
}

func TestInterpret_PriorTurnsFlow(t *testing.T) {
	model := &stubStrategy{result: &models.TranslationResult{
		Query:      "SELECT site_name FROM sites",
		Dialect:    models.DialectSQL,
		Confidence: 0.85,
	}}
	o := testOrchestrator(t, &stubAdapter{}, model)

	first, err := o.Interpret(context.Background(), "show all sites", "")
	require.NoError(t, err)
	_, err = o.Interpret(context.Background(), "only the active ones", first.ConversationID)
	require.NoError(t, err)

	require.Len(t, model.requests, 2)
	assert.Empty(t, model.requests[0].PriorTurns)
	require.Len(t, model.requests[1].PriorTurns, 1)
	assert.Equal(t, "show all sites", model.requests[1].PriorTurns[0].Question)
	assert.Equal(t, "SELECT site_name FROM sites", model.requests[1].PriorTurns[0].Query)
}

func TestExecuteApproved_HappyPath(t *testing.T) {
	adapter := &stubAdapter{result: barResult()}
	o := testOrchestrator(t, adapter, nil)

	interpreted, err := o.Interpret(context.Background(), "show shipments by site", "")
	require.NoError(t, err)
	require.True(t, interpreted.Accepted)

	executed, err := o.ExecuteApproved(context.Background(),
		interpreted.ConversationID, interpreted.Query, 0, false)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, executed.State)
	assert.True(t, executed.Accepted)
	assert.Equal(t, 2, executed.Result.RowCount)
	assert.Equal(t, models.ChartBar, executed.ChartHint.ChartType)
	assert.Equal(t, "site_name", executed.ChartHint.XField)
	assert.Equal(t, "quantity", executed.ChartHint.YField)
}

func TestExecuteApproved_UnknownConversation(t *testing.T) {
	o := testOrchestrator(t, &stubAdapter{}, nil)

	_, err := o.ExecuteApproved(context.Background(), "nope", "SELECT 1", 0, false)
	assert.ErrorIs(t, err, ErrUnknownConversation)
}

func TestExecuteApproved_RejectsUnflaggedEdit(t *testing.T) {
	adapter := &stubAdapter{result: barResult()}
	o := testOrchestrator(t, adapter, nil)

	interpreted, err := o.Interpret(context.Background(), "show shipments by site", "")
	require.NoError(t, err)

	_, err = o.ExecuteApproved(context.Background(),
		interpreted.ConversationID, interpreted.Query+" LIMIT 5", 0, false)
	assert.ErrorIs(t, err, ErrQueryMismatch)
}

func TestExecuteApproved_AcceptsFlaggedEdit(t *testing.T) {
	adapter := &stubAdapter{result: barResult()}
	o := testOrchestrator(t, adapter, nil)

	interpreted, err := o.Interpret(context.Background(), "show shipments by site", "")
	require.NoError(t, err)

	edited := interpreted.Query + " LIMIT 5"
	executed, err := o.ExecuteApproved(context.Background(),
		interpreted.ConversationID, edited, 0, true)
	require.NoError(t, err)
	assert.True(t, executed.Accepted)
}

func TestExecuteApproved_RevalidatesEdits(t *testing.T) {
	adapter := &stubAdapter{result: barResult()}
	o := testOrchestrator(t, adapter, nil)

	interpreted, err := o.Interpret(context.Background(), "show shipments by site", "")
	require.NoError(t, err)

	executed, err := o.ExecuteApproved(context.Background(),
		interpreted.ConversationID, "DROP TABLE shipments", 0, true)
	require.NoError(t, err)

	assert.Equal(t, StateRejected, executed.State)
	assert.Equal(t, string(models.ReasonForbiddenKeyword), executed.RejectionCode)
	assert.Empty(t, adapter.executed)
}

func TestExecuteApproved_DefaultLimitApplied(t *testing.T) {
	adapter := &stubAdapter{result: barResult()}
	o := testOrchestrator(t, adapter, nil)

	interpreted, err := o.Interpret(context.Background(), "show shipments by site", "")
	require.NoError(t, err)

	_, err = o.ExecuteApproved(context.Background(),
		interpreted.ConversationID, interpreted.Query, 0, false)
	require.NoError(t, err)

	require.Len(t, adapter.executed, 1)
	assert.Equal(t, models.DefaultRowLimit, adapter.executed[0].Limit)
}
