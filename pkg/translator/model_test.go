package translator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/apperrors"
	"github.com/queryline-io/queryline-engine/pkg/llm"
	"github.com/queryline-io/queryline-engine/pkg/models"
)

func modelRequest() *models.TranslationRequest {
	return &models.TranslationRequest{
		Question: "show shipments by site",
		Dialect:  models.DialectSQL,
		Schema: &models.SchemaDescriptor{
			Tables: []models.TableDescriptor{
				{Name: "shipments", Columns: []models.ColumnDescriptor{
					{Name: "id", DataType: "integer"},
					{Name: "site_id", DataType: "integer"},
				}},
				{Name: "sites", Columns: []models.ColumnDescriptor{
					{Name: "id", DataType: "integer"},
					{Name: "site_name", DataType: "text"},
				}},
			},
		},
	}
}

func staticReply(reply string) *llm.MockClient {
	mock := llm.NewMockClient()
	mock.CompleteFunc = func(_ context.Context, _, _ string) (*llm.CompletionResult, error) {
		return &llm.CompletionResult{Content: reply}, nil
	}
	return mock
}

func TestModelStrategy_ParsesSectionedReply(t *testing.T) {
	reply := `SQL:
SELECT s.site_name, COUNT(*) AS shipment_count
FROM shipments sh JOIN sites s ON sh.site_id = s.id
GROUP BY s.site_name

EXPLANATION:
Counts shipments per site.

CHART:
bar`

	s := NewModelStrategy(staticReply(reply), 0, zap.NewNop())
	result, err := s.Translate(context.Background(), modelRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Query, "SELECT s.site_name"))
	assert.Contains(t, result.Query, "GROUP BY s.site_name")
	assert.Equal(t, "Counts shipments per site.", result.Explanation)
	assert.Equal(t, models.ChartBar, result.SuggestedChart)
	assert.Equal(t, modelConfidence, result.Confidence)
}

func TestModelStrategy_ToleratesCodeFencesAndProse(t *testing.T) {
	reply := "Sure, here is the query you asked for:\n\n" +
		"```sql\nSELECT site_name FROM sites ORDER BY site_name\n```\n\n" +
		"Let me know if you need anything else."

	s := NewModelStrategy(staticReply(reply), 0, zap.NewNop())
	result, err := s.Translate(context.Background(), modelRequest())
	require.NoError(t, err)

	assert.Equal(t, "SELECT site_name FROM sites ORDER BY site_name", result.Query)
	assert.Equal(t, models.ChartTable, result.SuggestedChart)
}

func TestModelStrategy_StripsPreambleBeforeSelect(t *testing.T) {
	reply := "SQL:\nHere you go: SELECT id FROM shipments\n\nEXPLANATION:\nAll shipment ids."

	s := NewModelStrategy(staticReply(reply), 0, zap.NewNop())
	result, err := s.Translate(context.Background(), modelRequest())
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM shipments", result.Query)
}

func TestModelStrategy_UnparseableReply(t *testing.T) {
	s := NewModelStrategy(staticReply("I cannot help with that question."), 0, zap.NewNop())

	_, err := s.Translate(context.Background(), modelRequest())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindModelResponseUnparseable, apperrors.KindOf(err))
}

func TestModelStrategy_UnavailableOnTransportError(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteFunc = func(_ context.Context, _, _ string) (*llm.CompletionResult, error) {
		return nil, llm.NewError(llm.ErrorTypeEndpoint, "connection failed", true, nil)
	}

	s := NewModelStrategy(mock, 0, zap.NewNop())
	_, err := s.Translate(context.Background(), modelRequest())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindModelUnavailable, apperrors.KindOf(err))
}

func TestModelStrategy_TimeoutIsUnavailable(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteFunc = func(ctx context.Context, _, _ string) (*llm.CompletionResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	s := NewModelStrategy(mock, 20*time.Millisecond, zap.NewNop())
	_, err := s.Translate(context.Background(), modelRequest())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindModelUnavailable, apperrors.KindOf(err))
}

func TestModelStrategy_PromptCarriesSchemaAndTurns(t *testing.T) {
	var captured string
	mock := llm.NewMockClient()
	mock.CompleteFunc = func(_ context.Context, _, prompt string) (*llm.CompletionResult, error) {
		captured = prompt
		return &llm.CompletionResult{Content: "SQL:\nSELECT 1\nEXPLANATION:\nok"}, nil
	}

	req := modelRequest()
	req.PriorTurns = []models.Turn{
		{Question: "show all sites", Query: "SELECT site_name FROM sites"},
	}

	s := NewModelStrategy(mock, 0, zap.NewNop())
	_, err := s.Translate(context.Background(), req)
	require.NoError(t, err)

	assert.Contains(t, captured, "Table: shipments")
	assert.Contains(t, captured, "site_name")
	assert.Contains(t, captured, "PRIOR EXCHANGES:")
	assert.Contains(t, captured, "show all sites")
	assert.Contains(t, captured, "USER QUESTION: show shipments by site")
}

func TestModelStrategy_DocumentDialect(t *testing.T) {
	reply := `QUERY:
{"op":"find","collection":"shipments","filter":{"status":"delayed"}}

EXPLANATION:
Delayed shipments.

CHART:
table`

	req := modelRequest()
	req.Dialect = models.DialectDocument

	var capturedPrompt string
	mock := llm.NewMockClient()
	mock.CompleteFunc = func(_ context.Context, _, prompt string) (*llm.CompletionResult, error) {
		capturedPrompt = prompt
		return &llm.CompletionResult{Content: reply}, nil
	}

	s := NewModelStrategy(mock, 0, zap.NewNop())
	result, err := s.Translate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, models.DialectDocument, result.Dialect)
	assert.JSONEq(t, `{"op":"find","collection":"shipments","filter":{"status":"delayed"}}`, result.Query)
	assert.Contains(t, capturedPrompt, `"op":"find|aggregate|count"`)
}

func TestModelStrategy_IgnoresUnknownChart(t *testing.T) {
	reply := "SQL:\nSELECT 1\nEXPLANATION:\nok\nCHART:\nhologram"

	s := NewModelStrategy(staticReply(reply), 0, zap.NewNop())
	result, err := s.Translate(context.Background(), modelRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ChartTable, result.SuggestedChart)
}
