package translator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/models"
)

func patternRequest(question string) *models.TranslationRequest {
	return &models.TranslationRequest{Question: question, Dialect: models.DialectSQL}
}

func TestPatternStrategy_LowStock(t *testing.T) {
	s := NewPatternStrategy(zap.NewNop())

	result, err := s.Translate(context.Background(), patternRequest("Which items are low on stock?"))
	require.NoError(t, err)

	assert.Contains(t, result.Query, "quantity < i.reorder_level")
	assert.Equal(t, models.DialectSQL, result.Dialect)
	assert.Equal(t, models.ChartBar, result.SuggestedChart)
	assert.Equal(t, 1.0, result.Confidence)
	assert.False(t, result.NeedsClarification)
}

func TestPatternStrategy_FirstMatchWins(t *testing.T) {
	s := NewPatternStrategy(zap.NewNop())

	// "expired" must hit the exact entry, not the looser "expir" one.
	result, err := s.Translate(context.Background(), patternRequest("show expired lots"))
	require.NoError(t, err)
	assert.Contains(t, result.Query, "expiry_date < CURRENT_DATE")
	assert.Equal(t, 1.0, result.Confidence)

	// "expiring" falls through to the looser entry.
	result, err = s.Translate(context.Background(), patternRequest("what is expiring soon"))
	require.NoError(t, err)
	assert.Contains(t, result.Query, "BETWEEN CURRENT_DATE")
	assert.Equal(t, 0.8, result.Confidence)
}

func TestPatternStrategy_ShipmentsBySite(t *testing.T) {
	s := NewPatternStrategy(zap.NewNop())

	result, err := s.Translate(context.Background(), patternRequest("show shipments by site"))
	require.NoError(t, err)
	assert.Contains(t, result.Query, "GROUP BY s.site_name")
	assert.Equal(t, models.ChartBar, result.SuggestedChart)
}

func TestPatternStrategy_ClarifyDefault(t *testing.T) {
	s := NewPatternStrategy(zap.NewNop())

	result, err := s.Translate(context.Background(), patternRequest("what is the meaning of life"))
	require.NoError(t, err)

	assert.True(t, result.NeedsClarification)
	assert.Empty(t, result.Query)
	assert.Equal(t, models.ChartNone, result.SuggestedChart)
	assert.NotEmpty(t, result.Explanation)
}

func TestPatternStrategy_ClarifyNamesEntities(t *testing.T) {
	s := NewPatternStrategy(zap.NewNop())

	result, err := s.Translate(context.Background(), patternRequest("tell me about the facility situation"))
	require.NoError(t, err)

	assert.True(t, result.NeedsClarification)
	assert.Contains(t, result.Explanation, "sites")
}

func TestPatternStrategy_Deterministic(t *testing.T) {
	s := NewPatternStrategy(zap.NewNop())
	req := patternRequest("delayed shipments please")

	first, err := s.Translate(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		got, err := s.Translate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestPatternStrategy_DocumentDialect(t *testing.T) {
	s := NewPatternStrategy(zap.NewNop())

	result, err := s.Translate(context.Background(), &models.TranslationRequest{
		Question: "show delayed shipments",
		Dialect:  models.DialectDocument,
	})
	require.NoError(t, err)

	assert.Equal(t, models.DialectDocument, result.Dialect)
	assert.Contains(t, result.Query, `"op":"find"`)
	assert.Contains(t, result.Query, `"status":"delayed"`)
}

func TestPatternStrategy_DocumentExpiredUsesAggregate(t *testing.T) {
	s := NewPatternStrategy(zap.NewNop())

	// Comparing against the current date needs $$NOW, which Mongo only
	// binds inside aggregation expressions.
	result, err := s.Translate(context.Background(), &models.TranslationRequest{
		Question: "which lots are expired",
		Dialect:  models.DialectDocument,
	})
	require.NoError(t, err)

	assert.Contains(t, result.Query, `"op":"aggregate"`)
	assert.Contains(t, result.Query, `"$expr"`)
	assert.NotContains(t, result.Query, `"op":"find"`)
}

func TestPatternStrategy_DocumentSkipsSQLOnlyEntries(t *testing.T) {
	s := NewPatternStrategy(zap.NewNop())

	// "expiring soon" has no document variant so the question falls through
	// to clarify for document profiles.
	result, err := s.Translate(context.Background(), &models.TranslationRequest{
		Question: "what is expiring soon",
		Dialect:  models.DialectDocument,
	})
	require.NoError(t, err)
	assert.True(t, result.NeedsClarification)
}

func TestPatternStrategy_CaseInsensitive(t *testing.T) {
	s := NewPatternStrategy(zap.NewNop())

	result, err := s.Translate(context.Background(), patternRequest("SHOW DELAYED SHIPMENTS"))
	require.NoError(t, err)
	assert.False(t, result.NeedsClarification)
}

func TestNewPatternStrategyFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	catalog := `
- name: custom-depots
  match: ["depot"]
  query: "SELECT depot_name FROM depots ORDER BY depot_name"
  explanation: "All depots."
  chart: table
  confidence: 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o644))

	s, err := NewPatternStrategyFromFile(path, zap.NewNop())
	require.NoError(t, err)

	result, err := s.Translate(context.Background(), patternRequest("list all depot locations"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT depot_name FROM depots ORDER BY depot_name", result.Query)
	assert.Equal(t, 0.9, result.Confidence)

	// The file replaces the built-in catalog.
	result, err = s.Translate(context.Background(), patternRequest("show low stock"))
	require.NoError(t, err)
	assert.True(t, result.NeedsClarification)
}

func TestNewPatternStrategyFromFile_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("[]"), 0o644))
	_, err := NewPatternStrategyFromFile(empty, zap.NewNop())
	assert.Error(t, err)

	missing := filepath.Join(dir, "missing.yaml")
	require.NoError(t, os.WriteFile(missing, []byte("- name: broken\n  match: [\"x\"]\n"), 0o644))
	_, err = NewPatternStrategyFromFile(missing, zap.NewNop())
	assert.Error(t, err)
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		question string
		wantType IntentType
		entities []string
	}{
		{"show all sites", IntentRetrieve, []string{"sites"}},
		{"how many studies are active", IntentAggregate, []string{"studies"}},
		{"compare vendor ratings", IntentCompare, []string{"vendors"}},
		{"shipment trend over time", IntentTrend, []string{"shipments"}},
		{"something unrelated", IntentGeneral, nil},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got := ClassifyIntent(tt.question)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.entities, got.Entities)
		})
	}
}
