// Package viz recommends a chart type for a normalized result set. The
// advisor is a fixed decision tree over the result's shape; it never fails
// (the worst case is "none").
package viz

import (
	"strings"

	"github.com/queryline-io/queryline-engine/pkg/models"
)

// temporalHints are column-name fragments that mark a temporal axis.
var temporalHints = []string{"date", "time", "day", "month", "year", "week"}

// Recommend inspects the result set's shape and returns a visualization hint.
//
// Decision tree:
//   - no rows → none
//   - exactly two columns, second numeric, first temporal → line
//   - exactly two columns, second numeric → bar
//   - anything else (wide results, no numeric column, single column) → table
func Recommend(rs *models.ResultSet) models.VisualizationHint {
	if rs == nil || rs.RowCount == 0 || len(rs.Columns) == 0 {
		return models.VisualizationHint{ChartType: models.ChartNone}
	}

	if len(rs.Columns) == 2 && isNumericColumn(rs, 1) {
		hint := models.VisualizationHint{
			ChartType: models.ChartBar,
			XField:    rs.Columns[0].Name,
			YField:    rs.Columns[1].Name,
		}
		if isTemporalName(rs.Columns[0].Name) {
			hint.ChartType = models.ChartLine
		}
		return hint
	}

	return models.VisualizationHint{ChartType: models.ChartTable}
}

// isNumericColumn reports whether the column at index i holds numbers, using
// the inferred type when present and falling back to sampling the first
// non-nil value.
func isNumericColumn(rs *models.ResultSet, i int) bool {
	if rs.Columns[i].InferredType == "number" {
		return true
	}
	if rs.Columns[i].InferredType != "" && rs.Columns[i].InferredType != "null" {
		return false
	}

	name := rs.Columns[i].Name
	for _, row := range rs.Rows {
		switch row[name].(type) {
		case int, int32, int64, float32, float64:
			return true
		case nil:
			continue
		default:
			return false
		}
	}
	return false
}

func isTemporalName(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range temporalHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
