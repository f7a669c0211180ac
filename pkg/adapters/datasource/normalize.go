package datasource

import (
	"fmt"
	"math/big"
	"time"

	"github.com/queryline-io/queryline-engine/pkg/models"
)

// NormalizeValue converts an engine-native value into one of the portable
// kinds: string, int64, float64, bool, nil, map[string]any, []any. Dates
// become RFC 3339 strings. Anything unrecognized is stringified so the
// result always serializes cleanly.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string, bool, int64, float64:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case *big.Float:
		f, _ := val.Float64()
		return f
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = NormalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = NormalizeValue(inner)
		}
		return out
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// InferType names the portable kind of a normalized value.
func InferType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	case string:
		return "string"
	default:
		return "object"
	}
}

// BuildResultSet assembles the common result shape from normalized rows.
// Rows beyond limit are cut and the result flagged as truncated; adapters
// that bound server-side fetch limit+1 rows so truncation is detectable.
// Column types are inferred from the first non-null value per column.
func BuildResultSet(columnNames []string, rows []map[string]any, limit int, elapsed time.Duration) *models.ResultSet {
	truncated := false
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
		truncated = true
	}

	columns := make([]models.ResultColumn, len(columnNames))
	for i, name := range columnNames {
		inferred := "null"
		for _, row := range rows {
			if row[name] != nil {
				inferred = InferType(row[name])
				break
			}
		}
		columns[i] = models.ResultColumn{Name: name, InferredType: inferred}
	}

	return &models.ResultSet{
		Columns:         columns,
		Rows:            rows,
		RowCount:        len(rows),
		ExecutionTimeMs: elapsed.Milliseconds(),
		Truncated:       truncated,
	}
}
