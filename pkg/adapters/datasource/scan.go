package datasource

import (
	"database/sql"
	"fmt"
	"strings"
)

// TrimTrailingSemicolons removes trailing semicolons and whitespace so a
// statement can be wrapped as a subquery.
func TrimTrailingSemicolons(query string) string {
	q := strings.TrimSpace(query)
	for strings.HasSuffix(q, ";") {
		q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	}
	return q
}

// ScanRows drains a database/sql result into column names and normalized
// row maps. Shared by the adapters built on database/sql.
func ScanRows(rows *sql.Rows) ([]string, []map[string]any, error) {
	columnNames, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read columns: %w", err)
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columnNames))
		pointers := make([]any, len(columnNames))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(columnNames))
		for i, name := range columnNames {
			row[name] = NormalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}

	return columnNames, out, nil
}
