package models

// Dialect identifies the query language flavor a translation targets.
type Dialect string

const (
	// DialectSQL is SQL text for the relational engine kinds.
	DialectSQL Dialect = "sql"
	// DialectDocument is a structured JSON find/aggregate specification for
	// document-oriented engines.
	DialectDocument Dialect = "document"
)

// ChartType is a suggested visualization for a result set.
type ChartType string

const (
	ChartBar   ChartType = "bar"
	ChartLine  ChartType = "line"
	ChartPie   ChartType = "pie"
	ChartTable ChartType = "table"
	ChartNone  ChartType = "none"
)

// ValidChartType reports whether s names a known chart type.
func ValidChartType(s string) bool {
	switch ChartType(s) {
	case ChartBar, ChartLine, ChartPie, ChartTable, ChartNone:
		return true
	}
	return false
}

// Turn is one prior question/query exchange within a conversation.
type Turn struct {
	Question string `json:"question"`
	Query    string `json:"query"`
}

// TranslationRequest carries everything a translator strategy needs for one
// question. It lives for a single pipeline invocation; PriorTurns is supplied
// by the caller when the question belongs to a conversation.
type TranslationRequest struct {
	Question string            `json:"question"`
	Schema   *SchemaDescriptor `json:"schema"`
	// Dialect is the query language the active connection profile speaks.
	// Strategies must produce a query in this dialect.
	Dialect    Dialect `json:"dialect"`
	PriorTurns []Turn  `json:"prior_turns,omitempty"`
}

// TranslationResult is the output contract shared by all translator
// strategies. Immutable once produced.
type TranslationResult struct {
	Query          string    `json:"query"`
	Dialect        Dialect   `json:"dialect"`
	Explanation    string    `json:"explanation"`
	SuggestedChart ChartType `json:"suggested_chart"`
	// Confidence is in [0,1]. Pattern matches carry catalog-fixed values;
	// model translations carry a heuristic constant unless the model
	// reported one.
	Confidence float64 `json:"confidence"`
	// NeedsClarification marks the pattern strategy's "no entry matched"
	// terminal result. It is a valid result, not an error.
	NeedsClarification bool `json:"needs_clarification,omitempty"`
}
