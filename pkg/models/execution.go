package models

const (
	// DefaultRowLimit applies when an execution request does not specify one.
	DefaultRowLimit = 100
	// MaxRowLimit is the hard cap on rows returned by any execution. Requests
	// above it are clamped, never rejected.
	MaxRowLimit = 1000
)

// ExecutionRequest asks the execution engine to run an approved query.
// Constructing one from anything but an accepted ValidationVerdict is an
// orchestrator-level invariant; the type itself does not enforce it because
// the validator and the engine are deliberately decoupled.
type ExecutionRequest struct {
	Query   string  `json:"query"`
	Dialect Dialect `json:"dialect"`
	Limit   int     `json:"limit"`
}

// EffectiveLimit returns the bounded row limit for the request: the default
// when unset, the hard cap when exceeding it.
func (r ExecutionRequest) EffectiveLimit() int {
	if r.Limit <= 0 {
		return DefaultRowLimit
	}
	if r.Limit > MaxRowLimit {
		return MaxRowLimit
	}
	return r.Limit
}

// ResultColumn describes one column of a normalized result set.
type ResultColumn struct {
	Name string `json:"name"`
	// InferredType is one of the portable value kinds: "string", "number",
	// "boolean", "null", or "object".
	InferredType string `json:"inferred_type"`
}

// ResultSet is the engine-agnostic shape all adapters normalize into. Owned
// transiently by the orchestrator for one request; never cached.
type ResultSet struct {
	Columns         []ResultColumn   `json:"columns"`
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
	// Truncated is set when the engine could not bound the result server-side
	// and rows were cut client-side at the limit.
	Truncated bool `json:"truncated,omitempty"`
}

// VisualizationHint recommends a chart for a result set. A ChartNone hint
// carries empty field names.
type VisualizationHint struct {
	ChartType ChartType `json:"chart_type"`
	XField    string    `json:"x_field,omitempty"`
	YField    string    `json:"y_field,omitempty"`
}
