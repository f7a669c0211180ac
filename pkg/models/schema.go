package models

// ColumnDescriptor describes a single column (or document field) in the
// introspected schema.
type ColumnDescriptor struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
}

// TableDescriptor describes a table or collection.
type TableDescriptor struct {
	Name    string             `json:"name"`
	Columns []ColumnDescriptor `json:"columns"`
}

// SchemaDescriptor is an immutable snapshot of the structural description of
// the configured database. Consumers receive copies and must not mutate them.
// Table names are unique within a descriptor; column names are unique within
// a table.
type SchemaDescriptor struct {
	Tables []TableDescriptor `json:"tables"`
}

// Table returns the descriptor for the named table, or nil if absent.
func (s *SchemaDescriptor) Table(name string) *TableDescriptor {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the descriptor so callers can hold it past
// the provider's cache lifetime.
func (s *SchemaDescriptor) Clone() *SchemaDescriptor {
	if s == nil {
		return nil
	}
	out := &SchemaDescriptor{Tables: make([]TableDescriptor, len(s.Tables))}
	for i, t := range s.Tables {
		cols := make([]ColumnDescriptor, len(t.Columns))
		copy(cols, t.Columns)
		out.Tables[i] = TableDescriptor{Name: t.Name, Columns: cols}
	}
	return out
}

// IsEmpty reports whether the descriptor contains no tables.
func (s *SchemaDescriptor) IsEmpty() bool {
	return s == nil || len(s.Tables) == 0
}
