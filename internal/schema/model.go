package schema

// Column describes one column as seen by an engine. Names are normalized to
// lower case so the two engines can be compared case-insensitively.
type Column struct {
	Name     string
	DataType string
	IsBinary bool
}

// Table is the per-table descriptor built by the Inspector. Order holds the
// column names in the engine's declared order; Columns is keyed by the
// lower-cased name. Descriptors are transient, rebuilt per migration pass.
type Table struct {
	Name    string
	Order   []string
	Columns map[string]Column
}

// HasColumn reports whether the table has a column with the given
// (lower-cased) name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Columns[name]
	return ok
}
