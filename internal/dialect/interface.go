package dialect

// Dialect abstracts database-specific SQL generation and type rules so the
// same inspection and transfer code can run against either engine.
type Dialect interface {
	// Metadata Queries (Schema Introspection)
	TablesQuery() string    // bind: schema name
	ColumnsQuery() string   // bind: schema name, table name
	SequencesQuery() string // bind: schema name; empty string when unsupported

	// Query Generation
	SelectQuery(table string, cols []string) string
	SelectRangeQuery(table, keyCol string, cols []string) string // bind: low, high
	InsertQuery(table string, cols []string) string
	DeleteAllQuery(table string) string
	CountQuery(table string) string
	KeyRangeQuery(table, keyCol string) string // SELECT MIN, MAX in one row
	MaxKeyQuery(table, keyCol string) string
	ResetSequenceQuery() string // bind: sequence name, next value; empty when unsupported
	Placeholder(index int) string

	// Type Classification
	IsBinaryType(declared string) bool
	IsNarrowIntType(declared string) bool

	// Helpers
	DefaultSchema(configured string) string
}
