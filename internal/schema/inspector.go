package schema

import (
	"database/sql"
	"fmt"
	"strings"

	"tixferry/internal/dialect"
)

// Inspector enumerates user tables, sequences and column metadata through the
// dialect's introspection queries. Failures propagate fatally: schema
// discovery is a prerequisite, not a resilient operation.
type Inspector struct {
	db     *sql.DB
	d      dialect.Dialect
	schema string
}

func NewInspector(db *sql.DB, d dialect.Dialect, schemaName string) *Inspector {
	return &Inspector{db: db, d: d, schema: d.DefaultSchema(schemaName)}
}

// ListUserTables returns the names of genuine user tables (no views, no
// system catalogs) in the engine's enumeration order.
func (in *Inspector) ListUserTables() ([]string, error) {
	rows, err := in.db.Query(in.d.TablesQuery(), in.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

// ListUserSequences returns the engine's sequence names, or nil when the
// engine has no native sequences.
func (in *Inspector) ListUserSequences() ([]string, error) {
	query := in.d.SequencesQuery()
	if query == "" {
		return nil, nil
	}

	rows, err := in.db.Query(query, in.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query sequences: %w", err)
	}
	defer rows.Close()

	var seqs []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan sequence name: %w", err)
		}
		seqs = append(seqs, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sequences: %w", err)
	}
	return seqs, nil
}

// DescribeColumns returns the table descriptor with column names lower-cased
// and binary columns flagged per the dialect's type rules.
func (in *Inspector) DescribeColumns(table string) (*Table, error) {
	rows, err := in.db.Query(in.d.ColumnsQuery(), in.schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", table, err)
	}
	defer rows.Close()

	t := &Table{Name: table, Columns: make(map[string]Column)}
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, fmt.Errorf("failed to scan column (table: %s): %w", table, err)
		}
		name = strings.ToLower(name)
		t.Order = append(t.Order, name)
		t.Columns[name] = Column{
			Name:     name,
			DataType: dataType,
			IsBinary: in.d.IsBinaryType(dataType),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	if len(t.Order) == 0 {
		return nil, fmt.Errorf("table %s has no columns (missing or not visible)", table)
	}
	return t, nil
}
