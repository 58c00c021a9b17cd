package dialect

import (
	"fmt"
	"strings"
)

type PostgresDialect struct{}

func (d *PostgresDialect) TablesQuery() string {
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = $1 AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

// udt_name is more precise than data_type here (int4 vs "integer",
// bytea vs "USER-DEFINED" never happens but arrays do).
func (d *PostgresDialect) ColumnsQuery() string {
	return `SELECT column_name, udt_name FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position`
}

func (d *PostgresDialect) SequencesQuery() string {
	return `SELECT c.relname FROM pg_class c JOIN pg_namespace n ON n.oid = c.relnamespace WHERE c.relkind = 'S' AND n.nspname = $1 ORDER BY c.relname`
}

func (d *PostgresDialect) SelectQuery(table string, cols []string) string {
	return selectList(table, cols)
}

func (d *PostgresDialect) SelectRangeQuery(table, keyCol string, cols []string) string {
	return fmt.Sprintf("%s WHERE %s >= $1 AND %s <= $2 ORDER BY %s", selectList(table, cols), keyCol, keyCol, keyCol)
}

func (d *PostgresDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), vals)
}

func (d *PostgresDialect) DeleteAllQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", table)
}

func (d *PostgresDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
}

func (d *PostgresDialect) KeyRangeQuery(table, keyCol string) string {
	return fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", keyCol, keyCol, table)
}

func (d *PostgresDialect) MaxKeyQuery(table, keyCol string) string {
	return fmt.Sprintf("SELECT MAX(%s) FROM %s", keyCol, table)
}

// setval with is_called=false makes the next nextval() return exactly the
// value we hand it.
func (d *PostgresDialect) ResetSequenceQuery() string {
	return "SELECT setval($1, $2, false)"
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) IsBinaryType(declared string) bool {
	return strings.ToLower(declared) == "bytea"
}

func (d *PostgresDialect) IsNarrowIntType(declared string) bool {
	switch strings.ToLower(declared) {
	case "int4", "integer", "int":
		return true
	}
	return false
}

func (d *PostgresDialect) DefaultSchema(configured string) string {
	if configured == "" {
		return "public"
	}
	return configured
}
