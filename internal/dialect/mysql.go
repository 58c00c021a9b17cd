package dialect

import (
	"fmt"
	"strings"
)

type MysqlDialect struct{}

func (d *MysqlDialect) TablesQuery() string {
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (d *MysqlDialect) ColumnsQuery() string {
	return `SELECT COLUMN_NAME, DATA_TYPE FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`
}

// MySQL has no native sequences; auto_increment counters are per table and
// need no post-load fix-up on the source side.
func (d *MysqlDialect) SequencesQuery() string {
	return ""
}

func (d *MysqlDialect) SelectQuery(table string, cols []string) string {
	return selectList(table, cols)
}

func (d *MysqlDialect) SelectRangeQuery(table, keyCol string, cols []string) string {
	return fmt.Sprintf("%s WHERE %s >= ? AND %s <= ? ORDER BY %s", selectList(table, cols), keyCol, keyCol, keyCol)
}

func (d *MysqlDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), vals)
}

func (d *MysqlDialect) DeleteAllQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", table)
}

func (d *MysqlDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
}

func (d *MysqlDialect) KeyRangeQuery(table, keyCol string) string {
	return fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", keyCol, keyCol, table)
}

func (d *MysqlDialect) MaxKeyQuery(table, keyCol string) string {
	return fmt.Sprintf("SELECT MAX(%s) FROM %s", keyCol, table)
}

func (d *MysqlDialect) ResetSequenceQuery() string {
	return ""
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) IsBinaryType(declared string) bool {
	switch strings.ToLower(declared) {
	case "blob", "tinyblob", "mediumblob", "longblob", "binary", "varbinary":
		return true
	}
	return false
}

func (d *MysqlDialect) IsNarrowIntType(declared string) bool {
	switch strings.ToLower(declared) {
	case "int", "integer":
		return true
	}
	return false
}

func (d *MysqlDialect) DefaultSchema(configured string) string {
	return configured
}
