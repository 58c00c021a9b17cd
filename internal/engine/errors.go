package engine

import (
	"fmt"
	"strings"
)

// SchemaMismatchError reports a table whose column name sets differ between
// source and destination. It aborts the whole run: the destination schema is
// not actually compatible.
type SchemaMismatchError struct {
	Table         string
	SourceColumns []string
	DestColumns   []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("column sets differ for table %s: source has [%s], destination has [%s]",
		e.Table, strings.Join(e.SourceColumns, ", "), strings.Join(e.DestColumns, ", "))
}

// RowCountMismatchError reports a post-copy verification failure. Under-copy
// and duplicate-copy both indicate corruption that must not be accepted
// silently, so this is fatal even after a successful commit.
type RowCountMismatchError struct {
	Table    string
	Expected int64
	Actual   int64
}

func (e *RowCountMismatchError) Error() string {
	return fmt.Sprintf("row count mismatch for table %s: source has %d rows, copied %d",
		e.Table, e.Expected, e.Actual)
}
