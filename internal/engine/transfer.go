package engine

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"tixferry/internal/dialect"
	"tixferry/internal/normalize"
	"tixferry/internal/schema"
)

// AttachmentTable is the table whose rows carry arbitrary byte payloads and
// are routed through the content normalizer.
const AttachmentTable = "attachments"

// keyColumn is the primary numeric key every chunked table pages on.
const keyColumn = "id"

// Endpoint bundles one side's connection with its dialect and inspector.
type Endpoint struct {
	DB        *sql.DB
	Dialect   dialect.Dialect
	Inspector *schema.Inspector
}

// Transfer copies all rows of one table from source to destination inside a
// single destination transaction, verifying exact row-count parity.
type Transfer struct {
	cfg  Config
	norm *normalize.Normalizer
	log  zerolog.Logger
}

func NewTransfer(cfg Config, log zerolog.Logger) *Transfer {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Transfer{cfg: cfg, norm: normalize.New(cfg.StrictEncoding), log: log}
}

type chunk struct {
	low, high int64
}

// chunkRanges splits [low, high] into fixed-width inclusive ranges. The last
// range may overshoot high; the WHERE clause bounds it anyway.
func chunkRanges(low, high, step int64) []chunk {
	var ranges []chunk
	for lo := low; lo <= high; lo += step {
		ranges = append(ranges, chunk{low: lo, high: lo + step - 1})
	}
	return ranges
}

// attachmentColumns holds the positional indexes of the attachment-specific
// fields, resolved once per table from the destination column order.
type attachmentColumns struct {
	content, contentType, contentEncoding, filename int
}

func resolveAttachmentColumns(order []string) (attachmentColumns, bool) {
	ac := attachmentColumns{content: -1, contentType: -1, contentEncoding: -1, filename: -1}
	for i, name := range order {
		switch name {
		case "content":
			ac.content = i
		case "contenttype":
			ac.contentType = i
		case "contentencoding":
			ac.contentEncoding = i
		case "filename":
			ac.filename = i
		}
	}
	ok := ac.content >= 0 && ac.contentType >= 0 && ac.contentEncoding >= 0 && ac.filename >= 0
	return ac, ok
}

// CopyTable clears the destination table and copies all source rows into it,
// returning the number of rows moved. The column-set equality check runs
// before the clear, so a mismatched table leaves its destination rows intact.
// In dry-run mode every read and the row-count check still run but nothing is
// cleared or inserted. onChunk, if non-nil, is called after each fetched chunk
// with its row count.
func (t *Transfer) CopyTable(src, dst *Endpoint, table string, onChunk func(rows int)) (int64, error) {
	srcDesc, err := src.Inspector.DescribeColumns(table)
	if err != nil {
		return 0, err
	}
	dstDesc, err := dst.Inspector.DescribeColumns(table)
	if err != nil {
		return 0, err
	}
	if !sameColumnSets(srcDesc, dstDesc) {
		return 0, &SchemaMismatchError{
			Table:         table,
			SourceColumns: sortedColumns(srcDesc),
			DestColumns:   sortedColumns(dstDesc),
		}
	}

	// The clear runs outside the load transaction; the table is briefly
	// empty, and re-running the tool is idempotent at table granularity.
	if t.cfg.DryRun {
		t.log.Info().Str("table", table).Msg("dry-run: would clear destination table")
	} else {
		if _, err := dst.DB.Exec(dst.Dialect.DeleteAllQuery(table)); err != nil {
			return 0, fmt.Errorf("failed to clear destination table %s: %w", table, err)
		}
	}

	var total int64
	if err := src.DB.QueryRow(src.Dialect.CountQuery(table)).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}

	ranges, chunked, err := t.planChunks(src, srcDesc, table)
	if err != nil {
		return 0, err
	}

	// Insert and select lists are always built from the destination's
	// column order.
	cols := dstDesc.Order

	var ac attachmentColumns
	normalizeRows := false
	if table == AttachmentTable {
		ac, normalizeRows = resolveAttachmentColumns(cols)
	}

	var tx *sql.Tx
	var stmt *sql.Stmt
	if !t.cfg.DryRun {
		tx, err = dst.DB.Begin()
		if err != nil {
			return 0, fmt.Errorf("failed to begin transaction for %s: %w", table, err)
		}
		stmt, err = tx.Prepare(dst.Dialect.InsertQuery(table, cols))
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to prepare insert for %s: %w", table, err)
		}
	}

	copied, err := t.copyRows(src, table, cols, ranges, chunked, dstDesc, ac, normalizeRows, stmt, onChunk)
	if err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return copied, err
	}

	if tx != nil {
		stmt.Close()
		if err := tx.Commit(); err != nil {
			return copied, fmt.Errorf("failed to commit %s: %w", table, err)
		}
	}

	if copied != total {
		return copied, &RowCountMismatchError{Table: table, Expected: total, Actual: copied}
	}
	return copied, nil
}

// copyRows drives the chunked (or single-pass) extraction. stmt is nil in
// dry-run mode; the loop then only reads and counts.
func (t *Transfer) copyRows(src *Endpoint, table string, cols []string, ranges []chunk, chunked bool,
	dstDesc *schema.Table, ac attachmentColumns, normalizeRows bool, stmt *sql.Stmt, onChunk func(int)) (int64, error) {

	processChunk := func(rows *sql.Rows, qerr error) (int, error) {
		if qerr != nil {
			return 0, fmt.Errorf("failed to fetch rows of %s: %w", table, qerr)
		}
		defer rows.Close()

		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range ptrs {
			ptrs[i] = &vals[i]
		}

		n := 0
		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				return n, fmt.Errorf("failed to scan row of %s: %w", table, err)
			}
			if normalizeRows {
				if err := t.normalizeRow(vals, ac); err != nil {
					return n, fmt.Errorf("table %s: %w", table, err)
				}
			}
			bindBinary(vals, cols, dstDesc)
			if stmt != nil {
				if _, err := stmt.Exec(vals...); err != nil {
					return n, fmt.Errorf("failed to insert into %s: %w", table, err)
				}
			}
			n++
		}
		return n, rows.Err()
	}

	var copied int64
	if chunked {
		for _, c := range ranges {
			n, err := processChunk(src.DB.Query(src.Dialect.SelectRangeQuery(table, keyColumn, cols), c.low, c.high))
			copied += int64(n)
			if err != nil {
				return copied, err
			}
			t.log.Debug().Str("table", table).Int64("low", c.low).Int64("high", c.high).Int("rows", n).Msg("chunk copied")
			if onChunk != nil {
				onChunk(n)
			}
		}
	} else {
		n, err := processChunk(src.DB.Query(src.Dialect.SelectQuery(table, cols)))
		copied += int64(n)
		if err != nil {
			return copied, err
		}
		if onChunk != nil {
			onChunk(n)
		}
	}
	return copied, nil
}

// planChunks decides whether the table is paged by primary-key ranges.
// Chunking applies only when the source declares the key as a standard 32-bit
// integer; wide, non-numeric and absent keys fall back to one full fetch.
func (t *Transfer) planChunks(src *Endpoint, desc *schema.Table, table string) ([]chunk, bool, error) {
	col, ok := desc.Columns[keyColumn]
	if !ok || !src.Dialect.IsNarrowIntType(col.DataType) {
		return nil, false, nil
	}
	var low, high sql.NullInt64
	if err := src.DB.QueryRow(src.Dialect.KeyRangeQuery(table, keyColumn)).Scan(&low, &high); err != nil {
		return nil, false, fmt.Errorf("failed to read key range of %s: %w", table, err)
	}
	if !low.Valid || !high.Valid {
		// Empty table: chunked, but nothing to fetch.
		return nil, true, nil
	}
	return chunkRanges(low.Int64, high.Int64, int64(t.cfg.ChunkSize)), true, nil
}

func (t *Transfer) normalizeRow(vals []any, ac attachmentColumns) error {
	if vals[ac.content] == nil {
		return nil
	}
	att := &normalize.Attachment{
		Content:         toBytes(vals[ac.content]),
		ContentType:     toString(vals[ac.contentType]),
		ContentEncoding: toString(vals[ac.contentEncoding]),
		Filename:        toString(vals[ac.filename]),
	}
	if err := t.norm.Normalize(att); err != nil {
		return err
	}
	vals[ac.content] = att.Content
	vals[ac.contentType] = att.ContentType
	vals[ac.contentEncoding] = att.ContentEncoding
	return nil
}

// bindBinary rebinds values headed for binary destination columns as []byte
// so the driver ships them in binary mode instead of text.
func bindBinary(vals []any, cols []string, dst *schema.Table) {
	for i, name := range cols {
		if !dst.Columns[name].IsBinary {
			continue
		}
		if s, ok := vals[i].(string); ok {
			vals[i] = []byte(s)
		}
	}
}

func sameColumnSets(a, b *schema.Table) bool {
	if len(a.Columns) != len(b.Columns) {
		return false
	}
	for name := range a.Columns {
		if !b.HasColumn(name) {
			return false
		}
	}
	return true
}

func sortedColumns(t *schema.Table) []string {
	cols := append([]string(nil), t.Order...)
	sort.Strings(cols)
	return cols
}

func toBytes(v any) []byte {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return x
	case string:
		return []byte(x)
	default:
		return []byte(fmt.Sprint(x))
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
