package engine

import (
	"encoding/base64"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tixferry/internal/dialect"
	"tixferry/internal/schema"
)

func newPgEndpoint(t *testing.T) (*Endpoint, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	d := &dialect.PostgresDialect{}
	return &Endpoint{DB: db, Dialect: d, Inspector: schema.NewInspector(db, d, "")}, mock
}

func expectColumns(mock sqlmock.Sqlmock, d dialect.Dialect, table string, cols [][2]string) {
	rows := sqlmock.NewRows([]string{"column_name", "udt_name"})
	for _, c := range cols {
		rows.AddRow(c[0], c[1])
	}
	mock.ExpectQuery(regexp.QuoteMeta(d.ColumnsQuery())).
		WithArgs("public", table).
		WillReturnRows(rows)
}

var userCols = [][2]string{{"id", "int4"}, {"name", "varchar"}, {"email", "varchar"}}

const userInsert = "INSERT INTO users (id, name, email) VALUES ($1, $2, $3)"

func TestCopyTableChunked(t *testing.T) {
	src, srcMock := newPgEndpoint(t)
	dst, dstMock := newPgEndpoint(t)

	gofakeit.Seed(11)
	type user struct {
		id          int64
		name, email string
	}
	users := make([]user, 3)
	for i := range users {
		users[i] = user{id: int64(i + 1), name: gofakeit.Name(), email: gofakeit.Email()}
	}

	expectColumns(srcMock, src.Dialect, "users", userCols)
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(id), MAX(id) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max"}).AddRow(1, 3))

	fetched := sqlmock.NewRows([]string{"id", "name", "email"})
	for _, u := range users {
		fetched.AddRow(u.id, u.name, u.email)
	}
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email FROM users WHERE id >= $1 AND id <= $2 ORDER BY id")).
		WithArgs(int64(1), int64(100)).
		WillReturnRows(fetched)

	expectColumns(dstMock, dst.Dialect, "users", userCols)
	dstMock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dstMock.ExpectBegin()
	dstMock.ExpectPrepare(regexp.QuoteMeta(userInsert))
	for _, u := range users {
		dstMock.ExpectExec(regexp.QuoteMeta(userInsert)).
			WithArgs(u.id, u.name, u.email).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	dstMock.ExpectCommit()

	tr := NewTransfer(Config{ChunkSize: 100}, zerolog.Nop())
	copied, err := tr.CopyTable(src, dst, "users", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), copied)
	assert.NoError(t, srcMock.ExpectationsWereMet())
	assert.NoError(t, dstMock.ExpectationsWereMet())
}

func TestCopyTableMultipleChunks(t *testing.T) {
	src, srcMock := newPgEndpoint(t)
	dst, dstMock := newPgEndpoint(t)

	expectColumns(srcMock, src.Dialect, "users", userCols)
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(id), MAX(id) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max"}).AddRow(1, 5))

	rangeQuery := regexp.QuoteMeta("SELECT id, name, email FROM users WHERE id >= $1 AND id <= $2 ORDER BY id")
	bounds := [][2]int64{{1, 2}, {3, 4}, {5, 6}}
	id := int64(1)
	for i, b := range bounds {
		rows := sqlmock.NewRows([]string{"id", "name", "email"})
		n := 2
		if i == len(bounds)-1 {
			n = 1
		}
		for j := 0; j < n; j++ {
			rows.AddRow(id, "user", "user@example.com")
			id++
		}
		srcMock.ExpectQuery(rangeQuery).WithArgs(b[0], b[1]).WillReturnRows(rows)
	}

	expectColumns(dstMock, dst.Dialect, "users", userCols)
	dstMock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dstMock.ExpectBegin()
	dstMock.ExpectPrepare(regexp.QuoteMeta(userInsert))
	for i := int64(1); i <= 5; i++ {
		dstMock.ExpectExec(regexp.QuoteMeta(userInsert)).
			WithArgs(i, "user", "user@example.com").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	dstMock.ExpectCommit()

	chunks := 0
	tr := NewTransfer(Config{ChunkSize: 2}, zerolog.Nop())
	copied, err := tr.CopyTable(src, dst, "users", func(int) { chunks++ })
	require.NoError(t, err)
	assert.Equal(t, int64(5), copied)
	assert.Equal(t, 3, chunks)
	assert.NoError(t, srcMock.ExpectationsWereMet())
	assert.NoError(t, dstMock.ExpectationsWereMet())
}

func TestCopyTableFullFetchForWideKeys(t *testing.T) {
	src, srcMock := newPgEndpoint(t)
	dst, dstMock := newPgEndpoint(t)

	// bigint key: no key-range query, one full-table pass.
	wideCols := [][2]string{{"id", "int8"}, {"name", "varchar"}, {"email", "varchar"}}
	expectColumns(srcMock, src.Dialect, "users", wideCols)
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).AddRow(9, "zed", "z@example.com"))

	expectColumns(dstMock, dst.Dialect, "users", wideCols)
	dstMock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dstMock.ExpectBegin()
	dstMock.ExpectPrepare(regexp.QuoteMeta(userInsert))
	dstMock.ExpectExec(regexp.QuoteMeta(userInsert)).
		WithArgs(int64(9), "zed", "z@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dstMock.ExpectCommit()

	tr := NewTransfer(Config{}, zerolog.Nop())
	copied, err := tr.CopyTable(src, dst, "users", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), copied)
	assert.NoError(t, srcMock.ExpectationsWereMet())
	assert.NoError(t, dstMock.ExpectationsWereMet())
}

func TestCopyTableDryRunIssuesNoInserts(t *testing.T) {
	src, srcMock := newPgEndpoint(t)
	dst, dstMock := newPgEndpoint(t)

	expectColumns(srcMock, src.Dialect, "users", userCols)
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(id), MAX(id) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max"}).AddRow(1, 2))
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email FROM users WHERE id >= $1 AND id <= $2 ORDER BY id")).
		WithArgs(int64(1), int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow(1, "a", "a@example.com").
			AddRow(2, "b", "b@example.com"))

	// Destination sees the column introspection and nothing else.
	expectColumns(dstMock, dst.Dialect, "users", userCols)

	tr := NewTransfer(Config{ChunkSize: 100, DryRun: true}, zerolog.Nop())
	copied, err := tr.CopyTable(src, dst, "users", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), copied)
	assert.NoError(t, srcMock.ExpectationsWereMet())
	assert.NoError(t, dstMock.ExpectationsWereMet())
}

func TestCopyTableSchemaMismatch(t *testing.T) {
	src, srcMock := newPgEndpoint(t)
	dst, dstMock := newPgEndpoint(t)

	expectColumns(srcMock, src.Dialect, "users", [][2]string{{"id", "int4"}, {"name", "varchar"}})
	expectColumns(dstMock, dst.Dialect, "users", [][2]string{{"id", "int4"}, {"email", "varchar"}})

	tr := NewTransfer(Config{}, zerolog.Nop())
	_, err := tr.CopyTable(src, dst, "users", nil)

	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "users", mismatch.Table)
	assert.Equal(t, []string{"id", "name"}, mismatch.SourceColumns)
	assert.Equal(t, []string{"email", "id"}, mismatch.DestColumns)
	// The destination clear never ran: the mock holds no exec expectation,
	// so an early DELETE would have surfaced as a different error.
	assert.NoError(t, dstMock.ExpectationsWereMet())
}

func TestCopyTableRowCountMismatch(t *testing.T) {
	src, srcMock := newPgEndpoint(t)
	dst, dstMock := newPgEndpoint(t)

	expectColumns(srcMock, src.Dialect, "users", userCols)
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(id), MAX(id) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max"}).AddRow(1, 3))
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email FROM users WHERE id >= $1 AND id <= $2 ORDER BY id")).
		WithArgs(int64(1), int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow(1, "a", "a@example.com").
			AddRow(2, "b", "b@example.com").
			AddRow(3, "c", "c@example.com"))

	expectColumns(dstMock, dst.Dialect, "users", userCols)
	dstMock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dstMock.ExpectBegin()
	dstMock.ExpectPrepare(regexp.QuoteMeta(userInsert))
	for i := 1; i <= 3; i++ {
		dstMock.ExpectExec(regexp.QuoteMeta(userInsert)).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	dstMock.ExpectCommit()

	tr := NewTransfer(Config{ChunkSize: 100}, zerolog.Nop())
	copied, err := tr.CopyTable(src, dst, "users", nil)

	var mismatch *RowCountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int64(4), mismatch.Expected)
	assert.Equal(t, int64(3), mismatch.Actual)
	assert.Equal(t, int64(3), copied)
}

func TestCopyTableInsertFailureRollsBack(t *testing.T) {
	src, srcMock := newPgEndpoint(t)
	dst, dstMock := newPgEndpoint(t)

	expectColumns(srcMock, src.Dialect, "users", userCols)
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(id), MAX(id) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max"}).AddRow(1, 2))
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email FROM users WHERE id >= $1 AND id <= $2 ORDER BY id")).
		WithArgs(int64(1), int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow(1, "a", "a@example.com").
			AddRow(2, "b", "b@example.com"))

	expectColumns(dstMock, dst.Dialect, "users", userCols)
	dstMock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dstMock.ExpectBegin()
	dstMock.ExpectPrepare(regexp.QuoteMeta(userInsert))
	dstMock.ExpectExec(regexp.QuoteMeta(userInsert)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dstMock.ExpectExec(regexp.QuoteMeta(userInsert)).
		WillReturnError(errors.New("null value in column violates not-null constraint"))
	dstMock.ExpectRollback()

	tr := NewTransfer(Config{ChunkSize: 100}, zerolog.Nop())
	_, err := tr.CopyTable(src, dst, "users", nil)
	require.Error(t, err)
	assert.NoError(t, dstMock.ExpectationsWereMet())
}

func TestCopyTableNormalizesAttachments(t *testing.T) {
	src, srcMock := newPgEndpoint(t)
	dst, dstMock := newPgEndpoint(t)

	attCols := [][2]string{
		{"id", "int4"}, {"filename", "varchar"}, {"content", "bytea"},
		{"contenttype", "varchar"}, {"contentencoding", "varchar"},
	}
	attInsert := "INSERT INTO attachments (id, filename, content, contenttype, contentencoding) VALUES ($1, $2, $3, $4, $5)"
	attSelect := "SELECT id, filename, content, contenttype, contentencoding FROM attachments WHERE id >= $1 AND id <= $2 ORDER BY id"

	textPayload := []byte("hello ticket")
	zipPayload := []byte{0x50, 0x4B, 0x03, 0x04, 0x00, 0x00}

	expectColumns(srcMock, src.Dialect, "attachments", attCols)
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attachments")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(id), MAX(id) FROM attachments")).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max"}).AddRow(1, 2))
	srcMock.ExpectQuery(regexp.QuoteMeta(attSelect)).
		WithArgs(int64(1), int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "filename", "content", "contenttype", "contentencoding"}).
			AddRow(1, "note.txt", textPayload, "text/plain", "").
			AddRow(2, "dump.zip", zipPayload, "text/plain", ""))

	expectColumns(dstMock, dst.Dialect, "attachments", attCols)
	dstMock.ExpectExec(regexp.QuoteMeta("DELETE FROM attachments")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dstMock.ExpectBegin()
	dstMock.ExpectPrepare(regexp.QuoteMeta(attInsert))
	// Valid UTF-8 text rides through untouched.
	dstMock.ExpectExec(regexp.QuoteMeta(attInsert)).
		WithArgs(int64(1), "note.txt", textPayload, "text/plain", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The .zip suffix forces base64 transport regardless of declared type.
	dstMock.ExpectExec(regexp.QuoteMeta(attInsert)).
		WithArgs(int64(2), "dump.zip", []byte(base64.StdEncoding.EncodeToString(zipPayload)), "text/plain", "base64").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dstMock.ExpectCommit()

	tr := NewTransfer(Config{ChunkSize: 100}, zerolog.Nop())
	copied, err := tr.CopyTable(src, dst, "attachments", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), copied)
	assert.NoError(t, srcMock.ExpectationsWereMet())
	assert.NoError(t, dstMock.ExpectationsWereMet())
}
