package fulltext_test

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tixferry/internal/fulltext"
)

func TestInstallExecutesAllStatementsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range fulltext.InstallStatements() {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	p := fulltext.New(db, false, zerolog.Nop())
	require.NoError(t, p.Install())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveExecutesAllStatementsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range fulltext.RemoveStatements() {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	p := fulltext.New(db, false, zerolog.Nop())
	require.NoError(t, p.Remove())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallAbortsOnFirstFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	statements := fulltext.InstallStatements()
	mock.ExpectExec(regexp.QuoteMeta(statements[0])).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(statements[1])).WillReturnError(errors.New("permission denied"))

	p := fulltext.New(db, false, zerolog.Nop())
	err = p.Install()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "administrative statement failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDryRunExecutesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := fulltext.New(db, true, zerolog.Nop())
	require.NoError(t, p.Install())
	require.NoError(t, p.Remove())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallProvisionsLanguageFirst(t *testing.T) {
	install := fulltext.InstallStatements()
	require.NotEmpty(t, install)
	assert.Equal(t, "CREATE EXTENSION IF NOT EXISTS plpgsql", install[0])
}

func TestRemovalReversesInstall(t *testing.T) {
	install := fulltext.InstallStatements()
	remove := fulltext.RemoveStatements()
	// Everything but the plpgsql language gets a matching drop; the
	// language stays installed.
	assert.Equal(t, len(install)-1, len(remove))
	for _, stmt := range remove {
		assert.Contains(t, stmt, "IF EXISTS")
	}
}
