package sql

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowlock/rowlock/dialect"
)

func TestDriverDialect(t *testing.T) {
	assert.Equal(t, dialect.SQLite, OpenDB("sqlite-otel", nil).Dialect())
	assert.Equal(t, dialect.Postgres, OpenDB("postgres", nil).Dialect())
	assert.Equal(t, "custom", OpenDB("custom", nil).Dialect())
}

func TestSessionVarContext(t *testing.T) {
	ctx := WithVar(context.Background(), "app.tenant_id", "7")
	v, ok := VarFromContext(ctx, "app.tenant_id")
	require.True(t, ok)
	assert.Equal(t, "7", v)
	_, ok = VarFromContext(ctx, "app.other")
	assert.False(t, ok)
	_, ok = VarFromContext(context.Background(), "app.tenant_id")
	assert.False(t, ok)
}

func TestEscapeValue(t *testing.T) {
	assert.Equal(t, "plain", escapeValue("plain"))
	assert.Equal(t, `O''Brien`, escapeValue("O'Brien"))
	assert.Equal(t, `a''b\\c`, escapeValue(`a'b\c`))
}

func TestValidIdent(t *testing.T) {
	assert.True(t, validIdent("app.tenant_id"))
	assert.True(t, validIdent("my_var"))
	assert.False(t, validIdent(""))
	assert.False(t, validIdent("1leading"))
	assert.False(t, validIdent("drop table;"))
	assert.False(t, validIdent("has space"))
}

func TestExecWithoutVars(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET total = $1")).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, drv.Exec(context.Background(), "UPDATE orders SET total = $1", []any{5}, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecSetsAndResetsVars(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	ctx := WithVar(context.Background(), "app.tenant_id", "7")
	mock.ExpectExec(regexp.QuoteMeta("SET app.tenant_id = '7'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET total = 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("RESET app.tenant_id")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, drv.Exec(ctx, "UPDATE orders SET total = 1", []any{}, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryResetsVarsOnClose(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	ctx := WithVar(context.Background(), "app.tenant_id", "7")
	mock.ExpectExec(regexp.QuoteMeta("SET app.tenant_id = '7'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM orders")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("RESET app.tenant_id")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	var rows Rows
	require.NoError(t, drv.Query(ctx, "SELECT id FROM orders", []any{}, &rows))
	require.True(t, rows.Next())
	var id int
	require.NoError(t, rows.Scan(&id))
	assert.Equal(t, 1, id)
	assert.False(t, rows.Next())
	// The dedicated connection resets its variables on close.
	require.NoError(t, rows.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidVarNameRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	ctx := WithVar(context.Background(), "app.tenant_id; DROP TABLE orders", "7")
	err = drv.Exec(ctx, "UPDATE orders SET total = 1", []any{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session variable name")
	_ = mock
}

func TestTxUsesVarsWithoutCheckout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET app.tenant_id = '7'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	ctx := WithVar(context.Background(), "app.tenant_id", "7")
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "DELETE FROM orders", []any{}, nil))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
