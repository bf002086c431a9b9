package sql

import (
	"testing"

	"github.com/stretchr/testify/require"
	"matidb/internal/storage"
)

func TestParseCreateTable(t *testing.T) {
	stmts, err := Parse("CREATE TABLE users (id INT, name TEXT, active BOOLEAN)")
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	ct, ok := stmts[0].(*CreateTableStmt)
	require.True(t, ok)
	require.Equal(t, "users", ct.Table)
	require.Equal(t, []ColumnDef{
		{Name: "id", Type: storage.TypeInt64},
		{Name: "name", Type: storage.TypeText},
		{Name: "active", Type: storage.TypeBool},
	}, ct.Columns)
}

func TestParseInsertSingleRow(t *testing.T) {
	stmts, err := Parse("INSERT INTO users VALUES (1, 'ada', TRUE)")
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	ins, ok := stmts[0].(*InsertStmt)
	require.True(t, ok)
	require.Equal(t, "users", ins.Table)
	require.Len(t, ins.Rows, 1)
	require.Equal(t, []Literal{
		{Kind: LiteralInt, Int: 1},
		{Kind: LiteralString, Str: "ada"},
		{Kind: LiteralBool, Bool: true},
	}, ins.Rows[0])
}

func TestParseInsertBatch(t *testing.T) {
	stmts, err := Parse("INSERT INTO users VALUES (1, 'a'), (2, 'b'), (3, 'c')")
	require.NoError(t, err)
	ins := stmts[0].(*InsertStmt)
	require.Len(t, ins.Rows, 3)
	require.Equal(t, int64(2), ins.Rows[1][0].Int)
	require.Equal(t, "c", ins.Rows[2][1].Str)
}

func TestParseInsertWithNull(t *testing.T) {
	stmts, err := Parse("INSERT INTO users VALUES (1, NULL)")
	require.NoError(t, err)
	ins := stmts[0].(*InsertStmt)
	require.Equal(t, LiteralNull, ins.Rows[0][1].Kind)
}

func TestParseSelectStar(t *testing.T) {
	stmts, err := Parse("SELECT * FROM users")
	require.NoError(t, err)
	sel, ok := stmts[0].(*SelectStmt)
	require.True(t, ok)
	require.Equal(t, "users", sel.Table)
}

func TestParseMultipleStatementsOneLine(t *testing.T) {
	stmts, err := Parse("CREATE TABLE t (x INT); INSERT INTO t VALUES (1); SELECT * FROM t")
	require.NoError(t, err)
	require.Len(t, stmts, 3)
}

func TestParseSelectColumnsRejected(t *testing.T) {
	_, err := Parse("SELECT id FROM users")
	require.ErrorIs(t, err, ErrSyntax)
}

func TestParseUnknownStatementIsSyntaxError(t *testing.T) {
	_, err := Parse("DROP TABLE users")
	require.ErrorIs(t, err, ErrSyntax)
}

func TestParseCreateTableMissingParenIsSyntaxError(t *testing.T) {
	_, err := Parse("CREATE TABLE users id INT)")
	require.ErrorIs(t, err, ErrSyntax)
}

func TestParseInsertMissingValuesIsSyntaxError(t *testing.T) {
	_, err := Parse("INSERT INTO users (1, 'ada')")
	require.ErrorIs(t, err, ErrSyntax)
}
