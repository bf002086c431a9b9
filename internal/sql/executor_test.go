package sql

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"matidb/internal/storage"
)

func newTestEngine(t *testing.T) *storage.Engine {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := storage.Open(dbPath, logger.Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func runAll(t *testing.T, engine *storage.Engine, src string) []string {
	t.Helper()
	stmts, err := Parse(src)
	require.NoError(t, err)

	var out []string
	for _, stmt := range stmts {
		result, err := Execute(engine, stmt)
		require.NoError(t, err)
		out = append(out, result)
	}
	return out
}

func TestExecuteCreateTable(t *testing.T) {
	engine := newTestEngine(t)
	out := runAll(t, engine, "CREATE TABLE widgets (id INT, name TEXT)")
	require.Equal(t, []string{`Table "widgets" created`}, out)

	tbl, err := engine.GetTable("widgets")
	require.NoError(t, err)
	require.Len(t, tbl.Schema, 2)
}

func TestExecuteInsertAndSelect(t *testing.T) {
	engine := newTestEngine(t)
	runAll(t, engine, "CREATE TABLE widgets (id INT, name TEXT)")
	out := runAll(t, engine, "INSERT INTO widgets VALUES (1, 'a'), (2, 'b')")
	require.Equal(t, []string{"Inserted 2 row(s)"}, out)

	result := runAll(t, engine, "SELECT * FROM widgets")
	require.Equal(t, "id\tname\n1\ta\n2\tb\n(2 row(s))", result[0])
}

func TestExecuteSelectFromEmptyTable(t *testing.T) {
	engine := newTestEngine(t)
	runAll(t, engine, "CREATE TABLE empty_t (x INT)")
	result := runAll(t, engine, "SELECT * FROM empty_t")
	require.Equal(t, "x\n(0 row(s))", result[0])
}

func TestExecuteInsertUnknownTable(t *testing.T) {
	engine := newTestEngine(t)
	stmts, err := Parse("INSERT INTO ghosts VALUES (1)")
	require.NoError(t, err)
	_, err = Execute(engine, stmts[0])
	require.ErrorIs(t, err, storage.ErrUnknownTable)
}

func TestExecuteInsertSchemaMismatch(t *testing.T) {
	engine := newTestEngine(t)
	runAll(t, engine, "CREATE TABLE nums (n INT)")
	stmts, err := Parse("INSERT INTO nums VALUES ('not a number')")
	require.NoError(t, err)
	_, err = Execute(engine, stmts[0])
	require.ErrorIs(t, err, storage.ErrSchemaMismatch)
}

func TestExecuteCreateDuplicateTable(t *testing.T) {
	engine := newTestEngine(t)
	runAll(t, engine, "CREATE TABLE dup (x INT)")
	stmts, err := Parse("CREATE TABLE dup (x INT)")
	require.NoError(t, err)
	_, err = Execute(engine, stmts[0])
	require.ErrorIs(t, err, storage.ErrTableExists)
}
