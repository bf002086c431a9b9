package sql

import (
	"fmt"
	"strings"

	"matidb/internal/storage"
)

// Execute runs one parsed statement against engine and renders a
// human-readable result, the way the REPL and TCP server both expect:
// tab-separated rows for a SELECT, or a short confirmation message for
// CREATE TABLE / INSERT.
func Execute(engine *storage.Engine, stmt Statement) (string, error) {
	switch s := stmt.(type) {
	case *CreateTableStmt:
		return executeCreateTable(engine, s)
	case *InsertStmt:
		return executeInsert(engine, s)
	case *SelectStmt:
		return executeSelect(engine, s)
	default:
		return "", fmt.Errorf("%w: unsupported statement type", ErrSyntax)
	}
}

func executeCreateTable(engine *storage.Engine, s *CreateTableStmt) (string, error) {
	schema := make(storage.Schema, len(s.Columns))
	for i, col := range s.Columns {
		schema[i] = storage.Column{Name: col.Name, Type: col.Type}
	}

	if err := engine.CreateTable(s.Table, schema); err != nil {
		return "", err
	}
	return fmt.Sprintf("Table %q created", s.Table), nil
}

func executeInsert(engine *storage.Engine, s *InsertStmt) (string, error) {
	tbl, err := engine.GetTable(s.Table)
	if err != nil {
		return "", err
	}

	for _, literals := range s.Rows {
		row, err := literalsToRow(literals, tbl.Schema)
		if err != nil {
			return "", err
		}
		if _, err := engine.InsertRow(s.Table, row); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("Inserted %d row(s)", len(s.Rows)), nil
}

func literalsToRow(literals []Literal, schema storage.Schema) (storage.Row, error) {
	if len(literals) != len(schema) {
		return nil, fmt.Errorf("%w: expected %d values, got %d", storage.ErrSchemaMismatch, len(schema), len(literals))
	}

	row := make(storage.Row, len(literals))
	for i, lit := range literals {
		switch lit.Kind {
		case LiteralInt:
			row[i] = storage.IntValue(lit.Int)
		case LiteralString:
			row[i] = storage.TextValue(lit.Str)
		case LiteralBool:
			row[i] = storage.BoolValue(lit.Bool)
		case LiteralNull:
			row[i] = storage.NullValue()
		default:
			return nil, fmt.Errorf("%w: unknown literal kind", ErrSyntax)
		}
	}
	return row, nil
}

func executeSelect(engine *storage.Engine, s *SelectStmt) (string, error) {
	tbl, err := engine.GetTable(s.Table)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	header := make([]string, len(tbl.Schema))
	for i, col := range tbl.Schema {
		header[i] = col.Name
	}
	sb.WriteString(strings.Join(header, "\t"))
	sb.WriteByte('\n')

	count := 0
	err = engine.Scan(s.Table, func(_ storage.RowId, row storage.Row) (bool, error) {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		sb.WriteString(strings.Join(cells, "\t"))
		sb.WriteByte('\n')
		count++
		return true, nil
	})
	if err != nil {
		return "", err
	}

	sb.WriteString(fmt.Sprintf("(%d row(s))", count))
	return sb.String(), nil
}
