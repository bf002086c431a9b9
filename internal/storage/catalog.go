package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Table is the catalog's record of one table: its name, schema, and the
// page id at which its heap chain begins. RootPageID is stable for the
// table's lifetime.
type Table struct {
	Name       string
	Schema     Schema
	RootPageID PageID
}

// Catalog is the persistent mapping from table name (unique,
// case-insensitive) to Table, stored in a sibling "<db>.catalog" file.
type Catalog struct {
	path   string
	tables map[string]*Table // keyed by lowercased name
	log    *zap.SugaredLogger
}

// OpenCatalog loads the catalog at path if it exists, or starts empty.
func OpenCatalog(path string, log *zap.SugaredLogger) (*Catalog, error) {
	c := &Catalog{
		path:   path,
		tables: make(map[string]*Table),
		log:    log,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading catalog %s: %v", ErrIO, path, err)
	}
	if err := c.decode(data); err != nil {
		return nil, err
	}
	if log != nil {
		log.Debugw("catalog loaded", "path", path, "tables", len(c.tables))
	}
	return c, nil
}

// Create registers a new table, failing with ErrTableExists if the
// (case-insensitive) name is already taken.
func (c *Catalog) Create(name string, schema Schema, rootPageID PageID) error {
	key := strings.ToLower(name)
	if _, exists := c.tables[key]; exists {
		return fmt.Errorf("%w: %q", ErrTableExists, name)
	}
	c.tables[key] = &Table{Name: name, Schema: schema, RootPageID: rootPageID}
	return nil
}

// Get looks up a table by case-insensitive name.
func (c *Catalog) Get(name string) (*Table, bool) {
	t, ok := c.tables[strings.ToLower(name)]
	return t, ok
}

// List returns every table, in no particular order.
func (c *Catalog) List() []*Table {
	out := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	return out
}

// Save rewrites the whole catalog file. The tmp-then-rename sequence
// makes the write atomic with respect to a concurrent reader, though the
// protocol does not mandate it (spec section 4.4 / 9).
func (c *Catalog) Save() error {
	if c.path == "" {
		return nil
	}
	data := c.encode()

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: writing catalog tmp file: %v", ErrIO, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("%w: renaming catalog tmp file: %v", ErrIO, err)
	}
	if c.log != nil {
		c.log.Debugw("catalog saved", "path", c.path, "tables", len(c.tables))
	}
	return nil
}

// encode serializes the catalog per spec section 4.4:
//
//	u32  table_count
//	repeat table_count times:
//	  u16  name_len; name_len bytes (UTF-8, preserved case)
//	  u32  root_page_id
//	  u16  column_count
//	  repeat column_count times:
//	    u16  col_name_len; col_name_len bytes
//	    u8   type_tag   (0=Int64, 1=Text, 2=Bool)
func (c *Catalog) encode() []byte {
	var buf bytes.Buffer

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(c.tables)))
	buf.Write(countBuf[:])

	for _, t := range c.tables {
		writeU16String(&buf, t.Name)

		var pidBuf [4]byte
		binary.LittleEndian.PutUint32(pidBuf[:], uint32(t.RootPageID))
		buf.Write(pidBuf[:])

		var colCountBuf [2]byte
		binary.LittleEndian.PutUint16(colCountBuf[:], uint16(len(t.Schema)))
		buf.Write(colCountBuf[:])

		for _, col := range t.Schema {
			writeU16String(&buf, col.Name)
			buf.WriteByte(byte(col.Type))
		}
	}

	return buf.Bytes()
}

func (c *Catalog) decode(data []byte) error {
	r := bytes.NewReader(data)

	tableCount, err := readU32(r)
	if err != nil {
		return fmt.Errorf("%w: corrupt catalog header: %v", ErrIO, err)
	}

	for i := uint32(0); i < tableCount; i++ {
		name, err := readU16String(r)
		if err != nil {
			return fmt.Errorf("%w: corrupt catalog table name: %v", ErrIO, err)
		}
		rootPageID, err := readU32(r)
		if err != nil {
			return fmt.Errorf("%w: corrupt catalog root page id: %v", ErrIO, err)
		}
		colCount, err := readU16(r)
		if err != nil {
			return fmt.Errorf("%w: corrupt catalog column count: %v", ErrIO, err)
		}

		schema := make(Schema, 0, colCount)
		for j := uint16(0); j < colCount; j++ {
			colName, err := readU16String(r)
			if err != nil {
				return fmt.Errorf("%w: corrupt catalog column name: %v", ErrIO, err)
			}
			typeTag, err := r.ReadByte()
			if err != nil {
				return fmt.Errorf("%w: corrupt catalog column type: %v", ErrIO, err)
			}
			schema = append(schema, Column{Name: colName, Type: ColumnType(typeTag)})
		}

		c.tables[strings.ToLower(name)] = &Table{
			Name:       name,
			Schema:     schema,
			RootPageID: PageID(rootPageID),
		}
	}

	return nil
}

func writeU16String(buf *bytes.Buffer, s string) {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func readU16String(r *bytes.Reader) (string, error) {
	n, err := readU16(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil && n > 0 {
		return "", err
	}
	return string(b), nil
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
