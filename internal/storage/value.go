package storage

import (
	"encoding/binary"
	"fmt"
)

// ColumnType is the type tag of one column in a Schema.
type ColumnType byte

const (
	TypeInt64 ColumnType = iota
	TypeText
	TypeBool
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt64:
		return "INT64"
	case TypeText:
		return "TEXT"
	case TypeBool:
		return "BOOL"
	default:
		return fmt.Sprintf("ColumnType(%d)", byte(t))
	}
}

// Column is one (name, type) pair in a table's Schema. Names are
// case-preserved but matched case-insensitively by the catalog.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is the ordered column list of a table.
type Schema []Column

// value tags, written as the first byte of every encoded Value.
const (
	tagInt64 byte = 0x00
	tagText  byte = 0x01
	tagBool  byte = 0x02
	tagNull  byte = 0x03
)

// Value is one cell of a Row. Exactly one field is meaningful, selected
// by Tag.
type Value struct {
	Tag   byte
	Int   int64
	Text  string
	Bool  bool
}

func IntValue(v int64) Value   { return Value{Tag: tagInt64, Int: v} }
func TextValue(v string) Value { return Value{Tag: tagText, Text: v} }
func BoolValue(v bool) Value   { return Value{Tag: tagBool, Bool: v} }
func NullValue() Value         { return Value{Tag: tagNull} }

func (v Value) IsNull() bool { return v.Tag == tagNull }

// typeMatches reports whether v's tag is compatible with column type ct.
// NULL is accepted for any column type.
func (v Value) typeMatches(ct ColumnType) bool {
	if v.Tag == tagNull {
		return true
	}
	switch ct {
	case TypeInt64:
		return v.Tag == tagInt64
	case TypeText:
		return v.Tag == tagText
	case TypeBool:
		return v.Tag == tagBool
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Tag {
	case tagInt64:
		return fmt.Sprintf("%d", v.Int)
	case tagText:
		return v.Text
	case tagBool:
		return fmt.Sprintf("%t", v.Bool)
	case tagNull:
		return "NULL"
	default:
		return "?"
	}
}

// Row is an ordered sequence of Values matching a table's Schema in
// arity and positional type.
type Row []Value

// Encode serializes row as the concatenation of its tagged values, per
// spec section 4.5:
//
//	Int64 : 0x00 then 8 bytes little-endian signed
//	Text  : 0x01 then u16 little-endian length then that many UTF-8 bytes
//	Bool  : 0x02 then 0x00 or 0x01
//	Null  : 0x03
func (row Row) Encode() []byte {
	buf := make([]byte, 0, len(row)*9)
	for _, v := range row {
		switch v.Tag {
		case tagInt64:
			var b [9]byte
			b[0] = tagInt64
			binary.LittleEndian.PutUint64(b[1:], uint64(v.Int))
			buf = append(buf, b[:]...)
		case tagText:
			textBytes := []byte(v.Text)
			var hdr [3]byte
			hdr[0] = tagText
			binary.LittleEndian.PutUint16(hdr[1:], uint16(len(textBytes)))
			buf = append(buf, hdr[:]...)
			buf = append(buf, textBytes...)
		case tagBool:
			var b byte
			if v.Bool {
				b = 1
			}
			buf = append(buf, tagBool, b)
		case tagNull:
			buf = append(buf, tagNull)
		default:
			panic(fmt.Sprintf("storage: unknown value tag %d", v.Tag))
		}
	}
	return buf
}

// DecodeRow decodes arity values from data according to schema, validating
// each value's tag against the schema's positional column type. Returns
// ErrCorruptTuple on a truncated buffer, an unrecognized tag, or a tag
// that does not match its column's type.
func DecodeRow(data []byte, schema Schema) (Row, error) {
	row := make(Row, 0, len(schema))
	offset := 0

	for _, col := range schema {
		if offset >= len(data) {
			return nil, fmt.Errorf("%w: truncated before column %q", ErrCorruptTuple, col.Name)
		}
		tag := data[offset]
		offset++

		var v Value
		switch tag {
		case tagInt64:
			if offset+8 > len(data) {
				return nil, fmt.Errorf("%w: truncated int64 for column %q", ErrCorruptTuple, col.Name)
			}
			v = IntValue(int64(binary.LittleEndian.Uint64(data[offset:])))
			offset += 8
		case tagText:
			if offset+2 > len(data) {
				return nil, fmt.Errorf("%w: truncated text length for column %q", ErrCorruptTuple, col.Name)
			}
			strLen := int(binary.LittleEndian.Uint16(data[offset:]))
			offset += 2
			if offset+strLen > len(data) {
				return nil, fmt.Errorf("%w: truncated text content for column %q", ErrCorruptTuple, col.Name)
			}
			v = TextValue(string(data[offset : offset+strLen]))
			offset += strLen
		case tagBool:
			if offset+1 > len(data) {
				return nil, fmt.Errorf("%w: truncated bool for column %q", ErrCorruptTuple, col.Name)
			}
			v = BoolValue(data[offset] != 0)
			offset++
		case tagNull:
			v = NullValue()
		default:
			return nil, fmt.Errorf("%w: unknown tag 0x%02x for column %q", ErrCorruptTuple, tag, col.Name)
		}

		if !v.typeMatches(col.Type) {
			return nil, fmt.Errorf("%w: column %q expects %s, got tag 0x%02x", ErrCorruptTuple, col.Name, col.Type, tag)
		}
		row = append(row, v)
	}

	return row, nil
}

// MatchesSchema reports whether row's arity and positional value tags
// conform to schema. Used by InsertRow to produce ErrSchemaMismatch
// before attempting to encode and store the row.
func (row Row) MatchesSchema(schema Schema) error {
	if len(row) != len(schema) {
		return fmt.Errorf("%w: expected %d values, got %d", ErrSchemaMismatch, len(schema), len(row))
	}
	for i, col := range schema {
		if !row[i].typeMatches(col.Type) {
			return fmt.Errorf("%w: column %q expects %s", ErrSchemaMismatch, col.Name, col.Type)
		}
	}
	return nil
}

// MaxTupleSize is the largest encoded tuple that can ever be inserted
// into a fresh page: PageSize minus the page header and the one slot
// directory entry the tuple would occupy.
const MaxTupleSize = PageSize - HeaderSize - SlotSize
