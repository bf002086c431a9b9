package storage

import "errors"

// Sentinel errors returned by the storage engine. Callers should match
// against these with errors.Is rather than inspecting message text.
var (
	ErrIO            = errors.New("i/o error")
	ErrPoolExhausted = errors.New("buffer pool exhausted: no unpinned frame available")
	ErrTableExists   = errors.New("table already exists")
	ErrUnknownTable  = errors.New("unknown table")
	ErrSchemaMismatch = errors.New("row does not match table schema")
	ErrTupleTooLarge = errors.New("tuple too large for a page")
	ErrCorruptTuple  = errors.New("corrupt tuple encoding")
	ErrPageFull      = errors.New("page has no room for this tuple")
)
