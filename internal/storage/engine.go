package storage

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Engine is the single-node storage core: the composition of a disk
// manager, buffer pool, and catalog behind the external API consumed by
// the SQL executor and the protocol/server layer. It serializes access
// with a single mutex, matching the single-threaded cooperative
// concurrency model: one client is ever executing against the engine at
// a time.
type Engine struct {
	mu      sync.Mutex
	disk    *DiskManager
	pool    *BufferPool
	catalog *Catalog
	heaps   map[string]*TableHeap // keyed by lowercased table name
	log     *zap.SugaredLogger
}

// Open opens (or creates) the data file at dbPath and its sibling
// "<dbPath>.catalog" file, bringing up a ready-to-use Engine.
func Open(dbPath string, log *zap.SugaredLogger) (*Engine, error) {
	disk, err := OpenDiskManager(dbPath, log)
	if err != nil {
		return nil, err
	}
	pool := NewBufferPool(disk, Capacity, log)
	catalog, err := OpenCatalog(dbPath+".catalog", log)
	if err != nil {
		disk.Close()
		return nil, err
	}

	e := &Engine{
		disk:    disk,
		pool:    pool,
		catalog: catalog,
		heaps:   make(map[string]*TableHeap),
		log:     log,
	}
	for _, tbl := range catalog.List() {
		e.heaps[strings.ToLower(tbl.Name)] = NewTableHeap(pool, tbl.RootPageID, log)
	}
	return e, nil
}

// CreateTable defines a new table with the given schema, persisting it
// to the catalog immediately. Fails with ErrTableExists if the
// case-insensitive name is already taken.
func (e *Engine) CreateTable(name string, schema Schema) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.catalog.Get(name); exists {
		return fmt.Errorf("%w: %q", ErrTableExists, name)
	}

	heap, err := CreateTableHeap(e.pool, e.log)
	if err != nil {
		return err
	}
	if err := e.catalog.Create(name, schema, heap.RootPageID()); err != nil {
		return err
	}
	if err := e.catalog.Save(); err != nil {
		return err
	}

	e.heaps[strings.ToLower(name)] = heap
	if e.log != nil {
		e.log.Infow("table created", "table", name, "columns", len(schema))
	}
	return nil
}

// GetTable returns the catalog entry for name, or ErrUnknownTable.
func (e *Engine) GetTable(name string) (*Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getTableLocked(name)
}

func (e *Engine) getTableLocked(name string) (*Table, error) {
	tbl, ok := e.catalog.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return tbl, nil
}

// ListTables returns every table currently in the catalog.
func (e *Engine) ListTables() []*Table {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.List()
}

// InsertRow validates row against name's schema and appends it to the
// table's heap. Fails with ErrUnknownTable or ErrSchemaMismatch before
// ever touching storage.
func (e *Engine) InsertRow(name string, row Row) (RowId, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, err := e.getTableLocked(name)
	if err != nil {
		return RowId{}, err
	}
	if err := row.MatchesSchema(tbl.Schema); err != nil {
		return RowId{}, err
	}

	heap := e.heaps[strings.ToLower(name)]
	id, err := heap.Insert(row.Encode())
	if err != nil {
		return RowId{}, err
	}
	if e.log != nil {
		e.log.Debugw("row inserted", "table", name, "page_id", id.PageID, "slot", id.Slot)
	}
	return id, nil
}

// Scan calls fn for every row in table name, decoded per its schema,
// stopping early if fn returns false or an error.
func (e *Engine) Scan(name string, fn func(id RowId, row Row) (bool, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, err := e.getTableLocked(name)
	if err != nil {
		return err
	}
	heap := e.heaps[strings.ToLower(name)]

	return heap.Scan(func(id RowId, payload []byte) (bool, error) {
		row, err := DecodeRow(payload, tbl.Schema)
		if err != nil {
			return false, err
		}
		return fn(id, row)
	})
}

// Flush writes every dirty buffered page and the catalog to disk, then
// fsyncs the data file. This is the checkpoint invoked by the REPL's
// "flush" command, at the end of each TCP session, and on clean shutdown.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.pool.FlushAll(); err != nil {
		return err
	}
	if err := e.catalog.Save(); err != nil {
		return err
	}
	if e.log != nil {
		e.log.Debugw("engine flushed")
	}
	return nil
}

// Close flushes and releases the underlying data file handle.
func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disk.Close()
}

// Stats exposes buffer pool hit/miss/eviction counters for telemetry.
func (e *Engine) Stats() (hits, misses, evictions int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Stats()
}

// IOStats exposes the underlying data file's cumulative read/write page
// counters for telemetry.
func (e *Engine) IOStats() (reads, writes int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disk.IOStats()
}
