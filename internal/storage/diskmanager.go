package storage

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DiskManager owns the single data file backing one table space. It is
// ignorant of page contents: callers hand it raw PageSize-byte buffers.
type DiskManager struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	numPages uint32 // highest allocated page id + 1; PageID 0 is never handed out
	log      *zap.SugaredLogger

	reads  atomic.Int64
	writes atomic.Int64
}

// OpenDiskManager opens (creating if necessary) the data file at path.
func OpenDiskManager(path string, log *zap.SugaredLogger) (*DiskManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening data file %s: %v", ErrIO, path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat data file %s: %v", ErrIO, path, err)
	}

	numPages := uint32(fi.Size() / PageSize)
	if numPages == 0 {
		// PageID 0 is reserved; the file's first usable page is 1. We
		// track numPages as "next id to allocate", so start it at 1.
		numPages = 1
	}

	dm := &DiskManager{
		file:     f,
		path:     path,
		numPages: numPages,
		log:      log,
	}
	if log != nil {
		log.Debugw("disk manager opened", "path", path, "num_pages", numPages)
	}
	return dm, nil
}

// ReadPage reads page pid into page. If the file is shorter than the
// page's offset (the page was allocated but never written), page is left
// zero-filled.
func (dm *DiskManager) ReadPage(pid PageID, page *Page) error {
	dm.reads.Add(1)

	dm.mu.Lock()
	defer dm.mu.Unlock()

	for i := range page.Data {
		page.Data[i] = 0
	}

	offset := int64(pid) * PageSize
	n, err := dm.file.ReadAt(page.Data[:], offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("%w: reading page %d: %v", ErrIO, pid, err)
	}
	_ = n // short/zero reads are fine: the remainder stays zero-filled
	return nil
}

// WritePage writes page to pid's slot in the data file. Does not fsync.
func (dm *DiskManager) WritePage(pid PageID, page *Page) error {
	dm.writes.Add(1)

	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := int64(pid) * PageSize
	if _, err := dm.file.WriteAt(page.Data[:], offset); err != nil {
		return fmt.Errorf("%w: writing page %d: %v", ErrIO, pid, err)
	}
	return nil
}

// AllocatePage reserves the next PageID. Allocation is purely logical:
// no bytes are written until the first WritePage for that id.
func (dm *DiskManager) AllocatePage() PageID {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	pid := PageID(dm.numPages)
	dm.numPages++
	return pid
}

// NumPages returns the number of pages allocated so far (including page 0,
// which is never used for data).
func (dm *DiskManager) NumPages() uint32 {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.numPages
}

// IOStats returns the cumulative count of ReadPage and WritePage calls
// since the DiskManager was opened.
func (dm *DiskManager) IOStats() (reads, writes int64) {
	return dm.reads.Load(), dm.writes.Load()
}

// Flush fsyncs the underlying file.
func (dm *DiskManager) Flush() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if err := dm.file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing data file: %v", ErrIO, err)
	}
	return nil
}

// Close closes the underlying file handle.
func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.file.Close()
}
