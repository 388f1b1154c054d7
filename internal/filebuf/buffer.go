// Package filebuf implements component C4, the File Buffer Cache: the
// refcounted map of currently-open documents that backs textDocument/didOpen
// and didClose calls to every language server a file is relevant to. It has
// no direct teacher analogue (apps/cli/internal/lsp/server.go's
// TextDocument map is server-side document storage, not a refcounted client
// cache) but follows the same "documents map[string]*TextDocument" +
// docMu sync.RWMutex shape for its map access.
package filebuf

import (
	"sync"

	"github.com/koksalmehmet/symbex/internal/lsperr"
)

// Entry is one open file: its current in-memory content, version counter
// for didChange, and how many logical callers currently hold it open.
type Entry struct {
	RelativePath string
	Content      string
	Version      int
	refCount     int
}

// Cache is the refcounted buffer cache. Open/Close are expected to be
// paired by callers the way textDocument/didOpen and didClose are paired;
// the file is only actually closed on the language server once the last
// reference drops, per spec.md §8.7 (an already-open buffer referenced by
// two concurrent operations must not be closed out from under either one).
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func New() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Open increments the refcount for relativePath, creating the Entry (with
// content/version 1) on first open. It reports whether this call was the
// one that transitioned the file from closed to open -- callers use that
// to decide whether to send textDocument/didOpen.
func (c *Cache) Open(relativePath, content string) (entry *Entry, firstOpen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[relativePath]
	if !ok {
		e = &Entry{RelativePath: relativePath, Content: content, Version: 1}
		c.entries[relativePath] = e
		e.refCount = 1
		return e, true
	}
	e.refCount++
	return e, false
}

// Update applies new content to an already-open file, bumping its version
// for the next didChange.
func (c *Cache) Update(relativePath, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[relativePath]
	if !ok {
		return lsperr.LinesNotRead(relativePath)
	}
	e.Content = content
	e.Version++
	return nil
}

// Close decrements the refcount, reporting whether it reached zero --
// callers use that to decide whether to send textDocument/didClose.
func (c *Cache) Close(relativePath string) (lastClose bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[relativePath]
	if !ok {
		return false
	}
	e.refCount--
	if e.refCount <= 0 {
		delete(c.entries, relativePath)
		return true
	}
	return false
}

// Get returns the current entry for relativePath, or ok=false if it is not
// open.
func (c *Cache) Get(relativePath string) (entry Entry, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, exists := c.entries[relativePath]
	if !exists {
		return Entry{}, false
	}
	return *e, true
}

// RefCount reports the current refcount for relativePath (0 if closed).
func (c *Cache) RefCount(relativePath string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[relativePath]; ok {
		return e.refCount
	}
	return 0
}

// Len reports how many files are currently open.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
