// Package index holds the in-memory metadata index of a photo library.
package index

import (
	"fmt"
	"sync"

	"github.com/starford/metaedit/internal/apperr"
	"github.com/starford/metaedit/internal/models"
	"github.com/starford/metaedit/internal/storage"
)

// Loader decodes the record of the photo stored under an index key.
type Loader func(path string) (*models.Record, error)

// Decoder reads a record from an absolute file path.
type Decoder interface {
	Decode(path string) (*models.Record, error)
}

// StoreLoader returns a Loader that resolves keys against store and
// decodes the file with dec.
func StoreLoader(store storage.Provider, dec Decoder) Loader {
	return func(path string) (*models.Record, error) {
		abs, err := store.Abs(path)
		if err != nil {
			return nil, err
		}
		return dec.Decode(abs)
	}
}

// Index maps photo paths to records, keeping discovery order. Records
// are copied on the way in and out, so callers never share state with
// the index. It is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*models.Record
}

// New returns an empty index.
func New() *Index {
	return &Index{records: make(map[string]*models.Record)}
}

// Len returns the number of indexed photos.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.order)
}

// Paths returns every indexed path in discovery order.
func (idx *Index) Paths() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, len(idx.order))
	copy(out, idx.order)
	return out
}

// Get returns a copy of the record for path.
func (idx *Index) Get(path string) (*models.Record, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	r, ok := idx.records[path]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Range calls fn for each record in discovery order until fn returns
// false. fn receives a copy and must not call back into the index for
// writing.
func (idx *Index) Range(fn func(r *models.Record) bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, p := range idx.order {
		if !fn(idx.records[p].Clone()) {
			return
		}
	}
}

// Update replaces the record for an already indexed path.
func (idx *Index) Update(path string, r *models.Record) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.records[path]; !ok {
		return fmt.Errorf("index: update %s: %w", path, apperr.ErrUnknownPath)
	}
	idx.records[path] = withPath(r, path)
	return nil
}

// Put inserts or replaces the record stored under r.Path. New paths are
// appended to the order. It reports whether the path was new.
func (idx *Index) Put(r *models.Record) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, exists := idx.records[r.Path]
	if !exists {
		idx.order = append(idx.order, r.Path)
	}
	idx.records[r.Path] = withPath(r, r.Path)
	return !exists
}

// Remove drops path from the index and reports whether it was present.
func (idx *Index) Remove(path string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.records[path]; !ok {
		return false
	}
	delete(idx.records, path)
	for i, p := range idx.order {
		if p == path {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	return true
}

func withPath(r *models.Record, path string) *models.Record {
	c := r.Clone()
	if c == nil {
		c = &models.Record{}
	}
	c.Path = path
	return c
}
