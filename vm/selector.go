package vm

import (
	"sync"
	"sync/atomic"
)

// Selectors the runtime itself dispatches on. NewSelectorTable interns them
// first, in this order.
const (
	SelInitialize = iota
	SelMethodMissing
	SelConstMissing
	SelRespondToMissing
)

var wellKnownSelectors = [...]string{
	SelInitialize:       "initialize",
	SelMethodMissing:    "method_missing",
	SelConstMissing:     "const_missing",
	SelRespondToMissing: "respond_to_missing?",
}

// selectorChunk is the granularity method tables grow by.
const selectorChunk = 16

// SelectorTable maps method names to dense IDs shared by every method table
// of a runtime. IDs are never reused.
//
// Lookup and Name run on the dispatch miss path and do not lock. Intern
// takes a mutex only for names it has not seen.
type SelectorTable struct {
	mu    sync.Mutex
	ids   sync.Map // string -> int
	names atomic.Pointer[[]string]
}

// NewSelectorTable creates a table holding the well-known selectors.
func NewSelectorTable() *SelectorTable {
	st := &SelectorTable{}
	names := make([]string, 0, 256)
	st.names.Store(&names)
	for _, name := range wellKnownSelectors {
		st.Intern(name)
	}
	return st
}

// Intern returns the ID for name, assigning the next one on first sight.
func (st *SelectorTable) Intern(name string) int {
	if id, ok := st.ids.Load(name); ok {
		return id.(int)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if id, ok := st.ids.Load(name); ok {
		return id.(int)
	}
	old := *st.names.Load()
	id := len(old)
	next := append(old, name)
	// Publish the name before the ID so Name never misses an ID a reader
	// got from Lookup.
	st.names.Store(&next)
	st.ids.Store(name, id)
	return id
}

// Lookup returns the ID for name, or -1 if it was never interned. A name
// nobody interned cannot be defined anywhere, so searches stop early.
func (st *SelectorTable) Lookup(name string) int {
	if id, ok := st.ids.Load(name); ok {
		return id.(int)
	}
	return -1
}

// Name returns the name for an ID, or "" if invalid.
func (st *SelectorTable) Name(id int) string {
	names := *st.names.Load()
	if id < 0 || id >= len(names) {
		return ""
	}
	return names[id]
}

// Len returns the number of interned names.
func (st *SelectorTable) Len() int {
	return len(*st.names.Load())
}

// span returns the length a method table needs to store sel. Tables grow in
// chunks so that defining a run of fresh names does not copy the table on
// every definition.
func span(sel int) int {
	return (sel/selectorChunk + 1) * selectorChunk
}
