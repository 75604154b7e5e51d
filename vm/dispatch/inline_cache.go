package dispatch

import (
	"sync/atomic"

	"github.com/chazu/indy/vm"
)

// CacheState represents the current state of an inline cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No entry installed yet
	CacheMonomorphic                   // One entry
	CachePolymorphic                   // 2..MaxPoly entries
	CacheMegamorphic                   // Chain overflowed and was cleared; relearning
)

func (s CacheState) String() string {
	switch s {
	case CacheEmpty:
		return "empty"
	case CacheMonomorphic:
		return "monomorphic"
	case CachePolymorphic:
		return "polymorphic"
	case CacheMegamorphic:
		return "megamorphic"
	default:
		return "unknown"
	}
}

// MaxPICEntries is the default cap on entries per site.
const MaxPICEntries = 6

// Entry is one guarded cache entry.
type Entry[K comparable, T any] struct {
	Key    K
	Token  *vm.Invalidator
	Target T
}

// chain is immutable once published.
type chain[K comparable, T any] struct {
	state   CacheState
	entries []Entry[K, T]
}

// InlineCache is the guard chain of one site. Lookups never lock: they
// load the current chain and scan it. Installs build a new chain and
// publish it with a single store, so concurrent installs race benignly and
// the last one wins.
type InlineCache[K comparable, T any] struct {
	chain   atomic.Pointer[chain[K, T]]
	maxPoly int
	stats   bool
	tracker *SiteTracker

	// Statistics for profiling
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewInlineCache creates an empty cache holding at most maxPoly entries.
func NewInlineCache[K comparable, T any](maxPoly int, stats bool, tracker *SiteTracker) *InlineCache[K, T] {
	if maxPoly < 1 {
		maxPoly = MaxPICEntries
	}
	if tracker == nil {
		tracker = NewSiteTracker("", 0)
	}
	return &InlineCache[K, T]{maxPoly: maxPoly, stats: stats, tracker: tracker}
}

// Lookup returns the target of the first entry whose key equals key and
// whose token is still valid.
func (ic *InlineCache[K, T]) Lookup(key K) (T, bool) {
	if c := ic.chain.Load(); c != nil {
		for i := range c.entries {
			e := &c.entries[i]
			if e.Key == key && e.Token.Valid() {
				if ic.stats {
					ic.hits.Add(1)
				}
				return e.Target, true
			}
		}
	}
	if ic.stats {
		ic.misses.Add(1)
	}
	var zero T
	return zero, false
}

// Install adds an entry after a miss and returns the new state. Entries
// with retired tokens and any entry for the same key are dropped first. If
// the chain is still full, it is cleared and only the new entry is kept.
func (ic *InlineCache[K, T]) Install(key K, token *vm.Invalidator, target T) CacheState {
	var live []Entry[K, T]
	if old := ic.chain.Load(); old != nil {
		live = make([]Entry[K, T], 0, len(old.entries)+1)
		for _, e := range old.entries {
			if e.Key != key && e.Token.Valid() {
				live = append(live, e)
			}
		}
	}
	entry := Entry[K, T]{Key: key, Token: token, Target: target}
	next := &chain[K, T]{}
	if ic.tracker.ShouldReset(len(live), ic.maxPoly) {
		next.state = CacheMegamorphic
		next.entries = []Entry[K, T]{entry}
		ic.chain.Store(next)
		ic.tracker.RecordClear()
		return next.state
	}
	next.entries = append(live, entry)
	if len(next.entries) == 1 {
		next.state = CacheMonomorphic
	} else {
		next.state = CachePolymorphic
	}
	ic.chain.Store(next)
	ic.tracker.Observe(len(next.entries))
	return next.state
}

// State returns the state of the published chain.
func (ic *InlineCache[K, T]) State() CacheState {
	if c := ic.chain.Load(); c != nil {
		return c.state
	}
	return CacheEmpty
}

// Len returns the number of entries in the published chain, live or not.
func (ic *InlineCache[K, T]) Len() int {
	if c := ic.chain.Load(); c != nil {
		return len(c.entries)
	}
	return 0
}

// Entries returns a copy of the published chain.
func (ic *InlineCache[K, T]) Entries() []Entry[K, T] {
	c := ic.chain.Load()
	if c == nil {
		return nil
	}
	out := make([]Entry[K, T], len(c.entries))
	copy(out, c.entries)
	return out
}

// Hits returns the number of lookups served from the chain.
func (ic *InlineCache[K, T]) Hits() uint64 { return ic.hits.Load() }

// Misses returns the number of lookups that found no usable entry.
func (ic *InlineCache[K, T]) Misses() uint64 { return ic.misses.Load() }

// HitRate returns the cache hit rate as a percentage (0-100).
func (ic *InlineCache[K, T]) HitRate() float64 {
	hits, misses := ic.Hits(), ic.Misses()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) * 100 / float64(total)
}

// Reset clears the cache back to empty state.
func (ic *InlineCache[K, T]) Reset() {
	ic.chain.Store(nil)
	ic.hits.Store(0)
	ic.misses.Store(0)
	ic.tracker.reset()
}
