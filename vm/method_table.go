package vm

import "sync/atomic"

// MethodTable holds the methods defined directly in one module, indexed by
// selector ID.
//
// Readers load an immutable snapshot and never lock. Writers copy the
// snapshot, change the copy and publish it; they are serialized by the
// runtime's definition lock. Inheritance is not handled here: lookups walk
// the ancestry in Module.SearchMethod.
type MethodTable struct {
	methods atomic.Pointer[[]*Method]
}

func newMethodTable() *MethodTable {
	t := &MethodTable{}
	empty := make([]*Method, 0)
	t.methods.Store(&empty)
	return t
}

// Lookup returns the method stored at selector, or nil.
func (t *MethodTable) Lookup(selector int) *Method {
	ms := *t.methods.Load()
	if selector >= 0 && selector < len(ms) {
		return ms[selector]
	}
	return nil
}

// put installs method at selector, growing the table as needed.
func (t *MethodTable) put(selector int, method *Method) {
	old := *t.methods.Load()
	n := len(old)
	if selector >= n {
		n = span(selector)
	}
	next := make([]*Method, n)
	copy(next, old)
	next[selector] = method
	t.methods.Store(&next)
}

// remove clears selector and reports whether anything was there.
func (t *MethodTable) remove(selector int) bool {
	old := *t.methods.Load()
	if selector < 0 || selector >= len(old) || old[selector] == nil {
		return false
	}
	next := make([]*Method, len(old))
	copy(next, old)
	next[selector] = nil
	t.methods.Store(&next)
	return true
}

// Len returns the number of methods (tombstones included).
func (t *MethodTable) Len() int {
	count := 0
	for _, m := range *t.methods.Load() {
		if m != nil {
			count++
		}
	}
	return count
}

// Each calls fn for every stored method in selector order.
func (t *MethodTable) Each(fn func(selector int, m *Method)) {
	for sel, m := range *t.methods.Load() {
		if m != nil {
			fn(sel, m)
		}
	}
}
