package vm

import (
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

// VariableTable maps instance variable names of one real class to slot
// indices. Indices are assigned on first assignment, never renumbered and
// never reused, so a cached index stays correct for the class's lifetime;
// the layout token only tells caches that a new name appeared.
type VariableTable struct {
	owner  *Module
	mu     sync.Mutex
	layout atomic.Pointer[variableLayout]
	token  *Switch
}

type variableLayout struct {
	index map[string]int
	names []string
}

func newVariableTable(owner *Module) *VariableTable {
	t := &VariableTable{
		owner: owner,
		token: NewSwitch("layout(" + owner.describeForToken() + ")"),
	}
	t.layout.Store(&variableLayout{index: map[string]int{}})
	return t
}

// Index returns the slot for name, or -1 if no instance of the class ever
// assigned it.
func (t *VariableTable) Index(name string) int {
	if i, ok := t.layout.Load().index[name]; ok {
		return i
	}
	return -1
}

// Allocate returns the slot for name, assigning the next free slot on first
// use. A new assignment retires the layout token.
func (t *VariableTable) Allocate(name string) int {
	if i := t.Index(name); i >= 0 {
		return i
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	// Double-check after acquiring lock
	old := t.layout.Load()
	if i, ok := old.index[name]; ok {
		return i
	}
	next := &variableLayout{
		index: make(map[string]int, len(old.index)+1),
		names: make([]string, len(old.names), len(old.names)+1),
	}
	for k, v := range old.index {
		next.index[k] = v
	}
	copy(next.names, old.names)
	i := len(next.names)
	next.index[name] = i
	next.names = append(next.names, name)
	t.token.Mutate(func() {
		t.layout.Store(next)
	})
	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("%s: allocated %s at slot %d", t.owner.Name(), name, i)
	}
	return i
}

// Names lists allocated names in slot order.
func (t *VariableTable) Names() []string {
	names := t.layout.Load().names
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Len returns the number of allocated slots.
func (t *VariableTable) Len() int {
	return len(t.layout.Load().names)
}

// Token returns the live layout token.
func (t *VariableTable) Token() *Invalidator {
	return t.token.Current()
}
