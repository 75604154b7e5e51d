package vm

import (
	"sort"
	"sync"
	"sync/atomic"
)

// GlobalTable holds $-variables. Each global has its own token, created on
// first touch so that reads of a never-assigned global can be cached too.
type GlobalTable struct {
	mu   sync.RWMutex
	vars map[string]*globalVariable
}

type globalVariable struct {
	value atomic.Pointer[Value]
	sw    *Switch
}

func newGlobalTable() *GlobalTable {
	return &GlobalTable{vars: make(map[string]*globalVariable)}
}

func (t *GlobalTable) variable(name string) *globalVariable {
	t.mu.RLock()
	g, ok := t.vars[name]
	t.mu.RUnlock()
	if ok {
		return g
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if g, ok := t.vars[name]; ok {
		return g
	}
	g = &globalVariable{sw: NewSwitch("global(" + name + ")")}
	t.vars[name] = g
	return g
}

// Get returns the value of name, Nil if never assigned.
func (t *GlobalTable) Get(name string) Value {
	if p := t.variable(name).value.Load(); p != nil {
		return *p
	}
	return Nil
}

// Set assigns name and retires its token.
func (t *GlobalTable) Set(name string, v Value) {
	g := t.variable(name)
	t.mu.Lock()
	defer t.mu.Unlock()
	g.sw.Mutate(func() {
		g.value.Store(&v)
	})
}

// Token returns the live token of name.
func (t *GlobalTable) Token(name string) *Invalidator {
	return t.variable(name).sw.Current()
}

// Names lists the globals that have been assigned.
func (t *GlobalTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.vars))
	for n, g := range t.vars {
		if g.value.Load() != nil {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
