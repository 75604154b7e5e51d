package vm

import (
	"fmt"
	"sort"
	"sync"
)

// ConstantTable holds the constants defined directly in one module.
type ConstantTable struct {
	mu     sync.RWMutex
	values map[string]Value
}

func newConstantTable() *ConstantTable {
	return &ConstantTable{values: make(map[string]Value)}
}

func (t *ConstantTable) get(name string) (Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[name]
	return v, ok
}

func (t *ConstantTable) set(name string, v Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values[name] = v
}

func (t *ConstantTable) remove(name string) (Value, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.values[name]
	delete(t.values, name)
	return v, ok
}

func (t *ConstantTable) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.values))
	for n := range t.values {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// Module constant API
// ---------------------------------------------------------------------------

// ConstantLocal looks name up in m's own table only.
func (m *Module) ConstantLocal(name string) (Value, bool) {
	return m.origin.constants.get(name)
}

// SearchConstant looks name up along m's ancestry, starting at m. For a
// plain module this does not reach Object; callers that want Object's
// constants as a fallback search it themselves.
func (m *Module) SearchConstant(name string) (Value, bool) {
	for c := m; c != nil; c = c.Superclass() {
		if v, ok := c.origin.constants.get(name); ok {
			return v, true
		}
	}
	return nil, false
}

// ConstantNames lists m's own constants in sorted order.
func (m *Module) ConstantNames() []string {
	return m.origin.constants.names()
}

// SetConstant assigns name in m, retiring the name's token. An anonymous
// module assigned to a constant takes the constant's qualified name.
func (m *Module) SetConstant(name string, v Value) error {
	if !isConstantName(name) {
		return Raise(ErrName, fmt.Sprintf("wrong constant name %s", name), "name", name)
	}
	rt := m.rt
	rt.defMu.Lock()
	defer rt.defMu.Unlock()
	rt.constantSwitch(name).Mutate(func() {
		m.origin.constants.set(name, v)
	})
	if mod, ok := v.(*Module); ok && *mod.name.Load() == "" && mod.kind != KindSingleton && mod.kind != KindIncluded {
		qualified := m.qualify(name)
		mod.name.Store(&qualified)
	}
	return nil
}

// RemoveConstant deletes name from m's own table and returns its value.
func (m *Module) RemoveConstant(name string) (Value, error) {
	rt := m.rt
	rt.defMu.Lock()
	defer rt.defMu.Unlock()
	if _, ok := m.origin.constants.get(name); !ok {
		return nil, Raise(ErrName, fmt.Sprintf("constant %s::%s not defined", m.Name(), name), "name", name)
	}
	var old Value
	rt.constantSwitch(name).Mutate(func() {
		old, _ = m.origin.constants.remove(name)
	})
	return old, nil
}

// ConstantToken returns the live token for constant name. Tokens are per
// name across the whole runtime: assigning Foo anywhere retires every cache
// that resolved some Foo, because a new definition may shadow the one a
// cache found.
func (rt *Runtime) ConstantToken(name string) *Invalidator {
	return rt.constantSwitch(name).Current()
}

func (rt *Runtime) constantSwitch(name string) *Switch {
	if s, ok := rt.constSwitches.Load(name); ok {
		return s.(*Switch)
	}
	s, _ := rt.constSwitches.LoadOrStore(name, NewSwitch("constant("+name+")"))
	return s.(*Switch)
}

// inclusionConstantSwitches returns the switches of every constant name
// defined in m or the modules m includes. Including m somewhere can shadow
// any of them.
func (m *Module) inclusionConstantSwitches() []*Switch {
	seen := make(map[string]struct{})
	var out []*Switch
	for x := m; x != nil; x = x.Superclass() {
		for _, n := range x.ConstantNames() {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, m.rt.constantSwitch(n))
		}
	}
	return out
}

func isConstantName(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}
