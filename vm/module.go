package vm

import (
	"fmt"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Module: classes, modules, singleton classes and include wrappers
// ---------------------------------------------------------------------------

// ModuleKind distinguishes the four shapes a Module takes.
type ModuleKind uint8

const (
	// KindModule is a mixin created with DefineModule.
	KindModule ModuleKind = iota
	// KindClass is an ordinary class.
	KindClass
	// KindSingleton is the per-object class holding singleton methods.
	KindSingleton
	// KindIncluded is the wrapper a module gets when it is included into
	// another module's ancestry. It shares the module's tables.
	KindIncluded
)

func (k ModuleKind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindClass:
		return "class"
	case KindSingleton:
		return "singleton"
	case KindIncluded:
		return "included"
	default:
		return fmt.Sprintf("ModuleKind(%d)", k)
	}
}

// Module is a node of the method resolution chain. Superclass links run
// through classes and include wrappers alike, so walking Superclass from a
// receiver's class visits exactly its ancestry.
type Module struct {
	rt   *Runtime
	id   uint64
	kind ModuleKind
	name atomic.Pointer[string]

	super    atomic.Pointer[Module]
	origin   *Module
	attached Value
	lexical  *Module
	scope    *LexicalScope
	meta     atomic.Pointer[Module]

	methods   *MethodTable
	constants *ConstantTable
	variables *VariableTable

	methodSwitch *Switch

	// Modules whose ancestry passes directly through this one: subclasses,
	// singleton classes and includers. Guarded by the runtime's definition
	// lock.
	dependents []*Module
}

func (rt *Runtime) newModule(kind ModuleKind, name string, super *Module, lexical *Module) *Module {
	m := &Module{
		rt:      rt,
		id:      rt.nextID.Add(1),
		kind:    kind,
		lexical: lexical,
	}
	m.origin = m
	m.name.Store(&name)
	m.super.Store(super)
	m.methods = newMethodTable()
	m.constants = newConstantTable()
	m.methodSwitch = NewSwitch("methods(" + m.describeForToken() + ")")
	if kind == KindClass {
		m.variables = newVariableTable(m)
	}
	if kind == KindClass || kind == KindModule {
		parent := rt.topScope
		if lexical != nil && lexical != rt.ObjectClass {
			parent = lexical.Scope()
		}
		m.scope = &LexicalScope{module: m, parent: parent}
	}
	if super != nil {
		super.origin.dependents = append(super.origin.dependents, m)
	}
	return m
}

func (m *Module) describeForToken() string {
	if n := *m.name.Load(); n != "" {
		return n
	}
	return fmt.Sprintf("#%d", m.id)
}

// ID is unique per runtime.
func (m *Module) ID() uint64 { return m.id }

// Kind returns the module's shape.
func (m *Module) Kind() ModuleKind { return m.kind }

// Name returns the qualified constant name, or an anonymous marker.
func (m *Module) Name() string {
	switch m.kind {
	case KindIncluded:
		return m.origin.Name()
	case KindSingleton:
		return "#<Class:" + Inspect(m.attached) + ">"
	}
	if n := *m.name.Load(); n != "" {
		return n
	}
	return fmt.Sprintf("#<%s:%d>", m.kind, m.id)
}

func (m *Module) String() string { return m.Name() }

func (m *Module) IsClass() bool     { return m.kind == KindClass || m.kind == KindSingleton }
func (m *Module) IsModule() bool    { return m.kind == KindModule }
func (m *Module) IsSingleton() bool { return m.kind == KindSingleton }
func (m *Module) IsIncluded() bool  { return m.kind == KindIncluded }

// Runtime returns the owning runtime.
func (m *Module) Runtime() *Runtime { return m.rt }

// Superclass returns the next entry of the resolution chain (which may be
// an include wrapper), or nil at the root.
func (m *Module) Superclass() *Module { return m.super.Load() }

// Origin returns the module an include wrapper stands for, or m itself.
func (m *Module) Origin() *Module { return m.origin }

// Attached returns the object a singleton class belongs to.
func (m *Module) Attached() Value { return m.attached }

// LexicalParent returns the module this one was defined under.
func (m *Module) LexicalParent() *Module { return m.lexical }

// Scope returns the lexical scope of code written in this module's body.
func (m *Module) Scope() *LexicalScope {
	switch {
	case m.scope != nil:
		return m.scope
	case m.origin != m:
		return m.origin.Scope()
	case m.kind == KindSingleton:
		if owner, ok := m.attached.(*Module); ok {
			return owner.Scope()
		}
	}
	return m.rt.topScope
}

// MethodLocation returns the module whose table receives definitions made
// in this module's body.
func (m *Module) MethodLocation() *Module { return m.origin }

// RealClass skips singleton classes and include wrappers.
func (m *Module) RealClass() *Module {
	c := m
	for c != nil && (c.kind == KindSingleton || c.kind == KindIncluded) {
		c = c.Superclass()
	}
	return c
}

// Ancestors lists the resolution chain, include wrappers shown as their
// modules.
func (m *Module) Ancestors() []*Module {
	var out []*Module
	for c := m; c != nil; c = c.Superclass() {
		out = append(out, c.origin)
	}
	return out
}

// Includes reports whether other appears in m's ancestry.
func (m *Module) Includes(other *Module) bool {
	if other == nil {
		return false
	}
	other = other.origin
	for c := m; c != nil; c = c.Superclass() {
		if c.origin == other {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Method lookup
// ---------------------------------------------------------------------------

// SearchMethod finds name along the ancestry. It returns the method and the
// chain entry whose table held it, or (nil, nil) when the name is not
// defined or an undef tombstone is reached first.
func (m *Module) SearchMethod(name string) (*Method, *Module) {
	return m.SearchSelector(m.rt.Selectors.Lookup(name))
}

// SearchSelector is SearchMethod for an interned selector ID.
func (m *Module) SearchSelector(sel int) (*Method, *Module) {
	if sel < 0 {
		return nil, nil
	}
	for c := m; c != nil; c = c.Superclass() {
		if meth := c.origin.methods.Lookup(sel); meth != nil {
			if meth.IsUndefined() {
				return nil, nil
			}
			return meth, c
		}
	}
	return nil, nil
}

// MethodLocal returns the entry for name in m's own table, tombstones
// included.
func (m *Module) MethodLocal(name string) *Method {
	sel := m.rt.Selectors.Lookup(name)
	if sel < 0 {
		return nil
	}
	return m.origin.methods.Lookup(sel)
}

// Methods returns m's own method table.
func (m *Module) Methods() *MethodTable { return m.origin.methods }

// MethodToken returns the live token of m's method table. It is retired
// whenever anything in m's ancestry changes.
func (m *Module) MethodToken() *Invalidator {
	return m.origin.methodSwitch.Current()
}

// ---------------------------------------------------------------------------
// Instance variable layout
// ---------------------------------------------------------------------------

// Variables returns the instance variable table of m's real class.
func (m *Module) Variables() *VariableTable {
	if rc := m.RealClass(); rc != nil {
		return rc.variables
	}
	return nil
}

// LayoutToken returns the live token of the real class's ivar layout.
func (m *Module) LayoutToken() *Invalidator {
	return m.Variables().Token()
}

// ---------------------------------------------------------------------------
// Dependents
// ---------------------------------------------------------------------------

// descendantSwitches collects the method switches of m and everything whose
// ancestry passes through m. Caller holds the definition lock.
func (m *Module) descendantSwitches() []*Switch {
	seen := make(map[*Module]struct{})
	var out []*Switch
	var walk func(x *Module)
	walk = func(x *Module) {
		x = x.origin
		if _, ok := seen[x]; ok {
			return
		}
		seen[x] = struct{}{}
		out = append(out, x.methodSwitch)
		for _, d := range x.dependents {
			walk(d)
		}
	}
	walk(m)
	return out
}

// mutateMethods applies fn to m's definitions, retiring the method tokens
// of m and all its descendants for the duration.
func (m *Module) mutateMethods(fn func()) {
	m.rt.defMu.Lock()
	defer m.rt.defMu.Unlock()
	m.mutateMethodsLocked(fn)
}

// mutateMethodsLocked is mutateMethods with defMu held. extra switches are
// retired in the same bracket.
func (m *Module) mutateMethodsLocked(fn func(), extra ...*Switch) {
	switches := append(m.descendantSwitches(), extra...)
	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("method change in %s retires %d token(s)", m.Name(), len(switches))
	}
	mutateAll(switches, fn)
}
