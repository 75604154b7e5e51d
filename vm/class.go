package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Class and module definition
// ---------------------------------------------------------------------------

// DefineClass defines (or reopens) a top-level class. super defaults to
// Object.
func (rt *Runtime) DefineClass(name string, super *Module) (*Module, error) {
	return rt.ObjectClass.DefineClassUnder(name, super)
}

// DefineModule defines (or reopens) a top-level module.
func (rt *Runtime) DefineModule(name string) (*Module, error) {
	return rt.ObjectClass.DefineModuleUnder(name)
}

// DefineClassUnder defines (or reopens) class name as a constant of m.
// Reopening with a different superclass fails with ErrType.
func (m *Module) DefineClassUnder(name string, super *Module) (*Module, error) {
	rt := m.rt
	if super != nil && super.kind != KindClass {
		return nil, Raisef(ErrType, "superclass must be a Class (%s given)", super.Name())
	}
	if v, ok := m.ConstantLocal(name); ok {
		existing, isMod := v.(*Module)
		if !isMod || existing.kind != KindClass {
			return nil, Raisef(ErrType, "%s is not a class", name)
		}
		if super != nil && existing.Superclass().RealClass() != super {
			return nil, Raisef(ErrType, "superclass mismatch for class %s", name)
		}
		return existing, nil
	}
	if super == nil {
		super = rt.ObjectClass
	}
	rt.defMu.Lock()
	c := rt.newClassLocked(m.qualify(name), super, m)
	rt.defMu.Unlock()
	if err := m.SetConstant(name, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DefineModuleUnder defines (or reopens) module name as a constant of m.
func (m *Module) DefineModuleUnder(name string) (*Module, error) {
	rt := m.rt
	if v, ok := m.ConstantLocal(name); ok {
		existing, isMod := v.(*Module)
		if !isMod || existing.kind != KindModule {
			return nil, Raisef(ErrType, "%s is not a module", name)
		}
		return existing, nil
	}
	rt.defMu.Lock()
	mod := rt.newModule(KindModule, m.qualify(name), nil, m)
	rt.defMu.Unlock()
	if err := m.SetConstant(name, mod); err != nil {
		return nil, err
	}
	return mod, nil
}

// NewClass creates an anonymous class. It gets a name when first assigned
// to a constant.
func (rt *Runtime) NewClass(super *Module) *Module {
	if super == nil {
		super = rt.ObjectClass
	}
	rt.defMu.Lock()
	defer rt.defMu.Unlock()
	return rt.newClassLocked("", super, nil)
}

// NewModule creates an anonymous module.
func (rt *Runtime) NewModule() *Module {
	rt.defMu.Lock()
	defer rt.defMu.Unlock()
	return rt.newModule(KindModule, "", nil, nil)
}

func (rt *Runtime) newClassLocked(name string, super *Module, lexical *Module) *Module {
	c := rt.newModule(KindClass, name, super, lexical)
	rt.attachMetaclass(c)
	return c
}

// attachMetaclass gives class c its singleton class, parented on the
// superclass's singleton class so that class methods inherit.
func (rt *Runtime) attachMetaclass(c *Module) {
	metaSuper := rt.ClassClass
	if sup := c.Superclass(); sup != nil {
		if sm := sup.RealClass().meta.Load(); sm != nil {
			metaSuper = sm
		}
	}
	meta := rt.newModule(KindSingleton, "", metaSuper, nil)
	meta.attached = c
	c.meta.Store(meta)
}

func (m *Module) qualify(name string) string {
	if m == m.rt.ObjectClass || m.kind == KindSingleton {
		return name
	}
	return m.Name() + "::" + name
}

// SingletonClass returns m's singleton class, creating it on first use.
// Classes always have one; modules get one parented on Module.
func (m *Module) SingletonClass() *Module {
	if meta := m.meta.Load(); meta != nil {
		return meta
	}
	rt := m.rt
	rt.defMu.Lock()
	defer rt.defMu.Unlock()
	if meta := m.meta.Load(); meta != nil {
		return meta
	}
	super := rt.ModuleClass
	if m.kind == KindSingleton {
		super = rt.ClassClass
	}
	meta := rt.newModule(KindSingleton, "", super, nil)
	meta.attached = m
	m.meta.Store(meta)
	return meta
}

// ---------------------------------------------------------------------------
// Method definition
// ---------------------------------------------------------------------------

// AddMethod installs a copy of meth in m's table and returns the installed
// copy. Any previous definition of the name in m is replaced.
func (m *Module) AddMethod(meth *Method) *Method {
	rt := m.rt
	loc := m.MethodLocation()
	installed := *meth
	installed.owner = loc
	installed.serial = rt.nextSerial.Add(1)
	if installed.scope == nil {
		installed.scope = loc.Scope()
	}
	sel := rt.Selectors.Intern(installed.name)
	loc.mutateMethods(func() {
		loc.methods.put(sel, &installed)
	})
	return &installed
}

// Define installs a public method with a full-signature body.
func (m *Module) Define(name string, arity int, fn FuncN) *Method {
	return m.AddMethod(NewMethod(name, arity, fn))
}

// Define0 installs a public method taking no arguments.
func (m *Module) Define0(name string, fn Func0) *Method {
	return m.AddMethod(NewMethod(name, 0, fn))
}

// Define1 installs a public method taking one argument.
func (m *Module) Define1(name string, fn Func1) *Method {
	return m.AddMethod(NewMethod(name, 1, fn))
}

// Define2 installs a public method taking two arguments.
func (m *Module) Define2(name string, fn Func2) *Method {
	return m.AddMethod(NewMethod(name, 2, fn))
}

// AttrReader defines reader methods for the named instance variables.
func (m *Module) AttrReader(names ...string) {
	for _, n := range names {
		meth := NewMethod(n, 0, nil)
		meth.kind = AttrReaderMethod
		meth.ivar = "@" + n
		m.AddMethod(meth)
	}
}

// AttrWriter defines "name=" writer methods for the named instance
// variables.
func (m *Module) AttrWriter(names ...string) {
	for _, n := range names {
		meth := NewMethod(n+"=", 1, nil)
		meth.kind = AttrWriterMethod
		meth.ivar = "@" + n
		m.AddMethod(meth)
	}
}

// AttrAccessor defines both reader and writer.
func (m *Module) AttrAccessor(names ...string) {
	m.AttrReader(names...)
	m.AttrWriter(names...)
}

// SetVisibility changes the visibility of name as seen through m. An
// inherited method is copied into m with the new visibility.
func (m *Module) SetVisibility(name string, v Visibility) error {
	meth, _ := m.SearchMethod(name)
	if meth == nil {
		return m.undefinedMethodError(name)
	}
	if meth.visibility == v {
		return nil
	}
	m.AddMethod(meth.WithVisibility(v))
	return nil
}

// RemoveMethod deletes m's own definition of name, exposing any inherited
// one.
func (m *Module) RemoveMethod(name string) error {
	rt := m.rt
	sel := rt.Selectors.Lookup(name)
	loc := m.MethodLocation()
	if sel < 0 || loc.methods.Lookup(sel) == nil {
		return m.undefinedMethodError(name)
	}
	loc.mutateMethods(func() {
		loc.methods.remove(sel)
	})
	return nil
}

// UndefMethod hides name for m and its descendants, even if an ancestor
// defines it.
func (m *Module) UndefMethod(name string) error {
	if meth, _ := m.SearchMethod(name); meth == nil {
		return m.undefinedMethodError(name)
	}
	tomb := NewMethod(name, Variadic, nil)
	tomb.kind = UndefinedMethod
	m.AddMethod(tomb)
	return nil
}

// Alias makes newName call the method currently found for oldName.
func (m *Module) Alias(newName, oldName string) error {
	meth, _ := m.SearchMethod(oldName)
	if meth == nil {
		return m.undefinedMethodError(oldName)
	}
	rt := m.rt
	loc := m.MethodLocation()
	aliased := *meth
	aliased.serial = rt.nextSerial.Add(1)
	sel := rt.Selectors.Intern(newName)
	loc.mutateMethods(func() {
		loc.methods.put(sel, &aliased)
	})
	return nil
}

func (m *Module) undefinedMethodError(name string) error {
	kind := "class"
	if m.kind == KindModule {
		kind = "module"
	}
	return Raise(ErrName, fmt.Sprintf("undefined method '%s' for %s '%s'", name, kind, m.Name()),
		"name", name)
}

// ---------------------------------------------------------------------------
// Include / extend
// ---------------------------------------------------------------------------

// Include inserts mod (and the modules mod itself includes) into m's
// ancestry directly above m. Modules already in the ancestry are skipped.
func (m *Module) Include(mod *Module) error {
	if mod == nil || mod.kind != KindModule {
		got := "nil"
		if mod != nil {
			got = mod.Name()
		}
		return Raisef(ErrType, "wrong argument type %s (expected Module)", got)
	}
	if mod == m.origin {
		return Raisef(ErrArgument, "cyclic include detected")
	}
	rt := m.rt
	rt.defMu.Lock()
	defer rt.defMu.Unlock()
	if m.Includes(mod) {
		return nil
	}
	if mod.Includes(m.origin) {
		return Raisef(ErrArgument, "cyclic include detected")
	}
	m.mutateMethodsLocked(func() {
		at := m
		for x := mod; x != nil; x = x.Superclass() {
			origin := x.origin
			if m.Includes(origin) {
				continue
			}
			wrapper := &Module{
				rt:        rt,
				id:        rt.nextID.Add(1),
				kind:      KindIncluded,
				origin:    origin,
				methods:   origin.methods,
				constants: origin.constants,
			}
			empty := ""
			wrapper.name.Store(&empty)
			wrapper.super.Store(at.Superclass())
			at.super.Store(wrapper)
			origin.dependents = append(origin.dependents, m.origin)
			at = wrapper
		}
	}, mod.inclusionConstantSwitches()...)
	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("%s includes %s", m.Name(), mod.Name())
	}
	return nil
}

// Extend includes mod into the singleton class of v.
func (rt *Runtime) Extend(v Value, mod *Module) error {
	sc, err := rt.SingletonClassOf(v)
	if err != nil {
		return err
	}
	return sc.Include(mod)
}
