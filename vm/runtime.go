package vm

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Runtime
// ---------------------------------------------------------------------------

// Runtime is one object-model universe: its class hierarchy, its tables
// and the tokens guarding them.
type Runtime struct {
	Selectors *SelectorTable

	// Well-known classes
	BasicObjectClass *Module
	ObjectClass      *Module
	ModuleClass      *Module
	ClassClass       *Module
	KernelModule     *Module
	NilClass         *Module
	TrueClass        *Module
	FalseClass       *Module
	IntegerClass     *Module
	FloatClass       *Module
	StringClass      *Module
	SymbolClass      *Module
	ArrayClass       *Module
	ProcClass        *Module

	main     *Object
	topScope *LexicalScope
	globals  *GlobalTable

	// defMu serializes every definitional mutation (methods, hierarchy,
	// constants) so that token retire/renew pairs never interleave.
	defMu         sync.Mutex
	constSwitches sync.Map // string -> *Switch

	nextID     atomic.Uint64
	nextSerial atomic.Uint64
}

// NewRuntime creates and bootstraps a runtime.
func NewRuntime() *Runtime {
	rt := &Runtime{
		Selectors: NewSelectorTable(),
		globals:   newGlobalTable(),
	}
	rt.bootstrap()
	return rt
}

func (rt *Runtime) bootstrap() {
	// Phase 1: the four root classes, before Class exists to parent their
	// metaclasses.
	rt.BasicObjectClass = rt.newModule(KindClass, "BasicObject", nil, nil)
	rt.ObjectClass = rt.newModule(KindClass, "Object", rt.BasicObjectClass, nil)
	rt.topScope = &LexicalScope{module: rt.ObjectClass}
	rt.BasicObjectClass.scope = &LexicalScope{module: rt.BasicObjectClass, parent: rt.topScope}
	rt.ObjectClass.scope = rt.topScope
	rt.ModuleClass = rt.newModule(KindClass, "Module", rt.ObjectClass, rt.ObjectClass)
	rt.ClassClass = rt.newModule(KindClass, "Class", rt.ModuleClass, rt.ObjectClass)

	// Phase 2: metaclasses, root first so each can parent on the previous.
	for _, c := range []*Module{rt.BasicObjectClass, rt.ObjectClass, rt.ModuleClass, rt.ClassClass} {
		rt.attachMetaclass(c)
		rt.ObjectClass.constants.set(c.Name(), c)
	}

	// Phase 3: everything else through the public API.
	rt.KernelModule = rt.mustModule("Kernel")
	if err := rt.ObjectClass.Include(rt.KernelModule); err != nil {
		panic(err)
	}
	rt.NilClass = rt.mustClass("NilClass")
	rt.TrueClass = rt.mustClass("TrueClass")
	rt.FalseClass = rt.mustClass("FalseClass")
	rt.IntegerClass = rt.mustClass("Integer")
	rt.FloatClass = rt.mustClass("Float")
	rt.StringClass = rt.mustClass("String")
	rt.SymbolClass = rt.mustClass("Symbol")
	rt.ArrayClass = rt.mustClass("Array")
	rt.ProcClass = rt.mustClass("Proc")

	rt.main = rt.NewObject(rt.ObjectClass)
	rt.bootstrapMethods()
}

func (rt *Runtime) mustClass(name string) *Module {
	c, err := rt.DefineClass(name, rt.ObjectClass)
	if err != nil {
		panic(err)
	}
	return c
}

func (rt *Runtime) mustModule(name string) *Module {
	m, err := rt.DefineModule(name)
	if err != nil {
		panic(err)
	}
	return m
}

// defaultMethodMissing marks BasicObject#method_missing. Call sites
// recognise it and raise the reason-specific error themselves instead of
// calling it.
type defaultMethodMissing struct{}

func (defaultMethodMissing) Invoke(f *Frame, self Value, args []Value, _ *Block) (Value, error) {
	if len(args) == 0 {
		return nil, Raisef(ErrArgument, "no method name given")
	}
	name := fmt.Sprint(args[0])
	if sym, ok := args[0].(Symbol); ok {
		name = string(sym)
	}
	return nil, f.rt.NoMethodError(name, self, CallNormal, Public, false)
}

func (rt *Runtime) bootstrapMethods() {
	mm := NewMethod("method_missing", Variadic, defaultMethodMissing{}).WithVisibility(Private)
	rt.BasicObjectClass.AddMethod(mm)
	rt.BasicObjectClass.AddMethod(NewMethod("initialize", Variadic, FuncN(
		func(f *Frame, self Value, args []Value, blk *Block) (Value, error) {
			return Nil, nil
		})).WithVisibility(Private))

	rt.ModuleClass.Define1("const_missing", func(f *Frame, self, name Value) (Value, error) {
		mod := self.(*Module)
		cname := fmt.Sprint(name)
		if sym, ok := name.(Symbol); ok {
			cname = string(sym)
		}
		if mod != rt.ObjectClass {
			cname = mod.Name() + "::" + cname
		}
		return nil, Raise(ErrName, "uninitialized constant "+cname, "name", cname)
	})

	rt.ClassClass.Define("new", Variadic, func(f *Frame, self Value, args []Value, blk *Block) (Value, error) {
		c := self.(*Module)
		if c.kind != KindClass {
			return nil, Raisef(ErrType, "can't create instance of singleton class")
		}
		obj := rt.NewObject(c)
		if init, klazz := c.SearchSelector(SelInitialize); init != nil {
			if _, err := init.Call(f, obj, klazz, args, blk); err != nil {
				return nil, err
			}
		}
		return obj, nil
	})

	rt.KernelModule.Define0("class", func(f *Frame, self Value) (Value, error) {
		return rt.ClassOf(self), nil
	})
	rt.KernelModule.Define1("instance_variable_get", func(f *Frame, self, name Value) (Value, error) {
		if obj, ok := self.(*Object); ok {
			return obj.InstanceVariableGet(symbolName(name)), nil
		}
		return Nil, nil
	})
	rt.KernelModule.Define2("instance_variable_set", func(f *Frame, self, name, v Value) (Value, error) {
		obj, ok := self.(*Object)
		if !ok {
			return nil, Raisef(ErrFrozen, "can't modify frozen %s", rt.ClassOf(self).Name())
		}
		if err := obj.InstanceVariableSet(symbolName(name), v); err != nil {
			return nil, err
		}
		return v, nil
	})
}

func symbolName(v Value) string {
	if s, ok := v.(Symbol); ok {
		return string(s)
	}
	return fmt.Sprint(v)
}

// IsDefaultMethodMissing reports whether m is the runtime's own
// method_missing rather than a user override.
func (rt *Runtime) IsDefaultMethodMissing(m *Method) bool {
	if m == nil {
		return true
	}
	_, ok := m.body.(defaultMethodMissing)
	return ok
}

// NoMethodError builds the error for a failed call of name on self. The
// message depends on why the call failed: the method exists but visibility
// refused it, it was a bare identifier, or it was a super call.
func (rt *Runtime) NoMethodError(name string, self Value, ct CallType, found Visibility, exists bool) error {
	recv := describe(rt, self)
	switch {
	case exists && found == Private:
		return Raise(ErrNoMethod, fmt.Sprintf("private method '%s' called for %s", name, recv), "name", name)
	case exists && found == Protected:
		return Raise(ErrNoMethod, fmt.Sprintf("protected method '%s' called for %s", name, recv), "name", name)
	case ct == CallVariable:
		return Raise(ErrName, fmt.Sprintf("undefined local variable or method '%s' for %s", name, recv), "name", name)
	case ct == CallSuper:
		return Raise(ErrNoMethod, fmt.Sprintf("super: no superclass method '%s' for %s", name, recv), "name", name)
	default:
		return Raise(ErrNoMethod, fmt.Sprintf("undefined method '%s' for %s", name, recv), "name", name)
	}
}

// ---------------------------------------------------------------------------
// Class-of queries
// ---------------------------------------------------------------------------

// Main returns the top-level self.
func (rt *Runtime) Main() *Object { return rt.main }

// TopScope returns the outermost lexical scope (Object's).
func (rt *Runtime) TopScope() *LexicalScope { return rt.topScope }

// TopFrame returns a fresh top-level frame: self is main and the cref is
// Object.
func (rt *Runtime) TopFrame() *Frame {
	return &Frame{rt: rt, self: rt.main, scope: rt.topScope}
}

// MetaClassOf returns the class method lookup for v starts at, which is
// v's singleton class when it has one.
func (rt *Runtime) MetaClassOf(v Value) *Module {
	switch x := v.(type) {
	case *Object:
		return x.MetaClass()
	case *Module:
		if meta := x.meta.Load(); meta != nil {
			return meta
		}
		if x.kind == KindModule {
			return rt.ModuleClass
		}
		return rt.ClassClass
	case nil, nilValue:
		return rt.NilClass
	case bool:
		if x {
			return rt.TrueClass
		}
		return rt.FalseClass
	case int, int64, int32:
		return rt.IntegerClass
	case float64, float32:
		return rt.FloatClass
	case string:
		return rt.StringClass
	case Symbol:
		return rt.SymbolClass
	case *Array:
		return rt.ArrayClass
	case *Block:
		return rt.ProcClass
	}
	return rt.ObjectClass
}

// ClassOf returns v's real class.
func (rt *Runtime) ClassOf(v Value) *Module {
	return rt.MetaClassOf(v).RealClass()
}

// IsKindOf reports whether mod is in v's ancestry.
func (rt *Runtime) IsKindOf(v Value, mod *Module) bool {
	return rt.MetaClassOf(v).Includes(mod)
}

// SingletonClassOf returns v's singleton class, creating it if needed.
// Immediate values have none.
func (rt *Runtime) SingletonClassOf(v Value) (*Module, error) {
	switch x := v.(type) {
	case *Object:
		return x.singletonClass(rt), nil
	case *Module:
		return x.SingletonClass(), nil
	}
	return nil, Raisef(ErrType, "can't define singleton for %s", Inspect(v))
}

// DefineSingletonMethod installs meth on v's singleton class.
func (rt *Runtime) DefineSingletonMethod(v Value, meth *Method) (*Method, error) {
	sc, err := rt.SingletonClassOf(v)
	if err != nil {
		return nil, err
	}
	return sc.AddMethod(meth), nil
}

// ---------------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------------

// Globals returns the global variable table.
func (rt *Runtime) Globals() *GlobalTable { return rt.globals }

// GlobalToken returns the live token of global name.
func (rt *Runtime) GlobalToken(name string) *Invalidator {
	return rt.globals.Token(name)
}
