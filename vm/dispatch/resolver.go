package dispatch

import (
	"fmt"

	"github.com/chazu/indy/vm"
)

// ---------------------------------------------------------------------------
// Method resolution
// ---------------------------------------------------------------------------

type attrBinding uint8

const (
	attrNone attrBinding = iota
	attrRead
	attrWrite
)

// methodTarget is what method and super sites cache.
type methodTarget struct {
	method *vm.Method
	klazz  *vm.Module

	// missing routes the call to method (a user method_missing) with the
	// original name prepended to the arguments.
	missing bool
	// protected targets are re-checked against the caller on every hit,
	// since the caller is not part of the guard key.
	protected bool

	attr attrBinding
	slot int
}

func (t *methodTarget) String() string {
	switch {
	case t.missing:
		return "method_missing " + t.method.String()
	case t.attr == attrRead:
		return fmt.Sprintf("attr_reader %s slot %d", t.method.Ivar(), t.slot)
	case t.attr == attrWrite:
		return fmt.Sprintf("attr_writer %s slot %d", t.method.Ivar(), t.slot)
	}
	return t.method.String()
}

// resolveMethod looks name up for a call of type ct on a receiver whose
// class is cls. cacheable is false when the outcome depended on the
// caller rather than on cls alone.
func resolveMethod(rt *vm.Runtime, cls *vm.Module, recv vm.Value, name string, ct vm.CallType, callerSelf vm.Value) (t *methodTarget, cacheable bool, err error) {
	m, klazz := cls.SearchMethod(name)
	if m != nil && (name == "method_missing" || vm.IsCallableFrom(m, callerSelf, ct)) {
		return &methodTarget{
			method:    m,
			klazz:     klazz,
			protected: ct == vm.CallNormal && m.Visibility() == vm.Protected,
		}, true, nil
	}
	vis := vm.Public
	if m != nil {
		vis = m.Visibility()
	}
	t, err = resolveMissing(rt, cls, recv, name, ct, vis, m != nil)
	return t, m == nil || vis != vm.Protected, err
}

// resolveMissing finds the method_missing that handles a failed call. The
// runtime's default method_missing is never called; the reason-specific
// error is returned instead.
func resolveMissing(rt *vm.Runtime, cls *vm.Module, recv vm.Value, name string, ct vm.CallType, vis vm.Visibility, exists bool) (*methodTarget, error) {
	mm, klazz := cls.SearchSelector(vm.SelMethodMissing)
	if rt.IsDefaultMethodMissing(mm) {
		return nil, rt.NoMethodError(name, recv, ct, vis, exists)
	}
	return &methodTarget{method: mm, klazz: klazz, missing: true}, nil
}

// resolveSuper searches name starting at start, which is the entry after
// the defining module in the receiver's ancestry.
func resolveSuper(rt *vm.Runtime, start *vm.Module, recv vm.Value, name string) (*methodTarget, error) {
	if start != nil {
		if m, klazz := start.SearchMethod(name); m != nil {
			return &methodTarget{method: m, klazz: klazz}, nil
		}
	}
	return resolveMissing(rt, rt.MetaClassOf(recv), recv, name, vm.CallSuper, vm.Public, false)
}

// bindAttr turns a reader or writer target into a direct slot access when
// the site shape allows it. The slot is allocated now so that a reader
// never caches the "unallocated" answer.
func bindAttr(t *methodTarget, recv vm.Value, arity int) {
	if t.missing {
		return
	}
	obj, ok := recv.(*vm.Object)
	if !ok {
		return
	}
	switch {
	case t.method.Kind() == vm.AttrReaderMethod && arity == 0:
		t.attr = attrRead
	case t.method.Kind() == vm.AttrWriterMethod && arity == 1:
		t.attr = attrWrite
	default:
		return
	}
	t.slot = obj.Class().Variables().Allocate(t.method.Ivar())
}

func invokeTarget(f *vm.Frame, t *methodTarget, name string, recv vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
	switch {
	case t.missing:
		mmArgs := make([]vm.Value, 0, len(args)+1)
		mmArgs = append(mmArgs, vm.Symbol(name))
		mmArgs = append(mmArgs, args...)
		return t.method.Call(f, recv, t.klazz, mmArgs, blk)
	case t.attr == attrRead:
		return recv.(*vm.Object).GetSlot(t.slot), nil
	case t.attr == attrWrite:
		if err := recv.(*vm.Object).SetSlot(t.slot, args[0]); err != nil {
			return nil, err
		}
		return args[0], nil
	}
	return t.method.Call(f, recv, t.klazz, args, blk)
}

// ---------------------------------------------------------------------------
// Constant search procedures
// ---------------------------------------------------------------------------

// searchLexical walks the lexical scopes outward, consulting each scope's
// own table. The top-level scope is left to the ancestry search.
func searchLexical(scope *vm.LexicalScope, name string) (vm.Value, bool) {
	for s := scope; s != nil && !s.IsTop(); s = s.Parent() {
		if v, ok := s.Module().ConstantLocal(name); ok {
			return v, true
		}
	}
	return nil, false
}

// searchAncestry walks mod's ancestry starting at mod. With objectFallback
// a plain module also consults Object's ancestry, which it does not
// inherit from.
func searchAncestry(rt *vm.Runtime, mod *vm.Module, name string, objectFallback bool) (vm.Value, bool) {
	if v, ok := mod.SearchConstant(name); ok {
		return v, true
	}
	if objectFallback && mod.IsModule() {
		return rt.ObjectClass.SearchConstant(name)
	}
	return nil, false
}

// searchConstant is the unqualified procedure without const_missing.
func searchConstant(rt *vm.Runtime, scope *vm.LexicalScope, name string) (vm.Value, bool) {
	if v, ok := searchLexical(scope, name); ok {
		return v, true
	}
	return searchAncestry(rt, scope.Module(), name, true)
}
