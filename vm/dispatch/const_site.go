package dispatch

import (
	"github.com/chazu/indy/vm"
	"github.com/tliron/commonlog"
)

// constKey guards a constant site: the lexical scope for unqualified and
// lexical-only references, the left-hand module for qualified ones.
type constKey struct {
	scope  *vm.LexicalScope
	module *vm.Module
}

// ConstSite is a constant reference. Found values are cached bound to the
// token of the constant's name; a retired token reruns the whole search,
// since removing a definition can expose a different one. Misses and
// const_missing results are never cached.
type ConstSite struct {
	site
	lookup  ConstLookup
	cache   *InlineCache[constKey, vm.Value]
	missing *MethodSite
}

func newConstSite(l *Linker, d Descriptor) *ConstSite {
	s := &ConstSite{
		site:   newSite(l, d),
		lookup: d.Const,
	}
	s.cache = NewInlineCache[constKey, vm.Value](l.opts.MaxPoly, l.opts.Stats, s.tracker)
	s.missing = newMethodSite(l, Descriptor{
		Kind:  KindFunctional,
		Name:  "const_missing",
		Arity: 1,
		File:  d.File,
		Line:  d.Line,
	})
	return s
}

// Get resolves an unqualified reference from f's cref: lexical scopes,
// then the cref's ancestry, then const_missing on the cref.
func (s *ConstSite) Get(f *vm.Frame) (vm.Value, error) {
	f = s.frame(f)
	scope := f.Scope()
	key := constKey{scope: scope}
	if v, ok := s.cache.Lookup(key); ok {
		return v, nil
	}
	token := s.rt.ConstantToken(s.name)
	if v, ok := searchConstant(s.rt, scope, s.name); ok {
		state := s.cache.Install(key, token, v)
		s.logBind(vm.Inspect(v), scope.Module(), state)
		return v, nil
	}
	return s.constMissing(f, scope.Module())
}

// GetFrom resolves lhs::NAME through lhs's ancestry only. A left-hand
// value that is not a module is a TypeError, without const_missing.
func (s *ConstSite) GetFrom(f *vm.Frame, lhs vm.Value) (vm.Value, error) {
	mod, ok := lhs.(*vm.Module)
	if !ok {
		return nil, vm.Raise(vm.ErrType, vm.Inspect(lhs)+" is not a class/module", "name", s.name)
	}
	key := constKey{module: mod}
	if v, ok := s.cache.Lookup(key); ok {
		return v, nil
	}
	token := s.rt.ConstantToken(s.name)
	if v, ok := searchAncestry(s.rt, mod, s.name, false); ok {
		state := s.cache.Install(key, token, v)
		s.logBind(vm.Inspect(v), mod, state)
		return v, nil
	}
	return s.constMissing(f, mod)
}

// GetLexical resolves through f's lexical scopes only and reports a miss
// to the caller instead of calling const_missing.
func (s *ConstSite) GetLexical(f *vm.Frame) (vm.Value, bool) {
	f = s.frame(f)
	scope := f.Scope()
	key := constKey{scope: scope}
	if v, ok := s.cache.Lookup(key); ok {
		return v, true
	}
	token := s.rt.ConstantToken(s.name)
	v, ok := searchLexical(scope, s.name)
	if !ok {
		return nil, false
	}
	state := s.cache.Install(key, token, v)
	s.logBind(vm.Inspect(v), scope.Module(), state)
	return v, true
}

func (s *ConstSite) constMissing(f *vm.Frame, mod *vm.Module) (vm.Value, error) {
	f = s.frame(f)
	if log.AllowLevel(commonlog.Debug) && s.opts.LogBinding {
		log.Debugf("%s: const_missing on %s", s.describe(), mod.Name())
	}
	return s.missing.Call(f, mod, []vm.Value{vm.Symbol(s.name)}, nil)
}

// Invoke implements Invoker, dispatching on the site's lookup procedure.
// recv is the left-hand value of a qualified reference.
func (s *ConstSite) Invoke(f *vm.Frame, recv vm.Value, _ []vm.Value, _ *vm.Block) (vm.Value, error) {
	switch s.lookup {
	case ConstQualified:
		return s.GetFrom(f, recv)
	case ConstLexicalOnly:
		if v, ok := s.GetLexical(f); ok {
			return v, nil
		}
		return nil, vm.Raise(vm.ErrName, "uninitialized constant "+s.name, "name", s.name)
	default:
		return s.Get(f)
	}
}

// Lookup returns the site's search procedure.
func (s *ConstSite) Lookup() ConstLookup { return s.lookup }

func (s *ConstSite) State() CacheState { return s.cache.State() }
func (s *ConstSite) Hits() uint64      { return s.cache.Hits() }
func (s *ConstSite) Misses() uint64    { return s.cache.Misses() }
func (s *ConstSite) Reset()            { s.cache.Reset() }
