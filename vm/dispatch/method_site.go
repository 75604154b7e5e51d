package dispatch

import (
	"github.com/chazu/indy/vm"
)

// MethodSite is a normal, functional or variable call site. Its guard key
// is the receiver's class (singleton class included) and its token is that
// class's method token.
type MethodSite struct {
	site
	callType       vm.CallType
	literalClosure bool
	cache          *InlineCache[*vm.Module, *methodTarget]
}

func newMethodSite(l *Linker, d Descriptor) *MethodSite {
	s := &MethodSite{
		site:           newSite(l, d),
		callType:       d.Kind.callType(),
		literalClosure: d.LiteralClosure,
	}
	s.cache = NewInlineCache[*vm.Module, *methodTarget](l.opts.MaxPoly, l.opts.Stats, s.tracker)
	return s
}

// Call performs the call. f is the caller's frame: its self decides
// protected access. A nil f calls from the top level, with main as self.
func (s *MethodSite) Call(f *vm.Frame, recv vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
	f = s.frame(f)
	if err := s.checkArity(args); err != nil {
		return nil, err
	}
	if s.literalClosure && blk != nil {
		defer blk.Escape()
	}
	cls := s.rt.MetaClassOf(recv)
	if t, ok := s.cache.Lookup(cls); ok {
		if t.protected && !vm.IsCallableFrom(t.method, f.Self(), s.callType) {
			mt, err := resolveMissing(s.rt, cls, recv, s.name, s.callType, vm.Protected, true)
			if err != nil {
				return nil, err
			}
			return invokeTarget(f, mt, s.name, recv, args, blk)
		}
		return invokeTarget(f, t, s.name, recv, args, blk)
	}
	return s.miss(f, cls, recv, args, blk)
}

// Invoke implements Invoker.
func (s *MethodSite) Invoke(f *vm.Frame, recv vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
	return s.Call(f, recv, args, blk)
}

func (s *MethodSite) miss(f *vm.Frame, cls *vm.Module, recv vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
	token := cls.MethodToken()
	t, cacheable, err := resolveMethod(s.rt, cls, recv, s.name, s.callType, f.Self())
	if err != nil {
		return nil, err
	}
	bindAttr(t, recv, s.arity)
	if cacheable {
		state := s.cache.Install(cls, token, t)
		s.logBind(t.String(), cls, state)
	}
	return invokeTarget(f, t, s.name, recv, args, blk)
}

// CallType returns the visibility rule the site applies.
func (s *MethodSite) CallType() vm.CallType { return s.callType }

// LiteralClosure reports whether blocks passed here are marked escaped
// after the call.
func (s *MethodSite) LiteralClosure() bool { return s.literalClosure }

func (s *MethodSite) State() CacheState { return s.cache.State() }
func (s *MethodSite) Hits() uint64      { return s.cache.Hits() }
func (s *MethodSite) Misses() uint64    { return s.cache.Misses() }
func (s *MethodSite) Reset()            { s.cache.Reset() }
