package dispatch

import (
	"github.com/chazu/indy/vm"
)

// superKey guards a super site. klazz is only set for variants that read
// the defining module from the frame.
type superKey struct {
	recv  *vm.Module
	klazz *vm.Module
}

// SuperSite is a super call site. The search starts after the module the
// calling method was defined in, never at the receiver's class, so
// singleton methods added to the receiver cannot change what super
// reaches.
type SuperSite struct {
	site
	variant        SuperVariant
	defining       *vm.Module
	splat          SplatMap
	literalClosure bool
	cache          *InlineCache[superKey, *methodTarget]
}

func newSuperSite(l *Linker, d Descriptor) *SuperSite {
	s := &SuperSite{
		site:           newSite(l, d),
		variant:        d.Super,
		defining:       d.Defining,
		splat:          ParseSplatMap(d.SplatMap),
		literalClosure: d.LiteralClosure,
	}
	s.cache = NewInlineCache[superKey, *methodTarget](l.opts.MaxPoly, l.opts.Stats, s.tracker)
	return s
}

// Call performs the super call from frame f. For ZSuper, nil args means
// "the running method's arguments" and a nil block means the frame's
// block. Frame arguments are already flat and are passed as received; the
// splat map only applies to arguments supplied by the caller.
func (s *SuperSite) Call(f *vm.Frame, recv vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
	f = s.frame(f)
	if s.variant == ZSuper && args == nil {
		args = append([]vm.Value(nil), f.Args()...)
	} else {
		args = s.splat.Expand(args)
	}
	if s.variant == ZSuper && blk == nil {
		blk = f.Block()
	}
	if s.literalClosure && blk != nil {
		defer blk.Escape()
	}

	name, key, err := s.frameKey(f, recv)
	if err != nil {
		return nil, err
	}
	if t, ok := s.cache.Lookup(key); ok {
		return invokeTarget(f, t, name, recv, args, blk)
	}

	token, start := s.startingPoint(key)
	t, err := resolveSuper(s.rt, start, recv, name)
	if err != nil {
		return nil, err
	}
	// A method_missing target depends on the receiver's class, which the
	// resolved variants' token does not cover.
	if !t.missing || key.klazz != nil {
		state := s.cache.Install(key, token, t)
		s.logBind(t.String(), key.recv, state)
	}
	return invokeTarget(f, t, name, recv, args, blk)
}

// Invoke implements Invoker.
func (s *SuperSite) Invoke(f *vm.Frame, recv vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
	return s.Call(f, recv, args, blk)
}

// frameKey returns the method name and guard key for a call from f.
func (s *SuperSite) frameKey(f *vm.Frame, recv vm.Value) (string, superKey, error) {
	key := superKey{recv: s.rt.MetaClassOf(recv)}
	switch s.variant {
	case InstanceSuper, ClassSuper:
		return s.name, key, nil
	}
	klazz := f.Klazz()
	if klazz == nil || f.Method() == nil {
		return "", key, vm.Raise(vm.ErrRuntime,
			"super called outside of method", "site", s.describe())
	}
	key.klazz = klazz
	return f.Name(), key, nil
}

// startingPoint captures the token that covers the search and returns the
// module to search from.
func (s *SuperSite) startingPoint(key superKey) (*vm.Invalidator, *vm.Module) {
	switch s.variant {
	case InstanceSuper:
		loc := s.defining.MethodLocation()
		return loc.MethodToken(), loc.Superclass()
	case ClassSuper:
		meta := s.defining.SingletonClass()
		return meta.MethodToken(), meta.Superclass()
	default:
		// The frame's entry sits in the receiver's ancestry, so the
		// receiver class's token covers every module above it.
		return key.recv.MethodToken(), key.klazz.Superclass()
	}
}

// Variant returns the super flavour.
func (s *SuperSite) Variant() SuperVariant { return s.variant }

// Defining returns the lexically captured defining module, nil for the
// frame-resolved variants.
func (s *SuperSite) Defining() *vm.Module { return s.defining }

// SplatMap returns the rest-slot map.
func (s *SuperSite) SplatMap() SplatMap { return s.splat }

func (s *SuperSite) State() CacheState { return s.cache.State() }
func (s *SuperSite) Hits() uint64      { return s.cache.Hits() }
func (s *SuperSite) Misses() uint64    { return s.cache.Misses() }
func (s *SuperSite) Reset()            { s.cache.Reset() }
