package dispatch

import (
	"github.com/chazu/indy/vm"
)

// GlobalSite reads or writes a $-variable. Reads cache the value itself,
// bound to the global's token; writes go straight to the table, which
// retires the token.
type GlobalSite struct {
	site
	write bool
	cache *InlineCache[struct{}, vm.Value]
}

func newGlobalSite(l *Linker, d Descriptor) *GlobalSite {
	s := &GlobalSite{
		site:  newSite(l, d),
		write: d.Kind == KindGlobalSet,
	}
	s.cache = NewInlineCache[struct{}, vm.Value](l.opts.MaxPoly, l.opts.Stats, s.tracker)
	return s
}

// Get returns the global's value, Nil if it was never assigned.
func (s *GlobalSite) Get() vm.Value {
	if v, ok := s.cache.Lookup(struct{}{}); ok {
		return v
	}
	token := s.rt.GlobalToken(s.name)
	v := s.rt.Globals().Get(s.name)
	state := s.cache.Install(struct{}{}, token, v)
	s.logBind(vm.Inspect(v), s.name, state)
	return v
}

// Set assigns the global.
func (s *GlobalSite) Set(v vm.Value) {
	s.rt.Globals().Set(s.name, v)
}

// Invoke implements Invoker.
func (s *GlobalSite) Invoke(_ *vm.Frame, _ vm.Value, args []vm.Value, _ *vm.Block) (vm.Value, error) {
	if !s.write {
		return s.Get(), nil
	}
	if len(args) != 1 {
		return nil, vm.Raisef(vm.ErrArgument, "global variable write takes 1 value, given %d", len(args))
	}
	s.Set(args[0])
	return args[0], nil
}

// IsWrite reports whether this is a set site.
func (s *GlobalSite) IsWrite() bool { return s.write }

func (s *GlobalSite) State() CacheState { return s.cache.State() }
func (s *GlobalSite) Hits() uint64      { return s.cache.Hits() }
func (s *GlobalSite) Misses() uint64    { return s.cache.Misses() }
func (s *GlobalSite) Reset()            { s.cache.Reset() }
