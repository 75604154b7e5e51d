package dispatch

import (
	"fmt"

	"github.com/chazu/indy/vm"
)

// IvarSite is an instance variable read or write. It caches the slot index
// per real class, bound to the class's layout token. A read site also
// caches "not allocated" (index -1); the token is retired when the name is
// first assigned on that class.
type IvarSite struct {
	site
	write bool
	cache *InlineCache[*vm.Module, int]
}

func newIvarSite(l *Linker, d Descriptor) *IvarSite {
	s := &IvarSite{
		site:  newSite(l, d),
		write: d.Kind == KindIvarSet,
	}
	s.cache = NewInlineCache[*vm.Module, int](l.opts.MaxPoly, l.opts.Stats, s.tracker)
	return s
}

// Get reads the variable from recv. Receivers that carry no instance
// variables, and unset variables, read as Nil.
func (s *IvarSite) Get(recv vm.Value) vm.Value {
	obj, ok := recv.(*vm.Object)
	if !ok {
		return vm.Nil
	}
	cls := obj.Class()
	if idx, ok := s.cache.Lookup(cls); ok {
		return obj.GetSlot(idx)
	}
	table := cls.Variables()
	token := table.Token()
	idx := table.Index(s.name)
	state := s.cache.Install(cls, token, idx)
	s.logBind(fmt.Sprintf("slot %d", idx), cls, state)
	return obj.GetSlot(idx)
}

// Set writes the variable on recv, allocating its slot on first use.
func (s *IvarSite) Set(recv vm.Value, v vm.Value) error {
	obj, ok := recv.(*vm.Object)
	if !ok {
		return vm.Raise(vm.ErrFrozen,
			fmt.Sprintf("can't modify frozen %s: %s", s.rt.ClassOf(recv).Name(), vm.Inspect(recv)),
			"name", s.name)
	}
	cls := obj.Class()
	if idx, ok := s.cache.Lookup(cls); ok {
		return obj.SetSlot(idx, v)
	}
	table := cls.Variables()
	idx := table.Allocate(s.name)
	// Slots are never renumbered, so the token taken after allocating
	// cannot hide a stale index.
	state := s.cache.Install(cls, table.Token(), idx)
	s.logBind(fmt.Sprintf("slot %d", idx), cls, state)
	return obj.SetSlot(idx, v)
}

// Invoke implements Invoker. A write takes the value from args[0] and
// returns it.
func (s *IvarSite) Invoke(_ *vm.Frame, recv vm.Value, args []vm.Value, _ *vm.Block) (vm.Value, error) {
	if !s.write {
		return s.Get(recv), nil
	}
	if len(args) != 1 {
		return nil, vm.Raisef(vm.ErrArgument, "instance variable write takes 1 value, given %d", len(args))
	}
	if err := s.Set(recv, args[0]); err != nil {
		return nil, err
	}
	return args[0], nil
}

// IsWrite reports whether this is a set site.
func (s *IvarSite) IsWrite() bool { return s.write }

func (s *IvarSite) State() CacheState { return s.cache.State() }
func (s *IvarSite) Hits() uint64      { return s.cache.Hits() }
func (s *IvarSite) Misses() uint64    { return s.cache.Misses() }
func (s *IvarSite) Reset()            { s.cache.Reset() }
