package vm

import (
	"sync/atomic"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("indy.vm")

// ---------------------------------------------------------------------------
// Invalidator: one-way validity token
// ---------------------------------------------------------------------------

const (
	tokenValid uint32 = iota
	tokenRetired
)

// Invalidator is a validity token bound to one definitional entity: a
// class's method table, a class's instance variable layout, a constant
// name, or a global variable. Caches capture the entity's current token
// when they resolve, and may use the result only while the token is valid.
//
// Invalidation is one-way. A retired token is never revalidated; the owning
// entity installs a fresh token (next version) instead.
type Invalidator struct {
	state   atomic.Uint32
	version uint64
	entity  string
}

func newInvalidator(entity string, version uint64) *Invalidator {
	return &Invalidator{entity: entity, version: version}
}

// Valid reports whether the token is still live. A nil token is never valid.
func (inv *Invalidator) Valid() bool {
	return inv != nil && inv.state.Load() == tokenValid
}

// Invalidate retires the token. It returns true for the call that actually
// performed the transition, false if the token was already retired.
func (inv *Invalidator) Invalidate() bool {
	return inv.state.CompareAndSwap(tokenValid, tokenRetired)
}

// Version is the generation number of the token within its entity.
func (inv *Invalidator) Version() uint64 {
	return inv.version
}

// Entity names what the token guards, e.g. "methods(Foo)".
func (inv *Invalidator) Entity() string {
	return inv.entity
}

// ---------------------------------------------------------------------------
// Switch: current-token holder
// ---------------------------------------------------------------------------

// Switch holds the current Invalidator of one entity.
//
// Mutators must be serialized by the owner of the entity (the runtime's
// definition lock, or the table lock for layouts and globals). Readers call
// Current without locking.
type Switch struct {
	current atomic.Pointer[Invalidator]
	entity  string
}

// NewSwitch creates a switch whose first token has version 1.
func NewSwitch(entity string) *Switch {
	s := &Switch{entity: entity}
	s.current.Store(newInvalidator(entity, 1))
	return s
}

// Current returns the live token. Resolvers capture it before they read the
// entity, so a mutation racing the read leaves them holding a retired token.
func (s *Switch) Current() *Invalidator {
	return s.current.Load()
}

// Mutate retires the current token, runs fn, then installs a fresh token.
// Between the two steps no valid token exists for the entity, so nothing
// resolved against a half-applied mutation can be cached as valid.
func (s *Switch) Mutate(fn func()) {
	old := s.retire()
	if fn != nil {
		fn()
	}
	s.renew(old)
}

func (s *Switch) retire() *Invalidator {
	old := s.current.Load()
	if old.Invalidate() && log.AllowLevel(commonlog.Debug) {
		log.Debugf("retired %s v%d", s.entity, old.version)
	}
	return old
}

func (s *Switch) renew(old *Invalidator) {
	s.current.Store(newInvalidator(s.entity, old.version+1))
}

// mutateAll retires every switch, runs fn, then renews every switch.
func mutateAll(switches []*Switch, fn func()) {
	olds := make([]*Invalidator, len(switches))
	for i, s := range switches {
		olds[i] = s.retire()
	}
	if fn != nil {
		fn()
	}
	for i, s := range switches {
		s.renew(olds[i])
	}
}
