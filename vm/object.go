package vm

import (
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Object
// ---------------------------------------------------------------------------

// Object is an instance of a user class. Its class pointer is the
// singleton class once one has been created. Slots are read without
// locking; writers are serialized per object.
type Object struct {
	class  atomic.Pointer[Module]
	slots  atomic.Pointer[[]atomic.Pointer[Value]]
	mu     sync.Mutex
	frozen atomic.Bool
}

// NewObject creates an instance of class c.
func (rt *Runtime) NewObject(c *Module) *Object {
	o := &Object{}
	o.class.Store(c)
	empty := make([]atomic.Pointer[Value], 0)
	o.slots.Store(&empty)
	return o
}

// Class returns the object's real class.
func (o *Object) Class() *Module {
	return o.class.Load().RealClass()
}

// MetaClass returns the class method lookup starts from: the singleton
// class if one exists, else the real class.
func (o *Object) MetaClass() *Module {
	return o.class.Load()
}

// singletonClass returns o's singleton class, creating it on first use.
func (o *Object) singletonClass(rt *Runtime) *Module {
	if c := o.class.Load(); c.kind == KindSingleton {
		return c
	}
	rt.defMu.Lock()
	defer rt.defMu.Unlock()
	c := o.class.Load()
	if c.kind == KindSingleton {
		return c
	}
	sc := rt.newModule(KindSingleton, "", c, nil)
	sc.attached = o
	o.class.Store(sc)
	return sc
}

// GetSlot reads slot i. Unset and out-of-range slots read as Nil.
func (o *Object) GetSlot(i int) Value {
	if i < 0 {
		return Nil
	}
	slots := *o.slots.Load()
	if i >= len(slots) {
		return Nil
	}
	if p := slots[i].Load(); p != nil {
		return *p
	}
	return Nil
}

// SetSlot writes slot i, growing the slot vector as needed.
func (o *Object) SetSlot(i int, v Value) error {
	if o.frozen.Load() {
		return Raisef(ErrFrozen, "can't modify frozen %s", o.Class().Name())
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	slots := *o.slots.Load()
	if i >= len(slots) {
		grown := make([]atomic.Pointer[Value], i+1)
		for j := range slots {
			grown[j].Store(slots[j].Load())
		}
		o.slots.Store(&grown)
		slots = grown
	}
	slots[i].Store(&v)
	return nil
}

// InstanceVariableGet reads @name (name includes the sigil).
func (o *Object) InstanceVariableGet(name string) Value {
	return o.GetSlot(o.Class().Variables().Index(name))
}

// InstanceVariableSet writes @name, allocating a slot in the class layout
// on first assignment.
func (o *Object) InstanceVariableSet(name string, v Value) error {
	return o.SetSlot(o.Class().Variables().Allocate(name), v)
}

// InstanceVariableNames lists names with a value set on this object.
func (o *Object) InstanceVariableNames() []string {
	var out []string
	for i, n := range o.Class().Variables().Names() {
		if !IsNil(o.GetSlot(i)) {
			out = append(out, n)
		}
	}
	return out
}

// Freeze makes further slot writes fail with ErrFrozen.
func (o *Object) Freeze() { o.frozen.Store(true) }

// Frozen reports whether the object is frozen.
func (o *Object) Frozen() bool { return o.frozen.Load() }
