package vm

import "fmt"

// ---------------------------------------------------------------------------
// Visibility and call types
// ---------------------------------------------------------------------------

// Visibility controls which call forms may reach a method.
type Visibility uint8

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return fmt.Sprintf("Visibility(%d)", v)
	}
}

// CallType is the syntactic form of a call, which decides how visibility
// applies.
type CallType uint8

const (
	// CallNormal has an explicit receiver: obj.foo.
	CallNormal CallType = iota
	// CallFunctional has an implicit self and arguments or parens: foo(1).
	CallFunctional
	// CallVariable is a bare identifier that may have been a local: foo.
	CallVariable
	// CallSuper is any form of super.
	CallSuper
)

func (ct CallType) String() string {
	switch ct {
	case CallNormal:
		return "normal"
	case CallFunctional:
		return "functional"
	case CallVariable:
		return "variable"
	case CallSuper:
		return "super"
	default:
		return fmt.Sprintf("CallType(%d)", ct)
	}
}

// ---------------------------------------------------------------------------
// Method bodies
// ---------------------------------------------------------------------------

// Variadic marks a method (or a call site) that accepts any argument count.
const Variadic = -1

// Body is the executable part of a method.
type Body interface {
	Invoke(f *Frame, self Value, args []Value, blk *Block) (Value, error)
}

// FuncN is a body taking the full argument list and the block.
type FuncN func(f *Frame, self Value, args []Value, blk *Block) (Value, error)

func (fn FuncN) Invoke(f *Frame, self Value, args []Value, blk *Block) (Value, error) {
	return fn(f, self, args, blk)
}

// Func0 is a body with no arguments.
type Func0 func(f *Frame, self Value) (Value, error)

func (fn Func0) Invoke(f *Frame, self Value, _ []Value, _ *Block) (Value, error) {
	return fn(f, self)
}

// Func1 is a body with one argument.
type Func1 func(f *Frame, self, arg Value) (Value, error)

func (fn Func1) Invoke(f *Frame, self Value, args []Value, _ *Block) (Value, error) {
	return fn(f, self, args[0])
}

// Func2 is a body with two arguments.
type Func2 func(f *Frame, self, a, b Value) (Value, error)

func (fn Func2) Invoke(f *Frame, self Value, args []Value, _ *Block) (Value, error) {
	return fn(f, self, args[0], args[1])
}

// ---------------------------------------------------------------------------
// Method
// ---------------------------------------------------------------------------

// MethodKind distinguishes ordinary bodies from the accessors the dispatch
// layer can bind straight to an instance variable slot.
type MethodKind uint8

const (
	NativeMethod MethodKind = iota
	AttrReaderMethod
	AttrWriterMethod
	// UndefinedMethod is the tombstone left by undef_method. It stops the
	// ancestor search.
	UndefinedMethod
)

// Method is one entry of a method table. Methods are immutable once
// installed; redefinition installs a new Method.
type Method struct {
	name       string
	arity      int
	visibility Visibility
	kind       MethodKind
	owner      *Module
	body       Body
	ivar       string
	scope      *LexicalScope
	serial     uint64
}

// NewMethod creates a public method. arity is the exact argument count, or
// Variadic.
func NewMethod(name string, arity int, body Body) *Method {
	return &Method{name: name, arity: arity, body: body}
}

// WithVisibility returns a copy of m with the given visibility.
func (m *Method) WithVisibility(v Visibility) *Method {
	c := *m
	c.visibility = v
	return &c
}

// WithScope returns a copy of m whose body resolves constants in scope.
func (m *Method) WithScope(s *LexicalScope) *Method {
	c := *m
	c.scope = s
	return &c
}

func (m *Method) Name() string           { return m.name }
func (m *Method) Arity() int             { return m.arity }
func (m *Method) Visibility() Visibility { return m.visibility }
func (m *Method) Kind() MethodKind       { return m.kind }
func (m *Method) Scope() *LexicalScope   { return m.scope }

// Owner is the module whose table holds the method.
func (m *Method) Owner() *Module { return m.owner }

// Serial identifies the definition. Every install gets a new serial.
func (m *Method) Serial() uint64 { return m.serial }

// Ivar is the instance variable an accessor reads or writes.
func (m *Method) Ivar() string { return m.ivar }

// IsUndefined reports whether m is an undef tombstone.
func (m *Method) IsUndefined() bool { return m.kind == UndefinedMethod }

func (m *Method) String() string {
	owner := "?"
	if m.owner != nil {
		owner = m.owner.Name()
	}
	return fmt.Sprintf("%s#%s", owner, m.name)
}

// IsCallableFrom reports whether a call of type ct made with callerSelf as
// self may reach m. Only normal calls are restricted: public methods always
// pass, protected ones when the caller is a kind of the method's owner, and
// private ones never.
func IsCallableFrom(m *Method, callerSelf Value, ct CallType) bool {
	if ct != CallNormal {
		return true
	}
	switch m.visibility {
	case Public:
		return true
	case Protected:
		owner := m.owner
		if owner == nil {
			return false
		}
		return owner.rt.IsKindOf(callerSelf, owner)
	default:
		return false
	}
}

// Call runs m with self as receiver. klazz is the ancestry entry the method
// was found in; super calls from inside the body continue after it.
func (m *Method) Call(caller *Frame, self Value, klazz *Module, args []Value, blk *Block) (Value, error) {
	if m.arity >= 0 && len(args) != m.arity {
		return nil, Raise(ErrArgument,
			fmt.Sprintf("wrong number of arguments (given %d, expected %d)", len(args), m.arity),
			"method", m.String())
	}
	switch m.kind {
	case AttrReaderMethod:
		if obj, ok := self.(*Object); ok {
			return obj.InstanceVariableGet(m.ivar), nil
		}
		return Nil, nil
	case AttrWriterMethod:
		obj, ok := self.(*Object)
		if !ok {
			return nil, Raisef(ErrFrozen, "can't modify frozen %s", m.owner.rt.ClassOf(self).Name())
		}
		if err := obj.InstanceVariableSet(m.ivar, args[0]); err != nil {
			return nil, err
		}
		return args[0], nil
	case UndefinedMethod:
		return nil, Raise(ErrNoMethod, fmt.Sprintf("undefined method '%s'", m.name), "name", m.name)
	}
	f, err := caller.push(self, m, klazz, args, blk)
	if err != nil {
		return nil, err
	}
	return m.body.Invoke(f, self, args, blk)
}
