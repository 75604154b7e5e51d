package vm

import "sync/atomic"

// MaxFrameDepth bounds method nesting. Exceeding it raises ErrRuntime
// instead of exhausting the goroutine stack.
const MaxFrameDepth = 10000

// ---------------------------------------------------------------------------
// LexicalScope
// ---------------------------------------------------------------------------

// LexicalScope is one level of the static nesting of module bodies. The
// innermost scope's module is the cref: where constant lookup starts and
// where definitions go.
type LexicalScope struct {
	module *Module
	parent *LexicalScope
}

// NewLexicalScope nests module m inside parent.
func NewLexicalScope(m *Module, parent *LexicalScope) *LexicalScope {
	return &LexicalScope{module: m, parent: parent}
}

func (s *LexicalScope) Module() *Module       { return s.module }
func (s *LexicalScope) Parent() *LexicalScope { return s.parent }

// IsTop reports whether s is the outermost (Object) scope.
func (s *LexicalScope) IsTop() bool { return s.parent == nil }

// ---------------------------------------------------------------------------
// Frame
// ---------------------------------------------------------------------------

// Frame is the activation record of a method or block. Super calls read
// the running method and the chain entry it was found in from here.
type Frame struct {
	rt     *Runtime
	parent *Frame
	self   Value
	method *Method
	klazz  *Module
	args   []Value
	block  *Block
	scope  *LexicalScope
	depth  int
}

func (f *Frame) Runtime() *Runtime    { return f.rt }
func (f *Frame) Parent() *Frame       { return f.parent }
func (f *Frame) Self() Value          { return f.self }
func (f *Frame) Method() *Method      { return f.method }
func (f *Frame) Klazz() *Module       { return f.klazz }
func (f *Frame) Args() []Value        { return f.args }
func (f *Frame) Block() *Block        { return f.block }
func (f *Frame) Scope() *LexicalScope { return f.scope }
func (f *Frame) Depth() int           { return f.depth }

// Name is the name of the running method, or "" at top level.
func (f *Frame) Name() string {
	if f.method == nil {
		return ""
	}
	return f.method.name
}

// WithScope returns a copy of f with a different cref.
func (f *Frame) WithScope(s *LexicalScope) *Frame {
	c := *f
	c.scope = s
	return &c
}

// In returns a frame for executing the body of module m: self is m and
// the cref is m's scope.
func (f *Frame) In(m *Module) *Frame {
	c := *f
	c.parent = f
	c.self = m
	c.method = nil
	c.klazz = nil
	c.args = nil
	c.block = nil
	c.scope = m.Scope()
	c.depth = f.depth + 1
	return &c
}

// SetArgs replaces the frame's argument list; a later zero-argument super
// re-passes the new values.
func (f *Frame) SetArgs(args []Value) {
	f.args = args
}

func (f *Frame) push(self Value, m *Method, klazz *Module, args []Value, blk *Block) (*Frame, error) {
	rt := m.owner.rt
	depth := 0
	if f != nil {
		depth = f.depth + 1
	}
	if depth >= MaxFrameDepth {
		return nil, Raise(ErrRuntime, "stack level too deep", "method", m.String())
	}
	scope := m.scope
	if scope == nil {
		scope = rt.topScope
	}
	return &Frame{
		rt:     rt,
		parent: f,
		self:   self,
		method: m,
		klazz:  klazz,
		args:   args,
		block:  blk,
		scope:  scope,
		depth:  depth,
	}, nil
}

// ---------------------------------------------------------------------------
// Block
// ---------------------------------------------------------------------------

// BlockFunc is the body of a block. f is the block's own frame, which
// shares self, method and scope with the frame that created it.
type BlockFunc func(f *Frame, args []Value) (Value, error)

// Block is a closure passed to a call.
type Block struct {
	home    *Frame
	fn      BlockFunc
	escaped atomic.Bool
}

// NewBlock creates a block closing over home.
func NewBlock(home *Frame, fn BlockFunc) *Block {
	return &Block{home: home, fn: fn}
}

// Home returns the frame the block was created in.
func (b *Block) Home() *Frame { return b.home }

// Yield runs the block.
func (b *Block) Yield(args ...Value) (Value, error) {
	if b.home.depth+1 >= MaxFrameDepth {
		return nil, Raisef(ErrRuntime, "stack level too deep")
	}
	f := *b.home
	f.parent = b.home
	f.depth = b.home.depth + 1
	return b.fn(&f, args)
}

// Escape marks the block as having outlived the call it was passed to.
func (b *Block) Escape() { b.escaped.Store(true) }

// Escaped reports whether Escape was called.
func (b *Block) Escaped() bool { return b.escaped.Load() }
