package dispatch

import (
	"fmt"

	"github.com/chazu/indy/vm"
	"github.com/tliron/commonlog"
)

// Kind is what a site does.
type Kind uint8

const (
	// KindCall is a call with an explicit receiver.
	KindCall Kind = iota
	// KindFunctional is a call on implicit self with arguments or parens.
	KindFunctional
	// KindVariable is a bare identifier resolved as a call on self.
	KindVariable
	KindSuper
	KindConstant
	KindIvarGet
	KindIvarSet
	KindGlobalGet
	KindGlobalSet
)

var kindNames = [...]string{
	KindCall:       "call",
	KindFunctional: "fcall",
	KindVariable:   "vcall",
	KindSuper:      "super",
	KindConstant:   "constant",
	KindIvarGet:    "ivar_get",
	KindIvarSet:    "ivar_set",
	KindGlobalGet:  "global_get",
	KindGlobalSet:  "global_set",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

func (k Kind) callType() vm.CallType {
	switch k {
	case KindFunctional:
		return vm.CallFunctional
	case KindVariable:
		return vm.CallVariable
	case KindSuper:
		return vm.CallSuper
	default:
		return vm.CallNormal
	}
}

// SuperVariant selects how a super site finds where to start searching.
type SuperVariant uint8

const (
	// InstanceSuper is super inside an instance method of a class known at
	// compile time.
	InstanceSuper SuperVariant = iota
	// ClassSuper is super inside a singleton (class) method.
	ClassSuper
	// UnresolvedSuper reads the defining module and method name from the
	// calling frame: super in blocks and in module methods.
	UnresolvedSuper
	// ZSuper is argument-less super, which re-passes the running method's
	// arguments and block.
	ZSuper
)

func (v SuperVariant) String() string {
	switch v {
	case InstanceSuper:
		return "instance"
	case ClassSuper:
		return "class"
	case UnresolvedSuper:
		return "unresolved"
	case ZSuper:
		return "zsuper"
	default:
		return fmt.Sprintf("SuperVariant(%d)", v)
	}
}

// ConstLookup selects the constant search procedure of a constant site.
type ConstLookup uint8

const (
	// ConstLexical is an unqualified reference: lexical scopes, then
	// ancestry, then const_missing.
	ConstLexical ConstLookup = iota
	// ConstQualified is Mod::NAME: the ancestry of Mod only.
	ConstQualified
	// ConstLexicalOnly searches lexical scopes only and never calls
	// const_missing.
	ConstLexicalOnly
)

func (l ConstLookup) String() string {
	switch l {
	case ConstLexical:
		return "lexical"
	case ConstQualified:
		return "qualified"
	case ConstLexicalOnly:
		return "lexical-only"
	default:
		return fmt.Sprintf("ConstLookup(%d)", l)
	}
}

// Descriptor is what the code generator knows about a site when it links
// it.
type Descriptor struct {
	Kind  Kind
	Name  string
	Arity int // argument count, or vm.Variadic

	Super    SuperVariant
	Defining *vm.Module // lexically enclosing module of a resolved super
	SplatMap string     // "0101"-style rest-slot map for super sites

	Const ConstLookup

	// LiteralClosure marks a call whose block argument is a literal block.
	LiteralClosure bool

	File string
	Line int
}

// Invoker is the entry point compiled code calls for a linked site. recv
// is the receiver (ignored by sites that have none; the left-hand module
// for qualified constants) and args are the call's arguments (the value to
// store for ivar and global writes).
type Invoker interface {
	Invoke(f *vm.Frame, recv vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error)
	Site
}

// Site is the bookkeeping view of a linked site.
type Site interface {
	ID() uint64
	Kind() Kind
	Name() string
	Location() string
	State() CacheState
	Hits() uint64
	Misses() uint64
	Tracker() *SiteTracker
	Reset()
}

// site holds what every site kind shares.
type site struct {
	id      uint64
	kind    Kind
	name    string
	arity   int
	file    string
	line    int
	rt      *vm.Runtime
	opts    Options
	tracker *SiteTracker
}

func newSite(l *Linker, d Descriptor) site {
	s := site{
		id:    l.nextID.Add(1),
		kind:  d.Kind,
		name:  d.Name,
		arity: d.Arity,
		file:  d.File,
		line:  d.Line,
		rt:    l.rt,
		opts:  l.opts,
	}
	s.tracker = NewSiteTracker(s.describe(), l.opts.MaxFail)
	return s
}

func (s *site) ID() uint64            { return s.id }
func (s *site) Kind() Kind            { return s.kind }
func (s *site) Name() string          { return s.name }
func (s *site) Arity() int            { return s.arity }
func (s *site) Tracker() *SiteTracker { return s.tracker }
func (s *site) Runtime() *vm.Runtime  { return s.rt }

// Location is "file:line", or "-" when the generator gave none.
func (s *site) Location() string {
	if s.file == "" {
		return "-"
	}
	return fmt.Sprintf("%s:%d", s.file, s.line)
}

func (s *site) describe() string {
	return fmt.Sprintf("site %d %s %s at %s", s.id, s.kind, s.name, s.Location())
}

// frame returns f, or a fresh top-level frame for callers that have none.
func (s *site) frame(f *vm.Frame) *vm.Frame {
	if f == nil {
		return s.rt.TopFrame()
	}
	return f
}

func (s *site) checkArity(args []vm.Value) error {
	if s.arity >= 0 && len(args) != s.arity {
		return vm.Raise(vm.ErrArgument,
			fmt.Sprintf("call site expects %d argument(s), given %d", s.arity, len(args)),
			"site", s.describe())
	}
	return nil
}

func (s *site) logBind(target string, key any, state CacheState) {
	if s.opts.LogBinding && log.AllowLevel(commonlog.Debug) {
		log.Debugf("%s: bound %s for %v (%s)", s.describe(), target, key, state)
	}
}
