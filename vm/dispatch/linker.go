package dispatch

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chazu/indy/vm"
	"go.trai.ch/zerr"
)

// ErrInvalidDescriptor is returned by Link for descriptors no site can be
// built from.
var ErrInvalidDescriptor = zerr.New("invalid site descriptor")

// Options tune every site a Linker creates.
type Options struct {
	// MaxPoly caps the guard chain of each site.
	MaxPoly int
	// MaxFail is the clear count at which a site logs that it is
	// megamorphic. Zero disables the notice.
	MaxFail uint64
	// Stats enables per-site hit and miss counters.
	Stats bool
	// LogBinding logs every install at debug level.
	LogBinding bool
}

// DefaultOptions returns the stock settings.
func DefaultOptions() Options {
	return Options{
		MaxPoly: MaxPICEntries,
		MaxFail: 1000,
		Stats:   true,
	}
}

// Linker creates sites for compiled code and keeps track of them.
type Linker struct {
	rt     *vm.Runtime
	opts   Options
	nextID atomic.Uint64

	mu    sync.Mutex
	sites []Site
}

// NewLinker creates a linker for rt.
func NewLinker(rt *vm.Runtime, opts Options) *Linker {
	if opts.MaxPoly < 1 {
		opts.MaxPoly = MaxPICEntries
	}
	return &Linker{rt: rt, opts: opts}
}

// Runtime returns the object model sites resolve against.
func (l *Linker) Runtime() *vm.Runtime { return l.rt }

// Options returns the effective options.
func (l *Linker) Options() Options { return l.opts }

func (l *Linker) register(s Site) {
	l.mu.Lock()
	l.sites = append(l.sites, s)
	l.mu.Unlock()
}

// Sites returns every site created so far, in creation order.
func (l *Linker) Sites() []Site {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Site, len(l.sites))
	copy(out, l.sites)
	return out
}

// Reset empties every site's cache.
func (l *Linker) Reset() {
	for _, s := range l.Sites() {
		s.Reset()
	}
}

// ---------------------------------------------------------------------------
// Site factories
// ---------------------------------------------------------------------------

// Call creates a method call site. ct selects the visibility rule: normal
// (explicit receiver), functional or variable.
func (l *Linker) Call(name string, arity int, ct vm.CallType) *MethodSite {
	kind := KindCall
	switch ct {
	case vm.CallFunctional:
		kind = KindFunctional
	case vm.CallVariable:
		kind = KindVariable
	}
	s := newMethodSite(l, Descriptor{Kind: kind, Name: name, Arity: arity})
	l.register(s)
	return s
}

// Super creates a super call site. defining is the lexically enclosing
// module for InstanceSuper and ClassSuper, and is ignored by the variants
// that read it from the frame.
func (l *Linker) Super(variant SuperVariant, defining *vm.Module, name string, arity int, splatMap string) (*SuperSite, error) {
	d := Descriptor{
		Kind:     KindSuper,
		Name:     name,
		Arity:    arity,
		Super:    variant,
		Defining: defining,
		SplatMap: splatMap,
	}
	if err := validate(d); err != nil {
		return nil, err
	}
	s := newSuperSite(l, d)
	l.register(s)
	return s, nil
}

// Constant creates a constant reference site.
func (l *Linker) Constant(name string, lookup ConstLookup) *ConstSite {
	s := newConstSite(l, Descriptor{Kind: KindConstant, Name: name, Const: lookup, Arity: 0})
	l.register(s)
	return s
}

// Ivar creates an instance variable read or write site. name includes the
// '@' sigil.
func (l *Linker) Ivar(name string, write bool) *IvarSite {
	kind := KindIvarGet
	if write {
		kind = KindIvarSet
	}
	s := newIvarSite(l, Descriptor{Kind: kind, Name: name})
	l.register(s)
	return s
}

// Global creates a global variable read or write site. name includes the
// '$' sigil.
func (l *Linker) Global(name string, write bool) *GlobalSite {
	kind := KindGlobalGet
	if write {
		kind = KindGlobalSet
	}
	s := newGlobalSite(l, Descriptor{Kind: kind, Name: name})
	l.register(s)
	return s
}

// Link validates d and creates the matching site.
func (l *Linker) Link(d Descriptor) (Invoker, error) {
	if err := validate(d); err != nil {
		return nil, err
	}
	var s Invoker
	switch d.Kind {
	case KindCall, KindFunctional, KindVariable:
		s = newMethodSite(l, d)
	case KindSuper:
		s = newSuperSite(l, d)
	case KindConstant:
		s = newConstSite(l, d)
	case KindIvarGet, KindIvarSet:
		s = newIvarSite(l, d)
	case KindGlobalGet, KindGlobalSet:
		s = newGlobalSite(l, d)
	}
	l.register(s)
	return s, nil
}

func invalid(d Descriptor, format string, args ...any) error {
	err := zerr.Wrap(ErrInvalidDescriptor, fmt.Sprintf(format, args...))
	err = zerr.With(err, "kind", d.Kind.String())
	return zerr.With(err, "name", d.Name)
}

func validate(d Descriptor) error {
	if d.Name == "" {
		return invalid(d, "site name is empty")
	}
	if d.Arity < vm.Variadic {
		return invalid(d, "arity %d out of range", d.Arity)
	}
	switch d.Kind {
	case KindCall, KindFunctional:
	case KindVariable:
		if d.Arity != 0 {
			return invalid(d, "variable call with %d arguments", d.Arity)
		}
	case KindSuper:
		switch d.Super {
		case InstanceSuper, ClassSuper:
			if d.Defining == nil {
				return invalid(d, "%s super needs a defining module", d.Super)
			}
			if d.Super == InstanceSuper && d.Defining.IsModule() {
				return invalid(d, "instance super in module %s must be unresolved", d.Defining.Name())
			}
		case UnresolvedSuper, ZSuper:
		default:
			return invalid(d, "unknown super variant %d", d.Super)
		}
		if strings.Trim(d.SplatMap, "01") != "" {
			return invalid(d, "malformed splat map %q", d.SplatMap)
		}
	case KindConstant:
		if d.Name[0] < 'A' || d.Name[0] > 'Z' {
			return invalid(d, "constant name must be capitalized")
		}
		if d.Const > ConstLexicalOnly {
			return invalid(d, "unknown constant lookup %d", d.Const)
		}
	case KindIvarGet, KindIvarSet:
		if !strings.HasPrefix(d.Name, "@") || strings.HasPrefix(d.Name, "@@") {
			return invalid(d, "instance variable name must start with a single '@'")
		}
	case KindGlobalGet, KindGlobalSet:
		if !strings.HasPrefix(d.Name, "$") {
			return invalid(d, "global variable name must start with '$'")
		}
	default:
		return invalid(d, "unknown site kind")
	}
	return nil
}
