package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/indy/vm"
	"github.com/chazu/indy/vm/dispatch"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// scenario is a built-in workload. run returns a one-line summary.
type scenario struct {
	name string
	run  func(ctx context.Context, l *dispatch.Linker) (string, error)
}

var scenarios = []scenario{
	{"monomorphic", runMonomorphic},
	{"polymorphic", runPolymorphic},
	{"overflow", runOverflow},
	{"ivars", runIvars},
	{"constants", runConstants},
	{"super", runSuper},
	{"concurrent", runConcurrent},
}

var errScenario = zerr.New("unexpected result")

func scenarioNamesList() []string {
	names := make([]string, len(scenarios))
	for i, sc := range scenarios {
		names[i] = sc.name
	}
	return names
}

func selectScenarios(names []string) ([]scenario, error) {
	if len(names) == 0 {
		return scenarios, nil
	}
	byName := make(map[string]scenario, len(scenarios))
	for _, sc := range scenarios {
		byName[sc.name] = sc
	}
	var out []scenario
	for _, n := range names {
		sc, ok := byName[strings.TrimSpace(n)]
		if !ok {
			known := scenarioNamesList()
			sort.Strings(known)
			return nil, zerr.With(zerr.New("unknown scenario "+n), "known", strings.Join(known, ","))
		}
		out = append(out, sc)
	}
	return out, nil
}

func expect(got, want vm.Value, what string) error {
	if got != want {
		return zerr.With(zerr.Wrap(errScenario, what), "got", vm.Inspect(got))
	}
	return nil
}

func constant(v vm.Value) vm.Func0 {
	return func(*vm.Frame, vm.Value) (vm.Value, error) { return v, nil }
}

// ---------------------------------------------------------------------------

func runMonomorphic(_ context.Context, l *dispatch.Linker) (string, error) {
	rt := l.Runtime()
	point, err := rt.DefineClass("MonoPoint", nil)
	if err != nil {
		return "", err
	}
	point.Define0("x", constant(int64(1)))
	obj := rt.NewObject(point)
	site := l.Call("x", 0, vm.CallNormal)
	f := rt.TopFrame()

	for i := 0; i < 1000; i++ {
		v, err := site.Call(f, obj, nil, nil)
		if err != nil {
			return "", err
		}
		if err := expect(v, int64(1), "x before redefinition"); err != nil {
			return "", err
		}
	}
	state := site.State()
	point.Define0("x", constant(int64(2)))
	v, err := site.Call(f, obj, nil, nil)
	if err != nil {
		return "", err
	}
	if err := expect(v, int64(2), "x after redefinition"); err != nil {
		return "", err
	}
	return fmt.Sprintf("1000 calls %s, redefinition seen on call 1001", state), nil
}

func runPolymorphic(_ context.Context, l *dispatch.Linker) (string, error) {
	rt := l.Runtime()
	var objs []vm.Value
	for _, name := range []string{"PolyA", "PolyB"} {
		c, err := rt.DefineClass(name, nil)
		if err != nil {
			return "", err
		}
		c.Define0("name", constant(name))
		objs = append(objs, rt.NewObject(c))
	}
	site := l.Call("name", 0, vm.CallNormal)
	f := rt.TopFrame()
	for i := 0; i < 1000; i++ {
		recv := objs[i%2]
		v, err := site.Call(f, recv, nil, nil)
		if err != nil {
			return "", err
		}
		if err := expect(v, rt.ClassOf(recv).Name(), "name"); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("1000 alternating calls %s, %d misses", site.State(), site.Misses()), nil
}

func runOverflow(_ context.Context, l *dispatch.Linker) (string, error) {
	rt := l.Runtime()
	n := l.Options().MaxPoly + 2
	objs := make([]vm.Value, n)
	for i := range objs {
		c, err := rt.DefineClass(fmt.Sprintf("Shape%d", i), nil)
		if err != nil {
			return "", err
		}
		c.Define0("sides", constant(int64(i)))
		objs[i] = rt.NewObject(c)
	}
	site := l.Call("sides", 0, vm.CallNormal)
	f := rt.TopFrame()
	for round := 0; round < 10; round++ {
		for i, recv := range objs {
			v, err := site.Call(f, recv, nil, nil)
			if err != nil {
				return "", err
			}
			if err := expect(v, int64(i), "sides"); err != nil {
				return "", err
			}
		}
	}
	return fmt.Sprintf("%d shapes through one site: %s, %d clears", n, site.State(), site.Tracker().Clears()), nil
}

func runIvars(_ context.Context, l *dispatch.Linker) (string, error) {
	rt := l.Runtime()
	c, err := rt.DefineClass("IvarBox", nil)
	if err != nil {
		return "", err
	}
	c.AttrAccessor("size")
	obj := rt.NewObject(c)
	get := l.Ivar("@value", false)
	set := l.Ivar("@value", true)

	if err := expect(get.Get(obj), vm.Nil, "unset ivar"); err != nil {
		return "", err
	}
	if err := set.Set(obj, int64(42)); err != nil {
		return "", err
	}
	if err := expect(get.Get(obj), int64(42), "ivar after set"); err != nil {
		return "", err
	}

	f := rt.TopFrame()
	writer := l.Call("size=", 1, vm.CallNormal)
	reader := l.Call("size", 0, vm.CallNormal)
	for i := 0; i < 100; i++ {
		if _, err := writer.Call(f, obj, []vm.Value{int64(i)}, nil); err != nil {
			return "", err
		}
		v, err := reader.Call(f, obj, nil, nil)
		if err != nil {
			return "", err
		}
		if err := expect(v, int64(i), "attr reader"); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("layout %v, reader %s", c.Variables().Names(), reader.State()), nil
}

func runConstants(_ context.Context, l *dispatch.Linker) (string, error) {
	rt := l.Runtime()
	if err := rt.ObjectClass.SetConstant("Limit", int64(1)); err != nil {
		return "", err
	}
	outer, err := rt.DefineModule("Outer")
	if err != nil {
		return "", err
	}
	if err := outer.SetConstant("Limit", int64(2)); err != nil {
		return "", err
	}
	site := l.Constant("Limit", dispatch.ConstLexical)
	f := rt.TopFrame().In(outer)

	v, err := site.Get(f)
	if err != nil {
		return "", err
	}
	if err := expect(v, int64(2), "shadowed constant"); err != nil {
		return "", err
	}
	if _, err := outer.RemoveConstant("Limit"); err != nil {
		return "", err
	}
	v, err = site.Get(f)
	if err != nil {
		return "", err
	}
	if err := expect(v, int64(1), "constant after removal"); err != nil {
		return "", err
	}

	qualified := l.Constant("Limit", dispatch.ConstQualified)
	if _, err := qualified.GetFrom(f, int64(3)); !errors.Is(err, vm.ErrType) {
		return "", zerr.With(zerr.Wrap(errScenario, "qualified lookup on integer"), "err", err)
	}
	return "shadowing and removal fall-through observed", nil
}

func runSuper(_ context.Context, l *dispatch.Linker) (string, error) {
	rt := l.Runtime()
	base, err := rt.DefineClass("SuperBase", nil)
	if err != nil {
		return "", err
	}
	derived, err := rt.DefineClass("SuperDerived", base)
	if err != nil {
		return "", err
	}
	base.Define0("greet", constant("base"))
	sup, err := l.Super(dispatch.InstanceSuper, derived, "greet", 0, "")
	if err != nil {
		return "", err
	}
	derived.Define0("greet", func(f *vm.Frame, self vm.Value) (vm.Value, error) {
		v, err := sup.Call(f, self, []vm.Value{}, nil)
		if err != nil {
			return nil, err
		}
		return v.(string) + "+derived", nil
	})

	// A singleton method on one instance that itself calls super.
	unresolved, err := l.Super(dispatch.UnresolvedSuper, nil, "greet", 0, "")
	if err != nil {
		return "", err
	}
	obj := rt.NewObject(derived)
	_, err = rt.DefineSingletonMethod(obj, vm.NewMethod("greet", 0, vm.Func0(
		func(f *vm.Frame, self vm.Value) (vm.Value, error) {
			v, err := unresolved.Call(f, self, []vm.Value{}, nil)
			if err != nil {
				return nil, err
			}
			return "singleton:" + v.(string), nil
		})))
	if err != nil {
		return "", err
	}

	site := l.Call("greet", 0, vm.CallNormal)
	f := rt.TopFrame()
	plain, err := site.Call(f, rt.NewObject(derived), nil, nil)
	if err != nil {
		return "", err
	}
	if err := expect(plain, "base+derived", "super result"); err != nil {
		return "", err
	}
	patched, err := site.Call(f, obj, nil, nil)
	if err != nil {
		return "", err
	}
	if err := expect(patched, "singleton:base+derived", "super through singleton"); err != nil {
		return "", err
	}
	return fmt.Sprintf("call site %s, super site %s", site.State(), sup.State()), nil
}

func runConcurrent(ctx context.Context, l *dispatch.Linker) (string, error) {
	rt := l.Runtime()
	c, err := rt.DefineClass("Racer", nil)
	if err != nil {
		return "", err
	}
	c.Define0("tick", constant(int64(0)))
	site := l.Call("tick", 0, vm.CallNormal)
	obj := rt.NewObject(c)

	const workers, calls, redefinitions = 8, 5000, 200
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			f := rt.TopFrame()
			last := int64(-1)
			for i := 0; i < calls; i++ {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				v, err := site.Call(f, obj, nil, nil)
				if err != nil {
					return err
				}
				n := v.(int64)
				if n < last {
					return zerr.With(zerr.Wrap(errScenario, "observed an older definition"), "got", n)
				}
				last = n
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := 1; i <= redefinitions; i++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Define0("tick", constant(int64(i)))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	v, err := site.Call(rt.TopFrame(), obj, nil, nil)
	if err != nil {
		return "", err
	}
	if err := expect(v, int64(redefinitions), "final definition"); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d workers x %d calls with %d redefinitions", workers, calls, redefinitions), nil
}
