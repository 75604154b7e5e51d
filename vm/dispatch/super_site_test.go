package dispatch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/chazu/indy/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceSuperIgnoresSingletonPatches(t *testing.T) {
	rt, l := newEnv(t)
	base := defClass(t, rt, "Base", nil)
	derived := defClass(t, rt, "Derived", base)
	base.Define0("greet", constant("base"))
	sup, err := l.Super(InstanceSuper, derived, "greet", 0, "")
	require.NoError(t, err)
	greet := derived.Define0("greet", func(f *vm.Frame, self vm.Value) (vm.Value, error) {
		v, err := sup.Call(f, self, nil, nil)
		if err != nil {
			return nil, err
		}
		return "derived+" + v.(string), nil
	})
	obj := rt.NewObject(derived)
	top := rt.TopFrame()

	v, err := greet.Call(top, obj, derived, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "derived+base", v)

	_, err = rt.DefineSingletonMethod(obj, vm.NewMethod("greet", 0, constant("patched")))
	require.NoError(t, err)
	v, err = greet.Call(top, obj, derived, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "derived+base", v, "super starts after the defining class, not at the receiver")

	base.Define0("greet", constant("base2"))
	v, err = greet.Call(top, obj, derived, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "derived+base2", v)
	assert.Equal(t, InstanceSuper, sup.Variant())
	assert.Equal(t, derived, sup.Defining())
}

func TestClassSuper(t *testing.T) {
	rt, l := newEnv(t)
	base := defClass(t, rt, "Base", nil)
	derived := defClass(t, rt, "Derived", base)
	base.SingletonClass().Define0("create", constant("base"))
	sup, err := l.Super(ClassSuper, derived, "create", 0, "")
	require.NoError(t, err)
	create := derived.SingletonClass().Define0("create", func(f *vm.Frame, self vm.Value) (vm.Value, error) {
		v, err := sup.Call(f, self, nil, nil)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("%s via %s", v, self.(*vm.Module).Name()), nil
	})

	v, err := create.Call(rt.TopFrame(), derived, derived.SingletonClass(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "base via Derived", v)
	assert.Equal(t, CacheMonomorphic, sup.State())
}

func TestUnresolvedSuperInModuleMethod(t *testing.T) {
	rt, l := newEnv(t)
	base := defClass(t, rt, "Base", nil)
	base.Define0("greet", constant("hello"))
	loud := defModule(t, rt, "Loud")
	sup, err := l.Super(UnresolvedSuper, nil, "greet", 0, "")
	require.NoError(t, err)
	loud.Define0("greet", func(f *vm.Frame, self vm.Value) (vm.Value, error) {
		v, err := sup.Call(f, self, nil, nil)
		if err != nil {
			return nil, err
		}
		return v.(string) + "!", nil
	})
	person := defClass(t, rt, "Person", base)
	require.NoError(t, person.Include(loud))
	robot := defClass(t, rt, "Robot", nil)
	robot.Define0("greet", constant("beep"))
	require.NoError(t, robot.Include(loud))

	site := l.Call("greet", 0, vm.CallNormal)
	top := rt.TopFrame()
	assert.Equal(t, "hello!", call(t, site, top, rt.NewObject(person)))
	assert.Equal(t, "beep", call(t, site, top, rt.NewObject(robot)),
		"a class's own method wins over an included module")

	sub := defClass(t, rt, "Robo2", nil)
	require.NoError(t, sub.Include(loud))
	_, err = site.Call(top, rt.NewObject(sub), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, vm.ErrNoMethod))
	assert.Contains(t, err.Error(), "super: no superclass method 'greet'")
}

func TestSuperOutsideMethod(t *testing.T) {
	rt, l := newEnv(t)
	sup, err := l.Super(UnresolvedSuper, nil, "anything", 0, "")
	require.NoError(t, err)
	_, err = sup.Call(rt.TopFrame(), rt.Main(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, vm.ErrRuntime))
}

func TestZSuperRepassesArgumentsAndBlock(t *testing.T) {
	rt, l := newEnv(t)
	base := defClass(t, rt, "Base", nil)
	derived := defClass(t, rt, "Derived", base)
	base.Define("sum", vm.Variadic, func(f *vm.Frame, self vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
		total := int64(0)
		for _, a := range args {
			total += a.(int64)
		}
		if blk != nil {
			return blk.Yield(total)
		}
		return total, nil
	})
	zsuper, err := l.Super(ZSuper, nil, "sum", vm.Variadic, "")
	require.NoError(t, err)
	derived.Define("sum", vm.Variadic, func(f *vm.Frame, self vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
		if len(args) > 0 && args[0] == int64(0) {
			f.SetArgs([]vm.Value{int64(100)})
		}
		return zsuper.Call(f, self, nil, nil)
	})
	site := l.Call("sum", vm.Variadic, vm.CallNormal)
	obj := rt.NewObject(derived)
	top := rt.TopFrame()

	assert.Equal(t, int64(6), call(t, site, top, obj, int64(1), int64(2), int64(3)))
	assert.Equal(t, int64(100), call(t, site, top, obj, int64(0)), "reassigned parameters are re-passed")

	doubled := vm.NewBlock(top, func(f *vm.Frame, args []vm.Value) (vm.Value, error) {
		return args[0].(int64) * 2, nil
	})
	v, err := site.Call(top, obj, []vm.Value{int64(4)}, doubled)
	require.NoError(t, err)
	assert.Equal(t, int64(8), v, "the running method's block is passed along")
}

func TestSuperSplatExpansion(t *testing.T) {
	rt, l := newEnv(t)
	base := defClass(t, rt, "Base", nil)
	derived := defClass(t, rt, "Derived", base)
	base.Define("three", 3, func(f *vm.Frame, self vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
		return vm.NewArray(args...), nil
	})
	sup, err := l.Super(InstanceSuper, derived, "three", vm.Variadic, "01")
	require.NoError(t, err)
	assert.Equal(t, "01", sup.SplatMap().String())
	derived.Define("three", vm.Variadic, func(f *vm.Frame, self vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
		rest := vm.NewArray(args[1:]...)
		return sup.Call(f, self, []vm.Value{args[0], rest}, nil)
	})
	site := l.Call("three", 3, vm.CallNormal)

	v := call(t, site, rt.TopFrame(), rt.NewObject(derived), int64(1), int64(2), int64(3))
	assert.Equal(t, []vm.Value{int64(1), int64(2), int64(3)}, v.(*vm.Array).Elems)
}

func TestZSuperKeepsArrayArguments(t *testing.T) {
	rt, l := newEnv(t)
	base := defClass(t, rt, "Base", nil)
	derived := defClass(t, rt, "Derived", base)
	base.Define("m", vm.Variadic, func(f *vm.Frame, self vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
		return vm.NewArray(args...), nil
	})
	zsuper, err := l.Super(ZSuper, nil, "m", vm.Variadic, "01")
	require.NoError(t, err)
	derived.Define("m", vm.Variadic, func(f *vm.Frame, self vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
		return zsuper.Call(f, self, nil, nil)
	})
	site := l.Call("m", vm.Variadic, vm.CallNormal)
	obj := rt.NewObject(derived)
	top := rt.TopFrame()

	for range 2 {
		v := call(t, site, top, obj, int64(1), vm.NewArray(int64(2), int64(3)))
		got := v.(*vm.Array).Elems
		require.Len(t, got, 2)
		assert.Equal(t, int64(1), got[0])
		assert.Equal(t, []vm.Value{int64(2), int64(3)}, got[1].(*vm.Array).Elems)
	}

	// Explicit arguments still go through the splat map.
	base.Define("n", vm.Variadic, func(f *vm.Frame, self vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
		return vm.NewArray(args...), nil
	})
	explicit, err := l.Super(ZSuper, nil, "n", vm.Variadic, "01")
	require.NoError(t, err)
	derived.Define("n", vm.Variadic, func(f *vm.Frame, self vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
		return explicit.Call(f, self, []vm.Value{args[0], vm.NewArray(args[1:]...)}, nil)
	})
	n := l.Call("n", vm.Variadic, vm.CallNormal)
	v := call(t, n, top, obj, int64(1), int64(2), int64(3))
	assert.Equal(t, []vm.Value{int64(1), int64(2), int64(3)}, v.(*vm.Array).Elems)
}

func TestSuperReachesMethodMissingWithoutCaching(t *testing.T) {
	rt, l := newEnv(t)
	base := defClass(t, rt, "Base", nil)
	derived := defClass(t, rt, "Derived", base)
	base.Define("method_missing", vm.Variadic, func(f *vm.Frame, self vm.Value, args []vm.Value, blk *vm.Block) (vm.Value, error) {
		return args[0], nil
	})
	sup, err := l.Super(InstanceSuper, derived, "lonely", 0, "")
	require.NoError(t, err)
	lonely := derived.Define0("lonely", func(f *vm.Frame, self vm.Value) (vm.Value, error) {
		return sup.Call(f, self, nil, nil)
	})

	v, err := lonely.Call(rt.TopFrame(), rt.NewObject(derived), derived, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, vm.Symbol("lonely"), v)
	assert.Equal(t, CacheEmpty, sup.State())
}

func TestSuperWithoutSuperclassMethod(t *testing.T) {
	rt, l := newEnv(t)
	c := defClass(t, rt, "Only", nil)
	sup, err := l.Super(InstanceSuper, c, "solo", 0, "")
	require.NoError(t, err)
	solo := c.Define0("solo", func(f *vm.Frame, self vm.Value) (vm.Value, error) {
		return sup.Call(f, self, nil, nil)
	})
	_, err = solo.Call(rt.TopFrame(), rt.NewObject(c), c, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, vm.ErrNoMethod))
	assert.Contains(t, err.Error(), "super: no superclass method 'solo' for an instance of Only")
	assert.Equal(t, CacheEmpty, sup.State())
}
