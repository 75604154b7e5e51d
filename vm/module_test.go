package vm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustClass(t *testing.T, rt *Runtime, name string, super *Module) *Module {
	t.Helper()
	c, err := rt.DefineClass(name, super)
	require.NoError(t, err)
	return c
}

func mustModule(t *testing.T, rt *Runtime, name string) *Module {
	t.Helper()
	m, err := rt.DefineModule(name)
	require.NoError(t, err)
	return m
}

func returns(v Value) Func0 {
	return func(*Frame, Value) (Value, error) { return v, nil }
}

func TestBootstrapHierarchy(t *testing.T) {
	rt := NewRuntime()
	assert.Equal(t, []*Module{rt.ObjectClass, rt.KernelModule, rt.BasicObjectClass}, rt.ObjectClass.Ancestors())
	assert.Equal(t, rt.ModuleClass, rt.ClassClass.Superclass())
	assert.Equal(t, rt.ClassClass, rt.ClassOf(rt.ObjectClass))
	assert.Equal(t, rt.ModuleClass, rt.ClassOf(rt.KernelModule))
	assert.Equal(t, rt.IntegerClass, rt.ClassOf(int64(3)))
	assert.Equal(t, rt.NilClass, rt.ClassOf(Nil))
	assert.Equal(t, rt.NilClass, rt.ClassOf(nil))
	assert.Equal(t, rt.ArrayClass, rt.ClassOf(NewArray()))

	v, ok := rt.ObjectClass.ConstantLocal("String")
	require.True(t, ok)
	assert.Equal(t, rt.StringClass, v)
}

func TestMetaclassChainFollowsClassChain(t *testing.T) {
	rt := NewRuntime()
	base := mustClass(t, rt, "Base", nil)
	derived := mustClass(t, rt, "Derived", base)

	dm := rt.MetaClassOf(derived)
	require.True(t, dm.IsSingleton())
	assert.Equal(t, rt.MetaClassOf(base), dm.Superclass())
	assert.Equal(t, derived, dm.Attached())

	base.SingletonClass().Define0("build", returns("built"))
	m, _ := dm.SearchMethod("build")
	require.NotNil(t, m, "class methods are inherited")
	assert.Equal(t, "build", m.Name())
}

func TestSearchMethodWalksAncestry(t *testing.T) {
	rt := NewRuntime()
	base := mustClass(t, rt, "Base", nil)
	derived := mustClass(t, rt, "Derived", base)
	base.Define0("hello", returns("base"))

	m, klazz := derived.SearchMethod("hello")
	require.NotNil(t, m)
	assert.Equal(t, base, klazz)
	assert.Equal(t, base, m.Owner())

	m, _ = derived.SearchMethod("nothing")
	assert.Nil(t, m)
}

func TestIncludeInsertsWrapper(t *testing.T) {
	rt := NewRuntime()
	greet := mustModule(t, rt, "Greet")
	loud := mustModule(t, rt, "Loud")
	require.NoError(t, greet.Include(loud))
	c := mustClass(t, rt, "Person", nil)
	require.NoError(t, c.Include(greet))

	assert.Equal(t, []*Module{c, greet, loud, rt.ObjectClass, rt.KernelModule, rt.BasicObjectClass}, c.Ancestors())
	assert.True(t, c.Superclass().IsIncluded())
	assert.Equal(t, greet, c.Superclass().Origin())

	loud.Define0("shout", returns("HEY"))
	m, klazz := c.SearchMethod("shout")
	require.NotNil(t, m, "methods added after include are visible through the wrapper")
	assert.Equal(t, loud, klazz.Origin())

	require.NoError(t, c.Include(greet), "including twice is a no-op")
	assert.Len(t, c.Ancestors(), 6)
}

func TestIncludeRejectsClass(t *testing.T) {
	rt := NewRuntime()
	c := mustClass(t, rt, "A", nil)
	other := mustClass(t, rt, "B", nil)
	err := c.Include(other)
	assert.True(t, errors.Is(err, ErrType))
}

func TestMethodChangesRetireDescendantTokens(t *testing.T) {
	rt := NewRuntime()
	mixin := mustModule(t, rt, "Mixin")
	base := mustClass(t, rt, "Base", nil)
	derived := mustClass(t, rt, "Derived", base)
	require.NoError(t, base.Include(mixin))
	obj := rt.NewObject(derived)
	single, err := rt.SingletonClassOf(obj)
	require.NoError(t, err)
	unrelated := mustClass(t, rt, "Unrelated", nil)

	tokens := map[string]*Invalidator{
		"base":      base.MethodToken(),
		"derived":   derived.MethodToken(),
		"singleton": single.MethodToken(),
	}
	other := unrelated.MethodToken()

	mixin.Define0("mixed", returns(1))

	for name, tok := range tokens {
		assert.False(t, tok.Valid(), "%s token should be retired", name)
	}
	assert.True(t, other.Valid(), "unrelated class keeps its token")
	assert.True(t, derived.MethodToken().Valid(), "a fresh token is installed")
	assert.Greater(t, derived.MethodToken().Version(), tokens["derived"].Version())
}

func TestVisibilityAndCallability(t *testing.T) {
	rt := NewRuntime()
	c := mustClass(t, rt, "Account", nil)
	other := mustClass(t, rt, "Stranger", nil)
	c.Define0("balance", returns(10))
	c.Define0("secret", returns(1))
	c.Define0("peer", returns(2))
	require.NoError(t, c.SetVisibility("secret", Private))
	require.NoError(t, c.SetVisibility("peer", Protected))

	insider := rt.NewObject(c)
	outsider := rt.NewObject(other)

	pub, _ := c.SearchMethod("balance")
	priv, _ := c.SearchMethod("secret")
	prot, _ := c.SearchMethod("peer")

	assert.True(t, IsCallableFrom(pub, outsider, CallNormal))
	assert.False(t, IsCallableFrom(priv, insider, CallNormal))
	assert.True(t, IsCallableFrom(priv, insider, CallFunctional))
	assert.True(t, IsCallableFrom(priv, insider, CallVariable))
	assert.True(t, IsCallableFrom(prot, insider, CallNormal))
	assert.False(t, IsCallableFrom(prot, outsider, CallNormal))
}

func TestSetVisibilityCopiesInheritedMethod(t *testing.T) {
	rt := NewRuntime()
	base := mustClass(t, rt, "Base", nil)
	derived := mustClass(t, rt, "Derived", base)
	base.Define0("shared", returns(1))
	require.NoError(t, derived.SetVisibility("shared", Private))

	m, _ := derived.SearchMethod("shared")
	assert.Equal(t, Private, m.Visibility())
	m, _ = base.SearchMethod("shared")
	assert.Equal(t, Public, m.Visibility())

	assert.True(t, errors.Is(derived.SetVisibility("missing", Private), ErrName))
}

func TestUndefAndRemove(t *testing.T) {
	rt := NewRuntime()
	base := mustClass(t, rt, "Base", nil)
	derived := mustClass(t, rt, "Derived", base)
	base.Define0("speak", returns("base"))
	derived.Define0("speak", returns("derived"))

	require.NoError(t, derived.RemoveMethod("speak"))
	m, klazz := derived.SearchMethod("speak")
	require.NotNil(t, m)
	assert.Equal(t, base, klazz, "removal exposes the inherited method")

	require.NoError(t, derived.UndefMethod("speak"))
	m, _ = derived.SearchMethod("speak")
	assert.Nil(t, m, "undef hides inherited methods")
	m, _ = base.SearchMethod("speak")
	assert.NotNil(t, m)

	assert.True(t, errors.Is(derived.RemoveMethod("never"), ErrName))
}

func TestAliasKeepsOldBody(t *testing.T) {
	rt := NewRuntime()
	c := mustClass(t, rt, "Greeter", nil)
	c.Define0("hi", returns("hi"))
	require.NoError(t, c.Alias("hello", "hi"))
	c.Define0("hi", returns("yo"))

	m, klazz := c.SearchMethod("hello")
	require.NotNil(t, m)
	v, err := m.Call(rt.TopFrame(), rt.NewObject(c), klazz, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", v)
}

func TestMethodCallChecksArity(t *testing.T) {
	rt := NewRuntime()
	c := mustClass(t, rt, "Calc", nil)
	m := c.Define1("double", func(f *Frame, self, a Value) (Value, error) {
		return a.(int64) * 2, nil
	})
	_, err := m.Call(rt.TopFrame(), rt.NewObject(c), c, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArgument))

	v, err := m.Call(rt.TopFrame(), rt.NewObject(c), c, []Value{int64(4)}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(8), v)
}

func TestReopenClass(t *testing.T) {
	rt := NewRuntime()
	base := mustClass(t, rt, "Base", nil)
	c1 := mustClass(t, rt, "Thing", base)
	c2, err := rt.DefineClass("Thing", nil)
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	_, err = rt.DefineClass("Thing", rt.StringClass)
	assert.True(t, errors.Is(err, ErrType))
}

func TestNestedNames(t *testing.T) {
	rt := NewRuntime()
	outer := mustModule(t, rt, "Outer")
	inner, err := outer.DefineClassUnder("Inner", nil)
	require.NoError(t, err)
	assert.Equal(t, "Outer::Inner", inner.Name())
	assert.Equal(t, outer, inner.LexicalParent())
	assert.Equal(t, outer, inner.Scope().Parent().Module())

	anon := rt.NewClass(nil)
	require.NoError(t, outer.SetConstant("Named", anon))
	assert.Equal(t, "Outer::Named", anon.Name())
}
