package vm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantAssignmentRetiresNameToken(t *testing.T) {
	rt := NewRuntime()
	outer := mustModule(t, rt, "Outer")
	foo := rt.ConstantToken("Foo")
	bar := rt.ConstantToken("Bar")

	require.NoError(t, outer.SetConstant("Foo", int64(1)))
	assert.False(t, foo.Valid())
	assert.True(t, bar.Valid(), "other names keep their tokens")
	assert.True(t, rt.ConstantToken("Foo").Valid())

	v, ok := outer.ConstantLocal("Foo")
	require.True(t, ok)
	assert.Equal(t, int64(1), v)
}

func TestConstantNameValidation(t *testing.T) {
	rt := NewRuntime()
	err := rt.ObjectClass.SetConstant("lower", int64(1))
	assert.True(t, errors.Is(err, ErrName))
}

func TestSearchConstantFollowsAncestry(t *testing.T) {
	rt := NewRuntime()
	mixin := mustModule(t, rt, "Limits")
	require.NoError(t, mixin.SetConstant("Max", int64(10)))
	base := mustClass(t, rt, "Base", nil)
	require.NoError(t, base.Include(mixin))
	derived := mustClass(t, rt, "Derived", base)

	v, ok := derived.SearchConstant("Max")
	require.True(t, ok)
	assert.Equal(t, int64(10), v)

	_, ok = derived.ConstantLocal("Max")
	assert.False(t, ok)

	_, ok = mixin.SearchConstant("String")
	assert.False(t, ok, "a plain module's ancestry does not reach Object")
}

func TestRemoveConstant(t *testing.T) {
	rt := NewRuntime()
	m := mustModule(t, rt, "Config")
	require.NoError(t, m.SetConstant("Level", int64(3)))
	tok := rt.ConstantToken("Level")

	old, err := m.RemoveConstant("Level")
	require.NoError(t, err)
	assert.Equal(t, int64(3), old)
	assert.False(t, tok.Valid())
	assert.Empty(t, m.ConstantNames())

	_, err = m.RemoveConstant("Level")
	assert.True(t, errors.Is(err, ErrName))
}

func TestGlobals(t *testing.T) {
	rt := NewRuntime()
	g := rt.Globals()
	assert.Equal(t, Nil, g.Get("$unset"))

	tok := rt.GlobalToken("$debug")
	g.Set("$debug", true)
	assert.False(t, tok.Valid())
	assert.True(t, rt.GlobalToken("$debug").Valid())
	assert.Equal(t, true, g.Get("$debug"))
	assert.Equal(t, []string{"$debug"}, g.Names())
}
