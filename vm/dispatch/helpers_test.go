package dispatch

import (
	"testing"

	"github.com/chazu/indy/vm"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T) (*vm.Runtime, *Linker) {
	t.Helper()
	rt := vm.NewRuntime()
	return rt, NewLinker(rt, DefaultOptions())
}

func defClass(t *testing.T, rt *vm.Runtime, name string, super *vm.Module) *vm.Module {
	t.Helper()
	c, err := rt.DefineClass(name, super)
	require.NoError(t, err)
	return c
}

func defModule(t *testing.T, rt *vm.Runtime, name string) *vm.Module {
	t.Helper()
	m, err := rt.DefineModule(name)
	require.NoError(t, err)
	return m
}

func constant(v vm.Value) vm.Func0 {
	return func(*vm.Frame, vm.Value) (vm.Value, error) { return v, nil }
}

func call(t *testing.T, s *MethodSite, f *vm.Frame, recv vm.Value, args ...vm.Value) vm.Value {
	t.Helper()
	v, err := s.Call(f, recv, args, nil)
	require.NoError(t, err)
	return v
}
