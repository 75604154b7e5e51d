package vm

import (
	"fmt"
	"strings"
)

// Value is any runtime value. The object model understands *Object,
// *Module, *Array, *Block, Symbol, bool, int64, float64 and string, plus
// the Nil singleton.
type Value any

type nilValue struct{}

func (nilValue) String() string { return "nil" }

// Nil is the language nil. A Go nil Value is treated as Nil everywhere.
var Nil Value = nilValue{}

// IsNil reports whether v is nil in the language sense.
func IsNil(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(nilValue)
	return ok
}

// Truthy reports whether v counts as true in a conditional: everything
// except nil and false.
func Truthy(v Value) bool {
	if IsNil(v) {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// Symbol is an interned name value.
type Symbol string

func (s Symbol) String() string { return ":" + string(s) }

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

// Array is a language array. Arrays are the unit of splat expansion.
type Array struct {
	Elems []Value
}

// NewArray creates an array holding elems.
func NewArray(elems ...Value) *Array {
	return &Array{Elems: elems}
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.Elems)
}

// At returns the element at i, or Nil when i is out of range.
func (a *Array) At(i int) Value {
	if i < 0 || i >= len(a.Elems) {
		return Nil
	}
	return a.Elems[i]
}

func (a *Array) String() string {
	parts := make([]string, len(a.Elems))
	for i, e := range a.Elems {
		parts[i] = Inspect(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Inspect renders v the way error messages and the CLI show it.
func Inspect(v Value) string {
	if IsNil(v) {
		return "nil"
	}
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case *Object:
		return fmt.Sprintf("#<%s>", x.Class().Name())
	case *Module:
		return x.Name()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// describe renders the receiver part of a NoMethodError message.
func describe(rt *Runtime, v Value) string {
	switch x := v.(type) {
	case nil, nilValue:
		return "nil"
	case bool:
		return fmt.Sprint(x)
	case *Module:
		if x.IsClass() {
			return "class " + x.Name()
		}
		return "module " + x.Name()
	}
	return "an instance of " + rt.ClassOf(v).Name()
}
