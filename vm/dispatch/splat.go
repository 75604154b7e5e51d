package dispatch

import (
	"strings"

	"github.com/chazu/indy/vm"
)

// SplatMap marks which positional argument slots of a super call were
// collected from a *rest parameter. The code generator encodes it as a
// string of '0' and '1', one character per slot.
type SplatMap []bool

// ParseSplatMap decodes "0101"-style maps. Characters other than '1' mean
// "not a splat"; the empty string decodes to nil.
func ParseSplatMap(s string) SplatMap {
	if s == "" {
		return nil
	}
	m := make(SplatMap, len(s))
	for i := 0; i < len(s); i++ {
		m[i] = s[i] == '1'
	}
	return m
}

func (m SplatMap) String() string {
	var b strings.Builder
	for _, splat := range m {
		if splat {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Any reports whether any slot is marked.
func (m SplatMap) Any() bool {
	for _, splat := range m {
		if splat {
			return true
		}
	}
	return false
}

// Expand spreads every marked slot that holds an array into its elements.
// Unmarked slots and marked non-array values pass through unchanged.
func (m SplatMap) Expand(args []vm.Value) []vm.Value {
	if !m.Any() {
		return args
	}
	out := make([]vm.Value, 0, len(args))
	for i, a := range args {
		if i < len(m) && m[i] {
			if arr, ok := a.(*vm.Array); ok {
				out = append(out, arr.Elems...)
				continue
			}
		}
		out = append(out, a)
	}
	return out
}
