package vm

import (
	"fmt"

	"go.trai.ch/zerr"
)

// Language error kinds. Errors raised by the runtime wrap one of these, so
// callers test with errors.Is.
var (
	ErrNoMethod = zerr.New("NoMethodError")
	ErrName     = zerr.New("NameError")
	ErrType     = zerr.New("TypeError")
	ErrArgument = zerr.New("ArgumentError")
	ErrFrozen   = zerr.New("FrozenError")
	ErrRuntime  = zerr.New("RuntimeError")
)

// Raise builds a language error of the given kind. kv is an alternating
// list of metadata keys and values attached with zerr.With.
func Raise(kind error, msg string, kv ...any) error {
	err := zerr.Wrap(kind, msg)
	for i := 0; i+1 < len(kv); i += 2 {
		err = zerr.With(err, fmt.Sprint(kv[i]), kv[i+1])
	}
	return err
}

// Raisef is Raise with a formatted message and no metadata.
func Raisef(kind error, format string, args ...any) error {
	return zerr.Wrap(kind, fmt.Sprintf(format, args...))
}
