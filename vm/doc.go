// Package vm is the reference object model the dispatch runtime links
// against.
//
// This package contains:
//   - Values, symbols and arrays
//   - Modules, classes, singleton classes and include wrappers
//   - Copy-on-write method tables keyed by interned selector
//   - Per-class instance variable layouts
//   - Constant and global variable tables
//   - Invalidators: one-way tokens retired on every definitional change
//   - Frames, lexical scopes and blocks
//
// There is no parser, bytecode or collector here. Compiled code is expected
// to reach the object model only through the sites in package dispatch.
package vm
