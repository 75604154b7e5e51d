// Package dispatch links call sites emitted by a code generator to the
// object model in package vm and caches what they resolve.
//
// Every site kind (method calls, super calls, constant references, instance
// variable and global variable accesses) shares one controller:
// InlineCache, a guard chain of (key, token, target) entries published by
// atomic pointer swap. An entry is used only while its key matches the
// runtime shape and its token is still valid. On a miss the site captures
// the relevant token, resolves against the object model and installs a new
// entry, growing the chain up to MaxPoly entries and then clearing it and
// relearning.
//
// Compiled code obtains sites from a Linker.
package dispatch
