// Package registry implements tab's function registry: the lookup table
// type inference and evaluation both consult to resolve a call's name and
// argument-type tuple to a concrete implementation.
//
// Grounded on _examples/original_source/tab.cc's Functions class
// (add/get keyed by (String, vector<Type>)) and the polymorphic checker
// contract demonstrated by funcs/if.h (if_checker/has_checker/case_checker)
// and funcs/misc.h (cat_checker/tuple_checker).
package registry

import (
	"fmt"
	"strings"

	"github.com/GerHobbelt/tab/internal/strtab"
	"github.com/GerHobbelt/tab/internal/typ"
	"github.com/GerHobbelt/tab/internal/value"
)

// Arg is one call argument as seen by a builtin body. Eval evaluates the
// argument's underlying closure and returns its value; elem, when non-nil,
// rebinds @ for this one evaluation before running it. Plain (non-higher-order) builtins call
// Eval(nil) exactly once; higher-order builtins (filter, map, sort-by) call
// Eval repeatedly, once per source element, passing that element as elem.
// This single shape covers both cases: spec.md's "closures attached to
// compound commands" are always closures, and strict argument evaluation is
// simply "invoke the closure once, outer binding of @ unchanged".
type Arg struct {
	Eval func(elem value.Value) (value.Value, error)
}

// Impl is a builtin's executable body: it receives its call arguments
// (each its own closure invoker, see Arg) and returns the result or an
// error (RuntimeError).
type Impl func(args []Arg) (value.Value, error)

// Entry is a resolved registry match: the implementation to call, its
// static return type, and whether it reuses one of its arguments in place
// (Prealloc == true means "no allocation needed; result IS args[ArgIndex]",
// mirroring tab.cc's obj=nothing() sentinel convention from funcs/if.h).
type Entry struct {
	Impl     Impl
	Ret      typ.Type
	Prealloc bool
	ArgIndex int
}

// Checker is a polymorphic entry's type-matching function: given the
// caller's argument type tuple, it returns a matching Entry, or ok=false if
// the shape does not apply (the caller then tries the next checker, or
// finally the monomorphic table).
type Checker func(args []typ.Type) (Entry, bool)

type monoKey struct {
	name strtab.ID
	sig  string // canonical rendering of the arg type tuple
}

func sigOf(args []typ.Type) string {
	var b strings.Builder
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a.String())
	}
	return b.String()
}

// Registry holds both monomorphic and polymorphic function entries, keyed
// by interned name.
type Registry struct {
	mono  map[monoKey]Entry
	poly  map[strtab.ID][]Checker
	names map[strtab.ID]string // for error messages
}

func New() *Registry {
	return &Registry{
		mono:  make(map[monoKey]Entry),
		poly:  make(map[strtab.ID][]Checker),
		names: make(map[strtab.ID]string),
	}
}

// Add registers a monomorphic entry: name(argTypes...) -> impl, exact match
// only.
func (r *Registry) Add(st *strtab.Table, name string, argTypes []typ.Type, impl Impl, ret typ.Type) {
	id := st.Intern(name)
	r.names[id] = name
	r.mono[monoKey{id, sigOf(argTypes)}] = Entry{Impl: impl, Ret: ret}
}

// AddPoly registers a polymorphic checker for name. Checkers are tried in
// registration order before the monomorphic table, matching tab.cc's
// Functions::get, which always consults polymorphic entries first since
// they can subsume an exact-match shape (e.g. cat's any-arity rule).
func (r *Registry) AddPoly(st *strtab.Table, name string, c Checker) {
	id := st.Intern(name)
	r.names[id] = name
	r.poly[id] = append(r.poly[id], c)
}

// Resolve looks up name(argTypes...), trying polymorphic checkers first
// then the monomorphic table, and returns a TypeError-shaped error on
// total miss (spec.md §4.2/§7).
func (r *Registry) Resolve(st *strtab.Table, name strtab.ID, argTypes []typ.Type) (Entry, error) {
	for _, c := range r.poly[name] {
		if e, ok := c(argTypes); ok {
			return e, nil
		}
	}
	if e, ok := r.mono[monoKey{name, sigOf(argTypes)}]; ok {
		return e, nil
	}
	return Entry{}, fmt.Errorf("invalid function call: %s(%s)", r.nameOf(name), sigOf(argTypes))
}

func (r *Registry) nameOf(id strtab.ID) string {
	if n, ok := r.names[id]; ok {
		return n
	}
	return "?"
}

// Has reports whether any entry (mono or poly) exists under name.
func (r *Registry) Has(name strtab.ID) bool {
	if len(r.poly[name]) > 0 {
		return true
	}
	for k := range r.mono {
		if k.name == name {
			return true
		}
	}
	return false
}
