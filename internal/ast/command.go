// Package ast defines tab's program representation: a flat stream of
// Commands, where compound commands (ARR, MAP, IDX, FUN) carry nested
// Closures — detached sub-streams of Commands, each produced by the
// parser's mark/close discipline.
//
// This is deliberately NOT a conventional expression tree: the spec
// requires a flat, annotate-in-place command stream (each Command is
// annotated with its result Type during type inference, and with its
// resolved function/preallocated output during checking), matching
// _examples/original_source/tab.cc's Command struct and its Stack
// mark()/close() mechanism, which _examples/kolkov-uawk/internal/ast's
// interface-tree Node design does not model.
package ast

import (
	"github.com/GerHobbelt/tab/internal/registry"
	"github.com/GerHobbelt/tab/internal/strtab"
	"github.com/GerHobbelt/tab/internal/typ"
	"github.com/GerHobbelt/tab/internal/value"
)

// Op identifies a Command's operation. Mirrors tab.cc's Command::cmd_t.
type Op int32

const (
	VAL Op = iota // push literal atom (Arg)
	VAW           // pop the top value and bind it to Name (assignment `name = atom`)
	VAR           // push named variable's value
	NOT
	NEG
	EXP
	MUL
	DIV
	MOD
	ADD
	SUB
	AND
	OR
	XOR
	REGEX // a ~ "pattern": match/index dispatch resolved by the parser
	IDX   // a ~ b generic index (non-literal RHS), or a[b]: Closures[0] is the detached index expression
	ARR   // array literal / array comprehension: Closures[0] builds elements over Closures[1]'s source
	MAP   // map literal / map comprehension
	FUN   // call: Name, Closures are argument sub-expressions (each a single-command-producing stream)
	ACCUM // << body : init, source >> recursive accumulator
)

// Command is one step of the flat stream. Arg carries VAL's literal or
// REGEX's pattern; Name carries a FUN/VAR/VAW's interned name. Closures
// carries nested detached
// sub-streams (argument expressions, comprehension bodies/sources,
// accumulator body/init/source). Type and fields below Type are filled in
// by internal/typecheck during inference; they are zero/nil immediately
// after parsing.
type Command struct {
	Op       Op
	Arg      value.Atom
	Name     strtab.ID
	Closures []Closure

	// IsComprehension distinguishes an ARR command's two same-arity shapes:
	// a 2-element plain array/iarray literal `[a, b]` also carries exactly
	// two Closures, the same count as a comprehension `[body : source]` —
	// closure count alone cannot tell them apart, so the parser records
	// which form it actually saw.
	IsComprehension bool
	// IArray marks an ARR command parsed with the `[.` `.]` delimiter pair
	// (spec.md §4.3's iarray literal), printed with `;`-separated elements
	// instead of one element per line (spec.md §6).
	IArray bool

	// --- filled in by type inference / checking ---
	Type     typ.Type
	FuncRet  typ.Type // FUN: resolved return type (duplicates Type but kept for clarity at call sites)
	Prealloc bool      // FUN: result reuses an argument in place
	ArgIndex int       // FUN: which argument index is reused, when Prealloc
	Impl     registry.Impl // FUN: the resolved implementation, bound once during checking
}

// Closure is a detached sub-stream of Commands captured by the parser's
// mark/close discipline (Stack::mark ... Stack::close in tab.cc). Object is
// an interned identifier bound within the closure's scope; the parser
// always leaves it None, and comprehension, accumulator and call-argument
// bodies bind @ instead.
type Closure struct {
	Code   []Command
	Object strtab.ID
}

// Program is a fully parsed, type-checked command stream ready for
// evaluation, plus its own interner so names resolve consistently across
// scatter workers that each hold an independent copy of the compiled
// program.
type Program struct {
	Code []Command
	Strs *strtab.Table
}
