// Package eval implements tab's tree-walking evaluator: a Runtime (variable
// bindings; the value stack is local to each Eval call) that walks the
// type-annotated ast.Command
// stream, evaluating nested Closures in fresh child runtimes that inherit
// the parent's bindings.
//
// Grounded on _examples/original_source/tab.cc's execute() (the two-pass
// prealloc-then-run discipline, and VAR/VAW/VAL/IDX/FUN/MAP/ARR case
// bodies) and on _examples/kolkov-uawk/internal/vm/vm.go's Runtime-struct-
// with-value-stack idiom for the Go translation of the stack machine.
package eval

import (
	"fmt"
	"math"

	"github.com/GerHobbelt/tab/internal/ast"
	"github.com/GerHobbelt/tab/internal/regexec"
	"github.com/GerHobbelt/tab/internal/registry"
	"github.com/GerHobbelt/tab/internal/strtab"
	"github.com/GerHobbelt/tab/internal/typ"
	"github.com/GerHobbelt/tab/internal/value"
)

// regexCache is shared by every Runtime in a process: patterns are
// almost always compile-time string literals (the REGEX opcode only
// exists for a~"literal" forms), so one cache per process, guarded
// internally by sync.Map, is both correct and faster than a per-worker
// cache (_examples/kolkov-uawk/internal/runtime/regex.go's RegexCache
// rationale).
var regexCache = regexec.NewCache(256)

func matchRegex(pattern, s string) (bool, error) {
	re, err := regexCache.Get(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

// RuntimeError reports a failure during evaluation (division by zero, an
// out-of-range index, a registry Impl returning an error, ...). Grounded
// on _examples/kolkov-uawk/errors.go's RuntimeError shape.
type RuntimeError struct{ Message string }

func (e *RuntimeError) Error() string { return e.Message }

// Runtime holds one evaluation frame's variable bindings. Closures
// evaluate in a fresh child Runtime that inherits (but does not mutate)
// the parent's bindings, matching spec.md §4.6/§9's closure-capture model.
type Runtime struct {
	parent *Runtime
	vars   map[strtab.ID]value.Value
	reg    *registry.Registry
	strs   *strtab.Table
	try    bool // true inside a `try`-guarded comprehension: suppress per-element RuntimeError
}

// NewRuntime creates the top-level Runtime for a compiled Program.
func NewRuntime(reg *registry.Registry, strs *strtab.Table) *Runtime {
	return &Runtime{vars: make(map[strtab.ID]value.Value), reg: reg, strs: strs}
}

func (r *Runtime) child() *Runtime {
	return &Runtime{parent: r, vars: make(map[strtab.ID]value.Value), reg: r.reg, strs: r.strs}
}

func (r *Runtime) bind(name strtab.ID, v value.Value) { r.vars[name] = v }

func (r *Runtime) lookup(name strtab.ID) (value.Value, bool) {
	for rt := r; rt != nil; rt = rt.parent {
		if v, ok := rt.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// BindAt binds @ in r's frame to a single input line string. The drivers
// in package tab bind @ to the whole input sequence with BindID instead.
func (r *Runtime) BindAt(line string) {
	r.bind(r.strs.Intern("@"), value.AtomValue{Atom: value.Str(line)})
}

// BindID binds name directly to v in r's frame. Used by the top-level
// driver (package tab) to seed @ and $ with the whole input sequence
// before evaluating the compiled program.
func (r *Runtime) BindID(name strtab.ID, v value.Value) {
	r.bind(name, v)
}

// Eval runs code (a flat annotated Command stream) to completion and
// returns its final value, collapsing a multi-value stack into a Tuple
// exactly as type inference's stackToType does.
func Eval(r *Runtime, code []ast.Command) (value.Value, error) {
	var stack []value.Value
	pop := func() (value.Value, error) {
		if len(stack) == 0 {
			return nil, &RuntimeError{Message: "value stack underflow"}
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}
	push := func(v value.Value) { stack = append(stack, v) }

	for i := range code {
		cmd := &code[i]
		switch cmd.Op {
		case ast.VAL:
			push(value.AtomValue{Atom: cmd.Arg})
		case ast.VAR:
			v, ok := r.lookup(cmd.Name)
			if !ok {
				return nil, &RuntimeError{Message: fmt.Sprintf("unbound variable: %s", r.strs.String(cmd.Name))}
			}
			push(v)
		case ast.VAW:
			v, err := pop()
			if err != nil {
				return nil, err
			}
			r.bind(cmd.Name, v)
		case ast.NOT:
			// spec.md §4.4/§4.6: NOT accepts any operand and pushes Int,
			// so truthiness must be judged per atom kind (zero for
			// numerics, empty for strings) rather than assuming a numeric
			// zero-value representation.
			v, err := pop()
			if err != nil {
				return nil, err
			}
			a := asAtom(v)
			if atomIsZero(a) {
				push(value.AtomValue{Atom: value.Int(1)})
			} else {
				push(value.AtomValue{Atom: value.Int(0)})
			}
		case ast.NEG:
			v, err := pop()
			if err != nil {
				return nil, err
			}
			push(value.AtomValue{Atom: negAtom(asAtom(v))})
		case ast.ADD, ast.SUB, ast.MUL, ast.DIV, ast.MOD, ast.EXP,
			ast.AND, ast.OR, ast.XOR:
			b, err := pop()
			if err != nil {
				return nil, err
			}
			a, err := pop()
			if err != nil {
				return nil, err
			}
			res, err := arith(cmd.Op, asAtom(a), asAtom(b), cmd.Type)
			if err != nil {
				return nil, err
			}
			push(value.AtomValue{Atom: res})
		case ast.REGEX:
			v, err := pop()
			if err != nil {
				return nil, err
			}
			s := asAtom(v).S
			matched, err := matchRegex(cmd.Arg.S, s)
			if err != nil {
				return nil, &RuntimeError{Message: err.Error()}
			}
			push(value.AtomValue{Atom: value.UInt(boolTo01(matched))})
		case ast.IDX:
			coll, err := pop()
			if err != nil {
				return nil, err
			}
			idx, err := Eval(r.child(), cmd.Closures[0].Code)
			if err != nil {
				return nil, err
			}
			v, err := indexValue(coll, idx)
			if err != nil {
				return nil, err
			}
			push(v)
		case ast.ARR:
			v, err := evalArr(r, cmd)
			if err != nil {
				return nil, err
			}
			push(v)
		case ast.MAP:
			v, err := evalMap(r, cmd)
			if err != nil {
				return nil, err
			}
			push(v)
		case ast.FUN:
			v, err := evalFun(r, cmd)
			if err != nil {
				return nil, err
			}
			push(v)
		case ast.ACCUM:
			v, err := evalAccum(r, cmd)
			if err != nil {
				return nil, err
			}
			push(v)
		default:
			return nil, &RuntimeError{Message: fmt.Sprintf("unhandled opcode %d", cmd.Op)}
		}
	}
	return stackToValue(stack)
}

func stackToValue(stack []value.Value) (value.Value, error) {
	switch len(stack) {
	case 0:
		return nil, &RuntimeError{Message: "empty sequences are not allowed"}
	case 1:
		return stack[0], nil
	default:
		elemTypes := make([]typ.Type, len(stack))
		for i, v := range stack {
			elemTypes[i] = v.Type()
		}
		return value.NewTuple(append([]value.Value(nil), stack...), typ.Type{Kind: typ.KindTup, Elems: elemTypes}), nil
	}
}

func asAtom(v value.Value) value.Atom {
	if av, ok := v.(value.AtomValue); ok {
		return av.Atom
	}
	panic("eval: expected atom value")
}

func boolTo01(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// atomIsZero reports whether a counts as "falsy" for NOT: numeric zero, or
// an empty string.
func atomIsZero(a value.Atom) bool {
	switch a.Kind {
	case typ.String:
		return a.S == ""
	case typ.Real:
		return a.R == 0
	case typ.UInt:
		return a.U == 0
	default:
		return a.I == 0
	}
}

// negAtom implements NEG (~): bitwise complement on integers. Type
// inference (internal/typecheck) rejects String and Real operands before
// evaluation ever reaches here, so only Int/UInt remain.
func negAtom(a value.Atom) value.Atom {
	if a.Kind == typ.UInt {
		return value.UInt(^a.U)
	}
	return value.Int(^a.I)
}

// arith implements spec.md §4.4's numeric promotion for binary operators,
// evaluating in the promoted kind recorded by type inference (cmd.Type).
// Grounded on tab.cc's handle_real_operator / handle_int_operator /
// handle_poly_operator.
func arith(op ast.Op, a, b value.Atom, resultType typ.Type) (value.Atom, error) {
	kind := resultType.Atom
	if kind == typ.Real {
		x, y := a.AsFloat(), b.AsFloat()
		switch op {
		case ast.ADD:
			return value.Real(x + y), nil
		case ast.SUB:
			return value.Real(x - y), nil
		case ast.MUL:
			return value.Real(x * y), nil
		case ast.DIV:
			if y == 0 {
				return value.Atom{}, &RuntimeError{Message: "division by zero"}
			}
			return value.Real(x / y), nil
		case ast.MOD:
			if y == 0 {
				return value.Atom{}, &RuntimeError{Message: "division by zero"}
			}
			return value.Real(float64(int64(x) % int64(y))), nil
		case ast.EXP:
			return value.Real(pow(x, y)), nil
		default:
			return value.Atom{}, &RuntimeError{Message: "operator not defined for real operands"}
		}
	}
	if kind == typ.UInt {
		x, y := a.AsUInt(), b.AsUInt()
		return uintArith(op, x, y)
	}
	x, y := a.AsInt(), b.AsInt()
	return intArith(op, x, y)
}

func uintArith(op ast.Op, x, y uint64) (value.Atom, error) {
	switch op {
	case ast.ADD:
		return value.UInt(x + y), nil
	case ast.MUL:
		return value.UInt(x * y), nil
	case ast.DIV:
		if y == 0 {
			return value.Atom{}, &RuntimeError{Message: "division by zero"}
		}
		return value.UInt(x / y), nil
	case ast.MOD:
		if y == 0 {
			return value.Atom{}, &RuntimeError{Message: "division by zero"}
		}
		return value.UInt(x % y), nil
	case ast.EXP:
		return value.UInt(uint64(pow(float64(x), float64(y)))), nil
	case ast.AND:
		return value.UInt(x & y), nil
	case ast.OR:
		return value.UInt(x | y), nil
	case ast.XOR:
		return value.UInt(x ^ y), nil
	default:
		return value.Atom{}, &RuntimeError{Message: "operator not defined for unsigned operands"}
	}
}

func intArith(op ast.Op, x, y int64) (value.Atom, error) {
	switch op {
	case ast.ADD:
		return value.Int(x + y), nil
	case ast.SUB:
		return value.Int(x - y), nil
	case ast.MUL:
		return value.Int(x * y), nil
	case ast.DIV:
		if y == 0 {
			return value.Atom{}, &RuntimeError{Message: "division by zero"}
		}
		return value.Int(x / y), nil
	case ast.MOD:
		if y == 0 {
			return value.Atom{}, &RuntimeError{Message: "division by zero"}
		}
		return value.Int(x % y), nil
	case ast.EXP:
		return value.Int(int64(pow(float64(x), float64(y)))), nil
	case ast.AND:
		return value.Int(x & y), nil
	case ast.OR:
		return value.Int(x | y), nil
	case ast.XOR:
		return value.Int(x ^ y), nil
	default:
		return value.Atom{}, &RuntimeError{Message: "operator not defined for signed operands"}
	}
}

func pow(x, y float64) float64 {
	r := 1.0
	neg := y < 0
	n := int64(y)
	if neg {
		n = -n
	}
	for i := int64(0); i < n; i++ {
		r *= x
	}
	if neg {
		return 1 / r
	}
	return r
}

// resolveArrayIndex implements spec.md §4.5's three index-kind rules for a
// container of length n: a UInt indexes only from the front (out of range
// is an error), an Int wraps a negative value to element N+i before
// bounds-checking, and a Real in [0.0, 1.0] selects the proportional
// element ⌊N·r⌋.
func resolveArrayIndex(n int, idx value.Atom) (int, error) {
	switch idx.Kind {
	case typ.UInt:
		i := int(idx.U)
		if i >= n {
			return 0, &RuntimeError{Message: "array index out of range"}
		}
		return i, nil
	case typ.Int:
		i := int(idx.I)
		if i < 0 {
			i = n + i
		}
		if i < 0 || i >= n {
			return 0, &RuntimeError{Message: "array index out of range"}
		}
		return i, nil
	case typ.Real:
		if idx.R < 0.0 || idx.R > 1.0 {
			return 0, &RuntimeError{Message: "array index out of range"}
		}
		i := int(math.Floor(float64(n) * idx.R))
		if i < 0 || i >= n {
			return 0, &RuntimeError{Message: "array index out of range"}
		}
		return i, nil
	default:
		return 0, &RuntimeError{Message: "array index must be numeric"}
	}
}

// indexValue implements spec.md §4.5's indexing rules at runtime: array/
// tuple by the three numeric index-kind rules (resolveArrayIndex), map by
// key lookup.
func indexValue(coll, idx value.Value) (value.Value, error) {
	switch c := coll.(type) {
	case *value.ArrayAtom:
		i, err := resolveArrayIndex(c.Len(), asAtom(idx))
		if err != nil {
			return nil, err
		}
		return value.AtomValue{Atom: c.At(i)}, nil
	case *value.ArrayObject:
		i, err := resolveArrayIndex(len(c.Items), asAtom(idx))
		if err != nil {
			return nil, err
		}
		return c.Items[i], nil
	case *value.Map:
		v, ok := c.Get(idx)
		if !ok {
			return nil, &RuntimeError{Message: "key not found in map"}
		}
		return v, nil
	case value.Tuple:
		i, err := resolveArrayIndex(len(c.Elems), asAtom(idx))
		if err != nil {
			return nil, err
		}
		return c.Elems[i], nil
	default:
		return nil, &RuntimeError{Message: "value is not indexable"}
	}
}

func evalArr(r *Runtime, cmd *ast.Command) (value.Value, error) {
	elemT := *cmd.Type.Elem
	if cmd.IsComprehension {
		src, err := Eval(r.child(), cmd.Closures[1].Code)
		if err != nil {
			return nil, err
		}
		items, err := toSlice(src)
		if err != nil {
			return nil, err
		}
		arr := value.NewArray(elemT)
		setIArray(arr, cmd.IArray)
		for _, item := range items {
			child := r.child()
			child.bind(r.strs.Intern("@"), item)
			v, err := Eval(child, cmd.Closures[0].Code)
			if err != nil {
				if r.try {
					continue
				}
				return nil, err
			}
			appendToArray(arr, v)
		}
		return arr, nil
	}
	arr := value.NewArray(elemT)
	setIArray(arr, cmd.IArray)
	for _, cl := range cmd.Closures {
		v, err := Eval(r.child(), cl.Code)
		if err != nil {
			return nil, err
		}
		appendToArray(arr, v)
	}
	return arr, nil
}

// setIArray tags a freshly built array value as an iarray (spec.md §4.3's
// `[.` `.]` literal), so the printer renders it `;`-separated per spec.md
// §6 regardless of how it is later passed around or nested.
func setIArray(arr value.Value, iarray bool) {
	switch a := arr.(type) {
	case *value.ArrayAtom:
		a.IArray = iarray
	case *value.ArrayObject:
		a.IArray = iarray
	}
}

func appendToArray(arr value.Value, v value.Value) {
	switch a := arr.(type) {
	case *value.ArrayAtom:
		a.Append(asAtom(v))
	case *value.ArrayObject:
		a.Items = append(a.Items, v)
	}
}

func toSlice(v value.Value) ([]value.Value, error) {
	switch c := v.(type) {
	case *value.ArrayAtom:
		out := make([]value.Value, c.Len())
		for i := 0; i < c.Len(); i++ {
			out[i] = value.AtomValue{Atom: c.At(i)}
		}
		return out, nil
	case *value.ArrayObject:
		return c.Items, nil
	case value.Seq:
		return value.Drain(c), nil
	default:
		return nil, &RuntimeError{Message: "value is not iterable"}
	}
}

// evalMap handles both map literal shapes internal/typecheck's inferMap
// recognizes: Closures == [key, val] is a single-entry literal, evaluated
// once in the enclosing scope; Closures == [key, val, source] is a map
// comprehension, driving repeated key/val evaluation (each in a child
// runtime with @ bound to the current source element) over every element
// of source, per spec.md §4.6's comprehension evaluation rule.
func evalMap(r *Runtime, cmd *ast.Command) (value.Value, error) {
	m := value.NewMap(*cmd.Type.Key, *cmd.Type.Val)
	if len(cmd.Closures) == 3 {
		src, err := Eval(r.child(), cmd.Closures[2].Code)
		if err != nil {
			return nil, err
		}
		items, err := toSlice(src)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			child := r.child()
			child.bind(r.strs.Intern("@"), item)
			k, err := Eval(child, cmd.Closures[0].Code)
			if err != nil {
				if r.try {
					continue
				}
				return nil, err
			}
			v, err := Eval(child, cmd.Closures[1].Code)
			if err != nil {
				if r.try {
					continue
				}
				return nil, err
			}
			m.Set(k, v)
		}
		return m, nil
	}
	k, err := Eval(r.child(), cmd.Closures[0].Code)
	if err != nil {
		return nil, err
	}
	v, err := Eval(r.child(), cmd.Closures[1].Code)
	if err != nil {
		return nil, err
	}
	m.Set(k, v)
	return m, nil
}

// evalFun invokes the Impl that type checking bound to cmd,
// handing each argument as a registry.Arg whose Eval method runs that
// argument's closure in a fresh child Runtime, optionally rebinding @ to
// elem first. This is the single mechanism that serves both strict
// arguments (Eval(nil) called once by Impl) and higher-order arguments
// (Eval called once per source element by Impl), per the design recorded
// in DESIGN.md.
func evalFun(r *Runtime, cmd *ast.Command) (value.Value, error) {
	args := make([]registry.Arg, len(cmd.Closures))
	for i, cl := range cmd.Closures {
		cl := cl
		args[i] = registry.Arg{Eval: func(elem value.Value) (value.Value, error) {
			child := r.child()
			if elem != nil {
				child.bind(r.strs.Intern("@"), elem)
			}
			return Eval(child, cl.Code)
		}}
	}
	if cmd.Impl == nil {
		return nil, &RuntimeError{Message: fmt.Sprintf("call to %s was never resolved by type checking", r.strs.String(cmd.Name))}
	}
	return cmd.Impl(args)
}

// evalAccum implements `<< body : init, source >>`: a strict left fold
// where body sees @ bound to the 2-tuple (running accumulator, current
// source element), matching internal/typecheck's inferAccum.
func evalAccum(r *Runtime, cmd *ast.Command) (value.Value, error) {
	acc, err := Eval(r.child(), cmd.Closures[1].Code)
	if err != nil {
		return nil, err
	}
	src, err := Eval(r.child(), cmd.Closures[2].Code)
	if err != nil {
		return nil, err
	}
	items, err := toSlice(src)
	if err != nil {
		return nil, err
	}
	atID := r.strs.Intern("@")
	for _, item := range items {
		child := r.child()
		pairT := typ.Type{Kind: typ.KindTup, Elems: []typ.Type{acc.Type(), item.Type()}}
		child.bind(atID, value.NewTuple([]value.Value{acc, item}, pairT))
		acc, err = Eval(child, cmd.Closures[0].Code)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}
