// Package typecheck implements tab's type inference pass: a sequential
// abstract interpretation over the flat ast.Command stream, maintaining a
// type stack and a variable-name environment, annotating every Command
// with its result type.
//
// Grounded directly on _examples/original_source/tab.cc's infer_types
// switch (and its helpers stack_to_type / infer_arr_generator /
// infer_map_generator / infer_idx_generator / handle_poly_operator), which
// is the literal source of this algorithm; restructured into Go using the
// TypeEnv-threaded-through-a-loop style of
// _examples/kolkov-uawk/internal/compiler/typeinfer.go.
package typecheck

import (
	"fmt"

	"github.com/GerHobbelt/tab/internal/ast"
	"github.com/GerHobbelt/tab/internal/registry"
	"github.com/GerHobbelt/tab/internal/strtab"
	"github.com/GerHobbelt/tab/internal/typ"
)

// TypeError reports a static type mismatch. Grounded on
// _examples/kolkov-uawk/errors.go's CompileError shape, renamed to
// spec.md §7's TypeError kind.
type TypeError struct{ Message string }

func (e *TypeError) Error() string { return e.Message }

// Env maps a bound name to its current static type. A fresh child Env is
// created for each Closure so that comprehension/accumulator bindings do
// not leak into the enclosing scope, mirroring tab.cc's TypeResult.vars
// being copied per nested inference call.
type Env struct {
	parent *Env
	vars   map[strtab.ID]typ.Type
}

func NewEnv(parent *Env) *Env { return &Env{parent: parent, vars: make(map[strtab.ID]typ.Type)} }

func (e *Env) Lookup(name strtab.ID) (typ.Type, bool) {
	for env := e; env != nil; env = env.parent {
		if t, ok := env.vars[name]; ok {
			return t, true
		}
	}
	return typ.None, false
}

func (e *Env) Bind(name strtab.ID, t typ.Type) { e.vars[name] = t }

// checker threads a type stack through the command stream.
type checker struct {
	reg  *registry.Registry
	strs *strtab.Table
}

// Check annotates every Command in code's Type field in place and returns
// the overall expression's result type (the 1-element-collapse of
// whatever remains on the type stack at the end, per tab.cc's
// stack_to_type).
func Check(reg *registry.Registry, strs *strtab.Table, code []ast.Command, env *Env) (typ.Type, error) {
	c := &checker{reg: reg, strs: strs}
	stack, err := c.run(code, env)
	if err != nil {
		return typ.None, err
	}
	return stackToType(stack)
}

// stackToType collapses a type stack to a single result type: empty is an
// error ("empty sequences are not allowed", tab.cc's exact wording), one
// element returns that element, more than one collapses into a tuple.
func stackToType(stack []typ.Type) (typ.Type, error) {
	switch len(stack) {
	case 0:
		return typ.None, &TypeError{Message: "empty sequences are not allowed"}
	case 1:
		return stack[0], nil
	default:
		return typ.Type{Kind: typ.KindTup, Elems: append([]typ.Type(nil), stack...)}, nil
	}
}

func (c *checker) run(code []ast.Command, env *Env) ([]typ.Type, error) {
	var stack []typ.Type
	pop := func() (typ.Type, error) {
		if len(stack) == 0 {
			return typ.None, &TypeError{Message: "type stack underflow"}
		}
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return t, nil
	}
	push := func(t typ.Type) { stack = append(stack, t) }

	for i := range code {
		cmd := &code[i]
		switch cmd.Op {
		case ast.VAL:
			t := typ.NewAtom(cmd.Arg.Kind)
			cmd.Type = t
			push(t)
		case ast.VAR:
			t, ok := env.Lookup(cmd.Name)
			if !ok {
				return nil, &TypeError{Message: fmt.Sprintf("undefined variable: %s", c.strs.String(cmd.Name))}
			}
			cmd.Type = t
			push(t)
		case ast.VAW:
			t, err := pop()
			if err != nil {
				return nil, err
			}
			env.Bind(cmd.Name, t)
			cmd.Type = t
		case ast.NOT:
			// spec.md §4.4: "NOT | pop any; push Int" — ! accepts any
			// operand type (the falsy/truthy test applies uniformly,
			// e.g. `!@` on the string input line) and always yields Int.
			if _, err := pop(); err != nil {
				return nil, err
			}
			cmd.Type = typ.TInt
			push(typ.TInt)
		case ast.NEG:
			// spec.md §4.4: "NEG | peek must be integer; unchanged" — ~ is
			// bitwise complement, so Real is rejected and the operand's own
			// (Int/UInt) type is left on the stack unchanged.
			a, err := pop()
			if err != nil {
				return nil, err
			}
			if a.Kind != typ.KindAtom || a.Atom == typ.String || a.Atom == typ.Real {
				return nil, &TypeError{Message: "~ requires an integer operand"}
			}
			cmd.Type = a
			push(a)
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
			if !typ.IsNumeric(a) || !typ.IsNumeric(b) {
				return nil, &TypeError{Message: "arithmetic operator requires numeric operands"}
			}
			k, err := typ.PromoteNumeric(a.Atom, b.Atom, cmd.Op == ast.SUB)
			if err != nil {
				return nil, &TypeError{Message: err.Error()}
			}
			t := typ.NewAtom(k)
			cmd.Type = t
			push(t)
		case ast.REGEX:
			a, err := pop()
			if err != nil {
				return nil, err
			}
			if a.Kind != typ.KindAtom || a.Atom != typ.String {
				return nil, &TypeError{Message: "~ requires a string operand"}
			}
			cmd.Type = typ.TUInt
			push(typ.TUInt)
		case ast.IDX:
			coll, err := pop()
			if err != nil {
				return nil, err
			}
			idxStack, err := c.run(cmd.Closures[0].Code, env)
			if err != nil {
				return nil, err
			}
			idxT, err := stackToType(idxStack)
			if err != nil {
				return nil, err
			}
			lit, litOK := literalIntIndex(cmd.Closures[0].Code)
			rt, err := indexResultType(coll, idxT, lit, litOK)
			if err != nil {
				return nil, err
			}
			cmd.Type = rt
			push(rt)
		case ast.ARR:
			t, err := c.inferArr(cmd, env)
			if err != nil {
				return nil, err
			}
			push(t)
		case ast.MAP:
			t, err := c.inferMap(cmd, env)
			if err != nil {
				return nil, err
			}
			push(t)
		case ast.FUN:
			t, err := c.inferFun(cmd, env)
			if err != nil {
				return nil, err
			}
			push(t)
		case ast.ACCUM:
			t, err := c.inferAccum(cmd, env)
			if err != nil {
				return nil, err
			}
			push(t)
		default:
			return nil, &TypeError{Message: fmt.Sprintf("unhandled opcode %d", cmd.Op)}
		}
	}
	return stack, nil
}

// literalIntIndex recognizes an index closure that is nothing but a single
// integer literal (VAL with an Int/UInt Arg) — the only form tab.cc's
// infer_idx_generator can project through a tuple's heterogeneous element
// types, since anything less static (a variable, an expression) has no
// single well-known element type to report.
func literalIntIndex(code []ast.Command) (int, bool) {
	if len(code) != 1 || code[0].Op != ast.VAL {
		return 0, false
	}
	switch code[0].Arg.Kind {
	case typ.Int, typ.UInt:
		return int(code[0].Arg.AsInt()), true
	default:
		return 0, false
	}
}

// indexResultType implements spec.md §4.5's indexing rules: an Arr(T)
// indexed by a numeric atom yields T; a Map(K,V) indexed by K yields V; a
// Tup indexed by a literal int yields that specific element's type (the
// runtime, in internal/eval's indexValue, always projects by the actual
// index value, so the static type must track the same element or a later
// use of the indexed value could be typechecked against the wrong type).
func indexResultType(coll, idx typ.Type, litIdx int, litOK bool) (typ.Type, error) {
	switch coll.Kind {
	case typ.KindArr:
		if !typ.IsNumeric(idx) {
			return typ.None, &TypeError{Message: "array index must be numeric"}
		}
		return *coll.Elem, nil
	case typ.KindMap:
		if !typ.Equal(*coll.Key, idx) {
			return typ.None, &TypeError{Message: "map index type mismatch"}
		}
		return *coll.Val, nil
	case typ.KindTup:
		if len(coll.Elems) == 0 {
			return typ.None, &TypeError{Message: "cannot index an empty tuple"}
		}
		if !litOK {
			return typ.None, &TypeError{Message: "tuple index must be a literal integer"}
		}
		if litIdx < 0 || litIdx >= len(coll.Elems) {
			return typ.None, &TypeError{Message: "tuple index out of range"}
		}
		return coll.Elems[litIdx], nil
	default:
		return typ.None, &TypeError{Message: "value is not indexable"}
	}
}

// inferArr handles both array literal and array-comprehension shapes.
// Grounded on tab.cc's infer_arr_generator.
func (c *checker) inferArr(cmd *ast.Command, env *Env) (typ.Type, error) {
	if len(cmd.Closures) == 0 {
		// spec.md §4.3: an empty sequence literal ("[]" / "[. .]") is a
		// forbidden construct, not a valid empty-array value — there is no
		// element type to infer from zero elements and no comprehension
		// source to drive one.
		return typ.None, &TypeError{Message: "empty sequence literal is not allowed"}
	}
	if cmd.IsComprehension {
		// comprehension: body over source
		srcStack, err := c.run(cmd.Closures[1].Code, env)
		if err != nil {
			return typ.None, err
		}
		srcT, err := stackToType(srcStack)
		if err != nil {
			return typ.None, err
		}
		if srcT.Kind != typ.KindArr && srcT.Kind != typ.KindSeq {
			return typ.None, &TypeError{Message: "comprehension source must be an array or sequence"}
		}
		childEnv := NewEnv(env)
		childEnv.Bind(c.strs.Intern("@"), *srcT.Elem)
		bodyStack, err := c.run(cmd.Closures[0].Code, childEnv)
		if err != nil {
			return typ.None, err
		}
		bodyT, err := stackToType(bodyStack)
		if err != nil {
			return typ.None, err
		}
		cmd.Type = typ.NewSeq(bodyT)
		cmd.Type.IArray = cmd.IArray
		return cmd.Type, nil
	}
	var elemT typ.Type
	for i, cl := range cmd.Closures {
		s, err := c.run(cl.Code, env)
		if err != nil {
			return typ.None, err
		}
		t, err := stackToType(s)
		if err != nil {
			return typ.None, err
		}
		if i == 0 {
			elemT = t
		} else if !typ.Equal(elemT, t) {
			return typ.None, &TypeError{Message: "array literal elements must share one type"}
		}
	}
	cmd.Type = typ.NewArr(elemT)
	cmd.Type.IArray = cmd.IArray
	return cmd.Type, nil
}

// inferMap handles `{ key ('-> val)? (': source)? }`: Closures holds
// [key, val] for a one-entry literal, or [key, val, source] for a map
// comprehension driven by source (source's element type binds @ for key
// and val). Grounded on tab.cc's infer_map_generator.
func (c *checker) inferMap(cmd *ast.Command, env *Env) (typ.Type, error) {
	keyEnv := env
	if len(cmd.Closures) == 3 {
		srcStack, err := c.run(cmd.Closures[2].Code, env)
		if err != nil {
			return typ.None, err
		}
		srcT, err := stackToType(srcStack)
		if err != nil {
			return typ.None, err
		}
		if srcT.Kind != typ.KindArr && srcT.Kind != typ.KindSeq {
			return typ.None, &TypeError{Message: "map comprehension source must be an array or sequence"}
		}
		childEnv := NewEnv(env)
		childEnv.Bind(c.strs.Intern("@"), *srcT.Elem)
		keyEnv = childEnv
	}
	keyStack, err := c.run(cmd.Closures[0].Code, keyEnv)
	if err != nil {
		return typ.None, err
	}
	keyT, err := stackToType(keyStack)
	if err != nil {
		return typ.None, err
	}
	valStack, err := c.run(cmd.Closures[1].Code, keyEnv)
	if err != nil {
		return typ.None, err
	}
	valT, err := stackToType(valStack)
	if err != nil {
		return typ.None, err
	}
	cmd.Type = typ.NewMap(keyT, valT)
	return cmd.Type, nil
}

// inferFun resolves a call against the registry: each argument closure is
// inferred in a child of the enclosing environment in which @ keeps its
// enclosing type (so an assignment inside an argument does not leak), then
// the resulting tuple of argument types is matched
// against the registry exactly as tab.cc's infer_func_generator does.
func (c *checker) inferFun(cmd *ast.Command, env *Env) (typ.Type, error) {
	argTypes := make([]typ.Type, len(cmd.Closures))
	for i, cl := range cmd.Closures {
		childEnv := NewEnv(env)
		childEnv.Bind(c.strs.Intern("@"), mustLookupAt(env, c.strs))
		s, err := c.run(cl.Code, childEnv)
		if err != nil {
			return typ.None, err
		}
		t, err := stackToType(s)
		if err != nil {
			return typ.None, err
		}
		argTypes[i] = t
	}
	entry, err := c.reg.Resolve(c.strs, cmd.Name, argTypes)
	if err != nil {
		return typ.None, &TypeError{Message: err.Error()}
	}
	cmd.Type = entry.Ret
	cmd.FuncRet = entry.Ret
	cmd.Prealloc = entry.Prealloc
	cmd.ArgIndex = entry.ArgIndex
	cmd.Impl = entry.Impl
	return entry.Ret, nil
}

// mustLookupAt returns @'s current type if bound, or Seq(String) as a
// fallback — the top-level @ is always bound to the whole input sequence
// before Check runs (see Compile), so this fallback is only exercised by
// a checker call site that forgot to seed the root Env.
func mustLookupAt(env *Env, strs *strtab.Table) typ.Type {
	if t, ok := env.Lookup(strs.Intern("@")); ok {
		return t
	}
	return typ.NewSeq(typ.TString)
}

// inferAccum handles `<< body : init, source >>`. The body's environment
// binds @ to a single 2-tuple (accumulator, element): Elems[0] seeded by
// init's type, Elems[1] the current source element's type, per spec.md
// §4.6. Body and init must share one type.
func (c *checker) inferAccum(cmd *ast.Command, env *Env) (typ.Type, error) {
	initStack, err := c.run(cmd.Closures[1].Code, env)
	if err != nil {
		return typ.None, err
	}
	initT, err := stackToType(initStack)
	if err != nil {
		return typ.None, err
	}
	srcStack, err := c.run(cmd.Closures[2].Code, env)
	if err != nil {
		return typ.None, err
	}
	srcT, err := stackToType(srcStack)
	if err != nil {
		return typ.None, err
	}
	if srcT.Kind != typ.KindArr && srcT.Kind != typ.KindSeq {
		return typ.None, &TypeError{Message: "accumulator source must be an array or sequence"}
	}
	childEnv := NewEnv(env)
	childEnv.Bind(c.strs.Intern("@"), typ.Type{Kind: typ.KindTup, Elems: []typ.Type{initT, *srcT.Elem}})
	bodyStack, err := c.run(cmd.Closures[0].Code, childEnv)
	if err != nil {
		return typ.None, err
	}
	bodyT, err := stackToType(bodyStack)
	if err != nil {
		return typ.None, err
	}
	if !typ.Equal(bodyT, initT) {
		return typ.None, &TypeError{Message: "accumulator body type must match its init type"}
	}
	cmd.Type = bodyT
	return bodyT, nil
}
