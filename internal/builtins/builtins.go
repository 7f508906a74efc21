// Package builtins registers tab's builtin functions against
// internal/registry. Individual builtin bodies are external collaborators
// per spec.md §1's non-goals — this package keeps the catalogue of names
// recovered from _examples/original_source/help.cc as help topics only,
// and registers implementations for the handful of builtins spec.md's own
// worked examples (§8) exercise end-to-end, and the polymorphic dispatch
// examples (if/has/case/cat/tuple) that are the literal source for
// spec.md §4.2/§9's design, grounded on funcs/if.h and funcs/misc.h.
package builtins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/GerHobbelt/tab/internal/regexec"
	"github.com/GerHobbelt/tab/internal/registry"
	"github.com/GerHobbelt/tab/internal/strtab"
	"github.com/GerHobbelt/tab/internal/typ"
	"github.com/GerHobbelt/tab/internal/value"
)

// catalogue is the full builtin/help-topic name list recovered from
// help.cc's quoted string literals. Names not given a concrete monomorphic
// or polymorphic registration below are still useful as -h topics (see
// cmd/tab's help dispatch) even though they have no callable body yet.
var catalogue = []string{
	"abs", "and", "array", "avg", "box", "bucket", "bytes", "case", "cat", "ceil", "cos",
	"count", "cut", "date", "datetime", "e", "eq", "exp", "explode", "file", "filter",
	"first", "flatten", "flip", "floor", "get", "glue", "gmtime", "grep", "grepif", "has",
	"hash", "head", "hex", "hist", "iarray", "if", "index", "int", "join", "lines", "log",
	"lsh", "map", "max", "mean", "merge", "min", "ngrams", "normal", "now", "open", "or",
	"pairs", "peek", "pi", "rand", "real", "recut", "replace", "reverse", "round", "rsh",
	"sample", "second", "seq", "sin", "skip", "sort", "sqrt", "stddev", "stdev", "string",
	"stripe", "sum", "tabulate", "take", "tan", "threads", "time", "tolower", "toupper",
	"triplets", "tuple", "uint", "uniques", "uniques_estimate", "var", "variance", "while",
	"zip",
}

// Catalogue returns the full recovered builtin/help-topic name list.
func Catalogue() []string { return append([]string(nil), catalogue...) }

// Register installs every builtin this package implements into reg,
// interning names against strs.
func Register(reg *registry.Registry, strs *strtab.Table) {
	registerIf(reg, strs)
	registerMisc(reg, strs)
	registerGrep(reg, strs)
	registerAggregates(reg, strs)
	registerZip(reg, strs)
	registerSeqCombinators(reg, strs)
}

func atom(v value.Value) value.Atom { return v.(value.AtomValue).Atom }

// registerIf implements if/has/case as polymorphic checkers, the literal
// worked example of spec.md §4.2/§9's dispatch design. Grounded on
// _examples/original_source/funcs/if.h's if_checker/has_checker/
// case_checker.
func registerIf(reg *registry.Registry, strs *strtab.Table) {
	reg.AddPoly(strs, "if", func(args []typ.Type) (registry.Entry, bool) {
		if len(args) != 3 || args[0].Kind != typ.KindAtom || !typ.Equal(args[1], args[2]) {
			return registry.Entry{}, false
		}
		ret := args[1]
		impl := func(a []registry.Arg) (value.Value, error) {
			cond, err := a[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			if atom(cond).AsInt() != 0 {
				return a[1].Eval(nil)
			}
			return a[2].Eval(nil)
		}
		return registry.Entry{Impl: impl, Ret: ret}, true
	})

	reg.AddPoly(strs, "has", func(args []typ.Type) (registry.Entry, bool) {
		if len(args) != 2 || args[0].Kind != typ.KindMap {
			return registry.Entry{}, false
		}
		if !typ.Equal(*args[0].Key, args[1]) {
			return registry.Entry{}, false
		}
		impl := func(a []registry.Arg) (value.Value, error) {
			mv, err := a[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			kv, err := a[1].Eval(nil)
			if err != nil {
				return nil, err
			}
			_, ok := mv.(*value.Map).Get(kv)
			return value.AtomValue{Atom: value.UInt(boolTo01(ok))}, nil
		}
		return registry.Entry{Impl: impl, Ret: typ.TUInt}, true
	})

	reg.AddPoly(strs, "case", func(args []typ.Type) (registry.Entry, bool) {
		if len(args) < 3 || len(args)%2 == 0 {
			return registry.Entry{}, false
		}
		ret := args[len(args)-1]
		for i := 1; i+1 < len(args); i += 2 {
			if !typ.Equal(args[i+1], ret) {
				return registry.Entry{}, false
			}
		}
		impl := func(a []registry.Arg) (value.Value, error) {
			key, err := a[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			for i := 1; i+1 < len(a); i += 2 {
				cmp, err := a[i].Eval(nil)
				if err != nil {
					return nil, err
				}
				if atom(cmp).Equal(atom(key)) {
					return a[i+1].Eval(nil)
				}
			}
			return a[len(a)-1].Eval(nil)
		}
		return registry.Entry{Impl: impl, Ret: ret}, true
	})
}

func boolTo01(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// registerMisc implements cat and tuple, the polymorphic any-arity
// examples in _examples/original_source/funcs/misc.h, plus monomorphic
// tolower/toupper/reverse as small representative string builtins.
func registerMisc(reg *registry.Registry, strs *strtab.Table) {
	reg.AddPoly(strs, "cat", func(args []typ.Type) (registry.Entry, bool) {
		for _, a := range args {
			if a.Kind != typ.KindAtom || a.Atom != typ.String {
				return registry.Entry{}, false
			}
		}
		impl := func(a []registry.Arg) (value.Value, error) {
			var b strings.Builder
			for _, arg := range a {
				v, err := arg.Eval(nil)
				if err != nil {
					return nil, err
				}
				b.WriteString(atom(v).S)
			}
			return value.AtomValue{Atom: value.Str(b.String())}, nil
		}
		return registry.Entry{Impl: impl, Ret: typ.TString}, true
	})

	reg.AddPoly(strs, "tuple", func(args []typ.Type) (registry.Entry, bool) {
		ret := typ.Type{Kind: typ.KindTup, Elems: append([]typ.Type(nil), args...)}
		impl := func(a []registry.Arg) (value.Value, error) {
			elems := make([]value.Value, len(a))
			for i, arg := range a {
				v, err := arg.Eval(nil)
				if err != nil {
					return nil, err
				}
				elems[i] = v
			}
			return value.NewTuple(elems, ret), nil
		}
		return registry.Entry{Impl: impl, Ret: ret}, true
	})

	reg.Add(strs, "tolower", []typ.Type{typ.TString}, func(a []registry.Arg) (value.Value, error) {
		v, err := a[0].Eval(nil)
		if err != nil {
			return nil, err
		}
		return value.AtomValue{Atom: value.Str(strings.ToLower(atom(v).S))}, nil
	}, typ.TString)

	reg.Add(strs, "toupper", []typ.Type{typ.TString}, func(a []registry.Arg) (value.Value, error) {
		v, err := a[0].Eval(nil)
		if err != nil {
			return nil, err
		}
		return value.AtomValue{Atom: value.Str(strings.ToUpper(atom(v).S))}, nil
	}, typ.TString)

	reg.Add(strs, "reverse", []typ.Type{typ.TString}, func(a []registry.Arg) (value.Value, error) {
		v, err := a[0].Eval(nil)
		if err != nil {
			return nil, err
		}
		s := []byte(atom(v).S)
		for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
			s[i], s[j] = s[j], s[i]
		}
		return value.AtomValue{Atom: value.Str(string(s))}, nil
	}, typ.TString)
}

// regexCacheShared backs grep; a single process-wide cache
// matches the pattern-is-almost-always-a-literal assumption documented in
// internal/eval.
var regexCacheShared = regexec.NewCache(256)

// registerGrep implements two grep overloads, disambiguated by argument
// type (spec.md §4.2's overload-by-signature design):
//
//   - grep(line, pattern) -> uint: does line match pattern (a boolean
//     test, used inside filter predicates like `@ ? grep(@, "err")`).
//   - grep(lines, pattern) -> seq(string): every regex match across every
//     line of lines, flattened into one lazy sequence — spec.md §8
//     scenario 3's `[ grep(@, "[0-9]+") ]`.
func registerGrep(reg *registry.Registry, strs *strtab.Table) {
	reg.Add(strs, "grep", []typ.Type{typ.TString, typ.TString}, func(a []registry.Arg) (value.Value, error) {
		s, err := a[0].Eval(nil)
		if err != nil {
			return nil, err
		}
		pat, err := a[1].Eval(nil)
		if err != nil {
			return nil, err
		}
		re, err := regexCacheShared.Get(atom(pat).S)
		if err != nil {
			return nil, fmt.Errorf("grep: %w", err)
		}
		return value.AtomValue{Atom: value.UInt(boolTo01(re.MatchString(atom(s).S)))}, nil
	}, typ.TUInt)

	reg.Add(strs, "grep", []typ.Type{typ.NewSeq(typ.TString), typ.TString}, func(a []registry.Arg) (value.Value, error) {
		srcV, err := a[0].Eval(nil)
		if err != nil {
			return nil, err
		}
		patV, err := a[1].Eval(nil)
		if err != nil {
			return nil, err
		}
		re, err := regexCacheShared.Get(atom(patV).S)
		if err != nil {
			return nil, fmt.Errorf("grep: %w", err)
		}
		lines := value.Drain(srcV.(value.Seq))
		var matches []string
		for _, line := range lines {
			s := atom(line).S
			for _, idx := range re.FindAllStringIndex(s, -1) {
				matches = append(matches, s[idx[0]:idx[1]])
			}
		}
		i := 0
		return &value.FuncSeq{Elem: typ.TString, Pull: func() (value.Value, bool) {
			if i >= len(matches) {
				return nil, false
			}
			v := value.AtomValue{Atom: value.Str(matches[i])}
			i++
			return v, true
		}}, nil
	}, typ.NewSeq(typ.TString))
}

// registerAggregates implements count/sum/avg over
// Arr(Int)/Arr(UInt)/Arr(Real), the other half of spec.md §8's worked
// scenarios.
func registerAggregates(reg *registry.Registry, strs *strtab.Table) {
	for _, k := range []typ.AtomKind{typ.Int, typ.UInt, typ.Real} {
		k := k
		arrT := typ.NewArr(typ.NewAtom(k))

		reg.Add(strs, "count", []typ.Type{arrT}, func(a []registry.Arg) (value.Value, error) {
			v, err := a[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			return value.AtomValue{Atom: value.UInt(uint64(v.(*value.ArrayAtom).Len()))}, nil
		}, typ.TUInt)

		reg.Add(strs, "sum", []typ.Type{arrT}, func(a []registry.Arg) (value.Value, error) {
			v, err := a[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			arr := v.(*value.ArrayAtom)
			switch k {
			case typ.Real:
				var s float64
				for i := 0; i < arr.Len(); i++ {
					s += arr.At(i).R
				}
				return value.AtomValue{Atom: value.Real(s)}, nil
			case typ.UInt:
				var s uint64
				for i := 0; i < arr.Len(); i++ {
					s += arr.At(i).U
				}
				return value.AtomValue{Atom: value.UInt(s)}, nil
			default:
				var s int64
				for i := 0; i < arr.Len(); i++ {
					s += arr.At(i).I
				}
				return value.AtomValue{Atom: value.Int(s)}, nil
			}
		}, typ.NewAtom(k))

		reg.Add(strs, "avg", []typ.Type{arrT}, func(a []registry.Arg) (value.Value, error) {
			v, err := a[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			arr := v.(*value.ArrayAtom)
			if arr.Len() == 0 {
				return nil, fmt.Errorf("avg: empty array")
			}
			var s float64
			for i := 0; i < arr.Len(); i++ {
				s += arr.At(i).AsFloat()
			}
			return value.AtomValue{Atom: value.Real(s / float64(arr.Len()))}, nil
		}, typ.TReal)
	}

	// count() with no arguments is spec.md §8 scenario 4's infinite
	// 1-based counting sequence, not the element-counting form above —
	// the two are disambiguated purely by arity, both held under the
	// same registered name.
	reg.Add(strs, "count", nil, func(a []registry.Arg) (value.Value, error) {
		next := uint64(1)
		return &value.FuncSeq{Elem: typ.TUInt, Pull: func() (value.Value, bool) {
			v := value.AtomValue{Atom: value.UInt(next)}
			next++
			return v, true
		}}, nil
	}, typ.NewSeq(typ.TUInt))

	// count(arr) / count(seq) over any element type: length for an
	// array, drain-and-count for a sequence.
	reg.AddPoly(strs, "count", func(args []typ.Type) (registry.Entry, bool) {
		if len(args) != 1 || (args[0].Kind != typ.KindArr && args[0].Kind != typ.KindSeq) {
			return registry.Entry{}, false
		}
		impl := func(a []registry.Arg) (value.Value, error) {
			v, err := a[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			switch c := v.(type) {
			case *value.ArrayAtom:
				return value.AtomValue{Atom: value.UInt(uint64(c.Len()))}, nil
			case *value.ArrayObject:
				return value.AtomValue{Atom: value.UInt(uint64(len(c.Items)))}, nil
			case value.Seq:
				return value.AtomValue{Atom: value.UInt(uint64(len(value.Drain(c))))}, nil
			default:
				return nil, fmt.Errorf("count: value is not countable")
			}
		}
		return registry.Entry{Impl: impl, Ret: typ.TUInt}, true
	})
}

// registerZip implements zip(a, b) -> seq(tuple(elemA, elemB)): pairs a's
// and b's elements index-wise, stopping at the shorter sequence — the
// combinator spec.md §8 scenario 4's `zip(count(), @)` exercises.
func registerZip(reg *registry.Registry, strs *strtab.Table) {
	reg.AddPoly(strs, "zip", func(args []typ.Type) (registry.Entry, bool) {
		if len(args) != 2 {
			return registry.Entry{}, false
		}
		elemOf := func(t typ.Type) (typ.Type, bool) {
			switch t.Kind {
			case typ.KindSeq, typ.KindArr:
				return *t.Elem, true
			default:
				return typ.None, false
			}
		}
		aElem, aOK := elemOf(args[0])
		bElem, bOK := elemOf(args[1])
		if !aOK || !bOK {
			return registry.Entry{}, false
		}
		pairT := typ.Type{Kind: typ.KindTup, Elems: []typ.Type{aElem, bElem}}
		impl := func(a []registry.Arg) (value.Value, error) {
			av, err := a[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			bv, err := a[1].Eval(nil)
			if err != nil {
				return nil, err
			}
			aNext := seqPuller(av)
			bNext := seqPuller(bv)
			return &value.FuncSeq{Elem: pairT, Pull: func() (value.Value, bool) {
				x, ok := aNext()
				if !ok {
					return nil, false
				}
				y, ok := bNext()
				if !ok {
					return nil, false
				}
				return value.NewTuple([]value.Value{x, y}, pairT), true
			}}, nil
		}
		return registry.Entry{Impl: impl, Ret: typ.NewSeq(pairT)}, true
	})
}

// seqPuller adapts an array or sequence value into a single pull function,
// the shared shape zip's two sides need regardless of which container
// kind they arrived as.
func seqPuller(v value.Value) func() (value.Value, bool) {
	switch c := v.(type) {
	case value.Seq:
		return c.Next
	case *value.ArrayAtom:
		i := 0
		return func() (value.Value, bool) {
			if i >= c.Len() {
				return nil, false
			}
			item := value.AtomValue{Atom: c.At(i)}
			i++
			return item, true
		}
	case *value.ArrayObject:
		i := 0
		return func() (value.Value, bool) {
			if i >= len(c.Items) {
				return nil, false
			}
			item := c.Items[i]
			i++
			return item, true
		}
	default:
		return func() (value.Value, bool) { return nil, false }
	}
}

// registerSeqCombinators implements filter and flatten (the desugar
// targets of the `?` and `:` prefix operators) plus sort and head,
// grounded on spec.md §4.6/§9's lazy-sequence-combinator design.
func registerSeqCombinators(reg *registry.Registry, strs *strtab.Table) {
	for _, elem := range []typ.AtomKind{typ.Int, typ.UInt, typ.Real, typ.String} {
		elem := elem
		arrT := typ.NewArr(typ.NewAtom(elem))

		reg.Add(strs, "filter", []typ.Type{arrT}, func(a []registry.Arg) (value.Value, error) {
			src, err := a[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			in := src.(*value.ArrayAtom)
			out := &value.ArrayAtom{Kind: elem}
			for i := 0; i < in.Len(); i++ {
				item := value.AtomValue{Atom: in.At(i)}
				keep, err := a[0].Eval(item)
				if err != nil {
					return nil, err
				}
				if atom(keep).AsInt() != 0 {
					out.Append(in.At(i))
				}
			}
			return out, nil
		}, arrT)

		reg.Add(strs, "sort", []typ.Type{arrT}, func(a []registry.Arg) (value.Value, error) {
			src, err := a[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			in := src.(*value.ArrayAtom)
			items := make([]value.Atom, in.Len())
			for i := range items {
				items[i] = in.At(i)
			}
			sort.Slice(items, func(i, j int) bool {
				if elem == typ.String {
					return items[i].S < items[j].S
				}
				return items[i].AsFloat() < items[j].AsFloat()
			})
			out := &value.ArrayAtom{Kind: elem}
			for _, it := range items {
				out.Append(it)
			}
			return out, nil
		}, arrT)

		nestedT := typ.NewArr(arrT)
		reg.Add(strs, "flatten", []typ.Type{nestedT}, func(a []registry.Arg) (value.Value, error) {
			src, err := a[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			outer := src.(*value.ArrayObject)
			out := &value.ArrayAtom{Kind: elem}
			for _, inner := range outer.Items {
				arr := inner.(*value.ArrayAtom)
				for i := 0; i < arr.Len(); i++ {
					out.Append(arr.At(i))
				}
			}
			return out, nil
		}, arrT)

		// flatten also accepts Arr(Seq(T)), the shape produced by e.g.
		// `[ grep(@, pattern) ]` where grep's "every line" overload returns a
		// lazy Seq(String) per worker/line rather than a concrete array.
		nestedSeqT := typ.NewArr(typ.NewSeq(typ.NewAtom(elem)))
		reg.Add(strs, "flatten", []typ.Type{nestedSeqT}, func(a []registry.Arg) (value.Value, error) {
			src, err := a[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			outer := src.(*value.ArrayObject)
			out := &value.ArrayAtom{Kind: elem}
			for _, inner := range outer.Items {
				pull := seqPuller(inner)
				for {
					item, ok := pull()
					if !ok {
						break
					}
					out.Append(atom(item))
				}
			}
			return out, nil
		}, arrT)

		reg.Add(strs, "head", []typ.Type{arrT}, func(a []registry.Arg) (value.Value, error) {
			src, err := a[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			in := src.(*value.ArrayAtom)
			if in.Len() == 0 {
				return nil, fmt.Errorf("head: empty array")
			}
			return value.AtomValue{Atom: in.At(0)}, nil
		}, typ.NewAtom(elem))
	}
}
