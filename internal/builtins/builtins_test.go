package builtins

import (
	"testing"

	"github.com/GerHobbelt/tab/internal/registry"
	"github.com/GerHobbelt/tab/internal/strtab"
	"github.com/GerHobbelt/tab/internal/typ"
	"github.com/GerHobbelt/tab/internal/value"
)

func strArg(s string) registry.Arg {
	return registry.Arg{Eval: func(elem value.Value) (value.Value, error) {
		return value.AtomValue{Atom: value.Str(s)}, nil
	}}
}

func intArg(i int64) registry.Arg {
	return registry.Arg{Eval: func(elem value.Value) (value.Value, error) {
		return value.AtomValue{Atom: value.Int(i)}, nil
	}}
}

func valArg(v value.Value) registry.Arg {
	return registry.Arg{Eval: func(elem value.Value) (value.Value, error) { return v, nil }}
}

func TestCatalogueNotEmpty(t *testing.T) {
	names := Catalogue()
	if len(names) == 0 {
		t.Fatalf("Catalogue() should return the full recovered builtin name list")
	}
}

func TestCatalogueReturnsACopy(t *testing.T) {
	a := Catalogue()
	a[0] = "mutated"
	b := Catalogue()
	if b[0] == "mutated" {
		t.Fatalf("Catalogue() should return a defensive copy, not share the backing array")
	}
}

func TestIfResolvesBothBranches(t *testing.T) {
	strs := strtab.New()
	reg := newTestRegistry(strs)

	entry, err := reg.Resolve(strs, strs.Intern("if"), []typ.Type{typ.TUInt, typ.TString, typ.TString})
	if err != nil {
		t.Fatalf("Resolve(if) returned an error: %v", err)
	}
	got, err := entry.Impl([]registry.Arg{intArg(1), strArg("yes"), strArg("no")})
	if err != nil {
		t.Fatalf("if impl returned an error: %v", err)
	}
	if got.(value.AtomValue).S != "yes" {
		t.Fatalf("if(1, yes, no) = %q, want yes", got.(value.AtomValue).S)
	}

	got, err = entry.Impl([]registry.Arg{intArg(0), strArg("yes"), strArg("no")})
	if err != nil {
		t.Fatalf("if impl returned an error: %v", err)
	}
	if got.(value.AtomValue).S != "no" {
		t.Fatalf("if(0, yes, no) = %q, want no", got.(value.AtomValue).S)
	}
}

func TestIfRejectsMismatchedBranchTypes(t *testing.T) {
	strs := strtab.New()
	reg := newTestRegistry(strs)
	if _, err := reg.Resolve(strs, strs.Intern("if"), []typ.Type{typ.TUInt, typ.TString, typ.TInt}); err == nil {
		t.Fatalf("if with mismatched branch types should fail to resolve")
	}
}

func TestCatIsAnyArity(t *testing.T) {
	strs := strtab.New()
	reg := newTestRegistry(strs)
	for _, n := range []int{0, 1, 3} {
		args := make([]typ.Type, n)
		for i := range args {
			args[i] = typ.TString
		}
		if _, err := reg.Resolve(strs, strs.Intern("cat"), args); err != nil {
			t.Fatalf("cat should resolve for arity %d: %v", n, err)
		}
	}

	entry, _ := reg.Resolve(strs, strs.Intern("cat"), []typ.Type{typ.TString, typ.TString, typ.TString})
	got, err := entry.Impl([]registry.Arg{strArg("a"), strArg("b"), strArg("c")})
	if err != nil {
		t.Fatalf("cat impl returned an error: %v", err)
	}
	if got.(value.AtomValue).S != "abc" {
		t.Fatalf("cat(a,b,c) = %q, want abc", got.(value.AtomValue).S)
	}
}

func TestToLowerToUpperReverse(t *testing.T) {
	strs := strtab.New()
	reg := newTestRegistry(strs)

	entry, err := reg.Resolve(strs, strs.Intern("tolower"), []typ.Type{typ.TString})
	if err != nil {
		t.Fatalf("Resolve(tolower) returned an error: %v", err)
	}
	got, _ := entry.Impl([]registry.Arg{strArg("HELLO")})
	if got.(value.AtomValue).S != "hello" {
		t.Fatalf("tolower(HELLO) = %q, want hello", got.(value.AtomValue).S)
	}

	entry, err = reg.Resolve(strs, strs.Intern("toupper"), []typ.Type{typ.TString})
	if err != nil {
		t.Fatalf("Resolve(toupper) returned an error: %v", err)
	}
	got, _ = entry.Impl([]registry.Arg{strArg("hello")})
	if got.(value.AtomValue).S != "HELLO" {
		t.Fatalf("toupper(hello) = %q, want HELLO", got.(value.AtomValue).S)
	}

	entry, err = reg.Resolve(strs, strs.Intern("reverse"), []typ.Type{typ.TString})
	if err != nil {
		t.Fatalf("Resolve(reverse) returned an error: %v", err)
	}
	got, _ = entry.Impl([]registry.Arg{strArg("abc")})
	if got.(value.AtomValue).S != "cba" {
		t.Fatalf("reverse(abc) = %q, want cba", got.(value.AtomValue).S)
	}
}

func TestGrepBooleanForm(t *testing.T) {
	strs := strtab.New()
	reg := newTestRegistry(strs)
	entry, err := reg.Resolve(strs, strs.Intern("grep"), []typ.Type{typ.TString, typ.TString})
	if err != nil {
		t.Fatalf("Resolve(grep/2 string,string) returned an error: %v", err)
	}
	got, err := entry.Impl([]registry.Arg{strArg("a12b"), strArg("[0-9]+")})
	if err != nil {
		t.Fatalf("grep impl returned an error: %v", err)
	}
	if got.(value.AtomValue).U != 1 {
		t.Fatalf("grep(a12b, [0-9]+) = %v, want 1", got)
	}
}

func TestGrepSeqExtractsMatches(t *testing.T) {
	strs := strtab.New()
	reg := newTestRegistry(strs)
	entry, err := reg.Resolve(strs, strs.Intern("grep"), []typ.Type{typ.NewSeq(typ.TString), typ.TString})
	if err != nil {
		t.Fatalf("Resolve(grep/2 seq,string) returned an error: %v", err)
	}
	lines := &value.SliceSeq{Elem: typ.TString, Items: []value.Value{
		value.AtomValue{Atom: value.Str("a12 b")},
		value.AtomValue{Atom: value.Str("c3")},
	}}
	got, err := entry.Impl([]registry.Arg{valArg(lines), strArg("[0-9]+")})
	if err != nil {
		t.Fatalf("grep impl returned an error: %v", err)
	}
	matches := value.Drain(got.(value.Seq))
	if len(matches) != 2 || matches[0].(value.AtomValue).S != "12" || matches[1].(value.AtomValue).S != "3" {
		t.Fatalf("grep matches = %v, want [12 3]", matches)
	}
}

func TestCountZeroArgIsInfiniteSequence(t *testing.T) {
	strs := strtab.New()
	reg := newTestRegistry(strs)
	entry, err := reg.Resolve(strs, strs.Intern("count"), nil)
	if err != nil {
		t.Fatalf("Resolve(count/0) returned an error: %v", err)
	}
	got, err := entry.Impl(nil)
	if err != nil {
		t.Fatalf("count() impl returned an error: %v", err)
	}
	seq := got.(value.Seq)
	first, _ := seq.Next()
	second, _ := seq.Next()
	if first.(value.AtomValue).U != 1 || second.(value.AtomValue).U != 2 {
		t.Fatalf("count() should yield 1, 2, ..., got %v then %v", first, second)
	}
}

func TestCountOverArray(t *testing.T) {
	strs := strtab.New()
	reg := newTestRegistry(strs)
	arr := &value.ArrayAtom{Kind: typ.Int}
	arr.Append(value.Int(1))
	arr.Append(value.Int(2))
	arr.Append(value.Int(3))

	entry, err := reg.Resolve(strs, strs.Intern("count"), []typ.Type{typ.NewArr(typ.TInt)})
	if err != nil {
		t.Fatalf("Resolve(count/1) returned an error: %v", err)
	}
	got, err := entry.Impl([]registry.Arg{valArg(arr)})
	if err != nil {
		t.Fatalf("count(arr) impl returned an error: %v", err)
	}
	if got.(value.AtomValue).U != 3 {
		t.Fatalf("count(arr) = %v, want 3", got)
	}
}

func TestZipPairsIndexWiseStoppingAtShorter(t *testing.T) {
	strs := strtab.New()
	reg := newTestRegistry(strs)
	a := &value.SliceSeq{Elem: typ.TInt, Items: []value.Value{
		value.AtomValue{Atom: value.Int(1)},
		value.AtomValue{Atom: value.Int(2)},
		value.AtomValue{Atom: value.Int(3)},
	}}
	b := &value.SliceSeq{Elem: typ.TString, Items: []value.Value{
		value.AtomValue{Atom: value.Str("x")},
		value.AtomValue{Atom: value.Str("y")},
	}}
	entry, err := reg.Resolve(strs, strs.Intern("zip"), []typ.Type{typ.NewSeq(typ.TInt), typ.NewSeq(typ.TString)})
	if err != nil {
		t.Fatalf("Resolve(zip) returned an error: %v", err)
	}
	got, err := entry.Impl([]registry.Arg{valArg(a), valArg(b)})
	if err != nil {
		t.Fatalf("zip impl returned an error: %v", err)
	}
	pairs := value.Drain(got.(value.Seq))
	if len(pairs) != 2 {
		t.Fatalf("zip should stop at the shorter sequence, got %d pairs, want 2", len(pairs))
	}
	first := pairs[0].(value.Tuple)
	if first.Elems[0].(value.AtomValue).I != 1 || first.Elems[1].(value.AtomValue).S != "x" {
		t.Fatalf("first pair = %v, want (1, x)", first)
	}
}

func TestSortOrdersAscending(t *testing.T) {
	strs := strtab.New()
	reg := newTestRegistry(strs)
	arr := &value.ArrayAtom{Kind: typ.Int}
	arr.Append(value.Int(3))
	arr.Append(value.Int(1))
	arr.Append(value.Int(2))

	entry, err := reg.Resolve(strs, strs.Intern("sort"), []typ.Type{typ.NewArr(typ.TInt)})
	if err != nil {
		t.Fatalf("Resolve(sort) returned an error: %v", err)
	}
	got, err := entry.Impl([]registry.Arg{valArg(arr)})
	if err != nil {
		t.Fatalf("sort impl returned an error: %v", err)
	}
	out := got.(*value.ArrayAtom)
	if out.At(0).I != 1 || out.At(1).I != 2 || out.At(2).I != 3 {
		t.Fatalf("sort did not order ascending: %v %v %v", out.At(0), out.At(1), out.At(2))
	}
}

func TestHeadOnEmptyArrayErrors(t *testing.T) {
	strs := strtab.New()
	reg := newTestRegistry(strs)
	entry, err := reg.Resolve(strs, strs.Intern("head"), []typ.Type{typ.NewArr(typ.TInt)})
	if err != nil {
		t.Fatalf("Resolve(head) returned an error: %v", err)
	}
	if _, err := entry.Impl([]registry.Arg{valArg(&value.ArrayAtom{Kind: typ.Int})}); err == nil {
		t.Fatalf("head on an empty array should error")
	}
}

func TestFlattenAcceptsArrayOfSeq(t *testing.T) {
	strs := strtab.New()
	reg := newTestRegistry(strs)
	nestedSeqT := typ.NewArr(typ.NewSeq(typ.TString))
	entry, err := reg.Resolve(strs, strs.Intern("flatten"), []typ.Type{nestedSeqT})
	if err != nil {
		t.Fatalf("Resolve(flatten, Arr(Seq(String))) returned an error: %v", err)
	}
	first := &value.SliceSeq{Elem: typ.TString, Items: []value.Value{
		value.AtomValue{Atom: value.Str("a")},
		value.AtomValue{Atom: value.Str("b")},
	}}
	second := &value.SliceSeq{Elem: typ.TString, Items: []value.Value{
		value.AtomValue{Atom: value.Str("c")},
	}}
	outer := &value.ArrayObject{Elem: typ.NewSeq(typ.TString), Items: []value.Value{first, second}}
	got, err := entry.Impl([]registry.Arg{valArg(outer)})
	if err != nil {
		t.Fatalf("flatten impl returned an error: %v", err)
	}
	out := got.(*value.ArrayAtom)
	if out.Len() != 3 || out.At(0).S != "a" || out.At(1).S != "b" || out.At(2).S != "c" {
		t.Fatalf("flatten(Arr(Seq(String))) = %v, want [a b c]", out)
	}
}

// newTestRegistry builds a registry pre-loaded with every builtin,
// mirroring what package tab's Compile does.
func newTestRegistry(strs *strtab.Table) *registry.Registry {
	reg := registry.New()
	Register(reg, strs)
	return reg
}
