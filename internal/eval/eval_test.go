package eval

import (
	"testing"

	"github.com/GerHobbelt/tab/internal/ast"
	"github.com/GerHobbelt/tab/internal/registry"
	"github.com/GerHobbelt/tab/internal/strtab"
	"github.com/GerHobbelt/tab/internal/typ"
	"github.com/GerHobbelt/tab/internal/value"
)

func TestEvalLiteral(t *testing.T) {
	strs := strtab.New()
	r := NewRuntime(registry.New(), strs)
	code := []ast.Command{{Op: ast.VAL, Arg: value.Int(42)}}
	v, err := Eval(r, code)
	if err != nil {
		t.Fatalf("Eval returned an error: %v", err)
	}
	if v.(value.AtomValue).I != 42 {
		t.Fatalf("Eval() = %v, want 42", v)
	}
}

func TestEvalArithmeticPromotion(t *testing.T) {
	strs := strtab.New()
	r := NewRuntime(registry.New(), strs)
	code := []ast.Command{
		{Op: ast.VAL, Arg: value.Int(1)},
		{Op: ast.VAL, Arg: value.Real(2.5)},
		{Op: ast.ADD, Type: typ.TReal},
	}
	v, err := Eval(r, code)
	if err != nil {
		t.Fatalf("Eval returned an error: %v", err)
	}
	if v.(value.AtomValue).R != 3.5 {
		t.Fatalf("1 + 2.5 = %v, want 3.5", v)
	}
}

func TestEvalDivisionByZeroIsRuntimeError(t *testing.T) {
	strs := strtab.New()
	r := NewRuntime(registry.New(), strs)
	code := []ast.Command{
		{Op: ast.VAL, Arg: value.Int(1)},
		{Op: ast.VAL, Arg: value.Int(0)},
		{Op: ast.DIV, Type: typ.TInt},
	}
	_, err := Eval(r, code)
	if err == nil {
		t.Fatalf("1 / 0 should be a RuntimeError")
	}
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("error type = %T, want *RuntimeError", err)
	}
}

func TestEvalUnboundVariableErrors(t *testing.T) {
	strs := strtab.New()
	r := NewRuntime(registry.New(), strs)
	code := []ast.Command{{Op: ast.VAR, Name: strs.Intern("nosuchvar")}}
	if _, err := Eval(r, code); err == nil {
		t.Fatalf("referencing an unbound variable should error")
	}
}

func TestBindIDSeedsAtAndDollar(t *testing.T) {
	strs := strtab.New()
	r := NewRuntime(registry.New(), strs)
	seq := &value.FuncSeq{Elem: typ.TString}
	at := strs.Intern("@")
	r.BindID(at, seq)
	code := []ast.Command{{Op: ast.VAR, Name: at}}
	v, err := Eval(r, code)
	if err != nil {
		t.Fatalf("Eval returned an error: %v", err)
	}
	if v != value.Value(seq) {
		t.Fatalf("VAR @ should yield the bound sequence")
	}
}

func TestEvalIndexArray(t *testing.T) {
	strs := strtab.New()
	r := NewRuntime(registry.New(), strs)
	arr := &value.ArrayAtom{Kind: typ.Int}
	arr.Append(value.Int(10))
	arr.Append(value.Int(20))
	arrID := strs.Intern("arr")
	r.bind(arrID, arr)
	code := []ast.Command{
		{Op: ast.VAR, Name: arrID},
		{Op: ast.IDX, Closures: []ast.Closure{
			{Code: []ast.Command{{Op: ast.VAL, Arg: value.Int(1)}}},
		}},
	}
	v, err := Eval(r, code)
	if err != nil {
		t.Fatalf("Eval returned an error: %v", err)
	}
	if v.(value.AtomValue).I != 20 {
		t.Fatalf("arr[1] = %v, want 20", v)
	}
}

func TestEvalIndexOutOfRange(t *testing.T) {
	strs := strtab.New()
	r := NewRuntime(registry.New(), strs)
	arr := &value.ArrayAtom{Kind: typ.Int}
	arr.Append(value.Int(10))
	arrID := strs.Intern("arr")
	r.bind(arrID, arr)
	code := []ast.Command{
		{Op: ast.VAR, Name: arrID},
		{Op: ast.IDX, Closures: []ast.Closure{
			{Code: []ast.Command{{Op: ast.VAL, Arg: value.Int(5)}}},
		}},
	}
	if _, err := Eval(r, code); err == nil {
		t.Fatalf("out-of-range index should error")
	}
}

func TestEvalAccumSumsOverSource(t *testing.T) {
	strs := strtab.New()
	r := NewRuntime(registry.New(), strs)
	atID := strs.Intern("@")

	// << @[0] + @[1] : 0, [1, 2, 3] >>
	body := []ast.Command{
		{Op: ast.VAR, Name: atID},
		{Op: ast.IDX, Closures: []ast.Closure{{Code: []ast.Command{{Op: ast.VAL, Arg: value.Int(0)}}}}},
		{Op: ast.VAR, Name: atID},
		{Op: ast.IDX, Closures: []ast.Closure{{Code: []ast.Command{{Op: ast.VAL, Arg: value.Int(1)}}}}},
		{Op: ast.ADD, Type: typ.TInt},
	}
	init := []ast.Command{{Op: ast.VAL, Arg: value.Int(0)}}
	source := []ast.Command{{Op: ast.ARR, Type: typ.NewArr(typ.TInt), Closures: []ast.Closure{
		{Code: []ast.Command{{Op: ast.VAL, Arg: value.Int(1)}}},
		{Code: []ast.Command{{Op: ast.VAL, Arg: value.Int(2)}}},
		{Code: []ast.Command{{Op: ast.VAL, Arg: value.Int(3)}}},
	}}}

	cmd := ast.Command{
		Op: ast.ACCUM,
		Closures: []ast.Closure{
			{Code: body},
			{Code: init},
			{Code: source},
		},
	}
	v, err := Eval(r, []ast.Command{cmd})
	if err != nil {
		t.Fatalf("Eval returned an error: %v", err)
	}
	if v.(value.AtomValue).I != 6 {
		t.Fatalf("accumulator sum = %v, want 6", v)
	}
}

func TestEvalMapComprehensionIteratesSource(t *testing.T) {
	strs := strtab.New()
	r := NewRuntime(registry.New(), strs)
	atID := strs.Intern("@")

	// { @ -> @ : [1, 2, 3] }
	key := []ast.Command{{Op: ast.VAR, Name: atID}}
	val := []ast.Command{{Op: ast.VAR, Name: atID}}
	source := []ast.Command{{Op: ast.ARR, Type: typ.NewArr(typ.TInt), Closures: []ast.Closure{
		{Code: []ast.Command{{Op: ast.VAL, Arg: value.Int(1)}}},
		{Code: []ast.Command{{Op: ast.VAL, Arg: value.Int(2)}}},
		{Code: []ast.Command{{Op: ast.VAL, Arg: value.Int(3)}}},
	}}}

	mapT := typ.NewMap(typ.TInt, typ.TInt)
	cmd := ast.Command{
		Op:   ast.MAP,
		Type: mapT,
		Closures: []ast.Closure{
			{Code: key},
			{Code: val},
			{Code: source},
		},
	}
	v, err := Eval(r, []ast.Command{cmd})
	if err != nil {
		t.Fatalf("Eval returned an error: %v", err)
	}
	m, ok := v.(*value.Map)
	if !ok {
		t.Fatalf("Eval() = %T, want *value.Map", v)
	}
	if m.Len() != 3 {
		t.Fatalf("map comprehension over [1,2,3] should have 3 entries, got %d", m.Len())
	}
	for _, k := range []int64{1, 2, 3} {
		got, ok := m.Get(value.AtomValue{Atom: value.Int(k)})
		if !ok {
			t.Fatalf("map missing key %d: source was never iterated", k)
		}
		if got.(value.AtomValue).I != k {
			t.Fatalf("map[%d] = %v, want %d", k, got, k)
		}
	}
}

func TestEvalFunCallsResolvedImpl(t *testing.T) {
	strs := strtab.New()
	reg := registry.New()
	r := NewRuntime(reg, strs)
	cmd := ast.Command{
		Op:   ast.FUN,
		Name: strs.Intern("double"),
		Closures: []ast.Closure{
			{Code: []ast.Command{{Op: ast.VAL, Arg: value.Int(21)}}},
		},
		Impl: func(args []registry.Arg) (value.Value, error) {
			v, err := args[0].Eval(nil)
			if err != nil {
				return nil, err
			}
			return value.AtomValue{Atom: value.Int(2 * v.(value.AtomValue).I)}, nil
		},
	}
	v, err := Eval(r, []ast.Command{cmd})
	if err != nil {
		t.Fatalf("Eval returned an error: %v", err)
	}
	if v.(value.AtomValue).I != 42 {
		t.Fatalf("double(21) = %v, want 42", v)
	}
}

func TestEvalUnresolvedFunErrors(t *testing.T) {
	strs := strtab.New()
	r := NewRuntime(registry.New(), strs)
	cmd := ast.Command{Op: ast.FUN, Name: strs.Intern("nope")}
	if _, err := Eval(r, []ast.Command{cmd}); err == nil {
		t.Fatalf("a FUN command with a nil Impl should error, not panic")
	}
}

func TestStackToValueCollapsesMultiValueToTuple(t *testing.T) {
	strs := strtab.New()
	r := NewRuntime(registry.New(), strs)
	code := []ast.Command{
		{Op: ast.VAL, Arg: value.Int(1)},
		{Op: ast.VAL, Arg: value.Str("x")},
	}
	v, err := Eval(r, code)
	if err != nil {
		t.Fatalf("Eval returned an error: %v", err)
	}
	tup, ok := v.(value.Tuple)
	if !ok || len(tup.Elems) != 2 {
		t.Fatalf("multi-value stack should collapse to a 2-element Tuple, got %#v", v)
	}
}

func TestNegAtomIsBitwiseComplement(t *testing.T) {
	if got := negAtom(value.Int(5)); got.I != ^int64(5) {
		t.Fatalf("~5 = %d, want %d", got.I, ^int64(5))
	}
	if got := negAtom(value.UInt(5)); got.U != ^uint64(5) {
		t.Fatalf("~5u = %d, want %d", got.U, ^uint64(5))
	}
}

func TestAtomIsZeroPerKind(t *testing.T) {
	cases := []struct {
		name string
		a    value.Atom
		want bool
	}{
		{"zero int", value.Int(0), true},
		{"nonzero int", value.Int(1), false},
		{"zero uint", value.UInt(0), true},
		{"nonzero uint", value.UInt(1), false},
		{"zero real", value.Real(0), true},
		{"nonzero real", value.Real(0.5), false},
		{"empty string", value.Str(""), true},
		{"nonempty string", value.Str("x"), false},
	}
	for _, c := range cases {
		if got := atomIsZero(c.a); got != c.want {
			t.Fatalf("%s: atomIsZero() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestEvalNotOnStringPushesInt(t *testing.T) {
	strs := strtab.New()
	r := NewRuntime(registry.New(), strs)
	code := []ast.Command{
		{Op: ast.VAL, Arg: value.Str("")},
		{Op: ast.NOT},
	}
	v, err := Eval(r, code)
	if err != nil {
		t.Fatalf("Eval returned an error: %v", err)
	}
	av := v.(value.AtomValue)
	if av.Kind != typ.Int || av.I != 1 {
		t.Fatalf(`!"" = %#v, want Int(1)`, av)
	}
}

func TestEvalNotOnUIntPushesIntNotUInt(t *testing.T) {
	strs := strtab.New()
	r := NewRuntime(registry.New(), strs)
	code := []ast.Command{
		{Op: ast.VAL, Arg: value.UInt(3)},
		{Op: ast.NOT},
	}
	v, err := Eval(r, code)
	if err != nil {
		t.Fatalf("Eval returned an error: %v", err)
	}
	av := v.(value.AtomValue)
	if av.Kind != typ.Int || av.I != 0 {
		t.Fatalf("!3u = %#v, want Int(0)", av)
	}
}

func TestResolveArrayIndexUIntRejectsOutOfRange(t *testing.T) {
	if _, err := resolveArrayIndex(3, value.UInt(3)); err == nil {
		t.Fatalf("index 3 into a 3-element array should be out of range")
	}
	if i, err := resolveArrayIndex(3, value.UInt(2)); err != nil || i != 2 {
		t.Fatalf("resolveArrayIndex(3, 2u) = (%d, %v), want (2, nil)", i, err)
	}
}

func TestResolveArrayIndexNegativeIntWraps(t *testing.T) {
	i, err := resolveArrayIndex(5, value.Int(-1))
	if err != nil {
		t.Fatalf("resolveArrayIndex returned an error: %v", err)
	}
	if i != 4 {
		t.Fatalf("a[-1] on a 5-element array should resolve to index 4, got %d", i)
	}
	if _, err := resolveArrayIndex(5, value.Int(-6)); err == nil {
		t.Fatalf("a[-6] on a 5-element array should wrap out of range and error")
	}
}

func TestResolveArrayIndexRealIsProportional(t *testing.T) {
	i, err := resolveArrayIndex(4, value.Real(0.5))
	if err != nil {
		t.Fatalf("resolveArrayIndex returned an error: %v", err)
	}
	if i != 2 {
		t.Fatalf("a[0.5] on a 4-element array should select floor(4*0.5)=2, got %d", i)
	}
	if _, err := resolveArrayIndex(4, value.Real(1.5)); err == nil {
		t.Fatalf("a real index outside [0.0, 1.0] should error")
	}
}

func TestIndexValueArrayAtomHandlesAllThreeIndexKinds(t *testing.T) {
	arr := &value.ArrayAtom{Kind: typ.Int, Ints: []int64{10, 20, 30, 40}}

	v, err := indexValue(arr, value.AtomValue{Atom: value.Int(-1)})
	if err != nil {
		t.Fatalf("Eval returned an error: %v", err)
	}
	if v.(value.AtomValue).I != 40 {
		t.Fatalf("arr[-1] = %v, want the last element (40)", v)
	}

	v, err = indexValue(arr, value.AtomValue{Atom: value.Real(0.5)})
	if err != nil {
		t.Fatalf("Eval returned an error: %v", err)
	}
	if v.(value.AtomValue).I != 30 {
		t.Fatalf("arr[0.5] = %v, want floor(4*0.5)=2 -> 30", v)
	}

	v, err = indexValue(arr, value.AtomValue{Atom: value.UInt(1)})
	if err != nil {
		t.Fatalf("Eval returned an error: %v", err)
	}
	if v.(value.AtomValue).I != 20 {
		t.Fatalf("arr[1u] = %v, want 20", v)
	}
}
