package value

import "testing"

func TestAtomConversions(t *testing.T) {
	i := Int(-7)
	if i.AsFloat() != -7 {
		t.Fatalf("Int.AsFloat() = %v, want -7", i.AsFloat())
	}
	u := UInt(42)
	if u.AsInt() != 42 {
		t.Fatalf("UInt.AsInt() = %v, want 42", u.AsInt())
	}
	r := Real(3.5)
	if r.AsUInt() != 3 {
		t.Fatalf("Real.AsUInt() = %v, want 3", r.AsUInt())
	}
}

func TestAtomEqualAcrossNumericKinds(t *testing.T) {
	if !Int(5).Equal(UInt(5)) {
		t.Fatalf("Int(5) should equal UInt(5)")
	}
	if Int(5).Equal(Str("5")) {
		t.Fatalf("Int(5) should not equal Str(\"5\")")
	}
	if !Str("x").Equal(Str("x")) {
		t.Fatalf("Str(x) should equal Str(x)")
	}
}

func TestAtomString(t *testing.T) {
	if got := Int(3).String(); got != "3" {
		t.Fatalf("Int(3).String() = %q, want 3", got)
	}
	if got := Str("hi").String(); got != "hi" {
		t.Fatalf("Str(hi).String() = %q, want hi", got)
	}
}

func TestArrayAtomAppendAndAt(t *testing.T) {
	a := &ArrayAtom{Kind: Int(0).Kind}
	a.Append(Int(1))
	a.Append(Int(2))
	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}
	if a.At(1).I != 2 {
		t.Fatalf("At(1) = %v, want 2", a.At(1))
	}
}

func TestMapGetSetOverwrite(t *testing.T) {
	m := NewMap(AtomValue{Str("k")}.Type(), AtomValue{Int(0)}.Type())
	key := AtomValue{Str("a")}
	m.Set(key, AtomValue{Int(1)})
	m.Set(key, AtomValue{Int(2)})
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after overwriting the same key", m.Len())
	}
	got, ok := m.Get(key)
	if !ok {
		t.Fatalf("Get did not find a key that was Set")
	}
	if got.(AtomValue).I != 2 {
		t.Fatalf("Get returned %v, want the overwritten value 2", got)
	}
}

func TestMapKeysInsertionOrder(t *testing.T) {
	m := NewMap(AtomValue{Str("k")}.Type(), AtomValue{Int(0)}.Type())
	m.Set(AtomValue{Str("b")}, AtomValue{Int(1)})
	m.Set(AtomValue{Str("a")}, AtomValue{Int(2)})
	keys := m.Keys()
	if len(keys) != 2 || keys[0].(AtomValue).S != "b" || keys[1].(AtomValue).S != "a" {
		t.Fatalf("Keys() = %v, want insertion order [b a]", keys)
	}
}

func TestSliceSeqDrain(t *testing.T) {
	items := []Value{AtomValue{Int(1)}, AtomValue{Int(2)}, AtomValue{Int(3)}}
	s := &SliceSeq{Items: items}
	got := Drain(s)
	if len(got) != 3 {
		t.Fatalf("Drain returned %d items, want 3", len(got))
	}
	if _, ok := s.Next(); ok {
		t.Fatalf("Next() after Drain should report exhausted")
	}
}

func TestFuncSeqPullsLazily(t *testing.T) {
	calls := 0
	s := &FuncSeq{Pull: func() (Value, bool) {
		calls++
		if calls > 2 {
			return nil, false
		}
		return AtomValue{Int(int64(calls))}, true
	}}
	if calls != 0 {
		t.Fatalf("FuncSeq must not pull before Next is called")
	}
	v, ok := s.Next()
	if !ok || v.(AtomValue).I != 1 {
		t.Fatalf("first Next() = %v, %v, want 1, true", v, ok)
	}
}
