// Package value implements tab's runtime value model: atoms, tuples,
// unboxed and boxed arrays, maps, and lazy single-pass sequences.
//
// Grounded on _examples/original_source/tab.cc's obj:: namespace
// (Int/UInt/Real/String atoms, ArrayAtom<T> unboxed arrays, ArrayObject
// boxed arrays, MapObject) and on the small-tagged-struct idiom of
// _examples/kolkov-uawk/internal/types/value.go, which favors a value
// struct carrying a kind tag over a bare interface{} to keep scalar atoms
// allocation-free in hot indexing loops.
package value

import (
	"fmt"
	"math"

	"github.com/GerHobbelt/tab/internal/typ"
)

// Atom is a scalar value: exactly one of Int, UInt, Real or String is
// meaningful, selected by Kind.
type Atom struct {
	Kind typ.AtomKind
	I    int64
	U    uint64
	R    float64
	S    string
}

func Int(i int64) Atom     { return Atom{Kind: typ.Int, I: i} }
func UInt(u uint64) Atom    { return Atom{Kind: typ.UInt, U: u} }
func Real(r float64) Atom   { return Atom{Kind: typ.Real, R: r} }
func Str(s string) Atom     { return Atom{Kind: typ.String, S: s} }

// AsFloat converts a numeric atom to float64 for mixed arithmetic. Panics
// on a String atom: callers must check Kind first (type inference rules
// out mixed string arithmetic before evaluation ever reaches this point).
func (a Atom) AsFloat() float64 {
	switch a.Kind {
	case typ.Int:
		return float64(a.I)
	case typ.UInt:
		return float64(a.U)
	case typ.Real:
		return a.R
	default:
		panic("value: AsFloat on string atom")
	}
}

// AsInt converts a numeric atom to int64.
func (a Atom) AsInt() int64 {
	switch a.Kind {
	case typ.Int:
		return a.I
	case typ.UInt:
		return int64(a.U)
	case typ.Real:
		return int64(a.R)
	default:
		panic("value: AsInt on string atom")
	}
}

// AsUInt converts a numeric atom to uint64.
func (a Atom) AsUInt() uint64 {
	switch a.Kind {
	case typ.Int:
		return uint64(a.I)
	case typ.UInt:
		return a.U
	case typ.Real:
		return uint64(a.R)
	default:
		panic("value: AsUInt on string atom")
	}
}

// Equal reports value equality between two atoms of possibly-differing
// numeric kind (numeric atoms compare by value across kind; strings
// compare byte-for-byte and only to other strings).
func (a Atom) Equal(b Atom) bool {
	if a.Kind == typ.String || b.Kind == typ.String {
		return a.Kind == typ.String && b.Kind == typ.String && a.S == b.S
	}
	return a.AsFloat() == b.AsFloat()
}

// Hash folds an atom to a 64-bit hash, used by Map keys. Grounded on
// tab.cc's ObjectHash functor over obj::Object subtypes.
func (a Atom) Hash() uint64 {
	switch a.Kind {
	case typ.String:
		var h uint64 = 1469598103934665603 // FNV-1a offset basis
		for i := 0; i < len(a.S); i++ {
			h ^= uint64(a.S[i])
			h *= 1099511628211
		}
		return h
	case typ.Real:
		return math.Float64bits(a.R)
	default:
		return a.AsUInt()
	}
}

func (a Atom) String() string {
	switch a.Kind {
	case typ.Int:
		return fmt.Sprintf("%d", a.I)
	case typ.UInt:
		return fmt.Sprintf("%d", a.U)
	case typ.Real:
		return fmt.Sprintf("%g", a.R)
	case typ.String:
		return a.S
	default:
		return "?atom"
	}
}

// Value is any runtime value: an Atom, a Tuple, an Array (boxed or
// unboxed), a Map, or a Seq.
type Value interface {
	Type() typ.Type
}

// AtomValue adapts Atom to the Value interface without forcing every atom
// user to carry a typ.Type around (the static type is recoverable from the
// Kind tag alone).
type AtomValue struct{ Atom }

func (a AtomValue) Type() typ.Type { return typ.NewAtom(a.Kind) }

// Tuple is a fixed-arity heterogeneous value.
type Tuple struct {
	Elems []Value
	Typ   typ.Type
}

func (t Tuple) Type() typ.Type { return t.Typ }

// NewTuple builds a Tuple value from elements, with the 1-element collapse
// rule applied by the caller's type (tuple construction in the evaluator
// always matches the type inference pass's own collapse decision, so the
// Typ field here is authoritative, not recomputed).
func NewTuple(elems []Value, t typ.Type) Tuple { return Tuple{Elems: elems, Typ: t} }

// ArrayAtom is an unboxed, homogeneous array of one atom kind: tab.cc's
// ArrayAtom<T> template, specialized at runtime via the Kind tag instead of
// Go generics monomorphization, so that IDX/ARR code paths can treat every
// atom-kind array uniformly.
type ArrayAtom struct {
	Kind typ.AtomKind
	Ints    []int64
	UInts   []uint64
	Reals   []float64
	Strings []string

	// IArray marks this array as built from the `[.` `.]` iarray literal
	// (spec.md §4.3): the printer separates its elements with `;` instead
	// of one per line (spec.md §6).
	IArray bool
}

func (a *ArrayAtom) Type() typ.Type {
	t := typ.NewArr(typ.NewAtom(a.Kind))
	t.IArray = a.IArray
	return t
}

func (a *ArrayAtom) Len() int {
	switch a.Kind {
	case typ.Int:
		return len(a.Ints)
	case typ.UInt:
		return len(a.UInts)
	case typ.Real:
		return len(a.Reals)
	default:
		return len(a.Strings)
	}
}

func (a *ArrayAtom) At(i int) Atom {
	switch a.Kind {
	case typ.Int:
		return Int(a.Ints[i])
	case typ.UInt:
		return UInt(a.UInts[i])
	case typ.Real:
		return Real(a.Reals[i])
	default:
		return Str(a.Strings[i])
	}
}

func (a *ArrayAtom) Append(v Atom) {
	switch a.Kind {
	case typ.Int:
		a.Ints = append(a.Ints, v.I)
	case typ.UInt:
		a.UInts = append(a.UInts, v.U)
	case typ.Real:
		a.Reals = append(a.Reals, v.R)
	default:
		a.Strings = append(a.Strings, v.S)
	}
}

// ArrayObject is a boxed, possibly-heterogeneous array: used for arrays of
// tuples, arrays, or maps (anything not a bare atom kind).
type ArrayObject struct {
	Elem  typ.Type
	Items []Value

	// IArray marks this array as built from the `[.` `.]` iarray literal
	// (spec.md §4.3): the printer separates its elements with `;` instead
	// of one per line (spec.md §6).
	IArray bool
}

func (a *ArrayObject) Type() typ.Type {
	t := typ.NewArr(a.Elem)
	t.IArray = a.IArray
	return t
}

// NewArray is a convenience constructor dispatching to ArrayAtom when elem is
// a scalar atom type, and ArrayObject otherwise. Mirrors tab.cc's
// obj::make() factory dispatch on Type.
func NewArray(elem typ.Type) Value {
	if elem.Kind == typ.KindAtom {
		return &ArrayAtom{Kind: elem.Atom}
	}
	return &ArrayObject{Elem: elem}
}

// mapEntry is one key/value pair inside a Map's bucket chain.
type mapEntry struct {
	key Value
	val Value
}

// Map is a hash map keyed by structural value equality/hash, mirroring
// tab.cc's obj::MapObject (an unordered_map with a custom ObjectHash /
// ObjectEq pair).
type Map struct {
	KeyT, ValT typ.Type
	buckets    map[uint64][]mapEntry
	keysOrder  []Value // insertion order, used when -s is NOT set
}

func NewMap(keyT, valT typ.Type) *Map {
	return &Map{KeyT: keyT, ValT: valT, buckets: make(map[uint64][]mapEntry)}
}

func (m *Map) Type() typ.Type { return typ.NewMap(m.KeyT, m.ValT) }

func hashValue(v Value) uint64 {
	switch x := v.(type) {
	case AtomValue:
		return x.Hash()
	case Tuple:
		var h uint64 = 1469598103934665603
		for _, e := range x.Elems {
			h ^= hashValue(e)
			h *= 1099511628211
		}
		return h
	default:
		return 0
	}
}

func equalValue(a, b Value) bool {
	switch x := a.(type) {
	case AtomValue:
		y, ok := b.(AtomValue)
		return ok && x.Equal(y.Atom)
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !equalValue(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Get looks up key, returning the value and whether it was present.
func (m *Map) Get(key Value) (Value, bool) {
	h := hashValue(key)
	for _, e := range m.buckets[h] {
		if equalValue(e.key, key) {
			return e.val, true
		}
	}
	return nil, false
}

// Set inserts or overwrites key -> val.
func (m *Map) Set(key, val Value) {
	h := hashValue(key)
	bucket := m.buckets[h]
	for i, e := range bucket {
		if equalValue(e.key, key) {
			bucket[i].val = val
			return
		}
	}
	m.buckets[h] = append(bucket, mapEntry{key, val})
	m.keysOrder = append(m.keysOrder, key)
}

// Len reports the number of entries.
func (m *Map) Len() int { return len(m.keysOrder) }

// Keys returns keys in insertion order; the printer sorts them when the
// -s flag requests sorted iteration (spec.md §6).
func (m *Map) Keys() []Value { return m.keysOrder }

// Seq is a lazy, single-pass value producer: tab.cc's obj::Sequence. Next
// returns (value, true) while values remain, or (nil, false) at end.
// Implementations must be safe to call from exactly one goroutine at a
// time (the scatter/gather model guarantees this: each worker owns its own
// Seq, and the shared input line sequence is wrapped with its own mutex —
// see internal/scatter).
type Seq interface {
	Value
	Next() (Value, bool)
}

// SliceSeq adapts a materialized slice into a Seq, for values that are
// already buffered in memory.
type SliceSeq struct {
	Elem  typ.Type
	Items []Value
	pos   int
}

func (s *SliceSeq) Type() typ.Type { return typ.NewSeq(s.Elem) }

func (s *SliceSeq) Next() (Value, bool) {
	if s.pos >= len(s.Items) {
		return nil, false
	}
	v := s.Items[s.pos]
	s.pos++
	return v, true
}

// FuncSeq adapts a pull function into a Seq, used by builtins (zip, grep,
// count()) and the input-line driver to produce values on demand without
// materializing the whole sequence.
type FuncSeq struct {
	Elem typ.Type
	Pull func() (Value, bool)
}

func (s *FuncSeq) Type() typ.Type   { return typ.NewSeq(s.Elem) }
func (s *FuncSeq) Next() (Value, bool) { return s.Pull() }

// Drain materializes a Seq into a slice, for callers that need the full
// sequence in memory (count over a sequence, the printer, comprehension
// sources).
func Drain(s Seq) []Value {
	var out []Value
	for {
		v, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}
