// Package typ implements tab's static type system: a closed set of atom
// kinds plus structural tuple, array, map and sequence composition.
//
// Grounded on _examples/original_source/tab.cc's Type struct (types_t /
// atom_types_t tags plus a shared tuple-of-Type for composite shapes) and
// on the tagged-struct idiom of _examples/kolkov-uawk/internal/types/value.go.
package typ

import "fmt"

// Kind is the coarse shape of a Type.
type Kind uint8

const (
	KindNone Kind = iota
	KindAtom
	KindTup
	KindArr
	KindMap
	KindSeq
)

// AtomKind distinguishes the four scalar atom types.
type AtomKind uint8

const (
	Int AtomKind = iota
	UInt
	Real
	String
)

func (a AtomKind) String() string {
	switch a {
	case Int:
		return "int"
	case UInt:
		return "uint"
	case Real:
		return "real"
	case String:
		return "string"
	default:
		return "?atom"
	}
}

// Type is an immutable, structurally-comparable static type. Values are
// small and are passed by value; composite payloads (Elems, Key, Elem) are
// themselves Types.
type Type struct {
	Kind  Kind
	Atom  AtomKind // valid when Kind == KindAtom
	Elem  *Type    // valid when Kind == KindArr or KindSeq: element type
	Key   *Type    // valid when Kind == KindMap: key type
	Val   *Type    // valid when Kind == KindMap: value type
	Elems []Type   // valid when Kind == KindTup: element types in order

	// IArray marks a KindArr/KindSeq type built from the `[.` `.]` iarray
	// literal (spec.md §4.3/§6). It is a printing-only annotation, not part
	// of the type's structural identity: Equal ignores it, so an iarray and
	// a plain array of the same element type still unify (e.g. as a
	// function argument or a comprehension source).
	IArray bool
}

// None is the "no value" type (e.g. the type of a Command before inference).
var None = Type{Kind: KindNone}

// NewAtom returns the atom type for the given atom kind.
func NewAtom(k AtomKind) Type { return Type{Kind: KindAtom, Atom: k} }

var (
	TInt    = NewAtom(Int)
	TUInt   = NewAtom(UInt)
	TReal   = NewAtom(Real)
	TString = NewAtom(String)
)

// NewTuple returns the tuple type over elems. A single-element slice
// collapses to that element's own type per the spec's 1-tuple-collapse
// rule; callers building tuples during type inference must apply
// stack_to_type-style collapsing themselves (see internal/typecheck) since
// that rule is context sensitive (an explicit 1-element array literal is
// NOT collapsed, only the loose "sequence of results on the inference
// stack" case is).
func NewTuple(elems []Type) Type {
	if len(elems) == 1 {
		return elems[0]
	}
	return Type{Kind: KindTup, Elems: elems}
}

// NewArr returns the array-of-elem type.
func NewArr(elem Type) Type { return Type{Kind: KindArr, Elem: &elem} }

// NewMap returns the map-from-key-to-val type.
func NewMap(key, val Type) Type { return Type{Kind: KindMap, Key: &key, Val: &val} }

// NewSeq returns the lazy-sequence-of-elem type.
func NewSeq(elem Type) Type { return Type{Kind: KindSeq, Elem: &elem} }

// Equal reports structural equality, mirroring tab.cc's Type::operator==.
func Equal(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNone:
		return true
	case KindAtom:
		return a.Atom == b.Atom
	case KindTup:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !Equal(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	case KindArr, KindSeq:
		return Equal(*a.Elem, *b.Elem)
	case KindMap:
		return Equal(*a.Key, *b.Key) && Equal(*a.Val, *b.Val)
	default:
		return false
	}
}

// IsNumeric reports whether t is one of the three numeric atom types.
func IsNumeric(t Type) bool {
	return t.Kind == KindAtom && t.Atom != String
}

// String renders t in tab's surface-syntax-adjacent notation, used for
// error messages and the -d debug dump.
func (t Type) String() string {
	switch t.Kind {
	case KindNone:
		return "none"
	case KindAtom:
		return t.Atom.String()
	case KindTup:
		s := "("
		for i, e := range t.Elems {
			if i > 0 {
				s += ", "
			}
			s += e.String()
		}
		return s + ")"
	case KindArr:
		return fmt.Sprintf("[%s]", t.Elem.String())
	case KindMap:
		return fmt.Sprintf("{%s: %s}", t.Key.String(), t.Val.String())
	case KindSeq:
		return fmt.Sprintf("seq(%s)", t.Elem.String())
	default:
		return "?type"
	}
}

// PromoteNumeric implements the spec's arithmetic/bitwise numeric-promotion
// table: Real dominates any mix; UInt∧UInt stays UInt except that SUB
// always widens to Int (to represent potentially negative results); any
// other Int/UInt mix widens to Int.
//
// Grounded on _examples/original_source/tab.cc's handle_real_operator /
// handle_int_operator / handle_poly_operator helpers.
func PromoteNumeric(a, b AtomKind, isSub bool) (AtomKind, error) {
	if a == String || b == String {
		return 0, fmt.Errorf("operator not defined for string operands")
	}
	if a == Real || b == Real {
		return Real, nil
	}
	if isSub {
		return Int, nil
	}
	if a == UInt && b == UInt {
		return UInt, nil
	}
	return Int, nil
}
