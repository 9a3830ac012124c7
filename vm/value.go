package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Type: structural shape of bit-machine data
// ---------------------------------------------------------------------------

// TypeKind identifies the structural shape of a Type.
type TypeKind uint8

const (
	TypeUnit TypeKind = iota
	TypeSum
	TypeProduct
)

// Type is a finalized structural type: Unit, Sum(L,R) or Product(L,R).
// Types are immutable after construction and carry their precomputed bit
// width, so width lookups during evaluation are O(1).
type Type struct {
	Kind  TypeKind
	Left  *Type // nil for Unit
	Right *Type // nil for Unit

	width int
}

// unitType is shared by every UnitType call; types are immutable.
var unitType = &Type{Kind: TypeUnit}

// UnitType returns the unit type (zero bits).
func UnitType() *Type { return unitType }

// SumType returns the sum of l and r. A sum value occupies one discriminant
// bit plus the width of the wider arm.
func SumType(l, r *Type) *Type {
	return &Type{Kind: TypeSum, Left: l, Right: r, width: 1 + max(l.width, r.width)}
}

// ProductType returns the product of l and r, occupying both widths
// back-to-back.
func ProductType(l, r *Type) *Type {
	return &Type{Kind: TypeProduct, Left: l, Right: r, width: l.width + r.width}
}

// BitWidth returns the number of bits a value of this type occupies in a
// frame, padding included.
func (t *Type) BitWidth() int { return t.width }

// String renders the type shape, e.g. "((1+1)×1)".
func (t *Type) String() string {
	var b strings.Builder
	t.render(&b)
	return b.String()
}

func (t *Type) render(b *strings.Builder) {
	switch t.Kind {
	case TypeUnit:
		b.WriteByte('1')
	case TypeSum:
		b.WriteByte('(')
		t.Left.render(b)
		b.WriteByte('+')
		t.Right.render(b)
		b.WriteByte(')')
	case TypeProduct:
		b.WriteByte('(')
		t.Left.render(b)
		b.WriteString("×")
		t.Right.render(b)
		b.WriteByte(')')
	}
}

// Word returns the 2^n-bit word type: Word(0) = 1+1 (a bit), and
// Word(n) = Word(n-1) × Word(n-1). Used by jets and tests.
func Word(n int) *Type {
	t := SumType(unitType, unitType)
	for i := 0; i < n; i++ {
		t = ProductType(t, t)
	}
	return t
}

// ---------------------------------------------------------------------------
// Value: immutable algebraic data
// ---------------------------------------------------------------------------

// ValueKind identifies the shape of a Value.
type ValueKind uint8

const (
	ValueUnit ValueKind = iota
	ValueLeft
	ValueRight
	ValuePair
)

// Value is an immutable tree mirroring a Type's shape: Unit, Left(v),
// Right(v) or Pair(a,b). Values are never mutated in place; they are either
// supplied by the caller (inputs, witnesses) or decoded from a completed
// output frame.
type Value struct {
	Kind ValueKind

	// Inner is the wrapped value of Left/Right and the first component of
	// Pair; Second is the second component of Pair. Both nil for Unit.
	Inner  *Value
	Second *Value
}

// unitValue is shared; Values are immutable.
var unitValue = &Value{Kind: ValueUnit}

// Unit returns the unit value.
func Unit() *Value { return unitValue }

// Left wraps v in the left arm of a sum.
func Left(v *Value) *Value { return &Value{Kind: ValueLeft, Inner: v} }

// Right wraps v in the right arm of a sum.
func Right(v *Value) *Value { return &Value{Kind: ValueRight, Inner: v} }

// Pair combines a and b into a product value.
func Pair(a, b *Value) *Value { return &Value{Kind: ValuePair, Inner: a, Second: b} }

// Bit returns the sum-of-units encoding of one bit: Right(Unit) for set,
// Left(Unit) for clear.
func Bit(set bool) *Value {
	if set {
		return Right(unitValue)
	}
	return Left(unitValue)
}

// WordValue returns the Word(n)-shaped value for the low 2^n bits of x,
// most significant bit first.
func WordValue(n int, x uint64) *Value {
	if n == 0 {
		return Bit(x&1 != 0)
	}
	half := uint(1) << uint(n-1)
	return Pair(WordValue(n-1, x>>half), WordValue(n-1, x&((1<<half)-1)))
}

// Equal reports structural equality.
func (v *Value) Equal(o *Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueUnit:
		return true
	case ValueLeft, ValueRight:
		return v.Inner.Equal(o.Inner)
	default:
		return v.Inner.Equal(o.Inner) && v.Second.Equal(o.Second)
	}
}

// MatchesType reports whether v has exactly the shape of t.
func (v *Value) MatchesType(t *Type) bool {
	switch v.Kind {
	case ValueUnit:
		return t.Kind == TypeUnit
	case ValueLeft:
		return t.Kind == TypeSum && v.Inner.MatchesType(t.Left)
	case ValueRight:
		return t.Kind == TypeSum && v.Inner.MatchesType(t.Right)
	default:
		return t.Kind == TypeProduct &&
			v.Inner.MatchesType(t.Left) && v.Second.MatchesType(t.Right)
	}
}

// String renders the value, e.g. "L(•)" or "(R(•),•)".
func (v *Value) String() string {
	switch v.Kind {
	case ValueUnit:
		return "•"
	case ValueLeft:
		return fmt.Sprintf("L(%s)", v.Inner)
	case ValueRight:
		return fmt.Sprintf("R(%s)", v.Inner)
	default:
		return fmt.Sprintf("(%s,%s)", v.Inner, v.Second)
	}
}
