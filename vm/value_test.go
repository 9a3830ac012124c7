package vm

import "testing"

func TestTypeBitWidth(t *testing.T) {
	cases := []struct {
		ty   *Type
		want int
	}{
		{UnitType(), 0},
		{SumType(UnitType(), UnitType()), 1},
		{SumType(UnitType(), Word(3)), 9}, // asymmetric: 1 + max(0, 8)
		{ProductType(Word(3), Word(3)), 16},
		{Word(0), 1},
		{Word(5), 32},
		{Word(8), 256},
	}
	for _, c := range cases {
		if got := c.ty.BitWidth(); got != c.want {
			t.Errorf("BitWidth(%s) = %d, want %d", c.ty, got, c.want)
		}
	}
}

func TestWordValueShape(t *testing.T) {
	v := WordValue(3, 0xA5)
	if !v.MatchesType(Word(3)) {
		t.Fatalf("WordValue(3, 0xA5) does not inhabit %s", Word(3))
	}

	// 0xA5 = 10100101: check the leading bit via the leftmost leaf.
	leaf := v
	for leaf.Kind == ValuePair {
		leaf = leaf.Inner
	}
	if !leaf.Equal(Bit(true)) {
		t.Errorf("leading bit of 0xa5 = %s, want R(•)", leaf)
	}
}

func TestValueEqual(t *testing.T) {
	a := Pair(Left(Unit()), Right(Unit()))
	b := Pair(Left(Unit()), Right(Unit()))
	c := Pair(Right(Unit()), Right(Unit()))

	if !a.Equal(b) {
		t.Errorf("%s != %s, want equal", a, b)
	}
	if a.Equal(c) {
		t.Errorf("%s == %s, want unequal", a, c)
	}
	if !WordValue(5, 42).Equal(WordValue(5, 42)) {
		t.Error("identical word values compare unequal")
	}
	if WordValue(5, 42).Equal(WordValue(5, 43)) {
		t.Error("different word values compare equal")
	}
}

func TestMatchesType(t *testing.T) {
	asym := SumType(UnitType(), Word(3))

	if !Left(Unit()).MatchesType(asym) {
		t.Error("Left(unit) should inhabit 1+2^8 sum")
	}
	if !Right(WordValue(3, 7)).MatchesType(asym) {
		t.Error("Right(word) should inhabit 1+2^8 sum")
	}
	if Right(Unit()).MatchesType(asym) {
		t.Error("Right(unit) should not inhabit 1+2^8 sum")
	}
	if Unit().MatchesType(asym) {
		t.Error("unit should not inhabit a sum type")
	}
	if Pair(Unit(), Unit()).MatchesType(UnitType()) {
		t.Error("pair should not inhabit unit type")
	}
}

func TestTypeString(t *testing.T) {
	ty := ProductType(SumType(UnitType(), UnitType()), UnitType())
	if got := ty.String(); got != "((1+1)×1)" {
		t.Errorf("String() = %q, want %q", got, "((1+1)×1)")
	}
}
