package vm

import (
	"errors"
	"testing"
)

// scratchMachine builds a machine with a raw arena for frame-discipline
// tests that need no program.
func scratchMachine(arenaBytes int) *Machine {
	return &Machine{data: make([]byte, arenaBytes)}
}

func TestFrameLifecycleAccounting(t *testing.T) {
	m := scratchMachine(8)

	if err := m.allocateWriteFrame(24); err != nil {
		t.Fatal(err)
	}
	if err := m.allocateWriteFrame(16); err != nil {
		t.Fatal(err)
	}
	if m.nextFrameStart != 40 {
		t.Fatalf("allocation pointer = %d, want 40", m.nextFrameStart)
	}

	// Inner frame retires first: pointer must walk back exactly.
	if err := m.commitActiveWriteFrame(); err != nil {
		t.Fatal(err)
	}
	if err := m.releaseActiveReadFrame(); err != nil {
		t.Fatal(err)
	}
	if m.nextFrameStart != 24 {
		t.Errorf("allocation pointer after inner release = %d, want 24", m.nextFrameStart)
	}

	if err := m.commitActiveWriteFrame(); err != nil {
		t.Fatal(err)
	}
	if err := m.releaseActiveReadFrame(); err != nil {
		t.Fatal(err)
	}
	if m.nextFrameStart != 0 {
		t.Errorf("allocation pointer after outer release = %d, want 0", m.nextFrameStart)
	}
}

func TestReleaseOutOfOrderIsAccountingFault(t *testing.T) {
	m := scratchMachine(8)

	if err := m.allocateWriteFrame(8); err != nil { // outer, start 0
		t.Fatal(err)
	}
	if err := m.commitActiveWriteFrame(); err != nil {
		t.Fatal(err)
	}
	if err := m.allocateWriteFrame(8); err != nil { // inner, start 8
		t.Fatal(err)
	}

	// Releasing the outer frame while the inner one is still open breaks
	// the LIFO nesting: the pointer lands at 8, not the frame's start 0.
	err := m.releaseActiveReadFrame()
	if !errors.Is(err, ErrFrameAccounting) {
		t.Errorf("out-of-order release = %v, want frame accounting fault", err)
	}
}

func TestArenaExhaustionIsAccountingFault(t *testing.T) {
	m := scratchMachine(1)
	if err := m.allocateWriteFrame(9); !errors.Is(err, ErrFrameAccounting) {
		t.Errorf("oversized allocation = %v, want frame accounting fault", err)
	}
}

func TestPrimitiveUnderflow(t *testing.T) {
	m := scratchMachine(4)

	if err := m.WriteBit(true); !errors.Is(err, ErrStackUnderflow) {
		t.Errorf("WriteBit on empty stack = %v, want stack underflow", err)
	}
	if _, err := m.ReadBit(); !errors.Is(err, ErrStackUnderflow) {
		t.Errorf("ReadBit on empty stack = %v, want stack underflow", err)
	}
	if _, err := m.ReadU32(); !errors.Is(err, ErrStackUnderflow) {
		t.Errorf("ReadU32 on empty stack = %v, want stack underflow", err)
	}
	if err := m.commitActiveWriteFrame(); !errors.Is(err, ErrStackUnderflow) {
		t.Errorf("commit on empty stack = %v, want stack underflow", err)
	}
	if err := m.releaseActiveReadFrame(); !errors.Is(err, ErrStackUnderflow) {
		t.Errorf("release on empty stack = %v, want stack underflow", err)
	}
	// n == 0 cursor moves are no-ops even with empty stacks.
	if err := m.copy(0); err != nil {
		t.Errorf("copy(0) = %v, want nil", err)
	}
	if err := m.fwd(0); err != nil {
		t.Errorf("fwd(0) = %v, want nil", err)
	}
}

func TestCopyLeavesReadCursor(t *testing.T) {
	m := scratchMachine(4)

	if err := m.allocateWriteFrame(12); err != nil {
		t.Fatal(err)
	}
	if err := m.writeUint(0xABC, 12); err != nil {
		t.Fatal(err)
	}
	if err := m.commitActiveWriteFrame(); err != nil {
		t.Fatal(err)
	}
	if err := m.allocateWriteFrame(12); err != nil {
		t.Fatal(err)
	}

	if err := m.copy(12); err != nil {
		t.Fatalf("copy: %v", err)
	}
	r, err := m.activeRead()
	if err != nil {
		t.Fatal(err)
	}
	if r.cursor != 0 {
		t.Errorf("read cursor = %d after copy, want 0", r.cursor)
	}
	w, err := m.activeWrite()
	if err != nil {
		t.Fatal(err)
	}
	if w.cursor != 12 {
		t.Errorf("write cursor = %d after copy, want 12", w.cursor)
	}
	w.resetCursor()
	if v, _ := w.readUint(m.data, 12); v != 0xABC {
		t.Errorf("copied bits = %#x, want 0xabc", v)
	}
}

func TestValueCodecRoundTrip(t *testing.T) {
	asym := SumType(UnitType(), Word(5))
	cases := []struct {
		ty *Type
		v  *Value
	}{
		{UnitType(), Unit()},
		{Word(0), Bit(true)},
		{Word(5), WordValue(5, 0xDEADBEEF)},
		{asym, Left(Unit())},                  // heavily padded arm
		{asym, Right(WordValue(5, 7))},        // full-width arm
		{ProductType(asym, Word(0)), Pair(Left(Unit()), Bit(false))},
	}

	for _, c := range cases {
		m := scratchMachine((c.ty.BitWidth() + 7) / 8)
		if err := m.allocateWriteFrame(c.ty.BitWidth()); err != nil {
			t.Fatal(err)
		}
		if err := m.writeValue(c.v, c.ty); err != nil {
			t.Fatalf("writeValue(%s : %s): %v", c.v, c.ty, err)
		}
		if err := m.commitActiveWriteFrame(); err != nil {
			t.Fatal(err)
		}
		f, err := m.activeRead()
		if err != nil {
			t.Fatal(err)
		}
		got, err := m.decodeValue(f, c.ty)
		if err != nil {
			t.Fatalf("decodeValue(%s): %v", c.ty, err)
		}
		if !got.Equal(c.v) {
			t.Errorf("round trip of %s : %s = %s", c.v, c.ty, got)
		}
	}
}

func TestWriteValueShapeMismatch(t *testing.T) {
	m := scratchMachine(4)
	if err := m.allocateWriteFrame(9); err != nil {
		t.Fatal(err)
	}
	err := m.writeValue(Pair(Unit(), Unit()), SumType(UnitType(), Word(3)))
	if !errors.Is(err, ErrStructuralType) {
		t.Errorf("pair against sum type = %v, want structural type fault", err)
	}
}

func TestInstallInputChecksShape(t *testing.T) {
	b := NewProgramBuilder()
	b.Iden(Word(3))
	p, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	m := NewMachine(p)
	if err := m.InstallInput(Unit()); !errors.Is(err, ErrStructuralType) {
		t.Errorf("unit input for 2^8 source = %v, want structural type fault", err)
	}
	if err := m.InstallInput(WordValue(3, 0x42)); err != nil {
		t.Errorf("matching input = %v, want nil", err)
	}
	if len(m.read) != 1 {
		t.Errorf("read stack depth = %d after install, want 1", len(m.read))
	}
}
