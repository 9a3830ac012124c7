package vm

import "fmt"

// ---------------------------------------------------------------------------
// Machine: arena, allocation pointer, read/write frame stacks
// ---------------------------------------------------------------------------

// Machine is the execution context for one program run. It owns a single
// byte arena backing every frame, and two frame stacks whose tops are the
// active read and write frames that all primitive operations target.
//
// Allocation is LIFO: frames are carved off the arena left to right and
// released in exact reverse order. The program's precomputed bounds
// guarantee capacity; the machine asserts the accounting but does not
// re-derive sufficiency.
//
// A Machine runs exactly one program to completion or fault and is then
// discarded. It is not safe for concurrent use, and never needs to be: a run
// has no suspension points.
type Machine struct {
	prog *Program

	data           []byte // the arena; pre-zeroed
	nextFrameStart int    // first unallocated bit
	read           []Frame
	write          []Frame
}

// NewMachine constructs a machine with enough arena and stack capacity to
// execute prog.
func NewMachine(prog *Program) *Machine {
	root := prog.Root()
	ioWidth := root.SourceType.BitWidth() + root.TargetType.BitWidth()
	return &Machine{
		prog: prog,
		data: make([]byte, (ioWidth+prog.ExtraCellsBound+7)/8),
		// +1 for the input and output frames, which the bound excludes.
		read:  make([]Frame, 0, prog.FrameCountBound+1),
		write: make([]Frame, 0, prog.FrameCountBound+1),
	}
}

// ---------------------------------------------------------------------------
// Frame stack management
// ---------------------------------------------------------------------------

// allocateWriteFrame pushes a fresh frame of length bits onto the write
// stack. The program's bounds must make this fit; running out of arena is an
// internal fault, never an expected condition.
func (m *Machine) allocateWriteFrame(length int) error {
	if m.nextFrameStart+length > len(m.data)*8 {
		return fmt.Errorf("%w: allocating %d bits at %d exceeds arena of %d bits",
			ErrFrameAccounting, length, m.nextFrameStart, len(m.data)*8)
	}
	m.write = append(m.write, newFrame(m.nextFrameStart, length))
	m.nextFrameStart += length
	return nil
}

// commitActiveWriteFrame moves the fully produced top write frame onto the
// read stack, rewinding its cursor.
func (m *Machine) commitActiveWriteFrame() error {
	if len(m.write) == 0 {
		return fmt.Errorf("%w: commit with empty write stack", ErrStackUnderflow)
	}
	f := m.write[len(m.write)-1]
	m.write = m.write[:len(m.write)-1]
	f.resetCursor()
	m.read = append(m.read, f)
	return nil
}

// releaseActiveReadFrame pops the top read frame and returns its bits to the
// arena. The allocation pointer must land exactly on the frame's own start;
// anything else means the LIFO nesting was violated.
func (m *Machine) releaseActiveReadFrame() error {
	if len(m.read) == 0 {
		return fmt.Errorf("%w: release with empty read stack", ErrStackUnderflow)
	}
	f := m.read[len(m.read)-1]
	m.read = m.read[:len(m.read)-1]
	m.nextFrameStart -= f.length
	if m.nextFrameStart != f.start {
		return fmt.Errorf("%w: release landed at bit %d, frame starts at %d",
			ErrFrameAccounting, m.nextFrameStart, f.start)
	}
	return nil
}

func (m *Machine) activeRead() (*Frame, error) {
	if len(m.read) == 0 {
		return nil, fmt.Errorf("%w: no active read frame", ErrStackUnderflow)
	}
	return &m.read[len(m.read)-1], nil
}

func (m *Machine) activeWrite() (*Frame, error) {
	if len(m.write) == 0 {
		return nil, fmt.Errorf("%w: no active write frame", ErrStackUnderflow)
	}
	return &m.write[len(m.write)-1], nil
}

// ---------------------------------------------------------------------------
// Primitive operations
//
// The exported subset is the complete surface a jet may touch; the
// interpreter itself also uses the unexported cursor/copy primitives.
// ---------------------------------------------------------------------------

// WriteBit writes one bit to the active write frame.
func (m *Machine) WriteBit(bit bool) error {
	f, err := m.activeWrite()
	if err != nil {
		return err
	}
	return f.writeBit(m.data, bit)
}

// ReadBit reads one bit from the active read frame.
func (m *Machine) ReadBit() (bool, error) {
	f, err := m.activeRead()
	if err != nil {
		return false, err
	}
	return f.readBit(m.data)
}

// WriteU8 writes a big-endian u8 to the active write frame.
func (m *Machine) WriteU8(v uint8) error { return m.writeUint(uint64(v), 8) }

// WriteU16 writes a big-endian u16 to the active write frame.
func (m *Machine) WriteU16(v uint16) error { return m.writeUint(uint64(v), 16) }

// WriteU32 writes a big-endian u32 to the active write frame.
func (m *Machine) WriteU32(v uint32) error { return m.writeUint(uint64(v), 32) }

// WriteU64 writes a big-endian u64 to the active write frame.
func (m *Machine) WriteU64(v uint64) error { return m.writeUint(v, 64) }

func (m *Machine) writeUint(v uint64, bits int) error {
	f, err := m.activeWrite()
	if err != nil {
		return err
	}
	return f.writeUint(m.data, v, bits)
}

// ReadU8 reads a big-endian u8 from the active read frame.
func (m *Machine) ReadU8() (uint8, error) {
	v, err := m.readUint(8)
	return uint8(v), err
}

// ReadU16 reads a big-endian u16 from the active read frame.
func (m *Machine) ReadU16() (uint16, error) {
	v, err := m.readUint(16)
	return uint16(v), err
}

// ReadU32 reads a big-endian u32 from the active read frame.
func (m *Machine) ReadU32() (uint32, error) {
	v, err := m.readUint(32)
	return uint32(v), err
}

// ReadU64 reads a big-endian u64 from the active read frame.
func (m *Machine) ReadU64() (uint64, error) { return m.readUint(64) }

func (m *Machine) readUint(bits int) (uint64, error) {
	f, err := m.activeRead()
	if err != nil {
		return 0, err
	}
	return f.readUint(m.data, bits)
}

// WriteBytes writes bytes to the active write frame.
func (m *Machine) WriteBytes(b []byte) error {
	for _, x := range b {
		if err := m.WriteU8(x); err != nil {
			return err
		}
	}
	return nil
}

// ReadBytes reads n bytes from the active read frame.
func (m *Machine) ReadBytes(n int) ([]byte, error) {
	out := make([]byte, n)
	for i := range out {
		x, err := m.ReadU8()
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// Read32Bytes reads a 256-bit word from the active read frame.
func (m *Machine) Read32Bytes() ([32]byte, error) {
	var out [32]byte
	for i := range out {
		x, err := m.ReadU8()
		if err != nil {
			return out, err
		}
		out[i] = x
	}
	return out, nil
}

// skip advances the active write frame's cursor by n bits, leaving the
// skipped bits as they are (the arena is pre-zeroed).
//
// skip, copy, fwd and back treat n == 0 as a no-op without requiring an
// active frame: zero-width programs legitimately run with empty stacks.
func (m *Machine) skip(n int) error {
	if n == 0 {
		return nil
	}
	f, err := m.activeWrite()
	if err != nil {
		return err
	}
	return f.moveCursorForward(n)
}

// copy moves n bits from the active read frame to the active write frame,
// advancing only the write cursor. The read cursor is untouched: copying
// never consumes input, and the evaluator restores or advances it explicitly
// where a combinator calls for it.
func (m *Machine) copy(n int) error {
	if n == 0 {
		return nil
	}
	w, err := m.activeWrite()
	if err != nil {
		return err
	}
	r, err := m.activeRead()
	if err != nil {
		return err
	}
	return w.copyFrom(m.data, r, n)
}

// fwd advances the active read frame's cursor by n bits.
func (m *Machine) fwd(n int) error {
	if n == 0 {
		return nil
	}
	f, err := m.activeRead()
	if err != nil {
		return err
	}
	return f.moveCursorForward(n)
}

// back retreats the active read frame's cursor by n bits.
func (m *Machine) back(n int) error {
	if n == 0 {
		return nil
	}
	f, err := m.activeRead()
	if err != nil {
		return err
	}
	return f.moveCursorBackward(n)
}

// peekBit reads the active read frame's next bit without consuming it.
func (m *Machine) peekBit() (bool, error) {
	f, err := m.activeRead()
	if err != nil {
		return false, err
	}
	return f.peekBit(m.data)
}

// ---------------------------------------------------------------------------
// Value codec: type-directed, pre-order, tag before payload
// ---------------------------------------------------------------------------

// writeValue encodes v into the active write frame so that it occupies
// exactly t.BitWidth() bits: sums contribute one discriminant bit, then
// max(left,right) − arm padding bits, then the arm; products are left then
// right, back to back; unit contributes nothing.
func (m *Machine) writeValue(v *Value, t *Type) error {
	type entry struct {
		v *Value
		t *Type
	}
	stack := []entry{{v, t}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch e.v.Kind {
		case ValueUnit:
			if e.t.Kind != TypeUnit {
				return fmt.Errorf("%w: unit value against type %s", ErrStructuralType, e.t)
			}
		case ValueLeft, ValueRight:
			if e.t.Kind != TypeSum {
				return fmt.Errorf("%w: sum value against type %s", ErrStructuralType, e.t)
			}
			arm := e.t.Left
			if e.v.Kind == ValueRight {
				arm = e.t.Right
			}
			if err := m.WriteBit(e.v.Kind == ValueRight); err != nil {
				return err
			}
			if err := m.skip(e.t.BitWidth() - arm.BitWidth() - 1); err != nil {
				return err
			}
			stack = append(stack, entry{e.v.Inner, arm})
		case ValuePair:
			if e.t.Kind != TypeProduct {
				return fmt.Errorf("%w: pair value against type %s", ErrStructuralType, e.t)
			}
			// Popped LIFO, so push the right component first.
			stack = append(stack, entry{e.v.Second, e.t.Right})
			stack = append(stack, entry{e.v.Inner, e.t.Left})
		}
	}
	return nil
}

// decodeValue reads one value of type t from f. The type shape drives the
// decode; the bits alone are not self-describing.
func (m *Machine) decodeValue(f *Frame, t *Type) (*Value, error) {
	switch t.Kind {
	case TypeUnit:
		return Unit(), nil
	case TypeSum:
		bit, err := f.readBit(m.data)
		if err != nil {
			return nil, err
		}
		arm := t.Left
		if bit {
			arm = t.Right
		}
		if err := f.moveCursorForward(t.BitWidth() - arm.BitWidth() - 1); err != nil {
			return nil, err
		}
		inner, err := m.decodeValue(f, arm)
		if err != nil {
			return nil, err
		}
		if bit {
			return Right(inner), nil
		}
		return Left(inner), nil
	default:
		first, err := m.decodeValue(f, t.Left)
		if err != nil {
			return nil, err
		}
		second, err := m.decodeValue(f, t.Right)
		if err != nil {
			return nil, err
		}
		return Pair(first, second), nil
	}
}

// InstallInput encodes v as the program's input read frame. It must be
// called before Run whenever the program's source type has nonzero width;
// the value must match that type exactly.
func (m *Machine) InstallInput(v *Value) error {
	src := m.prog.Root().SourceType
	if !v.MatchesType(src) {
		return fmt.Errorf("%w: input %s does not inhabit source type %s",
			ErrStructuralType, v, src)
	}
	if err := m.allocateWriteFrame(src.BitWidth()); err != nil {
		return err
	}
	if err := m.writeValue(v, src); err != nil {
		return err
	}
	return m.commitActiveWriteFrame()
}
