package vm

import "fmt"

// ---------------------------------------------------------------------------
// Frame: bit-addressable window over the machine arena
// ---------------------------------------------------------------------------

// Frame is a non-owning window into the machine's arena: a start offset, a
// length and a cursor, all in bits. Bit order is MSB-first within each byte;
// multi-bit fields are big-endian. A Frame never touches bytes outside
// [start, start+length) and every cursor move is bounds-checked.
type Frame struct {
	start  int // absolute bit offset into the arena
	length int // window size in bits
	cursor int // read/write head, 0 <= cursor <= length
}

func newFrame(start, length int) Frame {
	return Frame{start: start, length: length}
}

// Len returns the window size in bits.
func (f *Frame) Len() int { return f.length }

// resetCursor rewinds the cursor to the start of the window.
func (f *Frame) resetCursor() { f.cursor = 0 }

func (f *Frame) boundsErr(op string, n int) error {
	return fmt.Errorf("%w: %s of %d bits at cursor %d exceeds frame of %d bits",
		ErrFrameAccounting, op, n, f.cursor, f.length)
}

// writeBit writes one bit at the cursor and advances it.
func (f *Frame) writeBit(data []byte, bit bool) error {
	if f.cursor >= f.length {
		return f.boundsErr("write", 1)
	}
	pos := f.start + f.cursor
	if bit {
		data[pos>>3] |= 1 << uint(7-pos&7)
	} else {
		data[pos>>3] &^= 1 << uint(7-pos&7)
	}
	f.cursor++
	return nil
}

// readBit reads one bit at the cursor and advances it.
func (f *Frame) readBit(data []byte) (bool, error) {
	bit, err := f.peekBit(data)
	if err != nil {
		return false, err
	}
	f.cursor++
	return bit, nil
}

// peekBit reads the bit at the cursor without advancing.
func (f *Frame) peekBit(data []byte) (bool, error) {
	if f.cursor >= f.length {
		return false, f.boundsErr("read", 1)
	}
	pos := f.start + f.cursor
	return data[pos>>3]&(1<<uint(7-pos&7)) != 0, nil
}

// moveCursorForward advances the cursor by n bits.
func (f *Frame) moveCursorForward(n int) error {
	if n < 0 || f.cursor+n > f.length {
		return f.boundsErr("skip", n)
	}
	f.cursor += n
	return nil
}

// moveCursorBackward retreats the cursor by n bits.
func (f *Frame) moveCursorBackward(n int) error {
	if n < 0 || n > f.cursor {
		return f.boundsErr("rewind", n)
	}
	f.cursor -= n
	return nil
}

// copyFrom copies n bits from other's cursor into f's cursor, advancing f's
// cursor by n. other's cursor stays put: the source frame is read-only here,
// and callers that consume the copied bits advance it explicitly. The two
// windows never overlap: LIFO frame discipline keeps read and write frames
// disjoint in the arena.
func (f *Frame) copyFrom(data []byte, other *Frame, n int) error {
	if f.cursor+n > f.length {
		return f.boundsErr("copy", n)
	}
	if other.cursor+n > other.length {
		return other.boundsErr("copy", n)
	}
	src := other.start + other.cursor
	dst := f.start + f.cursor
	for i := 0; i < n; i++ {
		bit := data[src>>3]&(1<<uint(7-src&7)) != 0
		if bit {
			data[dst>>3] |= 1 << uint(7-dst&7)
		} else {
			data[dst>>3] &^= 1 << uint(7-dst&7)
		}
		src++
		dst++
	}
	f.cursor += n
	return nil
}

// writeUint writes the low `bits` bits of v big-endian at the cursor.
// bits must be 8, 16, 32 or 64.
func (f *Frame) writeUint(data []byte, v uint64, bits int) error {
	if f.cursor+bits > f.length {
		return f.boundsErr("write", bits)
	}
	for i := bits - 1; i >= 0; i-- {
		pos := f.start + f.cursor
		if v&(1<<uint(i)) != 0 {
			data[pos>>3] |= 1 << uint(7-pos&7)
		} else {
			data[pos>>3] &^= 1 << uint(7-pos&7)
		}
		f.cursor++
	}
	return nil
}

// readUint reads `bits` bits big-endian at the cursor.
func (f *Frame) readUint(data []byte, bits int) (uint64, error) {
	if f.cursor+bits > f.length {
		return 0, f.boundsErr("read", bits)
	}
	var v uint64
	for i := 0; i < bits; i++ {
		pos := f.start + f.cursor
		v <<= 1
		if data[pos>>3]&(1<<uint(7-pos&7)) != 0 {
			v |= 1
		}
		f.cursor++
	}
	return v, nil
}

// materialize packs the frame's bits into a fresh byte slice, MSB-first from
// bit zero. The window's start offset need not be byte-aligned.
func (f *Frame) materialize(data []byte) []byte {
	out := make([]byte, (f.length+7)/8)
	for i := 0; i < f.length; i++ {
		pos := f.start + i
		if data[pos>>3]&(1<<uint(7-pos&7)) != 0 {
			out[i>>3] |= 1 << uint(7-i&7)
		}
	}
	return out
}
