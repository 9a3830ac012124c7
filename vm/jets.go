package vm

import "crypto/sha256"

// ---------------------------------------------------------------------------
// Reference jets
//
// Two concrete capabilities exercising the Jet contract. Hosts embedding the
// engine register their own; the interpreter treats all of them identically.
// ---------------------------------------------------------------------------

// Adder32 computes 32-bit addition with carry:
// 2^32 × 2^32 ⊢ 2 × 2^32.
type Adder32 struct{}

// Name implements Jet.
func (Adder32) Name() string { return "adder32" }

// SourceType implements Jet.
func (Adder32) SourceType() *Type { return ProductType(Word(5), Word(5)) }

// TargetType implements Jet.
func (Adder32) TargetType() *Type { return ProductType(Word(0), Word(5)) }

// Exec implements Jet.
func (Adder32) Exec(m *Machine, _ any) error {
	a, err := m.ReadU32()
	if err != nil {
		return err
	}
	b, err := m.ReadU32()
	if err != nil {
		return err
	}
	sum := uint64(a) + uint64(b)
	if err := m.WriteBit(sum > 0xFFFFFFFF); err != nil {
		return err
	}
	return m.WriteU32(uint32(sum))
}

// Sha256 hashes one 512-bit block: 2^512 ⊢ 2^256.
type Sha256 struct{}

// Name implements Jet.
func (Sha256) Name() string { return "sha256" }

// SourceType implements Jet.
func (Sha256) SourceType() *Type { return Word(9) }

// TargetType implements Jet.
func (Sha256) TargetType() *Type { return Word(8) }

// Exec implements Jet.
func (Sha256) Exec(m *Machine, _ any) error {
	block, err := m.ReadBytes(64)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(block)
	return m.WriteBytes(digest[:])
}
