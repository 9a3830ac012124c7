package vm

import (
	"crypto/sha256"
	"fmt"
)

// ---------------------------------------------------------------------------
// ProgramBuilder: typed DAG assembly
// ---------------------------------------------------------------------------

// ProgramBuilder assembles a combinator DAG bottom-up, standing in for the
// upstream loading/type-inference stage: it attaches finalized types to each
// node, computes the storage and frame-count bounds the machine trusts, and
// derives commitment digests.
//
// Each combinator method appends one node and returns its index for use as a
// child reference. Type errors are recorded and reported by Build; after the
// first error the builder keeps accepting calls (with placeholder types) so
// callers need not check every step.
type ProgramBuilder struct {
	nodes  []Node
	extra  []int // per-node extra-cells bound
	frames []int // per-node live-frame bound
	err    error
}

// NewProgramBuilder creates an empty builder.
func NewProgramBuilder() *ProgramBuilder {
	return &ProgramBuilder{}
}

func (b *ProgramBuilder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
}

// add appends a node along with its bounds and returns its index.
func (b *ProgramBuilder) add(n Node, extraCells, frameCount int) int {
	b.nodes = append(b.nodes, n)
	b.extra = append(b.extra, extraCells)
	b.frames = append(b.frames, frameCount)
	return len(b.nodes) - 1
}

func (b *ProgramBuilder) node(i int) *Node {
	if i < 0 || i >= len(b.nodes) {
		b.fail("child index %d out of range", i)
		return &Node{SourceType: UnitType(), TargetType: UnitType()}
	}
	return &b.nodes[i]
}

// typesEqual reports structural type equality.
func typesEqual(a, c *Type) bool {
	if a == c {
		return true
	}
	if a.Kind != c.Kind {
		return false
	}
	if a.Kind == TypeUnit {
		return true
	}
	return typesEqual(a.Left, c.Left) && typesEqual(a.Right, c.Right)
}

// ---------------------------------------------------------------------------
// Commitment digests
//
// Deterministic sha256 over a domain tag and the committed children. This is
// this engine's stand-in for the upstream commitment stage: witness data is
// never committed, and disconnect commits only its left child (the right one
// is referenced by digest at run time instead).
// ---------------------------------------------------------------------------

func commitDigest(kind NodeKind, payload ...[]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte("lattice\x1fcommitment\x1f"))
	h.Write([]byte(kind.String()))
	h.Write([]byte{0})
	for _, p := range payload {
		h.Write(p)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// ---------------------------------------------------------------------------
// Combinators
// ---------------------------------------------------------------------------

// Unit adds unit : A ⊢ 1.
func (b *ProgramBuilder) Unit(source *Type) int {
	return b.add(Node{
		Kind:       NodeUnit,
		Left:       -1,
		Right:      -1,
		SourceType: source,
		TargetType: UnitType(),
		Commitment: commitDigest(NodeUnit),
	}, 0, 0)
}

// Iden adds iden : A ⊢ A.
func (b *ProgramBuilder) Iden(source *Type) int {
	return b.add(Node{
		Kind:       NodeIden,
		Left:       -1,
		Right:      -1,
		SourceType: source,
		TargetType: source,
		Commitment: commitDigest(NodeIden),
	}, 0, 0)
}

// InjL adds injl t : A ⊢ B+C from t : A ⊢ B, given C.
func (b *ProgramBuilder) InjL(child int, right *Type) int {
	c := b.node(child)
	return b.add(Node{
		Kind:       NodeInjL,
		Left:       child,
		Right:      -1,
		SourceType: c.SourceType,
		TargetType: SumType(c.TargetType, right),
		Commitment: commitDigest(NodeInjL, c.Commitment[:]),
	}, b.extra[child], b.frames[child])
}

// InjR adds injr t : A ⊢ B+C from t : A ⊢ C, given B.
func (b *ProgramBuilder) InjR(child int, left *Type) int {
	c := b.node(child)
	return b.add(Node{
		Kind:       NodeInjR,
		Left:       child,
		Right:      -1,
		SourceType: c.SourceType,
		TargetType: SumType(left, c.TargetType),
		Commitment: commitDigest(NodeInjR, c.Commitment[:]),
	}, b.extra[child], b.frames[child])
}

// Pair adds pair s t : A ⊢ B×C from s : A ⊢ B and t : A ⊢ C.
func (b *ProgramBuilder) Pair(left, right int) int {
	s, t := b.node(left), b.node(right)
	if !typesEqual(s.SourceType, t.SourceType) {
		b.fail("pair: source mismatch %s vs %s", s.SourceType, t.SourceType)
	}
	return b.add(Node{
		Kind:       NodePair,
		Left:       left,
		Right:      right,
		SourceType: s.SourceType,
		TargetType: ProductType(s.TargetType, t.TargetType),
		Commitment: commitDigest(NodePair, s.Commitment[:], t.Commitment[:]),
	}, max(b.extra[left], b.extra[right]), max(b.frames[left], b.frames[right]))
}

// Comp adds comp s t : A ⊢ C from s : A ⊢ B and t : B ⊢ C. Evaluation
// allocates one intermediate frame of B's width.
func (b *ProgramBuilder) Comp(left, right int) int {
	s, t := b.node(left), b.node(right)
	if !typesEqual(s.TargetType, t.SourceType) {
		b.fail("comp: %s does not feed %s", s.TargetType, t.SourceType)
	}
	return b.add(Node{
		Kind:       NodeComp,
		Left:       left,
		Right:      right,
		SourceType: s.SourceType,
		TargetType: t.TargetType,
		Commitment: commitDigest(NodeComp, s.Commitment[:], t.Commitment[:]),
	}, s.TargetType.BitWidth()+max(b.extra[left], b.extra[right]),
		1+max(b.frames[left], b.frames[right]))
}

// Take adds take t : A×B ⊢ C from t : A ⊢ C, given B.
func (b *ProgramBuilder) Take(child int, second *Type) int {
	c := b.node(child)
	return b.add(Node{
		Kind:       NodeTake,
		Left:       child,
		Right:      -1,
		SourceType: ProductType(c.SourceType, second),
		TargetType: c.TargetType,
		Commitment: commitDigest(NodeTake, c.Commitment[:]),
	}, b.extra[child], b.frames[child])
}

// Drop adds drop t : A×B ⊢ C from t : B ⊢ C, given A.
func (b *ProgramBuilder) Drop(child int, first *Type) int {
	c := b.node(child)
	return b.add(Node{
		Kind:       NodeDrop,
		Left:       child,
		Right:      -1,
		SourceType: ProductType(first, c.SourceType),
		TargetType: c.TargetType,
		Commitment: commitDigest(NodeDrop, c.Commitment[:]),
	}, b.extra[child], b.frames[child])
}

// Case adds case s t : (A+B)×C ⊢ D from s : A×C ⊢ D and t : B×C ⊢ D.
func (b *ProgramBuilder) Case(left, right int) int {
	s, t := b.node(left), b.node(right)
	if s.SourceType.Kind != TypeProduct || t.SourceType.Kind != TypeProduct {
		b.fail("case: branch sources %s, %s must be products", s.SourceType, t.SourceType)
		return b.add(Node{Kind: NodeCase, Left: left, Right: right,
			SourceType: UnitType(), TargetType: UnitType()}, 0, 0)
	}
	if !typesEqual(s.SourceType.Right, t.SourceType.Right) {
		b.fail("case: second components differ: %s vs %s",
			s.SourceType.Right, t.SourceType.Right)
	}
	if !typesEqual(s.TargetType, t.TargetType) {
		b.fail("case: branch targets differ: %s vs %s", s.TargetType, t.TargetType)
	}
	return b.add(Node{
		Kind:       NodeCase,
		Left:       left,
		Right:      right,
		SourceType: ProductType(SumType(s.SourceType.Left, t.SourceType.Left), s.SourceType.Right),
		TargetType: s.TargetType,
		Commitment: commitDigest(NodeCase, s.Commitment[:], t.Commitment[:]),
	}, max(b.extra[left], b.extra[right]), max(b.frames[left], b.frames[right]))
}

// Disconnect adds disconnect s t : A ⊢ B×D from s : 2^256×A ⊢ B×C and
// t : C ⊢ D. At run time s sees t's commitment digest in place of t itself.
func (b *ProgramBuilder) Disconnect(left, right int) int {
	s, t := b.node(left), b.node(right)
	bad := func(format string, args ...any) int {
		b.fail(format, args...)
		return b.add(Node{Kind: NodeDisconnect, Left: left, Right: right,
			SourceType: UnitType(), TargetType: UnitType()}, 0, 0)
	}
	if s.SourceType.Kind != TypeProduct || s.SourceType.Left.BitWidth() != 256 {
		return bad("disconnect: left source %s must pair a 256-bit word with the input", s.SourceType)
	}
	if s.TargetType.Kind != TypeProduct {
		return bad("disconnect: left target %s must be a product", s.TargetType)
	}
	if !typesEqual(s.TargetType.Right, t.SourceType) {
		return bad("disconnect: %s does not feed %s", s.TargetType.Right, t.SourceType)
	}
	return b.add(Node{
		Kind:       NodeDisconnect,
		Left:       left,
		Right:      right,
		SourceType: s.SourceType.Right,
		TargetType: ProductType(s.TargetType.Left, t.TargetType),
		Commitment: commitDigest(NodeDisconnect, s.Commitment[:]),
	}, s.SourceType.BitWidth()+s.TargetType.BitWidth()+max(b.extra[left], b.extra[right]),
		2+max(b.frames[left], b.frames[right]))
}

// Witness adds witness v : A ⊢ B. The literal must inhabit B exactly; the
// commitment does not cover it.
func (b *ProgramBuilder) Witness(source, target *Type, v *Value) int {
	if !v.MatchesType(target) {
		b.fail("witness: literal %s does not inhabit %s", v, target)
	}
	return b.add(Node{
		Kind:       NodeWitness,
		Left:       -1,
		Right:      -1,
		SourceType: source,
		TargetType: target,
		Witness:    v,
		Commitment: commitDigest(NodeWitness),
	}, 0, 0)
}

// Hidden adds a redacted subexpression known only by its digest. Reaching it
// during evaluation is always a fault.
func (b *ProgramBuilder) Hidden(source, target *Type, digest [32]byte) int {
	return b.add(Node{
		Kind:       NodeHidden,
		Left:       -1,
		Right:      -1,
		SourceType: source,
		TargetType: target,
		Commitment: digest,
	}, 0, 0)
}

// Fail adds fail : A ⊢ B, a statically unreachable path marker.
func (b *ProgramBuilder) Fail(source, target *Type) int {
	return b.add(Node{
		Kind:       NodeFail,
		Left:       -1,
		Right:      -1,
		SourceType: source,
		TargetType: target,
		Commitment: commitDigest(NodeFail),
	}, 0, 0)
}

// Jet adds an external capability node typed by the jet itself.
func (b *ProgramBuilder) Jet(j Jet) int {
	return b.add(Node{
		Kind:       NodeJet,
		Left:       -1,
		Right:      -1,
		SourceType: j.SourceType(),
		TargetType: j.TargetType(),
		Jet:        j,
		Commitment: commitDigest(NodeJet, []byte(j.Name())),
	}, 0, 0)
}

// Build finalizes the program with the last node added as root.
func (b *ProgramBuilder) Build() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.nodes) == 0 {
		return nil, fmt.Errorf("empty program")
	}
	root := len(b.nodes) - 1
	return &Program{
		Nodes:           b.nodes,
		ExtraCellsBound: b.extra[root],
		FrameCountBound: b.frames[root],
	}, nil
}
