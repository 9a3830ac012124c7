package vm

import "fmt"

// ---------------------------------------------------------------------------
// Combinator nodes and programs
// ---------------------------------------------------------------------------

// NodeKind identifies a combinator.
type NodeKind uint8

const (
	NodeUnit NodeKind = iota
	NodeIden
	NodeInjL
	NodeInjR
	NodePair
	NodeComp
	NodeDisconnect
	NodeTake
	NodeDrop
	NodeCase
	NodeWitness
	NodeHidden
	NodeFail
	NodeJet
)

var nodeKindNames = [...]string{
	NodeUnit:       "unit",
	NodeIden:       "iden",
	NodeInjL:       "injl",
	NodeInjR:       "injr",
	NodePair:       "pair",
	NodeComp:       "comp",
	NodeDisconnect: "disconnect",
	NodeTake:       "take",
	NodeDrop:       "drop",
	NodeCase:       "case",
	NodeWitness:    "witness",
	NodeHidden:     "hidden",
	NodeFail:       "fail",
	NodeJet:        "jet",
}

// String returns the combinator name.
func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("nodekind(%d)", uint8(k))
}

// Node is one combinator in a program DAG. Children are absolute indices
// into the owning Program's node slice (normalized at load/build time; the
// DAG is assumed acyclic and well-founded). Every node carries its finalized
// source and target types; the evaluator reads all bit widths from them.
//
// Nodes are read-only during execution.
type Node struct {
	Kind NodeKind

	// Left and Right are child indices; -1 when the kind has no such
	// child. One-child kinds (InjL, InjR, Take, Drop) use Left.
	Left  int
	Right int

	SourceType *Type
	TargetType *Type

	// Commitment is the node's 256-bit commitment digest. It is the only
	// payload of a Hidden node, and the digest Disconnect feeds to its
	// left child.
	Commitment [32]byte

	// Witness is the literal of a Witness node, nil otherwise.
	Witness *Value

	// Jet is the external capability of a Jet node, nil otherwise.
	Jet Jet
}

// String renders the node for progress and fault messages.
func (n *Node) String() string {
	return fmt.Sprintf("%s: %s ⊢ %s", n.Kind, n.SourceType, n.TargetType)
}

// Program is a combinator DAG in evaluation order: every node's children
// precede it, and the last node is the root. The two bounds are upstream
// guarantees the machine trusts when sizing its arena and frame stacks; the
// evaluator asserts internal consistency but does not re-derive sufficiency.
type Program struct {
	Nodes []Node

	// ExtraCellsBound bounds the bits of intermediate frame storage live
	// at any point beyond the input and output frames.
	ExtraCellsBound int

	// FrameCountBound bounds the frames live on either stack beyond the
	// input and output frames.
	FrameCountBound int
}

// Root returns the root node.
func (p *Program) Root() *Node { return &p.Nodes[len(p.Nodes)-1] }

// Commitment returns the root node's commitment digest, which identifies the
// whole program.
func (p *Program) Commitment() [32]byte { return p.Root().Commitment }
