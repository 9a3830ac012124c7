// Package wire is the canonical CBOR archive format for programs and
// values. It is a repo-local persistence and exchange format: the bit-level
// commitment encoding of programs remains an upstream concern.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/lattice-vm/lattice/vm"
)

// cborEncMode uses canonical options so archives of the same program are
// byte-identical.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ---------------------------------------------------------------------------
// Archive layout
// ---------------------------------------------------------------------------

// archiveVersion is bumped on any incompatible layout change.
const archiveVersion = 1

// typeRec is one entry of the deduplicated type table. Children are table
// indices, emitted before their parents; -1 for unit.
type typeRec struct {
	Kind  uint8 `cbor:"k"`
	Left  int32 `cbor:"l"`
	Right int32 `cbor:"r"`
}

// valueRec is a value tree, nested directly (witness literals are small).
type valueRec struct {
	Kind   uint8     `cbor:"k"`
	Inner  *valueRec `cbor:"i,omitempty"`
	Second *valueRec `cbor:"s,omitempty"`
}

type nodeRec struct {
	Kind       uint8     `cbor:"k"`
	Left       int32     `cbor:"l"`
	Right      int32     `cbor:"r"`
	Source     int32     `cbor:"s"`
	Target     int32     `cbor:"t"`
	Commitment []byte    `cbor:"c"`
	Witness    *valueRec `cbor:"w,omitempty"`
	Jet        string    `cbor:"j,omitempty"`
}

type archive struct {
	Version    int       `cbor:"v"`
	Types      []typeRec `cbor:"ty"`
	Nodes      []nodeRec `cbor:"n"`
	ExtraCells int       `cbor:"ec"`
	FrameCount int       `cbor:"fc"`
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

type typeTable struct {
	recs  []typeRec
	index map[*vm.Type]int32
}

func (tt *typeTable) intern(t *vm.Type) int32 {
	if i, ok := tt.index[t]; ok {
		return i
	}
	var rec typeRec
	rec.Kind = uint8(t.Kind)
	rec.Left, rec.Right = -1, -1
	if t.Kind != vm.TypeUnit {
		rec.Left = tt.intern(t.Left)
		rec.Right = tt.intern(t.Right)
	}
	tt.recs = append(tt.recs, rec)
	i := int32(len(tt.recs) - 1)
	tt.index[t] = i
	return i
}

func encodeValue(v *vm.Value) *valueRec {
	if v == nil {
		return nil
	}
	return &valueRec{
		Kind:   uint8(v.Kind),
		Inner:  encodeValue(v.Inner),
		Second: encodeValue(v.Second),
	}
}

// MarshalProgram serializes a program to canonical CBOR.
func MarshalProgram(p *vm.Program) ([]byte, error) {
	tt := &typeTable{index: make(map[*vm.Type]int32)}
	a := archive{
		Version:    archiveVersion,
		Nodes:      make([]nodeRec, len(p.Nodes)),
		ExtraCells: p.ExtraCellsBound,
		FrameCount: p.FrameCountBound,
	}
	for i := range p.Nodes {
		n := &p.Nodes[i]
		rec := nodeRec{
			Kind:       uint8(n.Kind),
			Left:       int32(n.Left),
			Right:      int32(n.Right),
			Source:     tt.intern(n.SourceType),
			Target:     tt.intern(n.TargetType),
			Commitment: n.Commitment[:],
			Witness:    encodeValue(n.Witness),
		}
		if n.Jet != nil {
			rec.Jet = n.Jet.Name()
		}
		a.Nodes[i] = rec
	}
	a.Types = tt.recs
	return cborEncMode.Marshal(&a)
}

// MarshalValue serializes a standalone value to canonical CBOR.
func MarshalValue(v *vm.Value) ([]byte, error) {
	return cborEncMode.Marshal(encodeValue(v))
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func decodeValue(rec *valueRec) (*vm.Value, error) {
	if rec == nil {
		return nil, fmt.Errorf("wire: missing value")
	}
	switch vm.ValueKind(rec.Kind) {
	case vm.ValueUnit:
		return vm.Unit(), nil
	case vm.ValueLeft, vm.ValueRight:
		inner, err := decodeValue(rec.Inner)
		if err != nil {
			return nil, err
		}
		if vm.ValueKind(rec.Kind) == vm.ValueLeft {
			return vm.Left(inner), nil
		}
		return vm.Right(inner), nil
	case vm.ValuePair:
		inner, err := decodeValue(rec.Inner)
		if err != nil {
			return nil, err
		}
		second, err := decodeValue(rec.Second)
		if err != nil {
			return nil, err
		}
		return vm.Pair(inner, second), nil
	default:
		return nil, fmt.Errorf("wire: unknown value kind %d", rec.Kind)
	}
}

func decodeTypes(recs []typeRec) ([]*vm.Type, error) {
	types := make([]*vm.Type, len(recs))
	for i, rec := range recs {
		switch vm.TypeKind(rec.Kind) {
		case vm.TypeUnit:
			types[i] = vm.UnitType()
		case vm.TypeSum, vm.TypeProduct:
			// The table is emitted children-first.
			if rec.Left < 0 || int(rec.Left) >= i || rec.Right < 0 || int(rec.Right) >= i {
				return nil, fmt.Errorf("wire: type %d references %d,%d out of order",
					i, rec.Left, rec.Right)
			}
			if vm.TypeKind(rec.Kind) == vm.TypeSum {
				types[i] = vm.SumType(types[rec.Left], types[rec.Right])
			} else {
				types[i] = vm.ProductType(types[rec.Left], types[rec.Right])
			}
		default:
			return nil, fmt.Errorf("wire: unknown type kind %d", rec.Kind)
		}
	}
	return types, nil
}

// UnmarshalProgram deserializes a program archive. jets resolves external
// capability names; an archive referencing an unregistered jet is rejected.
func UnmarshalProgram(data []byte, jets map[string]vm.Jet) (*vm.Program, error) {
	var a archive
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("wire: unmarshal program: %w", err)
	}
	if a.Version != archiveVersion {
		return nil, fmt.Errorf("wire: unsupported archive version %d", a.Version)
	}
	if len(a.Nodes) == 0 {
		return nil, fmt.Errorf("wire: empty program")
	}
	// Negative bounds would flow into arena and stack sizing.
	if a.ExtraCells < 0 || a.FrameCount < 0 {
		return nil, fmt.Errorf("wire: negative bounds %d cells, %d frames",
			a.ExtraCells, a.FrameCount)
	}
	types, err := decodeTypes(a.Types)
	if err != nil {
		return nil, err
	}
	typeAt := func(i int32) (*vm.Type, error) {
		if i < 0 || int(i) >= len(types) {
			return nil, fmt.Errorf("wire: type index %d out of range", i)
		}
		return types[i], nil
	}

	p := &vm.Program{
		Nodes:           make([]vm.Node, len(a.Nodes)),
		ExtraCellsBound: a.ExtraCells,
		FrameCountBound: a.FrameCount,
	}
	for i, rec := range a.Nodes {
		n := vm.Node{
			Kind:  vm.NodeKind(rec.Kind),
			Left:  int(rec.Left),
			Right: int(rec.Right),
		}
		// Children must precede their parents; -1 marks absence.
		if n.Left >= i || n.Right >= i {
			return nil, fmt.Errorf("wire: node %d references children %d,%d out of order",
				i, n.Left, n.Right)
		}
		if n.SourceType, err = typeAt(rec.Source); err != nil {
			return nil, err
		}
		if n.TargetType, err = typeAt(rec.Target); err != nil {
			return nil, err
		}
		if len(rec.Commitment) != len(n.Commitment) {
			return nil, fmt.Errorf("wire: node %d commitment is %d bytes", i, len(rec.Commitment))
		}
		copy(n.Commitment[:], rec.Commitment)
		if rec.Witness != nil {
			if n.Witness, err = decodeValue(rec.Witness); err != nil {
				return nil, err
			}
		}
		if rec.Jet != "" {
			jet, ok := jets[rec.Jet]
			if !ok {
				return nil, fmt.Errorf("wire: unregistered jet %q", rec.Jet)
			}
			n.Jet = jet
		}
		p.Nodes[i] = n
	}
	return p, nil
}

// UnmarshalValue deserializes a standalone value.
func UnmarshalValue(data []byte) (*vm.Value, error) {
	var rec valueRec
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("wire: unmarshal value: %w", err)
	}
	return decodeValue(&rec)
}
