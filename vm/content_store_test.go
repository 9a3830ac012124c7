package vm

import (
	"bytes"
	"testing"
)

// testProgram builds a structurally distinct program per depth: commitments
// cover structure, not types, so the programs must differ in shape.
func testProgram(t *testing.T, depth uint64) *Program {
	t.Helper()
	b := NewProgramBuilder()
	n := b.Unit(UnitType())
	for i := uint64(0); i <= depth; i++ {
		n = b.InjL(n, UnitType())
	}
	return mustBuild(t, b)
}

func TestContentStoreIndexAndLookup(t *testing.T) {
	cs := NewContentStore()
	p := testProgram(t, 3)
	cs.Index(p)

	if got := cs.Lookup(p.Commitment()); got != p {
		t.Errorf("Lookup = %p, want %p", got, p)
	}
	if got := cs.Lookup([32]byte{1}); got != nil {
		t.Errorf("Lookup of absent digest = %p, want nil", got)
	}
	if cs.Count() != 1 {
		t.Errorf("Count = %d, want 1", cs.Count())
	}
}

func TestContentStoreRemove(t *testing.T) {
	cs := NewContentStore()
	p := testProgram(t, 2)
	cs.Index(p)
	cs.Remove(p.Commitment())

	if cs.Lookup(p.Commitment()) != nil {
		t.Error("program survived Remove")
	}
	if cs.Count() != 0 {
		t.Errorf("Count = %d after remove, want 0", cs.Count())
	}
}

func TestContentStoreDigestsSorted(t *testing.T) {
	cs := NewContentStore()
	for i := uint64(0); i < 5; i++ {
		cs.Index(testProgram(t, i))
	}

	digests := cs.Digests()
	if len(digests) != 5 {
		t.Fatalf("Digests len = %d, want 5", len(digests))
	}
	for i := 1; i < len(digests); i++ {
		if bytes.Compare(digests[i-1][:], digests[i][:]) >= 0 {
			t.Fatalf("digests out of order at %d", i)
		}
	}
}

func TestContentStoreReindexIsIdempotent(t *testing.T) {
	cs := NewContentStore()
	p := testProgram(t, 1)
	cs.Index(p)
	cs.Index(p)
	if cs.Count() != 1 {
		t.Errorf("Count = %d after double index, want 1", cs.Count())
	}
}
