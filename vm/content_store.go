package vm

import (
	"bytes"
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// ContentStore: content-addressed index for programs
// ---------------------------------------------------------------------------

// ContentStore indexes programs by their root commitment digest. It is the
// in-memory side of program persistence: a host loads archives into it and
// picks executions by digest. Unlike a Machine, the store is safe for
// concurrent use.
type ContentStore struct {
	mu       sync.RWMutex
	programs map[[32]byte]*Program
}

// NewContentStore creates an empty content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		programs: make(map[[32]byte]*Program),
	}
}

// Index adds a program to the store, keyed by its root commitment.
func (cs *ContentStore) Index(p *Program) {
	h := p.Commitment()
	cs.mu.Lock()
	cs.programs[h] = p
	cs.mu.Unlock()
}

// Lookup returns the program for the given digest, or nil.
func (cs *ContentStore) Lookup(h [32]byte) *Program {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.programs[h]
}

// Remove deletes the program with the given digest, if present.
func (cs *ContentStore) Remove(h [32]byte) {
	cs.mu.Lock()
	delete(cs.programs, h)
	cs.mu.Unlock()
}

// Count returns the number of indexed programs.
func (cs *ContentStore) Count() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.programs)
}

// Digests returns all indexed digests in lexicographic order, for
// deterministic listings.
func (cs *ContentStore) Digests() [][32]byte {
	cs.mu.RLock()
	out := make([][32]byte, 0, len(cs.programs))
	for h := range cs.programs {
		out = append(out, h)
	}
	cs.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
