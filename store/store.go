// Package store persists program archives in a sqlite database keyed by
// commitment digest.
package store

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/lattice-vm/lattice/vm"
	"github.com/lattice-vm/lattice/wire"
)

// ErrNotFound indicates the requested program is not in the store.
var ErrNotFound = errors.New("program not found")

// Store is a sqlite-backed archive of programs. Payloads are canonical CBOR
// (see the wire package), keyed by the hex of the root commitment digest.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// Concurrent openers back off instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		digest  TEXT PRIMARY KEY,
		archive BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put archives p, replacing any previous archive with the same commitment.
func (s *Store) Put(p *vm.Program) error {
	data, err := wire.MarshalProgram(p)
	if err != nil {
		return err
	}
	digest := p.Commitment()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`INSERT OR REPLACE INTO programs (digest, archive) VALUES (?, ?)`,
		hex.EncodeToString(digest[:]), data)
	if err != nil {
		return fmt.Errorf("archiving program %x: %w", digest[:8], err)
	}
	return nil
}

// Get retrieves and decodes the program with the given digest. jets resolves
// external capability names during decode.
func (s *Store) Get(digest [32]byte, jets map[string]vm.Jet) (*vm.Program, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT archive FROM programs WHERE digest = ?`,
		hex.EncodeToString(digest[:])).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %x", ErrNotFound, digest[:8])
	}
	if err != nil {
		return nil, fmt.Errorf("fetching program %x: %w", digest[:8], err)
	}
	return wire.UnmarshalProgram(data, jets)
}

// Delete removes the program with the given digest, if present.
func (s *Store) Delete(digest [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM programs WHERE digest = ?`,
		hex.EncodeToString(digest[:]))
	return err
}

// Digests lists all archived digests in lexicographic order.
func (s *Store) Digests() ([][32]byte, error) {
	rows, err := s.db.Query(`SELECT digest FROM programs ORDER BY digest`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][32]byte
	for rows.Next() {
		var hexDigest string
		if err := rows.Scan(&hexDigest); err != nil {
			return nil, err
		}
		raw, err := hex.DecodeString(hexDigest)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("corrupt digest key %q", hexDigest)
		}
		var d [32]byte
		copy(d[:], raw)
		out = append(out, d)
	}
	return out, rows.Err()
}

// LoadInto hydrates a content store with every archived program.
func (s *Store) LoadInto(cs *vm.ContentStore, jets map[string]vm.Jet) error {
	digests, err := s.Digests()
	if err != nil {
		return err
	}
	for _, d := range digests {
		p, err := s.Get(d, jets)
		if err != nil {
			return err
		}
		cs.Index(p)
	}
	return nil
}
