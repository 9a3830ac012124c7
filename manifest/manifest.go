// Package manifest handles lattice.toml runner configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a lattice.toml runner configuration.
type Manifest struct {
	Engine Engine `toml:"engine"`
	Store  Store  `toml:"store"`
	Run    Run    `toml:"run"`

	// Dir is the directory containing the lattice.toml file (set at load
	// time).
	Dir string `toml:"-"`
}

// Engine configures evaluation behavior.
type Engine struct {
	// Verbosity is the commonlog verbosity handed to the logger backend.
	Verbosity int `toml:"verbosity"`
}

// Store configures the program archive.
type Store struct {
	Path string `toml:"path"`
}

// Run configures the default execution.
type Run struct {
	// Program is the hex root commitment of the program to execute.
	Program string `toml:"program"`
	// Input is a path to a CBOR-encoded input value; empty for programs
	// with a zero-width source type.
	Input string `toml:"input"`
}

// Load parses a lattice.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "lattice.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Store.Path == "" {
		m.Store.Path = "lattice.db"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a lattice.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "lattice.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// StorePath returns the absolute path of the configured program archive.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}
