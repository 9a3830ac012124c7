package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "lattice.toml"), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[engine]
verbosity = 2

[store]
path = "programs.db"

[run]
program = "deadbeef"
input = "input.cbor"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Engine.Verbosity != 2 {
		t.Errorf("Verbosity = %d, want 2", m.Engine.Verbosity)
	}
	if m.Store.Path != "programs.db" {
		t.Errorf("Store.Path = %q", m.Store.Path)
	}
	if m.Run.Program != "deadbeef" || m.Run.Input != "input.cbor" {
		t.Errorf("Run = %+v", m.Run)
	}
	if m.Dir == "" || !filepath.IsAbs(m.Dir) {
		t.Errorf("Dir = %q, want absolute", m.Dir)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Store.Path != "lattice.db" {
		t.Errorf("default Store.Path = %q, want lattice.db", m.Store.Path)
	}
	if m.Engine.Verbosity != 0 {
		t.Errorf("default Verbosity = %d, want 0", m.Engine.Verbosity)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of empty directory succeeded")
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[store\npath =")
	if _, err := Load(dir); err == nil {
		t.Error("Load of malformed toml succeeded")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `[store]
path = "archive.db"
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad found nothing")
	}
	if m.Store.Path != "archive.db" {
		t.Errorf("Store.Path = %q", m.Store.Path)
	}
	if m.Dir != root {
		t.Errorf("Dir = %q, want %q", m.Dir, root)
	}
}

func TestFindAndLoadAbsent(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m != nil {
		t.Errorf("found manifest %+v in bare directory", m)
	}
}

func TestStorePath(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "")
	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := m.StorePath(), filepath.Join(m.Dir, "lattice.db"); got != want {
		t.Errorf("StorePath = %q, want %q", got, want)
	}

	m.Store.Path = "/var/lib/lattice.db"
	if got := m.StorePath(); got != "/var/lib/lattice.db" {
		t.Errorf("absolute StorePath = %q", got)
	}
}
