// Lattice CLI - executes archived combinator programs.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/lattice-vm/lattice/manifest"
	"github.com/lattice-vm/lattice/store"
	"github.com/lattice-vm/lattice/vm"
	"github.com/lattice-vm/lattice/wire"
)

// builtinJets are the capabilities this binary can resolve when decoding
// archives. Embedders with custom jets build their own runner.
var builtinJets = map[string]vm.Jet{
	vm.Adder32{}.Name(): vm.Adder32{},
	vm.Sha256{}.Name():  vm.Sha256{},
}

func main() {
	verbose := flag.Bool("v", false, "Verbose logging")
	storePath := flag.String("store", "", "Program archive path (default from lattice.toml)")
	programHex := flag.String("program", "", "Hex root commitment of the program to run")
	inputPath := flag.String("input", "", "CBOR-encoded input value file")
	importPath := flag.String("import", "", "Archive file to import into the store")
	list := flag.Bool("list", false, "List archived programs and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lattice [options]\n\n")
		fmt.Fprintf(os.Stderr, "Executes a program from the archive against an input value.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lattice -list                          # List archived programs\n")
		fmt.Fprintf(os.Stderr, "  lattice -import prog.cbor              # Archive a program, print its digest\n")
		fmt.Fprintf(os.Stderr, "  lattice -program <digest>              # Run a zero-input program\n")
		fmt.Fprintf(os.Stderr, "  lattice -program <digest> -input v.cbor\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}

	// lattice.toml provides defaults; flags win.
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fatal("loading manifest: %v", err)
	}
	if m != nil {
		if *storePath == "" {
			*storePath = m.StorePath()
		}
		if *programHex == "" {
			*programHex = m.Run.Program
		}
		if *inputPath == "" {
			*inputPath = m.Run.Input
		}
		if !*verbose {
			verbosity = m.Engine.Verbosity
		}
	}
	commonlog.Configure(verbosity, nil)

	if *storePath == "" {
		*storePath = "lattice.db"
	}
	db, err := store.Open(*storePath)
	if err != nil {
		fatal("%v", err)
	}
	defer db.Close()

	if *importPath != "" {
		data, err := os.ReadFile(*importPath)
		if err != nil {
			fatal("%v", err)
		}
		prog, err := wire.UnmarshalProgram(data, builtinJets)
		if err != nil {
			fatal("importing %s: %v", *importPath, err)
		}
		if err := db.Put(prog); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%x\n", prog.Commitment())
		return
	}

	if *list {
		digests, err := db.Digests()
		if err != nil {
			fatal("%v", err)
		}
		for _, d := range digests {
			fmt.Printf("%x\n", d)
		}
		return
	}

	if *programHex == "" {
		flag.Usage()
		os.Exit(2)
	}
	raw, err := hex.DecodeString(*programHex)
	if err != nil || len(raw) != 32 {
		fatal("-program must be a 64-character hex digest")
	}
	var digest [32]byte
	copy(digest[:], raw)

	prog, err := db.Get(digest, builtinJets)
	if err != nil {
		fatal("%v", err)
	}

	machine := vm.NewMachine(prog)
	if prog.Root().SourceType.BitWidth() > 0 {
		if *inputPath == "" {
			fatal("program %x needs an input value (-input)", digest[:8])
		}
		data, err := os.ReadFile(*inputPath)
		if err != nil {
			fatal("%v", err)
		}
		input, err := wire.UnmarshalValue(data)
		if err != nil {
			fatal("%v", err)
		}
		if err := machine.InstallInput(input); err != nil {
			fatal("%v", err)
		}
	}

	out, err := machine.Run(nil)
	if err != nil {
		fatal("execution aborted: %v", err)
	}
	fmt.Println(out)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
