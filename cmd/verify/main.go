package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
	"github.com/danielpatrickdp/mirror-ledger/internal/store"
)

// Offline integrity check: walks every hash and link in a journaled ledger
// without starting the daemon. Exit 0 means the chain is intact.
func main() {
	dbPath := flag.String("db", "", "path to mirror_ledger.db")
	quiet := flag.Bool("quiet", false, "suppress output, report via exit code only")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: verify --db path/to/mirror_ledger.db [--quiet]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	blocks, err := st.LoadBlocks()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load blocks: %v\n", err)
		os.Exit(1)
	}
	if len(blocks) == 0 {
		fmt.Fprintln(os.Stderr, "no blocks found")
		os.Exit(1)
	}

	if err := ledger.ValidateBlocks(blocks); err != nil {
		var ie *ledger.ChainIntegrityError
		if errors.As(err, &ie) {
			fmt.Fprintf(os.Stderr, "INVALID: block %d: %s (%s)\n", ie.Index, ie.Kind, ie.Detail)
		} else {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		}
		os.Exit(1)
	}

	if !*quiet {
		fmt.Printf("chain valid: %d blocks, tail hash %s\n", len(blocks), blocks[len(blocks)-1].Hash)
	}
}
