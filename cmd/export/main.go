package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/mirror-ledger/internal/adaptation"
	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
	"github.com/danielpatrickdp/mirror-ledger/internal/store"
)

// Mines correction feedback out of a journaled ledger and writes it as a
// JSONL fine-tuning dataset.
func main() {
	dbPath := flag.String("db", "", "path to mirror_ledger.db")
	out := flag.String("out", "", "output path (default stdout)")
	trace := flag.String("trace", "", "restrict to one trace ID")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: export --db path/to/mirror_ledger.db [--out file.jsonl] [--trace id]")
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
	if err := ledger.ValidateBlocks(blocks); err != nil {
		fmt.Fprintf(os.Stderr, "refusing to export from an invalid chain: %v\n", err)
		os.Exit(1)
	}

	if *trace != "" {
		var filtered []ledger.Block
		for _, b := range blocks {
			if b.TraceID == *trace {
				filtered = append(filtered, b)
			}
		}
		blocks = filtered
	}

	pairs := adaptation.ExtractPairs(blocks)
	if len(pairs) == 0 {
		fmt.Fprintln(os.Stderr, "no training pairs found")
		return
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := adaptation.EncodeJSONL(w, pairs); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "exported %d training pairs\n", len(pairs))
}
