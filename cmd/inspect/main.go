package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
	"github.com/danielpatrickdp/mirror-ledger/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to mirror_ledger.db")
	last := flag.Int("last", 20, "show N most recent blocks")
	trace := flag.String("trace", "", "filter to one trace ID")
	block := flag.Int("block", -1, "show single block detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/mirror_ledger.db [--last N] [--trace id] [--block N] [--json]")
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
		return
	}

	if *block >= 0 {
		if err := runDetailMode(blocks, *block, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := runListMode(blocks, *last, *trace, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
	EventType string `json:"event_type"`
	TraceID   string `json:"trace_id,omitempty"`
	Feedback  int    `json:"feedback"`
	Status    string `json:"status,omitempty"`
	Hash      string `json:"hash"`
}

func runListMode(blocks []ledger.Block, last int, trace string, jsonOut bool) error {
	if trace != "" {
		var filtered []ledger.Block
		for _, b := range blocks {
			if b.TraceID == trace {
				filtered = append(filtered, b)
			}
		}
		blocks = filtered
	}
	if len(blocks) > last {
		blocks = blocks[len(blocks)-last:]
	}
	if len(blocks) == 0 {
		fmt.Fprintln(os.Stderr, "no matching blocks")
		return nil
	}

	rows := make([]listRow, len(blocks))
	for i, b := range blocks {
		rows[i] = listRow{
			Index:     b.Index,
			Timestamp: b.Timestamp.Format("2006-01-02T15:04:05Z"),
			EventType: string(b.EventType),
			TraceID:   b.TraceID,
			Feedback:  len(b.Feedback),
			Status:    latestStatus(b),
			Hash:      b.Hash,
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	return printListTable(rows)
}

func printListTable(rows []listRow) error {
	fmt.Printf("%5s  %-20s  %-18s  %-14s  %8s  %-12s  %s\n",
		"Index", "Time", "Event", "Trace", "Feedback", "Status", "Hash")
	fmt.Printf("%5s+-%-20s+-%-18s+-%-14s+-%8s+-%-12s+-%s\n",
		"-----", "--------------------", "------------------", "--------------", "--------", "------------", "------------")

	for _, r := range rows {
		trace := r.TraceID
		if trace == "" {
			trace = "—"
		}
		status := r.Status
		if status == "" {
			status = "—"
		}
		fmt.Printf("%5d  %-20s  %-18s  %-14s  %8d  %-12s  %s\n",
			r.Index, r.Timestamp, r.EventType, trace, r.Feedback, status, shortHash(r.Hash))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Index        int                    `json:"index"`
	Timestamp    string                 `json:"timestamp"`
	EventType    string                 `json:"event_type"`
	TraceID      string                 `json:"trace_id,omitempty"`
	PreviousHash string                 `json:"previous_hash"`
	Hash         string                 `json:"hash"`
	HashValid    bool                   `json:"hash_valid"`
	Payload      map[string]any         `json:"payload"`
	Feedback     []ledger.FeedbackDelta `json:"feedback,omitempty"`
}

func runDetailMode(blocks []ledger.Block, index int, jsonOut bool) error {
	var target *ledger.Block
	for i := range blocks {
		if blocks[i].Index == index {
			target = &blocks[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("block %d not found", index)
	}

	out := detailOutput{
		Index:        target.Index,
		Timestamp:    target.Timestamp.Format("2006-01-02T15:04:05Z"),
		EventType:    string(target.EventType),
		TraceID:      target.TraceID,
		PreviousHash: target.PreviousHash,
		Hash:         target.Hash,
		HashValid:    target.VerifyHash() == nil,
		Payload:      target.Payload,
		Feedback:     target.Feedback,
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Index:      %d\n", out.Index)
	fmt.Printf("Time:       %s\n", out.Timestamp)
	fmt.Printf("Event:      %s\n", out.EventType)
	if out.TraceID != "" {
		fmt.Printf("Trace:      %s\n", out.TraceID)
	}
	fmt.Printf("Prev Hash:  %s\n", out.PreviousHash)
	fmt.Printf("Hash:       %s\n", out.Hash)
	fmt.Printf("Hash Valid: %v\n", out.HashValid)

	fmt.Printf("\nPayload:\n")
	payloadJSON, err := json.MarshalIndent(out.Payload, "  ", "  ")
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	fmt.Printf("  %s\n", payloadJSON)

	if len(out.Feedback) > 0 {
		fmt.Printf("\nFeedback (%d deltas):\n", len(out.Feedback))
		for _, d := range out.Feedback {
			fieldsJSON, _ := json.Marshal(d.Fields)
			fmt.Printf("  %s  %s  %s\n", d.AppliedAt.Format("2006-01-02T15:04:05Z"), shortHash(d.DeltaID), fieldsJSON)
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func latestStatus(b ledger.Block) string {
	status := ""
	for _, d := range b.Feedback {
		if s, ok := d.Fields[ledger.FieldStatus].(string); ok {
			status = s
		}
	}
	return status
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// #endregion output
