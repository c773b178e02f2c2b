package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
)

type acceptGate struct{}

func (acceptGate) Evaluate(_ context.Context, _ map[string]any) (ledger.Verdict, error) {
	return ledger.Verdict{OK: true}, nil
}

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func journaledChain(t *testing.T, s *Store) *ledger.Chain {
	t.Helper()
	c, err := ledger.NewChain(ledger.ChainConfig{Gate: acceptGate{}, Journal: s})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	return c
}

func TestRoundTripReproducesHashes(t *testing.T) {
	s, _ := tempStore(t)
	c := journaledChain(t, s)

	ctx := context.Background()
	if _, err := c.Append(ctx, ledger.EventIntakeDrafted, "trace-001", map[string]any{"vitals": "120/80", "hpi_summary": "stable"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := c.Append(ctx, ledger.EventIntakeDrafted, "trace-002", map[string]any{"vitals": "98/60", "meta": map[string]any{"rev": 3}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := c.AddFeedback(1, map[string]any{ledger.FieldCorrection: "BP was 130/85", ledger.FieldAnnotator: "did:clinic:dr_kay"}); err != nil {
		t.Fatalf("AddFeedback: %v", err)
	}
	if _, err := c.AddFeedback(1, map[string]any{ledger.FieldStatus: ledger.StatusApproved}); err != nil {
		t.Fatalf("AddFeedback: %v", err)
	}

	want := c.All()

	blocks, err := s.LoadBlocks()
	if err != nil {
		t.Fatalf("LoadBlocks: %v", err)
	}
	if len(blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d", len(want), len(blocks))
	}
	for i := range blocks {
		if blocks[i].Hash != want[i].Hash {
			t.Fatalf("block %d hash changed across round trip", i)
		}
		if blocks[i].PreviousHash != want[i].PreviousHash {
			t.Fatalf("block %d previous_hash changed across round trip", i)
		}
	}
	if len(blocks[1].Feedback) != 2 {
		t.Fatalf("expected 2 deltas on block 1, got %d", len(blocks[1].Feedback))
	}
	if corr, ok := blocks[1].Feedback[0].Correction(); !ok || corr != "BP was 130/85" {
		t.Fatalf("first delta correction = %q, %v (order not preserved?)", corr, ok)
	}

	reloaded, err := ledger.LoadChain(ledger.ChainConfig{Gate: acceptGate{}, Journal: s}, blocks)
	if err != nil {
		t.Fatalf("LoadChain: %v", err)
	}
	if err := reloaded.Validate(); err != nil {
		t.Fatalf("Validate after reload: %v", err)
	}
}

func TestReopenFromDisk(t *testing.T) {
	s, path := tempStore(t)
	c := journaledChain(t, s)
	if _, err := c.Append(context.Background(), ledger.EventIntakeDrafted, "trace-001", map[string]any{"n": 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	blocks, err := s2.LoadBlocks()
	if err != nil {
		t.Fatalf("LoadBlocks: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks after reopen, got %d", len(blocks))
	}
	if err := ledger.ValidateBlocks(blocks); err != nil {
		t.Fatalf("ValidateBlocks: %v", err)
	}
}

func TestTamperedJournalIsRefused(t *testing.T) {
	s, _ := tempStore(t)
	c := journaledChain(t, s)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.Append(ctx, ledger.EventIntakeDrafted, "trace-001", map[string]any{"n": i}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	// Mutate a persisted immutable field directly.
	if _, err := s.DB().Exec(`UPDATE ledger_blocks SET payload_json = '{"n":999}' WHERE block_idx = 2`); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	blocks, err := s.LoadBlocks()
	if err != nil {
		t.Fatalf("LoadBlocks: %v", err)
	}
	err = ledger.ValidateBlocks(blocks)
	var ie *ledger.ChainIntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("expected ChainIntegrityError, got %v", err)
	}
	if ie.Index != 2 || ie.Kind != ledger.IntegrityHashMismatch {
		t.Fatalf("expected hash_mismatch at index 2, got %s at %d", ie.Kind, ie.Index)
	}

	if _, err := ledger.LoadChain(ledger.ChainConfig{Gate: acceptGate{}}, blocks); err == nil {
		t.Fatal("expected LoadChain to refuse tampered journal")
	}
}

func TestDuplicateBlockIndexRejected(t *testing.T) {
	s, _ := tempStore(t)
	c := journaledChain(t, s)
	b := c.Latest()

	// The chain never does this; the journal's primary key is the backstop.
	if err := s.AppendBlock(b); err == nil {
		t.Fatal("expected duplicate block_idx insert to fail")
	}
}
