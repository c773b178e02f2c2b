package ledger

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// #endregion

// #region chain-struct

// Chain is the ordered, hash-linked sequence of blocks. It is the single
// owner of ledger state: one structural lock serializes appends and annex
// mutations, and every read hands out snapshot copies. The chain only grows;
// blocks are never removed or reordered once appended.
type Chain struct {
	mu         sync.RWMutex
	blocks     []*Block
	gate       Gate
	journal    Journal
	clock      func() time.Time
	onFeedback FeedbackHook
}

// ChainConfig wires the chain's collaborators.
type ChainConfig struct {
	// Gate is consulted for every externally-authored event. Required.
	Gate Gate
	// Journal, when set, durably records every block and feedback delta as it
	// is applied. A journal write failure aborts the mutation.
	Journal Journal
	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// #endregion

// #region constructors

// NewChain creates a chain seeded with the genesis block and journals it.
func NewChain(cfg ChainConfig) (*Chain, error) {
	c, err := newEmpty(cfg)
	if err != nil {
		return nil, err
	}

	genesis, err := NewBlock(0, c.clock(), EventGenesis, "", genesisPayload(), GenesisPreviousHash)
	if err != nil {
		return nil, fmt.Errorf("create genesis: %w", err)
	}
	if c.journal != nil {
		if err := c.journal.AppendBlock(*genesis); err != nil {
			return nil, fmt.Errorf("journal genesis: %w", err)
		}
	}
	c.blocks = []*Block{genesis}
	return c, nil
}

// LoadChain rebuilds a chain from previously journaled blocks, in ascending
// index order with feedback annexes attached. Every hash and link is
// re-verified before the chain is accepted; the blocks are not re-journaled.
func LoadChain(cfg ChainConfig, blocks []Block) (*Chain, error) {
	if len(blocks) == 0 {
		return nil, &ValidationError{Field: "blocks", Reason: "cannot load an empty chain"}
	}
	if err := ValidateBlocks(blocks); err != nil {
		return nil, err
	}

	c, err := newEmpty(cfg)
	if err != nil {
		return nil, err
	}
	c.blocks = make([]*Block, len(blocks))
	for i := range blocks {
		b := blocks[i].Clone()
		c.blocks[i] = &b
	}
	return c, nil
}

func newEmpty(cfg ChainConfig) (*Chain, error) {
	if cfg.Gate == nil {
		return nil, &ValidationError{Field: "gate", Reason: "required"}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Chain{
		gate:    cfg.Gate,
		journal: cfg.Journal,
		clock:   clock,
	}, nil
}

// genesisPayload is the fixed immutable payload of block 0: the system's
// standing purpose, auditable from the very first entry.
func genesisPayload() map[string]any {
	return map[string]any{
		"purpose":   "Learning ledger and audit anchor for the mirror-ledger system.",
		"directive": "Record generation events, reflection verdicts, and human feedback as a transparent, adaptive history.",
	}
}

// #endregion

// #region feedback-hook

// OnFeedback registers the hook invoked after each applied feedback delta.
// The adaptation policy registers itself here. Must be called before the
// chain is shared across goroutines.
func (c *Chain) OnFeedback(hook FeedbackHook) {
	c.onFeedback = hook
}

// #endregion

// #region append

// Append gates the payload (for externally-authored event types), then
// atomically extends the chain by one block linked to the current tail.
//
// The gate call happens outside the structural lock: evaluation may be slow
// and must not serialize unrelated appends. The lock covers read-of-tail
// through push, so two concurrent appends can never both link to the same
// tail. On rejection the chain is untouched: a rejected event leaves no trace
// in the ledger.
func (c *Chain) Append(ctx context.Context, eventType EventType, traceID string, payload map[string]any) (Block, error) {
	if eventType == "" {
		return Block{}, &ValidationError{Field: "event_type", Reason: "must not be empty"}
	}
	if payload == nil {
		return Block{}, &ValidationError{Field: "payload", Reason: "must not be nil"}
	}

	if !eventType.SystemAuthored() {
		verdict, err := c.gate.Evaluate(ctx, payload)
		if err != nil {
			return Block{}, &CollaboratorError{Op: "reflection gate", Err: err}
		}
		if !verdict.OK {
			log.Printf("[LEDGER] gate rejected %s event (trace=%s): %s", eventType, traceID, verdict.Reason)
			return Block{}, &GateRejectionError{Reason: verdict.Reason, Violations: verdict.Violations}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tail := c.blocks[len(c.blocks)-1]
	ts := c.clock().UTC()
	if ts.Before(tail.Timestamp) {
		// Clamp so chain timestamps stay non-decreasing even if the wall
		// clock steps backwards.
		ts = tail.Timestamp
	}

	b, err := NewBlock(len(c.blocks), ts, eventType, traceID, payload, tail.Hash)
	if err != nil {
		return Block{}, err
	}
	if c.journal != nil {
		if err := c.journal.AppendBlock(*b); err != nil {
			return Block{}, fmt.Errorf("journal block %d: %w", b.Index, err)
		}
	}
	c.blocks = append(c.blocks, b)

	log.Printf("[LEDGER] appended block %d type=%s trace=%s hash=%.12s", b.Index, b.EventType, b.TraceID, b.Hash)
	return b.Clone(), nil
}

// #endregion

// #region add-feedback

// AddFeedback appends a feedback delta to the block at blockIndex. Only the
// annex changes: the block's hash is never recomputed, so annotation cannot
// break chain integrity. The registered feedback hook runs synchronously
// after the lock is released, with a snapshot of the annotated block.
func (c *Chain) AddFeedback(blockIndex int, fields map[string]any) (FeedbackDelta, error) {
	if len(fields) == 0 {
		return FeedbackDelta{}, &ValidationError{Field: "fields", Reason: "must not be empty"}
	}

	c.mu.Lock()
	if blockIndex < 0 || blockIndex >= len(c.blocks) {
		c.mu.Unlock()
		return FeedbackDelta{}, &NotFoundError{Index: blockIndex}
	}
	target := c.blocks[blockIndex]

	delta := FeedbackDelta{
		DeltaID:   uuid.New().String(),
		AppliedAt: c.clock().UTC(),
		Fields:    fields,
	}
	delta = delta.Clone()

	if c.journal != nil {
		if err := c.journal.AppendFeedback(blockIndex, delta); err != nil {
			c.mu.Unlock()
			return FeedbackDelta{}, fmt.Errorf("journal feedback for block %d: %w", blockIndex, err)
		}
	}
	target.Feedback = append(target.Feedback, delta)

	hook := c.onFeedback
	snapshot := target.Clone()
	c.mu.Unlock()

	log.Printf("[LEDGER] feedback applied to block %d (deltas=%d)", blockIndex, len(snapshot.Feedback))
	if hook != nil {
		hook(snapshot, delta.Clone())
	}
	return delta.Clone(), nil
}

// #endregion

// #region reads

// Len returns the current chain length.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Latest returns a snapshot of the most recent block.
func (c *Chain) Latest() Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[len(c.blocks)-1].Clone()
}

// Get returns a snapshot of the block at index.
func (c *Chain) Get(index int) (Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.blocks) {
		return Block{}, &NotFoundError{Index: index}
	}
	return c.blocks[index].Clone(), nil
}

// All returns a point-in-time snapshot of the full chain in ascending index
// order. Appends after the call are not visible in the returned slice.
func (c *Chain) All() []Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Block, len(c.blocks))
	for i, b := range c.blocks {
		out[i] = b.Clone()
	}
	return out
}

// Query returns the snapshot subset of blocks whose trace ID equals traceID,
// in ascending index order. Concurrent appends to other traces never affect
// the result.
func (c *Chain) Query(traceID string) []Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Block
	for _, b := range c.blocks {
		if b.TraceID == traceID {
			out = append(out, b.Clone())
		}
	}
	return out
}

// #endregion

// #region validate

// Validate walks a consistent snapshot of the chain from genesis to tail and
// returns nil, or the first *ChainIntegrityError found. Read-only; safe to
// run concurrently with appends.
func (c *Chain) Validate() error {
	return ValidateBlocks(c.All())
}

// ValidateBlocks checks hash integrity, linkage, contiguous indices, the
// genesis sentinel, and timestamp order over an arbitrary block sequence.
func ValidateBlocks(blocks []Block) error {
	for i := range blocks {
		b := &blocks[i]

		if b.Index != i {
			return &ChainIntegrityError{
				Index:  i,
				Kind:   IntegrityIndexGap,
				Detail: fmt.Sprintf("expected index %d, found %d", i, b.Index),
			}
		}
		if err := b.VerifyHash(); err != nil {
			return err
		}
		if i == 0 {
			if b.PreviousHash != GenesisPreviousHash {
				return &ChainIntegrityError{
					Index:  0,
					Kind:   IntegrityGenesisMismatch,
					Detail: fmt.Sprintf("genesis previous_hash %q, want %q", b.PreviousHash, GenesisPreviousHash),
				}
			}
			continue
		}

		prev := &blocks[i-1]
		if b.PreviousHash != prev.Hash {
			return &ChainIntegrityError{
				Index:  i,
				Kind:   IntegrityLinkBroken,
				Detail: fmt.Sprintf("previous_hash %.12s does not match block %d hash %.12s", b.PreviousHash, i-1, prev.Hash),
			}
		}
		if b.Timestamp.Before(prev.Timestamp) {
			return &ChainIntegrityError{
				Index:  i,
				Kind:   IntegrityTimestampOrder,
				Detail: fmt.Sprintf("timestamp %s precedes block %d timestamp %s", b.Timestamp.Format(time.RFC3339Nano), i-1, prev.Timestamp.Format(time.RFC3339Nano)),
			}
		}
	}
	return nil
}

// #endregion

// #region to-json

// ToJSON serializes a chain snapshot, including feedback annexes, for
// inspection and export.
func (c *Chain) ToJSON(indent string) ([]byte, error) {
	blocks := c.All()
	if indent == "" {
		return json.Marshal(blocks)
	}
	return json.MarshalIndent(blocks, "", indent)
}

// #endregion
