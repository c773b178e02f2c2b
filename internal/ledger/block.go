package ledger

// #region imports
import (
	"fmt"
	"maps"
	"time"
)

// #endregion

// #region block

// Block is one ledger entry. The immutable core (index, timestamp, event
// type, trace ID, payload, previous hash) is covered by Hash and never changes
// after append. Feedback is the mutable annex: annotations accumulate there
// after the fact without invalidating the hash chain.
type Block struct {
	Index        int             `json:"index"`
	Timestamp    time.Time       `json:"timestamp"`
	EventType    EventType       `json:"event_type"`
	TraceID      string          `json:"trace_id,omitempty"`
	Payload      map[string]any  `json:"payload"`
	PreviousHash string          `json:"previous_hash"`
	Hash         string          `json:"hash"`
	Feedback     []FeedbackDelta `json:"feedback"`
}

// #endregion

// #region constructor

// NewBlock constructs a block, computing its hash immediately from the
// immutable core. The feedback annex starts empty. Index/linkage discipline is
// the chain's job; this only rejects structurally malformed input.
func NewBlock(index int, timestamp time.Time, eventType EventType, traceID string, payload map[string]any, previousHash string) (*Block, error) {
	if index < 0 {
		return nil, &ValidationError{Field: "index", Reason: fmt.Sprintf("must be non-negative, got %d", index)}
	}
	if eventType == "" {
		return nil, &ValidationError{Field: "event_type", Reason: "must not be empty"}
	}
	if payload == nil {
		return nil, &ValidationError{Field: "payload", Reason: "must not be nil"}
	}
	if previousHash == "" {
		return nil, &ValidationError{Field: "previous_hash", Reason: "must not be empty"}
	}
	if traceID == "" && !eventType.SystemAuthored() {
		return nil, &ValidationError{Field: "trace_id", Reason: "required for externally-authored events"}
	}

	b := &Block{
		Index:        index,
		Timestamp:    timestamp.UTC(),
		EventType:    eventType,
		TraceID:      traceID,
		Payload:      payload,
		PreviousHash: previousHash,
	}
	hash, err := ComputeHash(b.Index, b.Timestamp, b.EventType, b.TraceID, b.Payload, b.PreviousHash)
	if err != nil {
		return nil, err
	}
	b.Hash = hash
	return b, nil
}

// #endregion

// #region verify

// VerifyHash recomputes the hash from the immutable core and compares it to
// the stored hash. A mismatch means the core was tampered with after append.
func (b *Block) VerifyHash() error {
	computed, err := ComputeHash(b.Index, b.Timestamp, b.EventType, b.TraceID, b.Payload, b.PreviousHash)
	if err != nil {
		return err
	}
	if computed != b.Hash {
		return &ChainIntegrityError{
			Index:  b.Index,
			Kind:   IntegrityHashMismatch,
			Detail: fmt.Sprintf("stored hash %s, computed %s", b.Hash, computed),
		}
	}
	return nil
}

// #endregion

// #region clone

// Clone returns a snapshot copy of the block. The payload map and the
// feedback annex are copied so later annex mutation on the chain's copy never
// shows through to a snapshot already handed out.
func (b *Block) Clone() Block {
	out := *b
	out.Payload = maps.Clone(b.Payload)
	if b.Feedback != nil {
		out.Feedback = make([]FeedbackDelta, len(b.Feedback))
		for i, d := range b.Feedback {
			out.Feedback[i] = d.Clone()
		}
	}
	return out
}

// #endregion
