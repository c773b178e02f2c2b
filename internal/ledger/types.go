package ledger

// #region imports
import (
	"context"
	"maps"
	"time"
)

// #endregion

// #region event-type

// EventType tags the kind of event a block records.
type EventType string

const (
	// EventGenesis is the fixed first block of every chain.
	EventGenesis EventType = "genesis"
	// EventIntakeDrafted records a generated intake draft.
	EventIntakeDrafted EventType = "intake_drafted"
	// EventAdapterPromoted records an adaptation decision made by the policy.
	EventAdapterPromoted EventType = "adapter_promoted"
)

// SystemAuthored reports whether the event is produced by the system itself.
// System-authored events bypass the reflection gate; everything else carries
// externally-authored content and must be gated before append.
func (t EventType) SystemAuthored() bool {
	return t == EventGenesis || t == EventAdapterPromoted
}

// #endregion

// #region feedback-delta

// Well-known feedback field keys. Unrecognized keys are preserved opaquely.
const (
	FieldStatus     = "status"
	FieldCorrection = "correction"
	FieldAnnotator  = "annotator"
	FieldRating     = "rating"
	FieldNotes      = "notes"
	FieldLabels     = "labels"
)

// StatusApproved marks a block whose output a human signed off on.
const StatusApproved = "approved"

// FeedbackDelta is one post-facto annotation appended to a block's feedback
// annex. Deltas are append-only: never edited or removed once applied.
type FeedbackDelta struct {
	DeltaID   string         `json:"delta_id"`
	AppliedAt time.Time      `json:"applied_at"`
	Fields    map[string]any `json:"fields"`
}

// Correction returns the delta's correction text, if any. A delta carrying a
// correction counts toward the adaptation threshold; approvals do not.
func (d FeedbackDelta) Correction() (string, bool) {
	s, ok := d.Fields[FieldCorrection].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Clone deep-copies the delta's fields map.
func (d FeedbackDelta) Clone() FeedbackDelta {
	out := d
	out.Fields = maps.Clone(d.Fields)
	return out
}

// #endregion

// #region gate-contract

// Violation is a single rule breach reported by a reflection evaluator.
type Violation struct {
	RuleID    string `json:"rule_id"`
	Severity  string `json:"severity"` // "block" | "warn"
	Principle string `json:"principle,omitempty"`
	Keyword   string `json:"keyword,omitempty"`
}

// Verdict is the reflection gate's decision for one payload.
type Verdict struct {
	OK         bool
	Reason     string // set when !OK
	Violations []Violation
}

// Gate is the reflection checkpoint consulted before externally-authored
// content is committed to the chain. Implementations must not touch the chain
// and may block on an external evaluator; callers bound that with a timeout
// wrapper, not with the chain's structural lock.
type Gate interface {
	Evaluate(ctx context.Context, payload map[string]any) (Verdict, error)
}

// #endregion

// #region journal

// Journal is the durable append log backing the in-memory chain. One record
// per block, plus one record per feedback delta keyed by block index, so a
// restart can reconstruct the chain exactly.
type Journal interface {
	AppendBlock(b Block) error
	AppendFeedback(blockIndex int, d FeedbackDelta) error
}

// FeedbackHook observes feedback after it has been applied to a block. The
// chain invokes it synchronously, outside the structural lock, with a snapshot
// of the annotated block.
type FeedbackHook func(b Block, d FeedbackDelta)

// #endregion
