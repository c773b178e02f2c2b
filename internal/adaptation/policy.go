package adaptation

// #region imports
import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
)

// #endregion

// #region scope

// Scope selects how correction counters are keyed.
type Scope string

const (
	// ScopeTrace keeps one counter per trace ID: corrections to one
	// interaction's blocks only ever trigger adaptation for that interaction.
	ScopeTrace Scope = "trace"
	// ScopeGlobal funnels every correction into a single counter.
	ScopeGlobal Scope = "global"
)

const globalKey = ""

// #endregion

// #region contribution

// Contribution records one correction that counted toward a threshold
// crossing. The full provenance list, not just the count, goes into the
// adaptation-decision payload.
type Contribution struct {
	BlockIndex int            `json:"block_index"`
	TraceID    string         `json:"trace_id,omitempty"`
	Input      map[string]any `json:"input"`
	Correction string         `json:"correction"`
	Annotator  string         `json:"annotator,omitempty"`
	AppliedAt  time.Time      `json:"applied_at"`
}

// #endregion

// #region policy-config

// PolicyConfig holds the adaptation policy's thresholds and dispatch mode.
type PolicyConfig struct {
	// Threshold is the number of correction deltas per scope that triggers
	// one adaptation. Must be positive.
	Threshold int
	// Scope keys the counters by trace or globally.
	Scope Scope
	// AsyncFinetune dispatches the fine-tune call in the background. The
	// decision block is appended either way; in async mode its outcome field
	// reads "dispatched" and the eventual result is only logged.
	AsyncFinetune bool
}

// DefaultPolicyConfig returns the standing policy: three corrections per
// trace.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{Threshold: 3, Scope: ScopeTrace}
}

// #endregion

// #region policy-struct

// Policy watches feedback annexes and, when a scope accumulates Threshold
// corrections since its last adaptation, records an adapter_promoted block
// and hands the corrections to the fine-tune collaborator. Registered as the
// chain's feedback hook.
type Policy struct {
	cfg   PolicyConfig
	chain *ledger.Chain
	tuner Finetuner

	mu       sync.Mutex
	counters map[string]int
	pending  map[string][]Contribution
}

// NewPolicy wires a policy to the chain it appends decisions to and the
// fine-tuner it delegates training to.
func NewPolicy(cfg PolicyConfig, chain *ledger.Chain, tuner Finetuner) (*Policy, error) {
	if cfg.Threshold <= 0 {
		return nil, &ledger.ValidationError{Field: "threshold", Reason: "must be positive"}
	}
	if cfg.Scope == "" {
		cfg.Scope = ScopeTrace
	}
	if cfg.Scope != ScopeTrace && cfg.Scope != ScopeGlobal {
		return nil, &ledger.ValidationError{Field: "scope", Reason: "must be trace or global"}
	}
	if chain == nil {
		return nil, &ledger.ValidationError{Field: "chain", Reason: "required"}
	}
	if tuner == nil {
		tuner = Noop{}
	}
	return &Policy{
		cfg:      cfg,
		chain:    chain,
		tuner:    tuner,
		counters: make(map[string]int),
		pending:  make(map[string][]Contribution),
	}, nil
}

// #endregion

// #region on-feedback

// OnFeedbackApplied implements ledger.FeedbackHook. Deltas without a
// correction are ignored. The counter read, threshold compare, and reset are
// one atomic step per scope, so concurrent corrections crossing the same
// threshold yield exactly one adaptation block.
func (p *Policy) OnFeedbackApplied(b ledger.Block, d ledger.FeedbackDelta) {
	correction, ok := d.Correction()
	if !ok {
		return
	}

	key := globalKey
	if p.cfg.Scope == ScopeTrace {
		key = b.TraceID
	}
	annotator, _ := d.Fields[ledger.FieldAnnotator].(string)

	p.mu.Lock()
	p.pending[key] = append(p.pending[key], Contribution{
		BlockIndex: b.Index,
		TraceID:    b.TraceID,
		Input:      b.Payload,
		Correction: correction,
		Annotator:  annotator,
		AppliedAt:  d.AppliedAt,
	})
	p.counters[key]++
	count := p.counters[key]
	crossed := count >= p.cfg.Threshold

	var contribs []Contribution
	if crossed {
		contribs = p.pending[key]
		// Reset now, while still holding the lock: the decision to adapt is
		// taken here, independent of whether the fine-tune call succeeds.
		delete(p.counters, key)
		delete(p.pending, key)
	}
	p.mu.Unlock()

	log.Printf("[POLICY] correction recorded for scope %q (%d/%d)", key, count, p.cfg.Threshold)
	if crossed {
		p.trigger(key, contribs)
	}
}

// #endregion

// #region trigger

// trigger invokes the fine-tune collaborator and appends the
// adapter_promoted block through the normal append path. The event is
// system-authored, so the reflection gate does not apply.
func (p *Policy) trigger(scopeKey string, contribs []Contribution) {
	ctx := context.Background()
	decision := Decision{
		Policy:        "feedback_threshold",
		Scope:         string(p.cfg.Scope),
		TraceID:       scopeKey,
		Threshold:     p.cfg.Threshold,
		TriggeredAt:   time.Now().UTC(),
		Contributions: contribs,
	}

	var outcome map[string]any
	if p.cfg.AsyncFinetune {
		outcome = map[string]any{"status": "dispatched"}
		go func() {
			if handle, err := p.tuner.Invoke(ctx, decision); err != nil {
				log.Printf("[POLICY] async fine-tune failed for scope %q: %v", scopeKey, err)
			} else {
				log.Printf("[POLICY] async fine-tune finished for scope %q: adapter=%s", scopeKey, handle.AdapterID)
			}
		}()
	} else {
		handle, err := p.tuner.Invoke(ctx, decision)
		if err != nil {
			// Reported in the decision record, never retried here: retry
			// policy belongs to the collaborator.
			log.Printf("[POLICY] fine-tune failed for scope %q: %v", scopeKey, &ledger.CollaboratorError{Op: "fine-tune", Err: err})
			outcome = map[string]any{"status": "failed", "error": err.Error()}
		} else {
			outcome = map[string]any{
				"status":       "succeeded",
				"adapter_id":   handle.AdapterID,
				"adapter_path": handle.Path,
			}
		}
	}

	payload := decisionPayload(decision, outcome)
	block, err := p.chain.Append(ctx, ledger.EventAdapterPromoted, scopeKey, payload)
	if err != nil {
		log.Printf("[POLICY] failed to append adaptation block for scope %q: %v", scopeKey, err)
		return
	}
	log.Printf("[POLICY] adaptation recorded at block %d (scope=%q corrections=%d)", block.Index, scopeKey, len(contribs))
}

// decisionPayload flattens a decision into an immutable block payload.
func decisionPayload(d Decision, outcome map[string]any) map[string]any {
	indices := make([]any, len(d.Contributions))
	corrections := make([]any, len(d.Contributions))
	for i, c := range d.Contributions {
		indices[i] = c.BlockIndex
		corrections[i] = c.Correction
	}
	return map[string]any{
		"policy":               d.Policy,
		"scope":                d.Scope,
		"threshold":            d.Threshold,
		"triggered_at":         d.TriggeredAt.Format(time.RFC3339Nano),
		"source_block_indices": indices,
		"corrections":          corrections,
		"outcome":              outcome,
	}
}

// #endregion
