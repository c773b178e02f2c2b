package generation

// #region imports
import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
)

// #endregion

// #region contract

// Draft is the structured intake content a generator produces. The ledger
// records it as an intake_drafted payload; the core never calls the generator
// itself.
type Draft struct {
	SourceTranscript string         `json:"source_transcript"`
	SourceVitals     map[string]any `json:"source_vitals,omitempty"`
	HPISummary       string         `json:"hpi_summary"`
	Model            string         `json:"model"`
	AdapterID        string         `json:"adapter_id,omitempty"`
}

// Payload flattens the draft into an immutable block payload.
func (d Draft) Payload() map[string]any {
	p := map[string]any{
		"source_transcript": d.SourceTranscript,
		"hpi_summary":       d.HPISummary,
		"model":             map[string]any{"name": d.Model, "adapter_id": d.AdapterID},
	}
	if d.SourceVitals != nil {
		p["source_vitals"] = d.SourceVitals
	}
	return p
}

// Generator is the generation backend that drafts intake summaries from raw
// transcript and vitals.
type Generator interface {
	DraftIntake(ctx context.Context, transcript string, vitals map[string]any) (Draft, error)
}

// #endregion

// #region few-shot

// Example is a prompt/response pair mined from approved history.
type Example struct {
	Transcript string
	HPISummary string
}

// FewShotExamples walks a chain snapshot backwards and returns up to n
// examples from blocks a human approved, most recent first.
func FewShotExamples(blocks []ledger.Block, n int) []Example {
	var out []Example
	for i := len(blocks) - 1; i >= 0 && len(out) < n; i-- {
		b := blocks[i]
		if b.EventType != ledger.EventIntakeDrafted || !approved(b) {
			continue
		}
		transcript, _ := b.Payload["source_transcript"].(string)
		summary, _ := b.Payload["hpi_summary"].(string)
		if transcript == "" || summary == "" {
			continue
		}
		out = append(out, Example{Transcript: transcript, HPISummary: summary})
	}
	return out
}

// approved reports whether any delta in the annex marks the block approved.
func approved(b ledger.Block) bool {
	for _, d := range b.Feedback {
		if s, ok := d.Fields[ledger.FieldStatus].(string); ok && s == ledger.StatusApproved {
			return true
		}
	}
	return false
}

// #endregion

// #region stub

// Stub is the deterministic generator used to exercise the full system loop
// without a model backend: it reflects its input into a fixed summary shape.
type Stub struct {
	ModelName string
	AdapterID string
}

func (s Stub) DraftIntake(_ context.Context, transcript string, vitals map[string]any) (Draft, error) {
	name := s.ModelName
	if name == "" {
		name = "stub-generator"
	}
	return Draft{
		SourceTranscript: transcript,
		SourceVitals:     vitals,
		HPISummary:       fmt.Sprintf("Patient reports feeling unwell. Key complaint is %q. Vitals are stable.", transcript),
		Model:            name,
		AdapterID:        s.AdapterID,
	}, nil
}

// #endregion
