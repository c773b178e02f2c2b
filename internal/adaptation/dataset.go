package adaptation

// #region imports
import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
)

// #endregion

// #region training-pair

// TrainingPair is one supervised example distilled from a corrected block:
// the recorded input alongside the human correction.
type TrainingPair struct {
	TraceID    string         `json:"trace_id,omitempty"`
	Input      map[string]any `json:"input"`
	Labels     []string       `json:"labels,omitempty"`
	Correction string         `json:"correction"`
	Annotator  string         `json:"annotator,omitempty"`
}

// #endregion

// #region extract

// ExtractPairs walks a chain snapshot and produces one training pair per
// correction delta on a content block. A delta's free-text notes are the
// fallback when it carries no structured correction.
func ExtractPairs(blocks []ledger.Block) []TrainingPair {
	var pairs []TrainingPair
	for _, b := range blocks {
		if b.EventType.SystemAuthored() {
			continue
		}
		for _, d := range b.Feedback {
			correction := correctionFrom(d)
			if correction == "" {
				continue
			}
			pairs = append(pairs, TrainingPair{
				TraceID:    b.TraceID,
				Input:      b.Payload,
				Labels:     labelsFrom(d),
				Correction: correction,
				Annotator:  annotatorFrom(d),
			})
		}
	}
	return pairs
}

// PairsFromDecision converts a threshold crossing's provenance into training
// pairs for the fine-tuners.
func PairsFromDecision(d Decision) []TrainingPair {
	pairs := make([]TrainingPair, 0, len(d.Contributions))
	for _, c := range d.Contributions {
		pairs = append(pairs, TrainingPair{
			TraceID:    c.TraceID,
			Input:      c.Input,
			Correction: c.Correction,
			Annotator:  c.Annotator,
		})
	}
	return pairs
}

func correctionFrom(d ledger.FeedbackDelta) string {
	if s, ok := d.Correction(); ok {
		return s
	}
	if s, ok := d.Fields[ledger.FieldNotes].(string); ok {
		return s
	}
	return ""
}

func labelsFrom(d ledger.FeedbackDelta) []string {
	raw, ok := d.Fields[ledger.FieldLabels].([]any)
	if !ok {
		return nil
	}
	var labels []string
	for _, l := range raw {
		if s, ok := l.(string); ok {
			labels = append(labels, s)
		}
	}
	return labels
}

func annotatorFrom(d ledger.FeedbackDelta) string {
	s, _ := d.Fields[ledger.FieldAnnotator].(string)
	return s
}

// #endregion

// #region jsonl

// EncodeJSONL writes pairs as line-delimited JSON, the ingestion format the
// fine-tune collaborators consume.
func EncodeJSONL(w io.Writer, pairs []TrainingPair) error {
	enc := json.NewEncoder(w)
	for i, p := range pairs {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("encode pair %d: %w", i, err)
		}
	}
	return nil
}

// #endregion
