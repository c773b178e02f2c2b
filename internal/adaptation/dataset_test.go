package adaptation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
)

func delta(fields map[string]any) ledger.FeedbackDelta {
	return ledger.FeedbackDelta{DeltaID: "d", AppliedAt: time.Now().UTC(), Fields: fields}
}

func TestExtractPairs(t *testing.T) {
	blocks := []ledger.Block{
		{Index: 0, EventType: ledger.EventGenesis, Payload: map[string]any{"purpose": "x"}},
		{
			Index: 1, EventType: ledger.EventIntakeDrafted, TraceID: "trace-a",
			Payload: map[string]any{"vitals": "120/80", "hpi_summary": "stable"},
			Feedback: []ledger.FeedbackDelta{
				delta(map[string]any{ledger.FieldStatus: ledger.StatusApproved}),
				delta(map[string]any{
					ledger.FieldCorrection: "BP was 130/85",
					ledger.FieldAnnotator:  "did:clinic:dr_kay",
					ledger.FieldLabels:     []any{"vitals", "transcription"},
				}),
			},
		},
		{
			Index: 2, EventType: ledger.EventIntakeDrafted, TraceID: "trace-b",
			Payload: map[string]any{"vitals": "98/60"},
			Feedback: []ledger.FeedbackDelta{
				delta(map[string]any{ledger.FieldNotes: "summary missed the chief complaint"}),
			},
		},
		{
			Index: 3, EventType: ledger.EventAdapterPromoted, TraceID: "trace-a",
			Payload: map[string]any{"policy": "feedback_threshold"},
			Feedback: []ledger.FeedbackDelta{
				delta(map[string]any{ledger.FieldCorrection: "system blocks never train"}),
			},
		},
	}

	pairs := ExtractPairs(blocks)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}

	if pairs[0].TraceID != "trace-a" || pairs[0].Correction != "BP was 130/85" {
		t.Fatalf("unexpected first pair %+v", pairs[0])
	}
	if pairs[0].Annotator != "did:clinic:dr_kay" {
		t.Fatalf("annotator not carried: %+v", pairs[0])
	}
	if len(pairs[0].Labels) != 2 {
		t.Fatalf("labels not carried: %+v", pairs[0].Labels)
	}

	// Free-text notes are the fallback correction source.
	if pairs[1].TraceID != "trace-b" || pairs[1].Correction != "summary missed the chief complaint" {
		t.Fatalf("unexpected second pair %+v", pairs[1])
	}
}

func TestEncodeJSONL(t *testing.T) {
	pairs := []TrainingPair{
		{TraceID: "a", Input: map[string]any{"x": 1}, Correction: "one"},
		{TraceID: "b", Input: map[string]any{"y": 2}, Correction: "two"},
	}

	var buf bytes.Buffer
	if err := EncodeJSONL(&buf, pairs); err != nil {
		t.Fatalf("EncodeJSONL: %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	var lines int
	for scanner.Scan() {
		var p TrainingPair
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			t.Fatalf("line %d not valid JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}

func TestPairsFromDecision(t *testing.T) {
	d := Decision{
		Contributions: []Contribution{
			{BlockIndex: 1, TraceID: "t", Input: map[string]any{"v": "120/80"}, Correction: "fix", Annotator: "ann"},
		},
	}
	pairs := PairsFromDecision(d)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].Correction != "fix" || pairs[0].Annotator != "ann" {
		t.Fatalf("unexpected pair %+v", pairs[0])
	}
}
