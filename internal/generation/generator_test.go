package generation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
)

func TestStubDraftReflectsInput(t *testing.T) {
	d, err := Stub{}.DraftIntake(context.Background(), "headache for two days", map[string]any{"bp": "120/80"})
	if err != nil {
		t.Fatalf("DraftIntake: %v", err)
	}
	if d.SourceTranscript != "headache for two days" {
		t.Fatalf("transcript not carried: %q", d.SourceTranscript)
	}
	if !strings.Contains(d.HPISummary, "headache for two days") {
		t.Fatalf("summary does not reference complaint: %q", d.HPISummary)
	}
	if d.Model != "stub-generator" {
		t.Fatalf("unexpected model name %q", d.Model)
	}

	p := d.Payload()
	if p["hpi_summary"] != d.HPISummary {
		t.Fatal("payload missing summary")
	}
	model, ok := p["model"].(map[string]any)
	if !ok || model["name"] != "stub-generator" {
		t.Fatalf("payload model block malformed: %v", p["model"])
	}
}

func intakeBlock(index int, trace, transcript, summary string, approvedBy string) ledger.Block {
	b := ledger.Block{
		Index:     index,
		EventType: ledger.EventIntakeDrafted,
		TraceID:   trace,
		Payload: map[string]any{
			"source_transcript": transcript,
			"hpi_summary":       summary,
		},
	}
	if approvedBy != "" {
		b.Feedback = []ledger.FeedbackDelta{{
			DeltaID:   "d",
			AppliedAt: time.Now().UTC(),
			Fields:    map[string]any{ledger.FieldStatus: ledger.StatusApproved, ledger.FieldAnnotator: approvedBy},
		}}
	}
	return b
}

func TestFewShotExamplesPicksApprovedMostRecentFirst(t *testing.T) {
	blocks := []ledger.Block{
		{Index: 0, EventType: ledger.EventGenesis, Payload: map[string]any{}},
		intakeBlock(1, "a", "cough", "summary one", "dr_kay"),
		intakeBlock(2, "b", "fever", "summary two", ""),
		intakeBlock(3, "c", "rash", "summary three", "dr_kay"),
	}

	got := FewShotExamples(blocks, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 examples, got %d", len(got))
	}
	if got[0].Transcript != "rash" {
		t.Fatalf("expected most recent approved first, got %q", got[0].Transcript)
	}
	if got[1].Transcript != "cough" {
		t.Fatalf("unapproved block leaked into examples: %q", got[1].Transcript)
	}
}

type scriptedCompleter struct {
	content string
	err     error
	gotReq  *openai.ChatCompletionRequest
}

func (s *scriptedCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.gotReq = &req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.content}},
		},
	}, nil
}

func TestOpenAIDrafter(t *testing.T) {
	svc := &scriptedCompleter{content: "  Patient reports mild headache.  "}
	g := newOpenAIWithService(svc, "draft-model", "lora-1")
	g.SetExamples([]Example{{Transcript: "cough", HPISummary: "summary"}})

	d, err := g.DraftIntake(context.Background(), "headache", map[string]any{"bp": "120/80"})
	if err != nil {
		t.Fatalf("DraftIntake: %v", err)
	}
	if d.HPISummary != "Patient reports mild headache." {
		t.Fatalf("summary not trimmed: %q", d.HPISummary)
	}
	if d.AdapterID != "lora-1" {
		t.Fatalf("adapter not recorded: %q", d.AdapterID)
	}

	// system + one example pair + the live request
	if got := len(svc.gotReq.Messages); got != 4 {
		t.Fatalf("expected 4 messages, got %d", got)
	}
}

func TestOpenAIDrafterTransportError(t *testing.T) {
	svc := &scriptedCompleter{err: errors.New("connection refused")}
	g := newOpenAIWithService(svc, "draft-model", "")

	if _, err := g.DraftIntake(context.Background(), "x", nil); err == nil {
		t.Fatal("expected transport error to surface")
	}
}
