package reflection

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

// scriptedCompleter returns a fixed completion or error.
type scriptedCompleter struct {
	content string
	err     error
}

func (s scriptedCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.content}},
		},
	}, nil
}

func TestModelGateParsesVerdict(t *testing.T) {
	svc := scriptedCompleter{content: `{"ok": false, "reason": "dehumanizing language", "violations": [{"rule_id": "dignity-1", "severity": "block", "principle": "dignity"}]}`}
	g := newModelGateWithService(svc, "judge-model", DefaultRules())

	v, err := g.Evaluate(context.Background(), map[string]any{"hpi_summary": "..."})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.OK {
		t.Fatal("expected rejection")
	}
	if v.Reason != "dehumanizing language" {
		t.Fatalf("unexpected reason %q", v.Reason)
	}
	if len(v.Violations) != 1 || v.Violations[0].RuleID != "dignity-1" {
		t.Fatalf("unexpected violations %+v", v.Violations)
	}
}

func TestModelGateAcceptVerdict(t *testing.T) {
	svc := scriptedCompleter{content: `{"ok": true, "violations": []}`}
	g := newModelGateWithService(svc, "judge-model", DefaultRules())

	v, err := g.Evaluate(context.Background(), map[string]any{"hpi_summary": "clean"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !v.OK {
		t.Fatalf("expected pass, got %q", v.Reason)
	}
}

func TestModelGateTransportErrorSurfaces(t *testing.T) {
	svc := scriptedCompleter{err: errors.New("connection refused")}
	g := newModelGateWithService(svc, "judge-model", nil)

	if _, err := g.Evaluate(context.Background(), map[string]any{"x": 1}); err == nil {
		t.Fatal("expected transport error to surface")
	}
}

func TestModelGateMalformedVerdictIsError(t *testing.T) {
	svc := scriptedCompleter{content: "I think it looks fine!"}
	g := newModelGateWithService(svc, "judge-model", nil)

	if _, err := g.Evaluate(context.Background(), map[string]any{"x": 1}); err == nil {
		t.Fatal("expected parse error for non-JSON verdict")
	}
}

func TestModelGateRejectWithoutReasonGetsDefault(t *testing.T) {
	svc := scriptedCompleter{content: `{"ok": false}`}
	g := newModelGateWithService(svc, "judge-model", nil)

	v, err := g.Evaluate(context.Background(), map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.OK || v.Reason == "" {
		t.Fatalf("expected default rejection reason, got %+v", v)
	}
}
