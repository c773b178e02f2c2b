package reflection

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
)

// #endregion

// #region judge-prompt

const judgeSystemPrompt = `You are a reflection judge for a clinical intake ledger.
You receive a JSON payload of generated content and a list of constitutional principles.
Decide whether the content may be committed. Respond with strict JSON only:
{"ok": bool, "reason": "...", "violations": [{"rule_id": "...", "severity": "block"|"warn", "principle": "..."}]}`

// #endregion

// #region chat-completer

// chatCompleter is the slice of the OpenAI client the judge needs. Injected
// in tests so no network connection is required.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// #endregion

// #region model-gate

// ModelGate asks a chat model to judge the payload against the constitution.
// The rule principles are included in the prompt; the model returns a strict
// JSON verdict.
type ModelGate struct {
	client chatCompleter
	model  string
	rules  []Rule
}

// NewModelGate creates a judge over an OpenAI-compatible endpoint.
func NewModelGate(client *openai.Client, model string, rules []Rule) *ModelGate {
	return &ModelGate{client: client, model: model, rules: rules}
}

// newModelGateWithService creates a ModelGate with an injected completion
// service. Used for testing without a real endpoint.
func newModelGateWithService(svc chatCompleter, model string, rules []Rule) *ModelGate {
	return &ModelGate{client: svc, model: model, rules: rules}
}

// Evaluate sends the payload and principles to the judge model and parses the
// verdict. Transport and malformed-response failures are returned as errors;
// the chain surfaces them as collaborator failures, never as silent accepts.
func (g *ModelGate) Evaluate(ctx context.Context, payload map[string]any) (ledger.Verdict, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return ledger.Verdict{}, fmt.Errorf("marshal payload: %w", err)
	}

	var principles strings.Builder
	for _, r := range g.rules {
		fmt.Fprintf(&principles, "- [%s, %s] %s\n", r.ID, r.Severity, r.Principle)
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Principles:\n%s\nPayload:\n%s", principles.String(), payloadJSON)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return ledger.Verdict{}, fmt.Errorf("judge completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ledger.Verdict{}, fmt.Errorf("judge returned no choices")
	}

	var out struct {
		OK         bool   `json:"ok"`
		Reason     string `json:"reason"`
		Violations []struct {
			RuleID    string `json:"rule_id"`
			Severity  string `json:"severity"`
			Principle string `json:"principle"`
		} `json:"violations"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return ledger.Verdict{}, fmt.Errorf("parse judge verdict: %w", err)
	}

	verdict := ledger.Verdict{OK: out.OK, Reason: out.Reason}
	for _, v := range out.Violations {
		verdict.Violations = append(verdict.Violations, ledger.Violation{
			RuleID:    v.RuleID,
			Severity:  v.Severity,
			Principle: v.Principle,
		})
	}
	if !verdict.OK && verdict.Reason == "" {
		verdict.Reason = "judge model rejected content"
	}
	log.Printf("[GATE] judge verdict ok=%v violations=%d", verdict.OK, len(verdict.Violations))
	return verdict, nil
}

// #endregion
