package generation

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// #endregion

// #region prompts

const intakeSystemPrompt = `You draft clinical intake summaries.
Given a raw visit transcript and vitals, produce a concise HPI (history of
present illness) summary. State only what the transcript supports; flag
uncertainty rather than inventing detail. Respond with the summary text only.`

// #endregion

// #region chat-completer

// chatCompleter is the slice of the OpenAI client the drafter needs. Injected
// in tests so no network connection is required.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// #endregion

// #region openai-generator

// OpenAI drafts intake summaries with a chat model over an OpenAI-compatible
// endpoint. Approved historical drafts can be supplied as few-shot examples.
type OpenAI struct {
	client    chatCompleter
	model     string
	adapterID string
	examples  []Example
}

// NewOpenAI creates a drafter for the given model. adapterID names the
// adapter currently in use, recorded into every draft for provenance.
func NewOpenAI(client *openai.Client, model, adapterID string) *OpenAI {
	return &OpenAI{client: client, model: model, adapterID: adapterID}
}

// newOpenAIWithService creates a drafter with an injected completion service,
// for tests.
func newOpenAIWithService(svc chatCompleter, model, adapterID string) *OpenAI {
	return &OpenAI{client: svc, model: model, adapterID: adapterID}
}

// SetExamples installs few-shot examples mined from approved history.
func (g *OpenAI) SetExamples(examples []Example) {
	g.examples = examples
}

func (g *OpenAI) DraftIntake(ctx context.Context, transcript string, vitals map[string]any) (Draft, error) {
	vitalsJSON, err := json.Marshal(vitals)
	if err != nil {
		return Draft{}, fmt.Errorf("marshal vitals: %w", err)
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: intakeSystemPrompt},
	}
	for _, ex := range g.examples {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: ex.Transcript},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: ex.HPISummary},
		)
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: fmt.Sprintf("Transcript:\n%s\n\nVitals:\n%s", transcript, vitalsJSON),
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
	})
	if err != nil {
		return Draft{}, fmt.Errorf("draft completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Draft{}, fmt.Errorf("drafter returned no choices")
	}

	return Draft{
		SourceTranscript: transcript,
		SourceVitals:     vitals,
		HPISummary:       strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:            g.model,
		AdapterID:        g.adapterID,
	}, nil
}

// #endregion
