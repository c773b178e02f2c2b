package adaptation

// #region imports
import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// #endregion

// #region contract

// Decision is what the policy hands to the fine-tune collaborator: the full
// provenance of the threshold crossing.
type Decision struct {
	Policy        string         `json:"policy"`
	Scope         string         `json:"scope"`
	TraceID       string         `json:"trace_id,omitempty"`
	Threshold     int            `json:"threshold"`
	TriggeredAt   time.Time      `json:"triggered_at"`
	Contributions []Contribution `json:"contributions"`
}

// AdapterHandle identifies the artifact a fine-tune run produced.
type AdapterHandle struct {
	AdapterID string `json:"adapter_id"`
	Path      string `json:"path,omitempty"`
	BaseModel string `json:"base_model,omitempty"`
}

// Finetuner is the external fine-tune routine. The policy records its
// success or failure in the decision block; it never retries.
type Finetuner interface {
	Invoke(ctx context.Context, decision Decision) (AdapterHandle, error)
}

// #endregion

// #region noop

// Noop is the stub fine-tuner: it trains nothing and returns a fixed handle.
type Noop struct{}

func (Noop) Invoke(_ context.Context, _ Decision) (AdapterHandle, error) {
	return AdapterHandle{AdapterID: "noop"}, nil
}

// #endregion

// #region local

// Local simulates a LoRA training job: it writes a versioned adapter
// directory containing the training dataset, placeholder weights, and a
// manifest. Swapping in a real PEFT pipeline means replacing only this type.
type Local struct {
	BaseModel   string
	AdaptersDir string
}

type manifest struct {
	AdapterID     string `json:"adapter_id"`
	BaseModel     string `json:"base_model"`
	CreatedAt     string `json:"created_at"`
	SourceDataset string `json:"source_dataset"`
	PairCount     int    `json:"pair_count"`
}

func (l Local) Invoke(_ context.Context, decision Decision) (AdapterHandle, error) {
	adapterID := fmt.Sprintf("lora-%s-%.8s", time.Now().UTC().Format("20060102-150405"), uuid.New().String())
	dir := filepath.Join(l.AdaptersDir, adapterID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return AdapterHandle{}, fmt.Errorf("create adapter dir: %w", err)
	}

	pairs := PairsFromDecision(decision)
	datasetPath := filepath.Join(dir, "dataset.jsonl")
	var buf bytes.Buffer
	if err := EncodeJSONL(&buf, pairs); err != nil {
		return AdapterHandle{}, err
	}
	if err := os.WriteFile(datasetPath, buf.Bytes(), 0o644); err != nil {
		return AdapterHandle{}, fmt.Errorf("write dataset: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "adapter.bin"), []byte("placeholder-weights"), 0o644); err != nil {
		return AdapterHandle{}, fmt.Errorf("write weights: %w", err)
	}

	m := manifest{
		AdapterID:     adapterID,
		BaseModel:     l.BaseModel,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		SourceDataset: datasetPath,
		PairCount:     len(pairs),
	}
	manifestJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return AdapterHandle{}, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), manifestJSON, 0o644); err != nil {
		return AdapterHandle{}, fmt.Errorf("write manifest: %w", err)
	}

	return AdapterHandle{AdapterID: adapterID, Path: dir, BaseModel: l.BaseModel}, nil
}

// #endregion

// #region openai

// fineTuneService is the slice of the OpenAI client the remote fine-tuner
// needs. Injected in tests so no network connection is required.
type fineTuneService interface {
	CreateFileBytes(ctx context.Context, req openai.FileBytesRequest) (openai.File, error)
	CreateFineTuningJob(ctx context.Context, req openai.FineTuningJobRequest) (openai.FineTuningJob, error)
}

// OpenAI runs the fine-tune as a hosted job: uploads the correction dataset
// and creates a fine-tuning job against the configured base model.
type OpenAI struct {
	client    fineTuneService
	baseModel string
}

// NewOpenAI creates a hosted fine-tuner over an OpenAI-compatible endpoint.
func NewOpenAI(client *openai.Client, baseModel string) *OpenAI {
	return &OpenAI{client: client, baseModel: baseModel}
}

// newOpenAIWithService creates an OpenAI fine-tuner with an injected service
// implementation, for tests.
func newOpenAIWithService(svc fineTuneService, baseModel string) *OpenAI {
	return &OpenAI{client: svc, baseModel: baseModel}
}

func (o *OpenAI) Invoke(ctx context.Context, decision Decision) (AdapterHandle, error) {
	var buf bytes.Buffer
	if err := EncodeJSONL(&buf, PairsFromDecision(decision)); err != nil {
		return AdapterHandle{}, err
	}

	file, err := o.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    fmt.Sprintf("corrections-%s.jsonl", decision.TriggeredAt.Format("20060102-150405")),
		Bytes:   buf.Bytes(),
		Purpose: openai.PurposeFineTune,
	})
	if err != nil {
		return AdapterHandle{}, fmt.Errorf("upload dataset: %w", err)
	}

	job, err := o.client.CreateFineTuningJob(ctx, openai.FineTuningJobRequest{
		TrainingFile: file.ID,
		Model:        o.baseModel,
	})
	if err != nil {
		return AdapterHandle{}, fmt.Errorf("create fine-tuning job: %w", err)
	}

	return AdapterHandle{AdapterID: job.ID, BaseModel: o.baseModel}, nil
}

// #endregion
