package config

// #region imports
import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// #endregion

// #region config

// Config is the process configuration, read from the environment. A .env
// file in the working directory is honored when present.
type Config struct {
	// Storage
	DBPath string `env:"LEDGER_DB" envDefault:"mirror_ledger.db"`

	// Reflection gate
	GateMode    string        `env:"GATE_MODE" envDefault:"keyword"` // keyword | llm | accept
	GateTimeout time.Duration `env:"GATE_TIMEOUT" envDefault:"10s"`

	// Adaptation policy
	AdaptThreshold int    `env:"ADAPT_THRESHOLD" envDefault:"3"`
	AdaptScope     string `env:"ADAPT_SCOPE" envDefault:"trace"` // trace | global
	AdaptAsync     bool   `env:"ADAPT_ASYNC" envDefault:"false"`

	// Fine-tune collaborator
	FinetuneMode string `env:"FINETUNE_MODE" envDefault:"local"` // none | local | openai
	AdaptersDir  string `env:"ADAPTERS_DIR" envDefault:"adapters"`
	BaseModel    string `env:"BASE_MODEL" envDefault:"stub-base"`

	// Generation backend
	GeneratorMode string `env:"GENERATOR_MODE" envDefault:"stub"` // stub | openai

	// OpenAI-compatible endpoint (unused in stub/keyword modes)
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	DraftModel    string `env:"DRAFT_MODEL" envDefault:"gpt-4o-mini"`
	JudgeModel    string `env:"JUDGE_MODEL" envDefault:"gpt-4o-mini"`

	// Scheduled integrity audit; empty disables it.
	AuditCron string `env:"AUDIT_CRON" envDefault:"@hourly"`
}

// #endregion

// #region load

// Load reads configuration from the environment, then validates the mode
// selections.
func Load() (*Config, error) {
	// Best-effort: a missing .env is fine.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.GateMode {
	case "keyword", "llm", "accept":
	default:
		return fmt.Errorf("invalid GATE_MODE %q", c.GateMode)
	}
	switch c.AdaptScope {
	case "trace", "global":
	default:
		return fmt.Errorf("invalid ADAPT_SCOPE %q", c.AdaptScope)
	}
	switch c.FinetuneMode {
	case "none", "local", "openai":
	default:
		return fmt.Errorf("invalid FINETUNE_MODE %q", c.FinetuneMode)
	}
	switch c.GeneratorMode {
	case "stub", "openai":
	default:
		return fmt.Errorf("invalid GENERATOR_MODE %q", c.GeneratorMode)
	}
	if c.AdaptThreshold <= 0 {
		return fmt.Errorf("ADAPT_THRESHOLD must be positive, got %d", c.AdaptThreshold)
	}
	if c.GateTimeout <= 0 {
		return fmt.Errorf("GATE_TIMEOUT must be positive, got %s", c.GateTimeout)
	}
	if c.needsOpenAI() && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY required for gate=%s finetune=%s generator=%s", c.GateMode, c.FinetuneMode, c.GeneratorMode)
	}
	return nil
}

func (c *Config) needsOpenAI() bool {
	return c.GateMode == "llm" || c.FinetuneMode == "openai" || c.GeneratorMode == "openai"
}

// #endregion
