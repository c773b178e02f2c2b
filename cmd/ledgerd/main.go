package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/danielpatrickdp/mirror-ledger/internal/adaptation"
	"github.com/danielpatrickdp/mirror-ledger/internal/auditor"
	"github.com/danielpatrickdp/mirror-ledger/internal/config"
	"github.com/danielpatrickdp/mirror-ledger/internal/generation"
	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
	"github.com/danielpatrickdp/mirror-ledger/internal/reflection"
	"github.com/danielpatrickdp/mirror-ledger/internal/store"
)

// #region capture-gate

// captureGate remembers the most recent verdict so the REPL can seed an
// under_review annotation when a draft passes with warnings. The loop is
// single-threaded, so one slot suffices.
type captureGate struct {
	inner ledger.Gate
	last  ledger.Verdict
}

func (g *captureGate) Evaluate(ctx context.Context, payload map[string]any) (ledger.Verdict, error) {
	v, err := g.inner.Evaluate(ctx, payload)
	g.last = v
	return v, err
}

// #endregion

// #region main
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	var client *openai.Client
	if cfg.OpenAIAPIKey != "" {
		oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			oc.BaseURL = cfg.OpenAIBaseURL
		}
		client = openai.NewClientWithConfig(oc)
	}

	gate := &captureGate{inner: buildGate(cfg, client)}

	chainCfg := ledger.ChainConfig{Gate: gate, Journal: st}
	blocks, err := st.LoadBlocks()
	if err != nil {
		log.Fatalf("failed to load blocks: %v", err)
	}
	var chain *ledger.Chain
	if len(blocks) == 0 {
		log.Println("No existing ledger found, creating genesis block...")
		chain, err = ledger.NewChain(chainCfg)
	} else {
		chain, err = ledger.LoadChain(chainCfg, blocks)
	}
	if err != nil {
		log.Fatalf("failed to initialize chain: %v", err)
	}

	policy, err := adaptation.NewPolicy(adaptation.PolicyConfig{
		Threshold:     cfg.AdaptThreshold,
		Scope:         adaptation.Scope(cfg.AdaptScope),
		AsyncFinetune: cfg.AdaptAsync,
	}, chain, buildFinetuner(cfg, client))
	if err != nil {
		log.Fatalf("failed to build adaptation policy: %v", err)
	}
	chain.OnFeedback(policy.OnFeedbackApplied)

	gen := buildGenerator(cfg, client)

	if cfg.AuditCron != "" {
		aud := auditor.New(chain)
		if err := aud.Start(cfg.AuditCron); err != nil {
			log.Fatalf("failed to start auditor: %v", err)
		}
		defer aud.Stop()
	}

	fmt.Println("Mirror Ledger ready.")
	fmt.Printf("  DB: %s | Gate: %s | Adaptation: %d/%s | Blocks: %d\n",
		cfg.DBPath, cfg.GateMode, cfg.AdaptThreshold, cfg.AdaptScope, chain.Len())
	fmt.Println("Commands: draft <trace|-> <transcript> | feedback <index> k=v ... | chain | trace <id> | validate | json | pairs | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		runCommand(chain, gen, gate, line)
	}
}

// #endregion main

// #region commands
func runCommand(chain *ledger.Chain, gen generation.Generator, gate *captureGate, line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "draft":
		if len(fields) < 3 {
			fmt.Println("usage: draft <trace|-> <transcript>")
			return
		}
		traceID := fields[1]
		if traceID == "-" {
			traceID = fmt.Sprintf("trace-%.8s", uuid.New().String())
		}
		cmdDraft(chain, gen, gate, traceID, strings.Join(fields[2:], " "))
	case "feedback":
		if len(fields) < 3 {
			fmt.Println("usage: feedback <index> key=value ...")
			return
		}
		cmdFeedback(chain, fields[1], fields[2:])
	case "chain":
		printBlocks(chain.All())
	case "trace":
		if len(fields) != 2 {
			fmt.Println("usage: trace <id>")
			return
		}
		printBlocks(chain.Query(fields[1]))
	case "json":
		data, err := chain.ToJSON("  ")
		if err != nil {
			fmt.Printf("serialize error: %v\n", err)
			return
		}
		fmt.Println(string(data))
	case "validate":
		if err := chain.Validate(); err != nil {
			fmt.Printf("INVALID: %v\n", err)
			return
		}
		fmt.Printf("chain valid (%d blocks)\n", chain.Len())
	case "pairs":
		pairs := adaptation.ExtractPairs(chain.All())
		if err := adaptation.EncodeJSONL(os.Stdout, pairs); err != nil {
			fmt.Printf("encode error: %v\n", err)
		}
		fmt.Printf("%d training pairs\n", len(pairs))
	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}
}

func cmdDraft(chain *ledger.Chain, gen generation.Generator, gate *captureGate, traceID, transcript string) {
	if fs, ok := gen.(*generation.OpenAI); ok {
		fs.SetExamples(generation.FewShotExamples(chain.All(), 3))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	draft, err := gen.DraftIntake(ctx, transcript, nil)
	if err != nil {
		log.Printf("generation error: %v", err)
		return
	}

	b, err := chain.Append(ctx, ledger.EventIntakeDrafted, traceID, draft.Payload())
	if err != nil {
		var rej *ledger.GateRejectionError
		if errors.As(err, &rej) {
			fmt.Printf("REJECTED: %s\n", rej.Reason)
			for _, v := range rej.Violations {
				fmt.Printf("  [%s] %s: %s\n", v.Severity, v.RuleID, v.Principle)
			}
			return
		}
		log.Printf("append error: %v", err)
		return
	}

	fmt.Printf("\n%s\n\n", draft.HPISummary)
	fmt.Printf("[block %d] trace=%s hash=%.12s\n", b.Index, b.TraceID, b.Hash)

	// A pass with warnings goes in, but flagged for a human to look at.
	if warns := gate.last.Violations; len(warns) > 0 {
		notes := make([]string, 0, len(warns))
		for _, v := range warns {
			notes = append(notes, fmt.Sprintf("%s: %s", v.RuleID, v.Principle))
		}
		if _, err := chain.AddFeedback(b.Index, map[string]any{
			ledger.FieldStatus:    "under_review",
			ledger.FieldAnnotator: "reflection-gate",
			ledger.FieldNotes:     strings.Join(notes, "; "),
		}); err != nil {
			log.Printf("warn annotation error: %v", err)
		} else {
			fmt.Printf("flagged under_review: %d warning(s)\n", len(warns))
		}
	}
}

func cmdFeedback(chain *ledger.Chain, indexArg string, kvs []string) {
	index, err := strconv.Atoi(indexArg)
	if err != nil {
		fmt.Printf("bad index %q\n", indexArg)
		return
	}

	fields := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			fmt.Printf("bad field %q (want key=value)\n", kv)
			return
		}
		if k == ledger.FieldRating {
			if n, err := strconv.Atoi(v); err == nil {
				fields[k] = n
				continue
			}
		}
		fields[k] = v
	}

	delta, err := chain.AddFeedback(index, fields)
	if err != nil {
		fmt.Printf("feedback error: %v\n", err)
		return
	}
	fmt.Printf("applied delta %s to block %d\n", delta.DeltaID, index)
}

func printBlocks(blocks []ledger.Block) {
	for _, b := range blocks {
		fmt.Printf("[%3d] %s  type=%-16s trace=%-12s feedback=%d hash=%.12s\n",
			b.Index, b.Timestamp.Format(time.RFC3339), b.EventType, b.TraceID, len(b.Feedback), b.Hash)
	}
	fmt.Printf("%d block(s)\n", len(blocks))
}

// #endregion commands

// #region wiring
func buildGate(cfg *config.Config, client *openai.Client) ledger.Gate {
	var g ledger.Gate
	switch cfg.GateMode {
	case "llm":
		g = reflection.NewModelGate(client, cfg.JudgeModel, reflection.DefaultRules())
	case "accept":
		g = reflection.AcceptAll{}
	default:
		g = reflection.NewKeywordGate(reflection.DefaultRules())
	}
	return reflection.WithTimeout(g, cfg.GateTimeout)
}

func buildFinetuner(cfg *config.Config, client *openai.Client) adaptation.Finetuner {
	switch cfg.FinetuneMode {
	case "local":
		return adaptation.Local{AdaptersDir: cfg.AdaptersDir, BaseModel: cfg.BaseModel}
	case "openai":
		return adaptation.NewOpenAI(client, cfg.BaseModel)
	default:
		return adaptation.Noop{}
	}
}

func buildGenerator(cfg *config.Config, client *openai.Client) generation.Generator {
	if cfg.GeneratorMode == "openai" {
		return generation.NewOpenAI(client, cfg.DraftModel, "")
	}
	return generation.Stub{ModelName: cfg.BaseModel}
}

// #endregion wiring
