package reflection

// #region imports
import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
)

// #endregion

// #region timeout-gate

// timeoutGate bounds an evaluator that may hang. A deadline expiry becomes a
// rejection with reason "evaluator timeout": content that could not be judged
// in time is never appended.
type timeoutGate struct {
	inner ledger.Gate
	limit time.Duration
}

// WithTimeout wraps a gate with an evaluation deadline.
func WithTimeout(inner ledger.Gate, limit time.Duration) ledger.Gate {
	return &timeoutGate{inner: inner, limit: limit}
}

func timeoutVerdict() ledger.Verdict {
	return ledger.Verdict{OK: false, Reason: "evaluator timeout"}
}

func (g *timeoutGate) Evaluate(ctx context.Context, payload map[string]any) (ledger.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, g.limit)
	defer cancel()

	type result struct {
		verdict ledger.Verdict
		err     error
	}
	done := make(chan result, 1)
	go func() {
		v, err := g.inner.Evaluate(ctx, payload)
		done <- result{verdict: v, err: err}
	}()

	select {
	case r := <-done:
		if errors.Is(r.err, context.DeadlineExceeded) {
			return timeoutVerdict(), nil
		}
		return r.verdict, r.err
	case <-ctx.Done():
		// The evaluator ignored the context; abandon it.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return timeoutVerdict(), nil
		}
		return ledger.Verdict{}, ctx.Err()
	}
}

// #endregion
