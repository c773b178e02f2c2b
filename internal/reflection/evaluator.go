package reflection

// #region imports
import (
	"context"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
)

// #endregion

// #region keyword-gate

// KeywordGate evaluates payloads against a rule table by case-insensitive
// keyword scan over every string leaf of the payload. Pure and fast: no
// external calls, no chain access.
type KeywordGate struct {
	rules []Rule
}

// NewKeywordGate creates a gate over the given rule table.
func NewKeywordGate(rules []Rule) *KeywordGate {
	return &KeywordGate{rules: rules}
}

// Evaluate scans the payload's text and reports every matched rule. The
// verdict fails only on a block-severity match; warn matches pass but are
// carried in Violations for the caller to record.
func (g *KeywordGate) Evaluate(_ context.Context, payload map[string]any) (ledger.Verdict, error) {
	text := strings.ToLower(collectText(payload))
	if text == "" {
		return ledger.Verdict{OK: true}, nil
	}

	var violations []ledger.Violation
	for _, rule := range g.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				violations = append(violations, ledger.Violation{
					RuleID:    rule.ID,
					Severity:  rule.Severity,
					Principle: rule.Principle,
					Keyword:   kw,
				})
			}
		}
	}

	for _, v := range violations {
		if v.Severity == SeverityBlock {
			return ledger.Verdict{
				OK:         false,
				Reason:     fmt.Sprintf("rule %s violated (keyword %q)", v.RuleID, v.Keyword),
				Violations: violations,
			}, nil
		}
	}
	return ledger.Verdict{OK: true, Violations: violations}, nil
}

// collectText concatenates every string leaf in the payload, walking nested
// maps and slices.
func collectText(v any) string {
	var sb strings.Builder
	var walk func(any)
	walk = func(v any) {
		switch x := v.(type) {
		case string:
			sb.WriteString(x)
			sb.WriteByte('\n')
		case map[string]any:
			for _, elem := range x {
				walk(elem)
			}
		case []any:
			for _, elem := range x {
				walk(elem)
			}
		}
	}
	walk(v)
	return sb.String()
}

// #endregion

// #region accept-all

// AcceptAll is the trivial gate: every payload passes. Used for bring-up and
// for tests that exercise the chain without evaluator behavior.
type AcceptAll struct{}

func (AcceptAll) Evaluate(_ context.Context, _ map[string]any) (ledger.Verdict, error) {
	return ledger.Verdict{OK: true}, nil
}

// #endregion
