package reflection

// #region severity

// Rule severities. A "block" violation rejects the payload outright; a "warn"
// violation passes but is reported so the caller can flag the block for review.
const (
	SeverityBlock = "block"
	SeverityWarn  = "warn"
)

// #endregion

// #region rule

// Rule is one constitutional principle with the indicator keywords that
// suggest a violation. Keyword matching is deliberately blunt: the rule set is
// the evaluator's content, and richer evaluators (see ModelGate) consume the
// same principles.
type Rule struct {
	ID        string
	Principle string
	Severity  string
	Keywords  []string
}

// #endregion

// #region default-rules

// DefaultRules is the standing constitution for generated clinical-intake
// content: human dignity and truthfulness are hard stops, unverified clinical
// directives are flagged for review.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:        "dignity-1",
			Principle: "Every person has inherent dignity; output must never dehumanize or incite harm.",
			Severity:  SeverityBlock,
			Keywords: []string{
				"worthless", "subhuman", "vermin", "kill them", "eliminate the",
				"force them to", "enslave",
			},
		},
		{
			ID:        "truth-1",
			Principle: "Output must not assert known falsehoods or be designed to deceive.",
			Severity:  SeverityBlock,
			Keywords: []string{
				"lie about", "deceive them by", "manipulate them into", "is a known fraud",
			},
		},
		{
			ID:        "clinical-1",
			Principle: "Drafted intake text must not issue unverified diagnoses or dosing instructions.",
			Severity:  SeverityBlock,
			Keywords: []string{
				"definitely has", "stop taking", "double the dose",
			},
		},
		{
			ID:        "clinical-2",
			Principle: "Hedged or speculative clinical language warrants human review before approval.",
			Severity:  SeverityWarn,
			Keywords: []string{
				"probably", "almost certainly", "no need to verify",
			},
		},
	}
}

// #endregion
