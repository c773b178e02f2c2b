package ledger

// #region imports
import "fmt"

// #endregion

// #region validation-error

// ValidationError reports structurally malformed caller input. Surfaced
// immediately; the chain is never mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// #endregion

// #region gate-rejection

// GateRejectionError means the reflection gate refused the payload. This is a
// normal, expected outcome, not a system fault: the chain records nothing for
// a rejected event.
type GateRejectionError struct {
	Reason     string
	Violations []Violation
}

func (e *GateRejectionError) Error() string {
	return fmt.Sprintf("gate rejected content: %s", e.Reason)
}

// #endregion

// #region not-found

// NotFoundError means the referenced block index does not exist.
type NotFoundError struct {
	Index int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("block %d not found", e.Index)
}

// #endregion

// #region integrity-error

// IntegrityKind enumerates the ways a chain can fail validation.
type IntegrityKind string

const (
	IntegrityHashMismatch    IntegrityKind = "hash_mismatch"
	IntegrityLinkBroken      IntegrityKind = "link_broken"
	IntegrityIndexGap        IntegrityKind = "index_gap"
	IntegrityTimestampOrder  IntegrityKind = "timestamp_order"
	IntegrityGenesisMismatch IntegrityKind = "genesis_mismatch"
)

// ChainIntegrityError reports the first violation found while walking the
// chain. It signals the ledger itself is untrustworthy; the caller decides
// remediation, the chain never auto-repairs.
type ChainIntegrityError struct {
	Index  int
	Kind   IntegrityKind
	Detail string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("chain integrity violation at block %d (%s): %s", e.Index, e.Kind, e.Detail)
}

// #endregion

// #region collaborator-error

// CollaboratorError wraps a failure from an external collaborator (reflection
// evaluator transport, fine-tune invocation). Retry policy belongs to the
// collaborator, not to the ledger.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// #endregion
