package ledger

// #region imports
import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// #endregion

// GenesisPreviousHash is the sentinel previous-hash of block 0.
const GenesisPreviousHash = "0"

// #region canonical-core

// canonicalCore serializes a block's immutable fields to a deterministic JSON
// byte string. encoding/json emits map keys in sorted order, so identical
// field values always produce identical bytes regardless of insertion order,
// including inside nested payload maps. The feedback annex is deliberately
// absent: annotation must never change a block's hash.
func canonicalCore(index int, timestamp time.Time, eventType EventType, traceID string, payload map[string]any, previousHash string) ([]byte, error) {
	core := map[string]any{
		"index":         index,
		"timestamp":     timestamp.UTC().Format(time.RFC3339Nano),
		"event_type":    string(eventType),
		"trace_id":      traceID,
		"payload":       payload,
		"previous_hash": previousHash,
	}
	buf, err := json.Marshal(core)
	if err != nil {
		return nil, &ValidationError{Field: "payload", Reason: fmt.Sprintf("not serializable: %v", err)}
	}
	return buf, nil
}

// #endregion

// #region compute-hash

// ComputeHash returns the lowercase hex SHA-256 digest of a block's immutable
// core. Pure: no side effects, deterministic across processes and platforms.
func ComputeHash(index int, timestamp time.Time, eventType EventType, traceID string, payload map[string]any, previousHash string) (string, error) {
	buf, err := canonicalCore(index, timestamp, eventType, traceID, payload, previousHash)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

// #endregion
