package store

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
	_ "modernc.org/sqlite"
)

// #endregion

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS ledger_blocks (
	block_idx     INTEGER PRIMARY KEY,
	timestamp     TEXT NOT NULL,
	event_type    TEXT NOT NULL,
	trace_id      TEXT,
	payload_json  TEXT NOT NULL,
	previous_hash TEXT NOT NULL,
	hash          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback_deltas (
	delta_id    TEXT PRIMARY KEY,
	block_idx   INTEGER NOT NULL,
	applied_at  TEXT NOT NULL,
	fields_json TEXT NOT NULL,
	FOREIGN KEY (block_idx) REFERENCES ledger_blocks(block_idx)
);

CREATE INDEX IF NOT EXISTS idx_ledger_blocks_trace ON ledger_blocks(trace_id);
CREATE INDEX IF NOT EXISTS idx_feedback_deltas_block ON feedback_deltas(block_idx);
`

// #endregion schema

// #region store-struct

// Store is the durable journal behind the in-memory chain: one row per block,
// one row per feedback delta. It implements ledger.Journal.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for read-only tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region append-block

// AppendBlock journals one block's immutable core. Called by the chain inside
// its structural lock, so rows land in index order.
func (s *Store) AppendBlock(b ledger.Block) error {
	payloadJSON, err := json.Marshal(b.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO ledger_blocks (block_idx, timestamp, event_type, trace_id, payload_json, previous_hash, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.Index,
		b.Timestamp.UTC().Format(time.RFC3339Nano),
		string(b.EventType),
		nullIfEmpty(b.TraceID),
		string(payloadJSON),
		b.PreviousHash,
		b.Hash,
	)
	if err != nil {
		return fmt.Errorf("insert block %d: %w", b.Index, err)
	}
	return nil
}

// #endregion append-block

// #region append-feedback

// AppendFeedback journals one feedback delta keyed by block index.
func (s *Store) AppendFeedback(blockIndex int, d ledger.FeedbackDelta) error {
	fieldsJSON, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO feedback_deltas (delta_id, block_idx, applied_at, fields_json)
		 VALUES (?, ?, ?, ?)`,
		d.DeltaID,
		blockIndex,
		d.AppliedAt.UTC().Format(time.RFC3339Nano),
		string(fieldsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert feedback for block %d: %w", blockIndex, err)
	}
	return nil
}

// #endregion append-feedback

// #region load-blocks

// LoadBlocks reconstructs the full block sequence in ascending index order
// with feedback annexes reattached in application order. The caller hands the
// result to ledger.LoadChain, which re-verifies every hash, so a journal whose
// immutable fields were touched is refused at startup.
func (s *Store) LoadBlocks() ([]ledger.Block, error) {
	rows, err := s.db.Query(
		`SELECT block_idx, timestamp, event_type, trace_id, payload_json, previous_hash, hash
		 FROM ledger_blocks ORDER BY block_idx ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []ledger.Block
	for rows.Next() {
		var b ledger.Block
		var tsStr string
		var eventType string
		var traceID sql.NullString
		var payloadJSON string

		if err := rows.Scan(&b.Index, &tsStr, &eventType, &traceID, &payloadJSON, &b.PreviousHash, &b.Hash); err != nil {
			return nil, fmt.Errorf("scan block row: %w", err)
		}
		b.Timestamp, err = time.Parse(time.RFC3339Nano, tsStr)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp for block %d: %w", b.Index, err)
		}
		b.EventType = ledger.EventType(eventType)
		if traceID.Valid {
			b.TraceID = traceID.String
		}
		if err := json.Unmarshal([]byte(payloadJSON), &b.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for block %d: %w", b.Index, err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}

	if err := s.attachFeedback(blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// attachFeedback loads all deltas in insertion order and appends each to its
// block's annex.
func (s *Store) attachFeedback(blocks []ledger.Block) error {
	rows, err := s.db.Query(
		`SELECT delta_id, block_idx, applied_at, fields_json
		 FROM feedback_deltas ORDER BY rowid ASC`,
	)
	if err != nil {
		return fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d ledger.FeedbackDelta
		var blockIdx int
		var appliedStr string
		var fieldsJSON string

		if err := rows.Scan(&d.DeltaID, &blockIdx, &appliedStr, &fieldsJSON); err != nil {
			return fmt.Errorf("scan feedback row: %w", err)
		}
		d.AppliedAt, err = time.Parse(time.RFC3339Nano, appliedStr)
		if err != nil {
			return fmt.Errorf("parse applied_at for delta %s: %w", d.DeltaID, err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &d.Fields); err != nil {
			return fmt.Errorf("unmarshal fields for delta %s: %w", d.DeltaID, err)
		}
		if blockIdx < 0 || blockIdx >= len(blocks) {
			return fmt.Errorf("feedback delta %s references missing block %d", d.DeltaID, blockIdx)
		}
		blocks[blockIdx].Feedback = append(blocks[blockIdx].Feedback, d)
	}
	return rows.Err()
}

// #endregion load-blocks

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
