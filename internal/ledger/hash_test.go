package ledger

import (
	"testing"
	"time"
)

func TestComputeHashDeterministic(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)

	a := map[string]any{"vitals": "120/80", "hpi_summary": "stable", "meta": map[string]any{"source": "unit", "rev": 2}}
	b := map[string]any{"meta": map[string]any{"rev": 2, "source": "unit"}, "hpi_summary": "stable", "vitals": "120/80"}

	h1, err := ComputeHash(3, ts, EventIntakeDrafted, "trace-001", a, "abc")
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	h2, err := ComputeHash(3, ts, EventIntakeDrafted, "trace-001", b, "abc")
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hash not independent of map insertion order: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestComputeHashSensitiveToEveryCoreField(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	payload := map[string]any{"vitals": "120/80"}

	base, err := ComputeHash(1, ts, EventIntakeDrafted, "trace-001", payload, "prev")
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}

	variants := []struct {
		name string
		hash func() (string, error)
	}{
		{"index", func() (string, error) {
			return ComputeHash(2, ts, EventIntakeDrafted, "trace-001", payload, "prev")
		}},
		{"timestamp", func() (string, error) {
			return ComputeHash(1, ts.Add(time.Nanosecond), EventIntakeDrafted, "trace-001", payload, "prev")
		}},
		{"event_type", func() (string, error) {
			return ComputeHash(1, ts, EventAdapterPromoted, "trace-001", payload, "prev")
		}},
		{"trace_id", func() (string, error) {
			return ComputeHash(1, ts, EventIntakeDrafted, "trace-002", payload, "prev")
		}},
		{"payload", func() (string, error) {
			return ComputeHash(1, ts, EventIntakeDrafted, "trace-001", map[string]any{"vitals": "130/85"}, "prev")
		}},
		{"previous_hash", func() (string, error) {
			return ComputeHash(1, ts, EventIntakeDrafted, "trace-001", payload, "other")
		}},
	}

	for _, v := range variants {
		h, err := v.hash()
		if err != nil {
			t.Fatalf("%s variant: %v", v.name, err)
		}
		if h == base {
			t.Fatalf("changing %s did not change the hash", v.name)
		}
	}
}

func TestComputeHashRejectsUnserializablePayload(t *testing.T) {
	_, err := ComputeHash(1, time.Now(), EventIntakeDrafted, "t", map[string]any{"bad": make(chan int)}, "prev")
	if err == nil {
		t.Fatal("expected error for unserializable payload")
	}
}
