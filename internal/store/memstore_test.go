package store

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestMemStore_RoundTrip(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	payload := payloadFor(1000, "post_call_transcription", "abc123")
	if err := s.Save(ctx, payload); err != nil {
		t.Fatalf("Save: %v", err)
	}

	items, err := s.ListLatest(ctx, 1)
	if err != nil {
		t.Fatalf("ListLatest: %v", err)
	}
	if len(items) != 1 || !bytes.Equal(items[0], payload) {
		t.Errorf("round-trip mismatch: %v", items)
	}
}

func TestMemStore_OrderingMatchesFileStore(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for _, ts := range []int64{100, 300, 200} {
		if err := s.Save(ctx, payloadFor(ts, "post_call_transcription", "conv")); err != nil {
			t.Fatal(err)
		}
	}

	items, err := s.ListLatest(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}

	want := []int64{300, 200, 100}
	for i, item := range items {
		var env struct {
			EventTimestamp int64 `json:"event_timestamp"`
		}
		if err := json.Unmarshal(item, &env); err != nil {
			t.Fatal(err)
		}
		if env.EventTimestamp != want[i] {
			t.Fatalf("item %d timestamp = %d, want %d", i, env.EventTimestamp, want[i])
		}
	}
}

func TestMemStore_GetByID(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Save(ctx, payloadFor(100, "post_call_transcription", "abc123")); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetByID(ctx, "abc123"); err != nil {
		t.Errorf("GetByID(exact) err = %v", err)
	}
	if _, err := s.GetByID(ctx, "abc"); err != ErrNotFound {
		t.Errorf("GetByID(prefix) err = %v, want ErrNotFound", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}
