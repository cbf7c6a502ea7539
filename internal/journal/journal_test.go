package journal

import (
	"context"
	"testing"
	"time"
)

func TestMemoryJournalAppendAndTrace(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	recs := []Record{
		{RunID: "r1", Seq: 1, Node: "scanner", Timestamp: time.Now()},
		{RunID: "r1", Seq: 2, Node: "runner", Timestamp: time.Now()},
		{RunID: "r2", Seq: 1, Node: "scanner", Timestamp: time.Now()},
	}
	for _, r := range recs {
		if err := j.Append(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	trace, err := j.Trace(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(trace) != 2 {
		t.Fatalf("expected 2 records for r1, got %d", len(trace))
	}
	if trace[0].Node != "scanner" || trace[1].Node != "runner" {
		t.Errorf("unexpected order: %+v", trace)
	}
}

func TestMemoryJournalArtifacts(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	if err := j.PutArtifact(ctx, "r1", "results.json", []byte(`{"ok":true}`)); err != nil {
		t.Fatal(err)
	}
	got, err := j.GetArtifact(ctx, "r1", "results.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("got %q", got)
	}
}

func TestMemoryJournalGetArtifactMissing(t *testing.T) {
	j := NewMemoryJournal()
	if _, err := j.GetArtifact(context.Background(), "r1", "nope"); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestEncodeDecodeRecordRoundTrips(t *testing.T) {
	rec := Record{RunID: "r1", Seq: 5, Node: "publisher", Iteration: 2, Timestamp: time.Now().UTC().Truncate(time.Second), Data: map[string]any{"pushed": true}}
	body, err := EncodeRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeRecord(body)
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != rec.RunID || got.Seq != rec.Seq || got.Node != rec.Node {
		t.Errorf("round-trip mismatch: %+v vs %+v", got, rec)
	}
}

func TestEncodeDecodeTraceRoundTrips(t *testing.T) {
	recs := []Record{
		{RunID: "r1", Seq: 1, Node: "scanner"},
		{RunID: "r1", Seq: 2, Node: "runner"},
	}
	body, err := EncodeTrace(recs)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeTrace(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Node != "runner" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}
