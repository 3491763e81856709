package pipeline

import (
	"testing"
	"time"
)

func TestDedupeDocsKeepsEarliest(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)
	docs := []Doc{
		{DocID: "doc_b", HashSim: "aaaa", Timestamp: base.Add(time.Hour)},
		{DocID: "doc_a", HashSim: "aaaa", Timestamp: base},
		{DocID: "doc_c", HashSim: "bbbb", Timestamp: base.Add(2 * time.Hour)},
	}

	kept, dropped := DedupeDocs(docs)
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept docs, got %d", len(kept))
	}
	if kept[0].DocID != "doc_a" {
		t.Fatalf("expected earliest duplicate to survive, got %s", kept[0].DocID)
	}
	if len(dropped) != 1 || dropped[0] != "doc_b" {
		t.Fatalf("unexpected dropped set: %v", dropped)
	}

	seen := map[string]struct{}{}
	for _, doc := range kept {
		if _, dup := seen[doc.HashSim]; dup {
			t.Fatalf("duplicate hash survived dedupe: %s", doc.HashSim)
		}
		seen[doc.HashSim] = struct{}{}
	}
}

func TestDedupeDocsTimestampTieBreaksOnDocID(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)
	docs := []Doc{
		{DocID: "doc_z", HashSim: "aaaa", Timestamp: ts},
		{DocID: "doc_a", HashSim: "aaaa", Timestamp: ts},
	}

	kept, _ := DedupeDocs(docs)
	if len(kept) != 1 || kept[0].DocID != "doc_a" {
		t.Fatalf("expected doc_a to win the tie, got %v", kept)
	}
}

func TestDedupeDocsEmpty(t *testing.T) {
	t.Parallel()

	kept, dropped := DedupeDocs(nil)
	if len(kept) != 0 || len(dropped) != 0 {
		t.Fatalf("expected empty results, got %v / %v", kept, dropped)
	}
}
