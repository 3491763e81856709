package catalog

import (
	"testing"
)

func TestNewBuildsAliasIndex(t *testing.T) {
	t.Parallel()

	cat := New([]Entity{
		{EntityID: "person_p2", CanonicalName: "Jordan Smith", Aliases: []string{"Jordan"}},
		{EntityID: "person_p3", CanonicalName: "Jordan Lee", Aliases: []string{"Jordan", "Jordan"}},
	})

	candidates := cat.Candidates("jordan")
	if len(candidates) != 2 {
		t.Fatalf("shared alias should map to both entities, got %v", candidates)
	}
	if candidates[0] != "person_p2" || candidates[1] != "person_p3" {
		t.Fatalf("candidates must be sorted for determinism, got %v", candidates)
	}

	if got := cat.Candidates("jordan smith"); len(got) != 1 || got[0] != "person_p2" {
		t.Fatalf("canonical name should index too, got %v", got)
	}
	if cat.ByID("person_p2") == nil || cat.ByID("missing") != nil {
		t.Fatalf("ByID lookup broken")
	}
}

func TestNewNormalizesAliasSurfaces(t *testing.T) {
	t.Parallel()

	cat := New([]Entity{
		{EntityID: "show_w", CanonicalName: "The White Lotus", Aliases: []string{"  WHITE   LOTUS! "}},
	})

	if got := cat.Candidates("white lotus"); len(got) != 1 {
		t.Fatalf("alias normalization failed, got %v", got)
	}
}

func TestPinnedSorted(t *testing.T) {
	t.Parallel()

	cat := New([]Entity{
		{EntityID: "z_entity", CanonicalName: "Zed", IsPinned: true},
		{EntityID: "a_entity", CanonicalName: "Abc", IsPinned: true},
		{EntityID: "m_entity", CanonicalName: "Mid"},
	})

	pinned := cat.Pinned()
	if len(pinned) != 2 {
		t.Fatalf("expected 2 pinned entities, got %d", len(pinned))
	}
	if pinned[0].EntityID != "a_entity" {
		t.Fatalf("pinned list must be sorted by id, got %v", pinned)
	}
}

func TestValidatePinnedEntities(t *testing.T) {
	t.Parallel()

	payload := []byte(`[
		{"entity_id": "person_p1", "canonical_name": "Alice Example", "type": "PERSON", "aliases": ["Alice"]}
	]`)

	entities, err := ValidatePinnedEntities(payload)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}
	if entities[0].EntityKey != "person_p1" {
		t.Fatalf("entity_key should default to entity_id, got %q", entities[0].EntityKey)
	}
}

func TestValidatePinnedEntitiesRejectsBadType(t *testing.T) {
	t.Parallel()

	payload := []byte(`[{"entity_id": "x", "canonical_name": "X", "type": "PLANET"}]`)
	if _, err := ValidatePinnedEntities(payload); err == nil {
		t.Fatalf("expected schema rejection for unknown type")
	}
}

func TestValidatePinnedEntitiesRejectsDuplicates(t *testing.T) {
	t.Parallel()

	payload := []byte(`[
		{"entity_id": "x", "canonical_name": "X", "type": "PERSON"},
		{"entity_id": "x", "canonical_name": "X2", "type": "PERSON"}
	]`)
	if _, err := ValidatePinnedEntities(payload); err == nil {
		t.Fatalf("expected duplicate entity_id rejection")
	}
}

func TestValidatePinnedEntitiesRejectsTrailingContent(t *testing.T) {
	t.Parallel()

	payload := []byte(`[] trailing`)
	if _, err := ValidatePinnedEntities(payload); err == nil {
		t.Fatalf("expected trailing content rejection")
	}
}
