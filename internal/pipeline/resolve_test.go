package pipeline

import (
	"reflect"
	"testing"

	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
)

func testResolver() *Resolver {
	return NewResolver(testCatalog(), config.DefaultWeights())
}

func TestResolveSingleCandidate(t *testing.T) {
	t.Parallel()

	resolver := testResolver()
	doc := docFromText("doc_1", "Alice Example wins award", "")
	candidates := NewExtractor(testCatalog()).Extract(doc)

	resolved, unresolved := resolver.ResolveDoc(doc, candidates)
	if len(resolved) != 1 {
		t.Fatalf("expected 1 resolved mention, got %d", len(resolved))
	}
	if len(unresolved) != 0 {
		t.Fatalf("expected no unresolved mentions, got %d", len(unresolved))
	}

	m := resolved[0]
	if m.EntityID != "person_p1" {
		t.Fatalf("unexpected entity: %s", m.EntityID)
	}
	if m.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %f", m.Confidence)
	}
	if m.Weight != 1.0 || m.IsImplicit {
		t.Fatalf("expected explicit full-weight mention, got weight=%f implicit=%t", m.Weight, m.IsImplicit)
	}
}

func TestResolveAmbiguousRoutesToQueue(t *testing.T) {
	t.Parallel()

	resolver := testResolver()
	doc := docFromText("doc_2", "", "Jordan was great.")
	candidates := NewExtractor(testCatalog()).Extract(doc)

	resolved, unresolved := resolver.ResolveDoc(doc, candidates)
	if len(resolved) != 0 {
		t.Fatalf("expected no resolved mentions, got %v", resolved)
	}
	if len(unresolved) != 1 {
		t.Fatalf("expected 1 unresolved mention, got %d", len(unresolved))
	}

	u := unresolved[0]
	if len(u.Candidates) != 2 {
		t.Fatalf("expected both candidates recorded, got %v", u.Candidates)
	}
	margin := config.DefaultWeights().Resolver.MarginThreshold * u.TopScore
	if u.TopScore-u.SecondScore >= margin && u.TopScore >= config.DefaultWeights().Resolver.MinConfidence {
		t.Fatalf("queued mention should not satisfy the acceptance rule: top=%f second=%f", u.TopScore, u.SecondScore)
	}
}

func TestImplicitAttributionToPrimaryEntity(t *testing.T) {
	t.Parallel()

	resolver := testResolver()
	doc := docFromText("doc_3", "The White Lotus finale", "It was divisive.")
	candidates := NewExtractor(testCatalog()).Extract(doc)

	resolved, unresolved := resolver.ResolveDoc(doc, candidates)
	if len(unresolved) != 0 {
		t.Fatalf("expected no unresolved mentions, got %d", len(unresolved))
	}
	if len(resolved) != 2 {
		t.Fatalf("expected explicit + implicit mention, got %d", len(resolved))
	}

	var explicit, implicit *ResolvedMention
	for i := range resolved {
		if resolved[i].IsImplicit {
			implicit = &resolved[i]
		} else {
			explicit = &resolved[i]
		}
	}
	if explicit == nil || implicit == nil {
		t.Fatalf("expected one explicit and one implicit mention: %v", resolved)
	}
	if explicit.EntityID != "show_w" || implicit.EntityID != "show_w" {
		t.Fatalf("expected both mentions on show_w, got %s / %s", explicit.EntityID, implicit.EntityID)
	}
	if implicit.Weight != config.DefaultWeights().ImplicitMentionWeight {
		t.Fatalf("implicit weight: want %f, got %f", config.DefaultWeights().ImplicitMentionWeight, implicit.Weight)
	}
}

func TestNoImplicitWithoutExplicitResolution(t *testing.T) {
	t.Parallel()

	resolver := testResolver()
	doc := docFromText("doc_4", "", "It was divisive.")
	candidates := NewExtractor(testCatalog()).Extract(doc)

	resolved, _ := resolver.ResolveDoc(doc, candidates)
	if len(resolved) != 0 {
		t.Fatalf("expected no mentions in document without explicit resolution, got %v", resolved)
	}
}

func TestNoImplicitOnExplicitSentence(t *testing.T) {
	t.Parallel()

	resolver := testResolver()
	doc := docFromText("doc_5", "", "They say Alice Example is brilliant.")
	candidates := NewExtractor(testCatalog()).Extract(doc)

	resolved, _ := resolver.ResolveDoc(doc, candidates)
	for _, m := range resolved {
		if m.IsImplicit {
			t.Fatalf("sentence with explicit mention must not also get implicit attribution: %v", m)
		}
	}
}

func TestResolveDeterminism(t *testing.T) {
	t.Parallel()

	doc := docFromText("doc_6", "The White Lotus finale", "Alice Example praised it. It was divisive. Jordan disagreed.")

	run := func() ([]ResolvedMention, []UnresolvedSurface) {
		resolver := testResolver()
		candidates := NewExtractor(testCatalog()).Extract(doc)
		return resolver.ResolveDoc(doc, candidates)
	}

	r1, u1 := run()
	r2, u2 := run()
	if !reflect.DeepEqual(r1, r2) {
		t.Fatalf("resolved mentions differ between identical runs")
	}
	if !reflect.DeepEqual(u1, u2) {
		t.Fatalf("unresolved mentions differ between identical runs")
	}
}
