package pipeline

import (
	"strings"
	"testing"

	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
	"github.com/avgjoe1017/et-heatmap-v2/internal/sentiment"
)

func TestBuildDriversVideoOutranksPost(t *testing.T) {
	t.Parallel()

	docs, items := fixtureLookups()
	mentions := []ResolvedMention{
		mentionWith("person_p1", "doc_post", 1.0, sentiment.Neutral()),
		mentionWith("person_p1", "doc_vid", 1.0, sentiment.Neutral()),
	}

	drivers := BuildDrivers(mentions, docs, items, testCatalog(), config.DefaultWeights())
	if len(drivers) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(drivers))
	}
	if drivers[0].ItemID != "item_vid" || drivers[0].Rank != 1 {
		t.Fatalf("video should outrank the forum post: %+v", drivers[0])
	}
	if drivers[1].ItemID != "item_post" || drivers[1].Rank != 2 {
		t.Fatalf("post should rank second: %+v", drivers[1])
	}
	if drivers[0].ImpactScore <= drivers[1].ImpactScore {
		t.Fatalf("impact ordering violated: %f <= %f", drivers[0].ImpactScore, drivers[1].ImpactScore)
	}
}

func TestBuildDriversTopNCap(t *testing.T) {
	t.Parallel()

	docs, items := fixtureLookups()
	weights := config.DefaultWeights()
	weights.Drivers.TopN = 1

	mentions := []ResolvedMention{
		mentionWith("person_p1", "doc_post", 1.0, sentiment.Neutral()),
		mentionWith("person_p1", "doc_vid", 1.0, sentiment.Neutral()),
	}

	drivers := BuildDrivers(mentions, docs, items, testCatalog(), weights)
	if len(drivers) != 1 {
		t.Fatalf("expected top-N cap of 1, got %d drivers", len(drivers))
	}
	if drivers[0].Rank != 1 {
		t.Fatalf("ranks must be dense from 1, got %d", drivers[0].Rank)
	}
}

func TestDriverReasonMentionsEngagement(t *testing.T) {
	t.Parallel()

	docs, items := fixtureLookups()
	mentions := []ResolvedMention{
		mentionWith("person_p1", "doc_vid", 1.0, sentiment.Distribution{Pos: 0.9, Neu: 0.05, Neg: 0.05}),
	}

	drivers := BuildDrivers(mentions, docs, items, testCatalog(), config.DefaultWeights())
	if len(drivers) != 1 {
		t.Fatalf("expected 1 driver, got %d", len(drivers))
	}

	reason := drivers[0].Reason
	if !strings.Contains(reason, "Alice Example") {
		t.Fatalf("reason should name the entity: %q", reason)
	}
	if !strings.Contains(reason, "100K views") {
		t.Fatalf("reason should carry the engagement figure: %q", reason)
	}
	if !strings.Contains(reason, "positive sentiment") {
		t.Fatalf("reason should carry the sentiment verdict: %q", reason)
	}
}
