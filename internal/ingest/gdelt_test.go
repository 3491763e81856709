package ingest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
)

func testGDELTSource(allowlist []string) *GDELTSource {
	appCfg := &config.Config{RequestTimeout: 5 * time.Second}
	return NewGDELTSource(config.GDELTSourceConfig{MaxArticles: 10}, allowlist, appCfg, zerolog.Nop())
}

func TestDomainAllowlistMatching(t *testing.T) {
	t.Parallel()

	source := testGDELTSource([]string{"Variety.com", "www.deadline.com"})

	if !source.domainAllowed("variety.com") {
		t.Fatalf("exact base-domain match should pass")
	}
	if !source.domainAllowed("WWW.VARIETY.COM") {
		t.Fatalf("match must be case-insensitive and strip www.")
	}
	if !source.domainAllowed("sub.variety.com") {
		t.Fatalf("subdomain of an allowed base domain should pass")
	}
	if !source.domainAllowed("deadline.com") {
		t.Fatalf("allowlist entries with www. prefix must normalize")
	}
	if source.domainAllowed("notvariety.com") {
		t.Fatalf("suffix overlap without a dot boundary must not pass")
	}
	if source.domainAllowed("example.com") {
		t.Fatalf("unlisted domain must not pass")
	}
}

func TestEmptyAllowlistAllowsAll(t *testing.T) {
	t.Parallel()

	source := testGDELTSource(nil)
	if !source.domainAllowed("anything.example") {
		t.Fatalf("empty allowlist means no domain filter")
	}
}

func TestGDELTSeenTimeParsing(t *testing.T) {
	t.Parallel()

	article := gdeltArticle{SeenDate: "20260214T060000Z"}
	want := time.Date(2026, 2, 14, 6, 0, 0, 0, time.UTC)
	if got := article.seenTime(); !got.Equal(want) {
		t.Fatalf("seen time: want %v, got %v", want, got)
	}

	if got := (gdeltArticle{SeenDate: "garbage"}).seenTime(); !got.IsZero() {
		t.Fatalf("unparseable seendate should yield zero time, got %v", got)
	}
}

func TestQuoteKeywords(t *testing.T) {
	t.Parallel()

	quoted := quoteKeywords([]string{"celebrity", "box office", " ", ""})
	if len(quoted) != 2 {
		t.Fatalf("expected blank keywords dropped, got %v", quoted)
	}
	if quoted[1] != `"box office"` {
		t.Fatalf("multi-word keywords must be quoted, got %q", quoted[1])
	}
}
