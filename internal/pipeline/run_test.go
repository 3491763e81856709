package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm/logger"

	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
	"github.com/avgjoe1017/et-heatmap-v2/internal/db"
	"github.com/avgjoe1017/et-heatmap-v2/internal/ingest"
	"github.com/avgjoe1017/et-heatmap-v2/internal/sentiment"
)

type stubSource struct {
	name  string
	items []ingest.Item
	err   error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(_ context.Context, _, _ time.Time) ([]ingest.Item, error) {
	return s.items, s.err
}

func e2ePool(t *testing.T) *db.Pool {
	t.Helper()
	pool, err := db.Open(context.Background(), ":memory:", db.OpenOptions{
		LogLevel:    logger.Silent,
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func seedEntity(t *testing.T, pool *db.Pool, entityID, name, entityType string, pinned bool, aliases ...string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	entity := &db.Entity{
		EntityID:      entityID,
		EntityKey:     entityID,
		CanonicalName: name,
		EntityType:    entityType,
		IsPinned:      pinned,
		IsActive:      true,
		FirstSeenAt:   now,
		ExternalIDs:   datatypes.JSON(`{}`),
		ContextHints:  datatypes.JSON(`[]`),
		Metadata:      datatypes.JSON(`{}`),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := pool.UpsertEntity(ctx, entity); err != nil {
		t.Fatalf("seed entity %s: %v", entityID, err)
	}

	for _, surface := range append([]string{name}, aliases...) {
		alias := &db.EntityAlias{
			EntityID:   entityID,
			Surface:    surface,
			Normalized: normalizedAlias(surface),
			Confidence: 1.0,
			CreatedAt:  now,
		}
		if err := pool.UpsertAlias(ctx, alias); err != nil {
			t.Fatalf("seed alias %q: %v", surface, err)
		}
	}
}

func normalizedAlias(surface string) string {
	// Mirrors textutil.NormalizeSurface for the ASCII fixture names used here.
	out := make([]rune, 0, len(surface))
	lastSpace := false
	for _, r := range surface {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
			lastSpace = false
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			out = append(out, r)
			lastSpace = false
		case r == ' ':
			if !lastSpace && len(out) > 0 {
				out = append(out, ' ')
				lastSpace = true
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}

func e2eWindow() Window {
	start := time.Date(2026, 7, 14, 13, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

func e2eRunner(pool *db.Pool, sources ...ingest.Source) *Runner {
	return NewRunner(pool, config.DefaultWeights(), sources, sentiment.NewLexiconScorer(), 2, zerolog.Nop())
}

func TestRunSingleExplicitMention(t *testing.T) {
	t.Parallel()

	pool := e2ePool(t)
	seedEntity(t, pool, "person_p1", "Alice Example", "PERSON", true)
	seedEntity(t, pool, "person_p4", "Quiet Pinned", "PERSON", true)

	window := e2eWindow()
	source := &stubSource{
		name: ingest.SourceReddit,
		items: []ingest.Item{{
			ItemID:      "reddit_post_x1",
			Source:      ingest.SourceReddit,
			PublishedAt: window.Start.Add(2 * time.Hour),
			Title:       "Alice Example is amazing in the award speech",
			Description: "It was a beautiful ceremony.",
			Engagement:  map[string]float64{"score": 10, "num_comments": 2},
			RawPayload:  map[string]any{"post_type": "post"},
		}},
	}

	result, err := e2eRunner(pool, source).Execute(context.Background(), window)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Status != db.RunStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", result.Status)
	}
	if result.Mentions == 0 {
		t.Fatalf("expected at least one mention")
	}

	ctx := context.Background()

	var metrics []db.EntityDailyMetrics
	if err := pool.GORM().WithContext(ctx).Where("run_id = ?", result.RunID).Order("entity_id").Find(&metrics).Error; err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if len(metrics) != 2 {
		t.Fatalf("expected rows for the mentioned and the dormant pinned entity, got %d", len(metrics))
	}

	byEntity := map[string]db.EntityDailyMetrics{}
	for _, m := range metrics {
		byEntity[m.EntityID] = m
	}

	active := byEntity["person_p1"]
	if active.IsDormant {
		t.Fatalf("mentioned entity must not be dormant")
	}
	if active.MentionsExplicit < 1 {
		t.Fatalf("expected explicit mention count >= 1, got %d", active.MentionsExplicit)
	}
	if active.Love <= 50 {
		t.Fatalf("positive conversation should push love above neutral, got %f", active.Love)
	}
	for _, v := range []float64{active.Fame, active.Love, active.Polarization, active.Confidence} {
		if v < 0 || v > 100 {
			t.Fatalf("axis out of bounds: %+v", active)
		}
	}

	dormant := byEntity["person_p4"]
	if !dormant.IsDormant {
		t.Fatalf("pinned silent entity must be dormant")
	}
	if dormant.MentionsExplicit != 0 || dormant.MentionsImplicit != 0 {
		t.Fatalf("dormant row must carry zero counts: %+v", dormant)
	}
	if dormant.Love != 50 {
		t.Fatalf("dormant love must be 50, got %f", dormant.Love)
	}

	var unresolvedCount int64
	if err := pool.GORM().WithContext(ctx).Model(&db.UnresolvedMention{}).Count(&unresolvedCount).Error; err != nil {
		t.Fatalf("count unresolved: %v", err)
	}
	if unresolvedCount != 0 {
		t.Fatalf("single-candidate mention must not enter the queue, got %d rows", unresolvedCount)
	}
}

func TestRunAmbiguousSurfaceGoesToQueue(t *testing.T) {
	t.Parallel()

	pool := e2ePool(t)
	seedEntity(t, pool, "person_p2", "Jordan Smith", "PERSON", false, "Jordan")
	seedEntity(t, pool, "person_p3", "Jordan Lee", "PERSON", false, "Jordan")

	window := e2eWindow()
	source := &stubSource{
		name: ingest.SourceReddit,
		items: []ingest.Item{{
			ItemID:      "reddit_post_x2",
			Source:      ingest.SourceReddit,
			PublishedAt: window.Start.Add(time.Hour),
			Title:       "Awards night",
			Description: "Jordan was great.",
			Engagement:  map[string]float64{"score": 3},
			RawPayload:  map[string]any{"post_type": "post"},
		}},
	}

	result, err := e2eRunner(pool, source).Execute(context.Background(), window)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	ctx := context.Background()
	var unresolved []db.UnresolvedMention
	if err := pool.GORM().WithContext(ctx).Find(&unresolved).Error; err != nil {
		t.Fatalf("read unresolved: %v", err)
	}
	if len(unresolved) != 1 {
		t.Fatalf("expected 1 unresolved mention, got %d", len(unresolved))
	}

	u := unresolved[0]
	if u.SurfaceNorm != "jordan" {
		t.Fatalf("unexpected surface norm: %q", u.SurfaceNorm)
	}
	var candidates []CandidateScore
	if err := json.Unmarshal(u.Candidates, &candidates); err != nil {
		t.Fatalf("decode candidates: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("both candidates must be recorded, got %v", candidates)
	}

	var mentionCount int64
	if err := pool.GORM().WithContext(ctx).Model(&db.Mention{}).Where("run_id = ?", result.RunID).Count(&mentionCount).Error; err != nil {
		t.Fatalf("count mentions: %v", err)
	}
	if mentionCount != 0 {
		t.Fatalf("ambiguous surface must not produce resolved mentions, got %d", mentionCount)
	}
}

func TestRunZeroItemsWithPinnedEntities(t *testing.T) {
	t.Parallel()

	pool := e2ePool(t)
	seedEntity(t, pool, "person_p4", "Quiet Pinned", "PERSON", true)

	result, err := e2eRunner(pool, &stubSource{name: ingest.SourceReddit}).Execute(context.Background(), e2eWindow())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Status != db.RunStatusSuccess {
		t.Fatalf("pinned dormant rows keep a zero-item run SUCCESS, got %s", result.Status)
	}
	if result.Entities != 1 {
		t.Fatalf("expected 1 dormant row, got %d", result.Entities)
	}
}

func TestRunZeroItemsNoEntitiesIsPartial(t *testing.T) {
	t.Parallel()

	pool := e2ePool(t)

	result, err := e2eRunner(pool, &stubSource{name: ingest.SourceReddit}).Execute(context.Background(), e2eWindow())
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if result.Status != db.RunStatusPartial {
		t.Fatalf("no documents and no snapshot rows should downgrade to PARTIAL, got %s", result.Status)
	}
}

func TestRunWindowReuseBlockedAfterSuccess(t *testing.T) {
	t.Parallel()

	pool := e2ePool(t)
	seedEntity(t, pool, "person_p4", "Quiet Pinned", "PERSON", true)
	window := e2eWindow()

	first, err := e2eRunner(pool, &stubSource{name: ingest.SourceReddit}).Execute(context.Background(), window)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Status != db.RunStatusSuccess {
		t.Fatalf("expected first run SUCCESS, got %s", first.Status)
	}

	second, err := e2eRunner(pool, &stubSource{name: ingest.SourceReddit}).Execute(context.Background(), window)
	if err == nil {
		t.Fatalf("expected window-reuse rejection")
	}
	if second.Status != db.RunStatusFailed {
		t.Fatalf("rejected re-run must be FAILED, got %s", second.Status)
	}
}

func TestRunRecordsSourceFailureAndContinues(t *testing.T) {
	t.Parallel()

	pool := e2ePool(t)
	seedEntity(t, pool, "person_p1", "Alice Example", "PERSON", true)
	window := e2eWindow()

	broken := &stubSource{name: ingest.SourceGDELT, err: context.DeadlineExceeded}
	healthy := &stubSource{
		name: ingest.SourceReddit,
		items: []ingest.Item{{
			ItemID:      "reddit_post_x3",
			Source:      ingest.SourceReddit,
			PublishedAt: window.Start.Add(time.Hour),
			Title:       "Alice Example interview",
			Engagement:  map[string]float64{"score": 5},
			RawPayload:  map[string]any{"post_type": "post"},
		}},
	}

	result, err := e2eRunner(pool, broken, healthy).Execute(context.Background(), window)
	if err != nil {
		t.Fatalf("one failed source must not fail the run: %v", err)
	}
	if result.Status != db.RunStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", result.Status)
	}

	metrics, err := pool.GetRunMetrics(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("read run metrics: %v", err)
	}
	var counts map[string]struct {
		Items int    `json:"items"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(metrics.SourceCounts, &counts); err != nil {
		t.Fatalf("decode source counts: %v", err)
	}
	if counts[ingest.SourceGDELT].Error == "" {
		t.Fatalf("failed source must record an error note: %+v", counts)
	}
	if counts[ingest.SourceReddit].Items != 1 {
		t.Fatalf("healthy source count missing: %+v", counts)
	}
}
