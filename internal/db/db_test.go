package db

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/logger"
)

func testPool(t *testing.T) *Pool {
	t.Helper()
	pool, err := Open(context.Background(), ":memory:", OpenOptions{
		LogLevel:    logger.Silent,
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func testRun(runID string, windowEnd time.Time, status string) *Run {
	return &Run{
		RunID:       runID,
		WindowStart: windowEnd.AddDate(0, 0, -1),
		WindowEnd:   windowEnd,
		StartedAt:   windowEnd,
		Status:      status,
	}
}

func TestCreateRunRejectsSecondSuccessOnWindow(t *testing.T) {
	t.Parallel()
	pool := testPool(t)
	ctx := context.Background()

	windowEnd := time.Date(2026, 7, 15, 13, 0, 0, 0, time.UTC)
	first := testRun("run-1", windowEnd, RunStatusRunning)
	if err := pool.CreateRun(ctx, first); err != nil {
		t.Fatalf("create first run: %v", err)
	}
	finished := windowEnd.Add(time.Hour)
	if err := pool.UpdateRunStatus(ctx, "run-1", RunStatusSuccess, "", &finished); err != nil {
		t.Fatalf("mark success: %v", err)
	}

	if err := pool.CreateRun(ctx, testRun("run-2", windowEnd, RunStatusRunning)); err == nil {
		t.Fatalf("expected rejection: window already has a SUCCESS run")
	}

	// A FAILED prior run does not block a re-run of the same window.
	otherWindow := windowEnd.AddDate(0, 0, 1)
	failed := testRun("run-3", otherWindow, RunStatusRunning)
	if err := pool.CreateRun(ctx, failed); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := pool.UpdateRunStatus(ctx, "run-3", RunStatusFailed, "boom", &finished); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := pool.CreateRun(ctx, testRun("run-4", otherWindow, RunStatusRunning)); err != nil {
		t.Fatalf("re-run after FAILED should be allowed: %v", err)
	}
}

func TestLatestRunSuccessOnly(t *testing.T) {
	t.Parallel()
	pool := testPool(t)
	ctx := context.Background()

	early := time.Date(2026, 7, 10, 13, 0, 0, 0, time.UTC)
	late := early.AddDate(0, 0, 2)

	if err := pool.CreateRun(ctx, testRun("run-old", early, RunStatusSuccess)); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := pool.CreateRun(ctx, testRun("run-new", late, RunStatusPartial)); err != nil {
		t.Fatalf("create run: %v", err)
	}

	latest, err := pool.LatestRun(ctx, true)
	if err != nil {
		t.Fatalf("latest success run: %v", err)
	}
	if latest.RunID != "run-old" {
		t.Fatalf("success-only view must skip the PARTIAL run, got %s", latest.RunID)
	}

	any, err := pool.LatestRun(ctx, false)
	if err != nil {
		t.Fatalf("latest any run: %v", err)
	}
	if any.RunID != "run-new" {
		t.Fatalf("unfiltered view should see the newest run, got %s", any.RunID)
	}
}

func TestUpsertSourceItemsIdempotent(t *testing.T) {
	t.Parallel()
	pool := testPool(t)
	ctx := context.Background()

	now := time.Now().UTC()
	items := []SourceItem{
		{ItemID: "reddit_post_a", Source: "REDDIT", PublishedAt: now, FetchedAt: now, Engagement: datatypes.JSON(`{}`), RawPayload: datatypes.JSON(`{}`)},
		{ItemID: "reddit_post_b", Source: "REDDIT", PublishedAt: now, FetchedAt: now, Engagement: datatypes.JSON(`{}`), RawPayload: datatypes.JSON(`{}`)},
	}

	if err := pool.UpsertSourceItems(ctx, items); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := pool.UpsertSourceItems(ctx, items); err != nil {
		t.Fatalf("second upsert must be silent: %v", err)
	}

	var count int64
	if err := pool.GORM().Model(&SourceItem{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 stable items, got %d", count)
	}
}

func TestWriteEntitySnapshotIsWriteOnce(t *testing.T) {
	t.Parallel()
	pool := testPool(t)
	ctx := context.Background()

	now := time.Now().UTC()
	snap := &EntitySnapshot{
		Metrics: EntityDailyMetrics{
			RunID: "run-1", EntityID: "person_p1",
			Fame: 50, Love: 50, Metadata: datatypes.JSON(`{}`), CreatedAt: now,
		},
		Drivers: []EntityDailyDriver{
			{RunID: "run-1", EntityID: "person_p1", Rank: 1, ItemID: "item-1", ImpactScore: 12, CreatedAt: now},
		},
		Themes: []EntityDailyTheme{
			{RunID: "run-1", EntityID: "person_p1", ThemeID: "theme_a", Label: "Finale",
				Keywords: datatypes.JSON(`["finale"]`), Volume: 3, SentimentMix: datatypes.JSON(`{}`), CreatedAt: now},
		},
	}

	if err := pool.WriteEntitySnapshot(ctx, snap); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	if err := pool.WriteEntitySnapshot(ctx, snap); err == nil {
		t.Fatalf("snapshot rows are write-once; duplicate write must fail")
	}

	// The failed duplicate write must not have partially altered the rows.
	var driverCount int64
	if err := pool.GORM().Model(&EntityDailyDriver{}).Count(&driverCount).Error; err != nil {
		t.Fatalf("count drivers: %v", err)
	}
	if driverCount != 1 {
		t.Fatalf("expected 1 driver row, got %d", driverCount)
	}
}

func TestWeeklyBaselineUpsertAndLatest(t *testing.T) {
	t.Parallel()
	pool := testPool(t)
	ctx := context.Background()

	now := time.Now().UTC()
	row := &EntityWeeklyBaseline{
		EntityID: "person_p1", ISOWeek: "2026-W28", SignalSource: "composite",
		BaselineFame: 40, Components: datatypes.JSON(`{}`), CreatedAt: now, UpdatedAt: now,
	}
	if err := pool.UpsertWeeklyBaseline(ctx, row); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	row.BaselineFame = 55
	if err := pool.UpsertWeeklyBaseline(ctx, row); err != nil {
		t.Fatalf("idempotent re-write within the week: %v", err)
	}

	latest, err := pool.LatestWeeklyBaseline(ctx, "person_p1", "2026-W30")
	if err != nil {
		t.Fatalf("latest baseline: %v", err)
	}
	if latest.BaselineFame != 55 {
		t.Fatalf("expected overwritten value 55, got %f", latest.BaselineFame)
	}

	if _, err := pool.LatestWeeklyBaseline(ctx, "person_p1", "2026-W20"); !IsNoRows(err) {
		t.Fatalf("weeks before the first row must report no rows, got %v", err)
	}
}

func TestFameLoveHistoryOrder(t *testing.T) {
	t.Parallel()
	pool := testPool(t)
	ctx := context.Background()

	base := time.Date(2026, 7, 10, 13, 0, 0, 0, time.UTC)
	for i, fame := range []float64{10, 20, 30} {
		windowEnd := base.AddDate(0, 0, i)
		run := testRun("run-"+string(rune('a'+i)), windowEnd, RunStatusSuccess)
		if err := pool.CreateRun(ctx, run); err != nil {
			t.Fatalf("create run: %v", err)
		}
		metrics := EntityDailyMetrics{
			RunID: run.RunID, EntityID: "person_p1",
			Fame: fame, Love: 50, Metadata: datatypes.JSON(`{}`), CreatedAt: windowEnd,
		}
		if err := pool.GORM().Create(&metrics).Error; err != nil {
			t.Fatalf("insert metrics: %v", err)
		}
	}

	history, err := pool.FameLoveHistory(ctx, "person_p1", base.AddDate(0, 0, 10), 7)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 points, got %d", len(history))
	}
	if history[0].Fame != 10 || history[2].Fame != 30 {
		t.Fatalf("history must be oldest first: %+v", history)
	}
}
