package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntitySnapshot bundles one entity's per-run outputs for transactional persist.
type EntitySnapshot struct {
	Metrics EntityDailyMetrics
	Drivers []EntityDailyDriver
	Themes  []EntityDailyTheme
}

// WriteEntitySnapshot writes one entity's metrics, drivers, and themes under a
// single transaction. A failure leaves no partial rows for the entity.
func (p *Pool) WriteEntitySnapshot(ctx context.Context, snap *EntitySnapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}
	return p.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&snap.Metrics).Error; err != nil {
			return fmt.Errorf("insert daily metrics for %s: %w", snap.Metrics.EntityID, err)
		}
		if len(snap.Drivers) > 0 {
			if err := tx.Create(&snap.Drivers).Error; err != nil {
				return fmt.Errorf("insert drivers for %s: %w", snap.Metrics.EntityID, err)
			}
		}
		if len(snap.Themes) > 0 {
			if err := tx.Create(&snap.Themes).Error; err != nil {
				return fmt.Errorf("insert themes for %s: %w", snap.Metrics.EntityID, err)
			}
		}
		return nil
	})
}

// FameLovePoint is one historical (fame, love) observation for momentum.
type FameLovePoint struct {
	WindowEnd time.Time
	Fame      float64
	Love      float64
}

// FameLoveHistory returns prior SUCCESS-run coordinates for an entity, oldest
// first, limited to the most recent n windows before the given instant.
func (p *Pool) FameLoveHistory(ctx context.Context, entityID string, before time.Time, n int) ([]FameLovePoint, error) {
	if n <= 0 {
		n = 7
	}
	var rows []struct {
		WindowEnd time.Time
		Fame      float64
		Love      float64
	}
	err := p.gdb.WithContext(ctx).
		Table("entity_daily_metrics").
		Select("runs.window_end AS window_end, entity_daily_metrics.fame AS fame, entity_daily_metrics.love AS love").
		Joins("JOIN runs ON runs.run_id = entity_daily_metrics.run_id").
		Where("entity_daily_metrics.entity_id = ? AND runs.status = ? AND runs.window_end <= ?", entityID, RunStatusSuccess, before.UTC()).
		Order("runs.window_end DESC").
		Limit(n).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fame/love history for %s: %w", entityID, err)
	}

	points := make([]FameLovePoint, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		points = append(points, FameLovePoint{
			WindowEnd: rows[i].WindowEnd,
			Fame:      rows[i].Fame,
			Love:      rows[i].Love,
		})
	}
	return points, nil
}

// UpsertWeeklyBaseline writes one (entity, ISO week, signal source) baseline
// row; re-running the weekly job within a week overwrites in place.
func (p *Pool) UpsertWeeklyBaseline(ctx context.Context, baseline *EntityWeeklyBaseline) error {
	if baseline == nil {
		return fmt.Errorf("baseline is nil")
	}
	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity_id"}, {Name: "iso_week"}, {Name: "signal_source"}},
			DoUpdates: clause.AssignmentColumns([]string{"baseline_fame", "components", "updated_at"}),
		}).
		Create(baseline).Error
	if err != nil {
		return fmt.Errorf("upsert weekly baseline for %s: %w", baseline.EntityID, err)
	}
	return nil
}

// LatestWeeklyBaseline returns the most recent baseline row for an entity at
// or before the given ISO week, for any signal source.
func (p *Pool) LatestWeeklyBaseline(ctx context.Context, entityID, isoWeek string) (*EntityWeeklyBaseline, error) {
	var baseline EntityWeeklyBaseline
	err := p.gdb.WithContext(ctx).
		Where("entity_id = ? AND iso_week <= ?", entityID, isoWeek).
		Order("iso_week DESC").
		First(&baseline).Error
	if err != nil {
		return nil, err
	}
	return &baseline, nil
}
