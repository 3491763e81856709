package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm/clause"
)

// Run statuses. Terminal statuses are final; re-execution allocates a new run.
const (
	RunStatusCreated = "CREATED"
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusPartial = "PARTIAL"
	RunStatusFailed  = "FAILED"
)

// CreateRun inserts a new run row for the window. A window may be re-run only
// when no prior run over the same window ended in SUCCESS.
func (p *Pool) CreateRun(ctx context.Context, run *Run) error {
	if run == nil {
		return fmt.Errorf("run is nil")
	}

	var successCount int64
	err := p.gdb.WithContext(ctx).
		Model(&Run{}).
		Where("window_start = ? AND window_end = ? AND status = ?", run.WindowStart.UTC(), run.WindowEnd.UTC(), RunStatusSuccess).
		Count(&successCount).Error
	if err != nil {
		return fmt.Errorf("check prior runs: %w", err)
	}
	if successCount > 0 {
		return fmt.Errorf("window %s already has a SUCCESS run", run.WindowStart.UTC().Format(time.RFC3339))
	}

	if err := p.gdb.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (p *Pool) UpdateRunStatus(ctx context.Context, runID, status, notes string, finishedAt *time.Time) error {
	updates := map[string]any{
		"status": status,
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		updates["notes"] = notes
	}
	if finishedAt != nil {
		utc := finishedAt.UTC()
		updates["finished_at"] = utc
	}

	res := p.gdb.WithContext(ctx).Model(&Run{}).Where("run_id = ?", runID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update run %s: %w", runID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update run %s: %w", runID, ErrNoRows)
	}
	return nil
}

func (p *Pool) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	if err := p.gdb.WithContext(ctx).First(&run, "run_id = ?", runID).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// LatestRun returns the most recent run by window end. When successOnly is
// set, only SUCCESS runs are considered (the query layer's default view).
func (p *Pool) LatestRun(ctx context.Context, successOnly bool) (*Run, error) {
	q := p.gdb.WithContext(ctx).Model(&Run{})
	if successOnly {
		q = q.Where("status = ?", RunStatusSuccess)
	}
	var run Run
	if err := q.Order("window_end DESC").First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// UpsertRunMetrics writes the instrumentation row for a run.
func (p *Pool) UpsertRunMetrics(ctx context.Context, metrics *RunMetrics) error {
	if metrics == nil {
		return fmt.Errorf("run metrics is nil")
	}
	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"source_counts", "mention_counts", "unresolved_top", "timings_ms"}),
		}).
		Create(metrics).Error
	if err != nil {
		return fmt.Errorf("upsert run metrics: %w", err)
	}
	return nil
}

func (p *Pool) GetRunMetrics(ctx context.Context, runID string) (*RunMetrics, error) {
	var metrics RunMetrics
	if err := p.gdb.WithContext(ctx).First(&metrics, "run_id = ?", runID).Error; err != nil {
		return nil, err
	}
	return &metrics, nil
}
