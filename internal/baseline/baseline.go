package baseline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
	"github.com/avgjoe1017/et-heatmap-v2/internal/db"
	"github.com/avgjoe1017/et-heatmap-v2/internal/pipeline"
)

const (
	rollingVolumeDays = 90
	// Log-normalization caps for the raw components.
	volumeCap    = 1_000.0
	pageviewsCap = 1_000_000.0

	signalSourceComposite = "composite"
)

// Job computes per-entity baseline fame once a week from rolling mention
// volume, search interest, and encyclopedic pageviews. External calls are
// best-effort: a failed component is omitted and the remaining weights
// renormalize.
type Job struct {
	pool      *db.Pool
	weights   *config.WeightsConfig
	trends    TrendsClient
	pageviews PageviewsClient
	logger    zerolog.Logger
}

func NewJob(pool *db.Pool, weights *config.WeightsConfig, trends TrendsClient, pageviews PageviewsClient, logger zerolog.Logger) *Job {
	return &Job{
		pool:      pool,
		weights:   weights,
		trends:    trends,
		pageviews: pageviews,
		logger:    logger.With().Str("component", "baseline").Logger(),
	}
}

// Run computes and stores baselines for every active entity for the ISO week
// containing weekStart. Re-running within the same week overwrites in place.
func (j *Job) Run(ctx context.Context, weekStart time.Time) (int, error) {
	entities, err := j.pool.ListActiveEntities(ctx)
	if err != nil {
		return 0, fmt.Errorf("list entities: %w", err)
	}
	if len(entities) == 0 {
		return 0, nil
	}

	isoWeek := pipeline.ISOWeek(weekStart)

	volumeScores, err := j.volumeComponents(ctx, entities, weekStart)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, entity := range entities {
		components := map[string]float64{}
		if score, ok := volumeScores[entity.EntityID]; ok {
			components["volume"] = score
		}

		if j.trends != nil {
			interest, err := j.trends.WeeklyInterest(ctx, entity.CanonicalName, weekStart)
			if err != nil {
				j.logger.Warn().Err(err).Str("entity_id", entity.EntityID).Msg("trends component omitted")
			} else {
				components["trends"] = clamp(interest, 0, 100)
			}
		}

		if j.pageviews != nil {
			title := pageviewsTitle(entity)
			if title != "" {
				views, err := j.pageviews.WeeklyViews(ctx, title, weekStart)
				if err != nil {
					j.logger.Warn().Err(err).Str("entity_id", entity.EntityID).Msg("pageviews component omitted")
				} else if views > 0 {
					components["pageviews"] = clamp(math.Log1p(views)/math.Log1p(pageviewsCap)*100, 0, 100)
				}
			}
		}

		value, ok := Combine(components, j.weights)
		if !ok {
			// No component produced a value: fall back to the last known
			// baseline rather than writing nothing.
			if last, err := j.pool.LatestWeeklyBaseline(ctx, entity.EntityID, isoWeek); err == nil {
				value = last.BaselineFame
				ok = true
			}
		}
		if !ok {
			continue
		}

		encoded, err := json.Marshal(components)
		if err != nil {
			return written, fmt.Errorf("encode components for %s: %w", entity.EntityID, err)
		}
		now := time.Now().UTC()
		row := &db.EntityWeeklyBaseline{
			EntityID:     entity.EntityID,
			ISOWeek:      isoWeek,
			SignalSource: signalSourceComposite,
			BaselineFame: value,
			Components:   datatypes.JSON(encoded),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := j.pool.UpsertWeeklyBaseline(ctx, row); err != nil {
			return written, err
		}
		written++
	}

	j.logger.Info().Int("entities", written).Str("iso_week", isoWeek).Msg("weekly baseline updated")
	return written, nil
}

// volumeComponents computes the rolling mention-volume score for every
// entity, percentile-normalized over the active catalog when the catalog is
// large enough, otherwise log-calibrated.
func (j *Job) volumeComponents(ctx context.Context, entities []db.Entity, weekStart time.Time) (map[string]float64, error) {
	from := weekStart.AddDate(0, 0, -rollingVolumeDays)

	counts := make(map[string]float64, len(entities))
	logs := make([]float64, 0, len(entities))
	for _, entity := range entities {
		count, err := j.pool.CountMentionsInRange(ctx, entity.EntityID, from, weekStart)
		if err != nil {
			return nil, err
		}
		logCount := math.Log1p(float64(count))
		counts[entity.EntityID] = logCount
		logs = append(logs, logCount)
	}

	scores := make(map[string]float64, len(entities))
	if len(entities) < 20 {
		for id, logCount := range counts {
			scores[id] = clamp(logCount/math.Log1p(volumeCap)*100, 0, 100)
		}
		return scores, nil
	}

	sort.Float64s(logs)
	for id, logCount := range counts {
		rank := sort.SearchFloat64s(logs, logCount)
		scores[id] = clamp(100*float64(rank)/float64(len(logs)-1), 0, 100)
	}
	return scores, nil
}

// Combine merges available components with renormalized weights. The second
// return is false when no component is present.
func Combine(components map[string]float64, weights *config.WeightsConfig) (float64, bool) {
	type component struct {
		key    string
		weight float64
	}
	all := []component{
		{"volume", weights.Baseline.VolumeWeight},
		{"trends", weights.Baseline.TrendsWeight},
		{"pageviews", weights.Baseline.PageviewsWeight},
	}

	var sum, weightTotal float64
	for _, c := range all {
		value, ok := components[c.key]
		if !ok {
			continue
		}
		sum += c.weight * value
		weightTotal += c.weight
	}
	if weightTotal <= 0 {
		return 0, false
	}
	return clamp(sum/weightTotal, 0, 100), true
}

func pageviewsTitle(entity db.Entity) string {
	if len(entity.ExternalIDs) > 0 {
		var external map[string]string
		if err := json.Unmarshal(entity.ExternalIDs, &external); err == nil {
			if title := external["wikipedia"]; title != "" {
				return title
			}
		}
	}
	return entity.CanonicalName
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
