package pipeline

import (
	"math"
	"sort"

	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
	"github.com/avgjoe1017/et-heatmap-v2/internal/ingest"
)

// Thresholds for the extreme-sentiment share behind polarization.
const polarizationCutoff = 0.6

// Population below which attention falls back to the fixed calibration curve
// instead of a within-run percentile rank.
const percentilePopulationFloor = 20

// EntityAggregate is one entity's rolled-up metrics before axis computation.
type EntityAggregate struct {
	EntityID         string
	ExplicitCount    int
	ImplicitCount    int
	WeightedVolume   float64
	PerSourceVolume  map[string]float64
	AttentionLog     float64
	Attention        float64
	LoveRaw          float64
	Love             float64
	Polarization     float64
	SourcesDistinct  int
	MeanEngagement   float64
	Confidence       float64
	SentimentPos     float64
	SentimentNeu     float64
	SentimentNeg     float64
}

// Aggregate rolls scored mentions into one EntityAggregate per entity.
// docsByID and itemsByID provide the engagement path from mention to source.
func Aggregate(
	mentions []ResolvedMention,
	docsByID map[string]Doc,
	itemsByID map[string]ingest.Item,
	weights *config.WeightsConfig,
) []EntityAggregate {
	byEntity := make(map[string][]ResolvedMention)
	for _, m := range mentions {
		byEntity[m.EntityID] = append(byEntity[m.EntityID], m)
	}

	entityIDs := make([]string, 0, len(byEntity))
	for id := range byEntity {
		entityIDs = append(entityIDs, id)
	}
	sort.Strings(entityIDs)

	aggregates := make([]EntityAggregate, 0, len(entityIDs))
	for _, entityID := range entityIDs {
		aggregates = append(aggregates, aggregateOne(entityID, byEntity[entityID], docsByID, itemsByID, weights))
	}

	normalizeAttention(aggregates)
	return aggregates
}

func aggregateOne(
	entityID string,
	mentions []ResolvedMention,
	docsByID map[string]Doc,
	itemsByID map[string]ingest.Item,
	weights *config.WeightsConfig,
) EntityAggregate {
	agg := EntityAggregate{
		EntityID:        entityID,
		PerSourceVolume: make(map[string]float64),
	}

	var engagementSum float64
	var loveWeightedSum, loveWeightTotal float64
	var posSum, neuSum, negSum, sentWeightTotal float64
	var extremeCount int
	sources := make(map[string]struct{})

	for _, m := range mentions {
		if m.IsImplicit {
			agg.ImplicitCount++
		} else {
			agg.ExplicitCount++
		}
		agg.WeightedVolume += m.Weight

		var item ingest.Item
		var engScore float64
		if doc, ok := docsByID[m.DocID]; ok {
			agg.PerSourceVolume[doc.Source] += m.Weight
			if it, ok := itemsByID[doc.ItemID]; ok {
				item = it
				engScore = EngagementScore(item)
				sources[doc.Source] = struct{}{}
			}
		}

		engagementSum += engScore * weights.SourceFameWeight(item.Source)

		signed := m.Sentiment.Distribution.Signed()
		loveWeight := m.Weight * (1 + math.Log1p(engScore)) * weights.SourceLoveWeight(item.Source)
		loveWeightedSum += signed * loveWeight
		loveWeightTotal += loveWeight

		posSum += m.Sentiment.Distribution.Pos * m.Weight
		neuSum += m.Sentiment.Distribution.Neu * m.Weight
		negSum += m.Sentiment.Distribution.Neg * m.Weight
		sentWeightTotal += m.Weight

		if signed > polarizationCutoff || signed < -polarizationCutoff {
			extremeCount++
		}
	}

	agg.SourcesDistinct = len(sources)
	agg.AttentionLog = math.Log1p(agg.WeightedVolume + 0.5*engagementSum)

	if loveWeightTotal > 0 {
		agg.LoveRaw = loveWeightedSum / loveWeightTotal
	}
	agg.Love = clamp(50*(agg.LoveRaw+1), 0, 100)

	if sentWeightTotal > 0 {
		agg.SentimentPos = posSum / sentWeightTotal
		agg.SentimentNeu = neuSum / sentWeightTotal
		agg.SentimentNeg = negSum / sentWeightTotal
	} else {
		agg.SentimentNeu = 1
	}

	agg.Polarization = clamp(100*float64(extremeCount)/float64(max(1, len(mentions))), 0, 100)

	if len(mentions) > 0 {
		agg.MeanEngagement = engagementSum / float64(len(mentions))
	}
	agg.Confidence = confidenceScore(agg, weights)

	return agg
}

// confidenceScore averages the sample-size, diversity, and engagement-quality
// components with the configured weights.
func confidenceScore(agg EntityAggregate, weights *config.WeightsConfig) float64 {
	sample := 100 * (1 - math.Exp(-agg.WeightedVolume/weights.Confidence.VolumeSaturation))
	diversity := 100 * math.Min(1, float64(agg.SourcesDistinct)/float64(weights.Confidence.RequiredSources))
	engagement := 100 * (1 - math.Exp(-agg.MeanEngagement/3))

	ws := weights.Confidence.SampleWeight
	wd := weights.Confidence.DiversityWeight
	we := weights.Confidence.EngagementWeight
	total := ws + wd + we
	if total <= 0 {
		return 0
	}

	return clamp((ws*sample+wd*diversity+we*engagement)/total, 0, 100)
}

// normalizeAttention maps each aggregate's log attention to 0..100. With a
// large enough run population the percentile rank is used; small populations
// fall back to a fixed log calibration curve.
func normalizeAttention(aggregates []EntityAggregate) {
	if len(aggregates) == 0 {
		return
	}

	if len(aggregates) < percentilePopulationFloor {
		for i := range aggregates {
			aggregates[i].Attention = clamp(aggregates[i].AttentionLog/10*100, 0, 100)
		}
		return
	}

	sorted := make([]float64, len(aggregates))
	for i, agg := range aggregates {
		sorted[i] = agg.AttentionLog
	}
	sort.Float64s(sorted)

	for i := range aggregates {
		rank := sort.SearchFloat64s(sorted, aggregates[i].AttentionLog)
		aggregates[i].Attention = clamp(100*float64(rank)/float64(len(sorted)-1), 0, 100)
	}
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
