package pipeline

import (
	"math"

	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
	"github.com/avgjoe1017/et-heatmap-v2/internal/db"
)

// neutralBaseline stands in when an entity has no weekly baseline row.
const neutralBaseline = 50.0

// AxisResult is one entity's final coordinate and color layers.
type AxisResult struct {
	EntityAggregate
	Fame                float64
	BaselineFame        *float64
	Momentum            float64
	InsufficientHistory bool
	IsDormant           bool
	DormancyReason      string
}

// ComputeAxes combines the aggregate with the weekly baseline and prior-run
// history into the final Fame/Love/Momentum triple.
func ComputeAxes(
	agg EntityAggregate,
	baseline *float64,
	history []db.FameLovePoint,
	weights *config.WeightsConfig,
) AxisResult {
	result := AxisResult{
		EntityAggregate: agg,
		BaselineFame:    baseline,
	}

	baselineFame := neutralBaseline
	if baseline != nil {
		baselineFame = clamp(*baseline, 0, 100)
	}

	result.Fame = clamp(
		weights.Fame.BaselineWeight*baselineFame+weights.Fame.AttentionWeight*agg.Attention,
		0, 100,
	)
	result.Love = clamp(agg.Love, 0, 100)

	if len(history) < weights.Momentum.MinHistoryRuns {
		result.Momentum = 0
		result.InsufficientHistory = true
		return result
	}

	emaFame, emaLove := ewma(history, weights.Momentum.EWMAAlpha)
	deltaFame := result.Fame - emaFame
	deltaLove := result.Love - emaLove
	magnitude := math.Sqrt(deltaFame*deltaFame + deltaLove*deltaLove)
	if deltaFame < 0 {
		magnitude = -magnitude
	}
	result.Momentum = clamp(magnitude, -100, 100)

	return result
}

// DormantAxes builds the row for a pinned entity with no resolved mentions.
func DormantAxes(entityID string, baseline *float64, weights *config.WeightsConfig) AxisResult {
	baselineFame := neutralBaseline
	if baseline != nil {
		baselineFame = clamp(*baseline, 0, 100)
	}

	return AxisResult{
		EntityAggregate: EntityAggregate{
			EntityID:     entityID,
			Love:         50,
			SentimentNeu: 1,
		},
		Fame:                clamp(weights.Fame.BaselineWeight*baselineFame, 0, 100),
		BaselineFame:        baseline,
		InsufficientHistory: true,
		IsDormant:           true,
		DormancyReason:      "no resolved mentions in window",
	}
}

// ewma folds the history oldest-first so the most recent run weighs heaviest.
func ewma(history []db.FameLovePoint, alpha float64) (float64, float64) {
	emaFame := history[0].Fame
	emaLove := history[0].Love
	for _, point := range history[1:] {
		emaFame = alpha*point.Fame + (1-alpha)*emaFame
		emaLove = alpha*point.Love + (1-alpha)*emaLove
	}
	return emaFame, emaLove
}
