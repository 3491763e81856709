package pipeline

import (
	"math"

	"github.com/avgjoe1017/et-heatmap-v2/internal/ingest"
)

// EngagementScore maps a source item's engagement bag onto one comparable
// log scale. The coefficients roughly align a popular video, a hot forum
// thread, and a widely-toned article.
func EngagementScore(item ingest.Item) float64 {
	eng := item.Engagement

	switch item.Source {
	case ingest.SourceReddit:
		if kind, _ := item.RawPayload["post_type"].(string); kind == "comment" {
			return log1pPos(eng["score"])
		}
		return log1pPos(eng["score"] + 2*eng["num_comments"])
	case ingest.SourceYouTube:
		return 3*log1pPos(eng["view_count"]/1000) +
			2*log1pPos(10*eng["like_count"]) +
			log1pPos(5*eng["comment_count"])
	case ingest.SourceYouTubeComment:
		return log1pPos(10*eng["like_count"] + 5*eng["reply_count"])
	case ingest.SourceGDELT:
		return log1pPos(10 * math.Abs(eng["tone"]))
	default:
		return 0
	}
}

func log1pPos(v float64) float64 {
	if v < 0 {
		v = 0
	}
	return math.Log1p(v)
}
