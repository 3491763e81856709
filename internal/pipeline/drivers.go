package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/avgjoe1017/et-heatmap-v2/internal/catalog"
	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
	"github.com/avgjoe1017/et-heatmap-v2/internal/ingest"
)

// Driver is one ranked source item behind an entity's coordinate.
type Driver struct {
	EntityID    string
	Rank        int
	ItemID      string
	ImpactScore float64
	Reason      string
}

// BuildDrivers ranks, per entity, the distinct source items referenced by its
// mentions and keeps the top N by impact. Ties break by recency, newest first.
func BuildDrivers(
	mentions []ResolvedMention,
	docsByID map[string]Doc,
	itemsByID map[string]ingest.Item,
	cat *catalog.Catalog,
	weights *config.WeightsConfig,
) []Driver {
	type itemStats struct {
		item         ingest.Item
		mentionCount int
		sentimentSum float64
	}

	byEntity := make(map[string]map[string]*itemStats)
	for _, m := range mentions {
		doc, ok := docsByID[m.DocID]
		if !ok {
			continue
		}
		item, ok := itemsByID[doc.ItemID]
		if !ok {
			continue
		}

		items := byEntity[m.EntityID]
		if items == nil {
			items = make(map[string]*itemStats)
			byEntity[m.EntityID] = items
		}
		stats := items[item.ItemID]
		if stats == nil {
			stats = &itemStats{item: item}
			items[item.ItemID] = stats
		}
		stats.mentionCount++
		stats.sentimentSum += m.Sentiment.Distribution.Signed()
	}

	entityIDs := make([]string, 0, len(byEntity))
	for id := range byEntity {
		entityIDs = append(entityIDs, id)
	}
	sort.Strings(entityIDs)

	drivers := make([]Driver, 0)
	for _, entityID := range entityIDs {
		type scoredItem struct {
			stats  *itemStats
			impact float64
		}

		scored := make([]scoredItem, 0, len(byEntity[entityID]))
		for _, stats := range byEntity[entityID] {
			meanSentiment := stats.sentimentSum / float64(stats.mentionCount)
			// Sentiment amplifier: linear map from [-1, 1] onto [0.5, 1.5].
			amplifier := 1.0 + meanSentiment*0.5
			engScore := EngagementScore(stats.item)
			impact := float64(stats.mentionCount)*10 + engScore + amplifier*float64(stats.mentionCount)
			impact *= weights.SourceFameWeight(stats.item.Source)

			scored = append(scored, scoredItem{stats: stats, impact: impact})
		}

		sort.Slice(scored, func(i, j int) bool {
			if scored[i].impact != scored[j].impact {
				return scored[i].impact > scored[j].impact
			}
			if !scored[i].stats.item.PublishedAt.Equal(scored[j].stats.item.PublishedAt) {
				return scored[i].stats.item.PublishedAt.After(scored[j].stats.item.PublishedAt)
			}
			return scored[i].stats.item.ItemID < scored[j].stats.item.ItemID
		})

		if len(scored) > weights.Drivers.TopN {
			scored = scored[:weights.Drivers.TopN]
		}
		for rank, si := range scored {
			meanSentiment := si.stats.sentimentSum / float64(si.stats.mentionCount)
			drivers = append(drivers, Driver{
				EntityID:    entityID,
				Rank:        rank + 1,
				ItemID:      si.stats.item.ItemID,
				ImpactScore: si.impact,
				Reason:      driverReason(cat.ByID(entityID), si.stats.item, si.stats.mentionCount, meanSentiment),
			})
		}
	}

	return drivers
}

// driverReason composes the short human-readable justification shown in the
// entity drilldown.
func driverReason(entity *catalog.Entity, item ingest.Item, mentionCount int, meanSentiment float64) string {
	parts := make([]string, 0, 4)

	name := "entity"
	if entity != nil {
		name = entity.CanonicalName
	}
	parts = append(parts, fmt.Sprintf("%s in %s", name, sourceLabel(item.Source)))

	if mentionCount > 1 {
		parts = append(parts, fmt.Sprintf("%d mentions", mentionCount))
	}
	if figure := engagementFigure(item); figure != "" {
		parts = append(parts, figure)
	}
	switch {
	case meanSentiment > 0.3:
		parts = append(parts, "positive sentiment")
	case meanSentiment < -0.3:
		parts = append(parts, "negative sentiment")
	}

	return strings.Join(parts, ", ")
}

func sourceLabel(source string) string {
	switch source {
	case ingest.SourceReddit:
		return "a Reddit thread"
	case ingest.SourceYouTube:
		return "a YouTube video"
	case ingest.SourceYouTubeComment:
		return "YouTube comments"
	case ingest.SourceGDELT:
		return "news coverage"
	default:
		return strings.ToLower(source)
	}
}

func engagementFigure(item ingest.Item) string {
	eng := item.Engagement
	switch item.Source {
	case ingest.SourceReddit:
		if score := eng["score"]; score >= 10 {
			return fmt.Sprintf("%s upvotes", formatCount(score))
		}
	case ingest.SourceYouTube:
		if views := eng["view_count"]; views >= 1000 {
			return fmt.Sprintf("%s views", formatCount(views))
		}
	case ingest.SourceYouTubeComment:
		if likes := eng["like_count"]; likes >= 10 {
			return fmt.Sprintf("%s likes", formatCount(likes))
		}
	}
	return ""
}

func formatCount(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.0fK", v/1_000)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
