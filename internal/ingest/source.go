package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/avgjoe1017/et-heatmap-v2/internal/db"
)

// Source tags. YouTube comments carry their own tag so engagement scoring can
// distinguish them from videos.
const (
	SourceReddit         = "REDDIT"
	SourceYouTube        = "YOUTUBE"
	SourceYouTubeComment = "YOUTUBE_COMMENT"
	SourceGDELT          = "GDELT"
)

// ErrQuotaExceeded is returned by adapters that would exceed their API budget.
var ErrQuotaExceeded = errors.New("source quota exceeded")

// AuthError marks an unrecoverable credential problem for a source.
type AuthError struct {
	Source string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth: %v", e.Source, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Item is one raw unit produced by an adapter. item IDs are deterministic
// from source content so re-invocation over the same window is idempotent.
type Item struct {
	ItemID      string
	Source      string
	URL         string
	PublishedAt time.Time
	Title       string
	Description string
	Author      string
	Engagement  map[string]float64
	RawPayload  map[string]any
}

// Source is the adapter contract: fetch all items whose publish time falls in
// [start, end). Rate limiting and quota accounting live inside the adapter.
type Source interface {
	Name() string
	Fetch(ctx context.Context, windowStart, windowEnd time.Time) ([]Item, error)
}

// ToModel converts an Item to its persisted row.
func (it Item) ToModel(fetchedAt time.Time) (db.SourceItem, error) {
	engagement, err := json.Marshal(orEmptyFloatMap(it.Engagement))
	if err != nil {
		return db.SourceItem{}, fmt.Errorf("encode engagement for %s: %w", it.ItemID, err)
	}
	payload, err := json.Marshal(orEmptyAnyMap(it.RawPayload))
	if err != nil {
		return db.SourceItem{}, fmt.Errorf("encode payload for %s: %w", it.ItemID, err)
	}

	row := db.SourceItem{
		ItemID:      it.ItemID,
		Source:      it.Source,
		PublishedAt: it.PublishedAt.UTC(),
		FetchedAt:   fetchedAt.UTC(),
		Title:       it.Title,
		Description: it.Description,
		Engagement:  datatypes.JSON(engagement),
		RawPayload:  datatypes.JSON(payload),
	}
	if it.URL != "" {
		url := it.URL
		row.URL = &url
	}
	if it.Author != "" {
		author := it.Author
		row.Author = &author
	}
	return row, nil
}

func orEmptyFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

func orEmptyAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
