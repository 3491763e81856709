package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"
)

const insertBatchSize = 200

// UpsertSourceItems inserts raw items, silently ignoring duplicate item_ids so
// ingest stays idempotent under re-invocation.
func (p *Pool) UpsertSourceItems(ctx context.Context, items []SourceItem) error {
	if len(items) == 0 {
		return nil
	}
	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}},
			DoNothing: true,
		}).
		CreateInBatches(items, insertBatchSize).Error
	if err != nil {
		return fmt.Errorf("upsert source items: %w", err)
	}
	return nil
}

// UpsertDocuments inserts normalized documents; doc_ids are deterministic from
// content so duplicates are ignored.
func (p *Pool) UpsertDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "doc_id"}},
			DoNothing: true,
		}).
		CreateInBatches(docs, insertBatchSize).Error
	if err != nil {
		return fmt.Errorf("upsert documents: %w", err)
	}
	return nil
}

func (p *Pool) InsertMentions(ctx context.Context, mentions []Mention) error {
	if len(mentions) == 0 {
		return nil
	}
	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "mention_id"}},
			DoNothing: true,
		}).
		CreateInBatches(mentions, insertBatchSize).Error
	if err != nil {
		return fmt.Errorf("insert mentions: %w", err)
	}
	return nil
}

func (p *Pool) InsertUnresolvedMentions(ctx context.Context, unresolved []UnresolvedMention) error {
	if len(unresolved) == 0 {
		return nil
	}
	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "unresolved_id"}},
			DoNothing: true,
		}).
		CreateInBatches(unresolved, insertBatchSize).Error
	if err != nil {
		return fmt.Errorf("insert unresolved mentions: %w", err)
	}
	return nil
}

// CountMentionsInRange counts resolved mentions for one entity between two
// instants, by document timestamp. The weekly baseline's rolling-volume
// component reads this.
func (p *Pool) CountMentionsInRange(ctx context.Context, entityID string, from, to time.Time) (int64, error) {
	var count int64
	err := p.gdb.WithContext(ctx).
		Model(&Mention{}).
		Where("entity_id = ? AND doc_timestamp >= ? AND doc_timestamp < ?", entityID, from.UTC(), to.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count mentions for %s: %w", entityID, err)
	}
	return count, nil
}
