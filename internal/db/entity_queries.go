package db

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"
)

// UpsertEntity creates or refreshes an entity row by entity_id.
func (p *Pool) UpsertEntity(ctx context.Context, entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("entity is nil")
	}
	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "entity_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"canonical_name", "entity_type", "is_pinned", "is_active",
				"external_ids", "context_hints", "metadata", "pin_reason", "updated_at",
			}),
		}).
		Create(entity).Error
	if err != nil {
		return fmt.Errorf("upsert entity %s: %w", entity.EntityID, err)
	}
	return nil
}

// UpsertAlias inserts an alias; duplicates on (entity_id, normalized) are ignored.
func (p *Pool) UpsertAlias(ctx context.Context, alias *EntityAlias) error {
	if alias == nil {
		return fmt.Errorf("alias is nil")
	}
	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity_id"}, {Name: "normalized"}},
			DoNothing: true,
		}).
		Create(alias).Error
	if err != nil {
		return fmt.Errorf("upsert alias %q for %s: %w", alias.Surface, alias.EntityID, err)
	}
	return nil
}

// UpsertRelationship inserts an entity edge; duplicate edges are ignored.
func (p *Pool) UpsertRelationship(ctx context.Context, rel *EntityRelationship) error {
	if rel == nil {
		return fmt.Errorf("relationship is nil")
	}
	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "from_entity_id"}, {Name: "to_entity_id"}, {Name: "relation_type"}},
			DoNothing: true,
		}).
		Create(rel).Error
	if err != nil {
		return fmt.Errorf("upsert relationship %s->%s: %w", rel.FromEntityID, rel.ToEntityID, err)
	}
	return nil
}

func (p *Pool) ListActiveEntities(ctx context.Context) ([]Entity, error) {
	var entities []Entity
	err := p.gdb.WithContext(ctx).
		Where("is_active = ?", true).
		Order("entity_id").
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("list active entities: %w", err)
	}
	return entities, nil
}

func (p *Pool) ListAliasesForEntities(ctx context.Context, entityIDs []string) ([]EntityAlias, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	var aliases []EntityAlias
	err := p.gdb.WithContext(ctx).
		Where("entity_id IN ?", entityIDs).
		Order("entity_id, normalized").
		Find(&aliases).Error
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	return aliases, nil
}

func (p *Pool) GetEntity(ctx context.Context, entityID string) (*Entity, error) {
	var entity Entity
	if err := p.gdb.WithContext(ctx).First(&entity, "entity_id = ?", entityID).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}
