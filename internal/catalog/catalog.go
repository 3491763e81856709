package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gorm.io/datatypes"

	"github.com/avgjoe1017/et-heatmap-v2/internal/db"
	"github.com/avgjoe1017/et-heatmap-v2/internal/textutil"
)

// Entity is the in-memory catalog view the resolver works against. The
// catalog is loaded once per run and read-only for its duration.
type Entity struct {
	EntityID      string
	EntityKey     string
	CanonicalName string
	Type          string
	IsPinned      bool
	Aliases       []string
	ContextHints  []string
	ExternalIDs   map[string]string
	PriorWeight   float64
}

// Catalog holds the active entities and their alias index.
type Catalog struct {
	Entities []Entity
	byID     map[string]*Entity
	// aliasIndex maps normalized alias -> entity_ids sharing that alias,
	// sorted for deterministic candidate order.
	aliasIndex map[string][]string
}

// Load reads the active catalog from the store and builds the alias index.
func Load(ctx context.Context, pool *db.Pool) (*Catalog, error) {
	rows, err := pool.ListActiveEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.EntityID)
	}
	aliasRows, err := pool.ListAliasesForEntities(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load catalog aliases: %w", err)
	}
	aliasesByEntity := make(map[string][]string, len(rows))
	for _, alias := range aliasRows {
		aliasesByEntity[alias.EntityID] = append(aliasesByEntity[alias.EntityID], alias.Surface)
	}

	entities := make([]Entity, 0, len(rows))
	for _, row := range rows {
		var hints []string
		if len(row.ContextHints) > 0 {
			if err := json.Unmarshal(row.ContextHints, &hints); err != nil {
				return nil, fmt.Errorf("decode context hints for %s: %w", row.EntityID, err)
			}
		}
		var externalIDs map[string]string
		if len(row.ExternalIDs) > 0 {
			if err := json.Unmarshal(row.ExternalIDs, &externalIDs); err != nil {
				return nil, fmt.Errorf("decode external ids for %s: %w", row.EntityID, err)
			}
		}

		prior := 0.5
		if row.IsPinned {
			prior = 1.0
		}

		entities = append(entities, Entity{
			EntityID:      row.EntityID,
			EntityKey:     row.EntityKey,
			CanonicalName: row.CanonicalName,
			Type:          row.EntityType,
			IsPinned:      row.IsPinned,
			Aliases:       aliasesByEntity[row.EntityID],
			ContextHints:  hints,
			ExternalIDs:   externalIDs,
			PriorWeight:   prior,
		})
	}

	return New(entities), nil
}

// New builds a catalog from entity records; tests construct catalogs directly.
func New(entities []Entity) *Catalog {
	c := &Catalog{
		Entities:   entities,
		byID:       make(map[string]*Entity, len(entities)),
		aliasIndex: make(map[string][]string),
	}
	for i := range c.Entities {
		e := &c.Entities[i]
		c.byID[e.EntityID] = e
		for _, surface := range append([]string{e.CanonicalName}, e.Aliases...) {
			norm := textutil.NormalizeSurface(surface)
			if norm == "" {
				continue
			}
			if !containsString(c.aliasIndex[norm], e.EntityID) {
				c.aliasIndex[norm] = append(c.aliasIndex[norm], e.EntityID)
			}
		}
	}
	for norm := range c.aliasIndex {
		sort.Strings(c.aliasIndex[norm])
	}
	return c
}

// ByID returns the entity with the given id, or nil.
func (c *Catalog) ByID(entityID string) *Entity {
	return c.byID[entityID]
}

// Candidates returns the entity ids sharing a normalized alias.
func (c *Catalog) Candidates(normalizedAlias string) []string {
	return c.aliasIndex[normalizedAlias]
}

// AliasIndex exposes the normalized alias map for the extraction scan.
func (c *Catalog) AliasIndex() map[string][]string {
	return c.aliasIndex
}

// Pinned returns the pinned entities, sorted by id.
func (c *Catalog) Pinned() []Entity {
	pinned := make([]Entity, 0)
	for _, e := range c.Entities {
		if e.IsPinned {
			pinned = append(pinned, e)
		}
	}
	sort.Slice(pinned, func(i, j int) bool { return pinned[i].EntityID < pinned[j].EntityID })
	return pinned
}

// SyncPinned upserts the pinned-entities file into the store. Edits take
// effect on the next run; past runs are never rewritten.
func SyncPinned(ctx context.Context, pool *db.Pool, configDir string) (int, error) {
	path := filepath.Join(configDir, "pinned_entities.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pinned entities %q: %w", path, err)
	}

	pinned, err := ValidatePinnedEntities(raw)
	if err != nil {
		return 0, fmt.Errorf("validate pinned entities %q: %w", path, err)
	}

	now := time.Now().UTC()
	for _, p := range pinned {
		externalIDs, err := json.Marshal(orEmptyMap(p.ExternalIDs))
		if err != nil {
			return 0, fmt.Errorf("encode external ids for %s: %w", p.EntityID, err)
		}
		hints, err := json.Marshal(orEmptySlice(p.ContextHints))
		if err != nil {
			return 0, fmt.Errorf("encode context hints for %s: %w", p.EntityID, err)
		}

		entity := db.Entity{
			EntityID:      p.EntityID,
			EntityKey:     p.EntityKey,
			CanonicalName: p.CanonicalName,
			EntityType:    p.Type,
			IsPinned:      true,
			IsActive:      true,
			FirstSeenAt:   now,
			ExternalIDs:   datatypes.JSON(externalIDs),
			ContextHints:  datatypes.JSON(hints),
			Metadata:      datatypes.JSON([]byte(`{}`)),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if reason := p.PinReason; reason != "" {
			entity.PinReason = &reason
		}
		if err := pool.UpsertEntity(ctx, &entity); err != nil {
			return 0, err
		}

		for _, surface := range append([]string{p.CanonicalName}, p.Aliases...) {
			norm := textutil.NormalizeSurface(surface)
			if norm == "" {
				continue
			}
			alias := db.EntityAlias{
				EntityID:   p.EntityID,
				Surface:    surface,
				Normalized: norm,
				IsPrimary:  surface == p.CanonicalName,
				Confidence: 1.0,
				CreatedAt:  now,
			}
			if err := pool.UpsertAlias(ctx, &alias); err != nil {
				return 0, err
			}
		}
	}

	return len(pinned), nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
