package db

import (
	"time"

	"gorm.io/datatypes"
)

// Entity is one scored catalog identity.
type Entity struct {
	EntityID      string         `gorm:"column:entity_id;primaryKey"`
	EntityKey     string         `gorm:"column:entity_key;not null;uniqueIndex"`
	CanonicalName string         `gorm:"column:canonical_name;not null"`
	EntityType    string         `gorm:"column:entity_type;not null"`
	IsPinned      bool           `gorm:"column:is_pinned;not null;default:false"`
	IsActive      bool           `gorm:"column:is_active;not null;default:true"`
	IsDormant     bool           `gorm:"column:is_dormant;not null;default:false"`
	FirstSeenAt   time.Time      `gorm:"column:first_seen_at;not null"`
	LastSeenAt    *time.Time     `gorm:"column:last_seen_at"`
	ExternalIDs   datatypes.JSON `gorm:"column:external_ids"`
	ContextHints  datatypes.JSON `gorm:"column:context_hints"`
	Metadata      datatypes.JSON `gorm:"column:metadata"`
	PinReason     *string        `gorm:"column:pin_reason"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;not null"`
}

func (Entity) TableName() string { return "entities" }

// EntityAlias is one surface form that may refer to an entity.
type EntityAlias struct {
	AliasID    int64     `gorm:"column:alias_id;primaryKey;autoIncrement"`
	EntityID   string    `gorm:"column:entity_id;not null;uniqueIndex:ux_alias_entity_norm,priority:1;index"`
	Surface    string    `gorm:"column:surface;not null"`
	Normalized string    `gorm:"column:normalized;not null;uniqueIndex:ux_alias_entity_norm,priority:2;index"`
	IsPrimary  bool      `gorm:"column:is_primary;not null;default:false"`
	Confidence float64   `gorm:"column:confidence;not null;default:1"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (EntityAlias) TableName() string { return "entity_aliases" }

// EntityRelationship is a parent/child, couple-member, or brand-owns edge.
type EntityRelationship struct {
	RelationshipID int64     `gorm:"column:relationship_id;primaryKey;autoIncrement"`
	FromEntityID   string    `gorm:"column:from_entity_id;not null;uniqueIndex:ux_rel,priority:1"`
	ToEntityID     string    `gorm:"column:to_entity_id;not null;uniqueIndex:ux_rel,priority:2"`
	RelationType   string    `gorm:"column:relation_type;not null;uniqueIndex:ux_rel,priority:3"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
}

func (EntityRelationship) TableName() string { return "entity_relationships" }

// SourceItem is one raw ingested unit, keyed deterministically by the adapter.
type SourceItem struct {
	ItemID      string         `gorm:"column:item_id;primaryKey"`
	Source      string         `gorm:"column:source;not null;index"`
	URL         *string        `gorm:"column:url"`
	PublishedAt time.Time      `gorm:"column:published_at;not null;index"`
	FetchedAt   time.Time      `gorm:"column:fetched_at;not null"`
	Title       string         `gorm:"column:title;not null;default:''"`
	Description string         `gorm:"column:description;not null;default:''"`
	Author      *string        `gorm:"column:author"`
	Engagement  datatypes.JSON `gorm:"column:engagement"`
	RawPayload  datatypes.JSON `gorm:"column:raw_payload"`
}

func (SourceItem) TableName() string { return "source_items" }

// Document is the normalized NLP-ready text bundle for a source item.
type Document struct {
	DocID        string         `gorm:"column:doc_id;primaryKey"`
	ItemID       string         `gorm:"column:item_id;not null;index"`
	DocTimestamp time.Time      `gorm:"column:doc_timestamp;not null;index"`
	Lang         string         `gorm:"column:lang;not null;default:''"`
	TextTitle    string         `gorm:"column:text_title;not null;default:''"`
	TextCaption  string         `gorm:"column:text_caption;not null;default:''"`
	TextBody     string         `gorm:"column:text_body;not null;default:''"`
	TextAll      string         `gorm:"column:text_all;not null;default:''"`
	QualityFlags datatypes.JSON `gorm:"column:quality_flags"`
	HashSim      string         `gorm:"column:hash_sim;not null;index"`
}

func (Document) TableName() string { return "documents" }

// Mention is a resolved reference to a catalog entity inside a document.
type Mention struct {
	MentionID     string         `gorm:"column:mention_id;primaryKey"`
	RunID         string         `gorm:"column:run_id;not null;index"`
	DocID         string         `gorm:"column:doc_id;not null;index"`
	EntityID      string         `gorm:"column:entity_id;not null;index"`
	SentIdx       int            `gorm:"column:sent_idx;not null"`
	SpanStart     int            `gorm:"column:span_start;not null"`
	SpanEnd       int            `gorm:"column:span_end;not null"`
	Surface       string         `gorm:"column:surface;not null"`
	IsImplicit    bool           `gorm:"column:is_implicit;not null;default:false"`
	Weight        float64        `gorm:"column:weight;not null;default:1"`
	ResolveConf   float64        `gorm:"column:resolve_confidence;not null"`
	Features      datatypes.JSON `gorm:"column:features"`
	DocTimestamp  time.Time      `gorm:"column:doc_timestamp;not null;index"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null"`
}

func (Mention) TableName() string { return "mentions" }

// UnresolvedMention is a surface that did not cross the disambiguation margin.
// It never enters scoring; the resolve queue reads it by surface_norm.
type UnresolvedMention struct {
	UnresolvedID string         `gorm:"column:unresolved_id;primaryKey"`
	RunID        string         `gorm:"column:run_id;not null;index"`
	DocID        string         `gorm:"column:doc_id;not null;index"`
	Surface      string         `gorm:"column:surface;not null"`
	SurfaceNorm  string         `gorm:"column:surface_norm;not null;index"`
	SentIdx      int            `gorm:"column:sent_idx;not null"`
	Context      string         `gorm:"column:context;not null;default:''"`
	Candidates   datatypes.JSON `gorm:"column:candidates"`
	TopScore     float64        `gorm:"column:top_score;not null;default:0"`
	SecondScore  float64        `gorm:"column:second_score;not null;default:0"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null"`
}

func (UnresolvedMention) TableName() string { return "unresolved_mentions" }

// Run is one pipeline execution over one window.
type Run struct {
	RunID             string     `gorm:"column:run_id;primaryKey"`
	WindowStart       time.Time  `gorm:"column:window_start;not null;uniqueIndex:ux_run_window,priority:1"`
	WindowEnd         time.Time  `gorm:"column:window_end;not null;uniqueIndex:ux_run_window,priority:2"`
	StartedAt         time.Time  `gorm:"column:started_at;not null"`
	FinishedAt        *time.Time `gorm:"column:finished_at"`
	Status            string     `gorm:"column:status;not null;default:CREATED"`
	ConfigFingerprint string     `gorm:"column:config_fingerprint;not null;default:''"`
	Notes             string     `gorm:"column:notes;not null;default:''"`
}

func (Run) TableName() string { return "runs" }

// RunMetrics is the per-run instrumentation row.
type RunMetrics struct {
	RunID         string         `gorm:"column:run_id;primaryKey"`
	SourceCounts  datatypes.JSON `gorm:"column:source_counts"`
	MentionCounts datatypes.JSON `gorm:"column:mention_counts"`
	UnresolvedTop datatypes.JSON `gorm:"column:unresolved_top"`
	Timings       datatypes.JSON `gorm:"column:timings_ms"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null"`
}

func (RunMetrics) TableName() string { return "run_metrics" }

// EntityDailyMetrics is the immutable per-run snapshot row for one entity.
type EntityDailyMetrics struct {
	RunID            string         `gorm:"column:run_id;primaryKey"`
	EntityID         string         `gorm:"column:entity_id;primaryKey"`
	Fame             float64        `gorm:"column:fame;not null"`
	Love             float64        `gorm:"column:love;not null"`
	Attention        float64        `gorm:"column:attention;not null"`
	BaselineFame     *float64       `gorm:"column:baseline_fame"`
	Momentum         float64        `gorm:"column:momentum;not null"`
	Polarization     float64        `gorm:"column:polarization;not null"`
	Confidence       float64        `gorm:"column:confidence;not null"`
	MentionsExplicit int            `gorm:"column:mentions_explicit;not null"`
	MentionsImplicit int            `gorm:"column:mentions_implicit;not null"`
	SourcesDistinct  int            `gorm:"column:sources_distinct;not null"`
	IsDormant        bool           `gorm:"column:is_dormant;not null;default:false"`
	DormancyReason   *string        `gorm:"column:dormancy_reason"`
	Metadata         datatypes.JSON `gorm:"column:metadata"`
	CreatedAt        time.Time      `gorm:"column:created_at;not null"`
}

func (EntityDailyMetrics) TableName() string { return "entity_daily_metrics" }

// EntityDailyDriver is one ranked source item behind an entity's coordinate.
type EntityDailyDriver struct {
	RunID       string    `gorm:"column:run_id;primaryKey"`
	EntityID    string    `gorm:"column:entity_id;primaryKey"`
	Rank        int       `gorm:"column:rank;primaryKey;autoIncrement:false"`
	ItemID      string    `gorm:"column:item_id;not null"`
	ImpactScore float64   `gorm:"column:impact_score;not null"`
	Reason      string    `gorm:"column:reason;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (EntityDailyDriver) TableName() string { return "entity_daily_drivers" }

// EntityDailyTheme is one labeled conversation cluster for an entity.
type EntityDailyTheme struct {
	RunID        string         `gorm:"column:run_id;primaryKey"`
	EntityID     string         `gorm:"column:entity_id;primaryKey"`
	ThemeID      string         `gorm:"column:theme_id;primaryKey"`
	Label        string         `gorm:"column:label;not null"`
	Keywords     datatypes.JSON `gorm:"column:keywords"`
	Volume       int            `gorm:"column:volume;not null"`
	SentimentMix datatypes.JSON `gorm:"column:sentiment_mix"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null"`
}

func (EntityDailyTheme) TableName() string { return "entity_daily_themes" }

// EntityWeeklyBaseline is the slowly-varying per-entity baseline fame row.
type EntityWeeklyBaseline struct {
	EntityID     string         `gorm:"column:entity_id;primaryKey"`
	ISOWeek      string         `gorm:"column:iso_week;primaryKey"`
	SignalSource string         `gorm:"column:signal_source;primaryKey"`
	BaselineFame float64        `gorm:"column:baseline_fame;not null"`
	Components   datatypes.JSON `gorm:"column:components"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;not null"`
}

func (EntityWeeklyBaseline) TableName() string { return "entity_weekly_baselines" }

func autoMigrateModels() []any {
	return []any{
		&Entity{},
		&EntityAlias{},
		&EntityRelationship{},
		&SourceItem{},
		&Document{},
		&Mention{},
		&UnresolvedMention{},
		&Run{},
		&RunMetrics{},
		&EntityDailyMetrics{},
		&EntityDailyDriver{},
		&EntityDailyTheme{},
		&EntityWeeklyBaseline{},
	}
}
