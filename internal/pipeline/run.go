package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/avgjoe1017/et-heatmap-v2/internal/catalog"
	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
	"github.com/avgjoe1017/et-heatmap-v2/internal/db"
	"github.com/avgjoe1017/et-heatmap-v2/internal/ingest"
	"github.com/avgjoe1017/et-heatmap-v2/internal/sentiment"
)

// Runner executes the daily pipeline for one window.
type Runner struct {
	pool    *db.Pool
	weights *config.WeightsConfig
	sources []ingest.Source
	scorer  sentiment.Scorer
	workers int
	logger  zerolog.Logger
}

func NewRunner(
	pool *db.Pool,
	weights *config.WeightsConfig,
	sources []ingest.Source,
	scorer sentiment.Scorer,
	workers int,
	logger zerolog.Logger,
) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		pool:    pool,
		weights: weights,
		sources: sources,
		scorer:  scorer,
		workers: workers,
		logger:  logger.With().Str("component", "pipeline").Logger(),
	}
}

// Result summarizes one completed run.
type Result struct {
	RunID    string
	Status   string
	Entities int
	Mentions int
}

type sourceCount struct {
	Items int    `json:"items"`
	Error string `json:"error,omitempty"`
}

// Execute runs every stage in order and persists the snapshot. The returned
// status is the run's terminal state; a non-nil error accompanies FAILED.
func (r *Runner) Execute(ctx context.Context, window Window) (Result, error) {
	runID := uuid.NewString()
	startedAt := time.Now().UTC()

	run := &db.Run{
		RunID:             runID,
		WindowStart:       window.Start,
		WindowEnd:         window.End,
		StartedAt:         startedAt,
		Status:            db.RunStatusRunning,
		ConfigFingerprint: r.configFingerprint(),
	}
	if err := r.pool.CreateRun(ctx, run); err != nil {
		return Result{RunID: runID, Status: db.RunStatusFailed}, fmt.Errorf("%w: create run: %v", ErrPersistence, err)
	}

	logger := r.logger.With().Str("run_id", runID).Logger()
	logger.Info().Str("window", window.String()).Msg("pipeline run started")

	result, runErr := r.execute(ctx, logger, runID, window)
	result.RunID = runID

	finishedAt := time.Now().UTC()
	notes := ""
	if runErr != nil {
		notes = runErr.Error()
	}
	if err := r.pool.UpdateRunStatus(ctx, runID, result.Status, notes, &finishedAt); err != nil {
		logger.Error().Err(err).Msg("failed to finalize run status")
	}

	logger.Info().
		Str("status", result.Status).
		Int("entities", result.Entities).
		Int("mentions", result.Mentions).
		Dur("elapsed", finishedAt.Sub(startedAt)).
		Msg("pipeline run finished")

	return result, runErr
}

func (r *Runner) execute(ctx context.Context, logger zerolog.Logger, runID string, window Window) (Result, error) {
	timings := make(map[string]int64)
	sourceCounts := make(map[string]sourceCount)
	now := time.Now().UTC()

	// Stage 1: ingest. Best effort per source; a failed source logs, records
	// an error note, and contributes nothing.
	stageStart := time.Now()
	items := r.ingestAll(ctx, window, sourceCounts, logger)
	timings["ingest"] = time.Since(stageStart).Milliseconds()
	logger.Info().Int("items", len(items)).Msg("ingest complete")

	rows := make([]db.SourceItem, 0, len(items))
	for _, item := range items {
		row, err := item.ToModel(now)
		if err != nil {
			logger.Warn().Err(err).Str("item_id", item.ItemID).Msg("skip unencodable item")
			continue
		}
		rows = append(rows, row)
	}
	if err := r.pool.UpsertSourceItems(ctx, rows); err != nil {
		return Result{Status: db.RunStatusFailed}, fmt.Errorf("%w: persist source items: %v", ErrPersistence, err)
	}

	itemsByID := make(map[string]ingest.Item, len(items))
	for _, item := range items {
		itemsByID[item.ItemID] = item
	}

	// Stage 2: normalize.
	stageStart = time.Now()
	docs := NormalizeItems(items)
	timings["normalize"] = time.Since(stageStart).Milliseconds()

	// Stage 2b: dedupe.
	stageStart = time.Now()
	docs, dropped := DedupeDocs(docs)
	timings["dedupe"] = time.Since(stageStart).Milliseconds()
	logger.Info().Int("documents", len(docs)).Int("duplicates_dropped", len(dropped)).Msg("normalize complete")

	if err := r.persistDocuments(ctx, docs); err != nil {
		return Result{Status: db.RunStatusFailed}, fmt.Errorf("%w: persist documents: %v", ErrPersistence, err)
	}

	// The catalog is read once and immutable for the rest of the run.
	cat, err := catalog.Load(ctx, r.pool)
	if err != nil {
		return Result{Status: db.RunStatusFailed}, fmt.Errorf("%w: load catalog: %v", ErrFatalInternal, err)
	}

	// Stages 3-4: extract and resolve, bounded parallel per document. Results
	// are collected by document index so parallel order never changes the output set.
	stageStart = time.Now()
	mentions, unresolved := r.extractAndResolve(ctx, cat, docs)
	timings["resolve"] = time.Since(stageStart).Milliseconds()
	logger.Info().Int("mentions", len(mentions)).Int("unresolved", len(unresolved)).Msg("resolution complete")

	// Stage 5: sentiment.
	stageStart = time.Now()
	for i := range mentions {
		mentions[i].Sentiment = r.scorer.Score(mentions[i].Sentence)
	}
	timings["sentiment"] = time.Since(stageStart).Milliseconds()

	if err := r.persistMentions(ctx, runID, mentions, unresolved, docs); err != nil {
		return Result{Status: db.RunStatusFailed}, fmt.Errorf("%w: persist mentions: %v", ErrPersistence, err)
	}

	docsByID := make(map[string]Doc, len(docs))
	for _, doc := range docs {
		docsByID[doc.DocID] = doc
	}

	// Stage 6: aggregate.
	stageStart = time.Now()
	aggregates := Aggregate(mentions, docsByID, itemsByID, r.weights)
	timings["aggregate"] = time.Since(stageStart).Milliseconds()

	// Stage 7: axes, with the weekly baseline and prior-run history.
	stageStart = time.Now()
	axes, err := r.computeAllAxes(ctx, cat, aggregates, window)
	if err != nil {
		return Result{Status: db.RunStatusFailed}, err
	}
	timings["axes"] = time.Since(stageStart).Milliseconds()

	// Stages 8-9: drivers and themes depend only on aggregation inputs and
	// run concurrently.
	stageStart = time.Now()
	var drivers []Driver
	var themes []Theme
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if groupCtx.Err() != nil {
			return groupCtx.Err()
		}
		drivers = BuildDrivers(mentions, docsByID, itemsByID, cat, r.weights)
		return nil
	})
	group.Go(func() error {
		if groupCtx.Err() != nil {
			return groupCtx.Err()
		}
		themes = BuildThemes(mentions, r.weights)
		return nil
	})
	if err := group.Wait(); err != nil {
		return Result{Status: db.RunStatusPartial}, fmt.Errorf("drivers/themes cancelled: %w", err)
	}
	timings["derive"] = time.Since(stageStart).Milliseconds()

	// Stage 10: snapshot persist, one transaction per entity.
	stageStart = time.Now()
	written, persistErr := r.persistSnapshot(ctx, logger, runID, axes, drivers, themes)
	timings["persist"] = time.Since(stageStart).Milliseconds()

	r.writeRunMetrics(ctx, logger, runID, sourceCounts, mentions, unresolved, itemsByID, docsByID, timings)

	result := Result{Entities: written, Mentions: len(mentions)}
	switch {
	case persistErr != nil && written == 0:
		result.Status = db.RunStatusFailed
		return result, fmt.Errorf("%w: snapshot persist: %v", ErrPersistence, persistErr)
	case persistErr != nil:
		result.Status = db.RunStatusPartial
		return result, fmt.Errorf("%w: snapshot persist incomplete: %v", ErrPersistence, persistErr)
	case ctx.Err() != nil:
		result.Status = db.RunStatusPartial
		return result, fmt.Errorf("run cancelled: %w", ctx.Err())
	case written == 0:
		result.Status = db.RunStatusPartial
		return result, nil
	default:
		result.Status = db.RunStatusSuccess
		return result, nil
	}
}

func (r *Runner) ingestAll(ctx context.Context, window Window, counts map[string]sourceCount, logger zerolog.Logger) []ingest.Item {
	var mu sync.Mutex
	items := make([]ingest.Item, 0, 512)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)

	for _, source := range r.sources {
		group.Go(func() error {
			fetched, err := source.Fetch(groupCtx, window.Start, window.End)

			mu.Lock()
			defer mu.Unlock()
			count := sourceCount{Items: len(fetched)}
			if err != nil {
				count.Error = err.Error()
				logger.Warn().Err(fmt.Errorf("%w: %s: %v", ErrSourceFetch, source.Name(), err)).
					Str("source", source.Name()).Msg("source fetch failed, continuing")
			}
			counts[source.Name()] = count
			items = append(items, fetched...)
			return nil
		})
	}
	_ = group.Wait()

	// Deterministic order regardless of source completion order.
	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
	return items
}

func (r *Runner) extractAndResolve(ctx context.Context, cat *catalog.Catalog, docs []Doc) ([]ResolvedMention, []UnresolvedSurface) {
	extractor := NewExtractor(cat)
	resolver := NewResolver(cat, r.weights)

	type docResult struct {
		mentions   []ResolvedMention
		unresolved []UnresolvedSurface
	}

	results := make([]docResult, len(docs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)

	for i, doc := range docs {
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return nil
			}
			candidates := extractor.Extract(doc)
			mentions, unresolved := resolver.ResolveDoc(doc, candidates)
			results[i] = docResult{mentions: mentions, unresolved: unresolved}
			return nil
		})
	}
	_ = group.Wait()

	mentions := make([]ResolvedMention, 0)
	unresolved := make([]UnresolvedSurface, 0)
	for _, res := range results {
		mentions = append(mentions, res.mentions...)
		unresolved = append(unresolved, res.unresolved...)
	}
	return mentions, unresolved
}

func (r *Runner) persistDocuments(ctx context.Context, docs []Doc) error {
	rows := make([]db.Document, 0, len(docs))
	for _, doc := range docs {
		flags, err := json.Marshal(doc.QualityFlags)
		if err != nil {
			return fmt.Errorf("encode quality flags for %s: %w", doc.DocID, err)
		}
		rows = append(rows, db.Document{
			DocID:        doc.DocID,
			ItemID:       doc.ItemID,
			DocTimestamp: doc.Timestamp,
			Lang:         doc.Lang,
			TextTitle:    doc.Title,
			TextCaption:  doc.Caption,
			TextBody:     doc.Body,
			TextAll:      doc.TextAll,
			QualityFlags: datatypes.JSON(flags),
			HashSim:      doc.HashSim,
		})
	}
	return r.pool.UpsertDocuments(ctx, rows)
}

// persistMentions writes resolved mentions and, after resolution completes,
// the unresolved queue rows with their candidate snapshots.
func (r *Runner) persistMentions(ctx context.Context, runID string, mentions []ResolvedMention, unresolved []UnresolvedSurface, docs []Doc) error {
	docTimestamps := make(map[string]time.Time, len(docs))
	for _, doc := range docs {
		docTimestamps[doc.DocID] = doc.Timestamp
	}
	now := time.Now().UTC()

	mentionRows := make([]db.Mention, 0, len(mentions))
	for _, m := range mentions {
		features, err := json.Marshal(map[string]float64{
			"sentiment_pos": m.Sentiment.Distribution.Pos,
			"sentiment_neu": m.Sentiment.Distribution.Neu,
			"sentiment_neg": m.Sentiment.Distribution.Neg,
			"intensity":     m.Sentiment.Intensity,
			"support":       m.Sentiment.Support,
			"desire":        m.Sentiment.Desire,
		})
		if err != nil {
			return fmt.Errorf("encode features for %s: %w", m.MentionID, err)
		}
		mentionRows = append(mentionRows, db.Mention{
			MentionID:    m.MentionID,
			RunID:        runID,
			DocID:        m.DocID,
			EntityID:     m.EntityID,
			SentIdx:      m.SentIdx,
			SpanStart:    m.Start,
			SpanEnd:      m.End,
			Surface:      m.Surface,
			IsImplicit:   m.IsImplicit,
			Weight:       m.Weight,
			ResolveConf:  m.Confidence,
			Features:     datatypes.JSON(features),
			DocTimestamp: docTimestamps[m.DocID],
			CreatedAt:    now,
		})
	}
	if err := r.pool.InsertMentions(ctx, mentionRows); err != nil {
		return err
	}

	unresolvedRows := make([]db.UnresolvedMention, 0, len(unresolved))
	for _, u := range unresolved {
		candidates, err := json.Marshal(u.Candidates)
		if err != nil {
			return fmt.Errorf("encode candidates for %q: %w", u.Surface, err)
		}
		unresolvedRows = append(unresolvedRows, db.UnresolvedMention{
			UnresolvedID: unresolvedID(runID, u),
			RunID:        runID,
			DocID:        u.DocID,
			Surface:      u.Surface,
			SurfaceNorm:  u.Norm,
			SentIdx:      u.SentIdx,
			Context:      u.Context,
			Candidates:   datatypes.JSON(candidates),
			TopScore:     u.TopScore,
			SecondScore:  u.SecondScore,
			CreatedAt:    now,
		})
	}
	return r.pool.InsertUnresolvedMentions(ctx, unresolvedRows)
}

func (r *Runner) computeAllAxes(ctx context.Context, cat *catalog.Catalog, aggregates []EntityAggregate, window Window) ([]AxisResult, error) {
	isoWeek := ISOWeek(window.End)

	readBaseline := func(entityID string) *float64 {
		baseline, err := r.pool.LatestWeeklyBaseline(ctx, entityID, isoWeek)
		if err != nil {
			if !db.IsNoRows(err) {
				r.logger.Warn().Err(err).Str("entity_id", entityID).Msg("baseline read failed, neutral used")
			}
			return nil
		}
		value := baseline.BaselineFame
		return &value
	}

	axes := make([]AxisResult, 0, len(aggregates))
	covered := make(map[string]struct{}, len(aggregates))

	for _, agg := range aggregates {
		history, err := r.pool.FameLoveHistory(ctx, agg.EntityID, window.Start, 7)
		if err != nil {
			return nil, fmt.Errorf("%w: momentum history for %s: %v", ErrPersistence, agg.EntityID, err)
		}
		axes = append(axes, ComputeAxes(agg, readBaseline(agg.EntityID), history, r.weights))
		covered[agg.EntityID] = struct{}{}
	}

	// Pinned active entities always get a row; dormant when silent.
	for _, pinned := range cat.Pinned() {
		if _, ok := covered[pinned.EntityID]; ok {
			continue
		}
		axes = append(axes, DormantAxes(pinned.EntityID, readBaseline(pinned.EntityID), r.weights))
	}

	return axes, nil
}

// persistSnapshot writes each entity's outputs transactionally. Individual
// entity failures downgrade the run to PARTIAL rather than aborting the rest.
func (r *Runner) persistSnapshot(ctx context.Context, logger zerolog.Logger, runID string, axes []AxisResult, drivers []Driver, themes []Theme) (int, error) {
	driversByEntity := make(map[string][]Driver)
	for _, d := range drivers {
		driversByEntity[d.EntityID] = append(driversByEntity[d.EntityID], d)
	}
	themesByEntity := make(map[string][]Theme)
	for _, t := range themes {
		themesByEntity[t.EntityID] = append(themesByEntity[t.EntityID], t)
	}

	now := time.Now().UTC()
	written := 0
	var firstErr error

	for _, axis := range axes {
		snap, err := buildEntitySnapshot(runID, axis, driversByEntity[axis.EntityID], themesByEntity[axis.EntityID], now)
		if err == nil {
			err = r.pool.WriteEntitySnapshot(ctx, snap)
		}
		if err != nil {
			logger.Error().Err(err).Str("entity_id", axis.EntityID).Msg("entity snapshot dropped")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		written++
	}

	return written, firstErr
}

func buildEntitySnapshot(runID string, axis AxisResult, drivers []Driver, themes []Theme, now time.Time) (*db.EntitySnapshot, error) {
	metadata, err := json.Marshal(map[string]any{
		"insufficient_history": axis.InsufficientHistory,
		"love_raw":             axis.LoveRaw,
		"per_source_volume":    axis.PerSourceVolume,
		"sentiment": map[string]float64{
			"pos": axis.SentimentPos,
			"neu": axis.SentimentNeu,
			"neg": axis.SentimentNeg,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode metadata for %s: %w", axis.EntityID, err)
	}

	metrics := db.EntityDailyMetrics{
		RunID:            runID,
		EntityID:         axis.EntityID,
		Fame:             axis.Fame,
		Love:             axis.Love,
		Attention:        axis.Attention,
		BaselineFame:     axis.BaselineFame,
		Momentum:         axis.Momentum,
		Polarization:     axis.Polarization,
		Confidence:       axis.Confidence,
		MentionsExplicit: axis.ExplicitCount,
		MentionsImplicit: axis.ImplicitCount,
		SourcesDistinct:  axis.SourcesDistinct,
		IsDormant:        axis.IsDormant,
		Metadata:         datatypes.JSON(metadata),
		CreatedAt:        now,
	}
	if axis.IsDormant {
		reason := axis.DormancyReason
		metrics.DormancyReason = &reason
	}

	snap := &db.EntitySnapshot{Metrics: metrics}
	for _, d := range drivers {
		snap.Drivers = append(snap.Drivers, db.EntityDailyDriver{
			RunID:       runID,
			EntityID:    d.EntityID,
			Rank:        d.Rank,
			ItemID:      d.ItemID,
			ImpactScore: d.ImpactScore,
			Reason:      d.Reason,
			CreatedAt:   now,
		})
	}
	for _, t := range themes {
		keywords, err := json.Marshal(t.Keywords)
		if err != nil {
			return nil, fmt.Errorf("encode keywords for %s: %w", t.ThemeID, err)
		}
		mix, err := json.Marshal(t.SentimentMix)
		if err != nil {
			return nil, fmt.Errorf("encode sentiment mix for %s: %w", t.ThemeID, err)
		}
		snap.Themes = append(snap.Themes, db.EntityDailyTheme{
			RunID:        runID,
			EntityID:     t.EntityID,
			ThemeID:      t.ThemeID,
			Label:        t.Label,
			Keywords:     datatypes.JSON(keywords),
			Volume:       t.Volume,
			SentimentMix: datatypes.JSON(mix),
			CreatedAt:    now,
		})
	}
	return snap, nil
}

func (r *Runner) writeRunMetrics(
	ctx context.Context,
	logger zerolog.Logger,
	runID string,
	sourceCounts map[string]sourceCount,
	mentions []ResolvedMention,
	unresolved []UnresolvedSurface,
	itemsByID map[string]ingest.Item,
	docsByID map[string]Doc,
	timings map[string]int64,
) {
	implicitCount := 0
	for _, m := range mentions {
		if m.IsImplicit {
			implicitCount++
		}
	}
	mentionCounts := map[string]int{
		"total":      len(mentions) + len(unresolved),
		"resolved":   len(mentions),
		"unresolved": len(unresolved),
		"implicit":   implicitCount,
	}

	metrics := &db.RunMetrics{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
	}
	var err error
	if metrics.SourceCounts, err = json.Marshal(sourceCounts); err != nil {
		logger.Error().Err(err).Msg("encode source counts failed")
		return
	}
	if metrics.MentionCounts, err = json.Marshal(mentionCounts); err != nil {
		logger.Error().Err(err).Msg("encode mention counts failed")
		return
	}
	if metrics.UnresolvedTop, err = json.Marshal(topUnresolved(unresolved, itemsByID, docsByID, 20)); err != nil {
		logger.Error().Err(err).Msg("encode unresolved top failed")
		return
	}
	if metrics.Timings, err = json.Marshal(timings); err != nil {
		logger.Error().Err(err).Msg("encode timings failed")
		return
	}

	if err := r.pool.UpsertRunMetrics(ctx, metrics); err != nil {
		logger.Error().Err(err).Msg("run metrics write failed")
	}
}

type unresolvedSummary struct {
	Surface string  `json:"surface"`
	Count   int     `json:"count"`
	Impact  float64 `json:"impact"`
}

// topUnresolved aggregates queue surfaces by normalized form, ranked by
// engagement-weighted impact so operators triage the costly ambiguities first.
func topUnresolved(unresolved []UnresolvedSurface, itemsByID map[string]ingest.Item, docsByID map[string]Doc, n int) []unresolvedSummary {
	agg := make(map[string]*unresolvedSummary)
	for _, u := range unresolved {
		summary := agg[u.Norm]
		if summary == nil {
			summary = &unresolvedSummary{Surface: u.Surface}
			agg[u.Norm] = summary
		}
		summary.Count++

		impact := 1.0
		if doc, ok := docsByID[u.DocID]; ok {
			if item, ok := itemsByID[doc.ItemID]; ok {
				impact += 0.2 * EngagementScore(item)
			}
		}
		summary.Impact += impact
	}

	summaries := make([]unresolvedSummary, 0, len(agg))
	for _, summary := range agg {
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Impact != summaries[j].Impact {
			return summaries[i].Impact > summaries[j].Impact
		}
		return summaries[i].Surface < summaries[j].Surface
	})
	if len(summaries) > n {
		summaries = summaries[:n]
	}
	return summaries
}

func (r *Runner) configFingerprint() string {
	encoded, err := json.Marshal(r.weights)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:8])
}

func unresolvedID(runID string, u UnresolvedSurface) string {
	key := fmt.Sprintf("%s|%s|%d|%s", runID, u.DocID, u.SentIdx, u.Norm)
	sum := sha256.Sum256([]byte(key))
	return "unresolved_" + hex.EncodeToString(sum[:8])
}
