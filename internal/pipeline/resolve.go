package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/avgjoe1017/et-heatmap-v2/internal/catalog"
	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
	"github.com/avgjoe1017/et-heatmap-v2/internal/sentiment"
	"github.com/avgjoe1017/et-heatmap-v2/internal/textutil"
)

// Disambiguation component weights. Caption/title co-occurrence carries the
// most signal; the sum is 1 so scores stay in [0, 1].
const (
	wTitle     = 0.30
	wContext   = 0.25
	wComention = 0.20
	wTypeFit   = 0.10
	wPrior     = 0.10
	wSource    = 0.05
)

// ResolvedMention is a mention attributed to exactly one catalog entity.
type ResolvedMention struct {
	MentionID  string
	DocID      string
	EntityID   string
	SentIdx    int
	Start      int
	End        int
	Surface    string
	IsImplicit bool
	Weight     float64
	Confidence float64
	Sentence   string
	Sentiment  sentiment.Result
}

// CandidateScore is one scored alternative recorded for the resolve queue.
type CandidateScore struct {
	EntityID string             `json:"entity_id"`
	Score    float64            `json:"score"`
	Features map[string]float64 `json:"features"`
}

// UnresolvedSurface is a mention that did not cross the disambiguation margin.
type UnresolvedSurface struct {
	DocID       string
	SentIdx     int
	Surface     string
	Norm        string
	Context     string
	Candidates  []CandidateScore
	TopScore    float64
	SecondScore float64
}

// Resolver assigns candidate mentions to entities with the strict two-pass
// policy: explicit alias resolution first, then pronoun attribution to the
// document's primary entity. It never invents entities.
type Resolver struct {
	cat     *catalog.Catalog
	weights *config.WeightsConfig
}

func NewResolver(cat *catalog.Catalog, weights *config.WeightsConfig) *Resolver {
	return &Resolver{cat: cat, weights: weights}
}

// ResolveDoc runs both passes over one document's candidate mentions.
func (r *Resolver) ResolveDoc(doc Doc, candidates []CandidateMention) ([]ResolvedMention, []UnresolvedSurface) {
	resolved := make([]ResolvedMention, 0, len(candidates))
	unresolved := make([]UnresolvedSurface, 0)
	resolvedInDoc := make(map[string]struct{})

	for _, cm := range candidates {
		switch len(cm.Candidates) {
		case 0:
			// Unknown surfaces are not queued: extraction only emits catalog
			// aliases, so an empty candidate list means a stale index entry.
			continue
		case 1:
			m := r.newExplicitMention(doc, cm, cm.Candidates[0], 1.0)
			resolved = append(resolved, m)
			resolvedInDoc[m.EntityID] = struct{}{}
		default:
			scored := r.scoreCandidates(doc, cm, resolvedInDoc)
			if len(scored) == 0 {
				continue
			}
			top, second := scored[0], CandidateScore{}
			if len(scored) > 1 {
				second = scored[1]
			}

			margin := r.weights.Resolver.MarginThreshold * top.Score
			if top.Score >= r.weights.Resolver.MinConfidence && top.Score-second.Score >= margin {
				m := r.newExplicitMention(doc, cm, top.EntityID, top.Score)
				resolved = append(resolved, m)
				resolvedInDoc[m.EntityID] = struct{}{}
				continue
			}

			maxCandidates := r.weights.Resolver.MaxCandidates
			if len(scored) > maxCandidates {
				scored = scored[:maxCandidates]
			}
			unresolved = append(unresolved, UnresolvedSurface{
				DocID:       doc.DocID,
				SentIdx:     cm.SentIdx,
				Surface:     cm.Surface,
				Norm:        cm.Norm,
				Context:     textutil.Truncate(cm.Sentence, 280),
				Candidates:  scored,
				TopScore:    top.Score,
				SecondScore: second.Score,
			})
		}
	}

	implicit := r.implicitPass(doc, resolved)
	return append(resolved, implicit...), unresolved
}

func (r *Resolver) newExplicitMention(doc Doc, cm CandidateMention, entityID string, confidence float64) ResolvedMention {
	return ResolvedMention{
		MentionID:  mentionID(doc.DocID, cm.SentIdx, cm.Start, entityID, false),
		DocID:      doc.DocID,
		EntityID:   entityID,
		SentIdx:    cm.SentIdx,
		Start:      cm.Start,
		End:        cm.End,
		Surface:    cm.Surface,
		Weight:     1.0,
		Confidence: confidence,
		Sentence:   cm.Sentence,
	}
}

// scoreCandidates ranks alternatives by the weighted context signal. The
// result is sorted best first with entity id as the stable tie-break.
func (r *Resolver) scoreCandidates(doc Doc, cm CandidateMention, resolvedInDoc map[string]struct{}) []CandidateScore {
	titleText := strings.ToLower(doc.Title + " " + doc.Caption)
	bodyTokens := tokenSet(textutil.Tokenize(doc.Body + " " + cm.Sentence))
	sentence := strings.ToLower(cm.Sentence)

	scored := make([]CandidateScore, 0, len(cm.Candidates))
	for _, entityID := range cm.Candidates {
		entity := r.cat.ByID(entityID)
		if entity == nil {
			continue
		}

		title := titleCooccurrence(entity, cm.Norm, titleText)
		context := contextOverlap(entity, bodyTokens)
		comention := 0.0
		if _, ok := resolvedInDoc[entityID]; ok {
			comention = 1.0
		}
		typeFit := typeFitScore(entity.Type, sentence)
		prior := entity.PriorWeight
		source := sourceSignal(doc.Source)

		score := wTitle*title + wContext*context + wComention*comention +
			wTypeFit*typeFit + wPrior*prior + wSource*source

		scored = append(scored, CandidateScore{
			EntityID: entityID,
			Score:    score,
			Features: map[string]float64{
				"title":     title,
				"context":   context,
				"comention": comention,
				"typefit":   typeFit,
				"prior":     prior,
				"source":    source,
			},
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].EntityID < scored[j].EntityID
	})
	return scored
}

// implicitPass attributes pronoun sentences to the document's primary entity:
// the one with the most explicit mentions, ties broken by first appearance.
// Documents without explicit resolutions produce no implicit mentions.
func (r *Resolver) implicitPass(doc Doc, explicit []ResolvedMention) []ResolvedMention {
	if len(explicit) == 0 {
		return nil
	}

	counts := make(map[string]int)
	firstAppearance := make(map[string]int)
	explicitSentences := make(map[int]struct{})
	for i, m := range explicit {
		counts[m.EntityID]++
		if _, seen := firstAppearance[m.EntityID]; !seen {
			firstAppearance[m.EntityID] = i
		}
		explicitSentences[m.SentIdx] = struct{}{}
	}

	primary := ""
	for entityID := range counts {
		if primary == "" {
			primary = entityID
			continue
		}
		if counts[entityID] > counts[primary] ||
			(counts[entityID] == counts[primary] && firstAppearance[entityID] < firstAppearance[primary]) {
			primary = entityID
		}
	}

	implicit := make([]ResolvedMention, 0)
	for sentIdx, sentence := range doc.Sentences {
		if _, has := explicitSentences[sentIdx]; has {
			continue
		}
		if !textutil.HasPronoun(sentence) {
			continue
		}
		implicit = append(implicit, ResolvedMention{
			MentionID:  mentionID(doc.DocID, sentIdx, 0, primary, true),
			DocID:      doc.DocID,
			EntityID:   primary,
			SentIdx:    sentIdx,
			Start:      0,
			End:        len(sentence),
			Surface:    "",
			IsImplicit: true,
			Weight:     r.weights.ImplicitMentionWeight,
			Confidence: 1.0,
			Sentence:   sentence,
		})
	}
	return implicit
}

func titleCooccurrence(entity *catalog.Entity, matchedNorm, titleText string) float64 {
	for _, alias := range append([]string{entity.CanonicalName}, entity.Aliases...) {
		norm := textutil.NormalizeSurface(alias)
		if norm == "" || norm == matchedNorm {
			continue
		}
		if strings.Contains(titleText, norm) {
			return 1.0
		}
	}
	for _, hint := range entity.ContextHints {
		if hint != "" && strings.Contains(titleText, strings.ToLower(hint)) {
			return 0.7
		}
	}
	return 0.0
}

func contextOverlap(entity *catalog.Entity, bodyTokens map[string]struct{}) float64 {
	hintTokens := make(map[string]struct{})
	for _, hint := range entity.ContextHints {
		for _, token := range textutil.Tokenize(hint) {
			hintTokens[token] = struct{}{}
		}
	}
	for _, alias := range entity.Aliases {
		for _, token := range textutil.Tokenize(alias) {
			hintTokens[token] = struct{}{}
		}
	}
	if len(hintTokens) == 0 {
		return 0.0
	}

	hits := 0
	for token := range hintTokens {
		if _, ok := bodyTokens[token]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(hintTokens))
}

var showKeywords = []string{"season", "episode", "finale", "premiere", "watched", "streaming", "binge"}
var filmKeywords = []string{"directed", "box office", "trailer", "premiere", "sequel", "film", "movie"}
var personKeywords = []string{"starring", "cast", "interview", "actor", "actress", "singer"}

func typeFitScore(entityType, sentence string) float64 {
	fit := func(keywords []string) bool {
		for _, kw := range keywords {
			if strings.Contains(sentence, kw) {
				return true
			}
		}
		return false
	}

	switch entityType {
	case "SHOW", "FRANCHISE":
		if fit(showKeywords) {
			return 1.0
		}
	case "FILM":
		if fit(filmKeywords) {
			return 1.0
		}
	case "PERSON", "CHARACTER", "COUPLE":
		if fit(personKeywords) {
			return 1.0
		}
	}
	if fit(showKeywords) || fit(filmKeywords) || fit(personKeywords) {
		// A typed keyword pointing at a different class counts against.
		return 0.3
	}
	return 0.5
}

// sourceSignal favors curated, title-bearing sources over comment streams.
func sourceSignal(source string) float64 {
	switch source {
	case "YOUTUBE", "GDELT":
		return 1.0
	case "REDDIT":
		return 0.8
	default:
		return 0.6
	}
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

func mentionID(docID string, sentIdx, start int, entityID string, implicit bool) string {
	key := fmt.Sprintf("%s|%d|%d|%s|%t", docID, sentIdx, start, entityID, implicit)
	sum := sha256.Sum256([]byte(key))
	return "mention_" + hex.EncodeToString(sum[:8])
}
