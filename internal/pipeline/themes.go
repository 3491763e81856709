package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
	"github.com/avgjoe1017/et-heatmap-v2/internal/sentiment"
)

// seedTermCount is how many frequent content words seed theme grouping.
const seedTermCount = 10

// seedShareFloor is the minimum seed terms a sentence must share with a theme.
const seedShareFloor = 2

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"i": {}, "you": {}, "he": {}, "she": {}, "they": {}, "we": {}, "them": {},
	"his": {}, "her": {}, "their": {}, "my": {}, "your": {}, "our": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"not": {}, "no": {}, "so": {}, "just": {}, "very": {}, "really": {},
	"about": {}, "from": {}, "into": {}, "out": {}, "up": {}, "down": {},
	"what": {}, "when": {}, "where": {}, "who": {}, "how": {}, "why": {},
	"will": {}, "would": {}, "can": {}, "could": {}, "should": {}, "all": {},
	"more": {}, "than": {}, "like": {}, "get": {}, "got": {}, "one": {},
}

// Theme is one labeled cluster of the conversation about an entity.
type Theme struct {
	EntityID     string
	ThemeID      string
	Label        string
	Keywords     []string
	Volume       int
	SentimentMix sentiment.Distribution
}

// BuildThemes clusters mention sentences into labeled themes per entity.
// Entities below the mention floor get no themes, which is not an error.
// This is the term-frequency path; it holds the same contract an
// embedding-based clusterer would.
func BuildThemes(mentions []ResolvedMention, weights *config.WeightsConfig) []Theme {
	byEntity := make(map[string][]ResolvedMention)
	for _, m := range mentions {
		byEntity[m.EntityID] = append(byEntity[m.EntityID], m)
	}

	entityIDs := make([]string, 0, len(byEntity))
	for id := range byEntity {
		entityIDs = append(entityIDs, id)
	}
	sort.Strings(entityIDs)

	themes := make([]Theme, 0)
	for _, entityID := range entityIDs {
		entityMentions := byEntity[entityID]
		if len(entityMentions) < weights.Themes.MinMentions {
			continue
		}
		themes = append(themes, clusterEntityMentions(entityID, entityMentions, weights.Themes.MaxThemes)...)
	}

	return themes
}

func clusterEntityMentions(entityID string, mentions []ResolvedMention, maxThemes int) []Theme {
	seeds := frequentContentWords(mentions, seedTermCount)
	if len(seeds) == 0 {
		return nil
	}

	type cluster struct {
		seed       string
		mentions   []ResolvedMention
		keywordSet map[string]int
	}

	clusters := make([]*cluster, 0, len(seeds))
	clusterBySeed := make(map[string]*cluster, len(seeds))

	for _, m := range mentions {
		tokens := contentWords(m.Sentence)
		tokenSet := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			tokenSet[t] = struct{}{}
		}

		matched := make([]string, 0, 2)
		for _, seed := range seeds {
			if _, ok := tokenSet[seed]; ok {
				matched = append(matched, seed)
			}
		}
		if len(matched) < seedShareFloor {
			continue
		}

		// The first matched seed (in frequency order) owns the mention.
		owner := matched[0]
		c := clusterBySeed[owner]
		if c == nil {
			c = &cluster{seed: owner, keywordSet: make(map[string]int)}
			clusterBySeed[owner] = c
			clusters = append(clusters, c)
		}
		c.mentions = append(c.mentions, m)
		for _, seed := range matched {
			c.keywordSet[seed]++
		}
	}

	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i].mentions) != len(clusters[j].mentions) {
			return len(clusters[i].mentions) > len(clusters[j].mentions)
		}
		return clusters[i].seed < clusters[j].seed
	})
	if len(clusters) > maxThemes {
		clusters = clusters[:maxThemes]
	}

	themes := make([]Theme, 0, len(clusters))
	for _, c := range clusters {
		keywords := make([]string, 0, len(c.keywordSet))
		for kw := range c.keywordSet {
			keywords = append(keywords, kw)
		}
		sort.Slice(keywords, func(i, j int) bool {
			if c.keywordSet[keywords[i]] != c.keywordSet[keywords[j]] {
				return c.keywordSet[keywords[i]] > c.keywordSet[keywords[j]]
			}
			return keywords[i] < keywords[j]
		})
		if len(keywords) > 5 {
			keywords = keywords[:5]
		}

		var pos, neu, neg float64
		for _, m := range c.mentions {
			pos += m.Sentiment.Distribution.Pos
			neu += m.Sentiment.Distribution.Neu
			neg += m.Sentiment.Distribution.Neg
		}
		n := float64(len(c.mentions))

		themes = append(themes, Theme{
			EntityID: entityID,
			ThemeID:  themeID(entityID, c.seed),
			Label:    capitalize(c.seed),
			Keywords: keywords,
			Volume:   len(c.mentions),
			SentimentMix: sentiment.Distribution{
				Pos: pos / n,
				Neu: neu / n,
				Neg: neg / n,
			},
		})
	}

	return themes
}

// frequentContentWords returns the top-N content words across mention
// sentences, ordered by descending frequency with lexical tie-break.
func frequentContentWords(mentions []ResolvedMention, n int) []string {
	counts := make(map[string]int)
	for _, m := range mentions {
		seen := make(map[string]struct{})
		for _, token := range contentWords(m.Sentence) {
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			counts[token]++
		}
	}

	words := make([]string, 0, len(counts))
	for word, count := range counts {
		if count >= 2 {
			words = append(words, word)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > n {
		words = words[:n]
	}
	return words
}

func contentWords(sentence string) []string {
	tokens := strings.Fields(strings.ToLower(sentence))
	words := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.Trim(token, `.,!?;:"'()[]{}`)
		if len(token) <= 3 {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		words = append(words, token)
	}
	return words
}

func capitalize(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}

func themeID(entityID, seed string) string {
	sum := sha256.Sum256([]byte(entityID + "|" + seed))
	return "theme_" + hex.EncodeToString(sum[:6])
}
