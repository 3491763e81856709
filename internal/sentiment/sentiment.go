package sentiment

import (
	"strings"

	"github.com/avgjoe1017/et-heatmap-v2/internal/textutil"
)

// Distribution is a sentiment probability triple; pos+neu+neg sums to 1.
type Distribution struct {
	Pos float64 `json:"pos"`
	Neu float64 `json:"neu"`
	Neg float64 `json:"neg"`
}

// Neutral is the distribution assigned when no polarity signal is found.
func Neutral() Distribution {
	return Distribution{Pos: 0, Neu: 1, Neg: 0}
}

// Signed maps the distribution to a single scalar in [-1, 1].
func (d Distribution) Signed() float64 {
	return d.Pos - d.Neg
}

// Result is the full per-mention sentiment contract.
type Result struct {
	Distribution Distribution
	Intensity    float64
	Support      float64
	Desire       float64
}

// Scorer produces sentiment for the sentence containing a mention. The lexicon
// scorer and the remote model satisfy the same contract.
type Scorer interface {
	Name() string
	Score(sentence string) Result
}

var positiveWords = map[string]struct{}{
	"love": {}, "amazing": {}, "incredible": {}, "great": {}, "perfect": {},
	"best": {}, "awesome": {}, "fantastic": {}, "brilliant": {}, "excellent": {},
	"wonderful": {}, "beautiful": {}, "stunning": {}, "iconic": {}, "legend": {},
	"hilarious": {}, "adore": {}, "obsessed": {}, "flawless": {},
}

var negativeWords = map[string]struct{}{
	"hate": {}, "awful": {}, "terrible": {}, "worst": {}, "cringe": {},
	"disgusting": {}, "bad": {}, "horrible": {}, "disappointing": {},
	"boring": {}, "stupid": {}, "ridiculous": {}, "overrated": {}, "annoying": {},
	"trash": {}, "mess": {},
}

var intensifierWords = map[string]struct{}{
	"so": {}, "very": {}, "really": {}, "extremely": {}, "absolutely": {},
	"totally": {}, "completely": {}, "incredibly": {}, "utterly": {},
}

var supportPhrases = []string{
	"no notes", "we love", "the goat", "queen", "king", "mother", "national treasure",
	"deserves better", "protect", "stan",
}

var desirePhrases = []string{
	"can't wait", "cant wait", "need them back", "renew", "sequel", "bring back",
	"give us", "another season", "more episodes", "comeback",
}

// LexiconScorer is the default scorer: token counts over small curated
// lexicons, normalized by content-word count.
type LexiconScorer struct{}

func NewLexiconScorer() *LexiconScorer { return &LexiconScorer{} }

func (s *LexiconScorer) Name() string { return "lexicon" }

func (s *LexiconScorer) Score(sentence string) Result {
	tokens := textutil.Tokenize(sentence)
	if len(tokens) == 0 {
		return Result{Distribution: Neutral()}
	}

	var pos, neg, intens int
	for _, token := range tokens {
		stem := stem(token)
		if _, ok := positiveWords[stem]; ok {
			pos++
		}
		if _, ok := negativeWords[stem]; ok {
			neg++
		}
		if _, ok := intensifierWords[token]; ok {
			intens++
		}
	}

	lowered := strings.ToLower(sentence)
	support := phraseHits(lowered, supportPhrases)
	desire := phraseHits(lowered, desirePhrases)

	result := Result{
		Support: saturate(float64(support) / 2.0),
		Desire:  saturate(float64(desire) / 2.0),
	}

	if pos == 0 && neg == 0 {
		result.Distribution = Neutral()
		return result
	}

	// Polarity saturates at two hits; intensifiers raise intensity only.
	posScore := saturate(float64(pos) / 2.0)
	negScore := saturate(float64(neg) / 2.0)
	neuScore := saturate(1.0 - (posScore + negScore))

	total := posScore + negScore + neuScore
	result.Distribution = Distribution{
		Pos: posScore / total,
		Neu: neuScore / total,
		Neg: negScore / total,
	}
	result.Intensity = saturate((float64(pos+neg) + 0.5*float64(intens)) / float64(len(tokens)) * 4.0)
	return result
}

// stem strips common English suffixes so "loved"/"loves"/"loving" hit "love".
func stem(token string) string {
	for _, suffix := range []string{"ing", "ed", "es", "s"} {
		if strings.HasSuffix(token, suffix) && len(token)-len(suffix) >= 3 {
			trimmed := strings.TrimSuffix(token, suffix)
			if _, ok := positiveWords[trimmed]; ok {
				return trimmed
			}
			if _, ok := negativeWords[trimmed]; ok {
				return trimmed
			}
			// "loving" -> "lov" -> "love"
			if _, ok := positiveWords[trimmed+"e"]; ok {
				return trimmed + "e"
			}
			if _, ok := negativeWords[trimmed+"e"]; ok {
				return trimmed + "e"
			}
		}
	}
	return token
}

func phraseHits(lowered string, phrases []string) int {
	hits := 0
	for _, phrase := range phrases {
		if strings.Contains(lowered, phrase) {
			hits++
		}
	}
	return hits
}

func saturate(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
