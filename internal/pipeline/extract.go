package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"github.com/avgjoe1017/et-heatmap-v2/internal/catalog"
)

// CandidateMention is a pre-resolution surface occurrence. Extraction is
// purely lexical; it never decides attribution.
type CandidateMention struct {
	DocID      string
	SentIdx    int
	Start      int
	End        int
	Surface    string
	Norm       string
	Candidates []string
	Sentence   string
}

// Extractor scans documents for alias occurrences on word boundaries.
type Extractor struct {
	cat      *catalog.Catalog
	patterns []aliasPattern
}

type aliasPattern struct {
	norm string
	re   *regexp.Regexp
}

func NewExtractor(cat *catalog.Catalog) *Extractor {
	norms := make([]string, 0, len(cat.AliasIndex()))
	for norm := range cat.AliasIndex() {
		norms = append(norms, norm)
	}
	sort.Strings(norms)

	patterns := make([]aliasPattern, 0, len(norms))
	for _, norm := range norms {
		// Word-boundary match over the lowercased sentence; alias norms are
		// already punctuation-free, so spaces bridge any inner punctuation.
		escaped := regexp.QuoteMeta(norm)
		escaped = strings.ReplaceAll(escaped, ` `, `[\s\p{P}]+`)
		re, err := regexp.Compile(`(?i)\b` + escaped + `\b`)
		if err != nil {
			continue
		}
		patterns = append(patterns, aliasPattern{norm: norm, re: re})
	}

	return &Extractor{cat: cat, patterns: patterns}
}

// Extract emits candidate mentions for every alias occurrence in the document.
// Overlapping matches keep the longer span, ties break on earlier start.
func (e *Extractor) Extract(doc Doc) []CandidateMention {
	mentions := make([]CandidateMention, 0, 8)

	for sentIdx, sentence := range doc.Sentences {
		spans := make([]aliasSpan, 0, 4)
		for _, pattern := range e.patterns {
			for _, loc := range pattern.re.FindAllStringIndex(sentence, -1) {
				spans = append(spans, aliasSpan{
					start: loc[0],
					end:   loc[1],
					norm:  pattern.norm,
				})
			}
		}
		if len(spans) == 0 {
			continue
		}

		for _, span := range resolveOverlaps(spans) {
			mentions = append(mentions, CandidateMention{
				DocID:      doc.DocID,
				SentIdx:    sentIdx,
				Start:      span.start,
				End:        span.end,
				Surface:    sentence[span.start:span.end],
				Norm:       span.norm,
				Candidates: e.cat.Candidates(span.norm),
				Sentence:   sentence,
			})
		}
	}

	return mentions
}

type aliasSpan struct {
	start int
	end   int
	norm  string
}

// resolveOverlaps keeps the longer span on overlap, breaking ties by earlier
// start then lexical norm, and returns survivors ordered by start offset.
func resolveOverlaps(spans []aliasSpan) []aliasSpan {
	sort.Slice(spans, func(i, j int) bool {
		li, lj := spans[i].end-spans[i].start, spans[j].end-spans[j].start
		if li != lj {
			return li > lj
		}
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].norm < spans[j].norm
	})

	kept := make([]aliasSpan, 0, len(spans))
	for _, span := range spans {
		overlaps := false
		for _, existing := range kept {
			if span.start < existing.end && existing.start < span.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, span)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].start < kept[j].start })
	return kept
}
