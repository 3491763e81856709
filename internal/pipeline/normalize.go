package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/avgjoe1017/et-heatmap-v2/internal/ingest"
	"github.com/avgjoe1017/et-heatmap-v2/internal/langdetect"
	"github.com/avgjoe1017/et-heatmap-v2/internal/language"
	"github.com/avgjoe1017/et-heatmap-v2/internal/textutil"
)

// textAllSeparator joins title, caption, and body into text_all. The explicit
// delimiter keeps sentence indexes stable across the separate fields.
const textAllSeparator = "\n"

const similarityPrefixChars = 1000

// captionChars bounds the caption field; description overflow becomes body.
const captionChars = 500

// Doc is the in-memory normalized document a run works on.
type Doc struct {
	DocID        string
	ItemID       string
	Source       string
	Timestamp    time.Time
	Lang         string
	Title        string
	Caption      string
	Body         string
	TextAll      string
	HashSim      string
	QualityFlags map[string]bool
	Sentences    []string
}

// NormalizeItems converts raw items into NLP-ready documents. Deterministic:
// the same item always yields the same doc_id and text fields. Items failing
// the language or length gate produce no document.
func NormalizeItems(items []ingest.Item) []Doc {
	docs := make([]Doc, 0, len(items))

	for _, item := range items {
		title := textutil.Clean(item.Title)

		// The leading slice of the description is the caption; anything
		// beyond it is body. The split keeps text_all free of repeats.
		description := textutil.Clean(item.Description)
		caption := description
		body := ""
		if runes := []rune(description); len(runes) > captionChars {
			caption = strings.TrimSpace(string(runes[:captionChars]))
			body = strings.TrimSpace(string(runes[captionChars:]))
		}

		parts := make([]string, 0, 3)
		for _, part := range []string{title, caption, body} {
			if part != "" {
				parts = append(parts, part)
			}
		}
		textAll := strings.Join(parts, textAllSeparator)
		if textAll == "" {
			continue
		}

		flags := map[string]bool{}
		if len(textAll) < 10 {
			flags["too_short"] = true
		}

		lang := language.NormalizeCode(langdetect.DetectISO6391(textAll))
		if lang == "" {
			lang = "en"
		}
		if lang != "en" {
			// Non-English documents are gated out; the source item remains.
			continue
		}

		docs = append(docs, Doc{
			DocID:        docIDFor(item.ItemID, textAll),
			ItemID:       item.ItemID,
			Source:       item.Source,
			Timestamp:    item.PublishedAt.UTC(),
			Lang:         lang,
			Title:        title,
			Caption:      caption,
			Body:         body,
			TextAll:      textAll,
			HashSim:      similarityHash(textAll),
			QualityFlags: flags,
			Sentences:    textutil.SplitSentences(textAll),
		})
	}

	return docs
}

func docIDFor(itemID, textAll string) string {
	sum := sha256.Sum256([]byte(itemID + "\x00" + textAll))
	return "doc_" + hex.EncodeToString(sum[:8])
}

// similarityHash fingerprints the normalized prefix of text_all; documents
// sharing the hash are exact duplicates for dedupe purposes.
func similarityHash(textAll string) string {
	normalized := textutil.NormalizeSurface(textutil.Truncate(textAll, similarityPrefixChars))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:8])
}
