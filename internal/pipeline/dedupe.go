package pipeline

import "sort"

// DedupeDocs drops documents whose similarity hash collides with an earlier
// one. The earliest doc_timestamp wins; ties break on doc_id so parallel
// production order cannot change the survivor set. Returns the kept documents
// and the dropped doc_ids.
func DedupeDocs(docs []Doc) ([]Doc, []string) {
	if len(docs) == 0 {
		return docs, nil
	}

	ordered := make([]Doc, len(docs))
	copy(ordered, docs)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].DocID < ordered[j].DocID
	})

	seen := make(map[string]struct{}, len(ordered))
	kept := make([]Doc, 0, len(ordered))
	dropped := make([]string, 0)

	for _, doc := range ordered {
		if _, dup := seen[doc.HashSim]; dup {
			dropped = append(dropped, doc.DocID)
			continue
		}
		seen[doc.HashSim] = struct{}{}
		kept = append(kept, doc)
	}

	return kept, dropped
}
