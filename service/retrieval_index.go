package service

import (
	"fmt"
	"sort"

	"clauseguard-backend/models"
)

// indexEntry pairs one retrieval document with its embedding
type indexEntry struct {
	doc    models.RetrievalDocument
	vector []float64
}

// retrievalIndex is the ephemeral per-session similarity index. It is built
// from scratch for every question and never persisted; for the clause counts
// a single contract produces, a linear scan over normalized vectors is
// cheaper than maintaining an external store.
type retrievalIndex struct {
	entries []indexEntry
}

// buildRetrievalDocuments packs each clause and its current suggestion into
// one retrieval document. Headings are sorted so the index layout is
// deterministic for a given session state.
func buildRetrievalDocuments(clauses, suggestions map[string]string) []models.RetrievalDocument {
	headings := make([]string, 0, len(clauses))
	for heading := range clauses {
		headings = append(headings, heading)
	}
	sort.Strings(headings)

	docs := make([]models.RetrievalDocument, 0, len(headings))
	for _, heading := range headings {
		suggestion := suggestions[heading]
		if suggestion == "" {
			suggestion = "[no suggestion yet]"
		}
		docs = append(docs, models.RetrievalDocument{
			Heading: heading,
			Content: fmt.Sprintf("Clause heading: %s\n\nOriginal clause:\n%s\n\nAI suggestions:\n%s",
				heading, clauses[heading], suggestion),
		})
	}
	return docs
}

// newRetrievalIndex builds an index over documents and their embeddings
func newRetrievalIndex(docs []models.RetrievalDocument, vectors [][]float64) (*retrievalIndex, error) {
	if len(docs) != len(vectors) {
		return nil, fmt.Errorf("got %d embeddings for %d documents", len(vectors), len(docs))
	}
	entries := make([]indexEntry, len(docs))
	for i := range docs {
		entries[i] = indexEntry{doc: docs[i], vector: vectors[i]}
	}
	return &retrievalIndex{entries: entries}, nil
}

// TopK returns the k documents most similar to the query embedding.
// Vectors are normalized, so similarity is the plain dot product. Ties
// resolve by index order, keeping results stable.
func (idx *retrievalIndex) TopK(query []float64, k int) []models.RetrievalDocument {
	type scored struct {
		i     int
		score float64
	}
	scores := make([]scored, len(idx.entries))
	for i, entry := range idx.entries {
		var dot float64
		n := len(entry.vector)
		if len(query) < n {
			n = len(query)
		}
		for j := 0; j < n; j++ {
			dot += entry.vector[j] * query[j]
		}
		scores[i] = scored{i: i, score: dot}
	}

	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].score > scores[b].score
	})

	if k > len(scores) {
		k = len(scores)
	}
	out := make([]models.RetrievalDocument, 0, k)
	for _, s := range scores[:k] {
		out = append(out, idx.entries[s.i].doc)
	}
	return out
}
