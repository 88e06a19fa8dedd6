package encoder

import (
	"fmt"
	"sort"
	"sync"

	"github.com/doujins-org/apireckit/internal/normalize"
)

// IndexEntry identifies one stored vector: a dataset name plus the record's
// idx column value.
type IndexEntry struct {
	Dataset string
	Idx     int
}

// IndexHit is one nearest neighbor.
type IndexHit struct {
	IndexEntry
	Similarity float32
}

// Index is an in-memory exact-KNN vector index for research-sized corpora
// (tens of thousands of questions). For larger or persistent corpora use the
// pg package instead.
//
// Vectors are stored as given; Search uses full cosine similarity, so inputs
// do not have to be pre-normalized.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries []IndexEntry
	vecs    [][]float32
}

func NewIndex() *Index {
	return &Index{}
}

// Add stores one vector. The first Add fixes the index dimensionality;
// later vectors must match it.
func (ix *Index) Add(entry IndexEntry, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("vector is empty")
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dim == 0 {
		ix.dim = len(vec)
	} else if len(vec) != ix.dim {
		return fmt.Errorf("vector has %d dimensions, index has %d", len(vec), ix.dim)
	}

	ix.entries = append(ix.entries, entry)
	ix.vecs = append(ix.vecs, vec)
	return nil
}

// Len returns the number of stored vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Search returns the k nearest stored vectors by cosine similarity,
// best first with deterministic tie-breaking.
func (ix *Index) Search(query []float32, k int) ([]IndexHit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.dim != 0 && len(query) != ix.dim {
		return nil, fmt.Errorf("query has %d dimensions, index has %d", len(query), ix.dim)
	}

	hits := make([]IndexHit, len(ix.entries))
	for i, vec := range ix.vecs {
		hits[i] = IndexHit{
			IndexEntry: ix.entries[i],
			Similarity: normalize.Cosine(query, vec),
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity == hits[j].Similarity {
			if hits[i].Dataset == hits[j].Dataset {
				return hits[i].Idx < hits[j].Idx
			}
			return hits[i].Dataset < hits[j].Dataset
		}
		return hits[i].Similarity > hits[j].Similarity
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}
