package search

import "sort"

// RRF (Reciprocal Rank Fusion) combines ranked API candidate lists without
// relying on raw score calibration, e.g. a retrieval-based ranking and an
// LLM-generated ranking whose confidences are not comparable.
//
// Typical formula:
//
//	score(api) = Σ (weight_i / (k + rank_i))
//
// where rank_i is the 1-based position in list i, and k is usually 50–60.
type RRFOptions struct {
	// K is the stabilizer constant; higher K flattens rank differences.
	// Defaults to 60 when <= 0.
	K int

	// Weights applied to each list. Empty => all 1.0.
	Weights []float32
}

// RankedAPI is one fused candidate.
type RankedAPI struct {
	Name  string
	Score float32
}

// FuseRRF fuses multiple ranked identifier lists into a single best-first
// ranking. Within a list, only the best rank of a duplicated identifier
// counts. Ties break on name for determinism.
func FuseRRF(lists [][]string, opts RRFOptions) []RankedAPI {
	k := opts.K
	if k <= 0 {
		k = 60
	}
	weights := opts.Weights
	if len(weights) == 0 {
		weights = make([]float32, len(lists))
		for i := range weights {
			weights[i] = 1.0
		}
	}

	scores := make(map[string]float32)

	for li, list := range lists {
		w := float32(1.0)
		if li < len(weights) && weights[li] > 0 {
			w = weights[li]
		}
		seen := make(map[string]struct{}, len(list))
		for i, name := range list {
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			scores[name] += w / float32(k+i+1)
		}
	}

	out := make([]RankedAPI, 0, len(scores))
	for name, sc := range scores {
		out = append(out, RankedAPI{Name: name, Score: sc})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Name < out[j].Name
		}
		return out[i].Score > out[j].Score
	})
	return out
}
