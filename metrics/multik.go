package metrics

import "slices"

// MultiK bundles the scores for a batch MultipleK call. The per-cutoff maps
// are keyed by the requested k values; Ks preserves the caller's order so the
// bundle can be consumed as an ordered series (charts, tables). Duplicate
// requested cutoffs keep their position in Ks but collapse in the maps.
//
// MRR, MAP and BLEU do not depend on a cutoff; they ride along so one call
// yields the complete score sheet for a run.
type MultiK struct {
	Ks []int

	MRR  float64
	MAP  float64
	BLEU float64

	Success   map[int]float64
	Precision map[int]float64
	Recall    map[int]float64
	NDCG      map[int]float64
}

// MultipleK computes Success/Precision/Recall/NDCG at every requested cutoff,
// plus the cutoff-independent MRR, MAP and BLEU, in a single pass over the
// pair collection.
//
// Every k is validated up front: one invalid cutoff fails the whole call
// before anything is computed, no partial bundle is returned.
func (c *Calculator) MultipleK(ks []int) (*MultiK, error) {
	for _, k := range ks {
		if err := checkK(k); err != nil {
			return nil, err
		}
	}

	out := &MultiK{
		Ks:        slices.Clone(ks),
		MRR:       c.MRR(),
		MAP:       c.MAP(),
		BLEU:      c.BLEU(),
		Success:   make(map[int]float64, len(ks)),
		Precision: make(map[int]float64, len(ks)),
		Recall:    make(map[int]float64, len(ks)),
		NDCG:      make(map[int]float64, len(ks)),
	}

	for _, k := range ks {
		// checkK already ran; the per-metric calls cannot fail here.
		s, _ := c.SuccessAt(k)
		p, _ := c.PrecisionAt(k)
		r, _ := c.RecallAt(k)
		n, _ := c.NDCGAt(k)
		out.Success[k] = s
		out.Precision[k] = p
		out.Recall[k] = r
		out.NDCG[k] = n
	}

	return out, nil
}
