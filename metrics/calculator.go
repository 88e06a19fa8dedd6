// Package metrics computes ranked-retrieval and sequence-overlap quality
// metrics over (candidate ranking, reference set) pairs: MRR, MAP, BLEU,
// Success@k, Precision@k, Recall@k and NDCG@k, plus a batch form that
// evaluates several cutoffs in one call.
//
// A Calculator is immutable after construction, so any number of goroutines
// may run metric computations on the same instance concurrently.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	// ErrShapeMismatch is returned by New when the candidate and reference
	// collections differ in length.
	ErrShapeMismatch = errors.New("candidate and reference collections differ in length")

	// ErrIndexOutOfRange is returned by At for indexes outside [0, Len).
	ErrIndexOutOfRange = errors.New("pair index out of range")

	// ErrInvalidK is returned by the @k metrics for cutoffs < 1.
	ErrInvalidK = errors.New("cutoff k must be >= 1")
)

// Pair is one evaluation unit: an ordered candidate ranking (best first,
// rank 1 = index 0) and the reference identifiers considered correct for it.
// References are matched as a set; their stored order only matters to BLEU,
// which reads them as a single reference sequence.
type Pair struct {
	Candidates []string
	References []string
}

// Equal reports structural equality of both sides, order-sensitive.
func (p Pair) Equal(q Pair) bool {
	return slices.Equal(p.Candidates, q.Candidates) && slices.Equal(p.References, q.References)
}

// Calculator evaluates N aligned (candidates, references) pairs.
//
// Matching is exact string equality. A duplicated candidate counts as a hit
// only at its first occurrence; later duplicates score as misses, which keeps
// every normalized metric inside [0, 1] even for degenerate rankings.
type Calculator struct {
	pairs []Pair

	// hits[i][j] reports whether candidate j of pair i is the first
	// occurrence of an identifier present in references i.
	hits [][]bool

	// refCount[i] is the number of distinct identifiers in references i.
	refCount []int
}

// New builds a Calculator from two aligned collections of identifier lists.
// candidateLists[i] is the ranking produced for instance i, best first;
// referenceLists[i] holds the identifiers considered correct for it.
//
// Empty sub-lists and N = 0 are valid degenerate inputs; only a length
// mismatch between the two collections is an error.
func New(candidateLists, referenceLists [][]string) (*Calculator, error) {
	if len(candidateLists) != len(referenceLists) {
		return nil, fmt.Errorf("%w: %d candidate lists vs %d reference lists",
			ErrShapeMismatch, len(candidateLists), len(referenceLists))
	}

	n := len(candidateLists)
	c := &Calculator{
		pairs:    make([]Pair, n),
		hits:     make([][]bool, n),
		refCount: make([]int, n),
	}

	for i := range candidateLists {
		cands := slices.Clone(candidateLists[i])
		refs := slices.Clone(referenceLists[i])
		c.pairs[i] = Pair{Candidates: cands, References: refs}

		refSet := make(map[string]struct{}, len(refs))
		for _, r := range refs {
			refSet[r] = struct{}{}
		}
		c.refCount[i] = len(refSet)

		hits := make([]bool, len(cands))
		seen := make(map[string]struct{}, len(cands))
		for j, id := range cands {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if _, ok := refSet[id]; ok {
				hits[j] = true
			}
		}
		c.hits[i] = hits
	}

	return c, nil
}

// Len returns the number of evaluation pairs.
func (c *Calculator) Len() int { return len(c.pairs) }

// At returns the i-th pair in input order.
func (c *Calculator) At(i int) (Pair, error) {
	if i < 0 || i >= len(c.pairs) {
		return Pair{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(c.pairs))
	}
	return c.pairs[i], nil
}

// Pairs returns the pairs in input order. The returned slice is a copy; the
// Calculator itself stays immutable.
func (c *Calculator) Pairs() []Pair {
	return slices.Clone(c.pairs)
}

// Contains reports whether an identical pair is held by the Calculator.
// Identity is structural equality of both sides (see Pair.Equal); identifier-
// level membership is intentionally not offered.
func (c *Calculator) Contains(p Pair) bool {
	for _, q := range c.pairs {
		if q.Equal(p) {
			return true
		}
	}
	return false
}

// mean averages per-pair scores produced by f over all pairs.
// An empty Calculator yields 0.0 by convention, never a division by zero.
func (c *Calculator) mean(f func(i int) float64) float64 {
	n := len(c.pairs)
	if n == 0 {
		return 0.0
	}
	sum := 0.0
	for i := range c.pairs {
		sum += f(i)
	}
	return sum / float64(n)
}

// MRR is the mean reciprocal rank: the average over pairs of 1/rank of the
// first matching candidate, 0 when nothing matches.
func (c *Calculator) MRR() float64 {
	return c.mean(func(i int) float64 {
		for j, hit := range c.hits[i] {
			if hit {
				return 1.0 / float64(j+1)
			}
		}
		return 0.0
	})
}

// MAP is the mean average precision. For one pair, AP averages precision at
// each matching position over the number of matching positions; pairs with
// empty references or no match contribute 0.
func (c *Calculator) MAP() float64 {
	return c.mean(func(i int) float64 {
		matched := 0
		sumPrec := 0.0
		for j, hit := range c.hits[i] {
			if hit {
				matched++
				sumPrec += float64(matched) / float64(j+1)
			}
		}
		if matched == 0 {
			return 0.0
		}
		return sumPrec / float64(matched)
	})
}

// SuccessAt is the fraction of pairs with at least one match in the top k.
func (c *Calculator) SuccessAt(k int) (float64, error) {
	if err := checkK(k); err != nil {
		return 0, err
	}
	return c.mean(func(i int) float64 {
		for j, hit := range c.hits[i] {
			if j >= k {
				break
			}
			if hit {
				return 1.0
			}
		}
		return 0.0
	}), nil
}

// PrecisionAt averages (matches in top k) / k. The divisor is always k:
// candidate lists shorter than k dilute precision, their missing slots count
// as misses.
func (c *Calculator) PrecisionAt(k int) (float64, error) {
	if err := checkK(k); err != nil {
		return 0, err
	}
	return c.mean(func(i int) float64 {
		return float64(c.hitsInTop(i, k)) / float64(k)
	}), nil
}

// RecallAt averages (matches in top k) / |references|. A pair with empty
// references contributes 0 and is still counted in the mean.
func (c *Calculator) RecallAt(k int) (float64, error) {
	if err := checkK(k); err != nil {
		return 0, err
	}
	return c.mean(func(i int) float64 {
		if c.refCount[i] == 0 {
			return 0.0
		}
		return float64(c.hitsInTop(i, k)) / float64(c.refCount[i])
	}), nil
}

// NDCGAt averages normalized discounted cumulative gain with binary gains.
// The ideal DCG assumes all references (up to min(k, |references|)) occupy
// the top ranks. A pair with empty references contributes 0 and is still
// counted in the mean.
func (c *Calculator) NDCGAt(k int) (float64, error) {
	if err := checkK(k); err != nil {
		return 0, err
	}
	return c.mean(func(i int) float64 {
		if c.refCount[i] == 0 {
			return 0.0
		}
		dcg := 0.0
		for j, hit := range c.hits[i] {
			if j >= k {
				break
			}
			if hit {
				dcg += 1.0 / math.Log2(float64(j)+2.0)
			}
		}
		ideal := min(k, c.refCount[i])
		idcg := 0.0
		for j := 0; j < ideal; j++ {
			idcg += 1.0 / math.Log2(float64(j)+2.0)
		}
		if idcg == 0 {
			return 0.0
		}
		return dcg / idcg
	}), nil
}

func (c *Calculator) hitsInTop(i, k int) int {
	hits := c.hits[i]
	if k < len(hits) {
		hits = hits[:k]
	}
	n := 0
	for _, hit := range hits {
		if hit {
			n++
		}
	}
	return n
}

func checkK(k int) error {
	if k < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	return nil
}
