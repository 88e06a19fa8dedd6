package metrics

import (
	"math"
	"strings"
)

// bleuMaxOrder is the fixed n-gram ceiling. Orders 1..4 are weighted equally,
// the usual sentence-BLEU setup.
const bleuMaxOrder = 4

// BLEU averages per-pair sentence BLEU, treating Candidates as the hypothesis
// sequence and References (in stored order) as a single reference sequence.
//
// Zero counts for orders >= 2 are smoothed by adding one to both numerator
// and denominator (Chen & Cherry 2014, smoothing method 2). A pair with an
// empty hypothesis, or with no unigram overlap at all, scores 0.
func (c *Calculator) BLEU() float64 {
	return c.mean(func(i int) float64 {
		return sentenceBLEU(c.pairs[i].Candidates, c.pairs[i].References)
	})
}

func sentenceBLEU(hyp, ref []string) float64 {
	if len(hyp) == 0 {
		return 0.0
	}

	logSum := 0.0
	for n := 1; n <= bleuMaxOrder; n++ {
		matches, total := clippedNgramMatches(hyp, ref, n)

		// Mirrors the reference formulation: the raw precision denominator
		// is never allowed to reach zero, and orders above unigram get
		// add-one smoothing so a single missing higher-order n-gram does
		// not collapse the geometric mean.
		num := float64(matches)
		den := float64(max(total, 1))
		if n > 1 {
			num++
			den++
		}
		if num == 0 {
			// Unsmoothed unigram precision of zero: no overlap at all.
			return 0.0
		}
		logSum += math.Log(num / den)
	}

	score := math.Exp(logSum / bleuMaxOrder)
	return brevityPenalty(len(hyp), len(ref)) * score
}

// clippedNgramMatches counts hypothesis n-grams, clipped by how often each
// n-gram occurs in the reference, along with the total hypothesis n-grams.
func clippedNgramMatches(hyp, ref []string, n int) (matches, total int) {
	total = len(hyp) - n + 1
	if total <= 0 {
		return 0, 0
	}

	refCounts := make(map[string]int)
	for i := 0; i+n <= len(ref); i++ {
		refCounts[ngramKey(ref[i:i+n])]++
	}

	hypCounts := make(map[string]int, total)
	for i := 0; i+n <= len(hyp); i++ {
		hypCounts[ngramKey(hyp[i:i+n])]++
	}

	for gram, count := range hypCounts {
		matches += min(count, refCounts[gram])
	}
	return matches, total
}

func ngramKey(gram []string) string {
	return strings.Join(gram, "\x1f")
}

func brevityPenalty(hypLen, refLen int) float64 {
	if hypLen >= refLen || hypLen == 0 {
		return 1.0
	}
	return math.Exp(1.0 - float64(refLen)/float64(hypLen))
}
