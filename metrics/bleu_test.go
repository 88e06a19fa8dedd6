package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentenceBLEU_ExactMatch(t *testing.T) {
	seq := []string{"list", "add", "remove", "size", "clear"}
	assert.InDelta(t, 1.0, sentenceBLEU(seq, seq), 1e-9)
}

func TestSentenceBLEU_EmptyHypothesis(t *testing.T) {
	assert.Equal(t, 0.0, sentenceBLEU(nil, []string{"a", "b"}))
}

func TestSentenceBLEU_NoOverlap(t *testing.T) {
	got := sentenceBLEU([]string{"x", "y", "z"}, []string{"a", "b", "c"})
	assert.Equal(t, 0.0, got)
}

func TestSentenceBLEU_DecreasesWithOverlap(t *testing.T) {
	ref := []string{"a", "b", "c", "d", "e"}

	full := sentenceBLEU([]string{"a", "b", "c", "d", "e"}, ref)
	most := sentenceBLEU([]string{"a", "b", "c", "d", "x"}, ref)
	some := sentenceBLEU([]string{"a", "b", "x", "y", "z"}, ref)

	assert.Greater(t, full, most)
	assert.Greater(t, most, some)
	assert.Greater(t, some, 0.0)
}

func TestSentenceBLEU_BrevityPenalty(t *testing.T) {
	ref := []string{"a", "b", "c", "d", "e", "f"}

	// A short prefix has perfect precision at every order but is penalized
	// for length.
	short := sentenceBLEU([]string{"a", "b", "c", "d"}, ref)
	long := sentenceBLEU([]string{"a", "b", "c", "d", "e", "f"}, ref)
	assert.Greater(t, long, short)
	assert.Greater(t, short, 0.0)
}

func TestBLEU_Aggregate(t *testing.T) {
	c := mustNew(t,
		[][]string{
			{"a", "b", "c", "d", "e"},
			{},
		},
		[][]string{
			{"a", "b", "c", "d", "e"},
			{"a"},
		},
	)

	// Pair 1 is an exact match (1.0), pair 2 has an empty hypothesis (0.0).
	assert.InDelta(t, 0.5, c.BLEU(), 1e-9)
}

func TestClippedNgramMatches(t *testing.T) {
	// "a" appears twice in hyp but only once in ref: clipped to 1.
	matches, total := clippedNgramMatches([]string{"a", "a", "b"}, []string{"a", "b"}, 1)
	require.Equal(t, 3, total)
	assert.Equal(t, 2, matches)

	matches, total = clippedNgramMatches([]string{"a", "b", "c"}, []string{"b", "c"}, 2)
	require.Equal(t, 2, total)
	assert.Equal(t, 1, matches)

	// Hypothesis shorter than the order yields no n-grams at all.
	matches, total = clippedNgramMatches([]string{"a"}, []string{"a", "b"}, 3)
	assert.Equal(t, 0, total)
	assert.Equal(t, 0, matches)
}
