package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNew(t *testing.T, cands, refs [][]string) *Calculator {
	t.Helper()
	c, err := New(cands, refs)
	require.NoError(t, err)
	return c
}

func TestNew_ShapeMismatch(t *testing.T) {
	_, err := New(
		[][]string{{"a"}, {"b"}},
		[][]string{{"a"}},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestNew_EmptyIsValid(t *testing.T) {
	c := mustNew(t, [][]string{}, [][]string{})
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0.0, c.MRR())
	assert.Equal(t, 0.0, c.MAP())
	assert.Equal(t, 0.0, c.BLEU())

	s, err := c.SuccessAt(5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)
}

func TestNew_ClonesInput(t *testing.T) {
	cands := [][]string{{"a", "b"}}
	refs := [][]string{{"a"}}
	c := mustNew(t, cands, refs)

	cands[0][0] = "mutated"
	p, err := c.At(0)
	require.NoError(t, err)
	assert.Equal(t, "a", p.Candidates[0])
}

func TestSequenceProtocol(t *testing.T) {
	c := mustNew(t,
		[][]string{{"a.b", "a.c"}, {"x.y", "z.w"}},
		[][]string{{"a.b"}, {"z.w"}},
	)

	assert.Equal(t, 2, c.Len())

	p0, err := c.At(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.b", "a.c"}, p0.Candidates)

	_, err = c.At(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = c.At(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	pairs := c.Pairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, []string{"z.w"}, pairs[1].References)

	assert.True(t, c.Contains(Pair{Candidates: []string{"x.y", "z.w"}, References: []string{"z.w"}}))
	assert.False(t, c.Contains(Pair{Candidates: []string{"z.w", "x.y"}, References: []string{"z.w"}}))
	assert.False(t, c.Contains(Pair{Candidates: []string{"x.y", "z.w"}, References: []string{"x.y"}}))
}

func TestMRR(t *testing.T) {
	tests := []struct {
		name     string
		cands    [][]string
		refs     [][]string
		expected float64
	}{
		{
			name:     "worked example ranks 1 and 2",
			cands:    [][]string{{"a.b", "a.c"}, {"x.y", "z.w"}},
			refs:     [][]string{{"a.b"}, {"z.w"}},
			expected: 0.75, // (1/1 + 1/2) / 2
		},
		{
			name:     "first candidate always correct",
			cands:    [][]string{{"a", "x"}, {"b", "y"}},
			refs:     [][]string{{"a"}, {"b"}},
			expected: 1.0,
		},
		{
			name:     "no pair matches",
			cands:    [][]string{{"x"}, {"y"}},
			refs:     [][]string{{"a"}, {"b"}},
			expected: 0.0,
		},
		{
			name:     "empty candidate list contributes zero",
			cands:    [][]string{{}, {"b"}},
			refs:     [][]string{{"a"}, {"b"}},
			expected: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustNew(t, tt.cands, tt.refs)
			assert.InDelta(t, tt.expected, c.MRR(), 1e-9)
		})
	}
}

func TestMAP(t *testing.T) {
	tests := []struct {
		name     string
		cands    [][]string
		refs     [][]string
		expected float64
	}{
		{
			name:     "single pair two hits",
			cands:    [][]string{{"a", "b", "c"}},
			refs:     [][]string{{"a", "c"}},
			expected: (1.0/1.0 + 2.0/3.0) / 2.0,
		},
		{
			name:     "no matches",
			cands:    [][]string{{"x", "y"}},
			refs:     [][]string{{"a"}},
			expected: 0.0,
		},
		{
			name:     "empty references contribute zero",
			cands:    [][]string{{"a"}, {"b"}},
			refs:     [][]string{{}, {"b"}},
			expected: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustNew(t, tt.cands, tt.refs)
			assert.InDelta(t, tt.expected, c.MAP(), 1e-9)
		})
	}
}

func TestSuccessAt(t *testing.T) {
	c := mustNew(t,
		[][]string{{"a.b", "a.c"}, {"x.y", "z.w"}},
		[][]string{{"a.b"}, {"z.w"}},
	)

	s1, err := c.SuccessAt(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s1, 1e-9)

	s2, err := c.SuccessAt(2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s2, 1e-9)

	_, err = c.SuccessAt(0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestPrecisionAt_DilutesShortLists(t *testing.T) {
	// One correct candidate, k=5: the four missing slots count as misses.
	c := mustNew(t, [][]string{{"a"}}, [][]string{{"a"}})

	p, err := c.PrecisionAt(5)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, p, 1e-9)
}

func TestRecallAt(t *testing.T) {
	c := mustNew(t,
		[][]string{{"a", "b", "c"}},
		[][]string{{"a", "c"}},
	)

	r1, err := c.RecallAt(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r1, 1e-9)

	r3, err := c.RecallAt(3)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r3, 1e-9)
}

func TestRecallAt_NonDecreasingInK(t *testing.T) {
	c := mustNew(t,
		[][]string{{"a", "x", "b", "c"}, {"q", "r", "s"}},
		[][]string{{"a", "b", "c"}, {"s"}},
	)

	prev := 0.0
	for k := 1; k <= 6; k++ {
		r, err := c.RecallAt(k)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, r, prev, "recall@%d regressed", k)
		prev = r
	}
}

func TestRecallAt_EmptyReferences(t *testing.T) {
	// Spec scenario: one pair with an empty reference set is scored 0, not an
	// error, and still counts in the mean.
	c := mustNew(t,
		[][]string{{"a.b"}, {"z.w"}},
		[][]string{{}, {"z.w"}},
	)

	r, err := c.RecallAt(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r, 1e-9)

	n, err := c.NDCGAt(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, n, 1e-9)
}

func TestNDCGAt(t *testing.T) {
	t.Run("perfect top ranks in any order", func(t *testing.T) {
		c := mustNew(t,
			[][]string{{"b", "a", "x"}, {"p", "q"}},
			[][]string{{"a", "b"}, {"q", "p"}},
		)
		n, err := c.NDCGAt(3)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, n, 1e-9)
	})

	t.Run("late match is discounted", func(t *testing.T) {
		c := mustNew(t, [][]string{{"x", "a"}}, [][]string{{"a"}})
		n, err := c.NDCGAt(2)
		require.NoError(t, err)
		// DCG = 1/log2(3), IDCG = 1/log2(2)
		assert.InDelta(t, 0.63093, n, 1e-4)
	})

	t.Run("invalid k", func(t *testing.T) {
		c := mustNew(t, [][]string{{"a"}}, [][]string{{"a"}})
		_, err := c.NDCGAt(-1)
		assert.ErrorIs(t, err, ErrInvalidK)
	})
}

func TestDuplicateCandidates_StayInRange(t *testing.T) {
	// Duplicated hits must not push any normalized metric above 1.
	c := mustNew(t,
		[][]string{{"a", "a", "a"}},
		[][]string{{"a"}},
	)

	assert.InDelta(t, 1.0, c.MRR(), 1e-9)

	r, err := c.RecallAt(3)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-9)

	n, err := c.NDCGAt(3)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 1.0)

	p, err := c.PrecisionAt(3)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, p, 1e-9)
}

func TestMetrics_AllWithinUnitInterval(t *testing.T) {
	c := mustNew(t,
		[][]string{
			{"a", "b", "a", "c"},
			{},
			{"x", "y"},
			{"q.r", "q.s", "q.t"},
		},
		[][]string{
			{"b", "c"},
			{"a"},
			{},
			{"q.t", "q.r"},
		},
	)

	check := func(name string, v float64) {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}

	check("MRR", c.MRR())
	check("MAP", c.MAP())
	check("BLEU", c.BLEU())
	for k := 1; k <= 5; k++ {
		s, err := c.SuccessAt(k)
		require.NoError(t, err)
		check("Success", s)
		p, err := c.PrecisionAt(k)
		require.NoError(t, err)
		check("Precision", p)
		r, err := c.RecallAt(k)
		require.NoError(t, err)
		check("Recall", r)
		n, err := c.NDCGAt(k)
		require.NoError(t, err)
		check("NDCG", n)
	}
}

func TestCheckK_Sentinel(t *testing.T) {
	err := checkK(0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidK))
	assert.NoError(t, checkK(1))
}
