package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipleK_MatchesScalarCalls(t *testing.T) {
	c := mustNew(t,
		[][]string{{"a.b", "a.c", "x"}, {"x.y", "z.w"}},
		[][]string{{"a.b", "x"}, {"z.w"}},
	)

	bundle, err := c.MultipleK([]int{3})
	require.NoError(t, err)
	require.Equal(t, []int{3}, bundle.Ks)

	s, err := c.SuccessAt(3)
	require.NoError(t, err)
	p, err := c.PrecisionAt(3)
	require.NoError(t, err)
	r, err := c.RecallAt(3)
	require.NoError(t, err)
	n, err := c.NDCGAt(3)
	require.NoError(t, err)

	assert.Equal(t, s, bundle.Success[3])
	assert.Equal(t, p, bundle.Precision[3])
	assert.Equal(t, r, bundle.Recall[3])
	assert.Equal(t, n, bundle.NDCG[3])

	assert.Equal(t, c.MRR(), bundle.MRR)
	assert.Equal(t, c.MAP(), bundle.MAP)
	assert.Equal(t, c.BLEU(), bundle.BLEU)
}

func TestMultipleK_InvalidKFailsWholeCall(t *testing.T) {
	c := mustNew(t, [][]string{{"a"}}, [][]string{{"a"}})

	bundle, err := c.MultipleK([]int{0, 3})
	assert.Nil(t, bundle)
	assert.ErrorIs(t, err, ErrInvalidK)

	bundle, err = c.MultipleK([]int{1, -2})
	assert.Nil(t, bundle)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestMultipleK_PreservesOrderAndDuplicates(t *testing.T) {
	c := mustNew(t,
		[][]string{{"a", "b"}},
		[][]string{{"b"}},
	)

	bundle, err := c.MultipleK([]int{5, 1, 5})
	require.NoError(t, err)

	assert.Equal(t, []int{5, 1, 5}, bundle.Ks)
	assert.Len(t, bundle.Recall, 2) // duplicate cutoff collapses in the map
	assert.InDelta(t, 1.0, bundle.Recall[5], 1e-9)
	assert.InDelta(t, 0.0, bundle.Recall[1], 1e-9)
}

func TestMultipleK_EmptyCalculator(t *testing.T) {
	c := mustNew(t, [][]string{}, [][]string{})

	bundle, err := c.MultipleK([]int{1, 5, 10})
	require.NoError(t, err)

	for _, k := range bundle.Ks {
		assert.Equal(t, 0.0, bundle.Success[k])
		assert.Equal(t, 0.0, bundle.Precision[k])
		assert.Equal(t, 0.0, bundle.Recall[k])
		assert.Equal(t, 0.0, bundle.NDCG[k])
	}
	assert.Equal(t, 0.0, bundle.MRR)
}

func TestCalculator_ConcurrentReads(t *testing.T) {
	c := mustNew(t,
		[][]string{{"a", "b", "c"}, {"x", "y"}},
		[][]string{{"b"}, {"y"}},
	)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				_, _ = c.MultipleK([]int{1, 3, 5})
				_ = c.MRR()
				_ = c.BLEU()
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
