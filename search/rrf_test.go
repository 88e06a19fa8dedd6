package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseRRF_AgreementWins(t *testing.T) {
	fused := FuseRRF([][]string{
		{"java.util.List.add", "java.util.Map.put", "java.io.File.exists"},
		{"java.util.Map.put", "java.util.List.add"},
	}, RRFOptions{})

	require.NotEmpty(t, fused)
	// Both lists rank add/put near the top; File.exists appears once, last.
	assert.Equal(t, "java.io.File.exists", fused[len(fused)-1].Name)

	names := make(map[string]bool)
	for _, h := range fused {
		names[h.Name] = true
	}
	assert.Len(t, names, 3)
}

func TestFuseRRF_Weights(t *testing.T) {
	fused := FuseRRF([][]string{
		{"a.B.c"},
		{"x.Y.z"},
	}, RRFOptions{Weights: []float32{3.0, 1.0}})

	require.Len(t, fused, 2)
	assert.Equal(t, "a.B.c", fused[0].Name)
	assert.Greater(t, fused[0].Score, fused[1].Score)
}

func TestFuseRRF_DuplicatesKeepBestRank(t *testing.T) {
	single := FuseRRF([][]string{{"a.B.c"}}, RRFOptions{K: 10})
	duped := FuseRRF([][]string{{"a.B.c", "a.B.c", "a.B.c"}}, RRFOptions{K: 10})

	require.Len(t, duped, 1)
	assert.Equal(t, single[0].Score, duped[0].Score)
}

func TestFuseRRF_DeterministicTieBreak(t *testing.T) {
	fused := FuseRRF([][]string{
		{"b.B.b"},
		{"a.A.a"},
	}, RRFOptions{})

	require.Len(t, fused, 2)
	assert.Equal(t, "a.A.a", fused[0].Name)
}

func TestFuseRRF_Empty(t *testing.T) {
	assert.Empty(t, FuseRRF(nil, RRFOptions{}))
	assert.Empty(t, FuseRRF([][]string{{}, {}}, RRFOptions{}))
}

func TestKNN_Validation(t *testing.T) {
	q := Query{Schema: "public", Model: "m", QueryVec: []float32{1}, Limit: 5}

	_, err := KNN(t.Context(), nil, q)
	assert.Error(t, err)
}
