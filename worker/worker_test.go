package worker

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewValidation(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorContains(t, err, "task repo is required")
}

func TestWithDefaults(t *testing.T) {
	opts := (&Options{}).withDefaults()

	assert.Equal(t, 100, opts.BatchSize)
	assert.Equal(t, 30*time.Second, opts.LockAhead)
	assert.Equal(t, 2*time.Second, opts.PollEvery)
	assert.Equal(t, 10, opts.MaxAttempts)
	assert.NotNil(t, opts.Logger)

	custom := (&Options{BatchSize: 7, MaxAttempts: 3}).withDefaults()
	assert.Equal(t, 7, custom.BatchSize)
	assert.Equal(t, 3, custom.MaxAttempts)
}

func TestExpBackoff(t *testing.T) {
	base := 5 * time.Second
	max := 10 * time.Minute

	assert.Equal(t, 5*time.Second, expBackoff(base, 1, max))
	assert.Equal(t, 10*time.Second, expBackoff(base, 2, max))
	assert.Equal(t, 40*time.Second, expBackoff(base, 4, max))
	assert.Equal(t, max, expBackoff(base, 20, max))
	// Attempts below 1 behave like the first attempt.
	assert.Equal(t, 5*time.Second, expBackoff(base, 0, max))
}

func TestAddJitter(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := 8 * time.Second
	for range 100 {
		j := addJitter(rng, d)
		assert.GreaterOrEqual(t, j, d)
		assert.Less(t, j, d+d/4)
	}
	assert.Equal(t, time.Duration(0), addJitter(rng, 0))
}
