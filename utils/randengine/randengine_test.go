package randengine_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/randengine"
)

func TestSameSeedSameSequence(t *testing.T) {
	a := randengine.New(42)
	b := randengine.New(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
	assert.Equal(t, a.Permutation(10), b.Permutation(10))
}

func TestPTrueBounds(t *testing.T) {
	e := randengine.New(1)
	for i := 0; i < 100; i++ {
		assert.False(t, e.PTrue(0))
		assert.True(t, e.PTrue(1))
	}
}

func TestPermutationIsComplete(t *testing.T) {
	e := randengine.New(7)
	p := e.Permutation(6)
	sort.Ints(p)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, p)
}
