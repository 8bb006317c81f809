package optimization

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(score float64, values ...float64) *Candidate {
	return &Candidate{Values: values, Score: score}
}

func TestNewPopulationSize(t *testing.T) {
	s := testSpace(t)
	pop := NewPopulation(15, s, rand.New(rand.NewSource(1)))
	assert.Equal(t, 15, pop.Len())
	for _, c := range pop.Members() {
		assert.False(t, c.Scored())
		assert.Len(t, c.Values, s.Dim())
	}
}

func TestBest(t *testing.T) {
	pop := &Population{members: []*Candidate{
		scored(3.0, 1),
		scored(1.5, 2),
		scored(2.0, 3),
	}}
	assert.Equal(t, 1.5, pop.Best().Score)
}

func TestPickDistinct(t *testing.T) {
	s := testSpace(t)
	rng := rand.New(rand.NewSource(7))
	pop := NewPopulation(15, s, rng)

	for trial := 0; trial < 100; trial++ {
		exclude := rng.Intn(pop.Len())
		picks := pop.PickDistinct(rng, exclude, 3)
		require.Len(t, picks, 3)

		seen := map[int]bool{exclude: true}
		for _, idx := range picks {
			assert.False(t, seen[idx], "index %d picked twice or equals excluded %d", idx, exclude)
			seen[idx] = true
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, pop.Len())
		}
	}
}

func TestTruncateKeepsOnlyBest(t *testing.T) {
	parents := []*Candidate{scored(4, 1), scored(1, 2), scored(3, 3), scored(2, 4)}
	offspring := []*Candidate{scored(0.5, 5), scored(5, 6), scored(2.5, 7), scored(3.5, 8)}

	pop := &Population{members: append([]*Candidate{}, parents...)}
	pop.Merge(offspring...)
	require.Equal(t, 8, pop.Len())

	pop.Truncate(4)
	require.Equal(t, 4, pop.Len())

	keptWorst := math.Inf(-1)
	kept := map[*Candidate]bool{}
	for _, c := range pop.Members() {
		kept[c] = true
		keptWorst = math.Max(keptWorst, c.Score)
	}
	assert.Equal(t, []float64{0.5, 1, 2, 2.5}, scores(pop))

	// Elitism: the worst survivor is no worse than any discarded candidate.
	for _, c := range append(parents, offspring...) {
		if !kept[c] {
			assert.GreaterOrEqual(t, c.Score, keptWorst)
		}
	}
}

// Replace swaps a member in place, so within the same selection sweep a
// just-accepted candidate is immediately eligible as a donor for the
// remaining members.
func TestReplaceVisibleToLaterDonorPicks(t *testing.T) {
	pop := &Population{members: []*Candidate{
		scored(4, 1), scored(3, 2), scored(2, 3), scored(1, 4),
	}}

	accepted := scored(0.5, 9)
	pop.Replace(1, accepted)
	assert.Same(t, accepted, pop.At(1))
	assert.Equal(t, 4, pop.Len())

	// Four members minus the excluded target leaves exactly three donors,
	// so the pick must include the just-replaced slot.
	rng := rand.New(rand.NewSource(5))
	picks := pop.PickDistinct(rng, 3, 3)
	require.Len(t, picks, 3)
	sawReplaced := false
	for _, idx := range picks {
		if pop.At(idx) == accepted {
			sawReplaced = true
		}
	}
	assert.True(t, sawReplaced, "replaced member not offered as a donor")
}

func TestCandidateClone(t *testing.T) {
	c := scored(1.0, 1, 2, 3)
	clone := c.Clone()
	clone.Values[0] = 99
	clone.Score = 99
	assert.Equal(t, 1.0, c.Values[0])
	assert.Equal(t, 1.0, c.Score)
}

func scores(p *Population) []float64 {
	out := make([]float64, p.Len())
	for i, c := range p.Members() {
		out[i] = c.Score
	}
	return out
}
