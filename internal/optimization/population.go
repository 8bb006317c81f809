package optimization

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Population is an ordered, index-addressed set of candidates. Engines
// mutate it in place; the in-place update during a differential-evolution
// sweep is deliberate, so the backing storage is a plain slice rather than
// an immutable snapshot.
type Population struct {
	members []*Candidate
}

// NewPopulation draws n candidates from the space.
func NewPopulation(n int, space *Space, rng *rand.Rand) *Population {
	members := make([]*Candidate, n)
	for i := range members {
		members[i] = NewCandidate(space.Sample(rng))
	}
	return &Population{members: members}
}

// Len returns the current population size.
func (p *Population) Len() int { return len(p.members) }

// At returns the candidate at index i.
func (p *Population) At(i int) *Candidate { return p.members[i] }

// Replace swaps in a new candidate at index i.
func (p *Population) Replace(i int, c *Candidate) { p.members[i] = c }

// Members returns the backing slice. Callers must not resize it.
func (p *Population) Members() []*Candidate { return p.members }

// Best returns the member with the lowest score. All members must be scored.
func (p *Population) Best() *Candidate {
	scores := make([]float64, len(p.members))
	for i, c := range p.members {
		scores[i] = c.Score
	}
	return p.members[floats.MinIdx(scores)]
}

// PickDistinct draws k distinct indices, all different from exclude, uniformly
// without replacement. The population must hold more than k members.
func (p *Population) PickDistinct(rng *rand.Rand, exclude, k int) []int {
	pool := make([]int, 0, len(p.members)-1)
	for i := range p.members {
		if i != exclude {
			pool = append(pool, i)
		}
	}
	rng.Shuffle(len(pool), func(a, b int) { pool[a], pool[b] = pool[b], pool[a] })
	return pool[:k]
}

// Merge appends candidates to the population.
func (p *Population) Merge(cs ...*Candidate) {
	p.members = append(p.members, cs...)
}

// Truncate sorts members ascending by score and keeps the best n. Parents and
// offspring compete equally; only the best survive.
func (p *Population) Truncate(n int) {
	sort.SliceStable(p.members, func(a, b int) bool {
		return p.members[a].Score < p.members[b].Score
	})
	if len(p.members) > n {
		p.members = p.members[:n]
	}
}
