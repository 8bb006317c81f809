package optimization

import "math"

// Candidate is one point in the search space together with its evaluated
// score. Score is NaN until the candidate has been evaluated.
type Candidate struct {
	Values []float64
	Score  float64
}

// NewCandidate wraps a value vector in an unscored candidate.
func NewCandidate(values []float64) *Candidate {
	return &Candidate{Values: values, Score: math.NaN()}
}

// Scored reports whether the candidate has been evaluated.
func (c *Candidate) Scored() bool { return !math.IsNaN(c.Score) }

// Clone returns an independent copy of the candidate. Engines snapshot the
// global best with this so later in-place population updates cannot touch it.
func (c *Candidate) Clone() *Candidate {
	values := make([]float64, len(c.Values))
	copy(values, c.Values)
	return &Candidate{Values: values, Score: c.Score}
}
