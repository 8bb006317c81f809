// Package optimization contains the search-space model and the engine
// contracts shared by the differential-evolution and local-perturbation
// optimizers.
package optimization

import (
	"fmt"
	"math"
	"math/rand"
)

// Kind tags a parameter dimension as continuous or integer-valued.
type Kind int

const (
	Continuous Kind = iota
	Integer
)

// Param describes one tunable dimension of the search space.
type Param struct {
	Name  string
	Lower float64
	Upper float64
	Kind  Kind
}

// Space is an ordered, immutable set of parameter descriptors. It is built
// once at run start; malformed bounds are a configuration error and fail
// here, before any evaluation happens.
type Space struct {
	params []Param
}

// NewSpace validates the descriptors and returns the search space.
func NewSpace(params ...Param) (*Space, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("search space needs at least one parameter")
	}
	for i, p := range params {
		if p.Lower > p.Upper {
			return nil, fmt.Errorf("parameter %q (index %d): lower bound %v exceeds upper bound %v",
				p.Name, i, p.Lower, p.Upper)
		}
		if p.Kind == Integer && math.Ceil(p.Lower) > math.Floor(p.Upper) {
			return nil, fmt.Errorf("parameter %q (index %d): no integer in range [%v, %v]",
				p.Name, i, p.Lower, p.Upper)
		}
	}
	s := &Space{params: make([]Param, len(params))}
	copy(s.params, params)
	return s, nil
}

// Dim returns the number of dimensions.
func (s *Space) Dim() int { return len(s.params) }

// Params returns a copy of the parameter descriptors.
func (s *Space) Params() []Param {
	out := make([]Param, len(s.params))
	copy(out, s.params)
	return out
}

// Sample draws one value vector with each dimension uniform in its bounds.
// Integer dimensions are drawn as a uniform integer over the inclusive range.
func (s *Space) Sample(rng *rand.Rand) []float64 {
	values := make([]float64, len(s.params))
	for i, p := range s.params {
		switch p.Kind {
		case Integer:
			lo, hi := int(math.Ceil(p.Lower)), int(math.Floor(p.Upper))
			values[i] = float64(lo + rng.Intn(hi-lo+1))
		default:
			values[i] = p.Lower + rng.Float64()*(p.Upper-p.Lower)
		}
	}
	return values
}

// Clip returns a copy of values with every element clipped into its bounds.
// Integer dimensions are not rounded; see Clamp.
func (s *Space) Clip(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, p := range s.params {
		out[i] = math.Max(p.Lower, math.Min(values[i], p.Upper))
	}
	return out
}

// Clamp returns a copy of values clipped into bounds with integer dimensions
// rounded to the nearest integer. Halves round away from zero (math.Round),
// so 2.5 becomes 3. Rounded values are kept inside the integer sub-range of
// the bounds, so Clamp is total and idempotent even for fractional bounds.
func (s *Space) Clamp(values []float64) []float64 {
	out := s.Clip(values)
	for i, p := range s.params {
		if p.Kind == Integer {
			v := math.Round(out[i])
			v = math.Max(math.Ceil(p.Lower), math.Min(v, math.Floor(p.Upper)))
			out[i] = v
		}
	}
	return out
}
