package optimization

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpace(t *testing.T) *Space {
	t.Helper()
	s, err := NewSpace(
		Param{Name: "cpu", Lower: 0.1, Upper: 2.0, Kind: Continuous},
		Param{Name: "memory_mb", Lower: 256, Upper: 4096, Kind: Continuous},
		Param{Name: "replicas", Lower: 1, Upper: 10, Kind: Integer},
		Param{Name: "parallel_jobs", Lower: 1, Upper: 5, Kind: Integer},
	)
	require.NoError(t, err)
	return s
}

func TestNewSpaceValidation(t *testing.T) {
	tests := []struct {
		name    string
		params  []Param
		wantErr bool
	}{
		{
			name:    "empty space",
			params:  nil,
			wantErr: true,
		},
		{
			name:    "inverted bounds",
			params:  []Param{{Name: "cpu", Lower: 2.0, Upper: 0.1}},
			wantErr: true,
		},
		{
			name:    "integer range without integers",
			params:  []Param{{Name: "replicas", Lower: 1.2, Upper: 1.8, Kind: Integer}},
			wantErr: true,
		},
		{
			name:    "degenerate but valid",
			params:  []Param{{Name: "replicas", Lower: 3, Upper: 3, Kind: Integer}},
			wantErr: false,
		},
		{
			name: "valid mixed space",
			params: []Param{
				{Name: "cpu", Lower: 0.1, Upper: 2.0},
				{Name: "replicas", Lower: 1, Upper: 10, Kind: Integer},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSpace(tt.params...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSampleStaysInBounds(t *testing.T) {
	s := testSpace(t)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		values := s.Sample(rng)
		require.Len(t, values, s.Dim())
		for j, p := range s.Params() {
			assert.GreaterOrEqual(t, values[j], p.Lower)
			assert.LessOrEqual(t, values[j], p.Upper)
			if p.Kind == Integer {
				assert.Equal(t, values[j], float64(int(values[j])), "integer dimension %d", j)
			}
		}
	}
}

func TestClampRoundingRule(t *testing.T) {
	s, err := NewSpace(Param{Name: "n", Lower: -10, Upper: 10, Kind: Integer})
	require.NoError(t, err)

	// Halves round away from zero: 2.5 up to 3, -2.5 down to -3.
	tests := []struct {
		in   float64
		want float64
	}{
		{2.4, 2},
		{2.5, 3},
		{3.5, 4},
		{-2.5, -3},
		{-2.4, -2},
		{0.49, 0},
	}
	for _, tt := range tests {
		got := s.Clamp([]float64{tt.in})
		assert.Equal(t, tt.want, got[0], "clamp(%v)", tt.in)
	}
}

func TestClampTotalAndIdempotent(t *testing.T) {
	s := testSpace(t)

	inputs := [][]float64{
		{0.5, 1000, 3, 2},
		{-100, 1e9, 10.4, 0.2},
		{2.5, 255.9, 5.5, 4.5},
		{0, 0, 0, 0},
	}
	for _, in := range inputs {
		once := s.Clamp(in)
		twice := s.Clamp(once)
		assert.Equal(t, once, twice, "clamp must be idempotent for %v", in)

		for j, p := range s.Params() {
			assert.GreaterOrEqual(t, once[j], p.Lower)
			assert.LessOrEqual(t, once[j], p.Upper)
		}
	}
}

func TestClipDoesNotRound(t *testing.T) {
	s := testSpace(t)
	got := s.Clip([]float64{5.0, 100, 3.7, 9.9})
	assert.Equal(t, []float64{2.0, 256, 3.7, 5}, got)
}
