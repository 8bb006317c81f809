// Package objective provides the cost adapters evaluated by the optimizer:
// a cheap deterministic formula and a live adapter that applies a candidate
// to a running deployment and scores it from sampled telemetry.
package objective

import "context"

// Func adapts a pure function to the optimizer's Objective contract. It is
// safe to call any number of times and has no side effects, so it carries no
// sequencing restriction.
type Func func(values []float64) float64

// Evaluate implements optimization.Objective.
func (f Func) Evaluate(_ context.Context, values []float64) float64 {
	return f(values)
}

// BuildCost is the synthetic pipeline cost model for formula mode. The value
// vector is (cpu cores, memory MB, replicas, parallel jobs): estimated build
// time plus a penalty for the resources held.
func BuildCost(values []float64) float64 {
	cpu, mem, rep := values[0], values[1], values[2]

	buildTime := 500/cpu + mem/500 + rep*1.5
	resourcePenalty := cpu*2 + mem/800

	return buildTime + resourcePenalty
}
