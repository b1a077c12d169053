package inference

import (
	"fmt"
	"math"

	"github.com/okian/pitwall/internal/domain/types"
)

// forest is an immutable tree ensemble. Every tree yields a leaf vector of width.
type forest struct {
	trees     [][]Node
	width     int
	nFeatures int
}

// newForest checks that every tree is a well-formed, acyclic binary tree over
// nFeatures inputs. Children must come after their parent, so evaluation terminates.
func newForest(specs []TreeSpec, nFeatures, width int) (*forest, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: ensemble has no trees", types.ErrModelUnavailable)
	}
	f := &forest{trees: make([][]Node, 0, len(specs)), width: width, nFeatures: nFeatures}
	for ti, spec := range specs {
		nodes := spec.Nodes
		if len(nodes) == 0 {
			return nil, fmt.Errorf("%w: tree %d has no nodes", types.ErrModelUnavailable, ti)
		}
		for ni, n := range nodes {
			if n.Left == -1 {
				if len(n.Value) != width {
					return nil, fmt.Errorf("%w: tree %d node %d: leaf has %d values, want %d",
						types.ErrModelUnavailable, ti, ni, len(n.Value), width)
				}
				continue
			}
			if n.Left <= ni || n.Right <= ni || n.Left >= len(nodes) || n.Right >= len(nodes) {
				return nil, fmt.Errorf("%w: tree %d node %d: children (%d,%d) out of range",
					types.ErrModelUnavailable, ti, ni, n.Left, n.Right)
			}
			if n.Feature < 0 || n.Feature >= nFeatures {
				return nil, fmt.Errorf("%w: tree %d node %d: feature index %d outside %d inputs",
					types.ErrModelUnavailable, ti, ni, n.Feature, nFeatures)
			}
			if math.IsNaN(n.Threshold) || math.IsInf(n.Threshold, 0) {
				return nil, fmt.Errorf("%w: tree %d node %d: non-finite threshold", types.ErrModelUnavailable, ti, ni)
			}
		}
		f.trees = append(f.trees, nodes)
	}
	return f, nil
}

// leaf walks one tree for x and returns the leaf values.
func leaf(nodes []Node, x []float64) []float64 {
	i := 0
	for {
		n := nodes[i]
		if n.Left == -1 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// regress returns each tree's scalar output.
func (f *forest) regress(x []float64) []float64 {
	out := make([]float64, len(f.trees))
	for i, t := range f.trees {
		out[i] = leaf(t, x)[0]
	}
	return out
}

// proba averages the normalized class distributions of every tree.
func (f *forest) proba(x []float64) []float64 {
	avg := make([]float64, f.width)
	for _, t := range f.trees {
		v := leaf(t, x)
		sum := 0.0
		for _, p := range v {
			if p > 0 {
				sum += p
			}
		}
		for c, p := range v {
			switch {
			case sum <= 0:
				avg[c] += 1 / float64(f.width)
			case p > 0:
				avg[c] += p / sum
			}
		}
	}
	n := float64(len(f.trees))
	for c := range avg {
		avg[c] = clamp01(avg[c] / n)
	}
	return avg
}

// confidenceEpsilon keeps the ratio finite when the ensemble mean is zero.
const confidenceEpsilon = 1e-6

// EnsembleConfidence scores agreement between estimator outputs:
// clamp(1 - std(outputs) / (|mean(outputs)| + eps), 0, 1). Lower spread gives
// higher confidence. It is a heuristic, not a calibrated interval.
func EnsembleConfidence(outputs []float64) float64 {
	if len(outputs) == 0 {
		return 0
	}
	mean := meanOf(outputs)
	variance := 0.0
	for _, v := range outputs {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(outputs)))
	return clamp01(1 - std/(math.Abs(mean)+confidenceEpsilon))
}

func meanOf(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
