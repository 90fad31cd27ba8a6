package patch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/facekit/conifer/sample"
	"github.com/facekit/conifer/tree"
)

/*
Fitter condenses the patches reaching a terminal node into the vote
the leaf will cast: how many patches support it, their mean
displacement, the scatter around that mean and the share of patches
within one standard deviation of it, which detectors use as the vote's
confidence.
*/
type Fitter struct{}

/*
Fit builds the leaf payload for the given samples. An empty sample
set, which a one-sided split can produce, yields an empty vote with
zero confidence; detectors simply ignore those.
*/
func (Fitter) Fit(samples []sample.Sample) (*tree.Leaf, error) {
	leaf := &tree.Leaf{Patches: len(samples)}
	if len(samples) == 0 {
		return leaf, nil
	}
	dims := len(samples[0].Offset())
	for i, s := range samples {
		if len(s.Offset()) != dims {
			return nil, fmt.Errorf("fitting leaf: sample %d has %d offset dimensions while sample 0 has %d", i, len(s.Offset()), dims)
		}
	}
	leaf.Offset = make([]float64, dims)
	column := make([]float64, len(samples))
	for d := 0; d < dims; d++ {
		for i, s := range samples {
			column[i] = s.Offset()[d]
		}
		leaf.Offset[d] = stat.Mean(column, nil)
		if len(samples) > 1 {
			leaf.Variance += stat.Variance(column, nil)
		}
	}
	radius := math.Sqrt(leaf.Variance)
	inside := 0
	for _, s := range samples {
		if floats.Distance(s.Offset(), leaf.Offset, 2) <= radius {
			inside++
		}
	}
	leaf.Prob = float64(inside) / float64(len(samples))
	return leaf, nil
}
