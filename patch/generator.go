package patch

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/facekit/conifer/sample"
	"github.com/facekit/conifer/split"
)

/*
Generator proposes randomized two-rectangle tests for image patches
and scores them by how much they reduce the scatter of the
displacement targets, the criterion facial feature forests regress
on. It also owns the partition rule trees route with: a sample goes
left when its response falls below threshold plus margin.
*/
type Generator struct {
	// Channels is the number of feature channels tests may select
	// from. It must match the channels of the patches being split.
	Channels int
	// HoldoutEvery reserves every n-th sample, by response order, to
	// estimate a candidate's out-of-bag error instead of its gain.
	// Zero disables the estimate.
	HoldoutEvery int
}

// NewGenerator returns a Generator proposing tests over the given
// number of feature channels, with a five-fold out-of-bag holdout.
func NewGenerator(channels int) *Generator {
	return &Generator{Channels: channels, HoldoutEvery: 5}
}

/*
Generate fills dst with one scored candidate per element. Fewer than
two samples cannot be separated, and neither can samples whose
responses to a test all coincide; both cases keep the sentinel score
so selection passes them over. The mode selects the margin regime:
modes up to 50 cut exactly at the threshold, higher modes add a random
band that routes borderline responses left.
*/
func (g *Generator) Generate(dst []split.Split, samples []sample.Sample, patchSize, depth, mode int, rng *rand.Rand) error {
	if g.Channels < 1 {
		return fmt.Errorf("generating splits: generator has no feature channels")
	}
	if patchSize < 1 {
		return fmt.Errorf("generating splits: patch size %d is empty", patchSize)
	}
	for i := range dst {
		dst[i] = split.Split{Info: split.SentinelInfo, OOB: math.MaxFloat64}
	}
	if len(samples) < 2 {
		return nil
	}
	values := make([]float64, len(samples))
	for i := range dst {
		test := g.randomTest(patchSize, rng)
		lo, hi := math.MaxFloat64, -math.MaxFloat64
		for j, s := range samples {
			v, err := s.EvalTest(&test)
			if err != nil {
				return fmt.Errorf("scoring candidate %d: %v", i, err)
			}
			values[j] = v
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		threshold := values[rng.Intn(len(values))]
		margin := 0.0
		if mode > 50 {
			margin = rng.Float64() * (hi - lo) / 10
		}
		if lo == hi {
			continue
		}
		info, oob := g.score(samples, values, threshold+margin)
		dst[i] = split.Split{Info: info, OOB: oob, Threshold: threshold, Margin: margin, Test: test}
	}
	return nil
}

func (g *Generator) randomTest(patchSize int, rng *rand.Rand) split.Test {
	return split.Test{
		Channel: rng.Intn(g.Channels),
		A:       randomRect(patchSize, rng),
		B:       randomRect(patchSize, rng),
	}
}

func randomRect(patchSize int, rng *rand.Rand) split.Rect {
	w := 1 + rng.Intn(patchSize)
	h := 1 + rng.Intn(patchSize)
	return split.Rect{
		X: rng.Intn(patchSize - w + 1),
		Y: rng.Intn(patchSize - h + 1),
		W: w,
		H: h,
	}
}

// score rates a boundary by the drop in displacement scatter from the
// samples to their two sides, weighted by side population. The
// out-of-bag value is the weighted scatter of the held-out samples
// alone; with no holdout it mirrors the in-bag scatter.
func (g *Generator) score(samples []sample.Sample, values []float64, boundary float64) (info, oob float64) {
	var left, right, heldLeft, heldRight []sample.Sample
	for i, s := range samples {
		held := g.HoldoutEvery > 0 && i%g.HoldoutEvery == 0
		if values[i] < boundary {
			left = append(left, s)
			if held {
				heldLeft = append(heldLeft, s)
			}
		} else {
			right = append(right, s)
			if held {
				heldRight = append(heldRight, s)
			}
		}
	}
	weighted := weightedScatter(left, right)
	info = offsetScatter(samples) - weighted
	oob = weighted
	if len(heldLeft)+len(heldRight) > 0 {
		oob = weightedScatter(heldLeft, heldRight)
	}
	return info, oob
}

func weightedScatter(left, right []sample.Sample) float64 {
	n := float64(len(left) + len(right))
	if n == 0 {
		return 0
	}
	return (float64(len(left))*offsetScatter(left) + float64(len(right))*offsetScatter(right)) / n
}

// offsetScatter measures how spread the displacement targets of a
// sample set are, as the sum of the per-dimension variances. Sets of
// fewer than two samples have no spread.
func offsetScatter(samples []sample.Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	dims := len(samples[0].Offset())
	column := make([]float64, len(samples))
	var scatter float64
	for d := 0; d < dims; d++ {
		for i, s := range samples {
			column[i] = s.Offset()[d]
		}
		scatter += stat.Variance(column, nil)
	}
	return scatter
}

/*
SplitSamples partitions samples around threshold plus margin, walking
the responses in ascending order: every sample responding below the
boundary goes left, the rest go right. Both sides keep the response
order, which the threshold draws of later searches depend on.
*/
func (g *Generator) SplitSamples(samples []sample.Sample, byValue []split.ValueIndex, threshold, margin float64) (left, right []sample.Sample, err error) {
	if len(byValue) != len(samples) {
		return nil, nil, fmt.Errorf("partitioning: %d responses for %d samples", len(byValue), len(samples))
	}
	boundary := threshold + margin
	for _, vi := range byValue {
		if vi.Index < 0 || vi.Index >= len(samples) {
			return nil, nil, fmt.Errorf("partitioning: response index %d outside %d samples", vi.Index, len(samples))
		}
		if vi.Value < boundary {
			left = append(left, samples[vi.Index])
		} else {
			right = append(right, samples[vi.Index])
		}
	}
	return left, right, nil
}
