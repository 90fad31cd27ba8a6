package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facekit/conifer/sample"
	"github.com/facekit/conifer/split"
)

// offsetSample carries only a displacement target, which is all the
// fitter reads.
type offsetSample []float64

func (offsetSample) EvalTest(*split.Test) (float64, error) { return 0, nil }

func (s offsetSample) Offset() []float64 { return s }

func TestFitEmptySamples(t *testing.T) {
	leaf, err := Fitter{}.Fit(nil)

	require.NoError(t, err)
	assert.Equal(t, 0, leaf.Patches)
	assert.Nil(t, leaf.Offset)
	assert.Equal(t, 0.0, leaf.Variance)
	assert.Equal(t, 0.0, leaf.Prob, "An empty vote should carry no confidence")
}

func TestFitSingleSample(t *testing.T) {
	leaf, err := Fitter{}.Fit([]sample.Sample{offsetSample{1, 2}})

	require.NoError(t, err)
	assert.Equal(t, 1, leaf.Patches)
	assert.Equal(t, []float64{1, 2}, leaf.Offset)
	assert.Equal(t, 0.0, leaf.Variance, "A single sample has no scatter")
	assert.Equal(t, 1.0, leaf.Prob, "A single sample is always within its own radius")
}

func TestFitComputesMeanScatterAndConfidence(t *testing.T) {
	samples := []sample.Sample{
		offsetSample{0, 0},
		offsetSample{0, 0},
		offsetSample{0, 4},
	}

	leaf, err := Fitter{}.Fit(samples)

	require.NoError(t, err)
	assert.Equal(t, 3, leaf.Patches)
	require.Len(t, leaf.Offset, 2)
	assert.InDelta(t, 0.0, leaf.Offset[0], 1e-12)
	assert.InDelta(t, 4.0/3.0, leaf.Offset[1], 1e-12)
	assert.InDelta(t, 16.0/3.0, leaf.Variance, 1e-12, "Scatter should sum the per-dimension sample variances")
	assert.InDelta(t, 2.0/3.0, leaf.Prob, 1e-12, "Only the two clustered samples fall within one standard deviation")
}

func TestFitRejectsMixedDimensions(t *testing.T) {
	samples := []sample.Sample{
		offsetSample{1},
		offsetSample{1, 2},
	}

	_, err := Fitter{}.Fit(samples)

	assert.Error(t, err, "Samples with different offset dimensions cannot share a leaf")
}
