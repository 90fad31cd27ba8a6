/*
Package patch implements the image-patch samples facial feature
forests are trained on, together with the reference split generator
and leaf fitter working on them.
*/
package patch

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/facekit/conifer/split"
)

/*
Patch is a fixed-size window cut from a preprocessed face image: one
matrix per feature channel, plus the displacement from the patch to
the facial feature it was sampled around. Patches are immutable once
built, so trees may evaluate them from any number of goroutines.
*/
type Patch struct {
	channels []*mat.Dense
	offset   []float64
}

/*
New builds a patch from its feature channels and its displacement
target. At least one channel is required and all channels must share
the same dimensions.
*/
func New(channels []*mat.Dense, offset []float64) (*Patch, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("building patch: no channels")
	}
	rows, cols := channels[0].Dims()
	for i, ch := range channels[1:] {
		r, c := ch.Dims()
		if r != rows || c != cols {
			return nil, fmt.Errorf("building patch: channel %d is %dx%d while channel 0 is %dx%d", i+1, r, c, rows, cols)
		}
	}
	return &Patch{channels: channels, offset: offset}, nil
}

// Size returns the patch dimensions in pixels.
func (p *Patch) Size() (rows, cols int) {
	return p.channels[0].Dims()
}

// Channels returns the number of feature channels of the patch.
func (p *Patch) Channels() int {
	return len(p.channels)
}

// Offset returns the displacement from the patch to the feature point
// it was sampled around, as the regression target of training.
func (p *Patch) Offset() []float64 {
	return p.offset
}

/*
EvalTest answers a split test on this patch with the difference
between the mean intensities of the test's two rectangles on the
selected channel. Responses are deterministic, so a tree routes the
same patch the same way forever.
*/
func (p *Patch) EvalTest(t *split.Test) (float64, error) {
	if t.Channel < 0 || t.Channel >= len(p.channels) {
		return 0, fmt.Errorf("evaluating test: channel %d outside the %d patch channels", t.Channel, len(p.channels))
	}
	ch := p.channels[t.Channel]
	a, err := rectMean(ch, t.A)
	if err != nil {
		return 0, fmt.Errorf("evaluating test: %v", err)
	}
	b, err := rectMean(ch, t.B)
	if err != nil {
		return 0, fmt.Errorf("evaluating test: %v", err)
	}
	return a - b, nil
}

func rectMean(m *mat.Dense, r split.Rect) (float64, error) {
	rows, cols := m.Dims()
	if r.W < 1 || r.H < 1 || r.X < 0 || r.Y < 0 || r.X+r.W > cols || r.Y+r.H > rows {
		return 0, fmt.Errorf("rectangle %+v outside %dx%d patch", r, rows, cols)
	}
	area := m.Slice(r.Y, r.Y+r.H, r.X, r.X+r.W)
	return mat.Sum(area) / float64(r.W*r.H), nil
}
