package forest

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/facekit/conifer"
	"github.com/facekit/conifer/checkpoint"
	"github.com/facekit/conifer/param"
	"github.com/facekit/conifer/sample"
	"github.com/facekit/conifer/split"
	"github.com/facekit/conifer/tree"
)

type stubSample struct {
	value  float64
	offset []float64
}

func (s *stubSample) EvalTest(*split.Test) (float64, error) { return s.value, nil }

func (s *stubSample) Offset() []float64 { return s.offset }

// stubGenerator cuts at the median response and draws nothing from the
// rng, so every tree it grows over the same samples looks the same.
type stubGenerator struct {
	generateCalls int
}

func (g *stubGenerator) Generate(dst []split.Split, samples []sample.Sample, patchSize, depth, mode int, rng *rand.Rand) error {
	g.generateCalls++
	for i := range dst {
		dst[i] = split.Split{Info: split.SentinelInfo, OOB: math.MaxFloat64}
	}
	if len(samples) < 2 {
		return nil
	}
	values := make([]float64, len(samples))
	for i, s := range samples {
		v, err := s.EvalTest(&split.Test{})
		if err != nil {
			return err
		}
		values[i] = v
	}
	sort.Float64s(values)
	lo, hi := values[0], values[len(values)-1]
	if lo == hi {
		return nil
	}
	dst[0] = split.Split{Info: hi - lo, Threshold: values[len(values)/2]}
	return nil
}

func (g *stubGenerator) SplitSamples(samples []sample.Sample, byValue []split.ValueIndex, threshold, margin float64) ([]sample.Sample, []sample.Sample, error) {
	var left, right []sample.Sample
	boundary := threshold + margin
	for _, vi := range byValue {
		if vi.Value < boundary {
			left = append(left, samples[vi.Index])
		} else {
			right = append(right, samples[vi.Index])
		}
	}
	return left, right, nil
}

type stubFitter struct{}

func (stubFitter) Fit(samples []sample.Sample) (*tree.Leaf, error) {
	return &tree.Leaf{Patches: len(samples), Prob: 1}, nil
}

func forestParams() param.Forest {
	p := param.Default()
	p.MaxDepth = 3
	p.MinPatches = 2
	p.NTests = 4
	p.NTrees = 3
	return p
}

func separableSamples() []sample.Sample {
	samples := make([]sample.Sample, 8)
	for i := range samples {
		samples[i] = &stubSample{value: float64(i + 1), offset: []float64{float64(i + 1), 0}}
	}
	return samples
}

func newTestForest(t *testing.T, p param.Forest, store checkpoint.Store) (*Forest, *stubGenerator) {
	generator := &stubGenerator{}
	log := zaptest.NewLogger(t)
	trainer := conifer.NewTrainer(p, generator, stubFitter{}, store, conifer.WithLogger(log))
	return New(p, trainer, log), generator
}

func TestTreeKeyNaming(t *testing.T) {
	assert.Equal(t, "tree_000.json", TreeKey(0))
	assert.Equal(t, "tree_042.json", TreeKey(42))
}

func TestTrainFreshForest(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	f, generator := newTestForest(t, forestParams(), store)

	trees, err := f.Train(ctx, separableSamples(), 1)

	require.NoError(t, err)
	require.Len(t, trees, 3)
	for i, tr := range trees {
		assert.True(t, tr.IsFinished(), "Tree %d should finish", i)
		assert.NoError(t, tr.Validate())
		_, err := store.Load(ctx, TreeKey(i))
		assert.NoError(t, err, "Tree %d should leave a checkpoint", i)
	}
	assert.Equal(t, 21, generator.generateCalls, "Three saturated depth-3 trees should search seven nodes each")
	assert.Equal(t, trees, f.Trees())
}

func TestTrainSkipsFinishedTrees(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	f, _ := newTestForest(t, forestParams(), store)
	_, err := f.Train(ctx, separableSamples(), 1)
	require.NoError(t, err)

	rerun, generator := newTestForest(t, forestParams(), store)
	trees, err := rerun.Train(ctx, separableSamples(), 1)

	require.NoError(t, err)
	require.Len(t, trees, 3)
	for i, tr := range trees {
		assert.True(t, tr.IsFinished(), "Tree %d should load finished", i)
	}
	assert.Equal(t, 0, generator.generateCalls, "Finished trees should not be searched again")
}

func TestTrainResumesUnfinishedCheckpoint(t *testing.T) {
	ctx := context.Background()
	p := forestParams()
	p.NTrees = 1

	// A checkpoint holding the root split and two unresolved children,
	// the state of a run interrupted after its first save.
	store := checkpoint.NewMemoryStore()
	unfinished := tree.New(p, TreeKey(0))
	left := unfinished.NewNode(1)
	right := unfinished.NewNode(1)
	root := unfinished.At(unfinished.Root)
	root.Split = &split.Split{Info: 7, Threshold: 5}
	root.Left, root.Right = left, right
	require.NoError(t, unfinished.CreditSplit())
	data, err := unfinished.Encode()
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, TreeKey(0), data))

	f, generator := newTestForest(t, p, store)
	trees, err := f.Train(ctx, separableSamples(), 1)

	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.True(t, trees[0].IsFinished())
	assert.Equal(t, 6, generator.generateCalls, "Only the nodes below the recorded split should be searched")

	freshStore := checkpoint.NewMemoryStore()
	fresh, _ := newTestForest(t, p, freshStore)
	_, err = fresh.Train(ctx, separableSamples(), 1)
	require.NoError(t, err)
	resumedData, err := store.Load(ctx, TreeKey(0))
	require.NoError(t, err)
	freshData, err := freshStore.Load(ctx, TreeKey(0))
	require.NoError(t, err)
	assert.Equal(t, freshData, resumedData, "Resuming should reach the same state as an uninterrupted run")
}

func TestTrainRetrainsUnreadableCheckpoint(t *testing.T) {
	ctx := context.Background()
	p := forestParams()
	p.NTrees = 1
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Save(ctx, TreeKey(0), []byte("not a tree")))

	core, logs := observer.New(zap.WarnLevel)
	generator := &stubGenerator{}
	trainer := conifer.NewTrainer(p, generator, stubFitter{}, store, conifer.WithLogger(zaptest.NewLogger(t)))
	f := New(p, trainer, zap.New(core))

	trees, err := f.Train(ctx, separableSamples(), 1)

	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.True(t, trees[0].IsFinished())
	assert.Equal(t, 1, logs.FilterMessage("unreadable checkpoint, training from scratch").Len(),
		"A corrupt checkpoint should be reported before retraining")

	data, err := store.Load(ctx, TreeKey(0))
	require.NoError(t, err)
	_, err = tree.Decode(data)
	assert.NoError(t, err, "Retraining should replace the corrupt payload")
}

func TestLoadRestoresTrainedForest(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	f, _ := newTestForest(t, forestParams(), store)
	trained, err := f.Train(ctx, separableSamples(), 1)
	require.NoError(t, err)

	restored, _ := newTestForest(t, forestParams(), store)
	trees, err := restored.Load(ctx)

	require.NoError(t, err)
	assert.Equal(t, trained, trees, "Loading should restore what training saved")
	assert.Equal(t, trees, restored.Trees())
}

func TestLoadFailsOnMissingCheckpoint(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestForest(t, forestParams(), checkpoint.NewMemoryStore())

	_, err := f.Load(ctx)

	assert.Error(t, err, "An untrained forest has no checkpoints to load")
}

func TestEvaluateCollectsVotesFromFinishedTrees(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestForest(t, forestParams(), checkpoint.NewMemoryStore())
	_, err := f.Train(ctx, separableSamples(), 1)
	require.NoError(t, err)

	votes, err := f.Evaluate(&stubSample{value: 2.5})

	require.NoError(t, err)
	require.Len(t, votes, 3, "Every finished tree should vote")
	for i, leaf := range votes {
		assert.Equal(t, 1, leaf.Patches, "Vote %d should come from a bottom leaf", i)
	}
}

func TestEvaluateSkipsUnfinishedTrees(t *testing.T) {
	ctx := context.Background()
	p := forestParams()
	p.NTrees = 1
	f, _ := newTestForest(t, p, checkpoint.NewMemoryStore())
	trained, err := f.Train(ctx, separableSamples(), 1)
	require.NoError(t, err)

	f.trees = []*tree.Tree{trained[0], tree.New(p, TreeKey(1)), nil}
	votes, err := f.Evaluate(&stubSample{value: 2.5})

	require.NoError(t, err)
	assert.Len(t, votes, 1, "Unfinished trees have no leaves to vote with")
}

func TestEvaluateAllMatchesSerialEvaluation(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestForest(t, forestParams(), checkpoint.NewMemoryStore())
	_, err := f.Train(ctx, separableSamples(), 1)
	require.NoError(t, err)
	samples := separableSamples()

	votes, err := f.EvaluateAll(samples, 4)

	require.NoError(t, err)
	require.Len(t, votes, len(samples))
	for i, s := range samples {
		serial, err := f.Evaluate(s)
		require.NoError(t, err)
		assert.Equal(t, serial, votes[i], "Concurrent and serial votes should agree for sample %d", i)
	}
}
