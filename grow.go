package conifer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/facekit/conifer/sample"
	"github.com/facekit/conifer/split"
	"github.com/facekit/conifer/tree"
)

// Leaf causes reported in telemetry.
const (
	causeMaxDepth   = "max_depth"
	causeMinPatches = "min_patches"
	causeNoSplit    = "no_split"
	causeForced     = "forced_leaf"
)

/*
growth is the state of one training pass over a tree, fresh or
resumed: it owns the checkpoint throttle of the pass and routes
progress telemetry. The rng is threaded through the recursion instead
so its consumption order stays a property of the tree shape alone.
*/
type growth struct {
	trainer  *Trainer
	tree     *tree.Tree
	lastSave time.Time
}

func (tr *Trainer) newGrowth(t *tree.Tree) *growth {
	return &growth{trainer: tr, tree: t, lastSave: tr.now()}
}

// grow resolves the node at index i with the samples routed to it and
// recurses into its children. A node hitting a stopping criterion
// becomes a leaf and credits its whole virtual subtree; a leaf
// reloaded from an earlier run stops the same way, fitted and credited
// again rather than re-searched. A node carrying a split from an
// earlier run is credited and descended with the recorded boundary,
// without a new search and without drawing randomness. Anything else
// searches for a split, records the best candidate and keeps growing,
// or becomes a leaf when the search comes back empty.
func (g *growth) grow(ctx context.Context, i int, samples []sample.Sample, rng *rand.Rand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	node := g.tree.At(i)
	depth := node.Depth

	if depth == g.trainer.params.MaxDepth {
		return g.makeLeaf(i, samples, causeMaxDepth)
	}
	if len(samples) < g.trainer.params.MinPatches {
		return g.makeLeaf(i, samples, causeMinPatches)
	}
	if node.IsLeaf() {
		return g.makeLeaf(i, samples, causeForced)
	}

	if node.HasSplit() {
		left, right, err := g.applySplit(samples, node.Split)
		if err != nil {
			return fmt.Errorf("reapplying recorded split at node %d: %v", i, err)
		}
		if node.Left == tree.NoChild || node.Right == tree.NoChild {
			return fmt.Errorf("resuming at node %d: %w", i, tree.ErrNoSuchChild)
		}
		if err := g.tree.CreditSplit(); err != nil {
			return fmt.Errorf("crediting node %d: %v", i, err)
		}
		leftChild, rightChild := node.Left, node.Right
		g.logSplit("resumed split", i, depth, len(left), len(right))
		if err := g.grow(ctx, leftChild, left, rng); err != nil {
			return err
		}
		return g.grow(ctx, rightChild, right, rng)
	}

	best, found, err := g.findOptimalSplit(samples, depth, rng)
	if err != nil {
		return fmt.Errorf("searching split at node %d: %v", i, err)
	}
	if !found {
		return g.makeLeaf(i, samples, causeNoSplit)
	}
	left, right, err := g.applySplit(samples, &best)
	if err != nil {
		return fmt.Errorf("applying split at node %d: %v", i, err)
	}
	leftChild := g.tree.NewNode(depth + 1)
	rightChild := g.tree.NewNode(depth + 1)
	node = g.tree.At(i) // the arena may have moved
	node.Split = &best
	node.Left = leftChild
	node.Right = rightChild
	if err := g.tree.CreditSplit(); err != nil {
		return fmt.Errorf("crediting node %d: %v", i, err)
	}
	splitsAssigned.Inc()
	g.logSplit("assigned split", i, depth, len(left), len(right))
	g.saveAuto(ctx)
	if err := g.grow(ctx, leftChild, left, rng); err != nil {
		return err
	}
	return g.grow(ctx, rightChild, right, rng)
}

// makeLeaf fits a leaf on the node at index i and credits the virtual
// subtree it prunes from the remaining work.
func (g *growth) makeLeaf(i int, samples []sample.Sample, cause string) error {
	node := g.tree.At(i)
	depth := node.Depth
	leaf, err := g.trainer.fitter.Fit(samples)
	if err != nil {
		return fmt.Errorf("fitting leaf at node %d: %v", i, err)
	}
	node.Leaf = leaf
	if err := g.tree.CreditLeaf(depth); err != nil {
		return fmt.Errorf("crediting leaf at node %d: %v", i, err)
	}
	leavesCreated.WithLabelValues(cause).Inc()
	g.trainer.log.Info("fitted leaf",
		zap.Int("node", i),
		zap.Int("depth", depth),
		zap.Int("patches", len(samples)),
		zap.String("cause", cause),
		zap.Int("leaves", g.tree.LeafCount),
		zap.Float64("progress", g.tree.Progress()))
	return nil
}

// findOptimalSplit draws the mode for this node, asks the generator
// for one candidate per configured test and keeps the one with
// strictly maximal information, first seen winning ties. It reports
// found=false when every candidate carries the sentinel, which makes
// the node a leaf.
func (g *growth) findOptimalSplit(samples []sample.Sample, depth int, rng *rand.Rand) (split.Split, bool, error) {
	mode := rng.Intn(101)
	candidates := make([]split.Split, g.trainer.params.NTests)
	searchStart := g.trainer.now()
	err := g.trainer.generator.Generate(candidates, samples, g.trainer.params.PatchSize(), depth, mode, rng)
	splitSearchSeconds.Observe(g.trainer.now().Sub(searchStart).Seconds())
	if err != nil {
		return split.Split{}, false, err
	}
	best := split.Split{Info: split.SentinelInfo, OOB: math.MaxFloat64}
	found := false
	for _, candidate := range candidates {
		if candidate.Info > best.Info {
			best = candidate
			found = true
		}
	}
	return best, found, nil
}

// applySplit routes every sample through the split's test, orders the
// responses and delegates the partition to the generator owning the
// boundary rule. The partition must be exhaustive; losing samples
// would make resumed runs diverge from uninterrupted ones.
func (g *growth) applySplit(samples []sample.Sample, s *split.Split) ([]sample.Sample, []sample.Sample, error) {
	byValue := make([]split.ValueIndex, len(samples))
	for i, smp := range samples {
		v, err := smp.EvalTest(&s.Test)
		if err != nil {
			return nil, nil, fmt.Errorf("evaluating sample %d: %v", i, err)
		}
		byValue[i] = split.ValueIndex{Value: v, Index: i}
	}
	split.SortByValue(byValue)
	left, right, err := g.trainer.generator.SplitSamples(samples, byValue, s.Threshold, s.Margin)
	if err != nil {
		return nil, nil, err
	}
	if len(left)+len(right) != len(samples) {
		return nil, nil, fmt.Errorf("partition lost samples: %d left + %d right of %d", len(left), len(right), len(samples))
	}
	return left, right, nil
}

// saveAuto checkpoints after a fresh split once the save interval has
// elapsed since the last checkpoint of this pass.
func (g *growth) saveAuto(ctx context.Context) {
	if g.trainer.now().Sub(g.lastSave) <= g.trainer.saveInterval {
		return
	}
	g.lastSave = g.trainer.now()
	g.save(ctx)
}

// save checkpoints the whole tree state. Failures are reported and
// counted but never abort training: the tree stays correct in memory
// and a later save or the final one can still persist it.
func (g *growth) save(ctx context.Context) {
	data, err := g.tree.Encode()
	if err == nil {
		err = g.trainer.store.Save(ctx, g.tree.CheckpointKey, data)
	}
	if err != nil {
		checkpointWrites.WithLabelValues("error").Inc()
		g.trainer.log.Warn("checkpoint failed",
			zap.String("checkpoint", g.tree.CheckpointKey),
			zap.Float64("progress", g.tree.Progress()),
			zap.Error(err))
		return
	}
	checkpointWrites.WithLabelValues("ok").Inc()
	g.trainer.log.Debug("checkpoint saved",
		zap.String("checkpoint", g.tree.CheckpointKey),
		zap.Float64("progress", g.tree.Progress()))
}

func (g *growth) logSplit(msg string, i, depth, left, right int) {
	g.trainer.log.Info(msg,
		zap.Int("node", i),
		zap.Int("depth", depth),
		zap.Int("left", left),
		zap.Int("right", right),
		zap.Float64("progress", g.tree.Progress()))
}
