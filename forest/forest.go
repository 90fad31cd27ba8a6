/*
Package forest drives whole-forest training and evaluation. Every tree
checkpoints under its own key, so an interrupted run picks each tree
up exactly where it stopped, skips the ones already finished and only
spends work on what remains.
*/
package forest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/facekit/conifer"
	"github.com/facekit/conifer/checkpoint"
	"github.com/facekit/conifer/param"
	"github.com/facekit/conifer/sample"
	"github.com/facekit/conifer/tree"
)

/*
Forest trains and evaluates a fixed-size collection of conditional
regression trees sharing one sample population.
*/
type Forest struct {
	params  param.Forest
	trainer *conifer.Trainer
	log     *zap.Logger
	trees   []*tree.Tree
}

// New returns a Forest of p.NTrees trees trained through the given
// trainer. A nil logger discards progress reports.
func New(p param.Forest, trainer *conifer.Trainer, log *zap.Logger) *Forest {
	if log == nil {
		log = zap.NewNop()
	}
	return &Forest{params: p, trainer: trainer, log: log}
}

// TreeKey names the checkpoint of the i-th tree of a forest.
func TreeKey(i int) string {
	return fmt.Sprintf("tree_%03d.json", i)
}

/*
Train brings every tree of the forest to completion and returns them.
Trees whose checkpoint already reports finished are left untouched.
Unfinished checkpoints resume. Absent checkpoints train from scratch,
and so do unreadable ones, after a warning carrying the decode
diagnostics; their next save replaces the bad payload. Each tree draws
from its own rng seeded with seed plus the tree index, so a rerun
after an interruption regrows each tree from the same draws as the
original run.
*/
func (f *Forest) Train(ctx context.Context, samples []sample.Sample, seed int64) ([]*tree.Tree, error) {
	trees := make([]*tree.Tree, f.params.NTrees)
	for i := range trees {
		key := TreeKey(i)
		rng := rand.New(rand.NewSource(seed + int64(i)))
		t, err := f.trainer.Load(ctx, key)
		switch {
		case err == nil && t.IsFinished():
			f.log.Info("tree finished, skipping",
				zap.String("checkpoint", key))
		case err == nil:
			f.log.Info("tree unfinished, resuming",
				zap.String("checkpoint", key),
				zap.Float64("progress", t.Progress()))
			if err := f.trainer.Update(ctx, t, samples, rng); err != nil {
				return nil, fmt.Errorf("resuming tree %d: %v", i, err)
			}
		case errors.Is(err, checkpoint.ErrNotFound):
			f.log.Info("no checkpoint, training from scratch",
				zap.String("checkpoint", key))
			t, err = f.trainer.Train(ctx, key, samples, rng)
			if err != nil {
				return nil, fmt.Errorf("training tree %d: %v", i, err)
			}
		default:
			f.log.Warn("unreadable checkpoint, training from scratch",
				zap.String("checkpoint", key),
				zap.Error(err))
			t, err = f.trainer.Train(ctx, key, samples, rng)
			if err != nil {
				return nil, fmt.Errorf("training tree %d: %v", i, err)
			}
		}
		trees[i] = t
	}
	f.trees = trees
	return trees, nil
}

/*
Load restores every tree of the forest from its checkpoint without
training anything, for inspecting or evaluating a forest trained
elsewhere.
*/
func (f *Forest) Load(ctx context.Context) ([]*tree.Tree, error) {
	trees := make([]*tree.Tree, 0, f.params.NTrees)
	for i := 0; i < f.params.NTrees; i++ {
		t, err := f.trainer.Load(ctx, TreeKey(i))
		if err != nil {
			return nil, fmt.Errorf("loading tree %d: %v", i, err)
		}
		trees = append(trees, t)
	}
	f.trees = trees
	return trees, nil
}

// Trees returns the trees of the last Train or Load call.
func (f *Forest) Trees() []*tree.Tree {
	return f.trees
}

/*
Evaluate routes one sample through every finished tree and returns the
votes, one leaf per tree. Unfinished trees are skipped, their leaves
do not exist yet. Aggregating the votes into a detection is up to the
caller.
*/
func (f *Forest) Evaluate(s sample.Sample) ([]*tree.Leaf, error) {
	leaves := make([]*tree.Leaf, 0, len(f.trees))
	for i, t := range f.trees {
		if t == nil || !t.IsFinished() {
			continue
		}
		leaf, err := t.Evaluate(s)
		if err != nil {
			return nil, fmt.Errorf("evaluating tree %d: %v", i, err)
		}
		leaves = append(leaves, leaf)
	}
	return leaves, nil
}

/*
EvaluateAll fans samples out to the given number of workers and
collects the per-tree votes of every sample. Evaluation only reads the
trees, so any worker count is safe once training is done.
*/
func (f *Forest) EvaluateAll(samples []sample.Sample, workers int) ([][]*tree.Leaf, error) {
	if workers < 1 {
		workers = 1
	}
	votes := make([][]*tree.Leaf, len(samples))
	indexes := make(chan int)
	errs := make(chan error, 1)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				v, err := f.Evaluate(samples[i])
				if err != nil {
					select {
					case errs <- err:
					default:
					}
					continue
				}
				votes[i] = v
			}
		}()
	}
	for i := range samples {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
	select {
	case err := <-errs:
		return nil, err
	default:
	}
	return votes, nil
}
