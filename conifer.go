/*
Package conifer grows the conditional regression trees used by
random-forest facial feature detectors, checkpointing the whole
training state as it goes so an interrupted run resumes exactly where
it stopped.

Trees grow depth first. At every node the trainer either fits a leaf,
when the branch hit a stopping criterion or no usable split could be
found, or records the best of a randomized set of split candidates and
descends into the two children. Nodes that already carry a split from
a previous run are credited and descended without a new search, which
is what makes checkpoints resumable: the randomized search only runs
for work no earlier run did.
*/
package conifer

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/facekit/conifer/checkpoint"
	"github.com/facekit/conifer/param"
	"github.com/facekit/conifer/sample"
	"github.com/facekit/conifer/split"
	"github.com/facekit/conifer/tree"
)

/*
SplitGenerator is an interface for objects that propose the split
candidates a node chooses from and that own the rule partitioning
samples around a chosen boundary.

Both methods must be deterministic: Generate may only draw randomness
from the rng it is handed, and SplitSamples may not draw any at all,
so the same seed always grows the same tree and a resumed run
partitions exactly as the interrupted one did.
*/
type SplitGenerator interface {
	// Generate fills dst with one scored candidate per element for the
	// given samples. patchSize is the sample side in pixels, depth the
	// node depth and mode the regime selector the trainer draws
	// uniformly on [0, 100]. Candidates that cannot be scored carry
	// split.SentinelInfo so selection skips them.
	Generate(dst []split.Split, samples []sample.Sample, patchSize, depth, mode int, rng *rand.Rand) error
	// SplitSamples partitions samples around threshold plus margin.
	// byValue holds every sample's response paired with its position,
	// ordered ascending. Each sample must land on exactly one side.
	SplitSamples(samples []sample.Sample, byValue []split.ValueIndex, threshold, margin float64) (left, right []sample.Sample, err error)
}

/*
LeafFitter is an interface for objects that condense the samples
reaching a terminal node into the vote the leaf will cast during
detection.
*/
type LeafFitter interface {
	// Fit builds the leaf payload for the given samples, which may be
	// empty when a split routed everything to the other side.
	Fit(samples []sample.Sample) (*tree.Leaf, error)
}

// DefaultSaveInterval is the time growth waits between automatic
// checkpoints when no other interval is configured.
const DefaultSaveInterval = 600 * time.Second

/*
Trainer grows conditional regression trees with a fixed configuration
and set of collaborators: the generator searching splits, the fitter
building leaves and the store keeping checkpoints.
*/
type Trainer struct {
	params       param.Forest
	generator    SplitGenerator
	fitter       LeafFitter
	store        checkpoint.Store
	log          *zap.Logger
	saveInterval time.Duration
	now          func() time.Time
}

// TrainerOption adjusts a Trainer at construction.
type TrainerOption func(*Trainer)

// WithLogger makes the trainer report its progress through l instead
// of discarding it.
func WithLogger(l *zap.Logger) TrainerOption {
	return func(t *Trainer) {
		t.log = l
	}
}

// WithSaveInterval sets the minimum time between automatic
// checkpoints. A zero interval checkpoints after every recorded
// split.
func WithSaveInterval(d time.Duration) TrainerOption {
	return func(t *Trainer) {
		t.saveInterval = d
	}
}

// withClock replaces the trainer's clock, so tests can control the
// checkpoint throttle.
func withClock(now func() time.Time) TrainerOption {
	return func(t *Trainer) {
		t.now = now
	}
}

// NewTrainer returns a Trainer growing trees under p, searching splits
// with the given generator, fitting leaves with the given fitter and
// checkpointing through the given store.
func NewTrainer(p param.Forest, generator SplitGenerator, fitter LeafFitter, store checkpoint.Store, options ...TrainerOption) *Trainer {
	t := &Trainer{
		params:       p,
		generator:    generator,
		fitter:       fitter,
		store:        store,
		log:          zap.NewNop(),
		saveInterval: DefaultSaveInterval,
		now:          time.Now,
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// Train grows a fresh tree from samples and checkpoints it under
// checkpointKey: it creates the unresolved root, grows depth first
// until every branch reaches a stopping criterion and saves the final
// state, on top of the periodic checkpoints written while growing. The
// final save runs whether or not growth completed, so cancelling the
// context stops growth at the next node and still leaves a checkpoint
// a later Update picks up from. The rng is the only source of
// randomness, so the same seed and samples always grow the same tree.
func (tr *Trainer) Train(ctx context.Context, checkpointKey string, samples []sample.Sample, rng *rand.Rand) (*tree.Tree, error) {
	t := tree.New(tr.params, checkpointKey)
	tr.log.Info("training tree",
		zap.String("checkpoint", checkpointKey),
		zap.Int("samples", len(samples)),
		zap.Int("max_depth", tr.params.MaxDepth),
		zap.Int("node_budget", t.NodeBudget))
	g := tr.newGrowth(t)
	growErr := g.grow(ctx, t.Root, samples, rng)
	// The final save must outlive the context that stopped growth.
	g.save(context.WithoutCancel(ctx))
	if growErr != nil {
		return nil, growErr
	}
	tr.log.Info("trained tree",
		zap.String("checkpoint", checkpointKey),
		zap.Int("leaves", t.LeafCount),
		zap.Bool("finished", t.IsFinished()))
	return t, nil
}

// Update resumes an unfinished tree with the same sample population it
// was first trained on: the progress counters restart from zero,
// recorded splits are credited back while their partitions are
// re-derived, and growth continues wherever a node is still
// unresolved. The final state is saved unconditionally. Updating a
// finished tree does nothing, draws nothing from the rng and writes
// nothing.
func (tr *Trainer) Update(ctx context.Context, t *tree.Tree, samples []sample.Sample, rng *rand.Rand) error {
	if t.IsFinished() {
		tr.log.Info("tree already finished",
			zap.String("checkpoint", t.CheckpointKey),
			zap.Int("leaves", t.LeafCount))
		return nil
	}
	tr.log.Info("updating tree",
		zap.String("checkpoint", t.CheckpointKey),
		zap.Float64("progress", t.Progress()),
		zap.Int("samples", len(samples)))
	t.ResetProgress()
	g := tr.newGrowth(t)
	growErr := g.grow(ctx, t.Root, samples, rng)
	g.save(context.WithoutCancel(ctx))
	if growErr != nil {
		return growErr
	}
	tr.log.Info("updated tree",
		zap.String("checkpoint", t.CheckpointKey),
		zap.Int("leaves", t.LeafCount),
		zap.Bool("finished", t.IsFinished()))
	return nil
}

// Load restores the tree checkpointed under key. An absent checkpoint
// is reported with an error matching checkpoint.ErrNotFound; a payload
// that cannot be restored is reported with a *tree.DecodeError. The
// two cases stay distinguishable so callers can train from scratch on
// the former and investigate the latter.
func (tr *Trainer) Load(ctx context.Context, key string) (*tree.Tree, error) {
	data, err := tr.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	t, err := tree.Decode(data)
	if err != nil {
		return nil, err
	}
	tr.log.Info("loaded tree",
		zap.String("checkpoint", key),
		zap.Bool("finished", t.IsFinished()),
		zap.Float64("progress", t.Progress()))
	return t, nil
}
