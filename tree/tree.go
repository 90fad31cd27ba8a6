/*
Package tree holds the whole state of a conditional regression tree as
it is trained, checkpointed, resumed and finally evaluated.

A tree accounts for its own progress: it has a budget of virtual
nodes, the 2^max_depth - 1 internal positions of the complete tree of
its configured depth, and every node training resolves credits part of
that budget. Recording a split credits the node itself; fitting a leaf
credits every virtual position the complete tree would have had below
it. The budget is exhausted exactly when no unresolved node remains,
which is how an interrupted training run can tell how far it got from
the counters alone.
*/
package tree

import (
	"fmt"

	"github.com/facekit/conifer/param"
	"github.com/facekit/conifer/sample"
)

// Error is a constant error reported by tree operations.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrBudgetExceeded reports progress accounting beyond the virtual
	// node budget, which only a structural inconsistency can cause.
	ErrBudgetExceeded = Error("resolved nodes would exceed the virtual node budget")
	// ErrUnresolvedNode reports a descent reaching a node training
	// never settled.
	ErrUnresolvedNode = Error("descended into an unresolved node")
	// ErrNoSuchChild reports a split node missing one of its children.
	ErrNoSuchChild = Error("split node is missing a child")
)

/*
Tree is the serializable training state: the node arena, the progress
counters, and the configuration and checkpoint name it was created
with. Checkpoints restore all of it, so growth resumes exactly where
it stopped.
*/
type Tree struct {
	Nodes         []Node       `json:"nodes"`
	Root          int          `json:"root"`
	NodeBudget    int          `json:"node_budget"`
	ResolvedNodes int          `json:"resolved_nodes"`
	LeafCount     int          `json:"leaf_count"`
	Params        param.Forest `json:"params"`
	CheckpointKey string       `json:"checkpoint_key"`
}

/*
New returns a tree ready to grow: a single unresolved root at depth 0,
zeroed counters and a virtual node budget of 2^max_depth - 1. The tree
will be checkpointed under checkpointKey.
*/
func New(p param.Forest, checkpointKey string) *Tree {
	t := &Tree{
		NodeBudget:    nodeBudget(p.MaxDepth),
		Params:        p,
		CheckpointKey: checkpointKey,
	}
	t.Root = t.NewNode(0)
	return t
}

func nodeBudget(maxDepth int) int {
	if maxDepth < 0 {
		return 0
	}
	return (1 << uint(maxDepth)) - 1
}

/*
NewNode appends an unresolved node at the given depth to the arena and
returns its index. Appending may move the arena, so node pointers
obtained before must be fetched again.
*/
func (t *Tree) NewNode(depth int) int {
	t.Nodes = append(t.Nodes, Node{Depth: depth, Left: NoChild, Right: NoChild})
	return len(t.Nodes) - 1
}

// At returns the node stored at index i.
func (t *Tree) At(i int) *Node {
	return &t.Nodes[i]
}

/*
IsFinished reports whether the whole virtual node budget is resolved,
that is, whether no branch of the tree can grow any further. A tree
with an empty budget never reports finished, so training always
revisits it.
*/
func (t *Tree) IsFinished() bool {
	if t.NodeBudget == 0 {
		return false
	}
	return t.ResolvedNodes == t.NodeBudget
}

// Progress returns the resolved share of the virtual node budget as a
// percentage.
func (t *Tree) Progress() float64 {
	if t.NodeBudget == 0 {
		return 0
	}
	return float64(t.ResolvedNodes) / float64(t.NodeBudget) * 100
}

/*
CreditLeaf accounts for a leaf fitted at the given depth: it resolves
every virtual position the complete tree would have had in the subtree
below it, 2^(max_depth-depth) - 1 positions, and counts the leaf. The
counters never regress and never exceed the budget; a violation is
returned as an error because it means the structure and the
configuration disagree.
*/
func (t *Tree) CreditLeaf(depth int) error {
	if depth < 0 || depth > t.Params.MaxDepth {
		return fmt.Errorf("crediting leaf at depth %d: outside [0, %d]", depth, t.Params.MaxDepth)
	}
	if err := t.credit((1 << uint(t.Params.MaxDepth-depth)) - 1); err != nil {
		return err
	}
	t.LeafCount++
	return nil
}

// CreditSplit accounts for one node resolved by recording a split.
func (t *Tree) CreditSplit() error {
	return t.credit(1)
}

func (t *Tree) credit(n int) error {
	if t.ResolvedNodes+n > t.NodeBudget {
		return fmt.Errorf("%w: %d resolved + %d over budget %d", ErrBudgetExceeded, t.ResolvedNodes, n, t.NodeBudget)
	}
	t.ResolvedNodes += n
	return nil
}

/*
ResetProgress zeroes the progress counters so a resumed growth can
re-account the whole tree while it revisits recorded splits and grows
whatever they left unresolved.
*/
func (t *Tree) ResetProgress() {
	t.ResolvedNodes = 0
	t.LeafCount = 0
}

/*
Evaluate routes a sample from the root down to a leaf and returns the
leaf payload. Evaluation only reads the tree, so any number of
evaluations may run concurrently once training no longer writes to it.
Reaching an unresolved node reports ErrUnresolvedNode: the tree was
not grown to completion.
*/
func (t *Tree) Evaluate(s sample.Sample) (*Leaf, error) {
	if len(t.Nodes) == 0 {
		return nil, fmt.Errorf("evaluating empty tree: %w", ErrUnresolvedNode)
	}
	i := t.Root
	for {
		if i < 0 || i >= len(t.Nodes) {
			return nil, fmt.Errorf("evaluating: node index %d outside arena of %d nodes", i, len(t.Nodes))
		}
		n := &t.Nodes[i]
		if n.Leaf != nil {
			return n.Leaf, nil
		}
		if n.Split == nil {
			return nil, fmt.Errorf("evaluating node %d: %w", i, ErrUnresolvedNode)
		}
		v, err := s.EvalTest(&n.Split.Test)
		if err != nil {
			return nil, fmt.Errorf("evaluating node %d: %v", i, err)
		}
		if n.Split.Route(v) {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

/*
Validate checks the structural invariants growth relies on: every
split node links two children one level deeper, leaves and unresolved
nodes link none, depths never exceed the configured maximum, every
link stays inside the arena and every arena node is reachable from the
root exactly once. It returns an error describing the first violation
found.
*/
func (t *Tree) Validate() error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("validating tree: empty arena")
	}
	if t.Root < 0 || t.Root >= len(t.Nodes) {
		return fmt.Errorf("validating tree: root %d outside arena of %d nodes", t.Root, len(t.Nodes))
	}
	if t.NodeBudget != nodeBudget(t.Params.MaxDepth) {
		return fmt.Errorf("validating tree: budget %d does not match max depth %d", t.NodeBudget, t.Params.MaxDepth)
	}
	if t.ResolvedNodes < 0 || (t.NodeBudget > 0 && t.ResolvedNodes > t.NodeBudget) {
		return fmt.Errorf("validating tree: %d resolved nodes outside budget %d", t.ResolvedNodes, t.NodeBudget)
	}
	if t.LeafCount < 0 {
		return fmt.Errorf("validating tree: negative leaf count %d", t.LeafCount)
	}
	seen := make([]bool, len(t.Nodes))
	if err := t.validateFrom(t.Root, 0, seen); err != nil {
		return fmt.Errorf("validating tree: %w", err)
	}
	for i, reached := range seen {
		if !reached {
			return fmt.Errorf("validating tree: node %d not reachable from root", i)
		}
	}
	return nil
}

func (t *Tree) validateFrom(i, depth int, seen []bool) error {
	if i < 0 || i >= len(t.Nodes) {
		return fmt.Errorf("node index %d outside arena of %d nodes", i, len(t.Nodes))
	}
	if seen[i] {
		return fmt.Errorf("node %d reachable through two paths", i)
	}
	seen[i] = true
	n := &t.Nodes[i]
	if n.Depth != depth {
		return fmt.Errorf("node %d: stored depth %d, actual depth %d", i, n.Depth, depth)
	}
	if depth > t.Params.MaxDepth {
		return fmt.Errorf("node %d: depth %d beyond maximum %d", i, depth, t.Params.MaxDepth)
	}
	if n.Split != nil && n.Leaf != nil {
		return fmt.Errorf("node %d: carries both a split and a leaf", i)
	}
	if n.Split != nil {
		if n.Left == NoChild || n.Right == NoChild {
			return fmt.Errorf("node %d: %w", i, ErrNoSuchChild)
		}
		if err := t.validateFrom(n.Left, depth+1, seen); err != nil {
			return err
		}
		return t.validateFrom(n.Right, depth+1, seen)
	}
	if n.Left != NoChild || n.Right != NoChild {
		return fmt.Errorf("node %d: links children without a split", i)
	}
	return nil
}
