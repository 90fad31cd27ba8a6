package tree

import "github.com/facekit/conifer/split"

// NoChild marks an absent child link.
const NoChild = -1

/*
Node is one position in the arena of a tree. Nodes begin unresolved
and training settles each one exactly once: either a split is recorded
and two children are linked, or a leaf is fitted. The two outcomes are
mutually exclusive and final.
*/
type Node struct {
	Depth int          `json:"depth"`
	Split *split.Split `json:"split,omitempty"`
	Leaf  *Leaf        `json:"leaf,omitempty"`
	Left  int          `json:"left"`
	Right int          `json:"right"`
}

// IsLeaf reports whether a leaf was fitted on the node.
func (n *Node) IsLeaf() bool {
	return n.Leaf != nil
}

// HasSplit reports whether a split was already recorded on the node,
// which is how resumed growth recognizes checkpointed progress.
func (n *Node) HasSplit() bool {
	return n.Split != nil
}

// Unresolved reports whether training still owes the node a decision.
func (n *Node) Unresolved() bool {
	return n.Split == nil && n.Leaf == nil
}

/*
Leaf is the payload of a terminal node: the vote it casts during
detection. The tree treats it as opaque, a fitter condenses it from
the samples reaching the node and evaluation returns it untouched.
*/
type Leaf struct {
	// Patches is how many samples the leaf was fitted from.
	Patches int `json:"patches"`
	// Offset is the mean displacement of those samples.
	Offset []float64 `json:"offset,omitempty"`
	// Variance is the scatter of the displacements around Offset.
	Variance float64 `json:"variance"`
	// Prob is the confidence detectors weight the vote with.
	Prob float64 `json:"prob"`
}
