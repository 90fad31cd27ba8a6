/*
Package split defines the scored routing rules conditional regression
trees are built from, and the ordering of samples by their responses
that partitioning works on.
*/
package split

import (
	"math"
	"sort"
)

/*
SentinelInfo is the information value of a candidate that could not be
scored. Selection compares strictly, so a sentinel candidate never
wins over another sentinel and a node whose candidates are all
sentinels becomes a leaf.
*/
const SentinelInfo = -math.MaxFloat64

/*
Rect is a rectangle in patch coordinates, with its origin at the top
left corner.
*/
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

/*
Test describes the measurement a split applies to a sample: the
difference between the mean intensities of two rectangles on one
feature channel. Trees never interpret tests, they only hand them to
samples; generators construct them.
*/
type Test struct {
	Channel int  `json:"channel"`
	A       Rect `json:"a"`
	B       Rect `json:"b"`
}

/*
Split is a candidate routing rule for one node: the test to measure
samples with, the boundary that sends them left or right, and the
scores the search selected it by. Info grows with the quality of the
split; OOB is a held-out error estimate kept as metadata, lower being
better.
*/
type Split struct {
	Info      float64 `json:"info"`
	OOB       float64 `json:"oob"`
	Threshold float64 `json:"threshold"`
	Margin    float64 `json:"margin"`
	Test      Test    `json:"test"`
}

/*
Route reports whether a sample whose test response is v belongs to the
left subtree. Training-time partitioning and evaluation-time descent
share this one boundary, so a tree routes samples exactly as it was
partitioned while growing.
*/
func (s *Split) Route(v float64) bool {
	return v < s.Threshold+s.Margin
}

/*
ValueIndex pairs the test response of a sample with the position the
sample had in the slice the responses were computed from.
*/
type ValueIndex struct {
	Value float64
	Index int
}

/*
SortByValue orders response/position pairs by ascending response,
breaking response ties by the original position. The order is total,
so two passes over the same responses partition identically.
*/
func SortByValue(vals []ValueIndex) {
	sort.Slice(vals, func(i, j int) bool {
		if vals[i].Value != vals[j].Value {
			return vals[i].Value < vals[j].Value
		}
		return vals[i].Index < vals[j].Index
	})
}
