package export

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Sentinels in the node arrays.
const (
	// NoChild marks a missing child. A node whose left child is NoChild is a leaf.
	NoChild = -1
	// Undefined is the feature and threshold of a leaf.
	Undefined = -2
)

// Tree is the node-array view of one fitted tree. Node 0 is the root.
type Tree interface {
	NodeCount() int
	LeftChild(i int) int
	RightChild(i int) int
	SplitFeature(i int) int
	SplitThreshold(i int) float64
	ClassDistribution(i int) []float64
}

// Ensemble is a fitted forest.
type Ensemble interface {
	NumFeatures() int
	ClassLabels() []int
	NumTrees() int
	Tree(i int) Tree
}

// TreeRecord is one tree's node arrays as handed to the hardware stage. Every
// slice is indexed by node. Fields are declared in JSON key order.
type TreeRecord struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Classes       []int     `json:"classes"`
	Features      []int     `json:"features"`
	IsLeaf        []int     `json:"is_leaf"`
	Threshold     []float64 `json:"threshold"`
}

// NodeCount returns the number of nodes in the record.
func (r TreeRecord) NodeCount() int { return len(r.IsLeaf) }

// Params describes a flattened ensemble.
type Params struct {
	ClassLabels []int        `json:"class_labels"`
	NumClasses  int          `json:"num_classes"`
	NumFeatures int          `json:"num_features"`
	NumNodes    []int        `json:"num_nodes"`
	NumTrees    int          `json:"num_trees"`
	Trees       []TreeRecord `json:"trees"`
}

// Fields returns params keyed by their output document names.
func (p Params) Fields() map[string]interface{} {
	return map[string]interface{}{
		"num_features": p.NumFeatures,
		"num_classes":  p.NumClasses,
		"class_labels": p.ClassLabels,
		"num_trees":    p.NumTrees,
		"num_nodes":    p.NumNodes,
		"trees":        p.Trees,
	}
}

// Flatten transcribes t node by node. A node is a leaf exactly when its left
// child is NoChild; the right child is not consulted. Its class is the index
// of the largest entry in its class distribution, the first on ties.
func Flatten(t Tree) TreeRecord {
	n := t.NodeCount()
	rec := TreeRecord{
		ChildrenLeft:  make([]int, n),
		ChildrenRight: make([]int, n),
		Classes:       make([]int, n),
		Features:      make([]int, n),
		IsLeaf:        make([]int, n),
		Threshold:     make([]float64, n),
	}
	for i := 0; i < n; i++ {
		left := t.LeftChild(i)
		if left == NoChild {
			rec.IsLeaf[i] = 1
		}
		if dist := t.ClassDistribution(i); len(dist) > 0 {
			rec.Classes[i] = floats.MaxIdx(dist)
		}
		rec.Features[i] = t.SplitFeature(i)
		rec.Threshold[i] = t.SplitThreshold(i)
		rec.ChildrenLeft[i] = left
		rec.ChildrenRight[i] = t.RightChild(i)
	}
	return rec
}

// Extract flattens every tree of e.
func Extract(e Ensemble) Params {
	labels := uniqueSorted(e.ClassLabels())
	p := Params{
		NumFeatures: e.NumFeatures(),
		NumClasses:  len(labels),
		ClassLabels: labels,
		NumTrees:    e.NumTrees(),
		NumNodes:    make([]int, e.NumTrees()),
		Trees:       make([]TreeRecord, e.NumTrees()),
	}
	for i := range p.Trees {
		p.Trees[i] = Flatten(e.Tree(i))
		p.NumNodes[i] = p.Trees[i].NodeCount()
	}
	return p
}

func uniqueSorted(v []int) []int {
	out := append([]int{}, v...)
	sort.Ints(out)
	j := 0
	for i, x := range out {
		if i == 0 || x != out[j-1] {
			out[j] = x
			j++
		}
	}
	return out[:j]
}

// Depth returns the longest root-to-leaf path in r. A root-only tree has
// depth 0.
func Depth(r TreeRecord) int {
	if r.NodeCount() == 0 {
		return 0
	}
	type item struct{ node, depth int }
	max := 0
	stack := []item{{0, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.depth > max {
			max = it.depth
		}
		if r.IsLeaf[it.node] == 1 {
			continue
		}
		for _, c := range []int{r.ChildrenLeft[it.node], r.ChildrenRight[it.node]} {
			if c > it.node && c < r.NodeCount() {
				stack = append(stack, item{c, it.depth + 1})
			}
		}
	}
	return max
}

// leafClass walks r for x and returns the class index of the leaf reached.
func leafClass(r TreeRecord, x []float64) (int, error) {
	node := 0
	for steps := 0; steps <= r.NodeCount(); steps++ {
		if node < 0 || node >= r.NodeCount() {
			return 0, errors.Errorf("node %d out of range", node)
		}
		if r.IsLeaf[node] == 1 {
			return r.Classes[node], nil
		}
		f := r.Features[node]
		if f < 0 || f >= len(x) {
			return 0, errors.Errorf("node %d splits on feature %d of %d", node, f, len(x))
		}
		if x[f] <= r.Threshold[node] {
			node = r.ChildrenLeft[node]
		} else {
			node = r.ChildrenRight[node]
		}
	}
	return 0, errors.New("tree has a cycle")
}

// Vote classifies x with the flattened trees by majority vote over leaf
// classes and returns the winning class label. Ties go to the lowest class.
func Vote(p Params, x []float64) (int, error) {
	if len(p.Trees) == 0 || len(p.ClassLabels) == 0 {
		return 0, errors.New("vote: empty ensemble")
	}
	votes := make([]float64, len(p.ClassLabels))
	for i, r := range p.Trees {
		c, err := leafClass(r, x)
		if err != nil {
			return 0, errors.Wrapf(err, "vote: tree %d", i)
		}
		if c < 0 || c >= len(votes) {
			return 0, errors.Errorf("vote: tree %d yields class index %d", i, c)
		}
		votes[c]++
	}
	return p.ClassLabels[floats.MaxIdx(votes)], nil
}

// Agreement returns the fraction of rows of X whose Vote equals expected.
func Agreement(p Params, X [][]float64, expected []int) (float64, error) {
	if len(X) != len(expected) {
		return 0, errors.Errorf("agreement: %d samples vs %d expected", len(X), len(expected))
	}
	if len(X) == 0 {
		return 0, errors.New("agreement: no samples")
	}
	match := 0
	for i, x := range X {
		got, err := Vote(p, x)
		if err != nil {
			return 0, errors.Wrapf(err, "agreement: sample %d", i)
		}
		if got == expected[i] {
			match++
		}
	}
	return float64(match) / float64(len(X)), nil
}
