package model

// Sentinels stored in the node arrays.
const (
	// TreeLeaf marks a missing child.
	TreeLeaf = -1
	// TreeUndefined is the feature and threshold of a leaf.
	TreeUndefined = -2
)

// Tree is a fitted decision tree in node-array form. Node 0 is the root and
// node i splits on Feature[i] with "x <= Threshold[i]" going to ChildrenLeft[i].
// Nodes are stored in allocation order.
type Tree struct {
	Feature       []int
	Threshold     []float64
	ChildrenLeft  []int
	ChildrenRight []int
	// Value holds the weighted per-class sample counts that reached each node.
	Value       [][]float64
	NodeSamples []int
	Impurity    []float64

	NumFeatures int
	NumClasses  int
}

func newTree(nFeatures, nClasses int) *Tree {
	return &Tree{NumFeatures: nFeatures, NumClasses: nClasses}
}

// addNode appends a node and links it to its parent. parent is TreeLeaf for
// the root. Split nodes start without children until the builder adds them.
func (t *Tree) addNode(parent int, isLeft, isLeaf bool, feature int, threshold, impurity float64, nSamples int, value []float64) int {
	id := len(t.Feature)
	if isLeaf {
		feature = TreeUndefined
		threshold = TreeUndefined
	}
	t.Feature = append(t.Feature, feature)
	t.Threshold = append(t.Threshold, threshold)
	t.ChildrenLeft = append(t.ChildrenLeft, TreeLeaf)
	t.ChildrenRight = append(t.ChildrenRight, TreeLeaf)
	t.Value = append(t.Value, value)
	t.NodeSamples = append(t.NodeSamples, nSamples)
	t.Impurity = append(t.Impurity, impurity)

	if parent != TreeLeaf {
		if isLeft {
			t.ChildrenLeft[parent] = id
		} else {
			t.ChildrenRight[parent] = id
		}
	}
	return id
}

// makeLeaf turns a pending split node into a leaf.
func (t *Tree) makeLeaf(id int) {
	t.Feature[id] = TreeUndefined
	t.Threshold[id] = TreeUndefined
	t.ChildrenLeft[id] = TreeLeaf
	t.ChildrenRight[id] = TreeLeaf
}

// NodeCount returns the number of allocated nodes.
func (t *Tree) NodeCount() int { return len(t.Feature) }

// LeftChild returns the left child of node i, or TreeLeaf.
func (t *Tree) LeftChild(i int) int { return t.ChildrenLeft[i] }

// RightChild returns the right child of node i, or TreeLeaf.
func (t *Tree) RightChild(i int) int { return t.ChildrenRight[i] }

// SplitFeature returns the feature tested at node i, or TreeUndefined.
func (t *Tree) SplitFeature(i int) int { return t.Feature[i] }

// SplitThreshold returns the threshold tested at node i, or TreeUndefined.
func (t *Tree) SplitThreshold(i int) float64 { return t.Threshold[i] }

// ClassDistribution returns the per-class weighted sample counts at node i.
func (t *Tree) ClassDistribution(i int) []float64 { return t.Value[i] }

// IsLeaf reports whether node i has no children.
func (t *Tree) IsLeaf(i int) bool { return t.ChildrenLeft[i] == TreeLeaf }

// Apply returns the index of the leaf that x falls into.
func (t *Tree) Apply(x []float64) int {
	node := 0
	for !t.IsLeaf(node) {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return node
}

// PredictProba returns the class distribution of x's leaf, normalized to sum to 1.
func (t *Tree) PredictProba(x []float64) []float64 {
	v := t.Value[t.Apply(x)]
	return countsToProbas(v)
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if t.NodeCount() == 0 {
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
		if !t.IsLeaf(it.node) {
			stack = append(stack, item{t.ChildrenLeft[it.node], it.depth + 1}, item{t.ChildrenRight[it.node], it.depth + 1})
		}
	}
	return max
}

// NumLeaves returns the number of leaf nodes.
func (t *Tree) NumLeaves() int {
	n := 0
	for i := range t.ChildrenLeft {
		if t.IsLeaf(i) {
			n++
		}
	}
	return n
}
