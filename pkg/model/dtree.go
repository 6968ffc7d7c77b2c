package model

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/btree"
	"github.com/pkg/errors"
)

// ---------------------------
// Types & options
// ---------------------------

// DecisionTreeClassifier is a CART classifier that grows a node-array Tree.
type DecisionTreeClassifier struct {
	// Hyperparameters / options
	MaxDepth            int       // maximum depth (root depth = 0). 0 => no limit
	MaxLeafNodes        int       // >0 => grow best-first with at most this many leaves
	MinSamplesSplit     int       // minimum samples to attempt a split
	MinSamplesLeaf      int       // minimum samples required in each leaf
	Criterion           Criterion // Gini (default), Entropy or LogLoss
	MaxFeatures         int       // 0 => use all features, >0 => non-constant features evaluated per split
	MinImpurityDecrease float64   // minimal weighted impurity decrease to accept a split
	RandomState         int64     // seed for feature sampling

	// internals
	tree    *Tree
	classes []int // sorted class labels; tree class index i is classes[i]
}

// Option functional config
type Option func(*DecisionTreeClassifier)

func WithMaxDepth(d int) Option        { return func(t *DecisionTreeClassifier) { t.MaxDepth = d } }
func WithMaxLeafNodes(n int) Option    { return func(t *DecisionTreeClassifier) { t.MaxLeafNodes = n } }
func WithMinSamplesSplit(n int) Option { return func(t *DecisionTreeClassifier) { t.MinSamplesSplit = n } }
func WithMinSamplesLeaf(n int) Option  { return func(t *DecisionTreeClassifier) { t.MinSamplesLeaf = n } }
func WithCriterion(c Criterion) Option { return func(t *DecisionTreeClassifier) { t.Criterion = c } }
func WithMaxFeatures(k int) Option     { return func(t *DecisionTreeClassifier) { t.MaxFeatures = k } }
func WithMinImpurityDecrease(v float64) Option {
	return func(t *DecisionTreeClassifier) { t.MinImpurityDecrease = v }
}
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeClassifier) { t.RandomState = seed }
}

// NewDecisionTreeClassifier returns a classifier with sensible defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	d := &DecisionTreeClassifier{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Criterion:       Gini,
		RandomState:     time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ---------------------------
// Public API
// ---------------------------

// Fit trains the tree on every row of X (n x p) with labels y.
func (t *DecisionTreeClassifier) Fit(X [][]float64, y []int) error {
	if err := checkXY(X, y); err != nil {
		return errors.Wrap(err, "dtree")
	}
	classes, yIdx := encodeClasses(y)
	t.classes = classes
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	return t.fit(X, yIdx, len(classes), idx)
}

// Tree returns the fitted node arrays, or nil before Fit.
func (t *DecisionTreeClassifier) Tree() *Tree { return t.tree }

// Classes returns the sorted class labels seen by Fit.
func (t *DecisionTreeClassifier) Classes() []int { return append([]int(nil), t.classes...) }

// Predict returns predicted class labels.
func (t *DecisionTreeClassifier) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i, x := range X {
		out[i] = t.classes[argmax(t.tree.PredictProba(x))]
	}
	return out
}

// PredictProba returns the per-class probability vectors for rows in X,
// aligned with Classes.
func (t *DecisionTreeClassifier) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		out[i] = t.tree.PredictProba(x)
	}
	return out
}

// fit grows the tree over the rows listed in idx. Repeated indices weight a
// row by its multiplicity. y holds class indices in [0, nClasses).
func (t *DecisionTreeClassifier) fit(X [][]float64, y []int, nClasses int, idx []int) error {
	if len(idx) == 0 {
		return errors.New("dtree: no samples")
	}
	if t.MaxLeafNodes == 1 || t.MaxLeafNodes < 0 {
		return errors.Errorf("dtree: max leaf nodes %d must be >= 2", t.MaxLeafNodes)
	}
	if t.MinSamplesLeaf < 1 {
		t.MinSamplesLeaf = 1
	}
	if t.MinSamplesSplit < 2 {
		t.MinSamplesSplit = 2
	}
	impurity, err := t.Criterion.impurityFunc()
	if err != nil {
		return errors.Wrap(err, "dtree")
	}

	p := len(X[0])
	maxFeatures := t.MaxFeatures
	if maxFeatures <= 0 || maxFeatures > p {
		maxFeatures = p
	}

	b := &builder{
		clf:         t,
		X:           X,
		y:           y,
		nClasses:    nClasses,
		nFeatures:   p,
		maxFeatures: maxFeatures,
		impurity:    impurity,
		rnd:         rand.New(rand.NewSource(t.RandomState)),
		tree:        newTree(p, nClasses),
		total:       float64(len(idx)),
	}
	if t.MaxLeafNodes > 0 {
		b.growBestFirst(idx)
	} else {
		b.growDepthFirst(idx, 0, TreeLeaf, false)
	}
	t.tree = b.tree
	return nil
}

// ---------------------------
// Internal builders & helpers
// ---------------------------

// impurityEpsilon treats impurities and gains below it as zero.
const impurityEpsilon = 1e-10

type builder struct {
	clf         *DecisionTreeClassifier
	X           [][]float64
	y           []int
	nClasses    int
	nFeatures   int
	maxFeatures int
	impurity    func(counts []float64, n float64) float64
	rnd         *rand.Rand
	tree        *Tree
	total       float64 // samples at the root, for weighting improvements
}

// splitResult holds the best split found for a node.
type splitResult struct {
	feature     int
	threshold   float64
	improvement float64 // n_node/n_root * (impurity - weighted child impurity)
	leftIdx     []int
	rightIdx    []int
}

// pair is a feature value and its sample index.
type pair struct {
	v float64
	i int
}

func (b *builder) counts(idx []int) []float64 {
	counts := make([]float64, b.nClasses)
	for _, ii := range idx {
		counts[b.y[ii]]++
	}
	return counts
}

// splittable applies the stopping rules that do not need a split search.
func (b *builder) splittable(n, depth int, impurity float64) bool {
	if b.clf.MaxDepth > 0 && depth >= b.clf.MaxDepth {
		return false
	}
	if n < b.clf.MinSamplesSplit || n < 2*b.clf.MinSamplesLeaf {
		return false
	}
	return impurity > impurityEpsilon
}

// growDepthFirst allocates nodes in pre-order: a node, its left subtree, then
// its right subtree.
func (b *builder) growDepthFirst(idx []int, depth, parent int, isLeft bool) {
	counts := b.counts(idx)
	imp := b.impurity(counts, float64(len(idx)))
	if b.splittable(len(idx), depth, imp) {
		if s, ok := b.findBestSplit(idx, counts, imp); ok {
			id := b.tree.addNode(parent, isLeft, false, s.feature, s.threshold, imp, len(idx), counts)
			b.growDepthFirst(s.leftIdx, depth+1, id, true)
			b.growDepthFirst(s.rightIdx, depth+1, id, false)
			return
		}
	}
	b.tree.addNode(parent, isLeft, true, 0, 0, imp, len(idx), counts)
}

type frontierItem struct {
	node  int
	depth int
	split splitResult
}

func frontierLess(a, c frontierItem) bool {
	if a.split.improvement != c.split.improvement {
		return a.split.improvement < c.split.improvement
	}
	// Among equal improvements the lower node id is the larger item, so it
	// is expanded first.
	return a.node > c.node
}

// growBestFirst expands the pending split with the largest improvement until
// MaxLeafNodes-1 splits are made; what is left in the frontier becomes leaves.
func (b *builder) growBestFirst(idx []int) {
	frontier := btree.NewG[frontierItem](8, frontierLess)
	b.addCandidate(frontier, idx, 0, TreeLeaf, false)

	splitsLeft := b.clf.MaxLeafNodes - 1
	for frontier.Len() > 0 {
		it, _ := frontier.DeleteMax()
		if splitsLeft <= 0 {
			b.tree.makeLeaf(it.node)
			continue
		}
		splitsLeft--
		b.addCandidate(frontier, it.split.leftIdx, it.depth+1, it.node, true)
		b.addCandidate(frontier, it.split.rightIdx, it.depth+1, it.node, false)
	}
}

// addCandidate allocates a node and, if it can be split, queues it.
func (b *builder) addCandidate(frontier *btree.BTreeG[frontierItem], idx []int, depth, parent int, isLeft bool) {
	counts := b.counts(idx)
	imp := b.impurity(counts, float64(len(idx)))
	if b.splittable(len(idx), depth, imp) {
		if s, ok := b.findBestSplit(idx, counts, imp); ok {
			id := b.tree.addNode(parent, isLeft, false, s.feature, s.threshold, imp, len(idx), counts)
			frontier.ReplaceOrInsert(frontierItem{node: id, depth: depth, split: s})
			return
		}
	}
	b.tree.addNode(parent, isLeft, true, 0, 0, imp, len(idx), counts)
}

// findBestSplit visits features in random order until maxFeatures
// non-constant ones have been scanned, and returns the split with the lowest
// weighted child impurity. Only splits that strictly reduce impurity count.
func (b *builder) findBestSplit(idx []int, counts []float64, parentImpurity float64) (splitResult, bool) {
	n := len(idx)
	minLeaf := b.clf.MinSamplesLeaf
	pairs := make([]pair, n)
	left := make([]float64, b.nClasses)
	right := make([]float64, b.nClasses)

	best := splitResult{feature: TreeUndefined}
	bestChild := math.Inf(1)
	visited := 0
	for _, f := range b.rnd.Perm(b.nFeatures) {
		if visited >= b.maxFeatures {
			break
		}
		for k, ii := range idx {
			pairs[k] = pair{b.X[ii][f], ii}
		}
		sort.Slice(pairs, func(a, c int) bool { return pairs[a].v < pairs[c].v })
		if pairs[n-1].v <= pairs[0].v {
			continue // constant feature
		}
		visited++

		for c := range left {
			left[c] = 0
			right[c] = counts[c]
		}
		for s := 1; s < n; s++ {
			cls := b.y[pairs[s-1].i]
			left[cls]++
			right[cls]--
			if pairs[s].v <= pairs[s-1].v {
				continue
			}
			if s < minLeaf || n-s < minLeaf {
				continue
			}
			nl, nr := float64(s), float64(n-s)
			child := (nl*b.impurity(left, nl) + nr*b.impurity(right, nr)) / float64(n)
			if child < bestChild {
				bestChild = child
				best.feature = f
				best.threshold = midpoint(pairs[s-1].v, pairs[s].v)
			}
		}
	}

	if best.feature == TreeUndefined {
		return best, false
	}
	gain := parentImpurity - bestChild
	best.improvement = float64(n) / b.total * gain
	if gain <= impurityEpsilon || best.improvement < b.clf.MinImpurityDecrease {
		return best, false
	}

	for _, ii := range idx {
		if b.X[ii][best.feature] <= best.threshold {
			best.leftIdx = append(best.leftIdx, ii)
		} else {
			best.rightIdx = append(best.rightIdx, ii)
		}
	}
	return best, true
}

// midpoint returns a threshold t with lo <= t < hi.
func midpoint(lo, hi float64) float64 {
	t := lo/2 + hi/2
	if t >= hi || math.IsInf(t, 0) || math.IsNaN(t) {
		t = lo
	}
	return t
}

func checkXY(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("empty X")
	}
	if len(y) != len(X) {
		return errors.New("X and y length mismatch")
	}
	p := len(X[0])
	if p == 0 {
		return errors.New("X has no features")
	}
	for i := range X {
		if len(X[i]) != p {
			return errors.New("inconsistent number of features in X rows")
		}
	}
	return nil
}

// encodeClasses returns the sorted distinct labels and each label's index
// into them.
func encodeClasses(y []int) ([]int, []int) {
	seen := make(map[int]bool)
	var classes []int
	for _, lab := range y {
		if !seen[lab] {
			seen[lab] = true
			classes = append(classes, lab)
		}
	}
	sort.Ints(classes)
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	enc := make([]int, len(y))
	for i, lab := range y {
		enc[i] = index[lab]
	}
	return classes, enc
}
