package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfacc/pkg/data"
)

func iris(t *testing.T) *data.Dataset {
	ds, err := data.LoadIris()
	require.NoError(t, err)
	return ds
}

// assertWellFormed checks that every node has either two children or none.
func assertWellFormed(t *testing.T, tr *Tree) {
	for i := 0; i < tr.NodeCount(); i++ {
		l, r := tr.LeftChild(i), tr.RightChild(i)
		if l == TreeLeaf {
			assert.Equal(t, TreeLeaf, r, "node %d", i)
			assert.Equal(t, TreeUndefined, tr.SplitFeature(i), "node %d", i)
			assert.Equal(t, float64(TreeUndefined), tr.SplitThreshold(i), "node %d", i)
			continue
		}
		assert.NotEqual(t, TreeLeaf, r, "node %d", i)
		assert.Greater(t, l, i)
		assert.Greater(t, r, i)
	}
}

func TestImpurity(t *testing.T) {
	assert.InDelta(t, 0.5, giniFromCounts([]float64{5, 5}, 10), 1e-12)
	assert.InDelta(t, 0.0, giniFromCounts([]float64{10, 0}, 10), 1e-12)
	assert.InDelta(t, 1.0, entropyFromCounts([]float64{5, 5}, 10), 1e-12)
	assert.InDelta(t, 0.0, entropyFromCounts([]float64{0, 7}, 7), 1e-12)

	for _, name := range []string{"gini", "entropy", "log_loss"} {
		c, err := ParseCriterion(name)
		require.NoError(t, err)
		assert.Equal(t, Criterion(name), c)
	}
	_, err := ParseCriterion("mse")
	assert.Error(t, err)
}

func TestMaxFeaturesResolve(t *testing.T) {
	cases := []struct {
		m    MaxFeatures
		p    int
		want int
	}{
		{MaxFeatures{Rule: MaxFeaturesSqrt}, 4, 2},
		{MaxFeatures{Rule: MaxFeaturesSqrt}, 1, 1},
		{MaxFeatures{Rule: MaxFeaturesLog2}, 8, 3},
		{MaxFeatures{Rule: MaxFeaturesLog2}, 1, 1},
		{MaxFeatures{Rule: MaxFeaturesAll}, 4, 4},
		{MaxFeatures{N: 3}, 4, 3},
	}
	for _, c := range cases {
		got, err := c.m.Resolve(c.p)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "%+v over %d", c.m, c.p)
	}

	_, err := MaxFeatures{N: 5}.Resolve(4)
	assert.Error(t, err)
	_, err = MaxFeatures{N: 0}.Resolve(4)
	assert.Error(t, err)
	_, err = MaxFeatures{Rule: "half"}.Resolve(4)
	assert.Error(t, err)
}

func TestTreeArrays(t *testing.T) {
	tr := newTree(2, 2)
	root := tr.addNode(TreeLeaf, false, false, 1, 0.5, 0.5, 4, []float64{2, 2})
	tr.addNode(root, true, true, 0, 0, 0, 2, []float64{2, 0})
	tr.addNode(root, false, true, 0, 0, 0, 2, []float64{0, 2})

	assert.Equal(t, 3, tr.NodeCount())
	assert.Equal(t, 1, tr.LeftChild(0))
	assert.Equal(t, 2, tr.RightChild(0))
	assert.Equal(t, TreeUndefined, tr.SplitFeature(1))
	assert.Equal(t, 1, tr.Depth())
	assert.Equal(t, 2, tr.NumLeaves())
	assert.Equal(t, 1, tr.Apply([]float64{9, 0.5}))
	assert.Equal(t, 2, tr.Apply([]float64{9, 0.6}))
	assert.Equal(t, []float64{0, 1}, tr.PredictProba([]float64{0, 1}))
	assertWellFormed(t, tr)
}

func TestDecisionTreeSeparable(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []int{7, 7, 9, 9}

	clf := NewDecisionTreeClassifier(WithRandomState(1))
	require.NoError(t, clf.Fit(X, y))

	tr := clf.Tree()
	require.Equal(t, 3, tr.NodeCount())
	assert.Equal(t, 0, tr.SplitFeature(0))
	assert.Equal(t, 2.5, tr.SplitThreshold(0))
	assert.Equal(t, []float64{2, 0}, tr.ClassDistribution(1))
	assert.Equal(t, []float64{0, 2}, tr.ClassDistribution(2))
	assert.Equal(t, []int{7, 9}, clf.Classes())
	assert.Equal(t, y, clf.Predict(X))
	assertWellFormed(t, tr)
}

func TestDecisionTreeConstantFeatures(t *testing.T) {
	X := [][]float64{{1, 1}, {1, 1}, {1, 1}}
	clf := NewDecisionTreeClassifier(WithRandomState(1))
	require.NoError(t, clf.Fit(X, []int{0, 1, 1}))

	tr := clf.Tree()
	assert.Equal(t, 1, tr.NodeCount())
	assert.True(t, tr.IsLeaf(0))
	assert.Equal(t, []int{1, 1, 1}, clf.Predict(X))
}

func TestDecisionTreeMaxDepth(t *testing.T) {
	ds := iris(t)
	for _, d := range []int{1, 2, 3} {
		clf := NewDecisionTreeClassifier(WithMaxDepth(d), WithRandomState(3))
		require.NoError(t, clf.Fit(ds.X, ds.Y))
		assert.LessOrEqual(t, clf.Tree().Depth(), d)
		assertWellFormed(t, clf.Tree())
	}
}

func TestDecisionTreeUnlimitedFitsTraining(t *testing.T) {
	ds := iris(t)
	clf := NewDecisionTreeClassifier(WithRandomState(3))
	require.NoError(t, clf.Fit(ds.X, ds.Y))
	acc, err := Accuracy(ds.Y, clf.Predict(ds.X))
	require.NoError(t, err)
	assert.Greater(t, acc, 0.98)
}

func TestDecisionTreeMaxLeafNodes(t *testing.T) {
	ds := iris(t)
	for _, n := range []int{2, 3, 5} {
		clf := NewDecisionTreeClassifier(WithMaxLeafNodes(n), WithRandomState(3))
		require.NoError(t, clf.Fit(ds.X, ds.Y))
		tr := clf.Tree()
		assert.LessOrEqual(t, tr.NumLeaves(), n)
		assert.Equal(t, 2*tr.NumLeaves()-1, tr.NodeCount())
		assertWellFormed(t, tr)
	}

	clf := NewDecisionTreeClassifier(WithMaxLeafNodes(1))
	assert.Error(t, clf.Fit(ds.X, ds.Y))
}

func TestDecisionTreeMinSamplesLeaf(t *testing.T) {
	ds := iris(t)
	clf := NewDecisionTreeClassifier(WithMinSamplesLeaf(10), WithRandomState(3))
	require.NoError(t, clf.Fit(ds.X, ds.Y))
	tr := clf.Tree()
	for i := 0; i < tr.NodeCount(); i++ {
		if tr.IsLeaf(i) {
			assert.GreaterOrEqual(t, tr.NodeSamples[i], 10)
		}
	}
}

func TestDecisionTreeRejectsBadInput(t *testing.T) {
	clf := NewDecisionTreeClassifier()
	assert.Error(t, clf.Fit(nil, nil))
	assert.Error(t, clf.Fit([][]float64{{1}, {2}}, []int{0}))
	assert.Error(t, clf.Fit([][]float64{{1}, {2, 3}}, []int{0, 1}))
	assert.Error(t, NewDecisionTreeClassifier(WithCriterion("mse")).Fit([][]float64{{1}, {2}}, []int{0, 1}))
}

func thresholds(rf *RandomForest) [][]float64 {
	out := make([][]float64, len(rf.Trees))
	for i, t := range rf.Trees {
		out[i] = t.Tree().Threshold
	}
	return out
}

func TestRandomForestDeterministicAcrossJobs(t *testing.T) {
	ds := iris(t)
	fit := func(jobs int) *RandomForest {
		rf := NewRandomForest(
			WithNEstimators(8),
			WithSeed(42),
			WithNJobs(jobs),
			WithTreeOptions(WithMaxDepth(4)),
		)
		require.NoError(t, rf.Fit(ds.X, ds.Y))
		return rf
	}
	a, b, c := fit(1), fit(4), fit(-1)
	assert.Equal(t, thresholds(a), thresholds(b))
	assert.Equal(t, thresholds(a), thresholds(c))
	assert.Equal(t, a.Predict(ds.X), b.Predict(ds.X))

	for _, tr := range a.Trees {
		assert.LessOrEqual(t, tr.Tree().Depth(), 4)
		assertWellFormed(t, tr.Tree())
	}
}

func TestRandomForestAccuracy(t *testing.T) {
	ds := iris(t)
	rf := NewRandomForest(WithNEstimators(10), WithSeed(7), WithNJobs(2))
	require.NoError(t, rf.Fit(ds.X, ds.Y))

	assert.Len(t, rf.Trees, 10)
	assert.Equal(t, []int{0, 1, 2}, rf.Classes())
	assert.Equal(t, 4, rf.NumFeatures())

	acc, err := Accuracy(ds.Y, rf.Predict(ds.X))
	require.NoError(t, err)
	assert.Greater(t, acc, 0.9)

	for _, p := range rf.PredictProba(ds.X[:5]) {
		sum := 0.0
		for _, v := range p {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestRandomForestMaxLeafNodes(t *testing.T) {
	ds := iris(t)
	rf := NewRandomForest(
		WithNEstimators(5),
		WithSeed(1),
		WithFeatureSampling(MaxFeatures{Rule: MaxFeaturesAll}),
		WithTreeOptions(WithMaxLeafNodes(4)),
	)
	require.NoError(t, rf.Fit(ds.X, ds.Y))
	for _, tr := range rf.Trees {
		assert.LessOrEqual(t, tr.Tree().NumLeaves(), 4)
	}
}

func TestRandomForestRejectsBadInput(t *testing.T) {
	X := [][]float64{{1, 2}, {3, 4}}
	y := []int{0, 1}
	assert.Error(t, NewRandomForest(WithNEstimators(0)).Fit(X, y))
	assert.Error(t, NewRandomForest(WithFeatureSampling(MaxFeatures{N: 3})).Fit(X, y))
	assert.Error(t, NewRandomForest().Fit(X, []int{0}))
}

func TestSoftVoteTieGoesToLowestClass(t *testing.T) {
	// Two stumps that disagree completely on every row.
	mk := func(left, right []float64) *DecisionTreeClassifier {
		tr := newTree(1, 2)
		root := tr.addNode(TreeLeaf, false, false, 0, 0.5, 0.5, 2, []float64{1, 1})
		tr.addNode(root, true, true, 0, 0, 0, 1, left)
		tr.addNode(root, false, true, 0, 0, 0, 1, right)
		return &DecisionTreeClassifier{tree: tr, classes: []int{3, 5}}
	}
	rf := &RandomForest{
		Trees:   []*DecisionTreeClassifier{mk([]float64{1, 0}, []float64{0, 1}), mk([]float64{0, 1}, []float64{1, 0})},
		classes: []int{3, 5},
	}
	assert.Equal(t, []int{3, 3}, rf.Predict([][]float64{{0}, {1}}))
}

func TestMetrics(t *testing.T) {
	acc, err := Accuracy([]int{0, 1, 1, 2}, []int{0, 1, 2, 2})
	require.NoError(t, err)
	assert.Equal(t, 0.75, acc)

	_, err = Accuracy([]int{0}, []int{0, 1})
	assert.Error(t, err)
	_, err = Accuracy(nil, nil)
	assert.Error(t, err)

	cm := ConfusionMatrix([]int{0, 1, 1, 2}, []int{0, 1, 2, 2}, []int{0, 1, 2})
	assert.Equal(t, [][]int{{1, 0, 0}, {0, 1, 1}, {0, 0, 1}}, cm)

	p, r, f1 := PrecisionRecallF1([]int{0, 1, 1, 2}, []int{0, 1, 2, 2}, 2)
	assert.Equal(t, 0.5, p)
	assert.Equal(t, 1.0, r)
	assert.InDelta(t, 2.0/3.0, f1, 1e-12)
}
