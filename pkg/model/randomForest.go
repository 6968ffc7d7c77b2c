package model

import (
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// RandomForest for classification
type RandomForest struct {
	// Hyperparameters / options
	NEstimators int
	MaxFeatures MaxFeatures // per-split feature sampling, resolved against the feature count at Fit
	Bootstrap   bool
	NJobs       int // concurrent tree fits; <= 0 means runtime.NumCPU()
	RandomState int64

	// Internal state
	Trees     []*DecisionTreeClassifier
	treeOpts  []Option
	classes   []int
	nFeatures int
}

// RandomForestOption functional config for RandomForest
type RandomForestOption func(*RandomForest)

func WithNEstimators(n int) RandomForestOption { return func(rf *RandomForest) { rf.NEstimators = n } }
func WithBootstrap(b bool) RandomForestOption  { return func(rf *RandomForest) { rf.Bootstrap = b } }
func WithNJobs(n int) RandomForestOption       { return func(rf *RandomForest) { rf.NJobs = n } }
func WithSeed(seed int64) RandomForestOption   { return func(rf *RandomForest) { rf.RandomState = seed } }
func WithFeatureSampling(m MaxFeatures) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxFeatures = m }
}

// WithTreeOptions sets options applied to every tree. Per-tree seeds and the
// max-features count are set by the forest and override these.
func WithTreeOptions(opts ...Option) RandomForestOption {
	return func(rf *RandomForest) { rf.treeOpts = append(rf.treeOpts, opts...) }
}

// NewRandomForest initializes the forest with sensible defaults.
func NewRandomForest(opts ...RandomForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators: 100,
		MaxFeatures: MaxFeatures{Rule: MaxFeaturesSqrt},
		Bootstrap:   true,
		NJobs:       1,
		RandomState: time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the random forest. Each tree gets a seed drawn up front from
// RandomState, so the fitted forest does not depend on NJobs.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if err := checkXY(X, y); err != nil {
		return errors.Wrap(err, "randomforest")
	}
	if rf.NEstimators < 1 {
		return errors.Errorf("randomforest: n_estimators %d must be >= 1", rf.NEstimators)
	}
	n, p := len(X), len(X[0])
	maxFeatures, err := rf.MaxFeatures.Resolve(p)
	if err != nil {
		return errors.Wrap(err, "randomforest")
	}

	classes, yIdx := encodeClasses(y)
	rf.classes = classes
	rf.nFeatures = p

	rnd := rand.New(rand.NewSource(rf.RandomState))
	seeds := make([]int64, rf.NEstimators)
	for i := range seeds {
		seeds[i] = rnd.Int63()
	}

	workers := rf.NJobs
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > rf.NEstimators {
		workers = rf.NEstimators
	}

	trees := make([]*DecisionTreeClassifier, rf.NEstimators)
	errs := make([]error, rf.NEstimators)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				trees[idx], errs[idx] = rf.fitTree(X, yIdx, len(classes), n, maxFeatures, seeds[idx])
			}
		}()
	}
	for i := 0; i < rf.NEstimators; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return errors.Wrap(err, "randomforest")
	}
	rf.Trees = trees
	return nil
}

func (rf *RandomForest) fitTree(X [][]float64, y []int, nClasses, n, maxFeatures int, seed int64) (*DecisionTreeClassifier, error) {
	// Bootstrap sampling: an index slice, not a copy of the data.
	treeRand := rand.New(rand.NewSource(seed))
	sampleIndices := make([]int, n)
	for j := range sampleIndices {
		if rf.Bootstrap {
			sampleIndices[j] = treeRand.Intn(n)
		} else {
			sampleIndices[j] = j
		}
	}

	opts := append(append([]Option(nil), rf.treeOpts...),
		WithMaxFeatures(maxFeatures),
		WithRandomState(treeRand.Int63()),
	)
	tree := NewDecisionTreeClassifier(opts...)
	tree.classes = rf.classes
	if err := tree.fit(X, y, nClasses, sampleIndices); err != nil {
		return nil, err
	}
	return tree, nil
}

// Classes returns the sorted class labels seen by Fit.
func (rf *RandomForest) Classes() []int { return append([]int(nil), rf.classes...) }

// NumFeatures returns the feature count seen by Fit.
func (rf *RandomForest) NumFeatures() int { return rf.nFeatures }

// PredictProba averages the per-tree class probabilities of each row.
func (rf *RandomForest) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		acc := make([]float64, len(rf.classes))
		for _, t := range rf.Trees {
			for c, p := range t.tree.PredictProba(x) {
				acc[c] += p
			}
		}
		for c := range acc {
			acc[c] /= float64(len(rf.Trees))
		}
		out[i] = acc
	}
	return out
}

// Predict returns the class with the highest averaged probability. Ties go to
// the smaller class label.
func (rf *RandomForest) Predict(X [][]float64) []int {
	proba := rf.PredictProba(X)
	out := make([]int, len(X))
	for i, p := range proba {
		out[i] = rf.classes[argmax(p)]
	}
	return out
}
