package pipeline

import (
	"github.com/pkg/errors"

	"rfacc/pkg/config"
	"rfacc/pkg/data"
	"rfacc/pkg/export"
	"rfacc/pkg/model"
)

// Classifier is a trained ensemble: it predicts labels and exposes its trees
// for flattening.
type Classifier interface {
	export.Ensemble
	Predict(X [][]float64) []int
}

// Trainer fits a Classifier on a training subset.
type Trainer interface {
	Train(X [][]float64, y []int, hp config.Hyperparams, seed int64) (Classifier, error)
}

// Evaluator scores predictions against the true labels.
type Evaluator interface {
	Evaluate(yTrue, yPred []int) (float64, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(yTrue, yPred []int) (float64, error)

func (f EvaluatorFunc) Evaluate(yTrue, yPred []int) (float64, error) { return f(yTrue, yPred) }

// DatasetLoader provides a dataset by name.
type DatasetLoader interface {
	Load(name string, opts data.Options) (*data.Dataset, error)
}

// DatasetLoaderFunc adapts a function to DatasetLoader.
type DatasetLoaderFunc func(name string, opts data.Options) (*data.Dataset, error)

func (f DatasetLoaderFunc) Load(name string, opts data.Options) (*data.Dataset, error) {
	return f(name, opts)
}

// ForestTrainer trains a model.RandomForest.
type ForestTrainer struct{}

// Train implements Trainer.
func (ForestTrainer) Train(X [][]float64, y []int, hp config.Hyperparams, seed int64) (Classifier, error) {
	criterion, err := model.ParseCriterion(hp.Criterion)
	if err != nil {
		return nil, errors.Wrap(config.ErrInvalid, err.Error())
	}
	maxFeatures := model.MaxFeatures{Rule: hp.MaxFeatures.Rule, N: hp.MaxFeatures.N}
	if len(X) > 0 {
		// A count larger than the dataset's feature count is a config mistake.
		if _, err := maxFeatures.Resolve(len(X[0])); err != nil {
			return nil, errors.Wrap(config.ErrInvalid, err.Error())
		}
	}
	treeOpts := []model.Option{
		model.WithCriterion(criterion),
		model.WithMaxDepth(hp.MaxDepth),
		model.WithMaxLeafNodes(hp.MaxLeafNodes),
		model.WithMinSamplesSplit(hp.MinSamplesSplit),
		model.WithMinSamplesLeaf(hp.MinSamplesLeaf),
		model.WithMinImpurityDecrease(hp.MinImpurityDecrease),
	}
	rf := model.NewRandomForest(
		model.WithNEstimators(hp.NEstimators),
		model.WithFeatureSampling(maxFeatures),
		model.WithBootstrap(hp.Bootstrap),
		model.WithNJobs(hp.NJobs),
		model.WithSeed(seed),
		model.WithTreeOptions(treeOpts...),
	)
	if err := rf.Fit(X, y); err != nil {
		return nil, err
	}
	return forest{rf}, nil
}

// forest exposes a fitted RandomForest through the flattener's contract.
type forest struct {
	*model.RandomForest
}

func (f forest) ClassLabels() []int     { return f.Classes() }
func (f forest) NumTrees() int          { return len(f.Trees) }
func (f forest) Tree(i int) export.Tree { return f.Trees[i].Tree() }

var (
	_ Trainer       = ForestTrainer{}
	_ Evaluator     = EvaluatorFunc(model.Accuracy)
	_ DatasetLoader = DatasetLoaderFunc(data.Load)
)
