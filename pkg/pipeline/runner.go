package pipeline

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rfacc/pkg/config"
	"rfacc/pkg/data"
	"rfacc/pkg/export"
	"rfacc/pkg/loader"
	"rfacc/pkg/model"
	"rfacc/pkg/output"
)

// Result is everything a run produced.
type Result struct {
	Document  output.Document
	Params    export.Params
	Dataset   *data.Dataset
	Test      output.TestSet
	TestY     []int // true labels of the test candidates
	Accuracy  float64
	Agreement float64 // flattened-tree vote vs. expected classifications
	TrainSize int
	TestSize  int
	Seed      int64
	// LimitErr holds accelerator limit violations that were not fatal.
	LimitErr error
}

// Runner executes the training pipeline for one config.
type Runner struct {
	loader       DatasetLoader
	trainer      Trainer
	evaluator    Evaluator
	limits       export.Limits
	strictLimits bool
	logger       *zap.Logger
	clock        func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

func WithDatasetLoader(l DatasetLoader) RunnerOption { return func(r *Runner) { r.loader = l } }
func WithTrainer(t Trainer) RunnerOption             { return func(r *Runner) { r.trainer = t } }
func WithEvaluator(e Evaluator) RunnerOption         { return func(r *Runner) { r.evaluator = e } }
func WithLogger(l *zap.Logger) RunnerOption          { return func(r *Runner) { r.logger = l } }

// WithLimits sets the accelerator limits. With strict set, violations fail
// the run; otherwise they are logged and reported in Result.LimitErr.
func WithLimits(l export.Limits, strict bool) RunnerOption {
	return func(r *Runner) {
		r.limits = l
		r.strictLimits = strict
	}
}

// New returns a Runner using the built-in datasets, the random forest
// trainer and accuracy.
func New(opts ...RunnerOption) *Runner {
	r := &Runner{
		loader:    DatasetLoaderFunc(data.Load),
		trainer:   ForestTrainer{},
		evaluator: EvaluatorFunc(model.Accuracy),
		limits:    export.DefaultLimits,
		logger:    zap.NewNop(),
		clock:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run loads the dataset, trains, evaluates and flattens the model, and
// assembles the output document. Nothing is written.
func (r *Runner) Run(cfg *config.Config) (*Result, error) {
	res := &Result{}
	if cfg.RandomState != nil {
		res.Seed = *cfg.RandomState
	} else {
		res.Seed = r.clock().UnixNano()
	}
	r.logger.Debug("seed", zap.Int64("seed", res.Seed), zap.Bool("from_config", cfg.RandomState != nil))
	rnd := rand.New(rand.NewSource(res.Seed))

	var (
		split *loader.Split
		clf   Classifier
	)
	p := NewPipeline(r.logger,
		Step{"load dataset", func() error {
			ds, err := r.loader.Load(cfg.Dataset, data.Options{Path: cfg.DatasetPath, LabelColumn: cfg.LabelColumn})
			if err != nil {
				return err
			}
			res.Dataset = ds
			r.logger.Info("dataset loaded",
				zap.String("dataset", ds.Name),
				zap.Int("samples", ds.NumSamples()),
				zap.Int("features", ds.NumFeatures()),
				zap.Ints("classes", ds.Classes()))
			return nil
		}},
		Step{"split", func() error {
			var err error
			split, err = loader.TrainTestSplit(res.Dataset.X, res.Dataset.Y, cfg.TrainSplitSize, rnd)
			if err != nil {
				// The dataset is already validated, so only train_split_size can be at fault.
				return errors.Wrap(config.ErrInvalid, err.Error())
			}
			res.TrainSize, res.TestSize = len(split.YTrain), len(split.YTest)
			return nil
		}},
		Step{"train", func() error {
			var err error
			clf, err = r.trainer.Train(split.XTrain, split.YTrain, cfg.Hyperparams, rnd.Int63())
			if err != nil {
				return err
			}
			r.logger.Info("model trained", zap.Int("trees", clf.NumTrees()), zap.Int("train_samples", res.TrainSize))
			return nil
		}},
		Step{"evaluate", func() error {
			pred := clf.Predict(split.XTest)
			acc, err := r.evaluator.Evaluate(split.YTest, pred)
			if err != nil {
				return err
			}
			res.Accuracy = acc
			res.Test = output.TestSet{Candidates: split.XTest, Expected: pred}
			res.TestY = split.YTest
			r.logger.Info("accuracy", zap.Float64("accuracy", acc), zap.Int("test_samples", res.TestSize))
			return nil
		}},
		Step{"flatten", func() error {
			res.Params = export.Extract(clf)
			agreement, err := export.Agreement(res.Params, res.Test.Candidates, res.Test.Expected)
			if err != nil {
				return err
			}
			res.Agreement = agreement
			r.logger.Debug("flattened vote agreement", zap.Float64("agreement", agreement))
			return nil
		}},
		Step{"check limits", func() error {
			err := export.CheckLimits(res.Params, r.limits)
			if err == nil {
				return nil
			}
			if r.strictLimits {
				return err
			}
			res.LimitErr = err
			r.logger.Warn("model exceeds accelerator limits", zap.Error(err))
			return nil
		}},
		Step{"assemble", func() error {
			doc, err := output.Assemble(cfg, res.Params, res.Test)
			if err != nil {
				return err
			}
			res.Document = doc
			return nil
		}},
	)
	if err := p.Run(); err != nil {
		return nil, errors.WithStack(err)
	}
	return res, nil
}
