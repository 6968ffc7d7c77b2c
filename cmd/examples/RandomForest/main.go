package main

import (
	"fmt"
	"math/rand"
	"time"

	"rfacc/pkg/config"
	"rfacc/pkg/data"
	"rfacc/pkg/export"
	"rfacc/pkg/loader"
	"rfacc/pkg/model"
	"rfacc/pkg/pipeline"
)

func main() {
	seed := time.Now().UnixNano()
	rnd := rand.New(rand.NewSource(seed))

	fmt.Println("=== Random Forest on iris, flattened for the accelerator ===")

	// Step 1. Load dataset
	ds, err := data.LoadIris()
	if err != nil {
		panic(fmt.Sprintf("loading iris: %v", err))
	}
	fmt.Printf("Loaded %d samples with %d features %v.\n", ds.NumSamples(), ds.NumFeatures(), ds.FeatureNames)

	// Step 2. Split into train/test sets
	split, err := loader.TrainTestSplit(ds.X, ds.Y, config.DefaultTrainSplitSize, rnd)
	if err != nil {
		panic(fmt.Sprintf("split failed: %v", err))
	}
	fmt.Printf("\nTrain size: %d, Test size: %d\n", len(split.XTrain), len(split.XTest))

	// Step 3. Train with the same trainer rf-train uses
	hp := config.Default().Hyperparams
	hp.NEstimators = 10
	hp.MaxDepth = 4
	hp.NJobs = -1
	fmt.Println("Training Random Forest with 10 trees, max depth 4...")
	clf, err := pipeline.ForestTrainer{}.Train(split.XTrain, split.YTrain, hp, rnd.Int63())
	if err != nil {
		panic(fmt.Sprintf("training failed: %v", err))
	}

	// Step 4. Predict and score
	preds := clf.Predict(split.XTest)
	acc, err := model.Accuracy(split.YTest, preds)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Accuracy on test data: %.2f%%\n", acc*100)

	// Step 5. Flatten and replay the vote the way the hardware does
	params := export.Extract(clf)
	fmt.Printf("\nFlattened %d trees, node counts %v\n", params.NumTrees, params.NumNodes)
	agreement, err := export.Agreement(params, split.XTest, preds)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Hard-vote agreement with soft-vote predictions: %.2f%%\n", agreement*100)

	if err := export.CheckLimits(params, export.DefaultLimits); err != nil {
		fmt.Println("Accelerator limits:", err)
	} else {
		fmt.Println("Model fits the accelerator limits.")
	}
}
