package main

import (
	"fmt"
	"math/rand"
	"time"

	"rfacc/pkg/export"
	"rfacc/pkg/model"
)

// generateClassificationData creates a synthetic dataset with Gaussian blobs
func generateClassificationData(rnd *rand.Rand, nSamples, nFeatures, nClasses int) ([][]float64, []int) {
	X := make([][]float64, nSamples)
	y := make([]int, nSamples)

	// Random centers for each class
	centers := make([][]float64, nClasses)
	for i := 0; i < nClasses; i++ {
		centers[i] = make([]float64, nFeatures)
		for j := 0; j < nFeatures; j++ {
			centers[i][j] = rnd.Float64()*10 - 5 // random center between -5 and 5
		}
	}

	// Assign points to clusters with Gaussian noise
	for i := 0; i < nSamples; i++ {
		class := rnd.Intn(nClasses)
		X[i] = make([]float64, nFeatures)
		for j := 0; j < nFeatures; j++ {
			X[i][j] = centers[class][j] + rnd.NormFloat64() // noise around center
		}
		y[i] = class
	}

	return X, y
}

func main() {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	// Generate dataset
	X, y := generateClassificationData(rnd, 500, 2, 3)

	// Grow best-first with at most 4 leaves so the arrays stay readable
	tree := model.NewDecisionTreeClassifier(model.WithMaxLeafNodes(4), model.WithRandomState(rnd.Int63()))
	if err := tree.Fit(X, y); err != nil {
		panic(err)
	}

	rec := export.Flatten(tree.Tree())
	fmt.Printf("Decision tree: %d nodes, depth %d\n", rec.NodeCount(), export.Depth(rec))
	fmt.Println("node  leaf  feature  threshold  left  right  class")
	for i := 0; i < rec.NodeCount(); i++ {
		fmt.Printf("%4d  %4d  %7d  %9.3f  %4d  %5d  %5d\n",
			i, rec.IsLeaf[i], rec.Features[i], rec.Threshold[i],
			rec.ChildrenLeft[i], rec.ChildrenRight[i], rec.Classes[i])
	}

	acc, err := model.Accuracy(y, tree.Predict(X))
	if err != nil {
		panic(err)
	}
	fmt.Printf("Training accuracy: %.2f%%\n", acc*100)
}
