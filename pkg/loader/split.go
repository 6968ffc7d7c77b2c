package loader

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Split is a train/test partition of a labeled dataset.
type Split struct {
	XTrain, XTest [][]float64
	YTrain, YTest []int
}

// TrainTestSplit shuffles X, y with rnd and puts floor(N*trainSize) samples in
// the training subset and the remainder in the test subset. Rows are shared
// with the input, not copied.
func TrainTestSplit(X [][]float64, y []int, trainSize float64, rnd *rand.Rand) (*Split, error) {
	n := len(X)
	if n != len(y) {
		return nil, errors.Errorf("split: %d feature rows but %d labels", n, len(y))
	}
	if !(trainSize > 0 && trainSize < 1) {
		return nil, errors.Errorf("split: train size %v outside (0, 1)", trainSize)
	}
	nTrain := int(math.Floor(float64(n) * trainSize))
	if nTrain == 0 || nTrain == n {
		return nil, errors.Errorf("split: train size %v of %d samples leaves an empty subset", trainSize, n)
	}

	indices := rnd.Perm(n)
	s := &Split{
		XTrain: make([][]float64, 0, nTrain),
		YTrain: make([]int, 0, nTrain),
		XTest:  make([][]float64, 0, n-nTrain),
		YTest:  make([]int, 0, n-nTrain),
	}
	for i, idx := range indices {
		if i < nTrain {
			s.XTrain = append(s.XTrain, X[idx])
			s.YTrain = append(s.YTrain, y[idx])
		} else {
			s.XTest = append(s.XTest, X[idx])
			s.YTest = append(s.YTest, y[idx])
		}
	}
	return s, nil
}
