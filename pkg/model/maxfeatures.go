package model

import (
	"math"

	"github.com/pkg/errors"
)

// Named rules for MaxFeatures.Rule.
const (
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
	MaxFeaturesAll  = "all"
)

// MaxFeatures chooses how many features each split considers: a named rule,
// or a fixed count N when Rule is empty.
type MaxFeatures struct {
	Rule string
	N    int
}

// Resolve returns the per-split feature count for nFeatures features. It is
// always at least 1.
func (m MaxFeatures) Resolve(nFeatures int) (int, error) {
	var k int
	switch m.Rule {
	case MaxFeaturesSqrt:
		k = int(math.Sqrt(float64(nFeatures)))
	case MaxFeaturesLog2:
		k = int(math.Log2(float64(nFeatures)))
	case MaxFeaturesAll:
		k = nFeatures
	case "":
		if m.N < 1 || m.N > nFeatures {
			return 0, errors.Errorf("max_features %d outside [1, %d]", m.N, nFeatures)
		}
		k = m.N
	default:
		return 0, errors.Errorf("unsupported max_features rule %q", m.Rule)
	}
	if k < 1 {
		k = 1
	}
	return k, nil
}
