package data

import (
	"sort"

	"github.com/pkg/errors"
)

// Dataset is an in-memory labeled dataset: N samples of F real-valued
// features and one integer class label per sample.
type Dataset struct {
	Name         string
	FeatureNames []string
	X            [][]float64
	Y            []int
	// ClassNames maps a label to a readable name, when the source has one.
	ClassNames map[int]string
}

// Validate checks that the dataset is non-empty and rectangular.
func (d *Dataset) Validate() error {
	if len(d.X) == 0 {
		return errors.Errorf("dataset %s: no samples", d.Name)
	}
	if len(d.X) != len(d.Y) {
		return errors.Errorf("dataset %s: %d feature rows but %d labels", d.Name, len(d.X), len(d.Y))
	}
	p := len(d.X[0])
	if p == 0 {
		return errors.Errorf("dataset %s: no features", d.Name)
	}
	for i, row := range d.X {
		if len(row) != p {
			return errors.Errorf("dataset %s: row %d has %d features, expected %d", d.Name, i, len(row), p)
		}
	}
	return nil
}

// NumSamples returns N.
func (d *Dataset) NumSamples() int { return len(d.X) }

// NumFeatures returns F.
func (d *Dataset) NumFeatures() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// Classes returns the distinct labels in ascending order.
func (d *Dataset) Classes() []int {
	seen := make(map[int]struct{})
	var out []int
	for _, y := range d.Y {
		if _, ok := seen[y]; !ok {
			seen[y] = struct{}{}
			out = append(out, y)
		}
	}
	sort.Ints(out)
	return out
}
