package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ErrLimitExceeded matches any error returned by CheckLimits.
var ErrLimitExceeded = errors.New("accelerator limits exceeded")

// Limits are the capacities of the hardware classifier.
type Limits struct {
	MaxFeatures int
	MaxClasses  int
	MaxTrees    int
	MaxNodes    int // per tree
	MaxDepth    int

	// Split thresholds are packed as signed fixed point: FixedPointWidth bits
	// in total, FixedPointFracBits of them fractional.
	FixedPointWidth    int
	FixedPointFracBits int
}

// DefaultLimits matches the accelerator SDK.
var DefaultLimits = Limits{
	MaxFeatures:        10,
	MaxClasses:         10,
	MaxTrees:           100,
	MaxNodes:           1000,
	MaxDepth:           16,
	FixedPointWidth:    32,
	FixedPointFracBits: 16,
}

// LimitError lists every limit a model exceeds.
type LimitError struct {
	Violations []error
}

func (e *LimitError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("%s: %s", ErrLimitExceeded, strings.Join(msgs, "; "))
}

// Is reports whether target is ErrLimitExceeded.
func (e *LimitError) Is(target error) bool { return target == ErrLimitExceeded }

// CheckLimits compares p against l and returns a *LimitError naming every
// violation, or nil. Zero limits are not checked.
func CheckLimits(p Params, l Limits) error {
	var err error
	check := func(what string, got, max int) {
		if max > 0 && got > max {
			err = multierr.Append(err, errors.Errorf("%s %d exceeds %d", what, got, max))
		}
	}
	check("features", p.NumFeatures, l.MaxFeatures)
	check("classes", p.NumClasses, l.MaxClasses)
	check("trees", p.NumTrees, l.MaxTrees)
	for i, r := range p.Trees {
		check(fmt.Sprintf("tree %d nodes", i), r.NodeCount(), l.MaxNodes)
		check(fmt.Sprintf("tree %d depth", i), Depth(r), l.MaxDepth)
		if l.FixedPointWidth <= 0 {
			continue
		}
		for j, th := range r.Threshold {
			if r.IsLeaf[j] == 0 && !fitsFixedPoint(th, l.FixedPointWidth, l.FixedPointFracBits) {
				err = multierr.Append(err, errors.Errorf("tree %d node %d threshold %g outside %d.%d fixed point",
					i, j, th, l.FixedPointWidth-l.FixedPointFracBits, l.FixedPointFracBits))
			}
		}
	}
	if err == nil {
		return nil
	}
	return &LimitError{Violations: multierr.Errors(err)}
}

// fitsFixedPoint reports whether v, rounded half away from zero to frac
// fractional bits, fits a signed width-bit integer.
func fitsFixedPoint(v float64, width, frac int) bool {
	scaled := math.Round(v * math.Ldexp(1, frac))
	max := math.Ldexp(1, width-1)
	return scaled >= -max && scaled <= max-1
}
