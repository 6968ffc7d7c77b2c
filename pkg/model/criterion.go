package model

import (
	"math"

	"github.com/pkg/errors"
)

// Criterion is the impurity measure used to score candidate splits.
type Criterion string

// Supported criteria. LogLoss is an alias of Entropy.
const (
	Gini    Criterion = "gini"
	Entropy Criterion = "entropy"
	LogLoss Criterion = "log_loss"
)

// ParseCriterion validates a criterion name.
func ParseCriterion(s string) (Criterion, error) {
	switch c := Criterion(s); c {
	case Gini, Entropy, LogLoss:
		return c, nil
	}
	return "", errors.Errorf("unsupported criterion %q", s)
}

func (c Criterion) impurityFunc() (func(counts []float64, n float64) float64, error) {
	switch c {
	case Gini, "":
		return giniFromCounts, nil
	case Entropy, LogLoss:
		return entropyFromCounts, nil
	}
	return nil, errors.Errorf("unsupported criterion %q", string(c))
}

func giniFromCounts(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	res := 1.0
	for _, c := range counts {
		p := c / n
		res -= p * p
	}
	return res
}

func entropyFromCounts(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := c / n
		res -= p * math.Log2(p)
	}
	return res
}

func countsToProbas(counts []float64) []float64 {
	n := 0.0
	for _, c := range counts {
		n += c
	}
	p := make([]float64, len(counts))
	if n == 0 {
		return p
	}
	for i, c := range counts {
		p[i] = c / n
	}
	return p
}

// argmax returns the first index holding the maximum.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
