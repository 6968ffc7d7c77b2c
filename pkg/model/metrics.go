package model

import "github.com/pkg/errors"

// Accuracy returns the fraction of positions where yPred matches yTrue.
func Accuracy(yTrue, yPred []int) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, errors.Errorf("accuracy: %d labels vs %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, errors.New("accuracy: no labels")
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue)), nil
}

// ConfusionMatrix counts predictions per (true, predicted) class pair. Rows
// and columns follow classes; labels outside classes are ignored.
func ConfusionMatrix(yTrue, yPred, classes []int) [][]int {
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	m := make([][]int, len(classes))
	for i := range m {
		m[i] = make([]int, len(classes))
	}
	for i := range yTrue {
		if i >= len(yPred) {
			break
		}
		r, ok1 := index[yTrue[i]]
		c, ok2 := index[yPred[i]]
		if ok1 && ok2 {
			m[r][c]++
		}
	}
	return m
}

// PrecisionRecallF1 scores one class against the rest.
func PrecisionRecallF1(yTrue, yPred []int, class int) (prec, rec, f1 float64) {
	tp, fp, fn := 0, 0, 0
	for i := range yTrue {
		if yPred[i] == class && yTrue[i] == class {
			tp++
		}
		if yPred[i] == class && yTrue[i] != class {
			fp++
		}
		if yPred[i] != class && yTrue[i] == class {
			fn++
		}
	}
	if tp+fp > 0 {
		prec = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		rec = float64(tp) / float64(tp+fn)
	}
	if prec+rec > 0 {
		f1 = 2 * prec * rec / (prec + rec)
	}
	return
}
