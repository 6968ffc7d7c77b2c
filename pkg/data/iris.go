package data

import (
	"bytes"
	_ "embed"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// Iris is the name of the built-in iris dataset.
const Iris = "iris"

//go:embed iris.csv
var irisCSV []byte

var irisSpecies = []string{"setosa", "versicolor", "virginica"}

type irisRecord struct {
	SepalLength float64 `csv:"sepal_length"`
	SepalWidth  float64 `csv:"sepal_width"`
	PetalLength float64 `csv:"petal_length"`
	PetalWidth  float64 `csv:"petal_width"`
	Species     string  `csv:"species"`
}

// LoadIris returns the 150-sample iris dataset with labels 0 (setosa),
// 1 (versicolor) and 2 (virginica).
func LoadIris() (*Dataset, error) {
	var records []*irisRecord
	if err := gocsv.Unmarshal(bytes.NewReader(irisCSV), &records); err != nil {
		return nil, errors.Wrap(err, "decoding iris")
	}

	label := make(map[string]int, len(irisSpecies))
	names := make(map[int]string, len(irisSpecies))
	for i, s := range irisSpecies {
		label[s] = i
		names[i] = s
	}

	ds := &Dataset{
		Name:         Iris,
		FeatureNames: []string{"sepal_length", "sepal_width", "petal_length", "petal_width"},
		X:            make([][]float64, 0, len(records)),
		Y:            make([]int, 0, len(records)),
		ClassNames:   names,
	}
	for i, r := range records {
		y, ok := label[r.Species]
		if !ok {
			return nil, errors.Errorf("iris row %d: unknown species %q", i, r.Species)
		}
		ds.X = append(ds.X, []float64{r.SepalLength, r.SepalWidth, r.PetalLength, r.PetalWidth})
		ds.Y = append(ds.Y, y)
	}
	return ds, nil
}
