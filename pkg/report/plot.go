package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var palette = []color.RGBA{
	{R: 255, A: 255},
	{G: 180, A: 255},
	{B: 255, A: 255},
	{R: 255, G: 140, A: 255},
	{R: 160, B: 200, A: 255},
}

// PlotTestSet saves a scatter plot of the first two features of X, one
// series per class label in labels, colored by the class in y. The image
// format follows the file extension.
func PlotTestSet(X [][]float64, y, labels []int, featureNames []string, filename string) error {
	if len(X) != len(y) {
		return errors.Errorf("plot: %d samples vs %d labels", len(X), len(y))
	}
	p := plot.New()
	p.Title.Text = "Test candidates by expected class"
	p.X.Label.Text = axisName(featureNames, 0)
	p.Y.Label.Text = axisName(featureNames, 1)

	for k, label := range labels {
		pts := make(plotter.XYs, 0)
		for i, cls := range y {
			if cls != label || len(X[i]) == 0 {
				continue
			}
			pt := plotter.XY{X: X[i][0]}
			if len(X[i]) >= 2 {
				pt.Y = X[i][1]
			}
			pts = append(pts, pt)
		}
		if len(pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return errors.Wrapf(err, "plot: class %d", label)
		}
		s.Color = palette[k%len(palette)]
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("class %d", label), s)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return errors.Wrapf(err, "plot: creating directory for %s", filename)
	}
	if err := p.Save(5*vg.Inch, 5*vg.Inch, filename); err != nil {
		return errors.Wrapf(err, "plot: saving %s", filename)
	}
	return nil
}

func axisName(names []string, i int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return fmt.Sprintf("Feature %d", i+1)
}
