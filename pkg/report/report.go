package report

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rfacc/pkg/export"
)

// Summary holds descriptive statistics of one per-tree quantity.
type Summary struct {
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize computes a Summary of values.
func Summarize(values []float64) (Summary, error) {
	var s Summary
	if len(values) == 0 {
		return s, errors.New("summarize: no values")
	}
	var err error
	if s.Mean, err = stats.Mean(values); err != nil {
		return s, errors.Wrap(err, "mean")
	}
	if s.Median, err = stats.Median(values); err != nil {
		return s, errors.Wrap(err, "median")
	}
	if s.StdDev, err = stats.StandardDeviationPopulation(values); err != nil {
		return s, errors.Wrap(err, "stddev")
	}
	if s.Min, err = stats.Min(values); err != nil {
		return s, errors.Wrap(err, "min")
	}
	if s.Max, err = stats.Max(values); err != nil {
		return s, errors.Wrap(err, "max")
	}
	return s, nil
}

// Forest summarizes the shape of a flattened ensemble.
type Forest struct {
	Nodes  Summary
	Leaves Summary
	Depth  Summary
}

// SummarizeForest computes node, leaf and depth statistics over p's trees.
func SummarizeForest(p export.Params) (Forest, error) {
	var f Forest
	nodes := make([]float64, len(p.Trees))
	leaves := make([]float64, len(p.Trees))
	depths := make([]float64, len(p.Trees))
	for i, r := range p.Trees {
		nodes[i] = float64(r.NodeCount())
		for _, l := range r.IsLeaf {
			leaves[i] += float64(l)
		}
		depths[i] = float64(export.Depth(r))
	}
	var err error
	if f.Nodes, err = Summarize(nodes); err != nil {
		return f, errors.Wrap(err, "nodes")
	}
	if f.Leaves, err = Summarize(leaves); err != nil {
		return f, errors.Wrap(err, "leaves")
	}
	if f.Depth, err = Summarize(depths); err != nil {
		return f, errors.Wrap(err, "depth")
	}
	return f, nil
}

// LogFields flattens f for structured logging.
func (f Forest) LogFields() []zap.Field {
	return []zap.Field{
		zap.Float64("nodes_mean", f.Nodes.Mean),
		zap.Float64("nodes_median", f.Nodes.Median),
		zap.Float64("nodes_max", f.Nodes.Max),
		zap.Float64("leaves_mean", f.Leaves.Mean),
		zap.Float64("depth_mean", f.Depth.Mean),
		zap.Float64("depth_stddev", f.Depth.StdDev),
		zap.Float64("depth_max", f.Depth.Max),
	}
}
