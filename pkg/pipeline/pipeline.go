package pipeline

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Step is one named stage of a pipeline.
type Step struct {
	Name string
	Run  func() error
}

// Pipeline chains steps and stops at the first failure.
type Pipeline struct {
	steps  []Step
	logger *zap.Logger
}

func NewPipeline(logger *zap.Logger, steps ...Step) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{steps: steps, logger: logger}
}

// Run executes every step in order. The returned error names the failing step.
func (p *Pipeline) Run() error {
	for _, step := range p.steps {
		start := time.Now()
		if err := step.Run(); err != nil {
			p.logger.Debug("step failed", zap.String("step", step.Name), zap.Error(err))
			return errors.Wrap(err, step.Name)
		}
		p.logger.Debug("step done", zap.String("step", step.Name), zap.Duration("took", time.Since(start)))
	}
	return nil
}
