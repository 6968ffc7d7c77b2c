package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rfacc/pkg/config"
	"rfacc/pkg/data"
	"rfacc/pkg/export"
	"rfacc/pkg/history"
	"rfacc/pkg/model"
	"rfacc/pkg/output"
	"rfacc/pkg/pipeline"
	"rfacc/pkg/report"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitConfig  = 1
	ExitUsage   = 2
	ExitRuntime = 3
)

// Args are the rf-train command line arguments.
type Args struct {
	Config       string `arg:"-c,--config,required" help:"training config (JSON or YAML)"`
	Out          string `arg:"-o,--out,required" help:"output JSON path"`
	Verbose      bool   `arg:"-v,--verbose" help:"debug logging and model statistics"`
	Plot         string `arg:"--plot" help:"save a scatter plot of the test candidates to this PNG path"`
	History      string `arg:"--history" help:"append the run to this SQLite database"`
	StrictLimits bool   `arg:"--strict-limits" help:"fail when the model exceeds the accelerator limits"`
}

// Description is shown in the help text.
func (Args) Description() string {
	return "Train a random forest and export its trees for the hardware stage."
}

// Main runs rf-train with argv (without the program name) and returns the
// process exit code.
func Main(argv []string, stdout, stderr io.Writer) int {
	var args Args
	p, err := arg.NewParser(arg.Config{Program: "rf-train"}, &args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitUsage
	}
	switch err := p.Parse(argv); {
	case err == arg.ErrHelp:
		p.WriteHelp(stdout)
		return ExitOK
	case err != nil:
		p.WriteUsage(stderr)
		fmt.Fprintln(stderr, "error:", err)
		return ExitUsage
	}

	logger := newLogger(stderr, args.Verbose)
	defer logger.Sync()

	if err := run(args, logger); err != nil {
		code := exitCode(err)
		logger.Error("rf-train failed", zap.String("error", err.Error()), zap.Int("exit_code", code))
		// zap.Error on a pkg/errors value adds the stack trace.
		logger.Debug("failure detail", zap.Error(err))
		return code
	}
	return ExitOK
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

// exitCode maps configuration errors to ExitConfig and everything else to
// ExitRuntime.
func exitCode(err error) int {
	for _, target := range []error{
		config.ErrInvalid,
		config.ErrMissingBuildType,
		config.ErrUnsupportedBuildType,
		data.ErrUnsupportedDataset,
		export.ErrLimitExceeded,
	} {
		if errors.Is(err, target) {
			return ExitConfig
		}
	}
	return ExitRuntime
}

func run(args Args, logger *zap.Logger) error {
	started := time.Now()
	cfg, err := config.Load(args.Config)
	if err != nil {
		return err
	}
	logger.Debug("config resolved", cfg.LogFields()...)

	runner := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithLimits(export.DefaultLimits, args.StrictLimits),
	)
	res, err := runner.Run(cfg)
	if err != nil {
		return err
	}

	if args.Verbose {
		logStatistics(logger, res)
	}

	if err := output.Write(args.Out, res.Document); err != nil {
		return err
	}
	logger.Info("wrote model", zap.String("path", args.Out), zap.Int("trees", res.Params.NumTrees))

	if args.Plot != "" {
		err := report.PlotTestSet(res.Test.Candidates, res.Test.Expected, res.Params.ClassLabels,
			res.Dataset.FeatureNames, args.Plot)
		if err != nil {
			return err
		}
		logger.Info("wrote plot", zap.String("path", args.Plot))
	}

	if args.History != "" {
		if err := record(args, cfg, res, started); err != nil {
			return err
		}
		logger.Debug("recorded run", zap.String("history", args.History))
	}
	return nil
}

func logStatistics(logger *zap.Logger, res *pipeline.Result) {
	if s, err := report.SummarizeForest(res.Params); err == nil {
		logger.Debug("forest statistics", s.LogFields()...)
	}
	cm := model.ConfusionMatrix(res.TestY, res.Test.Expected, res.Params.ClassLabels)
	for i, row := range cm {
		class := res.Params.ClassLabels[i]
		prec, rec, f1 := model.PrecisionRecallF1(res.TestY, res.Test.Expected, class)
		logger.Debug("class scores",
			zap.Int("class", class),
			zap.Ints("confusion", row),
			zap.Float64("precision", prec),
			zap.Float64("recall", rec),
			zap.Float64("f1", f1))
	}
}

func record(args Args, cfg *config.Config, res *pipeline.Result, started time.Time) error {
	store, err := history.Open(args.History)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.Record(context.Background(), history.Run{
		StartedAt:   started,
		ConfigPath:  args.Config,
		OutputPath:  args.Out,
		Dataset:     cfg.Dataset,
		BuildType:   cfg.BuildType,
		BuildTarget: cfg.BuildTarget,
		Seed:        res.Seed,
		NumTrees:    res.Params.NumTrees,
		NumNodes:    res.Params.NumNodes,
		TrainSize:   res.TrainSize,
		TestSize:    res.TestSize,
		Accuracy:    res.Accuracy,
		Agreement:   res.Agreement,
	})
	return err
}
