package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Defaults applied to keys that are absent or null in the config document.
const (
	DefaultDataset         = "iris"
	DefaultLabelColumn     = "label"
	DefaultTrainSplitSize  = 0.7
	DefaultNEstimators     = 100
	DefaultCriterion       = "gini"
	DefaultMaxFeatures     = MaxFeaturesSqrt
	DefaultMinSamplesSplit = 2
	DefaultMinSamplesLeaf  = 1
	DefaultBootstrap       = true
	DefaultNJobs           = 1

	// DefaultMinImpurityDecrease accepts any split that reduces impurity.
	DefaultMinImpurityDecrease = 0.0
)

// BuildTypeTest is the only supported build type. It adds the held-out test
// vectors and their expected classifications to the output.
const BuildTypeTest = "test"

// Rules accepted for max_features besides a plain feature count.
const (
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
	MaxFeaturesAll  = "all"
)

var (
	// ErrInvalid is returned for documents that fail schema validation.
	ErrInvalid = errors.New("invalid configuration")
	// ErrMissingBuildType is returned when build_type is absent or empty.
	ErrMissingBuildType = errors.New("build type option not found")
	// ErrUnsupportedBuildType is returned for any build_type other than "test".
	ErrUnsupportedBuildType = errors.New("unsupported build type")
)

//go:embed schema.json
var schemaJSON []byte

var schema = mustSchema()

func mustSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		panic(err)
	}
	return s
}

// MaxFeatures is either a named rule (sqrt, log2, all) or a fixed count N.
type MaxFeatures struct {
	Rule string
	N    int
}

// UnmarshalJSON accepts a rule name or a positive integer.
func (m *MaxFeatures) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*m = MaxFeatures{N: n}
		return nil
	}
	var rule string
	if err := json.Unmarshal(b, &rule); err != nil {
		return errors.Wrap(ErrInvalid, "max_features must be a rule name or a positive integer")
	}
	*m = MaxFeatures{Rule: rule}
	return nil
}

func (m MaxFeatures) String() string {
	if m.Rule != "" {
		return m.Rule
	}
	return strconv.Itoa(m.N)
}

// Hyperparams are the options handed to the ensemble trainer.
type Hyperparams struct {
	NEstimators     int
	Criterion       string
	MaxDepth        int // 0 means unlimited
	MaxLeafNodes    int // 0 means unlimited
	MaxFeatures     MaxFeatures
	MinSamplesSplit int
	MinSamplesLeaf  int
	Bootstrap       bool
	NJobs           int // negative means all CPUs; 0 is rejected by the schema

	// MinImpurityDecrease is the smallest weighted impurity decrease a split must reach.
	MinImpurityDecrease float64
}

// Config is the resolved training configuration.
type Config struct {
	Dataset        string
	DatasetPath    string
	LabelColumn    string
	TrainSplitSize float64
	Hyperparams    Hyperparams
	// RandomState seeds the split and the forest. Nil means seed from the clock.
	RandomState *int64
	BuildType   string
	BuildTarget string
	// ToHWStage entries are merged into the output document.
	ToHWStage map[string]interface{}
	// Passthrough holds top-level keys this package does not recognize.
	Passthrough map[string]interface{}
}

// Default returns a Config holding every named default. BuildType is left
// empty: it has no default.
func Default() *Config {
	return &Config{
		Dataset:        DefaultDataset,
		LabelColumn:    DefaultLabelColumn,
		TrainSplitSize: DefaultTrainSplitSize,
		Hyperparams: Hyperparams{
			NEstimators:         DefaultNEstimators,
			Criterion:           DefaultCriterion,
			MaxFeatures:         MaxFeatures{Rule: DefaultMaxFeatures},
			MinSamplesSplit:     DefaultMinSamplesSplit,
			MinSamplesLeaf:      DefaultMinSamplesLeaf,
			Bootstrap:           DefaultBootstrap,
			NJobs:               DefaultNJobs,
			MinImpurityDecrease: DefaultMinImpurityDecrease,
		},
		ToHWStage:   map[string]interface{}{},
		Passthrough: map[string]interface{}{},
	}
}

// document mirrors the recognized keys. Pointers distinguish absent/null from zero.
type document struct {
	Dataset             *string      `json:"dataset"`
	DatasetPath         *string      `json:"dataset_path"`
	LabelColumn         *string      `json:"label_column"`
	TrainSplitSize      *float64     `json:"train_split_size"`
	NEstimators         *int         `json:"n_estimators"`
	Criterion           *string      `json:"criterion"`
	MaxDepth            *int         `json:"max_depth"`
	MaxLeafNodes        *int         `json:"max_leaf_nodes"`
	MaxFeatures         *MaxFeatures `json:"max_features"`
	MinSamplesSplit     *int         `json:"min_samples_split"`
	MinSamplesLeaf      *int         `json:"min_samples_leaf"`
	Bootstrap           *bool        `json:"bootstrap"`
	NJobs               *int         `json:"n_jobs"`
	MinImpurityDecrease *float64     `json:"min_impurity_decrease"`
	RandomState         *int64       `json:"random_state"`
	BuildType           *string      `json:"build_type"`
	BuildTarget         *string      `json:"build_target"`
}

const toHWStageKey = "to_hw_stage"

var recognized = map[string]bool{
	"dataset":               true,
	"dataset_path":          true,
	"label_column":          true,
	"train_split_size":      true,
	"n_estimators":          true,
	"criterion":             true,
	"max_depth":             true,
	"max_leaf_nodes":        true,
	"max_features":          true,
	"min_samples_split":     true,
	"min_samples_leaf":      true,
	"bootstrap":             true,
	"n_jobs":                true,
	"min_impurity_decrease": true,
	"random_state":          true,
	"build_type":            true,
	"build_target":          true,
	toHWStageKey:            true,
}

// Load reads and resolves the config file at path. Files ending in .yaml or
// .yml are decoded as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = yamlToJSON(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", path)
		}
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func yamlToJSON(raw []byte) ([]byte, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}
	return out, nil
}

// Parse validates a JSON config document and resolves it against the defaults.
func Parse(raw []byte) (*Config, error) {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}
	if !res.Valid() {
		var msgs []string
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.Wrap(ErrInvalid, strings.Join(msgs, "; "))
	}

	var fields map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}
	return resolve(doc, fields)
}

func resolve(doc document, fields map[string]interface{}) (*Config, error) {
	if doc.BuildType == nil || *doc.BuildType == "" {
		return nil, errors.WithStack(ErrMissingBuildType)
	}
	if *doc.BuildType != BuildTypeTest {
		return nil, errors.Wrapf(ErrUnsupportedBuildType, "build type %q", *doc.BuildType)
	}

	cfg := Default()
	cfg.BuildType = *doc.BuildType
	setString(&cfg.Dataset, doc.Dataset)
	setString(&cfg.DatasetPath, doc.DatasetPath)
	setString(&cfg.LabelColumn, doc.LabelColumn)
	setString(&cfg.BuildTarget, doc.BuildTarget)
	if doc.TrainSplitSize != nil {
		cfg.TrainSplitSize = *doc.TrainSplitSize
	}

	hp := &cfg.Hyperparams
	setInt(&hp.NEstimators, doc.NEstimators)
	setString(&hp.Criterion, doc.Criterion)
	setInt(&hp.MaxDepth, doc.MaxDepth)
	setInt(&hp.MaxLeafNodes, doc.MaxLeafNodes)
	setInt(&hp.MinSamplesSplit, doc.MinSamplesSplit)
	setInt(&hp.MinSamplesLeaf, doc.MinSamplesLeaf)
	setInt(&hp.NJobs, doc.NJobs)
	if doc.MaxFeatures != nil {
		hp.MaxFeatures = *doc.MaxFeatures
	}
	if doc.Bootstrap != nil {
		hp.Bootstrap = *doc.Bootstrap
	}
	if doc.MinImpurityDecrease != nil {
		hp.MinImpurityDecrease = *doc.MinImpurityDecrease
	}
	if doc.RandomState != nil {
		seed := *doc.RandomState
		cfg.RandomState = &seed
	}

	for k, v := range fields {
		if !recognized[k] {
			cfg.Passthrough[k] = v
		}
	}
	if hw, ok := fields[toHWStageKey].(map[string]interface{}); ok {
		cfg.ToHWStage = hw
	}
	return cfg, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// LogFields summarizes the resolved config for structured logging.
func (c *Config) LogFields() []zap.Field {
	fields := []zap.Field{
		zap.String("dataset", c.Dataset),
		zap.Float64("train_split_size", c.TrainSplitSize),
		zap.Int("n_estimators", c.Hyperparams.NEstimators),
		zap.String("criterion", c.Hyperparams.Criterion),
		zap.Int("max_depth", c.Hyperparams.MaxDepth),
		zap.Int("max_leaf_nodes", c.Hyperparams.MaxLeafNodes),
		zap.Stringer("max_features", c.Hyperparams.MaxFeatures),
		zap.Int("n_jobs", c.Hyperparams.NJobs),
		zap.Float64("min_impurity_decrease", c.Hyperparams.MinImpurityDecrease),
		zap.String("build_type", c.BuildType),
	}
	if c.BuildTarget != "" {
		fields = append(fields, zap.String("build_target", c.BuildTarget))
	}
	if c.RandomState != nil {
		fields = append(fields, zap.Int64("random_state", *c.RandomState))
	}
	return fields
}
