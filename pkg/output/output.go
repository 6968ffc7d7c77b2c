package output

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"rfacc/pkg/config"
	"rfacc/pkg/export"
)

// Output document keys set by this package.
const (
	KeyBuildType               = "build_type"
	KeyBuildTarget             = "build_target"
	KeyTestCandidates          = "test_candidates"
	KeyExpectedClassifications = "expected_classifications"
)

// Document is the JSON object handed to the hardware stage. encoding/json
// writes map keys in sorted order.
type Document map[string]interface{}

// TestSet holds the held-out feature vectors and the model's predicted
// labels for them.
type TestSet struct {
	Candidates [][]float64
	Expected   []int
}

// Assemble merges, lowest precedence first: pass-through keys, model params,
// to_hw_stage entries, the test-build fields, then build_type and
// build_target.
func Assemble(cfg *config.Config, params export.Params, test TestSet) (Document, error) {
	if cfg.BuildType == "" {
		return nil, errors.WithStack(config.ErrMissingBuildType)
	}
	if cfg.BuildType != config.BuildTypeTest {
		return nil, errors.Wrapf(config.ErrUnsupportedBuildType, "build type %q", cfg.BuildType)
	}
	if len(test.Candidates) != len(test.Expected) {
		return nil, errors.Errorf("%d test candidates vs %d expected classifications",
			len(test.Candidates), len(test.Expected))
	}

	doc := Document{}
	for k, v := range cfg.Passthrough {
		doc[k] = v
	}
	for k, v := range params.Fields() {
		doc[k] = v
	}
	for k, v := range cfg.ToHWStage {
		doc[k] = v
	}

	candidates := test.Candidates
	if candidates == nil {
		candidates = [][]float64{}
	}
	expected := test.Expected
	if expected == nil {
		expected = []int{}
	}
	doc[KeyTestCandidates] = candidates
	doc[KeyExpectedClassifications] = expected

	doc[KeyBuildType] = cfg.BuildType
	if cfg.BuildTarget != "" {
		doc[KeyBuildTarget] = cfg.BuildTarget
	}
	return doc, nil
}

// Encode writes doc as indented JSON with sorted keys.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return errors.Wrap(enc.Encode(doc), "encoding output")
}

// Write creates path's parent directories and writes doc to path.
func Write(path string, doc Document) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "closing %s", path)
		}
	}()
	return Encode(f, doc)
}
