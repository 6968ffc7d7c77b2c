package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfacc/pkg/config"
	"rfacc/pkg/export"
)

func params() export.Params {
	return export.Params{
		NumFeatures: 2,
		NumClasses:  2,
		ClassLabels: []int{0, 1},
		NumTrees:    1,
		NumNodes:    []int{1},
		Trees: []export.TreeRecord{{
			ChildrenLeft:  []int{-1},
			ChildrenRight: []int{-1},
			Classes:       []int{0},
			Features:      []int{-2},
			IsLeaf:        []int{1},
			Threshold:     []float64{-2},
		}},
	}
}

func testConfig(t *testing.T, doc string) *config.Config {
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	return cfg
}

func TestAssembleMergePrecedence(t *testing.T) {
	cfg := testConfig(t, `{
		"build_type": "test",
		"build_target": "fpga",
		"num_trees": 99,
		"vendor": "acme",
		"to_hw_stage": {"num_classes": 7, "clock_mhz": 100}
	}`)
	cfg.Passthrough["build_type"] = "passthrough"

	doc, err := Assemble(cfg, params(), TestSet{
		Candidates: [][]float64{{1, 2}},
		Expected:   []int{1},
	})
	require.NoError(t, err)

	assert.Equal(t, "acme", doc["vendor"])
	assert.Equal(t, 1, doc["num_trees"], "params override pass-through")
	assert.Equal(t, json.Number("7"), doc["num_classes"], "to_hw_stage overrides params")
	assert.Equal(t, json.Number("100"), doc["clock_mhz"])
	assert.Equal(t, "test", doc[KeyBuildType], "build type overrides everything")
	assert.Equal(t, "fpga", doc[KeyBuildTarget])
	assert.Equal(t, [][]float64{{1, 2}}, doc[KeyTestCandidates])
	assert.Equal(t, []int{1}, doc[KeyExpectedClassifications])
	assert.NotContains(t, doc, "to_hw_stage")
}

func TestAssembleOmitsUnsetBuildTarget(t *testing.T) {
	doc, err := Assemble(testConfig(t, `{"build_type": "test"}`), params(), TestSet{})
	require.NoError(t, err)
	assert.NotContains(t, doc, KeyBuildTarget)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))
	assert.Contains(t, buf.String(), `"test_candidates": []`)
	assert.Contains(t, buf.String(), `"expected_classifications": []`)
}

func TestAssembleBuildTypes(t *testing.T) {
	cfg := config.Default()
	_, err := Assemble(cfg, params(), TestSet{})
	assert.True(t, errors.Is(err, config.ErrMissingBuildType), "got %v", err)

	cfg.BuildType = "release"
	_, err = Assemble(cfg, params(), TestSet{})
	assert.True(t, errors.Is(err, config.ErrUnsupportedBuildType), "got %v", err)

	cfg.BuildType = config.BuildTypeTest
	_, err = Assemble(cfg, params(), TestSet{Candidates: [][]float64{{1}}})
	assert.Error(t, err)
}

func TestEncodeFormatting(t *testing.T) {
	doc := Document{"zeta": "<a&b>", "alpha": 1.5, "mid": []int{1}}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))

	out := buf.String()
	assert.True(t, strings.Index(out, `"alpha"`) < strings.Index(out, `"mid"`))
	assert.True(t, strings.Index(out, `"mid"`) < strings.Index(out, `"zeta"`))
	assert.Contains(t, out, "\n    \"alpha\": 1.5,")
	assert.Contains(t, out, `"<a&b>"`)
}

func TestWriteCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "model.json")
	doc, err := Assemble(testConfig(t, `{"build_type": "test", "big": 12345678901234567890}`), params(), TestSet{
		Candidates: [][]float64{{0.5, 1}},
		Expected:   []int{0},
	})
	require.NoError(t, err)
	require.NoError(t, Write(path, doc))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "12345678901234567890", "pass-through numbers keep their text")

	var back map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "test", back["build_type"])
	assert.EqualValues(t, 1, back["num_trees"])
	assert.Len(t, back["test_candidates"], 1)
	assert.Len(t, back["expected_classifications"], 1)
}

func TestWriteFailsOnDirectoryPath(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, Write(dir, Document{}))
}
