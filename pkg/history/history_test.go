package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	started := time.Unix(1700000000, 42)
	first := Run{
		StartedAt:  started,
		ConfigPath: "a.json",
		OutputPath: "out/a.json",
		Dataset:    "iris",
		BuildType:  "test",
		Seed:       7,
		NumTrees:   2,
		NumNodes:   []int{5, 7},
		TrainSize:  105,
		TestSize:   45,
		Accuracy:   0.95,
		Agreement:  1,
	}
	id1, err := s.Record(ctx, first)
	require.NoError(t, err)

	second := first
	second.ConfigPath = "b.json"
	second.BuildTarget = "fpga"
	id2, err := s.Record(ctx, second)
	require.NoError(t, err)
	assert.Greater(t, id2, id1)
	require.NoError(t, s.Close())

	// Reopen to check the runs were persisted.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b.json", runs[0].ConfigPath)
	assert.Equal(t, "fpga", runs[0].BuildTarget)
	assert.Equal(t, "a.json", runs[1].ConfigPath)
	assert.Equal(t, []int{5, 7}, runs[1].NumNodes)
	assert.True(t, started.Equal(runs[1].StartedAt))
	assert.Equal(t, 0.95, runs[1].Accuracy)
	assert.EqualValues(t, 7, runs[1].Seed)

	runs, err = s.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpenBadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "runs.db"))
	assert.Error(t, err)
}
