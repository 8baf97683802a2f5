package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var testParams = RunParams{
	Codes:       []string{"4314902", "4305108"},
	NetworkType: "drive",
	OutputPath:  "out.gpkg",
}

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testParams)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, RunQueued, run.Status)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, testParams.Codes, got.Params.Codes)
	assert.Equal(t, "drive", got.Params.NetworkType)
	assert.Nil(t, got.Result)
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testParams)
	require.NoError(t, err)

	require.NoError(t, s.SetRunning(ctx, run.ID))
	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunRunning, got.Status)

	result := &RunResult{
		OutputPath: "out.gpkg",
		Layers:     []string{"osm_segments_4314902", "osm_segments_4305108"},
	}
	require.NoError(t, s.CompleteRun(ctx, run.ID, result))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, result.Layers, got.Result.Layers)
	assert.Empty(t, got.Error)
}

func TestFailRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testParams)
	require.NoError(t, err)

	require.NoError(t, s.FailRun(ctx, run.ID, eris.New("geocode failed for 4314902")))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, got.Status)
	assert.Contains(t, got.Error, "4314902")
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestUpdateMissingRun(t *testing.T) {
	s := newTestStore(t)

	err := s.SetRunning(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx, testParams)
	require.NoError(t, err)
	second, err := s.CreateRun(ctx, RunParams{Codes: []string{"3550308"}, NetworkType: "walk", OutputPath: "sp.gpkg"})
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
}

func TestRunStages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testParams)
	require.NoError(t, err)

	require.NoError(t, s.AddStage(ctx, run.ID, "4314902", "resolve", "ok", "Porto Alegre, RS, Brasil"))
	require.NoError(t, s.AddStage(ctx, run.ID, "4314902", "boundary", "ok", "nominatim"))
	require.NoError(t, s.AddStage(ctx, run.ID, "4314902", "download", "failed", "overpass timeout"))

	stages, err := s.RunStages(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, stages, 3)
	assert.Equal(t, "resolve", stages[0].Name)
	assert.Equal(t, "boundary", stages[1].Name)
	assert.Equal(t, "failed", stages[2].Status)
	assert.Equal(t, "overpass timeout", stages[2].Detail)
}
