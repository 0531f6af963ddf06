package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datecell/internal/config"
	"datecell/internal/model"
	"datecell/internal/unique"
)

const testConfig = `timezone: UTC
cells:
  - id: gym
    summary: Gym
    starts_at: 2024-01-01T09:00:00Z
    duration: 60
    days: 14
    schedule:
      w: "246"
  - id: daily
    starts_at: 2024-01-01T09:00:00Z
    duration: 60
    days: 5
merge:
  fill: fill
  retain: current
  start_at: 0
  end_at: 9
  current:
    - {i: 3, to: 4, id: a}
  next:
    - 2
    - {i: 6, id: b}
`

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datecell.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	conf, err := config.Load(path)
	require.NoError(t, err)
	return conf
}

func runMode(t *testing.T, flags flagConfig) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	err := run(context.Background(), loadTestConfig(t), flags, &buf)
	return buf.String(), err
}

func TestRunExpand(t *testing.T) {
	out, err := runMode(t, flagConfig{mode: modeExpand})
	require.NoError(t, err)

	var result []expandedCell
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result, 2)

	assert.Equal(t, "gym", result[0].ID)
	var gym []model.Index
	for _, s := range result[0].Spans {
		gym = append(gym, s.I)
	}
	// 2024-01-01 is a Monday.
	assert.Equal(t, []model.Index{0, 2, 4, 7, 9, 11}, gym)
	assert.Len(t, result[1].Spans, 5)
}

func TestRunExpandOneCell(t *testing.T) {
	out, err := runMode(t, flagConfig{mode: modeExpand, cellID: "daily"})
	require.NoError(t, err)

	var result []expandedCell
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result, 1)
	assert.Equal(t, "daily", result[0].ID)

	_, err = runMode(t, flagConfig{mode: modeExpand, cellID: "nope"})
	assert.ErrorIs(t, err, errUnknownCell)
}

func TestRunProgress(t *testing.T) {
	out, err := runMode(t, flagConfig{mode: modeProgress, cellID: "daily", now: "2024-01-02T09:30:00Z"})
	require.NoError(t, err)

	var report []cellProgress
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report, 1)
	assert.Equal(t, model.Index(1), report[0].Progress.CurrentIndex)
	assert.True(t, report[0].Progress.IsInProgress)
	assert.False(t, report[0].Progress.IsComplete)

	_, err = runMode(t, flagConfig{mode: modeProgress, now: "yesterday"})
	assert.Error(t, err)
}

func TestRunICS(t *testing.T) {
	out, err := runMode(t, flagConfig{mode: modeICS, now: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "SUMMARY:Gym")
	assert.Contains(t, out, "BYDAY=MO,WE,FR")
}

func TestRunMerge(t *testing.T) {
	out, err := runMode(t, flagConfig{mode: modeMerge})
	require.NoError(t, err)

	var result unique.Result[model.UniqueRange]
	require.NoError(t, json.Unmarshal([]byte(out), &result))

	var got []string
	for _, b := range result.Blocks {
		got = append(got, b.String()+" "+string(b.From))
	}
	assert.Equal(t, []string{
		"[0-1] fill",
		"[2] next",
		"[3-4] current",
		"[5] fill",
		"[6] next",
		"[7-9] fill",
	}, got)
	assert.Equal(t, "a", result.Blocks[2].Value.ID)
	assert.NotEmpty(t, result.Blocks[0].Value.ID)
}

func TestRunWatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := run(ctx, loadTestConfig(t), flagConfig{mode: modeWatch, now: "2024-01-02T09:30:00Z"}, &bytes.Buffer{})
	assert.NoError(t, err)
}

func TestRunUnknownMode(t *testing.T) {
	_, err := runMode(t, flagConfig{mode: "render"})
	assert.ErrorIs(t, err, errUnknownMode)
}

func TestRunImportRoundTrip(t *testing.T) {
	body, err := runMode(t, flagConfig{mode: modeICS, cellID: "gym", now: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)
	feed := filepath.Join(t.TempDir(), "gym.ics")
	require.NoError(t, os.WriteFile(feed, []byte(body), 0o600))

	out, err := runMode(t, flagConfig{mode: modeImport, cellID: "gym", feed: feed})
	require.NoError(t, err)

	var imported expandedCell
	require.NoError(t, json.Unmarshal([]byte(out), &imported))
	var got []model.Index
	for _, s := range imported.Spans {
		got = append(got, s.I)
		assert.Equal(t, model.Minutes(60), s.Duration)
	}
	assert.Equal(t, []model.Index{0, 2, 4, 7, 9, 11}, got)

	_, err = runMode(t, flagConfig{mode: modeImport, feed: feed})
	assert.ErrorIs(t, err, errImportCell)
}
