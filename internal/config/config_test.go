package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datecell/internal/config"
	"datecell/internal/model"
	"datecell/internal/unique"
)

const sample = `timezone: America/Chicago
log_level: DEBUG
progress_cron: "0 * * * *"
max_cells: 50
cells:
  - id: standup
    summary: Standup
    starts_at: 2023-03-01T09:30:00-06:00
    duration: 15
    days: 30
    schedule:
      w: "8"
      d: [5]
      ex: [2]
  - id: lunch
    starts_at: 2024-01-01T12:00:00Z
    duration: 60
    timezone: Europe/London
    date_range:
      start: 2024-01-01T00:00:00Z
      end: 2024-01-08T00:00:00Z
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

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeFile(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 50, cfg.MaxCells)
	require.Len(t, cfg.Cells, 2)

	standup := cfg.Cells[0]
	assert.Equal(t, model.Minutes(15), standup.Duration)
	require.NotNil(t, standup.Schedule)
	assert.Equal(t, "8", standup.Schedule.W)
	assert.Equal(t, []model.Index{5}, standup.Schedule.D)
	assert.Equal(t, "America/Chicago", cfg.CellTimezone(standup))

	lunch, ok := cfg.Cell("lunch")
	require.True(t, ok)
	assert.Equal(t, "Europe/London", cfg.CellTimezone(lunch))

	require.NotNil(t, cfg.Merge)
	assert.Equal(t, unique.FillFill, cfg.Merge.Fill)
	assert.Equal(t, unique.SourceCurrent, cfg.Merge.Retain)
	assert.Equal(t, []model.UniqueRange{{Range: model.Range{I: 3, To: 4}, ID: "a"}}, cfg.Merge.Current)
	assert.Equal(t, []model.UniqueRange{
		{Range: model.Single(2)},
		{Range: model.Single(6), ID: "b"},
	}, cfg.Merge.Next)
	require.NotNil(t, cfg.Merge.EndAt)
	assert.Equal(t, model.Index(9), *cfg.Merge.EndAt)
}

func TestTimings(t *testing.T) {
	cfg, err := config.Load(writeFile(t, sample))
	require.NoError(t, err)

	timings, err := cfg.Timings()
	require.NoError(t, err)
	require.Len(t, timings, 2)

	standup := timings["standup"]
	assert.Equal(t, "America/Chicago", standup.Timezone)
	assert.Equal(t, model.Minutes(15), standup.Duration)
	// 30 days from 2023-03-01 09:30 CST; the last day is after the DST switch.
	assert.Equal(t, time.Date(2023, 3, 30, 14, 45, 0, 0, time.UTC), standup.End.UTC())

	lunch := timings["lunch"]
	assert.Equal(t, "Europe/London", lunch.Timezone)
	assert.Equal(t, time.Date(2024, 1, 7, 13, 0, 0, 0, time.UTC), lunch.End.UTC())
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.ProgressCron, again.ProgressCron)
	assert.Equal(t, cfg.Timezone, again.Timezone)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := config.Load(writeFile(t, sample))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(path))

	again, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, again.Cells, 2)
	assert.True(t, cfg.Cells[0].StartsAt.Equal(again.Cells[0].StartsAt))
	assert.Equal(t, cfg.Cells[0].Schedule, again.Cells[0].Schedule)
	assert.Equal(t, cfg.Merge.Next, again.Merge.Next)
}

func TestNormalize(t *testing.T) {
	var cfg config.Config
	cfg.Normalize()
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "*/15 * * * *", cfg.ProgressCron)
	assert.NotNil(t, cfg.Cells)
	assert.NoError(t, cfg.Validate())
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "unknown timezone",
			body: "timezone: Mars/Olympus\n",
		},
		{
			name: "bad cron",
			body: "progress_cron: every minute\n",
		},
		{
			name: "unknown log level",
			body: "log_level: loud\n",
		},
		{
			name: "duration over a day",
			body: "cells:\n  - id: a\n    starts_at: 2024-01-01T00:00:00Z\n    duration: 1441\n",
		},
		{
			name: "missing id",
			body: "cells:\n  - starts_at: 2024-01-01T00:00:00Z\n    duration: 10\n",
		},
		{
			name: "duplicate id",
			body: "cells:\n  - id: a\n    starts_at: 2024-01-01T00:00:00Z\n    duration: 10\n  - id: a\n    starts_at: 2024-01-02T00:00:00Z\n    duration: 10\n",
		},
		{
			name: "two range selectors",
			body: "cells:\n  - id: a\n    starts_at: 2024-01-01T00:00:00Z\n    duration: 10\n    days: 3\n    distance: {date: 2024-01-01T00:00:00Z, days: 2}\n",
		},
		{
			name: "range start not at midnight",
			body: "cells:\n  - id: a\n    starts_at: 2024-01-01T09:00:00Z\n    duration: 10\n    date_range: {start: 2024-01-01T09:00:00Z, end: 2024-01-05T00:00:00Z}\n",
		},
		{
			name: "unknown merge fill",
			body: "merge:\n  fill: stretch\n",
		},
		{
			name: "not yaml",
			body: "cells: [",
		},
	}
	for _, tt := range tests {
		test := tt
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.Load(writeFile(t, test.body))
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestEmptyPath(t *testing.T) {
	_, err := config.Load("")
	assert.ErrorIs(t, err, config.ErrEmptyPath)
	assert.ErrorIs(t, config.Save("", config.DefaultConfig()), config.ErrEmptyPath)
}
