package cell_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datecell/internal/cell"
	"datecell/internal/model"
	"datecell/internal/tz"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestIndexDateRoundTrip(t *testing.T) {
	t.Parallel()
	zones := []string{
		"UTC",
		"America/Chicago",
		"Europe/London",
		"Australia/Sydney",
		"Asia/Kolkata",
		"America/St_Johns",
	}
	clocks := []struct{ h, m int }{{0, 0}, {2, 30}, {9, 15}, {23, 30}}

	for _, zone := range zones {
		name := zone
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			loc := mustLoc(t, name)
			for _, c := range clocks {
				startsAt := time.Date(2023, 1, 20, c.h, c.m, 0, 0, loc)
				timing := mustTiming(t, startsAt, 60, cell.Days(400), name)

				idx, err := cell.NewIndexFactory(timing.Timing)
				require.NoError(t, err)
				starts, err := cell.NewStartsAtDateFactory(timing.Timing)
				require.NoError(t, err)
				midnights, err := cell.NewStartDateFactory(timing.Timing)
				require.NoError(t, err)

				for i := model.Index(-3); i < 400; i++ {
					require.Equal(t, i, idx.Index(starts.Date(i)), "%s %02d:%02d startsAt index %d", name, c.h, c.m, i)
					require.Equal(t, i, idx.Index(midnights.Date(i)), "%s %02d:%02d midnight index %d", name, c.h, c.m, i)
				}
			}
		})
	}
}

func TestIndexMonotonic(t *testing.T) {
	timing := mustTiming(t, time.Date(2023, 3, 1, 15, 0, 0, 0, time.UTC), 30, cell.Days(300), "America/Chicago")
	idx, err := cell.NewIndexFactory(timing.Timing)
	require.NoError(t, err)

	at := time.Date(2023, 2, 25, 0, 0, 0, 0, time.UTC)
	prev := idx.Index(at)
	for h := 1; h < 24*300; h++ {
		next := idx.Index(at.Add(time.Duration(h) * time.Hour))
		require.GreaterOrEqual(t, next, prev, "hour %d", h)
		require.LessOrEqual(t, next-prev, model.Index(1), "hour %d", h)
		prev = next
	}
}

func TestIndexOfDay(t *testing.T) {
	timing := mustTiming(t, time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC), 60, cell.Days(7), "UTC")
	idx, err := cell.NewIndexFactory(timing.Timing)
	require.NoError(t, err)

	i, err := idx.IndexOfDay("2022-01-05")
	require.NoError(t, err)
	assert.Equal(t, model.Index(3), i)

	i, err = idx.IndexOfDay("2021-12-31")
	require.NoError(t, err)
	assert.Equal(t, model.Index(-2), i)

	_, err = idx.IndexOfDay("01/05/2022")
	assert.ErrorIs(t, err, tz.ErrInvalidDay)

	assert.Equal(t, model.Index(-1), idx.Index(time.Date(2022, 1, 1, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, model.Index(0), idx.Index(time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "UTC", idx.Timing().Timezone)
}

func TestIndexOfDayIgnoresWallClockZone(t *testing.T) {
	timing := mustTiming(t, time.Date(2023, 6, 1, 22, 0, 0, 0, time.UTC), 60, cell.Days(7), "Asia/Tokyo")
	idx, err := cell.NewIndexFactory(timing.Timing)
	require.NoError(t, err)

	// 22:00Z is 07:00 on June 2nd in Tokyo.
	i, err := idx.IndexOfDay("2023-06-02")
	require.NoError(t, err)
	assert.Equal(t, model.Index(0), i)
}

func TestNowTimeDateFactory(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		startsAt time.Time
		timezone string
		now      time.Time
		index    model.Index
		want     time.Time
	}{
		{
			name:     "utc",
			startsAt: time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC),
			timezone: "UTC",
			now:      time.Date(2030, 6, 1, 14, 25, 0, 0, time.UTC),
			index:    2,
			want:     time.Date(2022, 1, 4, 14, 25, 0, 0, time.UTC),
		},
		{
			name:     "time of day read in timezone across spring forward",
			startsAt: time.Date(2023, 3, 10, 15, 0, 0, 0, time.UTC),
			timezone: "America/Chicago",
			now:      time.Date(2023, 1, 1, 20, 0, 0, 0, time.UTC), // 14:00 CST
			index:    3,
			want:     time.Date(2023, 3, 13, 19, 0, 0, 0, time.UTC), // 14:00 CDT
		},
	}
	for _, tt := range tests {
		test := tt
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			timing := mustTiming(t, test.startsAt, 60, cell.Days(5), test.timezone)
			f, err := cell.NewNowTimeDateFactory(timing.Timing, fixedClock{now: test.now})
			require.NoError(t, err)
			assert.True(t, test.want.Equal(f.Date(test.index)), "got %s", f.Date(test.index))
		})
	}
}

func TestFactoriesRejectUnknownTimezone(t *testing.T) {
	timing := model.Timing{StartsAt: time.Now(), Duration: 30, End: time.Now().Add(time.Hour), Timezone: "Mars/Olympus"}

	_, err := cell.NewIndexFactory(timing)
	assert.ErrorIs(t, err, tz.ErrUnknownTimezone)
	_, err = cell.NewStartDateFactory(timing)
	assert.ErrorIs(t, err, tz.ErrUnknownTimezone)
	_, err = cell.NewStartsAtDateFactory(timing)
	assert.ErrorIs(t, err, tz.ErrUnknownTimezone)
	_, err = cell.NewNowTimeDateFactory(timing, nil)
	assert.ErrorIs(t, err, tz.ErrUnknownTimezone)
}
