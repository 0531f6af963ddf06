package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"datecell/internal/cell"
	"datecell/internal/model"
	"datecell/internal/schedule"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func mustTiming(t *testing.T, startsAt time.Time, days int, timezone string) model.Timing {
	t.Helper()
	timing, err := cell.NewTiming(model.DateDurationSpan{StartsAt: startsAt, Duration: 30}, cell.Days(days), timezone)
	require.NoError(t, err)
	return timing.Timing
}

func indexes(spans []model.DurationSpan) []model.Index {
	out := make([]model.Index, len(spans))
	for k, s := range spans {
		out[k] = s.I
	}
	return out
}

func TestExpandTimingSchedule(t *testing.T) {
	t.Parallel()
	sunday := time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		schedule model.Schedule
		want     []model.Index
	}{
		{"monday and tuesday", model.Schedule{W: "23"}, []model.Index{1, 2, 8, 9}},
		{
			name:     "include wins over exclude",
			schedule: model.Schedule{W: "23", D: []model.Index{3, 5}, Ex: []model.Index{1, 3}},
			want:     []model.Index{2, 3, 5, 8, 9},
		},
		{"weekend token", model.Schedule{W: "9"}, []model.Index{0, 6, 7, 13}},
		{"no days", model.Schedule{W: "0", D: []model.Index{4}}, []model.Index{4}},
		{"includes outside the timing are dropped", model.Schedule{D: []model.Index{20, -1}}, []model.Index{}},
	}
	for _, tt := range tests {
		test := tt
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			timing := mustTiming(t, sunday, 14, "UTC")
			spans, err := schedule.ExpandTimingSchedule(timing, test.schedule, schedule.ExpandOptions{})
			require.NoError(t, err)
			assert.Equal(t, test.want, indexes(spans))
		})
	}
}

func TestExpandTimingScheduleMatchesRRule(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	// Wednesday, with the spring forward on the 12th.
	timing := mustTiming(t, time.Date(2023, 3, 1, 9, 30, 0, 0, chicago), 30, "America/Chicago")
	s := model.Schedule{W: "8", D: []model.Index{4}, Ex: []model.Index{2}}

	spans, err := schedule.ExpandTimingSchedule(timing, s, schedule.ExpandOptions{})
	require.NoError(t, err)

	weekdays, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Dtstart:   timing.StartsAt.In(chicago),
		Until:     cell.FinalStartsAt(timing).In(chicago),
		Byweekday: []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR},
	})
	require.NoError(t, err)

	set := rrule.Set{}
	set.RRule(weekdays)
	set.ExDate(time.Date(2023, 3, 3, 9, 30, 0, 0, chicago))
	set.RDate(time.Date(2023, 3, 5, 9, 30, 0, 0, chicago))
	want := set.All()

	require.Len(t, spans, len(want))
	for k := range want {
		assert.True(t, want[k].Equal(spans[k].StartsAt), "occurrence %d: %s != %s", k, want[k], spans[k].StartsAt)
	}
}

func TestExpandTimingScheduleCaps(t *testing.T) {
	timing := mustTiming(t, time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC), 60, "UTC")

	spans, err := schedule.ExpandTimingSchedule(timing, model.Schedule{W: "2"}, schedule.ExpandOptions{MaxCellsToReturn: 3})
	require.NoError(t, err)
	assert.Equal(t, []model.Index{1, 8, 15}, indexes(spans))

	spans, err = schedule.ExpandTimingSchedule(timing, model.Schedule{W: "2"}, schedule.ExpandOptions{
		Limit: cell.IndexLimit{I: 10, To: 30},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Index{15, 22, 29}, indexes(spans))

	_, err = schedule.ExpandTimingSchedule(timing, model.Schedule{W: "2x"}, schedule.ExpandOptions{})
	assert.ErrorIs(t, err, schedule.ErrInvalidWeek)
}

func TestDateFilterBounds(t *testing.T) {
	start := time.Date(2022, 1, 2, 12, 0, 0, 0, time.UTC)
	cfg := schedule.FilterConfig{
		Schedule: model.Schedule{W: "8", D: []model.Index{20}},
		Timezone: "UTC",
		Start:    start,
		End:      start.AddDate(0, 0, 13),
	}

	f, err := schedule.NewDateFilter(cfg)
	require.NoError(t, err)
	assert.False(t, f.AllowsIndex(-6), "before start")
	assert.False(t, f.AllowsIndex(15), "after end")
	assert.True(t, f.AllowsIndex(20), "explicit include ignores bounds")
	assert.True(t, f.AllowsDate(time.Date(2022, 1, 3, 23, 0, 0, 0, time.UTC)))

	ok, err := f.AllowsDay("2022-01-08")
	require.NoError(t, err)
	assert.False(t, ok, "saturday")
	_, err = f.AllowsDay("8 Jan")
	assert.Error(t, err)

	cfg.AllowBeforeStart = true
	cfg.End = time.Time{}
	f, err = schedule.NewDateFilter(cfg)
	require.NoError(t, err)
	assert.True(t, f.AllowsIndex(-6))
	assert.True(t, f.AllowsIndex(15))

	cfg.MinIndex = model.IndexPtr(2)
	cfg.MaxIndex = model.IndexPtr(3)
	f, err = schedule.NewDateFilter(cfg)
	require.NoError(t, err)
	assert.False(t, f.AllowsIndex(1))
	assert.True(t, f.AllowsIndex(2))
	assert.False(t, f.AllowsIndex(4))
}

func TestDateFilterDefaultsToToday(t *testing.T) {
	f, err := schedule.NewDateFilter(schedule.FilterConfig{
		Schedule: model.Schedule{W: "1234567"},
		Timezone: "Europe/Paris",
		Clock:    fixedClock{now: time.Date(2024, 5, 8, 23, 30, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	// 23:30Z is already Thursday in Paris.
	assert.Equal(t, time.Thursday, f.Weekday(0))
	assert.True(t, f.AllowsIndex(0))
	assert.False(t, f.AllowsIndex(-1))
	assert.True(t, f.AllowsDate(time.Date(2024, 5, 9, 12, 0, 0, 0, time.UTC)))
	assert.False(t, f.AllowsDate(time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)))
}

func TestWeekdayOfIndexFactory(t *testing.T) {
	// 22:00Z on Thursday is Friday morning in Tokyo.
	timing := mustTiming(t, time.Date(2023, 6, 1, 22, 0, 0, 0, time.UTC), 7, "Asia/Tokyo")
	weekday, err := schedule.WeekdayOfIndexFactory(timing)
	require.NoError(t, err)

	assert.Equal(t, time.Friday, weekday(0))
	assert.Equal(t, time.Sunday, weekday(2))
	assert.Equal(t, time.Thursday, weekday(-1))
	assert.Equal(t, time.Friday, weekday(-7))
	assert.Equal(t, time.Saturday, weekday(15))
}

func TestWeekCodes(t *testing.T) {
	codes, err := schedule.ParseWeek("2330")
	require.NoError(t, err)
	assert.Equal(t, []schedule.DayCode{schedule.DayCodeMonday, schedule.DayCodeTuesday, schedule.DayCodeTuesday}, codes)

	codes, err = schedule.ParseWeek("0")
	require.NoError(t, err)
	assert.Empty(t, codes)

	_, err = schedule.ParseWeek("1-3")
	assert.ErrorIs(t, err, schedule.ErrInvalidWeek)

	all := schedule.ExpandDayCodes([]schedule.DayCode{schedule.DayCodeWeekday, schedule.DayCodeWeekend})
	assert.Equal(t, 7, all.Len())

	weekend, err := schedule.WeekdaysOf("9")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, weekend.List())

	assert.Equal(t, schedule.DayCodeSunday, schedule.DayCodeForWeekday(time.Sunday))
	assert.Equal(t, schedule.DayCodeSaturday, schedule.DayCodeForWeekday(time.Saturday))
}

func TestSimplifyDayCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   []schedule.DayCode
		want []schedule.DayCode
	}{
		{"weekdays plus sunday", []schedule.DayCode{2, 3, 4, 5, 6, 1}, []schedule.DayCode{1, 8}},
		{"weekend plus monday", []schedule.DayCode{1, 7, 2}, []schedule.DayCode{2, 9}},
		{"everything", []schedule.DayCode{1, 2, 3, 4, 5, 6, 7}, []schedule.DayCode{8, 9}},
		{"tokens stay", []schedule.DayCode{8, 2}, []schedule.DayCode{8}},
		{"partial", []schedule.DayCode{4, 4, 3}, []schedule.DayCode{3, 4}},
		{"nothing", nil, []schedule.DayCode{}},
	}
	for _, tt := range tests {
		test := tt
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got := schedule.SimplifyDayCodes(test.in)
			assert.Equal(t, test.want, got)
			assert.Equal(t, schedule.ExpandDayCodes(test.in), schedule.ExpandDayCodes(got))
		})
	}
}

func TestEncodeWeekAndEnabledDays(t *testing.T) {
	assert.Equal(t, "238", schedule.EncodeWeek([]schedule.DayCode{3, 2, 2, 0, 8}))
	assert.Equal(t, "", schedule.EncodeWeek(nil))

	days := schedule.EnabledDaysFromCodes([]schedule.DayCode{schedule.DayCodeWeekday})
	assert.True(t, days.Monday)
	assert.True(t, days.Friday)
	assert.False(t, days.Saturday)
	assert.False(t, days.Sunday)
	assert.Equal(t, []schedule.DayCode{2, 3, 4, 5, 6}, days.DayCodes())
	assert.Equal(t, "8", schedule.EncodeWeek(schedule.SimplifyDayCodes(days.DayCodes())))
}

func TestIsSameSchedule(t *testing.T) {
	assert.True(t, schedule.IsSameSchedule(
		model.Schedule{W: "8", D: []model.Index{3, 1}},
		model.Schedule{W: "65432", D: []model.Index{1, 3, 3}},
	))
	assert.True(t, schedule.IsSameSchedule(model.Schedule{}, model.Schedule{W: "0", Ex: []model.Index{}}))
	assert.False(t, schedule.IsSameSchedule(model.Schedule{W: "8"}, model.Schedule{W: "89"}))
	assert.False(t, schedule.IsSameSchedule(
		model.Schedule{W: "8", Ex: []model.Index{1}},
		model.Schedule{W: "8", Ex: []model.Index{2}},
	))
}
