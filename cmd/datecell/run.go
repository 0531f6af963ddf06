package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/robfig/cron/v3"

	"datecell/internal/cell"
	"datecell/internal/config"
	"datecell/internal/ics"
	appLog "datecell/internal/log"
	"datecell/internal/model"
	"datecell/internal/schedule"
	"datecell/internal/unique"
)

const (
	modeExpand   = "expand"
	modeProgress = "progress"
	modeICS      = "ics"
	modeWatch    = "watch"
	modeMerge    = "merge"
	modeImport   = "import"
)

var (
	errUnknownMode = errors.New("unknown mode")
	errUnknownCell = errors.New("unknown cell")
	errNoMerge     = errors.New("config has no merge section")
	errImportCell  = errors.New("import needs exactly one -cell")
)

// namedCell is one configured cell with its built timing.
type namedCell struct {
	conf   config.CellConfig
	timing model.FullTiming
}

func run(ctx context.Context, conf *config.Config, flags flagConfig, out io.Writer) error {
	clock := cell.Clock(cell.SystemClock{})
	if flags.now != "" {
		now, err := time.Parse(time.RFC3339, flags.now)
		if err != nil {
			return fmt.Errorf("parse -now: %w", err)
		}
		clock = fixedClock{t: now}
	}

	if flags.mode == modeMerge {
		return runMerge(conf, out)
	}

	cells, err := selectCells(conf, flags.cellID)
	if err != nil {
		return err
	}

	switch flags.mode {
	case modeExpand:
		return runExpand(conf, cells, out)
	case modeProgress:
		report, err := progressReport(cells, clock)
		if err != nil {
			return err
		}
		return writeJSON(out, report)
	case modeICS:
		return runICS(cells, clock, out)
	case modeWatch:
		return runWatch(ctx, conf, cells, clock)
	case modeImport:
		if flags.cellID == "" {
			return errImportCell
		}
		return runImport(ctx, conf, cells[0], flags, out)
	default:
		return fmt.Errorf("%w: %q", errUnknownMode, flags.mode)
	}
}

func selectCells(conf *config.Config, id string) ([]namedCell, error) {
	var selected []config.CellConfig
	if id == "" {
		selected = conf.Cells
	} else {
		cc, ok := conf.Cell(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", errUnknownCell, id)
		}
		selected = []config.CellConfig{cc}
	}

	cells := make([]namedCell, 0, len(selected))
	for _, cc := range selected {
		timing, err := conf.Timing(cc)
		if err != nil {
			return nil, err
		}
		cells = append(cells, namedCell{conf: cc, timing: timing})
	}
	return cells, nil
}

type expandedCell struct {
	ID    string               `json:"id"`
	Spans []model.DurationSpan `json:"spans"`
}

func runExpand(conf *config.Config, cells []namedCell, out io.Writer) error {
	result := make([]expandedCell, 0, len(cells))
	for _, c := range cells {
		s := model.Schedule{W: "89"}
		if c.conf.Schedule != nil {
			s = *c.conf.Schedule
		}
		spans, err := schedule.ExpandTimingSchedule(c.timing.Timing, s, schedule.ExpandOptions{
			MaxCellsToReturn: conf.MaxCells,
			EvaluationLimit:  conf.EvaluationLimit,
		})
		if err != nil {
			return fmt.Errorf("expand cell %q: %w", c.conf.ID, err)
		}
		appLog.Debug("expanded cell", "id", c.conf.ID, "spans", len(spans))
		result = append(result, expandedCell{ID: c.conf.ID, Spans: spans})
	}
	return writeJSON(out, result)
}

type cellProgress struct {
	ID       string           `json:"id"`
	Progress cell.DayProgress `json:"progress"`
}

func progressReport(cells []namedCell, clock cell.Clock) ([]cellProgress, error) {
	now := clock.Now()
	report := make([]cellProgress, 0, len(cells))
	for _, c := range cells {
		f, err := cell.NewDayProgressFactory(cell.ProgressConfig{Timing: c.timing.Timing, Clock: clock})
		if err != nil {
			return nil, fmt.Errorf("progress cell %q: %w", c.conf.ID, err)
		}
		report = append(report, cellProgress{ID: c.conf.ID, Progress: f.ForDate(now, now)})
	}
	return report, nil
}

func runICS(cells []namedCell, clock cell.Clock, out io.Writer) error {
	exported := make([]ics.Cell, 0, len(cells))
	for _, c := range cells {
		exported = append(exported, ics.Cell{
			ID:          c.conf.ID,
			Summary:     c.conf.Summary,
			Description: c.conf.Description,
			Timing:      c.timing.Timing,
			Schedule:    c.conf.Schedule,
		})
	}
	body, err := ics.Export(exported, ics.ExportOptions{Namespace: "datecell", Now: clock.Now()})
	if err != nil {
		return err
	}
	_, err = out.Write(body)
	return err
}

// runWatch logs day progress on the configured cron spec until ctx is done.
func runWatch(ctx context.Context, conf *config.Config, cells []namedCell, clock cell.Clock) error {
	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		return err
	}

	tick := func() {
		report, err := progressReport(cells, clock)
		if err != nil {
			appLog.Error("watch: progress failed", err)
			return
		}
		for _, r := range report {
			appLog.Info("day progress",
				"id", r.ID,
				"index", r.Progress.CurrentIndex,
				"in_progress", r.Progress.IsInProgress,
				"occurred_today", r.Progress.HasOccurredToday,
				"complete", r.Progress.IsComplete,
			)
		}
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(conf.ProgressCron, tick); err != nil {
		return fmt.Errorf("watch: schedule %q: %w", conf.ProgressCron, err)
	}

	tick()
	c.Start()
	appLog.Info("watch started", "cron", conf.ProgressCron, "timezone", conf.Timezone)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// runImport maps the events of a calendar feed onto the indexes of c.
func runImport(ctx context.Context, conf *config.Config, c namedCell, flags flagConfig, out io.Writer) error {
	loader := ics.NewLoader(flags.cacheDir, nil)
	feed, err := loader.Load(ctx, ics.Feed{ID: c.conf.ID, Location: flags.feed})
	if err != nil {
		return err
	}
	events, err := ics.Parse(feed.Body)
	if err != nil {
		return err
	}

	timing := c.timing.Timing
	res, err := ics.Expand(events, ics.ExpandConfig{
		RangeStart:             c.timing.Start,
		RangeEnd:               timing.End,
		MaxOccurrencesPerEvent: conf.MaxCells,
	})
	if err != nil {
		return err
	}
	spans, err := ics.Index(res.Occurrences, timing)
	if err != nil {
		return err
	}
	appLog.Info("imported feed",
		"id", c.conf.ID,
		"events", len(events),
		"spans", len(spans),
		"from_cache", feed.FromCache,
		"truncated", len(res.TruncatedEvents),
	)
	return writeJSON(out, expandedCell{ID: c.conf.ID, Spans: spans})
}

func runMerge(conf *config.Config, out io.Writer) error {
	m := conf.Merge
	if m == nil {
		return errNoMerge
	}
	e, err := unique.NewExpander(unique.Config[model.UniqueRange]{
		StartAtIndex:    m.StartAt,
		EndAtIndex:      m.EndAt,
		Fill:            m.Fill,
		FillFactory:     unique.NewStableIDFillFactory(m.Namespace),
		RetainOnOverlap: m.Retain,
	})
	if err != nil {
		return err
	}
	return writeJSON(out, e.Expand(m.Current, m.Next))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
