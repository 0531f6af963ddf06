package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"datecell/internal/cell"
	"datecell/internal/model"
	"datecell/internal/unique"
)

var (
	// ErrEmptyPath is returned by Load and Save for an empty path.
	ErrEmptyPath = errors.New("config: path is empty")
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("config: invalid")
)

const (
	defaultTimezone     = "UTC"
	defaultLogLevel     = "info"
	defaultProgressCron = "*/15 * * * *"
	defaultMaxCells     = 1000
)

// DateRangeConfig is the half-open date range [Start, End) a cell covers.
type DateRangeConfig struct {
	Start time.Time `yaml:"start" validate:"required"`
	End   time.Time `yaml:"end" validate:"required,gtfield=Start"`
}

// DistanceConfig covers Days days beginning on the day of Date.
type DistanceConfig struct {
	Date time.Time `yaml:"date" validate:"required"`
	Days int       `yaml:"days" validate:"min=1"`
}

// CellConfig describes one named timing.
//
// Exactly one of Days, DateRange and Distance selects the covered days.
type CellConfig struct {
	ID          string        `yaml:"id" validate:"required"`
	Summary     string        `yaml:"summary,omitempty"`
	Description string        `yaml:"description,omitempty"`
	StartsAt    time.Time     `yaml:"starts_at" validate:"required"`
	Duration    model.Minutes `yaml:"duration" validate:"min=1,max=1440"`

	Days      int              `yaml:"days,omitempty" validate:"min=0"`
	DateRange *DateRangeConfig `yaml:"date_range,omitempty"`
	Distance  *DistanceConfig  `yaml:"distance,omitempty"`

	// Timezone overrides Config.Timezone for this cell.
	Timezone string          `yaml:"timezone,omitempty" validate:"omitempty,timezone"`
	Schedule *model.Schedule `yaml:"schedule,omitempty"`
}

// RangeInput returns the timing range the cell selects.
func (c CellConfig) RangeInput() cell.RangeInput {
	switch {
	case c.DateRange != nil:
		return cell.DateRange{Start: c.DateRange.Start, End: c.DateRange.End}
	case c.Distance != nil:
		return cell.DayDistance{Date: c.Distance.Date, Distance: c.Distance.Days}
	default:
		return cell.Days(c.Days)
	}
}

// MergeConfig holds two layers of ranges for the merge mode of the CLI.
type MergeConfig struct {
	Fill   unique.FillOption `yaml:"fill,omitempty" validate:"omitempty,oneof=extend fill"`
	Retain unique.Source     `yaml:"retain,omitempty" validate:"omitempty,oneof=current next"`
	// StartAt and EndAt bound the merged output.
	StartAt *model.Index `yaml:"start_at,omitempty"`
	EndAt   *model.Index `yaml:"end_at,omitempty"`
	// Namespace seeds the ids of synthesized fill blocks.
	Namespace string              `yaml:"namespace,omitempty"`
	Current   []model.UniqueRange `yaml:"current"`
	Next      []model.UniqueRange `yaml:"next"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA timezone used by cells that do not name one.
	Timezone string `yaml:"timezone" validate:"required,timezone"`

	// LogLevel is one of "debug", "info" or "error".
	LogLevel string `yaml:"log_level" validate:"oneof=debug info error"`

	// ProgressCron is the standard five-field cron spec on which watch mode
	// reports day progress.
	ProgressCron string `yaml:"progress_cron" validate:"required,cron"`

	// MaxCells caps the occurrences returned per cell. Zero means no cap.
	MaxCells int `yaml:"max_cells" validate:"min=0"`

	// EvaluationLimit caps the indexes evaluated per cell. Zero means no cap.
	EvaluationLimit int `yaml:"evaluation_limit" validate:"min=0"`

	Cells []CellConfig `yaml:"cells" validate:"unique=ID,dive"`

	Merge *MergeConfig `yaml:"merge,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:     defaultTimezone,
		LogLevel:     defaultLogLevel,
		ProgressCron: defaultProgressCron,
		MaxCells:     defaultMaxCells,
		Cells:        []CellConfig{},
	}
}

// Normalize fills in missing values with defaults so that partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.ProgressCron == "" {
		c.ProgressCron = defaultProgressCron
	}
	if c.Cells == nil {
		c.Cells = []CellConfig{}
	}
}

var (
	vOnce sync.Once
	v     *validator.Validate
)

func validate() *validator.Validate {
	vOnce.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())

		// report yaml names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("yaml")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
			_, err := cron.ParseStandard(fl.Field().String())
			return err == nil
		})

		v.RegisterStructValidation(func(sl validator.StructLevel) {
			c := sl.Current().Interface().(CellConfig)
			set := 0
			if c.Days > 0 {
				set++
			}
			if c.DateRange != nil {
				set++
			}
			if c.Distance != nil {
				set++
			}
			if set > 1 {
				sl.ReportError(c.Days, "days", "Days", "one_range", "")
			}
		}, CellConfig{})
	})
	return v
}

// Validate checks c against its struct tags and builds every cell timing.
func (c *Config) Validate() error {
	if err := validate().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Timings(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// CellTimezone returns the timezone that applies to cell.
func (c *Config) CellTimezone(cc CellConfig) string {
	if cc.Timezone != "" {
		return cc.Timezone
	}
	return c.Timezone
}

// Timing builds the timing of one cell.
func (c *Config) Timing(cc CellConfig) (model.FullTiming, error) {
	span := model.DateDurationSpan{StartsAt: cc.StartsAt, Duration: cc.Duration}
	timing, err := cell.NewTiming(span, cc.RangeInput(), c.CellTimezone(cc))
	if err != nil {
		return model.FullTiming{}, fmt.Errorf("cell %q: %w", cc.ID, err)
	}
	return timing, nil
}

// Timings builds the timing of every cell, keyed by cell id.
func (c *Config) Timings() (map[string]model.FullTiming, error) {
	out := make(map[string]model.FullTiming, len(c.Cells))
	for _, cc := range c.Cells {
		timing, err := c.Timing(cc)
		if err != nil {
			return nil, err
		}
		out[cc.ID] = timing
	}
	return out, nil
}

// Cell returns the cell with the given id.
func (c *Config) Cell(id string) (CellConfig, bool) {
	for _, cc := range c.Cells {
		if cc.ID == id {
			return cc, true
		}
	}
	return CellConfig{}, false
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is decoded, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return errors.New("config: config is nil")
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".datecell-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
