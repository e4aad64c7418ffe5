package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Mode controls the ordering of slot selection.
type Mode string

const (
	// ModeCheapest selects the lowest-priced slots.
	ModeCheapest Mode = "cheapest"
	// ModeMostExpensive inverts the selection and the threshold roles, for
	// loads that should avoid running during cheap (e.g. export-heavy) hours.
	ModeMostExpensive Mode = "most_expensive"
)

// Strategy selects the active scheduling algorithm.
type Strategy string

const (
	// StrategyLowestPrice solves a cheapest-N quota inside repeating periods.
	StrategyLowestPrice Strategy = "lowest_price"
	// StrategyMinimumRuntime guarantees a minimum active duration inside
	// every rolling window, using persisted appliance history.
	StrategyMinimumRuntime Strategy = "minimum_runtime"
)

// ClockTime is a wall-clock time of day ("HH:MM" or "HH:MM:SS").
type ClockTime struct {
	Hour   int
	Minute int
	Second int
}

// ParseClockTime parses "HH:MM" or "HH:MM:SS".
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ClockTime{}, fmt.Errorf("%w: clock time %q", ErrConfig, s)
	}
	var fields [3]int
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return ClockTime{}, fmt.Errorf("%w: clock time %q", ErrConfig, s)
		}
		fields[i] = v
	}
	ct := ClockTime{Hour: fields[0], Minute: fields[1], Second: fields[2]}
	if ct.Hour < 0 || ct.Hour > 23 || ct.Minute < 0 || ct.Minute > 59 || ct.Second < 0 || ct.Second > 59 {
		return ClockTime{}, fmt.Errorf("%w: clock time %q out of range", ErrConfig, s)
	}
	return ct, nil
}

// SecondOfDay returns the offset from midnight in seconds.
func (c ClockTime) SecondOfDay() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

// Offset returns the time-of-day as a duration from midnight.
func (c ClockTime) Offset() time.Duration {
	return time.Duration(c.SecondOfDay()) * time.Second
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// Config is one appliance instance's scheduling configuration. Optional
// overrides are nil when disabled.
type Config struct {
	Mode     Mode
	Strategy Strategy

	// Lowest-price strategy. PeriodFrom == PeriodTo means the natural
	// calendar day.
	HoursPerPeriod float64
	PeriodFrom     ClockTime
	PeriodTo       ClockTime

	// Minimum-runtime strategy.
	MinHoursOn         float64
	RollingWindowHours float64

	// Shared optional overrides.
	AlwaysCheapPrice     *decimal.Decimal
	AlwaysExpensivePrice *decimal.Decimal
	PriceSimilarityPct   *float64
	MinConsecutiveHours  *float64
	ExcludeFrom          *ClockTime
	ExcludeUntil         *ClockTime
}

// Inverted reports whether selection ordering and threshold roles are swapped.
func (c Config) Inverted() bool {
	return c.Mode == ModeMostExpensive
}

// MaxHoursOff is the longest permissible gap between active runs for the
// minimum-runtime strategy.
func (c Config) MaxHoursOff() float64 {
	return c.RollingWindowHours - c.MinHoursOn
}

// PeriodLength returns the duration of one lowest-price period. Equal
// boundaries mean the natural calendar day.
func (c Config) PeriodLength() time.Duration {
	from, to := c.PeriodFrom.Offset(), c.PeriodTo.Offset()
	if from == to {
		return 24 * time.Hour
	}
	if to > from {
		return to - from
	}
	return 24*time.Hour - (from - to)
}

// Validate rejects invalid option combinations. All violations map to
// ErrConfig; nothing is clamped.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeCheapest, ModeMostExpensive:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrConfig, c.Mode)
	}

	switch c.Strategy {
	case StrategyLowestPrice:
		if c.HoursPerPeriod <= 0 {
			return fmt.Errorf("%w: hours_per_period must be positive", ErrConfig)
		}
		if c.HoursPerPeriod > c.PeriodLength().Hours() {
			return fmt.Errorf("%w: hours_per_period %.2f exceeds period length %.2fh",
				ErrConfig, c.HoursPerPeriod, c.PeriodLength().Hours())
		}
	case StrategyMinimumRuntime:
		if c.MinHoursOn <= 0 {
			return fmt.Errorf("%w: min_hours_on must be positive", ErrConfig)
		}
		if c.RollingWindowHours <= 0 {
			return fmt.Errorf("%w: rolling_window_hours must be positive", ErrConfig)
		}
		if c.MinHoursOn > c.RollingWindowHours {
			return fmt.Errorf("%w: min_hours_on %.2f exceeds rolling_window_hours %.2f",
				ErrConfig, c.MinHoursOn, c.RollingWindowHours)
		}
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrConfig, c.Strategy)
	}

	if c.PriceSimilarityPct != nil && *c.PriceSimilarityPct < 0 {
		return fmt.Errorf("%w: price_similarity_pct cannot be negative", ErrConfig)
	}
	if c.MinConsecutiveHours != nil && *c.MinConsecutiveHours <= 0 {
		return fmt.Errorf("%w: min_consecutive_hours must be positive", ErrConfig)
	}
	if (c.ExcludeFrom == nil) != (c.ExcludeUntil == nil) {
		return fmt.Errorf("%w: exclude_from and exclude_until must be set together", ErrConfig)
	}
	return nil
}
