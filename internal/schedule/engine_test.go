package schedule

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testEngine() *Engine {
	return NewEngine(zerolog.Nop())
}

func dayStart() time.Time {
	return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
}

// hourSeries builds contiguous one-hour slots starting at start.
func hourSeries(start time.Time, prices []float64) []RawPoint {
	points := make([]RawPoint, len(prices))
	for i, p := range prices {
		s := start.Add(time.Duration(i) * time.Hour)
		points[i] = RawPoint{Start: s, End: s.Add(time.Hour), Price: decimal.NewFromFloat(p)}
	}
	return points
}

func dec(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func fptr(f float64) *float64 { return &f }

func clock(h, m int) *ClockTime { return &ClockTime{Hour: h, Minute: m} }

func lowestPriceConfig(hours float64) Config {
	return Config{
		Mode:           ModeCheapest,
		Strategy:       StrategyLowestPrice,
		HoursPerPeriod: hours,
	}
}

// day24Prices is a full day of distinct hourly prices. The four lowest are
// 1 (03:00), 2 (05:00), 3 (01:00), and 4 (07:00).
var day24Prices = []float64{
	5, 3, 8, 1, 9, 2, 11, 4, 12, 13, 14, 15,
	16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27,
}

func TestLowestPriceSelectsQuotaCheapestHours(t *testing.T) {
	start := dayStart()
	in := Input{
		Series: hourSeries(start, day24Prices),
		Config: lowestPriceConfig(4),
		Now:    start,
	}

	res, _, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if res.ActiveSlotCount != 4 {
		t.Fatalf("expected 4 active slots, got %d", res.ActiveSlotCount)
	}
	wantActive := map[int]bool{1: true, 3: true, 5: true, 7: true}
	for i, s := range res.Slots {
		if wantActive[i] != (s.Status == StatusActive) {
			t.Errorf("slot %d: status %s, want active=%v (price %s)", i, s.Status, wantActive[i], s.Price)
		}
	}
	if res.ActiveHoursInPeriod != 4 {
		t.Errorf("active hours in period = %v, want 4", res.ActiveHoursInPeriod)
	}
}

func TestForceInactivePrecedence(t *testing.T) {
	// always_cheap is set absurdly high so it also matches expensive slots;
	// force_inactive must still win for everything at or above
	// always_expensive.
	start := dayStart()
	cfg := lowestPriceConfig(4)
	cfg.AlwaysCheapPrice = dec(9)
	cfg.AlwaysExpensivePrice = dec(7)

	in := Input{Series: hourSeries(start, day24Prices), Config: cfg, Now: start}
	res, _, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	seven := decimal.NewFromInt(7)
	for i, s := range res.Slots {
		if s.Status == StatusActive && !s.Price.LessThan(seven) {
			t.Errorf("slot %d priced %s is active despite always_expensive=7", i, s.Price)
		}
	}
	// Slots below always_cheap but under the expensive cutoff become bonus
	// activations: prices 3 and 8 -> only 3 qualifies (8 >= 7).
	if res.Slots[1].Status != StatusActive {
		t.Errorf("slot priced 3 should be active via always_cheap")
	}
	if res.Slots[2].Status == StatusActive {
		t.Errorf("slot priced 8 must never be active")
	}
}

func TestExclusionWraparoundRemovesCheapestSlots(t *testing.T) {
	start := dayStart()
	prices := make([]float64, 24)
	for h := 0; h < 24; h++ {
		if h >= 22 || h < 6 {
			prices[h] = 0.5 // cheapest of the day, but excluded
		} else {
			prices[h] = 10 + float64(h)
		}
	}
	cfg := lowestPriceConfig(4)
	cfg.ExcludeFrom = clock(22, 0)
	cfg.ExcludeUntil = clock(6, 0)

	in := Input{Series: hourSeries(start, prices), Config: cfg, Now: start.Add(7 * time.Hour)}
	res, _, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	excluded := 0
	for i, s := range res.Slots {
		h := s.Start.Hour()
		inRange := h >= 22 || h < 6
		if inRange {
			excluded++
			if s.Status != StatusExcluded {
				t.Errorf("slot %d (hour %d) should be excluded, got %s", i, h, s.Status)
			}
		} else if s.Status == StatusExcluded {
			t.Errorf("slot %d (hour %d) wrongly excluded", i, h)
		}
	}
	if excluded != 8 {
		t.Fatalf("expected 8 excluded slots, got %d", excluded)
	}
	if res.ActiveSlotCount != 4 {
		t.Fatalf("expected 4 active slots outside exclusion, got %d", res.ActiveSlotCount)
	}
	// The active ones are the cheapest non-excluded hours: 06..09.
	for h := 6; h <= 9; h++ {
		if res.Slots[h].Status != StatusActive {
			t.Errorf("hour %d should be active, got %s", h, res.Slots[h].Status)
		}
	}
}

func TestMinimumRuntimeFirstRunDoesNotForceActivation(t *testing.T) {
	start := dayStart()
	prices := make([]float64, 24)
	for i := range prices {
		prices[i] = float64(30 - i) // most expensive first, cheapest last
	}
	cfg := Config{
		Mode:               ModeCheapest,
		Strategy:           StrategyMinimumRuntime,
		MinHoursOn:         4,
		RollingWindowHours: 28,
	}

	in := Input{Series: hourSeries(start, prices), Config: cfg, Now: start}
	res, _, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if res.CurrentStatus != StatusStandby {
		t.Fatalf("first run must not force immediate activation, current status %s", res.CurrentStatus)
	}
	if res.EmergencyMode {
		t.Fatal("emergency mode must not trigger with valid data")
	}
}

func TestMinimumRuntimeSchedulesQuotaBeforeDeadline(t *testing.T) {
	start := dayStart()
	prices := make([]float64, 36)
	for i := range prices {
		prices[i] = float64((i*7)%23 + 1)
	}
	cfg := Config{
		Mode:               ModeCheapest,
		Strategy:           StrategyMinimumRuntime,
		MinHoursOn:         2,
		RollingWindowHours: 10, // max_hours_off = 8
	}
	lastOn := start
	in := Input{
		Series: hourSeries(start, prices),
		Config: cfg,
		State:  State{LastOnTime: &lastOn},
		Now:    start,
	}

	res, st, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if res.ActiveSlotCount == 0 {
		t.Fatal("expected scheduled activations")
	}

	// No gap between activations may exceed max_hours_off while the next
	// cycle's deadline still falls inside the series.
	maxOff := 8 * time.Hour
	prev := lastOn
	for _, s := range res.Slots {
		if s.Status != StatusActive {
			continue
		}
		if gap := s.Start.Sub(prev); gap > maxOff {
			t.Errorf("gap %s before activation at %s exceeds max_hours_off", gap, s.Start)
		}
		prev = s.End
	}
	if st.LastOnTime == nil {
		t.Error("state last_on_time should carry over")
	}
}

func TestRollingWindowInvariantSteadyState(t *testing.T) {
	start := dayStart()
	prices := make([]float64, 48)
	for i := range prices {
		prices[i] = float64((i*13)%31 + 1)
	}
	cfg := Config{
		Mode:                ModeCheapest,
		Strategy:            StrategyMinimumRuntime,
		MinHoursOn:          2,
		RollingWindowHours:  12,
		MinConsecutiveHours: fptr(2),
	}
	lastOn := start
	in := Input{
		Series: hourSeries(start, prices),
		Config: cfg,
		State:  State{LastOnTime: &lastOn},
		Now:    start,
	}

	res, _, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	var lastActive time.Time
	for _, s := range res.Slots {
		if s.Status == StatusActive {
			lastActive = s.End
		}
	}
	if lastActive.IsZero() {
		t.Fatal("no activations scheduled")
	}

	window := 12 * time.Hour
	minOn := 2 * time.Hour
	for ws := start; !ws.Add(window).After(lastActive); ws = ws.Add(time.Hour) {
		we := ws.Add(window)
		var active time.Duration
		for _, s := range res.Slots {
			if s.Status != StatusActive {
				continue
			}
			lo, hi := s.Start, s.End
			if lo.Before(ws) {
				lo = ws
			}
			if hi.After(we) {
				hi = we
			}
			if hi.After(lo) {
				active += hi.Sub(lo)
			}
		}
		if active < minOn {
			t.Errorf("window %s..%s has %s active, want >= %s", ws, we, active, minOn)
		}
	}
}

func TestIdempotentRecomputation(t *testing.T) {
	start := dayStart()
	blockStart := start.Add(-30 * time.Minute)
	cfg := lowestPriceConfig(4)
	cfg.MinConsecutiveHours = fptr(2)
	cfg.PriceSimilarityPct = fptr(5)
	in := Input{
		Series: hourSeries(start, day24Prices),
		Config: cfg,
		State:  State{ActiveBlockStart: &blockStart},
		Now:    start.Add(90 * time.Minute),
	}

	first, st1, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	second, st2, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs must produce identical results")
	}
	if !reflect.DeepEqual(st1, st2) {
		t.Error("identical inputs must produce identical state")
	}
}

func TestEmergencyModeOnEmptySeries(t *testing.T) {
	now := dayStart().Add(10*time.Hour + 7*time.Minute)
	in := Input{Config: lowestPriceConfig(4), Now: now}

	res, _, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if !res.EmergencyMode {
		t.Fatal("expected emergency mode")
	}
	if res.CurrentStatus != StatusActive {
		t.Fatalf("emergency keeps the appliance running, got %s", res.CurrentStatus)
	}
	if len(res.Slots) != 96 {
		t.Fatalf("expected 96 synthetic slots, got %d", len(res.Slots))
	}
	for i, s := range res.Slots {
		if s.Status != StatusActive {
			t.Fatalf("synthetic slot %d not active", i)
		}
	}
	if res.MinPrice != nil || res.MaxPrice != nil || res.CurrentPrice != nil {
		t.Error("price diagnostics must be undefined in emergency mode")
	}
}

func TestEmergencyModeHonoursForcedOverrides(t *testing.T) {
	in := Input{Config: lowestPriceConfig(4), Now: dayStart(), ForceOff: true}
	res, _, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if res.CurrentStatus != StatusForcedOff {
		t.Fatalf("forced_off must win over emergency active, got %s", res.CurrentStatus)
	}
}

func TestMalformedSeriesDegradesToEmergency(t *testing.T) {
	start := dayStart()
	series := hourSeries(start, []float64{1, 2, 3})
	series[2].Start = series[1].Start.Add(30 * time.Minute) // overlap

	in := Input{Series: series, Config: lowestPriceConfig(1), Now: start}
	res, _, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("data errors must degrade, not propagate: %v", err)
	}
	if !res.EmergencyMode {
		t.Fatal("expected emergency mode for overlapping slots")
	}
}

func TestConfigErrorSurfacedBeforeCompute(t *testing.T) {
	cfg := Config{
		Mode:               ModeCheapest,
		Strategy:           StrategyMinimumRuntime,
		MinHoursOn:         30,
		RollingWindowHours: 28,
	}
	in := Input{Series: hourSeries(dayStart(), day24Prices), Config: cfg, Now: dayStart()}

	_, _, err := testEngine().Compute(in)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestCorruptStateTreatedAsFirstRun(t *testing.T) {
	start := dayStart()
	future := start.Add(48 * time.Hour)
	cfg := Config{
		Mode:               ModeCheapest,
		Strategy:           StrategyMinimumRuntime,
		MinHoursOn:         4,
		RollingWindowHours: 28,
	}
	in := Input{
		Series: hourSeries(start, day24Prices),
		Config: cfg,
		State:  State{LastOnTime: &future, ActiveBlockStart: &future},
		Now:    start,
	}

	res, st, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("corrupt state must be recovered, got %v", err)
	}
	if res.EmergencyMode {
		t.Fatal("state recovery must not trigger emergency mode")
	}
	if st.LastOnTime != nil && st.LastOnTime.After(in.Now) {
		t.Error("future last_on_time should have been discarded")
	}
}

func TestNextChangeAt(t *testing.T) {
	start := dayStart()
	in := Input{
		Series: hourSeries(start, day24Prices),
		Config: lowestPriceConfig(4),
		Now:    start.Add(30 * time.Minute), // inside slot 0 (standby)
	}
	res, _, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if res.CurrentStatus != StatusStandby {
		t.Fatalf("current status %s, want standby", res.CurrentStatus)
	}
	if res.NextChangeAt == nil {
		t.Fatal("expected a next change")
	}
	if want := start.Add(1 * time.Hour); !res.NextChangeAt.Equal(want) {
		t.Errorf("next change at %s, want %s", res.NextChangeAt, want)
	}
}

func TestForcedOverridePrecedence(t *testing.T) {
	start := dayStart()
	in := Input{
		Series:   hourSeries(start, day24Prices),
		Config:   lowestPriceConfig(4),
		Now:      start,
		ForceOn:  true,
		ForceOff: true,
	}
	res, _, err := testEngine().Compute(in)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if res.CurrentStatus != StatusForcedOff {
		t.Fatalf("forced_off beats forced_on, got %s", res.CurrentStatus)
	}
}
