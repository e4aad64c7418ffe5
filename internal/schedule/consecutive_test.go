package schedule

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func scheduleFrom(prices []float64, active ...int) []Slot {
	slots, err := normalize(hourSeries(dayStart(), prices))
	if err != nil {
		panic(err)
	}
	for _, idx := range active {
		slots[idx].Status = StatusActive
	}
	return slots
}

func runsOf(slots []Slot) []run {
	return activeRuns(slots)
}

func TestEnforceMinConsecutiveExtendsShortRuns(t *testing.T) {
	slots := scheduleFrom([]float64{9, 1, 9, 9, 9, 1, 9, 9}, 1, 5)
	cfg := lowestPriceConfig(2)
	cfg.MinConsecutiveHours = fptr(2)

	enforceMinConsecutive(slots, cfg, zerolog.Nop())

	for _, r := range runsOf(slots) {
		if length := r.end - r.start; length < 2 {
			t.Errorf("run at %d has length %d, want >= 2", r.start, length)
		}
	}
	// Quota overshoot is accepted: 2 runs of 2 slots from 2 selected.
	total := 0
	for _, s := range slots {
		if s.Status == StatusActive {
			total++
		}
	}
	if total != 4 {
		t.Errorf("expected 4 active slots after extension, got %d", total)
	}
}

func TestEnforceMinConsecutivePrefersBetterPricedNeighbour(t *testing.T) {
	slots := scheduleFrom([]float64{2, 9, 5, 9}, 1)
	cfg := lowestPriceConfig(1)
	cfg.MinConsecutiveHours = fptr(2)

	enforceMinConsecutive(slots, cfg, zerolog.Nop())

	if slots[0].Status != StatusActive {
		t.Error("cheaper backward neighbour should be absorbed")
	}
	if slots[2].Status == StatusActive {
		t.Error("more expensive forward neighbour should be left standby")
	}
}

func TestEnforceMinConsecutiveStopsAtBarriers(t *testing.T) {
	slots := scheduleFrom([]float64{5, 5, 1, 5, 5}, 2)
	slots[1].Status = StatusExcluded
	slots[3].ForceInactive = true
	cfg := lowestPriceConfig(1)
	cfg.MinConsecutiveHours = fptr(3)

	enforceMinConsecutive(slots, cfg, zerolog.Nop())

	if slots[1].Status != StatusExcluded {
		t.Error("excluded slot must never be absorbed")
	}
	if slots[3].Status == StatusActive {
		t.Error("force-inactive slot must never be absorbed")
	}
	// The run stays short: both neighbours are barriers.
	runs := runsOf(slots)
	if len(runs) != 1 || runs[0].end-runs[0].start != 1 {
		t.Errorf("expected the single-slot run to remain, got %+v", runs)
	}
}

func TestEnforceMinConsecutiveMergesAdjacentRuns(t *testing.T) {
	slots := scheduleFrom([]float64{9, 1, 3, 1, 9, 9}, 1, 3)
	cfg := lowestPriceConfig(2)
	cfg.MinConsecutiveHours = fptr(2)

	enforceMinConsecutive(slots, cfg, zerolog.Nop())

	runs := runsOf(slots)
	if len(runs) != 1 {
		t.Fatalf("expected one merged run, got %d", len(runs))
	}
	if length := runs[0].end - runs[0].start; length < 3 {
		t.Errorf("merged run length %d, want >= 3", length)
	}
}

func TestCommitmentProtectsCurrentBlock(t *testing.T) {
	start := dayStart()
	now := start.Add(30 * time.Minute)
	blockStart := start

	// The strategy chose nothing for the current hour, but a block started at
	// midnight and min_consecutive is 2h: the recomputation must keep it on.
	slots := scheduleFrom(day24Prices[:6])
	cfg := lowestPriceConfig(4)
	cfg.MinConsecutiveHours = fptr(2)

	applyCommitment(slots, cfg, State{ActiveBlockStart: &blockStart}, now, zerolog.Nop())

	if slots[0].Status != StatusActive {
		t.Error("current committed slot must stay active")
	}
	if slots[1].Status != StatusActive {
		t.Error("remaining committed slot must stay active")
	}
	if slots[2].Status == StatusActive {
		t.Error("slots beyond the commitment must not be touched")
	}
}

func TestCommitmentReleasedAfterMinimumElapsed(t *testing.T) {
	start := dayStart()
	blockStart := start
	now := start.Add(2 * time.Hour) // commitment of 2h fully elapsed

	slots := scheduleFrom(day24Prices[:6])
	cfg := lowestPriceConfig(4)
	cfg.MinConsecutiveHours = fptr(2)

	applyCommitment(slots, cfg, State{ActiveBlockStart: &blockStart}, now, zerolog.Nop())

	for i, s := range slots {
		if s.Status == StatusActive {
			t.Errorf("slot %d forced active after the commitment elapsed", i)
		}
	}
}

func TestCommitmentYieldsToForceInactive(t *testing.T) {
	start := dayStart()
	blockStart := start
	now := start.Add(30 * time.Minute)

	slots := scheduleFrom(day24Prices[:6])
	slots[0].ForceInactive = true
	cfg := lowestPriceConfig(4)
	cfg.MinConsecutiveHours = fptr(2)

	applyCommitment(slots, cfg, State{ActiveBlockStart: &blockStart}, now, zerolog.Nop())

	if slots[0].Status == StatusActive {
		t.Error("a committed slot hitting always_expensive must not stay active")
	}
}

func TestCommitmentCappedByQuota(t *testing.T) {
	start := dayStart()
	blockStart := start
	now := start.Add(90 * time.Minute)

	slots := scheduleFrom(day24Prices[:6])
	cfg := lowestPriceConfig(1) // quota 1h caps the 3h consecutive minimum
	cfg.MinConsecutiveHours = fptr(3)

	applyCommitment(slots, cfg, State{ActiveBlockStart: &blockStart}, now, zerolog.Nop())

	for i, s := range slots {
		if s.Status == StatusActive {
			t.Errorf("slot %d forced active beyond the quota-capped commitment", i)
		}
	}
}
