package schedule

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func candidatesFrom(prices []float64) []candidate {
	start := dayStart()
	cands := make([]candidate, len(prices))
	for i, p := range prices {
		s := start.Add(time.Duration(i) * time.Hour)
		cands[i] = candidate{index: i, slot: PriceSlot{
			Start: s, End: s.Add(time.Hour), Price: decimal.NewFromFloat(p),
		}}
	}
	return cands
}

func TestSelectQuotaStrictRank(t *testing.T) {
	cands := candidatesFrom([]float64{5, 3, 8, 1, 9})
	rankCandidates(cands, false)
	picked := selectQuota(cands, 2, nil)
	if len(picked) != 2 {
		t.Fatalf("expected exactly 2, got %d", len(picked))
	}
	want := map[int]bool{3: true, 1: true}
	for _, idx := range picked {
		if !want[idx] {
			t.Errorf("unexpected pick %d", idx)
		}
	}
}

func TestSelectQuotaTieBreakByStart(t *testing.T) {
	cands := candidatesFrom([]float64{4, 4, 4, 4})
	rankCandidates(cands, false)
	picked := selectQuota(cands, 2, nil)
	if len(picked) != 2 || picked[0] != 0 || picked[1] != 1 {
		t.Fatalf("ties must break by earliest start, got %v", picked)
	}
}

func TestSelectQuotaSimilarityBand(t *testing.T) {
	// Cutoff rank price is 10; a 10% band reaches up to 11 and pulls in the
	// near-equal 10.5 but not 12.
	cands := candidatesFrom([]float64{9, 10, 10.5, 12})
	rankCandidates(cands, false)
	picked := selectQuota(cands, 2, fptr(10))
	if len(picked) != 3 {
		t.Fatalf("expected band to extend selection to 3, got %v", picked)
	}
	for _, idx := range picked {
		if idx == 3 {
			t.Error("price 12 lies outside the similarity band")
		}
	}
}

func TestSelectQuotaInverted(t *testing.T) {
	cands := candidatesFrom([]float64{5, 3, 8, 1, 9})
	rankCandidates(cands, true)
	picked := selectQuota(cands, 2, nil)
	want := map[int]bool{4: true, 2: true}
	for _, idx := range picked {
		if !want[idx] {
			t.Errorf("inverted mode should pick the most expensive, got %v", picked)
		}
	}
}

func TestSelectQuotaNegativePrices(t *testing.T) {
	// Negative cutoff: the band must still be a proper interval around it.
	cands := candidatesFrom([]float64{-10, -9.8, -5, 0})
	rankCandidates(cands, false)
	picked := selectQuota(cands, 1, fptr(5))
	if len(picked) != 2 {
		t.Fatalf("expected -9.8 inside the band around -10, got %v", picked)
	}
}
