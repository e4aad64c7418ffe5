package schedule

import (
	"sort"

	"github.com/shopspring/decimal"
)

// candidate references a selectable slot by its index in the full sequence.
type candidate struct {
	index int
	slot  PriceSlot
}

// rankCandidates orders candidates by price, cheapest first in normal mode and
// most expensive first in inverted mode, with a stable tie-break on the
// earliest start time.
func rankCandidates(cands []candidate, inverted bool) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i].slot.Price, cands[j].slot.Price
		if !a.Equal(b) {
			if inverted {
				return a.GreaterThan(b)
			}
			return a.LessThan(b)
		}
		return cands[i].slot.Start.Before(cands[j].slot.Start)
	})
}

// selectQuota picks the top quota candidates from a ranked list. When a
// similarity percentage is configured, every candidate whose price falls
// within the band around the cutoff-rank price is included as well, so that
// near-identical prices are not split by an arbitrary rank boundary. The
// returned indices refer to the full slot sequence.
func selectQuota(cands []candidate, quota int, similarityPct *float64) []int {
	if quota <= 0 || len(cands) == 0 {
		return nil
	}
	if quota >= len(cands) {
		picked := make([]int, len(cands))
		for i, c := range cands {
			picked[i] = c.index
		}
		return picked
	}

	picked := make([]int, 0, quota)
	for _, c := range cands[:quota] {
		picked = append(picked, c.index)
	}

	if similarityPct == nil || *similarityPct <= 0 {
		return picked
	}

	cutoff := cands[quota-1].slot.Price
	offset := cutoff.Abs().Mul(decimal.NewFromFloat(*similarityPct / 100))
	lo := cutoff.Sub(offset)
	hi := cutoff.Add(offset)

	for _, c := range cands[quota:] {
		p := c.slot.Price
		if !p.LessThan(lo) && !p.GreaterThan(hi) {
			picked = append(picked, c.index)
		}
	}
	return picked
}
