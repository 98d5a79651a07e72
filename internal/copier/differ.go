package copier

import (
	"math"
	"sort"

	"copytrader/internal/memorystore"
)

// Snapshot maps pair to signed position quantity.
type Snapshot map[string]float64

// Delta is the change of one pair between two snapshots.
type Delta struct {
	Pair string
	Qty  float64
}

// SnapshotFromPositions builds a snapshot, summing duplicate pairs.
func SnapshotFromPositions(positions []Position) Snapshot {
	snap := make(Snapshot, len(positions))
	for _, p := range positions {
		if p.Pair == "" {
			continue
		}
		snap[p.Pair] += p.Qty
	}
	return snap
}

// Diff returns curr - prev for every pair in either snapshot whose change
// exceeds eps in magnitude, sorted by pair. A pair missing from a snapshot
// counts as 0, so a pair that left the book yields a closing delta.
func Diff(prev, curr Snapshot, eps float64) []Delta {
	pairs := make(map[string]struct{}, len(prev)+len(curr))
	for p := range prev {
		pairs[p] = struct{}{}
	}
	for p := range curr {
		pairs[p] = struct{}{}
	}

	deltas := make([]Delta, 0, len(pairs))
	for p := range pairs {
		d := curr[p] - prev[p]
		if math.Abs(d) > eps {
			deltas = append(deltas, Delta{Pair: p, Qty: d})
		}
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].Pair < deltas[j].Pair })
	return deltas
}

// OrderSide picks the side for delta: sell when the lead reduced (or, in
// reverse mode, increased) its position, buy otherwise.
func OrderSide(delta float64, reverse bool) memorystore.Side {
	if (delta > 0 && reverse) || (delta < 0 && !reverse) {
		return memorystore.SideSell
	}
	return memorystore.SideBuy
}
