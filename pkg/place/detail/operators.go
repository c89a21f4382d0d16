package detail

import (
	"math"
	"sort"

	"github.com/mgrund/gridplace/pkg/arch"
)

const improveEps = 1e-12

// passSwap runs one global-swap or vertical-swap pass. Each cell is pulled
// toward the center of its net boxes; maxRowDist limits how many rows away
// the target may be (vertical swap uses 1, global swap the full core).
func (d *improver) passSwap(maxRowDist int) int {
	var moves int
	for _, i := range d.m.managed() {
		ox, oy, ok := d.m.optimalSpot(i)
		if !ok {
			continue
		}
		ri := d.ar.RowIndexNear(oy)
		base := d.m.rowOf[i]
		if ri > base+maxRowDist {
			ri = base + maxRowDist
		}
		if ri < base-maxRowDist {
			ri = base - maxRowDist
		}
		if d.tryRelocate(i, ri, ox) {
			moves++
		}
	}
	return moves
}

// tryRelocate tries to move cell i near targetX on row ri, first into a
// free slot and then by swapping with the nearest occupant. A change is
// kept only when the affected wirelength improves.
func (d *improver) tryRelocate(i, ri int, targetX float64) bool {
	n := d.nl.Node(i)
	row := d.ar.Rows[ri]
	desired := row.SnapX(targetX - 0.5*n.Width)

	for _, off := range [...]float64{0, -1, 1, -2, 2} {
		if d.tryMove(i, ri, desired+off*row.SiteWidth) {
			return true
		}
	}
	if j := d.occupantNear(ri, targetX); j >= 0 && j != i {
		return d.trySwap(i, j)
	}
	return false
}

// tryMove moves cell i to (ri, x) and keeps the move only if it improves
// the wirelength of the affected nets.
func (d *improver) tryMove(i, ri int, x float64) bool {
	p := d.m.capture(i)
	if p.row == ri && math.Abs(d.m.leftEdge(i)-x) < 1e-9 {
		return false
	}
	before := d.m.affectedHPWL(i)
	if !d.m.placeAt(i, ri, x) {
		return false
	}
	if d.m.affectedHPWL(i) < before-improveEps {
		return true
	}
	d.m.restore(i, p)
	return false
}

// trySwap exchanges cells i and j, keeping the swap only on improvement.
func (d *improver) trySwap(i, j int) bool {
	before := d.m.affectedHPWL(i, j)
	if !d.m.swap(i, j) {
		return false
	}
	if d.m.affectedHPWL(i, j) < before-improveEps {
		return true
	}
	// Swapping back into the original slots always succeeds.
	d.m.swap(i, j)
	return false
}

// occupantNear returns the managed cell on row ri whose center is closest
// to x, or -1 for an empty row.
func (d *improver) occupantNear(ri int, x float64) int {
	row := d.m.rows[ri]
	if len(row) == 0 {
		return -1
	}
	k := sort.Search(len(row), func(j int) bool { return d.nl.Node(row[j]).X >= x })
	best, bestDist := -1, math.Inf(1)
	for _, cand := range []int{k - 1, k} {
		if cand < 0 || cand >= len(row) {
			continue
		}
		if dist := math.Abs(d.nl.Node(row[cand]).X - x); dist < bestDist {
			best, bestDist = row[cand], dist
		}
	}
	return best
}

// passReorder slides a fixed-size window along every row and keeps the
// best permutation of the windowed cells within their free span.
func (d *improver) passReorder(window int) int {
	if window < 2 {
		window = 2
	}
	var moves int
	for ri := range d.m.rows {
		for k := 0; k+window <= len(d.m.rows[ri]); k++ {
			if d.reorderWindow(ri, k, window) {
				moves++
			}
		}
	}
	return moves
}

// reorderWindow permutes cells rows[ri][k:k+w] inside the gap bounded by
// their outer neighbors and static blockage. Cells are repositioned
// directly and the row resorted; legality is guaranteed by packing into
// the free gap on site boundaries.
func (d *improver) reorderWindow(ri, k, w int) bool {
	row := d.ar.Rows[ri]
	cells := make([]int, w)
	copy(cells, d.m.rows[ri][k:k+w])

	gapLeft := row.Left()
	if k > 0 {
		p := d.nl.Node(d.m.rows[ri][k-1])
		gapLeft = p.X + 0.5*p.Width + p.PadRight
	}
	gapRight := row.Right()
	if k+w < len(d.m.rows[ri]) {
		nx := d.nl.Node(d.m.rows[ri][k+w])
		gapRight = nx.X - 0.5*nx.Width - nx.PadLeft
	}
	for _, iv := range d.m.blocked[ri] {
		if iv.a < gapRight-1e-9 && gapLeft < iv.b-1e-9 {
			return false // blockage splits the window span
		}
	}

	// Permutations repack from the window's own left edge, so the window
	// reorders in place instead of compacting into the gap.
	first := d.nl.Node(cells[0])
	packStart := math.Max(gapLeft, first.X-0.5*first.Width-first.PadLeft)

	saved := make([]float64, w)
	for c, id := range cells {
		saved[c] = d.nl.Node(id).X
	}
	before := d.m.affectedHPWL(cells...)

	bestGain := 0.0
	var bestX []float64
	perm := make([]int, w)
	for p := range perm {
		perm[p] = p
	}
	permute(perm, func(order []int) {
		xs, ok := d.packWindow(cells, order, row, packStart, gapRight)
		if !ok {
			return
		}
		for c, id := range cells {
			d.nl.Node(id).X = xs[c]
		}
		if gain := before - d.m.affectedHPWL(cells...); gain > bestGain+improveEps {
			bestGain = gain
			bestX = append(bestX[:0], xs...)
		}
		for c, id := range cells {
			d.nl.Node(id).X = saved[c]
		}
	})

	if bestX == nil {
		return false
	}
	for c, id := range cells {
		d.nl.Node(id).X = bestX[c]
	}
	d.m.sortRow(ri)
	return true
}

// packWindow packs the cells in the given order into [gapLeft, gapRight],
// left edges snapped up to sites. Returns per-cell centers indexed like
// cells, or ok=false when the order does not fit or a region rejects it.
func (d *improver) packWindow(cells, order []int, row arch.Row, gapLeft, gapRight float64) ([]float64, bool) {
	xs := make([]float64, len(cells))
	cursor := gapLeft
	for _, c := range order {
		n := d.nl.Node(cells[c])
		cellLeft := row.SnapX(cursor + n.PadLeft)
		if cellLeft < cursor+n.PadLeft-1e-9 {
			cellLeft += row.SiteWidth
		}
		if cellLeft+n.Width+n.PadRight > gapRight+1e-9 {
			return nil, false
		}
		if g, err := d.ar.Region(n.RegionID); err == nil {
			fp := n.Footprint()
			fp.XMin = cellLeft
			fp.XMax = cellLeft + n.Width
			if !g.Admits(fp) {
				return nil, false
			}
		}
		xs[c] = cellLeft + 0.5*n.Width
		cursor = cellLeft + n.Width + n.PadRight
	}
	return xs, true
}

// permute calls fn with every permutation of s. s is restored on return.
func permute(s []int, fn func([]int)) {
	var rec func(k int)
	rec = func(k int) {
		if k == len(s) {
			fn(s)
			return
		}
		for i := k; i < len(s); i++ {
			s[k], s[i] = s[i], s[k]
			rec(k + 1)
			s[k], s[i] = s[i], s[k]
		}
	}
	rec(0)
}

// passRandom tries one seeded random relocation per managed cell.
func (d *improver) passRandom() int {
	cells := d.m.managed()
	if len(cells) == 0 {
		return 0
	}
	var moves int
	for range cells {
		i := cells[d.rng.Intn(len(cells))]
		ri := d.rng.Intn(len(d.ar.Rows))
		row := d.ar.Rows[ri]
		n := d.nl.Node(i)
		span := row.Right() - row.Left() - n.Width
		if span <= 0 {
			continue
		}
		x := row.SnapX(row.Left() + d.rng.Float64()*span)
		if d.tryMove(i, ri, x) {
			moves++
		}
	}
	return moves
}
