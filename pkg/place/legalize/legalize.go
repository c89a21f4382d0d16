// Package legalize snaps a continuous placement onto legal row sites.
//
// The algorithm is a clamp-and-shift sweep: movable cells are processed in
// left-to-right order, clamped into the free span of their nearest row, and
// shifted right past already-placed cells. Cells that do not fit spill over
// to the next-nearest row. Relative left-to-right order within a row is
// preserved, and an already-legal placement passes through untouched.
//
// Fixed-x cells never shift horizontally: they are assigned rows before the
// sweep, at their exact x coordinate, and act as blockage for everything
// else.
//
// A capacity pre-check runs before any cell moves: if the padded demand of
// any region exceeds its supply the legalizer fails without mutating the
// placement.
package legalize

import (
	"io"
	"math"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/mgrund/gridplace/pkg/arch"
	"github.com/mgrund/gridplace/pkg/errors"
	"github.com/mgrund/gridplace/pkg/netlist"
)

// Options configures a legalization pass.
type Options struct {
	// MaxDisplacement flags cells moved farther than this from their
	// global position. Zero disables the check. Flagged cells are still
	// placed; the count lands in Result.LargeShifts.
	MaxDisplacement float64

	// Logger receives per-cell warnings (rail mismatches, large shifts).
	Logger *log.Logger
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
}

// Result summarizes a legalization pass.
type Result struct {
	Moved          int     // cells whose position changed
	TotalShift     float64 // sum of displacement over moved cells
	MaxShift       float64 // largest single displacement
	LargeShifts    int     // cells beyond Options.MaxDisplacement
	RailMismatches int     // cells left on rails they do not match
}

// interval is a half-open blocked span [a, b) on a row.
type interval struct{ a, b float64 }

// rowState tracks the blocked spans of one row during the sweep.
type rowState struct {
	row     arch.Row
	blocked []interval // sorted, non-overlapping
	cursor  float64    // right edge of the last cell placed on this row
}

type legalizer struct {
	nl   *netlist.Netlist
	ar   *arch.Architecture
	opts Options
	rows []rowState
}

// Run legalizes every movable cell in place. On a capacity error no cell
// has moved.
func Run(nl *netlist.Netlist, ar *arch.Architecture, opts Options) (Result, error) {
	opts.setDefaults()
	lg := &legalizer{nl: nl, ar: ar, opts: opts}

	if err := lg.checkCapacity(); err != nil {
		return Result{}, err
	}

	lg.buildRows()

	// Fixed-x cells go first so their spans are reserved before anything
	// can shift into them.
	order := nl.Movable()
	sort.SliceStable(order, func(i, j int) bool {
		a, b := nl.Node(order[i]), nl.Node(order[j])
		if af, bf := a.Fixed == netlist.FixedX, b.Fixed == netlist.FixedX; af != bf {
			return af
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.ID < b.ID
	})

	var res Result
	for _, i := range order {
		n := nl.Node(i)
		oldX, oldY := n.X, n.Y
		var err error
		if n.Fixed == netlist.FixedX {
			err = lg.placeFixedX(n)
		} else {
			err = lg.placeCell(n)
		}
		if err != nil {
			return res, err
		}
		if shift := math.Hypot(n.X-oldX, n.Y-oldY); shift > 1e-9 {
			res.Moved++
			res.TotalShift += shift
			if shift > res.MaxShift {
				res.MaxShift = shift
			}
			if opts.MaxDisplacement > 0 && shift > opts.MaxDisplacement {
				res.LargeShifts++
				opts.Logger.Warn("cell displaced beyond limit",
					"cell", n.Name, "shift", shift)
			}
		}
		if !lg.adjustOrientation(n) {
			res.RailMismatches++
			opts.Logger.Warn("cell rails do not match row rails", "cell", n.Name)
		}
	}
	return res, nil
}

// checkCapacity verifies that every group region (including the default
// region) can hold the padded area of its member cells.
func (lg *legalizer) checkCapacity() error {
	demand := make([]float64, len(lg.ar.Regions))
	for _, i := range lg.nl.Movable() {
		n := lg.nl.Node(i)
		demand[n.RegionID] += n.PaddedWidth() * n.Height
	}

	for gi := range lg.ar.Regions {
		g := &lg.ar.Regions[gi]
		if g.Kind != arch.RegionGroup || demand[gi] == 0 {
			continue
		}
		supply := g.Capacity()
		if gi == 0 {
			// The default region competes with fixed cells and keep-outs.
			supply = lg.rowArea() - lg.fixedArea() - lg.keepOutArea()
		}
		if demand[gi] > supply {
			return errors.New(errors.ErrCodeCapacity,
				"region %d demand %.1f exceeds capacity %.1f", gi, demand[gi], supply)
		}
	}
	return nil
}

func (lg *legalizer) rowArea() float64 {
	var sum float64
	for _, r := range lg.ar.Rows {
		sum += (r.Right() - r.Left()) * r.Height
	}
	return sum
}

func (lg *legalizer) fixedArea() float64 {
	var sum float64
	for i := 0; i < lg.nl.NodeCount(); i++ {
		n := lg.nl.Node(i)
		if n.Kind == netlist.KindCell && !n.Movable() {
			sum += clipToBBox(n.Footprint(), lg.ar.BBox)
		}
	}
	return sum
}

func (lg *legalizer) keepOutArea() float64 {
	var sum float64
	for _, g := range lg.ar.Regions {
		if g.Kind != arch.RegionKeepOut {
			continue
		}
		for _, rc := range g.Rects {
			sum += clipToBBox(rc, lg.ar.BBox)
		}
	}
	return sum
}

func clipToBBox(r, bbox arch.Rect) float64 {
	c := arch.Rect{
		XMin: math.Max(r.XMin, bbox.XMin),
		YMin: math.Max(r.YMin, bbox.YMin),
		XMax: math.Min(r.XMax, bbox.XMax),
		YMax: math.Min(r.YMax, bbox.YMax),
	}
	return c.Area()
}

// buildRows seeds per-row blocked intervals from fixed cells and keep-out
// regions.
func (lg *legalizer) buildRows() {
	lg.rows = make([]rowState, len(lg.ar.Rows))
	for ri, row := range lg.ar.Rows {
		st := &lg.rows[ri]
		st.row = row
		st.cursor = row.Left()

		for i := 0; i < lg.nl.NodeCount(); i++ {
			n := lg.nl.Node(i)
			if n.Kind != netlist.KindCell || n.Movable() {
				continue
			}
			fp := n.Footprint()
			if fp.YMin < row.Top() && fp.YMax > row.Bottom {
				st.block(fp.XMin-n.PadLeft, fp.XMax+n.PadRight)
			}
		}
		for _, g := range lg.ar.Regions {
			if g.Kind != arch.RegionKeepOut {
				continue
			}
			for _, rc := range g.Rects {
				if rc.YMin < row.Top() && rc.YMax > row.Bottom {
					st.block(rc.XMin, rc.XMax)
				}
			}
		}
	}
}

// block inserts [a, b) into the sorted blocked list, merging overlaps.
func (st *rowState) block(a, b float64) {
	if b <= a {
		return
	}
	out := st.blocked[:0]
	inserted := false
	for _, iv := range st.blocked {
		switch {
		case iv.b < a:
			out = append(out, iv)
		case b < iv.a:
			if !inserted {
				out = append(out, interval{a, b})
				inserted = true
			}
			out = append(out, iv)
		default:
			a = math.Min(a, iv.a)
			b = math.Max(b, iv.b)
		}
	}
	if !inserted {
		out = append(out, interval{a, b})
	}
	st.blocked = out
	sort.Slice(st.blocked, func(i, j int) bool { return st.blocked[i].a < st.blocked[j].a })
}

// placeCell finds a legal site for one cell, trying rows in order of
// vertical distance from its global position.
func (lg *legalizer) placeCell(n *netlist.Node) error {
	base := lg.ar.RowIndexNear(n.Y - 0.5*n.Height + 0.5*lg.ar.Rows[0].Height)

	for offset := 0; offset <= len(lg.ar.Rows); offset++ {
		for _, ri := range candidateRows(base, offset, len(lg.ar.Rows)) {
			if lg.tryRow(n, ri) {
				return nil
			}
		}
	}
	return errors.New(errors.ErrCodeLegalize, "no legal position for cell %q", n.Name)
}

// placeFixedX assigns a fixed-x cell to the nearest row with free space at
// its exact x coordinate. The cell's span is blocked but the row cursor is
// left alone; free cells route around it like any other blockage.
func (lg *legalizer) placeFixedX(n *netlist.Node) error {
	base := lg.ar.RowIndexNear(n.Y - 0.5*n.Height + 0.5*lg.ar.Rows[0].Height)
	left := n.X - 0.5*n.Width - n.PadLeft
	width := n.PaddedWidth()

	for offset := 0; offset <= len(lg.ar.Rows); offset++ {
		for _, ri := range candidateRows(base, offset, len(lg.ar.Rows)) {
			lo, hi := lg.ar.RowSpan(ri, n.Height)
			if lg.rows[hi].row.Top() < lg.rows[lo].row.Bottom+n.Height-1e-9 {
				continue
			}
			if left < lg.spanLeft(lo, hi)-1e-9 || left+width > lg.spanRight(lo, hi)+1e-9 {
				continue
			}
			if _, blocked := lg.conflict(n, lo, hi, left, width); blocked {
				continue
			}
			n.Y = lg.rows[lo].row.Bottom + 0.5*n.Height
			for r := lo; r <= hi; r++ {
				lg.rows[r].block(left, left+width)
			}
			return nil
		}
	}
	return errors.New(errors.ErrCodeLegalize,
		"no legal row for fixed-x cell %q at x=%.3f", n.Name, n.X)
}

// candidateRows yields the row indices at the given distance from base,
// below first.
func candidateRows(base, offset, count int) []int {
	if offset == 0 {
		if base >= 0 && base < count {
			return []int{base}
		}
		return nil
	}
	var out []int
	if base-offset >= 0 {
		out = append(out, base-offset)
	}
	if base+offset < count {
		out = append(out, base+offset)
	}
	return out
}

// tryRow attempts to place the cell with its bottom on row ri, preserving
// left-to-right order via the row cursor.
func (lg *legalizer) tryRow(n *netlist.Node, ri int) bool {
	lo, hi := lg.ar.RowSpan(ri, n.Height)
	if lg.rows[hi].row.Top() < lg.rows[lo].row.Bottom+n.Height-1e-9 {
		return false
	}

	row := lg.rows[lo].row
	width := n.PaddedWidth()

	// The desired padded-left position, clamped past every spanned row's
	// cursor so order is preserved.
	desired := n.X - 0.5*n.Width - n.PadLeft
	for r := lo; r <= hi; r++ {
		desired = math.Max(desired, lg.rows[r].cursor)
	}

	left, ok := lg.findSlot(n, lo, hi, desired, width, row)
	if !ok {
		return false
	}

	n.X = left + n.PadLeft + 0.5*n.Width
	n.Y = lg.rows[lo].row.Bottom + 0.5*n.Height
	for r := lo; r <= hi; r++ {
		lg.rows[r].block(left, left+width)
		lg.rows[r].cursor = math.Max(lg.rows[r].cursor, left+width)
	}
	return true
}

// findSlot scans rightward from desired for the first gap, common to all
// spanned rows and admitted by the cell's region, that holds the padded
// width with the cell's left edge on the site grid.
func (lg *legalizer) findSlot(n *netlist.Node, lo, hi int, desired, width float64, row arch.Row) (float64, bool) {
	right := lg.spanRight(lo, hi)
	pos := math.Max(desired, lg.spanLeft(lo, hi))

	for pos+width <= right+1e-9 {
		// Snap the cell's left edge up to the site grid.
		cellLeft := row.SnapX(pos + n.PadLeft)
		if cellLeft < pos+n.PadLeft {
			cellLeft += row.SiteWidth
		}
		pos = cellLeft - n.PadLeft
		if pos+width > right+1e-9 {
			return 0, false
		}

		if bump, ok := lg.conflict(n, lo, hi, pos, width); ok {
			pos = bump
			continue
		}
		return pos, true
	}
	return 0, false
}

// conflict reports whether [pos, pos+width) collides with a blocked span
// on any spanned row or violates the cell's region. The returned position
// is the next candidate to try.
func (lg *legalizer) conflict(n *netlist.Node, lo, hi int, pos, width float64) (float64, bool) {
	for r := lo; r <= hi; r++ {
		for _, iv := range lg.rows[r].blocked {
			if iv.a < pos+width-1e-9 && pos < iv.b-1e-9 {
				return iv.b, true
			}
		}
	}
	fp := arch.Rect{
		XMin: pos + n.PadLeft,
		YMin: lg.rows[lo].row.Bottom,
		XMax: pos + n.PadLeft + n.Width,
		YMax: lg.rows[lo].row.Bottom + n.Height,
	}
	g, err := lg.ar.Region(n.RegionID)
	if err == nil && !g.Admits(fp) {
		// Step a site at a time until the region admits the footprint.
		return pos + math.Max(lg.rows[lo].row.SiteWidth, 1e-6), true
	}
	return 0, false
}

func (lg *legalizer) spanLeft(lo, hi int) float64 {
	left := lg.rows[lo].row.Left()
	for r := lo + 1; r <= hi; r++ {
		left = math.Max(left, lg.rows[r].row.Left())
	}
	return left
}

func (lg *legalizer) spanRight(lo, hi int) float64 {
	right := lg.rows[lo].row.Right()
	for r := lo + 1; r <= hi; r++ {
		right = math.Min(right, lg.rows[r].row.Right())
	}
	return right
}

// adjustOrientation flips the cell onto its row's orientation when the
// cell allows it and reports whether the rails line up. Rail mismatches
// never fail legalization.
func (lg *legalizer) adjustOrientation(n *netlist.Node) bool {
	base := lg.ar.RowIndexNear(n.Y - 0.5*n.Height + 0.5*lg.ar.Rows[0].Height)
	lo, hi := lg.ar.RowSpan(base, n.Height)
	row := lg.ar.Rows[lo]

	if n.Allowed.Has(row.Orient) {
		n.Orient = row.Orient
	} else if orients := n.Allowed.Orientations(); len(orients) > 0 && !n.Allowed.Has(n.Orient) {
		n.Orient = orients[0]
	}

	top := lg.ar.Rows[hi]
	return n.BottomRail.Compatible(row.BottomRail) &&
		n.TopRail.Compatible(top.TopRail)
}
