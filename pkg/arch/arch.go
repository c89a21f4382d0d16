// Package arch models the placement architecture: rows of uniform-height
// sites, placement regions, orientation and symmetry rules, and power-rail
// classification. It is pure data shared by every placement stage; nothing
// here mutates after Finalize.
package arch

import (
	"errors"
	"math"
	"sort"
)

var (
	// ErrNoRows is returned by Finalize when the architecture has no rows.
	ErrNoRows = errors.New("arch: architecture has no rows")

	// ErrRowOutsideBounds is returned by Finalize when a row's site span
	// cannot be clamped into the global bounding box.
	ErrRowOutsideBounds = errors.New("arch: row lies outside the bounding box")

	// ErrUnknownRegion indicates a region id with no Region definition.
	ErrUnknownRegion = errors.New("arch: unknown region id")
)

// Rect is an axis-aligned rectangle. Coordinates follow the database
// convention: x grows right, y grows up.
type Rect struct {
	XMin, YMin, XMax, YMax float64
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 { return r.XMax - r.XMin }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 { return r.YMax - r.YMin }

// Area returns the rectangle area, never negative.
func (r Rect) Area() float64 {
	return math.Max(0, r.Width()) * math.Max(0, r.Height())
}

// ContainsRect reports whether inner lies fully within r.
func (r Rect) ContainsRect(inner Rect) bool {
	return inner.XMin >= r.XMin && inner.XMax <= r.XMax &&
		inner.YMin >= r.YMin && inner.YMax <= r.YMax
}

// Intersects reports whether r and other overlap with positive area.
func (r Rect) Intersects(other Rect) bool {
	return r.XMin < other.XMax && other.XMin < r.XMax &&
		r.YMin < other.YMax && other.YMin < r.YMax
}

// Union returns the smallest rectangle covering r and other.
func (r Rect) Union(other Rect) Rect {
	return Rect{
		XMin: math.Min(r.XMin, other.XMin),
		YMin: math.Min(r.YMin, other.YMin),
		XMax: math.Max(r.XMax, other.XMax),
		YMax: math.Max(r.YMax, other.YMax),
	}
}

// Row is a horizontal strip of uniform-height sites. Cells placed on a row
// must align their left edge to an exact multiple of SiteWidth from OriginX.
type Row struct {
	Bottom      float64
	Height      float64
	SiteWidth   float64
	SiteSpacing float64
	OriginX     float64
	NumSites    int

	Orient       Orientation
	SiteSymmetry Symmetry

	// Power rails running along the top and bottom of the row. Used for
	// best-effort alignment of multi-height cells.
	TopRail    Rail
	BottomRail Rail
}

// Left returns the x coordinate of the first site.
func (r Row) Left() float64 { return r.OriginX }

// Right returns the x coordinate just past the last site.
func (r Row) Right() float64 { return r.OriginX + float64(r.NumSites)*r.SiteSpacing }

// Top returns the y coordinate of the row's upper edge.
func (r Row) Top() float64 { return r.Bottom + r.Height }

// CenterY returns the vertical center of the row.
func (r Row) CenterY() float64 { return r.Bottom + 0.5*r.Height }

// SnapX snaps an x coordinate (left edge) onto the row's site grid,
// clamping into [Left, Right].
func (r Row) SnapX(x float64) float64 {
	if r.SiteWidth <= 0 {
		return x
	}
	site := math.Round((x - r.OriginX) / r.SiteWidth)
	snapped := r.OriginX + site*r.SiteWidth
	if snapped < r.Left() {
		return r.Left()
	}
	if snapped > r.Right() {
		return r.Right()
	}
	return snapped
}

// RegionKind distinguishes the two region variants that the snapshot
// collapses onto one structure.
type RegionKind uint8

const (
	// RegionGroup constrains its member cells to lie inside the union of
	// the region rectangles.
	RegionGroup RegionKind = iota
	// RegionKeepOut constrains every cell to lie outside all of the
	// region rectangles. Keep-out regions have no members.
	RegionKeepOut
)

// Region is a set of axis-aligned rectangles with containment semantics
// given by Kind. Region 0 is always the default group spanning the full
// placeable area.
type Region struct {
	ID    int
	Kind  RegionKind
	Rects []Rect
	BBox  Rect
}

// Admits reports whether a cell footprint satisfies the region's
// containment rule. For groups the footprint must lie fully inside one of
// the rectangles; for keep-outs it must not intersect any rectangle.
func (g Region) Admits(footprint Rect) bool {
	switch g.Kind {
	case RegionKeepOut:
		for _, rc := range g.Rects {
			if rc.Intersects(footprint) {
				return false
			}
		}
		return true
	default:
		for _, rc := range g.Rects {
			if rc.ContainsRect(footprint) {
				return true
			}
		}
		return false
	}
}

// Capacity returns the total area of the region rectangles. Meaningless for
// keep-outs.
func (g Region) Capacity() float64 {
	var sum float64
	for _, rc := range g.Rects {
		sum += rc.Area()
	}
	return sum
}

// Architecture is the immutable physical context of one placement run.
type Architecture struct {
	Rows    []Row
	Regions []Region
	BBox    Rect

	finalized bool
}

// New returns an empty architecture. Call AddRow/AddRegion and then
// Finalize before handing it to a placement stage.
func New() *Architecture {
	return &Architecture{}
}

// AddRow appends a row. Rows may be added in any vertical order; Finalize
// sorts them bottom-up.
func (a *Architecture) AddRow(r Row) {
	a.Rows = append(a.Rows, r)
}

// AddRegion appends a region with the next free id and returns a pointer to
// it. The first region added becomes the default region 0.
func (a *Architecture) AddRegion(kind RegionKind) *Region {
	a.Regions = append(a.Regions, Region{ID: len(a.Regions), Kind: kind})
	return &a.Regions[len(a.Regions)-1]
}

// Region returns the region with the given id.
func (a *Architecture) Region(id int) (*Region, error) {
	if id < 0 || id >= len(a.Regions) {
		return nil, ErrUnknownRegion
	}
	return &a.Regions[id], nil
}

// Finalize sorts rows bottom-up, computes the global bounding box, clamps
// row site spans into it, seeds the default region when none was provided,
// and computes region bounding boxes. It must be called exactly once after
// construction.
func (a *Architecture) Finalize() error {
	if len(a.Rows) == 0 {
		return ErrNoRows
	}

	sort.Slice(a.Rows, func(i, j int) bool { return a.Rows[i].Bottom < a.Rows[j].Bottom })

	// Spacing defaults to the site width before any geometry derives from
	// Right(), which multiplies NumSites by the spacing.
	for i := range a.Rows {
		if a.Rows[i].SiteSpacing <= 0 {
			a.Rows[i].SiteSpacing = a.Rows[i].SiteWidth
		}
	}

	bbox := Rect{
		XMin: math.Inf(1), YMin: math.Inf(1),
		XMax: math.Inf(-1), YMax: math.Inf(-1),
	}
	for _, r := range a.Rows {
		bbox = bbox.Union(Rect{XMin: r.Left(), YMin: r.Bottom, XMax: r.Right(), YMax: r.Top()})
	}
	a.BBox = bbox

	// Row site partitions never extend beyond the global bounding box.
	for i := range a.Rows {
		row := &a.Rows[i]
		if row.Left() < bbox.XMin {
			row.OriginX = bbox.XMin
		}
		if row.Right() > bbox.XMax {
			row.NumSites = int((bbox.XMax - row.OriginX) / row.SiteSpacing)
		}
		if row.NumSites <= 0 {
			return ErrRowOutsideBounds
		}
	}

	if len(a.Regions) == 0 {
		def := a.AddRegion(RegionGroup)
		def.Rects = []Rect{bbox}
	}
	for i := range a.Regions {
		g := &a.Regions[i]
		if len(g.Rects) == 0 {
			continue
		}
		g.BBox = g.Rects[0]
		for _, rc := range g.Rects[1:] {
			g.BBox = g.BBox.Union(rc)
		}
	}

	a.finalized = true
	return nil
}

// Finalized reports whether Finalize has run.
func (a *Architecture) Finalized() bool { return a.finalized }

// RowIndexNear returns the index of the row whose vertical center is
// closest to y. Rows must be finalized (sorted).
func (a *Architecture) RowIndexNear(y float64) int {
	i := sort.Search(len(a.Rows), func(i int) bool { return a.Rows[i].CenterY() >= y })
	if i == 0 {
		return 0
	}
	if i == len(a.Rows) {
		return len(a.Rows) - 1
	}
	if y-a.Rows[i-1].CenterY() <= a.Rows[i].CenterY()-y {
		return i - 1
	}
	return i
}

// RowSpan returns the contiguous range of row indices [lo, hi] covered by a
// cell of the given height whose bottom sits on row base. Single-height
// cells return [base, base].
func (a *Architecture) RowSpan(base int, height float64) (lo, hi int) {
	lo, hi = base, base
	top := a.Rows[base].Bottom + height
	for hi+1 < len(a.Rows) && a.Rows[hi].Top() < top-1e-9 {
		hi++
	}
	return lo, hi
}
