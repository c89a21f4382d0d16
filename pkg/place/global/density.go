package global

import (
	"math"

	"github.com/mgrund/gridplace/pkg/arch"
	"github.com/mgrund/gridplace/pkg/netlist"
)

// densityGrid is a uniform bin grid over the placeable area. Bin capacity
// comes from row coverage scaled by the target density; bin usage is the
// clipped overlap of cell footprints and is rebuilt at every gradient
// evaluation.
type densityGrid struct {
	bbox         arch.Rect
	binsX, binsY int
	binW, binH   float64

	cap        []float64 // placeable area per bin, target-density scaled
	used       []float64 // occupied area per bin, fillers included
	usedNoFill []float64 // occupied area per bin, fillers excluded

	movableArea float64 // real movable cell area, for overflow scaling
	fillerArea  float64 // filler area seen by the last rebuild
}

// newDensityGrid sizes the grid from the cell count when bins is zero and
// precomputes per-bin capacity from row coverage.
func newDensityGrid(ar *arch.Architecture, nl *netlist.Netlist, bins int, targetDensity float64) *densityGrid {
	if bins <= 0 {
		bins = 1
		for bins*bins < nl.NodeCount() {
			bins *= 2
		}
		if bins < 8 {
			bins = 8
		}
		if bins > 1024 {
			bins = 1024
		}
	}
	g := &densityGrid{
		bbox:  ar.BBox,
		binsX: bins,
		binsY: bins,
	}
	g.binW = g.bbox.Width() / float64(g.binsX)
	g.binH = g.bbox.Height() / float64(g.binsY)
	g.cap = make([]float64, g.binsX*g.binsY)
	g.used = make([]float64, g.binsX*g.binsY)
	g.usedNoFill = make([]float64, g.binsX*g.binsY)

	for _, row := range ar.Rows {
		g.accumulate(g.cap, arch.Rect{
			XMin: row.Left(), YMin: row.Bottom,
			XMax: row.Right(), YMax: row.Top(),
		}, targetDensity)
	}

	// Fixed footprints block capacity permanently.
	for i := 0; i < nl.NodeCount(); i++ {
		n := nl.Node(i)
		if n.Kind == netlist.KindCell && !n.Movable() {
			g.accumulate(g.cap, n.Footprint(), -1)
		}
	}
	for i := range g.cap {
		if g.cap[i] < 0 {
			g.cap[i] = 0
		}
	}
	g.movableArea = nl.MovableArea()
	return g
}

// rebuild recomputes bin usage from current node positions.
func (g *densityGrid) rebuild(nl *netlist.Netlist) {
	for i := range g.used {
		g.used[i] = 0
		g.usedNoFill[i] = 0
	}
	g.fillerArea = 0
	for i := 0; i < nl.NodeCount(); i++ {
		n := nl.Node(i)
		switch {
		case n.Kind == netlist.KindFiller:
			g.fillerArea += n.Width * n.Height
			g.accumulate(g.used, n.Footprint(), 1)
		case n.Kind == netlist.KindCell && n.Movable():
			g.accumulate(g.used, n.Footprint(), 1)
			g.accumulate(g.usedNoFill, n.Footprint(), 1)
		}
	}
}

// accumulate adds scale times the clipped overlap of rect with each bin.
func (g *densityGrid) accumulate(dst []float64, rect arch.Rect, scale float64) {
	x0, x1 := g.clampBinX(rect.XMin), g.clampBinX(rect.XMax)
	y0, y1 := g.clampBinY(rect.YMin), g.clampBinY(rect.YMax)
	for by := y0; by <= y1; by++ {
		binY0 := g.bbox.YMin + float64(by)*g.binH
		oy := math.Min(rect.YMax, binY0+g.binH) - math.Max(rect.YMin, binY0)
		if oy <= 0 {
			continue
		}
		for bx := x0; bx <= x1; bx++ {
			binX0 := g.bbox.XMin + float64(bx)*g.binW
			ox := math.Min(rect.XMax, binX0+g.binW) - math.Max(rect.XMin, binX0)
			if ox <= 0 {
				continue
			}
			dst[by*g.binsX+bx] += scale * ox * oy
		}
	}
}

// overflow returns the total over-capacity area, scaled against the full
// spreading problem (fillers included) and unscaled against the real
// movable cells only.
func (g *densityGrid) overflow() (scaled, unscaled float64) {
	var over, overNoFill float64
	for i := range g.used {
		if d := g.used[i] - g.cap[i]; d > 0 {
			over += d
		}
		if d := g.usedNoFill[i] - g.cap[i]; d > 0 {
			overNoFill += d
		}
	}
	if g.movableArea <= 0 {
		return 0, 0
	}
	return over / (g.movableArea + g.fillerArea), overNoFill / g.movableArea
}

// gradient returns the density force on a node: the local slope of the
// fill ratio around the node's bin, scaled by the node area. Positive
// slope pushes the node toward emptier bins under gradient descent.
func (g *densityGrid) gradient(n *netlist.Node) (dx, dy float64) {
	bx := g.clampBinX(n.X)
	by := g.clampBinY(n.Y)
	area := n.Width * n.Height
	dx = area * (g.ratioAt(bx+1, by) - g.ratioAt(bx-1, by)) / (2 * g.binW)
	dy = area * (g.ratioAt(bx, by+1) - g.ratioAt(bx, by-1)) / (2 * g.binH)
	return dx, dy
}

// ratioAt returns used/capacity for a bin, reading out-of-range bins as
// fully occupied so the field pushes cells inward at the boundary.
func (g *densityGrid) ratioAt(bx, by int) float64 {
	if bx < 0 || bx >= g.binsX || by < 0 || by >= g.binsY {
		return 2
	}
	c := g.cap[by*g.binsX+bx]
	if c <= 0 {
		return 2
	}
	return g.used[by*g.binsX+bx] / c
}

func (g *densityGrid) clampBinX(x float64) int {
	b := int((x - g.bbox.XMin) / g.binW)
	if b < 0 {
		return 0
	}
	if b >= g.binsX {
		return g.binsX - 1
	}
	return b
}

func (g *densityGrid) clampBinY(y float64) int {
	b := int((y - g.bbox.YMin) / g.binH)
	if b < 0 {
		return 0
	}
	if b >= g.binsY {
		return g.binsY - 1
	}
	return b
}

func (g *densityGrid) binArea() float64 { return g.binW * g.binH }

// capacityTotal returns the placeable capacity of the whole grid.
func (g *densityGrid) capacityTotal() float64 {
	var sum float64
	for _, c := range g.cap {
		sum += c
	}
	return sum
}
