package netlist

import "math"

// NetHPWL returns the half-perimeter wirelength of net i: the width plus
// height of the bounding box of its pin positions. Nets with fewer than two
// pins contribute zero.
func (nl *Netlist) NetHPWL(i int) float64 {
	pins := nl.nets[i].pins
	if len(pins) < 2 {
		return 0
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pins {
		x, y := nl.PinPosition(p)
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}
	return (maxX - minX) + (maxY - minY)
}

// HPWL returns the total half-perimeter wirelength over all nets, without
// net weights. This is the reported placement metric.
func (nl *Netlist) HPWL() float64 {
	var sum float64
	for i := range nl.nets {
		sum += nl.NetHPWL(i)
	}
	return sum
}

// WeightedHPWL returns the net-weight scaled wirelength used as the
// optimization objective when external signals rescale net weights.
func (nl *Netlist) WeightedHPWL() float64 {
	var sum float64
	for i := range nl.nets {
		sum += nl.nets[i].Weight * nl.NetHPWL(i)
	}
	return sum
}

// NetBox returns the pin bounding box of net i excluding the pins owned by
// node exclude. Used by detailed operators to find a cell's optimal region.
// The second return is false when the box is empty.
func (nl *Netlist) NetBox(i, exclude int) (box [4]float64, ok bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range nl.nets[i].pins {
		if nl.pins[p].Node == exclude {
			continue
		}
		x, y := nl.PinPosition(p)
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}
	if math.IsInf(minX, 1) {
		return box, false
	}
	return [4]float64{minX, minY, maxX, maxY}, true
}
