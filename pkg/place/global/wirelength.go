package global

import "math"

// netStats caches the log-sum-exp terms of one net for the current
// positions. Sums are taken relative to the net extremes, so every
// exponent is non-positive and cannot overflow on its own.
type netStats struct {
	minX, maxX, minY, maxY     float64
	sMaxX, sMinX, sMaxY, sMinY float64
	weight                     float64
	active                     bool
}

// refreshNetStats recomputes the smoothed-wirelength terms for every net
// at the positions currently synced into the model.
func (p *Placer) refreshNetStats() {
	if cap(p.netStats) < p.nl.NetCount() {
		p.netStats = make([]netStats, p.nl.NetCount())
	}
	p.netStats = p.netStats[:p.nl.NetCount()]

	gamma := 1.0 / p.wlCoef
	for i := range p.netStats {
		st := &p.netStats[i]
		net := p.nl.Net(i)
		pins := net.Pins()
		if len(pins) < 2 {
			st.active = false
			continue
		}
		st.active = true
		st.weight = net.Weight
		st.minX, st.minY = math.Inf(1), math.Inf(1)
		st.maxX, st.maxY = math.Inf(-1), math.Inf(-1)
		for _, pi := range pins {
			x, y := p.nl.PinPosition(pi)
			st.minX = math.Min(st.minX, x)
			st.maxX = math.Max(st.maxX, x)
			st.minY = math.Min(st.minY, y)
			st.maxY = math.Max(st.maxY, y)
		}
		st.sMaxX, st.sMinX, st.sMaxY, st.sMinY = 0, 0, 0, 0
		for _, pi := range pins {
			x, y := p.nl.PinPosition(pi)
			st.sMaxX += math.Exp((x - st.maxX) / gamma)
			st.sMinX += math.Exp((st.minX - x) / gamma)
			st.sMaxY += math.Exp((y - st.maxY) / gamma)
			st.sMinY += math.Exp((st.minY - y) / gamma)
		}
	}
}

// wirelengthGradient returns the gradient of the smoothed weighted
// wirelength with respect to the position of node i. The smoothed net span
// uses the log-sum-exp approximation of max and min, whose gradient is the
// softmax share of each pin. Filler cells carry no pins and get zero.
func (p *Placer) wirelengthGradient(i int) (gx, gy float64) {
	n := p.nl.Node(i)
	gamma := 1.0 / p.wlCoef
	for _, pi := range n.Pins() {
		pin := p.nl.Pin(pi)
		st := &p.netStats[pin.Net]
		if !st.active {
			continue
		}
		x, y := p.nl.PinPosition(pi)
		gx += st.weight * (math.Exp((x-st.maxX)/gamma)/st.sMaxX -
			math.Exp((st.minX-x)/gamma)/st.sMinX)
		gy += st.weight * (math.Exp((y-st.maxY)/gamma)/st.sMaxY -
			math.Exp((st.minY-y)/gamma)/st.sMinY)
	}
	return gx, gy
}
