// Package global implements the continuous global placement stage: a
// Nesterov accelerated-gradient solver that spreads cells to reduce
// overlap while minimizing smoothed wirelength.
//
// The solver iterates three coupled state vectors (previous, current, next
// position and gradient), picks step sizes by backtracking against a local
// curvature estimate, and adapts the wirelength coefficient to the density
// overflow trend. All per-iteration buffers are allocated once and reused;
// the hot loop does not allocate.
package global

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/charmbracelet/log"

	"github.com/mgrund/gridplace/pkg/arch"
	"github.com/mgrund/gridplace/pkg/netlist"
)

// Divergence codes carried by DivergenceError.
const (
	// DivergeOverflowStalled: density overflow failed to improve for more
	// consecutive iterations than the backtrack limit allows.
	DivergeOverflowStalled = 1
	// DivergeCoefOutOfRange: the wirelength coefficient left its valid
	// range and the step-search recursion budget ran out.
	DivergeCoefOutOfRange = 2
)

// DivergenceError reports an unrecoverable solver failure. Positions are
// rolled back to the last stable iteration before the error surfaces.
type DivergenceError struct {
	Code       int
	Message    string
	Iterations int // last stable iteration
}

// Error implements the error interface.
func (e *DivergenceError) Error() string {
	return fmt.Sprintf("global placement diverged (code %d) at iteration %d: %s",
		e.Code, e.Iterations, e.Message)
}

// Status is the terminal state of a solve.
type Status int

const (
	// StatusConverged means overflow reached the target.
	StatusConverged Status = iota
	// StatusDiverged means a recovery budget ran out; see DivergenceError.
	StatusDiverged
	// StatusAborted means the iteration cap was hit or the context was
	// canceled before convergence.
	StatusAborted
)

// String returns the report encoding of the status.
func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusDiverged:
		return "diverged"
	default:
		return "aborted"
	}
}

// Result summarizes a solve.
type Result struct {
	Status     Status
	Iterations int
	Overflow   float64
	HPWL       float64
}

// Options configures the solver. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	// TargetOverflow is the stop condition: converge once the scaled
	// density overflow drops to this fraction.
	TargetOverflow float64

	// MaxIterations caps the iteration count; hitting it yields
	// StatusAborted.
	MaxIterations int

	// InitialWirelengthCoef seeds the base wirelength coefficient before
	// overflow adaptation.
	InitialWirelengthCoef float64

	// DensityPenaltyGrowth multiplies the density penalty each iteration.
	DensityPenaltyGrowth float64

	// BacktrackLimit bounds consecutive overflow-worsening iterations
	// before the solve is declared diverged.
	BacktrackLimit int

	// StepSearchLimit bounds the recursion of the initial step-length
	// search when gradients are out of range.
	StepSearchLimit int

	// TargetDensity scales bin capacity; 1.0 fills rows completely.
	TargetDensity float64

	// BinCount is the density grid resolution per axis; 0 derives it
	// from the cell count.
	BinCount int

	// Seed drives filler placement. Fixed seed, fixed result.
	Seed int64

	// Signal, when non-nil, runs at every iteration boundary and may
	// rescale cell widths or net weights (routability or criticality
	// feedback). Optimizer state is kept across calls.
	Signal func(iteration int, nl *netlist.Netlist)

	// Observer, when non-nil, receives every completed iteration.
	Observer func(iteration int, overflow, hpwl float64)

	// Logger receives per-iteration debug output.
	Logger *log.Logger
}

// DefaultOptions returns the solver defaults.
func DefaultOptions() Options {
	return Options{
		TargetOverflow:        0.10,
		MaxIterations:         512,
		InitialWirelengthCoef: 0.25,
		DensityPenaltyGrowth:  1.05,
		BacktrackLimit:        10,
		StepSearchLimit:       10,
		TargetDensity:         1.0,
		Seed:                  1,
	}
}

func (o *Options) setDefaults() {
	def := DefaultOptions()
	if o.TargetOverflow <= 0 {
		o.TargetOverflow = def.TargetOverflow
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.InitialWirelengthCoef <= 0 {
		o.InitialWirelengthCoef = def.InitialWirelengthCoef
	}
	if o.DensityPenaltyGrowth <= 1 {
		o.DensityPenaltyGrowth = def.DensityPenaltyGrowth
	}
	if o.BacktrackLimit <= 0 {
		o.BacktrackLimit = def.BacktrackLimit
	}
	if o.StepSearchLimit <= 0 {
		o.StepSearchLimit = def.StepSearchLimit
	}
	if o.TargetDensity <= 0 {
		o.TargetDensity = def.TargetDensity
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
}

const (
	minStepLength = 1e-12
	maxBacktrack  = 10 // inner curvature backtracking per iteration
)

// Placer runs one global placement solve. It owns its iteration buffers
// and must not be shared across runs.
type Placer struct {
	nl   *netlist.Netlist
	ar   *arch.Architecture
	opts Options

	movable []int  // arena indices of movable cells, fillers included
	freezeX []bool // per movable index, true for fixed-x cells

	// Three coupled state vectors, reused across iterations.
	prevX, prevY, prevGX, prevGY []float64
	curX, curY, curGX, curGY     []float64
	nextX, nextY, nextGX, nextGY []float64

	bestX, bestY []float64 // last stable positions

	grid     *densityGrid
	netStats []netStats
	rng      *rand.Rand

	baseWLCoef float64
	wlCoef     float64
	penalty    float64
	stepLen    float64
	ak         float64

	bestOverflow float64
	bestIter     int

	// Independent recovery counters.
	recursionCoefBacktrack int
	recursionStepSearch    int
}

// New constructs a solver over the given model. The architecture must be
// finalized.
func New(nl *netlist.Netlist, ar *arch.Architecture, opts Options) *Placer {
	opts.setDefaults()
	return &Placer{
		nl:   nl,
		ar:   ar,
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}
}

// Run executes the solve until convergence, divergence, cancellation, or
// the iteration cap. Node positions are mutated in place. Filler cells are
// inserted during init and removed before return.
func (p *Placer) Run(ctx context.Context) (Result, error) {
	p.init()
	defer p.nl.DropFillers()

	if err := p.searchInitialStep(); err != nil {
		p.restoreBest()
		return Result{Status: StatusDiverged, Iterations: p.bestIter,
			Overflow: p.bestOverflow, HPWL: p.nl.HPWL()}, err
	}

	overflow := p.bestOverflow
	for iter := 1; iter <= p.opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			p.commit()
			return Result{Status: StatusAborted, Iterations: iter - 1,
				Overflow: overflow, HPWL: p.nl.HPWL()}, nil
		}
		if p.opts.Signal != nil {
			p.opts.Signal(iter, p.nl)
		}

		if err := p.step(); err != nil {
			p.restoreBest()
			p.commit()
			return Result{Status: StatusDiverged, Iterations: p.bestIter,
				Overflow: p.bestOverflow, HPWL: p.nl.HPWL()}, err
		}

		overflow = p.refreshDensity()
		p.adaptCoefficients(overflow)

		p.opts.Logger.Debug("global iteration",
			"iter", iter, "overflow", overflow, "penalty", p.penalty, "wlCoef", p.wlCoef)
		if p.opts.Observer != nil {
			p.opts.Observer(iter, overflow, p.nl.HPWL())
		}

		if overflow < p.bestOverflow {
			p.bestOverflow = overflow
			p.bestIter = iter
			copy(p.bestX, p.curX)
			copy(p.bestY, p.curY)
			p.recursionCoefBacktrack = 0
		} else {
			p.recursionCoefBacktrack++
			if p.recursionCoefBacktrack > p.opts.BacktrackLimit {
				p.restoreBest()
				p.commit()
				return Result{Status: StatusDiverged, Iterations: p.bestIter,
						Overflow: p.bestOverflow, HPWL: p.nl.HPWL()},
					&DivergenceError{
						Code:       DivergeOverflowStalled,
						Message:    fmt.Sprintf("overflow %.4f did not improve on %.4f", overflow, p.bestOverflow),
						Iterations: p.bestIter,
					}
			}
		}

		if overflow <= p.opts.TargetOverflow {
			p.commit()
			return Result{Status: StatusConverged, Iterations: iter,
				Overflow: overflow, HPWL: p.nl.HPWL()}, nil
		}
	}

	p.commit()
	return Result{Status: StatusAborted, Iterations: p.opts.MaxIterations,
		Overflow: overflow, HPWL: p.nl.HPWL()}, nil
}

// init builds the density grid, inserts filler cells, sizes the state
// vectors, and evaluates the starting gradient.
func (p *Placer) init() {
	p.grid = newDensityGrid(p.ar, p.nl, p.opts.BinCount, p.opts.TargetDensity)
	p.insertFillers()

	p.movable = p.movable[:0]
	for i := 0; i < p.nl.NodeCount(); i++ {
		n := p.nl.Node(i)
		if n.Movable() && (n.Kind == netlist.KindCell || n.Kind == netlist.KindFiller) {
			p.movable = append(p.movable, i)
		}
	}

	m := len(p.movable)
	p.prevX, p.prevY = grow(p.prevX, m), grow(p.prevY, m)
	p.prevGX, p.prevGY = grow(p.prevGX, m), grow(p.prevGY, m)
	p.curX, p.curY = grow(p.curX, m), grow(p.curY, m)
	p.curGX, p.curGY = grow(p.curGX, m), grow(p.curGY, m)
	p.nextX, p.nextY = grow(p.nextX, m), grow(p.nextY, m)
	p.nextGX, p.nextGY = grow(p.nextGX, m), grow(p.nextGY, m)
	p.bestX, p.bestY = grow(p.bestX, m), grow(p.bestY, m)

	p.freezeX = growBool(p.freezeX, m)
	for k, i := range p.movable {
		n := p.nl.Node(i)
		p.curX[k], p.curY[k] = n.X, n.Y
		p.prevX[k], p.prevY[k] = n.X, n.Y
		// Fixed-x cells ride along for the y component only.
		p.freezeX[k] = n.Fixed == netlist.FixedX
	}
	copy(p.bestX, p.curX)
	copy(p.bestY, p.curY)

	p.baseWLCoef = p.opts.InitialWirelengthCoef / math.Max(p.grid.binW, p.grid.binH)
	p.penalty = 1e-4 * p.grid.binArea()
	p.ak = 1

	p.bestOverflow = p.refreshDensity()
	p.bestIter = 0
	p.adaptCoefficients(p.bestOverflow)
	p.recursionCoefBacktrack = 0
	p.recursionStepSearch = 0
}

// searchInitialStep estimates the starting step length from a small trial
// displacement. Out-of-range gradients back the wirelength coefficient off
// and retry, bounded by the step-search recursion limit.
func (p *Placer) searchInitialStep() error {
	for {
		p.evalGradient(p.curX, p.curY, p.curGX, p.curGY)
		if norm := vecNorm(p.curGX, p.curGY); isFinitePositive(norm) {
			// Trial displacement proportional to a bin, opposite the gradient.
			h := 0.1 * math.Max(p.grid.binW, p.grid.binH)
			for k := range p.curX {
				p.nextX[k] = p.curX[k] - h*p.curGX[k]/norm*float64(len(p.curX))
				p.nextY[k] = p.curY[k] - h*p.curGY[k]/norm*float64(len(p.curY))
				if p.freezeX[k] {
					p.nextX[k] = p.curX[k]
				}
			}
			p.evalGradient(p.nextX, p.nextY, p.nextGX, p.nextGY)
			step := lipschitzStep(p.curX, p.curY, p.nextX, p.nextY,
				p.curGX, p.curGY, p.nextGX, p.nextGY)
			if math.IsInf(step, 1) {
				// Flat curvature; fall back to a bin-sized step.
				step = math.Max(p.grid.binW, p.grid.binH)
			}
			if isFinitePositive(step) && step > minStepLength {
				p.stepLen = step
				return nil
			}
		}

		p.recursionStepSearch++
		if p.recursionStepSearch > p.opts.StepSearchLimit {
			return &DivergenceError{
				Code:       DivergeCoefOutOfRange,
				Message:    "wirelength coefficient out of range during step search",
				Iterations: p.bestIter,
			}
		}
		// Soften the smoothing and retry.
		p.wlCoef *= 0.5
		if p.wlCoef < 1e-30 {
			p.recursionStepSearch = p.opts.StepSearchLimit + 1
		}
	}
}

// step performs one Nesterov update with inner backtracking against the
// local curvature (Lipschitz) estimate.
func (p *Placer) step() error {
	p.evalGradient(p.curX, p.curY, p.curGX, p.curGY)

	nextA := (1 + math.Sqrt(4*p.ak*p.ak+1)) / 2
	momentum := (p.ak - 1) / nextA

	step := p.stepLen
	for bt := 0; ; bt++ {
		for k := range p.curX {
			u := p.curX[k] - step*p.curGX[k]
			p.nextX[k] = p.clampX(k, u+momentum*(u-p.prevX[k]))
			if p.freezeX[k] {
				p.nextX[k] = p.curX[k]
			}
			v := p.curY[k] - step*p.curGY[k]
			p.nextY[k] = p.clampY(k, v+momentum*(v-p.prevY[k]))
		}
		p.evalGradient(p.nextX, p.nextY, p.nextGX, p.nextGY)

		est := lipschitzStep(p.curX, p.curY, p.nextX, p.nextY,
			p.curGX, p.curGY, p.nextGX, p.nextGY)
		if math.IsInf(est, 1) {
			// Gradient did not change; the current step is safe.
			break
		}
		if !isFinitePositive(est) || est <= minStepLength {
			return &DivergenceError{
				Code:       DivergeCoefOutOfRange,
				Message:    "step length collapsed during backtracking",
				Iterations: p.bestIter,
			}
		}
		if est >= 0.95*step || bt >= maxBacktrack {
			step = math.Min(est, step)
			break
		}
		step = est
	}
	p.stepLen = step
	p.ak = nextA

	// Rotate the coupled state: next becomes current, current becomes
	// previous. Buffers swap, never reallocate.
	p.prevX, p.curX, p.nextX = p.curX, p.nextX, p.prevX
	p.prevY, p.curY, p.nextY = p.curY, p.nextY, p.prevY
	p.prevGX, p.curGX, p.nextGX = p.curGX, p.nextGX, p.prevGX
	p.prevGY, p.curGY, p.nextGY = p.curGY, p.nextGY, p.prevGY

	p.commit()
	return nil
}

// adaptCoefficients rescales the wirelength coefficient from the overflow
// (trusting wirelength more as spreading succeeds) and grows the density
// penalty.
func (p *Placer) adaptCoefficients(overflow float64) {
	var f float64
	switch {
	case overflow > 1.0:
		f = 0.1
	case overflow < 0.1:
		f = 10.0
	default:
		f = 1.0 / math.Pow(10.0, (overflow-0.1)*20.0/9.0-1.0)
	}
	p.wlCoef = p.baseWLCoef * f
	p.penalty *= p.opts.DensityPenaltyGrowth
}

// evalGradient writes the combined wirelength + density gradient of the
// positions (x, y) into (gx, gy).
func (p *Placer) evalGradient(x, y, gx, gy []float64) {
	p.syncPositions(x, y)
	p.grid.rebuild(p.nl)
	p.refreshNetStats()
	for k, i := range p.movable {
		n := p.nl.Node(i)
		wx, wy := p.wirelengthGradient(i)
		dx, dy := p.grid.gradient(n)
		gx[k] = wx + p.penalty*dx
		gy[k] = wy + p.penalty*dy
	}
}

// syncPositions copies a state vector into the model so that pin positions
// and density both see it.
func (p *Placer) syncPositions(x, y []float64) {
	for k, i := range p.movable {
		n := p.nl.Node(i)
		n.X, n.Y = x[k], y[k]
	}
}

// commit writes the current state vector into the model.
func (p *Placer) commit() {
	p.syncPositions(p.curX, p.curY)
}

// restoreBest rolls positions back to the last stable iteration.
func (p *Placer) restoreBest() {
	copy(p.curX, p.bestX)
	copy(p.curY, p.bestY)
	p.commit()
}

func (p *Placer) clampX(k int, x float64) float64 {
	n := p.nl.Node(p.movable[k])
	half := 0.5 * n.Width
	return math.Min(math.Max(x, p.ar.BBox.XMin+half), p.ar.BBox.XMax-half)
}

func (p *Placer) clampY(k int, y float64) float64 {
	n := p.nl.Node(p.movable[k])
	half := 0.5 * n.Height
	return math.Min(math.Max(y, p.ar.BBox.YMin+half), p.ar.BBox.YMax-half)
}

// insertFillers pads low-density area with connectivity-free cells so the
// density field stays well-conditioned. Filler size is the average movable
// cell size; placement is uniform random under the run seed.
func (p *Placer) insertFillers() {
	var movableArea, fixedArea, sumW, sumH float64
	var cells int
	for i := 0; i < p.nl.NodeCount(); i++ {
		n := p.nl.Node(i)
		if n.Kind != netlist.KindCell {
			continue
		}
		if n.Movable() {
			movableArea += n.Width * n.Height
			sumW += n.Width
			sumH += n.Height
			cells++
		} else {
			fixedArea += n.Width * n.Height
		}
	}
	if cells == 0 {
		return
	}
	placeable := p.grid.capacityTotal() - fixedArea
	fillerArea := placeable - movableArea
	if fillerArea <= 0 {
		return
	}
	w, h := sumW/float64(cells), sumH/float64(cells)
	count := int(fillerArea / (w * h))
	for f := 0; f < count; f++ {
		x := p.ar.BBox.XMin + p.rng.Float64()*p.ar.BBox.Width()
		y := p.ar.BBox.YMin + p.rng.Float64()*p.ar.BBox.Height()
		_, _ = p.nl.AddNode(netlist.Node{
			Kind: netlist.KindFiller, X: x, Y: y, Width: w, Height: h,
		})
	}
}

// refreshDensity rebuilds the grid at current model positions and returns
// the scaled average overflow.
func (p *Placer) refreshDensity() float64 {
	p.grid.rebuild(p.nl)
	scaled, _ := p.grid.overflow()
	return scaled
}

// Overflow returns the scaled and unscaled density overflow at the current
// positions.
func (p *Placer) Overflow() (scaled, unscaled float64) {
	p.grid.rebuild(p.nl)
	return p.grid.overflow()
}

func grow(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}

func growBool(s []bool, n int) []bool {
	if cap(s) < n {
		return make([]bool, n)
	}
	return s[:n]
}

func vecNorm(x, y []float64) float64 {
	var sum float64
	for k := range x {
		sum += x[k]*x[k] + y[k]*y[k]
	}
	return math.Sqrt(sum)
}

// lipschitzStep estimates the inverse local curvature |Δx| / |Δg|.
func lipschitzStep(x0, y0, x1, y1, g0x, g0y, g1x, g1y []float64) float64 {
	var dx, dg float64
	for k := range x0 {
		ddx := x1[k] - x0[k]
		ddy := y1[k] - y0[k]
		dgx := g1x[k] - g0x[k]
		dgy := g1y[k] - g0y[k]
		dx += ddx*ddx + ddy*ddy
		dg += dgx*dgx + dgy*dgy
	}
	if dg == 0 {
		return math.Inf(1)
	}
	return math.Sqrt(dx) / math.Sqrt(dg)
}

func isFinitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
