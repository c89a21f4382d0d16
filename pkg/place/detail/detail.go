// Package detail implements the scripted detailed improvement stage. It
// takes a legal placement and runs a script of local operators (matching,
// global swap, vertical swap, reorder, random moves) that monotonically
// reduce weighted wirelength while keeping every cell on legal sites.
package detail

import (
	"context"
	"io"
	"math/rand"
	"runtime"

	"github.com/charmbracelet/log"

	"github.com/mgrund/gridplace/pkg/arch"
	"github.com/mgrund/gridplace/pkg/netlist"
)

// Options configures a detailed improvement run.
type Options struct {
	// Script is the operator schedule; nil runs DefaultScript.
	Script Script

	// Seed drives the random-move operator. Fixed seed, fixed result.
	Seed int64

	// Parallelism bounds concurrent matching clusters; 0 uses GOMAXPROCS.
	Parallelism int

	// Logger receives per-pass debug output.
	Logger *log.Logger
}

func (o *Options) setDefaults() {
	if o.Script == nil {
		o.Script = DefaultScript()
	}
	if o.Parallelism <= 0 {
		o.Parallelism = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
}

// OperatorStat reports what one script operator achieved.
type OperatorStat struct {
	Kind       OperatorKind
	Passes     int // passes actually run
	Moves      int
	HPWLBefore float64
	HPWLAfter  float64
}

// Result summarizes a detailed improvement run.
type Result struct {
	HPWLBefore float64
	HPWLAfter  float64
	Operators  []OperatorStat
}

type improver struct {
	nl   *netlist.Netlist
	ar   *arch.Architecture
	m    *manager
	opts Options
	rng  *rand.Rand
}

// Run executes the script. Each operator runs its pass count, stopping
// early when a pass improves total wirelength by less than its tolerance.
// Only improving moves are ever kept, so wirelength is monotonically
// non-increasing and a placement at a fixed point passes through
// unchanged.
func Run(ctx context.Context, nl *netlist.Netlist, ar *arch.Architecture, opts Options) (Result, error) {
	opts.setDefaults()
	d := &improver{
		nl:   nl,
		ar:   ar,
		m:    newManager(nl, ar),
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}

	res := Result{HPWLBefore: nl.HPWL()}
	for _, op := range opts.Script {
		stat, err := d.runOperator(ctx, op)
		if err != nil {
			res.HPWLAfter = nl.HPWL()
			res.Operators = append(res.Operators, stat)
			return res, err
		}
		res.Operators = append(res.Operators, stat)
	}
	res.HPWLAfter = nl.HPWL()
	return res, nil
}

func (d *improver) runOperator(ctx context.Context, op Operator) (OperatorStat, error) {
	stat := OperatorStat{Kind: op.Kind, HPWLBefore: d.nl.HPWL()}
	for pass := 0; pass < op.Passes; pass++ {
		if err := ctx.Err(); err != nil {
			stat.HPWLAfter = d.nl.HPWL()
			return stat, err
		}

		before := d.nl.HPWL()
		var moves int
		var err error
		switch op.Kind {
		case OpMatching:
			moves, err = d.passMatching(ctx)
		case OpGlobalSwap:
			moves = d.passSwap(len(d.ar.Rows))
		case OpVerticalSwap:
			moves = d.passSwap(1)
		case OpReorder:
			moves = d.passReorder(op.Window)
		case OpRandom:
			moves = d.passRandom()
		}
		stat.Passes++
		stat.Moves += moves
		if err != nil {
			stat.HPWLAfter = d.nl.HPWL()
			return stat, err
		}

		after := d.nl.HPWL()
		d.opts.Logger.Debug("detail pass",
			"op", op.Kind, "pass", pass, "moves", moves, "hpwl", after)
		if moves == 0 || before <= 0 || (before-after)/before < op.Tolerance {
			break
		}
	}
	stat.HPWLAfter = d.nl.HPWL()
	return stat, nil
}
