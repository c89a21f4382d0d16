// Package place orchestrates the full placement pipeline: snapshot import,
// global placement, legalization, scripted detailed improvement, and
// placement export, with result caching keyed on the snapshot and the
// solve parameters.
package place

import (
	"bytes"
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/mgrund/gridplace/pkg/arch"
	"github.com/mgrund/gridplace/pkg/cache"
	"github.com/mgrund/gridplace/pkg/errors"
	"github.com/mgrund/gridplace/pkg/netlist"
	"github.com/mgrund/gridplace/pkg/observability"
	"github.com/mgrund/gridplace/pkg/place/detail"
	"github.com/mgrund/gridplace/pkg/place/global"
	"github.com/mgrund/gridplace/pkg/place/legalize"
	"github.com/mgrund/gridplace/pkg/snapshot"
)

// Stats carries per-stage wall-clock durations.
type Stats struct {
	ImportTime   time.Duration
	GlobalTime   time.Duration
	LegalizeTime time.Duration
	DetailTime   time.Duration
}

// Result is the outcome of one placement run.
type Result struct {
	Placement    snapshot.Placement
	SnapshotHash string
	CacheHit     bool

	Global   global.Result
	Legalize legalize.Result
	Detail   detail.Result
	Stats    Stats
}

// Runner executes placement runs with caching. It is stateless apart from
// the cache and logger; concurrent runs with separate options are safe.
type Runner struct {
	Cache  cache.Cache
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching; a nil logger
// falls back to the default logger.
func NewRunner(c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Logger: logger}
}

// Execute runs the import, global, legalize, detail, and export stages on
// the snapshot. The cache is consulted before any optimization and written
// back only after a fully successful run.
func (r *Runner) Execute(ctx context.Context, snap snapshot.Snapshot, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{}

	data, err := snapshot.Marshal(snap)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeImport, err, "serialize snapshot")
	}
	result.SnapshotHash = cache.Hash(data)
	cacheKey := cache.PlacementKey(result.SnapshotHash, opts.cacheKeyOpts())

	if !opts.Refresh {
		if cached, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			if p, err := snapshot.ReadPlacement(bytes.NewReader(cached)); err == nil {
				observability.Cache().OnCacheHit(ctx, "placement")
				r.Logger.Info("placement served from cache", "key", cacheKey)
				result.Placement = p
				result.CacheHit = true
				return result, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "placement")
	}

	importStart := time.Now()
	observability.Placer().OnStageStart(ctx, "import", len(snap.Nodes))
	nl, ar, err := snapshot.Build(snap)
	result.Stats.ImportTime = time.Since(importStart)
	observability.Placer().OnStageComplete(ctx, "import", result.Stats.ImportTime, err)
	if err != nil {
		return nil, err
	}
	r.Logger.Info("imported snapshot",
		"nodes", nl.NodeCount(), "nets", nl.NetCount(), "pins", nl.PinCount(),
		"rows", len(ar.Rows), "duration", result.Stats.ImportTime)

	hpwlBefore := nl.HPWL()
	metrics := snapshot.Metrics{
		RunID:      uuid.NewString(),
		HPWLBefore: hpwlBefore,
	}

	// A zero-wirelength design has nothing to optimize: every stage is
	// skipped and the input positions pass through untouched.
	trivial := hpwlBefore == 0
	if trivial {
		r.Logger.Info("zero initial wirelength, skipping placement stages")
		metrics.TerminalState = "trivial"
	}

	if !opts.SkipGlobal && !trivial {
		if err := r.runGlobal(ctx, nl, ar, &opts, result, &metrics); err != nil {
			return nil, err
		}
	}

	if !trivial {
		legalStart := time.Now()
		observability.Placer().OnStageStart(ctx, "legalize", nl.NodeCount())
		result.Legalize, err = legalize.Run(nl, ar, opts.Legalize)
		result.Stats.LegalizeTime = time.Since(legalStart)
		observability.Placer().OnStageComplete(ctx, "legalize", result.Stats.LegalizeTime, err)
		if err != nil {
			return nil, err
		}
		r.Logger.Info("legalized placement",
			"moved", result.Legalize.Moved, "maxShift", result.Legalize.MaxShift,
			"railMismatches", result.Legalize.RailMismatches,
			"duration", result.Stats.LegalizeTime)
	}

	if !opts.SkipDetail && !trivial {
		detailStart := time.Now()
		observability.Placer().OnStageStart(ctx, "detail", nl.NodeCount())
		result.Detail, err = detail.Run(ctx, nl, ar, opts.Detail)
		result.Stats.DetailTime = time.Since(detailStart)
		observability.Placer().OnStageComplete(ctx, "detail", result.Stats.DetailTime, err)
		if err != nil {
			return nil, err
		}
		r.Logger.Info("improved placement",
			"hpwlBefore", result.Detail.HPWLBefore, "hpwlAfter", result.Detail.HPWLAfter,
			"duration", result.Stats.DetailTime)
	}

	metrics.HPWLAfter = nl.HPWL()
	if metrics.TerminalState == "" {
		metrics.TerminalState = "legalized"
	}
	observability.Placer().OnStageStart(ctx, "export", nl.NodeCount())
	result.Placement = snapshot.Export(nl, metrics)
	observability.Placer().OnStageComplete(ctx, "export", 0, nil)

	var out bytes.Buffer
	if err := snapshot.WritePlacement(result.Placement, &out); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, out.Bytes(), cache.TTLPlacement); err == nil {
			observability.Cache().OnCacheSet(ctx, "placement", out.Len())
		}
	}
	return result, nil
}

// runGlobal executes the Nesterov stage. Divergence is an error; hitting
// the iteration cap is reported but the pipeline continues with the best
// positions found.
func (r *Runner) runGlobal(ctx context.Context, nl *netlist.Netlist, ar *arch.Architecture,
	opts *Options, result *Result, metrics *snapshot.Metrics) error {

	if opts.Global.Observer == nil {
		opts.Global.Observer = func(iter int, overflow, hpwl float64) {
			observability.Placer().OnIteration(ctx, iter, overflow, hpwl)
		}
	}

	start := time.Now()
	observability.Placer().OnStageStart(ctx, "global", nl.NodeCount())
	res, err := global.New(nl, ar, opts.Global).Run(ctx)
	result.Stats.GlobalTime = time.Since(start)
	observability.Placer().OnStageComplete(ctx, "global", result.Stats.GlobalTime, err)

	result.Global = res
	metrics.Iterations = res.Iterations
	metrics.TerminalState = res.Status.String()
	if err != nil {
		return errors.Wrap(errors.ErrCodeDiverged, err,
			"global placement failed after %d iterations", res.Iterations)
	}
	r.Logger.Info("global placement finished",
		"status", res.Status, "iterations", res.Iterations,
		"overflow", res.Overflow, "duration", result.Stats.GlobalTime)

	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "placement canceled")
	}
	return nil
}
