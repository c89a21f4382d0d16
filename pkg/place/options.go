package place

import (
	"github.com/charmbracelet/log"

	"github.com/mgrund/gridplace/pkg/cache"
	"github.com/mgrund/gridplace/pkg/errors"
	"github.com/mgrund/gridplace/pkg/place/detail"
	"github.com/mgrund/gridplace/pkg/place/global"
	"github.com/mgrund/gridplace/pkg/place/legalize"
)

// Options configures a full placement run. Zero values fall back to the
// stage defaults; Seed is shared by every randomized stage.
type Options struct {
	// Global configures the Nesterov spreading stage.
	Global global.Options

	// Legalize configures row legalization.
	Legalize legalize.Options

	// Detail configures the scripted improvement stage.
	Detail detail.Options

	// Seed overrides the per-stage seeds when non-zero.
	Seed int64

	// SkipGlobal legalizes and improves the input positions as-is.
	SkipGlobal bool

	// SkipDetail stops after legalization.
	SkipDetail bool

	// Refresh bypasses the cache read (the result is still written back).
	Refresh bool

	// Logger is propagated to every stage that has none of its own.
	Logger *log.Logger
}

// ValidateAndSetDefaults checks option sanity and fills stage defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Global.TargetOverflow < 0 || o.Global.TargetOverflow > 1 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"target overflow %.3f outside (0, 1]", o.Global.TargetOverflow)
	}
	if o.Global.MaxIterations < 0 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"max iterations must be positive, got %d", o.Global.MaxIterations)
	}
	if o.Legalize.MaxDisplacement < 0 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"max displacement must not be negative, got %.3f", o.Legalize.MaxDisplacement)
	}
	if o.Seed != 0 {
		o.Global.Seed = o.Seed
		o.Detail.Seed = o.Seed
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Global.Logger == nil {
		o.Global.Logger = o.Logger
	}
	if o.Legalize.Logger == nil {
		o.Legalize.Logger = o.Logger
	}
	if o.Detail.Logger == nil {
		o.Detail.Logger = o.Logger
	}
	if o.Detail.Script == nil {
		o.Detail.Script = detail.DefaultScript()
	}
	return nil
}

// cacheKeyOpts derives the solve parameters that distinguish cached
// placements of the same snapshot.
func (o *Options) cacheKeyOpts() cache.PlacementKeyOpts {
	opts := cache.PlacementKeyOpts{
		TargetOverflow: o.Global.TargetOverflow,
		MaxIterations:  o.Global.MaxIterations,
		Seed:           o.Seed,
		ScriptDigest:   o.Detail.Script.String(),
	}
	// Markers compose so every skip combination keys differently.
	if o.SkipDetail {
		opts.ScriptDigest = "skip-detail"
	}
	if o.SkipGlobal {
		opts.ScriptDigest = "skip-global;" + opts.ScriptDigest
	}
	return opts
}
