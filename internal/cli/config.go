package cli

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/mgrund/gridplace/pkg/errors"
	"github.com/mgrund/gridplace/pkg/place"
	"github.com/mgrund/gridplace/pkg/place/detail"
)

// defaultConfigFile is picked up from the working directory when --config
// is not given.
const defaultConfigFile = "gridplace.toml"

// config mirrors the TOML configuration file. All fields are optional;
// zero values defer to the engine defaults.
//
//	[global]
//	target_overflow = 0.1
//	max_iterations  = 512
//	bin_count       = 128
//
//	[legalize]
//	max_displacement = 50.0
//
//	[detail]
//	script = "mis -p 10 -t 0.005; gs; vs; ro; default -p 5"
//
//	seed = 42
type config struct {
	Seed int64 `toml:"seed"`

	Global struct {
		TargetOverflow float64 `toml:"target_overflow"`
		MaxIterations  int     `toml:"max_iterations"`
		TargetDensity  float64 `toml:"target_density"`
		BinCount       int     `toml:"bin_count"`
	} `toml:"global"`

	Legalize struct {
		MaxDisplacement float64 `toml:"max_displacement"`
	} `toml:"legalize"`

	Detail struct {
		Script      string `toml:"script"`
		Parallelism int    `toml:"parallelism"`
	} `toml:"detail"`
}

// loadConfig reads a TOML config file into placement options. A missing
// file is only an error when the path was given explicitly.
func loadConfig(path string, explicit bool, opts *place.Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}

	var cfg config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	return cfg.apply(opts)
}

// apply copies the set config values onto opts, leaving unset fields alone.
func (cfg *config) apply(opts *place.Options) error {
	if cfg.Seed != 0 {
		opts.Seed = cfg.Seed
	}
	if cfg.Global.TargetOverflow != 0 {
		opts.Global.TargetOverflow = cfg.Global.TargetOverflow
	}
	if cfg.Global.MaxIterations != 0 {
		opts.Global.MaxIterations = cfg.Global.MaxIterations
	}
	if cfg.Global.TargetDensity != 0 {
		opts.Global.TargetDensity = cfg.Global.TargetDensity
	}
	if cfg.Global.BinCount != 0 {
		opts.Global.BinCount = cfg.Global.BinCount
	}
	if cfg.Legalize.MaxDisplacement != 0 {
		opts.Legalize.MaxDisplacement = cfg.Legalize.MaxDisplacement
	}
	if cfg.Detail.Parallelism != 0 {
		opts.Detail.Parallelism = cfg.Detail.Parallelism
	}
	if cfg.Detail.Script != "" {
		script, err := detail.ParseScript(cfg.Detail.Script)
		if err != nil {
			return err
		}
		opts.Detail.Script = script
	}
	return nil
}
