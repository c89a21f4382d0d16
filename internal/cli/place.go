package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgrund/gridplace/pkg/errors"
	"github.com/mgrund/gridplace/pkg/place"
	"github.com/mgrund/gridplace/pkg/place/detail"
	"github.com/mgrund/gridplace/pkg/snapshot"
)

// placeCommand creates the place command running the full pipeline.
func (c *CLI) placeCommand() *cobra.Command {
	var (
		output     string
		configPath string
		script     string
		noCache    bool
		refresh    bool
	)
	var opts place.Options

	cmd := &cobra.Command{
		Use:   "place [snapshot.json]",
		Short: "Run the full placement pipeline on a snapshot",
		Long: `Run the full placement pipeline on a snapshot.

The place command takes a snapshot.json file exported from the physical
database and runs global placement, legalization, and the scripted
detailed improvement pass. The output is a placement.json file with the
final cell positions, orientations, and run metrics.

Results are cached locally: re-running an unchanged snapshot with the
same options returns the cached placement.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlace(cmd.Context(), args[0], placeRunConfig{
				opts:       opts,
				output:     output,
				configPath: configPath,
				script:     script,
				noCache:    noCache,
				refresh:    refresh,
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.placement.json)")
	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file (default: ./"+defaultConfigFile+" if present)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute even when a cached result exists")

	cmd.Flags().Float64Var(&opts.Global.TargetOverflow, "target-overflow", 0, "density overflow at which global placement stops")
	cmd.Flags().IntVar(&opts.Global.MaxIterations, "max-iterations", 0, "global placement iteration cap")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "seed shared by all randomized stages")
	cmd.Flags().StringVar(&script, "script", "", `detailed improvement script (e.g. "mis -p 10; gs; ro")`)
	cmd.Flags().BoolVar(&opts.SkipGlobal, "skip-global", false, "keep the input positions, only legalize and improve")
	cmd.Flags().BoolVar(&opts.SkipDetail, "skip-detail", false, "stop after legalization")

	return cmd
}

// placeRunConfig bundles the place command's flag values.
type placeRunConfig struct {
	opts       place.Options
	output     string
	configPath string
	script     string
	noCache    bool
	refresh    bool
}

// runPlace loads the snapshot, executes the pipeline, and writes output.
func (c *CLI) runPlace(ctx context.Context, input string, rc placeRunConfig) error {
	opts := rc.opts

	configPath, explicit := rc.configPath, true
	if configPath == "" {
		configPath, explicit = defaultConfigFile, false
	}
	if err := loadConfig(configPath, explicit, &opts); err != nil {
		printError("Invalid configuration")
		return err
	}
	if rc.script != "" {
		script, err := detail.ParseScript(rc.script)
		if err != nil {
			printError("Invalid script")
			return err
		}
		opts.Detail.Script = script
	}
	opts.Refresh = rc.refresh
	opts.Logger = c.Logger

	snap, err := snapshot.ReadFile(input)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", input, err)
	}

	runner := c.newRunner(rc.noCache)
	defer runner.Cache.Close()

	prog := newProgress(c.Logger)
	result, err := runner.Execute(ctx, snap, opts)
	if err != nil {
		printError("Placement failed")
		if msg := errors.UserMessage(err); msg != "" {
			printDetail("%s", msg)
		}
		return err
	}
	prog.done(fmt.Sprintf("Placed %d cells", len(result.Placement.Cells)))

	if ctx.Err() != nil {
		return ctx.Err()
	}

	outputPath := rc.output
	if outputPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		outputPath = base + ".placement.json"
	}
	if err := snapshot.WritePlacementFile(result.Placement, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	m := result.Placement.Metrics
	printSuccess("Placement complete")
	printFile(outputPath)
	printStats(len(result.Placement.Cells), m.HPWLBefore, m.HPWLAfter, result.CacheHit)
	if !result.CacheHit {
		printDetail("state %s · %d global iterations", m.TerminalState, m.Iterations)
		if result.Legalize.RailMismatches > 0 {
			printWarning("%d cells sit on mismatched power rails", result.Legalize.RailMismatches)
		}
	}
	return nil
}
