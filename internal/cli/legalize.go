package cli

import (
	"github.com/spf13/cobra"

	"github.com/mgrund/gridplace/pkg/place"
)

// legalizeCommand creates the legalize command. It runs the same pipeline
// as place with the optimization stages switched off.
func (c *CLI) legalizeCommand() *cobra.Command {
	var (
		output     string
		configPath string
		noCache    bool
		refresh    bool
	)
	var opts place.Options

	cmd := &cobra.Command{
		Use:   "legalize [snapshot.json]",
		Short: "Snap an existing placement onto legal row sites",
		Long: `Snap an existing placement onto legal row sites.

The legalize command keeps the input positions as the starting point:
cells are aligned to rows, snapped onto sites, and shifted the minimum
distance needed to make room, then the detailed improvement script
polishes the result. The relative cell order within each row is
preserved. Pass --skip-detail to stop after legalization; an already
legal input then comes back unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.SkipGlobal = true
			return c.runPlace(cmd.Context(), args[0], placeRunConfig{
				opts:       opts,
				output:     output,
				configPath: configPath,
				noCache:    noCache,
				refresh:    refresh,
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.placement.json)")
	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file (default: ./"+defaultConfigFile+" if present)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute even when a cached result exists")
	cmd.Flags().Float64Var(&opts.Legalize.MaxDisplacement, "max-displacement", 0, "displacement above which a warning is logged")
	cmd.Flags().BoolVar(&opts.SkipDetail, "skip-detail", false, "stop after legalization")

	return cmd
}
