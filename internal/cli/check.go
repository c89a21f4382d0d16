package cli

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mgrund/gridplace/pkg/arch"
	"github.com/mgrund/gridplace/pkg/errors"
	"github.com/mgrund/gridplace/pkg/netlist"
	"github.com/mgrund/gridplace/pkg/snapshot"
)

// checkCommand creates the check command validating a snapshot.
func (c *CLI) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [snapshot.json]",
		Short: "Validate a snapshot and audit placement legality",
		Long: `Validate a snapshot and audit placement legality.

The check command decodes the snapshot, builds the internal netlist and
row architecture from it, and reports the design statistics along with a
legality audit of the input positions: cells off the site grid, cells
not aligned to a row, and overlapping pairs. It fails with the same
import errors the place command would, so it is a cheap way to verify an
export before committing to a full run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot.ReadFile(args[0])
			if err != nil {
				printError("Snapshot is not readable")
				return err
			}

			nl, ar, err := snapshot.Build(snap)
			if err != nil {
				printError("Snapshot is invalid")
				if msg := errors.UserMessage(err); msg != "" {
					printDetail("%s", msg)
				}
				return err
			}

			movable := len(nl.Movable())
			printSuccess("Snapshot is valid")
			printKeyValue("nodes", fmt.Sprintf("%d (%d movable)", nl.NodeCount(), movable))
			printKeyValue("nets", fmt.Sprintf("%d", nl.NetCount()))
			printKeyValue("pins", fmt.Sprintf("%d", nl.PinCount()))
			printKeyValue("rows", fmt.Sprintf("%d", len(ar.Rows)))
			printKeyValue("regions", fmt.Sprintf("%d", len(ar.Regions)))
			printKeyValue("hpwl", fmt.Sprintf("%.0f", nl.HPWL()))
			printKeyValue("cell area", fmt.Sprintf("%.0f", nl.MovableArea()))

			audit := auditLegality(nl, ar)
			if audit.legal() {
				printSuccess("Input placement is legal")
			} else {
				printWarning("Input placement is not legal")
				if audit.offRow > 0 {
					printDetail("%d cells not aligned to a row", audit.offRow)
				}
				if audit.offSite > 0 {
					printDetail("%d cells off the site grid", audit.offSite)
				}
				if audit.overlaps > 0 {
					printDetail("%d overlapping cell pairs", audit.overlaps)
				}
				printNextStep("Legalize it", "gridplace legalize "+args[0])
			}
			return nil
		},
	}
}

// legalityAudit counts the ways the input positions violate row/site rules.
type legalityAudit struct {
	offRow   int
	offSite  int
	overlaps int
}

func (a legalityAudit) legal() bool {
	return a.offRow == 0 && a.offSite == 0 && a.overlaps == 0
}

const auditEps = 1e-6

// auditLegality checks movable cells against the row grid and each other.
// Terminals and fixed cells are taken as given.
func auditLegality(nl *netlist.Netlist, ar *arch.Architecture) legalityAudit {
	var audit legalityAudit
	cells := nl.Movable()

	for _, i := range cells {
		n := nl.Node(i)
		bottom := n.Y - 0.5*n.Height
		row := ar.Rows[ar.RowIndexNear(bottom+0.5*ar.Rows[0].Height)]
		if math.Abs(bottom-row.Bottom) > auditEps {
			audit.offRow++
			continue
		}
		left := n.X - 0.5*n.Width
		if math.Abs(row.SnapX(left)-left) > auditEps {
			audit.offSite++
		}
	}

	// Overlaps between movable cells, found with a sweep over x-sorted
	// footprints.
	sorted := append([]int(nil), cells...)
	sort.Slice(sorted, func(a, b int) bool {
		return nl.Node(sorted[a]).Footprint().XMin < nl.Node(sorted[b]).Footprint().XMin
	})
	for i, a := range sorted {
		fa := nl.Node(a).Footprint()
		for _, b := range sorted[i+1:] {
			fb := nl.Node(b).Footprint()
			if fb.XMin >= fa.XMax-auditEps {
				break
			}
			if fa.Intersects(fb) {
				audit.overlaps++
			}
		}
	}
	return audit
}
