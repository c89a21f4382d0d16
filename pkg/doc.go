// Package pkg provides the core libraries for Gridplace standard-cell placement.
//
// # Overview
//
// Gridplace takes a snapshot of a standard-cell design (netlist plus row
// architecture) and produces legal, wirelength-optimized cell positions.
// The pkg directory is organized into four main areas:
//
//  1. [place] - Placement engine (global, legalize, detail stages)
//  2. [snapshot] - JSON boundary with the physical database
//  3. [arch] / [netlist] - In-memory design model
//  4. [cache] / [observability] - Run infrastructure
//
// # Architecture
//
// The typical data flow through Gridplace:
//
//	snapshot.json (exported design)
//	         ↓
//	    [snapshot] package (import, validation)
//	         ↓
//	    [place/global] package (Nesterov spreading)
//	         ↓
//	    [place/legalize] package (row/site snapping)
//	         ↓
//	    [place/detail] package (scripted local operators)
//	         ↓
//	    placement.json output
//
// # Quick Start
//
// Run the full pipeline on a snapshot:
//
//	import (
//	    "context"
//	    "github.com/mgrund/gridplace/pkg/place"
//	    "github.com/mgrund/gridplace/pkg/snapshot"
//	)
//
//	snap, _ := snapshot.ReadFile("design.json")
//	runner := place.NewRunner(nil, nil)
//	result, err := runner.Execute(context.Background(), snap, place.Options{})
//
// # Main Packages
//
// [arch] - The immutable physical context of a run: site rows, placement
// regions and keep-outs, orientations and power rails.
//
// [netlist] - Mutable cell positions plus the pin/net connectivity and the
// HPWL cost functions every stage shares.
//
// [place] - The placement pipeline. The top-level Runner handles caching,
// metrics, and stage orchestration; the stage subpackages do the work:
//
//   - [place/global]: Nesterov accelerated-gradient global placement
//   - [place/legalize]: capacity-checked shift legalization
//   - [place/detail]: scripted local improvement operators
//
// [snapshot] - JSON codecs for the input snapshot and output placement,
// plus the import that builds the internal model.
//
// [cache] - Content-addressed result cache keyed on the snapshot hash and
// the placement options.
//
// [observability] - Process-wide hook registry for run and stage lifecycle
// events.
//
// [errors] - Coded errors shared across packages; codes survive wrapping
// and map to user-facing messages in the CLI.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...            # All tests
//	go test ./pkg/place/...      # Placement stages only
//
// [arch]: https://pkg.go.dev/github.com/mgrund/gridplace/pkg/arch
// [netlist]: https://pkg.go.dev/github.com/mgrund/gridplace/pkg/netlist
// [place]: https://pkg.go.dev/github.com/mgrund/gridplace/pkg/place
// [place/global]: https://pkg.go.dev/github.com/mgrund/gridplace/pkg/place/global
// [place/legalize]: https://pkg.go.dev/github.com/mgrund/gridplace/pkg/place/legalize
// [place/detail]: https://pkg.go.dev/github.com/mgrund/gridplace/pkg/place/detail
// [snapshot]: https://pkg.go.dev/github.com/mgrund/gridplace/pkg/snapshot
// [cache]: https://pkg.go.dev/github.com/mgrund/gridplace/pkg/cache
// [observability]: https://pkg.go.dev/github.com/mgrund/gridplace/pkg/observability
// [errors]: https://pkg.go.dev/github.com/mgrund/gridplace/pkg/errors
package pkg
