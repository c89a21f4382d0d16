package global

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mgrund/gridplace/pkg/arch"
	"github.com/mgrund/gridplace/pkg/netlist"
)

// spreadDesign builds a two-row architecture with four unit cells clustered
// at the center, chained by three two-pin nets.
func spreadDesign(t *testing.T, netWeight float64) (*netlist.Netlist, *arch.Architecture) {
	t.Helper()

	ar := arch.New()
	for i := 0; i < 2; i++ {
		ar.AddRow(arch.Row{
			Bottom:    float64(i) * 2,
			Height:    2,
			SiteWidth: 1,
			NumSites:  50,
		})
	}
	require.NoError(t, ar.Finalize())

	nl := netlist.New(8, 4, 8)
	ids := make([]int, 4)
	for i := range ids {
		id, err := nl.AddNode(netlist.Node{
			Name: fmt.Sprintf("c%d", i),
			Kind: netlist.KindCell,
			X:    25 + 0.5*float64(i),
			Y:    2,
			Width: 1, Height: 2,
		})
		require.NoError(t, err)
		ids[i] = id
	}
	for i := 0; i < 3; i++ {
		net := nl.AddNet(fmt.Sprintf("n%d", i), netWeight)
		_, err := nl.Connect(ids[i], net, netlist.Pin{})
		require.NoError(t, err)
		_, err = nl.Connect(ids[i+1], net, netlist.Pin{})
		require.NoError(t, err)
	}
	return nl, ar
}

func positions(nl *netlist.Netlist) [][2]float64 {
	out := make([][2]float64, nl.NodeCount())
	for i := 0; i < nl.NodeCount(); i++ {
		out[i] = [2]float64{nl.Node(i).X, nl.Node(i).Y}
	}
	return out
}

func TestRunConverges(t *testing.T) {
	nl, ar := spreadDesign(t, 1)

	opts := DefaultOptions()
	opts.TargetOverflow = 0.8
	opts.MaxIterations = 200
	opts.Seed = 42

	res, err := New(nl, ar, opts).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusConverged, res.Status)
	require.LessOrEqual(t, res.Overflow, opts.TargetOverflow)
	require.GreaterOrEqual(t, res.Iterations, 1)

	// Fillers must not leak out of the run.
	require.Equal(t, 4, nl.NodeCount())

	// Every cell stays inside the placeable area.
	for i := 0; i < nl.NodeCount(); i++ {
		n := nl.Node(i)
		require.GreaterOrEqual(t, n.X-0.5*n.Width, ar.BBox.XMin-1e-9)
		require.LessOrEqual(t, n.X+0.5*n.Width, ar.BBox.XMax+1e-9)
		require.GreaterOrEqual(t, n.Y-0.5*n.Height, ar.BBox.YMin-1e-9)
		require.LessOrEqual(t, n.Y+0.5*n.Height, ar.BBox.YMax+1e-9)
	}
}

func TestRunDeterministicUnderFixedSeed(t *testing.T) {
	run := func() ([][2]float64, Result) {
		nl, ar := spreadDesign(t, 1)
		opts := DefaultOptions()
		opts.TargetOverflow = 0.8
		opts.MaxIterations = 200
		opts.Seed = 7
		res, err := New(nl, ar, opts).Run(context.Background())
		require.NoError(t, err)
		return positions(nl), res
	}

	posA, resA := run()
	posB, resB := run()
	require.Equal(t, resA, resB)
	require.Equal(t, posA, posB)
}

func TestRunKeepsFixedXCoordinate(t *testing.T) {
	nl, ar := spreadDesign(t, 1)
	nl.Node(0).Fixed = netlist.FixedX
	wantX := nl.Node(0).X

	opts := DefaultOptions()
	opts.TargetOverflow = 0.8
	opts.MaxIterations = 200
	opts.Seed = 42

	_, err := New(nl, ar, opts).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, wantX, nl.Node(0).X, "fixed-x cell drifted horizontally")
}

func TestRunDivergesOnExtremeNetWeights(t *testing.T) {
	nl, ar := spreadDesign(t, math.MaxFloat64)
	before := positions(nl)

	opts := DefaultOptions()
	opts.StepSearchLimit = 3
	opts.Seed = 1

	res, err := New(nl, ar, opts).Run(context.Background())
	require.Error(t, err)

	var div *DivergenceError
	require.ErrorAs(t, err, &div)
	require.Equal(t, DivergeCoefOutOfRange, div.Code)
	require.Equal(t, StatusDiverged, res.Status)
	require.Equal(t, 0, div.Iterations)

	// Divergence before the first stable iteration leaves positions alone.
	require.Equal(t, before, positions(nl))
}

func TestRunCanceledContextAborts(t *testing.T) {
	nl, ar := spreadDesign(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(nl, ar, DefaultOptions()).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusAborted, res.Status)
	require.Equal(t, 0, res.Iterations)
	require.Equal(t, 4, nl.NodeCount())
}

func TestDensityGridOverflowEmptyDesign(t *testing.T) {
	ar := arch.New()
	ar.AddRow(arch.Row{Height: 2, SiteWidth: 1, NumSites: 10})
	require.NoError(t, ar.Finalize())

	nl := netlist.New(0, 0, 0)
	g := newDensityGrid(ar, nl, 4, 1.0)
	g.rebuild(nl)
	scaled, unscaled := g.overflow()
	require.Zero(t, scaled)
	require.Zero(t, unscaled)
}

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.setDefaults()
	require.Equal(t, DefaultOptions().TargetOverflow, o.TargetOverflow)
	require.Equal(t, DefaultOptions().MaxIterations, o.MaxIterations)
	require.NotNil(t, o.Logger)
}
