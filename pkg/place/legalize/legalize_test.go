package legalize

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mgrund/gridplace/pkg/arch"
	"github.com/mgrund/gridplace/pkg/errors"
	"github.com/mgrund/gridplace/pkg/netlist"
)

func fourRows(t *testing.T) *arch.Architecture {
	t.Helper()
	ar := arch.New()
	for i := 0; i < 4; i++ {
		ar.AddRow(arch.Row{
			Bottom:    float64(i) * 2,
			Height:    2,
			SiteWidth: 1,
			NumSites:  20,
		})
	}
	require.NoError(t, ar.Finalize())
	return ar
}

func addCell(t *testing.T, nl *netlist.Netlist, name string, x, y, w, h float64) int {
	t.Helper()
	id, err := nl.AddNode(netlist.Node{
		Name: name, Kind: netlist.KindCell,
		X: x, Y: y, Width: w, Height: h,
	})
	require.NoError(t, err)
	return id
}

func TestRunLegalInputIsNoOp(t *testing.T) {
	ar := fourRows(t)
	nl := netlist.New(4, 0, 0)

	// Already on sites, on row centers, in left-to-right order.
	addCell(t, nl, "a", 1, 1, 2, 2)  // row 0, left edge 0
	addCell(t, nl, "b", 4, 1, 2, 2)  // row 0, left edge 3
	addCell(t, nl, "c", 2, 3, 2, 2)  // row 1, left edge 1

	res, err := Run(nl, ar, Options{})
	require.NoError(t, err)
	require.Zero(t, res.Moved)
	require.Zero(t, res.TotalShift)

	require.Equal(t, 1.0, nl.Node(0).X)
	require.Equal(t, 4.0, nl.Node(1).X)
	require.Equal(t, 2.0, nl.Node(2).X)
}

func TestRunResolvesOverlapPreservingOrder(t *testing.T) {
	ar := fourRows(t)
	nl := netlist.New(4, 0, 0)

	// Three cells stacked on the same spot in row 0.
	a := addCell(t, nl, "a", 5.0, 1, 2, 2)
	b := addCell(t, nl, "b", 5.2, 1, 2, 2)
	c := addCell(t, nl, "c", 5.4, 1, 2, 2)

	res, err := Run(nl, ar, Options{})
	require.NoError(t, err)
	require.Greater(t, res.Moved, 0)

	na, nb, nc := nl.Node(a), nl.Node(b), nl.Node(c)

	// Left-to-right order preserved, footprints disjoint, sites hit.
	require.Less(t, na.X, nb.X)
	require.Less(t, nb.X, nc.X)
	require.GreaterOrEqual(t, nb.X-na.X, 2.0)
	require.GreaterOrEqual(t, nc.X-nb.X, 2.0)
	for _, n := range []*netlist.Node{na, nb, nc} {
		left := n.X - 1
		require.Equal(t, left, float64(int(left)), "left edge %v must sit on a site", left)
		require.Equal(t, 1.0, n.Y)
	}
}

func TestRunSpillsToAdjacentRow(t *testing.T) {
	ar := fourRows(t)
	nl := netlist.New(4, 0, 0)

	// Row 0 cannot hold both 12-wide cells; one must spill.
	a := addCell(t, nl, "a", 6, 1, 12, 2)
	b := addCell(t, nl, "b", 7, 1, 12, 2)

	res, err := Run(nl, ar, Options{})
	require.NoError(t, err)
	require.Greater(t, res.Moved, 0)

	na, nb := nl.Node(a), nl.Node(b)
	require.NotEqual(t, na.Y, nb.Y, "one of the cells must change rows")
}

func TestRunCapacityErrorMovesNothing(t *testing.T) {
	ar := fourRows(t)
	nl := netlist.New(4, 0, 0)

	// Total row area is 4*20*2 = 160; demand 200 exceeds it.
	var before [][2]float64
	for i := 0; i < 10; i++ {
		id := addCell(t, nl, fmt.Sprintf("c%d", i), 10, 4, 10, 2)
		n := nl.Node(id)
		before = append(before, [2]float64{n.X, n.Y})
	}

	_, err := Run(nl, ar, Options{})
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrCodeCapacity))

	for i := range before {
		n := nl.Node(i)
		require.Equal(t, before[i], [2]float64{n.X, n.Y}, "cell %d moved", i)
	}
}

func TestRunNamedRegionCapacityErrorMovesNothing(t *testing.T) {
	ar := arch.New()
	for i := 0; i < 2; i++ {
		ar.AddRow(arch.Row{Bottom: float64(i) * 2, Height: 2, SiteWidth: 1, NumSites: 20})
	}
	def := ar.AddRegion(arch.RegionGroup)
	def.Rects = []arch.Rect{{XMin: 0, YMin: 0, XMax: 20, YMax: 4}}
	grp := ar.AddRegion(arch.RegionGroup)
	grp.Rects = []arch.Rect{{XMin: 10, YMin: 0, XMax: 12, YMax: 2}} // area 4
	require.NoError(t, ar.Finalize())

	nl := netlist.New(2, 0, 0)
	big := addCell(t, nl, "big", 5.3, 1.2, 6, 2) // demand 12 exceeds the group
	nl.Node(big).RegionID = grp.ID
	other := addCell(t, nl, "other", 3.7, 1.2, 2, 2)

	_, err := Run(nl, ar, Options{})
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrCodeCapacity))

	require.Equal(t, [2]float64{5.3, 1.2}, [2]float64{nl.Node(big).X, nl.Node(big).Y})
	require.Equal(t, [2]float64{3.7, 1.2}, [2]float64{nl.Node(other).X, nl.Node(other).Y})
}

func TestRunKeepsFixedXColumn(t *testing.T) {
	ar := fourRows(t)
	nl := netlist.New(4, 0, 0)

	fx, err := nl.AddNode(netlist.Node{
		Name: "fx", Kind: netlist.KindCell, Fixed: netlist.FixedX,
		X: 10, Y: 0.6, Width: 2, Height: 2,
	})
	require.NoError(t, err)
	mv := addCell(t, nl, "mv", 9.5, 1, 2, 2)

	_, err = Run(nl, ar, Options{})
	require.NoError(t, err)

	require.Equal(t, 10.0, nl.Node(fx).X, "fixed-x cell must keep its column")
	require.Equal(t, 1.0, nl.Node(fx).Y, "fixed-x cell still settles onto a row")
	require.False(t, nl.Node(mv).Footprint().Intersects(nl.Node(fx).Footprint()))
}

func TestRunAvoidsFixedCells(t *testing.T) {
	ar := fourRows(t)
	nl := netlist.New(4, 0, 0)

	blk, err := nl.AddNode(netlist.Node{
		Name: "blk", Kind: netlist.KindCell, Fixed: netlist.FixedXY,
		X: 5, Y: 1, Width: 6, Height: 2,
	})
	require.NoError(t, err)
	mv := addCell(t, nl, "mv", 5, 1, 2, 2)

	_, err = Run(nl, ar, Options{})
	require.NoError(t, err)

	require.False(t, nl.Node(mv).Footprint().Intersects(nl.Node(blk).Footprint()))
	require.Equal(t, [2]float64{5, 1}, [2]float64{nl.Node(blk).X, nl.Node(blk).Y})
}

func TestRunAvoidsKeepOutRegions(t *testing.T) {
	ar := arch.New()
	for i := 0; i < 2; i++ {
		ar.AddRow(arch.Row{Bottom: float64(i) * 2, Height: 2, SiteWidth: 1, NumSites: 20})
	}
	def := ar.AddRegion(arch.RegionGroup)
	def.Rects = []arch.Rect{{XMin: 0, YMin: 0, XMax: 20, YMax: 4}}
	ko := ar.AddRegion(arch.RegionKeepOut)
	ko.Rects = []arch.Rect{{XMin: 0, YMin: 0, XMax: 10, YMax: 2}}
	require.NoError(t, ar.Finalize())

	nl := netlist.New(1, 0, 0)
	mv := addCell(t, nl, "mv", 4, 1, 2, 2)

	_, err := Run(nl, ar, Options{})
	require.NoError(t, err)

	fp := nl.Node(mv).Footprint()
	require.False(t, fp.Intersects(ko.Rects[0]), "cell landed inside the keep-out")
}

func TestRunKeepsGroupMembersInside(t *testing.T) {
	ar := arch.New()
	for i := 0; i < 2; i++ {
		ar.AddRow(arch.Row{Bottom: float64(i) * 2, Height: 2, SiteWidth: 1, NumSites: 20})
	}
	def := ar.AddRegion(arch.RegionGroup)
	def.Rects = []arch.Rect{{XMin: 0, YMin: 0, XMax: 20, YMax: 4}}
	grp := ar.AddRegion(arch.RegionGroup)
	grp.Rects = []arch.Rect{{XMin: 10, YMin: 0, XMax: 20, YMax: 2}}
	require.NoError(t, ar.Finalize())

	nl := netlist.New(1, 0, 0)
	mv := addCell(t, nl, "mv", 2, 1, 2, 2)
	nl.Node(mv).RegionID = grp.ID

	_, err := Run(nl, ar, Options{})
	require.NoError(t, err)

	require.True(t, grp.Admits(nl.Node(mv).Footprint()),
		"group member must end up inside its region")
}

func TestRunMultiHeightSpansRows(t *testing.T) {
	ar := fourRows(t)
	nl := netlist.New(2, 0, 0)

	mh := addCell(t, nl, "mh", 5.3, 2.1, 2, 4)

	_, err := Run(nl, ar, Options{})
	require.NoError(t, err)

	n := nl.Node(mh)
	fp := n.Footprint()
	require.Equal(t, 0.0, fp.YMin, "bottom must align to a row boundary")
	require.Equal(t, 4.0, fp.YMax)
	require.Equal(t, fp.XMin, float64(int(fp.XMin)))
}

func TestRunSetsRowOrientationWhenAllowed(t *testing.T) {
	ar := arch.New()
	ar.AddRow(arch.Row{Height: 2, SiteWidth: 1, NumSites: 20, Orient: arch.OrientFS})
	require.NoError(t, ar.Finalize())

	nl := netlist.New(2, 0, 0)
	a := addCell(t, nl, "a", 3, 1, 2, 2)
	nl.Node(a).Allowed = arch.NewOrientationSet(arch.OrientN, arch.OrientFS)
	b := addCell(t, nl, "b", 8, 1, 2, 2)
	nl.Node(b).Allowed = arch.NewOrientationSet(arch.OrientN)

	_, err := Run(nl, ar, Options{})
	require.NoError(t, err)

	require.Equal(t, arch.OrientFS, nl.Node(a).Orient)
	require.Equal(t, arch.OrientN, nl.Node(b).Orient)
}

func TestRunCountsRailMismatches(t *testing.T) {
	ar := arch.New()
	ar.AddRow(arch.Row{
		Height: 2, SiteWidth: 1, NumSites: 20,
		BottomRail: arch.RailVSS, TopRail: arch.RailVDD,
	})
	require.NoError(t, ar.Finalize())

	nl := netlist.New(2, 0, 0)
	bad := addCell(t, nl, "bad", 3, 1, 2, 2)
	nl.Node(bad).BottomRail = arch.RailVDD

	res, err := Run(nl, ar, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, res.RailMismatches)
}

func TestRunRespectsPadding(t *testing.T) {
	ar := fourRows(t)
	nl := netlist.New(2, 0, 0)

	a := addCell(t, nl, "a", 5, 1, 2, 2)
	nl.Node(a).PadRight = 2
	b := addCell(t, nl, "b", 5.5, 1, 2, 2)

	_, err := Run(nl, ar, Options{})
	require.NoError(t, err)

	na, nb := nl.Node(a), nl.Node(b)
	if na.Y == nb.Y {
		gap := (nb.X - 1) - (na.X + 1)
		require.GreaterOrEqual(t, gap, 2.0, "padding must keep the gap open")
	}
}
