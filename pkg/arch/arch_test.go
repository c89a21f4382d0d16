package arch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testArch(t *testing.T) *Architecture {
	t.Helper()
	a := New()
	for i := 0; i < 4; i++ {
		a.AddRow(Row{
			Bottom:    float64(i) * 2,
			Height:    2,
			SiteWidth: 1,
			NumSites:  20,
		})
	}
	require.NoError(t, a.Finalize())
	return a
}

func TestFinalizeSortsRowsAndComputesBBox(t *testing.T) {
	a := New()
	a.AddRow(Row{Bottom: 4, Height: 2, SiteWidth: 1, NumSites: 10})
	a.AddRow(Row{Bottom: 0, Height: 2, SiteWidth: 1, NumSites: 10})
	a.AddRow(Row{Bottom: 2, Height: 2, SiteWidth: 1, NumSites: 10})
	require.NoError(t, a.Finalize())

	require.True(t, a.Finalized())
	for i := 1; i < len(a.Rows); i++ {
		require.Less(t, a.Rows[i-1].Bottom, a.Rows[i].Bottom)
	}
	require.Equal(t, Rect{XMin: 0, YMin: 0, XMax: 10, YMax: 6}, a.BBox)
}

func TestFinalizeSeedsDefaultRegion(t *testing.T) {
	a := testArch(t)
	require.Len(t, a.Regions, 1)

	def, err := a.Region(0)
	require.NoError(t, err)
	require.Equal(t, RegionGroup, def.Kind)
	require.Equal(t, a.BBox, def.Rects[0])
}

func TestFinalizeNoRows(t *testing.T) {
	require.ErrorIs(t, New().Finalize(), ErrNoRows)
}

func TestFinalizeDefaultsSiteSpacing(t *testing.T) {
	a := New()
	a.AddRow(Row{Bottom: 0, Height: 2, SiteWidth: 1, NumSites: 10})
	require.NoError(t, a.Finalize())

	// An omitted spacing falls back to the site width, so the row keeps its
	// full extent instead of collapsing to a zero-width bounding box.
	require.Equal(t, 1.0, a.Rows[0].SiteSpacing)
	require.Equal(t, 10, a.Rows[0].NumSites)
	require.Equal(t, 10.0, a.Rows[0].Right())
	require.Equal(t, Rect{XMin: 0, YMin: 0, XMax: 10, YMax: 2}, a.BBox)
}

func TestFinalizeClampsRowSpan(t *testing.T) {
	a := New()
	a.AddRow(Row{Bottom: 0, Height: 2, SiteWidth: 1, NumSites: 10})
	// Wider row; the span survives because the bounding box covers it.
	a.AddRow(Row{Bottom: 2, Height: 2, SiteWidth: 1, NumSites: 20})
	require.NoError(t, a.Finalize())

	require.Equal(t, 10, a.Rows[0].NumSites)
	require.Equal(t, 20, a.Rows[1].NumSites)
}

func TestRowSnapX(t *testing.T) {
	r := Row{Bottom: 0, Height: 2, SiteWidth: 1, SiteSpacing: 1, OriginX: 0, NumSites: 10}

	require.Equal(t, 3.0, r.SnapX(3.4))
	require.Equal(t, 4.0, r.SnapX(3.6))
	require.Equal(t, 0.0, r.SnapX(-5))
	require.Equal(t, 10.0, r.SnapX(25))
}

func TestRowIndexNear(t *testing.T) {
	a := testArch(t)

	require.Equal(t, 0, a.RowIndexNear(-10))
	require.Equal(t, 0, a.RowIndexNear(1))
	require.Equal(t, 1, a.RowIndexNear(3.2))
	require.Equal(t, 3, a.RowIndexNear(100))
}

func TestRowSpan(t *testing.T) {
	a := testArch(t)

	lo, hi := a.RowSpan(0, 2)
	require.Equal(t, 0, lo)
	require.Equal(t, 0, hi)

	lo, hi = a.RowSpan(1, 4)
	require.Equal(t, 1, lo)
	require.Equal(t, 2, hi)
}

func TestRegionAdmits(t *testing.T) {
	group := Region{Kind: RegionGroup, Rects: []Rect{{XMin: 0, YMin: 0, XMax: 10, YMax: 4}}}
	require.True(t, group.Admits(Rect{XMin: 1, YMin: 0, XMax: 3, YMax: 2}))
	require.False(t, group.Admits(Rect{XMin: 9, YMin: 0, XMax: 11, YMax: 2}))

	keepOut := Region{Kind: RegionKeepOut, Rects: []Rect{{XMin: 4, YMin: 0, XMax: 6, YMax: 4}}}
	require.True(t, keepOut.Admits(Rect{XMin: 0, YMin: 0, XMax: 2, YMax: 2}))
	require.False(t, keepOut.Admits(Rect{XMin: 5, YMin: 1, XMax: 7, YMax: 3}))
	// Touching edges do not intersect.
	require.True(t, keepOut.Admits(Rect{XMin: 6, YMin: 0, XMax: 8, YMax: 2}))
}

func TestOrientationRoundTrip(t *testing.T) {
	for o := Orientation(0); o < numOrientations; o++ {
		parsed, err := ParseOrientation(o.String())
		require.NoError(t, err)
		require.Equal(t, o, parsed)
	}

	_, err := ParseOrientation("R45")
	require.ErrorIs(t, err, ErrUnknownOrientation)
}

func TestSymmetryAllowedOrientations(t *testing.T) {
	set := Symmetry(0).AllowedOrientations()
	require.Equal(t, []Orientation{OrientN}, set.Orientations())

	set = SymmetryX.AllowedOrientations()
	require.True(t, set.Has(OrientFS))
	require.False(t, set.Has(OrientFN))

	set = (SymmetryX | SymmetryY).AllowedOrientations()
	require.ElementsMatch(t,
		[]Orientation{OrientN, OrientFN, OrientFS, OrientS},
		set.Orientations())
}

func TestRailCompatible(t *testing.T) {
	require.True(t, RailVDD.Compatible(RailVDD))
	require.False(t, RailVDD.Compatible(RailVSS))
	require.True(t, RailUnknown.Compatible(RailVSS))
	require.True(t, ParseRail("noise").Compatible(RailVDD))
}
