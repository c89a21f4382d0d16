package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mgrund/gridplace/pkg/arch"
	"github.com/mgrund/gridplace/pkg/errors"
	"github.com/mgrund/gridplace/pkg/netlist"
)

func validSnapshot() Snapshot {
	return Snapshot{
		Rows: []Row{
			{Bottom: 0, Height: 2, SiteWidth: 1, NumSites: 20},
			{Bottom: 2, Height: 2, SiteWidth: 1, NumSites: 20},
		},
		Nodes: []Node{
			{Name: "t0", X: 1, Y: 1, Width: 1, Height: 1, Kind: "terminal"},
			{Name: "a", X: 5, Y: 1, Width: 2, Height: 2, Allowed: []string{"MY"}},
			{Name: "b", X: 9, Y: 3, Width: 2, Height: 2, PadL: 1},
		},
		Nets: []Net{
			{Name: "n0", Weight: 2, Pins: []Pin{{Node: "t0"}, {Node: "a", OffsetX: 0.5}}},
			{Name: "n1", Pins: []Pin{{Node: "a"}, {Node: "b"}}},
		},
	}
}

func TestBuildValidSnapshot(t *testing.T) {
	nl, a, err := Build(validSnapshot())
	require.NoError(t, err)

	require.True(t, a.Finalized())
	require.Len(t, a.Rows, 2)
	require.Equal(t, 3, nl.NodeCount())
	require.Equal(t, 2, nl.NetCount())
	require.Equal(t, 4, nl.PinCount())

	term, ok := nl.NodeByName("t0")
	require.True(t, ok)
	require.Equal(t, netlist.KindTerminal, nl.Node(term).Kind)
	require.False(t, nl.Node(term).Movable())

	ai, _ := nl.NodeByName("a")
	require.True(t, nl.Node(ai).Allowed.Has(arch.OrientFN))
	require.True(t, nl.Node(ai).Allowed.Has(arch.OrientN))

	bi, _ := nl.NodeByName("b")
	require.Equal(t, 1.0, nl.Node(bi).PadLeft, "padding converts sites to units")

	require.Equal(t, 2.0, nl.Net(0).Weight)
}

func TestBuildRejectsVerticalRow(t *testing.T) {
	s := validSnapshot()
	s.Rows[0].Direction = "vertical"
	_, _, err := Build(s)
	require.True(t, errors.Is(err, errors.ErrCodeImportRow))
}

func TestBuildRejectsZeroAreaNode(t *testing.T) {
	s := validSnapshot()
	s.Nodes[1].Width = 0
	_, _, err := Build(s)
	require.True(t, errors.Is(err, errors.ErrCodeImportNode))
}

func TestBuildRejectsUnknownOrientation(t *testing.T) {
	s := validSnapshot()
	s.Nodes[1].Orient = "R45"
	_, _, err := Build(s)
	require.True(t, errors.Is(err, errors.ErrCodeImportNode))
}

func TestBuildRejectsDanglingPin(t *testing.T) {
	s := validSnapshot()
	s.Nets[0].Pins[0].Node = "ghost"
	_, _, err := Build(s)
	require.True(t, errors.Is(err, errors.ErrCodeImportPin))
}

func TestBuildRejectsEmptyNet(t *testing.T) {
	s := validSnapshot()
	s.Nets = append(s.Nets, Net{Name: "empty"})
	_, _, err := Build(s)
	require.True(t, errors.Is(err, errors.ErrCodeImport))
}

func TestBuildRejectsUnknownRegionID(t *testing.T) {
	s := validSnapshot()
	s.Nodes[1].Region = 7 // only the default region 0 exists
	_, _, err := Build(s)
	require.True(t, errors.Is(err, errors.ErrCodeImportNode))
}

func TestBuildRejectsDuplicateNode(t *testing.T) {
	s := validSnapshot()
	s.Nodes = append(s.Nodes, s.Nodes[1])
	_, _, err := Build(s)
	require.True(t, errors.Is(err, errors.ErrCodeImportNode))
}

func TestBuildRegions(t *testing.T) {
	s := validSnapshot()
	s.Regions = []Region{
		{Kind: "group", Rects: [][4]float64{{0, 0, 10, 4}}, Members: []string{"a"}},
		{Kind: "keepout", Rects: [][4]float64{{15, 0, 18, 4}}},
	}

	nl, a, err := Build(s)
	require.NoError(t, err)
	require.Len(t, a.Regions, 3, "default region plus two from the snapshot")

	ai, _ := nl.NodeByName("a")
	require.Equal(t, 1, nl.Node(ai).RegionID)
	bi, _ := nl.NodeByName("b")
	require.Equal(t, 0, nl.Node(bi).RegionID)

	keepOut, err := a.Region(2)
	require.NoError(t, err)
	require.Equal(t, arch.RegionKeepOut, keepOut.Kind)
}

func TestBuildRejectsKeepOutMembers(t *testing.T) {
	s := validSnapshot()
	s.Regions = []Region{
		{Kind: "keepout", Rects: [][4]float64{{15, 0, 18, 4}}, Members: []string{"a"}},
	}
	_, _, err := Build(s)
	require.True(t, errors.Is(err, errors.ErrCodeImport))
}

func TestBuildClampsRegionRects(t *testing.T) {
	s := validSnapshot()
	s.Regions = []Region{
		{Kind: "group", Rects: [][4]float64{{-5, -5, 100, 100}}, Members: []string{"a"}},
	}

	_, a, err := Build(s)
	require.NoError(t, err)
	g, err := a.Region(1)
	require.NoError(t, err)
	require.Equal(t, a.BBox, g.Rects[0])
}

func TestExportSkipsTerminals(t *testing.T) {
	nl, _, err := Build(validSnapshot())
	require.NoError(t, err)

	p := Export(nl, Metrics{TerminalState: "legalized"})
	require.Len(t, p.Cells, 2)
	for _, c := range p.Cells {
		require.NotEqual(t, "t0", c.Name)
		require.NotEmpty(t, c.Orient)
	}
	require.Equal(t, "legalized", p.Metrics.TerminalState)
}
