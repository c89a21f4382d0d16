package snapshot

import (
	"github.com/mgrund/gridplace/pkg/arch"
	"github.com/mgrund/gridplace/pkg/errors"
	"github.com/mgrund/gridplace/pkg/netlist"
)

// Build validates a snapshot and constructs the run-local netlist and
// architecture. Malformed input (non-horizontal rows, zero-area nodes,
// dangling pin references) surfaces an IMPORT_* error before any
// optimization begins; count mismatches between the sized arenas and the
// populated entities surface a CONSISTENCY_ERROR.
func Build(s Snapshot) (*netlist.Netlist, *arch.Architecture, error) {
	a := arch.New()
	for i, r := range s.Rows {
		if r.Direction != "" && r.Direction != "horizontal" {
			return nil, nil, errors.New(errors.ErrCodeImportRow,
				"row %d: direction %q is not horizontal", i, r.Direction)
		}
		if r.Height <= 0 || r.SiteWidth <= 0 || r.NumSites <= 0 {
			return nil, nil, errors.New(errors.ErrCodeImportRow,
				"row %d: non-positive geometry", i)
		}
		orient := arch.OrientN
		if r.Orient != "" {
			var err error
			if orient, err = arch.ParseOrientation(r.Orient); err != nil {
				return nil, nil, errors.Wrap(errors.ErrCodeImportRow, err, "row %d", i)
			}
		}
		a.AddRow(arch.Row{
			Bottom:       r.Bottom,
			Height:       r.Height,
			SiteWidth:    r.SiteWidth,
			SiteSpacing:  r.SiteSpacing,
			OriginX:      r.OriginX,
			NumSites:     r.NumSites,
			Orient:       orient,
			SiteSymmetry: parseSymmetry(r.Symmetry),
			TopRail:      arch.ParseRail(r.TopRail),
			BottomRail:   arch.ParseRail(r.BotRail),
		})
	}
	if err := a.Finalize(); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeImport, err, "architecture")
	}

	nPins := 0
	for _, e := range s.Nets {
		nPins += len(e.Pins)
	}
	nl := netlist.New(len(s.Nodes), len(s.Nets), nPins)

	siteWidth := a.Rows[0].SiteWidth
	for i, sn := range s.Nodes {
		if sn.Width <= 0 || sn.Height <= 0 {
			return nil, nil, errors.New(errors.ErrCodeImportNode,
				"node %q: zero-area footprint", sn.Name)
		}
		n := netlist.Node{
			Name:       sn.Name,
			X:          sn.X,
			Y:          sn.Y,
			Width:      sn.Width,
			Height:     sn.Height,
			TopRail:    arch.ParseRail(sn.TopRail),
			BottomRail: arch.ParseRail(sn.BotRail),
			RegionID:   sn.Region,
			PadLeft:    float64(sn.PadL) * siteWidth,
			PadRight:   float64(sn.PadR) * siteWidth,
		}
		switch sn.Kind {
		case "", "cell":
			n.Kind = netlist.KindCell
		case "terminal":
			n.Kind = netlist.KindTerminal
			n.Fixed = netlist.FixedXY
		default:
			return nil, nil, errors.New(errors.ErrCodeImportNode,
				"node %q: unknown kind %q", sn.Name, sn.Kind)
		}
		switch sn.Fixed {
		case "x":
			n.Fixed = netlist.FixedX
		case "xy":
			n.Fixed = netlist.FixedXY
		case "":
		default:
			return nil, nil, errors.New(errors.ErrCodeImportNode,
				"node %q: unknown fixed state %q", sn.Name, sn.Fixed)
		}
		if sn.Orient != "" {
			o, err := arch.ParseOrientation(sn.Orient)
			if err != nil {
				return nil, nil, errors.Wrap(errors.ErrCodeImportNode, err, "node %q", sn.Name)
			}
			n.Orient = o
		}
		n.Allowed = arch.NewOrientationSet(n.Orient)
		for _, enc := range sn.Allowed {
			o, err := arch.ParseOrientation(enc)
			if err != nil {
				return nil, nil, errors.Wrap(errors.ErrCodeImportNode, err, "node %q", sn.Name)
			}
			n.Allowed = n.Allowed.Add(o)
		}
		if _, err := nl.AddNode(n); err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeImportNode, err, "node %d", i)
		}
	}
	if nl.NodeCount() != len(s.Nodes) {
		return nil, nil, errors.New(errors.ErrCodeConsistency,
			"expected %d nodes, constructed %d", len(s.Nodes), nl.NodeCount())
	}

	for _, se := range s.Nets {
		if len(se.Pins) == 0 {
			return nil, nil, errors.New(errors.ErrCodeImport,
				"net %q has no pins", se.Name)
		}
		net := nl.AddNet(se.Name, se.Weight)
		for _, sp := range se.Pins {
			node, ok := nl.NodeByName(sp.Node)
			if !ok {
				return nil, nil, errors.New(errors.ErrCodeImportPin,
					"net %q: pin references unknown node %q", se.Name, sp.Node)
			}
			if _, err := nl.Connect(node, net, netlist.Pin{
				OffsetX: sp.OffsetX,
				OffsetY: sp.OffsetY,
				Width:   sp.Width,
				Height:  sp.Height,
				Layer:   sp.Layer,
			}); err != nil {
				return nil, nil, errors.Wrap(errors.ErrCodeConsistency, err,
					"net %q: connect pin", se.Name)
			}
		}
	}
	if nl.NetCount() != len(s.Nets) || nl.PinCount() != nPins {
		return nil, nil, errors.New(errors.ErrCodeConsistency,
			"expected %d nets and %d pins, constructed %d and %d",
			len(s.Nets), nPins, nl.NetCount(), nl.PinCount())
	}

	if err := buildRegions(s, nl, a); err != nil {
		return nil, nil, err
	}

	// Region ids resolve only after buildRegions has installed the list.
	for i := 0; i < nl.NodeCount(); i++ {
		n := nl.Node(i)
		if _, err := a.Region(n.RegionID); err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeImportNode, err,
				"node %q references region %d", n.Name, n.RegionID)
		}
	}
	return nl, a, nil
}

// buildRegions installs the default region plus any group/keep-out regions
// from the snapshot. Group members whose region id is still the default are
// reassigned to the group, mirroring the database convention that the first
// group claiming an instance wins.
func buildRegions(s Snapshot, nl *netlist.Netlist, a *arch.Architecture) error {
	for _, sr := range s.Regions {
		var kind arch.RegionKind
		switch sr.Kind {
		case "group":
			kind = arch.RegionGroup
		case "keepout":
			kind = arch.RegionKeepOut
		default:
			return errors.New(errors.ErrCodeImport, "region kind %q unknown", sr.Kind)
		}
		if len(sr.Rects) == 0 {
			return errors.New(errors.ErrCodeImport, "region of kind %q has no rectangles", sr.Kind)
		}
		g := a.AddRegion(kind)
		for _, rc := range sr.Rects {
			g.Rects = append(g.Rects, arch.Rect{
				XMin: max(rc[0], a.BBox.XMin),
				YMin: max(rc[1], a.BBox.YMin),
				XMax: min(rc[2], a.BBox.XMax),
				YMax: min(rc[3], a.BBox.YMax),
			})
		}
		g.BBox = g.Rects[0]
		for _, rc := range g.Rects[1:] {
			g.BBox = g.BBox.Union(rc)
		}
		if kind == arch.RegionKeepOut {
			if len(sr.Members) != 0 {
				return errors.New(errors.ErrCodeImport, "keep-out region has members")
			}
			continue
		}
		for _, name := range sr.Members {
			i, ok := nl.NodeByName(name)
			if !ok {
				return errors.New(errors.ErrCodeImportPin,
					"region member %q is not a node", name)
			}
			if nl.Node(i).RegionID == 0 {
				nl.Node(i).RegionID = g.ID
			}
		}
	}
	return nil
}

// Export converts the final model state back into the boundary format.
// Only real cells are exported; terminals and fillers stay internal.
func Export(nl *netlist.Netlist, m Metrics) Placement {
	p := Placement{Metrics: m}
	for i := 0; i < nl.NodeCount(); i++ {
		n := nl.Node(i)
		if n.Kind != netlist.KindCell {
			continue
		}
		p.Cells = append(p.Cells, PlacedCell{
			Name:   n.Name,
			X:      n.X,
			Y:      n.Y,
			Orient: n.Orient.String(),
		})
	}
	return p
}

func parseSymmetry(s string) arch.Symmetry {
	var sym arch.Symmetry
	for _, r := range s {
		switch r {
		case 'X', 'x':
			sym |= arch.SymmetryX
		case 'Y', 'y':
			sym |= arch.SymmetryY
		case '9':
			sym |= arch.SymmetryRot90
		}
	}
	return sym
}
