// Package netlist holds the in-memory model of the circuit being placed:
// nodes (cells, terminals, fillers), nets, and the pins connecting them.
//
// The model is arena-indexed: nodes, nets, and pins live in flat slices and
// reference each other by index. A side map resolves external instance
// names to node indices; no pointers cross the run's ownership boundary.
// The model is built once per run, mutated in place by the placement
// stages, and discarded after export.
package netlist

import (
	"errors"

	"github.com/mgrund/gridplace/pkg/arch"
)

var (
	// ErrInvalidNodeName is returned by AddNode when the name is empty.
	ErrInvalidNodeName = errors.New("netlist: node name must not be empty")

	// ErrDuplicateNodeName is returned by AddNode when a node with the
	// same external name already exists.
	ErrDuplicateNodeName = errors.New("netlist: duplicate node name")

	// ErrUnknownNode is returned when a node index or name does not
	// resolve to a node.
	ErrUnknownNode = errors.New("netlist: unknown node")

	// ErrUnknownNet is returned when a net index is out of range.
	ErrUnknownNet = errors.New("netlist: unknown net")
)

// FixedState describes how much freedom a node has during placement.
type FixedState uint8

const (
	// Free nodes move in both axes.
	Free FixedState = iota
	// FixedX nodes keep their x coordinate but may change rows.
	FixedX
	// FixedXY nodes never move. Terminals are always FixedXY.
	FixedXY
)

// Kind distinguishes placeable cells from boundary terminals and the
// connectivity-free filler cells inserted by the global placer.
type Kind uint8

const (
	// KindCell is a placeable instance.
	KindCell Kind = iota
	// KindTerminal is a fixed boundary terminal.
	KindTerminal
	// KindFiller is a density-balancing dummy cell with no pins.
	KindFiller
)

// Node is one placeable or fixed object. Position is the center of the
// footprint.
type Node struct {
	ID   int
	Name string

	X, Y          float64
	Width, Height float64

	Fixed FixedState
	Kind  Kind

	Allowed arch.OrientationSet
	Orient  arch.Orientation

	TopRail    arch.Rail
	BottomRail arch.Rail

	RegionID int

	// Padding in absolute units added to the left/right of the footprint
	// during legalization and spacing checks.
	PadLeft, PadRight float64

	pins []int
}

// Movable reports whether the placement stages may move this node at all.
func (n *Node) Movable() bool {
	return n.Fixed != FixedXY && n.Kind != KindTerminal
}

// Footprint returns the axis-aligned bounds of the node at its current
// position, excluding padding.
func (n *Node) Footprint() arch.Rect {
	return arch.Rect{
		XMin: n.X - 0.5*n.Width,
		YMin: n.Y - 0.5*n.Height,
		XMax: n.X + 0.5*n.Width,
		YMax: n.Y + 0.5*n.Height,
	}
}

// PaddedWidth returns the width the node occupies on a row, including
// padding on both sides.
func (n *Node) PaddedWidth() float64 { return n.PadLeft + n.Width + n.PadRight }

// Pins returns the indices of the node's pins. Read-only view.
func (n *Node) Pins() []int { return n.pins }

// Net is a multi-pin connection. Pin order carries no meaning.
type Net struct {
	ID     int
	Name   string
	Weight float64

	pins []int
}

// Pins returns the indices of the net's pins. Read-only view.
func (e *Net) Pins() []int { return e.pins }

// Pin connects one node to one net at a fixed offset from the node center.
// Layer is advisory; the optimizer ignores it.
type Pin struct {
	ID   int
	Node int
	Net  int

	OffsetX, OffsetY float64
	Width, Height    float64
	Layer            int
}

// Netlist is the arena owning all nodes, nets, and pins of one run.
type Netlist struct {
	nodes  []Node
	nets   []Net
	pins   []Pin
	byName map[string]int
}

// New returns an empty netlist, optionally pre-sizing the arenas.
func New(nodeHint, netHint, pinHint int) *Netlist {
	return &Netlist{
		nodes:  make([]Node, 0, nodeHint),
		nets:   make([]Net, 0, netHint),
		pins:   make([]Pin, 0, pinHint),
		byName: make(map[string]int, nodeHint),
	}
}

// AddNode appends a node and indexes it by name. The node's ID is its arena
// index. Filler cells may share the empty name and are not indexed.
func (nl *Netlist) AddNode(n Node) (int, error) {
	if n.Kind != KindFiller {
		if n.Name == "" {
			return 0, ErrInvalidNodeName
		}
		if _, exists := nl.byName[n.Name]; exists {
			return 0, ErrDuplicateNodeName
		}
	}
	n.ID = len(nl.nodes)
	if n.Allowed.Empty() {
		n.Allowed = arch.NewOrientationSet(arch.OrientN)
	}
	nl.nodes = append(nl.nodes, n)
	if n.Kind != KindFiller {
		nl.byName[n.Name] = n.ID
	}
	return n.ID, nil
}

// AddNet appends a net with the given name and weight and returns its index.
// Weights below or equal to zero are treated as 1.
func (nl *Netlist) AddNet(name string, weight float64) int {
	if weight <= 0 {
		weight = 1
	}
	id := len(nl.nets)
	nl.nets = append(nl.nets, Net{ID: id, Name: name, Weight: weight})
	return id
}

// Connect creates a pin joining node and net. Returns the pin index.
func (nl *Netlist) Connect(node, net int, p Pin) (int, error) {
	if node < 0 || node >= len(nl.nodes) {
		return 0, ErrUnknownNode
	}
	if net < 0 || net >= len(nl.nets) {
		return 0, ErrUnknownNet
	}
	p.ID = len(nl.pins)
	p.Node = node
	p.Net = net
	nl.pins = append(nl.pins, p)
	nl.nodes[node].pins = append(nl.nodes[node].pins, p.ID)
	nl.nets[net].pins = append(nl.nets[net].pins, p.ID)
	return p.ID, nil
}

// Node returns the node at index i. The pointer refers into the arena, so
// position updates are visible to every stage.
func (nl *Netlist) Node(i int) *Node { return &nl.nodes[i] }

// Net returns the net at index i.
func (nl *Netlist) Net(i int) *Net { return &nl.nets[i] }

// Pin returns the pin at index i.
func (nl *Netlist) Pin(i int) *Pin { return &nl.pins[i] }

// NodeByName resolves an external instance name to its arena index.
func (nl *Netlist) NodeByName(name string) (int, bool) {
	i, ok := nl.byName[name]
	return i, ok
}

// NodeCount returns the number of nodes, fillers included.
func (nl *Netlist) NodeCount() int { return len(nl.nodes) }

// NetCount returns the number of nets.
func (nl *Netlist) NetCount() int { return len(nl.nets) }

// PinCount returns the number of pins.
func (nl *Netlist) PinCount() int { return len(nl.pins) }

// Movable returns the indices of nodes the placement stages may move,
// fillers excluded.
func (nl *Netlist) Movable() []int {
	var out []int
	for i := range nl.nodes {
		if nl.nodes[i].Kind == KindCell && nl.nodes[i].Movable() {
			out = append(out, i)
		}
	}
	return out
}

// MovableArea returns the total footprint area of movable cells.
func (nl *Netlist) MovableArea() float64 {
	var sum float64
	for i := range nl.nodes {
		if nl.nodes[i].Kind == KindCell && nl.nodes[i].Movable() {
			sum += nl.nodes[i].Width * nl.nodes[i].Height
		}
	}
	return sum
}

// DropFillers removes every filler node. Fillers carry no pins, so the
// arenas stay consistent; node IDs of real cells are preserved by keeping
// fillers at the tail of the arena.
func (nl *Netlist) DropFillers() {
	end := len(nl.nodes)
	for end > 0 && nl.nodes[end-1].Kind == KindFiller {
		end--
	}
	nl.nodes = nl.nodes[:end]
}

// PinPosition returns the absolute position of pin i given its owning
// node's current position.
func (nl *Netlist) PinPosition(i int) (x, y float64) {
	p := &nl.pins[i]
	n := &nl.nodes[p.Node]
	return n.X + p.OffsetX, n.Y + p.OffsetY
}
