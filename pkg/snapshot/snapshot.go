// Package snapshot defines the serialized hand-off format between the
// external physical database and the placement engine.
//
// The database importer/exporter itself lives outside this module; what
// crosses the boundary is a JSON snapshot of the netlist and architecture
// on the way in, and a placement (positions, orientations, metrics) on the
// way out. The format is human-readable and designed for round-trip
// fidelity: import → place → export preserves every identity.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
)

// Snapshot is the input side of the boundary: one netlist plus one
// architecture, as exported by the physical database.
type Snapshot struct {
	Nodes   []Node   `json:"nodes"`
	Nets    []Net    `json:"nets"`
	Rows    []Row    `json:"rows"`
	Regions []Region `json:"regions,omitempty"`
}

// Node is one instance or terminal. Position is the footprint center.
// Orientation fields use the external database encoding ("R0", "MX", ...).
type Node struct {
	Name    string   `json:"name"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
	Fixed   string   `json:"fixed,omitempty"`   // "", "x", "xy"
	Kind    string   `json:"kind,omitempty"`    // "cell" (default), "terminal"
	Orient  string   `json:"orient,omitempty"`  // external encoding, default R0
	Allowed []string `json:"allowed,omitempty"` // external encodings
	TopRail string   `json:"top_rail,omitempty"`
	BotRail string   `json:"bottom_rail,omitempty"`
	Region  int      `json:"region,omitempty"`
	PadL    int      `json:"pad_left,omitempty"`  // left padding in sites
	PadR    int      `json:"pad_right,omitempty"` // right padding in sites
}

// Net is a named multi-pin connection.
type Net struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight,omitempty"`
	Pins   []Pin   `json:"pins"`
}

// Pin attaches a net to a node at an offset from the node center.
type Pin struct {
	Node    string  `json:"node"`
	OffsetX float64 `json:"dx"`
	OffsetY float64 `json:"dy"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
	Layer   int     `json:"layer,omitempty"`
}

// Row describes one site row. Direction must be horizontal; the import
// rejects anything else.
type Row struct {
	Bottom      float64 `json:"bottom"`
	Height      float64 `json:"height"`
	SiteWidth   float64 `json:"site_width"`
	SiteSpacing float64 `json:"site_spacing,omitempty"`
	OriginX     float64 `json:"origin_x"`
	NumSites    int     `json:"num_sites"`
	Direction   string  `json:"direction,omitempty"` // "horizontal" (default)
	Orient      string  `json:"orient,omitempty"`
	Symmetry    string  `json:"symmetry,omitempty"` // subset of "XY9"
	TopRail     string  `json:"top_rail,omitempty"`
	BotRail     string  `json:"bottom_rail,omitempty"`
}

// Region describes a placement group or keep-out area.
type Region struct {
	Kind    string      `json:"kind"` // "group" or "keepout"
	Rects   [][4]float64 `json:"rects"`
	Members []string    `json:"members,omitempty"`
}

// Placement is the output side of the boundary.
type Placement struct {
	Cells   []PlacedCell `json:"cells"`
	Metrics Metrics      `json:"metrics"`
}

// PlacedCell is the final position and orientation of one cell.
type PlacedCell struct {
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Orient string  `json:"orient"`
}

// Metrics is the per-run report handed back with the placement.
type Metrics struct {
	RunID         string  `json:"run_id,omitempty"`
	Iterations    int     `json:"iterations"`
	HPWLBefore    float64 `json:"hpwl_before"`
	HPWLAfter     float64 `json:"hpwl_after"`
	TerminalState string  `json:"terminal_state"`
}

// ReadFile reads and decodes a snapshot from a JSON file.
func ReadFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a snapshot from an io.Reader.
func Read(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// Marshal encodes a snapshot as indented JSON with nodes sorted by name
// for deterministic output. The caller's node order is left untouched.
func Marshal(s Snapshot) ([]byte, error) {
	s.Nodes = slices.Clone(s.Nodes)
	slices.SortFunc(s.Nodes, func(a, b Node) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return json.MarshalIndent(s, "", "  ")
}

// WritePlacementFile writes a placement to a JSON file with cells sorted by
// name. The file is created with 0644 permissions.
func WritePlacementFile(p Placement, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WritePlacement(p, f)
}

// WritePlacement encodes a placement as indented JSON to w.
func WritePlacement(p Placement, w io.Writer) error {
	slices.SortFunc(p.Cells, func(a, b PlacedCell) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode placement: %w", err)
	}
	return nil
}

// ReadPlacement decodes a placement from an io.Reader.
func ReadPlacement(r io.Reader) (Placement, error) {
	var p Placement
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Placement{}, fmt.Errorf("decode placement: %w", err)
	}
	return p, nil
}
