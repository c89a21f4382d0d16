package arch

import "errors"

// ErrUnknownOrientation is returned by ParseOrientation when the external
// encoding does not name one of the eight legal orientations.
var ErrUnknownOrientation = errors.New("arch: unknown orientation encoding")

// Orientation is one of the eight legal cell/row orientations. It is a
// closed enum; the external database encoding ("R0", "MX", ...) crosses the
// boundary only through the translation table below.
type Orientation uint8

const (
	// OrientN is the natural (north) orientation.
	OrientN Orientation = iota
	// OrientFN is flipped about the y axis.
	OrientFN
	// OrientFS is flipped about the x axis.
	OrientFS
	// OrientS is rotated 180 degrees.
	OrientS
	// OrientE is rotated 90 degrees.
	OrientE
	// OrientFE is flipped and rotated 90 degrees.
	OrientFE
	// OrientW is rotated 270 degrees.
	OrientW
	// OrientFW is flipped and rotated 270 degrees.
	OrientFW

	numOrientations = 8
)

// orientEncodings is the single bidirectional translation table between the
// internal enum and the external database encoding. Index order matches the
// Orientation constants.
var orientEncodings = [numOrientations]string{
	OrientN:  "R0",
	OrientFN: "MY",
	OrientFS: "MX",
	OrientS:  "R180",
	OrientE:  "R90",
	OrientFE: "MXR90",
	OrientW:  "R270",
	OrientFW: "MYR90",
}

// String returns the external database encoding of the orientation.
func (o Orientation) String() string {
	if o >= numOrientations {
		return "R0"
	}
	return orientEncodings[o]
}

// ParseOrientation translates an external database encoding into an
// Orientation. Returns ErrUnknownOrientation for anything outside the table.
func ParseOrientation(s string) (Orientation, error) {
	for o, enc := range orientEncodings {
		if enc == s {
			return Orientation(o), nil
		}
	}
	return OrientN, ErrUnknownOrientation
}

// OrientationSet is a bit set of allowed orientations.
type OrientationSet uint8

// NewOrientationSet builds a set from the given orientations.
func NewOrientationSet(orients ...Orientation) OrientationSet {
	var s OrientationSet
	for _, o := range orients {
		s = s.Add(o)
	}
	return s
}

// Add returns the set with o included.
func (s OrientationSet) Add(o Orientation) OrientationSet {
	return s | 1<<o
}

// Has reports whether o is a member of the set.
func (s OrientationSet) Has(o Orientation) bool {
	return s&(1<<o) != 0
}

// Empty reports whether the set has no members.
func (s OrientationSet) Empty() bool { return s == 0 }

// Orientations returns the members of the set in enum order.
func (s OrientationSet) Orientations() []Orientation {
	var out []Orientation
	for o := Orientation(0); o < numOrientations; o++ {
		if s.Has(o) {
			out = append(out, o)
		}
	}
	return out
}

// Symmetry describes the symmetry flags of a site, taken from the
// architecture snapshot. Symmetric sites admit flipped orientations.
type Symmetry uint8

const (
	// SymmetryX allows flipping about the x axis.
	SymmetryX Symmetry = 1 << iota
	// SymmetryY allows flipping about the y axis.
	SymmetryY
	// SymmetryRot90 allows 90-degree rotations.
	SymmetryRot90
)

// Has reports whether the flag f is set.
func (s Symmetry) Has(f Symmetry) bool { return s&f != 0 }

// AllowedOrientations derives the orientation set a cell with these
// symmetries may take, starting from the natural orientation.
func (s Symmetry) AllowedOrientations() OrientationSet {
	set := NewOrientationSet(OrientN)
	switch {
	case s.Has(SymmetryX) && s.Has(SymmetryY):
		set = set.Add(OrientFN).Add(OrientFS).Add(OrientS)
	case s.Has(SymmetryX):
		set = set.Add(OrientFS)
	case s.Has(SymmetryY):
		set = set.Add(OrientFN)
	}
	return set
}

// Rail is a power-rail classification for the top or bottom edge of a cell
// or row.
type Rail uint8

const (
	// RailUnknown means no rail requirement could be derived.
	RailUnknown Rail = iota
	// RailVDD is the power rail.
	RailVDD
	// RailVSS is the ground rail.
	RailVSS
)

// String returns the snapshot encoding of the rail.
func (r Rail) String() string {
	switch r {
	case RailVDD:
		return "VDD"
	case RailVSS:
		return "VSS"
	default:
		return "UNK"
	}
}

// ParseRail translates a snapshot encoding into a Rail. Unrecognized values
// map to RailUnknown; rail alignment stays best-effort downstream.
func ParseRail(s string) Rail {
	switch s {
	case "VDD":
		return RailVDD
	case "VSS":
		return RailVSS
	default:
		return RailUnknown
	}
}

// Compatible reports whether two rail requirements can face each other.
// Unknown matches anything.
func (r Rail) Compatible(other Rail) bool {
	return r == RailUnknown || other == RailUnknown || r == other
}
