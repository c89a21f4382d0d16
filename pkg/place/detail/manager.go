package detail

import (
	"math"
	"sort"

	"github.com/mgrund/gridplace/pkg/arch"
	"github.com/mgrund/gridplace/pkg/netlist"
)

// interval is a blocked span [a, b) on a row.
type interval struct{ a, b float64 }

// manager maintains the legality bookkeeping of a detailed improvement
// run: per-row ordered cell lists, static blockage, and reversible move
// primitives. Every mutation goes through placeAt or swap so the row
// lists never drift from the model.
//
// Only single-height, fully free cells are managed; multi-height, fixed,
// and fixed-x cells contribute blockage and stay put.
type manager struct {
	nl *netlist.Netlist
	ar *arch.Architecture

	rows    [][]int      // managed cell ids per row, sorted by left edge
	blocked [][]interval // static blockage per row
	rowOf   []int        // row index per node id, -1 when unmanaged

	netStamp []int // per-net visit stamps for delta evaluation
	stamp    int
}

func newManager(nl *netlist.Netlist, ar *arch.Architecture) *manager {
	m := &manager{
		nl:       nl,
		ar:       ar,
		rows:     make([][]int, len(ar.Rows)),
		blocked:  make([][]interval, len(ar.Rows)),
		rowOf:    make([]int, nl.NodeCount()),
		netStamp: make([]int, nl.NetCount()),
	}
	for i := range m.rowOf {
		m.rowOf[i] = -1
	}

	for i := 0; i < nl.NodeCount(); i++ {
		n := nl.Node(i)
		if n.Kind != netlist.KindCell {
			continue
		}
		base := m.baseRow(n)
		single := base >= 0 && math.Abs(n.Height-ar.Rows[base].Height) < 1e-9
		if n.Movable() && n.Fixed == netlist.Free && single {
			m.rowOf[i] = base
			m.rows[base] = append(m.rows[base], i)
			continue
		}
		// Fixed, fixed-x, or multi-height: block every overlapped row.
		fp := n.Footprint()
		for ri, row := range ar.Rows {
			if fp.YMin < row.Top() && fp.YMax > row.Bottom {
				m.block(ri, fp.XMin-n.PadLeft, fp.XMax+n.PadRight)
			}
		}
	}

	for _, g := range ar.Regions {
		if g.Kind != arch.RegionKeepOut {
			continue
		}
		for _, rc := range g.Rects {
			for ri, row := range ar.Rows {
				if rc.YMin < row.Top() && rc.YMax > row.Bottom {
					m.block(ri, rc.XMin, rc.XMax)
				}
			}
		}
	}

	for ri := range m.rows {
		m.sortRow(ri)
	}
	return m
}

func (m *manager) baseRow(n *netlist.Node) int {
	if len(m.ar.Rows) == 0 {
		return -1
	}
	return m.ar.RowIndexNear(n.Y - 0.5*n.Height + 0.5*m.ar.Rows[0].Height)
}

func (m *manager) block(ri int, a, b float64) {
	if b <= a {
		return
	}
	m.blocked[ri] = append(m.blocked[ri], interval{a, b})
	sort.Slice(m.blocked[ri], func(i, j int) bool { return m.blocked[ri][i].a < m.blocked[ri][j].a })
}

func (m *manager) sortRow(ri int) {
	nl := m.nl
	sort.SliceStable(m.rows[ri], func(i, j int) bool {
		return nl.Node(m.rows[ri][i]).X < nl.Node(m.rows[ri][j]).X
	})
}

// managed returns the ids of all managed cells in deterministic order.
func (m *manager) managed() []int {
	var out []int
	for i, r := range m.rowOf {
		if r >= 0 {
			out = append(out, i)
		}
	}
	return out
}

func (m *manager) leftEdge(i int) float64 {
	n := m.nl.Node(i)
	return n.X - 0.5*n.Width
}

// indexInRow locates cell i in its row list.
func (m *manager) indexInRow(i int) int {
	for k, id := range m.rows[m.rowOf[i]] {
		if id == i {
			return k
		}
	}
	return -1
}

func (m *manager) remove(i int) {
	ri := m.rowOf[i]
	k := m.indexInRow(i)
	m.rows[ri] = append(m.rows[ri][:k], m.rows[ri][k+1:]...)
}

func (m *manager) insert(i, ri int) {
	x := m.leftEdge(i)
	row := m.rows[ri]
	k := sort.Search(len(row), func(j int) bool { return m.leftEdge(row[j]) >= x })
	row = append(row, 0)
	copy(row[k+1:], row[k:])
	row[k] = i
	m.rows[ri] = row
	m.rowOf[i] = ri
}

// fits reports whether cell i can sit with its left edge at x on row ri,
// checking row bounds, site alignment, static blockage, neighbors, and
// the cell's region. The cell itself is ignored as a neighbor.
func (m *manager) fits(i, ri int, x float64) bool {
	n := m.nl.Node(i)
	row := m.ar.Rows[ri]

	if math.Abs(row.SnapX(x)-x) > 1e-9 {
		return false
	}
	padLeft := x - n.PadLeft
	padRight := x + n.Width + n.PadRight
	if padLeft < row.Left()-1e-9 || padRight > row.Right()+1e-9 {
		return false
	}
	for _, iv := range m.blocked[ri] {
		if iv.a < padRight-1e-9 && padLeft < iv.b-1e-9 {
			return false
		}
	}
	for _, id := range m.rows[ri] {
		if id == i {
			continue
		}
		o := m.nl.Node(id)
		oLeft := o.X - 0.5*o.Width - o.PadLeft
		oRight := o.X + 0.5*o.Width + o.PadRight
		if oLeft < padRight-1e-9 && padLeft < oRight-1e-9 {
			return false
		}
	}

	fp := arch.Rect{
		XMin: x, YMin: row.Bottom,
		XMax: x + n.Width, YMax: row.Bottom + n.Height,
	}
	if g, err := m.ar.Region(n.RegionID); err == nil && !g.Admits(fp) {
		return false
	}
	return true
}

// placeAt moves cell i so its left edge sits at x on row ri. Returns
// false without mutating anything when the position is not legal.
func (m *manager) placeAt(i, ri int, x float64) bool {
	if !m.fits(i, ri, x) {
		return false
	}
	n := m.nl.Node(i)
	m.remove(i)
	n.X = x + 0.5*n.Width
	n.Y = m.ar.Rows[ri].CenterY()
	m.insert(i, ri)
	return true
}

// position captures a cell placement for reverts.
type position struct {
	row  int
	x, y float64
}

func (m *manager) capture(i int) position {
	n := m.nl.Node(i)
	return position{row: m.rowOf[i], x: n.X, y: n.Y}
}

func (m *manager) restore(i int, p position) {
	n := m.nl.Node(i)
	m.remove(i)
	n.X, n.Y = p.x, p.y
	m.insert(i, p.row)
}

// swap exchanges the slots of cells a and b. Returns false and leaves the
// placement untouched when either cell does not fit in the other's slot.
func (m *manager) swap(a, b int) bool {
	pa, pb := m.capture(a), m.capture(b)
	na, nb := m.nl.Node(a), m.nl.Node(b)

	aLeft := pa.x - 0.5*na.Width
	bLeft := pb.x - 0.5*nb.Width

	// Pull both out so they do not see each other as neighbors.
	m.remove(a)
	m.remove(b)
	m.rowOf[a], m.rowOf[b] = -1, -1

	ok := m.fitsDetached(a, pb.row, bLeft) && m.fitsDetached(b, pa.row, aLeft)
	if ok {
		na.X, na.Y = bLeft+0.5*na.Width, m.ar.Rows[pb.row].CenterY()
		nb.X, nb.Y = aLeft+0.5*nb.Width, m.ar.Rows[pa.row].CenterY()
		m.insert(a, pb.row)
		m.insert(b, pa.row)
		return true
	}

	na.X, na.Y = pa.x, pa.y
	nb.X, nb.Y = pb.x, pb.y
	m.insert(a, pa.row)
	m.insert(b, pb.row)
	return false
}

// fitsDetached is fits for a cell currently outside every row list.
func (m *manager) fitsDetached(i, ri int, x float64) bool {
	return m.fits(i, ri, x)
}

// affectedHPWL sums the wirelength of every net touching the given cells,
// each net counted once.
func (m *manager) affectedHPWL(cells ...int) float64 {
	m.stamp++
	var sum float64
	for _, c := range cells {
		for _, pi := range m.nl.Node(c).Pins() {
			net := m.nl.Pin(pi).Net
			if m.netStamp[net] == m.stamp {
				continue
			}
			m.netStamp[net] = m.stamp
			sum += m.nl.Net(net).Weight * m.nl.NetHPWL(net)
		}
	}
	return sum
}

// optimalSpot returns the preferred position for cell i: the center of
// the average bounding box of its nets with the cell's own pins removed.
// ok is false for cells with no external connectivity.
func (m *manager) optimalSpot(i int) (x, y float64, ok bool) {
	m.stamp++
	var sx, sy float64
	var count int
	for _, pi := range m.nl.Node(i).Pins() {
		net := m.nl.Pin(pi).Net
		if m.netStamp[net] == m.stamp {
			continue
		}
		m.netStamp[net] = m.stamp
		box, boxOK := m.nl.NetBox(net, i)
		if !boxOK {
			continue
		}
		sx += 0.5 * (box[0] + box[2])
		sy += 0.5 * (box[1] + box[3])
		count++
	}
	if count == 0 {
		return 0, 0, false
	}
	return sx / float64(count), sy / float64(count), true
}
