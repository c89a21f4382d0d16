package detail

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
)

// maxMatchingSet bounds the assignment size per cluster; the Hungarian
// solve is cubic in it.
const maxMatchingSet = 32

// sizeKey groups interchangeable cells: identical footprint, padding, and
// region. Cells in the same group can trade slots without breaking
// legality.
type sizeKey struct {
	width, height     float64
	padLeft, padRight float64
	region            int
}

// cluster is one independent set of interchangeable cells together with
// the slots (their current positions) to redistribute.
type cluster struct {
	cells []int
	slots []position
	perm  []int // filled by solve: cells[c] moves to slots[perm[c]]
	gain  float64
}

// passMatching runs one matching pass: cells are grouped into independent
// sets of interchangeable, net-disjoint cells, each set's minimum-cost
// assignment is solved in parallel, and improving assignments are applied
// serially in deterministic order.
func (d *improver) passMatching(ctx context.Context) (int, error) {
	clusters := d.buildClusters()
	if len(clusters) == 0 {
		return 0, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Parallelism)
	for _, cl := range clusters {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d.solveCluster(cl)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var moves int
	for _, cl := range clusters {
		if cl.gain <= improveEps {
			continue
		}
		moves += d.applyCluster(cl)
	}
	return moves, nil
}

// buildClusters partitions managed cells into net-disjoint clusters of
// interchangeable cells, chunked spatially.
func (d *improver) buildClusters() []*cluster {
	groups := make(map[sizeKey][]int)
	var keys []sizeKey
	for _, i := range d.m.managed() {
		n := d.nl.Node(i)
		k := sizeKey{
			width: n.Width, height: n.Height,
			padLeft: n.PadLeft, padRight: n.PadRight,
			region: n.RegionID,
		}
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.width != b.width {
			return a.width < b.width
		}
		if a.height != b.height {
			return a.height < b.height
		}
		return a.region < b.region
	})

	var clusters []*cluster
	netSeen := make(map[int]bool)
	for _, k := range keys {
		ids := groups[k]
		sort.Slice(ids, func(i, j int) bool {
			a, b := d.nl.Node(ids[i]), d.nl.Node(ids[j])
			if a.X != b.X {
				return a.X < b.X
			}
			return a.ID < b.ID
		})

		var current *cluster
		for _, i := range ids {
			if d.sharesNet(i, netSeen) {
				continue
			}
			d.markNets(i, netSeen)
			if current == nil || len(current.cells) >= maxMatchingSet {
				current = &cluster{}
				clusters = append(clusters, current)
			}
			current.cells = append(current.cells, i)
			current.slots = append(current.slots, d.m.capture(i))
		}
		// Net disjointness only needs to hold inside a cluster.
		for n := range netSeen {
			delete(netSeen, n)
		}
	}

	out := clusters[:0]
	for _, cl := range clusters {
		if len(cl.cells) >= 2 {
			out = append(out, cl)
		}
	}
	return out
}

func (d *improver) sharesNet(i int, seen map[int]bool) bool {
	for _, pi := range d.nl.Node(i).Pins() {
		if seen[d.nl.Pin(pi).Net] {
			return true
		}
	}
	return false
}

func (d *improver) markNets(i int, seen map[int]bool) {
	for _, pi := range d.nl.Node(i).Pins() {
		seen[d.nl.Pin(pi).Net] = true
	}
}

// solveCluster fills cl.perm with the minimum-cost assignment of cells to
// slots and cl.gain with the wirelength saved. Cells inside a cluster
// share no nets, so per-cell costs are independent and the evaluation
// only reads the model.
func (d *improver) solveCluster(cl *cluster) {
	n := len(cl.cells)
	cost := make([][]float64, n)
	var current float64
	for c, id := range cl.cells {
		cost[c] = make([]float64, n)
		for s := range cl.slots {
			cost[c][s] = d.cellCostAt(id, cl.slots[s])
		}
		current += cost[c][c] // slot c is the cell's current position
	}
	perm, total := hungarian(cost)
	cl.perm = perm
	cl.gain = current - total
}

// cellCostAt returns the weighted wirelength of the cell's nets with the
// cell hypothetically at slot p and everything else in place.
func (d *improver) cellCostAt(id int, p position) float64 {
	d.m.stamp++
	n := d.nl.Node(id)
	var sum float64
	for _, pi := range n.Pins() {
		pin := d.nl.Pin(pi)
		if d.m.netStamp[pin.Net] == d.m.stamp {
			continue
		}
		d.m.netStamp[pin.Net] = d.m.stamp

		box, ok := d.nl.NetBox(pin.Net, id)
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		if ok {
			minX, minY, maxX, maxY = box[0], box[1], box[2], box[3]
		}
		for _, pj := range d.nl.Net(pin.Net).Pins() {
			op := d.nl.Pin(pj)
			if op.Node != id {
				continue
			}
			px, py := p.x+op.OffsetX, p.y+op.OffsetY
			minX, minY = math.Min(minX, px), math.Min(minY, py)
			maxX, maxY = math.Max(maxX, px), math.Max(maxY, py)
		}
		if math.IsInf(minX, 1) {
			continue
		}
		sum += d.nl.Net(pin.Net).Weight * ((maxX - minX) + (maxY - minY))
	}
	return sum
}

// applyCluster moves the cluster's cells into their assigned slots.
// Interchangeable cells swapping slots cannot break legality, so the
// model is written directly and the touched rows resorted. The gain is
// re-verified against the live model (an earlier cluster may have moved
// shared nets) and the assignment reverted when it no longer improves.
func (d *improver) applyCluster(cl *cluster) int {
	before := d.m.affectedHPWL(cl.cells...)

	assign := func(perm []int) int {
		var moves int
		touched := make(map[int]bool)
		for c, id := range cl.cells {
			p := cl.slots[perm[c]]
			n := d.nl.Node(id)
			if n.X == p.x && n.Y == p.y {
				continue
			}
			touched[d.m.rowOf[id]] = true
			touched[p.row] = true
			n.X, n.Y = p.x, p.y
			d.m.rowOf[id] = p.row
			moves++
		}
		if moves > 0 {
			d.rebuildRows(touched, cl)
		}
		return moves
	}

	moves := assign(cl.perm)
	if moves == 0 {
		return 0
	}
	if d.m.affectedHPWL(cl.cells...) >= before-improveEps {
		identity := make([]int, len(cl.cells))
		for c := range identity {
			identity[c] = c
		}
		assign(identity)
		return 0
	}
	return moves
}

// rebuildRows reassigns the cluster's cells to their new row lists.
func (d *improver) rebuildRows(touched map[int]bool, cl *cluster) {
	inCluster := make(map[int]bool, len(cl.cells))
	for _, id := range cl.cells {
		inCluster[id] = true
	}
	for ri := range touched {
		kept := d.m.rows[ri][:0]
		for _, id := range d.m.rows[ri] {
			if !inCluster[id] {
				kept = append(kept, id)
			}
		}
		d.m.rows[ri] = kept
	}
	for _, id := range cl.cells {
		if touched[d.m.rowOf[id]] {
			d.m.rows[d.m.rowOf[id]] = append(d.m.rows[d.m.rowOf[id]], id)
		}
	}
	for ri := range touched {
		d.m.sortRow(ri)
	}
}

// hungarian solves the square min-cost assignment problem and returns the
// column assigned to each row plus the total cost. Standard potentials
// implementation, O(n^3).
func hungarian(cost [][]float64) ([]int, float64) {
	n := len(cost)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1) // column -> row (1-based)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0, j1 := p[j0], 0
			delta := math.Inf(1)
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	perm := make([]int, n)
	var total float64
	for j := 1; j <= n; j++ {
		if p[j] > 0 {
			perm[p[j]-1] = j - 1
			total += cost[p[j]-1][j-1]
		}
	}
	return perm, total
}
