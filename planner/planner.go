// Package planner computes time-stamped paths over the grid map using A*.
// Planning is read-only against the map and may run concurrently across
// robots; committing a path is the arbiter's job.
package planner

import (
	"container/heap"
	"errors"
	"math"
	"time"

	"fleetcore/grid"
)

// ErrNoPath is returned when the goal is unreachable from the start.
var ErrNoPath = errors.New("planner: no path between start and goal")

// Options tunes a single planning call.
type Options struct {
	Start time.Time // departure time; zero means now
	Speed float64   // m/s; zero means 1.0

	// CellPenalty returns an additional nonnegative cost for entering a
	// cell, typically derived from reservation density so busy cells are
	// avoided without being excluded. Nil means no penalty.
	CellPenalty func(grid.Cell) float64
}

type node struct {
	cell   grid.Cell
	g      float64
	h      float64
	parent *node
	index  int
}

type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	fi, fj := h[i].g+h[i].h, h[j].g+h[j].h
	if fi != fj {
		return fi < fj
	}
	// Equal f: prefer the lower heuristic (closer to goal) so expansion
	// order stays deterministic and greedy.
	if h[i].h != h[j].h {
		return h[i].h < h[j].h
	}
	if h[i].cell.Y != h[j].cell.Y {
		return h[i].cell.Y < h[j].cell.Y
	}
	return h[i].cell.X < h[j].cell.X
}
func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *nodeHeap) Push(x any) {
	n := x.(*node)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// Plan finds the cheapest path from start to goal. The heuristic is
// Manhattan distance for 4-connected maps and octile distance for
// 8-connected maps; both are admissible and consistent for the grid's
// step costs, so the first goal expansion is optimal.
func Plan(m *grid.Map, start, goal grid.Cell, opts Options) (*Path, error) {
	if !m.IsWalkable(goal) || !m.IsWalkable(start) {
		return nil, ErrNoPath
	}
	if start == goal {
		return buildPath(m, []grid.Cell{start, start}, opts), nil
	}

	cellSize := m.CellSize()
	diagCost := cellSize * math.Sqrt2

	h := func(c grid.Cell) float64 {
		dx := math.Abs(float64(c.X - goal.X))
		dy := math.Abs(float64(c.Y - goal.Y))
		if m.Diagonal() {
			// Octile distance.
			lo, hi := dx, dy
			if lo > hi {
				lo, hi = hi, lo
			}
			return cellSize*hi + (diagCost-cellSize)*lo
		}
		return cellSize * (dx + dy)
	}

	open := &nodeHeap{}
	heap.Init(open)
	startNode := &node{cell: start, g: 0, h: h(start)}
	heap.Push(open, startNode)

	best := map[grid.Cell]float64{start: 0}
	closed := make(map[grid.Cell]bool)

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if cur.cell == goal {
			return buildPath(m, reconstruct(cur), opts), nil
		}
		if closed[cur.cell] {
			continue
		}
		closed[cur.cell] = true

		for _, nb := range m.Neighbors(cur.cell) {
			if closed[nb] {
				continue
			}
			step := cellSize
			if nb.X != cur.cell.X && nb.Y != cur.cell.Y {
				step = diagCost
			}
			g := cur.g + step
			if opts.CellPenalty != nil {
				g += opts.CellPenalty(nb)
			}
			if prev, seen := best[nb]; seen && g >= prev {
				continue
			}
			best[nb] = g
			heap.Push(open, &node{cell: nb, g: g, h: h(nb), parent: cur})
		}
	}
	return nil, ErrNoPath
}

func reconstruct(n *node) []grid.Cell {
	var cells []grid.Cell
	for ; n != nil; n = n.parent {
		cells = append(cells, n.cell)
	}
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	return cells
}

// buildPath converts a cell sequence to timestamped positions using the
// configured travel speed.
func buildPath(m *grid.Map, cells []grid.Cell, opts Options) *Path {
	speed := opts.Speed
	if speed <= 0 {
		speed = 1.0
	}
	start := opts.Start
	if start.IsZero() {
		start = time.Now()
	}

	points := make([]grid.Position, len(cells))
	var dist float64
	for i, c := range cells {
		p := m.CenterOf(c)
		if i > 0 {
			dist += p.Distance(points[i-1])
		}
		points[i] = p.At(start.Add(time.Duration(dist / speed * float64(time.Second))))
	}
	return &Path{
		Cells:    cells,
		Points:   points,
		Distance: dist,
		Duration: time.Duration(dist / speed * float64(time.Second)),
	}
}
