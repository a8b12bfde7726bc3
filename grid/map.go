package grid

import (
	"math"
	"sync"
	"time"
)

// Map is the static traversable grid plus dynamically reported obstacles.
// Planning reads (IsWalkable, Neighbors) are safe to run concurrently;
// obstacle mutation takes the write lock.
type Map struct {
	mu       sync.RWMutex
	width    int
	height   int
	cellSize float64
	diagonal bool

	blocked   map[Cell]bool // statically blocked layout (walls, racks)
	obstacles map[string]*Obstacle
	obsCells  map[string][]Cell // cells covered by each static obstacle

	zones    map[Cell]string
	zoneCaps map[string]int
}

func NewMap(width, height int, cellSize float64, diagonal bool) *Map {
	return &Map{
		width:     width,
		height:    height,
		cellSize:  cellSize,
		diagonal:  diagonal,
		blocked:   make(map[Cell]bool),
		obstacles: make(map[string]*Obstacle),
		obsCells:  make(map[string][]Cell),
		zones:     make(map[Cell]string),
		zoneCaps:  make(map[string]int),
	}
}

func (m *Map) Width() int        { return m.width }
func (m *Map) Height() int       { return m.height }
func (m *Map) CellSize() float64 { return m.cellSize }
func (m *Map) Diagonal() bool    { return m.diagonal }

// SetBlocked marks a cell of the static layout as untraversable.
func (m *Map) SetBlocked(c Cell, blocked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if blocked {
		m.blocked[c] = true
	} else {
		delete(m.blocked, c)
	}
}

// BlockRect blocks every cell in the inclusive rectangle.
func (m *Map) BlockRect(x0, y0, x1, y1 int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			m.blocked[Cell{X: x, Y: y}] = true
		}
	}
}

func (m *Map) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < m.width && c.Y >= 0 && c.Y < m.height
}

// IsWalkable reports whether a cell is in bounds and not blocked by the
// static layout or a static-class obstacle.
func (m *Map) IsWalkable(c Cell) bool {
	if !m.InBounds(c) {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.blocked[c]
}

// Neighbors returns walkable cells adjacent to c. 4-connected by default,
// 8-connected when the map was built with diagonal movement enabled.
// Diagonal steps are refused when both orthogonal cells beside them are
// blocked, so robots cannot cut corners through obstacles.
func (m *Map) Neighbors(c Cell) []Cell {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Cell, 0, 8)
	for _, d := range [4]Cell{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		n := Cell{X: c.X + d.X, Y: c.Y + d.Y}
		if m.InBounds(n) && !m.blocked[n] {
			out = append(out, n)
		}
	}
	if !m.diagonal {
		return out
	}
	for _, d := range [4]Cell{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}} {
		n := Cell{X: c.X + d.X, Y: c.Y + d.Y}
		if !m.InBounds(n) || m.blocked[n] {
			continue
		}
		if m.blocked[Cell{X: c.X + d.X, Y: c.Y}] && m.blocked[Cell{X: c.X, Y: c.Y + d.Y}] {
			continue
		}
		out = append(out, n)
	}
	return out
}

// CellAt maps a warehouse position to its containing cell.
func (m *Map) CellAt(p Position) Cell {
	return Cell{
		X: int(math.Floor(p.X / m.cellSize)),
		Y: int(math.Floor(p.Y / m.cellSize)),
	}
}

// CenterOf returns the warehouse position at the center of a cell.
func (m *Map) CenterOf(c Cell) Position {
	return Position{
		X: (float64(c.X) + 0.5) * m.cellSize,
		Y: (float64(c.Y) + 0.5) * m.cellSize,
	}
}

// AddObstacle inserts or refreshes an obstacle. For static-class obstacles
// the covered cells become unwalkable; the returned slice lists every cell
// whose state changed so callers can trigger re-plans for intersecting
// reserved paths. Dynamic obstacles return no cells; they are checked
// against safety zones instead.
func (m *Map) AddObstacle(o *Obstacle) []Cell {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.obstacles[o.ID]; ok && prev.IsStatic() {
		for _, c := range m.obsCells[o.ID] {
			delete(m.blocked, c)
		}
		delete(m.obsCells, o.ID)
	}
	m.obstacles[o.ID] = o

	if !o.IsStatic() {
		return nil
	}
	cells := m.coveredCells(o)
	for _, c := range cells {
		m.blocked[c] = true
	}
	m.obsCells[o.ID] = cells
	return cells
}

// RemoveObstacle deletes an obstacle and unblocks its cells.
// Returns the cells that became walkable again.
func (m *Map) RemoveObstacle(id string) []Cell {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(id)
}

// RemoveStaleObstacles expires obstacles not refreshed within ttl.
func (m *Map) RemoveStaleObstacles(now time.Time, ttl time.Duration) []*Obstacle {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []*Obstacle
	for id, o := range m.obstacles {
		if now.Sub(o.LastSeen) > ttl {
			stale = append(stale, o)
			m.removeLocked(id)
		}
	}
	return stale
}

func (m *Map) removeLocked(id string) []Cell {
	o, ok := m.obstacles[id]
	if !ok {
		return nil
	}
	delete(m.obstacles, id)
	if !o.IsStatic() {
		return nil
	}
	cells := m.obsCells[id]
	delete(m.obsCells, id)
	for _, c := range cells {
		delete(m.blocked, c)
	}
	return cells
}

// Obstacles returns a snapshot of all tracked obstacles.
func (m *Map) Obstacles() []*Obstacle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Obstacle, 0, len(m.obstacles))
	for _, o := range m.obstacles {
		out = append(out, o)
	}
	return out
}

// HumanObstacles returns the dynamic-human obstacles currently tracked.
func (m *Map) HumanObstacles() []*Obstacle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Obstacle
	for _, o := range m.obstacles {
		if o.Class == ObstacleDynamicHuman {
			out = append(out, o)
		}
	}
	return out
}

// coveredCells returns the cells overlapped by the obstacle's bounding circle.
func (m *Map) coveredCells(o *Obstacle) []Cell {
	r := o.Radius + m.cellSize/2
	minC := m.CellAt(Position{X: o.Pos.X - r, Y: o.Pos.Y - r})
	maxC := m.CellAt(Position{X: o.Pos.X + r, Y: o.Pos.Y + r})

	var cells []Cell
	for y := minC.Y; y <= maxC.Y; y++ {
		for x := minC.X; x <= maxC.X; x++ {
			c := Cell{X: x, Y: y}
			if !m.InBounds(c) {
				continue
			}
			if m.CenterOf(c).Distance(Position{X: o.Pos.X, Y: o.Pos.Y}) <= r {
				cells = append(cells, c)
			}
		}
	}
	return cells
}

// SetZone names a rectangular traffic zone with a concurrent-occupancy cap.
func (m *Map) SetZone(name string, cap int, x0, y0, x1, y1 int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zoneCaps[name] = cap
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			m.zones[Cell{X: x, Y: y}] = name
		}
	}
}

// ZoneOf returns the zone containing a cell, if any.
func (m *Map) ZoneOf(c Cell) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.zones[c]
	return z, ok
}

// ZoneCap returns the occupancy cap configured for a zone (0 if unknown).
func (m *Map) ZoneCap(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.zoneCaps[name]
}

// ZonesOn returns the distinct zones crossed by the given cells.
func (m *Map) ZonesOn(cells []Cell) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, c := range cells {
		if z, ok := m.zones[c]; ok {
			if _, dup := seen[z]; !dup {
				seen[z] = struct{}{}
				out = append(out, z)
			}
		}
	}
	return out
}
