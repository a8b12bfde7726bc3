package grid

import (
	"math"
	"time"
)

// Position is a point in warehouse coordinates. Immutable value.
type Position struct {
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Z       float64   `json:"z"`
	Heading float64   `json:"heading"` // radians
	Stamp   time.Time `json:"stamp,omitempty"`
}

// Distance returns the Euclidean distance over x, y, z.
func (p Position) Distance(q Position) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// At returns a copy of the position stamped at t.
func (p Position) At(t time.Time) Position {
	p.Stamp = t
	return p
}

// Cell is a discretized map cell address.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Adjacent reports whether two cells touch, including diagonals.
func (c Cell) Adjacent(d Cell) bool {
	dx := c.X - d.X
	dy := c.Y - d.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx <= 1 && dy <= 1 && (dx+dy) > 0
}
