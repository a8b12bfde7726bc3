package planner

import (
	"fmt"
	"time"

	"fleetcore/grid"
)

// Path is an ordered, timestamped route between two points on the grid.
// A path with fewer than 2 points is invalid.
type Path struct {
	Cells    []grid.Cell     `json:"cells"`
	Points   []grid.Position `json:"points"`
	Distance float64         `json:"distance"` // meters
	Duration time.Duration   `json:"duration"`
}

// Start returns the first timestamped point.
func (p *Path) Start() grid.Position { return p.Points[0] }

// End returns the last timestamped point.
func (p *Path) End() grid.Position { return p.Points[len(p.Points)-1] }

// Validate checks the path invariants: at least two points and
// grid-adjacency between consecutive cells.
func (p *Path) Validate() error {
	if len(p.Points) < 2 || len(p.Cells) < 2 {
		return fmt.Errorf("path has %d points, need at least 2", len(p.Points))
	}
	for i := 1; i < len(p.Cells); i++ {
		if p.Cells[i] == p.Cells[i-1] {
			continue // wait-in-place step
		}
		if !p.Cells[i].Adjacent(p.Cells[i-1]) {
			return fmt.Errorf("cells %v and %v are not adjacent", p.Cells[i-1], p.Cells[i])
		}
	}
	return nil
}

// PositionAt interpolates the robot position along the path at time t.
// Returns false if t is before the start; positions clamp to the final
// point after arrival.
func (p *Path) PositionAt(t time.Time) (grid.Position, bool) {
	if len(p.Points) == 0 {
		return grid.Position{}, false
	}
	first := p.Points[0]
	if t.Before(first.Stamp) {
		return grid.Position{}, false
	}
	last := p.Points[len(p.Points)-1]
	if !t.Before(last.Stamp) {
		return last.At(t), true
	}
	for i := 1; i < len(p.Points); i++ {
		a, b := p.Points[i-1], p.Points[i]
		if t.Before(b.Stamp) {
			span := b.Stamp.Sub(a.Stamp).Seconds()
			if span <= 0 {
				return a.At(t), true
			}
			f := t.Sub(a.Stamp).Seconds() / span
			return grid.Position{
				X:     a.X + (b.X-a.X)*f,
				Y:     a.Y + (b.Y-a.Y)*f,
				Z:     a.Z + (b.Z-a.Z)*f,
				Stamp: t,
			}, true
		}
	}
	return last.At(t), true
}
