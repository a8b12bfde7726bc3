package grid

import "time"

// Obstacle classifications.
const (
	ObstacleStatic       = "static"
	ObstacleDynamicHuman = "dynamic-human"
	ObstacleDynamicRobot = "dynamic-robot"
	ObstacleUnknown      = "unknown"
)

// Obstacle is a perceived object on the map. Static obstacles block cells;
// dynamic ones are tracked by position and checked against safety zones.
type Obstacle struct {
	ID       string    `json:"id"`
	Pos      Position  `json:"pos"`
	Radius   float64   `json:"radius"` // bounding radius, meters
	Class    string    `json:"class"`
	VelX     float64   `json:"vel_x,omitempty"` // m/s, dynamic classes only
	VelY     float64   `json:"vel_y,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

// IsStatic reports whether the obstacle blocks cells outright.
func (o *Obstacle) IsStatic() bool {
	return o.Class == ObstacleStatic || o.Class == ObstacleUnknown
}

// PositionAt extrapolates the obstacle position to time t using its
// reported velocity. Static obstacles do not move.
func (o *Obstacle) PositionAt(t time.Time) Position {
	if o.IsStatic() || o.LastSeen.IsZero() {
		return o.Pos
	}
	dt := t.Sub(o.LastSeen).Seconds()
	p := o.Pos
	p.X += o.VelX * dt
	p.Y += o.VelY * dt
	return p
}
