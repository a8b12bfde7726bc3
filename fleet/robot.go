package fleet

import (
	"time"

	"fleetcore/grid"
)

// Robot statuses.
const (
	StatusOffline   = "offline"
	StatusIdle      = "idle"
	StatusAssigned  = "assigned"
	StatusExecuting = "executing"
	StatusCharging  = "charging"
	StatusError     = "error"
)

// Battery thresholds, percent.
const (
	BatteryLow      = 20.0
	BatteryCritical = 10.0
)

// BatteryStatus is derived from telemetry, never mutated independently.
type BatteryStatus struct {
	Percent float64       `json:"percent"`
	Runtime time.Duration `json:"runtime"` // estimated remaining
}

func (b BatteryStatus) IsLow() bool      { return b.Percent < BatteryLow }
func (b BatteryStatus) IsCritical() bool { return b.Percent < BatteryCritical }

// Capabilities classify what work a robot can take.
type Capabilities struct {
	PayloadClass int `json:"payload_class"`
	SpeedClass   int `json:"speed_class"`
}

// Meets reports whether the robot satisfies the required classes.
func (c Capabilities) Meets(payloadClass, speedClass int) bool {
	return c.PayloadClass >= payloadClass && c.SpeedClass >= speedClass
}

// Robot is a long-lived fleet member. Only its mutable fields (position,
// battery, status, current mission) change across missions.
type Robot struct {
	ID        string        `json:"id"`
	Pos       grid.Position `json:"pos"`
	Battery   BatteryStatus `json:"battery"`
	Status    string        `json:"status"`
	Caps      Capabilities  `json:"capabilities"`
	MissionID string        `json:"mission_id,omitempty"`
	LastSeen  time.Time     `json:"last_seen"`

	// AssignCount approximates recent utilization for load balancing.
	AssignCount int `json:"assign_count"`
}
