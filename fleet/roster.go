// Package fleet maintains the robot roster and robot selection scoring.
package fleet

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"fleetcore/grid"
)

// Roster is the authoritative in-memory record of every robot, addressed
// by stable ID.
type Roster struct {
	mu     sync.RWMutex
	robots map[string]*Robot
	clock  func() time.Time
}

func NewRoster() *Roster {
	return &Roster{
		robots: make(map[string]*Robot),
		clock:  time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (r *Roster) SetClock(fn func() time.Time) { r.clock = fn }

// Upsert registers a robot or replaces its record wholesale.
func (r *Roster) Upsert(robot Robot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := robot
	if rec.Status == "" {
		rec.Status = StatusOffline
	}
	r.robots[rec.ID] = &rec
}

// Get returns a copy of the robot record.
func (r *Roster) Get(id string) (Robot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rb, ok := r.robots[id]
	if !ok {
		return Robot{}, false
	}
	return *rb, true
}

// List returns copies of all robots, ordered by ID.
func (r *Roster) List() []Robot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Robot, 0, len(r.robots))
	for _, rb := range r.robots {
		out = append(out, *rb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Positions returns every robot's last reported position.
func (r *Roster) Positions() map[string]grid.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]grid.Position, len(r.robots))
	for id, rb := range r.robots {
		out[id] = rb.Pos
	}
	return out
}

// UpdatePosition records a localization report. Unknown robots are
// auto-registered as offline until their first status change.
func (r *Roster) UpdatePosition(id string, pos grid.Position) Robot {
	r.mu.Lock()
	defer r.mu.Unlock()
	rb, ok := r.robots[id]
	if !ok {
		rb = &Robot{ID: id, Status: StatusOffline}
		r.robots[id] = rb
	}
	rb.Pos = pos
	rb.LastSeen = r.clock()
	if rb.Status == StatusOffline {
		rb.Status = StatusIdle
	}
	return *rb
}

// UpdateBattery recomputes battery status from telemetry.
func (r *Roster) UpdateBattery(id string, percent float64, runtime time.Duration) (Robot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rb, ok := r.robots[id]
	if !ok {
		return Robot{}, false
	}
	rb.Battery = BatteryStatus{Percent: percent, Runtime: runtime}
	rb.LastSeen = r.clock()
	return *rb, true
}

// SetStatus transitions a robot's status. A robot in Error stays there
// until ClearError; SetStatus never leaves the Error state.
func (r *Roster) SetStatus(id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rb, ok := r.robots[id]
	if !ok {
		return fmt.Errorf("robot %s not found", id)
	}
	if rb.Status == StatusError && status != StatusError {
		return fmt.Errorf("robot %s is in error state", id)
	}
	rb.Status = status
	return nil
}

// ClearError returns an errored robot to Idle. This models the external
// maintenance action; the engine never auto-recovers hardware faults.
func (r *Roster) ClearError(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rb, ok := r.robots[id]
	if !ok {
		return fmt.Errorf("robot %s not found", id)
	}
	if rb.Status != StatusError {
		return fmt.Errorf("robot %s is not in error state", id)
	}
	rb.Status = StatusIdle
	rb.MissionID = ""
	return nil
}

// Assign binds a mission to an idle robot. A robot holds at most one
// active mission; Error robots cannot be assigned.
func (r *Roster) Assign(id, missionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rb, ok := r.robots[id]
	if !ok {
		return fmt.Errorf("robot %s not found", id)
	}
	if rb.Status == StatusError {
		return fmt.Errorf("robot %s is in error state", id)
	}
	if rb.MissionID != "" && rb.MissionID != missionID {
		return fmt.Errorf("robot %s already holds mission %s", id, rb.MissionID)
	}
	rb.MissionID = missionID
	rb.Status = StatusAssigned
	rb.AssignCount++
	return nil
}

// Free releases a robot's mission binding and returns it to the given
// status (Idle or Charging).
func (r *Roster) Free(id, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rb, ok := r.robots[id]
	if !ok {
		return
	}
	rb.MissionID = ""
	if rb.Status != StatusError {
		rb.Status = status
	}
}
