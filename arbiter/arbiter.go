// Package arbiter validates planned paths against other robots' reserved
// paths and detected obstacles, and owns the space-time reservation table.
// Conflict checking is atomic with commit: Reserve holds one mutex for the
// whole check-then-reserve sequence.
package arbiter

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetcore/grid"
	"fleetcore/planner"
)

// Conflict reasons.
const (
	ReasonSeparation  = "safety_violation"
	ReasonHumanZone   = "human_zone"
	ReasonBlockedPath = "blocked_path"
)

// ConflictError is a rejected reservation. It is recoverable: the caller
// re-plans or waits, it is not a hard failure.
type ConflictError struct {
	Reason     string
	OtherRobot string // empty for obstacle conflicts
	At         time.Time
}

func (e *ConflictError) Error() string {
	if e.OtherRobot != "" {
		return fmt.Sprintf("arbiter: %s with robot %s at %s", e.Reason, e.OtherRobot, e.At.Format(time.RFC3339))
	}
	return fmt.Sprintf("arbiter: %s at %s", e.Reason, e.At.Format(time.RFC3339))
}

// Config tunes the safety checks.
type Config struct {
	Separation       float64       // minimum robot-robot distance, meters
	HumanMargin      float64       // extra clearance around humans, meters
	SampleResolution time.Duration // temporal sampling step
}

func (c *Config) applyDefaults() {
	if c.Separation <= 0 {
		c.Separation = 0.3
	}
	if c.HumanMargin <= 0 {
		c.HumanMargin = 0.5
	}
	if c.SampleResolution <= 0 {
		c.SampleResolution = 250 * time.Millisecond
	}
}

// TimedPoint is a sampled position on a reserved path.
type TimedPoint struct {
	Pos grid.Position
	T   time.Time
}

// Reservation is a robot's claim on space-time along a committed path.
type Reservation struct {
	ID        string    `json:"id"`
	RobotID   string    `json:"robot_id"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`

	path    *planner.Path
	samples []TimedPoint
	cells   map[grid.Cell]struct{}
}

// Violation is a mid-execution safety problem on an active reservation.
type Violation struct {
	ReservationID string
	RobotID       string
	Reason        string
	At            time.Time
}

// RobotPoint is a robot's live position, for safety zone checks.
type RobotPoint struct {
	ID  string
	Pos grid.Position
}

type Arbiter struct {
	mu           sync.Mutex
	cfg          Config
	gm           *grid.Map
	reservations map[string]*Reservation
	byRobot      map[string]string // robot id -> reservation id
	clock        func() time.Time
}

func New(gm *grid.Map, cfg Config) *Arbiter {
	cfg.applyDefaults()
	return &Arbiter{
		cfg:          cfg,
		gm:           gm,
		reservations: make(map[string]*Reservation),
		byRobot:      make(map[string]string),
		clock:        time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (a *Arbiter) SetClock(fn func() time.Time) { a.clock = fn }

// Reserve validates a path against every active reservation and against
// predicted human safety zones, then commits it. On success it returns the
// reservation ID plus the robot IDs of any lower-priority reservations
// that were preempted to make room; those robots must be stopped and
// re-planned by the caller.
//
// Resolution is deterministic: the lower-priority side loses; equal
// priority is broken by earliest reservation timestamp, so the existing
// reservation always wins a tie.
func (a *Arbiter) Reserve(robotID string, p *planner.Path, priority int) (string, []string, error) {
	if err := p.Validate(); err != nil {
		return "", nil, fmt.Errorf("arbiter: invalid path: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	samples := samplePath(p, a.cfg.SampleResolution)

	// Humans always outrank robots: entering a predicted human safety
	// zone rejects the path outright.
	for _, h := range a.gm.HumanObstacles() {
		for _, s := range samples {
			hp := h.PositionAt(s.T)
			if s.Pos.Distance(grid.Position{X: hp.X, Y: hp.Y}) < h.Radius+a.cfg.HumanMargin {
				return "", nil, &ConflictError{Reason: ReasonHumanZone, At: s.T}
			}
		}
	}

	var preempt []*Reservation
	for _, other := range a.reservations {
		if other.RobotID == robotID {
			continue
		}
		at, hit := firstConflict(samples, other.samples, a.cfg.Separation, a.cfg.SampleResolution)
		if !hit {
			continue
		}
		if priority > other.Priority {
			preempt = append(preempt, other)
			continue
		}
		return "", nil, &ConflictError{Reason: ReasonSeparation, OtherRobot: other.RobotID, At: at}
	}

	var preempted []string
	for _, r := range preempt {
		delete(a.reservations, r.ID)
		delete(a.byRobot, r.RobotID)
		preempted = append(preempted, r.RobotID)
	}

	// A robot holds at most one active reservation.
	if old, ok := a.byRobot[robotID]; ok {
		delete(a.reservations, old)
	}

	cells := make(map[grid.Cell]struct{}, len(p.Cells))
	for _, c := range p.Cells {
		cells[c] = struct{}{}
	}
	res := &Reservation{
		ID:        uuid.New().String(),
		RobotID:   robotID,
		Priority:  priority,
		CreatedAt: a.clock(),
		Start:     p.Start().Stamp,
		End:       p.End().Stamp,
		path:      p,
		samples:   samples,
		cells:     cells,
	}
	a.reservations[res.ID] = res
	a.byRobot[robotID] = res.ID
	return res.ID, preempted, nil
}

// Release frees a reservation. Idempotent: releasing twice is a no-op the
// second time and never frees another robot's reservation.
func (a *Arbiter) Release(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	res, ok := a.reservations[id]
	if !ok {
		return false
	}
	delete(a.reservations, id)
	if a.byRobot[res.RobotID] == id {
		delete(a.byRobot, res.RobotID)
	}
	return true
}

// ReleaseRobot frees whatever reservation the robot holds.
func (a *Arbiter) ReleaseRobot(robotID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.byRobot[robotID]; ok {
		delete(a.reservations, id)
		delete(a.byRobot, robotID)
	}
}

// Active returns a snapshot of all active reservations.
func (a *Arbiter) Active() []Reservation {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Reservation, 0, len(a.reservations))
	for _, r := range a.reservations {
		out = append(out, *r)
	}
	return out
}

// ReservedCells returns the cells claimed by a robot's active reservation.
func (a *Arbiter) ReservedCells(robotID string) []grid.Cell {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.byRobot[robotID]
	if !ok {
		return nil
	}
	res := a.reservations[id]
	out := make([]grid.Cell, 0, len(res.cells))
	for c := range res.cells {
		out = append(out, c)
	}
	return out
}

// RobotsOnCells returns robots whose reserved path crosses any given cell.
// Used to decide which robots must re-plan when an obstacle blocks cells.
func (a *Arbiter) RobotsOnCells(cells []grid.Cell) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, r := range a.reservations {
		for _, c := range cells {
			if _, hit := r.cells[c]; hit {
				out = append(out, r.RobotID)
				break
			}
		}
	}
	return out
}

// CongestionCount returns, per cell, how many active reservations claim it.
func (a *Arbiter) CongestionCount() map[grid.Cell]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	counts := make(map[grid.Cell]int)
	for _, r := range a.reservations {
		for c := range r.cells {
			counts[c]++
		}
	}
	return counts
}

// PenaltyFunc builds a cell penalty for the planner from the current
// reservation density. Cells of excludeRobot's own reservation carry no
// penalty; cells in avoid are penalized hard enough that A* routes around
// them whenever an alternative exists.
func (a *Arbiter) PenaltyFunc(weight float64, excludeRobot string, avoid []grid.Cell) func(grid.Cell) float64 {
	a.mu.Lock()
	counts := make(map[grid.Cell]int)
	for _, r := range a.reservations {
		if r.RobotID == excludeRobot {
			continue
		}
		for c := range r.cells {
			counts[c]++
		}
	}
	a.mu.Unlock()

	avoidSet := make(map[grid.Cell]struct{}, len(avoid))
	for _, c := range avoid {
		avoidSet[c] = struct{}{}
	}
	const avoidPenalty = 1000.0

	return func(c grid.Cell) float64 {
		p := weight * float64(counts[c])
		if _, hit := avoidSet[c]; hit {
			p += avoidPenalty
		}
		return p
	}
}

// CheckSafetyZone reports whether pos keeps the minimum separation from
// every other robot and stays clear of human safety zones. Invoked
// continuously during execution, not only at planning time.
func (a *Arbiter) CheckSafetyZone(pos grid.Position, selfID string, robots []RobotPoint) bool {
	for _, r := range robots {
		if r.ID == selfID {
			continue
		}
		if pos.Distance(r.Pos) < a.cfg.Separation {
			return false
		}
	}
	now := a.clock()
	for _, h := range a.gm.HumanObstacles() {
		hp := h.PositionAt(now)
		if pos.Distance(grid.Position{X: hp.X, Y: hp.Y}) < h.Radius+a.cfg.HumanMargin {
			return false
		}
	}
	return true
}

// RecheckActive scans every active reservation's remaining samples against
// obstacles that appeared after the reservation was granted. Returns the
// violations found; callers must emit an immediate stop for each before
// re-planning.
func (a *Arbiter) RecheckActive(now time.Time) []Violation {
	a.mu.Lock()
	defer a.mu.Unlock()

	humans := a.gm.HumanObstacles()
	var out []Violation
	for _, r := range a.reservations {
		if v, ok := a.recheckOne(r, now, humans); ok {
			out = append(out, v)
		}
	}
	return out
}

func (a *Arbiter) recheckOne(r *Reservation, now time.Time, humans []*grid.Obstacle) (Violation, bool) {
	for _, s := range r.samples {
		if s.T.Before(now) {
			continue
		}
		cell := a.gm.CellAt(s.Pos)
		if !a.gm.IsWalkable(cell) {
			return Violation{ReservationID: r.ID, RobotID: r.RobotID, Reason: ReasonBlockedPath, At: s.T}, true
		}
		for _, h := range humans {
			hp := h.PositionAt(s.T)
			if s.Pos.Distance(grid.Position{X: hp.X, Y: hp.Y}) < h.Radius+a.cfg.HumanMargin {
				return Violation{ReservationID: r.ID, RobotID: r.RobotID, Reason: ReasonHumanZone, At: s.T}, true
			}
		}
	}
	return Violation{}, false
}

// samplePath samples a path at the fixed time resolution, always including
// the final point.
func samplePath(p *planner.Path, res time.Duration) []TimedPoint {
	start := p.Start().Stamp
	end := p.End().Stamp

	var samples []TimedPoint
	for t := start; t.Before(end); t = t.Add(res) {
		if pos, ok := p.PositionAt(t); ok {
			samples = append(samples, TimedPoint{Pos: pos, T: t})
		}
	}
	samples = append(samples, TimedPoint{Pos: p.End(), T: end})
	return samples
}

// firstConflict finds the earliest pair of samples from two reservations
// that overlap in time (within the sampling window) and violate the
// separation distance. Two robots may cross the same cell safely if
// time-separated.
func firstConflict(a, b []TimedPoint, sep float64, window time.Duration) (time.Time, bool) {
	j := 0
	for _, s := range a {
		lo := s.T.Add(-window)
		hi := s.T.Add(window)
		for j < len(b) && b[j].T.Before(lo) {
			j++
		}
		for k := j; k < len(b) && !b[k].T.After(hi); k++ {
			if s.Pos.Distance(b[k].Pos) < sep {
				return s.T, true
			}
		}
	}
	return time.Time{}, false
}
