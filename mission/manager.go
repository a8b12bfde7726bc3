// Package mission tracks mission entities through their lifecycle state
// machine. The Manager is the authoritative owner of mission status: no
// other component mutates a mission directly.
package mission

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetcore/grid"
	"fleetcore/planner"
)

// Requirements constrain which robots may serve a mission.
type Requirements struct {
	PayloadClass int `json:"payload_class"`
	SpeedClass   int `json:"speed_class"`
}

// Mission is one robot task instance tracked through the lifecycle.
type Mission struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Priority int    `json:"priority"`

	Waypoints []grid.Position `json:"waypoints"`
	Reqs      Requirements    `json:"requirements"`

	// Charge missions are pinned to the robot that needs charging and to
	// the station the scheduler picked.
	PinnedRobot string `json:"pinned_robot,omitempty"`
	StationID   string `json:"station_id,omitempty"`

	RobotID       string        `json:"robot_id,omitempty"`
	Path          *planner.Path `json:"path,omitempty"`
	ReservationID string        `json:"reservation_id,omitempty"`

	Status       string    `json:"status"`
	Retries      int       `json:"retries"`
	FailReason   string    `json:"fail_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Target returns the final waypoint.
func (m *Mission) Target() grid.Position {
	return m.Waypoints[len(m.Waypoints)-1]
}

// Manager owns all mission records and their transitions.
type Manager struct {
	mu         sync.Mutex
	missions   map[string]*Mission
	emitter    EventEmitter
	maxRetries int
	timeout    time.Duration
	clock      func() time.Time
}

func NewManager(emitter EventEmitter, maxRetries int, timeout time.Duration) *Manager {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if timeout <= 0 {
		timeout = 2 * time.Hour
	}
	return &Manager{
		missions:   make(map[string]*Mission),
		emitter:    emitter,
		maxRetries: maxRetries,
		timeout:    timeout,
		clock:      time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (mgr *Manager) SetClock(fn func() time.Time) { mgr.clock = fn }

// Create registers a new mission in Created status.
func (mgr *Manager) Create(kind string, priority int, waypoints []grid.Position, reqs Requirements) Mission {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	now := mgr.clock()
	m := &Mission{
		ID:           uuid.New().String(),
		Kind:         kind,
		Priority:     priority,
		Waypoints:    waypoints,
		Reqs:         reqs,
		Status:       StatusCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActivity: now,
	}
	mgr.missions[m.ID] = m
	return *m
}

// CreateCharge registers a charge mission pinned to a specific robot and station.
func (mgr *Manager) CreateCharge(robotID, stationID string, priority int, target grid.Position) Mission {
	m := mgr.Create(KindCharge, priority, []grid.Position{target}, Requirements{})
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	rec := mgr.missions[m.ID]
	rec.PinnedRobot = robotID
	rec.StationID = stationID
	return *rec
}

// Restore re-registers a persisted mission, requeueing non-terminal work.
// Reservations are in-memory only, so restored missions re-plan from scratch.
func (mgr *Manager) Restore(m Mission) Mission {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if !IsTerminal(m.Status) && m.Status != StatusFailed {
		m.Status = StatusQueued
		m.RobotID = ""
		m.Path = nil
		m.ReservationID = ""
	}
	rec := m
	rec.LastActivity = mgr.clock()
	mgr.missions[m.ID] = &rec
	return rec
}

// Get returns a copy of the mission.
func (mgr *Manager) Get(id string) (Mission, bool) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	m, ok := mgr.missions[id]
	if !ok {
		return Mission{}, false
	}
	return *m, true
}

// Transition moves a mission to a new status, enforcing the transition table.
func (mgr *Manager) Transition(id, to, detail string) error {
	mgr.mu.Lock()
	m, ok := mgr.missions[id]
	if !ok {
		mgr.mu.Unlock()
		return fmt.Errorf("mission %s not found", id)
	}
	if !IsValidTransition(m.Status, to) {
		mgr.mu.Unlock()
		return fmt.Errorf("mission %s: invalid transition %s -> %s", id, m.Status, to)
	}
	old := m.Status
	m.Status = to
	now := mgr.clock()
	m.UpdatedAt = now
	m.LastActivity = now
	kind, robotID := m.Kind, m.RobotID
	mgr.mu.Unlock()

	mgr.emitter.EmitMissionStatusChanged(id, kind, old, to, detail)
	if to == StatusCompleted {
		mgr.emitter.EmitMissionCompleted(id, kind, robotID)
	}
	return nil
}

// Assign binds a robot to a queued mission and moves it to Assigned.
func (mgr *Manager) Assign(id, robotID string) error {
	mgr.mu.Lock()
	m, ok := mgr.missions[id]
	if !ok {
		mgr.mu.Unlock()
		return fmt.Errorf("mission %s not found", id)
	}
	if !IsValidTransition(m.Status, StatusAssigned) {
		mgr.mu.Unlock()
		return fmt.Errorf("mission %s: invalid transition %s -> %s", id, m.Status, StatusAssigned)
	}
	old := m.Status
	m.Status = StatusAssigned
	m.RobotID = robotID
	now := mgr.clock()
	m.UpdatedAt = now
	m.LastActivity = now
	kind := m.Kind
	mgr.mu.Unlock()

	mgr.emitter.EmitMissionStatusChanged(id, kind, old, StatusAssigned, "robot "+robotID)
	return nil
}

// SetPath records the planned path.
func (mgr *Manager) SetPath(id string, p *planner.Path) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if m, ok := mgr.missions[id]; ok {
		m.Path = p
		m.UpdatedAt = mgr.clock()
	}
}

// SetReservation records the committed reservation ID.
func (mgr *Manager) SetReservation(id, reservationID string) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if m, ok := mgr.missions[id]; ok {
		m.ReservationID = reservationID
		m.UpdatedAt = mgr.clock()
	}
}

// Touch records mission activity (e.g. a position report from its robot),
// resetting the inactivity timeout.
func (mgr *Manager) Touch(id string) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if m, ok := mgr.missions[id]; ok {
		m.LastActivity = mgr.clock()
	}
}

// Fail transitions a mission to Failed and, while the retry budget lasts,
// straight back to Queued with its robot binding cleared. Returns whether
// the mission was requeued.
func (mgr *Manager) Fail(id, reason string) (requeued bool, err error) {
	mgr.mu.Lock()
	m, ok := mgr.missions[id]
	if !ok {
		mgr.mu.Unlock()
		return false, fmt.Errorf("mission %s not found", id)
	}
	if !IsValidTransition(m.Status, StatusFailed) {
		mgr.mu.Unlock()
		return false, fmt.Errorf("mission %s: invalid transition %s -> %s", id, m.Status, StatusFailed)
	}
	old := m.Status
	m.Status = StatusFailed
	m.FailReason = reason
	kind, robotID := m.Kind, m.RobotID
	now := mgr.clock()
	m.UpdatedAt = now
	m.LastActivity = now

	requeued = m.Retries < mgr.maxRetries
	if requeued {
		m.Retries++
		m.Status = StatusQueued
		m.RobotID = ""
		m.Path = nil
		m.ReservationID = ""
	}
	retries := m.Retries
	mgr.mu.Unlock()

	mgr.emitter.EmitMissionStatusChanged(id, kind, old, StatusFailed, reason)
	if requeued {
		mgr.emitter.EmitMissionStatusChanged(id, kind, StatusFailed, StatusQueued, fmt.Sprintf("retry %d", retries))
	} else {
		mgr.emitter.EmitMissionFailed(id, kind, robotID, reason, true)
	}
	return requeued, nil
}

// Cancel moves a non-terminal mission to Cancelled and returns its final
// snapshot so the caller can release reservations and free the robot.
func (mgr *Manager) Cancel(id, reason string) (Mission, error) {
	mgr.mu.Lock()
	m, ok := mgr.missions[id]
	if !ok {
		mgr.mu.Unlock()
		return Mission{}, fmt.Errorf("mission %s not found", id)
	}
	if IsTerminal(m.Status) || m.Status == StatusFailed {
		mgr.mu.Unlock()
		return Mission{}, fmt.Errorf("mission %s already terminal (%s)", id, m.Status)
	}
	old := m.Status
	m.Status = StatusCancelled
	now := mgr.clock()
	m.UpdatedAt = now
	snap := *m
	mgr.mu.Unlock()

	mgr.emitter.EmitMissionStatusChanged(id, snap.Kind, old, StatusCancelled, reason)
	return snap, nil
}

// QueuedByPriority returns queued missions ordered by descending priority,
// then creation time, then ID for determinism.
func (mgr *Manager) QueuedByPriority() []Mission {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	var out []Mission
	for _, m := range mgr.missions {
		if m.Status == StatusQueued {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// List returns copies of all missions, optionally filtered by status.
func (mgr *Manager) List(status string) []Mission {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	var out []Mission
	for _, m := range mgr.missions {
		if status == "" || m.Status == status {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// TimedOut returns EnRoute missions whose last activity exceeds the
// inactivity window.
func (mgr *Manager) TimedOut(now time.Time) []Mission {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	var out []Mission
	for _, m := range mgr.missions {
		if m.Status == StatusEnRoute && now.Sub(m.LastActivity) > mgr.timeout {
			out = append(out, *m)
		}
	}
	return out
}
