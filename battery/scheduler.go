// Package battery schedules charging for the fleet: it matches low-battery
// robots to charging stations and tracks station occupancy.
package battery

import (
	"sort"
	"sync"

	"fleetcore/fleet"
	"fleetcore/grid"
)

// Station is a fixed charging point on the map. Capacity is how many
// robots can charge there at once.
type Station struct {
	ID       string        `json:"id"`
	Pos      grid.Position `json:"pos"`
	Capacity int           `json:"capacity"`
}

// ChargeRequest asks the coordinator to create a charge mission for a
// robot at a chosen station.
type ChargeRequest struct {
	RobotID   string
	StationID string
	Target    grid.Position
	Priority  int
}

// Config tunes the scheduler thresholds.
type Config struct {
	LowPercent      float64
	CriticalPercent float64
	ResumePercent   float64
	ChargePriority  int
}

func (c *Config) applyDefaults() {
	if c.LowPercent <= 0 {
		c.LowPercent = fleet.BatteryLow
	}
	if c.CriticalPercent <= 0 {
		c.CriticalPercent = fleet.BatteryCritical
	}
	if c.ResumePercent <= 0 {
		c.ResumePercent = 80
	}
	if c.ChargePriority <= 0 {
		c.ChargePriority = 100
	}
}

type waiter struct {
	robotID string
	percent float64
	pos     grid.Position
}

// Scheduler owns the stations, their occupancy and the wait queue for
// robots that need a slot when every station is full.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	stations map[string]*Station
	occupied map[string]map[string]struct{} // station ID -> robot IDs
	assigned map[string]string              // robot ID -> station ID
	queue    []waiter
	pending  map[string]struct{} // robots with an active charge request
}

func NewScheduler(cfg Config) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		cfg:      cfg,
		stations: make(map[string]*Station),
		occupied: make(map[string]map[string]struct{}),
		assigned: make(map[string]string),
		pending:  make(map[string]struct{}),
	}
}

// AddStation registers a charging station. Capacity below one is
// treated as one.
func (s *Scheduler) AddStation(st Station) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Capacity < 1 {
		st.Capacity = 1
	}
	rec := st
	s.stations[st.ID] = &rec
	if s.occupied[st.ID] == nil {
		s.occupied[st.ID] = make(map[string]struct{})
	}
}

// Stations returns copies of all stations, ordered by ID.
func (s *Scheduler) Stations() []Station {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AssignStation claims a slot at the nearest station with free capacity.
// When every station is full the robot joins the wait queue, ordered by
// ascending charge so the neediest robot gets the next free slot, and
// ok is false.
func (s *Scheduler) AssignStation(robotID string, pos grid.Position, percent float64) (Station, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stID, held := s.assigned[robotID]; held {
		return *s.stations[stID], true
	}

	best := s.nearestFree(pos)
	if best == nil {
		s.enqueue(robotID, percent, pos)
		return Station{}, false
	}
	s.occupied[best.ID][robotID] = struct{}{}
	s.assigned[robotID] = best.ID
	return *best, true
}

// Release frees the robot's station slot (or removes it from the wait
// queue) and, when a queued robot can now be placed, returns its charge
// request so the caller can dispatch it.
func (s *Scheduler) Release(robotID string) (ChargeRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, robotID)
	if stID, held := s.assigned[robotID]; held {
		delete(s.occupied[stID], robotID)
		delete(s.assigned, robotID)
	}
	s.dequeueLocked(robotID)

	if len(s.queue) == 0 {
		return ChargeRequest{}, false
	}
	next := s.queue[0]
	st := s.nearestFree(next.pos)
	if st == nil {
		return ChargeRequest{}, false
	}
	s.queue = s.queue[1:]
	s.occupied[st.ID][next.robotID] = struct{}{}
	s.assigned[next.robotID] = st.ID
	s.pending[next.robotID] = struct{}{}
	return ChargeRequest{
		RobotID:   next.robotID,
		StationID: st.ID,
		Target:    st.Pos,
		Priority:  s.cfg.ChargePriority,
	}, true
}

// Evaluate scans the roster for idle robots below the low threshold that
// have no charge request yet and returns one request per robot, nearest
// station first. Robots that cannot be placed are queued for Release to
// pick up later.
func (s *Scheduler) Evaluate(robots []fleet.Robot) []ChargeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ChargeRequest
	for _, r := range robots {
		if r.Status != fleet.StatusIdle || r.MissionID != "" {
			continue
		}
		if r.Battery.Percent >= s.cfg.LowPercent {
			continue
		}
		if _, have := s.pending[r.ID]; have {
			continue
		}
		if _, held := s.assigned[r.ID]; held {
			continue
		}
		st := s.nearestFree(r.Pos)
		if st == nil {
			s.enqueue(r.ID, r.Battery.Percent, r.Pos)
			s.pending[r.ID] = struct{}{}
			continue
		}
		s.occupied[st.ID][r.ID] = struct{}{}
		s.assigned[r.ID] = st.ID
		s.pending[r.ID] = struct{}{}
		out = append(out, ChargeRequest{
			RobotID:   r.ID,
			StationID: st.ID,
			Target:    st.Pos,
			Priority:  s.cfg.ChargePriority,
		})
	}
	return out
}

// Request claims a slot for a robot that needs charging outside the
// periodic sweep, such as a critical interrupt mid-mission. Unlike
// Evaluate it ignores robot status.
func (s *Scheduler) Request(robotID string, pos grid.Position, percent float64) (ChargeRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, have := s.pending[robotID]; have {
		if stID, held := s.assigned[robotID]; held {
			st := s.stations[stID]
			return ChargeRequest{RobotID: robotID, StationID: st.ID, Target: st.Pos, Priority: s.cfg.ChargePriority}, true
		}
		return ChargeRequest{}, false
	}
	st := s.nearestFree(pos)
	if st == nil {
		s.enqueue(robotID, percent, pos)
		s.pending[robotID] = struct{}{}
		return ChargeRequest{}, false
	}
	s.occupied[st.ID][robotID] = struct{}{}
	s.assigned[robotID] = st.ID
	s.pending[robotID] = struct{}{}
	return ChargeRequest{
		RobotID:   robotID,
		StationID: st.ID,
		Target:    st.Pos,
		Priority:  s.cfg.ChargePriority,
	}, true
}

// Charged reports whether the robot has recovered enough to leave the
// station and resume normal work.
func (s *Scheduler) Charged(percent float64) bool {
	return percent >= s.cfg.ResumePercent
}

// QueueLength returns the number of robots waiting for a station slot.
func (s *Scheduler) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) nearestFree(pos grid.Position) *Station {
	var best *Station
	bestDist := 0.0
	ids := make([]string, 0, len(s.stations))
	for id := range s.stations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := s.stations[id]
		if len(s.occupied[id]) >= st.Capacity {
			continue
		}
		d := st.Pos.Distance(pos)
		if best == nil || d < bestDist {
			best = st
			bestDist = d
		}
	}
	return best
}

func (s *Scheduler) enqueue(robotID string, percent float64, pos grid.Position) {
	for _, w := range s.queue {
		if w.robotID == robotID {
			return
		}
	}
	s.queue = append(s.queue, waiter{robotID: robotID, percent: percent, pos: pos})
	sort.SliceStable(s.queue, func(i, j int) bool {
		if s.queue[i].percent != s.queue[j].percent {
			return s.queue[i].percent < s.queue[j].percent
		}
		return s.queue[i].robotID < s.queue[j].robotID
	})
}

func (s *Scheduler) dequeueLocked(robotID string) {
	for i, w := range s.queue {
		if w.robotID == robotID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}
