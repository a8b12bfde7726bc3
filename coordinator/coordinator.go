// Package coordinator binds missions to robots and drives them through
// planning, reservation and execution. It is the only caller of the
// planner and arbiter on the mission path, so admission decisions (robot
// selection, zone caps, conflict handling) live in one place.
package coordinator

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fleetcore/arbiter"
	"fleetcore/battery"
	"fleetcore/fleet"
	"fleetcore/grid"
	"fleetcore/mission"
	"fleetcore/planner"
)

// Config tunes coordination behavior.
type Config struct {
	Weights          fleet.SelectorWeights
	ZoneCap          int     // default concurrent robots per zone
	CongestionWeight float64 // per-reservation planner penalty
	RobotSpeed       float64 // m/s
}

func (c *Config) applyDefaults() {
	if c.ZoneCap <= 0 {
		c.ZoneCap = 3
	}
	if c.RobotSpeed <= 0 {
		c.RobotSpeed = 1.0
	}
}

// Coordinator owns fleet-wide coordination state: zone occupancy and the
// missions waiting on a full zone. All other state lives in the
// collaborators it drives.
type Coordinator struct {
	cfg      Config
	gm       *grid.Map
	arb      *arbiter.Arbiter
	missions *mission.Manager
	roster   *fleet.Roster
	charger  *battery.Scheduler
	emitter  EventEmitter
	commands CommandSender
	logf     func(format string, args ...any)

	mu          sync.Mutex
	zoneRobots  map[string]map[string]struct{} // zone -> robots inside
	robotZones  map[string][]string            // robot -> zones it occupies
	zoneWaiters map[string][]string            // zone -> mission IDs waiting
	lowNotified map[string]bool                // robots already flagged low
}

func New(cfg Config, gm *grid.Map, arb *arbiter.Arbiter, missions *mission.Manager,
	roster *fleet.Roster, charger *battery.Scheduler, emitter EventEmitter, commands CommandSender) *Coordinator {
	cfg.applyDefaults()
	return &Coordinator{
		cfg:         cfg,
		gm:          gm,
		arb:         arb,
		missions:    missions,
		roster:      roster,
		charger:     charger,
		emitter:     emitter,
		commands:    commands,
		logf:        log.Printf,
		zoneRobots:  make(map[string]map[string]struct{}),
		robotZones:  make(map[string][]string),
		zoneWaiters: make(map[string][]string),
		lowNotified: make(map[string]bool),
	}
}

// SetLogFunc overrides the log sink.
func (c *Coordinator) SetLogFunc(fn func(format string, args ...any)) {
	if fn != nil {
		c.logf = fn
	}
}

// SubmitMission validates and enqueues a new transport or reposition
// mission, then immediately tries to assign it.
func (c *Coordinator) SubmitMission(kind string, priority int, waypoints []grid.Position, reqs mission.Requirements) (mission.Mission, error) {
	if kind != mission.KindTransport && kind != mission.KindReposition {
		return mission.Mission{}, fmt.Errorf("coordinator: unknown mission kind %q", kind)
	}
	if len(waypoints) == 0 {
		return mission.Mission{}, errors.New("coordinator: mission needs at least one waypoint")
	}
	for _, wp := range waypoints {
		if !c.gm.IsWalkable(c.gm.CellAt(wp)) {
			return mission.Mission{}, fmt.Errorf("coordinator: waypoint (%.2f, %.2f) is not walkable", wp.X, wp.Y)
		}
	}

	m := c.missions.Create(kind, priority, waypoints, reqs)
	if err := c.missions.Transition(m.ID, mission.StatusQueued, "submitted"); err != nil {
		return mission.Mission{}, err
	}
	c.logf("coordinator: mission %s (%s, priority %d) queued", m.ID, kind, priority)
	c.TryAssignQueued()
	m, _ = c.missions.Get(m.ID)
	return m, nil
}

// Cancel aborts a mission from any non-terminal state: reservation
// released, robot stopped and freed, within the same call.
func (c *Coordinator) Cancel(id, reason string) error {
	snap, err := c.missions.Cancel(id, reason)
	if err != nil {
		return err
	}
	if snap.ReservationID != "" {
		c.arb.Release(snap.ReservationID)
	}
	var freed []string
	if snap.RobotID != "" {
		c.commands.SendStop(snap.RobotID)
		freed = c.releaseZones(snap.RobotID)
		c.roster.Free(snap.RobotID, fleet.StatusIdle)
	}
	if snap.Kind == mission.KindCharge && snap.PinnedRobot != "" {
		c.releaseCharger(snap.PinnedRobot)
	}
	c.logf("coordinator: mission %s cancelled (%s)", id, reason)
	c.retryZoneWaiters(freed)
	c.TryAssignQueued()
	return nil
}

// TryAssignQueued walks the queue in priority order and assigns every
// mission a robot can serve. Invoked on every fleet state change rather
// than on a poll.
func (c *Coordinator) TryAssignQueued() {
	for _, m := range c.missions.QueuedByPriority() {
		robotID, ok := c.pickRobot(m)
		if !ok {
			continue
		}
		if err := c.roster.Assign(robotID, m.ID); err != nil {
			continue
		}
		if err := c.missions.Assign(m.ID, robotID); err != nil {
			c.roster.Free(robotID, fleet.StatusIdle)
			continue
		}
		c.emitter.EmitMissionAssigned(m.ID, robotID)
		c.logf("coordinator: mission %s assigned to robot %s", m.ID, robotID)
		c.planAndDispatch(m.ID)
	}
}

func (c *Coordinator) pickRobot(m mission.Mission) (string, bool) {
	if m.PinnedRobot != "" {
		r, ok := c.roster.Get(m.PinnedRobot)
		if !ok || r.Status != fleet.StatusIdle || r.MissionID != "" {
			return "", false
		}
		return r.ID, true
	}
	return fleet.SelectRobot(m.Waypoints[0], m.Reqs.PayloadClass, m.Reqs.SpeedClass, c.roster.List(), c.cfg.Weights)
}

// planAndDispatch drives an assigned mission through Planning into
// EnRoute: plan, zone admission, reserve, move command. Conflicts with a
// higher-priority reservation trigger one re-plan around the winner's
// cells before the mission fails back to the queue.
func (c *Coordinator) planAndDispatch(missionID string) {
	m, ok := c.missions.Get(missionID)
	if !ok {
		return
	}
	robot, ok := c.roster.Get(m.RobotID)
	if !ok {
		c.failMission(m, "robot disappeared")
		return
	}
	if m.Status == mission.StatusAssigned || m.Status == mission.StatusEnRoute {
		if err := c.missions.Transition(m.ID, mission.StatusPlanning, ""); err != nil {
			return
		}
	}

	start := c.gm.CellAt(robot.Pos)
	goal := c.gm.CellAt(m.Target())

	var avoid []grid.Cell
	for attempt := 0; attempt < 2; attempt++ {
		opts := planner.Options{
			Speed:       c.cfg.RobotSpeed,
			CellPenalty: c.arb.PenaltyFunc(c.cfg.CongestionWeight, robot.ID, avoid),
		}
		p, err := planner.Plan(c.gm, start, goal, opts)
		if err != nil {
			c.failMission(m, "no path to target")
			return
		}

		if zone, full := c.zoneOverCap(robot.ID, p.Cells); full {
			c.waitForZone(m.ID, robot.ID, zone)
			return
		}

		resID, preempted, err := c.arb.Reserve(robot.ID, p, m.Priority)
		var conflict *arbiter.ConflictError
		if errors.As(err, &conflict) {
			c.emitter.EmitCollisionAvoided(m.ID, robot.ID, conflict.OtherRobot, conflict.Reason)
			c.logf("coordinator: mission %s conflict with %s (%s), re-planning", m.ID, conflict.OtherRobot, conflict.Reason)
			if conflict.OtherRobot != "" && attempt == 0 {
				avoid = c.arb.ReservedCells(conflict.OtherRobot)
				continue
			}
			c.failMission(m, "reservation conflict: "+conflict.Reason)
			return
		}
		if err != nil {
			c.failMission(m, err.Error())
			return
		}

		c.missions.SetPath(m.ID, p)
		c.missions.SetReservation(m.ID, resID)
		c.occupyZones(robot.ID, c.gm.ZonesOn(p.Cells))
		if err := c.missions.Transition(m.ID, mission.StatusEnRoute, ""); err != nil {
			c.arb.Release(resID)
			return
		}
		c.roster.SetStatus(robot.ID, fleet.StatusExecuting)
		c.commands.SendMove(robot.ID, p.Points)
		c.emitter.EmitPathPlanned(m.ID, robot.ID, p)

		for _, loser := range preempted {
			c.preempted(loser, robot.ID)
		}
		return
	}
}

// preempted handles a robot whose reservation was revoked by a
// higher-priority mission: stop first, then re-plan around the winner.
func (c *Coordinator) preempted(robotID, winnerID string) {
	c.commands.SendStop(robotID)
	r, ok := c.roster.Get(robotID)
	if !ok || r.MissionID == "" {
		return
	}
	m, ok := c.missions.Get(r.MissionID)
	if !ok {
		return
	}
	c.emitter.EmitCollisionAvoided(m.ID, robotID, winnerID, arbiter.ReasonSeparation)
	c.logf("coordinator: robot %s preempted by %s, re-planning mission %s", robotID, winnerID, m.ID)
	if m.Status == mission.StatusEnRoute {
		if err := c.missions.Transition(m.ID, mission.StatusPlanning, "preempted by "+winnerID); err != nil {
			return
		}
	}
	c.planAndDispatch(m.ID)
}

// HandlePositionReport ingests robot telemetry and detects arrival at
// the mission target.
func (c *Coordinator) HandlePositionReport(robotID string, pos grid.Position) {
	r := c.roster.UpdatePosition(robotID, pos)
	if r.MissionID == "" {
		return
	}
	c.missions.Touch(r.MissionID)

	m, ok := c.missions.Get(r.MissionID)
	if !ok || m.Status != mission.StatusEnRoute {
		return
	}
	if pos.Distance(m.Target()) <= c.gm.CellSize() {
		c.completeMission(m, r)
	}
}

func (c *Coordinator) completeMission(m mission.Mission, r fleet.Robot) {
	if m.ReservationID != "" {
		c.arb.Release(m.ReservationID)
	}
	if err := c.missions.Transition(m.ID, mission.StatusCompleted, ""); err != nil {
		return
	}
	freed := c.releaseZones(r.ID)

	if m.Kind == mission.KindCharge {
		c.roster.Free(r.ID, fleet.StatusCharging)
		c.logf("coordinator: robot %s docked at station %s", r.ID, m.StationID)
	} else {
		c.roster.Free(r.ID, fleet.StatusIdle)
		c.logf("coordinator: mission %s completed by robot %s", m.ID, r.ID)
	}

	c.retryZoneWaiters(freed)
	c.TryAssignQueued()
}

// HandleBatteryReport ingests battery telemetry: it raises low/critical
// events, interrupts en-route work below the critical threshold, and
// releases charged robots back to the fleet.
func (c *Coordinator) HandleBatteryReport(robotID string, percent float64, runtime time.Duration) {
	r, ok := c.roster.UpdateBattery(robotID, percent, runtime)
	if !ok {
		return
	}

	c.mu.Lock()
	wasLow := c.lowNotified[robotID]
	nowLow := r.Battery.IsLow()
	c.lowNotified[robotID] = nowLow
	c.mu.Unlock()
	if nowLow && !wasLow {
		c.emitter.EmitBatteryLow(robotID, percent)
	}

	if r.Status == fleet.StatusCharging {
		if c.charger.Charged(percent) {
			c.roster.SetStatus(robotID, fleet.StatusIdle)
			c.releaseCharger(robotID)
			c.logf("coordinator: robot %s charged to %.0f%%, back in service", robotID, percent)
			c.TryAssignQueued()
		}
		return
	}

	if !r.Battery.IsCritical() {
		return
	}
	c.emitter.EmitBatteryCritical(robotID, percent)

	// Critical mid-mission: the mission goes back to the queue for another
	// robot and this one heads straight to a charger.
	if r.MissionID != "" {
		m, ok := c.missions.Get(r.MissionID)
		if ok && m.Kind != mission.KindCharge {
			c.interruptMission(m, r, "battery critical")
		}
	}
	if req, ok := c.charger.Request(robotID, r.Pos, percent); ok {
		c.dispatchCharge(req)
	}
}

// interruptMission stops a robot mid-mission and requeues its work.
func (c *Coordinator) interruptMission(m mission.Mission, r fleet.Robot, reason string) {
	c.commands.SendStop(r.ID)
	if m.ReservationID != "" {
		c.arb.Release(m.ReservationID)
	}
	freed := c.releaseZones(r.ID)
	c.roster.Free(r.ID, fleet.StatusIdle)
	if _, err := c.missions.Fail(m.ID, reason); err != nil {
		c.logf("coordinator: mission %s: %v", m.ID, err)
	}
	c.retryZoneWaiters(freed)
}

// EvaluateCharging is the periodic charge sweep: idle robots below the
// low threshold each get a charge mission.
func (c *Coordinator) EvaluateCharging() {
	for _, req := range c.charger.Evaluate(c.roster.List()) {
		c.dispatchCharge(req)
	}
}

func (c *Coordinator) dispatchCharge(req battery.ChargeRequest) {
	m := c.missions.CreateCharge(req.RobotID, req.StationID, req.Priority, req.Target)
	if err := c.missions.Transition(m.ID, mission.StatusQueued, "charge scheduled"); err != nil {
		return
	}
	c.emitter.EmitChargeScheduled(req.RobotID, req.StationID, m.ID)
	c.logf("coordinator: charge mission %s for robot %s at station %s", m.ID, req.RobotID, req.StationID)
	c.TryAssignQueued()
}

func (c *Coordinator) releaseCharger(robotID string) {
	if next, ok := c.charger.Release(robotID); ok {
		c.dispatchCharge(next)
	}
}

// HandleObstacle ingests an obstacle report. Static obstacles that block
// reserved cells stop the affected robots and trigger a re-plan; the
// missions do not fail.
func (c *Coordinator) HandleObstacle(o *grid.Obstacle) {
	changed := c.gm.AddObstacle(o)
	if len(changed) == 0 {
		return
	}
	c.logf("coordinator: obstacle %s (%s) blocks %d cells", o.ID, o.Class, len(changed))
	for _, robotID := range c.arb.RobotsOnCells(changed) {
		c.replanRobot(robotID, arbiter.ReasonBlockedPath)
	}
}

// HandleObstacleExpire removes a reported obstacle.
func (c *Coordinator) HandleObstacleExpire(id string) {
	if cells := c.gm.RemoveObstacle(id); len(cells) > 0 {
		c.TryAssignQueued()
	}
}

// SweepStaleObstacles expires obstacles past the staleness window.
func (c *Coordinator) SweepStaleObstacles(now time.Time, ttl time.Duration) []*grid.Obstacle {
	stale := c.gm.RemoveStaleObstacles(now, ttl)
	if len(stale) > 0 {
		c.logf("coordinator: expired %d stale obstacles", len(stale))
		c.TryAssignQueued()
	}
	return stale
}

// RecheckSafety re-validates every active reservation against obstacles
// that appeared after it was granted. Violations stop the robot before
// any re-planning happens.
func (c *Coordinator) RecheckSafety(now time.Time) {
	for _, v := range c.arb.RecheckActive(now) {
		c.logf("coordinator: safety violation for robot %s (%s)", v.RobotID, v.Reason)
		c.replanRobot(v.RobotID, v.Reason)
	}
}

// replanRobot stops a robot whose reserved path became unsafe and
// re-plans its mission in place.
func (c *Coordinator) replanRobot(robotID, reason string) {
	c.commands.SendStop(robotID)
	c.arb.ReleaseRobot(robotID)
	r, ok := c.roster.Get(robotID)
	if !ok || r.MissionID == "" {
		return
	}
	m, ok := c.missions.Get(r.MissionID)
	if !ok {
		return
	}
	c.emitter.EmitCollisionAvoided(m.ID, robotID, "", reason)
	if m.Status == mission.StatusEnRoute {
		if err := c.missions.Transition(m.ID, mission.StatusPlanning, reason); err != nil {
			return
		}
	}
	c.planAndDispatch(m.ID)
}

// HandleRobotError marks a robot failed. Its mission is requeued for
// another robot; the robot itself stays in Error until an external
// maintenance clear.
func (c *Coordinator) HandleRobotError(robotID, detail string) {
	c.commands.SendStop(robotID)
	c.emitter.EmitRobotError(robotID, detail)
	c.logf("coordinator: robot %s hardware error: %s", robotID, detail)

	r, ok := c.roster.Get(robotID)
	if ok && r.MissionID != "" {
		if m, ok := c.missions.Get(r.MissionID); ok {
			if m.ReservationID != "" {
				c.arb.Release(m.ReservationID)
			}
			freed := c.releaseZones(robotID)
			if _, err := c.missions.Fail(m.ID, "robot error: "+detail); err != nil {
				c.logf("coordinator: mission %s: %v", m.ID, err)
			}
			c.retryZoneWaiters(freed)
		}
	}
	c.arb.ReleaseRobot(robotID)
	c.roster.SetStatus(robotID, fleet.StatusError)
	c.roster.Free(robotID, fleet.StatusError)
	c.releaseCharger(robotID)
	c.TryAssignQueued()
}

// ClearRobotError is the external maintenance acknowledgement that
// returns an errored robot to service.
func (c *Coordinator) ClearRobotError(robotID string) error {
	if err := c.roster.ClearError(robotID); err != nil {
		return err
	}
	c.logf("coordinator: robot %s error cleared", robotID)
	c.TryAssignQueued()
	return nil
}

// FailTimedOut fails en-route missions with no activity inside the
// timeout window. Failed missions retry with a fresh robot while the
// budget lasts.
func (c *Coordinator) FailTimedOut(now time.Time) {
	for _, m := range c.missions.TimedOut(now) {
		c.logf("coordinator: mission %s timed out", m.ID)
		if r, ok := c.roster.Get(m.RobotID); ok {
			c.interruptMission(m, r, "inactivity timeout")
		}
	}
	c.TryAssignQueued()
}

// zoneOverCap reports the first zone on the path that is already at its
// occupancy cap, ignoring zones the robot is already inside.
func (c *Coordinator) zoneOverCap(robotID string, cells []grid.Cell) (string, bool) {
	zones := c.gm.ZonesOn(cells)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, z := range zones {
		if _, inside := c.zoneRobots[z][robotID]; inside {
			continue
		}
		cap := c.gm.ZoneCap(z)
		if cap <= 0 {
			cap = c.cfg.ZoneCap
		}
		if len(c.zoneRobots[z]) >= cap {
			return z, true
		}
	}
	return "", false
}

// waitForZone parks a planning mission until the zone drains. The robot
// holds position; the mission is retried when any occupant leaves.
func (c *Coordinator) waitForZone(missionID, robotID, zone string) {
	c.mu.Lock()
	for _, id := range c.zoneWaiters[zone] {
		if id == missionID {
			c.mu.Unlock()
			return
		}
	}
	c.zoneWaiters[zone] = append(c.zoneWaiters[zone], missionID)
	c.mu.Unlock()

	c.commands.SendWait(robotID)
	c.emitter.EmitZoneWait(missionID, robotID, zone)
	c.logf("coordinator: mission %s waiting at zone %s boundary", missionID, zone)
}

func (c *Coordinator) occupyZones(robotID string, zones []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, z := range zones {
		if c.zoneRobots[z] == nil {
			c.zoneRobots[z] = make(map[string]struct{})
		}
		c.zoneRobots[z][robotID] = struct{}{}
	}
	c.robotZones[robotID] = zones
}

func (c *Coordinator) releaseZones(robotID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	zones := c.robotZones[robotID]
	for _, z := range zones {
		delete(c.zoneRobots[z], robotID)
	}
	delete(c.robotZones, robotID)
	return zones
}

// retryZoneWaiters re-dispatches missions parked on the freed zones.
func (c *Coordinator) retryZoneWaiters(zones []string) {
	var retry []string
	c.mu.Lock()
	for _, z := range zones {
		retry = append(retry, c.zoneWaiters[z]...)
		delete(c.zoneWaiters, z)
	}
	c.mu.Unlock()

	for _, id := range retry {
		m, ok := c.missions.Get(id)
		if !ok || m.Status != mission.StatusPlanning {
			continue
		}
		if r, ok := c.roster.Get(m.RobotID); ok {
			c.commands.SendResume(r.ID)
		}
		c.planAndDispatch(id)
	}
}

// ZoneOccupancy returns a snapshot of robots per zone, for monitoring.
func (c *Coordinator) ZoneOccupancy() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]string, len(c.zoneRobots))
	for z, robots := range c.zoneRobots {
		ids := make([]string, 0, len(robots))
		for id := range robots {
			ids = append(ids, id)
		}
		out[z] = ids
	}
	return out
}

// failMission fails a mission and cleans up its bindings. The manager
// requeues it while the retry budget lasts.
func (c *Coordinator) failMission(m mission.Mission, reason string) {
	if m.ReservationID != "" {
		c.arb.Release(m.ReservationID)
	}
	var freed []string
	if m.RobotID != "" {
		freed = c.releaseZones(m.RobotID)
		c.roster.Free(m.RobotID, fleet.StatusIdle)
	}
	if _, err := c.missions.Fail(m.ID, reason); err != nil {
		c.logf("coordinator: mission %s: %v", m.ID, err)
	}
	c.retryZoneWaiters(freed)
}
