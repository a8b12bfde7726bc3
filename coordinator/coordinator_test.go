package coordinator

import (
	"testing"
	"time"

	"fleetcore/arbiter"
	"fleetcore/battery"
	"fleetcore/fleet"
	"fleetcore/grid"
	"fleetcore/mission"
	"fleetcore/planner"
)

// --- Mock emitter (covers both the mission and coordinator interfaces) ---

type collision struct {
	missionID, robotID, otherRobot, reason string
}

type mockEmitter struct {
	assigned        []string
	planned         []string
	collisions      []collision
	batteryLow      []string
	batteryCritical []string
	robotErrors     []string
	charges         []string
	zoneWaits       []string
	completed       []string
	finalFailed     []string
}

func (m *mockEmitter) EmitMissionStatusChanged(_, _, _, _, _ string) {}
func (m *mockEmitter) EmitMissionCompleted(missionID, _, _ string) {
	m.completed = append(m.completed, missionID)
}
func (m *mockEmitter) EmitMissionFailed(missionID, _, _, _ string, _ bool) {
	m.finalFailed = append(m.finalFailed, missionID)
}
func (m *mockEmitter) EmitMissionAssigned(missionID, _ string) {
	m.assigned = append(m.assigned, missionID)
}
func (m *mockEmitter) EmitPathPlanned(missionID, _ string, _ *planner.Path) {
	m.planned = append(m.planned, missionID)
}
func (m *mockEmitter) EmitCollisionAvoided(missionID, robotID, otherRobot, reason string) {
	m.collisions = append(m.collisions, collision{missionID, robotID, otherRobot, reason})
}
func (m *mockEmitter) EmitBatteryLow(robotID string, _ float64) {
	m.batteryLow = append(m.batteryLow, robotID)
}
func (m *mockEmitter) EmitBatteryCritical(robotID string, _ float64) {
	m.batteryCritical = append(m.batteryCritical, robotID)
}
func (m *mockEmitter) EmitRobotError(robotID, _ string) {
	m.robotErrors = append(m.robotErrors, robotID)
}
func (m *mockEmitter) EmitChargeScheduled(robotID, _, _ string) {
	m.charges = append(m.charges, robotID)
}
func (m *mockEmitter) EmitZoneWait(missionID, _, _ string) {
	m.zoneWaits = append(m.zoneWaits, missionID)
}

// --- Mock command sender ---

type command struct {
	robotID, cmd string
}

type mockCommands struct {
	sent []command
}

func (m *mockCommands) SendMove(robotID string, _ []grid.Position) {
	m.sent = append(m.sent, command{robotID, "move"})
}
func (m *mockCommands) SendStop(robotID string)   { m.sent = append(m.sent, command{robotID, "stop"}) }
func (m *mockCommands) SendWait(robotID string)   { m.sent = append(m.sent, command{robotID, "wait"}) }
func (m *mockCommands) SendResume(robotID string) { m.sent = append(m.sent, command{robotID, "resume"}) }

func (m *mockCommands) count(robotID, cmd string) int {
	n := 0
	for _, c := range m.sent {
		if c.robotID == robotID && c.cmd == cmd {
			n++
		}
	}
	return n
}

// --- Test harness ---

type testEnv struct {
	gm       *grid.Map
	arb      *arbiter.Arbiter
	missions *mission.Manager
	roster   *fleet.Roster
	charger  *battery.Scheduler
	em       *mockEmitter
	cmd      *mockCommands
	c        *Coordinator
}

func newEnv(t *testing.T, gm *grid.Map) *testEnv {
	t.Helper()
	em := &mockEmitter{}
	cmd := &mockCommands{}
	e := &testEnv{
		gm:       gm,
		arb:      arbiter.New(gm, arbiter.Config{Separation: 0.5, HumanMargin: 0.5, SampleResolution: 250 * time.Millisecond}),
		missions: mission.NewManager(em, 3, time.Hour),
		roster:   fleet.NewRoster(),
		charger:  battery.NewScheduler(battery.Config{LowPercent: 20, CriticalPercent: 10, ResumePercent: 80, ChargePriority: 100}),
		em:       em,
		cmd:      cmd,
	}
	e.c = New(Config{
		Weights:          fleet.SelectorWeights{Distance: 1.0, Battery: 0.5, Utilization: 0.25},
		ZoneCap:          3,
		CongestionWeight: 0.5,
		RobotSpeed:       1.0,
	}, e.gm, e.arb, e.missions, e.roster, e.charger, em, cmd)
	e.c.SetLogFunc(t.Logf)
	return e
}

func (e *testEnv) addRobot(id string, cell grid.Cell, percent float64) {
	e.roster.Upsert(fleet.Robot{
		ID:      id,
		Pos:     e.gm.CenterOf(cell),
		Battery: fleet.BatteryStatus{Percent: percent},
		Status:  fleet.StatusIdle,
		Caps:    fleet.Capabilities{PayloadClass: 1, SpeedClass: 1},
	})
}

func (e *testEnv) missionStatus(t *testing.T, id string) string {
	t.Helper()
	m, ok := e.missions.Get(id)
	if !ok {
		t.Fatalf("mission %s not found", id)
	}
	return m.Status
}

func openEnv(t *testing.T) *testEnv {
	return newEnv(t, grid.NewMap(20, 20, 1.0, false))
}

func corridorEnv(t *testing.T) *testEnv {
	return newEnv(t, grid.NewMap(20, 1, 1.0, false))
}

// --- Tests ---

func TestSubmitAssignsAndDispatches(t *testing.T) {
	e := openEnv(t)
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 90)

	m, err := e.c.SubmitMission(mission.KindTransport, 5, []grid.Position{e.gm.CenterOf(grid.Cell{X: 10, Y: 0})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if m.Status != mission.StatusEnRoute {
		t.Fatalf("status = %s, want en_route", m.Status)
	}
	if m.RobotID != "r1" {
		t.Errorf("robot = %q, want r1", m.RobotID)
	}

	r, _ := e.roster.Get("r1")
	if r.Status != fleet.StatusExecuting {
		t.Errorf("robot status = %s, want executing", r.Status)
	}
	if e.cmd.count("r1", "move") != 1 {
		t.Errorf("move commands = %d, want 1", e.cmd.count("r1", "move"))
	}
	if len(e.arb.Active()) != 1 {
		t.Errorf("active reservations = %d, want 1", len(e.arb.Active()))
	}
	if len(e.em.planned) != 1 {
		t.Errorf("path planned events = %d, want 1", len(e.em.planned))
	}
}

func TestSubmitValidation(t *testing.T) {
	e := openEnv(t)
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 90)

	if _, err := e.c.SubmitMission("patrol", 1, []grid.Position{{X: 1, Y: 1}}, mission.Requirements{}); err == nil {
		t.Error("unknown kind must be rejected")
	}
	if _, err := e.c.SubmitMission(mission.KindTransport, 1, nil, mission.Requirements{}); err == nil {
		t.Error("empty waypoints must be rejected")
	}
	e.gm.SetBlocked(grid.Cell{X: 5, Y: 5}, true)
	if _, err := e.c.SubmitMission(mission.KindTransport, 1, []grid.Position{e.gm.CenterOf(grid.Cell{X: 5, Y: 5})}, mission.Requirements{}); err == nil {
		t.Error("unwalkable waypoint must be rejected")
	}
}

func TestNoEligibleRobotLeavesQueued(t *testing.T) {
	e := openEnv(t)

	m, err := e.c.SubmitMission(mission.KindTransport, 1, []grid.Position{e.gm.CenterOf(grid.Cell{X: 5, Y: 5})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if m.Status != mission.StatusQueued {
		t.Errorf("status = %s, want queued with empty roster", m.Status)
	}

	// A robot comes online and the queue drains on the next state change.
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 90)
	e.c.TryAssignQueued()
	if got := e.missionStatus(t, m.ID); got != mission.StatusEnRoute {
		t.Errorf("status = %s, want en_route after robot arrived", got)
	}
}

func TestArrivalCompletesMission(t *testing.T) {
	e := openEnv(t)
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 90)

	target := e.gm.CenterOf(grid.Cell{X: 10, Y: 0})
	m, err := e.c.SubmitMission(mission.KindTransport, 5, []grid.Position{target}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Telemetry short of the target keeps the mission running.
	e.c.HandlePositionReport("r1", e.gm.CenterOf(grid.Cell{X: 5, Y: 0}))
	if got := e.missionStatus(t, m.ID); got != mission.StatusEnRoute {
		t.Fatalf("status = %s, want en_route mid-path", got)
	}

	e.c.HandlePositionReport("r1", target)
	if got := e.missionStatus(t, m.ID); got != mission.StatusCompleted {
		t.Fatalf("status = %s, want completed at target", got)
	}
	r, _ := e.roster.Get("r1")
	if r.Status != fleet.StatusIdle || r.MissionID != "" {
		t.Errorf("robot after completion: %+v", r)
	}
	if len(e.arb.Active()) != 0 {
		t.Error("reservation should be released on completion")
	}
	if len(e.em.completed) != 1 {
		t.Errorf("completed events = %d, want 1", len(e.em.completed))
	}
}

func TestHeadOnConflictRequeuesLoser(t *testing.T) {
	e := corridorEnv(t)
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 90)
	e.addRobot("r2", grid.Cell{X: 19, Y: 0}, 90)

	m1, err := e.c.SubmitMission(mission.KindTransport, 3,
		[]grid.Position{e.gm.CenterOf(grid.Cell{X: 1, Y: 0}), e.gm.CenterOf(grid.Cell{X: 19, Y: 0})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit m1: %v", err)
	}
	if m1.RobotID != "r1" {
		t.Fatalf("m1 robot = %q, want r1", m1.RobotID)
	}

	// Same priority, opposite direction, nowhere to go around.
	m2, err := e.c.SubmitMission(mission.KindTransport, 3,
		[]grid.Position{e.gm.CenterOf(grid.Cell{X: 18, Y: 0}), e.gm.CenterOf(grid.Cell{X: 0, Y: 0})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit m2: %v", err)
	}

	if got := e.missionStatus(t, m1.ID); got != mission.StatusEnRoute {
		t.Errorf("m1 status = %s, want en_route (existing wins the tie)", got)
	}
	got, _ := e.missions.Get(m2.ID)
	if got.Status != mission.StatusQueued {
		t.Errorf("m2 status = %s, want queued for retry", got.Status)
	}
	if got.Retries != 1 {
		t.Errorf("m2 retries = %d, want 1", got.Retries)
	}
	if len(e.em.collisions) == 0 {
		t.Error("conflict should emit a collision avoided event")
	}
	r2, _ := e.roster.Get("r2")
	if r2.Status != fleet.StatusIdle || r2.MissionID != "" {
		t.Errorf("r2 should be freed: %+v", r2)
	}
}

func TestHigherPriorityPreempts(t *testing.T) {
	e := corridorEnv(t)
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 90)
	e.addRobot("r2", grid.Cell{X: 19, Y: 0}, 90)

	m1, err := e.c.SubmitMission(mission.KindTransport, 1,
		[]grid.Position{e.gm.CenterOf(grid.Cell{X: 1, Y: 0}), e.gm.CenterOf(grid.Cell{X: 19, Y: 0})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit m1: %v", err)
	}

	m2, err := e.c.SubmitMission(mission.KindTransport, 10,
		[]grid.Position{e.gm.CenterOf(grid.Cell{X: 18, Y: 0}), e.gm.CenterOf(grid.Cell{X: 0, Y: 0})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit m2: %v", err)
	}

	if got := e.missionStatus(t, m2.ID); got != mission.StatusEnRoute {
		t.Errorf("m2 status = %s, want en_route (priority 10 wins)", got)
	}
	got, _ := e.missions.Get(m1.ID)
	if got.Status != mission.StatusQueued {
		t.Errorf("m1 status = %s, want queued after preemption", got.Status)
	}
	if e.cmd.count("r1", "stop") == 0 {
		t.Error("preempted robot must receive a stop before anything else")
	}
	if len(e.arb.Active()) != 1 {
		t.Errorf("active reservations = %d, want 1 (winner only)", len(e.arb.Active()))
	}
}

func TestZoneCapParksMission(t *testing.T) {
	gm := grid.NewMap(20, 3, 1.0, false)
	gm.SetZone("mid", 1, 8, 0, 10, 2)
	e := newEnv(t, gm)
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 90)
	e.addRobot("r2", grid.Cell{X: 0, Y: 2}, 90)

	m1, err := e.c.SubmitMission(mission.KindTransport, 5,
		[]grid.Position{e.gm.CenterOf(grid.Cell{X: 1, Y: 0}), e.gm.CenterOf(grid.Cell{X: 19, Y: 0})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit m1: %v", err)
	}
	if got := e.missionStatus(t, m1.ID); got != mission.StatusEnRoute {
		t.Fatalf("m1 status = %s, want en_route", got)
	}

	m2, err := e.c.SubmitMission(mission.KindTransport, 5,
		[]grid.Position{e.gm.CenterOf(grid.Cell{X: 1, Y: 2}), e.gm.CenterOf(grid.Cell{X: 19, Y: 2})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit m2: %v", err)
	}

	if got := e.missionStatus(t, m2.ID); got != mission.StatusPlanning {
		t.Fatalf("m2 status = %s, want planning while parked at zone", got)
	}
	if e.cmd.count("r2", "wait") != 1 {
		t.Errorf("wait commands to r2 = %d, want 1", e.cmd.count("r2", "wait"))
	}
	if len(e.em.zoneWaits) != 1 {
		t.Errorf("zone wait events = %d, want 1", len(e.em.zoneWaits))
	}

	// The occupant leaves: the parked mission resumes and dispatches.
	e.c.HandlePositionReport("r1", e.gm.CenterOf(grid.Cell{X: 19, Y: 0}))
	if got := e.missionStatus(t, m2.ID); got != mission.StatusEnRoute {
		t.Errorf("m2 status = %s, want en_route after zone drained", got)
	}
	if e.cmd.count("r2", "resume") != 1 {
		t.Errorf("resume commands to r2 = %d, want 1", e.cmd.count("r2", "resume"))
	}
}

func TestCancelWakesZoneWaiter(t *testing.T) {
	gm := grid.NewMap(20, 3, 1.0, false)
	gm.SetZone("mid", 1, 8, 0, 10, 2)
	e := newEnv(t, gm)
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 90)
	e.addRobot("r2", grid.Cell{X: 0, Y: 2}, 90)

	m1, err := e.c.SubmitMission(mission.KindTransport, 5,
		[]grid.Position{e.gm.CenterOf(grid.Cell{X: 1, Y: 0}), e.gm.CenterOf(grid.Cell{X: 19, Y: 0})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit m1: %v", err)
	}
	m2, err := e.c.SubmitMission(mission.KindTransport, 5,
		[]grid.Position{e.gm.CenterOf(grid.Cell{X: 1, Y: 2}), e.gm.CenterOf(grid.Cell{X: 19, Y: 2})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit m2: %v", err)
	}
	if got := e.missionStatus(t, m2.ID); got != mission.StatusPlanning {
		t.Fatalf("m2 status = %s, want planning while parked at zone", got)
	}

	// Cancelling the zone occupant must wake the parked mission.
	if err := e.c.Cancel(m1.ID, "order voided"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := e.missionStatus(t, m1.ID); got != mission.StatusCancelled {
		t.Errorf("m1 status = %s, want cancelled", got)
	}
	if got := e.missionStatus(t, m2.ID); got != mission.StatusEnRoute {
		t.Errorf("m2 status = %s, want en_route after occupant cancelled", got)
	}
	if e.cmd.count("r2", "resume") != 1 {
		t.Errorf("resume commands to r2 = %d, want 1", e.cmd.count("r2", "resume"))
	}
	r2, _ := e.roster.Get("r2")
	if r2.Status != fleet.StatusExecuting {
		t.Errorf("r2 status = %s, want executing", r2.Status)
	}
}

func TestBatteryCriticalInterruptsAndCharges(t *testing.T) {
	e := openEnv(t)
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 90)
	station := e.gm.CenterOf(grid.Cell{X: 2, Y: 2})
	e.charger.AddStation(battery.Station{ID: "st-1", Pos: station, Capacity: 1})

	m1, err := e.c.SubmitMission(mission.KindTransport, 5, []grid.Position{e.gm.CenterOf(grid.Cell{X: 15, Y: 0})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	e.c.HandleBatteryReport("r1", 5, 0)

	if len(e.em.batteryLow) != 1 || len(e.em.batteryCritical) != 1 {
		t.Errorf("battery events: low=%d critical=%d, want 1/1", len(e.em.batteryLow), len(e.em.batteryCritical))
	}
	if e.cmd.count("r1", "stop") == 0 {
		t.Error("critical battery must stop the robot")
	}
	if got := e.missionStatus(t, m1.ID); got != mission.StatusQueued {
		t.Errorf("interrupted mission = %s, want queued", got)
	}
	if len(e.em.charges) != 1 {
		t.Fatalf("charge scheduled events = %d, want 1", len(e.em.charges))
	}

	// The pinned charge mission outranks the requeued transport.
	charges := e.missions.List("")
	var charge mission.Mission
	for _, m := range charges {
		if m.Kind == mission.KindCharge {
			charge = m
		}
	}
	if charge.ID == "" {
		t.Fatal("no charge mission created")
	}
	if charge.Status != mission.StatusEnRoute || charge.RobotID != "r1" {
		t.Fatalf("charge mission: status=%s robot=%q, want en_route/r1", charge.Status, charge.RobotID)
	}

	// Dock, charge up, return to service: the interrupted mission resumes.
	e.c.HandlePositionReport("r1", station)
	r, _ := e.roster.Get("r1")
	if r.Status != fleet.StatusCharging {
		t.Fatalf("robot status = %s, want charging at station", r.Status)
	}

	e.c.HandleBatteryReport("r1", 85, 0)
	if got := e.missionStatus(t, m1.ID); got != mission.StatusEnRoute {
		t.Errorf("m1 status = %s, want en_route after recharge", got)
	}
	r, _ = e.roster.Get("r1")
	if r.Status != fleet.StatusExecuting {
		t.Errorf("robot status = %s, want executing again", r.Status)
	}
}

func TestEvaluateChargingSweep(t *testing.T) {
	e := openEnv(t)
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 15)
	e.charger.AddStation(battery.Station{ID: "st-1", Pos: e.gm.CenterOf(grid.Cell{X: 3, Y: 3}), Capacity: 1})

	e.c.EvaluateCharging()

	var charge mission.Mission
	for _, m := range e.missions.List("") {
		if m.Kind == mission.KindCharge {
			charge = m
		}
	}
	if charge.ID == "" {
		t.Fatal("sweep should create a charge mission for the idle low robot")
	}
	if charge.Status != mission.StatusEnRoute || charge.PinnedRobot != "r1" {
		t.Errorf("charge mission: status=%s pinned=%q", charge.Status, charge.PinnedRobot)
	}

	// Second sweep must not duplicate.
	e.c.EvaluateCharging()
	n := 0
	for _, m := range e.missions.List("") {
		if m.Kind == mission.KindCharge {
			n++
		}
	}
	if n != 1 {
		t.Errorf("charge missions = %d, want 1", n)
	}
}

func TestObstacleStopsAndReplans(t *testing.T) {
	e := openEnv(t)
	e.addRobot("r1", grid.Cell{X: 0, Y: 5}, 90)

	m1, err := e.c.SubmitMission(mission.KindTransport, 5, []grid.Position{e.gm.CenterOf(grid.Cell{X: 19, Y: 5})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	blocked := grid.Cell{X: 10, Y: 5}
	e.c.HandleObstacle(&grid.Obstacle{
		ID:       "pallet-1",
		Pos:      e.gm.CenterOf(blocked),
		Radius:   0.3,
		Class:    grid.ObstacleStatic,
		LastSeen: time.Now(),
	})

	if e.cmd.count("r1", "stop") == 0 {
		t.Error("robot must be stopped before re-planning")
	}
	if got := e.missionStatus(t, m1.ID); got != mission.StatusEnRoute {
		t.Fatalf("m1 status = %s, want en_route on the detour", got)
	}
	m, _ := e.missions.Get(m1.ID)
	for _, c := range m.Path.Cells {
		if c == blocked {
			t.Error("re-planned path still crosses the blocked cell")
		}
	}
	if e.cmd.count("r1", "move") != 2 {
		t.Errorf("move commands = %d, want 2 (original + detour)", e.cmd.count("r1", "move"))
	}
}

func TestObstacleExpireRetriesQueue(t *testing.T) {
	gm := grid.NewMap(20, 1, 1.0, false)
	e := newEnv(t, gm)
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 90)

	// A box seals the corridor before submission: the mission burns one
	// retry and waits in the queue.
	e.c.HandleObstacle(&grid.Obstacle{
		ID:       "box-1",
		Pos:      e.gm.CenterOf(grid.Cell{X: 10, Y: 0}),
		Radius:   0.3,
		Class:    grid.ObstacleStatic,
		LastSeen: time.Now(),
	})
	m1, err := e.c.SubmitMission(mission.KindTransport, 5, []grid.Position{e.gm.CenterOf(grid.Cell{X: 19, Y: 0})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := e.missionStatus(t, m1.ID); got != mission.StatusQueued {
		t.Fatalf("m1 status = %s, want queued while blocked", got)
	}

	e.c.HandleObstacleExpire("box-1")
	if got := e.missionStatus(t, m1.ID); got != mission.StatusEnRoute {
		t.Errorf("m1 status = %s, want en_route once the corridor cleared", got)
	}
}

func TestRobotErrorRequeuesMission(t *testing.T) {
	e := openEnv(t)
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 90)

	m1, err := e.c.SubmitMission(mission.KindTransport, 5, []grid.Position{e.gm.CenterOf(grid.Cell{X: 10, Y: 0})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	e.c.HandleRobotError("r1", "drive fault")

	if len(e.em.robotErrors) != 1 {
		t.Errorf("robot error events = %d, want 1", len(e.em.robotErrors))
	}
	r, _ := e.roster.Get("r1")
	if r.Status != fleet.StatusError {
		t.Errorf("robot status = %s, want error", r.Status)
	}
	if got := e.missionStatus(t, m1.ID); got != mission.StatusQueued {
		t.Errorf("m1 status = %s, want queued for another robot", got)
	}
	if len(e.arb.Active()) != 0 {
		t.Error("errored robot's reservation should be released")
	}

	// Maintenance clears the fault; the mission goes back out.
	if err := e.c.ClearRobotError("r1"); err != nil {
		t.Fatalf("clear error: %v", err)
	}
	if got := e.missionStatus(t, m1.ID); got != mission.StatusEnRoute {
		t.Errorf("m1 status = %s, want en_route after clear", got)
	}
}

func TestCancelReleasesEverything(t *testing.T) {
	e := openEnv(t)
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 90)

	m1, err := e.c.SubmitMission(mission.KindTransport, 5, []grid.Position{e.gm.CenterOf(grid.Cell{X: 10, Y: 0})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := e.c.Cancel(m1.ID, "operator abort"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := e.missionStatus(t, m1.ID); got != mission.StatusCancelled {
		t.Errorf("status = %s, want cancelled", got)
	}
	if e.cmd.count("r1", "stop") != 1 {
		t.Errorf("stop commands = %d, want 1", e.cmd.count("r1", "stop"))
	}
	r, _ := e.roster.Get("r1")
	if r.Status != fleet.StatusIdle || r.MissionID != "" {
		t.Errorf("robot after cancel: %+v", r)
	}
	if len(e.arb.Active()) != 0 {
		t.Error("reservation should be released on cancel")
	}

	if err := e.c.Cancel(m1.ID, "again"); err == nil {
		t.Error("cancelling twice must fail")
	}
}

func TestFailTimedOut(t *testing.T) {
	e := openEnv(t)
	e.addRobot("r1", grid.Cell{X: 0, Y: 0}, 90)

	m1, err := e.c.SubmitMission(mission.KindTransport, 5, []grid.Position{e.gm.CenterOf(grid.Cell{X: 10, Y: 0})}, mission.Requirements{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Inside the window nothing happens.
	e.c.FailTimedOut(time.Now().Add(30 * time.Minute))
	if got := e.missionStatus(t, m1.ID); got != mission.StatusEnRoute {
		t.Fatalf("status = %s, want en_route inside the window", got)
	}

	e.c.FailTimedOut(time.Now().Add(2 * time.Hour))
	got, _ := e.missions.Get(m1.ID)
	// The freed robot immediately takes the retry.
	if got.Status != mission.StatusEnRoute || got.Retries != 1 {
		t.Errorf("after timeout: status=%s retries=%d, want en_route/1", got.Status, got.Retries)
	}
	if e.cmd.count("r1", "stop") == 0 {
		t.Error("timed out robot should be stopped")
	}
}
