// Package engine assembles the coordination subsystems, owns the event
// bus, and runs the periodic sweeps that keep the fleet honest: safety
// rechecks, obstacle staleness, mission timeouts and charge evaluation.
package engine

import (
	"encoding/json"
	"log"
	"time"

	"fleetcore/arbiter"
	"fleetcore/battery"
	"fleetcore/config"
	"fleetcore/coordinator"
	"fleetcore/fleet"
	"fleetcore/grid"
	"fleetcore/livestate"
	"fleetcore/messaging"
	"fleetcore/mission"
	"fleetcore/store"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	Live       *livestate.Manager
	MsgClient  *messaging.Client
	Commands   coordinator.CommandSender // defaults to the messaging command publisher
	LogFunc    LogFunc
	Debug      bool
}

type Engine struct {
	cfg        *config.Config
	configPath string
	db         *store.DB
	live       *livestate.Manager
	msgClient  *messaging.Client
	commands   coordinator.CommandSender

	gm       *grid.Map
	arb      *arbiter.Arbiter
	missions *mission.Manager
	roster   *fleet.Roster
	charger  *battery.Scheduler
	coord    *coordinator.Coordinator

	Events *EventBus
	logFn  LogFunc

	stopChan     chan struct{}
	msgConnected bool
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	return &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		live:       c.Live,
		msgClient:  c.MsgClient,
		commands:   c.Commands,
		Events:     NewEventBus(),
		logFn:      logFn,
		stopChan:   make(chan struct{}),
	}
}

func (e *Engine) Start() {
	e.buildMap()

	emitter := &busEmitter{bus: e.Events}

	e.arb = arbiter.New(e.gm, arbiter.Config{
		Separation:       e.cfg.Safety.Separation,
		HumanMargin:      e.cfg.Safety.HumanMargin,
		SampleResolution: e.cfg.Safety.SampleResolution,
	})
	e.missions = mission.NewManager(emitter, e.cfg.Fleet.MaxRetries, e.cfg.Fleet.MissionTimeout)
	e.roster = fleet.NewRoster()
	e.charger = battery.NewScheduler(battery.Config{
		LowPercent:      e.cfg.Battery.LowPercent,
		CriticalPercent: e.cfg.Battery.CriticalPercent,
		ResumePercent:   e.cfg.Battery.ResumePercent,
		ChargePriority:  e.cfg.Battery.ChargePriority,
	})

	if e.commands == nil {
		e.commands = messaging.NewCommandPublisher(e.msgClient, e.cfg.Messaging.CommandTopicPrefix, e.cfg.Messaging.NodeID)
	}

	e.coord = coordinator.New(coordinator.Config{
		Weights: fleet.SelectorWeights{
			Distance:    e.cfg.Fleet.DistanceWeight,
			Battery:     e.cfg.Fleet.BatteryWeight,
			Utilization: e.cfg.Fleet.UtilizationWeight,
		},
		ZoneCap:          e.cfg.Fleet.ZoneCap,
		CongestionWeight: e.cfg.Planner.CongestionWeight,
		RobotSpeed:       e.cfg.Planner.RobotSpeed,
	}, e.gm, e.arb, e.missions, e.roster, e.charger, emitter, e.commands)
	e.coord.SetLogFunc(e.logFn)

	e.loadStations()
	e.loadRobots()
	e.wireEventHandlers()
	e.loadMissions()

	e.checkConnectionStatus()
	go e.run()

	e.logFn("engine: started (%dx%d map, %d stations)", e.gm.Width(), e.gm.Height(), len(e.charger.Stations()))
}

func (e *Engine) Stop() {
	close(e.stopChan)
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                        { return e.db }
func (e *Engine) AppConfig() *config.Config            { return e.cfg }
func (e *Engine) ConfigPath() string                   { return e.configPath }
func (e *Engine) Map() *grid.Map                       { return e.gm }
func (e *Engine) Arbiter() *arbiter.Arbiter            { return e.arb }
func (e *Engine) Missions() *mission.Manager           { return e.missions }
func (e *Engine) Roster() *fleet.Roster                { return e.roster }
func (e *Engine) Charger() *battery.Scheduler          { return e.charger }
func (e *Engine) Coordinator() *coordinator.Coordinator { return e.coord }
func (e *Engine) MsgClient() *messaging.Client         { return e.msgClient }

// Inbound returns the handler the messaging consumer routes into.
func (e *Engine) Inbound() messaging.InboundHandler {
	return &inbound{e: e}
}

func (e *Engine) buildMap() {
	mc := e.cfg.Map
	e.gm = grid.NewMap(mc.Width, mc.Height, mc.CellSize, mc.Diagonal)
	for _, r := range mc.Blocked {
		e.gm.BlockRect(r.X0, r.Y0, r.X1, r.Y1)
	}
	for _, z := range mc.Zones {
		cap := z.Cap
		if cap <= 0 {
			cap = e.cfg.Fleet.ZoneCap
		}
		e.gm.SetZone(z.Name, cap, z.Rect.X0, z.Rect.Y0, z.Rect.X1, z.Rect.Y1)
	}
}

// loadStations merges configured and persisted charging stations. Config
// wins on conflict and is written back to the store.
func (e *Engine) loadStations() {
	seen := make(map[string]struct{})
	for _, s := range e.cfg.Battery.Stations {
		pos := e.gm.CenterOf(grid.Cell{X: s.X, Y: s.Y})
		e.charger.AddStation(battery.Station{ID: s.ID, Pos: pos, Capacity: s.Capacity})
		seen[s.ID] = struct{}{}
		if err := e.db.UpsertStation(&store.StationRecord{ID: s.ID, X: pos.X, Y: pos.Y, Capacity: s.Capacity}); err != nil {
			e.logFn("engine: persist station %s: %v", s.ID, err)
		}
	}
	stations, err := e.db.ListStations()
	if err != nil {
		e.logFn("engine: load stations: %v", err)
		return
	}
	for _, s := range stations {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		e.charger.AddStation(battery.Station{
			ID:       s.ID,
			Pos:      grid.Position{X: s.X, Y: s.Y},
			Capacity: s.Capacity,
		})
	}
}

// loadRobots restores the persisted roster. Robots come back offline and
// unbound; telemetry promotes them to idle.
func (e *Engine) loadRobots() {
	robots, err := e.db.ListRobots()
	if err != nil {
		e.logFn("engine: load robots: %v", err)
		return
	}
	for _, r := range robots {
		e.roster.Upsert(fleet.Robot{
			ID:      r.ID,
			Pos:     grid.Position{X: r.X, Y: r.Y, Z: r.Z, Heading: r.Heading},
			Battery: fleet.BatteryStatus{Percent: r.Battery},
			Status:  fleet.StatusOffline,
			Caps: fleet.Capabilities{
				PayloadClass: r.PayloadClass,
				SpeedClass:   r.SpeedClass,
			},
			LastSeen: r.LastSeen,
		})
	}
	if len(robots) > 0 {
		e.logFn("engine: restored %d robots", len(robots))
	}
	e.live.Sync(e.roster.List())
}

// loadMissions restores non-terminal missions from the store. They
// requeue and re-plan from scratch since reservations are in-memory.
func (e *Engine) loadMissions() {
	records, err := e.db.ListActiveMissions()
	if err != nil {
		e.logFn("engine: load missions: %v", err)
		return
	}
	for _, rec := range records {
		var waypoints []grid.Position
		if err := json.Unmarshal([]byte(rec.Waypoints), &waypoints); err != nil {
			e.logFn("engine: mission %s waypoints: %v", rec.ID, err)
			continue
		}
		e.missions.Restore(mission.Mission{
			ID:          rec.ID,
			Kind:        rec.Kind,
			Priority:    rec.Priority,
			Waypoints:   waypoints,
			Reqs:        mission.Requirements{PayloadClass: rec.PayloadClass, SpeedClass: rec.SpeedClass},
			PinnedRobot: rec.PinnedRobot,
			StationID:   rec.StationID,
			Status:      rec.Status,
			Retries:     rec.Retries,
			FailReason:  rec.FailReason,
			CreatedAt:   rec.CreatedAt,
			UpdatedAt:   rec.UpdatedAt,
		})
	}
	if len(records) > 0 {
		e.logFn("engine: restored %d active missions", len(records))
		e.coord.TryAssignQueued()
	}
}

// run is the periodic sweep loop.
func (e *Engine) run() {
	recheck := time.NewTicker(e.cfg.Safety.RecheckInterval)
	stale := time.NewTicker(time.Second)
	timeout := time.NewTicker(10 * time.Second)
	charge := time.NewTicker(e.cfg.Battery.EvaluateInterval)
	health := time.NewTicker(30 * time.Second)
	defer recheck.Stop()
	defer stale.Stop()
	defer timeout.Stop()
	defer charge.Stop()
	defer health.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-recheck.C:
			e.coord.RecheckSafety(time.Now())
		case <-stale.C:
			for _, o := range e.coord.SweepStaleObstacles(time.Now(), e.cfg.Safety.ObstacleTTL) {
				e.Events.Publish(EventObstacleExpired, ObstacleExpiredEvent{
					ObstacleID: o.ID,
					Class:      o.Class,
				})
			}
		case <-timeout.C:
			e.coord.FailTimedOut(time.Now())
		case <-charge.C:
			e.coord.EvaluateCharging()
		case <-health.C:
			e.checkConnectionStatus()
		}
	}
}

func (e *Engine) checkConnectionStatus() {
	if e.msgClient == nil {
		return
	}
	if e.msgClient.IsConnected() {
		if !e.msgConnected {
			e.msgConnected = true
			e.Events.Publish(EventMessagingConnected, ConnectionEvent{Detail: "messaging connected"})
		}
	} else {
		if e.msgConnected {
			e.msgConnected = false
			e.Events.Publish(EventMessagingDisconnected, ConnectionEvent{Detail: "messaging disconnected"})
		}
	}
}

// robotChanged persists and mirrors a robot after telemetry or a status
// change, and notifies subscribers.
func (e *Engine) robotChanged(robotID string) {
	r, ok := e.roster.Get(robotID)
	if !ok {
		return
	}
	if err := e.db.UpsertRobot(&store.RobotRecord{
		ID:           r.ID,
		X:            r.Pos.X,
		Y:            r.Pos.Y,
		Z:            r.Pos.Z,
		Heading:      r.Pos.Heading,
		Battery:      r.Battery.Percent,
		Status:       r.Status,
		PayloadClass: r.Caps.PayloadClass,
		SpeedClass:   r.Caps.SpeedClass,
		MissionID:    r.MissionID,
		LastSeen:     r.LastSeen,
	}); err != nil {
		e.logFn("engine: persist robot %s: %v", r.ID, err)
	}
	e.live.PublishRobot(r)
	e.Events.Publish(EventRobotUpdated, RobotUpdatedEvent{RobotID: r.ID})
}

// persistMission writes the current mission state through to the store
// and the live mirror.
func (e *Engine) persistMission(missionID string) {
	m, ok := e.missions.Get(missionID)
	if !ok {
		return
	}
	waypoints, err := json.Marshal(m.Waypoints)
	if err != nil {
		e.logFn("engine: marshal waypoints for %s: %v", m.ID, err)
		return
	}
	if err := e.db.UpsertMission(&store.MissionRecord{
		ID:           m.ID,
		Kind:         m.Kind,
		Priority:     m.Priority,
		Waypoints:    string(waypoints),
		PayloadClass: m.Reqs.PayloadClass,
		SpeedClass:   m.Reqs.SpeedClass,
		PinnedRobot:  m.PinnedRobot,
		StationID:    m.StationID,
		RobotID:      m.RobotID,
		Status:       m.Status,
		Retries:      m.Retries,
		FailReason:   m.FailReason,
	}); err != nil {
		e.logFn("engine: persist mission %s: %v", m.ID, err)
	}
	e.live.PublishMission(m)
}
