package engine

import (
	"time"

	"fleetcore/grid"
	"fleetcore/messaging"
	"fleetcore/mission"
	"fleetcore/planner"
)

// busEmitter bridges the mission and coordinator emitter interfaces to
// the EventBus.
type busEmitter struct {
	bus *EventBus
}

func (e *busEmitter) EmitMissionStatusChanged(missionID, kind, oldStatus, newStatus, detail string) {
	e.bus.Publish(EventMissionStatusChanged, MissionStatusChangedEvent{
		MissionID: missionID,
		Kind:      kind,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Detail:    detail,
	})
}

func (e *busEmitter) EmitMissionCompleted(missionID, kind, robotID string) {
	e.bus.Publish(EventMissionCompleted, MissionCompletedEvent{
		MissionID: missionID,
		Kind:      kind,
		RobotID:   robotID,
	})
}

func (e *busEmitter) EmitMissionFailed(missionID, kind, robotID, reason string, final bool) {
	e.bus.Publish(EventMissionFailed, MissionFailedEvent{
		MissionID: missionID,
		Kind:      kind,
		RobotID:   robotID,
		Reason:    reason,
		Final:     final,
	})
}

func (e *busEmitter) EmitMissionAssigned(missionID, robotID string) {
	e.bus.Publish(EventMissionAssigned, MissionAssignedEvent{
		MissionID: missionID,
		RobotID:   robotID,
	})
}

func (e *busEmitter) EmitPathPlanned(missionID, robotID string, path *planner.Path) {
	e.bus.Publish(EventPathPlanned, PathPlannedEvent{
		MissionID: missionID,
		RobotID:   robotID,
		Distance:  path.Distance,
		Duration:  path.Duration,
		Points:    len(path.Points),
	})
}

func (e *busEmitter) EmitCollisionAvoided(missionID, robotID, otherRobot, reason string) {
	e.bus.Publish(EventCollisionAvoided, CollisionAvoidedEvent{
		MissionID:  missionID,
		RobotID:    robotID,
		OtherRobot: otherRobot,
		Reason:     reason,
	})
}

func (e *busEmitter) EmitBatteryLow(robotID string, percent float64) {
	e.bus.Publish(EventBatteryLow, BatteryEvent{RobotID: robotID, Percent: percent})
}

func (e *busEmitter) EmitBatteryCritical(robotID string, percent float64) {
	e.bus.Publish(EventBatteryCritical, BatteryEvent{RobotID: robotID, Percent: percent})
}

func (e *busEmitter) EmitRobotError(robotID, detail string) {
	e.bus.Publish(EventRobotError, RobotErrorEvent{RobotID: robotID, Detail: detail})
}

func (e *busEmitter) EmitChargeScheduled(robotID, stationID, missionID string) {
	e.bus.Publish(EventChargeScheduled, ChargeScheduledEvent{
		RobotID:   robotID,
		StationID: stationID,
		MissionID: missionID,
	})
}

func (e *busEmitter) EmitZoneWait(missionID, robotID, zone string) {
	e.bus.Publish(EventZoneWait, ZoneWaitEvent{
		MissionID: missionID,
		RobotID:   robotID,
		Zone:      zone,
	})
}

// inbound routes decoded broker messages into the coordinator.
type inbound struct {
	e *Engine
}

func (in *inbound) HandleMissionRequest(env *messaging.Envelope, req messaging.MissionRequest) {
	waypoints := make([]grid.Position, len(req.Waypoints))
	for i, wp := range req.Waypoints {
		waypoints[i] = grid.Position{X: wp.X, Y: wp.Y, Heading: wp.Heading}
	}
	m, err := in.e.coord.SubmitMission(req.Kind, req.Priority, waypoints, missionReqs(req))
	if err != nil {
		in.e.logFn("engine: mission request from %s rejected: %v", env.Sender, err)
		return
	}
	in.e.Events.Publish(EventMissionSubmitted, MissionSubmittedEvent{
		MissionID: m.ID,
		Kind:      m.Kind,
		Priority:  m.Priority,
		Sender:    env.Sender,
	})
}

func (in *inbound) HandleMissionCancel(env *messaging.Envelope, req messaging.MissionCancel) {
	if err := in.e.coord.Cancel(req.MissionID, req.Reason); err != nil {
		in.e.logFn("engine: cancel %s from %s: %v", req.MissionID, env.Sender, err)
	}
}

func (in *inbound) HandlePositionReport(_ *messaging.Envelope, req messaging.PositionReport) {
	in.e.coord.HandlePositionReport(req.RobotID, grid.Position{
		X:       req.X,
		Y:       req.Y,
		Z:       req.Z,
		Heading: req.Heading,
		Stamp:   time.Now(),
	})
	in.e.robotChanged(req.RobotID)
}

func (in *inbound) HandleBatteryReport(_ *messaging.Envelope, req messaging.BatteryReport) {
	runtime := time.Duration(req.RuntimeSeconds * float64(time.Second))
	in.e.coord.HandleBatteryReport(req.RobotID, req.Percent, runtime)
	in.e.robotChanged(req.RobotID)
}

func (in *inbound) HandleObstacleReport(_ *messaging.Envelope, req messaging.ObstacleReport) {
	in.e.coord.HandleObstacle(&grid.Obstacle{
		ID:       req.ObstacleID,
		Pos:      grid.Position{X: req.X, Y: req.Y},
		Radius:   req.Radius,
		Class:    req.Class,
		VelX:     req.VX,
		VelY:     req.VY,
		LastSeen: time.Now(),
	})
}

func (in *inbound) HandleObstacleExpire(_ *messaging.Envelope, req messaging.ObstacleExpire) {
	in.e.coord.HandleObstacleExpire(req.ObstacleID)
}

func (in *inbound) HandleErrorReport(_ *messaging.Envelope, req messaging.ErrorReport) {
	detail := req.Detail
	if req.Code != "" {
		detail = req.Code + ": " + detail
	}
	in.e.coord.HandleRobotError(req.RobotID, detail)
	in.e.robotChanged(req.RobotID)
}

func missionReqs(req messaging.MissionRequest) mission.Requirements {
	return mission.Requirements{PayloadClass: req.PayloadClass, SpeedClass: req.SpeedClass}
}
