package engine

import (
	"fmt"

	"fleetcore/messaging"
)

func (e *Engine) wireEventHandlers() {
	// Mission submissions: audit and persist.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(MissionSubmittedEvent)
		e.logFn("engine: mission %s submitted by %s (%s, priority %d)", ev.MissionID, ev.Sender, ev.Kind, ev.Priority)
		e.db.AppendAudit("mission", ev.MissionID, "submitted", "", fmt.Sprintf("%s priority %d from %s", ev.Kind, ev.Priority, ev.Sender), "system")
		e.persistMission(ev.MissionID)
	}, EventMissionSubmitted)

	// Assignments: audit, persist, notify.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(MissionAssignedEvent)
		e.db.AppendAudit("mission", ev.MissionID, "assigned", "", ev.RobotID, "system")
		e.persistMission(ev.MissionID)
		e.notify("mission_assigned", messaging.MissionAssignedNotice{
			MissionID: ev.MissionID,
			RobotID:   ev.RobotID,
		})
	}, EventMissionAssigned)

	// Every status change: persist the mission and mirror it.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(MissionStatusChangedEvent)
		e.db.AppendAudit("mission", ev.MissionID, "status", ev.OldStatus, ev.NewStatus, "system")
		e.persistMission(ev.MissionID)
	}, EventMissionStatusChanged)

	// Planned paths: notify with the route summary.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(PathPlannedEvent)
		e.notify("path_planned", messaging.PathPlannedNotice{
			MissionID: ev.MissionID,
			RobotID:   ev.RobotID,
			Distance:  ev.Distance,
			ETASec:    ev.Duration.Seconds(),
		})
	}, EventPathPlanned)

	// Completions: audit and notify.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(MissionCompletedEvent)
		e.logFn("engine: mission %s completed", ev.MissionID)
		e.db.AppendAudit("mission", ev.MissionID, "completed", "", ev.RobotID, "system")
		e.notify("mission_completed", messaging.MissionCompletedNotice{
			MissionID: ev.MissionID,
			RobotID:   ev.RobotID,
		})
	}, EventMissionCompleted)

	// Permanent failures: audit and notify.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(MissionFailedEvent)
		e.logFn("engine: mission %s failed permanently: %s", ev.MissionID, ev.Reason)
		e.db.AppendAudit("mission", ev.MissionID, "failed", "", ev.Reason, "system")
		e.notify("mission_failed", messaging.MissionFailedNotice{
			MissionID: ev.MissionID,
			RobotID:   ev.RobotID,
			Reason:    ev.Reason,
			Final:     ev.Final,
		})
	}, EventMissionFailed)

	// Collision avoidance: audit and notify.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(CollisionAvoidedEvent)
		e.db.AppendAudit("mission", ev.MissionID, "collision_avoided", "", ev.Reason, "system")
		e.notify("collision_avoided", messaging.CollisionAvoidedNotice{
			MissionID:  ev.MissionID,
			RobotID:    ev.RobotID,
			OtherRobot: ev.OtherRobot,
			Reason:     ev.Reason,
		})
	}, EventCollisionAvoided)

	// Battery thresholds: notify, critical audited too.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(BatteryEvent)
		critical := evt.Type == EventBatteryCritical
		if critical {
			e.db.AppendAudit("robot", ev.RobotID, "battery_critical", "", fmt.Sprintf("%.1f%%", ev.Percent), "system")
		}
		e.notify("battery_low", messaging.BatteryLowNotice{
			RobotID:  ev.RobotID,
			Percent:  ev.Percent,
			Critical: critical,
		})
	}, EventBatteryLow, EventBatteryCritical)

	// Robot hardware errors: audit, notify, persist.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RobotErrorEvent)
		e.db.AppendAudit("robot", ev.RobotID, "error", "", ev.Detail, "system")
		e.notify("robot_error", messaging.RobotErrorNotice{
			RobotID: ev.RobotID,
			Detail:  ev.Detail,
		})
		e.robotChanged(ev.RobotID)
	}, EventRobotError)

	// Charge scheduling and zone waits: audit only.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ChargeScheduledEvent)
		e.db.AppendAudit("robot", ev.RobotID, "charge_scheduled", "", ev.StationID, "system")
	}, EventChargeScheduled)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ZoneWaitEvent)
		e.db.AppendAudit("mission", ev.MissionID, "zone_wait", "", ev.Zone, "system")
	}, EventZoneWait)

	// Expired obstacles: audit.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ObstacleExpiredEvent)
		e.db.AppendAudit("obstacle", ev.ObstacleID, "expired", "", ev.Class, "system")
	}, EventObstacleExpired)
}

// notify enqueues a lifecycle notification on the outbox. The drainer
// delivers it to the events topic; delivery survives broker downtime.
func (e *Engine) notify(msgType string, payload any) {
	env := messaging.NewEnvelope(msgType, e.cfg.Messaging.NodeID, payload)
	data, err := env.Encode()
	if err != nil {
		e.logFn("engine: encode %s notification: %v", msgType, err)
		return
	}
	if err := e.db.EnqueueOutbox(e.cfg.Messaging.EventsTopic, data, msgType, e.cfg.Messaging.NodeID); err != nil {
		e.logFn("engine: enqueue %s notification: %v", msgType, err)
	}
}
