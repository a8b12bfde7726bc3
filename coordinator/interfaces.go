package coordinator

import (
	"fleetcore/grid"
	"fleetcore/planner"
)

// EventEmitter is the interface the coordinator uses to publish fleet
// events. The engine provides the implementation backed by its bus.
type EventEmitter interface {
	EmitMissionAssigned(missionID, robotID string)
	EmitPathPlanned(missionID, robotID string, path *planner.Path)
	EmitCollisionAvoided(missionID, robotID, otherRobot, reason string)
	EmitBatteryLow(robotID string, percent float64)
	EmitBatteryCritical(robotID string, percent float64)
	EmitRobotError(robotID, detail string)
	EmitChargeScheduled(robotID, stationID, missionID string)
	EmitZoneWait(missionID, robotID, zone string)
}

// CommandSender delivers commands to robots. The engine backs this with
// the messaging client's per-robot command topics.
type CommandSender interface {
	SendMove(robotID string, points []grid.Position)
	SendStop(robotID string)
	SendWait(robotID string)
	SendResume(robotID string)
}
