package mission

// EventEmitter is the interface the mission package uses to emit events.
type EventEmitter interface {
	EmitMissionStatusChanged(missionID, kind, oldStatus, newStatus, detail string)
	EmitMissionCompleted(missionID, kind, robotID string)
	EmitMissionFailed(missionID, kind, robotID, reason string, final bool)
}
