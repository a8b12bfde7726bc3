package engine

import "time"

const (
	EventMissionSubmitted EventType = iota + 1
	EventMissionAssigned
	EventMissionStatusChanged
	EventPathPlanned
	EventMissionCompleted
	EventMissionFailed
	EventCollisionAvoided
	EventBatteryLow
	EventBatteryCritical
	EventRobotError
	EventRobotUpdated
	EventChargeScheduled
	EventZoneWait
	EventObstacleExpired
	EventMessagingConnected
	EventMessagingDisconnected
)

// --- Event payloads ---

type MissionSubmittedEvent struct {
	MissionID string
	Kind      string
	Priority  int
	Sender    string
}

type MissionAssignedEvent struct {
	MissionID string
	RobotID   string
}

type MissionStatusChangedEvent struct {
	MissionID string
	Kind      string
	OldStatus string
	NewStatus string
	Detail    string
}

type PathPlannedEvent struct {
	MissionID string
	RobotID   string
	Distance  float64
	Duration  time.Duration
	Points    int
}

type MissionCompletedEvent struct {
	MissionID string
	Kind      string
	RobotID   string
}

type MissionFailedEvent struct {
	MissionID string
	Kind      string
	RobotID   string
	Reason    string
	Final     bool
}

type CollisionAvoidedEvent struct {
	MissionID  string
	RobotID    string
	OtherRobot string
	Reason     string
}

type BatteryEvent struct {
	RobotID string
	Percent float64
}

type RobotErrorEvent struct {
	RobotID string
	Detail  string
}

type RobotUpdatedEvent struct {
	RobotID string
}

type ChargeScheduledEvent struct {
	RobotID   string
	StationID string
	MissionID string
}

type ZoneWaitEvent struct {
	MissionID string
	RobotID   string
	Zone      string
}

type ObstacleExpiredEvent struct {
	ObstacleID string
	Class      string
}

type ConnectionEvent struct {
	Detail string
}
