package messaging

import "time"

// Envelope is the typed message wrapper for all fleet traffic.
type Envelope struct {
	MsgType   string    `json:"msg_type"`
	MsgID     string    `json:"msg_id"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// --- Inbound payloads (edge -> engine) ---

type MissionRequest struct {
	Kind         string      `json:"kind"` // transport, reposition
	Priority     int         `json:"priority"`
	Waypoints    []PathPoint `json:"waypoints"`
	PayloadClass int         `json:"payload_class"`
	SpeedClass   int         `json:"speed_class"`
}

type MissionCancel struct {
	MissionID string `json:"mission_id"`
	Reason    string `json:"reason"`
}

type PositionReport struct {
	RobotID string  `json:"robot_id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Heading float64 `json:"heading"`
}

type BatteryReport struct {
	RobotID        string  `json:"robot_id"`
	Percent        float64 `json:"percent"`
	RuntimeSeconds float64 `json:"runtime_seconds"`
}

type ObstacleReport struct {
	ObstacleID string  `json:"obstacle_id"`
	Class      string  `json:"class"` // static, dynamic-human, dynamic-robot, unknown
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Radius     float64 `json:"radius"`
	VX         float64 `json:"vx"`
	VY         float64 `json:"vy"`
}

type ObstacleExpire struct {
	ObstacleID string `json:"obstacle_id"`
}

type ErrorReport struct {
	RobotID string `json:"robot_id"`
	Code    string `json:"code"`
	Detail  string `json:"detail"`
}

// --- Outbound payloads (engine -> edge) ---

// PathPoint is a timestamped waypoint in a command or request.
type PathPoint struct {
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Heading float64   `json:"heading,omitempty"`
	Stamp   time.Time `json:"stamp,omitempty"`
}

// RobotCommand carries one of move, stop, wait, resume. Move includes
// the full timestamped path segment.
type RobotCommand struct {
	RobotID string      `json:"robot_id"`
	Command string      `json:"command"`
	Points  []PathPoint `json:"points,omitempty"`
}

// --- Lifecycle notifications (outbox -> events topic) ---

type MissionAssignedNotice struct {
	MissionID string `json:"mission_id"`
	RobotID   string `json:"robot_id"`
}

type PathPlannedNotice struct {
	MissionID string  `json:"mission_id"`
	RobotID   string  `json:"robot_id"`
	Distance  float64 `json:"distance"`
	ETASec    float64 `json:"eta_seconds"`
}

type CollisionAvoidedNotice struct {
	MissionID  string `json:"mission_id"`
	RobotID    string `json:"robot_id"`
	OtherRobot string `json:"other_robot,omitempty"`
	Reason     string `json:"reason"`
}

type MissionCompletedNotice struct {
	MissionID string `json:"mission_id"`
	RobotID   string `json:"robot_id"`
}

type MissionFailedNotice struct {
	MissionID string `json:"mission_id"`
	RobotID   string `json:"robot_id,omitempty"`
	Reason    string `json:"reason"`
	Final     bool   `json:"final"`
}

type BatteryLowNotice struct {
	RobotID  string  `json:"robot_id"`
	Percent  float64 `json:"percent"`
	Critical bool    `json:"critical"`
}

type RobotErrorNotice struct {
	RobotID string `json:"robot_id"`
	Detail  string `json:"detail"`
}
