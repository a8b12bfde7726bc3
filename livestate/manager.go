package livestate

import (
	"context"
	"log"
	"time"

	"fleetcore/fleet"
	"fleetcore/mission"
)

// Manager is the nil-safe write side of the mirror. Every method is a
// no-op on a nil receiver so the engine never branches on whether Redis
// is configured.
type Manager struct {
	redis *RedisStore
}

func NewManager(redis *RedisStore) *Manager {
	return &Manager{redis: redis}
}

// PublishRobot mirrors a robot snapshot.
func (m *Manager) PublishRobot(r fleet.Robot) {
	if m == nil {
		return
	}
	state := &RobotState{
		ID:        r.ID,
		X:         r.Pos.X,
		Y:         r.Pos.Y,
		Heading:   r.Pos.Heading,
		Battery:   r.Battery.Percent,
		Status:    r.Status,
		MissionID: r.MissionID,
		LastSeen:  r.LastSeen,
	}
	if err := m.redis.SetRobot(context.Background(), state); err != nil {
		log.Printf("livestate: publish robot %s: %v", r.ID, err)
	}
}

// PublishMission mirrors a mission snapshot.
func (m *Manager) PublishMission(ms mission.Mission) {
	if m == nil {
		return
	}
	state := &MissionState{
		ID:       ms.ID,
		Kind:     ms.Kind,
		Priority: ms.Priority,
		RobotID:  ms.RobotID,
		Status:   ms.Status,
		Updated:  time.Now(),
	}
	if err := m.redis.SetMission(context.Background(), state); err != nil {
		log.Printf("livestate: publish mission %s: %v", ms.ID, err)
	}
}

// Sync rebuilds the robot mirror from the roster. Called on startup.
func (m *Manager) Sync(robots []fleet.Robot) {
	if m == nil {
		return
	}
	ctx := context.Background()
	if err := m.redis.FlushRobots(ctx); err != nil {
		log.Printf("livestate: flush: %v", err)
	}
	for _, r := range robots {
		m.PublishRobot(r)
	}
	log.Printf("livestate: synced %d robots to redis", len(robots))
}
