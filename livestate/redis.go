// Package livestate mirrors live fleet state into Redis for external
// dashboards. The engine is the writer; anything else reads. The mirror
// is optional: a nil Manager silently drops every update.
package livestate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const allRobotsKey = "fleetcore:robots"

func robotKey(robotID string) string {
	return "fleetcore:robot:" + robotID
}

func missionKey(missionID string) string {
	return "fleetcore:mission:" + missionID
}

// RobotState is the published robot snapshot.
type RobotState struct {
	ID        string    `json:"id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Heading   float64   `json:"heading"`
	Battery   float64   `json:"battery"`
	Status    string    `json:"status"`
	MissionID string    `json:"mission_id,omitempty"`
	LastSeen  time.Time `json:"last_seen"`
}

// MissionState is the published mission snapshot.
type MissionState struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Priority int       `json:"priority"`
	RobotID  string    `json:"robot_id,omitempty"`
	Status   string    `json:"status"`
	Updated  time.Time `json:"updated"`
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) SetRobot(ctx context.Context, state *RobotState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, robotKey(state.ID), data, 0)
	pipe.SAdd(ctx, allRobotsKey, state.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetRobot(ctx context.Context, robotID string) (*RobotState, error) {
	data, err := r.client.Get(ctx, robotKey(robotID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state RobotState
	return &state, json.Unmarshal(data, &state)
}

func (r *RedisStore) GetAllRobotIDs(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, allRobotsKey).Result()
}

func (r *RedisStore) RemoveRobot(ctx context.Context, robotID string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, robotKey(robotID))
	pipe.SRem(ctx, allRobotsKey, robotID)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) SetMission(ctx context.Context, state *MissionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	// Terminal missions age out on their own.
	var ttl time.Duration
	if state.Status == "completed" || state.Status == "cancelled" {
		ttl = time.Hour
	}
	return r.client.Set(ctx, missionKey(state.ID), data, ttl).Err()
}

func (r *RedisStore) FlushRobots(ctx context.Context) error {
	ids, err := r.GetAllRobotIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		r.RemoveRobot(ctx, id)
	}
	return r.client.Del(ctx, allRobotsKey).Err()
}
