package store

import (
	"database/sql"
	"fmt"
	"time"
)

// MissionRecord is the persisted mission. Waypoints carry the raw JSON
// array the engine serializes; the store does not interpret it.
type MissionRecord struct {
	ID           string
	Kind         string
	Priority     int
	Waypoints    string
	PayloadClass int
	SpeedClass   int
	PinnedRobot  string
	StationID    string
	RobotID      string
	Status       string
	Retries      int
	FailReason   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const missionSelectCols = `id, kind, priority, waypoints, payload_class, speed_class, pinned_robot, station_id, robot_id, status, retries, fail_reason, created_at, updated_at`

func scanMission(row interface{ Scan(...any) error }) (*MissionRecord, error) {
	var m MissionRecord
	var createdAt, updatedAt any
	err := row.Scan(&m.ID, &m.Kind, &m.Priority, &m.Waypoints, &m.PayloadClass, &m.SpeedClass,
		&m.PinnedRobot, &m.StationID, &m.RobotID, &m.Status, &m.Retries, &m.FailReason,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

func scanMissions(rows *sql.Rows) ([]*MissionRecord, error) {
	var missions []*MissionRecord
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// UpsertMission inserts or replaces a mission record.
func (db *DB) UpsertMission(m *MissionRecord) error {
	_, err := db.Exec(db.Q(`INSERT INTO missions (id, kind, priority, waypoints, payload_class, speed_class, pinned_robot, station_id, robot_id, status, retries, fail_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			kind=excluded.kind, priority=excluded.priority, waypoints=excluded.waypoints,
			payload_class=excluded.payload_class, speed_class=excluded.speed_class,
			pinned_robot=excluded.pinned_robot, station_id=excluded.station_id,
			robot_id=excluded.robot_id, status=excluded.status,
			retries=excluded.retries, fail_reason=excluded.fail_reason,
			updated_at=datetime('now','localtime')`),
		m.ID, m.Kind, m.Priority, m.Waypoints, m.PayloadClass, m.SpeedClass,
		m.PinnedRobot, m.StationID, m.RobotID, m.Status, m.Retries, m.FailReason)
	if err != nil {
		return fmt.Errorf("upsert mission: %w", err)
	}
	return nil
}

func (db *DB) GetMission(id string) (*MissionRecord, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM missions WHERE id=?`, missionSelectCols)), id)
	return scanMission(row)
}

func (db *DB) ListMissions(status string) ([]*MissionRecord, error) {
	if status == "" {
		rows, err := db.Query(fmt.Sprintf(`SELECT %s FROM missions ORDER BY created_at`, missionSelectCols))
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanMissions(rows)
	}
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM missions WHERE status=? ORDER BY created_at`, missionSelectCols)), status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMissions(rows)
}

// ListActiveMissions returns missions that are neither completed nor
// cancelled, for restore on startup.
func (db *DB) ListActiveMissions() ([]*MissionRecord, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(
		`SELECT %s FROM missions WHERE status NOT IN (?, ?) ORDER BY created_at`, missionSelectCols)),
		"completed", "cancelled")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMissions(rows)
}

func (db *DB) DeleteMission(id string) error {
	_, err := db.Exec(db.Q(`DELETE FROM missions WHERE id=?`), id)
	return err
}
