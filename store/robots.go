package store

import (
	"database/sql"
	"fmt"
	"time"
)

// RobotRecord is the persisted slice of a robot: identity, capabilities
// and last known state. Live telemetry flows through the roster; this
// record survives restarts.
type RobotRecord struct {
	ID           string
	X, Y, Z      float64
	Heading      float64
	Battery      float64
	Status       string
	PayloadClass int
	SpeedClass   int
	MissionID    string
	LastSeen     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const robotSelectCols = `id, x, y, z, heading, battery, status, payload_class, speed_class, mission_id, last_seen, created_at, updated_at`

func scanRobot(row interface{ Scan(...any) error }) (*RobotRecord, error) {
	var r RobotRecord
	var lastSeen, createdAt, updatedAt any
	err := row.Scan(&r.ID, &r.X, &r.Y, &r.Z, &r.Heading, &r.Battery, &r.Status,
		&r.PayloadClass, &r.SpeedClass, &r.MissionID, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.LastSeen = parseTime(lastSeen)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func scanRobots(rows *sql.Rows) ([]*RobotRecord, error) {
	var robots []*RobotRecord
	for rows.Next() {
		r, err := scanRobot(rows)
		if err != nil {
			return nil, err
		}
		robots = append(robots, r)
	}
	return robots, rows.Err()
}

// UpsertRobot inserts or replaces a robot record.
func (db *DB) UpsertRobot(r *RobotRecord) error {
	_, err := db.Exec(db.Q(`INSERT INTO robots (id, x, y, z, heading, battery, status, payload_class, speed_class, mission_id, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			x=excluded.x, y=excluded.y, z=excluded.z, heading=excluded.heading,
			battery=excluded.battery, status=excluded.status,
			payload_class=excluded.payload_class, speed_class=excluded.speed_class,
			mission_id=excluded.mission_id, last_seen=excluded.last_seen,
			updated_at=datetime('now','localtime')`),
		r.ID, r.X, r.Y, r.Z, r.Heading, r.Battery, r.Status,
		r.PayloadClass, r.SpeedClass, r.MissionID, r.LastSeen)
	if err != nil {
		return fmt.Errorf("upsert robot: %w", err)
	}
	return nil
}

func (db *DB) GetRobot(id string) (*RobotRecord, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM robots WHERE id=?`, robotSelectCols)), id)
	return scanRobot(row)
}

func (db *DB) ListRobots() ([]*RobotRecord, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT %s FROM robots ORDER BY id`, robotSelectCols))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRobots(rows)
}

func (db *DB) DeleteRobot(id string) error {
	_, err := db.Exec(db.Q(`DELETE FROM robots WHERE id=?`), id)
	return err
}
