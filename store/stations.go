package store

import (
	"fmt"
	"time"
)

type StationRecord struct {
	ID        string
	X, Y      float64
	Capacity  int
	CreatedAt time.Time
}

const stationSelectCols = `id, x, y, capacity, created_at`

func scanStation(row interface{ Scan(...any) error }) (*StationRecord, error) {
	var s StationRecord
	var createdAt any
	if err := row.Scan(&s.ID, &s.X, &s.Y, &s.Capacity, &createdAt); err != nil {
		return nil, err
	}
	s.CreatedAt = parseTime(createdAt)
	return &s, nil
}

// UpsertStation inserts or replaces a charging station.
func (db *DB) UpsertStation(s *StationRecord) error {
	_, err := db.Exec(db.Q(`INSERT INTO charging_stations (id, x, y, capacity) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET x=excluded.x, y=excluded.y, capacity=excluded.capacity`),
		s.ID, s.X, s.Y, s.Capacity)
	if err != nil {
		return fmt.Errorf("upsert station: %w", err)
	}
	return nil
}

func (db *DB) GetStation(id string) (*StationRecord, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM charging_stations WHERE id=?`, stationSelectCols)), id)
	return scanStation(row)
}

func (db *DB) ListStations() ([]*StationRecord, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT %s FROM charging_stations ORDER BY id`, stationSelectCols))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stations []*StationRecord
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}

func (db *DB) DeleteStation(id string) error {
	_, err := db.Exec(db.Q(`DELETE FROM charging_stations WHERE id=?`), id)
	return err
}
