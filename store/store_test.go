package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fleetcore/config"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})
	return db
}

// --- Robot tests ---

func TestRobotUpsertAndGet(t *testing.T) {
	db := testDB(t)

	r := &RobotRecord{
		ID: "amr-01", X: 3.5, Y: 7.5, Heading: 1.57,
		Battery: 82.5, Status: "idle",
		PayloadClass: 2, SpeedClass: 1,
		LastSeen: time.Now(),
	}
	if err := db.UpsertRobot(r); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.GetRobot("amr-01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.X != 3.5 || got.Y != 7.5 {
		t.Errorf("pos = (%.1f, %.1f), want (3.5, 7.5)", got.X, got.Y)
	}
	if got.Battery != 82.5 {
		t.Errorf("battery = %.1f, want 82.5", got.Battery)
	}
	if got.PayloadClass != 2 {
		t.Errorf("payload class = %d, want 2", got.PayloadClass)
	}

	// Upsert with the same ID updates in place.
	r.Status = "executing"
	r.MissionID = "m-1"
	if err := db.UpsertRobot(r); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, _ = db.GetRobot("amr-01")
	if got.Status != "executing" || got.MissionID != "m-1" {
		t.Errorf("after update: status=%q mission=%q", got.Status, got.MissionID)
	}

	robots, err := db.ListRobots()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(robots) != 1 {
		t.Errorf("robots = %d, want 1 (upsert must not duplicate)", len(robots))
	}

	if err := db.DeleteRobot("amr-01"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.GetRobot("amr-01"); err == nil {
		t.Error("get after delete should fail")
	}
}

// --- Mission tests ---

func TestMissionCRUD(t *testing.T) {
	db := testDB(t)

	m := &MissionRecord{
		ID:        "m-1",
		Kind:      "transport",
		Priority:  5,
		Waypoints: `[{"x":1,"y":2}]`,
		RobotID:   "amr-01",
		Status:    "en_route",
	}
	if err := db.UpsertMission(m); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.GetMission("m-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Kind != "transport" || got.Priority != 5 {
		t.Errorf("got %+v", got)
	}
	if got.Waypoints != `[{"x":1,"y":2}]` {
		t.Errorf("waypoints = %q", got.Waypoints)
	}

	m.Status = "completed"
	m.Retries = 2
	if err := db.UpsertMission(m); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = db.GetMission("m-1")
	if got.Status != "completed" || got.Retries != 2 {
		t.Errorf("after update: status=%q retries=%d", got.Status, got.Retries)
	}
}

func TestListActiveMissions(t *testing.T) {
	db := testDB(t)

	for _, m := range []*MissionRecord{
		{ID: "m-1", Kind: "transport", Status: "queued", Waypoints: "[]"},
		{ID: "m-2", Kind: "transport", Status: "en_route", Waypoints: "[]"},
		{ID: "m-3", Kind: "transport", Status: "completed", Waypoints: "[]"},
		{ID: "m-4", Kind: "charge", Status: "cancelled", Waypoints: "[]"},
		{ID: "m-5", Kind: "charge", Status: "failed", Waypoints: "[]"},
	} {
		if err := db.UpsertMission(m); err != nil {
			t.Fatalf("upsert %s: %v", m.ID, err)
		}
	}

	active, err := db.ListActiveMissions()
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("active = %d, want 3 (queued, en_route, failed)", len(active))
	}
	for _, m := range active {
		if m.Status == "completed" || m.Status == "cancelled" {
			t.Errorf("terminal mission %s in active list", m.ID)
		}
	}

	queued, err := db.ListMissions("queued")
	if err != nil {
		t.Fatalf("list queued: %v", err)
	}
	if len(queued) != 1 || queued[0].ID != "m-1" {
		t.Errorf("queued = %v", queued)
	}
}

// --- Station tests ---

func TestStationCRUD(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertStation(&StationRecord{ID: "st-1", X: 2.5, Y: 2.5, Capacity: 2}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := db.GetStation("st-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Capacity != 2 {
		t.Errorf("capacity = %d, want 2", got.Capacity)
	}

	if err := db.UpsertStation(&StationRecord{ID: "st-1", X: 2.5, Y: 2.5, Capacity: 4}); err != nil {
		t.Fatalf("update: %v", err)
	}
	stations, err := db.ListStations()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stations) != 1 || stations[0].Capacity != 4 {
		t.Errorf("stations = %+v", stations)
	}

	if err := db.DeleteStation("st-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

// --- Audit tests ---

func TestAuditLog(t *testing.T) {
	db := testDB(t)

	db.AppendAudit("mission", "m-1", "submitted", "", "transport priority 5", "system")
	db.AppendAudit("mission", "m-1", "status", "queued", "assigned", "system")
	db.AppendAudit("robot", "amr-01", "error", "", "drive fault", "system")

	entries, err := db.ListAuditLog(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	// Newest first.
	if entries[0].EntityID != "amr-01" {
		t.Errorf("first entry = %+v, want the robot error", entries[0])
	}

	missionAudit, err := db.ListEntityAudit("mission", "m-1")
	if err != nil {
		t.Fatalf("entity audit: %v", err)
	}
	if len(missionAudit) != 2 {
		t.Errorf("mission entries = %d, want 2", len(missionAudit))
	}

	limited, _ := db.ListAuditLog(1)
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}
}

// --- Outbox tests ---

func TestOutboxLifecycle(t *testing.T) {
	db := testDB(t)

	if err := db.EnqueueOutbox("fleet/events", []byte(`{"a":1}`), "mission_completed", "fleetcore"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	db.EnqueueOutbox("fleet/events", []byte(`{"b":2}`), "battery_low", "fleetcore")

	pending, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].MsgType != "mission_completed" {
		t.Errorf("first msg type = %q (ordered by id)", pending[0].MsgType)
	}
	if string(pending[0].Payload) != `{"a":1}` {
		t.Errorf("payload = %q", pending[0].Payload)
	}

	// Failed delivery bumps retries but keeps the message pending.
	if err := db.IncrementOutboxRetries(pending[0].ID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	pending, _ = db.ListPendingOutbox(10)
	if len(pending) != 2 || pending[0].Retries != 1 {
		t.Errorf("after retry: pending=%d retries=%d", len(pending), pending[0].Retries)
	}

	// Ack removes from the pending set.
	if err := db.AckOutbox(pending[0].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}
	pending, _ = db.ListPendingOutbox(10)
	if len(pending) != 1 || pending[0].MsgType != "battery_low" {
		t.Errorf("after ack: %+v", pending)
	}
}
