package fleet

import (
	"testing"

	"fleetcore/grid"
)

func idle(id string, x float64, percent float64) Robot {
	return Robot{
		ID:      id,
		Pos:     grid.Position{X: x, Y: 0},
		Battery: BatteryStatus{Percent: percent},
		Status:  StatusIdle,
		Caps:    Capabilities{PayloadClass: 1, SpeedClass: 1},
	}
}

var weights = SelectorWeights{Distance: 1.0, Battery: 0.5, Utilization: 0.25}

func TestSelectNearestRobot(t *testing.T) {
	robots := []Robot{
		idle("r1", 10, 90),
		idle("r2", 2, 90),
		idle("r3", 20, 90),
	}
	id, ok := SelectRobot(grid.Position{X: 0, Y: 0}, 0, 0, robots, weights)
	if !ok || id != "r2" {
		t.Errorf("selected %q, want r2 (nearest)", id)
	}
}

func TestSelectSkipsIneligible(t *testing.T) {
	busy := idle("r1", 1, 90)
	busy.Status = StatusExecuting
	lowBatt := idle("r2", 1, 15)
	errored := idle("r3", 1, 90)
	errored.Status = StatusError
	bound := idle("r4", 1, 90)
	bound.MissionID = "m-1"
	weak := idle("r5", 1, 90)
	weak.Caps = Capabilities{PayloadClass: 0, SpeedClass: 0}
	good := idle("r6", 50, 90)

	robots := []Robot{busy, lowBatt, errored, bound, weak, good}
	id, ok := SelectRobot(grid.Position{X: 0, Y: 0}, 1, 1, robots, weights)
	if !ok || id != "r6" {
		t.Errorf("selected %q, want r6 (only eligible)", id)
	}
}

func TestSelectNoneEligible(t *testing.T) {
	robots := []Robot{idle("r1", 1, 10)}
	if _, ok := SelectRobot(grid.Position{X: 0, Y: 0}, 0, 0, robots, weights); ok {
		t.Error("low-battery robot should not be selected")
	}
	if _, ok := SelectRobot(grid.Position{X: 0, Y: 0}, 0, 0, nil, weights); ok {
		t.Error("empty roster should not select")
	}
}

func TestSelectPrefersChargedRobot(t *testing.T) {
	// Same distance: battery margin decides.
	robots := []Robot{
		idle("r1", 5, 30),
		idle("r2", 5, 95),
	}
	id, _ := SelectRobot(grid.Position{X: 0, Y: 0}, 0, 0, robots, weights)
	if id != "r2" {
		t.Errorf("selected %q, want r2 (more charge)", id)
	}
}

func TestSelectBalancesUtilization(t *testing.T) {
	worked := idle("r1", 5, 90)
	worked.AssignCount = 10
	fresh := idle("r2", 5, 90)

	id, _ := SelectRobot(grid.Position{X: 0, Y: 0}, 0, 0, []Robot{worked, fresh}, weights)
	if id != "r2" {
		t.Errorf("selected %q, want r2 (less utilized)", id)
	}
}

func TestSelectDeterministicTieBreak(t *testing.T) {
	robots := []Robot{idle("r2", 5, 90), idle("r1", 5, 90)}
	for i := 0; i < 5; i++ {
		id, _ := SelectRobot(grid.Position{X: 0, Y: 0}, 0, 0, robots, weights)
		if id != "r1" {
			t.Fatalf("tie broke to %q, want r1 (lower ID)", id)
		}
	}
}

func TestRosterAssignAndFree(t *testing.T) {
	r := NewRoster()
	r.Upsert(idle("r1", 0, 90))

	if err := r.Assign("r1", "m-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	rb, _ := r.Get("r1")
	if rb.Status != StatusAssigned || rb.MissionID != "m-1" || rb.AssignCount != 1 {
		t.Errorf("after assign: %+v", rb)
	}

	// Double booking is refused.
	if err := r.Assign("r1", "m-2"); err == nil {
		t.Error("assigning a second mission must fail")
	}

	r.Free("r1", StatusIdle)
	rb, _ = r.Get("r1")
	if rb.Status != StatusIdle || rb.MissionID != "" {
		t.Errorf("after free: %+v", rb)
	}
}

func TestRosterErrorStateSticky(t *testing.T) {
	r := NewRoster()
	r.Upsert(idle("r1", 0, 90))
	r.SetStatus("r1", StatusError)

	if err := r.SetStatus("r1", StatusExecuting); err == nil {
		t.Error("errored robot must not transition without a clear")
	}
	if err := r.SetStatus("r1", StatusIdle); err == nil {
		t.Error("SetStatus must not bypass ClearError back to idle")
	}
	if err := r.Assign("r1", "m-1"); err == nil {
		t.Error("errored robot must not take missions")
	}
	r.Free("r1", StatusIdle)
	rb, _ := r.Get("r1")
	if rb.Status != StatusError {
		t.Error("free must not clear the error state")
	}

	if err := r.ClearError("r1"); err != nil {
		t.Fatalf("clear error: %v", err)
	}
	rb, _ = r.Get("r1")
	if rb.Status != StatusIdle {
		t.Errorf("status after clear = %s, want idle", rb.Status)
	}
	if err := r.ClearError("r1"); err == nil {
		t.Error("clearing a healthy robot must fail")
	}
}

func TestRosterAutoRegistersOnTelemetry(t *testing.T) {
	r := NewRoster()
	rb := r.UpdatePosition("r9", grid.Position{X: 3, Y: 4})
	if rb.ID != "r9" {
		t.Fatalf("robot not registered: %+v", rb)
	}
	if rb.Status != StatusIdle {
		t.Errorf("status = %s, want idle after first report", rb.Status)
	}

	if _, ok := r.UpdateBattery("unknown", 50, 0); ok {
		t.Error("battery update for unknown robot should report false")
	}
}

func TestBatteryThresholds(t *testing.T) {
	tests := []struct {
		percent  float64
		low      bool
		critical bool
	}{
		{50, false, false},
		{20, false, false},
		{19.9, true, false},
		{10, true, false},
		{9.9, true, true},
	}
	for _, tt := range tests {
		b := BatteryStatus{Percent: tt.percent}
		if b.IsLow() != tt.low {
			t.Errorf("IsLow(%.1f) = %v, want %v", tt.percent, b.IsLow(), tt.low)
		}
		if b.IsCritical() != tt.critical {
			t.Errorf("IsCritical(%.1f) = %v, want %v", tt.percent, b.IsCritical(), tt.critical)
		}
	}
}
