package fleet

import (
	"fleetcore/grid"
)

// SelectorWeights tune the robot selection score.
type SelectorWeights struct {
	Distance    float64 // lower distance to mission start is better
	Battery     float64 // higher margin above the low threshold is better
	Utilization float64 // lower recent utilization is better
}

// SelectRobot scores each eligible robot and returns the best one.
// Eligible means: Idle, battery above the low threshold, and capabilities
// meeting the mission requirements. Ties break by robot ID for
// determinism. Returns false when no robot is eligible.
func SelectRobot(start grid.Position, payloadClass, speedClass int, robots []Robot, w SelectorWeights) (string, bool) {
	bestID := ""
	bestScore := 0.0

	for _, r := range robots {
		if r.Status != StatusIdle || r.MissionID != "" {
			continue
		}
		if r.Battery.IsLow() {
			continue
		}
		if !r.Caps.Meets(payloadClass, speedClass) {
			continue
		}
		score := -w.Distance*r.Pos.Distance(start) +
			w.Battery*(r.Battery.Percent-BatteryLow) -
			w.Utilization*float64(r.AssignCount)

		if bestID == "" || score > bestScore || (score == bestScore && r.ID < bestID) {
			bestID = r.ID
			bestScore = score
		}
	}
	return bestID, bestID != ""
}
