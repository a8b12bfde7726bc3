package mission

// Mission kinds. Closed set, known at compile time.
const (
	KindTransport  = "transport"
	KindCharge     = "charge"
	KindReposition = "reposition"
)

// Mission statuses.
const (
	StatusCreated   = "created"
	StatusQueued    = "queued"
	StatusAssigned  = "assigned"
	StatusPlanning  = "planning"
	StatusEnRoute   = "en_route"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// validTransitions defines which status transitions are allowed.
// Transitions are monotonic except for the failed->queued retry edge and
// the en_route->planning re-plan edge used after a mid-execution stop.
var validTransitions = map[string][]string{
	StatusCreated:  {StatusQueued, StatusCancelled},
	StatusQueued:   {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusPlanning, StatusFailed, StatusCancelled},
	StatusPlanning: {StatusEnRoute, StatusFailed, StatusCancelled},
	StatusEnRoute:  {StatusCompleted, StatusPlanning, StatusFailed, StatusCancelled},
	StatusFailed:   {StatusQueued},
}

// IsValidTransition checks if a status transition is allowed.
func IsValidTransition(from, to string) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for statuses a mission never leaves. Failed is
// terminal only once the retry budget is exhausted; the manager encodes
// that by refusing the failed->queued edge when retries run out.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}
