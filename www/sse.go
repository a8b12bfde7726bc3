package www

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fleetcore/engine"
)

// SSEEvent is a single server-sent event frame.
type SSEEvent struct {
	Event string
	Data  string
}

// EventHub fans engine events out to connected SSE clients. Slow
// clients are dropped rather than allowed to back up the hub.
type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]struct{}
	broadcast chan SSEEvent
	stopChan  chan struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	close(h.stopChan)
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case evt := <-h.broadcast:
			h.mu.RLock()
			for ch := range h.clients {
				select {
				case ch <- evt:
				default:
					// client is not keeping up, skip
				}
			}
			h.mu.RUnlock()
		case <-keepalive.C:
			h.mu.RLock()
			for ch := range h.clients {
				select {
				case ch <- SSEEvent{Event: "keepalive", Data: "{}"}:
				default:
				}
			}
			h.mu.RUnlock()
		case <-h.stopChan:
			return
		}
	}
}

func (h *EventHub) AddClient() chan SSEEvent {
	ch := make(chan SSEEvent, 32)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) RemoveClient(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) Broadcast(event, data string) {
	select {
	case h.broadcast <- SSEEvent{Event: event, Data: data}:
	default:
	}
}

func (h *EventHub) broadcastJSON(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.Broadcast(event, string(data))
}

// SetupEngineListeners mirrors the engine's event bus onto the SSE
// stream so browsers can track the fleet live.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.MissionStatusChangedEvent)
		h.broadcastJSON("mission-update", map[string]any{
			"mission_id": ev.MissionID,
			"kind":       ev.Kind,
			"old_status": ev.OldStatus,
			"new_status": ev.NewStatus,
			"detail":     ev.Detail,
		})
	}, engine.EventMissionStatusChanged)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.MissionAssignedEvent)
		h.broadcastJSON("mission-update", map[string]any{
			"mission_id": ev.MissionID,
			"robot_id":   ev.RobotID,
			"new_status": "assigned",
		})
	}, engine.EventMissionAssigned)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.PathPlannedEvent)
		h.broadcastJSON("path-planned", map[string]any{
			"mission_id": ev.MissionID,
			"robot_id":   ev.RobotID,
			"distance":   ev.Distance,
			"eta_sec":    ev.Duration.Seconds(),
			"points":     ev.Points,
		})
	}, engine.EventPathPlanned)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.RobotUpdatedEvent)
		h.broadcastJSON("robot-update", map[string]any{
			"robot_id": ev.RobotID,
		})
	}, engine.EventRobotUpdated)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.BatteryEvent)
		h.broadcastJSON("battery", map[string]any{
			"robot_id": ev.RobotID,
			"percent":  ev.Percent,
			"critical": evt.Type == engine.EventBatteryCritical,
		})
	}, engine.EventBatteryLow, engine.EventBatteryCritical)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.CollisionAvoidedEvent)
		h.broadcastJSON("collision", map[string]any{
			"mission_id":  ev.MissionID,
			"robot_id":    ev.RobotID,
			"other_robot": ev.OtherRobot,
			"reason":      ev.Reason,
		})
	}, engine.EventCollisionAvoided)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.RobotErrorEvent)
		h.broadcastJSON("robot-error", map[string]any{
			"robot_id": ev.RobotID,
			"detail":   ev.Detail,
		})
	}, engine.EventRobotError)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.ConnectionEvent)
		connected := evt.Type == engine.EventMessagingConnected
		h.broadcastJSON("system-status", map[string]any{
			"messaging": connected,
			"detail":    ev.Detail,
		})
	}, engine.EventMessagingConnected, engine.EventMessagingDisconnected)
}

// SSEHandler streams hub events to one HTTP client.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.AddClient()
	defer h.RemoveClient(ch)

	fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	for {
		select {
		case evt := <-ch:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
