package www

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fleetcore/grid"
	"fleetcore/mission"
)

type missionRequest struct {
	Kind         string          `json:"kind"`
	Priority     int             `json:"priority"`
	Waypoints    []waypointInput `json:"waypoints"`
	PayloadClass int             `json:"payload_class"`
	SpeedClass   int             `json:"speed_class"`
}

type waypointInput struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

func (h *Handlers) apiSubmitMission(w http.ResponseWriter, r *http.Request) {
	var req missionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	waypoints := make([]grid.Position, len(req.Waypoints))
	for i, wp := range req.Waypoints {
		waypoints[i] = grid.Position{X: wp.X, Y: wp.Y, Heading: wp.Heading}
	}
	m, err := h.engine.Coordinator().SubmitMission(req.Kind, req.Priority, waypoints, mission.Requirements{
		PayloadClass: req.PayloadClass,
		SpeedClass:   req.SpeedClass,
	})
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(m)
}

func (h *Handlers) apiListMissions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	h.jsonOK(w, h.engine.Missions().List(status))
}

func (h *Handlers) apiGetMission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, ok := h.engine.Missions().Get(id)
	if !ok {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, m)
}

func (h *Handlers) apiCancelMission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "cancelled via api"
	}
	if err := h.engine.Coordinator().Cancel(id, reason); err != nil {
		h.jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	h.jsonOK(w, map[string]string{"status": "cancelled"})
}

func (h *Handlers) apiListRobots(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Roster().List())
}

func (h *Handlers) apiClearRobotError(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.engine.Coordinator().ClearRobotError(id); err != nil {
		h.jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	h.jsonOK(w, map[string]string{"status": "cleared"})
}

func (h *Handlers) apiListReservations(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Arbiter().Active())
}

func (h *Handlers) apiZoneOccupancy(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Coordinator().ZoneOccupancy())
}

func (h *Handlers) apiListStations(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Charger().Stations())
}

type obstacleRequest struct {
	ID     string  `json:"id"`
	Class  string  `json:"class"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
}

func (h *Handlers) apiReportObstacle(w http.ResponseWriter, r *http.Request) {
	var req obstacleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.Radius <= 0 {
		h.jsonError(w, "id and radius are required", http.StatusBadRequest)
		return
	}
	if req.Class == "" {
		req.Class = grid.ObstacleUnknown
	}
	h.engine.Coordinator().HandleObstacle(&grid.Obstacle{
		ID:       req.ID,
		Pos:      grid.Position{X: req.X, Y: req.Y},
		Radius:   req.Radius,
		Class:    req.Class,
		VelX:     req.VX,
		VelY:     req.VY,
		LastSeen: time.Now(),
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func (h *Handlers) apiListObstacles(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Map().Obstacles())
}

func (h *Handlers) apiAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.engine.DB().ListAuditLog(limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, entries)
}

func (h *Handlers) apiHealth(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, map[string]any{
		"status":      "ok",
		"robots":      len(h.engine.Roster().List()),
		"messaging":   h.engine.MsgClient() != nil && h.engine.MsgClient().IsConnected(),
		"sse_clients": h.eventHub.ClientCount(),
	})
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
