// Package www exposes the monitoring and control HTTP API plus the SSE
// event stream. It is unauthenticated: access control belongs to the
// deployment perimeter, not this engine.
package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fleetcore/engine"
)

type Handlers struct {
	engine   *engine.Engine
	eventHub *EventHub
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		eventHub: hub,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// SSE
	r.Get("/events", hub.SSEHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealth)

		r.Post("/missions", h.apiSubmitMission)
		r.Get("/missions", h.apiListMissions)
		r.Get("/missions/{id}", h.apiGetMission)
		r.Delete("/missions/{id}", h.apiCancelMission)

		r.Get("/robots", h.apiListRobots)
		r.Post("/robots/{id}/clear-error", h.apiClearRobotError)

		r.Get("/reservations", h.apiListReservations)
		r.Get("/zones", h.apiZoneOccupancy)
		r.Get("/stations", h.apiListStations)

		r.Post("/obstacles", h.apiReportObstacle)
		r.Get("/obstacles", h.apiListObstacles)

		r.Get("/audit", h.apiAuditLog)
	})

	stopFn := func() {
		hub.Stop()
	}

	return r, stopFn
}
