package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/zxswv/npg/internal/handler"
)

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
    Health       echo.HandlerFunc
    Rooms        *handler.RoomHandler
    Schedules    *handler.ScheduleHandler
    Reservations *handler.ReservationHandler
}

// Middlewares groups the optional per-route middleware.  Nil entries are
// skipped.
type Middlewares struct {
    Cache     echo.MiddlewareFunc // response cache for reads
    RateLimit echo.MiddlewareFunc // token bucket for writes
    Purge     echo.MiddlewareFunc // drops cached reads after a write
}

func (m Middlewares) reads() []echo.MiddlewareFunc {
    return compact(m.Cache)
}

func (m Middlewares) writes() []echo.MiddlewareFunc {
    return compact(m.RateLimit, m.Purge)
}

func compact(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
    out := make([]echo.MiddlewareFunc, 0, len(mws))
    for _, mw := range mws {
        if mw != nil {
            out = append(out, mw)
        }
    }
    return out
}

// RegisterRoutes mounts every endpoint on e.  /healthz is never cached or
// limited.
func RegisterRoutes(e *echo.Echo, h Handlers, mw Middlewares) {
    health := h.Health
    if health == nil {
        health = handler.Health(nil)
    }
    e.GET("/healthz", health)

    // Middleware is attached per route: a group with middleware would also
    // run it for unmatched /v1 paths.
    v1 := e.Group("/v1")
    reads, writes := mw.reads(), mw.writes()

    v1.GET("/rooms", h.Rooms.List, reads...)
    v1.POST("/rooms", h.Rooms.Create, writes...)

    v1.GET("/timeline", h.Schedules.Timeline, reads...)
    v1.GET("/schedules/:date", h.Schedules.Get, reads...)
    v1.POST("/schedules", h.Schedules.Ensure, writes...)

    registerReservations(v1, h.Reservations, reads, writes)
}
