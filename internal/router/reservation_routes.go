package router

import (
    "github.com/labstack/echo/v4"

    "github.com/zxswv/npg/internal/handler"
)

// registerReservations mounts the reservation endpoints.  The static
// /reservations/status and /reservations/bulk paths take precedence over
// /reservations/:id in echo's router.
func registerReservations(g *echo.Group, h *handler.ReservationHandler, reads, writes []echo.MiddlewareFunc) {
    g.GET("/reservations", h.List, reads...)
    g.GET("/reservations/:id", h.Get, reads...)

    g.POST("/reservations", h.Create, writes...)
    g.POST("/reservations/bulk", h.CreateBulk, writes...)
    g.PATCH("/reservations/status", h.UpdateStatusByBody, writes...)
    g.PATCH("/reservations/:id", h.UpdateStatus, writes...)
    g.DELETE("/reservations/:id", h.Cancel, writes...)
}
