package handler

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/zxswv/npg/internal/booking"
    "github.com/zxswv/npg/internal/model"
)

// ReservationHandler exposes the booking guard over HTTP.  Request bodies
// are JSON with snake_case keys; reservation ids are UUID strings.
type ReservationHandler struct {
    svc ReservationService
}

// NewReservationHandler panics when svc is nil.
func NewReservationHandler(svc ReservationService) *ReservationHandler {
    if svc == nil {
        panic("nil service passed to NewReservationHandler")
    }
    return &ReservationHandler{svc: svc}
}

// Create handles POST /v1/reservations.  The new reservation is PENDING and
// returned with 201.  A held pair answers 409 with the conflicting slot.
func (h *ReservationHandler) Create(c echo.Context) error {
    var req booking.ReservationRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid request body")
    }
    res, err := h.svc.CreateReservation(c.Request().Context(), req)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, res)
}

// CreateBulk handles POST /v1/reservations/bulk.  Either every pair is
// booked or none is; on conflict the body lists every held pair.
func (h *ReservationHandler) CreateBulk(c echo.Context) error {
    var req booking.BulkRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid request body")
    }
    list, err := h.svc.CreateBulkReservation(c.Request().Context(), req)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"reservations": list, "count": len(list)})
}

// List handles GET /v1/reservations?status=&room_id=&date=&limit=.
func (h *ReservationHandler) List(c echo.Context) error {
    var f model.ReservationFilter
    if raw := c.QueryParam("status"); raw != "" {
        st, ok := model.ParseStatus(raw)
        if !ok {
            return badRequest(c, "invalid status")
        }
        f.Status = &st
    }
    if raw := c.QueryParam("room_id"); raw != "" {
        id, err := strconv.ParseUint(raw, 10, 64)
        if err != nil || id == 0 {
            return badRequest(c, "invalid room_id")
        }
        f.RoomID = id
    }
    if raw := c.QueryParam("date"); raw != "" {
        d, ok := parseDateParam(raw)
        if !ok {
            return badRequest(c, dateFormatError)
        }
        f.Date = &d
    }
    if raw := c.QueryParam("limit"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil || n < 1 {
            return badRequest(c, "invalid limit")
        }
        f.Limit = n
    }
    list, err := h.svc.ListReservations(c.Request().Context(), f)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, list)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
    det, err := h.svc.GetReservation(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, det)
}

type statusBody struct {
    ID     string `json:"id"`
    Status string `json:"status"`
}

// UpdateStatus handles PATCH /v1/reservations/:id with {"status": ...}.
// Approving re-checks that no other reservation of the pair is approved.
func (h *ReservationHandler) UpdateStatus(c echo.Context) error {
    var body statusBody
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    return h.updateStatus(c, c.Param("id"), body.Status)
}

// UpdateStatusByBody handles PATCH /v1/reservations/status where the id
// travels in the body next to the status, as the admin panel form sends it.
func (h *ReservationHandler) UpdateStatusByBody(c echo.Context) error {
    var body statusBody
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if strings.TrimSpace(body.ID) == "" {
        return badRequest(c, "id is required")
    }
    return h.updateStatus(c, body.ID, body.Status)
}

func (h *ReservationHandler) updateStatus(c echo.Context, id, rawStatus string) error {
    st, ok := model.ParseStatus(rawStatus)
    if !ok {
        return badRequest(c, "status must be one of APPROVED, REJECTED, CANCELLED")
    }
    res, err := h.svc.UpdateStatus(c.Request().Context(), strings.TrimSpace(id), st)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Cancel handles DELETE /v1/reservations/:id.  The row is kept with status
// CANCELLED and its pair becomes bookable again.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    if _, err := h.svc.Cancel(c.Request().Context(), c.Param("id")); err != nil {
        return writeError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
