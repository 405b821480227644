package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/zxswv/npg/internal/model"
)

// ScheduleHandler reads day schedules and provisions missing ones.  Reads
// never create anything; only Ensure does.
type ScheduleHandler struct {
    slots       SlotReader
    provisioner ScheduleProvisioner
    timeline    TimelineReader
}

func NewScheduleHandler(slots SlotReader, provisioner ScheduleProvisioner, timeline TimelineReader) *ScheduleHandler {
    if slots == nil || provisioner == nil || timeline == nil {
        panic("nil dependency passed to NewScheduleHandler")
    }
    return &ScheduleHandler{slots: slots, provisioner: provisioner, timeline: timeline}
}

type slotView struct {
    ID            uint64 `json:"id"`
    Time          string `json:"time"`
    StartTime     string `json:"start_time"`
    EndTime       string `json:"end_time"`
    ReservedCount int    `json:"reserved_count"`
}

// Get handles GET /v1/schedules/:date.  A date without a schedule answers
// 404.
func (h *ScheduleHandler) Get(c echo.Context) error {
    raw := c.Param("date")
    date, ok := parseDateParam(raw)
    if !ok {
        return badRequest(c, dateFormatError)
    }
    avail, err := h.slots.ListSlotAvailability(c.Request().Context(), date)
    if err != nil {
        return writeError(c, err)
    }
    views := make([]slotView, 0, len(avail))
    for _, a := range avail {
        views = append(views, slotView{
            ID:            a.ID,
            Time:          a.TimeOfDay(),
            StartTime:     a.StartTime.UTC().Format("2006-01-02T15:04:05Z"),
            EndTime:       a.EndTime.UTC().Format("2006-01-02T15:04:05Z"),
            ReservedCount: a.ReservedCount,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"date": date.Format(model.DateLayout), "slots": views})
}

// Ensure handles POST /v1/schedules with {"date": "YYYY-MM-DD"}.  It
// answers 201 when the schedule was created and 200 when it existed.
func (h *ScheduleHandler) Ensure(c echo.Context) error {
    var body struct {
        Date string `json:"date"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    date, ok := parseDateParam(body.Date)
    if !ok {
        return badRequest(c, dateFormatError)
    }
    sched, created, err := h.provisioner.EnsureSchedule(c.Request().Context(), date)
    if err != nil {
        return writeError(c, err)
    }
    status := http.StatusOK
    if created {
        status = http.StatusCreated
    }
    return c.JSON(status, sched)
}

// Timeline handles GET /v1/timeline?date=.  Every room is listed, ordered
// by number, with its approved reservations of the date.
func (h *ScheduleHandler) Timeline(c echo.Context) error {
    date, ok := parseDateParam(c.QueryParam("date"))
    if !ok {
        return badRequest(c, dateFormatError)
    }
    rooms, err := h.timeline.Timeline(c.Request().Context(), date)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"date": date.Format(model.DateLayout), "rooms": rooms})
}
