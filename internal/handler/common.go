package handler // handler defines http handlers

import (
    "net/http"
    "time"

    "github.com/cockroachdb/errors"
    "github.com/labstack/echo/v4"

    "github.com/zxswv/npg/internal/booking"
    "github.com/zxswv/npg/internal/model"
    "github.com/zxswv/npg/internal/repository"
)

// writeError maps a service or repository error to its status code and
// writes the {"error": ...} body.  Unclassified errors become 500 without
// leaking their text.
func writeError(c echo.Context, err error) error {
    var ce *booking.ConflictError
    switch {
    case errors.As(err, &ce):
        conflicts := ce.Slots
        if conflicts == nil {
            conflicts = []booking.SlotRef{}
        }
        return c.JSON(http.StatusConflict, echo.Map{"error": ce.Error(), "conflicts": conflicts})
    case errors.Is(err, booking.ErrValidation):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, booking.ErrNotFound),
        errors.Is(err, repository.ErrScheduleNotFound),
        errors.Is(err, repository.ErrRoomNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    case errors.Is(err, booking.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrDuplicate):
        return c.JSON(http.StatusConflict, echo.Map{"error": "already exists"})
    }
    c.Logger().Errorf("request failed: %v", err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

const dateFormatError = "date must be formatted as YYYY-MM-DD"

// parseDateParam reads a YYYY-MM-DD value.
func parseDateParam(raw string) (time.Time, bool) {
    t, err := model.ParseDate(raw)
    if err != nil {
        return time.Time{}, false
    }
    return t, true
}
