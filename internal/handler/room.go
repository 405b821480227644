package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/zxswv/npg/internal/model"
)

// RoomHandler serves room reference data.
type RoomHandler struct {
    rooms RoomStore
}

func NewRoomHandler(rooms RoomStore) *RoomHandler {
    if rooms == nil {
        panic("nil repository passed to NewRoomHandler")
    }
    return &RoomHandler{rooms: rooms}
}

// List handles GET /v1/rooms, ordered by room number.
func (h *RoomHandler) List(c echo.Context) error {
    rooms, err := h.rooms.List(c.Request().Context())
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, rooms)
}

type createRoomBody struct {
    Number   string `json:"number"`
    Name     string `json:"name"`
    Capacity uint32 `json:"capacity"`
}

// Create handles POST /v1/rooms.  Room numbers are unique; a duplicate
// answers 409.
func (h *RoomHandler) Create(c echo.Context) error {
    var body createRoomBody
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    number := strings.TrimSpace(body.Number) // trim surrounding spaces
    name := strings.TrimSpace(body.Name)
    if number == "" {
        return badRequest(c, "number is required")
    }
    if name == "" {
        name = number // display name defaults to the number
    }
    if body.Capacity == 0 {
        return badRequest(c, "capacity must be positive")
    }
    rm := &model.Room{Number: number, Name: name, Capacity: body.Capacity}
    if err := h.rooms.Create(c.Request().Context(), rm); err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, rm)
}
