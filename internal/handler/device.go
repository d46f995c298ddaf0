package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/repository"
)

type DeviceHandler struct {
	Devices *repository.DeviceRepo
}

func NewDeviceHandler(d *repository.DeviceRepo) *DeviceHandler { return &DeviceHandler{Devices: d} }

type deviceReq struct {
	Code       string `json:"code" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,max=128"`
	DeviceType string `json:"device_type" validate:"required,max=64"`
	Location   string `json:"location" validate:"max=128"`
	Status     string `json:"status" validate:"omitempty,oneof=ONLINE OFFLINE MAINTENANCE FAULT"`
}

type heartbeatReq struct {
	Status string `json:"status" validate:"required,oneof=ONLINE OFFLINE MAINTENANCE FAULT"`
}

func (r deviceReq) toModel() *model.Device {
	status := r.Status
	if status == "" {
		status = model.DeviceOffline
	}
	return &model.Device{
		Code:       strings.TrimSpace(r.Code),
		Name:       strings.TrimSpace(r.Name),
		DeviceType: strings.TrimSpace(r.DeviceType),
		Location:   strings.TrimSpace(r.Location),
		Status:     status,
	}
}

// List supports ?keyword=, ?status= and ?type=.
func (h *DeviceHandler) List(c echo.Context) error {
	p := pageFrom(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	items, total, err := h.Devices.List(ctx, repository.DeviceFilter{
		Keyword:    c.QueryParam("keyword"),
		Status:     strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))),
		DeviceType: strings.TrimSpace(c.QueryParam("type")),
		Page:       p,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pageOf(items, total, p))
}

func (h *DeviceHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	d, err := h.Devices.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err, "device")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *DeviceHandler) Create(c echo.Context) error {
	var req deviceReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	d := req.toModel()
	if err := h.Devices.Create(ctx, d); err != nil {
		return respondError(c, err, "device")
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *DeviceHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req deviceReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	d := req.toModel()
	d.ID = id
	if err := h.Devices.Update(ctx, d); err != nil {
		return respondError(c, err, "device")
	}
	updated, err := h.Devices.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err, "device")
	}
	return c.JSON(http.StatusOK, updated)
}

// Heartbeat records a status report from the device and stamps last_seen_at.
func (h *DeviceHandler) Heartbeat(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req heartbeatReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Devices.Heartbeat(ctx, id, req.Status, time.Now()); err != nil {
		return respondError(c, err, "device")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *DeviceHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Devices.Delete(ctx, id); err != nil {
		return respondError(c, err, "device")
	}
	return c.NoContent(http.StatusNoContent)
}
