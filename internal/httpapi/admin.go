package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/salescontrol/audiocore/internal/datastore"
	"github.com/salescontrol/audiocore/internal/security"
)

// createDeviceRequest registers a recorder installation. token_plain is
// hashed before storage and never returned.
type createDeviceRequest struct {
	PointID    string `json:"point_id"`
	RegisterID string `json:"register_id"`
	DeviceID   string `json:"device_id"`
	TokenPlain string `json:"token_plain"`
	IsEnabled  *bool  `json:"is_enabled"`
}

// deviceResponse is the admin-facing view of a device; token_hash is
// deliberately absent.
type deviceResponse struct {
	DeviceID   string     `json:"device_id"`
	PointID    string     `json:"point_id"`
	RegisterID string     `json:"register_id"`
	Enabled    bool       `json:"is_enabled"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `json:"last_seen_at"`
}

func deviceToResponse(d *datastore.Device) deviceResponse {
	return deviceResponse{
		DeviceID:   d.DeviceID,
		PointID:    d.PointID,
		RegisterID: d.RegisterID,
		Enabled:    d.Enabled,
		CreatedAt:  d.CreatedAt,
		LastSeenAt: d.LastSeenAt,
	}
}

// HandleCreateDevice registers a new device.
func (c *Controller) HandleCreateDevice(ctx echo.Context) error {
	var req createDeviceRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.PointID == "" || req.RegisterID == "" || req.TokenPlain == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "point_id, register_id and token_plain are required")
	}
	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	} else if _, err := uuid.Parse(deviceID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "device_id must be a uuid")
	}
	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}

	device := &datastore.Device{
		DeviceID:   deviceID,
		PointID:    req.PointID,
		RegisterID: req.RegisterID,
		TokenHash:  security.HashDeviceToken(req.TokenPlain),
		Enabled:    enabled,
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.store.CreateDevice(ctx.Request().Context(), device); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "device creation failed")
	}
	c.log.Info("device registered", "device_id", deviceID, "point_id", req.PointID, "register_id", req.RegisterID)
	return ctx.JSON(http.StatusCreated, deviceToResponse(device))
}

// HandleListDevices lists registered devices.
func (c *Controller) HandleListDevices(ctx echo.Context) error {
	devices, err := c.store.ListDevices(ctx.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "device listing failed")
	}
	out := make([]deviceResponse, len(devices))
	for i := range devices {
		out[i] = deviceToResponse(&devices[i])
	}
	return ctx.JSON(http.StatusOK, out)
}

// updateDeviceRequest toggles a device's enabled flag.
type updateDeviceRequest struct {
	IsEnabled *bool `json:"is_enabled"`
}

// HandleUpdateDevice enables or disables a device.
func (c *Controller) HandleUpdateDevice(ctx echo.Context) error {
	deviceID := ctx.Param("device_id")
	var req updateDeviceRequest
	if err := ctx.Bind(&req); err != nil || req.IsEnabled == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "is_enabled is required")
	}
	if err := c.store.SetDeviceEnabled(ctx.Request().Context(), deviceID, *req.IsEnabled); err != nil {
		device, lookupErr := c.store.GetDevice(ctx.Request().Context(), deviceID)
		if lookupErr == nil && device == nil {
			return echo.NewHTTPError(http.StatusNotFound, "device not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "device update failed")
	}
	device, err := c.store.GetDevice(ctx.Request().Context(), deviceID)
	if err != nil || device == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "device reload failed")
	}
	c.log.Info("device updated", "device_id", deviceID, "is_enabled", *req.IsEnabled)
	return ctx.JSON(http.StatusOK, deviceToResponse(device))
}
