// Package httpapi is the ingest service's HTTP surface: recorder chunk
// uploads, device administration, the internal chunk-fetch endpoint used
// by the ASR worker, and the health probe.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/salescontrol/audiocore/internal/conf"
	"github.com/salescontrol/audiocore/internal/datastore"
	"github.com/salescontrol/audiocore/internal/logging"
	"github.com/salescontrol/audiocore/internal/security"
)

// Controller manages the ingest routes and their shared dependencies.
type Controller struct {
	Echo     *echo.Echo
	store    datastore.Store
	settings *conf.IngestSettings

	// uploadCache is the idempotency fast path: a recent successful
	// upload's (device_id, start_ts) maps to its chunk id and payload
	// hash, so a quick recorder retry is answered without the idempotency
	// DB lookup (device authentication still reads the device row).
	uploadCache *cache.Cache

	log *slog.Logger
}

// uploadCacheTTL bounds how long the fast-path entry lives; the DB-backed
// idempotency window is the durable fallback for retries arriving later.
const uploadCacheTTL = 2 * time.Second

// New wires the routes and middleware and returns a Controller ready to
// Start.
func New(store datastore.Store, settings *conf.IngestSettings) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:        e,
		store:       store,
		settings:    settings,
		uploadCache: cache.New(uploadCacheTTL, 30*time.Second),
		log:         logging.For("ingest.http"),
	}

	v1 := e.Group("/api/v1")
	v1.POST("/chunks", c.HandleUploadChunk)

	admin := v1.Group("/admin", c.requireBearer(settings.AdminToken))
	admin.POST("/devices", c.HandleCreateDevice)
	admin.GET("/devices", c.HandleListDevices)
	admin.PATCH("/devices/:device_id", c.HandleUpdateDevice)

	internal := v1.Group("/internal", c.requireBearer(settings.InternalToken))
	internal.GET("/chunks/:chunk_id", c.HandleFetchChunk)

	e.GET("/health", c.HandleHealth)

	return c
}

// Start serves on the configured host:port and blocks until Shutdown.
func (c *Controller) Start() error {
	addr := net.JoinHostPort(c.settings.Host, c.settings.Port)
	c.log.Info("ingest service listening", "addr", addr)
	return c.Echo.Start(addr)
}

// Shutdown drains open requests before returning.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.Echo.Shutdown(ctx)
}

// requireBearer guards the admin and internal route groups with a
// constant-time comparison against the configured operator token. An
// empty configured token disables the group entirely.
func (c *Controller) requireBearer(configured string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			presented := bearerToken(ctx)
			if presented == "" || !security.VerifyBearer(presented, configured) {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			return next(ctx)
		}
	}
}

// bearerToken extracts the Bearer credential from the Authorization
// header, or returns "" when absent or malformed.
func bearerToken(ctx echo.Context) string {
	const prefix = "Bearer "
	h := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return ""
	}
	return h[len(prefix):]
}
