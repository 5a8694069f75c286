package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/salescontrol/audiocore/internal/storage"
)

// healthResponse is the body for GET /health.
type healthResponse struct {
	Status          string    `json:"status"`
	DB              bool      `json:"db"`
	StorageWritable bool      `json:"storage_writable"`
	Time            time.Time `json:"time"`
}

// HandleHealth reports database reachability and storage writability. The
// status degrades to "degraded" if either dependency is down, but the
// endpoint itself always answers 200 so probes can read the detail.
func (c *Controller) HandleHealth(ctx echo.Context) error {
	dbOK := c.store.Health(ctx.Request().Context())
	storageOK, _ := storage.CheckWritable(c.settings.AudioStorageDir)

	status := "ok"
	if !dbOK || !storageOK {
		status = "degraded"
	}
	return ctx.JSON(http.StatusOK, healthResponse{
		Status:          status,
		DB:              dbOK,
		StorageWritable: storageOK,
		Time:            time.Now().UTC(),
	})
}
