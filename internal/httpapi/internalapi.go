package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/salescontrol/audiocore/internal/storage"
)

// HandleFetchChunk streams a stored chunk's bytes to an internal consumer
// (the ASR worker). Range requests are honored; minimal chunk metadata
// rides along as response headers so the consumer can decode without a
// second round trip.
func (c *Controller) HandleFetchChunk(ctx echo.Context) error {
	chunkID := ctx.Param("chunk_id")
	chunk, err := c.store.GetChunk(ctx.Request().Context(), chunkID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "chunk lookup failed")
	}
	if chunk == nil {
		return echo.NewHTTPError(http.StatusNotFound, "chunk not found")
	}

	f, err := storage.ReadPayload(chunk.FilePath)
	if err != nil {
		c.log.Error("chunk file unreadable", "chunk_id", chunkID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "chunk file unreadable")
	}
	defer f.Close()

	h := ctx.Response().Header()
	h.Set("X-Chunk-Sample-Rate", strconv.Itoa(chunk.SampleRate))
	h.Set("X-Chunk-Channels", strconv.Itoa(chunk.Channels))
	h.Set("X-Chunk-Duration-Sec", strconv.Itoa(chunk.DurationSec))
	h.Set("X-Chunk-Start-TS", chunk.StartTS.UTC().Format(time.RFC3339))
	h.Set(echo.HeaderContentType, "audio/ogg")

	// ServeContent handles Range and conditional headers against the
	// file's seekable handle.
	http.ServeContent(ctx.Response(), ctx.Request(), "", chunk.StartTS, f)
	return nil
}
