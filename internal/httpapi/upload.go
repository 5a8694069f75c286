package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/salescontrol/audiocore/internal/datastore"
	"github.com/salescontrol/audiocore/internal/security"
	"github.com/salescontrol/audiocore/internal/storage"
)

// maxChunkDuration is the sanity bound on end_ts - start_ts for one chunk.
const maxChunkDuration = 10 * time.Minute

// idempotencyWindow is how far apart two start_ts values may be while
// still counting as the same recorder retry.
const idempotencyWindow = time.Second

// uploadResponse is the success body for POST /api/v1/chunks.
type uploadResponse struct {
	Status     string `json:"status"`
	ChunkID    string `json:"chunk_id"`
	StoredPath string `json:"stored_path"`
	Queued     bool   `json:"queued"`
}

// cachedUpload is the fast-path idempotency record kept in uploadCache.
type cachedUpload struct {
	ChunkID    string
	StoredPath string
	SHA256     string
}

// HandleUploadChunk terminates one recorder upload: authenticate the
// device, validate metadata, persist the payload durably, then commit the
// chunk row in QUEUED. Validation failures are distinct HTTP statuses so
// the recorder can distinguish bad requests from auth and size problems.
func (c *Controller) HandleUploadChunk(ctx echo.Context) error {
	req := ctx.Request()

	// Device auth comes first; nothing about the form is trusted before it.
	token := bearerToken(ctx)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing device token")
	}
	deviceID := ctx.FormValue("device_id")
	device, err := c.store.GetDevice(req.Context(), deviceID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "device lookup failed")
	}
	if device == nil || !security.VerifyDeviceToken(token, device.TokenHash) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid device token")
	}
	if !device.Enabled {
		return echo.NewHTTPError(http.StatusForbidden, "device disabled")
	}
	if device.PointID != ctx.FormValue("point_id") || device.RegisterID != ctx.FormValue("register_id") {
		return echo.NewHTTPError(http.StatusUnauthorized, "device identity mismatch")
	}

	meta, err := parseChunkMetadata(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	fileHeader, err := ctx.FormFile("chunk_file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing chunk_file")
	}
	if fileHeader.Size > c.settings.MaxUploadSizeBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "payload too large")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable chunk_file")
	}
	defer src.Close()

	// Buffer the payload so its hash is known before anything durable
	// happens; the size bound keeps this small.
	payload, err := io.ReadAll(io.LimitReader(src, c.settings.MaxUploadSizeBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed reading chunk_file")
	}
	if int64(len(payload)) > c.settings.MaxUploadSizeBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "payload too large")
	}
	sum := sha256.Sum256(payload)
	payloadHash := hex.EncodeToString(sum[:])

	// Idempotency: a retried upload for the same (device_id, start_ts)
	// with the same payload collapses onto the existing chunk.
	cacheKey := device.DeviceID + "|" + meta.StartTS.UTC().Format(time.RFC3339Nano)
	if v, ok := c.uploadCache.Get(cacheKey); ok {
		if prev := v.(cachedUpload); prev.SHA256 == payloadHash {
			return ctx.JSON(http.StatusOK, uploadResponse{
				Status: "ok", ChunkID: prev.ChunkID, StoredPath: prev.StoredPath, Queued: true,
			})
		}
	}
	existing, err := c.store.FindIdempotentChunk(req.Context(), device.DeviceID, meta.StartTS, idempotencyWindow)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "idempotency lookup failed")
	}
	if existing != nil && existing.FileSHA256 == payloadHash {
		return ctx.JSON(http.StatusOK, uploadResponse{
			Status: "ok", ChunkID: existing.ChunkID, StoredPath: existing.FilePath, Queued: true,
		})
	}

	chunkID := uuid.NewString()
	path := storage.ChunkPath(c.settings.AudioStorageDir, device.PointID, device.RegisterID, meta.StartTS, chunkID)

	// The file is fsynced before the row commits; a DB failure after this
	// point leaves an orphan file for the sweep, never a row without bytes.
	written, err := storage.WritePayload(path, bytes.NewReader(payload))
	if err != nil {
		c.log.Error("payload write failed", "chunk_id", chunkID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "storage write failed")
	}

	now := time.Now().UTC()
	chunk := &datastore.AudioChunk{
		ChunkID:     chunkID,
		DeviceID:    device.DeviceID,
		PointID:     device.PointID,
		RegisterID:  device.RegisterID,
		StartTS:     meta.StartTS,
		EndTS:       meta.EndTS,
		DurationSec: int(meta.EndTS.Sub(meta.StartTS).Round(time.Second) / time.Second),
		Codec:       meta.Codec,
		SampleRate:  meta.SampleRate,
		Channels:    meta.Channels,
		FilePath:    path,
		FileSize:    written.Size,
		FileSHA256:  written.SHA256,
		Status:      datastore.ChunkQueued,
		CreatedAt:   now,
	}
	if err := c.store.CreateChunk(req.Context(), chunk); err != nil {
		c.log.Error("chunk row commit failed", "chunk_id", chunkID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "database commit failed")
	}

	if err := c.store.TouchDeviceLastSeen(req.Context(), device.DeviceID, now); err != nil {
		c.log.Warn("last_seen_at update failed", "device_id", device.DeviceID, "error", err)
	}

	c.uploadCache.Set(cacheKey, cachedUpload{ChunkID: chunkID, StoredPath: path, SHA256: payloadHash}, uploadCacheTTL)

	return ctx.JSON(http.StatusOK, uploadResponse{
		Status: "ok", ChunkID: chunkID, StoredPath: path, Queued: true,
	})
}
