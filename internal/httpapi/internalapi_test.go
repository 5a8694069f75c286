package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/salescontrol/audiocore/internal/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeChunkWithFile(t testing.TB, c *Controller, payload []byte) *datastore.AudioChunk {
	t.Helper()
	path := filepath.Join(c.settings.AudioStorageDir, uuid.NewString()+".ogg")
	require.NoError(t, os.WriteFile(path, payload, 0o644))
	start := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	chunk := &datastore.AudioChunk{
		ChunkID:     uuid.NewString(),
		DeviceID:    uuid.NewString(),
		PointID:     "point-1",
		RegisterID:  "reg-1",
		StartTS:     start,
		EndTS:       start.Add(time.Minute),
		DurationSec: 60,
		Codec:       "opus",
		SampleRate:  16000,
		Channels:    1,
		FilePath:    path,
		FileSize:    int64(len(payload)),
		Status:      datastore.ChunkQueued,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, c.store.CreateChunk(context.Background(), chunk))
	return chunk
}

func fetchChunk(c *Controller, chunkID, token, rangeHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/internal/chunks/"+chunkID, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func TestInternalFetchChunk(t *testing.T) {
	c, _, _ := newTestController(t)
	payload := []byte("ogg-opus-payload-bytes")
	chunk := storeChunkWithFile(t, c, payload)

	rec := fetchChunk(c, chunk.ChunkID, testInternalToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.Bytes())
	assert.Equal(t, "16000", rec.Header().Get("X-Chunk-Sample-Rate"))
	assert.Equal(t, "1", rec.Header().Get("X-Chunk-Channels"))
	assert.Equal(t, "60", rec.Header().Get("X-Chunk-Duration-Sec"))
	assert.Equal(t, "2026-08-02T09:00:00Z", rec.Header().Get("X-Chunk-Start-TS"))
	assert.Equal(t, "audio/ogg", rec.Header().Get("Content-Type"))
}

func TestInternalFetchChunkRange(t *testing.T) {
	c, _, _ := newTestController(t)
	payload := []byte("0123456789")
	chunk := storeChunkWithFile(t, c, payload)

	rec := fetchChunk(c, chunk.ChunkID, testInternalToken, "bytes=2-5")
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "2345", rec.Body.String())
}

func TestInternalFetchChunkAuth(t *testing.T) {
	c, _, _ := newTestController(t)
	chunk := storeChunkWithFile(t, c, []byte("bytes"))

	for _, token := range []string{"", "wrong", testAdminToken} {
		rec := fetchChunk(c, chunk.ChunkID, token, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestInternalFetchChunkNotFound(t *testing.T) {
	c, _, _ := newTestController(t)
	rec := fetchChunk(c, uuid.NewString(), testInternalToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
