package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkPathLayout(t *testing.T) {
	start := time.Date(2026, 8, 2, 9, 15, 30, 0, time.UTC)
	got := ChunkPath("/data", "point-1", "reg-1", start, "abc-123")
	assert.Equal(t, "/data/audio/point-1/reg-1/2026-08-02/09/chunk_20260802T091530Z_abc-123.ogg", got)
}

func TestChunkPathNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	start := time.Date(2026, 8, 2, 1, 30, 0, 0, loc) // 22:30 the previous day in UTC
	got := ChunkPath("/data", "p", "r", start, "id")
	assert.Contains(t, got, "/2026-08-01/22/")
	assert.Contains(t, got, "chunk_20260801T223000Z_id.ogg")
}

func TestWritePayload(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("some chunk bytes")
	path := filepath.Join(dir, "nested", "deeper", "chunk.ogg")

	res, err := WritePayload(path, bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), res.Size)

	sum := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.SHA256)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	// No temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestReadPayloadMissingFile(t *testing.T) {
	_, err := ReadPayload(filepath.Join(t.TempDir(), "missing.ogg"))
	require.Error(t, err)
}

func TestCheckWritable(t *testing.T) {
	ok, free := CheckWritable(t.TempDir())
	assert.True(t, ok)
	assert.Greater(t, free, uint64(0))
}

func TestSweepOrphans(t *testing.T) {
	base := t.TempDir()
	audioDir := filepath.Join(base, "audio", "p", "r", "2026-08-02", "09")
	require.NoError(t, os.MkdirAll(audioDir, 0o755))

	oldOrphan := filepath.Join(audioDir, "chunk_old_orphan.ogg")
	oldTracked := filepath.Join(audioDir, "chunk_old_tracked.ogg")
	young := filepath.Join(audioDir, "chunk_young.ogg")
	for _, p := range []string{oldOrphan, oldTracked, young} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	twoHoursAgo := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldOrphan, twoHoursAgo, twoHoursAgo))
	require.NoError(t, os.Chtimes(oldTracked, twoHoursAgo, twoHoursAgo))

	removed, err := SweepOrphans(context.Background(), base, time.Hour, func(path string) bool {
		return path == oldTracked
	})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(oldOrphan)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(oldTracked)
	assert.NoError(t, err)
	_, err = os.Stat(young)
	assert.NoError(t, err)
}

func TestSweepOrphansMissingRootIsNoop(t *testing.T) {
	removed, err := SweepOrphans(context.Background(), filepath.Join(t.TempDir(), "nothing"), time.Hour, func(string) bool { return false })
	require.NoError(t, err)
	assert.Zero(t, removed)
}
