// Package storage writes and reads audio chunk payloads on the shared
// filesystem volume, and sweeps orphaned files left behind by failed
// ingest commits.
package storage

import (
	"fmt"
	"path/filepath"
	"time"
)

// ChunkPath builds the on-disk path for a chunk. The layout is fixed for
// migration compatibility:
// <AUDIO_STORAGE_DIR>/audio/<point_id>/<register_id>/<YYYY-MM-DD>/<HH>/chunk_<start_ts_iso>_<chunk_id>.ogg
func ChunkPath(baseDir, pointID, registerID string, startTS time.Time, chunkID string) string {
	utc := startTS.UTC()
	date := utc.Format("2006-01-02")
	hour := utc.Format("15")
	startISO := utc.Format("20060102T150405Z")
	fileName := fmt.Sprintf("chunk_%s_%s.ogg", startISO, chunkID)
	return filepath.Join(baseDir, "audio", pointID, registerID, date, hour, fileName)
}
