package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Store is the persistence contract consumed by the ingest service and the
// worker. A single gorm-backed implementation (gormStore) satisfies it
// against either SQLite or MySQL; only the claim and advisory-lock SQL
// differ by engine.
type Store interface {
	// Device operations (ingest admin surface + auth).
	CreateDevice(ctx context.Context, d *Device) error
	GetDevice(ctx context.Context, deviceID string) (*Device, error)
	ListDevices(ctx context.Context) ([]Device, error)
	SetDeviceEnabled(ctx context.Context, deviceID string, enabled bool) error
	TouchDeviceLastSeen(ctx context.Context, deviceID string, at time.Time) error

	// Chunk operations (ingest + worker).
	CreateChunk(ctx context.Context, c *AudioChunk) error
	FindIdempotentChunk(ctx context.Context, deviceID string, startTS time.Time, window time.Duration) (*AudioChunk, error)
	GetChunk(ctx context.Context, chunkID string) (*AudioChunk, error)
	ChunkExistsByFilePath(ctx context.Context, filePath string) (bool, error)

	// Worker scheduling.
	ClaimChunks(ctx context.Context, batchSize int) ([]AudioChunk, error)
	RequeueStuckChunks(ctx context.Context, olderThan time.Time) (int64, error)
	MarkChunkError(ctx context.Context, chunkID, reason string) error

	// Per-chunk commit (segments + dialogue mutation + status flip, atomic).
	CommitChunk(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Dialogue stitching operations, always called inside CommitChunk's tx.
	CreateSegments(ctx context.Context, tx *gorm.DB, segs []SpeechSegment) error
	CreateDialogue(ctx context.Context, tx *gorm.DB, d *Dialogue) error
	UpdateDialogueEndTS(ctx context.Context, tx *gorm.DB, dialogueID string, endTS time.Time) error
	CreateDialogueSegment(ctx context.Context, tx *gorm.DB, link *DialogueSegment) error
	MarkChunkDone(ctx context.Context, tx *gorm.DB, chunkID string) error

	// Device dialogue state (guarded by an external per-device lock).
	GetDeviceDialogueState(ctx context.Context, tx *gorm.DB, deviceID string) (*DeviceDialogueState, error)
	UpsertDeviceDialogueState(ctx context.Context, tx *gorm.DB, s *DeviceDialogueState) error
	DeleteDeviceDialogueState(ctx context.Context, tx *gorm.DB, deviceID string) error
	SweepStaleDialogueStates(ctx context.Context, olderThan time.Time) (int64, error)

	// WithDeviceLock serializes fn against any other call holding the same
	// deviceID's lock, across worker processes when the backing engine
	// supports it.
	WithDeviceLock(ctx context.Context, deviceID string, fn func() error) error

	// Close releases the underlying connection pool.
	Close() error

	// Health reports whether the database is reachable.
	Health(ctx context.Context) bool

	// DB exposes the underlying *gorm.DB for ad hoc queries in tests.
	DB() *gorm.DB
}
