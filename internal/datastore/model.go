// Package datastore provides the gorm-backed persistence layer for the
// ingest service and the VAD/dialogue worker.
package datastore

import "time"

// ChunkStatus is the AudioChunk lifecycle state.
type ChunkStatus string

const (
	ChunkQueued     ChunkStatus = "QUEUED"
	ChunkProcessing ChunkStatus = "PROCESSING"
	ChunkDone       ChunkStatus = "DONE"
	ChunkError      ChunkStatus = "ERROR"
)

// Device is a recorder installation identified by (point_id, register_id,
// device_id) with an associated authentication token.
type Device struct {
	DeviceID   string `gorm:"primaryKey;size:36;column:device_id"`
	PointID    string `gorm:"size:100;not null;index:idx_devices_point_register"`
	RegisterID string `gorm:"size:100;not null;index:idx_devices_point_register"`
	TokenHash  string `gorm:"size:64;not null"`
	Enabled    bool   `gorm:"not null"`
	CreatedAt  time.Time
	LastSeenAt *time.Time
}

// TableName overrides gorm's pluralization to a stable name.
func (Device) TableName() string { return "devices" }

// AudioChunk is a single audio file produced by a recorder agent covering a
// contiguous time interval.
type AudioChunk struct {
	ChunkID             string      `gorm:"primaryKey;size:36;column:chunk_id"`
	DeviceID            string      `gorm:"size:36;not null;index:idx_chunks_device_start"`
	PointID             string      `gorm:"size:100;not null"`
	RegisterID          string      `gorm:"size:100;not null"`
	StartTS             time.Time   `gorm:"not null;index:idx_chunks_device_start"`
	EndTS               time.Time   `gorm:"not null"`
	DurationSec         int         `gorm:"not null"`
	Codec               string      `gorm:"size:20;not null"`
	SampleRate          int         `gorm:"not null"`
	Channels            int         `gorm:"not null"`
	FilePath            string      `gorm:"size:500;not null"`
	FileSize            int64       `gorm:"not null"`
	FileSHA256          string      `gorm:"size:64;not null;column:file_sha256"`
	Status              ChunkStatus `gorm:"size:20;not null;index:idx_chunks_status"`
	CreatedAt           time.Time   `gorm:"not null;index:idx_chunks_status"`
	ProcessingStartedAt *time.Time
	ErrorReason         string `gorm:"size:500"`
}

// TableName overrides gorm's pluralization to a stable name.
func (AudioChunk) TableName() string { return "audio_chunks" }

// SpeechSegment is a maximal interval within one chunk in which VAD detects
// continuous speech, modulo the segmenter's smoothing rules.
type SpeechSegment struct {
	SegmentID string `gorm:"primaryKey;size:36;column:segment_id"`
	ChunkID   string `gorm:"size:36;not null;index:idx_segments_chunk"`
	StartMS   int    `gorm:"not null"`
	EndMS     int    `gorm:"not null"`
}

// TableName overrides gorm's pluralization to a stable name.
func (SpeechSegment) TableName() string { return "speech_segments" }

// Dialogue is a contiguous run of speech on one device, delimited by
// silence >= SILENCE_GAP_SEC or duration > MAX_DIALOGUE_SEC.
type Dialogue struct {
	DialogueID string    `gorm:"primaryKey;size:36;column:dialogue_id"`
	DeviceID   string    `gorm:"size:36;not null;index:idx_dialogues_device_start"`
	PointID    string    `gorm:"size:100;not null"`
	RegisterID string    `gorm:"size:100;not null"`
	StartTS    time.Time `gorm:"not null;index:idx_dialogues_device_start"`
	EndTS      time.Time `gorm:"not null"`
}

// TableName overrides gorm's pluralization to a stable name.
func (Dialogue) TableName() string { return "dialogues" }

// DialogueSegment links one contributing segment to the dialogue it
// extended. (dialogue_id, chunk_id, segment_id) is the natural key.
type DialogueSegment struct {
	DialogueID string `gorm:"primaryKey;size:36;column:dialogue_id"`
	ChunkID    string `gorm:"primaryKey;size:36;column:chunk_id"`
	SegmentID  string `gorm:"primaryKey;size:36;column:segment_id"`
}

// TableName overrides gorm's pluralization to a stable name.
func (DialogueSegment) TableName() string { return "dialogue_segments" }

// DeviceDialogueState tracks the currently-open dialogue per device for
// cross-chunk continuity. A row exists iff a dialogue is open for that
// device. LastSpeechEndTS and DialogueStartedAt are recording-time
// (derived from chunk start_ts); UpdatedAt is the wall-clock commit stamp
// gorm maintains, which the staleness sweep keys off — the two clocks can
// differ arbitrarily in a batch pipeline.
type DeviceDialogueState struct {
	DeviceID          string    `gorm:"primaryKey;size:36;column:device_id"`
	OpenDialogueID    string    `gorm:"size:36;not null"`
	LastSpeechEndTS   time.Time `gorm:"not null"`
	DialogueStartedAt time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null;index"`
}

// TableName overrides gorm's pluralization to a stable name.
func (DeviceDialogueState) TableName() string { return "device_dialogue_states" }
