// Package dialogue implements the cross-chunk dialogue-stitching
// algorithm: merging per-chunk speech segments into per-device dialogues
// using silence-gap and max-duration rules.
package dialogue

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/salescontrol/audiocore/internal/datastore"
	"github.com/salescontrol/audiocore/internal/vad"
	"gorm.io/gorm"
)

// Config carries the stitching tunables.
type Config struct {
	SilenceGap  time.Duration
	MaxDialogue time.Duration
}

// AbsSegment is a vad.Segment translated to absolute timestamps via its
// chunk's start_ts, with its persisted SpeechSegment id attached.
type AbsSegment struct {
	SegmentID string
	StartAbs  time.Time
	EndAbs    time.Time
}

// ToAbsolute converts chunk-relative VAD segments to absolute-timestamp,
// ordered, persisted-id-bearing segments. Call with the rows that
// SegmentsFromVAD built (which assigns each SegmentID) once CreateSegments
// has persisted them.
func ToAbsolute(chunkStart time.Time, segs []datastore.SpeechSegment) []AbsSegment {
	out := make([]AbsSegment, len(segs))
	for i, s := range segs {
		out[i] = AbsSegment{
			SegmentID: s.SegmentID,
			StartAbs:  chunkStart.Add(time.Duration(s.StartMS) * time.Millisecond),
			EndAbs:    chunkStart.Add(time.Duration(s.EndMS) * time.Millisecond),
		}
	}
	// Order by (start_ms, end_ms). All segments here share one chunk's
	// start_ts so this is already the segmenter's output order, but the
	// sort keeps replay deterministic if that ever changes.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartAbs.Equal(out[j].StartAbs) {
			return out[i].StartAbs.Before(out[j].StartAbs)
		}
		return out[i].EndAbs.Before(out[j].EndAbs)
	})
	return out
}

// SegmentsFromVAD converts vad.Segment (chunk-relative ms) into
// datastore.SpeechSegment rows ready to persist, assigning fresh ids.
func SegmentsFromVAD(chunkID string, segs []vad.Segment) []datastore.SpeechSegment {
	out := make([]datastore.SpeechSegment, len(segs))
	for i, s := range segs {
		out[i] = datastore.SpeechSegment{
			SegmentID: uuid.NewString(),
			ChunkID:   chunkID,
			StartMS:   s.StartMS,
			EndMS:     s.EndMS,
		}
	}
	return out
}

// Stats counts the dialogue mutations one Stitch call performed, feeding
// the worker's counters.
type Stats struct {
	Opened   int
	Closed   int
	Extended int
}

// Stitch merges one chunk's committed segments into the device's dialogue
// stream using the current DeviceDialogueState, inside tx. It must run
// with the device's advisory lock held and chunks committed in start_ts
// order per device.
//
// The silence-gap check against an empty or silent stretch uses the
// chunk's own start_ts rather than wall-clock time: wall-clock would make
// replay after a crash recovery depend on how long the chunk sat in
// PROCESSING, breaking replay determinism. Chunk start_ts is deterministic
// and advances monotonically with the per-device commit order the lock
// already enforces.
func Stitch(ctx context.Context, tx *gorm.DB, store datastore.Store, chunk datastore.AudioChunk, absSegs []AbsSegment, cfg Config) (Stats, error) {
	var stats Stats
	state, err := store.GetDeviceDialogueState(ctx, tx, chunk.DeviceID)
	if err != nil {
		return stats, err
	}

	// A long silence gap spanning empty/silent chunks closes the open
	// dialogue before any of this chunk's segments are considered.
	if state != nil && chunk.StartTS.Sub(state.LastSpeechEndTS) >= cfg.SilenceGap {
		if err := store.DeleteDeviceDialogueState(ctx, tx, chunk.DeviceID); err != nil {
			return stats, err
		}
		state = nil
		stats.Closed++
	}

	for _, seg := range absSegs {
		if state == nil {
			newState, err := openDialogue(ctx, tx, store, chunk, seg)
			if err != nil {
				return stats, err
			}
			state = newState
			stats.Opened++
			continue
		}

		gapExceeded := seg.StartAbs.Sub(state.LastSpeechEndTS) >= cfg.SilenceGap
		durationExceeded := seg.EndAbs.Sub(state.DialogueStartedAt) > cfg.MaxDialogue
		if gapExceeded || durationExceeded {
			if err := store.DeleteDeviceDialogueState(ctx, tx, chunk.DeviceID); err != nil {
				return stats, err
			}
			newState, err := openDialogue(ctx, tx, store, chunk, seg)
			if err != nil {
				return stats, err
			}
			state = newState
			stats.Closed++
			stats.Opened++
			continue
		}

		// Extend the open dialogue.
		if err := store.UpdateDialogueEndTS(ctx, tx, state.OpenDialogueID, seg.EndAbs); err != nil {
			return stats, err
		}
		if err := store.CreateDialogueSegment(ctx, tx, &datastore.DialogueSegment{
			DialogueID: state.OpenDialogueID,
			ChunkID:    chunk.ChunkID,
			SegmentID:  seg.SegmentID,
		}); err != nil {
			return stats, err
		}
		state.LastSpeechEndTS = seg.EndAbs
		if err := store.UpsertDeviceDialogueState(ctx, tx, state); err != nil {
			return stats, err
		}
		stats.Extended++
	}

	return stats, nil
}

func openDialogue(ctx context.Context, tx *gorm.DB, store datastore.Store, chunk datastore.AudioChunk, seg AbsSegment) (*datastore.DeviceDialogueState, error) {
	d := &datastore.Dialogue{
		DialogueID: uuid.NewString(),
		DeviceID:   chunk.DeviceID,
		PointID:    chunk.PointID,
		RegisterID: chunk.RegisterID,
		StartTS:    seg.StartAbs,
		EndTS:      seg.EndAbs,
	}
	if err := store.CreateDialogue(ctx, tx, d); err != nil {
		return nil, err
	}
	if err := store.CreateDialogueSegment(ctx, tx, &datastore.DialogueSegment{
		DialogueID: d.DialogueID,
		ChunkID:    chunk.ChunkID,
		SegmentID:  seg.SegmentID,
	}); err != nil {
		return nil, err
	}
	state := &datastore.DeviceDialogueState{
		DeviceID:          chunk.DeviceID,
		OpenDialogueID:    d.DialogueID,
		LastSpeechEndTS:   seg.EndAbs,
		DialogueStartedAt: seg.StartAbs,
	}
	if err := store.UpsertDeviceDialogueState(ctx, tx, state); err != nil {
		return nil, err
	}
	return state, nil
}
