package dialogue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/salescontrol/audiocore/internal/datastore"
	"github.com/salescontrol/audiocore/internal/vad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCfg = Config{
	SilenceGap:  12 * time.Second,
	MaxDialogue: 120 * time.Second,
}

func openTestStore(t testing.TB) datastore.Store {
	t.Helper()
	store, err := datastore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// testChunk builds a persisted chunk row covering [startTS, startTS+60s).
func testChunk(t testing.TB, store datastore.Store, deviceID string, startTS time.Time) datastore.AudioChunk {
	t.Helper()
	c := datastore.AudioChunk{
		ChunkID:     uuid.NewString(),
		DeviceID:    deviceID,
		PointID:     "point-1",
		RegisterID:  "reg-1",
		StartTS:     startTS,
		EndTS:       startTS.Add(time.Minute),
		DurationSec: 60,
		Codec:       "opus",
		SampleRate:  16000,
		Channels:    1,
		FilePath:    "/data/" + uuid.NewString() + ".ogg",
		FileSize:    1,
		Status:      datastore.ChunkProcessing,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.CreateChunk(context.Background(), &c))
	return c
}

// commitChunk persists vad segments for the chunk and stitches them, the
// way the worker's commit step does.
func commitChunk(t testing.TB, store datastore.Store, chunk datastore.AudioChunk, segs []vad.Segment) Stats {
	t.Helper()
	ctx := context.Background()
	rows := SegmentsFromVAD(chunk.ChunkID, segs)
	require.NoError(t, store.CreateSegments(ctx, nil, rows))
	stats, err := Stitch(ctx, nil, store, chunk, ToAbsolute(chunk.StartTS, rows), testCfg)
	require.NoError(t, err)
	return stats
}

func loadDialogues(t testing.TB, store datastore.Store, deviceID string) []datastore.Dialogue {
	t.Helper()
	var out []datastore.Dialogue
	require.NoError(t, store.DB().Where("device_id = ?", deviceID).Order("start_ts").Find(&out).Error)
	return out
}

func countLinks(t testing.TB, store datastore.Store, dialogueID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, store.DB().Model(&datastore.DialogueSegment{}).
		Where("dialogue_id = ?", dialogueID).Count(&n).Error)
	return n
}

func TestSingleDialogueWithinOneChunk(t *testing.T) {
	store := openTestStore(t)
	deviceID := uuid.NewString()
	t0 := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

	chunk := testChunk(t, store, deviceID, t0)
	stats := commitChunk(t, store, chunk, []vad.Segment{
		{StartMS: 1000, EndMS: 5000},
		{StartMS: 6000, EndMS: 9000},
	})
	assert.Equal(t, Stats{Opened: 1, Extended: 1}, stats)

	dialogues := loadDialogues(t, store, deviceID)
	require.Len(t, dialogues, 1)
	assert.True(t, dialogues[0].StartTS.Equal(t0.Add(1*time.Second)))
	assert.True(t, dialogues[0].EndTS.Equal(t0.Add(9*time.Second)))
	assert.Equal(t, int64(2), countLinks(t, store, dialogues[0].DialogueID))

	state, err := store.GetDeviceDialogueState(context.Background(), nil, deviceID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.LastSpeechEndTS.Equal(t0.Add(9*time.Second)))
}

func TestDialogueSpansTwoChunks(t *testing.T) {
	store := openTestStore(t)
	deviceID := uuid.NewString()
	t0 := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

	chunkA := testChunk(t, store, deviceID, t0)
	commitChunk(t, store, chunkA, []vad.Segment{{StartMS: 55000, EndMS: 60000}})

	chunkB := testChunk(t, store, deviceID, t0.Add(time.Minute))
	stats := commitChunk(t, store, chunkB, []vad.Segment{{StartMS: 0, EndMS: 3000}})
	assert.Equal(t, Stats{Extended: 1}, stats)

	dialogues := loadDialogues(t, store, deviceID)
	require.Len(t, dialogues, 1)
	assert.True(t, dialogues[0].StartTS.Equal(t0.Add(55*time.Second)))
	assert.True(t, dialogues[0].EndTS.Equal(t0.Add(63*time.Second)))
	assert.Equal(t, int64(2), countLinks(t, store, dialogues[0].DialogueID))
}

func TestSilenceSplitsDialogue(t *testing.T) {
	store := openTestStore(t)
	deviceID := uuid.NewString()
	t0 := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

	chunkA := testChunk(t, store, deviceID, t0)
	commitChunk(t, store, chunkA, []vad.Segment{{StartMS: 58000, EndMS: 60000}})

	// 13s gap from last speech (t0+60) to the next segment (t0+73).
	chunkB := testChunk(t, store, deviceID, t0.Add(time.Minute))
	stats := commitChunk(t, store, chunkB, []vad.Segment{{StartMS: 13000, EndMS: 14000}})
	assert.Equal(t, Stats{Opened: 1, Closed: 1}, stats)

	dialogues := loadDialogues(t, store, deviceID)
	require.Len(t, dialogues, 2)
	assert.True(t, dialogues[0].StartTS.Equal(t0.Add(58*time.Second)))
	assert.True(t, dialogues[0].EndTS.Equal(t0.Add(60*time.Second)))
	assert.True(t, dialogues[1].StartTS.Equal(t0.Add(73*time.Second)))
	assert.True(t, dialogues[1].EndTS.Equal(t0.Add(74*time.Second)))

	state, err := store.GetDeviceDialogueState(context.Background(), nil, deviceID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, dialogues[1].DialogueID, state.OpenDialogueID)
}

func TestMaxDurationSplitsDialogue(t *testing.T) {
	store := openTestStore(t)
	deviceID := uuid.NewString()
	t0 := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

	// Continuous speech across chunks, back to back for 130s.
	for i := 0; i < 2; i++ {
		chunk := testChunk(t, store, deviceID, t0.Add(time.Duration(i)*time.Minute))
		commitChunk(t, store, chunk, []vad.Segment{{StartMS: 0, EndMS: 60000}})
	}
	chunk := testChunk(t, store, deviceID, t0.Add(2*time.Minute))
	commitChunk(t, store, chunk, []vad.Segment{{StartMS: 0, EndMS: 10000}})

	dialogues := loadDialogues(t, store, deviceID)
	require.Len(t, dialogues, 2)
	assert.True(t, dialogues[0].StartTS.Equal(t0))
	assert.True(t, dialogues[0].EndTS.Equal(t0.Add(120*time.Second)))
	assert.True(t, dialogues[1].StartTS.Equal(t0.Add(120*time.Second)))
	assert.True(t, dialogues[1].EndTS.Equal(t0.Add(130*time.Second)))
}

func TestLongSilenceAcrossSilentChunksClosesState(t *testing.T) {
	store := openTestStore(t)
	deviceID := uuid.NewString()
	t0 := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

	chunkA := testChunk(t, store, deviceID, t0)
	commitChunk(t, store, chunkA, []vad.Segment{{StartMS: 0, EndMS: 5000}})

	// A fully silent chunk starting 55s after the last speech closes the
	// state: the gap against its start_ts exceeds the silence gap.
	chunkB := testChunk(t, store, deviceID, t0.Add(time.Minute))
	stats := commitChunk(t, store, chunkB, nil)
	assert.Equal(t, Stats{Closed: 1}, stats)

	state, err := store.GetDeviceDialogueState(context.Background(), nil, deviceID)
	require.NoError(t, err)
	assert.Nil(t, state)

	// Speech in a later chunk opens a fresh dialogue.
	chunkC := testChunk(t, store, deviceID, t0.Add(2*time.Minute))
	stats = commitChunk(t, store, chunkC, []vad.Segment{{StartMS: 1000, EndMS: 2000}})
	assert.Equal(t, Stats{Opened: 1}, stats)

	dialogues := loadDialogues(t, store, deviceID)
	require.Len(t, dialogues, 2)
}

func TestDialogueIntervalsAreDisjointAndOrdered(t *testing.T) {
	store := openTestStore(t)
	deviceID := uuid.NewString()
	t0 := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

	// Mixed pattern: speech bursts with alternating short and long gaps.
	for i := 0; i < 6; i++ {
		chunk := testChunk(t, store, deviceID, t0.Add(time.Duration(i)*time.Minute))
		commitChunk(t, store, chunk, []vad.Segment{
			{StartMS: 5000, EndMS: 10000},
			{StartMS: 40000, EndMS: 45000},
		})
	}

	dialogues := loadDialogues(t, store, deviceID)
	require.NotEmpty(t, dialogues)
	for i := range dialogues {
		assert.True(t, dialogues[i].StartTS.Before(dialogues[i].EndTS) || dialogues[i].StartTS.Equal(dialogues[i].EndTS))
		if i > 0 {
			assert.True(t, dialogues[i].StartTS.After(dialogues[i-1].EndTS) || dialogues[i].StartTS.Equal(dialogues[i-1].EndTS))
		}
	}
}

// The staleness sweep must not close a state the pipeline is actively
// extending just because the chunks carry historical recording
// timestamps: staleness is wall-clock commit age, never recording time.
func TestStaleSweepDoesNotBreakHistoricalStitching(t *testing.T) {
	store := openTestStore(t)
	deviceID := uuid.NewString()
	// Recording time well in the past relative to processing time.
	t0 := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

	chunkA := testChunk(t, store, deviceID, t0)
	commitChunk(t, store, chunkA, []vad.Segment{{StartMS: 55000, EndMS: 60000}})

	// A recovery tick between the two commits sweeps nothing: the state
	// was committed moments ago in wall-clock terms.
	n, err := store.SweepStaleDialogueStates(context.Background(), time.Now().UTC().Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	chunkB := testChunk(t, store, deviceID, t0.Add(time.Minute))
	stats := commitChunk(t, store, chunkB, []vad.Segment{{StartMS: 0, EndMS: 3000}})
	assert.Equal(t, Stats{Extended: 1}, stats)

	dialogues := loadDialogues(t, store, deviceID)
	require.Len(t, dialogues, 1)
	assert.True(t, dialogues[0].EndTS.Equal(t0.Add(63 * time.Second)))

	// Once the commit stamp genuinely ages past the cutoff, the sweep
	// closes the state.
	require.NoError(t, store.DB().Model(&datastore.DeviceDialogueState{}).
		Where("device_id = ?", deviceID).
		UpdateColumn("updated_at", time.Now().UTC().Add(-2*time.Hour)).Error)
	n, err = store.SweepStaleDialogueStates(context.Background(), time.Now().UTC().Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	state, err := store.GetDeviceDialogueState(context.Background(), nil, deviceID)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestEmptySegmentsLeaveRecentStateOpen(t *testing.T) {
	store := openTestStore(t)
	deviceID := uuid.NewString()
	t0 := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

	chunkA := testChunk(t, store, deviceID, t0)
	commitChunk(t, store, chunkA, []vad.Segment{{StartMS: 55000, EndMS: 60000}})

	// A silent chunk starting within the gap keeps the dialogue open.
	chunkB := testChunk(t, store, deviceID, t0.Add(time.Minute))
	stats := commitChunk(t, store, chunkB, nil)
	assert.Equal(t, Stats{}, stats)

	state, err := store.GetDeviceDialogueState(context.Background(), nil, deviceID)
	require.NoError(t, err)
	assert.NotNil(t, state)
}
