package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotReflectsCounters(t *testing.T) {
	m := NewWorker()
	m.AddChunksClaimed(5)
	m.IncChunksDone()
	m.IncChunksDone()
	m.IncChunksError()
	m.AddChunksRequeued(3)
	m.AddSegmentsWritten(7)
	m.AddDialogueStats(2, 1, 4)

	snap := m.Snapshot()
	assert.Equal(t, int64(5), snap.ChunksClaimed)
	assert.Equal(t, int64(2), snap.ChunksDone)
	assert.Equal(t, int64(1), snap.ChunksError)
	assert.Equal(t, int64(3), snap.ChunksRequeued)
	assert.Equal(t, int64(7), snap.SegmentsWritten)
	assert.Equal(t, int64(2), snap.DialoguesOpened)
	assert.Equal(t, int64(1), snap.DialoguesClosed)
	assert.Equal(t, int64(4), snap.DialoguesExtended)
}

func TestCountersAreSafeUnderConcurrency(t *testing.T) {
	m := NewWorker()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.IncChunksDone()
				m.AddSegmentsWritten(2)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(8000), snap.ChunksDone)
	assert.Equal(t, int64(16000), snap.SegmentsWritten)
}

func TestEachWorkerOwnsItsRegistry(t *testing.T) {
	a := NewWorker()
	b := NewWorker()
	require.NotSame(t, a.Registry(), b.Registry())

	a.IncChunksDone()
	families, err := a.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
