package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecorderPreservesOrder(t *testing.T) {
	rec := NewMemoryRecorder()
	for _, stage := range []string{StageCycleStarted, StageSignalsCollected, StageDecisionMade, StageCycleFinished} {
		require.NoError(t, rec.Emit(Event{CycleID: "c1", Stage: stage}))
	}

	assert.Equal(t,
		[]string{StageCycleStarted, StageSignalsCollected, StageDecisionMade, StageCycleFinished},
		rec.Stages())

	events := rec.Events()
	require.Len(t, events, 4)
	for _, e := range events {
		assert.Equal(t, "c1", e.CycleID)
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestMemoryRecorderEventsReturnsCopy(t *testing.T) {
	rec := NewMemoryRecorder()
	require.NoError(t, rec.Emit(Event{Stage: StageCycleStarted}))

	events := rec.Events()
	events[0].Stage = "mutated"

	assert.Equal(t, StageCycleStarted, rec.Events()[0].Stage)
}

func TestFileRecorderWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "trail.jsonl")

	rec, err := NewFileRecorder(path)
	require.NoError(t, err)

	require.NoError(t, rec.Emit(Event{CycleID: "c1", Stage: StageCycleStarted, Symbol: "BTCUSDT"}))
	require.NoError(t, rec.Emit(Event{CycleID: "c1", Stage: StageOrderSkipped, Payload: map[string]string{"reason": "not directional"}}))
	require.NoError(t, rec.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		lines = append(lines, e)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	assert.Equal(t, StageCycleStarted, lines[0].Stage)
	assert.Equal(t, "BTCUSDT", lines[0].Symbol)
	assert.Equal(t, StageOrderSkipped, lines[1].Stage)
	assert.False(t, lines[0].Timestamp.IsZero())
}

func TestFileRecorderAppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail.jsonl")

	first, err := NewFileRecorder(path)
	require.NoError(t, err)
	require.NoError(t, first.Emit(Event{Stage: StageCycleStarted}))
	require.NoError(t, first.Close())

	second, err := NewFileRecorder(path)
	require.NoError(t, err)
	require.NoError(t, second.Emit(Event{Stage: StageCycleFinished}))
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), StageCycleStarted)
	assert.Contains(t, string(data), StageCycleFinished)
}

func TestFileRecorderConcurrentEmits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail.jsonl")
	rec, err := NewFileRecorder(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = rec.Emit(Event{Stage: StageDecisionMade, Timestamp: time.Now().UTC()})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, rec.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e), "every line must be valid JSON")
		count++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 200, count)
}
