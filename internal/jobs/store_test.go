package jobs

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwildeboer/scribeline/pkg/models"
)

func TestCreateAndGet(t *testing.T) {
	store := NewStore()

	id := store.Create(map[string]any{"input_audio": "audio/a.wav"})

	job, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, models.StatusQueued, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Nil(t, job.StartTime)
	assert.Nil(t, job.EndTime)
	assert.Equal(t, "audio/a.wav", job.Config["input_audio"])
}

func TestSnapshotsAreIndependentCopies(t *testing.T) {
	store := NewStore()
	id := store.Create(map[string]any{
		"input_audio": "audio/a.wav",
		"llm":         map[string]any{"mode": "fast"},
	})
	store.AppendLog(id, "INFO", "original line")

	summary := "it went fine"
	alice := "Alice"
	store.SetResult(id, &models.Result{
		Summary:       &summary,
		FinalSegments: []models.Segment{{Speaker: "SPEAKER_00", Text: "hi"}},
		SpeakerMap:    models.SpeakerMap{"SPEAKER_00": &alice},
	})

	snap, ok := store.Get(id)
	require.True(t, ok)
	snap.Config["input_audio"] = "corrupted"
	snap.Config["llm"].(map[string]any)["mode"] = "corrupted"
	snap.Logs[0].Message = "corrupted"
	*snap.Result.Summary = "corrupted"
	snap.Result.FinalSegments[0].Text = "corrupted"
	*snap.Result.SpeakerMap["SPEAKER_00"] = "corrupted"

	fresh, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, "audio/a.wav", fresh.Config["input_audio"])
	assert.Equal(t, "fast", fresh.Config["llm"].(map[string]any)["mode"])
	assert.Equal(t, "original line", fresh.Logs[0].Message)
	assert.Equal(t, "it went fine", *fresh.Result.Summary)
	assert.Equal(t, "hi", fresh.Result.FinalSegments[0].Text)
	assert.Equal(t, "Alice", *fresh.Result.SpeakerMap["SPEAKER_00"])

	cfg, ok := store.Config(id)
	require.True(t, ok)
	cfg["input_audio"] = "corrupted"
	cfg2, _ := store.Config(id)
	assert.Equal(t, "audio/a.wav", cfg2["input_audio"])
}

func TestGetUnknownJob(t *testing.T) {
	store := NewStore()

	_, ok := store.Get(uuid.New())
	assert.False(t, ok)
	assert.False(t, store.SetStatus(uuid.New(), models.StatusRunning))
}

func TestStartTimeStampedOnFirstActivity(t *testing.T) {
	store := NewStore()

	t.Run("running status", func(t *testing.T) {
		id := store.Create(nil)
		require.True(t, store.SetStatus(id, models.StatusRunning))

		job, _ := store.Get(id)
		require.NotNil(t, job.StartTime)

		first := *job.StartTime
		store.SetStatus(id, models.StatusProcessingAudio)
		job, _ = store.Get(id)
		assert.Equal(t, first, *job.StartTime, "start time must not move once set")
	})

	t.Run("nonzero progress", func(t *testing.T) {
		id := store.Create(nil)
		require.True(t, store.SetProgress(id, 5))

		job, _ := store.Get(id)
		assert.NotNil(t, job.StartTime)
	})

	t.Run("zero progress does not start", func(t *testing.T) {
		id := store.Create(nil)
		require.True(t, store.SetProgress(id, 0))

		job, _ := store.Get(id)
		assert.Nil(t, job.StartTime)
	})
}

func TestEndTimeStampedOnTerminalStatus(t *testing.T) {
	store := NewStore()

	for _, status := range []models.Status{
		models.StatusCompleted, models.StatusFailed, models.StatusStopped,
	} {
		id := store.Create(nil)
		store.SetStatus(id, models.StatusRunning)
		store.SetStatus(id, status)

		job, _ := store.Get(id)
		assert.NotNil(t, job.EndTime, "end time for %s", status)
	}
}

func TestProgressClamped(t *testing.T) {
	store := NewStore()
	id := store.Create(nil)

	store.SetProgress(id, 150)
	job, _ := store.Get(id)
	assert.Equal(t, 100, job.Progress)

	store.SetProgress(id, -10)
	job, _ = store.Get(id)
	assert.Equal(t, 0, job.Progress)
}

func TestSetResultCompletesJob(t *testing.T) {
	store := NewStore()
	id := store.Create(nil)
	store.SetStatus(id, models.StatusAnalyzing)

	summary := "it went fine"
	require.True(t, store.SetResult(id, &models.Result{Summary: &summary}))

	job, _ := store.Get(id)
	assert.Equal(t, models.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.Result)
	assert.Equal(t, "it went fine", *job.Result.Summary)
	assert.NotNil(t, job.EndTime)
}

func TestSetErrorFailsJob(t *testing.T) {
	store := NewStore()
	id := store.Create(nil)
	store.SetProgress(id, 45)

	require.True(t, store.SetError(id, "transcription exploded"))

	job, _ := store.Get(id)
	assert.Equal(t, models.StatusFailed, job.Status)
	assert.Equal(t, 0, job.Progress)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "transcription exploded", *job.ErrorMessage)
	assert.NotNil(t, job.EndTime)
}

func TestAppendLog(t *testing.T) {
	store := NewStore()
	id := store.Create(nil)

	require.True(t, store.AppendLog(id, "INFO", "starting"))
	require.True(t, store.AppendLog(id, "WARN", "model missing"))

	job, _ := store.Get(id)
	require.Len(t, job.Logs, 2)
	assert.Equal(t, "starting", job.Logs[0].Message)
	assert.Equal(t, "WARN", job.Logs[1].Level)
}

func TestRequestStopOnlyInStoppableStates(t *testing.T) {
	store := NewStore()

	stoppable := []models.Status{
		models.StatusQueued, models.StatusRunning, models.StatusWaitingForReview,
	}
	for _, status := range stoppable {
		id := store.Create(nil)
		store.SetStatus(id, status)
		assert.True(t, store.RequestStop(id), "should stop from %s", status)
		assert.True(t, store.IsStopRequested(id))
	}

	terminal := []models.Status{
		models.StatusCompleted, models.StatusFailed, models.StatusStopped,
	}
	for _, status := range terminal {
		id := store.Create(nil)
		store.SetStatus(id, status)
		assert.False(t, store.RequestStop(id), "should not stop from %s", status)
		assert.False(t, store.IsStopRequested(id))
	}
}

func TestCheckStop(t *testing.T) {
	store := NewStore()
	id := store.Create(nil)
	store.SetStatus(id, models.StatusRunning)

	assert.NoError(t, store.CheckStop(id, "before transcription"))

	require.True(t, store.RequestStop(id))
	err := store.CheckStop(id, "before transcription")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStopRequested))
	assert.Contains(t, err.Error(), "before transcription")
}

func TestDeleteRemovesJob(t *testing.T) {
	store := NewStore()
	id := store.Create(nil)

	assert.True(t, store.Delete(id))
	assert.False(t, store.Delete(id))

	_, ok := store.Get(id)
	assert.False(t, ok)
	assert.False(t, store.Apply(id, Update{}))
}

func TestListNewestFirst(t *testing.T) {
	store := NewStore()

	a := store.Create(map[string]any{"input_audio": "audio/a.wav"})
	b := store.Create(map[string]any{"input_audio": "audio/b.wav"})
	store.SetStatus(b, models.StatusRunning)

	list := store.List()
	require.Len(t, list, 2)

	byID := map[uuid.UUID]models.JobSummary{}
	for _, s := range list {
		byID[s.ID] = s
	}
	assert.Equal(t, "audio/a.wav", byID[a].InputAudio)
	assert.Equal(t, models.StatusRunning, byID[b].Status)
}
