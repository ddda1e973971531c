package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/wlog"

	"github.com/webitel/video_converter/internal/model"
)

func cacheJob(status model.JobStatus) *model.Job {
	return &model.Job{ID: model.NewID(), Status: status}
}

func TestJobCache(t *testing.T) {
	c := NewJobCache(wlog.NewLogger(&wlog.LoggerConfiguration{EnableConsole: false}))

	completed := cacheJob(model.JobCompleted)
	cancelled := cacheJob(model.JobCancelled)

	c.Add(completed)
	c.Add(cancelled)

	got, err := c.Get(completed.ID)
	require.NoError(t, err)
	assert.Equal(t, completed.ID, got.ID)

	_, err = c.Get(model.NewID())
	assert.ErrorIs(t, err, ErrJobNotCached)

	assert.True(t, c.Remove(cancelled.ID))

	_, err = c.Get(cancelled.ID)
	assert.ErrorIs(t, err, ErrJobNotCached)
}

func TestJobCacheSkipsMutableJobs(t *testing.T) {
	c := NewJobCache(wlog.NewLogger(&wlog.LoggerConfiguration{EnableConsole: false}))

	// a failed job may still be re-queued, so it must stay uncached
	for _, status := range []model.JobStatus{model.JobPending, model.JobRunning, model.JobFailed} {
		j := cacheJob(status)
		c.Add(j)

		_, err := c.Get(j.ID)
		assert.ErrorIs(t, err, ErrJobNotCached, string(status))
	}

	c.Add(nil)
}
