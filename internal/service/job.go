package service

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"github.com/webitel/wlog"

	"github.com/webitel/video_converter/internal/model"
	"github.com/webitel/video_converter/internal/utils"
)

type JobStore interface {
	Create(j *model.Job) error
	Get(id string) (*model.Job, error)
	List(status model.JobStatus) ([]*model.Job, error)
	FetchPending(limit int) ([]*model.Job, error)
	SetProgress(id string, progress int) error
	MarkCompleted(id string) error
	MarkFailed(id string, errMsg string, retry int) error
	Requeue(id string, nextAttemptAt time.Time) error
	MarkCancelled(id string) error
	RequestCancel(id string) (model.JobStatus, error)
	CancelRequested(id string) (bool, error)
	Counts() (map[model.JobStatus]int, error)
	RecoverInterrupted() ([]*model.Job, error)
}

type jobHandler struct {
	jobStore JobStore
	ctx      context.Context
	log      *wlog.Logger
	maxRetry int
	delay    *backoff.Backoff
}

type baseJob struct {
	job *model.Job
	ctx context.Context
	log *wlog.Logger
}

// failJob records the failed attempt and, while the budget and the
// error allow it, puts the job back in the queue behind a backoff
// delay.
func (svc *jobHandler) failJob(j *baseJob, cause error) {
	j.log.Error(cause.Error(), wlog.Err(cause))

	attempt := j.job.Retry + 1

	if err := svc.jobStore.MarkFailed(j.job.ID, cause.Error(), attempt); err != nil {
		j.log.Error(err.Error(), wlog.Err(err))

		return
	}

	var inputErr *utils.InputError
	if errors.As(cause, &inputErr) {
		j.log.Warn("failure is not retryable")

		return
	}

	svc.requeue(j.job.ID, attempt, j.log)
}

// requeue applies the retry policy to a job whose failure has already
// been recorded with the given attempt count.
func (svc *jobHandler) requeue(id string, attempt int, log *wlog.Logger) {
	if attempt >= svc.maxRetry {
		log.Error("max attempts reached")

		return
	}

	wait := svc.nextAttemptDelay(attempt)

	if err := svc.jobStore.Requeue(id, time.Now().Add(wait)); err != nil {
		log.Error(err.Error(), wlog.Err(err))

		return
	}

	log.Debug("job re-queued", wlog.Int("attempt", attempt), wlog.Duration("delay", wait))
}

// nextAttemptDelay grows exponentially with the attempt count so a
// persistently broken input is not re-hammered.
func (svc *jobHandler) nextAttemptDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	return svc.delay.ForAttempt(float64(attempt - 1))
}
