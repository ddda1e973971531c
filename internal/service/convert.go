package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/webitel/wlog"
)

var cancelPollInterval = time.Second

type convertJob struct {
	svc *Scheduler
	*baseJob
}

// Execute supervises one conversion attempt. Whatever happens to the
// external process, exactly one terminal transition is written before
// this returns.
func (j *convertJob) Execute() {
	j.log.Debug("execute")

	start := time.Now()

	runCtx, cancel := context.WithTimeout(j.ctx, j.svc.timeout)
	defer cancel()

	var cancelled atomic.Bool

	watchDone := make(chan struct{})
	go j.watchCancel(runCtx, cancel, &cancelled, watchDone)

	err := j.svc.runner.Run(runCtx, j.job, func(p int) {
		if sErr := j.svc.jobStore.SetProgress(j.job.ID, p); sErr != nil {
			j.log.Error(sErr.Error(), wlog.Err(sErr))
		}
	})

	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)

	cancel()
	<-watchDone

	// the process may exit on its own between a cancel acknowledgement
	// and the watcher's next poll; recorded intent still wins over the
	// exit status
	if !cancelled.Load() && (err != nil || timedOut) {
		if requested, cErr := j.svc.jobStore.CancelRequested(j.job.ID); cErr == nil && requested {
			cancelled.Store(true)
		}
	}

	switch {
	case cancelled.Load():
		// user cancellation wins over whatever the process exited with
		if mErr := j.svc.jobStore.MarkCancelled(j.job.ID); mErr != nil {
			j.log.Error(mErr.Error(), wlog.Err(mErr))
		}

		j.log.Info("job cancelled", wlog.Duration("duration", time.Since(start)))
	case timedOut:
		j.svc.failJob(j.baseJob, fmt.Errorf("timeout: runtime exceeded %s", j.svc.timeout))
	case err != nil:
		j.svc.failJob(j.baseJob, err)
	default:
		if mErr := j.svc.jobStore.MarkCompleted(j.job.ID); mErr != nil {
			j.log.Error(mErr.Error(), wlog.Err(mErr))

			return
		}

		j.log.Debug("success job", wlog.Duration("duration", time.Since(start)))
	}
}

// watchCancel polls for cancellation intent and tears the run context
// down when it appears. The runner then signals the process and waits
// for it to exit.
func (j *convertJob) watchCancel(runCtx context.Context, cancel context.CancelFunc, cancelled *atomic.Bool, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			return
		case <-ticker.C:
			requested, err := j.svc.jobStore.CancelRequested(j.job.ID)
			if err != nil {
				if notFound(err) {
					return
				}

				j.log.Error(err.Error(), wlog.Err(err))

				continue
			}

			if requested {
				cancelled.Store(true)
				cancel()

				return
			}
		}
	}
}
