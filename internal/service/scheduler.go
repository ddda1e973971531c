package service

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"github.com/webitel/wlog"

	"github.com/webitel/video_converter/config"
	"github.com/webitel/video_converter/infra/sysmon"
	"github.com/webitel/video_converter/internal/model"
	"github.com/webitel/video_converter/internal/store"
	"github.com/webitel/video_converter/internal/utils"
)

type Monitor interface {
	Sample() sysmon.Snapshot
}

// Runner supervises one external conversion process. Run blocks until
// the process exits or ctx is cancelled and must never leak the handle.
type Runner interface {
	Run(ctx context.Context, job *model.Job, progress func(int)) error
}

type Health struct {
	Status    string
	Running   int
	Pending   int
	Completed int
	Failed    int
	Cancelled int
	Resources sysmon.Snapshot
}

// Scheduler is the public surface of the conversion queue and the
// supervisor of its worker pool. Submissions are persisted immediately;
// a ticker loop admits pending jobs as resources allow.
type Scheduler struct {
	jobHandler

	cache   *store.JobCache
	runner  Runner
	monitor Monitor
	pool    *utils.Pool
	limits  Limits
	timeout time.Duration
	tick    time.Duration
}

func NewScheduler(ctx context.Context, cfg *config.Config, log *wlog.Logger, js JobStore, cache *store.JobCache, mon Monitor, runner Runner) *Scheduler {
	s := &Scheduler{
		jobHandler: jobHandler{
			jobStore: js,
			ctx:      ctx,
			log:      log.With(wlog.String("service", "scheduler")),
			maxRetry: cfg.Scheduler.MaxRetry,
			delay: &backoff.Backoff{
				Min:    cfg.Scheduler.RetryDelayMin,
				Max:    cfg.Scheduler.RetryDelayMax,
				Factor: 2,
			},
		},
		cache:   cache,
		runner:  runner,
		monitor: mon,
		limits:  LimitsFromConfig(cfg),
		timeout: cfg.Scheduler.JobTimeout,
		tick:    cfg.Scheduler.Tick,
		pool:    utils.NewPool(ctx, cfg.Scheduler.MaxConcurrent, cfg.Scheduler.Queue),
	}

	s.recoverInterrupted()

	go s.listen()

	return s
}

// Submit validates the request, persists the job as pending and returns
// without waiting for execution.
func (svc *Scheduler) Submit(src, dst string, params *model.ConvertParams) (*model.Job, error) {
	j, err := model.NewJob(src, dst, params)
	if err != nil {
		return nil, err
	}

	if err = svc.jobStore.Create(j); err != nil {
		return nil, err
	}

	svc.log.Debug("job submitted", wlog.String("job_id", j.ID), wlog.String("source", src))

	return j, nil
}

func (svc *Scheduler) GetJob(id string) (*model.Job, error) {
	if j, err := svc.cache.Get(id); err == nil {
		return j, nil
	}

	j, err := svc.jobStore.Get(id)
	if err != nil {
		return nil, err
	}

	svc.cache.Add(j)

	return j, nil
}

func (svc *Scheduler) ListJobs(status string) ([]*model.Job, error) {
	if status != "" && !model.JobStatus(status).Valid() {
		return nil, model.NewValidationError("status", "unknown status")
	}

	return svc.jobStore.List(model.JobStatus(status))
}

// Cancel sets cancellation intent and returns immediately. A pending
// job is finalized in place; for a running one the supervisor signals
// the process and GetStatus reports running until it exits.
func (svc *Scheduler) Cancel(id string) error {
	st, err := svc.jobStore.RequestCancel(id)
	if err != nil {
		return err
	}

	svc.log.Debug("cancel requested", wlog.String("job_id", id), wlog.String("status", string(st)))

	return nil
}

func (svc *Scheduler) Health() (*Health, error) {
	counts, err := svc.jobStore.Counts()
	if err != nil {
		return nil, err
	}

	return &Health{
		Status:    "healthy",
		Running:   counts[model.JobRunning],
		Pending:   counts[model.JobPending],
		Completed: counts[model.JobCompleted],
		Failed:    counts[model.JobFailed],
		Cancelled: counts[model.JobCancelled],
		Resources: svc.monitor.Sample(),
	}, nil
}

// recoverInterrupted resolves jobs orphaned in running state by a prior
// crash, then lets the normal retry policy decide their fate.
func (svc *Scheduler) recoverInterrupted() {
	jobs, err := svc.jobStore.RecoverInterrupted()
	if err != nil {
		svc.log.Error(err.Error(), wlog.Err(err))

		return
	}

	for _, j := range jobs {
		log := svc.log.With(wlog.String("job_id", j.ID))
		log.Warn("recovered interrupted job")
		svc.requeue(j.ID, j.Retry, log)
	}
}

func (svc *Scheduler) listen() {
	svc.log.Debug("listening for conversion jobs")

	ticker := time.NewTicker(svc.tick)

	defer func() {
		ticker.Stop()
		svc.pool.Close()
		svc.log.Debug("scheduler listener closed")
	}()

	for {
		select {
		case <-svc.ctx.Done():
			return
		case <-ticker.C:
			if err := svc.schedule(); err != nil {
				svc.log.Error(err.Error(), wlog.Err(err))
			}
		}
	}
}

// schedule admits pending jobs up to the current allowance. Claimed
// jobs flip to running inside the store, so the running count can never
// pass the allowance computed at dequeue time.
func (svc *Scheduler) schedule() error {
	counts, err := svc.jobStore.Counts()
	if err != nil {
		return err
	}

	allowed := Allowance(svc.monitor.Sample(), svc.limits, counts[model.JobPending])

	gap := allowed - counts[model.JobRunning]
	if gap <= 0 {
		return nil
	}

	jobs, err := svc.jobStore.FetchPending(gap)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		svc.pool.Exec(&convertJob{
			svc: svc,
			baseJob: &baseJob{
				job: job,
				ctx: svc.ctx,
				log: svc.log.With(wlog.String("job_id", job.ID),
					wlog.Int("attempt", job.Retry+1)),
			},
		})
	}

	return nil
}

// notFound reports whether err identifies a missing job record.
func notFound(err error) bool {
	var nf *model.NotFoundError
	return errors.As(err, &nf)
}
