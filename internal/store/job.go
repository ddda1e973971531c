package store

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/webitel/wlog"

	"github.com/webitel/video_converter/config"
	"github.com/webitel/video_converter/infra/sql"
	"github.com/webitel/video_converter/internal/model"
)

const ErrInterruptedMessage = "interrupted by service restart"

const jobColumns = `j.id, j.source_path, j.destination_path, j.params, j.status, j.progress,
    j.retry, j.error, j.cancel_requested, j.next_attempt_at, j.created_at, j.updated_at`

// JobStore is the single source of truth for job records. Every status
// transition is a guarded UPDATE on the expected source status, so a
// lost race between two actors degrades to a no-op instead of an
// inconsistent record.
type JobStore struct {
	db       sql.Store
	ctx      context.Context
	instance string
	log      *wlog.Logger
}

func NewJobStore(ctx context.Context, log *wlog.Logger, cfg *config.Config, db sql.Store) *JobStore {
	s := &JobStore{
		db:       db,
		ctx:      ctx,
		instance: cfg.Service.ID,
		log:      log.With(wlog.String("store", "jobs")),
	}

	if err := s.migrate(); err != nil {
		s.log.Error(err.Error(), wlog.Err(err))
	}

	return s
}

func (s *JobStore) migrate() error {
	return s.db.Exec(s.ctx, `create schema if not exists video_converter;
create table if not exists video_converter.jobs (
    id               uuid primary key,
    instance         text not null,
    source_path      text not null,
    destination_path text not null,
    params           jsonb not null,
    status           text not null default 'pending',
    progress         int not null default 0,
    retry            int not null default 0,
    error            text,
    cancel_requested bool not null default false,
    next_attempt_at  timestamptz not null default now(),
    created_at       timestamptz not null default now(),
    updated_at       timestamptz not null default now()
);
create index if not exists jobs_dequeue_idx on video_converter.jobs (instance, status, next_attempt_at, created_at);`, nil)
}

func (s *JobStore) Create(j *model.Job) error {
	return s.db.Get(s.ctx, j, `insert into video_converter.jobs (id, instance, source_path, destination_path, params, status)
values (@id, @instance, @source_path, @destination_path, @params, @status)
returning created_at, updated_at`, map[string]any{
		"id":               j.ID,
		"instance":         s.instance,
		"source_path":      j.SourcePath,
		"destination_path": j.DestinationPath,
		"params":           j.Params.JSON(),
		"status":           j.Status,
	})
}

func (s *JobStore) Get(id string) (*model.Job, error) {
	var j model.Job

	err := s.db.Get(s.ctx, &j, `select `+jobColumns+`
from video_converter.jobs j
where j.id = @id`, map[string]any{
		"id": id,
	})
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, model.NewNotFoundError(id)
		}

		return nil, err
	}

	return &j, nil
}

// List returns jobs ordered by created_at ascending, which is also the
// dequeue order. An empty status returns every job.
func (s *JobStore) List(status model.JobStatus) ([]*model.Job, error) {
	var jobs []*model.Job

	err := s.db.Select(s.ctx, &jobs, `select `+jobColumns+`
from video_converter.jobs j
where (@status = '' or j.status = @status)
order by j.created_at`, map[string]any{
		"status": string(status),
	})
	if err != nil {
		return nil, err
	}

	return jobs, nil
}

// FetchPending atomically claims up to limit of the oldest eligible
// pending jobs and flips them to running. Jobs waiting out a retry
// backoff (next_attempt_at in the future) are skipped over so they do
// not block the queue head.
func (s *JobStore) FetchPending(limit int) ([]*model.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	var jobs []*model.Job

	err := s.db.Select(s.ctx, &jobs, `update video_converter.jobs j
set status = @running,
    progress = 0,
    updated_at = now()
from (
    select id
    from video_converter.jobs
    where status = @pending
        and instance = @instance
        and cancel_requested = false
        and next_attempt_at <= now()
    order by created_at
    limit @limit
) x
where x.id = j.id
returning `+jobColumns, map[string]any{
		"limit":    limit,
		"instance": s.instance,
		"pending":  model.JobPending,
		"running":  model.JobRunning,
	})
	if err != nil {
		return nil, err
	}

	return jobs, nil
}

// SetProgress keeps progress monotonic while the job stays running;
// writes after a terminal transition are dropped by the status guard.
func (s *JobStore) SetProgress(id string, progress int) error {
	return s.db.Exec(s.ctx, `update video_converter.jobs
set progress = greatest(progress, @progress),
    updated_at = now()
where id = @id
    and status = @running`, map[string]any{
		"id":       id,
		"progress": progress,
		"running":  model.JobRunning,
	})
}

func (s *JobStore) MarkCompleted(id string) error {
	return s.transition(id, model.JobRunning, `update video_converter.jobs
set status = @to,
    progress = 100,
    error = null,
    updated_at = now()
where id = @id
    and status = @from`, model.JobCompleted)
}

// MarkFailed records a failed attempt; retry is the attempt counter
// after this failure.
func (s *JobStore) MarkFailed(id string, errMsg string, retry int) error {
	affected, err := s.db.ExecAffected(s.ctx, `update video_converter.jobs
set status = @to,
    error = @error,
    retry = @retry,
    updated_at = now()
where id = @id
    and status = @from`, map[string]any{
		"id":    id,
		"error": errMsg,
		"retry": retry,
		"from":  model.JobRunning,
		"to":    model.JobFailed,
	})
	if err != nil {
		return err
	}

	if affected == 0 {
		return s.transitionConflict(id)
	}

	return nil
}

// Requeue moves a failed job back to pending for another attempt. The
// error message is cleared and progress reset; next_attempt_at carries
// the backoff delay.
func (s *JobStore) Requeue(id string, nextAttemptAt time.Time) error {
	affected, err := s.db.ExecAffected(s.ctx, `update video_converter.jobs
set status = @to,
    progress = 0,
    error = null,
    next_attempt_at = @next_attempt_at,
    updated_at = now()
where id = @id
    and status = @from
    and cancel_requested = false`, map[string]any{
		"id":              id,
		"next_attempt_at": nextAttemptAt,
		"from":            model.JobFailed,
		"to":              model.JobPending,
	})
	if err != nil {
		return err
	}

	if affected == 0 {
		return s.transitionConflict(id)
	}

	return nil
}

func (s *JobStore) MarkCancelled(id string) error {
	affected, err := s.db.ExecAffected(s.ctx, `update video_converter.jobs
set status = @to,
    updated_at = now()
where id = @id
    and status in (@pending, @running)`, map[string]any{
		"id":      id,
		"pending": model.JobPending,
		"running": model.JobRunning,
		"to":      model.JobCancelled,
	})
	if err != nil {
		return err
	}

	if affected == 0 {
		return s.transitionConflict(id)
	}

	return nil
}

// RequestCancel sets cancellation intent. A pending job is finalized
// immediately; a running one is flagged and the supervisor terminates
// the process before completing the transition. The returned status is
// the job's status after the call.
func (s *JobStore) RequestCancel(id string) (model.JobStatus, error) {
	affected, err := s.db.ExecAffected(s.ctx, `update video_converter.jobs
set status = @cancelled,
    cancel_requested = true,
    updated_at = now()
where id = @id
    and status = @pending`, map[string]any{
		"id":        id,
		"pending":   model.JobPending,
		"cancelled": model.JobCancelled,
	})
	if err != nil {
		return "", err
	}

	if affected == 1 {
		return model.JobCancelled, nil
	}

	affected, err = s.db.ExecAffected(s.ctx, `update video_converter.jobs
set cancel_requested = true,
    updated_at = now()
where id = @id
    and status = @running`, map[string]any{
		"id":      id,
		"running": model.JobRunning,
	})
	if err != nil {
		return "", err
	}

	if affected == 1 {
		return model.JobRunning, nil
	}

	j, err := s.Get(id)
	if err != nil {
		return "", err
	}

	return "", model.NewInvalidStateError(id, j.Status)
}

func (s *JobStore) CancelRequested(id string) (bool, error) {
	var requested bool

	err := s.db.Get(s.ctx, &requested, `select cancel_requested
from video_converter.jobs
where id = @id`, map[string]any{
		"id": id,
	})
	if err != nil {
		if pgxscan.NotFound(err) {
			return false, model.NewNotFoundError(id)
		}

		return false, err
	}

	return requested, nil
}

func (s *JobStore) Counts() (map[model.JobStatus]int, error) {
	var rows []struct {
		Status model.JobStatus `db:"status"`
		Count  int             `db:"count"`
	}

	err := s.db.Select(s.ctx, &rows, `select status, count(*) as count
from video_converter.jobs
where instance = @instance
group by status`, map[string]any{
		"instance": s.instance,
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[model.JobStatus]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}

	return counts, nil
}

// RecoverInterrupted marks jobs left running by a previous process as
// failed, counting the lost run as one attempt. The supervising process
// handle died with the old process, so the record can never resolve on
// its own.
func (s *JobStore) RecoverInterrupted() ([]*model.Job, error) {
	var jobs []*model.Job

	err := s.db.Select(s.ctx, &jobs, `update video_converter.jobs j
set status = @failed,
    error = @error,
    retry = j.retry + 1,
    updated_at = now()
where j.instance = @instance
    and j.status = @running
returning `+jobColumns, map[string]any{
		"instance": s.instance,
		"running":  model.JobRunning,
		"failed":   model.JobFailed,
		"error":    ErrInterruptedMessage,
	})
	if err != nil {
		return nil, err
	}

	return jobs, nil
}

// Delete removes a terminal job record.
func (s *JobStore) Delete(id string) error {
	affected, err := s.db.ExecAffected(s.ctx, `delete
from video_converter.jobs
where id = @id
    and status in (@completed, @failed, @cancelled)`, map[string]any{
		"id":        id,
		"completed": model.JobCompleted,
		"failed":    model.JobFailed,
		"cancelled": model.JobCancelled,
	})
	if err != nil {
		return err
	}

	if affected == 0 {
		return s.transitionConflict(id)
	}

	return nil
}

func (s *JobStore) transition(id string, from model.JobStatus, query string, to model.JobStatus) error {
	affected, err := s.db.ExecAffected(s.ctx, query, pgx.NamedArgs{
		"id":   id,
		"from": from,
		"to":   to,
	})
	if err != nil {
		return err
	}

	if affected == 0 {
		return s.transitionConflict(id)
	}

	return nil
}

func (s *JobStore) transitionConflict(id string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}

	return model.NewInvalidStateError(id, j.Status)
}
