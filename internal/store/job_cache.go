package store

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/pkg/errors"
	"github.com/webitel/wlog"

	"github.com/webitel/video_converter/internal/model"
)

const cacheJobsSize = 2000

var ErrJobNotCached = errors.New("job not found in cache")

// JobCache holds terminal jobs in front of the database. Terminal
// records never change, so a hit can be served without a round trip.
// Safe for concurrent use.
type JobCache struct {
	log  *wlog.Logger
	mu   sync.Mutex
	jobs *simplelru.LRU[string, *model.Job]
}

func NewJobCache(log *wlog.Logger) *JobCache {
	jobs, err := simplelru.NewLRU[string, *model.Job](cacheJobsSize, nil)
	if err != nil { // size < 0
		panic(err.Error())
	}

	return &JobCache{
		log:  log,
		jobs: jobs,
	}
}

func (c *JobCache) Get(id string) (*model.Job, error) {
	c.mu.Lock()
	j, ok := c.jobs.Get(id)
	c.mu.Unlock()

	if ok {
		c.log.Debug("job cache hit", wlog.String("job_id", id))
		return j, nil
	}
	c.log.Debug("job cache miss", wlog.String("job_id", id))
	return nil, ErrJobNotCached
}

// Add stores a job. Only completed and cancelled jobs are kept: a
// failed one may still be re-queued by the retry policy, and anything
// else is still mutating in the database.
func (c *JobCache) Add(j *model.Job) {
	if j == nil || (j.Status != model.JobCompleted && j.Status != model.JobCancelled) {
		return
	}

	c.mu.Lock()
	c.jobs.Add(j.ID, j)
	c.mu.Unlock()
}

func (c *JobCache) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.jobs.Remove(id)
}
