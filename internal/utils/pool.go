package utils

import (
	"context"
	"sync"
)

type Task interface {
	Execute()
}

// Pool runs tasks on a fixed set of workers. Exec blocks once the queue
// is full, which the scheduler never hits because it only claims as
// many jobs as it has free slots.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup
	ctx   context.Context
}

func NewPool(ctx context.Context, workers int, queueCount int) *Pool {
	pool := &Pool{
		tasks: make(chan Task, queueCount),
		ctx:   ctx,
	}

	for range workers {
		pool.wg.Add(1)
		go pool.worker()
	}

	return pool
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			task.Execute()
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) Close() {
	close(p.tasks)
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) Exec(task Task) {
	p.tasks <- task
}
