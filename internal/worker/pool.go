package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const stopTimeout = 30 * time.Second

// Pool manages the inbound workers.
type Pool struct {
	workers     []*Worker
	source      Source
	deliverer   Deliverer
	workerCount int
	taskTimeout time.Duration
	log         zerolog.Logger
	wg          sync.WaitGroup
}

// Config contains worker pool configuration.
type Config struct {
	WorkerCount int
	TaskTimeout time.Duration
}

// NewPool creates a new worker pool.
func NewPool(source Source, deliverer Deliverer, cfg Config, log zerolog.Logger) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 10 * time.Second
	}
	return &Pool{
		source:      source,
		deliverer:   deliverer,
		workerCount: cfg.WorkerCount,
		taskTimeout: cfg.TaskTimeout,
		log:         log.With().Str("component", "worker-pool").Logger(),
	}
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info().Int("worker_count", p.workerCount).Msg("starting worker pool")

	p.workers = make([]*Worker, p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		w := NewWorker(i+1, p.source, p.deliverer, p.taskTimeout, p.log)
		p.workers[i] = w

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Start(ctx)
		}(w)
	}
}

// Stop signals all workers and waits for in-flight events to finish.
func (p *Pool) Stop() {
	p.log.Info().Msg("stopping worker pool")
	for _, w := range p.workers {
		w.Stop()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("all workers stopped gracefully")
	case <-time.After(stopTimeout):
		p.log.Warn().Msg("worker pool shutdown timed out")
	}
}
