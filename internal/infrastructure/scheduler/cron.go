package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"ForecastPoster/internal/ports"
)

// CronScheduler drives a job on a cron schedule. A tick that fires while the
// previous run is still going is skipped, and panics are recovered.
type CronScheduler struct {
	spec   string
	logger cron.Logger

	mu      sync.Mutex
	current *cronRun

	// held while job runs; Stop takes it to wait for an in-flight run
	jobMu sync.Mutex
}

// cronRun is one Start. Every Stop call waits on the same done channel.
type cronRun struct {
	cron     *cron.Cron
	stopOnce sync.Once
	stopping atomic.Bool
	done     chan struct{}
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler for spec (standard cron or "@every 5m").
func NewCronScheduler(spec string, logger cron.Logger) *CronScheduler {
	if logger == nil {
		logger = cron.DiscardLogger
	}
	return &CronScheduler{spec: spec, logger: logger}
}

// IntervalSpec renders a fixed interval as a cron descriptor.
func IntervalSpec(d time.Duration) string {
	return "@every " + d.String()
}

// Start runs job once immediately and then on every tick until ctx is done or Stop is called.
// A stopped scheduler is not restarted.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return nil
	}

	schedule, err := cron.ParseStandard(c.spec)
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", c.spec, err)
	}

	run := &cronRun{done: make(chan struct{})}
	wrapped := cron.NewChain(
		cron.Recover(c.logger),
		cron.SkipIfStillRunning(c.logger),
	).Then(cron.FuncJob(func() {
		c.jobMu.Lock()
		defer c.jobMu.Unlock()
		if run.stopping.Load() {
			return
		}
		job(time.Now())
	}))

	run.cron = cron.New(cron.WithLogger(c.logger))
	run.cron.Schedule(schedule, wrapped)
	run.cron.Start()
	c.current = run

	go wrapped.Run()
	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop halts the ticker and waits for an in-flight job, or for ctx to expire.
// Concurrent callers all wait for the same job to finish.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	run := c.current
	c.mu.Unlock()

	if run == nil {
		return nil
	}

	run.stopOnce.Do(func() {
		run.stopping.Store(true)
		stopped := run.cron.Stop()
		go func() {
			<-stopped.Done()
			c.jobMu.Lock()
			c.jobMu.Unlock()
			close(run.done)
		}()
	})

	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
