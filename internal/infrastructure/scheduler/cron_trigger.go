package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc is one scheduled background job
type JobFunc func(ctx context.Context) error

// CronTriggerConfig holds configuration for the cron trigger
type CronTriggerConfig struct {
	// JobTimeout bounds a single job run; zero means no limit
	JobTimeout time.Duration
	// Location evaluates schedules in this zone; nil means UTC
	Location *time.Location
}

// DefaultCronTriggerConfig returns default cron trigger configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		JobTimeout: 30 * time.Minute,
		Location:   time.UTC,
	}
}

type cronJob struct {
	name    string
	spec    string
	run     JobFunc
	entryID cron.EntryID

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

// JobStatus is a point-in-time view of a registered job
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Running   bool       `json:"running"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

// CronTrigger runs named jobs on standard five-field cron schedules. A job
// whose previous run is still in flight is skipped for that tick.
type CronTrigger struct {
	config CronTriggerConfig
	cron   *cron.Cron
	logger *zap.Logger

	mu        sync.Mutex
	jobs      map[string]*cronJob
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(config CronTriggerConfig, logger *zap.Logger) *CronTrigger {
	if config.Location == nil {
		config.Location = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CronTrigger{
		config: config,
		cron: cron.New(
			cron.WithLocation(config.Location),
			cron.WithChain(cron.Recover(cronLogger{logger.Sugar()})),
		),
		logger: logger,
		jobs:   make(map[string]*cronJob),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers run under name on the given cron spec
func (c *CronTrigger) AddJob(name, spec string, run JobFunc) error {
	if name == "" || run == nil {
		return ErrInvalidConfig
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}

	job := &cronJob{name: name, spec: spec, run: run}
	id, err := c.cron.AddFunc(spec, func() {
		if err := c.runJob(job); err != nil && err != ErrJobAlreadyRunning {
			c.logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidSchedule, name, spec, err)
	}
	job.entryID = id
	c.jobs[name] = job

	c.logger.Info("Scheduled job registered", zap.String("job", name), zap.String("schedule", spec))
	return nil
}

// Start starts the cron trigger
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		return nil
	}
	c.isRunning = true
	c.cron.Start()

	c.logger.Info("Cron trigger started", zap.Int("jobs", len(c.jobs)))
	return nil
}

// Stop stops the cron trigger and waits for running jobs
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	cronDone := c.cron.Stop()
	c.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs the named job immediately, outside its schedule
func (c *CronTrigger) RunNow(name string) error {
	c.mu.Lock()
	job, ok := c.jobs[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return c.runJob(job)
}

// Jobs returns the status of every registered job sorted by name
func (c *CronTrigger) Jobs() []JobStatus {
	c.mu.Lock()
	jobs := make([]*cronJob, 0, len(c.jobs))
	for _, j := range c.jobs {
		jobs = append(jobs, j)
	}
	c.mu.Unlock()

	statuses := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		st := JobStatus{Name: j.name, Schedule: j.spec, Running: j.running}
		if !j.lastRun.IsZero() {
			at := j.lastRun
			st.LastRunAt = &at
		}
		if j.lastErr != nil {
			st.LastError = j.lastErr.Error()
		}
		j.mu.Unlock()

		if next := c.cron.Entry(j.entryID).Next; !next.IsZero() {
			st.NextRunAt = &next
		}
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, k int) bool { return statuses[i].Name < statuses[k].Name })
	return statuses
}

func (c *CronTrigger) runJob(job *cronJob) (err error) {
	job.mu.Lock()
	if job.running {
		job.mu.Unlock()
		c.logger.Info("Job still running, skipping tick", zap.String("job", job.name))
		return ErrJobAlreadyRunning
	}
	job.running = true
	job.mu.Unlock()

	c.wg.Add(1)
	defer c.wg.Done()

	ctx := c.ctx
	if c.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.JobTimeout)
		defer cancel()
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrJobFailed, job.name, r)
		}
		job.mu.Lock()
		job.running = false
		job.lastRun = started
		job.lastErr = err
		job.mu.Unlock()

		c.logger.Info("Job finished",
			zap.String("job", job.name),
			zap.Duration("duration", time.Since(started)),
			zap.Bool("success", err == nil),
		)
	}()

	return job.run(ctx)
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
