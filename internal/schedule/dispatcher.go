package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sprout/internal/appinfo"
	"sprout/pkg/logger"
)

// Handler runs one claimed job.
type Handler func(ctx context.Context, args []string) error

const runnerJob = "deferred_job_runner"

// Dispatcher schedules one-shot jobs on a Queue and runs the due ones. A
// Dispatcher without a queue cannot defer anything and silently declines.
type Dispatcher struct {
	queue Queue
	delay time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher(q Queue, delay time.Duration) *Dispatcher {
	if delay < 0 {
		delay = 0
	}
	return &Dispatcher{
		queue:    q,
		delay:    delay,
		now:      time.Now,
		handlers: make(map[string]Handler),
	}
}

// CanSchedule reports whether jobs can be deferred at all.
func (d *Dispatcher) CanSchedule() bool {
	return d != nil && d.queue != nil
}

// Delay is the default one-shot delay.
func (d *Dispatcher) Delay() time.Duration { return d.delay }

// Handle registers h for jobs named name.
func (d *Dispatcher) Handle(name string, h Handler) {
	d.mu.Lock()
	d.handlers[name] = h
	d.mu.Unlock()
}

// ScheduleIfNotScheduled queues name(args) to run after delay unless an
// identical job is already pending. It reports whether a job was queued.
// A negative delay uses the dispatcher default.
func (d *Dispatcher) ScheduleIfNotScheduled(ctx context.Context, name string, args []string, delay time.Duration) (bool, error) {
	if !d.CanSchedule() {
		return false, nil
	}
	if delay < 0 {
		delay = d.delay
	}
	ok, err := d.queue.IsScheduled(ctx, name, args)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", name, err)
	}
	if ok {
		return false, nil
	}
	job := Job{Name: name, Args: args, RunAt: d.now().Add(delay)}
	if err := d.queue.ScheduleOnce(ctx, job); err != nil {
		return false, fmt.Errorf("schedule %s: %w", name, err)
	}
	appinfo.JobsScheduled.Add(1)
	logger.LogDebug("Scheduled %s%v in %s", name, args, delay)
	return true, nil
}

// Clear drops every pending job with name.
func (d *Dispatcher) Clear(ctx context.Context, name string) (int, error) {
	if !d.CanSchedule() {
		return 0, nil
	}
	return d.queue.Clear(ctx, name)
}

// RunDue claims the jobs due now and runs them in order. Failures are
// logged; the number of jobs run is returned.
func (d *Dispatcher) RunDue(ctx context.Context) int {
	if !d.CanSchedule() {
		return 0
	}
	jobs, err := d.queue.Claim(ctx, d.now(), 64)
	if err != nil {
		logger.LogWarn("Claiming deferred jobs failed: %v", err)
	}
	ran := 0
	for _, j := range jobs {
		if ctx.Err() != nil {
			// Put it back so another run picks it up.
			_ = d.queue.ScheduleOnce(context.WithoutCancel(ctx), j)
			continue
		}
		d.mu.RLock()
		h, ok := d.handlers[j.Name]
		d.mu.RUnlock()
		if !ok {
			logger.LogWarn("No handler for deferred job %s", j.Name)
			continue
		}
		if err := h(ctx, j.Args); err != nil {
			logger.LogWarn("Deferred job %s%v failed: %v", j.Name, j.Args, err)
		}
		appinfo.JobsExecuted.Add(1)
		ran++
	}
	return ran
}

// Start polls the queue on p every interval.
func (d *Dispatcher) Start(ctx context.Context, p *Periodic, every time.Duration) error {
	if !d.CanSchedule() {
		return nil
	}
	if every <= 0 {
		every = 5 * time.Second
	}
	_, err := p.Install(runnerJob, "@every "+every.String(), func() {
		d.RunDue(ctx)
	})
	return err
}
