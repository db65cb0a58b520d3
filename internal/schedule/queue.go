package schedule

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Job names.
const (
	JobOptimizeAttachment = "optimize_attachment"
	JobOptimizeImage      = "optimize_image"
	JobFocalRecrop        = "focal_recrop"
	JobSyncImageSizes     = "sync_image_sizes"
)

// DefaultDelay is the one-shot delay that coalesces bursts of events.
const DefaultDelay = 30 * time.Second

// Job is a one-shot deferred call. Name and Args together identify it.
type Job struct {
	Name  string    `json:"name"`
	Args  []string  `json:"args"`
	RunAt time.Time `json:"-"`
}

// Key is the de-duplication identity of the job.
func (j Job) Key() string {
	args := j.Args
	if args == nil {
		args = []string{}
	}
	b, _ := json.Marshal(struct {
		Name string   `json:"name"`
		Args []string `json:"args"`
	}{j.Name, args})
	return string(b)
}

// Queue stores deferred one-shot jobs.
type Queue interface {
	ScheduleOnce(ctx context.Context, job Job) error
	IsScheduled(ctx context.Context, name string, args []string) (bool, error)
	// Clear drops every pending job with name and returns how many.
	Clear(ctx context.Context, name string) (int, error)
	// Claim removes and returns up to limit jobs due at now. A claimed job
	// is never handed to another caller.
	Claim(ctx context.Context, now time.Time, limit int) ([]Job, error)
}

// MemoryQueue keeps jobs in process.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs map[string]Job
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: make(map[string]Job)}
}

func (q *MemoryQueue) ScheduleOnce(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[job.Key()]; !ok {
		q.jobs[job.Key()] = job
	}
	return nil
}

func (q *MemoryQueue) IsScheduled(_ context.Context, name string, args []string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.jobs[Job{Name: name, Args: args}.Key()]
	return ok, nil
}

func (q *MemoryQueue) Clear(_ context.Context, name string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for k, j := range q.jobs {
		if j.Name == name {
			delete(q.jobs, k)
			n++
		}
	}
	return n, nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time, limit int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []Job
	for _, j := range q.jobs {
		if !j.RunAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(a, b int) bool {
		if due[a].RunAt.Equal(due[b].RunAt) {
			return due[a].Key() < due[b].Key()
		}
		return due[a].RunAt.Before(due[b].RunAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, j := range due {
		delete(q.jobs, j.Key())
	}
	return due, nil
}

// Len is the number of pending jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
