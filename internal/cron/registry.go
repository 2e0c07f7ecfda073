package cron

import (
	"context"
	"sync"
	"time"
)

// Job is one unit of periodic maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type schedule struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds jobs with their cadence and remembers when each last ran.
type Registry struct {
	mu        sync.Mutex
	schedules []*schedule
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds job to run at most once per every. A non-positive every runs
// the job on each tick.
func (r *Registry) Register(job Job, every time.Duration) {
	if job == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules = append(r.schedules, &schedule{job: job, every: every})
}

// Jobs returns the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]Job, 0, len(r.schedules))
	for _, s := range r.schedules {
		jobs = append(jobs, s.job)
	}
	return jobs
}

// Due returns the jobs whose cadence has elapsed at now and stamps them as run.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, s := range r.schedules {
		if !s.lastRun.IsZero() && s.every > 0 && now.Sub(s.lastRun) < s.every {
			continue
		}
		s.lastRun = now
		due = append(due, s.job)
	}
	return due
}

// Tick is the shortest registered cadence, or fallback when nothing sets one.
func (r *Registry) Tick(fallback time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	tick := time.Duration(0)
	for _, s := range r.schedules {
		if s.every > 0 && (tick == 0 || s.every < tick) {
			tick = s.every
		}
	}
	if tick == 0 {
		return fallback
	}
	return tick
}
