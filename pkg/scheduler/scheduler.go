// Package scheduler runs cron-scheduled maintenance jobs, driven by standard
// five-field cron expressions checked once per minute.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/hermodbot/hermod/pkg/logger"
)

// Job is a scheduled unit of work.
type Job struct {
	Name string
	Expr string
	Run  func(ctx context.Context) error
}

// Scheduler checks registered jobs against their cron expressions every
// minute and runs due jobs concurrently.
type Scheduler struct {
	mu   sync.RWMutex
	jobs []Job
	gron *gronx.Gronx
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{gron: gronx.New()}
}

// Add registers a job after validating its cron expression.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job requires a name and a run function")
	}
	if !s.gron.IsValid(job.Expr) {
		return fmt.Errorf("invalid cron expression %q for job %s", job.Expr, job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.Name)
	}
	return names
}

// Run blocks until the context is canceled, firing due jobs once per minute.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	logger.InfoC("scheduler", "Started", "jobs", len(s.Jobs()))
	for {
		select {
		case <-ctx.Done():
			logger.InfoC("scheduler", "Stopped")
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.RLock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.RUnlock()

	for _, job := range jobs {
		due, err := s.gron.IsDue(job.Expr, now)
		if err != nil || !due {
			continue
		}
		go func(job Job) {
			if err := job.Run(ctx); err != nil {
				logger.ErrorCF("scheduler", "Job failed", map[string]any{
					"job":   job.Name,
					"error": err.Error(),
				})
			}
		}(job)
	}
}
